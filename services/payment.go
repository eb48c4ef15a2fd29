package services

import (
	"context"
	"fmt"
	"time"

	"github.com/malwarebo/condopay/models"
	"github.com/malwarebo/condopay/monitoring"
	"github.com/malwarebo/condopay/stores"
	"github.com/malwarebo/condopay/utils"
)

// PaymentService is the only path that marks a boleto paid. Manual
// confirmations, PIX webhooks and the simulator all end up in ConfirmPayment.
type PaymentService struct {
	boletos  *stores.BoletoStore
	tracker  *DelinquencyTracker
	audit    *AuditService
	calendar *Calendar
}

func CreatePaymentService(boletos *stores.BoletoStore, tracker *DelinquencyTracker, audit *AuditService, calendar *Calendar) *PaymentService {
	return &PaymentService{
		boletos:  boletos,
		tracker:  tracker,
		audit:    audit,
		calendar: calendar,
	}
}

// ConfirmPayment applies the payment, reconciles the owner and writes the
// audit entry in one transaction. The status guard is a compare-and-set, so
// of two concurrent confirmations exactly one applies and the other reports
// already_paid without touching the record.
func (s *PaymentService) ConfirmPayment(ctx context.Context, req models.PaymentConfirmation) (*models.PaymentResult, error) {
	if req.Channel == "" {
		req.Channel = models.PaymentChannelBoleto
	}
	if !req.Channel.IsValid() {
		return nil, utils.ValidationErrors{{Field: "payment_channel", Message: "must be one of boleto, pix, cash, transfer"}}
	}
	if req.Source == "" {
		req.Source = models.PaymentSourceManual
	}

	if !isID(req.BoletoID) {
		return nil, ErrBoletoNotFound
	}

	// The issue date is a billing-zone calendar date, so the payment is
	// compared by date, never by instant.
	paidAt := s.calendar.Now()
	paidOn := s.calendar.Today()
	switch {
	case req.PaidAt != nil:
		paidAt = req.PaidAt.UTC()
		paidOn = s.calendar.DateOf(paidAt)
	case req.PaidOn != nil:
		paidOn = *req.PaidOn
		paidAt = time.Date(paidOn.Year(), paidOn.Month(), paidOn.Day(), 0, 0, 0, 0, s.calendar.Location()).UTC()
	}

	var result *models.PaymentResult
	err := s.boletos.WithTransaction(ctx, func(txCtx context.Context) error {
		boleto, err := s.boletos.GetByID(txCtx, req.BoletoID)
		if err != nil {
			if stores.IsNotFound(err) {
				return ErrBoletoNotFound
			}
			return fmt.Errorf("failed to load boleto: %w", err)
		}

		issued := models.DateOf(boleto.IssueDate, time.UTC)
		if boleto.Status == models.BoletoStatusPending && paidOn.Before(issued.Time) {
			return ErrInvalidPaidAt
		}

		rows, err := s.boletos.MarkPaid(txCtx, boleto.ID, paidAt, req.Channel, req.Proof)
		if err != nil {
			return fmt.Errorf("failed to mark boleto paid: %w", err)
		}

		outcome := models.PaymentOutcomePaid
		if rows == 0 {
			current, err := s.boletos.GetByID(txCtx, boleto.ID)
			if err != nil {
				return fmt.Errorf("failed to reload boleto: %w", err)
			}
			switch current.Status {
			case models.BoletoStatusPaid:
				outcome = models.PaymentOutcomeAlreadyPaid
				boleto = current
			case models.BoletoStatusCancelled:
				return ErrBoletoCancelled
			default:
				return fmt.Errorf("boleto %s was not updated", boleto.ID)
			}
		} else {
			boleto.Status = models.BoletoStatusPaid
			boleto.PaidAt = &paidAt
			boleto.PaymentChannel = req.Channel
			boleto.PaymentProof = req.Proof
		}

		situation, err := s.tracker.Reconcile(txCtx, boleto.OwnerID)
		if err != nil {
			return err
		}

		if outcome == models.PaymentOutcomePaid {
			err = s.audit.LogAction(txCtx, &models.AuditLog{
				UserID:       req.ActorID,
				Action:       string(models.AuditActionPay),
				ResourceType: string(models.AuditResourceBoleto),
				ResourceID:   boleto.ID,
				Success:      true,
				Metadata: map[string]interface{}{
					"source":  string(req.Source),
					"channel": string(req.Channel),
					"paid_at": paidAt.Format(time.RFC3339),
					"total":   boleto.Total().StringFixed(2),
				},
			})
			if err != nil {
				return fmt.Errorf("failed to write audit log: %w", err)
			}
		}

		view := boleto.View(s.calendar.Today())
		result = &models.PaymentResult{
			Boleto:         boleto,
			View:           &view,
			Outcome:        outcome,
			OwnerSituation: situation,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	amount, _ := result.Boleto.Total().Float64()
	monitoring.RecordPayment(string(req.Channel), string(req.Source), string(result.Outcome), amount)
	utils.Info(ctx, "payment confirmation processed", map[string]interface{}{
		"boleto_id": result.Boleto.ID,
		"number":    result.Boleto.Number,
		"outcome":   result.Outcome,
		"source":    req.Source,
		"situation": result.OwnerSituation,
	})

	return result, nil
}
