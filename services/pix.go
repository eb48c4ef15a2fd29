package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/malwarebo/condopay/config"
	"github.com/malwarebo/condopay/models"
	"github.com/malwarebo/condopay/monitoring"
	"github.com/malwarebo/condopay/pix"
	"github.com/malwarebo/condopay/stores"
	"github.com/malwarebo/condopay/utils"
)

type PixService struct {
	boletos  *stores.BoletoStore
	webhooks *stores.WebhookStore
	payments *PaymentService
	audit    *AuditService
	calendar *Calendar
	cfg      config.PixConfig
}

func CreatePixService(
	boletos *stores.BoletoStore,
	webhooks *stores.WebhookStore,
	payments *PaymentService,
	audit *AuditService,
	calendar *Calendar,
	cfg config.PixConfig,
) *PixService {
	return &PixService{
		boletos:  boletos,
		webhooks: webhooks,
		payments: payments,
		audit:    audit,
		calendar: calendar,
		cfg:      cfg,
	}
}

// Generate attaches a new PIX charge to a pending boleto. Generating again
// replaces the previous txid.
func (s *PixService) Generate(ctx context.Context, boletoID string) (*models.PixCharge, error) {
	if verr := utils.ValidateUUID(boletoID, "boleto_id"); verr != nil {
		return nil, utils.ValidationErrors{*verr}
	}

	var charge *models.PixCharge
	err := s.boletos.WithTransaction(ctx, func(txCtx context.Context) error {
		boleto, err := s.boletos.GetByID(txCtx, boletoID)
		if err != nil {
			if stores.IsNotFound(err) {
				return ErrBoletoNotFound
			}
			return fmt.Errorf("failed to load boleto: %w", err)
		}
		if err := terminalError(boleto.Status); err != nil {
			return err
		}

		txid := pix.NewTxID()
		total := boleto.Total()
		payload, err := pix.Payload(pix.Charge{
			Key:          s.cfg.Key,
			MerchantName: s.cfg.MerchantName,
			MerchantCity: s.cfg.MerchantCity,
			Amount:       total,
			TxID:         txid,
		})
		if err != nil {
			return fmt.Errorf("failed to build pix payload: %w", err)
		}

		charge = &models.PixCharge{
			BoletoID:  boleto.ID,
			TxID:      txid,
			PixKey:    s.cfg.Key,
			QRCode:    payload,
			Amount:    total.StringFixed(2),
			ExpiresAt: s.calendar.Now().Add(s.cfg.Expiration),
		}

		rows, err := s.boletos.SetPixCharge(txCtx, boleto.ID, charge)
		if err != nil {
			return fmt.Errorf("failed to store pix charge: %w", err)
		}
		if rows == 0 {
			current, err := s.boletos.GetByID(txCtx, boleto.ID)
			if err != nil {
				return fmt.Errorf("failed to reload boleto: %w", err)
			}
			return terminalError(current.Status)
		}

		return s.audit.LogBoletoAction(txCtx, models.AuditActionPixGenerate, boleto.ID, map[string]interface{}{
			"txid":       txid,
			"amount":     charge.Amount,
			"expires_at": charge.ExpiresAt,
		})
	})
	if err != nil {
		return nil, err
	}

	utils.Info(ctx, "pix charge generated", map[string]interface{}{
		"boleto_id": charge.BoletoID,
		"txid":      charge.TxID,
	})
	return charge, nil
}

func validateWebhook(payload *models.PixWebhookPayload) error {
	var errs utils.ValidationErrors
	errs.Add(utils.ValidateString(payload.TxID, "txid", 1, 35, true))
	if !payload.Status.IsValid() {
		errs.AddField("status", "must be one of PAID, PENDING, EXPIRED")
	}
	if payload.Amount != nil {
		errs.Add(utils.ValidateMoney(*payload.Amount, "amount"))
	}
	return errs.Err()
}

// HandleWebhook records the notification in the webhook ledger and, for a
// PAID status, confirms the payment. A notification that was already
// processed returns the duplicate outcome without touching the boleto.
func (s *PixService) HandleWebhook(ctx context.Context, payload *models.PixWebhookPayload) (*models.PixWebhookResult, error) {
	if err := validateWebhook(payload); err != nil {
		return nil, err
	}

	eventID := payload.EventID()
	event, _, err := s.webhooks.Record(ctx, &models.WebhookEvent{
		Provider:  models.WebhookProviderPix,
		EventType: string(payload.Status),
		EventID:   eventID,
		Payload:   payload.ToJSON(),
		Status:    models.WebhookEventStatusPending,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record webhook event: %w", err)
	}

	result := &models.PixWebhookResult{EventID: eventID}
	if event.Status == models.WebhookEventStatusCompleted {
		result.Outcome = models.WebhookOutcomeDuplicate
		monitoring.RecordPixWebhook(string(payload.Status), string(result.Outcome))
		return result, nil
	}

	if err := s.webhooks.MarkProcessing(ctx, event.ID); err != nil {
		return nil, fmt.Errorf("failed to mark webhook processing: %w", err)
	}

	payment, err := s.process(ctx, payload)
	if err != nil {
		if markErr := s.webhooks.MarkFailed(ctx, event.ID, err.Error()); markErr != nil {
			utils.Error(ctx, "failed to mark webhook failed", map[string]interface{}{
				"event_id": eventID,
				"error":    markErr.Error(),
			})
		}
		s.logWebhook(ctx, eventID, false, err.Error())
		monitoring.RecordPixWebhook(string(payload.Status), "failed")
		return nil, err
	}

	if err := s.webhooks.MarkCompleted(ctx, event.ID); err != nil {
		return nil, fmt.Errorf("failed to mark webhook completed: %w", err)
	}
	s.logWebhook(ctx, eventID, true, "")

	result.Payment = payment
	result.Outcome = models.WebhookOutcomeRecorded
	if payment != nil {
		result.Outcome = models.WebhookOutcomeProcessed
	}
	monitoring.RecordPixWebhook(string(payload.Status), string(result.Outcome))
	return result, nil
}

func (s *PixService) process(ctx context.Context, payload *models.PixWebhookPayload) (*models.PaymentResult, error) {
	boleto, err := s.boletos.GetByPixTxID(ctx, payload.TxID)
	if err != nil {
		if stores.IsNotFound(err) {
			return nil, ErrPixTxNotFound
		}
		return nil, fmt.Errorf("failed to load boleto: %w", err)
	}
	if payload.BoletoID != "" && payload.BoletoID != boleto.ID {
		return nil, ErrPixTxMismatch
	}

	if payload.Status != models.PixStatusPaid {
		utils.Info(ctx, "pix notification recorded", map[string]interface{}{
			"txid":      payload.TxID,
			"status":    payload.Status,
			"boleto_id": boleto.ID,
		})
		return nil, nil
	}

	if payload.Amount != nil && !payload.Amount.Equal(boleto.Total()) {
		return nil, ErrAmountMismatch
	}

	source := models.PaymentSourceWebhook
	if payload.Simulated {
		source = models.PaymentSourceSimulator
	}
	return s.payments.ConfirmPayment(ctx, models.PaymentConfirmation{
		BoletoID: boleto.ID,
		PaidAt:   payload.PaidAt,
		Channel:  models.PaymentChannelPix,
		Proof:    payload.TxID,
		Source:   source,
	})
}

func (s *PixService) logWebhook(ctx context.Context, eventID string, success bool, errMsg string) {
	if err := s.audit.LogWebhookEvent(ctx, models.WebhookProviderPix, eventID, success, errMsg); err != nil {
		utils.Warn(ctx, "failed to audit webhook", map[string]interface{}{
			"event_id": eventID,
			"error":    err.Error(),
		})
	}
}

// IsClientError reports whether err was caused by the notification itself
// rather than by the service.
func IsClientError(err error) bool {
	var verrs utils.ValidationErrors
	return errors.As(err, &verrs) ||
		errors.Is(err, ErrPixTxNotFound) ||
		errors.Is(err, ErrPixTxMismatch) ||
		errors.Is(err, ErrAmountMismatch) ||
		errors.Is(err, ErrBoletoCancelled) ||
		errors.Is(err, ErrInvalidPaidAt)
}
