package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/malwarebo/condopay/analytics"
	"github.com/malwarebo/condopay/models"
	"github.com/malwarebo/condopay/monitoring"
	"github.com/malwarebo/condopay/stores"
	"github.com/malwarebo/condopay/utils"
	"github.com/shopspring/decimal"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type BoletoService struct {
	boletos   *stores.BoletoStore
	users     *stores.UserStore
	sequences *stores.SequenceStore
	tracker   *DelinquencyTracker
	audit     *AuditService
	calendar  *Calendar
}

func CreateBoletoService(
	boletos *stores.BoletoStore,
	users *stores.UserStore,
	sequences *stores.SequenceStore,
	tracker *DelinquencyTracker,
	audit *AuditService,
	calendar *Calendar,
) *BoletoService {
	return &BoletoService{
		boletos:   boletos,
		users:     users,
		sequences: sequences,
		tracker:   tracker,
		audit:     audit,
		calendar:  calendar,
	}
}

func (s *BoletoService) Today() models.Date {
	return s.calendar.Today()
}

func (s *BoletoService) Create(ctx context.Context, req *models.CreateBoletoRequest) (*models.Boleto, error) {
	var errs utils.ValidationErrors
	errs.Add(utils.ValidateUUID(req.OwnerID, "owner_id"))
	errs = append(errs, s.validateShared(req)...)
	if err := errs.Err(); err != nil {
		return nil, err
	}
	return s.create(ctx, req)
}

// BulkCreate issues the same boleto to many owners. Shared fields are
// validated once; each owner is then created in its own transaction so one
// bad owner id does not roll back the rest.
func (s *BoletoService) BulkCreate(ctx context.Context, req *models.BulkCreateBoletoRequest) (*models.BulkCreateResult, error) {
	var errs utils.ValidationErrors
	if len(req.OwnerIDs) == 0 {
		errs.AddField("owner_ids", "must contain at least one owner")
	}
	errs = append(errs, s.validateShared(req.ForOwner(""))...)
	if err := errs.Err(); err != nil {
		return nil, err
	}

	result := &models.BulkCreateResult{
		Boletos: make([]*models.Boleto, 0, len(req.OwnerIDs)),
		Errors:  make([]models.BulkCreateError, 0),
	}
	seen := make(map[string]bool, len(req.OwnerIDs))

	for _, ownerID := range req.OwnerIDs {
		ownerID = strings.TrimSpace(ownerID)
		if seen[ownerID] {
			result.Errors = append(result.Errors, models.BulkCreateError{OwnerID: ownerID, Message: "duplicate owner id"})
			continue
		}
		seen[ownerID] = true

		if verr := utils.ValidateUUID(ownerID, "owner_id"); verr != nil {
			result.Errors = append(result.Errors, models.BulkCreateError{OwnerID: ownerID, Message: verr.Message})
			continue
		}

		boleto, err := s.create(ctx, req.ForOwner(ownerID))
		if err != nil {
			result.Errors = append(result.Errors, models.BulkCreateError{OwnerID: ownerID, Message: err.Error()})
			continue
		}
		result.Boletos = append(result.Boletos, boleto)
	}
	result.Created = len(result.Boletos)

	utils.Info(ctx, "bulk boleto creation finished", map[string]interface{}{
		"requested": len(req.OwnerIDs),
		"created":   result.Created,
		"failed":    len(result.Errors),
	})
	return result, nil
}

func (s *BoletoService) validateShared(req *models.CreateBoletoRequest) utils.ValidationErrors {
	var errs utils.ValidationErrors
	errs.Add(utils.ValidateString(req.Description, "description", 1, 255, true))
	errs.Add(utils.ValidateString(req.Notes, "notes", 0, 1000, false))

	if req.Amount == nil {
		errs.AddField("amount", "is required")
	} else {
		errs.Add(utils.ValidateMoney(*req.Amount, "amount"))
	}
	for field, v := range map[string]*decimal.Decimal{
		"interest_amount": req.InterestAmount,
		"fine_amount":     req.FineAmount,
		"discount_amount": req.DiscountAmount,
	} {
		if v != nil {
			errs.Add(utils.ValidateMoney(*v, field))
		}
	}

	if req.DueDate == nil || req.DueDate.IsZero() {
		errs.AddField("due_date", "is required")
	} else if req.IssueDate != nil && req.IssueDate.After(req.DueDate.Time) {
		errs.AddField("issue_date", "must not be after the due date")
	}

	if req.Category == "" {
		errs.AddField("category", "is required")
	} else if !req.Category.IsValid() {
		errs.AddField("category", "is not a valid category")
	}
	if req.PaymentChannel != "" && !req.PaymentChannel.IsValid() {
		errs.AddField("payment_channel", "must be one of boleto, pix, cash, transfer")
	}

	if len(errs) == 0 {
		total := buildBoleto(req, models.Date{}).Total()
		if total.IsNegative() {
			errs.AddField("discount_amount", "cannot exceed amount plus interest and fine")
		}
	}
	return errs
}

func buildBoleto(req *models.CreateBoletoRequest, today models.Date) *models.Boleto {
	boleto := &models.Boleto{
		OwnerID:        req.OwnerID,
		Description:    strings.TrimSpace(req.Description),
		Category:       req.Category,
		Notes:          req.Notes,
		Amount:         orZero(req.Amount),
		InterestAmount: orZero(req.InterestAmount),
		FineAmount:     orZero(req.FineAmount),
		DiscountAmount: orZero(req.DiscountAmount),
		IssueDate:      today.Time,
		Status:         models.BoletoStatusPending,
		PaymentChannel: req.PaymentChannel,
	}
	if req.DueDate != nil {
		boleto.DueDate = req.DueDate.Time
	}
	if req.IssueDate != nil {
		boleto.IssueDate = req.IssueDate.Time
	}
	if boleto.PaymentChannel == "" {
		boleto.PaymentChannel = models.PaymentChannelBoleto
	}
	return boleto
}

func orZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}

func (s *BoletoService) create(ctx context.Context, req *models.CreateBoletoRequest) (*models.Boleto, error) {
	boleto := buildBoleto(req, s.calendar.Today())

	err := s.boletos.WithTransaction(ctx, func(txCtx context.Context) error {
		owner, err := s.users.GetByID(txCtx, req.OwnerID)
		if err != nil {
			if stores.IsNotFound(err) {
				return ErrOwnerNotFound
			}
			return fmt.Errorf("failed to load owner: %w", err)
		}
		if !owner.IsOwner() {
			return ErrNotAnOwner
		}

		n, err := s.sequences.Next(txCtx, models.BoletoSequence)
		if err != nil {
			return fmt.Errorf("failed to allocate document number: %w", err)
		}
		boleto.Number = models.FormatDocumentNumber(n)

		if err := s.boletos.Create(txCtx, boleto); err != nil {
			return fmt.Errorf("failed to create boleto: %w", err)
		}
		boleto.Owner = owner

		return s.audit.LogBoletoAction(txCtx, models.AuditActionCreate, boleto.ID, map[string]interface{}{
			"number":   boleto.Number,
			"owner_id": boleto.OwnerID,
			"total":    boleto.Total().StringFixed(2),
			"due_date": boleto.DueDate.Format(models.DateLayout),
		})
	})
	if err != nil {
		return nil, err
	}

	monitoring.RecordBoletoCreated(string(boleto.Category))
	utils.Info(ctx, "boleto created", map[string]interface{}{
		"boleto_id": boleto.ID,
		"number":    boleto.Number,
		"owner_id":  boleto.OwnerID,
	})
	return boleto, nil
}

func (s *BoletoService) Get(ctx context.Context, id string) (*models.Boleto, error) {
	if !isID(id) {
		return nil, ErrBoletoNotFound
	}
	boleto, err := s.boletos.GetByID(ctx, id)
	if err != nil {
		if stores.IsNotFound(err) {
			return nil, ErrBoletoNotFound
		}
		return nil, fmt.Errorf("failed to load boleto: %w", err)
	}
	return boleto, nil
}

func (s *BoletoService) List(ctx context.Context, filter models.BoletoFilter) ([]*models.Boleto, int64, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, 0, utils.ValidationErrors{{Field: "status", Message: "is not a valid status"}}
	}
	if filter.Category != "" && !filter.Category.IsValid() {
		return nil, 0, utils.ValidationErrors{{Field: "category", Message: "is not a valid category"}}
	}
	filter.Limit = ClampLimit(filter.Limit)
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.boletos.List(ctx, filter, s.calendar.Today())
}

// ListAll returns every boleto matching filter, for exports and reports.
func (s *BoletoService) ListAll(ctx context.Context, filter models.BoletoFilter) ([]*models.Boleto, error) {
	filter.Limit = 0
	filter.Offset = 0
	boletos, _, err := s.boletos.List(ctx, filter, s.calendar.Today())
	return boletos, err
}

func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultPageSize
	}
	if limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}

// Update edits a boleto that is still pending (including overdue). Paid and
// cancelled boletos are immutable.
func (s *BoletoService) Update(ctx context.Context, id string, req *models.UpdateBoletoRequest) (*models.Boleto, error) {
	if !isID(id) {
		return nil, ErrBoletoNotFound
	}
	var updated *models.Boleto
	err := s.boletos.WithTransaction(ctx, func(txCtx context.Context) error {
		boleto, err := s.boletos.GetByID(txCtx, id)
		if err != nil {
			if stores.IsNotFound(err) {
				return ErrBoletoNotFound
			}
			return fmt.Errorf("failed to load boleto: %w", err)
		}
		if err := terminalError(boleto.Status); err != nil {
			return err
		}

		updates, changed, err := applyUpdate(boleto, req)
		if err != nil {
			return err
		}
		if len(updates) == 0 {
			updated = boleto
			return nil
		}

		rows, err := s.boletos.UpdateIfPending(txCtx, id, updates)
		if err != nil {
			return fmt.Errorf("failed to update boleto: %w", err)
		}
		if rows == 0 {
			current, err := s.boletos.GetByID(txCtx, id)
			if err != nil {
				return fmt.Errorf("failed to reload boleto: %w", err)
			}
			if err := terminalError(current.Status); err != nil {
				return err
			}
			return fmt.Errorf("boleto %s was not updated", id)
		}

		if err := s.audit.LogBoletoAction(txCtx, models.AuditActionUpdate, id, map[string]interface{}{
			"fields": changed,
		}); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}

		updated, err = s.boletos.GetByID(txCtx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func terminalError(status models.BoletoStatus) error {
	switch status {
	case models.BoletoStatusPaid:
		return ErrBoletoPaid
	case models.BoletoStatusCancelled:
		return ErrBoletoCancelled
	}
	return nil
}

// applyUpdate validates req against boleto, mutates boleto in memory and
// returns the column updates. A change of total drops the PIX charge, whose
// QR code encodes the old amount; a new one has to be generated.
func applyUpdate(boleto *models.Boleto, req *models.UpdateBoletoRequest) (map[string]interface{}, []string, error) {
	var errs utils.ValidationErrors
	updates := make(map[string]interface{})
	var changed []string
	previousTotal := boleto.Total()

	set := func(column string, value interface{}) {
		updates[column] = value
		changed = append(changed, column)
	}

	if req.Description != nil {
		if verr := utils.ValidateString(*req.Description, "description", 1, 255, true); verr != nil {
			errs.Add(verr)
		} else {
			boleto.Description = strings.TrimSpace(*req.Description)
			set("description", boleto.Description)
		}
	}
	if req.Notes != nil {
		if verr := utils.ValidateString(*req.Notes, "notes", 0, 1000, false); verr != nil {
			errs.Add(verr)
		} else {
			boleto.Notes = *req.Notes
			set("notes", boleto.Notes)
		}
	}

	moneyFields := []struct {
		column string
		value  *decimal.Decimal
		target *decimal.Decimal
	}{
		{"amount", req.Amount, &boleto.Amount},
		{"interest_amount", req.InterestAmount, &boleto.InterestAmount},
		{"fine_amount", req.FineAmount, &boleto.FineAmount},
		{"discount_amount", req.DiscountAmount, &boleto.DiscountAmount},
	}
	for _, f := range moneyFields {
		if f.value == nil {
			continue
		}
		if verr := utils.ValidateMoney(*f.value, f.column); verr != nil {
			errs.Add(verr)
			continue
		}
		*f.target = *f.value
		set(f.column, *f.value)
	}

	if req.DueDate != nil {
		if req.DueDate.IsZero() {
			errs.AddField("due_date", "is required")
		} else if req.DueDate.Before(boleto.IssueDate) {
			errs.AddField("due_date", "must not be before the issue date")
		} else {
			boleto.DueDate = req.DueDate.Time
			set("due_date", boleto.DueDate)
		}
	}
	if req.Category != nil {
		if !req.Category.IsValid() {
			errs.AddField("category", "is not a valid category")
		} else {
			boleto.Category = *req.Category
			set("category", boleto.Category)
		}
	}
	if req.PaymentChannel != nil {
		if !req.PaymentChannel.IsValid() {
			errs.AddField("payment_channel", "must be one of boleto, pix, cash, transfer")
		} else {
			boleto.PaymentChannel = *req.PaymentChannel
			set("payment_channel", boleto.PaymentChannel)
		}
	}

	if len(errs) == 0 && boleto.Total().IsNegative() {
		errs.AddField("discount_amount", "cannot exceed amount plus interest and fine")
	}
	if err := errs.Err(); err != nil {
		return nil, nil, err
	}

	if boleto.PixTxID != nil && !boleto.Total().Equal(previousTotal) {
		boleto.PixTxID = nil
		boleto.PixKey = ""
		boleto.PixQRCode = ""
		boleto.PixExpiresAt = nil
		set("pix_tx_id", nil)
		set("pix_key", "")
		set("pix_qr_code", "")
		set("pix_expires_at", nil)
	}
	return updates, changed, nil
}

// Cancel moves a pending or overdue boleto to cancelled.
func (s *BoletoService) Cancel(ctx context.Context, id, reason string) (*models.Boleto, error) {
	if !isID(id) {
		return nil, ErrBoletoNotFound
	}
	var cancelled *models.Boleto
	err := s.boletos.WithTransaction(ctx, func(txCtx context.Context) error {
		now := s.calendar.Now()
		rows, err := s.boletos.MarkCancelled(txCtx, id, now)
		if err != nil {
			return fmt.Errorf("failed to cancel boleto: %w", err)
		}

		boleto, err := s.boletos.GetByID(txCtx, id)
		if err != nil {
			if stores.IsNotFound(err) {
				return ErrBoletoNotFound
			}
			return fmt.Errorf("failed to load boleto: %w", err)
		}
		if rows == 0 {
			if boleto.Status == models.BoletoStatusPaid {
				return ErrCannotCancelPaid
			}
			return ErrBoletoCancelled
		}

		cancelled = boleto
		return s.audit.LogBoletoAction(txCtx, models.AuditActionCancel, id, map[string]interface{}{
			"reason": reason,
		})
	})
	if err != nil {
		return nil, err
	}

	monitoring.RecordBoletoCancelled()
	utils.Info(ctx, "boleto cancelled", map[string]interface{}{
		"boleto_id": cancelled.ID,
		"number":    cancelled.Number,
	})
	return cancelled, nil
}

// Stats is the collection report over the boletos matching filter.
func (s *BoletoService) Stats(ctx context.Context, filter models.BoletoFilter) (*analytics.CollectionReport, error) {
	boletos, err := s.ListAll(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list boletos: %w", err)
	}

	owners, _, err := s.users.List(ctx, models.UserFilter{Role: models.RoleOwner})
	if err != nil {
		return nil, fmt.Errorf("failed to list owners: %w", err)
	}
	if filter.OwnerID != "" {
		owners = filterOwners(owners, filter.OwnerID)
	}

	counts, err := s.tracker.OverdueCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count overdue boletos: %w", err)
	}

	return analytics.Summarize(boletos, owners, counts, s.calendar.Today()), nil
}

func filterOwners(owners []*models.User, id string) []*models.User {
	for _, o := range owners {
		if o.ID == id {
			return []*models.User{o}
		}
	}
	return nil
}

func (s *BoletoService) History(ctx context.Context, id string) ([]*models.AuditLog, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.audit.GetResourceHistory(ctx, models.AuditResourceBoleto, id, 0)
}
