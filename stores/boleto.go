package stores

import (
	"context"
	"time"

	"github.com/malwarebo/condopay/models"
	"gorm.io/gorm"
)

type BoletoStore struct {
	BaseStore
}

func CreateBoletoStore(db *gorm.DB) *BoletoStore {
	return &BoletoStore{BaseStore: BaseStore{db: db}}
}

func (s *BoletoStore) Create(ctx context.Context, boleto *models.Boleto) error {
	return s.GetDB(ctx).Create(boleto).Error
}

func (s *BoletoStore) GetByID(ctx context.Context, id string) (*models.Boleto, error) {
	var boleto models.Boleto
	if err := s.GetDB(ctx).Preload("Owner").First(&boleto, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &boleto, nil
}

func (s *BoletoStore) GetByPixTxID(ctx context.Context, txid string) (*models.Boleto, error) {
	var boleto models.Boleto
	if err := s.GetDB(ctx).Preload("Owner").First(&boleto, "pix_tx_id = ?", txid).Error; err != nil {
		return nil, err
	}
	return &boleto, nil
}

// List applies filter with overdue translated into a due-date predicate
// relative to today. A zero Limit returns every match.
func (s *BoletoStore) List(ctx context.Context, filter models.BoletoFilter, today models.Date) ([]*models.Boleto, int64, error) {
	var boletos []*models.Boleto
	var total int64

	query := s.applyFilter(s.GetDB(ctx).Model(&models.Boleto{}), filter, today)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	if err := query.Preload("Owner").Order("due_date DESC, number DESC").Find(&boletos).Error; err != nil {
		return nil, 0, err
	}
	return boletos, total, nil
}

func (s *BoletoStore) applyFilter(query *gorm.DB, filter models.BoletoFilter, today models.Date) *gorm.DB {
	if filter.OwnerID != "" {
		query = query.Where("owner_id = ?", filter.OwnerID)
	}
	switch filter.Status {
	case "":
	case models.BoletoStatusOverdue:
		query = query.Where("status = ? AND due_date < ?", models.BoletoStatusPending, today.Time)
	case models.BoletoStatusPending:
		query = query.Where("status = ? AND due_date >= ?", models.BoletoStatusPending, today.Time)
	default:
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.DueFrom != nil {
		query = query.Where("due_date >= ?", filter.DueFrom.Time)
	}
	if filter.DueTo != nil {
		query = query.Where("due_date <= ?", filter.DueTo.Time)
	}
	if filter.HasPixTx {
		query = query.Where("pix_tx_id IS NOT NULL")
	}
	return query
}

// UpdateIfPending writes updates only while the persisted status is pending
// and reports how many rows changed.
func (s *BoletoStore) UpdateIfPending(ctx context.Context, id string, updates map[string]interface{}) (int64, error) {
	result := s.GetDB(ctx).Model(&models.Boleto{}).
		Where("id = ? AND status = ?", id, models.BoletoStatusPending).
		Updates(updates)
	return result.RowsAffected, result.Error
}

// MarkPaid is the compare-and-set pending -> paid.
func (s *BoletoStore) MarkPaid(ctx context.Context, id string, paidAt time.Time, channel models.PaymentChannel, proof string) (int64, error) {
	return s.UpdateIfPending(ctx, id, map[string]interface{}{
		"status":          models.BoletoStatusPaid,
		"paid_at":         paidAt,
		"payment_channel": channel,
		"payment_proof":   proof,
	})
}

// MarkCancelled is the compare-and-set pending -> cancelled.
func (s *BoletoStore) MarkCancelled(ctx context.Context, id string, cancelledAt time.Time) (int64, error) {
	return s.UpdateIfPending(ctx, id, map[string]interface{}{
		"status":       models.BoletoStatusCancelled,
		"cancelled_at": cancelledAt,
	})
}

func (s *BoletoStore) SetPixCharge(ctx context.Context, id string, charge *models.PixCharge) (int64, error) {
	return s.UpdateIfPending(ctx, id, map[string]interface{}{
		"pix_tx_id":      charge.TxID,
		"pix_key":        charge.PixKey,
		"pix_qr_code":    charge.QRCode,
		"pix_expires_at": charge.ExpiresAt,
	})
}

func (s *BoletoStore) CountOverdueByOwner(ctx context.Context, ownerID string, today models.Date) (int64, error) {
	var count int64
	err := s.GetDB(ctx).Model(&models.Boleto{}).
		Where("owner_id = ? AND status = ? AND due_date < ?", ownerID, models.BoletoStatusPending, today.Time).
		Count(&count).Error
	return count, err
}

type ownerCount struct {
	OwnerID string
	Count   int64
}

// OverdueCounts returns the overdue boleto count per owner, omitting owners
// with none.
func (s *BoletoStore) OverdueCounts(ctx context.Context, today models.Date) (map[string]int64, error) {
	var rows []ownerCount
	err := s.GetDB(ctx).Model(&models.Boleto{}).
		Select("owner_id, COUNT(*) AS count").
		Where("status = ? AND due_date < ?", models.BoletoStatusPending, today.Time).
		Group("owner_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.OwnerID] = row.Count
	}
	return counts, nil
}

// ListPendingWithPix returns pending boletos that carry a PIX charge, oldest
// due first.
func (s *BoletoStore) ListPendingWithPix(ctx context.Context, limit int) ([]*models.Boleto, error) {
	var boletos []*models.Boleto
	query := s.GetDB(ctx).
		Where("status = ? AND pix_tx_id IS NOT NULL", models.BoletoStatusPending).
		Order("due_date ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&boletos).Error; err != nil {
		return nil, err
	}
	return boletos, nil
}
