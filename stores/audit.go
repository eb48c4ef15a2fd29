package stores

import (
	"context"

	"github.com/malwarebo/condopay/models"
	"gorm.io/gorm"
)

type AuditStore struct {
	BaseStore
}

func CreateAuditStore(db *gorm.DB) *AuditStore {
	return &AuditStore{BaseStore: BaseStore{db: db}}
}

func (s *AuditStore) Create(ctx context.Context, log *models.AuditLog) error {
	return s.GetDB(ctx).Create(log).Error
}

// ListByResource returns the trail of one resource in chronological order.
func (s *AuditStore) ListByResource(ctx context.Context, resourceType, resourceID string, limit int) ([]*models.AuditLog, error) {
	var logs []*models.AuditLog
	query := s.GetDB(ctx).
		Where("resource_type = ? AND resource_id = ?", resourceType, resourceID).
		Order("created_at ASC")

	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

