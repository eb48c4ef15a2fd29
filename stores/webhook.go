package stores

import (
	"context"
	"time"

	"github.com/malwarebo/condopay/models"
	"gorm.io/gorm"
)

type WebhookStore struct {
	BaseStore
}

func CreateWebhookStore(db *gorm.DB) *WebhookStore {
	return &WebhookStore{BaseStore: BaseStore{db: db}}
}

func (s *WebhookStore) Create(ctx context.Context, event *models.WebhookEvent) error {
	return s.GetDB(ctx).Create(event).Error
}

func (s *WebhookStore) GetByEventID(ctx context.Context, provider, eventID string) (*models.WebhookEvent, error) {
	var event models.WebhookEvent
	if err := s.GetDB(ctx).Where("provider = ? AND event_id = ?", provider, eventID).First(&event).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

// Record inserts the event or, when the provider already delivered the same
// event id, returns the stored row instead.
func (s *WebhookStore) Record(ctx context.Context, event *models.WebhookEvent) (*models.WebhookEvent, bool, error) {
	existing, err := s.GetByEventID(ctx, event.Provider, event.EventID)
	if err == nil {
		return existing, false, nil
	}
	if !IsNotFound(err) {
		return nil, false, err
	}

	if err := s.Create(ctx, event); err != nil {
		if IsDuplicate(err) {
			existing, getErr := s.GetByEventID(ctx, event.Provider, event.EventID)
			if getErr != nil {
				return nil, false, getErr
			}
			return existing, false, nil
		}
		return nil, false, err
	}
	return event, true, nil
}

func (s *WebhookStore) MarkProcessing(ctx context.Context, id string) error {
	return s.GetDB(ctx).Model(&models.WebhookEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":   models.WebhookEventStatusProcessing,
			"attempts": gorm.Expr("attempts + 1"),
		}).Error
}

func (s *WebhookStore) MarkCompleted(ctx context.Context, id string) error {
	now := time.Now().UTC()
	return s.GetDB(ctx).Model(&models.WebhookEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        models.WebhookEventStatusCompleted,
			"processed_at":  now,
			"error_message": "",
		}).Error
}

func (s *WebhookStore) MarkFailed(ctx context.Context, id string, errMsg string) error {
	return s.GetDB(ctx).Model(&models.WebhookEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        models.WebhookEventStatusFailed,
			"error_message": errMsg,
		}).Error
}

func (s *WebhookStore) ListByProvider(ctx context.Context, provider string, status *models.WebhookEventStatus, limit, offset int) ([]*models.WebhookEvent, error) {
	var events []*models.WebhookEvent
	query := s.GetDB(ctx).Where("provider = ?", provider)

	if status != nil {
		query = query.Where("status = ?", *status)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	if err := query.Order("created_at DESC").Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (s *WebhookStore) CleanupOld(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	result := s.GetDB(ctx).
		Where("created_at < ? AND status = ?", cutoff, models.WebhookEventStatusCompleted).
		Delete(&models.WebhookEvent{})
	return result.RowsAffected, result.Error
}
