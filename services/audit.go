package services

import (
	"context"

	"github.com/malwarebo/condopay/models"
	"github.com/malwarebo/condopay/stores"
	"github.com/malwarebo/condopay/utils"
)

type AuditService struct {
	store *stores.AuditStore
}

func CreateAuditService(store *stores.AuditStore) *AuditService {
	return &AuditService{store: store}
}

func (s *AuditService) LogAction(ctx context.Context, log *models.AuditLog) error {
	if log.UserID == "" {
		log.UserID = utils.GetUserID(ctx)
	}
	return s.store.Create(ctx, log)
}

// LogBoletoAction records a successful mutation of a boleto. Call it with the
// transaction context of the mutation so the entry commits or rolls back
// with it.
func (s *AuditService) LogBoletoAction(ctx context.Context, action models.AuditAction, boletoID string, metadata map[string]interface{}) error {
	return s.LogAction(ctx, &models.AuditLog{
		Action:       string(action),
		ResourceType: string(models.AuditResourceBoleto),
		ResourceID:   boletoID,
		Success:      true,
		Metadata:     metadata,
	})
}

func (s *AuditService) LogUserAction(ctx context.Context, action models.AuditAction, userID string, metadata map[string]interface{}) error {
	return s.LogAction(ctx, &models.AuditLog{
		Action:       string(action),
		ResourceType: string(models.AuditResourceUser),
		ResourceID:   userID,
		Success:      true,
		Metadata:     metadata,
	})
}

func (s *AuditService) LogWebhookEvent(ctx context.Context, provider, eventID string, success bool, errMsg string) error {
	return s.LogAction(ctx, &models.AuditLog{
		Action:       string(models.AuditActionWebhook),
		ResourceType: string(models.AuditResourceWebhook),
		ResourceID:   eventID,
		Success:      success,
		ErrorMessage: errMsg,
		Metadata: map[string]interface{}{
			"provider": provider,
		},
	})
}

func (s *AuditService) GetResourceHistory(ctx context.Context, resourceType models.AuditResourceType, resourceID string, limit int) ([]*models.AuditLog, error) {
	return s.store.ListByResource(ctx, string(resourceType), resourceID, limit)
}
