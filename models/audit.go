package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AuditLog struct {
	ID           string    `json:"id" gorm:"primaryKey;type:uuid"`
	UserID       string    `json:"user_id" gorm:"index"`
	Action       string    `json:"action" gorm:"not null;index"`
	ResourceType string    `json:"resource_type" gorm:"not null"`
	ResourceID   string    `json:"resource_id" gorm:"index"`
	IPAddress    string    `json:"ip_address"`
	Success      bool      `json:"success" gorm:"not null"`
	ErrorMessage string    `json:"error_message,omitempty"`
	Metadata     JSON      `json:"metadata" gorm:"type:jsonb"`
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

type AuditAction string

const (
	AuditActionCreate      AuditAction = "create"
	AuditActionUpdate      AuditAction = "update"
	AuditActionPay         AuditAction = "pay"
	AuditActionCancel      AuditAction = "cancel"
	AuditActionPixGenerate AuditAction = "pix_generate"
	AuditActionWebhook     AuditAction = "webhook"
)

type AuditResourceType string

const (
	AuditResourceBoleto  AuditResourceType = "boleto"
	AuditResourceUser    AuditResourceType = "user"
	AuditResourceWebhook AuditResourceType = "webhook"
)
