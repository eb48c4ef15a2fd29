package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type IdempotencyKey struct {
	ID           string     `json:"id" gorm:"primaryKey;type:uuid"`
	Key          string     `json:"key" gorm:"not null;uniqueIndex:idx_idempotency_key_path"`
	RequestPath  string     `json:"request_path" gorm:"not null;uniqueIndex:idx_idempotency_key_path"`
	RequestHash  string     `json:"request_hash" gorm:"not null"`
	ResponseCode *int       `json:"response_code"`
	ResponseBody string     `json:"response_body" gorm:"type:text"`
	LockedAt     *time.Time `json:"locked_at"`
	CompletedAt  *time.Time `json:"completed_at"`
	ExpiresAt    time.Time  `json:"expires_at" gorm:"not null"`
	CreatedAt    time.Time  `json:"created_at" gorm:"autoCreateTime"`
}

func (k *IdempotencyKey) BeforeCreate(tx *gorm.DB) error {
	if k.ID == "" {
		k.ID = uuid.NewString()
	}
	return nil
}

type IdempotencyResult struct {
	IsNew        bool
	Key          *IdempotencyKey
	ResponseCode int
	ResponseBody []byte
}
