package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type WebhookEventStatus string

const (
	WebhookEventStatusPending    WebhookEventStatus = "pending"
	WebhookEventStatusProcessing WebhookEventStatus = "processing"
	WebhookEventStatusCompleted  WebhookEventStatus = "completed"
	WebhookEventStatusFailed     WebhookEventStatus = "failed"
)

const WebhookProviderPix = "pix"

// WebhookEvent is the ledger of inbound PIX notifications. EventID is unique
// per provider so a redelivered notification maps onto the same row.
type WebhookEvent struct {
	ID           string             `json:"id" gorm:"primaryKey;type:uuid"`
	Provider     string             `json:"provider" gorm:"not null;uniqueIndex:idx_webhook_provider_event"`
	EventType    string             `json:"event_type" gorm:"not null"`
	EventID      string             `json:"event_id" gorm:"not null;uniqueIndex:idx_webhook_provider_event"`
	Payload      JSON               `json:"payload" gorm:"type:jsonb;not null"`
	Status       WebhookEventStatus `json:"status" gorm:"not null;default:'pending'"`
	Attempts     int                `json:"attempts" gorm:"default:0"`
	ProcessedAt  *time.Time         `json:"processed_at"`
	ErrorMessage string             `json:"error_message"`
	CreatedAt    time.Time          `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time          `json:"updated_at" gorm:"autoUpdateTime"`
}

func (e *WebhookEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

type PixStatus string

const (
	PixStatusPaid    PixStatus = "PAID"
	PixStatusPending PixStatus = "PENDING"
	PixStatusExpired PixStatus = "EXPIRED"
)

func (s PixStatus) IsValid() bool {
	switch s {
	case PixStatusPaid, PixStatusPending, PixStatusExpired:
		return true
	}
	return false
}

// PixWebhookPayload is the body posted by the PIX provider (or the simulator)
// to /api/pix/webhook.
// PixWebhookPayload is a provider notification. Simulated marks
// notifications sent by the development simulator.
type PixWebhookPayload struct {
	TxID      string           `json:"txid"`
	Status    PixStatus        `json:"status"`
	Amount    *decimal.Decimal `json:"amount,omitempty"`
	PaidAt    *time.Time       `json:"paid_at,omitempty"`
	BoletoID  string           `json:"boleto_id,omitempty"`
	Simulated bool             `json:"simulated,omitempty"`
}

func (p *PixWebhookPayload) EventID() string {
	return p.TxID + ":" + string(p.Status)
}

func (p *PixWebhookPayload) ToJSON() JSON {
	out := JSON{
		"txid":   p.TxID,
		"status": string(p.Status),
	}
	if p.Amount != nil {
		out["amount"] = p.Amount.StringFixed(2)
	}
	if p.PaidAt != nil {
		out["paid_at"] = p.PaidAt.UTC().Format(time.RFC3339)
	}
	if p.BoletoID != "" {
		out["boleto_id"] = p.BoletoID
	}
	if p.Simulated {
		out["simulated"] = true
	}
	return out
}

type WebhookOutcome string

const (
	WebhookOutcomeProcessed WebhookOutcome = "processed"
	WebhookOutcomeDuplicate WebhookOutcome = "duplicate"
	WebhookOutcomeRecorded  WebhookOutcome = "recorded"
)

type PixWebhookResult struct {
	EventID string         `json:"event_id"`
	Outcome WebhookOutcome `json:"outcome"`
	Payment *PaymentResult `json:"payment,omitempty"`
}

// OutboundWebhook is the envelope used by the outbound sender.
type OutboundWebhook struct {
	ID        string                 `json:"id"`
	EventType string                 `json:"event_type"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
}
