package models

import "time"

type PaymentSource string

const (
	PaymentSourceManual    PaymentSource = "manual"
	PaymentSourceWebhook   PaymentSource = "webhook"
	PaymentSourceSimulator PaymentSource = "simulator"
)

// PaymentConfirmation is the single entry point for marking a boleto paid,
// whether from an administrator or a PIX notification. PaidAt is an instant;
// PaidOn is a calendar date in the billing zone. With neither, the payment is
// dated now. ActorID is the user recorded on the audit entry; empty falls
// back to the user in the context.
type PaymentConfirmation struct {
	BoletoID string
	PaidAt   *time.Time
	PaidOn   *Date
	Channel  PaymentChannel
	Proof    string
	Source   PaymentSource
	ActorID  string
}

type PaymentOutcome string

const (
	PaymentOutcomePaid        PaymentOutcome = "paid"
	PaymentOutcomeAlreadyPaid PaymentOutcome = "already_paid"
)

type PaymentResult struct {
	Boleto         *Boleto        `json:"-"`
	View           *BoletoView    `json:"boleto,omitempty"`
	Outcome        PaymentOutcome `json:"outcome"`
	OwnerSituation Situation      `json:"owner_situation"`
}

type PixCharge struct {
	BoletoID  string    `json:"boleto_id"`
	TxID      string    `json:"txid"`
	PixKey    string    `json:"pix_key"`
	QRCode    string    `json:"qr_code"`
	Amount    string    `json:"amount"`
	ExpiresAt time.Time `json:"expires_at"`
}

type GeneratePixRequest struct {
	BoletoID string `json:"boleto_id"`
}
