package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type BoletoStatus string

const (
	BoletoStatusPending   BoletoStatus = "pending"
	BoletoStatusOverdue   BoletoStatus = "overdue"
	BoletoStatusPaid      BoletoStatus = "paid"
	BoletoStatusCancelled BoletoStatus = "cancelled"
)

func (s BoletoStatus) IsValid() bool {
	switch s {
	case BoletoStatusPending, BoletoStatusOverdue, BoletoStatusPaid, BoletoStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed.
func (s BoletoStatus) IsTerminal() bool {
	return s == BoletoStatusPaid || s == BoletoStatusCancelled
}

type PaymentChannel string

const (
	PaymentChannelBoleto   PaymentChannel = "boleto"
	PaymentChannelPix      PaymentChannel = "pix"
	PaymentChannelCash     PaymentChannel = "cash"
	PaymentChannelTransfer PaymentChannel = "transfer"
)

func (c PaymentChannel) IsValid() bool {
	switch c {
	case PaymentChannelBoleto, PaymentChannelPix, PaymentChannelCash, PaymentChannelTransfer:
		return true
	}
	return false
}

type BoletoCategory string

const (
	CategoryCondominiumFee BoletoCategory = "taxa_condominio"
	CategoryReserveFund    BoletoCategory = "fundo_reserva"
	CategoryExtraFee       BoletoCategory = "taxa_extra"
	CategoryPenalty        BoletoCategory = "multa"
	CategoryWater          BoletoCategory = "agua"
	CategoryGas            BoletoCategory = "gas"
	CategoryOther          BoletoCategory = "outros"
)

func (c BoletoCategory) IsValid() bool {
	switch c {
	case CategoryCondominiumFee, CategoryReserveFund, CategoryExtraFee,
		CategoryPenalty, CategoryWater, CategoryGas, CategoryOther:
		return true
	}
	return false
}

const (
	BoletoSequence      = "boleto"
	DocumentNumberWidth = 6
)

func FormatDocumentNumber(n int64) string {
	return fmt.Sprintf("%0*d", DocumentNumberWidth, n)
}

// Boleto persists only pending, paid and cancelled. Overdue is derived from
// the due date at read time and never written.
type Boleto struct {
	ID             string          `json:"id" gorm:"primaryKey;type:uuid"`
	Number         string          `json:"number" gorm:"uniqueIndex;size:20;not null"`
	OwnerID        string          `json:"owner_id" gorm:"type:uuid;not null;index"`
	Owner          *User           `json:"owner,omitempty" gorm:"foreignKey:OwnerID"`
	Description    string          `json:"description" gorm:"not null"`
	Category       BoletoCategory  `json:"category" gorm:"size:32;not null;index"`
	Notes          string          `json:"notes"`
	Amount         decimal.Decimal `json:"amount" gorm:"type:decimal(12,2);not null"`
	InterestAmount decimal.Decimal `json:"interest_amount" gorm:"type:decimal(12,2);not null;default:0"`
	FineAmount     decimal.Decimal `json:"fine_amount" gorm:"type:decimal(12,2);not null;default:0"`
	DiscountAmount decimal.Decimal `json:"discount_amount" gorm:"type:decimal(12,2);not null;default:0"`
	IssueDate      time.Time       `json:"issue_date" gorm:"not null"`
	DueDate        time.Time       `json:"due_date" gorm:"not null;index"`
	PaidAt         *time.Time      `json:"paid_at"`
	CancelledAt    *time.Time      `json:"cancelled_at"`
	Status         BoletoStatus    `json:"status" gorm:"size:16;not null;default:'pending';index"`
	PaymentChannel PaymentChannel  `json:"payment_channel" gorm:"size:16;not null;default:'boleto'"`
	PaymentProof   string          `json:"payment_proof"`
	PixTxID        *string         `json:"pix_txid" gorm:"uniqueIndex;size:35"`
	PixKey         string          `json:"pix_key"`
	PixQRCode      string          `json:"pix_qr_code" gorm:"type:text"`
	PixExpiresAt   *time.Time      `json:"pix_expires_at"`
	CreatedAt      time.Time       `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time       `json:"updated_at" gorm:"autoUpdateTime"`
}

func (b *Boleto) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

// Total is the payable amount: principal + interest + fine - discount.
func (b *Boleto) Total() decimal.Decimal {
	return b.Amount.Add(b.InterestAmount).Add(b.FineAmount).Sub(b.DiscountAmount)
}

// EffectiveStatus reports overdue for a pending boleto whose due date is
// strictly before today.
func (b *Boleto) EffectiveStatus(today Date) BoletoStatus {
	if b.Status == BoletoStatusPending && b.DueDate.Before(today.Time) {
		return BoletoStatusOverdue
	}
	return b.Status
}

func (b *Boleto) IsOverdue(today Date) bool {
	return b.EffectiveStatus(today) == BoletoStatusOverdue
}

// BoletoView is the read model handed to clients: derived status and total,
// money rounded to cents for display.
type BoletoView struct {
	ID             string         `json:"id"`
	Number         string         `json:"number"`
	OwnerID        string         `json:"owner_id"`
	OwnerName      string         `json:"owner_name,omitempty"`
	OwnerUnit      string         `json:"owner_unit,omitempty"`
	Description    string         `json:"description"`
	Category       BoletoCategory `json:"category"`
	Notes          string         `json:"notes,omitempty"`
	Amount         string         `json:"amount"`
	InterestAmount string         `json:"interest_amount"`
	FineAmount     string         `json:"fine_amount"`
	DiscountAmount string         `json:"discount_amount"`
	Total          string         `json:"total"`
	IssueDate      string         `json:"issue_date"`
	DueDate        string         `json:"due_date"`
	PaidAt         *time.Time     `json:"paid_at,omitempty"`
	CancelledAt    *time.Time     `json:"cancelled_at,omitempty"`
	Status         BoletoStatus   `json:"status"`
	PaymentChannel PaymentChannel `json:"payment_channel"`
	PaymentProof   string         `json:"payment_proof,omitempty"`
	PixTxID        string         `json:"pix_txid,omitempty"`
	PixKey         string         `json:"pix_key,omitempty"`
	PixQRCode      string         `json:"pix_qr_code,omitempty"`
	PixExpiresAt   *time.Time     `json:"pix_expires_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func (b *Boleto) View(today Date) BoletoView {
	view := BoletoView{
		ID:             b.ID,
		Number:         b.Number,
		OwnerID:        b.OwnerID,
		Description:    b.Description,
		Category:       b.Category,
		Notes:          b.Notes,
		Amount:         b.Amount.StringFixed(2),
		InterestAmount: b.InterestAmount.StringFixed(2),
		FineAmount:     b.FineAmount.StringFixed(2),
		DiscountAmount: b.DiscountAmount.StringFixed(2),
		Total:          b.Total().StringFixed(2),
		IssueDate:      b.IssueDate.UTC().Format(DateLayout),
		DueDate:        b.DueDate.UTC().Format(DateLayout),
		PaidAt:         b.PaidAt,
		CancelledAt:    b.CancelledAt,
		Status:         b.EffectiveStatus(today),
		PaymentChannel: b.PaymentChannel,
		PaymentProof:   b.PaymentProof,
		PixKey:         b.PixKey,
		PixQRCode:      b.PixQRCode,
		PixExpiresAt:   b.PixExpiresAt,
		CreatedAt:      b.CreatedAt,
		UpdatedAt:      b.UpdatedAt,
	}
	if b.PixTxID != nil {
		view.PixTxID = *b.PixTxID
	}
	if b.Owner != nil {
		view.OwnerName = b.Owner.Name
		view.OwnerUnit = b.Owner.Unit
	}
	return view
}

func ViewBoletos(boletos []*Boleto, today Date) []BoletoView {
	views := make([]BoletoView, 0, len(boletos))
	for _, b := range boletos {
		views = append(views, b.View(today))
	}
	return views
}

type CreateBoletoRequest struct {
	OwnerID        string           `json:"owner_id"`
	Description    string           `json:"description"`
	Amount         *decimal.Decimal `json:"amount"`
	InterestAmount *decimal.Decimal `json:"interest_amount,omitempty"`
	FineAmount     *decimal.Decimal `json:"fine_amount,omitempty"`
	DiscountAmount *decimal.Decimal `json:"discount_amount,omitempty"`
	IssueDate      *Date            `json:"issue_date,omitempty"`
	DueDate        *Date            `json:"due_date"`
	Category       BoletoCategory   `json:"category"`
	Notes          string           `json:"notes,omitempty"`
	PaymentChannel PaymentChannel   `json:"payment_channel,omitempty"`
}

type BulkCreateBoletoRequest struct {
	OwnerIDs       []string         `json:"owner_ids"`
	Description    string           `json:"description"`
	Amount         *decimal.Decimal `json:"amount"`
	InterestAmount *decimal.Decimal `json:"interest_amount,omitempty"`
	FineAmount     *decimal.Decimal `json:"fine_amount,omitempty"`
	DiscountAmount *decimal.Decimal `json:"discount_amount,omitempty"`
	IssueDate      *Date            `json:"issue_date,omitempty"`
	DueDate        *Date            `json:"due_date"`
	Category       BoletoCategory   `json:"category"`
	Notes          string           `json:"notes,omitempty"`
	PaymentChannel PaymentChannel   `json:"payment_channel,omitempty"`
}

// ForOwner expands the shared bulk fields into a single create request.
func (r *BulkCreateBoletoRequest) ForOwner(ownerID string) *CreateBoletoRequest {
	return &CreateBoletoRequest{
		OwnerID:        ownerID,
		Description:    r.Description,
		Amount:         r.Amount,
		InterestAmount: r.InterestAmount,
		FineAmount:     r.FineAmount,
		DiscountAmount: r.DiscountAmount,
		IssueDate:      r.IssueDate,
		DueDate:        r.DueDate,
		Category:       r.Category,
		Notes:          r.Notes,
		PaymentChannel: r.PaymentChannel,
	}
}

type BulkCreateError struct {
	OwnerID string `json:"owner_id"`
	Message string `json:"message"`
}

type BulkCreateResult struct {
	Created int               `json:"created"`
	Boletos []*Boleto         `json:"-"`
	Errors  []BulkCreateError `json:"errors"`
}

type UpdateBoletoRequest struct {
	Description    *string          `json:"description,omitempty"`
	Amount         *decimal.Decimal `json:"amount,omitempty"`
	InterestAmount *decimal.Decimal `json:"interest_amount,omitempty"`
	FineAmount     *decimal.Decimal `json:"fine_amount,omitempty"`
	DiscountAmount *decimal.Decimal `json:"discount_amount,omitempty"`
	DueDate        *Date            `json:"due_date,omitempty"`
	Category       *BoletoCategory  `json:"category,omitempty"`
	Notes          *string          `json:"notes,omitempty"`
	PaymentChannel *PaymentChannel  `json:"payment_channel,omitempty"`
}

// PayBoletoRequest accepts payment_date as YYYY-MM-DD or RFC3339.
type PayBoletoRequest struct {
	PaymentDate    string         `json:"payment_date,omitempty"`
	PaymentChannel PaymentChannel `json:"payment_channel"`
	PaymentProof   string         `json:"payment_proof,omitempty"`
}

type CancelBoletoRequest struct {
	Reason string `json:"reason,omitempty"`
}

type BoletoFilter struct {
	OwnerID  string
	Status   BoletoStatus
	Category BoletoCategory
	DueFrom  *Date
	DueTo    *Date
	HasPixTx bool
	Limit    int
	Offset   int
}

type BoletoListResponse struct {
	Boletos []BoletoView `json:"boletos"`
	Total   int64        `json:"total"`
}

type BulkCreateResponse struct {
	Created int               `json:"created"`
	Boletos []BoletoView      `json:"boletos"`
	Errors  []BulkCreateError `json:"errors"`
}
