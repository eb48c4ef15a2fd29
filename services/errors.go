package services

import (
	"errors"

	"github.com/malwarebo/condopay/utils"
)

var (
	ErrBoletoNotFound   = errors.New("boleto not found")
	ErrBoletoPaid       = errors.New("boleto is already paid")
	ErrBoletoCancelled  = errors.New("boleto is cancelled")
	ErrCannotCancelPaid = errors.New("cannot cancel a paid boleto")
	ErrOwnerNotFound    = errors.New("owner not found")
	ErrNotAnOwner       = errors.New("user is not an owner")
	ErrUserNotFound     = errors.New("user not found")
	ErrEmailTaken       = errors.New("email is already registered")
	ErrInvalidPaidAt    = errors.New("payment date cannot be before the issue date")
	ErrPixTxNotFound    = errors.New("pix transaction not found")
	ErrPixTxMismatch    = errors.New("pix transaction does not belong to this boleto")
	ErrAmountMismatch   = errors.New("paid amount does not match the boleto total")
)

// isID reports whether id can name a row. Primary keys are UUID columns, and
// postgres rejects any other literal with an error instead of a miss.
func isID(id string) bool {
	return utils.ValidateUUID(id, "id") == nil
}
