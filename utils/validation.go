package utils

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

var (
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	uuidRegex  = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
)

// MaxMoney bounds any single money field, matching a decimal(12,2) column.
var MaxMoney = decimal.New(9999999999, 0)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	var messages []string
	for _, err := range ve {
		messages = append(messages, fmt.Sprintf("%s: %s", err.Field, err.Message))
	}
	return strings.Join(messages, "; ")
}

// Add appends err when it is non-nil.
func (ve *ValidationErrors) Add(err *ValidationError) {
	if err != nil {
		*ve = append(*ve, *err)
	}
}

func (ve *ValidationErrors) AddField(field, message string) {
	*ve = append(*ve, ValidationError{Field: field, Message: message})
}

// Err returns nil when no errors were collected.
func (ve ValidationErrors) Err() error {
	if len(ve) == 0 {
		return nil
	}
	return ve
}

func ValidateString(value, fieldName string, minLen, maxLen int, required bool) *ValidationError {
	if required && strings.TrimSpace(value) == "" {
		return &ValidationError{Field: fieldName, Message: "is required"}
	}

	if value != "" {
		if utf8.RuneCountInString(value) < minLen {
			return &ValidationError{Field: fieldName, Message: fmt.Sprintf("must be at least %d characters", minLen)}
		}
		if utf8.RuneCountInString(value) > maxLen {
			return &ValidationError{Field: fieldName, Message: fmt.Sprintf("must be at most %d characters", maxLen)}
		}
	}

	return nil
}

// ValidateMoney checks a non-negative amount with at most two decimal places.
func ValidateMoney(amount decimal.Decimal, fieldName string) *ValidationError {
	if amount.IsNegative() {
		return &ValidationError{Field: fieldName, Message: "must be greater than or equal to 0"}
	}
	if amount.GreaterThan(MaxMoney) {
		return &ValidationError{Field: fieldName, Message: "is too large"}
	}
	if !amount.Equal(amount.Round(2)) {
		return &ValidationError{Field: fieldName, Message: "must have at most 2 decimal places"}
	}
	return nil
}

func ValidateEmail(email, fieldName string) *ValidationError {
	if email == "" {
		return &ValidationError{Field: fieldName, Message: "is required"}
	}
	if !emailRegex.MatchString(email) {
		return &ValidationError{Field: fieldName, Message: "is not a valid email address"}
	}
	return nil
}

func ValidateUUID(id, fieldName string) *ValidationError {
	if id == "" {
		return &ValidationError{Field: fieldName, Message: "is required"}
	}
	if !uuidRegex.MatchString(strings.ToLower(id)) {
		return &ValidationError{Field: fieldName, Message: "is not a valid UUID"}
	}
	return nil
}

func ValidateRequestSize(r *http.Request, maxSize int64) error {
	if r.ContentLength > maxSize {
		return &APIError{
			Code:    http.StatusRequestEntityTooLarge,
			Message: "Request body too large",
		}
	}
	return nil
}
