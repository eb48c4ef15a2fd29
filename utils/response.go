package utils

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
)

// Envelope is the shape of every JSON response body.
type Envelope struct {
	Success bool              `json:"success"`
	Data    interface{}       `json:"data,omitempty"`
	Message string            `json:"message,omitempty"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		Error(context.Background(), "failed to encode response", map[string]interface{}{"error": err.Error()})
	}
}

func WriteSuccess(w http.ResponseWriter, status int, data interface{}) {
	WriteJSON(w, status, Envelope{Success: true, Data: data})
}

// WriteError renders APIError and ValidationErrors with their own status and
// anything else as a 500 without leaking the cause.
func WriteError(w http.ResponseWriter, err error) {
	var verrs ValidationErrors
	if errors.As(err, &verrs) {
		WriteJSON(w, http.StatusBadRequest, Envelope{Message: "Validation failed", Errors: verrs})
		return
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		message := apiErr.Message
		if apiErr.Details != "" {
			message += ": " + apiErr.Details
		}
		WriteJSON(w, apiErr.Code, Envelope{Message: message})
		return
	}

	WriteJSON(w, http.StatusInternalServerError, Envelope{Message: ErrInternalServer.Message})
}
