package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/malwarebo/condopay/middleware"
	"github.com/malwarebo/condopay/models"
	"github.com/malwarebo/condopay/services"
	"github.com/malwarebo/condopay/simulator"
	"github.com/malwarebo/condopay/utils"
)

const maxBodyBytes = 1 << 20

type MessageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	utils.WriteSuccess(w, status, v)
}

var notFoundErrors = []error{
	services.ErrBoletoNotFound,
	services.ErrOwnerNotFound,
	services.ErrUserNotFound,
	services.ErrPixTxNotFound,
	simulator.ErrBoletoNotFound,
}

var badRequestErrors = []error{
	services.ErrBoletoPaid,
	services.ErrBoletoCancelled,
	services.ErrCannotCancelPaid,
	services.ErrNotAnOwner,
	services.ErrEmailTaken,
	services.ErrInvalidPaidAt,
	services.ErrPixTxMismatch,
	services.ErrAmountMismatch,
	simulator.ErrNotPending,
	simulator.ErrNoPixCharge,
}

// writeError maps domain errors to status codes. Unknown errors are logged
// and reported as 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	for _, target := range notFoundErrors {
		if errors.Is(err, target) {
			utils.WriteError(w, utils.NewAPIError(http.StatusNotFound, err.Error()))
			return
		}
	}
	for _, target := range badRequestErrors {
		if errors.Is(err, target) {
			utils.WriteError(w, utils.NewAPIError(http.StatusBadRequest, err.Error()))
			return
		}
	}

	var verrs utils.ValidationErrors
	var apiErr *utils.APIError
	if errors.As(err, &verrs) || errors.As(err, &apiErr) {
		utils.WriteError(w, err)
		return
	}

	utils.Error(r.Context(), "request failed", map[string]interface{}{
		"method": r.Method,
		"path":   r.URL.Path,
		"error":  err.Error(),
	})
	utils.WriteError(w, err)
}

func decodeJSON(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return utils.NewAPIErrorWithDetails(http.StatusBadRequest, "Invalid request body", "body is empty")
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return utils.NewAPIErrorWithDetails(http.StatusBadRequest, "Invalid request body", err.Error())
	}
	return nil
}

func pagination(r *http.Request) (limit, offset int) {
	q := r.URL.Query()
	if v, err := strconv.Atoi(q.Get("limit")); err == nil {
		limit = v
	}
	if v, err := strconv.Atoi(q.Get("offset")); err == nil && v > 0 {
		offset = v
	}
	return services.ClampLimit(limit), offset
}

func principal(r *http.Request) *middleware.Principal {
	p, _ := middleware.PrincipalFrom(r.Context())
	return p
}

// canSee reports whether the caller may read a boleto owned by ownerID.
func canSee(p *middleware.Principal, ownerID string) bool {
	if p == nil {
		return false
	}
	return p.IsAdmin() || (p.Role == models.RoleOwner && p.UserID == ownerID)
}
