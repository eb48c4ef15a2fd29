package api

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/malwarebo/condopay/analytics"
	"github.com/malwarebo/condopay/models"
	"github.com/malwarebo/condopay/services"
	"github.com/malwarebo/condopay/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type BoletoHandler struct {
	boletoService  *services.BoletoService
	paymentService *services.PaymentService
	payee          analytics.SlipPayee
}

func CreateBoletoHandler(boletoService *services.BoletoService, paymentService *services.PaymentService, payee analytics.SlipPayee) *BoletoHandler {
	return &BoletoHandler{
		boletoService:  boletoService,
		paymentService: paymentService,
		payee:          payee,
	}
}

func (h *BoletoHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req models.CreateBoletoRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	boleto, err := h.boletoService.Create(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, boleto.View(h.boletoService.Today()))
}

func (h *BoletoHandler) HandleBulkCreate(w http.ResponseWriter, r *http.Request) {
	var req models.BulkCreateBoletoRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.boletoService.BulkCreate(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, models.BulkCreateResponse{
		Created: result.Created,
		Boletos: models.ViewBoletos(result.Boletos, h.boletoService.Today()),
		Errors:  result.Errors,
	})
}

func (h *BoletoHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	filter, err := parseBoletoFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if p := principal(r); p != nil && !p.IsAdmin() {
		filter.OwnerID = p.UserID
	}

	boletos, total, err := h.boletoService.List(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, models.BoletoListResponse{
		Boletos: models.ViewBoletos(boletos, h.boletoService.Today()),
		Total:   total,
	})
}

func (h *BoletoHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	filter, err := parseBoletoFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	report, err := h.boletoService.Stats(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

func (h *BoletoHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	filter, err := parseBoletoFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	boletos, err := h.boletoService.ListAll(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}

	today := h.boletoService.Today()
	var buf bytes.Buffer
	if err := analytics.WriteBoletosXLSX(&buf, models.ViewBoletos(boletos, today)); err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="boletos-%s.xlsx"`, today))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (h *BoletoHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	boleto, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, boleto.View(h.boletoService.Today()))
}

func (h *BoletoHandler) HandleSlip(w http.ResponseWriter, r *http.Request) {
	boleto, ok := h.load(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := analytics.WriteSlip(&buf, boleto.View(h.boletoService.Today()), h.payee); err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="boleto-%s.pdf"`, boleto.Number))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// load fetches the boleto in the path and hides boletos the caller may not
// see behind a 404.
func (h *BoletoHandler) load(w http.ResponseWriter, r *http.Request) (*models.Boleto, bool) {
	boleto, err := h.boletoService.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	if !canSee(principal(r), boleto.OwnerID) {
		writeError(w, r, services.ErrBoletoNotFound)
		return nil, false
	}
	return boleto, true
}

func (h *BoletoHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	logs, err := h.boletoService.History(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func (h *BoletoHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateBoletoRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	boleto, err := h.boletoService.Update(r.Context(), mux.Vars(r)["id"], &req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, boleto.View(h.boletoService.Today()))
}

func (h *BoletoHandler) HandlePay(w http.ResponseWriter, r *http.Request) {
	var req models.PayBoletoRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}

	paidAt, paidOn, err := parsePaymentDate(req.PaymentDate)
	if err != nil {
		writeError(w, r, err)
		return
	}

	confirmation := models.PaymentConfirmation{
		BoletoID: mux.Vars(r)["id"],
		PaidAt:   paidAt,
		PaidOn:   paidOn,
		Channel:  req.PaymentChannel,
		Proof:    req.PaymentProof,
		Source:   models.PaymentSourceManual,
	}
	if p := principal(r); p != nil {
		confirmation.ActorID = p.UserID
	}

	result, err := h.paymentService.ConfirmPayment(r.Context(), confirmation)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *BoletoHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	var req models.CancelBoletoRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}

	boleto, err := h.boletoService.Cancel(r.Context(), mux.Vars(r)["id"], req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, boleto.View(h.boletoService.Today()))
}

// parsePaymentDate accepts an RFC 3339 instant or a plain calendar date.
// Empty means now.
func parsePaymentDate(s string) (*time.Time, *models.Date, error) {
	if s == "" {
		return nil, nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil, nil
	}
	d, err := models.ParseDate(s)
	if err != nil {
		return nil, nil, utils.ValidationErrors{{Field: "payment_date", Message: "must be YYYY-MM-DD or RFC 3339"}}
	}
	return nil, &d, nil
}

func parseBoletoFilter(r *http.Request) (models.BoletoFilter, error) {
	q := r.URL.Query()
	limit, offset := pagination(r)
	filter := models.BoletoFilter{
		OwnerID:  q.Get("owner_id"),
		Status:   models.BoletoStatus(q.Get("status")),
		Category: models.BoletoCategory(q.Get("category")),
		Limit:    limit,
		Offset:   offset,
	}

	var errs utils.ValidationErrors
	if filter.OwnerID != "" {
		errs.Add(utils.ValidateUUID(filter.OwnerID, "owner_id"))
	}
	for _, f := range []struct {
		name   string
		target **models.Date
	}{
		{"due_from", &filter.DueFrom},
		{"due_to", &filter.DueTo},
	} {
		raw := q.Get(f.name)
		if raw == "" {
			continue
		}
		d, err := models.ParseDate(raw)
		if err != nil {
			errs.AddField(f.name, "must be a date in YYYY-MM-DD format")
			continue
		}
		*f.target = &d
	}
	return filter, errs.Err()
}
