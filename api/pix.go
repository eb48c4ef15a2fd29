package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/malwarebo/condopay/models"
	"github.com/malwarebo/condopay/services"
	"github.com/malwarebo/condopay/simulator"
	"github.com/malwarebo/condopay/utils"
)

type PixHandler struct {
	pixService *services.PixService
	simulator  *simulator.Simulator
}

// CreatePixHandler takes a nil simulator when simulation is disabled.
func CreatePixHandler(pixService *services.PixService, sim *simulator.Simulator) *PixHandler {
	return &PixHandler{
		pixService: pixService,
		simulator:  sim,
	}
}

func (h *PixHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	var req models.GeneratePixRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	charge, err := h.pixService.Generate(r.Context(), req.BoletoID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, charge)
}

// HandleWebhook runs behind the signature middleware. Duplicate notifications
// answer 200 so the sender stops retrying.
func (h *PixHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	var payload models.PixWebhookPayload
	if err := decodeJSON(r, &payload); err != nil {
		utils.WriteError(w, utils.ErrWebhookInvalidPayload)
		return
	}

	result, err := h.pixService.HandleWebhook(r.Context(), &payload)
	if err != nil {
		if services.IsClientError(err) {
			utils.Warn(r.Context(), "pix webhook rejected", map[string]interface{}{
				"txid":  payload.TxID,
				"error": err.Error(),
			})
		}
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *PixHandler) HandleSimulatePayment(w http.ResponseWriter, r *http.Request) {
	if h.simulator == nil {
		writeError(w, r, utils.ErrNotFound)
		return
	}

	payload, err := h.simulator.SimulatePayment(r.Context(), mux.Vars(r)["boletoId"])
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, payload)
}
