package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/malwarebo/condopay/models"
	"github.com/malwarebo/condopay/services"
	"github.com/malwarebo/condopay/utils"
)

type UserHandler struct {
	userService *services.UserService
}

func CreateUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

func (h *UserHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req models.CreateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.userService.Create(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset := pagination(r)
	filter := models.UserFilter{
		Role:      models.Role(q.Get("role")),
		Situation: models.Situation(q.Get("situation")),
		Limit:     limit,
		Offset:    offset,
	}
	if filter.Role != "" && !filter.Role.IsValid() {
		writeError(w, r, utils.ValidationErrors{{Field: "role", Message: "must be admin or owner"}})
		return
	}

	users, total, err := h.userService.List(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, models.UserListResponse{Users: users, Total: total})
}

// HandleGet serves admins and the user themself.
func (h *UserHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if p := principal(r); p == nil || (!p.IsAdmin() && p.UserID != id) {
		writeError(w, r, services.ErrUserNotFound)
		return
	}

	user, err := h.userService.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.userService.Update(r.Context(), mux.Vars(r)["id"], &req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}
