package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/morozovaek/go-social-backend/internal/service"
	"github.com/morozovaek/go-social-backend/internal/transport/http/httperr"
	"github.com/morozovaek/go-social-backend/internal/transport/http/middleware"
)

type updateProfileRequest struct {
	Username string `json:"username"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

func pathID(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	if raw == "" {
		return uuid.Nil, service.ErrInvalidArgument
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, service.ErrInvalidArgument
	}

	return id, nil
}

func (h *Handlers) GetProfile(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	actor := middleware.ActorFrom(r.Context())

	user, err := h.Service.ProfileByID(r.Context(), actor, id)
	if err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, user.View())
}

func (h *Handlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	var in updateProfileRequest
	if err := decodeStrict(r, &in); err != nil {
		httperr.WriteError(w, r, service.ErrInvalidArgument)
		return
	}

	actor := middleware.ActorFrom(r.Context())

	user, err := h.Service.UpdateProfile(r.Context(), actor, id, in.Username)
	if err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, user.View())
}

func (h *Handlers) ChangePassword(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	var in changePasswordRequest
	if err := decodeStrict(r, &in); err != nil {
		httperr.WriteError(w, r, service.ErrInvalidArgument)
		return
	}

	actor := middleware.ActorFrom(r.Context())

	if err := h.Service.ChangePassword(r.Context(), actor, id, in.OldPassword, in.NewPassword); err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	actor := middleware.ActorFrom(r.Context())

	if err := h.Service.SoftDeleteUser(r.Context(), actor, id); err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
