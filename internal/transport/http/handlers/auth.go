package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/morozovaek/go-social-backend/internal/models"
	"github.com/morozovaek/go-social-backend/internal/service"
	"github.com/morozovaek/go-social-backend/internal/transport/http/httperr"
)

type signUpRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type sessionResponse struct {
	AccessToken     string             `json:"access_token"`
	RefreshToken    string             `json:"refresh_token"`
	AccessExpiresAt time.Time          `json:"access_expires_at"`
	User            models.SubjectView `json:"user"`
}

type resetInitRequest struct {
	Email string `json:"email"`
}

type resetInitResponse struct {
	FlowID uuid.UUID `json:"flow_id"`
}

type resetVerifyRequest struct {
	FlowID uuid.UUID `json:"flow_id"`
	OTP    string    `json:"otp"`
}

type resetVerifyResponse struct {
	ResetToken string `json:"reset_token"`
}

type resetConfirmRequest struct {
	ResetToken  string `json:"reset_token"`
	NewPassword string `json:"new_password"`
}

func sessionFrom(pair *models.TokenPair, user *models.User) sessionResponse {
	return sessionResponse{
		AccessToken:     pair.AccessToken,
		RefreshToken:    pair.RefreshToken,
		AccessExpiresAt: pair.AccessExpiresAt,
		User:            user.View(),
	}
}

func (h *Handlers) SignUp(w http.ResponseWriter, r *http.Request) {
	var in signUpRequest
	if err := decodeStrict(r, &in); err != nil {
		httperr.WriteError(w, r, service.ErrInvalidArgument)
		return
	}

	pair, user, err := h.Service.RegisterUser(r.Context(), models.OwnerUser, in.Email, in.Username, in.Password)
	if err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, sessionFrom(pair, user))
}

func (h *Handlers) SignIn(w http.ResponseWriter, r *http.Request) {
	var in signInRequest
	if err := decodeStrict(r, &in); err != nil {
		httperr.WriteError(w, r, service.ErrInvalidArgument)
		return
	}

	pair, user, err := h.Service.SignIn(r.Context(), models.OwnerUser, in.Email, in.Password)
	if err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionFrom(pair, user))
}

func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	var in refreshRequest
	if err := decodeStrict(r, &in); err != nil {
		httperr.WriteError(w, r, service.ErrInvalidArgument)
		return
	}

	pair, user, err := h.Service.Refresh(r.Context(), in.RefreshToken)
	if err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionFrom(pair, user))
}

func (h *Handlers) SignOut(w http.ResponseWriter, r *http.Request) {
	var in refreshRequest
	if err := decodeStrict(r, &in); err != nil {
		httperr.WriteError(w, r, service.ErrInvalidArgument)
		return
	}

	if err := h.Service.SignOut(r.Context(), in.RefreshToken); err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) ResetInit(w http.ResponseWriter, r *http.Request) {
	var in resetInitRequest
	if err := decodeStrict(r, &in); err != nil {
		httperr.WriteError(w, r, service.ErrInvalidArgument)
		return
	}

	flowID, err := h.Service.ResetInit(r.Context(), models.OwnerUser, in.Email)
	if err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, resetInitResponse{FlowID: flowID})
}

func (h *Handlers) ResetVerify(w http.ResponseWriter, r *http.Request) {
	var in resetVerifyRequest
	if err := decodeStrict(r, &in); err != nil {
		httperr.WriteError(w, r, service.ErrInvalidArgument)
		return
	}

	resetToken, err := h.Service.ResetVerify(r.Context(), in.FlowID, in.OTP)
	if err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resetVerifyResponse{ResetToken: resetToken})
}

func (h *Handlers) ResetConfirm(w http.ResponseWriter, r *http.Request) {
	var in resetConfirmRequest
	if err := decodeStrict(r, &in); err != nil {
		httperr.WriteError(w, r, service.ErrInvalidArgument)
		return
	}

	if err := h.Service.ResetConfirm(r.Context(), in.ResetToken, in.NewPassword); err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
