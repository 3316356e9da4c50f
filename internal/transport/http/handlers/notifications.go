package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/morozovaek/go-social-backend/internal/models"
	"github.com/morozovaek/go-social-backend/internal/service"
	"github.com/morozovaek/go-social-backend/internal/transport/http/httperr"
	"github.com/morozovaek/go-social-backend/internal/transport/http/middleware"
)

type createNotificationRequest struct {
	UserID uuid.UUID `json:"user_id"`
	Title  string    `json:"title"`
	Body   string    `json:"body"`
}

type notificationView struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func notificationFrom(n *models.Notification) notificationView {
	return notificationView{
		ID:        n.ID,
		UserID:    n.UserID,
		Title:     n.Title,
		Body:      n.Body,
		ReadAt:    n.ReadAt,
		CreatedAt: n.CreatedAt,
	}
}

func (h *Handlers) CreateNotification(w http.ResponseWriter, r *http.Request) {
	var in createNotificationRequest
	if err := decodeStrict(r, &in); err != nil {
		httperr.WriteError(w, r, service.ErrInvalidArgument)
		return
	}

	actor := middleware.ActorFrom(r.Context())

	n, err := h.Service.CreateNotification(r.Context(), actor, in.UserID, in.Title, in.Body)
	if err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, notificationFrom(n))
}

func (h *Handlers) ListMyNotifications(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFrom(r.Context())

	list, err := h.Service.NotificationsForUser(r.Context(), actor, actor.ID, queryLimit(r))
	if err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	views := make([]notificationView, 0, len(list))
	for i := range list {
		views = append(views, notificationFrom(&list[i]))
	}

	writeJSON(w, http.StatusOK, views)
}

func (h *Handlers) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	actor := middleware.ActorFrom(r.Context())

	if err := h.Service.MarkNotificationRead(r.Context(), actor, id); err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
