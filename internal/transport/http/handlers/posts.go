package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/morozovaek/go-social-backend/internal/models"
	"github.com/morozovaek/go-social-backend/internal/service"
	"github.com/morozovaek/go-social-backend/internal/transport/http/httperr"
	"github.com/morozovaek/go-social-backend/internal/transport/http/middleware"
)

type postRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type postView struct {
	ID        uuid.UUID `json:"id"`
	AuthorID  uuid.UUID `json:"author_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func postFrom(p *models.Post) postView {
	return postView{
		ID:        p.ID,
		AuthorID:  p.AuthorID,
		Title:     p.Title,
		Content:   p.Content,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func queryLimit(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}

	return n
}

func (h *Handlers) CreatePost(w http.ResponseWriter, r *http.Request) {
	var in postRequest
	if err := decodeStrict(r, &in); err != nil {
		httperr.WriteError(w, r, service.ErrInvalidArgument)
		return
	}

	actor := middleware.ActorFrom(r.Context())

	post, err := h.Service.CreatePost(r.Context(), actor, in.Title, in.Content)
	if err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, postFrom(post))
}

func (h *Handlers) GetPost(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	actor := middleware.ActorFrom(r.Context())

	post, err := h.Service.PostByID(r.Context(), actor, id)
	if err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, postFrom(post))
}

func (h *Handlers) ListPostsByAuthor(w http.ResponseWriter, r *http.Request) {
	authorID, err := pathID(r, "id")
	if err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	actor := middleware.ActorFrom(r.Context())

	posts, err := h.Service.PostsByAuthor(r.Context(), actor, authorID, queryLimit(r))
	if err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	views := make([]postView, 0, len(posts))
	for i := range posts {
		views = append(views, postFrom(&posts[i]))
	}

	writeJSON(w, http.StatusOK, views)
}

func (h *Handlers) UpdatePost(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	var in postRequest
	if err := decodeStrict(r, &in); err != nil {
		httperr.WriteError(w, r, service.ErrInvalidArgument)
		return
	}

	actor := middleware.ActorFrom(r.Context())

	post, err := h.Service.UpdatePost(r.Context(), actor, id, in.Title, in.Content)
	if err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, postFrom(post))
}

func (h *Handlers) DeletePost(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	actor := middleware.ActorFrom(r.Context())

	if err := h.Service.SoftDeletePost(r.Context(), actor, id); err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
