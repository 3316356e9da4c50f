package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/morozovaek/go-social-backend/internal/models"
	"github.com/morozovaek/go-social-backend/internal/storage"
)

const defaultPostsLimit = 50

// CreatePost создаёт публикацию от имени актора.
func (s *Service) CreatePost(ctx context.Context, actor models.Actor, title, content string) (*models.Post, error) {
	const op = "service/posts/CreatePost"

	title = strings.TrimSpace(title)
	if title == "" || strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidArgument)
	}

	post := &models.Post{
		ID:       uuid.New(),
		AuthorID: actor.ID,
		Title:    title,
		Content:  content,
	}

	if err := s.storage.SavePost(ctx, actor, post); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return post, nil
}

// PostByID возвращает публикацию. Мягко удалённая видна только администратору.
func (s *Service) PostByID(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Post, error) {
	const op = "service/posts/PostByID"

	var opts []storage.ReadOption
	if actor.IsAdmin() {
		opts = append(opts, storage.WithDeleted())
	}

	post, err := s.storage.PostByID(ctx, id, opts...)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return post, nil
}

// PostsByAuthor возвращает публикации автора, новые первыми.
func (s *Service) PostsByAuthor(ctx context.Context, actor models.Actor, authorID uuid.UUID, limit int) ([]models.Post, error) {
	const op = "service/posts/PostsByAuthor"

	if limit <= 0 || limit > defaultPostsLimit {
		limit = defaultPostsLimit
	}

	var opts []storage.ReadOption
	if actor.IsAdmin() {
		opts = append(opts, storage.WithDeleted())
	}

	posts, err := s.storage.PostsByAuthor(ctx, authorID, limit, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return posts, nil
}

// UpdatePost меняет заголовок и текст. Разрешено автору и администратору.
func (s *Service) UpdatePost(ctx context.Context, actor models.Actor, id uuid.UUID, title, content string) (*models.Post, error) {
	const op = "service/posts/UpdatePost"

	post, err := s.storage.PostByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if post.AuthorID != actor.ID && !actor.IsAdmin() {
		return nil, fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	title = strings.TrimSpace(title)
	if title == "" || strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidArgument)
	}

	post.Title = title
	post.Content = content

	updated, err := s.storage.UpdatePost(ctx, actor, post)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return updated, nil
}

// SoftDeletePost мягко удаляет публикацию. Разрешено автору и администратору.
func (s *Service) SoftDeletePost(ctx context.Context, actor models.Actor, id uuid.UUID) error {
	const op = "service/posts/SoftDeletePost"

	post, err := s.storage.PostByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	if post.AuthorID != actor.ID && !actor.IsAdmin() {
		return fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	if err := s.storage.SoftDeletePost(ctx, actor, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
