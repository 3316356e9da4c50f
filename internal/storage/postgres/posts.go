package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/morozovaek/go-social-backend/internal/models"
	"github.com/morozovaek/go-social-backend/internal/storage"
)

const postColumns = `id, author_id, title, content, ` + auditColumns

func scanPost(row pgx.Row) (*models.Post, error) {
	var post models.Post

	dest := []any{&post.ID, &post.AuthorID, &post.Title, &post.Content}
	dest = append(dest, auditDest(&post.Audit)...)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	return &post, nil
}

// SavePost создаёт публикацию.
func (s *Storage) SavePost(ctx context.Context, actor models.Actor, post *models.Post) error {
	const op = "storage/postgres/posts/SavePost"

	post.Audit = createStamp(actor, time.Now().UTC())

	query := `
		INSERT INTO posts (id, author_id, title, content,
			created_at, created_by, updated_at, updated_by, is_deleted)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE)
	`

	_, err := s.db.Exec(ctx, query,
		post.ID, post.AuthorID, post.Title, post.Content,
		post.CreatedAt, post.CreatedBy, post.UpdatedAt, post.UpdatedBy,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// PostByID находит публикацию по ID.
func (s *Storage) PostByID(ctx context.Context, id uuid.UUID, opts ...storage.ReadOption) (*models.Post, error) {
	const op = "storage/postgres/posts/PostByID"

	ro := storage.CollectReadOptions(opts)

	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1` + liveFilter("", ro)

	post, err := scanPost(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return post, nil
}

// PostsByAuthor возвращает публикации автора, id по убыванию.
func (s *Storage) PostsByAuthor(ctx context.Context, authorID uuid.UUID, limit int, opts ...storage.ReadOption) ([]models.Post, error) {
	const op = "storage/postgres/posts/PostsByAuthor"

	ro := storage.CollectReadOptions(opts)

	query := `SELECT ` + postColumns + ` FROM posts WHERE author_id = $1` + liveFilter("", ro) +
		` ORDER BY id DESC LIMIT $2`

	rows, err := s.db.Query(ctx, query, authorID, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var posts []models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		posts = append(posts, *post)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return posts, nil
}

// UpdatePost обновляет заголовок и содержимое публикации.
func (s *Storage) UpdatePost(ctx context.Context, actor models.Actor, post *models.Post) (*models.Post, error) {
	const op = "storage/postgres/posts/UpdatePost"

	now, by := updateStamp(actor, time.Now().UTC())

	query := `
		UPDATE posts
		SET title = $2, content = $3, updated_at = $4, updated_by = $5
		WHERE id = $1 AND is_deleted = FALSE
		RETURNING ` + postColumns

	updated, err := scanPost(s.db.QueryRow(ctx, query, post.ID, post.Title, post.Content, now, by))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return updated, nil
}

// SoftDeletePost мягко удаляет публикацию.
func (s *Storage) SoftDeletePost(ctx context.Context, actor models.Actor, id uuid.UUID) error {
	const op = "storage/postgres/posts/SoftDeletePost"

	now, by := deleteStamp(actor, time.Now().UTC())

	query := `
		UPDATE posts
		SET is_deleted = TRUE, deleted_at = $2, deleted_by = $3, updated_at = $2, updated_by = $3
		WHERE id = $1 AND is_deleted = FALSE
	`

	cmdTag, err := s.db.Exec(ctx, query, id, now, by)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}
