package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/morozovaek/go-social-backend/internal/models"
	"github.com/morozovaek/go-social-backend/internal/storage"
)

const userColumns = `id, owner, email, username, password_hash, ` + auditColumns

// scanUser сканирует одну строку пользователя в доменную модель.
func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User

	dest := []any{&user.ID, &user.Owner, &user.Email, &user.Username, &user.PasswordHash}
	dest = append(dest, auditDest(&user.Audit)...)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	return &user, nil
}

// SaveUser создаёт нового пользователя.
// Ошибки: storage.ErrAlreadyExists при конфликте уникальности email.
func (s *Storage) SaveUser(ctx context.Context, actor models.Actor, user *models.User) error {
	const op = "storage/postgres/users/SaveUser"

	user.Audit = createStamp(actor, time.Now().UTC())

	query := `
		INSERT INTO users (id, owner, email, username, password_hash,
			created_at, created_by, updated_at, updated_by, is_deleted)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, FALSE)
	`

	_, err := s.db.Exec(ctx, query,
		user.ID, user.Owner, user.Email, user.Username, user.PasswordHash,
		user.CreatedAt, user.CreatedBy, user.UpdatedAt, user.UpdatedBy,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// UserByEmail находит пользователя по email в рамках одного owner-типа.
func (s *Storage) UserByEmail(ctx context.Context, owner models.Owner, email string, opts ...storage.ReadOption) (*models.User, error) {
	const op = "storage/postgres/users/UserByEmail"

	ro := storage.CollectReadOptions(opts)

	query := `SELECT ` + userColumns + ` FROM users WHERE owner = $1 AND email = $2` + liveFilter("", ro)

	user, err := scanUser(s.db.QueryRow(ctx, query, owner, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// UserByID находит пользователя по ID.
func (s *Storage) UserByID(ctx context.Context, id uuid.UUID, opts ...storage.ReadOption) (*models.User, error) {
	const op = "storage/postgres/users/UserByID"

	ro := storage.CollectReadOptions(opts)

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1` + liveFilter("", ro)

	user, err := scanUser(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// UpdateUserProfile обновляет изменяемые поля профиля.
func (s *Storage) UpdateUserProfile(ctx context.Context, actor models.Actor, id uuid.UUID, username string) (*models.User, error) {
	const op = "storage/postgres/users/UpdateUserProfile"

	now, by := updateStamp(actor, time.Now().UTC())

	query := `
		UPDATE users
		SET username = $2, updated_at = $3, updated_by = $4
		WHERE id = $1 AND is_deleted = FALSE
		RETURNING ` + userColumns

	user, err := scanUser(s.db.QueryRow(ctx, query, id, username, now, by))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// UpdateUserPassword заменяет хэш пароля.
func (s *Storage) UpdateUserPassword(ctx context.Context, actor models.Actor, id uuid.UUID, passwordHash string) error {
	const op = "storage/postgres/users/UpdateUserPassword"

	now, by := updateStamp(actor, time.Now().UTC())

	query := `
		UPDATE users
		SET password_hash = $2, updated_at = $3, updated_by = $4
		WHERE id = $1 AND is_deleted = FALSE
	`

	cmdTag, err := s.db.Exec(ctx, query, id, passwordHash, now, by)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

// SoftDeleteUser мягко удаляет пользователя: запись остаётся в БД,
// но исчезает из всех чтений без WithDeleted.
func (s *Storage) SoftDeleteUser(ctx context.Context, actor models.Actor, id uuid.UUID) error {
	const op = "storage/postgres/users/SoftDeleteUser"

	now, by := deleteStamp(actor, time.Now().UTC())

	query := `
		UPDATE users
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
