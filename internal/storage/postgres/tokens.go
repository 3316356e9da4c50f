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

// Пара tokens + token_jwt — атомарная группа: обе строки создаются и
// мягко удаляются только внутри одной транзакции.

const insertTokenQuery = `
	INSERT INTO tokens (id, token_hash, token_type, owner, owner_id,
		created_at, created_by, updated_at, updated_by, is_deleted)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, FALSE)
`

const insertTokenJwtQuery = `
	INSERT INTO token_jwt (id, token_id, jti,
		created_at, created_by, updated_at, updated_by, is_deleted)
	VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE)
`

// insertPair вставляет обе строки в рамках открытой транзакции.
func insertPair(ctx context.Context, tx pgx.Tx, actor models.Actor, token *models.Token, detail *models.TokenJwt) error {
	now := time.Now().UTC()
	token.Audit = createStamp(actor, now)
	detail.Audit = createStamp(actor, now)

	if _, err := tx.Exec(ctx, insertTokenQuery,
		token.ID, token.TokenHash, token.TokenType, token.Owner, token.OwnerID,
		token.CreatedAt, token.CreatedBy, token.UpdatedAt, token.UpdatedBy,
	); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, insertTokenJwtQuery,
		detail.ID, detail.TokenID, detail.JTI,
		detail.CreatedAt, detail.CreatedBy, detail.UpdatedAt, detail.UpdatedBy,
	); err != nil {
		return err
	}

	return nil
}

// supersedeByJTI мягко удаляет живую пару по jti в рамках транзакции.
// Возвращает false, если живой пары нет: конъюнкт is_deleted = FALSE в
// UPDATE делает Postgres арбитром гонки двух конкурентных ротаций.
func supersedeByJTI(ctx context.Context, tx pgx.Tx, actor models.Actor, jti uuid.UUID) (bool, error) {
	now, by := deleteStamp(actor, time.Now().UTC())

	const updJwt = `
		UPDATE token_jwt
		SET is_deleted = TRUE, deleted_at = $2, deleted_by = $3, updated_at = $2, updated_by = $3
		WHERE jti = $1 AND is_deleted = FALSE
		RETURNING token_id
	`

	var tokenID uuid.UUID
	err := tx.QueryRow(ctx, updJwt, jti, now, by).Scan(&tokenID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}

		return false, err
	}

	const updToken = `
		UPDATE tokens
		SET is_deleted = TRUE, deleted_at = $2, deleted_by = $3, updated_at = $2, updated_by = $3
		WHERE id = $1 AND is_deleted = FALSE
	`

	if _, err := tx.Exec(ctx, updToken, tokenID, now, by); err != nil {
		return false, err
	}

	return true, nil
}

// SaveTokenPair сохраняет Token и его JWT-деталь в одной транзакции.
func (s *Storage) SaveTokenPair(ctx context.Context, actor models.Actor, token *models.Token, detail *models.TokenJwt) error {
	const op = "storage/postgres/tokens/SaveTokenPair"

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := insertPair(ctx, tx, actor, token, detail); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// TokenByJTI находит пару по jti.
func (s *Storage) TokenByJTI(ctx context.Context, jti uuid.UUID, opts ...storage.ReadOption) (*models.Token, *models.TokenJwt, error) {
	const op = "storage/postgres/tokens/TokenByJTI"

	ro := storage.CollectReadOptions(opts)

	query := `
		SELECT t.id, t.token_hash, t.token_type, t.owner, t.owner_id,
			t.created_at, t.created_by, t.updated_at, t.updated_by, t.is_deleted, t.deleted_at, t.deleted_by,
			j.id, j.token_id, j.jti,
			j.created_at, j.created_by, j.updated_at, j.updated_by, j.is_deleted, j.deleted_at, j.deleted_by
		FROM token_jwt j
		JOIN tokens t ON t.id = j.token_id
		WHERE j.jti = $1` + liveFilter("j", ro) + liveFilter("t", ro)

	var token models.Token
	var detail models.TokenJwt

	dest := []any{&token.ID, &token.TokenHash, &token.TokenType, &token.Owner, &token.OwnerID}
	dest = append(dest, auditDest(&token.Audit)...)
	dest = append(dest, &detail.ID, &detail.TokenID, &detail.JTI)
	dest = append(dest, auditDest(&detail.Audit)...)

	if err := s.db.QueryRow(ctx, query, jti).Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	return &token, &detail, nil
}

// SupersedeToken атомарно заменяет старую пару на новую.
// Возвращает (false, nil), если старая пара уже была отозвана:
// из двух конкурентных ротаций одного jti выигрывает ровно одна.
func (s *Storage) SupersedeToken(ctx context.Context, actor models.Actor, oldJTI uuid.UUID, token *models.Token, detail *models.TokenJwt) (bool, error) {
	const op = "storage/postgres/tokens/SupersedeToken"

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	superseded, err := supersedeByJTI(ctx, tx, actor, oldJTI)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	if !superseded {
		return false, nil
	}

	if err := insertPair(ctx, tx, actor, token, detail); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return false, fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}

		return false, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return true, nil
}

// SoftDeleteTokenByJTI мягко удаляет пару по jti.
// Отсутствие живой пары не считается ошибкой (идемпотентный sign-out).
func (s *Storage) SoftDeleteTokenByJTI(ctx context.Context, actor models.Actor, jti uuid.UUID) (bool, error) {
	const op = "storage/postgres/tokens/SoftDeleteTokenByJTI"

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	deleted, err := supersedeByJTI(ctx, tx, actor, jti)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return deleted, nil
}

// SoftDeleteTokensByOwner мягко удаляет все живые JWT-пары субъекта.
func (s *Storage) SoftDeleteTokensByOwner(ctx context.Context, actor models.Actor, owner models.Owner, ownerID uuid.UUID) (int64, error) {
	const op = "storage/postgres/tokens/SoftDeleteTokensByOwner"

	now, by := deleteStamp(actor, time.Now().UTC())

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const updJwt = `
		UPDATE token_jwt
		SET is_deleted = TRUE, deleted_at = $4, deleted_by = $5, updated_at = $4, updated_by = $5
		WHERE is_deleted = FALSE AND token_id IN (
			SELECT id FROM tokens
			WHERE owner = $1 AND owner_id = $2 AND token_type = $3 AND is_deleted = FALSE
		)
	`

	if _, err := tx.Exec(ctx, updJwt, owner, ownerID, models.TokenTypeJWT, now, by); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	const updTokens = `
		UPDATE tokens
		SET is_deleted = TRUE, deleted_at = $4, deleted_by = $5, updated_at = $4, updated_by = $5
		WHERE owner = $1 AND owner_id = $2 AND token_type = $3 AND is_deleted = FALSE
	`

	cmdTag, err := tx.Exec(ctx, updTokens, owner, ownerID, models.TokenTypeJWT, now, by)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return cmdTag.RowsAffected(), nil
}

// PurgeDeletedTokens физически удаляет давно отозванные пары.
// Единственный физический DELETE в пакете; вызывается только janitor-задачей,
// сервисный код до него не дотягивается через storage.Storage.
func (s *Storage) PurgeDeletedTokens(ctx context.Context, before time.Time) error {
	const op = "storage/postgres/tokens/PurgeDeletedTokens"

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const delJwt = `
		DELETE FROM token_jwt
		WHERE token_id IN (SELECT id FROM tokens WHERE is_deleted = TRUE AND deleted_at <= $1)
	`

	if _, err := tx.Exec(ctx, delJwt, before); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	const delTokens = `
		DELETE FROM tokens
		WHERE is_deleted = TRUE AND deleted_at <= $1
	`

	if _, err := tx.Exec(ctx, delTokens, before); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
