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

const notificationColumns = `id, user_id, title, body, ` + auditColumns

func scanNotification(row pgx.Row, withReadAt bool) (*models.Notification, error) {
	var n models.Notification

	dest := []any{&n.ID, &n.UserID, &n.Title, &n.Body}
	dest = append(dest, auditDest(&n.Audit)...)
	if withReadAt {
		dest = append(dest, &n.ReadAt)
	}

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	return &n, nil
}

// SaveNotification создаёт уведомление.
func (s *Storage) SaveNotification(ctx context.Context, actor models.Actor, n *models.Notification) error {
	const op = "storage/postgres/notifications/SaveNotification"

	n.Audit = createStamp(actor, time.Now().UTC())

	query := `
		INSERT INTO notifications (id, user_id, title, body,
			created_at, created_by, updated_at, updated_by, is_deleted)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE)
	`

	_, err := s.db.Exec(ctx, query,
		n.ID, n.UserID, n.Title, n.Body,
		n.CreatedAt, n.CreatedBy, n.UpdatedAt, n.UpdatedBy,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// NotificationByID находит уведомление по ID.
func (s *Storage) NotificationByID(ctx context.Context, id uuid.UUID, opts ...storage.ReadOption) (*models.Notification, error) {
	const op = "storage/postgres/notifications/NotificationByID"

	ro := storage.CollectReadOptions(opts)

	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1` + liveFilter("", ro)

	n, err := scanNotification(s.db.QueryRow(ctx, query, id), false)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return n, nil
}

// NotificationsForUser возвращает уведомления получателя с отметкой прочтения,
// id по убыванию.
func (s *Storage) NotificationsForUser(ctx context.Context, userID uuid.UUID, limit int, opts ...storage.ReadOption) ([]models.Notification, error) {
	const op = "storage/postgres/notifications/NotificationsForUser"

	ro := storage.CollectReadOptions(opts)

	query := `
		SELECT n.id, n.user_id, n.title, n.body,
			n.created_at, n.created_by, n.updated_at, n.updated_by, n.is_deleted, n.deleted_at, n.deleted_by,
			r.read_at
		FROM notifications n
		LEFT JOIN notification_read r ON r.notification_id = n.id AND r.user_id = $1
		WHERE n.user_id = $1` + liveFilter("n", ro) + `
		ORDER BY n.id DESC
		LIMIT $2`

	rows, err := s.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var result []models.Notification
	for rows.Next() {
		n, err := scanNotification(rows, true)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		result = append(result, *n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return result, nil
}

// MarkNotificationRead фиксирует прочтение; повторная отметка — no-op.
func (s *Storage) MarkNotificationRead(ctx context.Context, actor models.Actor, notificationID, userID uuid.UUID) error {
	const op = "storage/postgres/notifications/MarkNotificationRead"

	query := `
		INSERT INTO notification_read (notification_id, user_id, read_at, created_at, created_by)
		VALUES ($1, $2, $3, $3, $4)
		ON CONFLICT (notification_id, user_id) DO NOTHING
	`

	now := time.Now().UTC()

	_, err := s.db.Exec(ctx, query, notificationID, userID, now, actor.ID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
