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

const defaultNotificationsLimit = 50

// CreateNotification создаёт уведомление для пользователя. Только администратор.
func (s *Service) CreateNotification(ctx context.Context, actor models.Actor, userID uuid.UUID, title, body string) (*models.Notification, error) {
	const op = "service/notifications/CreateNotification"

	if !actor.IsAdmin() {
		return nil, fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidArgument)
	}

	if _, err := s.storage.UserByID(ctx, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	n := &models.Notification{
		ID:     uuid.New(),
		UserID: userID,
		Title:  title,
		Body:   body,
	}

	if err := s.storage.SaveNotification(ctx, actor, n); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return n, nil
}

// NotificationsForUser возвращает уведомления пользователя, новые первыми.
// Чужие уведомления доступны только администратору.
func (s *Service) NotificationsForUser(ctx context.Context, actor models.Actor, userID uuid.UUID, limit int) ([]models.Notification, error) {
	const op = "service/notifications/NotificationsForUser"

	if actor.ID != userID && !actor.IsAdmin() {
		return nil, fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	if limit <= 0 || limit > defaultNotificationsLimit {
		limit = defaultNotificationsLimit
	}

	list, err := s.storage.NotificationsForUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return list, nil
}

// MarkNotificationRead отмечает уведомление прочитанным. Идемпотентна:
// повторная отметка не считается ошибкой.
func (s *Service) MarkNotificationRead(ctx context.Context, actor models.Actor, notificationID uuid.UUID) error {
	const op = "service/notifications/MarkNotificationRead"

	n, err := s.storage.NotificationByID(ctx, notificationID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	if n.UserID != actor.ID && !actor.IsAdmin() {
		return fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	if err := s.storage.MarkNotificationRead(ctx, actor, notificationID, n.UserID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
