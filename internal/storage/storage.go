// storage задаёт контракты долговременного хранилища.
//
// Единственная реализация (storage/postgres) применяет ко всем операциям
// три правила переписывания запросов:
//  1. чтения по умолчанию исключают мягко удалённые строки; явный отказ —
//     опция WithDeleted, которая снимается этим слоем и не попадает в SQL
//     произвольным образом;
//  2. записи штампуются аудит-колонками из явного models.Actor;
//  3. «удаление» всегда переписывается в UPDATE is_deleted=TRUE; физический
//     DELETE недоступен вызывающему коду (кроме janitor-очистки).
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/morozovaek/go-social-backend/internal/models"
)

var (
	// ErrNotFound — запись не найдена или мягко удалена.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists — нарушение уникальности (email/token_hash/jti).
	ErrAlreadyExists = errors.New("already exists")
)

// ReadOptions — собранные опции чтения.
type ReadOptions struct {
	// IncludeDeleted отключает неявный фильтр is_deleted = FALSE.
	IncludeDeleted bool
}

// ReadOption — опция операции чтения.
type ReadOption func(*ReadOptions)

// WithDeleted явно разрешает видеть мягко удалённые строки.
func WithDeleted() ReadOption {
	return func(o *ReadOptions) { o.IncludeDeleted = true }
}

// CollectReadOptions сворачивает список опций в структуру.
func CollectReadOptions(opts []ReadOption) ReadOptions {
	var o ReadOptions
	for _, opt := range opts {
		opt(&o)
	}

	return o
}

// UserStorage выполняет операции над пользователями.
type UserStorage interface {
	// SaveUser создаёт нового пользователя.
	SaveUser(ctx context.Context, actor models.Actor, user *models.User) error
	// UserByEmail находит пользователя по email (в рамках одного owner-типа).
	UserByEmail(ctx context.Context, owner models.Owner, email string, opts ...ReadOption) (*models.User, error)
	// UserByID находит пользователя по ID.
	UserByID(ctx context.Context, id uuid.UUID, opts ...ReadOption) (*models.User, error)
	// UpdateUserProfile обновляет изменяемые поля профиля.
	UpdateUserProfile(ctx context.Context, actor models.Actor, id uuid.UUID, username string) (*models.User, error)
	// UpdateUserPassword заменяет хэш пароля.
	UpdateUserPassword(ctx context.Context, actor models.Actor, id uuid.UUID, passwordHash string) error
	// SoftDeleteUser мягко удаляет пользователя.
	SoftDeleteUser(ctx context.Context, actor models.Actor, id uuid.UUID) error
}

// TokenStorage выполняет операции над выпущенными токенами.
// Пара Token+TokenJwt — атомарная группа: создаётся и удаляется в одной
// транзакции БД.
type TokenStorage interface {
	// SaveTokenPair сохраняет Token и его JWT-деталь в одной транзакции.
	SaveTokenPair(ctx context.Context, actor models.Actor, token *models.Token, detail *models.TokenJwt) error
	// TokenByJTI находит живую пару по jti.
	TokenByJTI(ctx context.Context, jti uuid.UUID, opts ...ReadOption) (*models.Token, *models.TokenJwt, error)
	// SupersedeToken атомарно (одной транзакцией) мягко удаляет старую пару
	// по jti и вставляет новую. Возвращает false, если старая пара уже была
	// удалена — проигравший гонку ротации не получает новую сессию.
	SupersedeToken(ctx context.Context, actor models.Actor, oldJTI uuid.UUID, token *models.Token, detail *models.TokenJwt) (bool, error)
	// SoftDeleteTokenByJTI мягко удаляет пару по jti.
	// Возвращает false, если живой пары уже нет (идемпотентный sign-out).
	SoftDeleteTokenByJTI(ctx context.Context, actor models.Actor, jti uuid.UUID) (bool, error)
	// SoftDeleteTokensByOwner мягко удаляет все JWT-токены субъекта.
	// Возвращает число затронутых пар.
	SoftDeleteTokensByOwner(ctx context.Context, actor models.Actor, owner models.Owner, ownerID uuid.UUID) (int64, error)
	// PurgeDeletedTokens физически удаляет давно отозванные пары (janitor).
	PurgeDeletedTokens(ctx context.Context, before time.Time) error
}

// PostStorage выполняет операции над публикациями.
type PostStorage interface {
	SavePost(ctx context.Context, actor models.Actor, post *models.Post) error
	PostByID(ctx context.Context, id uuid.UUID, opts ...ReadOption) (*models.Post, error)
	// PostsByAuthor возвращает публикации автора; порядок — id по убыванию,
	// чтобы пагинация была детерминированной без явной сортировки.
	PostsByAuthor(ctx context.Context, authorID uuid.UUID, limit int, opts ...ReadOption) ([]models.Post, error)
	UpdatePost(ctx context.Context, actor models.Actor, post *models.Post) (*models.Post, error)
	SoftDeletePost(ctx context.Context, actor models.Actor, id uuid.UUID) error
}

// NotificationStorage выполняет операции над уведомлениями.
type NotificationStorage interface {
	SaveNotification(ctx context.Context, actor models.Actor, n *models.Notification) error
	NotificationByID(ctx context.Context, id uuid.UUID, opts ...ReadOption) (*models.Notification, error)
	// NotificationsForUser возвращает уведомления получателя с отметкой
	// прочтения; порядок — id по убыванию.
	NotificationsForUser(ctx context.Context, userID uuid.UUID, limit int, opts ...ReadOption) ([]models.Notification, error)
	// MarkNotificationRead фиксирует прочтение; повторный вызов — no-op.
	MarkNotificationRead(ctx context.Context, actor models.Actor, notificationID, userID uuid.UUID) error
}

// Storage задаёт контракт работы с БД.
type Storage interface {
	UserStorage
	TokenStorage
	PostStorage
	NotificationStorage
	Close()
}
