package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/morozovaek/go-social-backend/internal/models"
	"github.com/morozovaek/go-social-backend/internal/pkg/log"
	"github.com/morozovaek/go-social-backend/internal/pkg/redact"
	"github.com/morozovaek/go-social-backend/internal/storage"
)

// RegisterUser регистрирует нового пользователя и сразу выпускает сессию.
func (s *Service) RegisterUser(ctx context.Context, owner models.Owner, email, username, password string) (*models.TokenPair, *models.User, error) {
	const op = "service/users/RegisterUser"

	lg := log.From(ctx)

	normEmail, err := validateEmail(email)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	if err := validatePassword(password); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	username = strings.TrimSpace(username)
	if username == "" {
		return nil, nil, fmt.Errorf("%s: %w", op, ErrInvalidArgument)
	}

	hash, err := s.hashPassword(password)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	user := &models.User{
		ID:           uuid.New(),
		Owner:        owner,
		Email:        normEmail,
		Username:     username,
		PasswordHash: hash,
	}

	// Актор регистрации — сам создаваемый субъект.
	actor := models.Actor{Owner: owner, ID: user.ID}

	if err := s.storage.SaveUser(ctx, actor, user); err != nil {
		// Уникальность email гарантирует БД, а не предварительная проверка:
		// check-then-insert проигрывает гонку двух одновременных регистраций.
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, nil, fmt.Errorf("%s: %w", op, ErrEmailTaken)
		}

		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	lg.Info("user_registered",
		slog.String("op", op),
		slog.String("user_id", user.ID.String()),
		slog.String("email", redact.Email(normEmail)),
	)

	pair, err := s.issueSession(ctx, user, uuid.Nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	return pair, user, nil
}

// ProfileByID возвращает профиль субъекта. Мягко удалённый профиль
// наружу не отдаётся (ErrNotFound), администратору доступен явно.
func (s *Service) ProfileByID(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.User, error) {
	const op = "service/users/ProfileByID"

	var opts []storage.ReadOption
	if actor.IsAdmin() {
		opts = append(opts, storage.WithDeleted())
	}

	user, err := s.storage.UserByID(ctx, id, opts...)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// UpdateProfile меняет имя пользователя. Разрешено владельцу и администратору.
func (s *Service) UpdateProfile(ctx context.Context, actor models.Actor, id uuid.UUID, username string) (*models.User, error) {
	const op = "service/users/UpdateProfile"

	if actor.ID != id && !actor.IsAdmin() {
		return nil, fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidArgument)
	}

	user, err := s.storage.UpdateUserProfile(ctx, actor, id, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// ChangePassword меняет пароль по старому паролю и отзывает все сессии
// субъекта: после смены пароля живых refresh-токенов не остаётся.
func (s *Service) ChangePassword(ctx context.Context, actor models.Actor, id uuid.UUID, oldPassword, newPassword string) error {
	const op = "service/users/ChangePassword"

	if actor.ID != id && !actor.IsAdmin() {
		return fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	user, err := s.storage.UserByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	if !checkPassword(user.PasswordHash, oldPassword) {
		return fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	if err := validatePassword(newPassword); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	hash, err := s.hashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.storage.UpdateUserPassword(ctx, actor, id, hash); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err := s.RevokeAll(ctx, actor, user.Owner, user.ID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// SoftDeleteUser мягко удаляет пользователя (только администратор)
// и отзывает все его сессии.
func (s *Service) SoftDeleteUser(ctx context.Context, actor models.Actor, id uuid.UUID) error {
	const op = "service/users/SoftDeleteUser"

	if !actor.IsAdmin() {
		return fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	user, err := s.storage.UserByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.storage.SoftDeleteUser(ctx, actor, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err := s.RevokeAll(ctx, actor, user.Owner, user.ID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// hashPassword хэширует пароль с помощью bcrypt.
func (s *Service) hashPassword(password string) (string, error) {
	const op = "service/users/hashPassword"

	cost := s.cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return string(bytes), nil
}

// checkPassword сравнивает пароль с хэшем.
func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// validateEmail проверяет базовый формат email и обрезает пробелы снаружи.
func validateEmail(raw string) (string, error) {
	const op = "service/users/validateEmail"

	email := strings.TrimSpace(raw)
	if email == "" {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	if _, err := mail.ParseAddress(email); err != nil {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	return strings.ToLower(email), nil
}

// validatePassword проверяет минимальные требования к паролю.
// Политика по умолчанию: длина >= 8, хотя бы одна строчная, заглавная и цифра.
func validatePassword(pw string) error {
	const op = "service/users/validatePassword"

	if len(pw) == 0 {
		return fmt.Errorf("%s: %w", op, ErrEmptyPassword)
	}

	if len([]rune(pw)) < 8 {
		return fmt.Errorf("%s: %w", op, ErrWeakPassword)
	}

	var hasLower, hasUpper, hasDigit bool
	for _, r := range pw {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}

	if !hasLower || !hasUpper || !hasDigit {
		return fmt.Errorf("%s: %w", op, ErrWeakPassword)
	}

	return nil
}
