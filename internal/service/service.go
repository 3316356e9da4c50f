// service содержит бизнес-логику бэкенда: жизненный цикл сессий
// (выпуск/ротация/отзыв пар access+refresh), восстановление пароля через OTP,
// CRUD публикаций и уведомлений поверх storage с мягким удалением.
//
// Основные аспекты:
//   - Service не хранит состояние запроса; экземпляр безопасен для
//     конкурентного использования при потокобезопасных storage и cache.
//   - «Кто выполняет операцию» передаётся явным models.Actor, а не
//     ambient-состоянием: аудит-штампы — чистая функция входов.
//   - Источник истины о сессиях — БД; Redis — быстрый путь, промах кэша
//     не означает отзыв (read-through в Refresh).
//   - Ошибки возвращаются сентинелами и далее маппятся HTTP-слоем
//     (см. комментарии к переменным ниже).
package service

import (
	"errors"

	"github.com/morozovaek/go-social-backend/internal/cache"
	"github.com/morozovaek/go-social-backend/internal/config"
	"github.com/morozovaek/go-social-backend/internal/storage"
)

var (
	// ErrNotFound — субъект/публикация/уведомление отсутствует или мягко удалены.
	// HTTP 404.
	ErrNotFound = errors.New("not found")

	// ErrForbidden — актор не владелец ресурса и не администратор. HTTP 403.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidCredentials — пароль не совпал с хэшем. HTTP 401.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrEmailTaken — e-mail уже занят другим пользователем. HTTP 409.
	ErrEmailTaken = errors.New("email already taken")

	// ErrInvalidEmail — e-mail некорректного формата. HTTP 400.
	ErrInvalidEmail = errors.New("invalid email format")

	// ErrWeakPassword — пароль не удовлетворяет политике сложности. HTTP 400.
	ErrWeakPassword = errors.New("password is too weak")

	// ErrEmptyPassword — пароль пустой. HTTP 400.
	ErrEmptyPassword = errors.New("password is empty")

	// ErrInvalidArgument — прочая ошибка входных данных. HTTP 400.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidToken — токен некорректен по формату/подписи/издателю,
	// либо хэш refresh-токена не совпал с хранимым. HTTP 401.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired — срок действия токена истёк. HTTP 401.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenTypeMismatch — токен валиден, но предъявлен не в свой слот
	// (например, refresh вместо access). HTTP 401.
	ErrTokenTypeMismatch = errors.New("token type mismatch")

	// ErrTokenRevoked — сессия уже отозвана (sign-out/ротация/массовый отзыв);
	// в том числе проигравшая из двух конкурентных ротаций. HTTP 401.
	ErrTokenRevoked = errors.New("token revoked")

	// ErrMissingRefreshToken — живой сессии с таким jti нет ни в кэше,
	// ни в БД. HTTP 401.
	ErrMissingRefreshToken = errors.New("missing refresh token")

	// ErrOTPInvalid — код не совпал. HTTP 401.
	ErrOTPInvalid = errors.New("otp invalid")

	// ErrOTPExpired — окно кода истекло либо флоу не существует. HTTP 401.
	ErrOTPExpired = errors.New("otp expired")

	// ErrOTPMaxAttempts — исчерпан лимит попыток ввода кода; дальнейшие
	// проверки блокируются до повторной выдачи. HTTP 401.
	ErrOTPMaxAttempts = errors.New("otp max attempts reached")

	// ErrRateLimited — превышен лимит обращений в окне. HTTP 429.
	ErrRateLimited = errors.New("rate limit exceeded")
)

// Service описывает бизнес-логику бэкенда.
type Service struct {
	storage  storage.Storage
	sessions cache.SessionCache
	otps     cache.OTPStore
	limiter  cache.Limiter
	cfg      config.AuthConfig
	otpCfg   config.OTPConfig
	limits   config.RateLimitConfig
}

// New создаёт новый экземпляр Service.
func New(
	storage storage.Storage,
	sessions cache.SessionCache,
	otps cache.OTPStore,
	limiter cache.Limiter,
	cfg config.AuthConfig,
	otpCfg config.OTPConfig,
	limits config.RateLimitConfig,
) *Service {
	return &Service{
		storage:  storage,
		sessions: sessions,
		otps:     otps,
		limiter:  limiter,
		cfg:      cfg,
		otpCfg:   otpCfg,
		limits:   limits,
	}
}
