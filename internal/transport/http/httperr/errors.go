// httperr стандартизирует ответы об ошибках HTTP-слоя.
// На вход принимает доменную ошибку сервисного слоя (сентинел, возможно
// обёрнутый), а на выход даёт:
//   - корректный HTTP-статус;
//   - краткое безопасное message без утечки деталей.
//
// Неизвестная ошибка всегда превращается в 500/internal: внутренние
// детали (SQL, адреса, stack) на клиент не утекают.
package httperr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/morozovaek/go-social-backend/internal/service"
)

// APIError — единый формат для фронта.
// Code — короткий стабильный код для машиночитаемой обработки на FE.
// Message — безопасное человекочитаемое описание.
// RequestID — прокидывается из X-Request-Id, если есть (для трассировки).
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse — корневой объект в ответе.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// ToHTTP конвертирует доменную ошибку в HTTP-статус и унифицированный ответ.
//
// err == nil — программная ошибка вызова: возвращаем 500/internal,
// чтобы не послать "200 OK" с телом ошибки и не маскировать баг.
func ToHTTP(err error) (int, ErrorResponse) {
	httpStatus, code, msg := base(err)

	return httpStatus, ErrorResponse{
		Error: APIError{
			Code:    code,
			Message: msg,
		},
	}
}

// WriteError — хелпер для HTTP-хендлеров.
// Пишет корректный статус/тело, добавляет request_id из заголовка, если он есть.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := ToHTTP(err)

	if rid := r.Header.Get("X-Request-Id"); rid != "" {
		resp.Error.RequestID = rid
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// base — таблица маппинга доменных сентинелов на HTTP/FE-код/сообщение.
func base(err error) (int, string, string) {
	switch {
	case errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrWeakPassword),
		errors.Is(err, service.ErrEmptyPassword),
		errors.Is(err, service.ErrInvalidArgument):
		return http.StatusBadRequest, "invalid_argument", "invalid argument"
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "not_found", "not found"
	case errors.Is(err, service.ErrEmailTaken):
		return http.StatusConflict, "already_exists", "already exists"
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials", "invalid credentials"
	case errors.Is(err, service.ErrTokenExpired):
		return http.StatusUnauthorized, "token_expired", "token expired"
	case errors.Is(err, service.ErrTokenRevoked):
		return http.StatusUnauthorized, "token_revoked", "token revoked"
	case errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, service.ErrTokenTypeMismatch),
		errors.Is(err, service.ErrMissingRefreshToken):
		return http.StatusUnauthorized, "unauthenticated", "unauthenticated"
	case errors.Is(err, service.ErrOTPMaxAttempts):
		return http.StatusUnauthorized, "otp_max_attempts", "otp attempts exhausted"
	case errors.Is(err, service.ErrOTPInvalid),
		errors.Is(err, service.ErrOTPExpired):
		return http.StatusUnauthorized, "otp_rejected", "otp rejected"
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, "permission_denied", "permission denied"
	case errors.Is(err, service.ErrRateLimited):
		return http.StatusTooManyRequests, "resource_exhausted", "too many requests"
	default:
		return http.StatusInternalServerError, "internal", "internal error"
	}
}
