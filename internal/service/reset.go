package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/morozovaek/go-social-backend/internal/cache"
	"github.com/morozovaek/go-social-backend/internal/models"
	"github.com/morozovaek/go-social-backend/internal/pkg/log"
	"github.com/morozovaek/go-social-backend/internal/pkg/redact"
	"github.com/morozovaek/go-social-backend/internal/storage"
)

// Восстановление пароля: ResetInit выдаёт OTP и flow_id,
// ResetVerify обменивает верный код на короткоживущий reset-токен,
// ResetConfirm по reset-токену ставит новый пароль и отзывает все сессии.
// Доставка кода (email/SMS) за пределами сервиса; код не логируется
// и не возвращается в ответах.

// ResetInit начинает флоу восстановления: генерирует OTP, сохраняет его
// в зашифрованном виде с TTL и возвращает идентификатор флоу.
func (s *Service) ResetInit(ctx context.Context, owner models.Owner, email string) (uuid.UUID, error) {
	const op = "service/reset/ResetInit"

	lg := log.From(ctx)

	normEmail, err := validateEmail(email)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	res, err := s.limiter.Hit(ctx, "password-reset-init", normEmail, s.limits.ResetWindow, s.limits.ResetLimit)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}
	if res.Blocked {
		return uuid.Nil, fmt.Errorf("%s: %w", op, ErrRateLimited)
	}

	user, err := s.storage.UserByEmail(ctx, owner, normEmail)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return uuid.Nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}

		return uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	otp, err := generateOTP(s.otpCfg.Length)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	now := time.Now().UTC()
	flowID := uuid.New()

	rec := &cache.OTPRecord{
		OTP:       otp,
		FlowID:    flowID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.otpCfg.TTL),
		Attempts:  0,
	}

	// Повторная выдача перезаписывает предыдущий код: живой код на
	// субъекта всегда один.
	if err := s.otps.SaveOTP(ctx, user.Owner, user.ID, rec, s.otpCfg.TTL); err != nil {
		return uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.otps.SaveFlow(ctx, flowID, user.Owner, user.ID, s.otpCfg.TTL); err != nil {
		return uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	lg.Info("password_reset_initiated",
		slog.String("op", op),
		slog.String("flow_id", flowID.String()),
		slog.String("email", redact.Email(normEmail)),
		slog.String("otp", redact.OTP()),
	)

	return flowID, nil
}

// ResetVerify проверяет OTP и при успехе возвращает одноразовый
// reset-токен. Код одноразовый: и успех, и исчерпание попыток
// уничтожают запись.
func (s *Service) ResetVerify(ctx context.Context, flowID uuid.UUID, candidate string) (string, error) {
	const op = "service/reset/ResetVerify"

	owner, subjectID, found, err := s.otps.Flow(ctx, flowID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if !found {
		return "", fmt.Errorf("%s: %w", op, ErrOTPExpired)
	}

	res, err := s.limiter.Hit(ctx, "password-reset-verify", subjectID.String(), s.limits.ResetWindow, s.limits.ResetLimit)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if res.Blocked {
		return "", fmt.Errorf("%s: %w", op, ErrRateLimited)
	}

	rec, found, err := s.otps.OTP(ctx, owner, subjectID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if !found {
		return "", fmt.Errorf("%s: %w", op, ErrOTPExpired)
	}

	now := time.Now().UTC()

	// Лимит попыток проверяется до сравнения: исчерпанная запись
	// блокирует даже верный код (fail-closed).
	if rec.Attempts >= s.otpCfg.MaxAttempts {
		return "", fmt.Errorf("%s: %w", op, ErrOTPMaxAttempts)
	}

	if now.After(rec.ExpiresAt) {
		return "", fmt.Errorf("%s: %w", op, ErrOTPExpired)
	}

	if !compareOTP(rec.OTP, candidate) {
		rec.Attempts++
		if err := s.otps.UpdateOTP(ctx, owner, subjectID, rec); err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}

		return "", fmt.Errorf("%s: %w", op, ErrOTPInvalid)
	}

	if err := s.otps.DeleteOTP(ctx, owner, subjectID); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if err := s.otps.DeleteFlow(ctx, flowID); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	resetToken, err := s.signToken(subjectID, owner, TokenKindReset, uuid.New(), now, s.cfg.ResetTokenTTL)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return resetToken, nil
}

// ResetConfirm завершает восстановление: по reset-токену ставит новый
// пароль и отзывает все сессии субъекта.
func (s *Service) ResetConfirm(ctx context.Context, rawResetToken, newPassword string) error {
	const op = "service/reset/ResetConfirm"

	claims, err := s.verifyToken(rawResetToken, TokenKindReset)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	owner, _ := claims.owner()
	subjectID, _ := claims.subjectID()

	if err := validatePassword(newPassword); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	hash, err := s.hashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	actor := models.Actor{Owner: owner, ID: subjectID}

	if err := s.storage.UpdateUserPassword(ctx, actor, subjectID, hash); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err := s.RevokeAll(ctx, actor, owner, subjectID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// generateOTP генерирует числовой код заданной длины через crypto/rand.
func generateOTP(length int) (string, error) {
	const op = "service/reset/generateOTP"

	digits := make([]byte, length)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		digits[i] = byte('0' + n.Int64())
	}

	return string(digits), nil
}

// compareOTP сравнивает коды за постоянное время. Несовпадение длин
// отсекается сразу: длина кода и так публична.
func compareOTP(stored, candidate string) bool {
	if len(stored) != len(candidate) {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(stored), []byte(candidate)) == 1
}
