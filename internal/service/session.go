package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/morozovaek/go-social-backend/internal/models"
	"github.com/morozovaek/go-social-backend/internal/pkg/log"
	"github.com/morozovaek/go-social-backend/internal/storage"
)

// Жизненный цикл сессии: ISSUED -> ISSUED' (ротация) либо
// ISSUED -> REVOKED (sign-out / проигрыш ротации / массовый отзыв).
// Из REVOKED возврата нет.
//
// Модель консистентности двух хранилищ: БД — источник истины, Redis —
// быстрый путь. Промах кэша не означает отзыв (read-through в БД);
// провал записи в кэш после коммита БД логируется и не фатален.

// SignIn выполняет вход по email+пароль и выпускает новую сессию.
func (s *Service) SignIn(ctx context.Context, owner models.Owner, email, password string) (*models.TokenPair, *models.User, error) {
	const op = "service/session/SignIn"

	normEmail, err := validateEmail(email)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	if len(password) == 0 {
		return nil, nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	user, err := s.storage.UserByEmail(ctx, owner, normEmail)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}

		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	if !checkPassword(user.PasswordHash, password) {
		return nil, nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	pair, err := s.issueSession(ctx, user, uuid.Nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	return pair, user, nil
}

// Refresh ротирует пару токенов по refresh-токену: старая сессия
// становится навсегда непригодной в момент успеха ротации, повтор
// украденного refresh-токена невозможен.
func (s *Service) Refresh(ctx context.Context, rawRefresh string) (*models.TokenPair, *models.User, error) {
	const op = "service/session/Refresh"

	lg := log.From(ctx)

	claims, err := s.verifyToken(rawRefresh, TokenKindRefresh)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	owner, _ := claims.owner()
	subjectID, _ := claims.subjectID()
	jti, _ := claims.jti()

	user, err := s.storage.UserByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}

		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	presented := hashRefreshToken(rawRefresh)

	storedHash, inCache, err := s.sessions.SessionHash(ctx, owner, subjectID, jti)
	if err != nil {
		// Деградация кэша не роняет ротацию: истина в БД.
		lg.Warn("session_cache_read_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		inCache = false
	}

	if !inCache {
		// Read-through: промах кэша сверяем с БД.
		token, _, err := s.storage.TokenByJTI(ctx, jti)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, nil, fmt.Errorf("%s: %w", op, ErrMissingRefreshToken)
			}

			return nil, nil, fmt.Errorf("%s: %w", op, err)
		}

		storedHash = token.TokenHash
	}

	if subtle.ConstantTimeCompare([]byte(presented), []byte(storedHash)) != 1 {
		return nil, nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	if inCache {
		// Compare-and-delete: из двух конкурентных ротаций одного jti
		// кэш пропускает ровно одну; проигравшая получает ErrTokenRevoked.
		won, err := s.sessions.CompareAndDeleteSession(ctx, owner, subjectID, jti, presented)
		if err != nil {
			lg.Warn("session_cache_cad_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
		} else if !won {
			return nil, nil, fmt.Errorf("%s: %w", op, ErrTokenRevoked)
		}
	}

	pair, err := s.issueSession(ctx, user, jti)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	return pair, user, nil
}

// SignOut отзывает одну сессию по refresh-токену. Идемпотентен:
// повторный выход из уже отозванной сессии не считается ошибкой.
func (s *Service) SignOut(ctx context.Context, rawRefresh string) error {
	const op = "service/session/SignOut"

	lg := log.From(ctx)

	claims, err := s.verifyToken(rawRefresh, TokenKindRefresh)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	owner, _ := claims.owner()
	subjectID, _ := claims.subjectID()
	jti, _ := claims.jti()

	if _, err := s.storage.UserByID(ctx, subjectID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.sessions.DeleteSession(ctx, owner, subjectID, jti); err != nil {
		lg.Warn("session_cache_delete_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
	}

	actor := models.Actor{Owner: owner, ID: subjectID}
	if _, err := s.storage.SoftDeleteTokenByJTI(ctx, actor, jti); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// RevocationOutcome — результат отзыва одной сессии при массовом отзыве.
type RevocationOutcome struct {
	JTI uuid.UUID
	Err error
}

// RevokeAll отзывает все сессии субъекта (смена/сброс пароля).
//
// Политика fire-and-continue: отказ удаления отдельного ключа кэша не
// прерывает остальных — цель «максимум отозванных сессий», а не
// атомарность; иначе один битый ключ блокировал бы восстановление
// аккаунта. Итог каждого удаления возвращается вызывающему явно.
// Массовое мягкое удаление в БД выполняется в любом случае.
func (s *Service) RevokeAll(ctx context.Context, actor models.Actor, owner models.Owner, ownerID uuid.UUID) ([]RevocationOutcome, error) {
	const op = "service/session/RevokeAll"

	lg := log.From(ctx)

	var outcomes []RevocationOutcome

	jtis, err := s.sessions.SessionJTIs(ctx, owner, ownerID)
	if err != nil {
		// Индекс — подсказка: без него остаётся массовое удаление в БД.
		lg.Warn("session_index_read_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
	}

	if len(jtis) > 0 {
		outcomes = make([]RevocationOutcome, len(jtis))

		var wg sync.WaitGroup
		for i, jti := range jtis {
			wg.Add(1)
			go func(i int, jti uuid.UUID) {
				defer wg.Done()
				err := s.sessions.DeleteSession(ctx, owner, ownerID, jti)
				outcomes[i] = RevocationOutcome{JTI: jti, Err: err}
			}(i, jti)
		}
		wg.Wait()

		for _, o := range outcomes {
			if o.Err != nil {
				lg.Warn("session_cache_revoke_failed",
					slog.String("op", op),
					slog.String("jti", o.JTI.String()),
					slog.String("err", o.Err.Error()),
				)
			}
		}
	}

	revoked, err := s.storage.SoftDeleteTokensByOwner(ctx, actor, owner, ownerID)
	if err != nil {
		return outcomes, fmt.Errorf("%s: %w", op, err)
	}

	lg.Info("sessions_revoked",
		slog.String("op", op),
		slog.String("owner_id", ownerID.String()),
		slog.Int64("count", revoked),
	)

	return outcomes, nil
}

// issueSession выпускает новую пару access+refresh с общим jti.
// При oldJTI != uuid.Nil старая пара атомарно вытесняется в той же
// транзакции БД (rotate-and-invalidate).
func (s *Service) issueSession(ctx context.Context, user *models.User, oldJTI uuid.UUID) (*models.TokenPair, error) {
	const op = "service/session/issueSession"

	lg := log.From(ctx)

	now := time.Now().UTC()
	jti := uuid.New()

	accessToken, err := s.signToken(user.ID, user.Owner, TokenKindAccess, jti, now, s.cfg.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	refreshToken, err := s.signToken(user.ID, user.Owner, TokenKindRefresh, jti, now, s.cfg.RefreshTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	hash := hashRefreshToken(refreshToken)

	token := &models.Token{
		ID:        uuid.New(),
		TokenHash: hash,
		TokenType: models.TokenTypeJWT,
		Owner:     user.Owner,
		OwnerID:   user.ID,
	}
	detail := &models.TokenJwt{
		ID:      uuid.New(),
		TokenID: token.ID,
		JTI:     jti,
	}

	actor := models.Actor{Owner: user.Owner, ID: user.ID}

	if oldJTI == uuid.Nil {
		if err := s.storage.SaveTokenPair(ctx, actor, token, detail); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	} else {
		superseded, err := s.storage.SupersedeToken(ctx, actor, oldJTI, token, detail)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		if !superseded {
			// Старая пара уже отозвана: проигрыш гонки ротации.
			return nil, fmt.Errorf("%s: %w", op, ErrTokenRevoked)
		}
	}

	// Кэш после коммита БД: провал не фатален, истина уже в БД.
	if err := s.sessions.SetSession(ctx, user.Owner, user.ID, jti, hash, s.cfg.RefreshTokenTTL); err != nil {
		lg.Warn("session_cache_write_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
	}

	return &models.TokenPair{
		AccessToken:     accessToken,
		RefreshToken:    refreshToken,
		AccessExpiresAt: now.Add(s.cfg.AccessTokenTTL),
	}, nil
}
