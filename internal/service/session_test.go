package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/morozovaek/go-social-backend/internal/models"
)

// registerTestUser — утилита: регистрирует пользователя и возвращает его
// вместе с первой парой токенов.
func registerTestUser(t *testing.T, svc *Service) (*models.User, *models.TokenPair) {
	t.Helper()

	pair, user, err := svc.RegisterUser(context.Background(), models.OwnerUser,
		"user@example.com", "user", "Str0ngPass")
	require.NoError(t, err)
	require.NotNil(t, pair)
	require.NotNil(t, user)

	return user, pair
}

func TestSignIn_Success(t *testing.T) {
	t.Parallel()

	str := newFakeStorage()
	c := newFakeCache()
	svc := newTestService(str, c)

	user, _ := registerTestUser(t, svc)

	pair, got, err := svc.SignIn(context.Background(), models.OwnerUser, "user@example.com", "Str0ngPass")
	require.NoError(t, err)
	require.Equal(t, user.ID, got.ID)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	// Две живые пары: регистрация + вход; обе в кэше.
	require.Equal(t, 2, str.liveTokens(user.ID))
	require.Equal(t, 2, c.sessionCount())
}

func TestSignIn_WrongPassword(t *testing.T) {
	t.Parallel()

	str := newFakeStorage()
	c := newFakeCache()
	svc := newTestService(str, c)

	registerTestUser(t, svc)

	_, _, err := svc.SignIn(context.Background(), models.OwnerUser, "user@example.com", "wrong-pass")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSignIn_UnknownEmail(t *testing.T) {
	t.Parallel()

	svc := newTestService(newFakeStorage(), newFakeCache())

	_, _, err := svc.SignIn(context.Background(), models.OwnerUser, "nobody@example.com", "whatever")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRefresh_RotatesAndKillsOldToken(t *testing.T) {
	t.Parallel()

	str := newFakeStorage()
	c := newFakeCache()
	svc := newTestService(str, c)

	user, first := registerTestUser(t, svc)

	second, got, err := svc.Refresh(context.Background(), first.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, user.ID, got.ID)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)

	// Живой осталась ровно одна пара.
	require.Equal(t, 1, str.liveTokens(user.ID))
	require.Equal(t, 1, c.sessionCount())

	// Повтор старого refresh-токена навсегда невозможен.
	_, _, err = svc.Refresh(context.Background(), first.RefreshToken)
	require.Error(t, err)
	require.True(t,
		errors.Is(err, ErrTokenRevoked) || errors.Is(err, ErrMissingRefreshToken),
		"unexpected error: %v", err)

	// Новая пара продолжает работать.
	_, _, err = svc.Refresh(context.Background(), second.RefreshToken)
	require.NoError(t, err)
}

func TestRefresh_CacheMissFallsThroughToStorage(t *testing.T) {
	t.Parallel()

	str := newFakeStorage()
	c := newFakeCache()
	svc := newTestService(str, c)

	user, first := registerTestUser(t, svc)

	// Кэш потерял все записи (flush/рестарт Redis) — это не отзыв.
	c.mu.Lock()
	c.sessions = map[string]sessionEntry{}
	c.mu.Unlock()

	pair, _, err := svc.Refresh(context.Background(), first.RefreshToken)
	require.NoError(t, err)
	require.NotEmpty(t, pair.RefreshToken)
	require.Equal(t, 1, str.liveTokens(user.ID))
}

func TestRefresh_RevokedInStorage(t *testing.T) {
	t.Parallel()

	str := newFakeStorage()
	c := newFakeCache()
	svc := newTestService(str, c)

	user, first := registerTestUser(t, svc)

	// Sign-out убивает сессию и в кэше, и в БД.
	require.NoError(t, svc.SignOut(context.Background(), first.RefreshToken))
	require.Equal(t, 0, str.liveTokens(user.ID))

	_, _, err := svc.Refresh(context.Background(), first.RefreshToken)
	require.ErrorIs(t, err, ErrMissingRefreshToken)
}

func TestRefresh_GarbageToken(t *testing.T) {
	t.Parallel()

	svc := newTestService(newFakeStorage(), newFakeCache())

	_, _, err := svc.Refresh(context.Background(), "not-a-jwt")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefresh_AccessTokenInRefreshSlot(t *testing.T) {
	t.Parallel()

	svc := newTestService(newFakeStorage(), newFakeCache())

	_, pair := registerTestUser(t, svc)

	_, _, err := svc.Refresh(context.Background(), pair.AccessToken)
	require.ErrorIs(t, err, ErrTokenTypeMismatch)
}

func TestSignOut_Idempotent(t *testing.T) {
	t.Parallel()

	svc := newTestService(newFakeStorage(), newFakeCache())

	_, pair := registerTestUser(t, svc)

	require.NoError(t, svc.SignOut(context.Background(), pair.RefreshToken))
	// Повторный выход — не ошибка.
	require.NoError(t, svc.SignOut(context.Background(), pair.RefreshToken))
}

func TestRevokeAll_KillsEverySession(t *testing.T) {
	t.Parallel()

	str := newFakeStorage()
	c := newFakeCache()
	svc := newTestService(str, c)

	user, _ := registerTestUser(t, svc)

	// Ещё два входа: всего три живые сессии.
	for i := 0; i < 2; i++ {
		_, _, err := svc.SignIn(context.Background(), models.OwnerUser, "user@example.com", "Str0ngPass")
		require.NoError(t, err)
	}
	require.Equal(t, 3, str.liveTokens(user.ID))

	actor := models.Actor{Owner: user.Owner, ID: user.ID}
	outcomes, err := svc.RevokeAll(context.Background(), actor, user.Owner, user.ID)
	require.NoError(t, err)
	require.Len(t, outcomes, 3)
	for _, o := range outcomes {
		require.NoError(t, o.Err)
	}

	require.Equal(t, 0, str.liveTokens(user.ID))
	require.Equal(t, 0, c.sessionCount())
}

func TestRevokeAll_PartialCacheFailureStillRevokesStorage(t *testing.T) {
	t.Parallel()

	str := newFakeStorage()
	c := newFakeCache()
	svc := newTestService(str, c)

	user, first := registerTestUser(t, svc)
	_, _, err := svc.SignIn(context.Background(), models.OwnerUser, "user@example.com", "Str0ngPass")
	require.NoError(t, err)

	// Один ключ кэша «битый»: его удаление падает.
	firstClaims, err := svc.verifyToken(first.RefreshToken, TokenKindRefresh)
	require.NoError(t, err)
	badJTI, err := firstClaims.jti()
	require.NoError(t, err)

	cacheErr := errors.New("redis: connection reset")
	c.mu.Lock()
	c.failDelete = func(jti uuid.UUID) error {
		if jti == badJTI {
			return cacheErr
		}
		return nil
	}
	c.mu.Unlock()

	actor := models.Actor{Owner: user.Owner, ID: user.ID}
	outcomes, err := svc.RevokeAll(context.Background(), actor, user.Owner, user.ID)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)

	var failed int
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
			require.Equal(t, badJTI, o.JTI)
		}
	}
	require.Equal(t, 1, failed)

	// БД — источник истины: отозваны все, несмотря на отказ кэша.
	require.Equal(t, 0, str.liveTokens(user.ID))
}

func TestRefresh_ConcurrentRotationSingleWinner(t *testing.T) {
	t.Parallel()

	str := newFakeStorage()
	c := newFakeCache()
	svc := newTestService(str, c)

	user, first := registerTestUser(t, svc)

	// Первая ротация выигрывает.
	_, _, err := svc.Refresh(context.Background(), first.RefreshToken)
	require.NoError(t, err)

	// «Конкурент» с тем же токеном проигрывает: CAD в кэше уже снял запись,
	// а в БД старая пара мягко удалена.
	_, _, err = svc.Refresh(context.Background(), first.RefreshToken)
	require.Error(t, err)
	require.True(t,
		errors.Is(err, ErrTokenRevoked) || errors.Is(err, ErrMissingRefreshToken),
		"unexpected error: %v", err)

	require.Equal(t, 1, str.liveTokens(user.ID))
}
