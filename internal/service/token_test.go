package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/morozovaek/go-social-backend/internal/models"
)

func TestToken_RoundTrip(t *testing.T) {
	t.Parallel()

	svc := newTestService(newFakeStorage(), newFakeCache())

	subjectID := uuid.New()
	jti := uuid.New()
	now := time.Now().UTC()

	raw, err := svc.signToken(subjectID, models.OwnerUser, TokenKindAccess, jti, now, time.Hour)
	require.NoError(t, err)

	claims, err := svc.verifyToken(raw, TokenKindAccess)
	require.NoError(t, err)

	gotSubject, err := claims.subjectID()
	require.NoError(t, err)
	require.Equal(t, subjectID, gotSubject)

	gotJTI, err := claims.jti()
	require.NoError(t, err)
	require.Equal(t, jti, gotJTI)

	gotOwner, err := claims.owner()
	require.NoError(t, err)
	require.Equal(t, models.OwnerUser, gotOwner)
}

func TestToken_Expired(t *testing.T) {
	t.Parallel()

	svc := newTestService(newFakeStorage(), newFakeCache())

	// Выпущен час назад с TTL в минуту: заведомо за пределами leeway.
	issued := time.Now().UTC().Add(-time.Hour)
	raw, err := svc.signToken(uuid.New(), models.OwnerUser, TokenKindAccess, uuid.New(), issued, time.Minute)
	require.NoError(t, err)

	_, err = svc.verifyToken(raw, TokenKindAccess)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestToken_Tampered(t *testing.T) {
	t.Parallel()

	svc := newTestService(newFakeStorage(), newFakeCache())

	raw, err := svc.signToken(uuid.New(), models.OwnerUser, TokenKindAccess, uuid.New(), time.Now().UTC(), time.Hour)
	require.NoError(t, err)

	tampered := raw[:len(raw)-4] + "AAAA"
	_, err = svc.verifyToken(tampered, TokenKindAccess)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestToken_WrongSecret(t *testing.T) {
	t.Parallel()

	svc := newTestService(newFakeStorage(), newFakeCache())

	otherCfg := testAuthConfig()
	otherCfg.JWTSecret = "another-secret"
	other := New(newFakeStorage(), newFakeCache(), newFakeCache(), newFakeCache(),
		otherCfg, testOTPConfig(), testLimits())

	raw, err := other.signToken(uuid.New(), models.OwnerUser, TokenKindAccess, uuid.New(), time.Now().UTC(), time.Hour)
	require.NoError(t, err)

	_, err = svc.verifyToken(raw, TokenKindAccess)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestToken_WrongIssuer(t *testing.T) {
	t.Parallel()

	svc := newTestService(newFakeStorage(), newFakeCache())

	otherCfg := testAuthConfig()
	otherCfg.Issuer = "some-other-service"
	other := New(newFakeStorage(), newFakeCache(), newFakeCache(), newFakeCache(),
		otherCfg, testOTPConfig(), testLimits())

	raw, err := other.signToken(uuid.New(), models.OwnerUser, TokenKindAccess, uuid.New(), time.Now().UTC(), time.Hour)
	require.NoError(t, err)

	_, err = svc.verifyToken(raw, TokenKindAccess)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestToken_KindMismatch(t *testing.T) {
	t.Parallel()

	svc := newTestService(newFakeStorage(), newFakeCache())

	raw, err := svc.signToken(uuid.New(), models.OwnerUser, TokenKindRefresh, uuid.New(), time.Now().UTC(), time.Hour)
	require.NoError(t, err)

	_, err = svc.verifyToken(raw, TokenKindAccess)
	require.ErrorIs(t, err, ErrTokenTypeMismatch)
}

func TestAuthenticate_ReturnsActor(t *testing.T) {
	t.Parallel()

	svc := newTestService(newFakeStorage(), newFakeCache())

	subjectID := uuid.New()
	raw, err := svc.signToken(subjectID, models.OwnerAdmin, TokenKindAccess, uuid.New(), time.Now().UTC(), time.Hour)
	require.NoError(t, err)

	actor, err := svc.Authenticate(raw)
	require.NoError(t, err)
	require.Equal(t, models.OwnerAdmin, actor.Owner)
	require.Equal(t, subjectID, actor.ID)
	require.True(t, actor.IsAdmin())
}

func TestHashRefreshToken_Deterministic(t *testing.T) {
	t.Parallel()

	a := hashRefreshToken("token-one")
	b := hashRefreshToken("token-one")
	c := hashRefreshToken("token-two")

	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
	// base64url без паддинга от SHA-256: 43 символа.
	require.Len(t, a, 43)
}
