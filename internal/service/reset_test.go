package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/morozovaek/go-social-backend/internal/models"
)

// storedOTP — утилита: достаёт живую OTP-запись субъекта из фейкового кэша.
func storedOTP(t *testing.T, c *fakeCache, owner models.Owner, subjectID uuid.UUID) string {
	t.Helper()

	rec, ok, err := c.OTP(context.Background(), owner, subjectID)
	require.NoError(t, err)
	require.True(t, ok)

	return rec.OTP
}

func TestResetFlow_Success(t *testing.T) {
	t.Parallel()

	str := newFakeStorage()
	c := newFakeCache()
	svc := newTestService(str, c)

	user, _ := registerTestUser(t, svc)

	flowID, err := svc.ResetInit(context.Background(), models.OwnerUser, "user@example.com")
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, flowID)

	otp := storedOTP(t, c, user.Owner, user.ID)
	require.Len(t, otp, testOTPConfig().Length)

	resetToken, err := svc.ResetVerify(context.Background(), flowID, otp)
	require.NoError(t, err)
	require.NotEmpty(t, resetToken)

	require.NoError(t, svc.ResetConfirm(context.Background(), resetToken, "NewStr0ngPass"))

	// Старый пароль больше не работает, новый — работает.
	_, _, err = svc.SignIn(context.Background(), models.OwnerUser, "user@example.com", "Str0ngPass")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.SignIn(context.Background(), models.OwnerUser, "user@example.com", "NewStr0ngPass")
	require.NoError(t, err)
}

func TestResetConfirm_RevokesAllSessions(t *testing.T) {
	t.Parallel()

	str := newFakeStorage()
	c := newFakeCache()
	svc := newTestService(str, c)

	user, pair := registerTestUser(t, svc)

	flowID, err := svc.ResetInit(context.Background(), models.OwnerUser, "user@example.com")
	require.NoError(t, err)

	otp := storedOTP(t, c, user.Owner, user.ID)
	resetToken, err := svc.ResetVerify(context.Background(), flowID, otp)
	require.NoError(t, err)

	require.NoError(t, svc.ResetConfirm(context.Background(), resetToken, "NewStr0ngPass"))

	// Все прежние сессии отозваны.
	require.Equal(t, 0, str.liveTokens(user.ID))

	_, _, err = svc.Refresh(context.Background(), pair.RefreshToken)
	require.Error(t, err)
}

func TestResetVerify_WrongOTPCountsAttempt(t *testing.T) {
	t.Parallel()

	str := newFakeStorage()
	c := newFakeCache()
	svc := newTestService(str, c)

	user, _ := registerTestUser(t, svc)

	flowID, err := svc.ResetInit(context.Background(), models.OwnerUser, "user@example.com")
	require.NoError(t, err)

	_, err = svc.ResetVerify(context.Background(), flowID, "000000")
	require.ErrorIs(t, err, ErrOTPInvalid)

	rec, ok, err := c.OTP(context.Background(), user.Owner, user.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, rec.Attempts)
}

func TestResetVerify_LockoutBlocksEvenCorrectOTP(t *testing.T) {
	t.Parallel()

	str := newFakeStorage()
	c := newFakeCache()
	svc := newTestService(str, c)

	user, _ := registerTestUser(t, svc)

	flowID, err := svc.ResetInit(context.Background(), models.OwnerUser, "user@example.com")
	require.NoError(t, err)

	otp := storedOTP(t, c, user.Owner, user.ID)

	// Неверный код, пока не исчерпан лимит попыток.
	wrong := "000000"
	if wrong == otp {
		wrong = "000001"
	}
	for i := 0; i < testOTPConfig().MaxAttempts; i++ {
		_, err = svc.ResetVerify(context.Background(), flowID, wrong)
		require.ErrorIs(t, err, ErrOTPInvalid)
	}

	// Лимит исчерпан: даже верный код отклоняется.
	_, err = svc.ResetVerify(context.Background(), flowID, otp)
	require.ErrorIs(t, err, ErrOTPMaxAttempts)
}

func TestResetVerify_ExpiredOTP(t *testing.T) {
	t.Parallel()

	str := newFakeStorage()
	c := newFakeCache()
	svc := newTestService(str, c)

	user, _ := registerTestUser(t, svc)

	flowID, err := svc.ResetInit(context.Background(), models.OwnerUser, "user@example.com")
	require.NoError(t, err)

	// Сдвигаем срок записи в прошлое.
	rec, ok, err := c.OTP(context.Background(), user.Owner, user.ID)
	require.NoError(t, err)
	require.True(t, ok)
	rec.ExpiresAt = time.Now().UTC().Add(-time.Minute)
	require.NoError(t, c.UpdateOTP(context.Background(), user.Owner, user.ID, rec))

	_, err = svc.ResetVerify(context.Background(), flowID, rec.OTP)
	require.ErrorIs(t, err, ErrOTPExpired)
}

func TestResetVerify_UnknownFlow(t *testing.T) {
	t.Parallel()

	svc := newTestService(newFakeStorage(), newFakeCache())

	_, err := svc.ResetVerify(context.Background(), uuid.New(), "123456")
	require.ErrorIs(t, err, ErrOTPExpired)
}

func TestResetVerify_OTPIsSingleUse(t *testing.T) {
	t.Parallel()

	str := newFakeStorage()
	c := newFakeCache()
	svc := newTestService(str, c)

	user, _ := registerTestUser(t, svc)

	flowID, err := svc.ResetInit(context.Background(), models.OwnerUser, "user@example.com")
	require.NoError(t, err)

	otp := storedOTP(t, c, user.Owner, user.ID)

	_, err = svc.ResetVerify(context.Background(), flowID, otp)
	require.NoError(t, err)

	// Повтор того же кода невозможен: запись и флоу уничтожены.
	_, err = svc.ResetVerify(context.Background(), flowID, otp)
	require.ErrorIs(t, err, ErrOTPExpired)
}

func TestResetInit_RateLimited(t *testing.T) {
	t.Parallel()

	str := newFakeStorage()
	c := newFakeCache()

	limits := testLimits()
	limits.ResetLimit = 2
	svc := New(str, c, c, c, testAuthConfig(), testOTPConfig(), limits)

	registerTestUser(t, svc)

	for i := 0; i < 2; i++ {
		_, err := svc.ResetInit(context.Background(), models.OwnerUser, "user@example.com")
		require.NoError(t, err)
	}

	_, err := svc.ResetInit(context.Background(), models.OwnerUser, "user@example.com")
	require.ErrorIs(t, err, ErrRateLimited)
}

func TestResetInit_ReissueOverwritesOTP(t *testing.T) {
	t.Parallel()

	str := newFakeStorage()
	c := newFakeCache()
	svc := newTestService(str, c)

	user, _ := registerTestUser(t, svc)

	flow1, err := svc.ResetInit(context.Background(), models.OwnerUser, "user@example.com")
	require.NoError(t, err)
	otp1 := storedOTP(t, c, user.Owner, user.ID)

	flow2, err := svc.ResetInit(context.Background(), models.OwnerUser, "user@example.com")
	require.NoError(t, err)
	otp2 := storedOTP(t, c, user.Owner, user.ID)

	require.NotEqual(t, flow1, flow2)

	// Старый код для новой записи не подходит (кроме маловероятного совпадения).
	if otp1 != otp2 {
		_, err = svc.ResetVerify(context.Background(), flow2, otp1)
		require.ErrorIs(t, err, ErrOTPInvalid)
	}

	_, err = svc.ResetVerify(context.Background(), flow2, otp2)
	require.NoError(t, err)
}

func TestResetConfirm_WeakPassword(t *testing.T) {
	t.Parallel()

	str := newFakeStorage()
	c := newFakeCache()
	svc := newTestService(str, c)

	user, _ := registerTestUser(t, svc)

	flowID, err := svc.ResetInit(context.Background(), models.OwnerUser, "user@example.com")
	require.NoError(t, err)

	otp := storedOTP(t, c, user.Owner, user.ID)
	resetToken, err := svc.ResetVerify(context.Background(), flowID, otp)
	require.NoError(t, err)

	require.ErrorIs(t, svc.ResetConfirm(context.Background(), resetToken, "short"), ErrWeakPassword)
}

func TestResetConfirm_RejectsAccessToken(t *testing.T) {
	t.Parallel()

	svc := newTestService(newFakeStorage(), newFakeCache())

	_, pair := registerTestUser(t, svc)

	err := svc.ResetConfirm(context.Background(), pair.AccessToken, "NewStr0ngPass")
	require.ErrorIs(t, err, ErrTokenTypeMismatch)
}

func TestGenerateOTP_NumericAndSized(t *testing.T) {
	t.Parallel()

	otp, err := generateOTP(6)
	require.NoError(t, err)
	require.Len(t, otp, 6)
	for _, r := range otp {
		require.True(t, r >= '0' && r <= '9')
	}
}

func TestCompareOTP(t *testing.T) {
	t.Parallel()

	require.True(t, compareOTP("123456", "123456"))
	require.False(t, compareOTP("123456", "123457"))
	require.False(t, compareOTP("123456", "12345"))
}
