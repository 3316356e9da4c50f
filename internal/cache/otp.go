package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/morozovaek/go-social-backend/internal/models"
)

// ErrCipherRequired — OTP-операции требуют сконфигурированного шифратора.
var ErrCipherRequired = errors.New("otp store requires a cipher")

// OTPRecord — запись одноразового кода восстановления пароля.
// На субъекта живёт не более одной записи; повторная выдача перезаписывает
// предыдущую. Хранится в Redis в зашифрованном виде (AES-GCM).
type OTPRecord struct {
	OTP       string    `json:"otp"`
	FlowID    uuid.UUID `json:"flow_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Attempts  int       `json:"attempts"`
}

// OTPStore — контракт хранилища OTP-записей и reset-флоу.
type OTPStore interface {
	// SaveOTP сохраняет запись с TTL, перезаписывая предыдущую.
	SaveOTP(ctx context.Context, owner models.Owner, subjectID uuid.UUID, rec *OTPRecord, ttl time.Duration) error
	// OTP возвращает запись и признак её наличия.
	OTP(ctx context.Context, owner models.Owner, subjectID uuid.UUID) (*OTPRecord, bool, error)
	// UpdateOTP перезаписывает запись, сохраняя остаточный TTL ключа.
	UpdateOTP(ctx context.Context, owner models.Owner, subjectID uuid.UUID, rec *OTPRecord) error
	// DeleteOTP удаляет запись (одноразовость кода).
	DeleteOTP(ctx context.Context, owner models.Owner, subjectID uuid.UUID) error
	// SaveFlow связывает flow_id с субъектом на время окна OTP.
	SaveFlow(ctx context.Context, flowID uuid.UUID, owner models.Owner, subjectID uuid.UUID, ttl time.Duration) error
	// Flow возвращает субъект флоу и признак наличия.
	Flow(ctx context.Context, flowID uuid.UUID) (models.Owner, uuid.UUID, bool, error)
	// DeleteFlow удаляет флоу.
	DeleteFlow(ctx context.Context, flowID uuid.UUID) error
}

func otpKey(owner models.Owner, subjectID uuid.UUID) string {
	return fmt.Sprintf("password-reset:otp:%s:%s", owner, subjectID)
}

func flowKey(flowID uuid.UUID) string {
	return fmt.Sprintf("password-reset:flow:%s", flowID)
}

func (c *Cache) sealOTP(rec *OTPRecord) ([]byte, error) {
	if c.cipher == nil {
		return nil, ErrCipherRequired
	}

	plain, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}

	return c.cipher.Encrypt(plain)
}

func (c *Cache) openOTP(data []byte) (*OTPRecord, error) {
	if c.cipher == nil {
		return nil, ErrCipherRequired
	}

	plain, err := c.cipher.Decrypt(data)
	if err != nil {
		return nil, err
	}

	var rec OTPRecord
	if err := json.Unmarshal(plain, &rec); err != nil {
		return nil, err
	}

	return &rec, nil
}

func (c *Cache) SaveOTP(ctx context.Context, owner models.Owner, subjectID uuid.UUID, rec *OTPRecord, ttl time.Duration) error {
	const op = "cache/SaveOTP"

	sealed, err := c.sealOTP(rec)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := c.rdb.Set(ctx, otpKey(owner, subjectID), sealed, ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (c *Cache) OTP(ctx context.Context, owner models.Owner, subjectID uuid.UUID) (*OTPRecord, bool, error) {
	const op = "cache/OTP"

	data, err := c.rdb.Get(ctx, otpKey(owner, subjectID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	rec, err := c.openOTP(data)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	return rec, true, nil
}

func (c *Cache) UpdateOTP(ctx context.Context, owner models.Owner, subjectID uuid.UUID, rec *OTPRecord) error {
	const op = "cache/UpdateOTP"

	sealed, err := c.sealOTP(rec)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	// KeepTTL: счётчик попыток растёт, окно действия кода не продлевается.
	if err := c.rdb.Set(ctx, otpKey(owner, subjectID), sealed, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (c *Cache) DeleteOTP(ctx context.Context, owner models.Owner, subjectID uuid.UUID) error {
	const op = "cache/DeleteOTP"

	if err := c.rdb.Del(ctx, otpKey(owner, subjectID)).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (c *Cache) SaveFlow(ctx context.Context, flowID uuid.UUID, owner models.Owner, subjectID uuid.UUID, ttl time.Duration) error {
	const op = "cache/SaveFlow"

	value := fmt.Sprintf("%s:%s", owner, subjectID)

	if err := c.rdb.Set(ctx, flowKey(flowID), value, ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (c *Cache) Flow(ctx context.Context, flowID uuid.UUID) (models.Owner, uuid.UUID, bool, error) {
	const op = "cache/Flow"

	value, err := c.rdb.Get(ctx, flowKey(flowID)).Result()
	if err != nil {
		if err == redis.Nil {
			return "", uuid.Nil, false, nil
		}

		return "", uuid.Nil, false, fmt.Errorf("%s: %w", op, err)
	}

	var owner models.Owner
	var rawID string
	switch {
	case len(value) > len(models.OwnerUser)+1 && value[:len(models.OwnerUser)] == string(models.OwnerUser):
		owner = models.OwnerUser
		rawID = value[len(models.OwnerUser)+1:]
	case len(value) > len(models.OwnerAdmin)+1 && value[:len(models.OwnerAdmin)] == string(models.OwnerAdmin):
		owner = models.OwnerAdmin
		rawID = value[len(models.OwnerAdmin)+1:]
	default:
		return "", uuid.Nil, false, fmt.Errorf("%s: malformed flow value", op)
	}

	id, err := uuid.Parse(rawID)
	if err != nil {
		return "", uuid.Nil, false, fmt.Errorf("%s: %w", op, err)
	}

	return owner, id, true, nil
}

func (c *Cache) DeleteFlow(ctx context.Context, flowID uuid.UUID) error {
	const op = "cache/DeleteFlow"

	if err := c.rdb.Del(ctx, flowKey(flowID)).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
