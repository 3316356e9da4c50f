// cache — быстрый путь поверх Redis: сессионные записи refresh-токенов,
// индекс живых jti субъекта, OTP-записи восстановления пароля и счётчики
// rate-лимитера.
//
// Долговременное хранилище (storage) остаётся источником истины; кэш может
// отставать или терять записи, и это не считается отзывом сессии — сервисный
// слой делает read-through в БД на промахе.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/morozovaek/go-social-backend/internal/models"
	"github.com/morozovaek/go-social-backend/internal/pkg/crypto"
)

// SessionCache — контракт быстрого пути сессий.
type SessionCache interface {
	// SetSession сохраняет хэш refresh-токена и добавляет jti в индекс субъекта.
	SetSession(ctx context.Context, owner models.Owner, ownerID, jti uuid.UUID, hash string, ttl time.Duration) error
	// SessionHash возвращает хэш и признак наличия записи.
	SessionHash(ctx context.Context, owner models.Owner, ownerID, jti uuid.UUID) (string, bool, error)
	// CompareAndDeleteSession атомарно удаляет запись, только если её значение
	// равно ожидаемому хэшу. Возвращает true, если удаление произошло:
	// из двух конкурентных ротаций одного jti выигрывает ровно одна.
	CompareAndDeleteSession(ctx context.Context, owner models.Owner, ownerID, jti uuid.UUID, expectedHash string) (bool, error)
	// DeleteSession удаляет запись и убирает jti из индекса (идемпотентно).
	DeleteSession(ctx context.Context, owner models.Owner, ownerID, jti uuid.UUID) error
	// SessionJTIs возвращает индекс живых jti субъекта.
	// Индекс поддерживается best-effort и является подсказкой, а не истиной.
	SessionJTIs(ctx context.Context, owner models.Owner, ownerID uuid.UUID) ([]uuid.UUID, error)
	Close() error
}

// Cache — Redis-клиент со всеми быстрыми контрактами сервиса.
type Cache struct {
	rdb    *redis.Client
	cipher *crypto.Cipher
}

// New создаёт клиент Redis из URL (например, redis://:pass@host:6379/0).
// Cipher используется для шифрования OTP-записей; nil допустим, если
// OTP-поток не сконфигурирован.
func New(redisURL string, cipher *crypto.Cipher) (*Cache, error) {
	const op = "cache/New"

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rdb := redis.NewClient(opt)

	// Fail-fast на старте.
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Cache{rdb: rdb, cipher: cipher}, nil
}

func (c *Cache) Close() error { return c.rdb.Close() }

// Ключевые пространства (см. также otp.go и ratelimit.go):
//   rt:{owner}:{id}:{jti}  — хэш refresh-токена, TTL = срок refresh-токена;
//   {owner}:{id}:tokens    — SET живых jti субъекта.

func sessionKey(owner models.Owner, ownerID, jti uuid.UUID) string {
	return fmt.Sprintf("rt:%s:%s:%s", owner, ownerID, jti)
}

func indexKey(owner models.Owner, ownerID uuid.UUID) string {
	return fmt.Sprintf("%s:%s:tokens", owner, ownerID)
}

// compareAndDeleteScript удаляет сессионный ключ, только если его значение
// совпало с ожидаемым, и синхронно чистит индекс. Выполняется в Redis
// атомарно, поэтому конкурентные ротации не могут пройти проверку вдвоём.
var compareAndDeleteScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	redis.call("DEL", KEYS[1])
	redis.call("SREM", KEYS[2], ARGV[2])
	return 1
end
return 0
`)

func (c *Cache) SetSession(ctx context.Context, owner models.Owner, ownerID, jti uuid.UUID, hash string, ttl time.Duration) error {
	const op = "cache/SetSession"

	pipe := c.rdb.TxPipeline()
	pipe.Set(ctx, sessionKey(owner, ownerID, jti), hash, ttl)
	pipe.SAdd(ctx, indexKey(owner, ownerID), jti.String())
	// Индекс живёт не дольше самой длинной сессии.
	pipe.Expire(ctx, indexKey(owner, ownerID), ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (c *Cache) SessionHash(ctx context.Context, owner models.Owner, ownerID, jti uuid.UUID) (string, bool, error) {
	const op = "cache/SessionHash"

	hash, err := c.rdb.Get(ctx, sessionKey(owner, ownerID, jti)).Result()
	if err != nil {
		if err == redis.Nil {
			return "", false, nil
		}

		return "", false, fmt.Errorf("%s: %w", op, err)
	}

	return hash, true, nil
}

func (c *Cache) CompareAndDeleteSession(ctx context.Context, owner models.Owner, ownerID, jti uuid.UUID, expectedHash string) (bool, error) {
	const op = "cache/CompareAndDeleteSession"

	keys := []string{sessionKey(owner, ownerID, jti), indexKey(owner, ownerID)}

	n, err := compareAndDeleteScript.Run(ctx, c.rdb, keys, expectedHash, jti.String()).Int()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return n == 1, nil
}

func (c *Cache) DeleteSession(ctx context.Context, owner models.Owner, ownerID, jti uuid.UUID) error {
	const op = "cache/DeleteSession"

	pipe := c.rdb.TxPipeline()
	pipe.Del(ctx, sessionKey(owner, ownerID, jti))
	pipe.SRem(ctx, indexKey(owner, ownerID), jti.String())

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (c *Cache) SessionJTIs(ctx context.Context, owner models.Owner, ownerID uuid.UUID) ([]uuid.UUID, error) {
	const op = "cache/SessionJTIs"

	members, err := c.rdb.SMembers(ctx, indexKey(owner, ownerID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	jtis := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		id, err := uuid.Parse(m)
		if err != nil {
			// Повреждённый элемент индекса пропускаем: индекс — подсказка.
			continue
		}

		jtis = append(jtis, id)
	}

	return jtis, nil
}

// Проверка соответствия контрактам.
var (
	_ SessionCache = (*Cache)(nil)
	_ OTPStore     = (*Cache)(nil)
	_ Limiter      = (*Cache)(nil)
)
