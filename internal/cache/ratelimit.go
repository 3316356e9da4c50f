package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// LimitResult — результат учёта обращения в фиксированном окне.
type LimitResult struct {
	TotalHits int64
	Blocked   bool
}

// Limiter — атомарный счётчик обращений с фиксированным окном.
type Limiter interface {
	// Hit учитывает одно обращение по ключу и сообщает, превышен ли лимит.
	Hit(ctx context.Context, name, key string, window time.Duration, limit int64) (LimitResult, error)
}

// hitScript инкрементирует счётчик и выставляет TTL только на первом
// обращении в окне: окно фиксированное, не скользящее. INCR+PEXPIRE в одном
// скрипте, а не read-then-write, чтобы конкурентные запросы не теряли хиты.
var hitScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

func throttleKey(name, key string) string {
	return fmt.Sprintf("throttler:%s:%s", name, key)
}

func (c *Cache) Hit(ctx context.Context, name, key string, window time.Duration, limit int64) (LimitResult, error) {
	const op = "cache/Hit"

	n, err := hitScript.Run(ctx, c.rdb, []string{throttleKey(name, key)}, window.Milliseconds()).Int64()
	if err != nil {
		return LimitResult{}, fmt.Errorf("%s: %w", op, err)
	}

	return LimitResult{TotalHits: n, Blocked: n > limit}, nil
}
