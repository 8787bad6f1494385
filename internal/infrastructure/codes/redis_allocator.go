package codes

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "possession:code_seq:"

// counterTTL keeps a day's counter around long enough to cover clock skew across midnight.
const counterTTL = 48 * time.Hour

// SeedFunc reports the highest sequence already used under a day prefix.
type SeedFunc func(ctx context.Context, dayPrefix string) (int, error)

// RedisAllocator uses INCR on a per-day key. The key is seeded once with SETNX from the
// table's highest code so a fresh Redis never reissues an existing code.
type RedisAllocator struct {
	Rdb    *redis.Client
	Prefix string
	Seed   SeedFunc
	Now    func() time.Time
}

func (a *RedisAllocator) Allocate(ctx context.Context) (string, error) {
	now := time.Now()
	if a.Now != nil {
		now = a.Now()
	}
	dayPrefix := DayPrefix(a.Prefix, now)
	key := redisKeyPrefix + dayPrefix

	exists, err := a.Rdb.Exists(ctx, key).Result()
	if err != nil {
		return "", fmt.Errorf("allocate possession code: %w", err)
	}
	if exists == 0 {
		start := 0
		if a.Seed != nil {
			if start, err = a.Seed(ctx, dayPrefix); err != nil {
				return "", fmt.Errorf("allocate possession code: %w", err)
			}
		}
		if err := a.Rdb.SetNX(ctx, key, start, counterTTL).Err(); err != nil {
			return "", fmt.Errorf("allocate possession code: %w", err)
		}
	}
	seq, err := a.Rdb.Incr(ctx, key).Result()
	if err != nil {
		return "", fmt.Errorf("allocate possession code: %w", err)
	}
	return Format(dayPrefix, int(seq)), nil
}
