package steamid

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache memoizes vanity lookups. Redis failures fall through to the
// wrapped lookup.
type RedisCache struct {
	rdb  redis.UniversalClient
	next VanityLookup
	ttl  time.Duration
}

// NewRedisCache wraps next with a redis-backed cache.
func NewRedisCache(rdb redis.UniversalClient, next VanityLookup, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, next: next, ttl: ttl}
}

func cacheKey(name string) string {
	return "steamid:vanity:{" + strings.ToLower(name) + "}"
}

func (c *RedisCache) ResolveVanity(ctx context.Context, name string) (SID64, error) {
	key := cacheKey(name)

	val, err := c.rdb.Get(ctx, key).Result()
	switch {
	case err == nil:
		if sid, perr := Parse(val); perr == nil {
			return sid, nil
		}
		slog.Warn("discarding invalid cached steam id", "key", key, "value", val)
	case !errors.Is(err, redis.Nil):
		slog.Warn("steam id cache read failed", "key", key, "err", err)
	}

	sid, err := c.next.ResolveVanity(ctx, name)
	if err != nil {
		return 0, err
	}

	if err := c.rdb.Set(ctx, key, format(sid), c.ttl).Err(); err != nil {
		slog.Warn("steam id cache write failed", "key", key, "err", err)
	}
	return sid, nil
}
