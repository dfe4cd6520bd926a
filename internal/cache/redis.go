package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Cache backed by Redis. Each tag is a set of the keys carrying
// it; tag sets live at least as long as their newest member.
type Redis struct {
	rdb    *redis.Client
	prefix string
}

// NewRedis returns a Redis cache namespacing keys under prefix.
func NewRedis(rdb *redis.Client, prefix string) *Redis {
	return &Redis{rdb: rdb, prefix: prefix}
}

func (c *Redis) key(k string) string { return c.prefix + "cache:" + k }
func (c *Redis) tag(t string) string { return c.prefix + "tag:" + t }

func (c *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	b, err := c.rdb.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		slog.Warn("cache get failed", "key", key, "err", err)
		return nil, false
	}
	return b, true
}

func (c *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags ...string) {
	pipe := c.rdb.TxPipeline()
	pipe.Set(ctx, c.key(key), value, ttl)
	for _, t := range tags {
		pipe.SAdd(ctx, c.tag(t), c.key(key))
		pipe.Expire(ctx, c.tag(t), ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		slog.Warn("cache set failed", "key", key, "err", err)
	}
}

// invalidateScript drops every member of each tag set and then the set
// itself, so a concurrent Set cannot slip in between reading and deleting.
var invalidateScript = redis.NewScript(`
for _, tag in ipairs(KEYS) do
  local members = redis.call('SMEMBERS', tag)
  for i = 1, #members, 500 do
    redis.call('DEL', unpack(members, i, math.min(i + 499, #members)))
  end
  redis.call('DEL', tag)
end
return #KEYS
`)

func (c *Redis) Invalidate(ctx context.Context, tags ...string) {
	if len(tags) == 0 {
		return
	}
	keys := make([]string, len(tags))
	for i, t := range tags {
		keys[i] = c.tag(t)
	}
	if err := invalidateScript.Run(ctx, c.rdb, keys).Err(); err != nil {
		slog.Warn("cache invalidate failed", "tags", tags, "err", err)
	}
}
