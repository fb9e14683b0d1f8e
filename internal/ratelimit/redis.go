package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ratelimit:"

// RedisStore shares fixed windows between server instances. The first hit
// of a window sets its expiry; later hits only increment.
type RedisStore struct {
	client *redis.Client
	limit  int
	period time.Duration
	now    func() time.Time
}

func NewRedisStore(client *redis.Client, limit int, period time.Duration) *RedisStore {
	return &RedisStore{client: client, limit: limit, period: period, now: time.Now}
}

// NewRedisClient parses url and checks the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

func (s *RedisStore) Admit(ctx context.Context, key string) (Decision, error) {
	k := keyPrefix + key

	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.Do(ctx, "PEXPIRE", k, s.period.Milliseconds(), "NX")
		ttl = pipe.PTTL(ctx, k)
		return nil
	})
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit %s: %w", key, err)
	}

	remaining := ttl.Val()
	if remaining <= 0 {
		remaining = s.period
	}
	return decide(s.limit, incr.Val(), s.now().Add(remaining)), nil
}
