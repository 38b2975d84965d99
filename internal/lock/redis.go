package lock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	keyPrefix         = "dm:pairlock:"
	defaultTTL        = 5 * time.Second
	defaultRetryEvery = 25 * time.Millisecond
)

// releaseScript deletes the key only while it still holds our token, so an
// expired holder never frees a lock someone else has since taken.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Redis is a pair lock shared by every server instance pointed at the same
// Redis. A holder that dies keeps the pair locked for at most TTL.
type Redis struct {
	Client     *redis.Client
	TTL        time.Duration
	RetryEvery time.Duration
	// Wait bounds how long LockPair polls; zero means TTL.
	Wait   time.Duration
	Logger *slog.Logger
}

func NewRedis(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Redis {
	return &Redis{Client: client, TTL: ttl, Logger: logger}
}

func (l *Redis) LockPair(ctx context.Context, userA, userB string) (func(), error) {
	key := keyPrefix + PairKey(userA, userB)
	token := uuid.NewString()
	ttl := l.ttl()

	wait := l.Wait
	if wait <= 0 {
		wait = ttl
	}
	deadline := time.NewTimer(wait)
	defer deadline.Stop()

	retry := l.RetryEvery
	if retry <= 0 {
		retry = defaultRetryEvery
	}
	ticker := time.NewTicker(retry)
	defer ticker.Stop()

	for {
		ok, err := l.Client.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire pair lock: %w", err)
		}
		if ok {
			return func() { l.release(key, token) }, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, ErrTimeout
		case <-ticker.C:
		}
	}
}

func (l *Redis) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := releaseScript.Run(ctx, l.Client, []string{key}, token).Err(); err != nil {
		logger := l.Logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("release pair lock failed", "key", key, "err", err)
	}
}

func (l *Redis) ttl() time.Duration {
	if l.TTL > 0 {
		return l.TTL
	}
	return defaultTTL
}
