package cooldown

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nao1215/exitswitch/internal/model"
)

// DefaultRedisPrefix namespaces every key written by RedisStore.
const DefaultRedisPrefix = "exitswitch"

// RedisStore shares rotation state across hosts. A tier's window is a key
// set with NX and a PX expiry equal to the cooldown, so Redis itself decides
// which caller wins and when the window reopens.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithRedisPrefix overrides DefaultRedisPrefix.
func WithRedisPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, prefix: DefaultRedisPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OpenRedisStore connects to addr and verifies the server answers PING.
func OpenRedisStore(ctx context.Context, addr, password string, db int, opts ...RedisOption) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return NewRedisStore(client, opts...), nil
}

func (s *RedisStore) windowKey(tier model.Tier) string {
	return s.prefix + ":cooldown:" + tier.String()
}

func (s *RedisStore) sessionKey() string {
	return s.prefix + ":session:" + model.TierPaid.String()
}

// Reserve implements Store. The timestamp argument is only recorded; window
// expiry follows the Redis server clock.
func (s *RedisStore) Reserve(ctx context.Context, tier model.Tier, now time.Time, cooldown time.Duration) (time.Duration, error) {
	value := strconv.FormatInt(now.UnixNano(), 10)
	key := s.windowKey(tier)

	if cooldown <= 0 {
		if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
			return 0, fmt.Errorf("failed to record rotation: %w", err)
		}
		return 0, nil
	}

	ok, err := s.client.SetNX(ctx, key, value, cooldown).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to reserve window: %w", err)
	}
	if ok {
		return 0, nil
	}

	remaining, err := s.pttl(ctx, key, cooldown)
	if err != nil {
		return 0, err
	}
	if remaining == 0 {
		// The window expired between SETNX and PTTL. Report the shortest
		// possible wait rather than racing for the slot again.
		remaining = time.Millisecond
	}
	return remaining, nil
}

// Remaining implements Store.
func (s *RedisStore) Remaining(ctx context.Context, tier model.Tier, _ time.Time, cooldown time.Duration) (time.Duration, error) {
	if cooldown <= 0 {
		return 0, nil
	}
	return s.pttl(ctx, s.windowKey(tier), cooldown)
}

func (s *RedisStore) pttl(ctx context.Context, key string, cooldown time.Duration) (time.Duration, error) {
	ttl, err := s.client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read window ttl: %w", err)
	}
	// Missing keys and keys without expiry report negative values.
	if ttl <= 0 {
		return 0, nil
	}
	if ttl > cooldown {
		return cooldown, nil
	}
	return ttl, nil
}

// PublishSession stores the paid session token for other workers.
func (s *RedisStore) PublishSession(ctx context.Context, token string) error {
	if err := s.client.Set(ctx, s.sessionKey(), token, 0).Err(); err != nil {
		return fmt.Errorf("failed to publish session token: %w", err)
	}
	return nil
}

// ClaimSession stores token with SETNX unless a token is already shared,
// then returns the shared token.
func (s *RedisStore) ClaimSession(ctx context.Context, token string) (string, error) {
	if err := s.client.SetNX(ctx, s.sessionKey(), token, 0).Err(); err != nil {
		return "", fmt.Errorf("failed to claim session token: %w", err)
	}
	return s.LoadSession(ctx)
}

// LoadSession returns the shared paid session token, or "" if none exists.
func (s *RedisStore) LoadSession(ctx context.Context) (string, error) {
	token, err := s.client.Get(ctx, s.sessionKey()).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load session token: %w", err)
	}
	return token, nil
}

// Shared implements Store.
func (s *RedisStore) Shared() bool {
	return true
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
