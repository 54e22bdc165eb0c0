package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/flightops/flightops/pkg/observability"
)

// Redis tier defaults
const (
	DefaultRedisConnectTimeout   = 5 * time.Second
	DefaultRedisOperationTimeout = 2 * time.Second
	DefaultRedisScanBatch        = 100
)

// RedisConfig configures the distributed cache tier
type RedisConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	Addr             string        `mapstructure:"addr"`
	Password         string        `mapstructure:"password"`
	DB               int           `mapstructure:"db"`
	KeyPrefix        string        `mapstructure:"key_prefix"`
	ConnectTimeout   time.Duration `mapstructure:"connect_timeout"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout"`
}

// RedisTier is the distributed cache tier backed by a Redis-compatible
// server. Every call is bounded by an operation timeout and wrapped in a
// circuit breaker so a flapping server cannot impose its timeout on every
// request once it has started failing.
type RedisTier struct {
	client    *redis.Client
	breaker   *gobreaker.CircuitBreaker
	keyPrefix string
	opTimeout time.Duration
	logger    observability.Logger
}

// NewRedisTier connects to the distributed tier and verifies it with a ping.
// A connection failure is returned to the caller; the gateway decides whether
// that means local-only mode.
func NewRedisTier(cfg RedisConfig, logger observability.Logger) (*RedisTier, error) {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultRedisConnectTimeout
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = DefaultRedisOperationTimeout
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "flightops:cache:"
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.ConnectTimeout,
		ReadTimeout:  cfg.OperationTimeout,
		WriteTimeout: cfg.OperationTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	t := &RedisTier{
		client:    client,
		keyPrefix: cfg.KeyPrefix,
		opTimeout: cfg.OperationTimeout,
		logger:    logger.WithPrefix("cache.redis"),
	}
	t.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "redis-tier",
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.5
		},
		IsSuccessful: func(err error) bool {
			// A missing key is a normal outcome, not a dependency failure
			return err == nil || errors.Is(err, redis.Nil)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			t.logger.Warn("circuit breaker state change", map[string]interface{}{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
		},
	})

	t.logger.Info("distributed cache tier initialized", map[string]interface{}{
		"addr":   cfg.Addr,
		"db":     cfg.DB,
		"prefix": cfg.KeyPrefix,
	})
	return t, nil
}

// Name implements Tier.Name
func (t *RedisTier) Name() TierName {
	return TierDistributed
}

// Get implements Tier.Get
func (t *RedisTier) Get(ctx context.Context, key string) ([]byte, error) {
	result, err := t.breaker.Execute(func() (interface{}, error) {
		opCtx, cancel := context.WithTimeout(ctx, t.opTimeout)
		defer cancel()
		return t.client.Get(opCtx, t.prefixed(key)).Bytes()
	})
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return result.([]byte), nil
}

// Set implements Tier.Set
func (t *RedisTier) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	_, err := t.breaker.Execute(func() (interface{}, error) {
		opCtx, cancel := context.WithTimeout(ctx, t.opTimeout)
		defer cancel()
		return nil, t.client.Set(opCtx, t.prefixed(key), data, ttl).Err()
	})
	return err
}

// Delete implements Tier.Delete
func (t *RedisTier) Delete(ctx context.Context, key string) error {
	_, err := t.breaker.Execute(func() (interface{}, error) {
		opCtx, cancel := context.WithTimeout(ctx, t.opTimeout)
		defer cancel()
		return nil, t.client.Del(opCtx, t.prefixed(key)).Err()
	})
	return err
}

// DeletePattern removes matching keys with a server-side SCAN and batched
// DELs, never enumerating the remote keyspace key-by-key from the caller's
// request path.
func (t *RedisTier) DeletePattern(ctx context.Context, pattern string) (int, error) {
	result, err := t.breaker.Execute(func() (interface{}, error) {
		// Pattern scans may touch many slots; allow a longer deadline
		opCtx, cancel := context.WithTimeout(ctx, t.opTimeout*10)
		defer cancel()
		return t.scanAndDelete(opCtx, t.prefixed(pattern))
	})
	if err != nil {
		return 0, err
	}
	return result.(int), nil
}

// Clear removes every key under this tier's namespace prefix
func (t *RedisTier) Clear(ctx context.Context) (int, error) {
	result, err := t.breaker.Execute(func() (interface{}, error) {
		opCtx, cancel := context.WithTimeout(ctx, t.opTimeout*10)
		defer cancel()
		return t.scanAndDelete(opCtx, t.keyPrefix+"*")
	})
	if err != nil {
		return 0, err
	}
	return result.(int), nil
}

// Ping implements Tier.Ping
func (t *RedisTier) Ping(ctx context.Context) error {
	opCtx, cancel := context.WithTimeout(ctx, t.opTimeout)
	defer cancel()
	return t.client.Ping(opCtx).Err()
}

// Len implements Tier.Len; counting a remote namespace requires a scan, so
// the distributed tier does not report a cheap key count.
func (t *RedisTier) Len() int {
	return -1
}

// Close closes the underlying client
func (t *RedisTier) Close() error {
	return t.client.Close()
}

func (t *RedisTier) scanAndDelete(ctx context.Context, match string) (int, error) {
	deleted := 0
	batch := make([]string, 0, DefaultRedisScanBatch)

	iter := t.client.Scan(ctx, 0, match, DefaultRedisScanBatch).Iterator()
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == DefaultRedisScanBatch {
			n, err := t.client.Del(ctx, batch...).Result()
			if err != nil {
				return deleted, err
			}
			deleted += int(n)
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("redis scan failed: %w", err)
	}
	if len(batch) > 0 {
		n, err := t.client.Del(ctx, batch...).Result()
		if err != nil {
			return deleted, err
		}
		deleted += int(n)
	}
	return deleted, nil
}

func (t *RedisTier) prefixed(key string) string {
	if strings.HasPrefix(key, t.keyPrefix) {
		return key
	}
	return t.keyPrefix + key
}
