// Audit Sentinel - Audit Event Analysis Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditsentinel

package windowstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/auditsentinel/internal/health"
	"github.com/tomtom215/auditsentinel/internal/logging"
	"github.com/tomtom215/auditsentinel/internal/metrics"
	"github.com/tomtom215/auditsentinel/internal/resilience"
)

// RedisConfig configures the Redis-backed store.
type RedisConfig struct {
	Addr     string
	Username string
	Password string
	DB       int

	DialTimeout      time.Duration
	OperationTimeout time.Duration
	PoolSize         int
	MaxRetries       int

	// KeyTTLGrace is added to the window to form the key expiry, so idle
	// subjects disappear on their own.
	KeyTTLGrace time.Duration

	Breaker resilience.BreakerConfig
}

// DefaultRedisConfig returns settings for a local Redis.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:             "localhost:6379",
		DialTimeout:      5 * time.Second,
		OperationTimeout: 2 * time.Second,
		PoolSize:         4,
		MaxRetries:       1,
		KeyTTLGrace:      60 * time.Second,
		Breaker:          resilience.DefaultBreakerConfig("window-store"),
	}
}

// slidingWindowScript runs the whole increment-prune-count step atomically.
// KEYS[1] window key; ARGV: score ms, member, window ms, ttl ms.
var slidingWindowScript = redis.NewScript(`
local score = tonumber(ARGV[1])
local cutoff = score - tonumber(ARGV[3])
redis.call('ZADD', KEYS[1], score, ARGV[2])
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', '(' .. cutoff)
local count = redis.call('ZCOUNT', KEYS[1], cutoff, score)
redis.call('PEXPIRE', KEYS[1], ARGV[4])
return count
`)

// RedisStore implements Store with a sorted set per window key.
type RedisStore struct {
	client  *redis.Client
	cfg     RedisConfig
	breaker *gobreaker.CircuitBreaker[int64]
	status  health.WindowStoreStatus
}

// NewRedisStore creates the client. No connection is made until the first
// call; use Ping to verify reachability. status may be nil.
func NewRedisStore(cfg RedisConfig, status health.WindowStoreStatus) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, errors.New("window store: redis address is required")
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = DefaultRedisConfig().OperationTimeout
	}
	if cfg.Breaker.Name == "" {
		cfg.Breaker.Name = "window-store"
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.OperationTimeout,
		WriteTimeout: cfg.OperationTimeout,
		PoolSize:     cfg.PoolSize,
		MaxRetries:   cfg.MaxRetries,
	})

	return &RedisStore{
		client:  client,
		cfg:     cfg,
		breaker: resilience.NewCircuitBreaker[int64](cfg.Breaker),
		status:  status,
	}, nil
}

// IncrementAndCount implements Store.
func (s *RedisStore) IncrementAndCount(ctx context.Context, key, member string, now time.Time, window time.Duration) (int64, error) {
	start := time.Now()
	ttl := window + s.cfg.KeyTTLGrace

	count, err := s.breaker.Execute(func() (int64, error) {
		opCtx, cancel := context.WithTimeout(ctx, s.cfg.OperationTimeout)
		defer cancel()
		return slidingWindowScript.Run(opCtx, s.client, []string{key},
			now.UnixMilli(), member, window.Milliseconds(), ttl.Milliseconds()).Int64()
	})

	metrics.RecordWindowStoreOperation("increment_and_count", time.Since(start), err)
	s.report(err)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("Window store call failed")
		return 0, unavailable("increment_and_count", err)
	}
	return count, nil
}

// Ping implements Store.
func (s *RedisStore) Ping(ctx context.Context) error {
	start := time.Now()
	opCtx, cancel := context.WithTimeout(ctx, s.cfg.OperationTimeout)
	defer cancel()

	err := s.client.Ping(opCtx).Err()
	metrics.RecordWindowStoreOperation("ping", time.Since(start), err)
	s.report(err)
	if err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// Close implements Store.
func (s *RedisStore) Close() error {
	s.report(errStoreClosed)
	return s.client.Close()
}

func (s *RedisStore) report(err error) {
	if s.status != nil {
		s.status.SetWindowStoreConnected(err == nil)
	}
}
