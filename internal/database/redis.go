package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/kdp-pulse/internal/config"
)

// ErrRedisNotInitialized is reported by health checks on an unset client
var ErrRedisNotInitialized = errors.New("redis client not initialized")

// RedisClient holds the connection behind the feedback ledgers
type RedisClient struct {
	Client *redis.Client
	// SlowPing marks redis unhealthy when a ping round trip exceeds it. Zero disables the limit.
	SlowPing time.Duration
}

// RedisOptions maps config onto go-redis options. A URL takes precedence
// over host and port.
func RedisOptions(cfg config.RedisConfig) (*redis.Options, error) {
	if cfg.URL != "" {
		opts, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis url: %w", err)
		}
		if cfg.PoolSize > 0 {
			opts.PoolSize = cfg.PoolSize
		}
		return opts, nil
	}
	return &redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}, nil
}

// NewRedisClient wraps an existing client
func NewRedisClient(rdb *redis.Client, slowPing time.Duration) *RedisClient {
	return &RedisClient{Client: rdb, SlowPing: slowPing}
}

func NewRedisConnection(cfg config.RedisConfig) (*RedisClient, error) {
	opts, err := RedisOptions(cfg)
	if err != nil {
		return nil, err
	}
	client := NewRedisClient(redis.NewClient(opts), cfg.SlowPingDuration())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.HealthCheck(ctx); err != nil {
		client.Client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"addr": opts.Addr,
		"db":   opts.DB,
	}).Info("Successfully connected to Redis")

	return client, nil
}

func (r *RedisClient) Close() {
	if r.Client != nil {
		r.Client.Close()
		logrus.Info("Redis connection closed")
	}
}

// HealthCheck pings redis and fails when the round trip is slower than SlowPing
func (r *RedisClient) HealthCheck(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return ErrRedisNotInitialized
	}

	start := time.Now()
	if err := r.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	if elapsed := time.Since(start); r.SlowPing > 0 && elapsed > r.SlowPing {
		return fmt.Errorf("redis ping took %s, limit %s", elapsed.Round(time.Millisecond), r.SlowPing)
	}
	return nil
}
