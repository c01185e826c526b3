package database

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/kdp-pulse/internal/config"
)

func TestRedisOptions(t *testing.T) {
	t.Run("host and port", func(t *testing.T) {
		opts, err := RedisOptions(config.RedisConfig{Host: "cache", Port: 6380, DB: 3, PoolSize: 4})
		require.NoError(t, err)
		assert.Equal(t, "cache:6380", opts.Addr)
		assert.Equal(t, 3, opts.DB)
		assert.Equal(t, 4, opts.PoolSize)
	})

	t.Run("url wins", func(t *testing.T) {
		opts, err := RedisOptions(config.RedisConfig{
			URL:      "redis://:secret@ledger.internal:6390/2",
			Host:     "ignored",
			Port:     1,
			PoolSize: 7,
		})
		require.NoError(t, err)
		assert.Equal(t, "ledger.internal:6390", opts.Addr)
		assert.Equal(t, "secret", opts.Password)
		assert.Equal(t, 2, opts.DB)
		assert.Equal(t, 7, opts.PoolSize)
	})

	t.Run("bad url", func(t *testing.T) {
		_, err := RedisOptions(config.RedisConfig{URL: "http://not-redis"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse redis url")
	})
}

func TestNewRedisConnection_MiniRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedisConnection(config.RedisConfig{URL: "redis://" + mr.Addr()})
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, 500*time.Millisecond, client.SlowPing)
	assert.NoError(t, client.HealthCheck(context.Background()))
}

func TestRedisClient_HealthCheck(t *testing.T) {
	t.Run("nil client", func(t *testing.T) {
		var client *RedisClient
		assert.ErrorIs(t, client.HealthCheck(context.Background()), ErrRedisNotInitialized)
		assert.ErrorIs(t, (&RedisClient{}).HealthCheck(context.Background()), ErrRedisNotInitialized)
	})

	t.Run("server error", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client := NewRedisClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), 0)
		defer client.Close()

		mr.SetError("LOADING dataset in memory")
		err := client.HealthCheck(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "redis ping failed")

		mr.SetError("")
		assert.NoError(t, client.HealthCheck(context.Background()))
	})

	t.Run("slow ping", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client := NewRedisClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Nanosecond)
		defer client.Close()

		err := client.HealthCheck(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "limit 1ns")
	})
}
