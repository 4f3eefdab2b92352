package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notary/internal/platform/config"
)

func TestOptions(t *testing.T) {
	t.Run("applies configured limits", func(t *testing.T) {
		opts, err := Options(config.RedisConfig{
			URL:          "redis://cache.internal:6380/2",
			PoolSize:     25,
			MinIdleConns: 4,
			DialTimeout:  time.Second,
			ReadTimeout:  2 * time.Second,
			WriteTimeout: 3 * time.Second,
		})
		require.NoError(t, err)
		assert.Equal(t, "cache.internal:6380", opts.Addr)
		assert.Equal(t, 2, opts.DB)
		assert.Equal(t, 25, opts.PoolSize)
		assert.Equal(t, 4, opts.MinIdleConns)
		assert.Equal(t, time.Second, opts.DialTimeout)
		assert.Equal(t, 2*time.Second, opts.ReadTimeout)
		assert.Equal(t, 3*time.Second, opts.WriteTimeout)
	})

	t.Run("rejects a malformed url", func(t *testing.T) {
		_, err := Options(config.RedisConfig{URL: "cache.internal"})
		assert.Error(t, err)
	})
}

func TestNewWithoutURL(t *testing.T) {
	c, err := New(context.Background(), config.RedisConfig{})
	require.NoError(t, err)
	assert.Nil(t, c)
}
