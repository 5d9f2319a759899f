package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fsdevblog/shortlinks/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis хранит значения в map и запоминает выставленные TTL.
type fakeRedis struct {
	data map[string][]byte
	ttls map[string]time.Duration
	err  error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		data: make(map[string][]byte),
		ttls: make(map[string]time.Duration),
	}
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(string(v), nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	f.data[key] = value.([]byte) //nolint:forcetypeassert
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, f.err)
}

func TestLinkCache(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	fr := newFakeRedis()
	c := NewLinkCache(fr, WithTTL(time.Hour))
	c.now = func() time.Time { return now }

	t.Run("miss", func(t *testing.T) {
		_, err := c.Get(t.Context(), "abc123")
		require.ErrorIs(t, err, ErrMiss)
	})

	t.Run("set and get without expiry", func(t *testing.T) {
		link := &models.Link{
			ID:          "5b3c7a0e-0000-4000-8000-000000000001",
			ShortCode:   "abc123",
			OriginalURL: "https://example.com/a",
			Clicks:      42,
			CreatedAt:   now,
		}
		require.NoError(t, c.Set(t.Context(), link))
		assert.Equal(t, time.Hour, fr.ttls["link:abc123"])

		got, err := c.Get(t.Context(), "abc123")
		require.NoError(t, err)
		assert.Equal(t, link.OriginalURL, got.OriginalURL)
		assert.Equal(t, link.ID, got.ID)
		assert.True(t, now.Equal(got.CreatedAt))
		assert.Zero(t, got.Clicks)
		assert.Nil(t, got.ExpiresAt)
	})

	t.Run("ttl bounded by expiry", func(t *testing.T) {
		exp := now.Add(5 * time.Minute)
		require.NoError(t, c.Set(t.Context(), &models.Link{ShortCode: "soon01", ExpiresAt: &exp, CreatedAt: now}))
		assert.Equal(t, 5*time.Minute, fr.ttls["link:soon01"])
	})

	t.Run("expired link is not cached", func(t *testing.T) {
		exp := now.Add(-time.Second)
		require.NoError(t, c.Set(t.Context(), &models.Link{ShortCode: "gone01", ExpiresAt: &exp, CreatedAt: now}))
		_, err := c.Get(t.Context(), "gone01")
		require.ErrorIs(t, err, ErrMiss)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, c.Delete(t.Context(), "abc123"))
		_, err := c.Get(t.Context(), "abc123")
		require.ErrorIs(t, err, ErrMiss)
	})

	t.Run("backend failure", func(t *testing.T) {
		fr.err = errors.New("connection refused")
		defer func() { fr.err = nil }()

		_, err := c.Get(t.Context(), "abc123")
		require.Error(t, err)
		require.NotErrorIs(t, err, ErrMiss)
	})
}
