package services

import (
	"context"
	"errors"
	"testing"

	"github.com/fsdevblog/shortlinks/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestPingService_CheckConnection(t *testing.T) {
	ok := NewPingService(pingFunc(func(context.Context) error { return nil }))
	require.NoError(t, ok.CheckConnection(t.Context()))

	down := NewPingService(pingFunc(func(context.Context) error { return errors.New("connection refused") }))
	require.ErrorIs(t, down.CheckConnection(t.Context()), ErrUnavailable)
}

func TestFactory(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		svc, err := Factory(db.NewMemStorage(), &seqGenerator{codes: []string{"abcdef"}}, zap.NewNop())
		require.NoError(t, err)
		require.NotNil(t, svc.Registry)
		require.NoError(t, svc.PingService.CheckConnection(t.Context()))

		link, err := svc.Registry.Create(t.Context(), "https://example.com", NeverExpire())
		require.NoError(t, err)
		assert.Equal(t, "abcdef", link.ShortCode)
	})

	t.Run("unknown connection", func(t *testing.T) {
		_, err := Factory("postgres://", &seqGenerator{codes: []string{"abcdef"}}, zap.NewNop())
		require.Error(t, err)
	})

	t.Run("nil connection", func(t *testing.T) {
		_, err := Factory(nil, &seqGenerator{codes: []string{"abcdef"}}, zap.NewNop())
		require.Error(t, err)
	})
}
