package logs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew(t *testing.T) {
	t.Run("invalid level", func(t *testing.T) {
		_, err := New(WithLevel("loud"))
		require.Error(t, err)
	})

	t.Run("empty level keeps default", func(t *testing.T) {
		log, err := New(WithLevel(""))
		require.NoError(t, err)
		assert.True(t, log.Core().Enabled(zap.DebugLevel))
	})

	t.Run("json output", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "app.log")
		log, err := New(
			WithLevel("info"),
			WithEncoding(EncodingTypeJSON),
			WithOutputPaths(path),
			WithInitialFields(map[string]any{"app": "shortener"}),
		)
		require.NoError(t, err)

		log.Debug("hidden")
		log.Info("visible", zap.String("code", "abc123"))
		require.NoError(t, log.Sync())

		raw, err := os.ReadFile(path)
		require.NoError(t, err)

		var entry map[string]any
		require.NoError(t, json.Unmarshal(raw, &entry))
		assert.Equal(t, "visible", entry["msg"])
		assert.Equal(t, "abc123", entry["code"])
		assert.Equal(t, "shortener", entry["app"])
	})
}

func TestMustNew_Panics(t *testing.T) {
	assert.Panics(t, func() {
		MustNew(WithLevel("loud"))
	})
}
