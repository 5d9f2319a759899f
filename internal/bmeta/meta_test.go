package bmeta

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestMeta(t *testing.T) {
	m := New("v1.2.0", "", "abc1234")
	assert.Equal(t, Meta{Version: "v1.2.0", Date: "N/A", Commit: "abc1234"}, m)

	core, logs := observer.New(zapcore.InfoLevel)
	zap.New(core).Info("start", m.Fields()...)

	entries := logs.All()
	assert.Len(t, entries, 1)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "v1.2.0", ctx["buildVersion"])
	assert.Equal(t, "N/A", ctx["buildDate"])
	assert.Equal(t, "abc1234", ctx["buildCommit"])
}
