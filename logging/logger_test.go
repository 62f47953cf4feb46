package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNopLogger(t *testing.T) {
	l := NopLogger{}
	l.Debug("debug", "k", "v")
	l.Info("info", "k", "v")
	l.Warn("warn", "k", "v")
	l.Error("error", "k", "v")

	_, ok := l.With("k", "v").(NopLogger)
	assert.True(t, ok, "With should return NopLogger")
}

func TestOrNop(t *testing.T) {
	_, ok := OrNop(nil).(NopLogger)
	assert.True(t, ok)

	s := NewSlogAdapter(nil)
	assert.Same(t, s, OrNop(s))
}

func TestSlogAdapter(t *testing.T) {
	t.Run("nil uses default", func(t *testing.T) {
		adapter := NewSlogAdapter(nil)
		require.NotNil(t, adapter.logger)
	})

	t.Run("writes levels and attrs", func(t *testing.T) {
		var buf bytes.Buffer
		handler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
		adapter := NewSlogAdapter(slog.New(handler))

		adapter.Debug("debug message", "key", "value")
		adapter.Info("info message")
		adapter.Warn("warn message")
		adapter.Error("error message")

		out := buf.String()
		assert.Contains(t, out, "level=DEBUG")
		assert.Contains(t, out, "key=value")
		assert.Contains(t, out, "level=INFO")
		assert.Contains(t, out, "level=WARN")
		assert.Contains(t, out, "level=ERROR")
	})

	t.Run("With prepends attrs", func(t *testing.T) {
		var buf bytes.Buffer
		adapter := NewSlogAdapter(slog.New(slog.NewTextHandler(&buf, nil)))

		adapter.With("component", "router").Info("built")
		assert.Contains(t, buf.String(), "component=router")
	})
}

func TestZapAdapter(t *testing.T) {
	t.Run("nil uses nop", func(t *testing.T) {
		adapter := NewZapAdapter(nil)
		adapter.Info("ignored")
		assert.NoError(t, adapter.Sync())
	})

	t.Run("writes levels and attrs", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)
		adapter := NewZapAdapter(zap.New(core))

		adapter.Debug("d")
		adapter.Info("i")
		adapter.Warn("w", "operationId", "getItem")
		adapter.Error("e")

		require.Equal(t, 4, logs.Len())
		warn := logs.FilterMessage("w").All()
		require.Len(t, warn, 1)
		assert.Equal(t, zapcore.WarnLevel, warn[0].Level)
		assert.Equal(t, "getItem", warn[0].ContextMap()["operationId"])
	})

	t.Run("With prepends attrs", func(t *testing.T) {
		core, logs := observer.New(zapcore.InfoLevel)
		adapter := NewZapAdapter(zap.New(core))

		adapter.With("requestId", "abc").Info("handled")
		require.Equal(t, 1, logs.Len())
		assert.Equal(t, "abc", logs.All()[0].ContextMap()["requestId"])
	})
}
