package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotbook/billing/pkg/logger"
)

type ctxKey struct{}

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("creates JSON logger by default", func(t *testing.T) {
		t.Parallel()
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf))
		log.Info("hello")
		entry := decode(t, buf)
		assert.Equal(t, "INFO", entry["level"])
		assert.Equal(t, "hello", entry["msg"])
	})

	t.Run("text format", func(t *testing.T) {
		t.Parallel()
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf), logger.WithFormat(logger.FormatText))
		log.Info("hello")
		assert.Contains(t, buf.String(), "msg=hello")
	})

	t.Run("invalid format panics", func(t *testing.T) {
		t.Parallel()
		assert.Panics(t, func() { logger.New(logger.WithFormat("xml")) })
	})

	t.Run("level filters records", func(t *testing.T) {
		t.Parallel()
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf), logger.WithLevel(slog.LevelWarn))
		log.Info("dropped")
		assert.Empty(t, buf.String())
	})

	t.Run("production environment adds service and env", func(t *testing.T) {
		t.Parallel()
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf), logger.WithEnvironment("prod", "billing"))
		log.Debug("hidden")
		log.Info("visible")
		entry := decode(t, buf)
		assert.Equal(t, "billing", entry["service"])
		assert.Equal(t, logger.EnvProduction, entry["env"])
	})

	t.Run("unknown environment falls back to development", func(t *testing.T) {
		t.Parallel()
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf), logger.WithEnvironment("", "billing"))
		log.Debug("shown")
		assert.Contains(t, buf.String(), "env=development")
	})

	t.Run("context values are injected", func(t *testing.T) {
		t.Parallel()
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf), logger.WithContextValue("request_id", ctxKey{}))
		ctx := context.WithValue(context.Background(), ctxKey{}, "req-1")
		log.With(logger.Component("test")).InfoContext(ctx, "hello")
		entry := decode(t, buf)
		assert.Equal(t, "req-1", entry["request_id"])
		assert.Equal(t, "test", entry["component"])
	})
}

func TestAttrs(t *testing.T) {
	t.Parallel()

	t.Run("error helpers skip nil", func(t *testing.T) {
		t.Parallel()
		assert.True(t, logger.Error(nil).Equal(slog.Attr{}))
		assert.True(t, logger.Errors(nil, nil).Equal(slog.Attr{}))

		err := errors.New("boom")
		attr := logger.Error(err)
		assert.Equal(t, "error", attr.Key)
		assert.Equal(t, err, attr.Value.Any())

		group := logger.Errors(err, nil, errors.New("second")).Value.Group()
		assert.Len(t, group, 2)
	})

	t.Run("identifier helpers skip empty values", func(t *testing.T) {
		t.Parallel()
		assert.True(t, logger.ReferenceID("").Equal(slog.Attr{}))
		assert.True(t, logger.EventID("").Equal(slog.Attr{}))
		assert.True(t, logger.ErrorCode("").Equal(slog.Attr{}))
		assert.True(t, logger.BusinessID(nil).Equal(slog.Attr{}))
	})

	t.Run("billing keys", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, "business_id", logger.BusinessID("b1").Key)
		assert.Equal(t, "provider", logger.Provider("stripe").Key)
		assert.Equal(t, "reference_id", logger.ReferenceID("sub_1").Key)
		assert.Equal(t, "event_id", logger.EventID("evt_1").Key)
		assert.Equal(t, "error_code", logger.ErrorCode("invalid_plan").Key)
	})

	t.Run("status change groups from and to", func(t *testing.T) {
		t.Parallel()
		attr := logger.StatusChange("active", "paused")
		require.Equal(t, slog.KindGroup, attr.Value.Kind())
		g := attr.Value.Group()
		require.Len(t, g, 2)
		assert.Equal(t, "active", g[0].Value.String())
		assert.Equal(t, "paused", g[1].Value.String())
	})
}
