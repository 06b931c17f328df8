package logging

import (
	"context"
	"testing"

	"github.com/fyrsmithlabs/eternal/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(NewDefaultConfig(), nil)
	require.NoError(t, err)
	require.NotNil(t, logger)
	assert.True(t, logger.Enabled(zapcore.InfoLevel))
	assert.False(t, logger.Enabled(zapcore.DebugLevel))
}

func TestNewLogger_InvalidConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Format = "xml"
	_, err := NewLogger(cfg, nil)
	require.Error(t, err)

	cfg = NewDefaultConfig()
	cfg.Stdout = false
	_, err = NewLogger(cfg, nil)
	require.Error(t, err)
}

func TestFromSettings(t *testing.T) {
	cfg, err := FromSettings(config.LoggingConfig{Level: "debug", Format: "console"}, false)
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, cfg.Level)
	assert.Equal(t, "console", cfg.Format)

	_, err = FromSettings(config.LoggingConfig{Level: "loud"}, false)
	require.Error(t, err)
}

func TestLogger_ContextFields(t *testing.T) {
	logger := NewTestLogger()

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithArchiveID(ctx, "abc123")
	ctx = WithMode(ctx, "powerful")

	logger.Info(ctx, "archive hit", zap.Int("access_count", 2))

	logger.AssertLogged(t, zapcore.InfoLevel, "archive hit")
	logger.AssertField(t, "archive hit", "request.id", "req-1")
	logger.AssertField(t, "archive hit", "archive.id", "abc123")
	logger.AssertField(t, "archive hit", "request.mode", "powerful")
}

func TestLogger_TraceCorrelation(t *testing.T) {
	tp := trace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	fields := ContextFields(ctx)
	keys := make([]string, 0, len(fields))
	for _, f := range fields {
		keys = append(keys, f.Key)
	}
	assert.Contains(t, keys, "trace_id")
	assert.Contains(t, keys, "span_id")
}

func TestContext_EmptyValuesIgnored(t *testing.T) {
	ctx := WithRequestID(context.Background(), "")
	ctx = WithArchiveID(ctx, "")
	assert.Empty(t, ContextFields(ctx))
}

func TestFromContext(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))

	logger := NewTestLogger()
	ctx := WithLogger(context.Background(), logger.Logger)
	FromContext(ctx).Warn(ctx, "from context")
	logger.AssertLogged(t, zapcore.WarnLevel, "from context")
}

func TestPromptField_Truncates(t *testing.T) {
	f := Prompt("prompt", "abcdefghij", 4)
	assert.Equal(t, "abcd...", f.String)

	f = Prompt("prompt", "abc", 4)
	assert.Equal(t, "abc", f.String)
}
