package logging

import (
	"testing"
	"time"

	"github.com/fyrsmithlabs/eternal/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func encode(t *testing.T, enc zapcore.Encoder, fields ...zap.Field) string {
	t.Helper()
	buf, err := enc.EncodeEntry(zapcore.Entry{
		Level:   zapcore.InfoLevel,
		Time:    time.Unix(0, 0),
		Message: "msg",
	}, fields)
	require.NoError(t, err)
	defer buf.Free()
	return buf.String()
}

func TestRedactingEncoder(t *testing.T) {
	enc, err := NewRedactingEncoder(newEncoder("json"), NewDefaultConfig().Redaction)
	require.NoError(t, err)

	tests := []struct {
		name     string
		field    zap.Field
		contains string
		absent   string
	}{
		{
			name:     "sensitive key",
			field:    zap.String("api_key", "sk-12345"),
			contains: `"api_key":"[REDACTED]"`,
			absent:   "sk-12345",
		},
		{
			name:     "case insensitive key",
			field:    zap.String("Authorization", "Basic abc"),
			contains: `"Authorization":"[REDACTED]"`,
			absent:   "Basic abc",
		},
		{
			name:     "bearer pattern in value",
			field:    zap.String("header", "Bearer eyJhbGciOi"),
			contains: `"header":"[REDACTED:pattern]"`,
			absent:   "eyJhbGciOi",
		},
		{
			name:     "secret type",
			field:    Secret("pexels", config.Secret("abcdef")),
			contains: `"pexels":"[REDACTED:6]"`,
			absent:   "abcdef",
		},
		{
			name:     "plain value",
			field:    zap.String("source", "live generation"),
			contains: `"source":"live generation"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := encode(t, enc, tt.field)
			assert.Contains(t, out, tt.contains)
			if tt.absent != "" {
				assert.NotContains(t, out, tt.absent)
			}
		})
	}
}

func TestRedactingEncoder_Disabled(t *testing.T) {
	enc, err := NewRedactingEncoder(newEncoder("json"), RedactionConfig{Enabled: false})
	require.NoError(t, err)
	assert.Contains(t, encode(t, enc, zap.String("api_key", "visible")), "visible")
}

func TestRedactingEncoder_InvalidPattern(t *testing.T) {
	_, err := NewRedactingEncoder(newEncoder("json"), RedactionConfig{Enabled: true, Patterns: []string{"("}})
	require.Error(t, err)
}
