package telemetry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		level string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"WARN", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger, err := NewLogger(tt.level, "")
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tt.want))
			if tt.want > zapcore.DebugLevel {
				assert.False(t, logger.Core().Enabled(tt.want-1))
			}
		})
	}
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	_, err := NewLogger("verbose", "")
	assert.Error(t, err)
}

func TestNewLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "royalty.log")
	logger, err := NewLogger("info", path)
	require.NoError(t, err)

	logger.Info("distribution processed")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"distribution processed"`)
	assert.Contains(t, string(data), `"time":`)
}

func TestSetupTracing_NoopWhenEndpointEmpty(t *testing.T) {
	t.Setenv(EnvOTelEndpoint, "")
	t.Setenv(EnvOTelEnabled, "")

	shutdown, err := SetupTracing(context.Background(), "royalty-test")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetupTracing_NoopWhenDisabled(t *testing.T) {
	t.Setenv(EnvOTelEndpoint, "http://localhost:4318")
	t.Setenv(EnvOTelEnabled, "false")

	shutdown, err := SetupTracing(context.Background(), "royalty-test")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetupTracing_WithEndpoint(t *testing.T) {
	// Non-routable address: nothing is exported because no span is ended.
	t.Setenv(EnvOTelEndpoint, "http://192.0.2.1:4318")
	t.Setenv(EnvOTelEnabled, "")

	shutdown, err := SetupTracing(context.Background(), "royalty-test")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
