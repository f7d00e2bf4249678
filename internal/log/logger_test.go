package log

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger_Levels(t *testing.T) {
	tests := []struct {
		name  string
		level string
		want  string
	}{
		{name: "info", level: "info", want: "info"},
		{name: "debug", level: "debug", want: "debug"},
		{name: "invalid level defaults to info", level: "bogus", want: "info"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(Config{Level: tt.level, Output: "console"})
			require.NoError(t, err)
			assert.Equal(t, tt.want, logger.GetLevel())
		})
	}
}

func TestLogger_SetLevelSharedWithModules(t *testing.T) {
	logger, err := NewLogger(Config{Level: "info", Output: "console"})
	require.NoError(t, err)

	tracer := logger.WithModule("tracer")
	require.NoError(t, logger.SetLevel("debug"))

	// 子 Logger 共享同一个 AtomicLevel
	assert.Equal(t, "debug", tracer.GetLevel())
	assert.Error(t, logger.SetLevel("loud"))
}

func TestLogger_FileOutput(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "nested", "ransomcare.log")

	logger, err := NewLogger(Config{
		Level:      "info",
		Output:     "file",
		FilePath:   logPath,
		MaxSizeMB:  1,
		MaxBackups: 1,
	})
	require.NoError(t, err)

	logger.WithModule("correlator").Info("descriptor opened", zap.Int("pid", 42))
	_ = logger.Sync()

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "descriptor opened")
	assert.Contains(t, string(content), `"module":"correlator"`)
	assert.Contains(t, string(content), `"pid":42`)
}

func TestFromZap_WithFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := FromZap(zap.New(core)).WithModule("bus").With(zap.String("subscriber", "decision"))

	logger.Warn("queue full")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "queue full", entries[0].Message)
	assert.Equal(t, "bus", entries[0].ContextMap()["module"])
	assert.Equal(t, "decision", entries[0].ContextMap()["subscriber"])
}

func TestGlobalLogger(t *testing.T) {
	require.NoError(t, Init(Config{Level: "debug", Output: "console"}))
	assert.Equal(t, "debug", Global().GetLevel())

	require.NoError(t, SetGlobalLevel("warn"))
	assert.Equal(t, "warn", Global().GetLevel())
}

func TestNewNop(t *testing.T) {
	logger := NewNop()
	logger.Info("dropped")
	assert.NoError(t, logger.SetLevel("error"))
}
