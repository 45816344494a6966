package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger_InvalidLevel(t *testing.T) {
	_, err := NewLogger(LogFlags{Level: "loud"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log-level 'loud'")
}

func TestNewLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oasguard.log")
	logger, err := NewLogger(LogFlags{Level: "debug", File: path, MaxSizeMB: 1, MaxBackups: 1})
	require.NoError(t, err)

	logger.Debug("request rejected", zap.String("path", "/pets"), zap.Int("errors", 2))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"request rejected"`)
	assert.Contains(t, string(data), `"path":"/pets"`)
}

func TestNewLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, zapcore.WarnLevel, false)
	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "WARN")
	assert.Contains(t, out, "shown")
}
