package utilities

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewRequestID(t *testing.T) {
	a, b := NewRequestID(), NewRequestID()
	assert.Len(t, a, 27)
	assert.NotEqual(t, a, b)
}

func TestNewNode(t *testing.T) {
	node, err := NewNode(3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), node.Generate().Node())

	_, err = NewNode(4096)
	assert.ErrorContains(t, err, "snowflake node 4096")
}

func TestLoggerConfigFromEnv(t *testing.T) {
	t.Setenv("LOG_DEV", "1")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LOG_ROTATION_TIME", "6")
	t.Setenv("LOG_MAX_AGE", "48h")

	cfg := ConfigFromEnv()

	assert.True(t, cfg.Dev)
	assert.Equal(t, "debug", cfg.Level)
	assert.Equal(t, 6*time.Hour, cfg.RotationTime)
	assert.Equal(t, 48*time.Hour, cfg.MaxAge)
	assert.Equal(t, zapcore.WarnLevel, levelFromString("warning"))
	assert.Equal(t, zapcore.InfoLevel, levelFromString("loud"))
}

func TestInitWritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.log")
	lg, err := Init(Config{Level: "info", File: path, RotationTime: time.Hour, MaxAge: 24 * time.Hour})
	require.NoError(t, err)

	lg.Info("hello file")
	_ = lg.Sync()

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"msg":"hello file"`)
}
