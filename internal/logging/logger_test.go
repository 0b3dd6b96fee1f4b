package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew_LevelParsing(t *testing.T) {
	logger, err := New(Config{Level: "warn", OutputPaths: []string{"stderr"}})
	require.NoError(t, err)

	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(Config{Level: "loud", OutputPaths: []string{"stderr"}})
	assert.Error(t, err)
}

func TestNewFromEnv_BadLevelFallsBackToNop(t *testing.T) {
	logger := NewFromEnv("nonsense", false)
	require.NotNil(t, logger)
	assert.False(t, logger.Core().Enabled(zapcore.ErrorLevel))
}

func TestNewFromEnv_DebugToggleWins(t *testing.T) {
	t.Setenv("PTYBRIDGE_DEBUG", "1")

	logger := NewFromEnv("error", false)
	assert.True(t, DebugEnabled())
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestDebugEnabled_OffByDefault(t *testing.T) {
	t.Setenv("PTYBRIDGE_DEBUG", "")
	assert.False(t, DebugEnabled())
}
