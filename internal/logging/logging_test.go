package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.NoError(t, Config{Level: "DEBUG", Format: "console"}.Validate())
	assert.Error(t, Config{Level: "loud"}.Validate())
	assert.Error(t, Config{Format: "xml"}.Validate())
}

func TestNew(t *testing.T) {
	logger, err := New(Config{Level: "warn", Format: "console"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
}

func TestNewObserved(t *testing.T) {
	logger, logs := NewObserved()
	logger.Debug("skipped analysis", zap.String("user_id", "u1"))

	entries := logs.FilterMessage("skipped analysis").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "u1", entries[0].ContextMap()["user_id"])
}
