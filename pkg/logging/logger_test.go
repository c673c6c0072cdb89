package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	t.Run("local console logger", func(t *testing.T) {
		logger, err := New("local", "debug")
		require.NoError(t, err)
		assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("production logger", func(t *testing.T) {
		logger, err := New("production", "warn")
		require.NoError(t, err)
		assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
		assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
	})

	t.Run("default level", func(t *testing.T) {
		_, err := New("production", "")
		assert.NoError(t, err)
	})

	t.Run("bad level", func(t *testing.T) {
		_, err := New("local", "loud")
		assert.Error(t, err)
	})
}
