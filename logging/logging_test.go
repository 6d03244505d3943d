package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/mgmeyers/pdfworkspace/config"
)

func TestNew(t *testing.T) {
	logger, err := New(config.LoggingConfig{Level: "debug", JSON: true})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	logger, err = New(config.LoggingConfig{})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))

	_, err = New(config.LoggingConfig{Level: "chatty"})
	assert.Error(t, err)
}
