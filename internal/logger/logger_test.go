package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew_Levels(t *testing.T) {
	l, err := New("development", "")
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))

	l, err = New("production", "")
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, l.Core().Enabled(zapcore.InfoLevel))

	l, err = New("production", "warn")
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New("production", "loud")
	assert.Error(t, err)
}

func TestNewNamed(t *testing.T) {
	l, err := NewNamed("test", "info", "service-curation")
	require.NoError(t, err)
	assert.NotNil(t, l)
}
