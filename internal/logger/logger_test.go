package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLoggerLevels(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"WARN":    zapcore.WarnLevel,
		" error ": zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
	}
	for in, want := range cases {
		l, err := NewLogger(in)
		require.NoError(t, err)
		assert.True(t, l.Core().Enabled(want), in)
		if want > zapcore.DebugLevel {
			assert.False(t, l.Core().Enabled(want-1), in)
		}
	}
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	l, err := NewLogger("chatty")
	require.Error(t, err)
	assert.Nil(t, l)
	assert.Contains(t, err.Error(), "chatty")
}

func TestNamedToleratesNil(t *testing.T) {
	l := Named(nil, "session")
	require.NotNil(t, l)
	l.Info("no-op")
}
