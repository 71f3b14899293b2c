package log

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew_Formats(t *testing.T) {
	for _, format := range []string{"json", "console", ""} {
		l, err := New(Config{Level: "debug", Format: format, OutputPaths: []string{"stderr"}})
		require.NoError(t, err, format)
		require.NotNil(t, l)
	}

	_, err := New(Config{Format: "xml"})
	require.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("bogus"))

	assert.True(t, ValidLevel("info"))
	assert.False(t, ValidLevel("trace"))
}

func TestWith_CarriesFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromZap(zap.New(core)).With(String("component", "rpc"))

	l.Info("served", Uint64("block", 7))
	l.Error("failed", Err(errors.New("boom")))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "rpc", entries[0].ContextMap()["component"])
	assert.Equal(t, uint64(7), entries[0].ContextMap()["block"])
	assert.Equal(t, "boom", entries[1].ContextMap()["error"])
}

func TestNop(t *testing.T) {
	l := NewNop()
	l.Info("nothing")
	assert.NoError(t, l.With(Bool("x", true)).Sync())
}
