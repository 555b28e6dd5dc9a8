package logging

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

// newTestLogger returns a logger that writes JSON into a buffer.
func newTestLogger(t *testing.T) (Logger, *zaptest.Buffer) {
	t.Helper()
	buf := &zaptest.Buffer{}
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), buf, zapcore.DebugLevel)
	return &zapLogger{z: zap.New(core)}, buf
}

func TestNewLogger_JSONFormat(t *testing.T) {
	l, err := NewLogger(LogConfig{Level: "info", Format: "json", OutputPaths: []string{"stdout"}})
	require.NoError(t, err)
	assert.NotNil(t, l)
}

func TestNewLogger_ConsoleFormat(t *testing.T) {
	l, err := NewLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, l)
}

func TestNewLogger_UnknownLevel(t *testing.T) {
	l, err := NewLogger(LogConfig{Level: "verbose"})
	assert.Error(t, err)
	assert.Nil(t, l)
}

func TestNewLogger_BadOutputPath(t *testing.T) {
	l, err := NewLogger(LogConfig{OutputPaths: []string{"/nonexistent-dir/sub/out.log"}})
	assert.Error(t, err)
	assert.Nil(t, l)
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestNopLogger_AllMethodsNoOp(t *testing.T) {
	l := NewNopLogger()
	assert.NotPanics(t, func() {
		l.Debug("msg")
		l.Info("msg")
		l.Warn("msg")
		l.Error("msg")
		l.Fatal("msg")
	})
	assert.Equal(t, l, l.With(String("k", "v")))
	assert.Equal(t, l, l.Named("child"))
	assert.NoError(t, l.Sync())
}

func TestZapLogger_LevelsWrite(t *testing.T) {
	l, buf := newTestLogger(t)
	l.Debug("debug msg")
	l.Info("info msg")
	l.Warn("warn msg")
	l.Error("error msg")

	out := buf.String()
	assert.Contains(t, out, `"level":"debug"`)
	assert.Contains(t, out, `"level":"info"`)
	assert.Contains(t, out, `"level":"warn"`)
	assert.Contains(t, out, `"level":"error"`)
	assert.Contains(t, out, "error msg")
}

func TestZapLogger_FieldTypes(t *testing.T) {
	l, buf := newTestLogger(t)
	l.Info("typed",
		String(FieldRunID, "r-1"),
		Int("kept", 3),
		Int64("bytes", 42),
		Float64("score", 0.5),
		Bool("dry_run", true),
		Strings("labels", []string{"drug", "food"}),
		Duration(FieldDuration, 1500*time.Millisecond),
		Err(errors.New("boom")),
		Any("extra", map[string]int{"a": 1}),
	)

	out := buf.String()
	assert.Contains(t, out, `"run_id":"r-1"`)
	assert.Contains(t, out, `"kept":3`)
	assert.Contains(t, out, `"bytes":42`)
	assert.Contains(t, out, `"score":0.5`)
	assert.Contains(t, out, `"dry_run":true`)
	assert.Contains(t, out, `"labels":["drug","food"]`)
	assert.Contains(t, out, `"error":"boom"`)
	assert.Contains(t, out, `"extra":{"a":1}`)
}

func TestErr_Nil(t *testing.T) {
	f := Err(nil)
	assert.Equal(t, "error", f.Key)
	assert.Equal(t, "<nil>", f.Value)
}

func TestZapLogger_WithAndNamed(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewLoggerFromCore(core)

	l.Named("ensemble").With(String(FieldPolicy, "ensemble-1")).Info("step applied")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "ensemble", entry.LoggerName)
	assert.Equal(t, "step applied", entry.Message)
	assert.Equal(t, "ensemble-1", entry.ContextMap()[FieldPolicy])
}

func TestDefault_SetAndGet(t *testing.T) {
	orig := Default()
	defer SetDefault(orig)

	core, logs := observer.New(zapcore.InfoLevel)
	l := NewLoggerFromCore(core)
	SetDefault(l)
	SetDefault(nil)

	Default().Info("hello")
	assert.Equal(t, 1, logs.Len())
}

func TestOrNop(t *testing.T) {
	assert.Equal(t, NewNopLogger(), OrNop(nil))
	l, _ := newTestLogger(t)
	assert.Equal(t, l, OrNop(l))
}

//Personal.AI order the ending
