package logging

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observed(level zapcore.Level) (*ZapLogger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return FromZap(zap.New(core)), logs
}

func TestNewZapLogger(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		l, err := NewZapLogger("warn", format)
		require.NoError(t, err)
		assert.False(t, l.Zap().Core().Enabled(zapcore.InfoLevel))
		assert.True(t, l.Zap().Core().Enabled(zapcore.WarnLevel))
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestWithAddsFields(t *testing.T) {
	l, logs := observed(zapcore.DebugLevel)

	l.With(String("socket_id", "abc")).Info("joined", Int("slots", 2), Bool("restored", true))

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "abc", fields["socket_id"])
	assert.Equal(t, int64(2), fields["slots"])
	assert.Equal(t, true, fields["restored"])
}

func TestContextLogger(t *testing.T) {
	assert.IsType(t, NopLogger{}, L(context.Background()))

	l, _ := observed(zapcore.InfoLevel)
	ctx := ContextWithLogger(context.Background(), l)
	assert.Same(t, l, L(ctx))
}

func TestRequestLogger(t *testing.T) {
	l, logs := observed(zapcore.DebugLevel)

	var inner Logger
	h := middleware.RequestID(RequestLogger(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inner = L(r.Context())
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short"))
	})))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/submit", nil))

	require.NotNil(t, inner)
	entries := logs.FilterMessage("request completed").All()
	require.Len(t, entries, 1)

	fields := entries[0].ContextMap()
	assert.Equal(t, "POST", fields["method"])
	assert.Equal(t, "/submit", fields["path"])
	assert.Equal(t, int64(http.StatusTeapot), fields["status"])
	assert.Equal(t, int64(5), fields["bytes"])
	assert.NotEmpty(t, fields["request_id"])
}
