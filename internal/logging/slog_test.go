package logging

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T, level string) (*SlogLogger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	return newWithWriter(&buf, level), &buf
}

func TestSlogLogger_Levels(t *testing.T) {
	log, buf := newTestLogger(t, "debug")
	ctx := context.Background()

	log.Debug(ctx, "dbg", "a", 1)
	log.Info(ctx, "inf", "b", 2)
	log.Warn(ctx, "wrn", "c", 3)
	log.Error(ctx, "err", "d", 4)

	out := buf.String()
	for _, want := range []string{
		`"level":"DEBUG"`, `"msg":"dbg"`, `"a":1`,
		`"level":"INFO"`, `"msg":"inf"`, `"b":2`,
		`"level":"WARN"`, `"msg":"wrn"`, `"c":3`,
		`"level":"ERROR"`, `"msg":"err"`, `"d":4`,
	} {
		assert.Contains(t, out, want)
	}
}

func TestSlogLogger_LevelFilter(t *testing.T) {
	log, buf := newTestLogger(t, "warn")
	ctx := context.Background()

	log.Info(ctx, "hidden")
	log.Warn(ctx, "shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestSlogLogger_With(t *testing.T) {
	log, buf := newTestLogger(t, "info")

	log.With("component", "store").Info(context.Background(), "hello", "k", "v")

	out := buf.String()
	assert.Contains(t, out, `"component":"store"`)
	assert.Contains(t, out, `"k":"v"`)
}

func TestSlogLogger_RequestID(t *testing.T) {
	log, buf := newTestLogger(t, "info")

	var captured context.Context
	h := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r.Context()
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotNil(t, captured)

	log.Info(captured, "tagged")
	assert.Contains(t, buf.String(), `"request_id":`)
}
