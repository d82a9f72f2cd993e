package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "ParseLevel(%q)", in)
	}
}

func TestJSONLoggerTagsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Format: FormatJSON, Component: ComponentLedger, Output: &buf})

	logger.Info("expense recorded", FieldExpenseID, int64(3))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "expense recorded", rec["msg"])
	assert.Equal(t, ComponentLedger, rec[FieldComponent])
	assert.EqualValues(t, 3, rec[FieldExpenseID])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelWarn, Format: FormatText, Output: &buf})

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
}

func TestPrettyHandlerWrites(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Format: FormatPretty, Output: &buf})

	logger.Info("hello pretty")

	assert.Contains(t, buf.String(), "hello pretty")
}

func TestWithComponentDoesNotDuplicate(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Format: FormatText, Output: &buf}).WithComponent(ComponentStorage)

	logger.Info("opened")

	assert.Equal(t, 1, strings.Count(buf.String(), "component="))
	assert.Contains(t, buf.String(), "component=storage")
}

func TestContextRoundTrip(t *testing.T) {
	logger := Discard().WithComponent(ComponentHTTP)
	ctx := NewContext(context.Background(), logger)
	assert.Same(t, logger, FromContext(ctx))

	fallback := FromContext(context.Background())
	require.NotNil(t, fallback)
	assert.Equal(t, "unknown", fallback.Component())
}

func TestLogHTTPEndLevels(t *testing.T) {
	cases := []struct {
		status int
		level  string
	}{
		{200, "INFO"},
		{422, "WARN"},
		{500, "ERROR"},
	}
	for _, tc := range cases {
		var buf bytes.Buffer
		sl := NewStructuredLogger(New(Config{Level: slog.LevelDebug, Format: FormatText, Output: &buf}))
		r := httptest.NewRequest(http.MethodPost, "/expenses", nil)

		sl.LogHTTPEnd(context.Background(), r, "id", tc.status, 3, "127.0.0.1")

		assert.Contains(t, buf.String(), "level="+tc.level, "status %d", tc.status)
	}
}
