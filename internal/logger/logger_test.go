package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ProductionWritesJSON(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	l := New(&buf, "production")
	l.Info("hello", "k", "v")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "v", entry["k"])
	assert.Equal(t, "image-drop", entry["service"])
}

func TestNew_DevelopmentLogsDebug(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	l := New(&buf, "development")
	l.Debug("verbose")

	assert.Contains(t, buf.String(), "msg=verbose")
}

func TestFromContext_AddsRequestID(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	New(&buf, "production")

	ctx := WithRequestID(context.Background(), "abc123")
	assert.Equal(t, "abc123", RequestID(ctx))

	FromContext(ctx).Info("with id")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "abc123", entry["request_id"])
}

func TestRequestID_Empty(t *testing.T) {
	assert.Equal(t, "", RequestID(context.Background()))
}
