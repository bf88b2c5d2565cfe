package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	InitializeWithWriter(&buf, "debug", "json")
	t.Cleanup(func() { Initialize("info", "text") })

	DatabaseCall("GetBalance", "SELECT  tokens\n\tFROM users_with_tokens", "user_id", "u1")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "→ Database call", line["msg"])
	assert.Equal(t, "SELECT tokens FROM users_with_tokens", line["query"])
	assert.Equal(t, "u1", line["user_id"])
	assert.Equal(t, "tokenshop", line["app"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	InitializeWithWriter(&buf, "info", "text")
	t.Cleanup(func() { Initialize("info", "text") })

	EnterMethod("ReserveOrder")
	assert.Empty(t, buf.String())

	ExternalServiceResult("hcb", "CreateGrant", errors.New("boom"))
	assert.Contains(t, buf.String(), "External service call failed")
	assert.Contains(t, buf.String(), "boom")
}
