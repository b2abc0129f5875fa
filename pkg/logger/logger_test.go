package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "debug").With("connection_id", "c-1")

	log.Info("Message sent", "conversation_id", "conv-1", "error", errors.New("boom"), "count", 3, "dangling")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "Message sent", entry["message"])
	assert.Equal(t, "c-1", entry["connection_id"])
	assert.Equal(t, "conv-1", entry["conversation_id"])
	assert.Equal(t, "boom", entry["error"])
	assert.Equal(t, float64(3), entry["count"])
	assert.Equal(t, "MISSING", entry["dangling"])
}

func TestLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "warn")

	log.Debug("hidden")
	log.Info("hidden")
	assert.Zero(t, buf.Len())

	log.Warn("shown")
	assert.Contains(t, buf.String(), "shown")

	buf.Reset()
	NewWithWriter(&buf, "nonsense").Info("defaults to info")
	assert.Contains(t, buf.String(), "defaults to info")
}
