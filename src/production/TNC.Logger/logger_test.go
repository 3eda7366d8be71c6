package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(buf *bytes.Buffer) *Logger {
	zl := zerolog.New(buf)
	return &Logger{&zl}
}

func lastLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &entry))
	return entry
}

func TestWithFieldsAndError(t *testing.T) {
	var buf bytes.Buffer
	log := newBufferLogger(&buf).WithComponent("reading_service")

	log.WithFields(map[string]interface{}{
		"reading_id": "r-1",
		"device_id":  "tank1",
	}).Debug("Reading stored")

	entry := lastLine(t, &buf)
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "reading_service", entry["component"])
	assert.Equal(t, "r-1", entry["reading_id"])
	assert.Equal(t, "tank1", entry["device_id"])
	assert.Equal(t, "Reading stored", entry["message"])

	log.WithField("backend", "sqlite").WithError(errors.New("database is closed")).Error("Readiness check failed")

	entry = lastLine(t, &buf)
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "sqlite", entry["backend"])
	assert.Equal(t, "database is closed", entry["error"])
}

func TestNewNopDiscards(t *testing.T) {
	assert.NotPanics(t, func() {
		NewNop().WithRequestID("abc").Warn("dropped")
	})
}
