package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	prevLevel := defaultLogger.level
	t.Cleanup(func() {
		SetOutput(nil)
		SetLevel(prevLevel)
		SetRedactPII(true)
	})
	return &buf
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", DEBUG},
		{"INFO", INFO},
		{" warn ", WARN},
		{"warning", WARN},
		{"error", ERROR},
		{"", INFO},
		{"verbose", INFO},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestInfo_WritesJSONLine(t *testing.T) {
	buf := captureLogs(t)

	Info("batch flushed", "stream", "Contacts", "entries", 7)

	var entry map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "batch flushed", entry["msg"])
	assert.Equal(t, "Contacts", entry["stream"])
	assert.Equal(t, "7", entry["entries"])
}

func TestLevelFiltering(t *testing.T) {
	buf := captureLogs(t)
	SetLevel(WARN)

	Info("dropped")
	Debug("dropped too")
	Warn("kept")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"kept"`)
}

func TestRedaction(t *testing.T) {
	buf := captureLogs(t)

	Error("upsert failed", "email", "john.doe@example.com", "error", "bad contact jane@example.org")

	out := buf.String()
	assert.NotContains(t, out, "john.doe@example.com")
	assert.NotContains(t, out, "jane@example.org")
	assert.Contains(t, out, "jo***@example.com")
	assert.Contains(t, out, "ja***@example.org")
}

func TestRedactionDisabled(t *testing.T) {
	buf := captureLogs(t)
	SetRedactPII(false)

	Info("raw", "email", "john.doe@example.com")

	assert.Contains(t, buf.String(), "john.doe@example.com")
}

func TestWith_PrefixesFields(t *testing.T) {
	buf := captureLogs(t)

	log := With("stream", "Customers", "batch_id", "b-1")
	log.Info("polling import job", "job_id", "j-9")

	var entry map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Customers", entry["stream"])
	assert.Equal(t, "b-1", entry["batch_id"])
	assert.Equal(t, "j-9", entry["job_id"])
}

func TestRedactEmail(t *testing.T) {
	assert.Equal(t, "jo***@example.com", RedactEmail("john.doe@example.com"))
	assert.Equal(t, "***@example.com", RedactEmail("ab@example.com"))
	assert.Equal(t, "***@***", RedactEmail("not-an-email"))
}
