package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestLogger_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf, Level: LevelInfo, Format: "json"}).With(Component("ledger"))

	log.Info("lesson completed", EnrollmentID("e1"), LessonID("l1"), Int("score", 7), Err(errors.New("late")))
	log.Debug("hidden")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	entry := lines[0]
	assert.Equal(t, "lesson completed", entry["message"])
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "ledger", entry["component"])
	assert.Equal(t, "e1", entry["enrollment_id"])
	assert.Equal(t, "l1", entry["lesson_id"])
	assert.Equal(t, float64(7), entry["score"])
	assert.Equal(t, "late", entry["error"])
	assert.Contains(t, entry, "timestamp")
}

func TestLogger_NilErrIsSkipped(t *testing.T) {
	var buf bytes.Buffer
	New(Options{Output: &buf, Level: LevelInfo}).Warn("no error", Err(nil))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.NotContains(t, lines[0], "error")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel(" WARNING "))
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
}

func TestFromContext(t *testing.T) {
	l := NewNop()
	assert.Same(t, l, FromContext(WithContext(context.Background(), l)))
	assert.NotNil(t, FromContext(context.Background()))
}
