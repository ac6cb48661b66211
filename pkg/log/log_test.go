package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestInitRejectsUnknownLevel tests level-name parsing
func TestInitRejectsUnknownLevel(t *testing.T) {
	err := Init(Config{Level: "loud"})
	assert.Error(t, err)
}

// TestChildLoggersCarryFields tests cache and component fields
func TestChildLoggersCarryFields(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, Init(Config{Level: "debug", Output: buf}))

	WithCache("sessions").Info().Msg("cycle done")
	WithComponent("config-watcher").Warn().Msg("reloaded")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	first := map[string]interface{}{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "sessions", first["cache"])
	assert.Equal(t, "cycle done", first["message"])

	second := map[string]interface{}{}
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "config-watcher", second["component"])
}

// TestLevelFiltersChildren tests that the configured level gates child
// loggers
func TestLevelFiltersChildren(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, Init(Config{Level: "warn", Output: buf}))

	WithCache("sessions").Info().Msg("suppressed")
	WithCache("sessions").Error().Msg("emitted")

	out := buf.String()
	assert.NotContains(t, out, "suppressed")
	assert.Contains(t, out, "emitted")
}

// TestDefaultLevelIsInfo tests the empty-level default
func TestDefaultLevelIsInfo(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, Init(Config{Output: buf}))

	WithCache("c").Debug().Msg("suppressed")
	WithCache("c").Info().Msg("emitted")

	out := buf.String()
	assert.NotContains(t, out, "suppressed")
	assert.Contains(t, out, "emitted")
}
