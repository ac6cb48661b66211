package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseDuration tests the time interval suffix rules
func TestParseDuration(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{name: "bare number is milliseconds", input: "250", expected: 250 * time.Millisecond},
		{name: "ms suffix", input: "250ms", expected: 250 * time.Millisecond},
		{name: "seconds", input: "5s", expected: 5 * time.Second},
		{name: "minutes", input: "3m", expected: 3 * time.Minute},
		{name: "hours", input: "2h", expected: 2 * time.Hour},
		{name: "days", input: "1d", expected: 24 * time.Hour},
		{name: "surrounding whitespace", input: "  10s ", expected: 10 * time.Second},
		{name: "empty", input: "", wantErr: true},
		{name: "not a number", input: "abc", wantErr: true},
		{name: "bad digits with suffix", input: "x5s", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := ParseDuration(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, d)
		})
	}
}

// TestTypedAccessors tests int, int64, bool, pair, list and map parsing
func TestTypedAccessors(t *testing.T) {
	cfg := FromMap(map[string]string{
		"int":       "42",
		"int64":     "9000000000",
		"boolTrue":  "true",
		"pair":      "2, 8",
		"ints":      "1,2,3",
		"int64s":    "10, 20",
		"strings":   "a, b , c",
		"durations": "1s, 500ms",
		"kv":        "alpha=1, beta=two",
		"badInt":    "nope",
	})

	n, err := cfg.Int("int")
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	n64, err := cfg.Int64("int64")
	require.NoError(t, err)
	assert.Equal(t, int64(9000000000), n64)

	b, err := cfg.Bool("boolTrue")
	require.NoError(t, err)
	assert.True(t, b)

	first, second, err := cfg.IntPair("pair")
	require.NoError(t, err)
	assert.Equal(t, 2, first)
	assert.Equal(t, 8, second)

	ints, err := cfg.Ints("ints")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, ints)

	int64s, err := cfg.Int64s("int64s")
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 20}, int64s)

	strs, err := cfg.Strings("strings")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, strs)

	durs, err := cfg.Durations("durations")
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{time.Second, 500 * time.Millisecond}, durs)

	kv, err := cfg.StringMap("kv")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"alpha": "1", "beta": "two"}, kv)

	_, err = cfg.Int("badInt")
	assert.Error(t, err)

	_, err = cfg.Int("missing")
	assert.Error(t, err)
}

// TestDefaults tests the default-returning accessor variants
func TestDefaults(t *testing.T) {
	cfg := FromMap(map[string]string{"present": "7"})

	n, err := cfg.IntDefault("present", 1)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	n, err = cfg.IntDefault("absent", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	d, err := cfg.DurationDefault("absent", 3*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, d)

	assert.Equal(t, "fallback", cfg.StringDefault("absent", "fallback"))
}

// TestLoadFile tests flat YAML loading
func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "burrow.yaml")
	content := "cacheName: sessions\nmainQueueCacheTime: 2s\nmaxUpdatesToCollect: 64\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	name, err := cfg.String("cacheName")
	require.NoError(t, err)
	assert.Equal(t, "sessions", name)

	d, err := cfg.Duration("mainQueueCacheTime")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, d)

	n, err := cfg.Int("maxUpdatesToCollect")
	require.NoError(t, err)
	assert.Equal(t, 64, n)
}

// TestSetAndKeys tests runtime mutation and key listing
func TestSetAndKeys(t *testing.T) {
	cfg := New()
	cfg.Set("b", "2")
	cfg.Set("a", "1")
	assert.True(t, cfg.Has("a"))
	assert.False(t, cfg.Has("c"))
	assert.Equal(t, []string{"a", "b"}, cfg.Keys())

	cfg.Set("a", "3")
	n, err := cfg.Int("a")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
