package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is a flat key to string value configuration map with typed
// accessors. Values may be changed at runtime via Set; readers always
// observe the latest value for each individual key.
type Config struct {
	mu     sync.RWMutex
	values map[string]string
}

// New creates an empty configuration
func New() *Config {
	return &Config{values: make(map[string]string)}
}

// FromMap creates a configuration from an existing key/value map
func FromMap(values map[string]string) *Config {
	cfg := New()
	for k, v := range values {
		cfg.values[k] = v
	}
	return cfg
}

// LoadFile loads a flat YAML mapping of keys to scalar values
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	raw := make(map[string]interface{})
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg := New()
	for k, v := range raw {
		cfg.values[k] = fmt.Sprintf("%v", v)
	}
	return cfg, nil
}

// Set stores or replaces a single value
func (c *Config) Set(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
}

// Has reports whether the key is present
func (c *Config) Has(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.values[key]
	return ok
}

// Keys returns all configured keys in sorted order
func (c *Config) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String returns the raw value for key
func (c *Config) String(key string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	if !ok {
		return "", fmt.Errorf("config key not found: %s", key)
	}
	return v, nil
}

// StringDefault returns the raw value or the given default when absent
func (c *Config) StringDefault(key, def string) string {
	if v, err := c.String(key); err == nil {
		return v
	}
	return def
}

// Int returns the value parsed as an int
func (c *Config) Int(key string) (int, error) {
	v, err := c.String(key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("config key %s: invalid int %q", key, v)
	}
	return n, nil
}

// IntDefault returns the int value or the given default when absent
func (c *Config) IntDefault(key string, def int) (int, error) {
	if !c.Has(key) {
		return def, nil
	}
	return c.Int(key)
}

// Int64 returns the value parsed as an int64
func (c *Config) Int64(key string) (int64, error) {
	v, err := c.String(key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("config key %s: invalid int64 %q", key, v)
	}
	return n, nil
}

// Int64Default returns the int64 value or the given default when absent
func (c *Config) Int64Default(key string, def int64) (int64, error) {
	if !c.Has(key) {
		return def, nil
	}
	return c.Int64(key)
}

// Bool returns the value parsed as a boolean
func (c *Config) Bool(key string) (bool, error) {
	v, err := c.String(key)
	if err != nil {
		return false, err
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return false, fmt.Errorf("config key %s: invalid bool %q", key, v)
	}
	return b, nil
}

// BoolDefault returns the boolean value or the given default when absent
func (c *Config) BoolDefault(key string, def bool) (bool, error) {
	if !c.Has(key) {
		return def, nil
	}
	return c.Bool(key)
}

// Duration returns the value parsed as a time interval. Bare numbers are
// milliseconds; the suffixes ms, s, m, h and d select the unit.
func (c *Config) Duration(key string) (time.Duration, error) {
	v, err := c.String(key)
	if err != nil {
		return 0, err
	}
	d, err := ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config key %s: %w", key, err)
	}
	return d, nil
}

// DurationDefault returns the time interval or the given default when absent
func (c *Config) DurationDefault(key string, def time.Duration) (time.Duration, error) {
	if !c.Has(key) {
		return def, nil
	}
	return c.Duration(key)
}

// IntPair returns the value parsed as two comma-separated ints
func (c *Config) IntPair(key string) (int, int, error) {
	v, err := c.String(key)
	if err != nil {
		return 0, 0, err
	}
	parts := strings.Split(v, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("config key %s: expected int pair, got %q", key, v)
	}
	first, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("config key %s: invalid int %q", key, parts[0])
	}
	second, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("config key %s: invalid int %q", key, parts[1])
	}
	return first, second, nil
}

// IntPairDefault returns the int pair or the given defaults when absent
func (c *Config) IntPairDefault(key string, defFirst, defSecond int) (int, int, error) {
	if !c.Has(key) {
		return defFirst, defSecond, nil
	}
	return c.IntPair(key)
}

// Ints returns the value parsed as a comma-separated list of ints
func (c *Config) Ints(key string) ([]int, error) {
	v, err := c.String(key)
	if err != nil {
		return nil, err
	}
	parts := splitList(v)
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("config key %s: invalid int %q", key, p)
		}
		out = append(out, n)
	}
	return out, nil
}

// Int64s returns the value parsed as a comma-separated list of int64s
func (c *Config) Int64s(key string) ([]int64, error) {
	v, err := c.String(key)
	if err != nil {
		return nil, err
	}
	parts := splitList(v)
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("config key %s: invalid int64 %q", key, p)
		}
		out = append(out, n)
	}
	return out, nil
}

// Strings returns the value parsed as a comma-separated list of strings
func (c *Config) Strings(key string) ([]string, error) {
	v, err := c.String(key)
	if err != nil {
		return nil, err
	}
	return splitList(v), nil
}

// Durations returns the value parsed as a comma-separated list of time
// intervals using the same suffix rules as Duration
func (c *Config) Durations(key string) ([]time.Duration, error) {
	v, err := c.String(key)
	if err != nil {
		return nil, err
	}
	parts := splitList(v)
	out := make([]time.Duration, 0, len(parts))
	for _, p := range parts {
		d, err := ParseDuration(p)
		if err != nil {
			return nil, fmt.Errorf("config key %s: %w", key, err)
		}
		out = append(out, d)
	}
	return out, nil
}

// StringMap returns the value parsed as comma-separated key=value pairs
func (c *Config) StringMap(key string) (map[string]string, error) {
	v, err := c.String(key)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string)
	for _, p := range splitList(v) {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("config key %s: invalid key=value pair %q", key, p)
		}
		out[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
	}
	return out, nil
}

// ParseDuration parses a time interval string. Bare numbers are
// milliseconds; ms, s, m, h and d suffixes select the unit.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty time interval")
	}

	unit := time.Millisecond
	num := s
	switch {
	case strings.HasSuffix(s, "ms"):
		num = s[:len(s)-2]
	case strings.HasSuffix(s, "s"):
		unit = time.Second
		num = s[:len(s)-1]
	case strings.HasSuffix(s, "m"):
		unit = time.Minute
		num = s[:len(s)-1]
	case strings.HasSuffix(s, "h"):
		unit = time.Hour
		num = s[:len(s)-1]
	case strings.HasSuffix(s, "d"):
		unit = 24 * time.Hour
		num = s[:len(s)-1]
	}

	n, err := strconv.ParseInt(strings.TrimSpace(num), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid time interval %q", s)
	}
	return time.Duration(n) * unit, nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
