package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// envReader reads HUDDLE_* settings. A value that is set but cannot be
// parsed falls back to the default and is remembered in ignored, so the
// caller can report it once a logger exists.
type envReader struct {
	lookup  func(string) (string, bool)
	ignored []string
}

func newEnvReader() *envReader {
	return &envReader{lookup: os.LookupEnv}
}

func (e *envReader) value(key string) (string, bool) {
	v, ok := e.lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (e *envReader) reject(key string) {
	e.ignored = append(e.ignored, key)
}

func (e *envReader) string(key, def string) string {
	if v, ok := e.value(key); ok {
		return v
	}
	return def
}

// oneOf lowercases the value and accepts it only if it is in allowed.
func (e *envReader) oneOf(key, def string, allowed ...string) string {
	v, ok := e.value(key)
	if !ok {
		return def
	}
	v = strings.ToLower(v)
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	e.reject(key)
	return def
}

func (e *envReader) bool(key string, def bool) bool {
	v, ok := e.value(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.reject(key)
		return def
	}
	return b
}

// int accepts values >= min.
func (e *envReader) int(key string, def, min int) int {
	v, ok := e.value(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < min {
		e.reject(key)
		return def
	}
	return n
}

func (e *envReader) int32(key string, def int32) int32 {
	v, ok := e.value(key)
	if !ok {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 32)
	if err != nil || n < 0 {
		e.reject(key)
		return def
	}
	return int32(n)
}

func (e *envReader) duration(key string, def time.Duration) time.Duration {
	v, ok := e.value(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		e.reject(key)
		return def
	}
	return d
}

// EnvString reads a single string setting with a default. Used by tools
// outside the server that need one value, such as cmd/migrate.
func EnvString(key, def string) string {
	return newEnvReader().string(key, def)
}
