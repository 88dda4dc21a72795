package password

import (
	"fmt"
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// Argon2idParams controls Argon2id hashing cost.
// MemoryKiB is in KiB as required by argon2.IDKey.
type Argon2idParams struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Policy controls password validation and anti-DoS boundaries.
type Policy struct {
	MinLength int
	MaxLength int
	// RejectVeryWeak enables a minimal trivial-pattern check.
	RejectVeryWeak bool
}

// Config is the single configuration surface for this package.
type Config struct {
	Params Argon2idParams
	Policy Policy
}

// DefaultConfig returns the baseline hashing cost and an 8-character minimum,
// matching the signup contract.
func DefaultConfig() Config {
	threads := runtime.NumCPU()
	if threads <= 0 {
		threads = 1
	}
	if threads > 4 {
		threads = 4
	}

	return Config{
		Params: Argon2idParams{
			MemoryKiB:   64 * 1024,
			Iterations:  3,
			Parallelism: uint8(threads), // #nosec G115 -- clamped to [1..4] above.
			SaltLength:  16,
			KeyLength:   32,
		},
		Policy: Policy{
			MinLength: 8,
			MaxLength: 256,
		},
	}
}

// FromEnv loads config from environment variables on top of DefaultConfig.
//
// Env surface:
//   - HUDDLE_PASSWORD_MIN_LEN, HUDDLE_PASSWORD_MAX_LEN
//   - HUDDLE_PASSWORD_REJECT_VERY_WEAK
//   - HUDDLE_ARGON2_MEMORY_KIB, HUDDLE_ARGON2_ITERATIONS, HUDDLE_ARGON2_PARALLELISM
//   - HUDDLE_ARGON2_SALT_LEN, HUDDLE_ARGON2_KEY_LEN
func FromEnv() (Config, error) {
	cfg := DefaultConfig()

	ints := []struct {
		key      string
		min, max int
		dst      *int
	}{
		{"HUDDLE_PASSWORD_MIN_LEN", 1, 1024, &cfg.Policy.MinLength},
		{"HUDDLE_PASSWORD_MAX_LEN", 1, 4096, &cfg.Policy.MaxLength},
	}
	for _, it := range ints {
		v, ok := os.LookupEnv(it.key)
		if !ok {
			continue
		}
		n, err := atoiRange(v, it.min, it.max)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", it.key, err)
		}
		*it.dst = n
	}

	if v, ok := os.LookupEnv("HUDDLE_PASSWORD_REJECT_VERY_WEAK"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return Config{}, fmt.Errorf("HUDDLE_PASSWORD_REJECT_VERY_WEAK: %w", err)
		}
		cfg.Policy.RejectVeryWeak = b
	}

	u32s := []struct {
		key      string
		min, max uint32
		dst      *uint32
	}{
		{"HUDDLE_ARGON2_MEMORY_KIB", 8 * 1024, 1024 * 1024, &cfg.Params.MemoryKiB},
		{"HUDDLE_ARGON2_ITERATIONS", 1, 20, &cfg.Params.Iterations},
		{"HUDDLE_ARGON2_SALT_LEN", 8, 64, &cfg.Params.SaltLength},
		{"HUDDLE_ARGON2_KEY_LEN", 16, 64, &cfg.Params.KeyLength},
	}
	for _, it := range u32s {
		v, ok := os.LookupEnv(it.key)
		if !ok {
			continue
		}
		u, err := atou32Range(v, it.min, it.max)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", it.key, err)
		}
		*it.dst = u
	}

	if v, ok := os.LookupEnv("HUDDLE_ARGON2_PARALLELISM"); ok {
		u, err := atou32Range(v, 1, 64)
		if err != nil {
			return Config{}, fmt.Errorf("HUDDLE_ARGON2_PARALLELISM: %w", err)
		}
		if u > math.MaxUint8 {
			return Config{}, fmt.Errorf("HUDDLE_ARGON2_PARALLELISM: out of range")
		}
		cfg.Params.Parallelism = uint8(u)
	}

	if cfg.Policy.MinLength > cfg.Policy.MaxLength {
		return Config{}, fmt.Errorf(
			"password policy invalid: min_len(%d) > max_len(%d)",
			cfg.Policy.MinLength,
			cfg.Policy.MaxLength,
		)
	}

	return cfg, nil
}

func atoiRange(s string, minVal, maxVal int) (int, error) {
	i64, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("not an integer")
	}
	i := int(i64)
	if i < minVal || i > maxVal {
		return 0, fmt.Errorf("out of range [%d..%d]", minVal, maxVal)
	}
	return i, nil
}

func atou32Range(s string, minVal, maxVal uint32) (uint32, error) {
	u64, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("not an unsigned integer")
	}
	u := uint32(u64)
	if u < minVal || u > maxVal {
		return 0, fmt.Errorf("out of range [%d..%d]", minVal, maxVal)
	}
	return u, nil
}
