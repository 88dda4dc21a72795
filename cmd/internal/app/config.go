package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"huddle/cmd/security/token"
)

// Session store backends.
const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// DBPingTimeout bounds the connectivity check when the pool is built.
	DBPingTimeout time.Duration

	// If true:
	// - /readyz returns 503 unless DB is configured and reachable.
	ReadinessRequireDB bool

	// MigrateOnStart applies the embedded migrations before serving.
	MigrateOnStart bool

	// SessionBackend is postgres, redis or memory. Empty picks postgres when
	// a database is configured and memory otherwise.
	SessionBackend string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	// Security policy:
	// If true, HUDDLE_TOKEN_HMAC_KEY MUST be set (>= 32 bytes) and refresh-token hashing must be HMAC-based.
	RequireTokenHMAC bool
	TokenHMACKey     string

	// Ignored lists HUDDLE_* variables whose values could not be parsed.
	Ignored []string
}

// LoadConfig loads Config from environment variables with defaults.
// Settings that are present but malformed keep their default and are listed
// in Config.Ignored.
func LoadConfig() Config {
	return loadConfig(newEnvReader())
}

func loadConfig(env *envReader) Config {
	cfg := Config{
		HTTPAddr:  env.string("HUDDLE_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  env.oneOf("HUDDLE_LOG_LEVEL", "info", "debug", "info", "warn", "warning", "error"),
		LogFormat: env.oneOf("HUDDLE_LOG_FORMAT", "json", "json", "text"),

		ReadHeaderTimeout: env.duration("HUDDLE_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       env.duration("HUDDLE_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      env.duration("HUDDLE_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       env.duration("HUDDLE_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: env.int("HUDDLE_HTTP_MAX_HEADER_BYTES", 1<<20, 1),

		DatabaseURL:   env.string("HUDDLE_DATABASE_URL", ""),
		DBMaxConns:    env.int32("HUDDLE_DB_MAX_CONNS", 10),
		DBMinConns:    env.int32("HUDDLE_DB_MIN_CONNS", 0),
		DBPingTimeout: env.duration("HUDDLE_DB_PING_TIMEOUT", 3*time.Second),

		ReadinessRequireDB: env.bool("HUDDLE_READINESS_REQUIRE_DB", false),
		MigrateOnStart:     env.bool("HUDDLE_MIGRATE_ON_START", false),

		SessionBackend: strings.ToLower(env.string("HUDDLE_SESSION_BACKEND", "")),
		RedisAddr:      env.string("HUDDLE_REDIS_ADDR", ""),
		RedisPassword:  env.string("HUDDLE_REDIS_PASSWORD", ""),
		RedisDB:        env.int("HUDDLE_REDIS_DB", 0, 0),
		RedisPrefix:    env.string("HUDDLE_REDIS_PREFIX", "huddle:"),

		RequireTokenHMAC: env.bool("HUDDLE_REQUIRE_TOKEN_HMAC", false),
		TokenHMACKey:     env.string(token.HMACEnvKey, ""),
	}
	cfg.Ignored = env.ignored
	return cfg
}

// Validate reports settings that cannot work together. It runs before any
// connection is opened.
func (c Config) Validate() error {
	var errs []error
	switch b := c.sessionBackend(); b {
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("session backend postgres requires HUDDLE_DATABASE_URL"))
		}
	case BackendRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("session backend redis requires HUDDLE_REDIS_ADDR"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown HUDDLE_SESSION_BACKEND %q", b))
	}
	if c.DBMaxConns > 0 && c.DBMinConns > c.DBMaxConns {
		errs = append(errs, fmt.Errorf("HUDDLE_DB_MIN_CONNS (%d) exceeds HUDDLE_DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns))
	}
	return errors.Join(errs...)
}

// sessionBackend resolves the effective session backend.
func (c Config) sessionBackend() string {
	if c.SessionBackend != "" {
		return c.SessionBackend
	}
	if c.DatabaseURL != "" {
		return BackendPostgres
	}
	return BackendMemory
}
