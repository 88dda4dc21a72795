// Package app wires the Huddle server runtime: config, logging, storage
// backends, auth routes and metrics.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"huddle/cmd/identity"
	authapi "huddle/cmd/internal/auth/api"
	"huddle/cmd/internal/auth/session"
	"huddle/cmd/internal/db"
	"huddle/cmd/internal/db/migrate"
	"huddle/cmd/security/password"
)

// App is the Huddle server runtime. It owns the HTTP handler and the
// lifecycle of the database pool and redis client.
type App struct {
	cfg Config
	log Logger

	pool *pgxpool.Pool
	rdb  *redis.Client

	handler http.Handler
}

// New constructs a fully wired App instance from config and logger.
func New(ctx context.Context, cfg Config, log Logger) (_ *App, err error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateSecurityConfig(cfg); err != nil {
		return nil, err
	}
	for _, key := range cfg.Ignored {
		log.Warn("config.env.ignored", "key", key)
	}

	sessCfg, err := session.LoadConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("session config: %w", err)
	}
	authCfg := authapi.LoadConfigFromEnv()
	pwCfg, err := password.FromEnv()
	if err != nil {
		return nil, fmt.Errorf("password config: %w", err)
	}

	a := &App{cfg: cfg, log: log}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	if cfg.DatabaseURL != "" {
		if cfg.MigrateOnStart {
			if err := migrate.Run(cfg.DatabaseURL, "up"); err != nil {
				return nil, fmt.Errorf("migrate: %w", err)
			}
			log.Info("db.migrate.done")
		}
		if a.pool, err = NewDBPool(ctx, cfg, log); err != nil {
			return nil, err
		}
		log.Info("db.enabled.postgres_store")
	} else {
		log.Info("db.disabled.inmemory_store")
	}

	users, err := a.newIdentityStore(pwCfg)
	if err != nil {
		return nil, err
	}
	sessions, err := a.newSessionStore(ctx, sessCfg)
	if err != nil {
		return nil, err
	}

	codec, err := session.NewCodec(sessCfg.Codec())
	if err != nil {
		return nil, err
	}
	dummyHash, err := pwCfg.Hash("dummy-password-for-timing-only")
	if err != nil {
		return nil, err
	}
	svc, err := session.NewService(codec, sessions, authapi.NewAccounts(users), pwCfg,
		session.WithLogger(log),
		session.WithTokenHasher(tokenHasher(cfg)),
		session.WithDummyHash(dummyHash),
	)
	if err != nil {
		return nil, err
	}

	reg := newRegistry()
	authMetrics, err := authapi.NewMetrics(reg)
	if err != nil {
		return nil, err
	}
	httpM, err := newHTTPMetrics(reg)
	if err != nil {
		return nil, err
	}

	gate := authapi.NewGate(codec, authCfg, authapi.NewResponder(authCfg),
		authapi.WithGateMetrics(authMetrics),
		authapi.WithGateLogger(log),
	)

	opts := []authapi.HandlerOption{authapi.WithMetrics(authMetrics)}
	if a.pool != nil {
		audit, err := authapi.NewAuditLog(a.pool, db.Schema, log)
		if err != nil {
			return nil, err
		}
		opts = append(opts, authapi.WithAudit(audit))
	}
	auth, err := authapi.NewHandler(log, authCfg, svc, users, gate, opts...)
	if err != nil {
		return nil, err
	}

	deps := httpDeps{
		log:     log,
		cfg:     cfg,
		pool:    a.pool,
		auth:    auth,
		gate:    gate,
		reg:     reg,
		metrics: httpM,
	}
	if a.rdb != nil {
		deps.rdb = a.rdb
	}
	a.handler = newHTTPHandler(deps)
	return a, nil
}

func (a *App) newIdentityStore(hasher identity.PasswordHasher) (identity.Store, error) {
	if a.pool == nil {
		return identity.NewMemoryStore(hasher), nil
	}
	return identity.NewPostgresStore(a.pool,
		identity.WithSchema(db.Schema),
		identity.WithPasswordHasher(hasher),
	)
}

func (a *App) newSessionStore(ctx context.Context, sessCfg session.Config) (session.Store, error) {
	opt := session.WithRevokeOnReuse(sessCfg.RevokeOnReuse)
	backend := a.cfg.sessionBackend()

	switch backend {
	case BackendPostgres:
		a.log.Info("session.backend", "backend", backend)
		return session.NewPostgresStore(a.pool, db.Schema, opt)
	case BackendRedis:
		rdb, err := NewRedisClient(ctx, a.cfg)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.rdb = rdb
		a.log.Info("session.backend", "backend", backend, "addr", a.cfg.RedisAddr)
		return session.NewRedisStore(rdb, a.cfg.RedisPrefix, opt)
	case BackendMemory:
		if a.pool != nil {
			// Users survive a restart but their sessions do not.
			a.log.Warn("session.backend.memory_with_db")
		}
		a.log.Info("session.backend", "backend", backend)
		return session.NewMemoryStore(opt), nil
	default:
		return nil, fmt.Errorf("unknown HUDDLE_SESSION_BACKEND %q", backend)
	}
}

// Handler returns the fully wrapped HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start",
		"addr", a.cfg.HTTPAddr,
		"db_enabled", a.pool != nil,
		"session_backend", a.cfg.sessionBackend(),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		a.close()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		a.close()
		return err
	}

	a.close()
	a.log.Info("server.stopped")
	return nil
}

// close releases the pool and redis client. Safe to call more than once.
func (a *App) close() {
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.log.Error("redis.close.fail", "err", err)
		}
		a.rdb = nil
	}
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
