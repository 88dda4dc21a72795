package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// dbApplicationName tags Huddle's connections in pg_stat_activity unless the
// DSN already names one.
const dbApplicationName = "huddle"

// poolConfig turns Config into a pgxpool config. Errors never echo the DSN,
// which usually carries a password.
func poolConfig(cfg Config) (*pgxpool.Config, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, errors.New("db: HUDDLE_DATABASE_URL is not a valid postgres connection string")
	}

	if cfg.DBMaxConns > 0 {
		pcfg.MaxConns = cfg.DBMaxConns
	}
	if cfg.DBMinConns > 0 {
		pcfg.MinConns = min(cfg.DBMinConns, pcfg.MaxConns)
	}
	if _, ok := pcfg.ConnConfig.RuntimeParams["application_name"]; !ok {
		pcfg.ConnConfig.RuntimeParams["application_name"] = dbApplicationName
	}
	return pcfg, nil
}

// NewDBPool opens the shared pool and checks it can reach the server.
// Migrations are separate: see HUDDLE_MIGRATE_ON_START and cmd/migrate.
func NewDBPool(ctx context.Context, cfg Config, log Logger) (*pgxpool.Pool, error) {
	pcfg, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("db: open pool: %w", err)
	}

	if err := PingDB(ctx, pool, nonZeroDuration(cfg.DBPingTimeout, 3*time.Second)); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db: ping %s:%d: %w", pcfg.ConnConfig.Host, pcfg.ConnConfig.Port, err)
	}

	log.Info("db.pool.ready",
		"host", pcfg.ConnConfig.Host,
		"database", pcfg.ConnConfig.Database,
		"max_conns", pcfg.MaxConns,
		"min_conns", pcfg.MinConns,
	)
	return pool, nil
}

// PingDB round-trips to the server within timeout.
func PingDB(parent context.Context, pool *pgxpool.Pool, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()
	return pool.Ping(ctx)
}
