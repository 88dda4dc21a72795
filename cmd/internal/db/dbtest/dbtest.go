// Package dbtest opens Postgres for integration tests and installs the
// embedded schema into a throwaway schema per test.
//
// Tests are opt-in: without HUDDLE_DATABASE_URL they skip. Outside CI an
// unreachable server also skips.
package dbtest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"

	"huddle/cmd/internal/db"
)

// EnvDatabaseURL names the variable integration tests read.
const EnvDatabaseURL = "HUDDLE_DATABASE_URL"

// OpenPool connects to HUDDLE_DATABASE_URL or skips the test.
func OpenPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	raw := strings.TrimSpace(os.Getenv(EnvDatabaseURL))
	if raw == "" {
		t.Skip("integration test skipped: HUDDLE_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
	defer cancel()

	cfg, err := pgxpool.ParseConfig(raw)
	if err != nil {
		t.Fatalf("parse HUDDLE_DATABASE_URL: %v", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer pingCancel()

	c, err := pool.Acquire(pingCtx)
	if err != nil {
		pool.Close()
		if ShouldSkipIntegration(err) {
			t.Skipf("integration test skipped: Postgres unreachable: %v", err)
		}
		t.Fatalf("acquire: %v", err)
	}
	c.Release()

	t.Cleanup(pool.Close)
	return pool
}

// FreshSchema creates a uniquely named schema, applies every up migration
// into it and drops it when the test ends.
func FreshSchema(t *testing.T, pool *pgxpool.Pool) string {
	t.Helper()

	schema := "huddle_it_" + strings.ToLower(ulid.Make().String())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	ddl, err := upMigrations(schema)
	if err != nil {
		t.Fatalf("load migrations: %v", err)
	}
	if _, err := pool.Exec(ctx, ddl); err != nil {
		t.Fatalf("apply schema: %v", err)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, _ = pool.Exec(ctx, `DROP SCHEMA IF EXISTS `+pgx.Identifier{schema}.Sanitize()+` CASCADE`)
	})
	return schema
}

// upMigrations concatenates the embedded *.up.sql files, retargeted at schema.
func upMigrations(schema string) (string, error) {
	names, err := fs.Glob(db.MigrationFS, "migrations/*.up.sql")
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", errors.New("no up migrations embedded")
	}
	sort.Strings(names)

	quoted := pgx.Identifier{schema}.Sanitize()
	var b strings.Builder
	for _, name := range names {
		raw, err := fs.ReadFile(db.MigrationFS, name)
		if err != nil {
			return "", fmt.Errorf("%s: %w", name, err)
		}
		sql := strings.ReplaceAll(string(raw), "SCHEMA IF NOT EXISTS "+db.Schema+";", "SCHEMA IF NOT EXISTS "+quoted+";")
		sql = strings.ReplaceAll(sql, db.Schema+".", quoted+".")
		b.WriteString(sql)
		b.WriteString("\n")
	}
	return b.String(), nil
}

// ShouldSkipIntegration reports whether err looks like an unreachable
// server. Inside CI it always returns false.
func ShouldSkipIntegration(err error) bool {
	if err == nil {
		return false
	}
	if os.Getenv("CI") != "" {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "context deadline exceeded") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "dial tcp") ||
		strings.Contains(msg, "no such host")
}
