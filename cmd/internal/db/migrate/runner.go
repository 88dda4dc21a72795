// Package migrate applies the embedded SQL migrations with golang-migrate.
package migrate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"huddle/cmd/internal/db"
)

// ErrNoChange is returned by golang-migrate when there is nothing to apply.
var ErrNoChange = migrate.ErrNoChange

// ErrNoDSN is returned when no database URL was provided.
var ErrNoDSN = errors.New("HUDDLE_DATABASE_URL is not set")

// Run applies migrations in direction ("up" or "down") against dsn.
// Being already at the target version is not an error.
func Run(dsn, direction string) error {
	if strings.TrimSpace(dsn) == "" {
		return ErrNoDSN
	}
	if direction != "up" && direction != "down" {
		return fmt.Errorf("direction must be up or down, got %q", direction)
	}

	src, err := iofs.New(db.MigrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrate source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	switch direction {
	case "up":
		err = m.Up()
	default:
		err = m.Down()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
