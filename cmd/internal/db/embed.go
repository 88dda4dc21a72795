// Package db embeds Huddle's SQL migrations.
package db

import "embed"

// MigrationFS holds the golang-migrate files under migrations/.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS

// Schema is the Postgres schema every migration writes into.
const Schema = "huddle"
