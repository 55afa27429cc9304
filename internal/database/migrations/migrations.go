// Package migrations holds the schema history of the ledger database.
package migrations

import "github.com/uptrace/bun/migrate"

// Migrations is the registry every migration file adds itself to.
var Migrations = migrate.NewMigrations() //nolint:gochecknoglobals // -
