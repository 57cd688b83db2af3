// Package pgsession implements a Postgres-backed session.Store (spec 4.5's
// "pluggable store" allowance), mirroring the teacher's migration-then-
// connect sequence (test/database/client.go) but with hand-written SQL via
// pgx instead of ent, since the generated ent client is not present in the
// retrieved pack (see DESIGN.md).
package pgsession

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrate applies every pending migration in migrations/ to dsn, the
// pgsession counterpart to the teacher's entClient.Schema.Create(ctx)
// auto-migration step, using versioned SQL files instead of ent codegen.
func Migrate(dsn string) error {
	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("pgsession: failed to load embedded migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, dsn)
	if err != nil {
		return fmt.Errorf("pgsession: failed to create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("pgsession: migration failed: %w", err)
	}
	return nil
}
