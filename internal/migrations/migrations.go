// Package migrations embeds the SQL schema and applies it with
// golang-migrate.
package migrations

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/rijksuitgaven/mailengine/internal/pkg/logger"
)

// FS holds the numbered up/down migrations.
//
//go:embed sql/*.sql
var FS embed.FS

// Runner applies migrations from a filesystem to one database.
type Runner struct {
	m *migrate.Migrate
}

// NewRunner opens a migration runner for databaseURL using the files under
// dir in fsys.
func NewRunner(fsys fs.FS, dir, databaseURL string) (*Runner, error) {
	src, err := iofs.New(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("open migration source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("init migrate: %w", err)
	}
	return &Runner{m: m}, nil
}

// Up applies all pending migrations. No change is not an error.
func (r *Runner) Up() error {
	if err := r.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// Down rolls back steps migrations.
func (r *Runner) Down(steps int) error {
	if steps <= 0 {
		steps = 1
	}
	if err := r.m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate down: %w", err)
	}
	return nil
}

// Version returns the applied version and whether it is dirty. A database
// without migrations reports version 0.
func (r *Runner) Version() (uint, bool, error) {
	v, dirty, err := r.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

// Close releases the source and database handles.
func (r *Runner) Close() error {
	srcErr, dbErr := r.m.Close()
	return errors.Join(srcErr, dbErr)
}

// Run applies every embedded migration to databaseURL.
func Run(databaseURL string) error {
	r, err := NewRunner(FS, "sql", databaseURL)
	if err != nil {
		return err
	}
	defer r.Close()

	if err := r.Up(); err != nil {
		return err
	}
	v, dirty, err := r.Version()
	if err != nil {
		return fmt.Errorf("read migration version: %w", err)
	}
	logger.Info("migrations applied", "version", v, "dirty", dirty)
	return nil
}
