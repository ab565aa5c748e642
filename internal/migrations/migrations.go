// Package migrations embeds the ledger schema for each supported database
// driver and applies it with golang-migrate over an open connection pool.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed postgres/*.sql sqlite/*.sql
var files embed.FS

// Migrator runs schema operations against a pool it does not own. Close
// releases only what the migrator acquired.
type Migrator struct {
	m       *migrate.Migrate
	release func() error
}

// Open prepares a Migrator for driver ("pgx", "postgres" or "sqlite").
// PostgreSQL borrows one connection from db for the advisory lock.
func Open(ctx context.Context, db *sql.DB, driver string) (*Migrator, error) {
	dir, err := dirFor(driver)
	if err != nil {
		return nil, err
	}

	src, err := iofs.New(files, dir)
	if err != nil {
		return nil, fmt.Errorf("create migration source: %w", err)
	}

	var target database.Driver
	var release func() error

	if dir == "sqlite" {
		target, err = sqlite.WithInstance(db, &sqlite.Config{})
		release = src.Close
	} else {
		conn, cerr := db.Conn(ctx)
		if cerr != nil {
			src.Close()
			return nil, fmt.Errorf("acquire migration connection: %w", cerr)
		}
		target, err = postgres.WithConnection(ctx, conn, &postgres.Config{})
		if err != nil {
			conn.Close()
		}
	}
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, dir, target)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("create migrator: %w", err)
	}

	mg := &Migrator{m: m, release: release}
	if release == nil {
		mg.release = func() error {
			srcErr, dbErr := m.Close()
			return errors.Join(srcErr, dbErr)
		}
	}
	return mg, nil
}

// Up applies all pending migrations. Nothing pending is not an error.
func (mg *Migrator) Up() error {
	return ignoreNoChange(mg.m.Up())
}

// Down reverts every applied migration.
func (mg *Migrator) Down() error {
	return ignoreNoChange(mg.m.Down())
}

// Steps applies n migrations forward, or -n backward when n is negative.
func (mg *Migrator) Steps(n int) error {
	return ignoreNoChange(mg.m.Steps(n))
}

// Version reports the applied version. An empty schema is version 0.
func (mg *Migrator) Version() (version uint, dirty bool, err error) {
	version, dirty, err = mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

// Force records version as applied and clears the dirty flag.
func (mg *Migrator) Force(version int) error {
	return mg.m.Force(version)
}

func (mg *Migrator) Close() error {
	return mg.release()
}

// Up applies all pending migrations and leaves db open.
func Up(ctx context.Context, db *sql.DB, driver string) error {
	mg, err := Open(ctx, db, driver)
	if err != nil {
		return err
	}
	if err := mg.Up(); err != nil {
		mg.Close()
		return fmt.Errorf("apply migrations: %w", err)
	}
	return mg.Close()
}

func ignoreNoChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}

func dirFor(driver string) (string, error) {
	switch driver {
	case "pgx", "postgres":
		return "postgres", nil
	case "sqlite":
		return "sqlite", nil
	default:
		return "", fmt.Errorf("no migrations for driver %q", driver)
	}
}
