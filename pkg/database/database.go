// Package database opens the run ledger connection pool for PostgreSQL or
// SQLite and ties it to the process lifecycle.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/JaimeStill/docintel/pkg/lifecycle"
)

// System exposes the pool and the driver it was opened with.
type System interface {
	Connection() *sql.DB
	// Driver returns DriverPostgres or DriverSQLite.
	Driver() string
	// Start registers a ping on startup and a close on shutdown.
	Start(lc *lifecycle.Coordinator) error
}

type database struct {
	conn    *sql.DB
	driver  string
	timeout time.Duration
	logger  *slog.Logger
}

// New configures the pool without dialing. The first connection is made by
// the startup ping registered in Start.
func New(cfg *Config, logger *slog.Logger) (System, error) {
	conn, err := sql.Open(cfg.SQLDriver(), cfg.Dsn())
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}

	maxOpen, maxIdle := cfg.MaxOpenConns, cfg.MaxIdleConns
	if cfg.Driver == DriverSQLite {
		// one writer at a time
		maxOpen, maxIdle = 1, 1
	}
	conn.SetMaxOpenConns(maxOpen)
	conn.SetMaxIdleConns(maxIdle)
	conn.SetConnMaxLifetime(cfg.ConnMaxLifetimeDuration())

	return &database{
		conn:    conn,
		driver:  cfg.Driver,
		timeout: cfg.ConnTimeoutDuration(),
		logger:  logger.With("system", "database", "driver", cfg.Driver),
	}, nil
}

func (d *database) Connection() *sql.DB { return d.conn }

func (d *database) Driver() string { return d.driver }

func (d *database) Start(lc *lifecycle.Coordinator) error {
	lc.OnStartup("database", d.ping)
	lc.OnShutdown("database", func(context.Context) error {
		if err := d.conn.Close(); err != nil {
			return fmt.Errorf("close: %w", err)
		}
		d.logger.Info("database closed")
		return nil
	})
	return nil
}

func (d *database) ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	if err := d.conn.PingContext(ctx); err != nil {
		d.logger.Error("database unreachable", "error", err)
		return fmt.Errorf("%w: %w", ErrNotReady, err)
	}
	d.logger.Info("database ready", "elapsed", time.Since(start))
	return nil
}
