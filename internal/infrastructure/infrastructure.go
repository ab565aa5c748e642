// Package infrastructure builds the systems every docintel process shares:
// the lifecycle coordinator, the logger, the run ledger database and the
// document store.
package infrastructure

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/JaimeStill/docintel/internal/config"
	"github.com/JaimeStill/docintel/internal/migrations"
	"github.com/JaimeStill/docintel/pkg/database"
	"github.com/JaimeStill/docintel/pkg/lifecycle"
	"github.com/JaimeStill/docintel/pkg/storage"
)

type Infrastructure struct {
	Lifecycle *lifecycle.Coordinator
	Logger    *slog.Logger
	Database  database.System
	Storage   storage.System
}

// New constructs the shared systems without starting them. Records are
// tagged with the service version.
func New(cfg *config.Config) (*Infrastructure, error) {
	logger := NewLogger(&cfg.Logging, os.Stderr).With("version", cfg.Version)

	db, err := database.New(&cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	store, err := storage.New(&cfg.Storage, logger)
	if err != nil {
		db.Connection().Close()
		return nil, fmt.Errorf("storage: %w", err)
	}

	return &Infrastructure{
		Lifecycle: lifecycle.New(),
		Logger:    logger,
		Database:  db,
		Storage:   store,
	}, nil
}

// NewLogger returns a JSON or text slog logger writing to w.
func NewLogger(cfg *config.LoggingConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Start registers the database before storage, so shutdown closes storage
// first.
func (i *Infrastructure) Start() error {
	if err := i.Database.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("start database: %w", err)
	}
	if err := i.Storage.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("start storage: %w", err)
	}
	return nil
}

// Migrate brings the ledger schema up to date.
func (i *Infrastructure) Migrate(ctx context.Context) error {
	driver := i.Database.Driver()
	if err := migrations.Up(ctx, i.Database.Connection(), driver); err != nil {
		return fmt.Errorf("migrate %s ledger: %w", driver, err)
	}
	i.Logger.Info("ledger schema current", "driver", driver)
	return nil
}

// StorageDir reports the root directory of a filesystem-backed store.
func (i *Infrastructure) StorageDir() (string, bool) {
	if fs, ok := i.Storage.(interface{ Dir() string }); ok {
		return fs.Dir(), true
	}
	return "", false
}
