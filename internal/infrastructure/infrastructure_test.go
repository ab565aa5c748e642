package infrastructure_test

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/JaimeStill/docintel/internal/config"
	"github.com/JaimeStill/docintel/internal/infrastructure"
	"github.com/JaimeStill/docintel/pkg/database"
	"github.com/JaimeStill/docintel/pkg/storage"
)

func validConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Logging: config.LoggingConfig{Level: "info", Format: "text"},
		Database: database.Config{
			Driver:          database.DriverSQLite,
			Path:            filepath.Join(dir, "docintel.db"),
			MaxOpenConns:    1,
			MaxIdleConns:    1,
			ConnMaxLifetime: "15m",
			ConnTimeout:     "5s",
		},
		Storage: storage.Config{
			Backend:       storage.BackendFilesystem,
			ContainerName: "documents",
			Root:          filepath.Join(dir, "data"),
		},
		Version: "0.1.0",
	}
}

func TestNew(t *testing.T) {
	infra, err := infrastructure.New(validConfig(t))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { infra.Database.Connection().Close() })

	if infra.Lifecycle == nil {
		t.Error("Lifecycle is nil")
	}
	if infra.Logger == nil {
		t.Error("Logger is nil")
	}
	if infra.Database == nil {
		t.Error("Database is nil")
	}
	if infra.Storage == nil {
		t.Error("Storage is nil")
	}
	if dir, ok := infra.StorageDir(); !ok || !strings.HasSuffix(dir, "documents") {
		t.Errorf("StorageDir() = %q, %v", dir, ok)
	}
}

func TestMigrate(t *testing.T) {
	infra, err := infrastructure.New(validConfig(t))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { infra.Database.Connection().Close() })

	ctx := context.Background()
	if err := infra.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := infra.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}

	var n int
	if err := infra.Database.Connection().QueryRowContext(ctx, "SELECT COUNT(*) FROM runs").Scan(&n); err != nil {
		t.Fatalf("query runs: %v", err)
	}
	if n != 0 {
		t.Errorf("runs = %d, want 0", n)
	}
}

func TestNewInvalidStorageBackend(t *testing.T) {
	cfg := validConfig(t)
	cfg.Storage.Backend = "s3"

	if _, err := infrastructure.New(cfg); err == nil {
		t.Fatal("expected error for unknown storage backend")
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := infrastructure.NewLogger(&config.LoggingConfig{Level: "warn", Format: "json"}, &buf)

	logger.Info("hidden")
	logger.Warn("shown", "run_id", "abc")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info record emitted at warn level")
	}
	if !strings.Contains(out, `"msg":"shown"`) || !strings.Contains(out, `"run_id":"abc"`) {
		t.Errorf("json output = %q", out)
	}
}
