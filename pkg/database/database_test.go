package database_test

import (
	"context"
	"log/slog"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/docintel/pkg/database"
	"github.com/JaimeStill/docintel/pkg/lifecycle"
)

func TestConfigDefaults(t *testing.T) {
	cfg := &database.Config{Name: "docintel", User: "docintel"}
	require.NoError(t, cfg.Finalize(nil))

	assert.Equal(t, database.DriverPostgres, cfg.Driver)
	assert.Equal(t, "pgx", cfg.SQLDriver())
	assert.Equal(t, 5432, cfg.Port)
	assert.Equal(t, 15*time.Minute, cfg.ConnMaxLifetimeDuration())
	assert.Equal(t, "postgres://docintel:@localhost:5432/docintel?sslmode=disable", cfg.Dsn())
}

func TestConfigDsnEscapesCredentials(t *testing.T) {
	cfg := &database.Config{Name: "ledger", User: "svc", Password: "p@ss word", Host: "db.internal"}
	require.NoError(t, cfg.Finalize(nil))

	u, err := url.Parse(cfg.Dsn())
	require.NoError(t, err)
	pw, _ := u.User.Password()
	assert.Equal(t, "p@ss word", pw)
	assert.Equal(t, "db.internal:5432", u.Host)
}

func TestConfigSQLiteNeedsNoCredentials(t *testing.T) {
	cfg := &database.Config{Driver: database.DriverSQLite, Path: "runs.db"}
	require.NoError(t, cfg.Finalize(nil))

	assert.Equal(t, "sqlite", cfg.SQLDriver())
	assert.Contains(t, cfg.Dsn(), "file:runs.db")
}

func TestConfigValidation(t *testing.T) {
	assert.Error(t, (&database.Config{}).Finalize(nil), "postgres requires a name")
	assert.Error(t, (&database.Config{Driver: "mysql"}).Finalize(nil))
	assert.Error(t, (&database.Config{Name: "a", User: "b", ConnTimeout: "soon"}).Finalize(nil))
}

func TestConfigEnvAndMerge(t *testing.T) {
	t.Setenv("TEST_DB_DRIVER", "sqlite")
	t.Setenv("TEST_DB_MAX_OPEN", "not-a-number")

	cfg := &database.Config{Name: "base"}
	cfg.Merge(&database.Config{Path: "overlay.db", Port: 6543})
	require.NoError(t, cfg.Finalize(&database.Env{Driver: "TEST_DB_DRIVER", MaxOpenConns: "TEST_DB_MAX_OPEN"}))

	assert.Equal(t, database.DriverSQLite, cfg.Driver)
	assert.Equal(t, "overlay.db", cfg.Path)
	assert.Equal(t, 6543, cfg.Port)
	assert.Equal(t, 25, cfg.MaxOpenConns, "unparseable override ignored")
}

func TestSQLiteSystemLifecycle(t *testing.T) {
	cfg := &database.Config{Driver: database.DriverSQLite, Path: filepath.Join(t.TempDir(), "test.db")}
	require.NoError(t, cfg.Finalize(nil))

	db, err := database.New(cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	assert.Equal(t, database.DriverSQLite, db.Driver())

	lc := lifecycle.New()
	require.NoError(t, db.Start(lc))
	require.NoError(t, lc.WaitForStartup())
	assert.True(t, lc.Ready())

	require.NoError(t, db.Connection().PingContext(context.Background()))
	require.NoError(t, lc.Shutdown(5*time.Second))
	assert.Error(t, db.Connection().PingContext(context.Background()), "connection closed by shutdown hook")
}
