package artifacts_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/docintel/internal/artifacts"
	"github.com/JaimeStill/docintel/pkg/retry"
	"github.com/JaimeStill/docintel/pkg/storage"
)

var policy = retry.Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond}

func newStore(t *testing.T) storage.System {
	t.Helper()
	s, err := storage.NewFilesystem(t.TempDir(), "documents", slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	return s
}

func TestWriteCreatesOnce(t *testing.T) {
	store := newStore(t)
	w := artifacts.NewWriter(store, policy, false, slog.New(slog.DiscardHandler))
	ctx := context.Background()

	require.NoError(t, w.Write(ctx, "outputs/a.html", []byte("first"), "text/html"))

	err := w.Write(ctx, "outputs/a.html", []byte("second"), "text/html")
	assert.ErrorIs(t, err, artifacts.ErrPersistence)
	assert.ErrorIs(t, err, storage.ErrExists)
	assert.NotErrorIs(t, err, retry.ErrExhausted)
}

func TestWriteReplace(t *testing.T) {
	store := newStore(t)
	w := artifacts.NewWriter(store, policy, true, slog.New(slog.DiscardHandler))
	ctx := context.Background()

	require.NoError(t, w.Write(ctx, "outputs/a.html", []byte("first"), "text/html"))
	require.NoError(t, w.Write(ctx, "outputs/a.html", []byte("second"), "text/html"))

	rc, err := store.Download(ctx, "outputs/a.html")
	require.NoError(t, err)
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	assert.Equal(t, "second", string(data))
}

type flakyStore struct {
	storage.System
	failures int
	calls    int
}

func (f *flakyStore) Create(ctx context.Context, key string, r io.Reader, ct string) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("connection reset")
	}
	return f.System.Create(ctx, key, r, ct)
}

func TestWriteRetriesTransientFailures(t *testing.T) {
	store := &flakyStore{System: newStore(t), failures: 2}
	w := artifacts.NewWriter(store, policy, false, slog.New(slog.DiscardHandler))

	require.NoError(t, w.Write(context.Background(), "textract-output/a.txt", []byte("text"), "text/plain"))
	assert.Equal(t, 3, store.calls)
}

func TestWriteExhausts(t *testing.T) {
	store := &flakyStore{System: newStore(t), failures: 10}
	w := artifacts.NewWriter(store, policy, false, slog.New(slog.DiscardHandler))

	err := w.Write(context.Background(), "textract-output/a.txt", []byte("text"), "text/plain")
	assert.ErrorIs(t, err, artifacts.ErrPersistence)
	assert.ErrorIs(t, err, retry.ErrExhausted)
	assert.True(t, strings.Contains(err.Error(), "connection reset"))
	assert.Equal(t, 3, store.calls)
}
