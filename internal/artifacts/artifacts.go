// Package artifacts writes run artifacts to storage as create-new objects
// under a bounded retry policy.
package artifacts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JaimeStill/docintel/pkg/retry"
	"github.com/JaimeStill/docintel/pkg/storage"
)

// ErrPersistence marks an artifact that could not be written.
var ErrPersistence = errors.New("artifact persistence failed")

// Writer persists artifacts. Without Replace, an existing object at the
// target key fails the write immediately.
type Writer struct {
	store   storage.System
	policy  retry.Policy
	replace bool
	logger  *slog.Logger
}

// NewWriter creates a Writer over store.
func NewWriter(store storage.System, policy retry.Policy, replace bool, logger *slog.Logger) *Writer {
	return &Writer{
		store:   store,
		policy:  policy,
		replace: replace,
		logger:  logger.With("system", "artifacts"),
	}
}

// Write stores data at key. Failures wrap ErrPersistence.
func (w *Writer) Write(ctx context.Context, key string, data []byte, contentType string) error {
	err := retry.Do(ctx, w.policy, func(ctx context.Context) error {
		var err error
		if w.replace {
			err = w.store.Upload(ctx, key, bytes.NewReader(data), contentType)
		} else {
			err = w.store.Create(ctx, key, bytes.NewReader(data), contentType)
		}
		switch {
		case err == nil:
			return nil
		case errors.Is(err, storage.ErrExists),
			errors.Is(err, storage.ErrForbidden),
			errors.Is(err, storage.ErrInvalidKey),
			errors.Is(err, storage.ErrEmptyKey):
			return retry.Permanent(err)
		default:
			return err
		}
	}, func(attempt int, err error, wait time.Duration) {
		w.logger.WarnContext(ctx, "artifact write failed, retrying",
			"key", key, "attempt", attempt, "wait", wait, "error", err)
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPersistence, key, err)
	}

	w.logger.InfoContext(ctx, "artifact written", "key", key, "size", len(data))
	return nil
}
