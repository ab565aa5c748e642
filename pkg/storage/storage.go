// Package storage provides object storage for pipeline inputs and artifacts,
// backed by Azure Blob Storage or a local directory tree.
package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/JaimeStill/docintel/pkg/lifecycle"
)

// Object describes a stored object without its content.
type Object struct {
	Key         string `json:"key"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// System manages object storage operations and lifecycle coordination.
// A System is scoped to a single container.
type System interface {
	// Start registers a startup hook that initializes the container.
	Start(lc *lifecycle.Coordinator) error
	// Container returns the container (bucket) name this system is scoped to.
	Container() string
	// Stat returns object metadata. Returns ErrNotFound if the object does not exist.
	Stat(ctx context.Context, key string) (*Object, error)
	// Download returns a stream for the object at key. The caller must close the reader.
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	// Upload writes the object at key, replacing any existing object.
	Upload(ctx context.Context, key string, reader io.Reader, contentType string) error
	// Create writes the object at key only if no object exists there yet.
	// Returns ErrExists otherwise.
	Create(ctx context.Context, key string, reader io.Reader, contentType string) error
	// Delete removes the object at key. Returns ErrNotFound if it does not exist.
	Delete(ctx context.Context, key string) error
	// Exists reports whether an object exists at key.
	Exists(ctx context.Context, key string) (bool, error)
}

// New creates the storage system selected by cfg.Backend.
func New(cfg *Config, logger *slog.Logger) (System, error) {
	switch cfg.Backend {
	case BackendAzure:
		return newAzure(cfg, logger)
	case BackendFilesystem:
		return newFilesystem(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func validateKey(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if strings.Contains(key, "..") || strings.HasPrefix(key, "/") {
		return ErrInvalidKey
	}
	return nil
}
