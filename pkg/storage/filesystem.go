package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path/filepath"

	"github.com/JaimeStill/docintel/pkg/lifecycle"
)

// filesystem stores objects as files under <root>/<container>/<key>.
// It does not persist content types; Stat derives them from the key extension.
type filesystem struct {
	base      string
	container string
	logger    *slog.Logger
}

func newFilesystem(cfg *Config, logger *slog.Logger) (System, error) {
	return &filesystem{
		base:      filepath.Join(cfg.Root, cfg.ContainerName),
		container: cfg.ContainerName,
		logger:    logger.With("system", "storage", "backend", BackendFilesystem),
	}, nil
}

// NewFilesystem returns a filesystem-backed System rooted at root.
// The container directory is created immediately.
func NewFilesystem(root, container string, logger *slog.Logger) (System, error) {
	s, err := newFilesystem(&Config{Root: root, ContainerName: container}, logger)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(s.(*filesystem).base, 0o755); err != nil {
		return nil, fmt.Errorf("create container directory: %w", err)
	}
	return s, nil
}

// Dir returns the directory backing the container.
func (f *filesystem) Dir() string {
	return f.base
}

func (f *filesystem) Container() string {
	return f.container
}

func (f *filesystem) Start(lc *lifecycle.Coordinator) error {
	f.logger.Info("starting storage system")

	lc.OnStartup("storage", func(context.Context) error {
		if err := os.MkdirAll(f.base, 0o755); err != nil {
			return fmt.Errorf("create container dir: %w", err)
		}
		f.logger.Info("storage container ready", "container", f.container, "dir", f.base)
		return nil
	})

	return nil
}

func (f *filesystem) Stat(ctx context.Context, key string) (*Object, error) {
	path, err := f.path(key)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, mapFSError(err, "stat", key)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	return &Object{
		Key:         key,
		ContentType: mime.TypeByExtension(filepath.Ext(key)),
		Size:        info.Size(),
	}, nil
}

func (f *filesystem) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	path, err := f.path(key)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, mapFSError(err, "download", key)
	}
	return file, nil
}

func (f *filesystem) Upload(ctx context.Context, key string, reader io.Reader, contentType string) error {
	path, err := f.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return mapFSError(err, "upload", key)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return mapFSError(err, "upload", key)
	}
	defer os.Remove(tmp.Name())

	if _, err := copyContext(ctx, tmp, reader); err != nil {
		tmp.Close()
		return fmt.Errorf("upload %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return mapFSError(err, "upload", key)
	}
	return nil
}

func (f *filesystem) Create(ctx context.Context, key string, reader io.Reader, contentType string) error {
	path, err := f.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return mapFSError(err, "create", key)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return mapFSError(err, "create", key)
	}

	if _, err := copyContext(ctx, file, reader); err != nil {
		file.Close()
		os.Remove(path)
		return fmt.Errorf("create %s: %w", key, err)
	}
	if err := file.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("create %s: %w", key, err)
	}
	return nil
}

func (f *filesystem) Delete(ctx context.Context, key string) error {
	path, err := f.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return mapFSError(err, "delete", key)
	}
	return nil
}

func (f *filesystem) Exists(ctx context.Context, key string) (bool, error) {
	_, err := f.Stat(ctx, key)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return false, err
}

func (f *filesystem) path(key string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(f.base, filepath.FromSlash(key)), nil
}

func mapFSError(err error, op, key string) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	case errors.Is(err, fs.ErrExist):
		return fmt.Errorf("%w: %s", ErrExists, key)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %s: %w", ErrForbidden, key, err)
	default:
		return fmt.Errorf("%s %s: %w", op, key, err)
	}
}

type readerFunc func(p []byte) (int, error)

func (r readerFunc) Read(p []byte) (int, error) { return r(p) }

func copyContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	return io.Copy(dst, readerFunc(func(p []byte) (int, error) {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		return src.Read(p)
	}))
}
