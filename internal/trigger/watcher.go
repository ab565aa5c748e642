package trigger

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/docintel/internal/document"
	"github.com/JaimeStill/docintel/internal/pipeline"
	"github.com/JaimeStill/docintel/pkg/lifecycle"
)

// Watcher triggers a run for each file written under the intake prefix of
// a filesystem storage container. Bursts of writes to the same file are
// coalesced by the debounce window. A file whose run is in flight, or whose
// text artifact already exists, is not dispatched again.
type Watcher struct {
	base      string
	container string
	proc      Processor
	cfg       WatcherConfig
	logger    *slog.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewWatcher watches base/intake, where base is the directory backing the
// named container.
func NewWatcher(cfg *WatcherConfig, base, container string, proc Processor, logger *slog.Logger) *Watcher {
	return &Watcher{
		base:      base,
		container: container,
		proc:      proc,
		cfg:       *cfg,
		logger:    logger.With("system", "trigger", "source", "watcher"),
		inflight:  map[string]struct{}{},
	}
}

// Start runs the watcher as a lifecycle worker.
func (w *Watcher) Start(lc *lifecycle.Coordinator) error {
	lc.Go(func(ctx context.Context) {
		if err := w.Run(ctx); err != nil {
			w.logger.Error("watcher stopped", "error", err)
		}
	})
	return nil
}

// Run watches until ctx is cancelled, then waits for in-flight runs.
func (w *Watcher) Run(ctx context.Context) error {
	intake := filepath.Join(w.base, strings.TrimSuffix(document.IntakePrefix, "/"))
	if err := os.MkdirAll(intake, 0o755); err != nil {
		return fmt.Errorf("create intake dir: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	var existing []string
	err = filepath.WalkDir(intake, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fw.Add(path)
		}
		if w.cfg.InitialScan && eligible(path) {
			existing = append(existing, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("watch %s: %w", intake, err)
	}

	var g errgroup.Group
	g.SetLimit(max(w.cfg.Workers, 1))
	defer g.Wait()

	dispatch := func(path string) {
		g.Go(func() error {
			w.process(ctx, path)
			return nil
		})
	}

	for _, path := range existing {
		dispatch(path)
	}

	w.logger.Info("watching intake", "dir", intake, "debounce", w.cfg.DebounceDuration())

	debounce := w.cfg.DebounceDuration()
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	pending := map[string]struct{}{}

	flush := func() {
		for path := range pending {
			delete(pending, path)
			dispatch(path)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := fw.Add(ev.Name); err != nil {
						w.logger.Warn("subdirectory not watched", "dir", ev.Name, "error", err)
					}
					continue
				}
			}
			if !eligible(ev.Name) || !(ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) || ev.Has(fsnotify.Rename)) {
				continue
			}

			pending[ev.Name] = struct{}{}
			if debounce <= 0 {
				flush()
				continue
			}
			timer.Reset(debounce)

		case <-timer.C:
			flush()

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) process(ctx context.Context, path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}

	rel, err := filepath.Rel(w.base, path)
	if err != nil {
		w.logger.Warn("path outside container", "path", path, "error", err)
		return
	}

	t := pipeline.Trigger{Bucket: w.container, Key: filepath.ToSlash(rel)}
	if w.processed(t.Key) {
		w.logger.Debug("watched file already processed", "key", t.Key)
		return
	}
	if !w.claim(t.Key) {
		w.logger.Debug("watched file run in flight", "key", t.Key)
		return
	}
	defer w.release(t.Key)

	run, err := w.proc.Run(ctx, t)
	if err != nil {
		w.logger.Warn("watched file not processed", "key", t.Key, "error", err)
		return
	}
	w.logger.Info("run persisted", "run_id", run.ID, "key", t.Key)
}

// processed reports whether the text artifact for key exists, which means
// an earlier run already acquired it.
func (w *Watcher) processed(key string) bool {
	ref := document.Reference{Bucket: w.container, Key: key}
	_, err := os.Stat(filepath.Join(w.base, filepath.FromSlash(ref.TextKey())))
	return err == nil
}

func (w *Watcher) claim(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.inflight[key]; ok {
		return false
	}
	w.inflight[key] = struct{}{}
	return true
}

func (w *Watcher) release(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.inflight, key)
}

// eligible skips hidden and in-progress upload files.
func eligible(path string) bool {
	name := filepath.Base(path)
	return !strings.HasPrefix(name, ".") && !strings.HasSuffix(name, "~")
}
