// Package lifecycle coordinates named startup hooks, long-running workers
// and shutdown hooks for a process.
//
// Shutdown runs in two phases. The coordinator context is cancelled and
// every worker is awaited first, so in-flight document runs can finish
// their ledger and telemetry writes. Shutdown hooks then run one at a time
// in reverse registration order, which closes listeners and sinks before
// the database and storage systems they depend on.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"
)

// ReadinessChecker reports whether a subsystem is ready to serve traffic.
type ReadinessChecker interface {
	Ready() bool
}

// Hook is a named startup or shutdown step.
type Hook func(ctx context.Context) error

type namedHook struct {
	name string
	fn   Hook
}

// Coordinator manages hooks and workers for the application lifecycle.
type Coordinator struct {
	ctx    context.Context
	cancel context.CancelFunc

	startupWg  sync.WaitGroup
	startupMu  sync.Mutex
	startupErr []error

	workers sync.WaitGroup

	mu       sync.Mutex
	shutdown []namedHook
	stopped  bool

	ready   bool
	readyMu sync.RWMutex
}

// New creates a Coordinator with a cancellable context.
func New() *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		ctx:    ctx,
		cancel: cancel,
	}
}

// Context returns the coordinator's context, cancelled when Shutdown begins.
func (c *Coordinator) Context() context.Context {
	return c.ctx
}

// OnStartup runs fn concurrently with the other startup hooks. A returned
// error keeps the coordinator from becoming ready.
func (c *Coordinator) OnStartup(name string, fn Hook) {
	c.startupWg.Go(func() {
		if err := fn(c.ctx); err != nil {
			c.startupMu.Lock()
			c.startupErr = append(c.startupErr, fmt.Errorf("%s: %w", name, err))
			c.startupMu.Unlock()
		}
	})
}

// Go runs a long-lived worker bound to the coordinator context. Shutdown
// waits for every worker to return before any shutdown hook runs.
func (c *Coordinator) Go(fn func(ctx context.Context)) {
	c.workers.Go(func() {
		fn(c.ctx)
	})
}

// OnShutdown registers fn to run during Shutdown. The context passed to fn
// carries the shutdown deadline.
func (c *Coordinator) OnShutdown(name string, fn Hook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shutdown = append(c.shutdown, namedHook{name: name, fn: fn})
}

// Ready returns true after all startup hooks have succeeded and until
// Shutdown begins.
func (c *Coordinator) Ready() bool {
	c.readyMu.RLock()
	defer c.readyMu.RUnlock()
	return c.ready
}

// WaitForStartup blocks until all startup hooks have completed. It marks
// the coordinator ready only when none failed.
func (c *Coordinator) WaitForStartup() error {
	c.startupWg.Wait()

	c.startupMu.Lock()
	err := errors.Join(c.startupErr...)
	c.startupMu.Unlock()
	if err != nil {
		return fmt.Errorf("startup failed: %w", err)
	}

	c.readyMu.Lock()
	c.ready = true
	c.readyMu.Unlock()
	return nil
}

// Shutdown cancels the context, waits for workers, then runs shutdown hooks
// in reverse registration order, all within timeout. Hook errors are joined
// into the result. Calls after the first return nil.
func (c *Coordinator) Shutdown(timeout time.Duration) error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	hooks := slices.Clone(c.shutdown)
	c.mu.Unlock()

	c.readyMu.Lock()
	c.ready = false
	c.readyMu.Unlock()

	c.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	drained := make(chan struct{})
	go func() {
		c.workers.Wait()
		close(drained)
	}()

	select {
	case <-drained:
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout after %v waiting for workers", timeout)
	}

	var errs []error
	for _, h := range slices.Backward(hooks) {
		if ctx.Err() != nil {
			errs = append(errs, fmt.Errorf("shutdown timeout after %v before %s", timeout, h.name))
			break
		}
		if err := h.fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", h.name, err))
		}
	}
	return errors.Join(errs...)
}
