// Package telemetry delivers pipeline span events to observability sinks.
// Delivery is asynchronous and best-effort: a slow or failing sink never
// blocks or fails a pipeline run.
package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/docintel/pkg/lifecycle"
)

// Phase distinguishes span start and end events.
type Phase string

const (
	PhaseStart Phase = "start"
	PhaseEnd   Phase = "end"
)

// Status is the outcome of a closed span.
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// Event is one span start or end. Status, ErrorKind and DurationMS are set
// on end events only.
type Event struct {
	RunID      uuid.UUID `json:"run_id"`
	Stage      string    `json:"stage"`
	Phase      Phase     `json:"phase"`
	Status     Status    `json:"status,omitempty"`
	ErrorKind  string    `json:"error_kind,omitempty"`
	DurationMS int64     `json:"duration_ms,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Sink receives span events.
type Sink interface {
	Write(ctx context.Context, e Event) error
}

// Emitter fans events out to its sinks from a single background worker.
type Emitter struct {
	sinks   []Sink
	events  chan Event
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// DefaultWriteTimeout bounds each sink write when no timeout is configured.
const DefaultWriteTimeout = 5 * time.Second

// NewEmitter creates an Emitter buffering up to buffer events and starts
// its delivery worker. Events emitted while the buffer is full are dropped.
// Each sink write is bounded by timeout, or DefaultWriteTimeout when timeout
// is not positive.
func NewEmitter(buffer int, timeout time.Duration, logger *slog.Logger, sinks ...Sink) *Emitter {
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}
	e := &Emitter{
		sinks:   sinks,
		events:  make(chan Event, max(buffer, 1)),
		timeout: timeout,
		logger:  logger.With("system", "telemetry"),
		done:    make(chan struct{}),
	}
	go e.run()
	return e
}

// Start registers a shutdown hook that drains buffered events.
func (e *Emitter) Start(lc *lifecycle.Coordinator) error {
	lc.OnShutdown("telemetry", func(context.Context) error {
		e.Close()
		e.logger.Info("telemetry emitter stopped")
		return nil
	})
	return nil
}

func (e *Emitter) run() {
	defer close(e.done)
	for ev := range e.events {
		e.deliver(ev)
	}
}

// Emit queues ev without blocking.
func (e *Emitter) Emit(ev Event) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return
	}
	select {
	case e.events <- ev:
	default:
		e.logger.Warn("telemetry buffer full, dropping event",
			"run_id", ev.RunID, "stage", ev.Stage, "phase", ev.Phase)
	}
}

// Close stops accepting events and waits for buffered events to be
// delivered. Safe to call more than once.
func (e *Emitter) Close() {
	e.mu.Lock()
	if !e.closed {
		e.closed = true
		close(e.events)
	}
	e.mu.Unlock()
	<-e.done
}

func (e *Emitter) deliver(ev Event) {
	for _, s := range e.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
		err := safeWrite(ctx, s, ev)
		cancel()
		if err != nil {
			e.logger.Warn("telemetry sink failed",
				"run_id", ev.RunID, "stage", ev.Stage, "phase", ev.Phase, "error", err)
		}
	}
}

func safeWrite(ctx context.Context, s Sink, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New("telemetry sink panicked")
		}
	}()
	return s.Write(ctx, ev)
}

// LogSink writes events to a structured logger.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger.With("sink", "log")}
}

func (s *LogSink) Write(ctx context.Context, e Event) error {
	attrs := []any{"run_id", e.RunID, "stage", e.Stage, "phase", e.Phase}
	if e.Phase == PhaseEnd {
		attrs = append(attrs, "status", e.Status, "duration_ms", e.DurationMS)
		if e.ErrorKind != "" {
			attrs = append(attrs, "error_kind", e.ErrorKind)
		}
	}
	s.logger.InfoContext(ctx, "span", attrs...)
	return nil
}
