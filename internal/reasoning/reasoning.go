// Package reasoning provides the language-model collaborator used by the
// classification and field extraction stages.
package reasoning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

var (
	// ErrTransport covers failed requests, timeouts and non-success statuses.
	ErrTransport = errors.New("reasoning transport failure")
	// ErrMalformed marks a response without usable content or that does not
	// match the expected schema.
	ErrMalformed = errors.New("malformed reasoning response")
)

// Request is a single reasoning call.
type Request struct {
	System string
	Prompt string
}

// Reasoner performs a reasoning call and returns the model's free-form text.
type Reasoner interface {
	Reason(ctx context.Context, req Request) (string, error)
}

// StatusError reports a non-success HTTP status from the provider.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.Code, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrTransport }

// Retryable reports whether a failed call may succeed on another attempt.
// Client errors other than timeouts and throttling are final.
func Retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) && se.Code >= 400 && se.Code < 500 {
		return se.Code == http.StatusRequestTimeout || se.Code == http.StatusTooManyRequests
	}
	return true
}

// New creates the Reasoner selected by cfg.Provider, throttled to the
// configured request rate.
func New(cfg *Config, logger *slog.Logger) (Reasoner, error) {
	client := &http.Client{Timeout: cfg.TimeoutDuration()}
	logger = logger.With("system", "reasoning", "provider", cfg.Provider, "model", cfg.Model)

	var r Reasoner
	switch cfg.Provider {
	case ProviderOpenAI:
		r = newOpenAI(cfg, client, logger)
	case ProviderAnthropic:
		r = newAnthropic(cfg, client, logger)
	default:
		return nil, fmt.Errorf("unsupported reasoning provider %q", cfg.Provider)
	}

	return Throttle(r, cfg.RequestsPerSecond, cfg.Burst), nil
}

// Throttle limits r to rps calls per second with the given burst.
// A non-positive rps disables limiting.
func Throttle(r Reasoner, rps float64, burst int) Reasoner {
	if rps <= 0 {
		return r
	}
	return &throttled{
		next:    r,
		limiter: rate.NewLimiter(rate.Limit(rps), max(burst, 1)),
	}
}

type throttled struct {
	next    Reasoner
	limiter *rate.Limiter
}

func (t *throttled) Reason(ctx context.Context, req Request) (string, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: rate limit wait: %w", ErrTransport, err)
	}
	return t.next.Reason(ctx, req)
}

func logCall(ctx context.Context, logger *slog.Logger, start time.Time, chars int, err error) {
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		logger.WarnContext(ctx, "reasoning call failed", "elapsed_ms", elapsed, "error", err)
		return
	}
	logger.DebugContext(ctx, "reasoning call complete", "elapsed_ms", elapsed, "chars", chars)
}
