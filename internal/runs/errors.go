package runs

import (
	"errors"
	"net/http"

	"github.com/JaimeStill/docintel/internal/pipeline"
	"github.com/JaimeStill/docintel/pkg/storage"
)

var (
	ErrNotFound   = errors.New("run not found")
	ErrDuplicate  = errors.New("run already recorded")
	ErrInvalidID  = errors.New("run id must be a UUID")
	ErrNoReport   = errors.New("run has no report")
	ErrNoPipeline = errors.New("pipeline not configured")
)

// MapHTTPStatus returns the response status for ledger, storage and
// trigger errors.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrNoReport),
		errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidID),
		errors.Is(err, pipeline.ErrInvalidTrigger),
		errors.Is(err, storage.ErrInvalidKey),
		errors.Is(err, storage.ErrEmptyKey):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNoPipeline):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
