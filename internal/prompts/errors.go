package prompts

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound     = errors.New("prompt not found")
	ErrDuplicate    = errors.New("prompt name already exists")
	ErrInvalidID    = errors.New("prompt id must be a UUID")
	ErrInvalidStage = errors.New("stage must be classify or extract")
	ErrInvalidLabel = errors.New("label must be a taxonomy member and is only valid for the extract stage")
	ErrEmpty        = errors.New("prompt name and instructions are required")
)

// MapHTTPStatus returns the response status for an error from System.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidID),
		errors.Is(err, ErrInvalidStage),
		errors.Is(err, ErrInvalidLabel),
		errors.Is(err, ErrEmpty):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
