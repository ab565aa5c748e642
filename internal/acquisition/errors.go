package acquisition

import "errors"

var (
	// ErrAcquisition marks input that could not be read or extracted.
	ErrAcquisition = errors.New("text acquisition failed")
	// ErrExtraction marks a failed optical extraction attempt. Retried, then
	// escalated to ErrAcquisition.
	ErrExtraction = errors.New("optical extraction failed")
)
