package pipeline

import (
	"errors"

	"github.com/JaimeStill/docintel/internal/acquisition"
	"github.com/JaimeStill/docintel/internal/artifacts"
	"github.com/JaimeStill/docintel/internal/classify"
	"github.com/JaimeStill/docintel/internal/fields"
	"github.com/JaimeStill/docintel/internal/report"
)

var (
	// ErrInvalidTrigger rejects a trigger before any run starts.
	ErrInvalidTrigger = errors.New("invalid trigger")
	// ErrCancelled marks a run stopped at a checkpoint.
	ErrCancelled = errors.New("run cancelled")
)

// Kind is the recorded class of a run failure.
type Kind string

const (
	KindAcquisition     Kind = "acquisition"
	KindExtraction      Kind = "extraction"
	KindClassification  Kind = "classification"
	KindFieldExtraction Kind = "field_extraction"
	KindRender          Kind = "render"
	KindPersistence     Kind = "persistence"
	KindCancelled       Kind = "cancelled"
	KindUnexpected      Kind = "unexpected"
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrCancelled, KindCancelled},
	{artifacts.ErrPersistence, KindPersistence},
	{acquisition.ErrAcquisition, KindAcquisition},
	{acquisition.ErrExtraction, KindExtraction},
	{classify.ErrClassification, KindClassification},
	{fields.ErrFieldExtraction, KindFieldExtraction},
	{report.ErrRender, KindRender},
}

// KindOf classifies err. Escalated extraction failures report as
// acquisition; anything unrecognized is unexpected.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindUnexpected
}
