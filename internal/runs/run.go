// Package runs keeps the run ledger: one row per pipeline run and one row
// per stage span, queryable over HTTP and exportable as a workbook.
package runs

import (
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/docintel/internal/pipeline"
	"github.com/JaimeStill/docintel/internal/taxonomy"
)

// Run is the ledger row for one pipeline run.
type Run struct {
	ID            uuid.UUID       `json:"id"`
	Bucket        string          `json:"bucket"`
	ObjectKey     string          `json:"object_key"`
	DocumentName  string          `json:"document_name"`
	MediaType     string          `json:"media_type"`
	SizeBytes     int64           `json:"size_bytes"`
	State         pipeline.State  `json:"state"`
	Method        *string         `json:"method,omitempty"`
	Label         *taxonomy.Label `json:"label,omitempty"`
	Confidence    *float64        `json:"confidence,omitempty"`
	LowConfidence bool            `json:"low_confidence"`
	TextKey       *string         `json:"text_key,omitempty"`
	ReportKey     *string         `json:"report_key,omitempty"`
	FailedStage   *string         `json:"failed_stage,omitempty"`
	ErrorKind     *string         `json:"error_kind,omitempty"`
	ErrorMessage  *string         `json:"error_message,omitempty"`
	StartedAt     time.Time       `json:"started_at"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
}

// Span is the ledger row for one stage of a run.
type Span struct {
	ID         uuid.UUID      `json:"id"`
	RunID      uuid.UUID      `json:"run_id"`
	Stage      pipeline.State `json:"stage"`
	Status     string         `json:"status"`
	ErrorKind  *string        `json:"error_kind,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	DurationMS int64          `json:"duration_ms"`
}

// FromPipeline projects an in-flight or terminal pipeline run onto a ledger
// row.
func FromPipeline(r *pipeline.Run) Run {
	row := Run{
		ID:           r.ID,
		Bucket:       r.Reference.Bucket,
		ObjectKey:    r.Reference.Key,
		DocumentName: r.Reference.Name(),
		MediaType:    r.Reference.MediaType,
		SizeBytes:    r.Reference.Size,
		State:        r.State,
		StartedAt:    r.StartedAt.UTC(),
	}

	if r.Text != nil {
		row.Method = optional(string(r.Text.Method))
		row.LowConfidence = r.Text.LowConfidence
		row.TextKey = optional(r.Text.ArtifactKey)
	}
	if r.Classification != nil {
		label := r.Classification.Label
		confidence := r.Classification.Confidence
		row.Label = &label
		row.Confidence = &confidence
	}

	row.ReportKey = optional(r.ReportKey())
	row.FailedStage = optional(string(r.FailedStage))
	row.ErrorKind = optional(string(r.ErrorKind))
	row.ErrorMessage = optional(r.Error)

	if r.CompletedAt != nil {
		t := r.CompletedAt.UTC()
		row.CompletedAt = &t
	}
	return row
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
