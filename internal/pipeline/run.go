package pipeline

import (
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/docintel/internal/classify"
	"github.com/JaimeStill/docintel/internal/document"
	"github.com/JaimeStill/docintel/internal/fields"
	"github.com/JaimeStill/docintel/internal/report"
	"github.com/JaimeStill/docintel/internal/telemetry"
)

// Trigger starts one run for an object in the intake prefix. MediaType is
// optional and overrides the stored content type.
type Trigger struct {
	Bucket    string `json:"bucket"`
	Key       string `json:"key"`
	MediaType string `json:"media_type,omitempty"`
}

// Span is the record of one stage state.
type Span struct {
	Stage     State            `json:"stage"`
	Status    telemetry.Status `json:"status"`
	ErrorKind Kind             `json:"error_kind,omitempty"`
	StartedAt time.Time        `json:"started_at"`
	Duration  time.Duration    `json:"duration"`
}

// Run is one traversal of a document through the pipeline. It is owned by
// the orchestrator until Run returns.
type Run struct {
	ID             uuid.UUID                `json:"id"`
	Reference      document.Reference       `json:"reference"`
	State          State                    `json:"state"`
	Spans          []Span                   `json:"spans"`
	Text           *document.NormalizedText `json:"-"`
	Classification *classify.Result         `json:"classification,omitempty"`
	Extraction     *fields.Extraction       `json:"extraction,omitempty"`
	Report         *report.Report           `json:"-"`
	FailedStage    State                    `json:"failed_stage,omitempty"`
	ErrorKind      Kind                     `json:"error_kind,omitempty"`
	Error          string                   `json:"error,omitempty"`
	StartedAt      time.Time                `json:"started_at"`
	CompletedAt    *time.Time               `json:"completed_at,omitempty"`
}

// TextKey returns the text artifact key once acquisition has produced it.
func (r *Run) TextKey() string {
	if r.Text == nil {
		return ""
	}
	return r.Text.ArtifactKey
}

// ReportKey returns the report artifact key once the run is persisted.
func (r *Run) ReportKey() string {
	if r.State != Persisted {
		return ""
	}
	return r.Reference.ReportKey()
}

// Result is the JSON artifact written alongside the report.
type Result struct {
	RunID          uuid.UUID        `json:"run_id"`
	Bucket         string           `json:"bucket"`
	Key            string           `json:"key"`
	TextKey        string           `json:"text_key"`
	ReportKey      string           `json:"report_key"`
	Method         document.Method  `json:"method"`
	LowConfidence  bool             `json:"low_confidence"`
	Classification classify.Result  `json:"classification"`
	Fields         []fields.Field   `json:"fields"`
	Narrative      fields.Narrative `json:"narrative"`
}
