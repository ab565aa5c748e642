package runs

import (
	"net/url"

	"github.com/JaimeStill/docintel/internal/pipeline"
	"github.com/JaimeStill/docintel/internal/taxonomy"
	"github.com/JaimeStill/docintel/pkg/pagination"
	"github.com/JaimeStill/docintel/pkg/query"
	"github.com/JaimeStill/docintel/pkg/repository"
)

const spanColumns = "id, run_id, stage, status, error_kind, started_at, duration_ms"

var runsTable = query.
	NewTable("public", "runs", "r").
	Map("id", "ID").
	Map("bucket", "Bucket").
	Map("object_key", "ObjectKey").
	Map("document_name", "DocumentName").
	Map("media_type", "MediaType").
	Map("size_bytes", "SizeBytes").
	Map("state", "State").
	Map("method", "Method").
	Map("label", "Label").
	Map("confidence", "Confidence").
	Map("low_confidence", "LowConfidence").
	Map("text_key", "TextKey").
	Map("report_key", "ReportKey").
	Map("failed_stage", "FailedStage").
	Map("error_kind", "ErrorKind").
	Map("error_message", "ErrorMessage").
	Map("started_at", "StartedAt").
	Map("completed_at", "CompletedAt")

var defaultSort = query.SortField{
	Field:      "StartedAt",
	Descending: true,
}

// Filters contains optional filtering criteria for run queries.
// Nil fields are ignored. Name uses case-insensitive contains matching
// against the document name; the rest match exactly.
type Filters struct {
	State     *pipeline.State `json:"state,omitempty"`
	Label     *taxonomy.Label `json:"label,omitempty"`
	ErrorKind *string         `json:"error_kind,omitempty"`
	Name      *string         `json:"name,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("State", f.State).
		WhereEquals("Label", f.Label).
		WhereEquals("ErrorKind", f.ErrorKind).
		WhereContains("DocumentName", f.Name)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	return Filters{
		State:     pagination.Filter[pipeline.State](values, "state"),
		Label:     pagination.Filter[taxonomy.Label](values, "label"),
		ErrorKind: pagination.Filter[string](values, "error_kind"),
		Name:      pagination.Filter[string](values, "name"),
	}
}

func scanRun(s repository.Scanner) (Run, error) {
	var r Run
	err := s.Scan(
		&r.ID,
		&r.Bucket,
		&r.ObjectKey,
		&r.DocumentName,
		&r.MediaType,
		&r.SizeBytes,
		&r.State,
		&r.Method,
		&r.Label,
		&r.Confidence,
		&r.LowConfidence,
		&r.TextKey,
		&r.ReportKey,
		&r.FailedStage,
		&r.ErrorKind,
		&r.ErrorMessage,
		&r.StartedAt,
		&r.CompletedAt,
	)
	return r, err
}

func scanSpan(s repository.Scanner) (Span, error) {
	var sp Span
	err := s.Scan(
		&sp.ID,
		&sp.RunID,
		&sp.Stage,
		&sp.Status,
		&sp.ErrorKind,
		&sp.StartedAt,
		&sp.DurationMS,
	)
	return sp, err
}

func labelArg(l *taxonomy.Label) any {
	if l == nil {
		return nil
	}
	return string(*l)
}
