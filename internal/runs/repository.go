package runs

import (
	"cmp"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/docintel/internal/pipeline"
	"github.com/JaimeStill/docintel/pkg/pagination"
	"github.com/JaimeStill/docintel/pkg/query"
	"github.com/JaimeStill/docintel/pkg/repository"
	"github.com/JaimeStill/docintel/pkg/retry"
	"github.com/JaimeStill/docintel/pkg/storage"
)

// ExportLimit caps the rows written to one workbook.
const ExportLimit = 10000

type repo struct {
	db         *sql.DB
	dialect    query.Dialect
	policy     retry.Policy
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a run ledger implementing the System interface. Ledger writes
// retry transient database failures under policy.
func New(
	db *sql.DB,
	dialect query.Dialect,
	policy retry.Policy,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	return &repo{
		db:         db,
		dialect:    dialect,
		policy:     policy,
		logger:     logger.With("system", "runs"),
		pagination: pagination,
	}
}

func (r *repo) exec(ctx context.Context, q string, args ...any) error {
	_, err := repository.WithTxRetry(ctx, r.db, r.policy, func(tx *sql.Tx) (struct{}, error) {
		_, err := tx.ExecContext(ctx, q, args...)
		return struct{}{}, err
	}, func(attempt int, err error, wait time.Duration) {
		r.logger.Warn("ledger write failed, retrying", "attempt", attempt, "wait", wait, "error", err)
	})
	return err
}

func (r *repo) Handler(proc Processor, store storage.System) *Handler {
	return NewHandler(r, proc, store, r.logger, r.pagination)
}

// RecordRun upserts the ledger row for a run. The orchestrator calls it at
// Received and again at the terminal state.
func (r *repo) RecordRun(ctx context.Context, run *pipeline.Run) error {
	row := FromPipeline(run)

	q := `
		INSERT INTO runs(
			id, bucket, object_key, document_name, media_type, size_bytes, state,
			method, label, confidence, low_confidence, text_key, report_key,
			failed_stage, error_kind, error_message, started_at, completed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (id) DO UPDATE SET
			media_type = excluded.media_type,
			size_bytes = excluded.size_bytes,
			state = excluded.state,
			method = excluded.method,
			label = excluded.label,
			confidence = excluded.confidence,
			low_confidence = excluded.low_confidence,
			text_key = excluded.text_key,
			report_key = excluded.report_key,
			failed_stage = excluded.failed_stage,
			error_kind = excluded.error_kind,
			error_message = excluded.error_message,
			completed_at = excluded.completed_at`

	args := []any{
		row.ID,
		row.Bucket,
		row.ObjectKey,
		row.DocumentName,
		row.MediaType,
		row.SizeBytes,
		string(row.State),
		row.Method,
		labelArg(row.Label),
		row.Confidence,
		row.LowConfidence,
		row.TextKey,
		row.ReportKey,
		row.FailedStage,
		row.ErrorKind,
		row.ErrorMessage,
		row.StartedAt,
		row.CompletedAt,
	}

	if err := r.exec(ctx, q, args...); err != nil {
		return fmt.Errorf("record run %s: %w", row.ID, repository.MapError(err, ErrNotFound, ErrDuplicate))
	}
	return nil
}

// RecordSpan appends one stage span to a run.
func (r *repo) RecordSpan(ctx context.Context, runID uuid.UUID, span pipeline.Span) error {
	q := `
		INSERT INTO spans(` + spanColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	var kind *string
	if span.ErrorKind != "" {
		k := string(span.ErrorKind)
		kind = &k
	}

	err := r.exec(ctx, q,
		uuid.New(),
		runID,
		string(span.Stage),
		string(span.Status),
		kind,
		span.StartedAt.UTC(),
		span.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("record span %s/%s: %w", runID, span.Stage, err)
	}
	return nil
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Run], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(runsTable, defaultSort).
		WithDialect(r.dialect).
		WhereSearch(page.Search, "DocumentName", "ObjectKey")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count runs: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	runs, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanRun)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}

	result := pagination.NewPageResult(runs, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Run, error) {
	q, args := query.
		NewBuilder(runsTable).
		WithDialect(r.dialect).
		BuildSingle("ID", id)

	run, err := repository.QueryOne(ctx, r.db, q, args, scanRun)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &run, nil
}

// Spans returns a run's spans in the order the stages started. A run with
// no spans yields an empty slice; an unknown run yields ErrNotFound.
func (r *repo) Spans(ctx context.Context, id uuid.UUID) ([]Span, error) {
	if _, err := r.Find(ctx, id); err != nil {
		return nil, err
	}

	spans, err := repository.QueryMany(
		ctx, r.db,
		"SELECT "+spanColumns+" FROM spans WHERE run_id = $1",
		[]any{id},
		scanSpan,
	)
	if err != nil {
		return nil, fmt.Errorf("query spans: %w", err)
	}

	slices.SortStableFunc(spans, func(a, b Span) int {
		return cmp.Compare(a.StartedAt.UnixNano(), b.StartedAt.UnixNano())
	})
	return spans, nil
}

// Export renders up to ExportLimit matching runs, newest first, as an XLSX
// workbook.
func (r *repo) Export(ctx context.Context, filters Filters) ([]byte, error) {
	qb := query.
		NewBuilder(runsTable, defaultSort).
		WithDialect(r.dialect)

	filters.Apply(qb)

	q, args := qb.BuildPage(1, ExportLimit)
	runs, err := repository.QueryMany(ctx, r.db, q, args, scanRun)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}

	data, err := Workbook(runs)
	if err != nil {
		return nil, err
	}

	r.logger.InfoContext(ctx, "runs exported", "rows", len(runs), "bytes", len(data))
	return data, nil
}
