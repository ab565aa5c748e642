// Package pipeline orchestrates a document run through acquisition,
// classification, field extraction and rendering as an explicit state
// machine, recording a span per stage.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/docintel/internal/acquisition"
	"github.com/JaimeStill/docintel/internal/classify"
	"github.com/JaimeStill/docintel/internal/document"
	"github.com/JaimeStill/docintel/internal/fields"
	"github.com/JaimeStill/docintel/internal/report"
	"github.com/JaimeStill/docintel/internal/telemetry"
	"github.com/JaimeStill/docintel/pkg/storage"
)

// Acquirer produces normalized text and writes the text artifact.
type Acquirer interface {
	Acquire(ctx context.Context, ref document.Reference) (*document.NormalizedText, error)
}

// Classifier labels normalized text.
type Classifier interface {
	Classify(ctx context.Context, text *document.NormalizedText) (*classify.Result, error)
}

// FieldExtractor extracts the label's field set and narrative.
type FieldExtractor interface {
	Extract(ctx context.Context, text *document.NormalizedText, cls *classify.Result) (*fields.Extraction, error)
}

// ArtifactWriter persists run artifacts.
type ArtifactWriter interface {
	Write(ctx context.Context, key string, data []byte, contentType string) error
}

// Recorder keeps the run ledger. Recording is best-effort.
type Recorder interface {
	RecordRun(ctx context.Context, run *Run) error
	RecordSpan(ctx context.Context, runID uuid.UUID, span Span) error
}

// Emitter receives span events.
type Emitter interface {
	Emit(e telemetry.Event)
}

// Deps are the orchestrator's collaborators. Recorder and Emitter are
// optional.
type Deps struct {
	Store      storage.System
	Acquirer   Acquirer
	Classifier Classifier
	Extractor  FieldExtractor
	Writer     ArtifactWriter
	Recorder   Recorder
	Emitter    Emitter
}

// Options tunes the orchestrator. WriteResult adds the JSON result
// artifact next to the report.
type Options struct {
	WriteResult bool
}

// Orchestrator runs documents through the pipeline. It holds no per-run
// state and may serve concurrent runs.
type Orchestrator struct {
	deps   Deps
	opts   Options
	logger *slog.Logger
}

// New creates an Orchestrator.
func New(deps Deps, opts Options, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		deps:   deps,
		opts:   opts,
		logger: logger.With("system", "pipeline"),
	}
}

// Validate checks a trigger against the configured container and the
// intake prefix.
func (o *Orchestrator) Validate(t Trigger) error {
	if t.Bucket == "" || t.Key == "" {
		return fmt.Errorf("%w: bucket and key are required", ErrInvalidTrigger)
	}
	if t.Bucket != o.deps.Store.Container() {
		return fmt.Errorf("%w: bucket %q is not the configured container %q",
			ErrInvalidTrigger, t.Bucket, o.deps.Store.Container())
	}
	if err := document.ValidateIntakeKey(t.Key); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTrigger, err)
	}
	return nil
}

// Run processes one trigger. An invalid trigger returns ErrInvalidTrigger
// and no run. Otherwise the returned run is terminal: Persisted with a nil
// error, or Failed with the error that stopped it.
//
// Cancellation of ctx is observed only at stage checkpoints. Stage work runs
// on a context detached from ctx so an in-flight collaborator call is never
// interrupted.
func (o *Orchestrator) Run(ctx context.Context, t Trigger) (*Run, error) {
	if err := o.Validate(t); err != nil {
		return nil, err
	}

	run := &Run{
		ID:        uuid.New(),
		Reference: document.Reference{Bucket: t.Bucket, Key: t.Key, MediaType: t.MediaType},
		State:     Received,
		StartedAt: time.Now().UTC(),
	}
	work := context.WithoutCancel(ctx)
	logger := o.logger.With("run_id", run.ID, "key", t.Key)

	logger.InfoContext(ctx, "run received")
	o.record(work, logger, run)

	stages := []struct {
		state State
		fn    func(ctx context.Context, run *Run) error
	}{
		{Acquiring, o.acquireStage},
		{Classifying, o.classifyStage},
		{Extracting, o.extractStage},
		{Rendering, o.renderStage},
	}

	for _, s := range stages {
		if err := o.stage(ctx, work, logger, run, s.state, s.fn); err != nil {
			return run, o.fail(work, logger, run, s.state, err)
		}
	}

	if err := run.transition(Persisted); err != nil {
		return run, o.fail(work, logger, run, Rendering, err)
	}
	o.complete(run)
	o.record(work, logger, run)

	logger.InfoContext(ctx, "run persisted",
		"label", run.Classification.Label,
		"report_key", run.ReportKey(),
		"elapsed", time.Since(run.StartedAt),
	)
	return run, nil
}

// stage runs one stage state. The checkpoint precedes the transition so a
// cancelled run never opens the next span.
func (o *Orchestrator) stage(
	ctx, work context.Context,
	logger *slog.Logger,
	run *Run,
	state State,
	fn func(ctx context.Context, run *Run) error,
) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w before %s: %w", ErrCancelled, state, err)
	}
	if err := run.transition(state); err != nil {
		return err
	}

	span := Span{Stage: state, StartedAt: time.Now().UTC()}
	o.emit(telemetry.Event{
		RunID:     run.ID,
		Stage:     string(state),
		Phase:     telemetry.PhaseStart,
		Timestamp: span.StartedAt,
	})

	err := fn(work, run)

	span.Duration = time.Since(span.StartedAt)
	span.Status = telemetry.StatusOK
	if err != nil {
		span.Status = telemetry.StatusError
		span.ErrorKind = KindOf(err)
	}
	run.Spans = append(run.Spans, span)

	o.emit(telemetry.Event{
		RunID:      run.ID,
		Stage:      string(state),
		Phase:      telemetry.PhaseEnd,
		Status:     span.Status,
		ErrorKind:  string(span.ErrorKind),
		DurationMS: span.Duration.Milliseconds(),
		Timestamp:  span.StartedAt.Add(span.Duration),
	})

	if o.deps.Recorder != nil {
		if rerr := o.deps.Recorder.RecordSpan(work, run.ID, span); rerr != nil {
			logger.WarnContext(work, "span not recorded", "stage", state, "error", rerr)
		}
	}

	logger.DebugContext(work, "stage complete", "stage", state, "status", span.Status, "duration", span.Duration)
	return err
}

func (o *Orchestrator) fail(work context.Context, logger *slog.Logger, run *Run, stage State, err error) error {
	if terr := run.transition(Failed); terr != nil {
		err = errors.Join(err, terr)
	}

	run.FailedStage = stage
	run.ErrorKind = KindOf(err)
	run.Error = err.Error()
	o.complete(run)
	o.record(work, logger, run)

	logger.ErrorContext(work, "run failed",
		"stage", run.FailedStage,
		"error_kind", run.ErrorKind,
		"error", err,
	)
	return err
}

func (o *Orchestrator) complete(run *Run) {
	now := time.Now().UTC()
	run.CompletedAt = &now
}

func (o *Orchestrator) record(work context.Context, logger *slog.Logger, run *Run) {
	if o.deps.Recorder == nil {
		return
	}
	if err := o.deps.Recorder.RecordRun(work, run); err != nil {
		logger.WarnContext(work, "run not recorded", "state", run.State, "error", err)
	}
}

func (o *Orchestrator) emit(e telemetry.Event) {
	if o.deps.Emitter != nil {
		o.deps.Emitter.Emit(e)
	}
}

func (o *Orchestrator) acquireStage(ctx context.Context, run *Run) error {
	obj, err := o.deps.Store.Stat(ctx, run.Reference.Key)
	if err != nil {
		return fmt.Errorf("%w: stat %s: %w", acquisition.ErrAcquisition, run.Reference.Location(), err)
	}
	if run.Reference.MediaType == "" {
		run.Reference.MediaType = obj.ContentType
	}
	run.Reference.Size = obj.Size

	text, err := o.deps.Acquirer.Acquire(ctx, run.Reference)
	if err != nil {
		return err
	}
	run.Text = text
	return nil
}

func (o *Orchestrator) classifyStage(ctx context.Context, run *Run) error {
	cls, err := o.deps.Classifier.Classify(ctx, run.Text)
	if err != nil {
		return err
	}
	run.Classification = cls
	return nil
}

func (o *Orchestrator) extractStage(ctx context.Context, run *Run) error {
	ext, err := o.deps.Extractor.Extract(ctx, run.Text, run.Classification)
	if err != nil {
		return err
	}
	run.Extraction = ext
	return nil
}

func (o *Orchestrator) renderStage(ctx context.Context, run *Run) error {
	rep, err := report.Render(
		*run.Classification,
		run.Extraction.Fields,
		run.Extraction.Narrative,
		report.WithSource(run.Reference.Name()),
	)
	if err != nil {
		return err
	}

	if o.opts.WriteResult {
		if err := o.writeResult(ctx, run); err != nil {
			return err
		}
	}

	// The report is written last: a failed run never leaves one behind.
	if err := o.deps.Writer.Write(ctx, run.Reference.ReportKey(), rep.HTML, "text/html; charset=utf-8"); err != nil {
		return err
	}
	run.Report = rep
	return nil
}

func (o *Orchestrator) writeResult(ctx context.Context, run *Run) error {
	data, err := json.MarshalIndent(Result{
		RunID:          run.ID,
		Bucket:         run.Reference.Bucket,
		Key:            run.Reference.Key,
		TextKey:        run.TextKey(),
		ReportKey:      run.Reference.ReportKey(),
		Method:         run.Text.Method,
		LowConfidence:  run.Text.LowConfidence,
		Classification: *run.Classification,
		Fields:         run.Extraction.Fields.Ordered(),
		Narrative:      run.Extraction.Narrative,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	return o.deps.Writer.Write(ctx, run.Reference.ResultKey(), data, "application/json")
}
