package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/docintel/internal/acquisition"
	"github.com/JaimeStill/docintel/internal/artifacts"
	"github.com/JaimeStill/docintel/internal/classify"
	"github.com/JaimeStill/docintel/internal/document"
	"github.com/JaimeStill/docintel/internal/fields"
	"github.com/JaimeStill/docintel/internal/pipeline"
	"github.com/JaimeStill/docintel/internal/prompts"
	"github.com/JaimeStill/docintel/internal/reasoning"
	"github.com/JaimeStill/docintel/internal/taxonomy"
	"github.com/JaimeStill/docintel/internal/telemetry"
	"github.com/JaimeStill/docintel/pkg/retry"
	"github.com/JaimeStill/docintel/pkg/storage"
)

const container = "documents"

// stageReasoner answers classify and extract calls from separate queues.
// An empty queue repeats its last answer.
type stageReasoner struct {
	mu       sync.Mutex
	classify []answer
	extract  []answer
	onCall   func(stage prompts.Stage, ctx context.Context)
}

type answer struct {
	text string
	err  error
}

func (s *stageReasoner) Reason(ctx context.Context, req reasoning.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stage := prompts.StageExtract
	queue := &s.extract
	if strings.Contains(req.System, `"category": "<one of the categories above>"`) {
		stage = prompts.StageClassify
		queue = &s.classify
	}
	if s.onCall != nil {
		s.onCall(stage, ctx)
	}
	if len(*queue) == 0 {
		return "", errors.New("no scripted answer")
	}
	a := (*queue)[0]
	if len(*queue) > 1 {
		*queue = (*queue)[1:]
	}
	return a.text, a.err
}

type timeoutExtractor struct {
	failures int
	calls    int
}

func (e *timeoutExtractor) Extract(ctx context.Context, ref document.Reference, data []byte) (*acquisition.Extraction, error) {
	e.calls++
	if e.calls <= e.failures {
		return nil, context.DeadlineExceeded
	}
	return &acquisition.Extraction{
		Pages:      1,
		Confidence: 0.88,
		Blocks:     []acquisition.Block{{Page: 1, Text: "Suitability Form for Jane Doe"}},
	}, nil
}

type memoryRecorder struct {
	mu    sync.Mutex
	runs  []pipeline.State
	spans []pipeline.Span
	err   error
}

func (m *memoryRecorder) RecordRun(ctx context.Context, run *pipeline.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run.State)
	return m.err
}

func (m *memoryRecorder) RecordSpan(ctx context.Context, runID uuid.UUID, span pipeline.Span) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.spans = append(m.spans, span)
	return m.err
}

type memoryEmitter struct {
	mu     sync.Mutex
	events []telemetry.Event
}

func (m *memoryEmitter) Emit(e telemetry.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
}

type harness struct {
	store     storage.System
	reasoner  *stageReasoner
	extractor *timeoutExtractor
	recorder  *memoryRecorder
	emitter   *memoryEmitter
	orch      *pipeline.Orchestrator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := storage.NewFilesystem(t.TempDir(), container, logger)
	require.NoError(t, err)

	policy := retry.Policy{MaxAttempts: 3, Timeout: time.Second, InitialBackoff: time.Millisecond}
	h := &harness{
		store:     store,
		reasoner:  &stageReasoner{},
		extractor: &timeoutExtractor{},
		recorder:  &memoryRecorder{},
		emitter:   &memoryEmitter{},
	}

	writer := artifacts.NewWriter(store, policy, false, logger)
	source := &prompts.FileOverrides{}

	h.orch = pipeline.New(pipeline.Deps{
		Store:      store,
		Acquirer:   acquisition.New(store, h.extractor, writer, acquisition.Options{Policy: policy}, logger),
		Classifier: classify.New(h.reasoner, source, classify.Options{Policy: policy}, logger),
		Extractor:  fields.New(h.reasoner, source, fields.Options{Policy: policy}, logger),
		Writer:     writer,
		Recorder:   h.recorder,
		Emitter:    h.emitter,
	}, pipeline.Options{WriteResult: true}, logger)

	return h
}

func (h *harness) put(t *testing.T, key, content string) pipeline.Trigger {
	t.Helper()
	require.NoError(t, h.store.Upload(context.Background(), key, strings.NewReader(content), ""))
	return pipeline.Trigger{Bucket: container, Key: key}
}

func (h *harness) read(t *testing.T, key string) string {
	t.Helper()
	rc, err := h.store.Download(context.Background(), key)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}

func (h *harness) exists(t *testing.T, key string) bool {
	t.Helper()
	ok, err := h.store.Exists(context.Background(), key)
	require.NoError(t, err)
	return ok
}

func stagesOf(spans []pipeline.Span) []pipeline.State {
	out := make([]pipeline.State, 0, len(spans))
	for _, s := range spans {
		out = append(out, s.Stage)
	}
	return out
}

const memoExtraction = `{
	"summary": "Review notes for client Jane Doe.",
	"fields": {"client": "Jane Doe", "advisor": "John Smith", "date": "2024-01-01"},
	"insights": [],
	"action_items": ["Confirm next review date"],
	"key_entities": {"clients": ["Jane Doe"], "advisors": ["John Smith"]}
}`

func TestRunMemoEndToEnd(t *testing.T) {
	h := newHarness(t)
	h.reasoner.classify = []answer{{text: `{"category":"SUMMARY_MEMO","confidence":0.93}`}}
	h.reasoner.extract = []answer{{text: memoExtraction}}

	trigger := h.put(t, "intake/memo.txt", "Client Jane Doe, advisor John Smith, reviewed 2024-01-01")

	run, err := h.orch.Run(context.Background(), trigger)
	require.NoError(t, err)

	assert.Equal(t, pipeline.Persisted, run.State)
	assert.Equal(t, document.DirectRead, run.Text.Method)
	assert.Equal(t, taxonomy.SummaryMemo, run.Classification.Label)
	assert.Equal(t, "Jane Doe", run.Extraction.Fields.Get("client"))
	assert.Equal(t, "John Smith", run.Extraction.Fields.Get("advisor"))
	assert.Equal(t, "2024-01-01", run.Extraction.Fields.Get("date"))
	assert.NotNil(t, run.CompletedAt)
	assert.Empty(t, run.FailedStage)

	assert.Equal(t, "Client Jane Doe, advisor John Smith, reviewed 2024-01-01", h.read(t, "textract-output/memo.txt.txt"))

	html := h.read(t, "outputs/memo.txt.html")
	insights := html[strings.Index(html, "<h2>Key Insights</h2>"):strings.Index(html, "<h2>Action Items</h2>")]
	for _, want := range []string{"Jane Doe", "John Smith", "2024-01-01"} {
		assert.Contains(t, insights, want)
	}

	var result pipeline.Result
	require.NoError(t, json.Unmarshal([]byte(h.read(t, "outputs/memo.txt.json")), &result))
	assert.Equal(t, run.ID, result.RunID)
	assert.Equal(t, "outputs/memo.txt.html", result.ReportKey)
	assert.Equal(t, taxonomy.SummaryMemo, result.Classification.Label)

	assert.Equal(t, []pipeline.State{
		pipeline.Acquiring, pipeline.Classifying, pipeline.Extracting, pipeline.Rendering,
	}, stagesOf(run.Spans))
	for _, s := range run.Spans {
		assert.Equal(t, telemetry.StatusOK, s.Status)
		assert.Empty(t, s.ErrorKind)
	}

	assert.Len(t, h.emitter.events, 8)
	assert.Equal(t, []pipeline.State{pipeline.Received, pipeline.Persisted}, h.recorder.runs)
	assert.Len(t, h.recorder.spans, 4)
}

func TestRunPDFRetriesExtraction(t *testing.T) {
	h := newHarness(t)
	h.extractor.failures = 2
	h.reasoner.classify = []answer{{text: `{"category":"SUITABILITY_FORM","confidence":0.8}`}}
	h.reasoner.extract = []answer{{text: `{"summary": "Suitability form.", "fields": {"client": "Jane Doe"}}`}}

	trigger := h.put(t, "intake/form.pdf", "%PDF-1.7 fake")

	run, err := h.orch.Run(context.Background(), trigger)
	require.NoError(t, err)

	assert.Equal(t, pipeline.Persisted, run.State)
	assert.Equal(t, 3, h.extractor.calls)
	assert.Equal(t, document.ExtractionTool, run.Text.Method)
	assert.Equal(t, document.MediaPDF, run.Reference.MediaType)
	assert.True(t, h.exists(t, "outputs/form.pdf.html"))
}

func TestRunUnknownTypeEndToEnd(t *testing.T) {
	h := newHarness(t)
	h.reasoner.classify = []answer{{text: `{"category":"UNKNOWN","confidence":0.2}`}}
	h.reasoner.extract = []answer{{text: `{"summary": "Unrecognized content.", "fields": {}}`}}

	trigger := h.put(t, "intake/unknown.xyz", "opaque payload")

	run, err := h.orch.Run(context.Background(), trigger)
	require.NoError(t, err)

	assert.Equal(t, pipeline.Persisted, run.State)
	assert.Equal(t, document.DirectRead, run.Text.Method)
	assert.True(t, run.Text.LowConfidence)
	assert.Zero(t, h.extractor.calls)
	assert.Equal(t, taxonomy.Unknown, run.Classification.Label)
	assert.Equal(t, []string{"title", "date", "parties"}, run.Extraction.Fields.Keys)
	assert.True(t, h.exists(t, "textract-output/unknown.xyz.txt"))
	assert.True(t, h.exists(t, "outputs/unknown.xyz.html"))
}

func TestRunFailsAtClassifying(t *testing.T) {
	h := newHarness(t)
	h.reasoner.classify = []answer{{err: reasoning.ErrTransport}}

	trigger := h.put(t, "intake/memo.txt", "Client Jane Doe")

	run, err := h.orch.Run(context.Background(), trigger)
	require.Error(t, err)
	assert.ErrorIs(t, err, classify.ErrClassification)

	assert.Equal(t, pipeline.Failed, run.State)
	assert.Equal(t, pipeline.Classifying, run.FailedStage)
	assert.Equal(t, pipeline.KindClassification, run.ErrorKind)
	assert.NotEmpty(t, run.Error)

	assert.True(t, h.exists(t, "textract-output/memo.txt.txt"), "text artifact is retained")
	assert.False(t, h.exists(t, "outputs/memo.txt.html"))

	require.Len(t, run.Spans, 2)
	assert.Equal(t, telemetry.StatusOK, run.Spans[0].Status)
	assert.Equal(t, telemetry.StatusError, run.Spans[1].Status)
	assert.Equal(t, pipeline.KindClassification, run.Spans[1].ErrorKind)
	assert.Equal(t, []pipeline.State{pipeline.Received, pipeline.Failed}, h.recorder.runs)
}

func TestRunMissingObject(t *testing.T) {
	h := newHarness(t)

	run, err := h.orch.Run(context.Background(), pipeline.Trigger{Bucket: container, Key: "intake/absent.txt"})
	assert.ErrorIs(t, err, acquisition.ErrAcquisition)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Equal(t, pipeline.Acquiring, run.FailedStage)
	assert.Equal(t, pipeline.KindAcquisition, run.ErrorKind)
}

func TestRunExistingReportIsPersistenceFailure(t *testing.T) {
	h := newHarness(t)
	h.reasoner.classify = []answer{{text: `{"category":"SUMMARY_MEMO","confidence":0.9}`}}
	h.reasoner.extract = []answer{{text: memoExtraction}}

	trigger := h.put(t, "intake/memo.txt", "Client Jane Doe")
	require.NoError(t, h.store.Upload(context.Background(), "outputs/memo.txt.html", strings.NewReader("old"), "text/html"))

	run, err := h.orch.Run(context.Background(), trigger)
	assert.ErrorIs(t, err, artifacts.ErrPersistence)
	assert.Equal(t, pipeline.Rendering, run.FailedStage)
	assert.Equal(t, pipeline.KindPersistence, run.ErrorKind)
	assert.Equal(t, "old", h.read(t, "outputs/memo.txt.html"))
}

func TestRunResultFailureLeavesNoReport(t *testing.T) {
	h := newHarness(t)
	h.reasoner.classify = []answer{{text: `{"category":"SUMMARY_MEMO","confidence":0.9}`}}
	h.reasoner.extract = []answer{{text: memoExtraction}}

	trigger := h.put(t, "intake/memo.txt", "Client Jane Doe")
	require.NoError(t, h.store.Upload(context.Background(), "outputs/memo.txt.json", strings.NewReader("{}"), "application/json"))

	run, err := h.orch.Run(context.Background(), trigger)
	assert.ErrorIs(t, err, artifacts.ErrPersistence)
	assert.Equal(t, pipeline.Failed, run.State)
	assert.Equal(t, pipeline.Rendering, run.FailedStage)
	assert.False(t, h.exists(t, "outputs/memo.txt.html"))
	assert.Empty(t, run.ReportKey())
}

func TestRunNestedDocumentsSharingAName(t *testing.T) {
	h := newHarness(t)
	h.reasoner.classify = []answer{{text: `{"category":"SUMMARY_MEMO","confidence":0.9}`}}
	h.reasoner.extract = []answer{{text: memoExtraction}}

	for _, key := range []string{"intake/clientA/memo.txt", "intake/clientB/memo.txt"} {
		run, err := h.orch.Run(context.Background(), h.put(t, key, "Client Jane Doe"))
		require.NoError(t, err, key)
		assert.Equal(t, pipeline.Persisted, run.State, key)
	}

	for _, client := range []string{"clientA", "clientB"} {
		assert.True(t, h.exists(t, "textract-output/"+client+"/memo.txt.txt"))
		assert.True(t, h.exists(t, "outputs/"+client+"/memo.txt.html"))
		assert.True(t, h.exists(t, "outputs/"+client+"/memo.txt.json"))
	}
}

func TestRunCancelledAtCheckpoint(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var callErr error
	h.reasoner.onCall = func(stage prompts.Stage, callCtx context.Context) {
		if stage == prompts.StageClassify {
			cancel()
			callErr = callCtx.Err()
		}
	}
	h.reasoner.classify = []answer{{text: `{"category":"SUMMARY_MEMO","confidence":0.9}`}}
	h.reasoner.extract = []answer{{text: memoExtraction}}

	trigger := h.put(t, "intake/memo.txt", "Client Jane Doe")

	run, err := h.orch.Run(ctx, trigger)
	assert.ErrorIs(t, err, pipeline.ErrCancelled)
	assert.NoError(t, callErr, "in-flight call must not observe cancellation")

	assert.Equal(t, pipeline.Failed, run.State)
	assert.Equal(t, pipeline.Extracting, run.FailedStage)
	assert.Equal(t, pipeline.KindCancelled, run.ErrorKind)
	assert.NotNil(t, run.Classification, "classification finished before the checkpoint")
	assert.Equal(t, []pipeline.State{pipeline.Acquiring, pipeline.Classifying}, stagesOf(run.Spans))
}

func TestRunRejectsInvalidTrigger(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name    string
		trigger pipeline.Trigger
	}{
		{"empty", pipeline.Trigger{}},
		{"other bucket", pipeline.Trigger{Bucket: "elsewhere", Key: "intake/memo.txt"}},
		{"outside intake", pipeline.Trigger{Bucket: container, Key: "outputs/memo.txt.html"}},
		{"prefix only", pipeline.Trigger{Bucket: container, Key: "intake/"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run, err := h.orch.Run(context.Background(), tt.trigger)
			assert.Nil(t, run)
			assert.ErrorIs(t, err, pipeline.ErrInvalidTrigger)
		})
	}
	assert.Empty(t, h.recorder.runs)
}

func TestRunToleratesRecorderFailure(t *testing.T) {
	h := newHarness(t)
	h.recorder.err = errors.New("ledger offline")
	h.reasoner.classify = []answer{{text: `{"category":"SUMMARY_MEMO","confidence":0.9}`}}
	h.reasoner.extract = []answer{{text: memoExtraction}}

	run, err := h.orch.Run(context.Background(), h.put(t, "intake/memo.txt", "Client Jane Doe"))
	require.NoError(t, err)
	assert.Equal(t, pipeline.Persisted, run.State)
}

func TestConcurrentRunsAreIndependent(t *testing.T) {
	h := newHarness(t)
	h.reasoner.classify = []answer{{text: `{"category":"SUMMARY_MEMO","confidence":0.9}`}}
	h.reasoner.extract = []answer{{text: memoExtraction}}

	keys := []string{"intake/a.txt", "intake/b.txt", "intake/c.txt", "intake/d.txt"}
	triggers := make([]pipeline.Trigger, len(keys))
	for i, k := range keys {
		triggers[i] = h.put(t, k, "Client Jane Doe")
	}

	var wg sync.WaitGroup
	runs := make([]*pipeline.Run, len(triggers))
	errs := make([]error, len(triggers))
	for i, tr := range triggers {
		wg.Go(func() {
			runs[i], errs[i] = h.orch.Run(context.Background(), tr)
		})
	}
	wg.Wait()

	ids := map[uuid.UUID]bool{}
	for i := range triggers {
		require.NoError(t, errs[i])
		assert.Equal(t, pipeline.Persisted, runs[i].State)
		ids[runs[i].ID] = true
	}
	assert.Len(t, ids, len(triggers))
}
