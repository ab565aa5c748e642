package classify_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/docintel/internal/classify"
	"github.com/JaimeStill/docintel/internal/document"
	"github.com/JaimeStill/docintel/internal/prompts"
	"github.com/JaimeStill/docintel/internal/reasoning"
	"github.com/JaimeStill/docintel/internal/taxonomy"
	"github.com/JaimeStill/docintel/pkg/retry"
)

type step struct {
	text string
	err  error
}

type scriptedReasoner struct {
	mu       sync.Mutex
	steps    []step
	requests []reasoning.Request
}

func (s *scriptedReasoner) Reason(ctx context.Context, req reasoning.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if len(s.steps) == 0 {
		return "", errors.New("no scripted response")
	}
	next := s.steps[0]
	s.steps = s.steps[1:]
	return next.text, next.err
}

func newClassifier(r reasoning.Reasoner, source prompts.Source) *classify.Classifier {
	return classify.New(r, source, classify.Options{
		Policy: retry.Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond},
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func memo() *document.NormalizedText {
	return &document.NormalizedText{
		Source:  document.Reference{Bucket: "documents", Key: "intake/memo.txt"},
		Content: "Client Jane Doe, advisor John Smith, reviewed 2024-01-01",
		Method:  document.DirectRead,
	}
}

func TestClassify(t *testing.T) {
	r := &scriptedReasoner{steps: []step{{text: `{"category":"SUMMARY_MEMO","confidence":0.92}`}}}
	c := newClassifier(r, &prompts.FileOverrides{})

	got, err := c.Classify(context.Background(), memo())
	require.NoError(t, err)
	assert.Equal(t, taxonomy.SummaryMemo, got.Label)
	assert.Equal(t, classify.MatchExact, got.MatchedBy)
	assert.InDelta(t, 0.92, got.Confidence, 1e-9)

	require.Len(t, r.requests, 1)
	assert.Contains(t, r.requests[0].Prompt, "Jane Doe")
	assert.Contains(t, r.requests[0].System, "SUMMARY_MEMO")
	assert.Contains(t, r.requests[0].System, `"category"`)
}

func TestClassifyUsesOverride(t *testing.T) {
	source := &prompts.FileOverrides{Stages: map[prompts.Stage]prompts.StageOverride{
		prompts.StageClassify: {Instructions: "custom classify instructions"},
	}}
	r := &scriptedReasoner{steps: []step{{text: `{"category":"OTHER","confidence":0.4}`}}}

	_, err := newClassifier(r, source).Classify(context.Background(), memo())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(r.requests[0].System, "custom classify instructions\n\n"))
}

func TestClassifyRetriesTransportAndMalformed(t *testing.T) {
	r := &scriptedReasoner{steps: []step{
		{err: reasoning.ErrTransport},
		{text: "I think this is a memo"},
		{text: "```json\n{\"category\":\"memo\",\"confidence\":0.7}\n```"},
	}}

	got, err := newClassifier(r, &prompts.FileOverrides{}).Classify(context.Background(), memo())
	require.NoError(t, err)
	assert.Equal(t, taxonomy.SummaryMemo, got.Label)
	assert.Equal(t, classify.MatchNear, got.MatchedBy)
	assert.Len(t, r.requests, 3)
}

func TestClassifyExhaustion(t *testing.T) {
	r := &scriptedReasoner{steps: []step{
		{err: reasoning.ErrTransport},
		{err: reasoning.ErrTransport},
		{err: reasoning.ErrTransport},
	}}

	got, err := newClassifier(r, &prompts.FileOverrides{}).Classify(context.Background(), memo())
	assert.Nil(t, got)
	assert.ErrorIs(t, err, classify.ErrClassification)
	assert.ErrorIs(t, err, retry.ErrExhausted)
}

func TestClassifyClientErrorNotRetried(t *testing.T) {
	r := &scriptedReasoner{steps: []step{
		{err: &reasoning.StatusError{Provider: "openai", Code: 401, Body: "bad key"}},
		{text: `{"category":"OTHER","confidence":1}`},
	}}

	_, err := newClassifier(r, &prompts.FileOverrides{}).Classify(context.Background(), memo())
	assert.ErrorIs(t, err, classify.ErrClassification)
	assert.Len(t, r.requests, 1)
}

func TestClassifyUnmappedIsUnknown(t *testing.T) {
	r := &scriptedReasoner{steps: []step{{text: `{"category":"INVOICE","confidence":0.99}`}}}

	got, err := newClassifier(r, &prompts.FileOverrides{}).Classify(context.Background(), memo())
	require.NoError(t, err)
	assert.Equal(t, classify.Result{
		Label:      taxonomy.Unknown,
		Confidence: 0,
		RawLabel:   "INVOICE",
		MatchedBy:  classify.MatchNone,
	}, *got)
}

func TestMap(t *testing.T) {
	tests := []struct {
		raw   string
		label taxonomy.Label
		by    classify.MatchedBy
	}{
		{"KYC_DOC", taxonomy.KYCDoc, classify.MatchExact},
		{"POLICY_OR_DISCLOSURE", taxonomy.PolicyOrDisclosure, classify.MatchExact},
		{" kyc doc ", taxonomy.KYCDoc, classify.MatchNear},
		{"Policy or Disclosure", taxonomy.PolicyOrDisclosure, classify.MatchNear},
		{"account-statement", taxonomy.AccountStatement, classify.MatchNear},
		{"SUITABILITY_DOC", taxonomy.SuitabilityForm, classify.MatchNear},
		{"Questionnaire", taxonomy.QuestionsDoc, classify.MatchNear},
		{"SUMMARY_MEMOS", taxonomy.SummaryMemo, classify.MatchNear},
		{"ACOUNT_STATEMENT", taxonomy.AccountStatement, classify.MatchNear},
		{"OTHERS", taxonomy.Other, classify.MatchNear},
		{"UNKNOWN", taxonomy.Unknown, classify.MatchNone},
		{"INVOICE", taxonomy.Unknown, classify.MatchNone},
		{"", taxonomy.Unknown, classify.MatchNone},
		{"!!!", taxonomy.Unknown, classify.MatchNone},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := classify.Map(tt.raw, 0.8)
			assert.Equal(t, tt.label, got.Label)
			assert.Equal(t, tt.by, got.MatchedBy)
			assert.Equal(t, tt.raw, got.RawLabel)
			if tt.by == classify.MatchNone {
				assert.Zero(t, got.Confidence)
			} else {
				assert.InDelta(t, 0.8, got.Confidence, 1e-9)
			}
		})
	}
}

func TestMapAlwaysInTaxonomy(t *testing.T) {
	inputs := []string{"kyc", "Statement", "Data", "memo", "random words", "12345", "OTHER", "prospectus", "ñandú"}
	for _, in := range inputs {
		first := classify.Map(in, 0.5)
		assert.True(t, first.Label.Valid(), "label %q for %q", first.Label, in)
		assert.Equal(t, first, classify.Map(in, 0.5), "mapping of %q must be deterministic", in)
	}
}

func TestMapClampsConfidence(t *testing.T) {
	assert.Equal(t, 1.0, classify.Map("OTHER", 7).Confidence)
	assert.Equal(t, 0.0, classify.Map("OTHER", -1).Confidence)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "héllo", classify.Truncate("héllo wörld", 5))
	assert.Equal(t, "short", classify.Truncate("short", 10))
	assert.Equal(t, "unbounded", classify.Truncate("unbounded", 0))
}
