package fields

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/JaimeStill/docintel/internal/classify"
	"github.com/JaimeStill/docintel/internal/document"
	"github.com/JaimeStill/docintel/internal/prompts"
	"github.com/JaimeStill/docintel/internal/reasoning"
	"github.com/JaimeStill/docintel/internal/taxonomy"
	"github.com/JaimeStill/docintel/pkg/retry"
)

// ErrFieldExtraction marks a reasoning call that failed or returned an
// unusable response after the retry budget.
var ErrFieldExtraction = errors.New("field extraction failed")

// Options tunes the extractor. MaxChars bounds the document text sent to
// the reasoning collaborator; zero sends everything.
type Options struct {
	Policy   retry.Policy
	MaxChars int
}

// Extractor implements field extraction.
type Extractor struct {
	reasoner reasoning.Reasoner
	source   prompts.Source
	policy   retry.Policy
	maxChars int
	logger   *slog.Logger

	mu      sync.Mutex
	schemas map[taxonomy.Label]*reasoning.Schema
}

type response struct {
	Summary     string         `json:"summary"`
	Fields      map[string]any `json:"fields"`
	Insights    []any          `json:"insights"`
	ActionItems []any          `json:"action_items"`
	Questions   []any          `json:"questions"`
	Themes      []any          `json:"themes"`
	Entities    struct {
		Clients  []any `json:"clients"`
		Advisors []any `json:"advisors"`
		Accounts []any `json:"accounts"`
		Tickers  []any `json:"tickers"`
	} `json:"key_entities"`
}

// New creates an Extractor.
func New(reasoner reasoning.Reasoner, source prompts.Source, opts Options, logger *slog.Logger) *Extractor {
	return &Extractor{
		reasoner: reasoner,
		source:   source,
		policy:   opts.Policy,
		maxChars: opts.MaxChars,
		logger:   logger.With("system", "fields"),
		schemas:  make(map[taxonomy.Label]*reasoning.Schema),
	}
}

// Extract produces the field set for the classified label and the document
// narrative.
func (e *Extractor) Extract(
	ctx context.Context,
	text *document.NormalizedText,
	cls *classify.Result,
) (*Extraction, error) {
	label := cls.Label
	keys := Schema(label)

	schema, err := e.schemaFor(label, keys)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFieldExtraction, err)
	}

	instructions, err := e.source.Resolve(ctx, prompts.StageExtract, label)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve instructions: %w", ErrFieldExtraction, err)
	}

	system, err := prompts.Compose(prompts.StageExtract, instructions)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFieldExtraction, err)
	}

	prompt, err := userPrompt(cls, keys, classify.Truncate(text.Content, e.maxChars))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFieldExtraction, err)
	}
	req := reasoning.Request{System: system, Prompt: prompt}

	var resp response
	err = retry.Do(ctx, e.policy, func(ctx context.Context) error {
		out, err := e.reasoner.Reason(ctx, req)
		if err != nil {
			if !reasoning.Retryable(err) {
				return retry.Permanent(err)
			}
			return err
		}
		resp, err = reasoning.Decode[response](out, schema)
		return err
	}, func(attempt int, err error, wait time.Duration) {
		e.logger.WarnContext(ctx, "field extraction attempt failed, retrying",
			"key", text.Source.Key, "label", label, "attempt", attempt, "wait", wait, "error", err)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFieldExtraction, text.Source.Key, err)
	}

	ext := &Extraction{
		Fields:    Complete(label, resp.Fields),
		Narrative: narrative(resp),
	}

	found := 0
	for _, f := range ext.Fields.Ordered() {
		if f.Value != NotFound {
			found++
		}
	}
	e.logger.InfoContext(ctx, "fields extracted",
		"key", text.Source.Key,
		"label", label,
		"fields", len(keys),
		"found", found,
		"insights", len(ext.Narrative.Insights),
	)
	return ext, nil
}

func (e *Extractor) schemaFor(label taxonomy.Label, keys []string) (*reasoning.Schema, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if s, ok := e.schemas[label]; ok {
		return s, nil
	}
	s, err := reasoning.CompileSchema("extract-"+strings.ToLower(string(label)), responseSchema(keys))
	if err != nil {
		return nil, err
	}
	e.schemas[label] = s
	return s, nil
}

// narrative converts the response lists, falling back to list-valued
// fields when the model placed them under fields instead.
func narrative(resp response) Narrative {
	n := Narrative{
		Summary:     strings.TrimSpace(resp.Summary),
		Insights:    toStrings(resp.Insights),
		ActionItems: toStrings(resp.ActionItems),
		Questions:   toStrings(resp.Questions),
		Themes:      toStrings(resp.Themes),
		Entities: Entities{
			Clients:  toStrings(resp.Entities.Clients),
			Advisors: toStrings(resp.Entities.Advisors),
			Accounts: toStrings(resp.Entities.Accounts),
			Tickers:  toStrings(resp.Entities.Tickers),
		},
	}

	if len(n.Insights) == 0 {
		n.Insights = fieldList(resp.Fields, "main_points")
	}
	if len(n.ActionItems) == 0 {
		n.ActionItems = fieldList(resp.Fields, "action_items")
	}
	if len(n.Questions) == 0 {
		n.Questions = fieldList(resp.Fields, "main_questions")
	}
	if len(n.Themes) == 0 {
		n.Themes = fieldList(resp.Fields, "themes")
	}
	return n
}

func fieldList(raw map[string]any, key string) []string {
	switch v := raw[key].(type) {
	case []any:
		return toStrings(v)
	case string:
		if s := strings.TrimSpace(v); s != "" {
			return []string{s}
		}
	}
	return nil
}

func toStrings(items []any) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := Stringify(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func userPrompt(cls *classify.Result, keys []string, content string) (string, error) {
	classification, err := json.MarshalIndent(map[string]any{
		"category":   cls.Label,
		"confidence": cls.Confidence,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal classification: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("Document classification JSON:\n")
	sb.Write(classification)
	sb.WriteString("\n\nFields to extract for this category:\n")
	for _, k := range keys {
		sb.WriteString("- ")
		sb.WriteString(k)
		sb.WriteByte('\n')
	}
	sb.WriteString("\nDocument text:\n")
	sb.WriteString("--------------------------------\n")
	sb.WriteString(content)
	sb.WriteString("\n--------------------------------\n\n")
	sb.WriteString("Now produce the output JSON exactly as specified. Return ONLY JSON, no extra text.")
	return sb.String(), nil
}
