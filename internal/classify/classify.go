// Package classify assigns a document to the intent taxonomy with a single
// reasoning call and a deterministic mapping of the model's answer.
package classify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/JaimeStill/docintel/internal/document"
	"github.com/JaimeStill/docintel/internal/prompts"
	"github.com/JaimeStill/docintel/internal/reasoning"
	"github.com/JaimeStill/docintel/internal/taxonomy"
	"github.com/JaimeStill/docintel/pkg/retry"
)

// ErrClassification marks a reasoning call that failed or returned an
// unusable response after the retry budget.
var ErrClassification = errors.New("classification failed")

// MatchedBy records how the raw category was mapped onto the taxonomy.
type MatchedBy string

const (
	MatchExact MatchedBy = "exact"
	MatchNear  MatchedBy = "near"
	MatchNone  MatchedBy = "none"
)

// Result is the classification of one document. Label is always a taxonomy
// member.
type Result struct {
	Label      taxonomy.Label `json:"label"`
	Confidence float64        `json:"confidence"`
	RawLabel   string         `json:"raw_label"`
	MatchedBy  MatchedBy      `json:"matched_by"`
}

// Options tunes the classifier. MaxChars bounds the document text sent to
// the reasoning collaborator; zero sends everything.
type Options struct {
	Policy   retry.Policy
	MaxChars int
}

// Classifier implements intent classification.
type Classifier struct {
	reasoner reasoning.Reasoner
	source   prompts.Source
	policy   retry.Policy
	maxChars int
	logger   *slog.Logger
}

type response struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

var schema = reasoning.MustCompileSchema("classify", map[string]any{
	"type":     "object",
	"required": []string{"category", "confidence"},
	"properties": map[string]any{
		"category":   map[string]any{"type": "string"},
		"confidence": map[string]any{"type": "number"},
	},
})

// New creates a Classifier.
func New(reasoner reasoning.Reasoner, source prompts.Source, opts Options, logger *slog.Logger) *Classifier {
	return &Classifier{
		reasoner: reasoner,
		source:   source,
		policy:   opts.Policy,
		maxChars: opts.MaxChars,
		logger:   logger.With("system", "classify"),
	}
}

// Classify labels text. Transport failures and malformed responses are
// retried within the policy; an unmappable category is not an error and
// yields UNKNOWN.
func (c *Classifier) Classify(ctx context.Context, text *document.NormalizedText) (*Result, error) {
	instructions, err := c.source.Resolve(ctx, prompts.StageClassify, "")
	if err != nil {
		return nil, fmt.Errorf("%w: resolve instructions: %w", ErrClassification, err)
	}

	system, err := prompts.Compose(prompts.StageClassify, instructions)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrClassification, err)
	}

	req := reasoning.Request{
		System: system,
		Prompt: userPrompt(Truncate(text.Content, c.maxChars)),
	}

	var resp response
	err = retry.Do(ctx, c.policy, func(ctx context.Context) error {
		out, err := c.reasoner.Reason(ctx, req)
		if err != nil {
			if !reasoning.Retryable(err) {
				return retry.Permanent(err)
			}
			return err
		}
		resp, err = reasoning.Decode[response](out, schema)
		return err
	}, func(attempt int, err error, wait time.Duration) {
		c.logger.WarnContext(ctx, "classification attempt failed, retrying",
			"key", text.Source.Key, "attempt", attempt, "wait", wait, "error", err)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrClassification, text.Source.Key, err)
	}

	result := Map(resp.Category, resp.Confidence)

	c.logger.InfoContext(ctx, "document classified",
		"key", text.Source.Key,
		"label", result.Label,
		"raw_label", result.RawLabel,
		"matched_by", result.MatchedBy,
		"confidence", result.Confidence,
	)
	return &result, nil
}

func userPrompt(content string) string {
	var sb strings.Builder
	sb.WriteString("Here is the full document text:\n")
	sb.WriteString("--------------------------------\n")
	sb.WriteString(content)
	sb.WriteString("\n--------------------------------\n\n")
	sb.WriteString("Now respond with ONLY the JSON object as specified.")
	return sb.String()
}

// Truncate limits s to n runes. A non-positive n leaves s unchanged.
func Truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
