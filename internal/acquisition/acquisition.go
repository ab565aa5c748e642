// Package acquisition turns a stored document into normalized plain text,
// routing paginated and image formats to optical extraction and reading
// everything else directly.
package acquisition

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/JaimeStill/docintel/internal/artifacts"
	"github.com/JaimeStill/docintel/internal/document"
	"github.com/JaimeStill/docintel/pkg/retry"
	"github.com/JaimeStill/docintel/pkg/storage"
)

// Acquirer obtains normalized text for a document reference and persists it
// as the run's text artifact.
type Acquirer struct {
	store     storage.System
	extractor Extractor
	writer    *artifacts.Writer
	policy    retry.Policy
	maxBytes  int64
	logger    *slog.Logger
}

// Options tunes acquisition. Policy governs optical extraction attempts.
// MaxBytes bounds how much of an object is read; zero means no limit.
type Options struct {
	Policy   retry.Policy
	MaxBytes int64
}

// New creates an Acquirer.
func New(
	store storage.System,
	extractor Extractor,
	writer *artifacts.Writer,
	opts Options,
	logger *slog.Logger,
) *Acquirer {
	return &Acquirer{
		store:     store,
		extractor: extractor,
		writer:    writer,
		policy:    opts.Policy,
		maxBytes:  opts.MaxBytes,
		logger:    logger.With("system", "acquisition"),
	}
}

// Acquire reads ref, producing its normalized text. The routing decision uses
// only the declared or extension-detected media type.
func (a *Acquirer) Acquire(ctx context.Context, ref document.Reference) (*document.NormalizedText, error) {
	mediaType := document.DetectMediaType(ref.Key, ref.MediaType)

	data, err := a.read(ctx, ref)
	if err != nil {
		return nil, err
	}

	var text *document.NormalizedText
	if ExtractionRequired(mediaType) {
		text, err = a.extract(ctx, ref, data)
		if err != nil {
			return nil, err
		}
	} else {
		text = a.direct(ctx, ref, mediaType, data)
	}

	text.ArtifactKey = ref.TextKey()
	if err := a.writer.Write(ctx, text.ArtifactKey, []byte(text.Content), "text/plain; charset=utf-8"); err != nil {
		return nil, err
	}

	a.logger.InfoContext(ctx, "text acquired",
		"key", ref.Key,
		"media_type", mediaType,
		"method", text.Method,
		"chars", len(text.Content),
		"low_confidence", text.LowConfidence,
	)
	return text, nil
}

func (a *Acquirer) read(ctx context.Context, ref document.Reference) ([]byte, error) {
	rc, err := a.store.Download(ctx, ref.Key)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrAcquisition, ref.Location(), err)
	}
	defer rc.Close()

	var r io.Reader = rc
	if a.maxBytes > 0 {
		r = io.LimitReader(rc, a.maxBytes+1)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrAcquisition, ref.Location(), err)
	}
	if a.maxBytes > 0 && int64(len(data)) > a.maxBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrAcquisition, ref.Location(), a.maxBytes)
	}
	return data, nil
}

func (a *Acquirer) extract(ctx context.Context, ref document.Reference, data []byte) (*document.NormalizedText, error) {
	var result *Extraction

	err := retry.Do(ctx, a.policy, func(ctx context.Context) error {
		out, err := a.extractor.Extract(ctx, ref, data)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrExtraction, err)
		}
		if out == nil {
			return fmt.Errorf("%w: extractor returned no result", ErrExtraction)
		}
		result = out
		return nil
	}, func(attempt int, err error, wait time.Duration) {
		a.logger.WarnContext(ctx, "optical extraction failed, retrying",
			"key", ref.Key, "attempt", attempt, "wait", wait, "error", err)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrAcquisition, ref.Location(), err)
	}

	confidence := result.Confidence
	return &document.NormalizedText{
		Source:     ref,
		Content:    result.Text(),
		Method:     document.ExtractionTool,
		Confidence: &confidence,
		Pages:      result.Pages,
	}, nil
}

func (a *Acquirer) direct(ctx context.Context, ref document.Reference, mediaType string, data []byte) *document.NormalizedText {
	text := &document.NormalizedText{
		Source: ref,
		Method: document.DirectRead,
	}

	if !DirectReadable(mediaType) {
		text.LowConfidence = true
		a.logger.WarnContext(ctx, "unrecognized media type, reading directly",
			"key", ref.Key, "media_type", mediaType)
	}

	text.Content = normalize(mediaType, decode(data))
	return text
}
