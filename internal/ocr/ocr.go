// Package ocr extracts text from scanned PDFs and images with tesseract.
// PDFs are rasterized page by page before recognition.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/docintel/internal/acquisition"
	"github.com/JaimeStill/docintel/internal/document"
)

// ErrUnsupported is returned for media types the engine cannot recognize.
var ErrUnsupported = errors.New("unsupported media type for ocr")

var imageExt = map[string]string{
	document.MediaTIFF: ".tif",
	document.MediaPNG:  ".png",
	document.MediaJPEG: ".jpg",
	document.MediaGIF:  ".gif",
	document.MediaBMP:  ".bmp",
	document.MediaWebP: ".webp",
}

// Engine implements acquisition.Extractor on top of tesseract.
type Engine struct {
	cfg    Config
	runner Runner
	raster Rasterizer
	logger *slog.Logger
}

// Option customizes an Engine.
type Option func(*Engine)

// WithRunner replaces the command runner.
func WithRunner(r Runner) Option {
	return func(e *Engine) { e.runner = r }
}

// WithRasterizer replaces the PDF rasterizer.
func WithRasterizer(r Rasterizer) Option {
	return func(e *Engine) { e.raster = r }
}

// New creates an Engine. cfg must be finalized.
func New(cfg *Config, logger *slog.Logger, opts ...Option) *Engine {
	logger = logger.With("system", "ocr")
	e := &Engine{
		cfg:    *cfg,
		runner: execRunner{logger: logger},
		raster: newPDFRasterizer(cfg),
		logger: logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract recognizes the text of a PDF or image. Pages with no recognized
// words produce no blocks.
func (e *Engine) Extract(ctx context.Context, ref document.Reference, data []byte) (*acquisition.Extraction, error) {
	mediaType := document.DetectMediaType(ref.Key, ref.MediaType)

	dir, err := os.MkdirTemp("", "docintel-ocr-*")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			e.logger.Warn("work dir not removed", "dir", dir, "error", err)
		}
	}()

	var images []string
	paged := false

	switch {
	case mediaType == document.MediaPDF:
		images, err = e.raster.Rasterize(ctx, data, dir)
		if err != nil {
			return nil, fmt.Errorf("rasterize %s: %w", ref.Key, err)
		}
		paged = true
	case document.IsImage(mediaType):
		path := filepath.Join(dir, "source"+imageExt[mediaType])
		if err := os.WriteFile(path, data, 0o600); err != nil {
			return nil, fmt.Errorf("write image: %w", err)
		}
		images = []string{path}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, mediaType)
	}

	outputs := make([][]byte, len(images))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(min(e.cfg.Workers, len(images)), 1))

	for i, img := range images {
		g.Go(func() error {
			out, err := e.recognize(gctx, img)
			if err != nil {
				return fmt.Errorf("page %d: %w", i+1, err)
			}
			outputs[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var rec recognition
	for i, out := range outputs {
		page := 0
		if paged {
			page = i + 1
		}
		rec.parseTSV(out, page)
	}

	pages := rec.pages
	if paged {
		pages = len(images)
	}
	pages = max(pages, 1)

	e.logger.DebugContext(ctx, "ocr complete",
		"key", ref.Key,
		"media_type", mediaType,
		"pages", pages,
		"blocks", len(rec.blocks),
		"confidence", rec.confidence(),
	)

	return &acquisition.Extraction{
		Blocks:     rec.blocks,
		Pages:      pages,
		Confidence: rec.confidence(),
	}, nil
}

func (e *Engine) recognize(ctx context.Context, path string) ([]byte, error) {
	if d := e.cfg.TimeoutDuration(); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	args := []string{path, "stdout", "-l", e.cfg.Language, "--psm", strconv.Itoa(e.cfg.PSM)}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	args = append(args, "tsv")

	out, stderr, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return nil, fmt.Errorf("tesseract: %w: %s", err, truncate(string(stderr), 512))
	}
	return out, nil
}
