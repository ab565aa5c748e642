package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/JaimeStill/document-context/pkg/config"
	pdfdoc "github.com/JaimeStill/document-context/pkg/document"
	"github.com/JaimeStill/document-context/pkg/image"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"golang.org/x/sync/errgroup"
)

// ErrTooManyPages is returned when a PDF exceeds the configured page limit.
var ErrTooManyPages = errors.New("pdf exceeds page limit")

// Rasterizer renders PDF pages to image files in dir and returns their
// paths in page order.
type Rasterizer interface {
	Rasterize(ctx context.Context, data []byte, dir string) ([]string, error)
}

// PageCount returns the number of pages in a PDF.
func PageCount(data []byte) (int, error) {
	n, err := api.PageCount(bytes.NewReader(data), nil)
	if err != nil {
		return 0, fmt.Errorf("read pdf: %w", err)
	}
	return n, nil
}

type pdfRasterizer struct {
	image    config.ImageConfig
	maxPages int
	workers  int
}

func newPDFRasterizer(cfg *Config) *pdfRasterizer {
	return &pdfRasterizer{
		image: config.ImageConfig{
			Format:  "png",
			DPI:     cfg.DPI,
			Options: map[string]any{"background": "white"},
		},
		maxPages: cfg.MaxPages,
		workers:  cfg.Workers,
	}
}

func (p *pdfRasterizer) Rasterize(ctx context.Context, data []byte, dir string) ([]string, error) {
	count, err := PageCount(data)
	if err != nil {
		return nil, err
	}
	if p.maxPages > 0 && count > p.maxPages {
		return nil, fmt.Errorf("%w: %d pages, limit %d", ErrTooManyPages, count, p.maxPages)
	}

	src := filepath.Join(dir, "source.pdf")
	if err := os.WriteFile(src, data, 0o600); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}

	doc, err := pdfdoc.OpenPDF(src)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	renderer, err := image.NewImageMagickRenderer(p.image)
	if err != nil {
		return nil, fmt.Errorf("create renderer: %w", err)
	}

	pages, err := doc.ExtractAllPages()
	if err != nil {
		return nil, fmt.Errorf("extract pages: %w", err)
	}

	paths := make([]string, len(pages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(min(p.workers, len(pages)), 1))

	for i, page := range pages {
		paths[i] = filepath.Join(dir, fmt.Sprintf("page-%04d.png", i+1))
		path := paths[i]

		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}

			img, err := page.ToImage(renderer, nil)
			if err != nil {
				return fmt.Errorf("render page %d: %w", i+1, err)
			}
			return os.WriteFile(path, img, 0o600)
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}
