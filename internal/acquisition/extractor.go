package acquisition

import (
	"context"
	"slices"
	"strings"

	"github.com/JaimeStill/docintel/internal/document"
)

// Block is one unit of recognized text. Page numbers start at 1.
type Block struct {
	Page       int     `json:"page"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Extraction is the result of optical extraction. An extraction with no
// blocks is valid and represents blank pages.
type Extraction struct {
	Blocks     []Block `json:"blocks"`
	Pages      int     `json:"pages"`
	Confidence float64 `json:"confidence"`
}

// Extractor performs optical text extraction on paginated or image documents.
// Implementations return an error for failures, never an empty Extraction.
type Extractor interface {
	Extract(ctx context.Context, ref document.Reference, data []byte) (*Extraction, error)
}

// Text joins the blocks in page order.
func (e *Extraction) Text() string {
	blocks := slices.Clone(e.Blocks)
	slices.SortStableFunc(blocks, func(a, b Block) int {
		return a.Page - b.Page
	})

	lines := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if t := strings.TrimSpace(b.Text); t != "" {
			lines = append(lines, t)
		}
	}
	return strings.Join(lines, "\n")
}

// ExtractionRequired reports whether mediaType is routed to the extractor:
// PDFs and every image type.
func ExtractionRequired(mediaType string) bool {
	return mediaType == document.MediaPDF || document.IsImage(mediaType)
}

// DirectReadable reports whether mediaType is a recognized text format.
func DirectReadable(mediaType string) bool {
	if strings.HasPrefix(mediaType, "text/") {
		return true
	}
	switch mediaType {
	case document.MediaJSON, document.MediaXML, document.MediaRTF, "application/xhtml+xml":
		return true
	}
	return false
}
