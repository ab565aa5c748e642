package acquisition_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/docintel/internal/acquisition"
	"github.com/JaimeStill/docintel/internal/artifacts"
	"github.com/JaimeStill/docintel/internal/document"
	"github.com/JaimeStill/docintel/pkg/retry"
	"github.com/JaimeStill/docintel/pkg/storage"
)

type fakeExtractor struct {
	failures int
	calls    int
	result   *acquisition.Extraction
}

func (f *fakeExtractor) Extract(ctx context.Context, ref document.Reference, data []byte) (*acquisition.Extraction, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, context.DeadlineExceeded
	}
	if f.result != nil {
		return f.result, nil
	}
	return &acquisition.Extraction{
		Pages:      2,
		Confidence: 0.91,
		Blocks: []acquisition.Block{
			{Page: 2, Text: "Signature: Jane Doe"},
			{Page: 1, Text: "Suitability Form"},
		},
	}, nil
}

type fixture struct {
	store     storage.System
	extractor *fakeExtractor
	acquirer  *acquisition.Acquirer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	store, err := storage.NewFilesystem(t.TempDir(), "documents", logger)
	require.NoError(t, err)

	policy := retry.Policy{MaxAttempts: 3, Timeout: time.Second, InitialBackoff: time.Millisecond}
	extractor := &fakeExtractor{}
	writer := artifacts.NewWriter(store, policy, false, logger)

	return &fixture{
		store:     store,
		extractor: extractor,
		acquirer:  acquisition.New(store, extractor, writer, acquisition.Options{Policy: policy}, logger),
	}
}

func (f *fixture) put(t *testing.T, key string, data []byte) document.Reference {
	t.Helper()
	require.NoError(t, f.store.Upload(context.Background(), key, strings.NewReader(string(data)), ""))
	return document.Reference{Bucket: "documents", Key: key, Size: int64(len(data))}
}

func (f *fixture) artifact(t *testing.T, key string) string {
	t.Helper()
	rc, err := f.store.Download(context.Background(), key)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}

func TestExtractionFormatsUseExtractor(t *testing.T) {
	for _, key := range []string{"intake/form.pdf", "intake/scan.tiff", "intake/photo.png", "intake/photo.JPG", "intake/scan.gif", "intake/scan.webp", "intake/scan.bmp"} {
		t.Run(key, func(t *testing.T) {
			f := newFixture(t)
			ref := f.put(t, key, []byte("%binary%"))

			text, err := f.acquirer.Acquire(context.Background(), ref)
			require.NoError(t, err)

			assert.Equal(t, 1, f.extractor.calls)
			assert.Equal(t, document.ExtractionTool, text.Method)
			assert.Equal(t, "Suitability Form\nSignature: Jane Doe", text.Content)
			require.NotNil(t, text.Confidence)
			assert.InDelta(t, 0.91, *text.Confidence, 1e-9)
			assert.Equal(t, 2, text.Pages)
		})
	}
}

func TestExtractionRequired(t *testing.T) {
	for _, mt := range []string{"application/pdf", "image/tiff", "image/png", "image/jpeg", "image/gif", "image/webp", "image/bmp", "image/heic"} {
		assert.True(t, acquisition.ExtractionRequired(mt), mt)
	}
	for _, mt := range []string{"text/plain", "application/json", "application/octet-stream", ""} {
		assert.False(t, acquisition.ExtractionRequired(mt), mt)
	}
}

func TestTextFormatsReadDirectly(t *testing.T) {
	tests := []struct {
		key     string
		content string
		want    string
	}{
		{"intake/memo.txt", "Client Jane Doe, advisor John Smith, reviewed 2024-01-01", "Client Jane Doe, advisor John Smith, reviewed 2024-01-01"},
		{"intake/page.html", "<html><head><title>x</title></head><body><p>Risk &amp; return</p><script>var a;</script></body></html>", "Risk & return"},
		{"intake/data.json", `{"accounts":[1,2]}`, "{\n  \"accounts\": [\n    1,\n    2\n  ]\n}"},
		{"intake/feed.xml", `<?xml version="1.0"?><root><client>Jane</client><advisor>John</advisor></root>`, "Jane\nJohn"},
		{"intake/letter.rtf", `{\rtf1\ansi{\fonttbl\f0 Arial;}\f0 Dear client,\par Fees apply.}`, "Dear client,\nFees apply."},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			f := newFixture(t)
			ref := f.put(t, tt.key, []byte(tt.content))

			text, err := f.acquirer.Acquire(context.Background(), ref)
			require.NoError(t, err)

			assert.Zero(t, f.extractor.calls, "direct-read formats never invoke the extractor")
			assert.Equal(t, document.DirectRead, text.Method)
			assert.False(t, text.LowConfidence)
			assert.Nil(t, text.Confidence)
			assert.Equal(t, tt.want, text.Content)
		})
	}
}

func TestDeclaredTypeWinsOverExtension(t *testing.T) {
	f := newFixture(t)
	ref := f.put(t, "intake/notes.pdf", []byte("plain words"))
	ref.MediaType = "text/plain; charset=utf-8"

	text, err := f.acquirer.Acquire(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, document.DirectRead, text.Method)
	assert.Zero(t, f.extractor.calls)
}

func TestUnknownTypeFallsBackToDirectRead(t *testing.T) {
	f := newFixture(t)
	ref := f.put(t, "intake/unknown.xyz", []byte("mystery content"))

	text, err := f.acquirer.Acquire(context.Background(), ref)
	require.NoError(t, err)

	assert.Equal(t, document.DirectRead, text.Method)
	assert.True(t, text.LowConfidence)
	assert.Equal(t, "mystery content", text.Content)
	assert.Zero(t, f.extractor.calls)
}

func TestLatin1Fallback(t *testing.T) {
	f := newFixture(t)
	ref := f.put(t, "intake/legacy.txt", []byte{'c', 'a', 'f', 0xE9})

	text, err := f.acquirer.Acquire(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, "café", text.Content)
}

func TestTextArtifactWrittenForBothPaths(t *testing.T) {
	f := newFixture(t)

	direct := f.put(t, "intake/memo.txt", []byte("hello"))
	text, err := f.acquirer.Acquire(context.Background(), direct)
	require.NoError(t, err)
	assert.Equal(t, "textract-output/memo.txt.txt", text.ArtifactKey)
	assert.Equal(t, "hello", f.artifact(t, text.ArtifactKey))

	scanned := f.put(t, "intake/form.pdf", []byte("%PDF"))
	text, err = f.acquirer.Acquire(context.Background(), scanned)
	require.NoError(t, err)
	assert.Equal(t, "textract-output/form.pdf.txt", text.ArtifactKey)
	assert.Equal(t, "Suitability Form\nSignature: Jane Doe", f.artifact(t, text.ArtifactKey))
}

func TestExtractionRetriedWithinBound(t *testing.T) {
	f := newFixture(t)
	f.extractor.failures = 2
	ref := f.put(t, "intake/form.pdf", []byte("%PDF"))

	text, err := f.acquirer.Acquire(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, 3, f.extractor.calls)
	assert.Equal(t, document.ExtractionTool, text.Method)
}

func TestExtractionExhaustionEscalates(t *testing.T) {
	f := newFixture(t)
	f.extractor.failures = 10
	ref := f.put(t, "intake/form.pdf", []byte("%PDF"))

	_, err := f.acquirer.Acquire(context.Background(), ref)
	assert.ErrorIs(t, err, acquisition.ErrAcquisition)
	assert.ErrorIs(t, err, acquisition.ErrExtraction)
	assert.ErrorIs(t, err, retry.ErrExhausted)
	assert.Equal(t, 3, f.extractor.calls)

	exists, err := f.store.Exists(context.Background(), ref.TextKey())
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestEmptyExtractionIsValid(t *testing.T) {
	f := newFixture(t)
	f.extractor.result = &acquisition.Extraction{Pages: 1}
	ref := f.put(t, "intake/blank.png", []byte("png"))

	text, err := f.acquirer.Acquire(context.Background(), ref)
	require.NoError(t, err)
	assert.Empty(t, text.Content)
	assert.Equal(t, 1, f.extractor.calls)
}

func TestMissingObjectIsNotRetried(t *testing.T) {
	f := newFixture(t)
	ref := document.Reference{Bucket: "documents", Key: "intake/missing.pdf"}

	_, err := f.acquirer.Acquire(context.Background(), ref)
	assert.ErrorIs(t, err, acquisition.ErrAcquisition)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.False(t, errors.Is(err, acquisition.ErrExtraction))
	assert.Zero(t, f.extractor.calls)
}

func TestExistingArtifactFailsPersistence(t *testing.T) {
	f := newFixture(t)
	ref := f.put(t, "intake/memo.txt", []byte("hello"))
	require.NoError(t, f.store.Upload(context.Background(), ref.TextKey(), strings.NewReader("old"), "text/plain"))

	_, err := f.acquirer.Acquire(context.Background(), ref)
	assert.ErrorIs(t, err, artifacts.ErrPersistence)
	assert.Equal(t, "old", f.artifact(t, ref.TextKey()))
}
