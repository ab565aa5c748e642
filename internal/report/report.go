// Package report renders the intelligence report for a classified and
// extracted document as a self-contained HTML page.
package report

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"strings"

	"github.com/JaimeStill/docintel/internal/classify"
	"github.com/JaimeStill/docintel/internal/fields"
	"github.com/JaimeStill/docintel/internal/taxonomy"
)

// ErrRender marks input that violates the renderer's contract.
var ErrRender = errors.New("report render failed")

// Sections lists the report headings in render order.
var Sections = []string{
	"Overview",
	"Detected Category",
	"Key Insights",
	"Action Items",
	"Automated Outcome",
}

const defaultOverview = "The system processed this document and generated structured insights."

//go:embed templates/*.html
var templateFS embed.FS

var tmpl = template.Must(
	template.New("base").
		Funcs(template.FuncMap{
			"percent":  percent,
			"title":    fieldTitle,
			"join":     func(items []string) string { return strings.Join(items, ", ") },
			"notFound": func(v string) bool { return v == fields.NotFound },
		}).
		ParseFS(templateFS, "templates/*.html"),
)

// Report is the rendered intelligence report and the data it was built from.
type Report struct {
	Source         string          `json:"source,omitempty"`
	Overview       string          `json:"overview"`
	Intent         string          `json:"intent"`
	Classification classify.Result `json:"classification"`
	Fields         []fields.Field  `json:"fields"`
	Insights       []string        `json:"insights"`
	ActionItems    []string        `json:"action_items"`
	Questions      []string        `json:"questions"`
	Themes         []string        `json:"themes"`
	Entities       fields.Entities `json:"key_entities"`
	Outcome        string          `json:"outcome"`
	HTML           []byte          `json:"-"`
}

// Option adjusts a render.
type Option func(*Report)

// WithSource names the source document in the report title.
func WithSource(name string) Option {
	return func(r *Report) { r.Source = name }
}

// Render builds the report. It performs no I/O and produces identical bytes
// for identical inputs.
func Render(
	cls classify.Result,
	extracted fields.ExtractedFields,
	narrative fields.Narrative,
	opts ...Option,
) (*Report, error) {
	if err := validate(cls, extracted); err != nil {
		return nil, err
	}

	r := &Report{
		Overview:       strings.TrimSpace(narrative.Summary),
		Intent:         cls.Label.Intent(),
		Classification: cls,
		Fields:         extracted.Ordered(),
		Insights:       narrative.Insights,
		ActionItems:    narrative.ActionItems,
		Questions:      narrative.Questions,
		Themes:         narrative.Themes,
		Entities:       narrative.Entities,
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.Overview == "" {
		r.Overview = defaultOverview
	}
	if len(r.Insights) == 0 {
		r.Insights = []string{r.Overview}
	}
	r.Outcome = outcome(cls, r.Fields)

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "report", r); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRender, err)
	}
	r.HTML = buf.Bytes()
	return r, nil
}

func validate(cls classify.Result, extracted fields.ExtractedFields) error {
	if !cls.Label.Valid() {
		return fmt.Errorf("%w: label %q is not a taxonomy member", ErrRender, cls.Label)
	}
	if cls.Confidence < 0 || cls.Confidence > 1 {
		return fmt.Errorf("%w: confidence %v outside [0,1]", ErrRender, cls.Confidence)
	}
	if extracted.Label != cls.Label {
		return fmt.Errorf("%w: fields label %q does not match classification %q",
			ErrRender, extracted.Label, cls.Label)
	}
	if missing := extracted.Missing(); len(missing) > 0 {
		return fmt.Errorf("%w: fields missing schema keys %s", ErrRender, strings.Join(missing, ", "))
	}
	return nil
}

func outcome(cls classify.Result, fs []fields.Field) string {
	found := 0
	for _, f := range fs {
		if f.Value != fields.NotFound {
			found++
		}
	}

	category := string(cls.Label)
	if cls.Label == taxonomy.Unknown {
		category = "UNKNOWN (no taxonomy match)"
	}

	return fmt.Sprintf(
		"The document was ingested, classified as %s with %s confidence, and "+
			"%d of %d expected fields were extracted without manual intervention.",
		category, percent(cls.Confidence), found, len(fs),
	)
}

func percent(v float64) string {
	return fmt.Sprintf("%.0f%%", v*100)
}

// fieldTitle turns a schema key into a heading: "date_of_birth" becomes
// "Date of birth".
func fieldTitle(key string) string {
	s := strings.ReplaceAll(key, "_", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
