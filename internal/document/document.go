// Package document defines the input reference and normalized text that flow
// through a pipeline run, along with the storage layout for its artifacts.
package document

import (
	"fmt"
	"path"
	"strings"
)

// Storage prefixes within the pipeline container.
const (
	IntakePrefix = "intake/"
	TextPrefix   = "textract-output/"
	OutputPrefix = "outputs/"
)

// Method records how normalized text was obtained.
type Method string

const (
	DirectRead     Method = "direct-read"
	ExtractionTool Method = "extraction-tool"
)

// Reference identifies the input object for one run. It is not modified
// after the run starts.
type Reference struct {
	Bucket    string `json:"bucket"`
	Key       string `json:"key"`
	MediaType string `json:"media_type"`
	Size      int64  `json:"size"`
}

// Name returns the object's file name.
func (r Reference) Name() string {
	return path.Base(r.Key)
}

// Identity returns the key relative to the intake prefix. Artifact keys are
// built from it, so nested documents sharing a file name stay distinct.
func (r Reference) Identity() string {
	return strings.TrimPrefix(r.Key, IntakePrefix)
}

// Location returns the bucket-qualified object key.
func (r Reference) Location() string {
	return r.Bucket + "/" + r.Key
}

// TextKey returns the key of the normalized text artifact.
func (r Reference) TextKey() string {
	return TextPrefix + r.Identity() + ".txt"
}

// ReportKey returns the key of the rendered HTML report.
func (r Reference) ReportKey() string {
	return OutputPrefix + r.Identity() + ".html"
}

// ResultKey returns the key of the JSON run result.
func (r Reference) ResultKey() string {
	return OutputPrefix + r.Identity() + ".json"
}

// ValidateIntakeKey checks that key names an object directly or nested under
// the intake prefix.
func ValidateIntakeKey(key string) error {
	name, ok := strings.CutPrefix(key, IntakePrefix)
	if !ok {
		return fmt.Errorf("key %q is not under %s", key, IntakePrefix)
	}
	if name == "" || strings.HasSuffix(name, "/") {
		return fmt.Errorf("key %q does not name an object", key)
	}
	return nil
}

// NormalizedText is the plain-text content of a document. Downstream stages
// treat it as read-only.
type NormalizedText struct {
	Source        Reference `json:"source"`
	Content       string    `json:"content"`
	Method        Method    `json:"method"`
	Confidence    *float64  `json:"confidence,omitempty"`
	LowConfidence bool      `json:"low_confidence"`
	Pages         int       `json:"pages,omitempty"`
	ArtifactKey   string    `json:"artifact_key"`
}
