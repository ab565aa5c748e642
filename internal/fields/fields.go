// Package fields extracts the label-specific field set and the narrative
// summary of a classified document.
package fields

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/JaimeStill/docintel/internal/taxonomy"
)

// ExtractedFields holds one value for every key of the label's schema, in
// schema order.
type ExtractedFields struct {
	Label  taxonomy.Label    `json:"label"`
	Keys   []string          `json:"keys"`
	Values map[string]string `json:"values"`
}

// Field is a single key and value.
type Field struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Entities are the people, accounts and securities named in a document.
type Entities struct {
	Clients  []string `json:"clients"`
	Advisors []string `json:"advisors"`
	Accounts []string `json:"accounts"`
	Tickers  []string `json:"tickers"`
}

// Empty reports whether no entities were found.
func (e Entities) Empty() bool {
	return len(e.Clients)+len(e.Advisors)+len(e.Accounts)+len(e.Tickers) == 0
}

// Narrative is the free-text understanding of a document.
type Narrative struct {
	Summary     string   `json:"summary"`
	Insights    []string `json:"insights"`
	ActionItems []string `json:"action_items"`
	Questions   []string `json:"questions"`
	Themes      []string `json:"themes"`
	Entities    Entities `json:"key_entities"`
}

// Extraction is the FieldExtractor output.
type Extraction struct {
	Fields    ExtractedFields `json:"fields"`
	Narrative Narrative       `json:"narrative"`
}

// Complete builds the field set for label from raw values. Every schema key
// is present; missing, null and blank values become NotFound. Keys outside
// the schema are dropped.
func Complete(label taxonomy.Label, raw map[string]any) ExtractedFields {
	keys := Schema(label)
	values := make(map[string]string, len(keys))
	for _, k := range keys {
		v := Stringify(raw[k])
		if v == "" {
			v = NotFound
		}
		values[k] = v
	}
	return ExtractedFields{Label: label, Keys: keys, Values: values}
}

// Get returns the value for key, or NotFound.
func (f ExtractedFields) Get(key string) string {
	if v, ok := f.Values[key]; ok {
		return v
	}
	return NotFound
}

// Ordered returns the fields in schema order.
func (f ExtractedFields) Ordered() []Field {
	out := make([]Field, 0, len(f.Keys))
	for _, k := range f.Keys {
		out = append(out, Field{Key: k, Value: f.Get(k)})
	}
	return out
}

// Missing returns the schema keys of f.Label absent from f, in schema order.
func (f ExtractedFields) Missing() []string {
	var missing []string
	for _, k := range Schema(f.Label) {
		if _, ok := f.Values[k]; !ok || !slices.Contains(f.Keys, k) {
			missing = append(missing, k)
		}
	}
	return missing
}

// Stringify renders a decoded JSON value as field text. Lists are joined
// with "; ". Blank strings and empty lists yield "".
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := Stringify(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "; ")
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}
