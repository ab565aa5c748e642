package reasoning

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/JaimeStill/docintel/pkg/formatting"
)

// Schema is a compiled JSON Schema for a reasoning response.
type Schema struct {
	name   string
	schema *jsonschema.Schema
}

// CompileSchema compiles a schema document expressed as a map.
func CompileSchema(name string, doc map[string]any) (*Schema, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal schema %s: %w", name, err)
	}

	url := name + ".json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema %s: %w", name, err)
	}

	s, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return &Schema{name: name, schema: s}, nil
}

// MustCompileSchema is CompileSchema for package-level schemas.
func MustCompileSchema(name string, doc map[string]any) *Schema {
	s, err := CompileSchema(name, doc)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks a JSON document against the schema.
func (s *Schema) Validate(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if err := s.schema.Validate(v); err != nil {
		return fmt.Errorf("%w: response does not match %s schema: %w", ErrMalformed, s.name, err)
	}
	return nil
}

// Decode recovers the JSON object from model output, validates it against s
// when s is non-nil, and unmarshals it into T.
func Decode[T any](text string, s *Schema) (T, error) {
	var result T

	raw, err := formatting.ExtractJSON(text)
	if err != nil {
		return result, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	if s != nil {
		if err := s.Validate([]byte(raw)); err != nil {
			return result, err
		}
	}

	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return result, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return result, nil
}
