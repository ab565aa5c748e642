package prompts

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/JaimeStill/docintel/internal/taxonomy"
)

// Source resolves the effective instructions for a stage. A non-empty label
// selects a label-scoped override when one exists.
type Source interface {
	Resolve(ctx context.Context, stage Stage, label taxonomy.Label) (string, error)
}

// FileOverrides holds instruction overrides loaded from a YAML file:
//
//	stages:
//	  classify:
//	    instructions: |
//	      ...
//	  extract:
//	    instructions: |
//	      ...
//	    labels:
//	      KYC_DOC: |
//	        ...
type FileOverrides struct {
	Stages map[Stage]StageOverride `yaml:"stages"`
}

// StageOverride is the file override for one stage.
type StageOverride struct {
	Instructions string                    `yaml:"instructions"`
	Labels       map[taxonomy.Label]string `yaml:"labels"`
}

// LoadFile reads and validates a YAML override file. An empty path yields
// an empty set of overrides.
func LoadFile(path string) (*FileOverrides, error) {
	if path == "" {
		return &FileOverrides{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompt overrides: %w", err)
	}

	var f FileOverrides
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse prompt overrides %s: %w", path, err)
	}

	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("prompt overrides %s: %w", path, err)
	}
	return &f, nil
}

// Lookup returns the file override for stage, preferring the label-scoped
// entry over the stage-wide one.
func (f *FileOverrides) Lookup(stage Stage, label taxonomy.Label) (string, bool) {
	if f == nil {
		return "", false
	}
	o, ok := f.Stages[stage]
	if !ok {
		return "", false
	}
	if label != "" {
		if text, ok := o.Labels[label]; ok && text != "" {
			return text, true
		}
	}
	if o.Instructions != "" {
		return o.Instructions, true
	}
	return "", false
}

// Resolve implements Source over the file overrides and the hardcoded defaults.
func (f *FileOverrides) Resolve(_ context.Context, stage Stage, label taxonomy.Label) (string, error) {
	if _, err := ParseStage(string(stage)); err != nil {
		return "", err
	}
	if text, ok := f.Lookup(stage, label); ok {
		return text, nil
	}
	return Instructions(stage)
}

func (f *FileOverrides) validate() error {
	for stage, o := range f.Stages {
		if _, err := ParseStage(string(stage)); err != nil {
			return fmt.Errorf("%w: %q", err, stage)
		}
		for label := range o.Labels {
			if !stage.LabelScoped() || !label.Valid() {
				return fmt.Errorf("%w: %s/%s", ErrInvalidLabel, stage, label)
			}
		}
	}
	return nil
}
