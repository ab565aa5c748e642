package prompts

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Stage names a reasoning call that prompt overrides can target.
type Stage string

const (
	StageClassify Stage = "classify"
	StageExtract  Stage = "extract"
)

var stages = []Stage{StageClassify, StageExtract}

// Stages returns every overridable stage in pipeline order.
func Stages() []Stage {
	return slices.Clone(stages)
}

// LabelScoped reports whether overrides for s may target a single label.
// Classification runs before a label exists, so only extraction qualifies.
func (s Stage) LabelScoped() bool {
	return s == StageExtract
}

func (s *Stage) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v, err := ParseStage(raw)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseStage returns ErrInvalidStage for anything other than a known stage.
func ParseStage(s string) (Stage, error) {
	if v := Stage(s); slices.Contains(stages, v) {
		return v, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStage, s)
}
