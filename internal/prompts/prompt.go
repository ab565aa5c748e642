// Package prompts implements the prompt override domain. It provides the
// default instructions and response specifications for each reasoning stage,
// stored and file-based overrides, and HTTP handlers for managing stored
// overrides.
package prompts

import (
	"strings"

	"github.com/google/uuid"

	"github.com/JaimeStill/docintel/internal/taxonomy"
)

// Prompt represents a named instruction override for a reasoning stage.
// Extract overrides may be scoped to a single taxonomy label.
type Prompt struct {
	ID           uuid.UUID       `json:"id"`
	Name         string          `json:"name"`
	Stage        Stage           `json:"stage"`
	Label        *taxonomy.Label `json:"label"`
	Instructions string          `json:"instructions"`
	Description  *string         `json:"description"`
	Active       bool            `json:"active"`
}

// CreateCommand carries the data needed to create a new prompt override.
type CreateCommand struct {
	Name         string          `json:"name"`
	Stage        Stage           `json:"stage"`
	Label        *taxonomy.Label `json:"label"`
	Instructions string          `json:"instructions"`
	Description  *string         `json:"description"`
}

// UpdateCommand carries the data needed to update an existing prompt override.
type UpdateCommand struct {
	Name         string          `json:"name"`
	Stage        Stage           `json:"stage"`
	Label        *taxonomy.Label `json:"label"`
	Instructions string          `json:"instructions"`
	Description  *string         `json:"description"`
}

func validate(name string, stage Stage, label *taxonomy.Label, instructions string) error {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(instructions) == "" {
		return ErrEmpty
	}
	if _, err := ParseStage(string(stage)); err != nil {
		return err
	}
	if label != nil && (!stage.LabelScoped() || !label.Valid()) {
		return ErrInvalidLabel
	}
	return nil
}
