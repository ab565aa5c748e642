package prompts

import (
	"net/url"
	"strconv"

	"github.com/JaimeStill/docintel/internal/taxonomy"
	"github.com/JaimeStill/docintel/pkg/pagination"
	"github.com/JaimeStill/docintel/pkg/query"
	"github.com/JaimeStill/docintel/pkg/repository"
)

const columns = "id, name, stage, label, instructions, description, active"

var promptsTable = query.
	NewTable("public", "prompts", "p").
	Map("id", "ID").
	Map("name", "Name").
	Map("stage", "Stage").
	Map("label", "Label").
	Map("instructions", "Instructions").
	Map("description", "Description").
	Map("active", "Active")

var defaultSort = query.SortField{
	Field: "Name",
}

// Filters contains optional filtering criteria for prompt queries.
// Nil fields are ignored. Stage, Label and Active use exact matching.
// Name uses case-insensitive contains matching.
type Filters struct {
	Stage  *Stage          `json:"stage,omitempty"`
	Label  *taxonomy.Label `json:"label,omitempty"`
	Name   *string         `json:"name,omitempty"`
	Active *bool           `json:"active,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("Stage", f.Stage).
		WhereEquals("Label", f.Label).
		WhereContains("Name", f.Name).
		WhereEquals("Active", f.Active)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	f := Filters{
		Stage: pagination.Filter[Stage](values, "stage"),
		Label: pagination.Filter[taxonomy.Label](values, "label"),
		Name:  pagination.Filter[string](values, "name"),
	}
	if v, err := strconv.ParseBool(values.Get("active")); err == nil {
		f.Active = &v
	}
	return f
}

func scanPrompt(s repository.Scanner) (Prompt, error) {
	var p Prompt
	err := s.Scan(
		&p.ID,
		&p.Name,
		&p.Stage,
		&p.Label,
		&p.Instructions,
		&p.Description,
		&p.Active,
	)
	return p, err
}

func labelArg(l *taxonomy.Label) any {
	if l == nil {
		return nil
	}
	return string(*l)
}
