// Package query renders parameterized SELECT statements over a mapped
// table for the Postgres and SQLite dialects.
package query

import "strings"

// Table maps API field names onto the columns of one aliased table.
// Selected columns keep the order they were mapped in, which is the order
// row scanners expect.
type Table struct {
	schema string
	name   string
	alias  string

	fields  map[string]string
	columns []string
}

// NewTable describes schema.name referenced as alias.
func NewTable(schema, name, alias string) *Table {
	return &Table{
		schema: schema,
		name:   name,
		alias:  alias,
		fields: map[string]string{},
	}
}

// Map exposes column as field.
func (t *Table) Map(column, field string) *Table {
	qualified := t.alias + "." + column
	t.fields[field] = qualified
	t.columns = append(t.columns, qualified)
	return t
}

// Resolve returns the qualified column for field.
func (t *Table) Resolve(field string) (string, bool) {
	col, ok := t.fields[field]
	return col, ok
}

// Name returns the table name, schema-qualified where the dialect has
// schemas.
func (t *Table) Name(d Dialect) string {
	if d == SQLite || t.schema == "" {
		return t.name
	}
	return t.schema + "." + t.name
}

func (t *Table) ref(d Dialect) string {
	return t.Name(d) + " " + t.alias
}

func (t *Table) selectList() string {
	return strings.Join(t.columns, ", ")
}

// column resolves a field named by calling code. Unmapped names pass
// through so raw columns can still be filtered.
func (t *Table) column(field string) string {
	if col, ok := t.fields[field]; ok {
		return col
	}
	return field
}
