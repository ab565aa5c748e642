package query

import (
	"reflect"
	"strconv"
	"strings"
)

// SortField is one ORDER BY term, named by its mapped field.
type SortField struct {
	Field      string
	Descending bool
}

// ParseSortFields reads a comma-separated list such as "Label,-StartedAt".
// A leading "-" sorts descending. Empty input yields nil.
func ParseSortFields(s string) []SortField {
	var fields []SortField
	for part := range strings.SplitSeq(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, desc := strings.CutPrefix(part, "-")
		fields = append(fields, SortField{Field: name, Descending: desc})
	}
	return fields
}

// binder numbers bind parameters as a statement is rendered.
type binder struct {
	dialect Dialect
	args    []any
}

func (b *binder) bind(v any) string {
	b.args = append(b.args, v)
	return b.dialect.Placeholder(len(b.args))
}

type predicate func(b *binder) string

// Builder accumulates filters and ordering for a Table. Nothing is
// rendered until a Build method runs, so the dialect may change at any
// point.
type Builder struct {
	table    *Table
	dialect  Dialect
	preds    []predicate
	sort     []SortField
	fallback []SortField
}

// NewBuilder starts a Postgres query over table ordered by defaultSort
// unless OrderByFields supplies usable fields.
func NewBuilder(table *Table, defaultSort ...SortField) *Builder {
	return &Builder{
		table:    table,
		dialect:  Postgres,
		fallback: defaultSort,
	}
}

// WithDialect selects the SQL dialect.
func (b *Builder) WithDialect(d Dialect) *Builder {
	b.dialect = d
	return b
}

// WhereEquals matches field exactly. Nil values, including typed nil
// pointers, add nothing.
func (b *Builder) WhereEquals(field string, value any) *Builder {
	if absent(value) {
		return b
	}
	col := b.table.column(field)
	b.preds = append(b.preds, func(p *binder) string {
		return col + " = " + p.bind(value)
	})
	return b
}

// WhereContains matches field case-insensitively against a substring.
func (b *Builder) WhereContains(field string, value *string) *Builder {
	if value == nil || *value == "" {
		return b
	}
	return b.WhereSearch(value, field)
}

// WhereSearch matches when any of fields contains search.
func (b *Builder) WhereSearch(search *string, fields ...string) *Builder {
	if search == nil || *search == "" || len(fields) == 0 {
		return b
	}
	pattern := "%" + *search + "%"
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = b.table.column(f)
	}

	b.preds = append(b.preds, func(p *binder) string {
		terms := make([]string, len(cols))
		for i, col := range cols {
			terms[i] = col + " " + p.dialect.Like() + " " + p.bind(pattern)
		}
		if len(terms) == 1 {
			return terms[0]
		}
		return "(" + strings.Join(terms, " OR ") + ")"
	})
	return b
}

// OrderByFields replaces the default ordering. Fields the table does not
// map are dropped; if none remain the default ordering applies.
func (b *Builder) OrderByFields(fields []SortField) *Builder {
	b.sort = fields
	return b
}

// Build renders a SELECT of every mapped column.
func (b *Builder) Build() (string, []any) {
	var sb strings.Builder
	p := b.selectFrom(&sb)
	b.writeOrder(&sb)
	return sb.String(), p.args
}

// BuildCount renders a COUNT(*) over the filtered rows.
func (b *Builder) BuildCount() (string, []any) {
	var sb strings.Builder
	sb.WriteString("SELECT COUNT(*) FROM ")
	sb.WriteString(b.table.ref(b.dialect))
	p := &binder{dialect: b.dialect}
	b.writeWhere(&sb, p)
	return sb.String(), p.args
}

// BuildPage renders one 1-based page of the ordered rows.
func (b *Builder) BuildPage(page, pageSize int) (string, []any) {
	var sb strings.Builder
	p := b.selectFrom(&sb)
	b.writeOrder(&sb)
	sb.WriteString(" LIMIT ")
	sb.WriteString(strconv.Itoa(pageSize))
	sb.WriteString(" OFFSET ")
	sb.WriteString(strconv.Itoa(max(page-1, 0) * pageSize))
	return sb.String(), p.args
}

// BuildSingle renders a lookup of the row whose field equals id. Other
// filters are ignored.
func (b *Builder) BuildSingle(field string, id any) (string, []any) {
	p := &binder{dialect: b.dialect}
	sql := "SELECT " + b.table.selectList() +
		" FROM " + b.table.ref(b.dialect) +
		" WHERE " + b.table.column(field) + " = " + p.bind(id)
	return sql, p.args
}

func (b *Builder) selectFrom(sb *strings.Builder) *binder {
	sb.WriteString("SELECT ")
	sb.WriteString(b.table.selectList())
	sb.WriteString(" FROM ")
	sb.WriteString(b.table.ref(b.dialect))
	p := &binder{dialect: b.dialect}
	b.writeWhere(sb, p)
	return p
}

func (b *Builder) writeWhere(sb *strings.Builder, p *binder) {
	for i, pred := range b.preds {
		if i == 0 {
			sb.WriteString(" WHERE ")
		} else {
			sb.WriteString(" AND ")
		}
		sb.WriteString(pred(p))
	}
}

func (b *Builder) writeOrder(sb *strings.Builder) {
	terms := b.orderTerms(b.sort)
	if len(terms) == 0 {
		terms = b.orderTerms(b.fallback)
	}
	if len(terms) == 0 {
		return
	}
	sb.WriteString(" ORDER BY ")
	sb.WriteString(strings.Join(terms, ", "))
}

func (b *Builder) orderTerms(fields []SortField) []string {
	var terms []string
	for _, f := range fields {
		col, ok := b.table.Resolve(f.Field)
		if !ok {
			continue
		}
		if f.Descending {
			terms = append(terms, col+" DESC")
		} else {
			terms = append(terms, col+" ASC")
		}
	}
	return terms
}

func absent(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		return rv.IsNil()
	}
	return false
}
