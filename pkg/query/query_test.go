package query_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/JaimeStill/docintel/pkg/query"
)

func runsTable() *query.Table {
	return query.NewTable("public", "runs", "r").
		Map("id", "ID").
		Map("state", "State").
		Map("object_key", "ObjectKey").
		Map("label", "Label").
		Map("started_at", "StartedAt")
}

const selectRuns = "SELECT r.id, r.state, r.object_key, r.label, r.started_at"

func TestBuildPagePostgres(t *testing.T) {
	search := "memo"
	sql, args := query.NewBuilder(runsTable(), query.SortField{Field: "StartedAt", Descending: true}).
		WhereEquals("State", "failed").
		WhereSearch(&search, "ObjectKey", "Label").
		BuildPage(2, 10)

	assert.Equal(t,
		selectRuns+" FROM public.runs r"+
			" WHERE r.state = $1 AND (r.object_key ILIKE $2 OR r.label ILIKE $3)"+
			" ORDER BY r.started_at DESC LIMIT 10 OFFSET 10",
		sql)
	assert.Equal(t, []any{"failed", "%memo%", "%memo%"}, args)
}

func TestBuildPageSQLite(t *testing.T) {
	search := "memo"
	sql, args := query.NewBuilder(runsTable()).
		WhereContains("ObjectKey", &search).
		WhereEquals("Label", "contract").
		WithDialect(query.SQLite).
		BuildPage(1, 5)

	assert.Equal(t,
		selectRuns+" FROM runs r WHERE r.object_key LIKE ? AND r.label = ? LIMIT 5 OFFSET 0",
		sql)
	assert.Equal(t, []any{"%memo%", "contract"}, args)
}

func TestBuildCountSkipsAbsentFilters(t *testing.T) {
	var state *string
	empty := ""
	sql, args := query.NewBuilder(runsTable()).
		WhereEquals("State", state).
		WhereContains("Label", nil).
		WhereSearch(&empty, "ObjectKey").
		BuildCount()

	assert.Equal(t, "SELECT COUNT(*) FROM public.runs r", sql)
	assert.Empty(t, args)
}

func TestBuildSingle(t *testing.T) {
	sql, args := query.NewBuilder(runsTable()).
		WhereEquals("State", "failed").
		WithDialect(query.SQLite).
		BuildSingle("ID", "abc")

	assert.Equal(t, selectRuns+" FROM runs r WHERE r.id = ?", sql)
	assert.Equal(t, []any{"abc"}, args)
}

func TestOrderByFields(t *testing.T) {
	def := query.SortField{Field: "StartedAt", Descending: true}

	t.Run("mapped fields replace default", func(t *testing.T) {
		sql, _ := query.NewBuilder(runsTable(), def).
			OrderByFields(query.ParseSortFields("Label,-ObjectKey")).
			Build()
		assert.Contains(t, sql, " ORDER BY r.label ASC, r.object_key DESC")
	})

	t.Run("unmapped fields are dropped", func(t *testing.T) {
		sql, _ := query.NewBuilder(runsTable(), def).
			OrderByFields(query.ParseSortFields("label; DROP TABLE runs,Label")).
			Build()
		assert.Contains(t, sql, " ORDER BY r.label ASC")
		assert.NotContains(t, sql, "DROP")
	})

	t.Run("nothing usable falls back to default", func(t *testing.T) {
		sql, _ := query.NewBuilder(runsTable(), def).
			OrderByFields([]query.SortField{{Field: "Missing"}}).
			Build()
		assert.Contains(t, sql, " ORDER BY r.started_at DESC")
	})
}

func TestParseSortFields(t *testing.T) {
	fields := query.ParseSortFields("Label, -StartedAt,,")
	assert.Equal(t, []query.SortField{
		{Field: "Label"},
		{Field: "StartedAt", Descending: true},
	}, fields)
	assert.Nil(t, query.ParseSortFields(""))
}

func TestDialect(t *testing.T) {
	assert.Equal(t, query.SQLite, query.DialectFor("sqlite"))
	assert.Equal(t, query.Postgres, query.DialectFor("pgx"))
	assert.Equal(t, "$3", query.Postgres.Placeholder(3))
	assert.Equal(t, "?", query.SQLite.Placeholder(3))
	assert.Equal(t, "public.runs", runsTable().Name(query.Postgres))
	assert.Equal(t, "runs", runsTable().Name(query.SQLite))
}
