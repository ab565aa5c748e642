package pagination_test

import (
	"encoding/json"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/docintel/pkg/pagination"
	"github.com/JaimeStill/docintel/pkg/query"
)

var cfg = pagination.Config{DefaultPageSize: 20, MaxPageSize: 100}

func TestPageRequestFromQuery(t *testing.T) {
	values := url.Values{
		"page":      {"3"},
		"page_size": {"500"},
		"search":    {"kyc"},
		"sort":      {"-StartedAt"},
	}

	req, err := pagination.PageRequestFromQuery(values, cfg)
	require.NoError(t, err)

	assert.Equal(t, 3, req.Page)
	assert.Equal(t, 100, req.PageSize)
	require.NotNil(t, req.Search)
	assert.Equal(t, "kyc", *req.Search)
	assert.Equal(t, pagination.SortFields{{Field: "StartedAt", Descending: true}}, req.Sort)
	assert.Equal(t, 200, req.Offset())
}

func TestPageRequestDefaults(t *testing.T) {
	req, err := pagination.PageRequestFromQuery(url.Values{}, cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, req.Page)
	assert.Equal(t, 20, req.PageSize)
	assert.Nil(t, req.Search)
}

func TestPageRequestInvalid(t *testing.T) {
	for _, values := range []url.Values{
		{"page": {"two"}},
		{"page_size": {"1.5"}},
	} {
		_, err := pagination.PageRequestFromQuery(values, cfg)
		assert.ErrorIs(t, err, pagination.ErrInvalidPage, "values %v", values)
	}
}

func TestNormalizeEmptySearch(t *testing.T) {
	empty := ""
	req := pagination.PageRequest{Page: -3, PageSize: 0, Search: &empty}
	req.Normalize(cfg)

	assert.Equal(t, 1, req.Page)
	assert.Equal(t, 20, req.PageSize)
	assert.Nil(t, req.Search)
}

func TestSortFieldsUnmarshal(t *testing.T) {
	var fromString pagination.SortFields
	require.NoError(t, json.Unmarshal([]byte(`"Label,-StartedAt"`), &fromString))

	var fromArray pagination.SortFields
	require.NoError(t, json.Unmarshal([]byte(`[{"Field":"Label"},{"Field":"StartedAt","Descending":true}]`), &fromArray))

	want := pagination.SortFields{{Field: "Label"}, query.SortField{Field: "StartedAt", Descending: true}}
	assert.Equal(t, want, fromString)
	assert.Equal(t, want, fromArray)
}

func TestNewPageResult(t *testing.T) {
	result := pagination.NewPageResult[string](nil, 41, 1, 20)
	assert.Equal(t, 3, result.TotalPages)
	assert.True(t, result.HasNext)
	assert.NotNil(t, result.Data)

	last := pagination.NewPageResult([]string{"a"}, 41, 3, 20)
	assert.False(t, last.HasNext)

	empty := pagination.NewPageResult([]int{}, 0, 1, 20)
	assert.Equal(t, 1, empty.TotalPages)
	assert.False(t, empty.HasNext)
}

func TestConfigFinalize(t *testing.T) {
	c := &pagination.Config{DefaultPageSize: 200, MaxPageSize: 50}
	assert.Error(t, c.Finalize(nil))

	c = &pagination.Config{}
	require.NoError(t, c.Finalize(nil))
	assert.Equal(t, 20, c.DefaultPageSize)
	assert.Equal(t, 100, c.MaxPageSize)
}

func TestFilter(t *testing.T) {
	type state string
	values := url.Values{"state": {"Failed"}, "label": {""}}

	got := pagination.Filter[state](values, "state")
	require.NotNil(t, got)
	assert.Equal(t, state("Failed"), *got)
	assert.Nil(t, pagination.Filter[string](values, "label"))
	assert.Nil(t, pagination.Filter[string](values, "missing"))
}
