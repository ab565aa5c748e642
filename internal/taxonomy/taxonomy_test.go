package taxonomy_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/docintel/internal/taxonomy"
)

func TestLabelsClosedSet(t *testing.T) {
	labels := taxonomy.Labels()
	require.Len(t, labels, 9)
	assert.Equal(t, taxonomy.Unknown, labels[len(labels)-1])

	assignable := taxonomy.Assignable()
	assert.Len(t, assignable, 8)
	assert.NotContains(t, assignable, taxonomy.Unknown)

	for _, l := range labels {
		assert.True(t, l.Valid(), l)
		assert.NotEmpty(t, l.Description(), l)
	}
}

func TestIntent(t *testing.T) {
	assert.Equal(t, "Client onboarding and identity verification", taxonomy.KYCDoc.Intent())
	assert.Equal(t, "Account and portfolio reporting", taxonomy.AccountStatement.Intent())
	assert.Equal(t, "Document understanding and insight extraction", taxonomy.Unknown.Intent())
}

func TestParse(t *testing.T) {
	l, err := taxonomy.Parse("SUMMARY_MEMO")
	require.NoError(t, err)
	assert.Equal(t, taxonomy.SummaryMemo, l)

	_, err = taxonomy.Parse("summary_memo")
	assert.ErrorIs(t, err, taxonomy.ErrInvalidLabel)

	_, err = taxonomy.Parse("SUITABILITY_DOC")
	assert.ErrorIs(t, err, taxonomy.ErrInvalidLabel)
}

func TestLabelUnmarshalJSON(t *testing.T) {
	var v struct {
		Label taxonomy.Label `json:"label"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{"label":"DATA_JSON"}`), &v))
	assert.Equal(t, taxonomy.DataJSON, v.Label)

	err := json.Unmarshal([]byte(`{"label":"INVOICE"}`), &v)
	assert.ErrorIs(t, err, taxonomy.ErrInvalidLabel)
}
