package search

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marquee/internal/models"
)

func TestBuildSearchQueryMatchAll(t *testing.T) {
	q := buildSearchQuery(models.EventFilter{})
	assert.Contains(t, q, "match_all")
}

func TestBuildSearchQueryCombinesTextAndFilters(t *testing.T) {
	hot := true
	q := buildSearchQuery(models.EventFilter{
		Query:    "jazz night",
		Category: models.CategoryConcert,
		Hot:      &hot,
	})

	raw, err := json.Marshal(q)
	require.NoError(t, err)

	var decoded struct {
		Bool struct {
			Must   []map[string]json.RawMessage `json:"must"`
			Filter []map[string]json.RawMessage `json:"filter"`
		} `json:"bool"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))

	require.Len(t, decoded.Bool.Must, 1)
	assert.Contains(t, decoded.Bool.Must[0], "multi_match")
	require.Len(t, decoded.Bool.Filter, 2)
	assert.JSONEq(t, `{"category":"concert"}`, string(decoded.Bool.Filter[0]["term"]))
	assert.JSONEq(t, `{"is_hot":true}`, string(decoded.Bool.Filter[1]["term"]))
}

func TestBuildSortQuery(t *testing.T) {
	assert.Contains(t, buildSortQuery("comedy")[0], "_score")
	assert.Contains(t, buildSortQuery("  ")[0], "date")
}
