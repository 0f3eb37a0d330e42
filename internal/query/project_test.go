package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type projDoc struct {
	ID     uint64  `json:"id"`
	Name   string  `json:"name"`
	Price  float64 `json:"price"`
	Secret string  `json:"-"`
}

func TestProjectNoFieldsPassesThrough(t *testing.T) {
	docs := []projDoc{{ID: 1, Name: "a"}}
	out := Spec{}.Project(docs)
	assert.Equal(t, docs, out)
}

func TestProjectSlice(t *testing.T) {
	docs := []projDoc{
		{ID: 1, Name: "forest hiker", Price: 397, Secret: "hidden"},
		{ID: 2, Name: "sea explorer", Price: 497},
	}

	out := Spec{Fields: []string{"name"}}.Project(docs)

	projected, ok := out.([]map[string]any)
	require.True(t, ok)
	require.Len(t, projected, 2)
	// id is always retained so entries stay addressable.
	assert.Equal(t, map[string]any{"id": float64(1), "name": "forest hiker"}, projected[0])
	assert.Equal(t, map[string]any{"id": float64(2), "name": "sea explorer"}, projected[1])
}

func TestProjectSingleDoc(t *testing.T) {
	out := Spec{Fields: []string{"price"}}.Project(projDoc{ID: 7, Name: "x", Price: 99})

	projected, ok := out.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"id": float64(7), "price": float64(99)}, projected)
}

func TestProjectUnknownFieldIgnored(t *testing.T) {
	out := Spec{Fields: []string{"nope"}}.Project(projDoc{ID: 3})

	projected, ok := out.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"id": float64(3)}, projected)
}
