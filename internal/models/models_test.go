package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVeilleItem_Valid(t *testing.T) {
	tests := []struct {
		name string
		item VeilleItem
		want bool
	}{
		{"title only", VeilleItem{Source: "A", Title: "t"}, true},
		{"snippet only", VeilleItem{Source: "A", Snippet: "s"}, true},
		{"content only", VeilleItem{Source: "A", Content: "c"}, true},
		{"no source", VeilleItem{Title: "t"}, false},
		{"blank text", VeilleItem{Source: "A", Title: "  ", URL: "https://x"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.item.Valid())
		})
	}
}

func TestNormalizeMetadata_SurvivesJSON(t *testing.T) {
	meta := NormalizeMetadata(map[string]interface{}{
		"likes":  42,
		"author": "ana",
		"nested": map[string]interface{}{"x": 1},
		"empty":  "",
		"pinned": true,
	})
	assert.Equal(t, map[string]interface{}{"likes": float64(42), "author": "ana", "pinned": true}, meta)

	data, err := json.Marshal(meta)
	require.NoError(t, err)
	var back map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, meta, back)

	assert.Nil(t, NormalizeMetadata(map[string]interface{}{"x": []int{1}}))
}

func TestBrief_Missing(t *testing.T) {
	b := Brief{Title: "T", Objectives: []string{"o"}}
	assert.Equal(t, []string{SectionProblem, SectionKPIs}, b.Missing())
}

func TestSourceDescriptor_Name(t *testing.T) {
	assert.Equal(t, "blog", SourceDescriptor{ID: "blog", Target: "https://x"}.Name())
	assert.Equal(t, "https://x", SourceDescriptor{Target: "https://x"}.Name())
}

func TestDeck_Count(t *testing.T) {
	d := Deck{Slides: []Slide{{Type: SlideCover}, {Type: SlideIdeaHeader}, {Type: SlideIdeaHeader}}}
	assert.Equal(t, 2, d.Count(SlideIdeaHeader))
	assert.Equal(t, 0, d.Count(SlideBudget))
}
