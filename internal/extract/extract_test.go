package extract

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want map[string]any
	}{
		{
			name: "bare object",
			raw:  `{"overall": {"score": 1.5}}`,
			want: map[string]any{"overall": map[string]any{"score": 1.5}},
		},
		{
			name: "fenced with language tag and trailing note",
			raw:  "```json\n{\"overall\":{\"score\":\"0.7\"},\"facets\":{\"insult\":2.6},\"targets\":{\"target_race_black\":\"yes\"}}\n``` plus trailing note",
			want: map[string]any{
				"overall": map[string]any{"score": "0.7"},
				"facets":  map[string]any{"insult": 2.6},
				"targets": map[string]any{"target_race_black": "yes"},
			},
		},
		{
			name: "leading prose",
			raw:  "Sure! Here is the analysis:\n{\"overall\": {\"score\": -0.2}}",
			want: map[string]any{"overall": map[string]any{"score": -0.2}},
		},
		{
			name: "second object after the first is ignored",
			raw:  `{"a": 1} and also {"b": 2}`,
			want: map[string]any{"a": float64(1)},
		},
		{
			name: "trailing stray brace",
			raw:  `{"a": {"b": true}} }`,
			want: map[string]any{"a": map[string]any{"b": true}},
		},
		{
			name: "closing brace inside a string",
			raw:  `{"note": "smile :}", "x": 1}`,
			want: map[string]any{"note": "smile :}", "x": float64(1)},
		},
		{
			name: "uppercase fence tag",
			raw:  "```JSON\n{\"x\": false}\n```",
			want: map[string]any{"x": false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Extract(tt.raw)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Extract() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExtract_NotFound(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
	}{
		{name: "empty", raw: ""},
		{name: "no braces", raw: "I cannot help with that."},
		{name: "missing closing brace", raw: `{"overall": {"score": 1.0}`},
		{name: "invalid json between braces", raw: `{overall: score}`},
		{name: "single quotes", raw: `{'overall': {'score': 1}}`},
		{name: "only fences", raw: "```json\n```"},
		{name: "trailing comma", raw: `{"a": 1,}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Extract(tt.raw)
			assert.ErrorIs(t, err, ErrNotFound)
			assert.Nil(t, got)
		})
	}
}

func TestExtract_RoundTrip(t *testing.T) {
	t.Parallel()

	objects := []map[string]any{
		{"overall": map[string]any{"score": 0.12}},
		{
			"overall": map[string]any{"score": -1.35, "label": "supportive"},
			"facets":  map[string]any{"insult": float64(0), "violence": float64(4)},
			"targets": map[string]any{"target_gender_women": true, "target_age_seniors": false},
		},
		{"nested": map[string]any{"deep": map[string]any{"list": []any{"{", "}"}}}},
	}

	paddings := []struct {
		name          string
		before, after string
	}{
		{name: "plain"},
		{name: "fenced", before: "```json\n", after: "\n```"},
		{name: "fenced with commentary", before: "```json\n", after: "\n```\nNote: scores are estimates {approx}."},
		{name: "prose around", before: "Result:\n", after: "\nHope this helps!"},
	}

	for _, obj := range objects {
		body, err := json.MarshalIndent(obj, "", "  ")
		require.NoError(t, err)

		for _, p := range paddings {
			got, err := Extract(p.before + string(body) + p.after)
			require.NoError(t, err, p.name)
			if diff := cmp.Diff(obj, got); diff != "" {
				t.Errorf("%s: round trip mismatch (-want +got):\n%s", p.name, diff)
			}
		}
	}
}

func TestStripFences(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `{"a":1}`, StripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, StripFences("  ```\n{\"a\":1}```  "))
	assert.Equal(t, "no fences", StripFences("no fences"))
}
