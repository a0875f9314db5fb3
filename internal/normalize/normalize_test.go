package normalize

import (
	"encoding/json"
	"testing"

	"hatespeech-annotation/internal/extract"
	"hatespeech-annotation/internal/models"
	"hatespeech-annotation/internal/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_ExtractedModelOutput(t *testing.T) {
	t.Parallel()

	raw := "```json\n{\"overall\":{\"score\":\"0.7\"},\"facets\":{\"insult\":2.6},\"targets\":{\"target_race_black\":\"yes\"}}\n``` plus trailing note"
	obj, err := extract.Extract(raw)
	require.NoError(t, err)

	p := Normalize(obj)
	assert.InDelta(t, 0.7, p.Overall.Score, 1e-12)
	assert.Equal(t, 3, p.Facets["insult"])
	assert.False(t, p.Targets["target_race_black"])
	assert.Empty(t, p.Overall.Label)
}

func TestNormalize_AllFieldsPresent(t *testing.T) {
	t.Parallel()

	p := Normalize(nil)
	assert.Zero(t, p.Overall.Score)
	assert.Len(t, p.Facets, len(schema.Facets))
	assert.Len(t, p.Targets, len(schema.Targets))
	for _, name := range schema.Facets {
		assert.Equal(t, 0, p.Facets[name], name)
	}
	for _, name := range schema.Targets {
		assert.False(t, p.Targets[name], name)
	}
}

func TestNormalize_DropsUnknownFields(t *testing.T) {
	t.Parallel()

	p := Normalize(map[string]any{
		"facets":  map[string]any{"insult": float64(1), "sarcasm": float64(3)},
		"targets": map[string]any{"target_aliens": true},
		"extra":   "ignored",
	})
	assert.NotContains(t, p.Facets, "sarcasm")
	assert.NotContains(t, p.Targets, "target_aliens")
	assert.Equal(t, 1, p.Facets["insult"])
}

func TestFacet(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   any
		want int
	}{
		{name: "integer", in: float64(3), want: 3},
		{name: "rounds up", in: 2.6, want: 3},
		{name: "rounds down", in: 1.4, want: 1},
		{name: "half to even down", in: 2.5, want: 2},
		{name: "half to even up", in: 3.5, want: 4},
		{name: "clamped high", in: float64(7), want: 4},
		{name: "clamped low", in: float64(-2), want: 0},
		{name: "numeric string", in: "2", want: 2},
		{name: "float string", in: " 1.6 ", want: 2},
		{name: "word", in: "severe", want: 0},
		{name: "null", in: nil, want: 0},
		{name: "bool", in: true, want: 0},
		{name: "object", in: map[string]any{"v": 2}, want: 0},
		{name: "huge", in: 1e300, want: 4},
		{name: "nan string", in: "NaN", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Facet(tt.in))
		})
	}
}

func TestTarget(t *testing.T) {
	t.Parallel()

	assert.True(t, Target(true))
	assert.False(t, Target(false))
	assert.False(t, Target("true"))
	assert.False(t, Target(float64(1)))
	assert.False(t, Target(nil))
}

func TestNormalize_ScoreFallbacks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		overall any
		want    float64
	}{
		{name: "number", overall: map[string]any{"score": -1.35}, want: -1.35},
		{name: "string", overall: map[string]any{"score": "0.32"}, want: 0.32},
		{name: "gold field name", overall: map[string]any{"hate_speech_score": 1.2}, want: 1.2},
		{name: "garbage", overall: map[string]any{"score": "high"}, want: 0},
		{name: "missing overall", overall: nil, want: 0},
		{name: "overall not an object", overall: "hateful", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := Normalize(map[string]any{"overall": tt.overall})
			assert.InDelta(t, tt.want, p.Overall.Score, 1e-12)
		})
	}
}

func TestNormalize_KeepsLabel(t *testing.T) {
	t.Parallel()

	p := Normalize(map[string]any{"overall": map[string]any{"score": 0.0, "label": "hateful"}})
	assert.Equal(t, "hateful", p.Overall.Label)

	p = Normalize(map[string]any{"overall": map[string]any{"label": 3}})
	assert.Empty(t, p.Overall.Label)
}

func TestNormalize_Idempotent(t *testing.T) {
	t.Parallel()

	inputs := []map[string]any{
		nil,
		{"overall": map[string]any{"score": "2.25", "label": "hateful"}},
		{
			"overall": map[string]any{"score": 0.4},
			"facets":  map[string]any{"insult": 9.9, "violence": "3", "respect": -1, "genocide": 2.5},
			"targets": map[string]any{"target_race_white": true, "target_age_other": "false", "target_gender_men": 1},
		},
	}

	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(asMap(t, once))
		assert.Equal(t, once, twice)
	}
}

func TestDeriveLabel(t *testing.T) {
	t.Parallel()

	p := models.Prediction{Overall: models.PredictionOverall{Score: 1.47}}
	DeriveLabel(&p)
	assert.Equal(t, schema.LabelHateful, p.Overall.Label)

	p = models.Prediction{Overall: models.PredictionOverall{Score: 1.47, Label: "neutral"}}
	DeriveLabel(&p)
	assert.Equal(t, "neutral", p.Overall.Label, "existing label is kept")
}

func TestRecord(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		line    string
		wantNil bool
	}{
		{name: "null payload", line: `{"id": 1, "prediction": null}`, wantNil: true},
		{name: "missing payload", line: `{"id": 1}`, wantNil: true},
		{name: "string payload", line: `{"id": 1, "prediction": "oops"}`, wantNil: true},
		{name: "object payload", line: `{"id": 1, "prediction": {"facets": {"insult": 2}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var raw models.RawPredictionRecord
			require.NoError(t, json.Unmarshal([]byte(tt.line), &raw))

			rec := Record(raw)
			assert.Equal(t, "1", rec.ID.Key())
			if tt.wantNil {
				assert.Nil(t, rec.Prediction)
				return
			}
			require.NotNil(t, rec.Prediction)
			assert.Equal(t, 2, rec.Prediction.Facets["insult"])
		})
	}
}

func asMap(t *testing.T, p models.Prediction) map[string]any {
	t.Helper()

	data, err := json.Marshal(p)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}
