// Package normalize coerces parsed model output into a schema-conformant
// prediction. It never fails: anything missing or malformed takes a default.
//
// Rounding is half-to-even (2.5 -> 2, 3.5 -> 4), the same convention the
// aggregator uses.
package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"hatespeech-annotation/internal/models"
	"hatespeech-annotation/internal/schema"
)

// Normalize returns a prediction holding every catalog facet and target.
// Unknown fields are dropped.
func Normalize(raw map[string]any) models.Prediction {
	overall := asObject(raw["overall"])

	score, ok := asFloat(overall["score"])
	if !ok {
		score, ok = asFloat(overall["hate_speech_score"])
	}
	if !ok {
		score = 0
	}

	label, _ := overall["label"].(string)

	facetsIn := asObject(raw["facets"])
	facets := make(map[string]int, len(schema.Facets))
	for _, name := range schema.Facets {
		facets[name] = Facet(facetsIn[name])
	}

	targetsIn := asObject(raw["targets"])
	targets := make(map[string]bool, len(schema.Targets))
	for _, name := range schema.Targets {
		targets[name] = Target(targetsIn[name])
	}

	return models.Prediction{
		Overall: models.PredictionOverall{Score: score, Label: strings.TrimSpace(label)},
		Facets:  facets,
		Targets: targets,
	}
}

// Facet coerces one facet value: numeric forms are rounded half-to-even and
// clamped to the ordinal range, everything else becomes 0.
func Facet(v any) int {
	f, ok := asFloat(v)
	if !ok {
		return schema.FacetMin
	}
	return RoundFacet(f)
}

// RoundFacet rounds half-to-even and clamps to the ordinal range.
func RoundFacet(f float64) int {
	f = math.RoundToEven(f)
	f = math.Max(schema.FacetMin, math.Min(schema.FacetMax, f))
	return int(f)
}

// Target accepts only a JSON boolean; any other value is false.
func Target(v any) bool {
	b, ok := v.(bool)
	return ok && b
}

// DeriveLabel fills an empty label from the score.
func DeriveLabel(p *models.Prediction) {
	if p.Overall.Label == "" {
		p.Overall.Label = schema.LabelFromScore(p.Overall.Score)
	}
}

// Record normalizes one predictions-file line. A null or non-object payload
// stays null.
func Record(raw models.RawPredictionRecord) models.PredictionRecord {
	out := models.PredictionRecord{ID: raw.ID}

	var payload any
	if len(raw.Prediction) == 0 || json.Unmarshal(raw.Prediction, &payload) != nil {
		return out
	}
	obj, ok := payload.(map[string]any)
	if !ok {
		return out
	}

	p := Normalize(obj)
	out.Prediction = &p
	return out
}

func asObject(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return nil
}

// asFloat accepts JSON numbers and numeric strings. Booleans, NaN and
// infinities are rejected.
func asFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
