// Package summary counts label, facet-rating and target occurrences for the
// charting scripts.
package summary

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"hatespeech-annotation/internal/models"
	"hatespeech-annotation/internal/schema"
)

// TruthCount is the true/false tally of one target.
type TruthCount struct {
	True  int `json:"true"`
	False int `json:"false"`
}

// Summary is the summary statistics file shape.
type Summary struct {
	Overall map[string]int            `json:"overall"`
	Facets  map[string]map[string]int `json:"facets"`
	Targets map[string]TruthCount     `json:"targets"`
}

// Summarize counts every catalog facet and target. Every rating 0-4 is
// present for every facet, even with a zero count. Labels are counted as
// found, so unexpected labels show up rather than disappear.
func Summarize(records []models.Annotation) Summary {
	s := Summary{
		Overall: make(map[string]int, len(schema.Labels)),
		Facets:  make(map[string]map[string]int, len(schema.Facets)),
		Targets: make(map[string]TruthCount, len(schema.Targets)),
	}

	for _, l := range schema.Labels {
		s.Overall[l] = 0
	}
	for _, f := range schema.Facets {
		ratings := make(map[string]int, schema.FacetMax-schema.FacetMin+1)
		for r := schema.FacetMin; r <= schema.FacetMax; r++ {
			ratings[strconv.Itoa(r)] = 0
		}
		s.Facets[f] = ratings
	}
	for _, t := range schema.Targets {
		s.Targets[t] = TruthCount{}
	}

	for _, rec := range records {
		label := rec.Overall.Label
		if label == "" {
			label = schema.LabelFromScore(rec.Overall.HateSpeechScore)
		}
		s.Overall[label]++

		for _, f := range schema.Facets {
			s.Facets[f][strconv.Itoa(schema.ClampFacet(rec.Facets[f]))]++
		}

		for _, t := range schema.Targets {
			c := s.Targets[t]
			if rec.Targets[t] {
				c.True++
			} else {
				c.False++
			}
			s.Targets[t] = c
		}
	}

	return s
}

// WriteFile writes the summary as indented JSON.
func (s Summary) WriteFile(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}
