// Package aggregate merges the annotations of one comment into a consensus
// record.
//
// Rules for a group of two or more:
//   - hate_speech_score is the arithmetic mean; the label is derived from it
//   - each facet is the mean rounded half-to-even, clamped to [0,4]
//   - each target is the logical OR of the group
//
// A group of one passes through unchanged.
package aggregate

import (
	"errors"
	"fmt"
	"maps"

	"hatespeech-annotation/internal/models"
	"hatespeech-annotation/internal/normalize"
	"hatespeech-annotation/internal/schema"
)

var (
	// ErrEmptyGroup is returned for a group with no annotations.
	ErrEmptyGroup = errors.New("empty annotation group")
	// ErrMixedGroup is returned when a group spans several comment ids.
	ErrMixedGroup = errors.New("annotation group spans several comment ids")
)

// Aggregate returns the consensus record of one comment's annotations.
func Aggregate(group []models.Annotation) (models.Annotation, error) {
	if len(group) == 0 {
		return models.Annotation{}, ErrEmptyGroup
	}

	first := group[0]
	for _, a := range group[1:] {
		if a.CommentID.Key() != first.CommentID.Key() {
			return models.Annotation{}, fmt.Errorf("%w: %q and %q", ErrMixedGroup, first.CommentID, a.CommentID)
		}
	}

	if len(group) == 1 {
		first.Facets = maps.Clone(first.Facets)
		first.Targets = maps.Clone(first.Targets)
		return first, nil
	}

	out := models.Annotation{
		CommentID: first.CommentID,
		Text:      firstText(group),
		Facets:    make(map[string]int, len(first.Facets)),
		Targets:   make(map[string]bool, len(first.Targets)),
	}

	var scoreSum float64
	for _, a := range group {
		scoreSum += a.Overall.HateSpeechScore
	}
	mean := scoreSum / float64(len(group))
	out.Overall = models.Overall{
		Label:           schema.LabelFromScore(mean),
		HateSpeechScore: mean,
	}

	for name := range first.Facets {
		var sum float64
		n := 0
		for _, a := range group {
			if v, ok := a.Facets[name]; ok {
				sum += float64(v)
				n++
			}
		}
		out.Facets[name] = normalize.RoundFacet(sum / float64(n))
	}

	for name := range first.Targets {
		flagged := false
		for _, a := range group {
			if a.Targets[name] {
				flagged = true
				break
			}
		}
		out.Targets[name] = flagged
	}

	return out, nil
}

func firstText(group []models.Annotation) string {
	for _, a := range group {
		if a.Text != "" {
			return a.Text
		}
	}
	return ""
}

// Group splits records by comment id, keeping first-seen order for both the
// groups and the members of each group.
func Group(records []models.Annotation) [][]models.Annotation {
	index := make(map[string]int)
	var groups [][]models.Annotation

	for _, r := range records {
		key := r.CommentID.Key()
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], r)
	}

	return groups
}

// Stats describes an aggregation run.
type Stats struct {
	Records    int `json:"records"`
	Groups     int `json:"groups"`
	MultiGroup int `json:"multi_annotated"`
}

// All groups records by comment id and aggregates every group.
func All(records []models.Annotation) ([]models.Annotation, Stats, error) {
	groups := Group(records)
	stats := Stats{Records: len(records), Groups: len(groups)}

	out := make([]models.Annotation, 0, len(groups))
	for _, g := range groups {
		if len(g) > 1 {
			stats.MultiGroup++
		}
		consensus, err := Aggregate(g)
		if err != nil {
			return nil, stats, fmt.Errorf("comment %s: %w", g[0].CommentID, err)
		}
		out = append(out, consensus)
	}

	return out, stats, nil
}
