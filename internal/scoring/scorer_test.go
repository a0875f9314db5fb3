package scoring

import (
	"encoding/json"
	"strings"
	"testing"

	"hatespeech-annotation/internal/models"
	"hatespeech-annotation/internal/normalize"
	"hatespeech-annotation/internal/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gold(id int64, label string, score float64, facets map[string]int, targets map[string]bool) models.Annotation {
	return models.Annotation{
		CommentID: models.IntID(id),
		Overall:   models.Overall{Label: label, HateSpeechScore: score},
		Facets:    facets,
		Targets:   targets,
	}
}

func pred(id models.CommentID, label string, score float64, facets map[string]any, targets map[string]any) models.PredictionRecord {
	p := normalize.Normalize(map[string]any{
		"overall": map[string]any{"score": score, "label": label},
		"facets":  facets,
		"targets": targets,
	})
	return models.PredictionRecord{ID: id, Prediction: &p}
}

func TestScore_ExclusionAccounting(t *testing.T) {
	t.Parallel()

	goldSet := []models.Annotation{
		gold(1, "hateful", 1.2, nil, nil),
		gold(2, "neutral", 0, nil, nil),
		gold(3, "neutral", 0.1, nil, nil),
		gold(4, "supportive", -2, nil, nil),
		gold(5, "neutral", 0.2, nil, nil),
	}
	preds := []models.PredictionRecord{
		pred(models.IntID(1), "hateful", 1, nil, nil),
		{ID: models.IntID(2)},
		pred(models.IntID(3), "neutral", 0, nil, nil),
		pred(models.IntID(99), "neutral", 0, nil, nil),
		pred(models.StringID("4"), "supportive", -1.5, nil, nil),
		{ID: models.IntID(100)},
	}

	r, err := Score(goldSet, preds, Options{})
	require.NoError(t, err)
	assert.Equal(t, 6, r.Predictions)
	assert.Equal(t, 3, r.Included)
	assert.Equal(t, 2, r.NullPredictions)
	assert.Equal(t, 1, r.Unmatched)
}

func TestScore_NoValidPairs(t *testing.T) {
	t.Parallel()

	goldSet := []models.Annotation{gold(1, "neutral", 0, nil, nil)}
	preds := []models.PredictionRecord{{ID: models.IntID(1)}, pred(models.IntID(7), "", 0, nil, nil)}

	r, err := Score(goldSet, preds, Options{})
	require.ErrorIs(t, err, ErrNoValidPairs)
	require.NotNil(t, r)
	assert.Zero(t, r.Included)
	assert.Equal(t, 1, r.NullPredictions)
	assert.Equal(t, 1, r.Unmatched)
	assert.Nil(t, r.Overall)
	assert.Nil(t, r.Facets)
	assert.Nil(t, r.Targets)

	text := r.String()
	assert.Contains(t, text, "Valid pairs: 0")
	assert.Contains(t, text, "No valid predictions found")
	assert.NotContains(t, text, "Micro F1")
}

func TestScore_OverallLabelMode(t *testing.T) {
	t.Parallel()

	goldSet := []models.Annotation{
		gold(1, "hateful", 1, nil, nil),
		gold(2, "neutral", 0, nil, nil),
		gold(3, "neutral", 0, nil, nil),
		gold(4, "supportive", -2, nil, nil),
	}
	preds := []models.PredictionRecord{
		pred(models.IntID(1), "hateful", 0, nil, nil),
		pred(models.IntID(2), "hateful", 0, nil, nil),
		pred(models.IntID(3), "neutral", 0, nil, nil),
		pred(models.IntID(4), "offensive", 0, nil, nil),
	}

	r, err := Score(goldSet, preds, Options{OverallMode: ModeAuto})
	require.NoError(t, err)
	require.NotNil(t, r.Overall.Label)
	assert.Nil(t, r.Overall.Score)
	assert.Equal(t, ModeLabel, r.Overall.Mode)
	assert.Contains(t, r.Overall.Label.Labels, "offensive", "unexpected labels join the label set")
	assert.InDelta(t, 0.5, r.Overall.Label.MicroF1, 1e-12)
	assert.InDelta(t, 1.0/3.0, r.Overall.Label.MacroF1, 1e-12)
}

func TestScore_OverallScoreMode(t *testing.T) {
	t.Parallel()

	goldSet := []models.Annotation{
		gold(1, "hateful", 1.5, nil, nil),
		gold(2, "neutral", 0, nil, nil),
		gold(3, "supportive", -1.5, nil, nil),
	}
	preds := []models.PredictionRecord{
		pred(models.IntID(1), "", 1, nil, nil),
		pred(models.IntID(2), "", 0.5, nil, nil),
		pred(models.IntID(3), "neutral", -1, nil, nil),
	}

	r, err := Score(goldSet, preds, Options{})
	require.NoError(t, err)
	require.NotNil(t, r.Overall.Score, "a missing label switches auto mode to scores")
	assert.Equal(t, ModeScore, r.Overall.Mode)
	assert.InDelta(t, 0.5, r.Overall.Score.MAE, 1e-12)
	assert.InDelta(t, 1.0, r.Overall.Score.Spearman, 1e-12)

	forced, err := Score(goldSet, preds, Options{OverallMode: ModeLabel})
	require.NoError(t, err)
	require.NotNil(t, forced.Overall.Label)
	assert.Contains(t, forced.Overall.Label.Labels, "", "missing labels are scored as their own class when forced")
}

func TestScore_Facets(t *testing.T) {
	t.Parallel()

	goldSet := []models.Annotation{
		gold(1, "neutral", 0, map[string]int{"insult": 0, "violence": 1}, nil),
		gold(2, "neutral", 0, map[string]int{"insult": 2, "violence": 1}, nil),
		gold(3, "neutral", 0, map[string]int{"insult": 4, "violence": 1}, nil),
	}
	preds := []models.PredictionRecord{
		pred(models.IntID(1), "neutral", 0, map[string]any{"insult": 1, "violence": 0}, nil),
		pred(models.IntID(2), "neutral", 0, map[string]any{"insult": 2, "violence": 2}, nil),
		pred(models.IntID(3), "neutral", 0, map[string]any{"insult": 3, "violence": 4}, nil),
	}

	r, err := Score(goldSet, preds, Options{})
	require.NoError(t, err)
	require.Len(t, r.Facets.PerFacet, len(schema.Facets))

	byName := make(map[string]FacetScore)
	for _, f := range r.Facets.PerFacet {
		byName[f.Name] = f
	}

	insult := byName["insult"]
	assert.InDelta(t, 2.0/3.0, insult.MAE, 1e-12)
	assert.InDelta(t, 1.0, insult.Spearman, 1e-12)
	assert.False(t, insult.Degenerate)

	violence := byName["violence"]
	assert.InDelta(t, 5.0/3.0, violence.MAE, 1e-12)
	assert.Zero(t, violence.Spearman, "constant gold values yield 0.0")
	assert.True(t, violence.Degenerate)

	// every facet except insult is constant on at least one side
	assert.Len(t, r.Facets.Degenerate, len(schema.Facets)-1)
	assert.NotContains(t, r.Facets.Degenerate, "insult")
	assert.InDelta(t, 1.0/float64(len(schema.Facets)), r.Facets.MeanSpearman, 1e-12)
	assert.InDelta(t, (2.0/3.0+5.0/3.0)/float64(len(schema.Facets)), r.Facets.MeanMAE, 1e-12)
}

func TestScore_Targets(t *testing.T) {
	t.Parallel()

	goldSet := []models.Annotation{
		gold(1, "hateful", 1, nil, map[string]bool{"target_race_black": true}),
		gold(2, "hateful", 1, nil, map[string]bool{"target_race_white": true}),
	}
	preds := []models.PredictionRecord{
		pred(models.IntID(1), "hateful", 1, nil, map[string]any{"target_race_black": true}),
		pred(models.IntID(2), "hateful", 1, nil, map[string]any{"target_gender_men": true}),
	}

	r, err := Score(goldSet, preds, Options{})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, r.Targets.MicroF1, 1e-12)
	assert.InDelta(t, 1.0/float64(len(schema.Targets)), r.Targets.MacroF1, 1e-12)
	require.Len(t, r.Targets.PerTarget, len(schema.Targets))
	assert.Equal(t, TargetScore{Name: "target_race_black", F1: 1, Support: 1}, r.Targets.PerTarget[1])
}

func TestScore_DuplicateGoldFirstWins(t *testing.T) {
	t.Parallel()

	goldSet := []models.Annotation{
		gold(1, "hateful", 1, nil, nil),
		gold(1, "neutral", 0, nil, nil),
	}
	preds := []models.PredictionRecord{pred(models.IntID(1), "hateful", 1, nil, nil)}

	r, err := Score(goldSet, preds, Options{})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, r.Overall.Label.MicroF1, 1e-12)
}

func TestScore_UnknownMode(t *testing.T) {
	t.Parallel()

	_, err := Score(nil, nil, Options{OverallMode: "median"})
	assert.Error(t, err)
}

func TestReport_Text(t *testing.T) {
	t.Parallel()

	goldSet := []models.Annotation{
		gold(1, "hateful", 1, map[string]int{"insult": 3}, map[string]bool{"target_race_black": true}),
		gold(2, "neutral", 0, map[string]int{"insult": 0}, nil),
	}
	preds := []models.PredictionRecord{
		pred(models.IntID(1), "hateful", 1, map[string]any{"insult": 3}, map[string]any{"target_race_black": true}),
		pred(models.IntID(2), "neutral", 0, map[string]any{"insult": 1}, nil),
	}

	r, err := Score(goldSet, preds, Options{})
	require.NoError(t, err)

	text := r.String()
	for _, want := range []string{
		"Valid pairs: 2",
		"=== OVERALL (label-based) ===",
		"Micro F1: 1.0000",
		"=== FACETS ===",
		"Mean MAE: 0.0500",
		"insult MAE: 0.5000",
		"insult Spearman: 1.0000",
		"=== TARGETS ===",
		"Zero-variance facets",
	} {
		assert.Contains(t, text, want)
	}

	// every metric line is machine readable as "name: float"
	for _, line := range strings.Split(text, "\n") {
		if !strings.Contains(line, "MAE:") && !strings.Contains(line, "F1:") && !strings.Contains(line, "Spearman:") {
			continue
		}
		parts := strings.SplitN(line, ": ", 2)
		require.Len(t, parts, 2, line)
		var v float64
		assert.NoError(t, json.Unmarshal([]byte(parts[1]), &v), line)
	}
}

func TestReport_JSON(t *testing.T) {
	t.Parallel()

	goldSet := []models.Annotation{gold(1, "neutral", 0, nil, nil), gold(2, "hateful", 2, nil, nil)}
	preds := []models.PredictionRecord{
		pred(models.IntID(1), "", 0.1, nil, nil),
		pred(models.IntID(2), "", 1.9, nil, nil),
	}

	r, err := Score(goldSet, preds, Options{})
	require.NoError(t, err)

	data, err := json.Marshal(r)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	overall := decoded["overall"].(map[string]any)
	assert.Equal(t, "score", overall["mode"])
	assert.NotContains(t, overall, "label")

	facets := decoded["facets"].(map[string]any)
	first := facets["per_facet"].([]any)[0].(map[string]any)
	assert.Equal(t, "sentiment", first["name"])
	assert.Contains(t, first, "mae")
}
