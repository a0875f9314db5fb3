// Package scoring evaluates normalized predictions against gold consensus
// records.
//
// Spearman correlation is undefined when the gold or predicted values of a
// field are constant. Such fields are reported with a correlation of 0.0 and
// listed as degenerate. This understates a model that is trivially right on a
// constant field.
package scoring

import (
	"errors"
	"fmt"

	"hatespeech-annotation/internal/models"
	"hatespeech-annotation/internal/schema"
)

// ErrNoValidPairs is returned, together with a report carrying the join
// counts, when no prediction could be paired with a gold record.
var ErrNoValidPairs = errors.New("no valid predictions joined to gold records")

// OverallMode selects how the overall section is scored.
type OverallMode string

const (
	// ModeAuto uses labels when every included prediction carries one.
	ModeAuto OverallMode = "auto"
	// ModeLabel scores the categorical label with micro/macro F1.
	ModeLabel OverallMode = "label"
	// ModeScore scores the continuous score with MAE and Spearman.
	ModeScore OverallMode = "score"
)

// ParseOverallMode maps a config or flag value to a mode. Empty means auto.
func ParseOverallMode(s string) (OverallMode, error) {
	switch OverallMode(s) {
	case "", ModeAuto:
		return ModeAuto, nil
	case ModeLabel, ModeScore:
		return OverallMode(s), nil
	default:
		return "", fmt.Errorf("unknown overall mode %q (want auto, label or score)", s)
	}
}

// Options tune a scoring run.
type Options struct {
	OverallMode OverallMode
}

// Report is the outcome of one evaluation. Metric sections are nil when
// Included is zero.
type Report struct {
	Predictions     int `json:"predictions"`
	Included        int `json:"included"`
	NullPredictions int `json:"null_predictions"`
	Unmatched       int `json:"unmatched"`

	Overall *OverallReport `json:"overall,omitempty"`
	Facets  *FacetReport   `json:"facets,omitempty"`
	Targets *TargetReport  `json:"targets,omitempty"`
}

// OverallReport holds exactly one of Label or Score, according to Mode.
type OverallReport struct {
	Mode  OverallMode   `json:"mode"`
	Label *LabelMetrics `json:"label,omitempty"`
	Score *ScoreMetrics `json:"score,omitempty"`
}

// LabelMetrics scores the categorical overall label.
type LabelMetrics struct {
	Labels   []string           `json:"labels"`
	MicroF1  float64            `json:"micro_f1"`
	MacroF1  float64            `json:"macro_f1"`
	PerLabel map[string]float64 `json:"per_label_f1"`
}

// ScoreMetrics scores a continuous or ordinal field.
type ScoreMetrics struct {
	MAE        float64 `json:"mae"`
	Spearman   float64 `json:"spearman"`
	Degenerate bool    `json:"degenerate,omitempty"`
}

// FacetScore is one facet's metrics.
type FacetScore struct {
	Name string `json:"name"`
	ScoreMetrics
}

// FacetReport covers the ordinal facets.
type FacetReport struct {
	PerFacet     []FacetScore `json:"per_facet"`
	MeanMAE      float64      `json:"mean_mae"`
	MeanSpearman float64      `json:"mean_spearman"`
	Degenerate   []string     `json:"degenerate,omitempty"`
}

// TargetScore is one target's F1 and gold positive count.
type TargetScore struct {
	Name    string  `json:"name"`
	F1      float64 `json:"f1"`
	Support int     `json:"support"`
}

// TargetReport covers the boolean targets as one multi-label problem.
type TargetReport struct {
	MicroF1   float64       `json:"micro_f1"`
	MacroF1   float64       `json:"macro_f1"`
	PerTarget []TargetScore `json:"per_target"`
}

type pair struct {
	gold models.Annotation
	pred *models.Prediction
}

// Score joins predictions to gold by comment id and computes every section.
// Predictions with a null payload or without a gold record are excluded and
// counted.
func Score(gold []models.Annotation, preds []models.PredictionRecord, opts Options) (*Report, error) {
	mode, err := ParseOverallMode(string(opts.OverallMode))
	if err != nil {
		return nil, err
	}

	byID := make(map[string]models.Annotation, len(gold))
	for _, g := range gold {
		key := g.CommentID.Key()
		if _, dup := byID[key]; !dup {
			byID[key] = g
		}
	}

	report := &Report{Predictions: len(preds)}
	pairs := make([]pair, 0, len(preds))
	for _, p := range preds {
		if p.Prediction == nil {
			report.NullPredictions++
			continue
		}
		g, ok := byID[p.ID.Key()]
		if !ok {
			report.Unmatched++
			continue
		}
		pairs = append(pairs, pair{gold: g, pred: p.Prediction})
	}
	report.Included = len(pairs)

	if report.Included == 0 {
		return report, ErrNoValidPairs
	}

	report.Overall = scoreOverall(pairs, mode)
	report.Facets = scoreFacets(pairs)
	report.Targets = scoreTargets(pairs)
	return report, nil
}

func scoreOverall(pairs []pair, mode OverallMode) *OverallReport {
	if mode == ModeAuto {
		mode = ModeLabel
		for _, p := range pairs {
			if p.pred.Overall.Label == "" {
				mode = ModeScore
				break
			}
		}
	}

	out := &OverallReport{Mode: mode}
	if mode == ModeLabel {
		gold := make([]string, len(pairs))
		pred := make([]string, len(pairs))
		for i, p := range pairs {
			gold[i] = p.gold.Overall.Label
			pred[i] = p.pred.Overall.Label
		}
		labels, micro, macro, per := multiclassF1(gold, pred)
		perLabel := make(map[string]float64, len(labels))
		for i, l := range labels {
			perLabel[l] = per[i]
		}
		out.Label = &LabelMetrics{Labels: labels, MicroF1: micro, MacroF1: macro, PerLabel: perLabel}
		return out
	}

	gold := make([]float64, len(pairs))
	pred := make([]float64, len(pairs))
	for i, p := range pairs {
		gold[i] = p.gold.Overall.HateSpeechScore
		pred[i] = p.pred.Overall.Score
	}
	m := scoreContinuous(gold, pred)
	out.Score = &m
	return out
}

func scoreContinuous(gold, pred []float64) ScoreMetrics {
	rho, ok := spearman(gold, pred)
	return ScoreMetrics{
		MAE:        meanAbsoluteError(gold, pred),
		Spearman:   rho,
		Degenerate: !ok,
	}
}

func scoreFacets(pairs []pair) *FacetReport {
	out := &FacetReport{PerFacet: make([]FacetScore, 0, len(schema.Facets))}
	maes := make([]float64, 0, len(schema.Facets))
	rhos := make([]float64, 0, len(schema.Facets))

	gold := make([]float64, len(pairs))
	pred := make([]float64, len(pairs))
	for _, name := range schema.Facets {
		for i, p := range pairs {
			gold[i] = float64(p.gold.Facets[name])
			pred[i] = float64(p.pred.Facets[name])
		}
		m := scoreContinuous(gold, pred)
		out.PerFacet = append(out.PerFacet, FacetScore{Name: name, ScoreMetrics: m})
		maes = append(maes, m.MAE)
		rhos = append(rhos, m.Spearman)
		if m.Degenerate {
			out.Degenerate = append(out.Degenerate, name)
		}
	}

	out.MeanMAE = mean(maes)
	out.MeanSpearman = mean(rhos)
	return out
}

func scoreTargets(pairs []pair) *TargetReport {
	out := &TargetReport{PerTarget: make([]TargetScore, 0, len(schema.Targets))}

	var total counts
	f1s := make([]float64, 0, len(schema.Targets))
	for _, name := range schema.Targets {
		var c counts
		support := 0
		for _, p := range pairs {
			g, pr := p.gold.Targets[name], p.pred.Targets[name]
			if g {
				support++
			}
			switch {
			case g && pr:
				c.tp++
			case pr:
				c.fp++
			case g:
				c.fn++
			}
		}
		total = total.add(c)
		f1s = append(f1s, c.f1())
		out.PerTarget = append(out.PerTarget, TargetScore{Name: name, F1: c.f1(), Support: support})
	}

	out.MicroF1 = total.f1()
	out.MacroF1 = mean(f1s)
	return out
}
