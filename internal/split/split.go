// Package split divides a dataset into train, validation and test files.
//
// Records are split by comment: all annotations of one comment land in the
// same split, so a test comment is never seen in training.
package split

import (
	"fmt"
	"math"
	"math/rand/v2"

	"hatespeech-annotation/internal/aggregate"
	"hatespeech-annotation/internal/models"
)

// Fractions are the shares of the holdout. Train gets the rest.
type Fractions struct {
	Holdout float64 // share of comments held out of training
	Test    float64 // share of the holdout that becomes the test split
}

// DefaultFractions gives an 80/10/10 split.
var DefaultFractions = Fractions{Holdout: 0.2, Test: 0.5}

// Result holds the three splits.
type Result struct {
	Train []models.Annotation
	Val   []models.Annotation
	Test  []models.Annotation
}

// Split shuffles the comments with a seeded generator and cuts them twice:
// first the holdout from the whole set, then the test share from the
// holdout. Cut sizes are rounded up. The same seed and input always give the
// same result.
func Split(records []models.Annotation, f Fractions, seed uint64) (Result, error) {
	if f.Holdout <= 0 || f.Holdout >= 1 || f.Test <= 0 || f.Test >= 1 {
		return Result{}, fmt.Errorf("split fractions must be in (0,1), got holdout=%v test=%v", f.Holdout, f.Test)
	}

	groups := aggregate.Group(records)
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	rng.Shuffle(len(groups), func(i, j int) { groups[i], groups[j] = groups[j], groups[i] })

	holdoutN := cut(len(groups), f.Holdout)
	holdout, train := groups[:holdoutN], groups[holdoutN:]

	testN := cut(len(holdout), f.Test)
	test, val := holdout[:testN], holdout[testN:]

	return Result{
		Train: flatten(train),
		Val:   flatten(val),
		Test:  flatten(test),
	}, nil
}

func cut(n int, share float64) int {
	return int(math.Ceil(float64(n) * share))
}

func flatten(groups [][]models.Annotation) []models.Annotation {
	var out []models.Annotation
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
