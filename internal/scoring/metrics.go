package scoring

import (
	"math"
	"sort"
)

// counts is a confusion tally for one class.
type counts struct {
	tp, fp, fn int
}

func (c counts) add(o counts) counts {
	return counts{tp: c.tp + o.tp, fp: c.fp + o.fp, fn: c.fn + o.fn}
}

// f1 is 2TP/(2TP+FP+FN), which equals the harmonic mean of precision and
// recall when both are defined. An empty tally scores 0.
func (c counts) f1() float64 {
	den := 2*c.tp + c.fp + c.fn
	if den == 0 {
		return 0
	}
	return float64(2*c.tp) / float64(den)
}

// multiclassF1 scores single-label predictions over the union of labels seen
// in either list. Returns the sorted labels, micro F1, macro F1 and the
// per-label F1 in label order.
func multiclassF1(gold, pred []string) (labels []string, micro, macro float64, perLabel []float64) {
	seen := make(map[string]struct{})
	for _, l := range gold {
		seen[l] = struct{}{}
	}
	for _, l := range pred {
		seen[l] = struct{}{}
	}
	for l := range seen {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	tally := make(map[string]counts, len(labels))
	for i := range gold {
		g, p := gold[i], pred[i]
		if g == p {
			c := tally[g]
			c.tp++
			tally[g] = c
			continue
		}
		cp := tally[p]
		cp.fp++
		tally[p] = cp
		cg := tally[g]
		cg.fn++
		tally[g] = cg
	}

	var total counts
	perLabel = make([]float64, len(labels))
	for i, l := range labels {
		total = total.add(tally[l])
		perLabel[i] = tally[l].f1()
		macro += perLabel[i]
	}
	if len(labels) > 0 {
		macro /= float64(len(labels))
	}
	return labels, total.f1(), macro, perLabel
}

// meanAbsoluteError assumes equal, non-zero lengths.
func meanAbsoluteError(gold, pred []float64) float64 {
	var sum float64
	for i := range gold {
		sum += math.Abs(gold[i] - pred[i])
	}
	return sum / float64(len(gold))
}

// spearman is the Pearson correlation of average ranks. ok is false when
// either side has zero variance, where the coefficient is undefined.
func spearman(x, y []float64) (rho float64, ok bool) {
	if len(x) < 2 {
		return 0, false
	}
	return pearson(ranks(x), ranks(y))
}

func pearson(x, y []float64) (float64, bool) {
	n := float64(len(x))
	var mx, my float64
	for i := range x {
		mx += x[i]
		my += y[i]
	}
	mx /= n
	my /= n

	var sxy, sxx, syy float64
	for i := range x {
		dx, dy := x[i]-mx, y[i]-my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return 0, false
	}

	r := sxy / math.Sqrt(sxx*syy)
	return math.Max(-1, math.Min(1, r)), true
}

// ranks assigns 1-based ranks, giving tied values the mean of their ranks.
func ranks(v []float64) []float64 {
	idx := make([]int, len(v))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return v[idx[a]] < v[idx[b]] })

	out := make([]float64, len(v))
	for i := 0; i < len(idx); {
		j := i
		for j+1 < len(idx) && v[idx[j+1]] == v[idx[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			out[idx[k]] = avg
		}
		i = j + 1
	}
	return out
}

func mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	var sum float64
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}
