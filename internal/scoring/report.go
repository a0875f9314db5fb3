package scoring

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// WriteText renders the report as sections of "Name: value" lines. A report
// without pairs says so instead of printing metrics.
func (r *Report) WriteText(w io.Writer) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "Valid pairs: %d\n", r.Included)
	fmt.Fprintf(bw, "Predictions: %d\n", r.Predictions)
	fmt.Fprintf(bw, "Null predictions: %d\n", r.NullPredictions)
	fmt.Fprintf(bw, "Unmatched predictions: %d\n\n", r.Unmatched)

	if r.Included == 0 || r.Overall == nil {
		fmt.Fprintln(bw, "No valid predictions found; metrics were not computed.")
		return bw.Flush()
	}

	switch {
	case r.Overall.Label != nil:
		fmt.Fprintln(bw, "=== OVERALL (label-based) ===")
		fmt.Fprintf(bw, "Micro F1: %.4f\n", r.Overall.Label.MicroF1)
		fmt.Fprintf(bw, "Macro F1: %.4f\n", r.Overall.Label.MacroF1)
		fmt.Fprintf(bw, "Labels: %s\n\n", strings.Join(r.Overall.Label.Labels, ", "))
	case r.Overall.Score != nil:
		fmt.Fprintln(bw, "=== OVERALL (score-based) ===")
		fmt.Fprintf(bw, "MAE: %.4f\n", r.Overall.Score.MAE)
		fmt.Fprintf(bw, "Spearman: %.4f\n\n", r.Overall.Score.Spearman)
	}

	fmt.Fprintln(bw, "=== FACETS ===")
	fmt.Fprintf(bw, "Mean MAE: %.4f\n", r.Facets.MeanMAE)
	fmt.Fprintf(bw, "Mean Spearman: %.4f\n", r.Facets.MeanSpearman)
	for _, f := range r.Facets.PerFacet {
		fmt.Fprintf(bw, "%s MAE: %.4f\n", f.Name, f.MAE)
		fmt.Fprintf(bw, "%s Spearman: %.4f\n", f.Name, f.Spearman)
	}
	if len(r.Facets.Degenerate) > 0 {
		fmt.Fprintf(bw, "Zero-variance facets (Spearman reported as 0.0): %s\n", strings.Join(r.Facets.Degenerate, ", "))
	}
	fmt.Fprintln(bw)

	fmt.Fprintln(bw, "=== TARGETS ===")
	fmt.Fprintf(bw, "Micro F1: %.4f\n", r.Targets.MicroF1)
	fmt.Fprintf(bw, "Macro F1: %.4f\n", r.Targets.MacroF1)

	return bw.Flush()
}

// String renders the text report.
func (r *Report) String() string {
	var sb strings.Builder
	_ = r.WriteText(&sb)
	return sb.String()
}
