// hsctl runs the offline stages of the hate speech rubric pipeline.
//
// Usage:
//
//	hsctl aggregate --in annotations.jsonl --out train_aggregated.jsonl
//	hsctl split --in raw.jsonl --train train.jsonl --val val.jsonl --test test.jsonl [--seed 42]
//	hsctl extract --in reply.txt
//	hsctl infer --in test.jsonl --out predictions.jsonl [--resume] [--limit N]
//	hsctl validate --in predictions.jsonl --out predictions_clean.jsonl
//	hsctl evaluate --gold test.jsonl --pred predictions_clean.jsonl [--mode auto|label|score] [--out report.json]
//	hsctl summarize --in train_aggregated.jsonl --out summary_stats.json
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "hsctl",
		Short:         "Hate speech rubric pipeline: aggregate, split, infer, validate, evaluate",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&globalFlags.configPath, "config", "", "YAML config (defaults apply when empty)")
	f.StringVar(&globalFlags.logLevel, "log-level", "", "override log.level from the config")

	root.AddCommand(newAggregateCmd())
	root.AddCommand(newSplitCmd())
	root.AddCommand(newExtractCmd())
	root.AddCommand(newInferCmd())
	root.AddCommand(newValidateCmd())
	root.AddCommand(newEvaluateCmd())
	root.AddCommand(newSummarizeCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
