package main

import (
	"fmt"

	"hatespeech-annotation/internal/models"
	"hatespeech-annotation/internal/store"
	"hatespeech-annotation/internal/summary"

	"github.com/spf13/cobra"
)

func newSummarizeCmd() *cobra.Command {
	var flags struct {
		in  string
		out string
	}

	cmd := &cobra.Command{
		Use:   "summarize",
		Short: "Count labels, facet ratings and targets for charting",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			records, err := store.ReadJSONL[models.Annotation](flags.in)
			if err != nil {
				return err
			}
			if err := summary.Summarize(records).WriteFile(flags.out); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Summarized %d records into %s\n", len(records), flags.out)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.in, "in", "", "annotation JSONL (required)")
	f.StringVar(&flags.out, "out", "summary_stats.json", "summary JSON output")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}
