package main

import (
	"fmt"

	"hatespeech-annotation/internal/aggregate"
	"hatespeech-annotation/internal/models"
	"hatespeech-annotation/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newAggregateCmd() *cobra.Command {
	var flags struct {
		in  string
		out string
	}

	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Collapse multi-annotator records into one consensus record per comment",
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

			out, stats, err := aggregate.All(records)
			if err != nil {
				return fmt.Errorf("aggregate: %w", err)
			}
			if err := store.WriteJSONL(flags.out, out); err != nil {
				return err
			}

			logger.Info("Aggregated annotations",
				zap.String("in", flags.in),
				zap.String("out", flags.out),
				zap.Int("records", stats.Records),
				zap.Int("multi_annotated", stats.MultiGroup))
			fmt.Fprintf(cmd.OutOrStdout(), "Aggregated %d records into %d comments (%d with several annotators)\n",
				stats.Records, stats.Groups, stats.MultiGroup)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.in, "in", "", "annotation JSONL (required)")
	f.StringVar(&flags.out, "out", "", "consensus JSONL (required)")
	_ = cmd.MarkFlagRequired("in")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}
