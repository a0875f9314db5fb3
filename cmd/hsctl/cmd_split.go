package main

import (
	"fmt"

	"hatespeech-annotation/internal/aggregate"
	"hatespeech-annotation/internal/models"
	"hatespeech-annotation/internal/split"
	"hatespeech-annotation/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newSplitCmd() *cobra.Command {
	var flags struct {
		in         string
		train      string
		val        string
		test       string
		seed       uint64
		aggregated bool
	}

	cmd := &cobra.Command{
		Use:   "split",
		Short: "Split a dataset into train, validation and test files by comment",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			records, err := store.ReadJSONL[models.Annotation](flags.in)
			if err != nil {
				return err
			}

			seed := cfg.Split.Seed
			if cmd.Flags().Changed("seed") {
				seed = flags.seed
			}

			res, err := split.Split(records, cfg.SplitFractions(), seed)
			if err != nil {
				return err
			}

			outputs := []struct {
				path    string
				records []models.Annotation
			}{
				{flags.train, res.Train},
				{flags.val, res.Val},
				{flags.test, res.Test},
			}
			for _, o := range outputs {
				recs := o.records
				if flags.aggregated {
					if recs, _, err = aggregate.All(recs); err != nil {
						return fmt.Errorf("aggregate %s: %w", o.path, err)
					}
				}
				if err := store.WriteJSONL(o.path, recs); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d records\n", o.path, len(recs))
			}

			logger.Info("Split dataset",
				zap.Int("records", len(records)),
				zap.Uint64("seed", seed),
				zap.Bool("aggregated", flags.aggregated))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.in, "in", "", "annotation JSONL (required)")
	f.StringVar(&flags.train, "train", "train.jsonl", "train output")
	f.StringVar(&flags.val, "val", "val.jsonl", "validation output")
	f.StringVar(&flags.test, "test", "test.jsonl", "test output")
	f.Uint64Var(&flags.seed, "seed", 0, "shuffle seed (default split.seed from the config)")
	f.BoolVar(&flags.aggregated, "aggregate", false, "write one consensus record per comment")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}
