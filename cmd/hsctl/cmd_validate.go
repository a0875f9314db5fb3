package main

import (
	"fmt"
	"os"

	"hatespeech-annotation/internal/models"
	"hatespeech-annotation/internal/normalize"
	"hatespeech-annotation/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newValidateCmd() *cobra.Command {
	var flags struct {
		in  string
		out string
	}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Normalize raw predictions to the schema; unreadable lines are skipped",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			f, err := os.Open(flags.in)
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", flags.in, err)
			}
			defer f.Close()

			raw, bad, err := store.DecodeJSONLLenient[models.RawPredictionRecord](f)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", flags.in, err)
			}
			for _, le := range bad {
				logger.Warn("Skipping malformed line", zap.Int("line", le.Line), zap.Error(le.Err))
			}

			out := make([]models.PredictionRecord, len(raw))
			nulls := 0
			for i, r := range raw {
				out[i] = normalize.Record(r)
				if out[i].Prediction == nil {
					nulls++
				}
			}
			if err := store.WriteJSONL(flags.out, out); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Validated %d predictions (%d null, %d malformed lines skipped)\n",
				len(out), nulls, len(bad))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.in, "in", "", "raw predictions JSONL (required)")
	f.StringVar(&flags.out, "out", "", "normalized predictions JSONL (required)")
	_ = cmd.MarkFlagRequired("in")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}
