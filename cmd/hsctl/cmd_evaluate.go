package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"hatespeech-annotation/internal/models"
	"hatespeech-annotation/internal/normalize"
	"hatespeech-annotation/internal/scoring"
	"hatespeech-annotation/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newEvaluateCmd() *cobra.Command {
	var flags struct {
		gold string
		pred string
		mode string
		out  string
	}

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score normalized predictions against gold records",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			modeName := cfg.Evaluation.OverallMode
			if flags.mode != "" {
				modeName = flags.mode
			}
			mode, err := scoring.ParseOverallMode(modeName)
			if err != nil {
				return err
			}

			gold, err := store.ReadJSONL[models.Annotation](flags.gold)
			if err != nil {
				return err
			}
			raw, err := store.ReadJSONL[models.RawPredictionRecord](flags.pred)
			if err != nil {
				return err
			}
			preds := make([]models.PredictionRecord, len(raw))
			for i, r := range raw {
				preds[i] = normalize.Record(r)
			}

			report, err := scoring.Score(gold, preds, scoring.Options{OverallMode: mode})
			if err != nil && !errors.Is(err, scoring.ErrNoValidPairs) {
				return err
			}
			if werr := report.WriteText(cmd.OutOrStdout()); werr != nil {
				return werr
			}
			if err != nil {
				return err
			}

			if flags.out != "" {
				data, err := json.MarshalIndent(report, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to encode report: %w", err)
				}
				if err := os.WriteFile(flags.out, append(data, '\n'), 0o644); err != nil {
					return fmt.Errorf("failed to write %s: %w", flags.out, err)
				}
			}

			logger.Info("Evaluation finished",
				zap.Int("included", report.Included),
				zap.Int("null_predictions", report.NullPredictions),
				zap.Int("unmatched", report.Unmatched))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.gold, "gold", "", "gold annotation JSONL (required)")
	f.StringVar(&flags.pred, "pred", "", "predictions JSONL, normalized before scoring (required)")
	f.StringVar(&flags.mode, "mode", "", "overall mode: auto, label or score (default evaluation.overall_mode)")
	f.StringVar(&flags.out, "out", "", "also write the report as JSON")
	_ = cmd.MarkFlagRequired("gold")
	_ = cmd.MarkFlagRequired("pred")
	return cmd
}
