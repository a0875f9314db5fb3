package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"hatespeech-annotation/internal/llm"
	"hatespeech-annotation/internal/models"
	"hatespeech-annotation/internal/scoring"
	"hatespeech-annotation/internal/service"
	"hatespeech-annotation/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newInferCmd() *cobra.Command {
	var flags struct {
		in     string
		out    string
		resume bool
		limit  int
	}

	cmd := &cobra.Command{
		Use:   "infer",
		Short: "Annotate comments with the configured model providers",
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
			if flags.limit > 0 && flags.limit < len(records) {
				records = records[:flags.limit]
			}

			var w *store.Writer[models.PredictionRecord]
			if flags.resume {
				records, err = pending(flags.out, records)
				if err != nil {
					return err
				}
				w, err = store.Append[models.PredictionRecord](flags.out)
			} else {
				w, err = store.Create[models.PredictionRecord](flags.out)
			}
			if err != nil {
				return err
			}
			defer w.Close()

			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to annotate")
				return nil
			}

			client, err := llm.NewMultiProviderClient(llm.MultiProviderConfig{
				Providers:   cfg.Providers,
				MaxFailures: cfg.MaxFailuresBeforeSwitch,
			}, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize LLM providers: %w", err)
			}
			defer client.Close()

			annotator, err := service.NewAnnotator(client, nil, nil, service.Options{
				Workers:     cfg.Inference.Workers,
				Timeout:     cfg.Inference.Timeout,
				CacheSize:   cfg.Inference.CacheSize,
				DeriveLabel: cfg.Inference.DeriveLabel,
				OverallMode: scoring.OverallMode(cfg.Evaluation.OverallMode),
			}, logger)
			if err != nil {
				return err
			}
			defer annotator.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			stats, err := annotator.RunBatch(ctx, records, func(seq int, p *models.StoredPrediction) error {
				if p.Outcome != models.OutcomeOK {
					logger.Warn("Null prediction",
						zap.Int("seq", seq),
						zap.String("comment_id", p.Record.ID.String()),
						zap.String("outcome", p.Outcome))
				}
				return w.Write(p.Record)
			})
			fmt.Fprintf(cmd.OutOrStdout(), "Annotated %d comments: %d ok, %d without JSON, %d provider errors\n",
				stats.Total, stats.OK, stats.NoJSON, stats.ProviderErrors)
			if errors.Is(err, context.Canceled) {
				fmt.Fprintln(cmd.OutOrStdout(), "Interrupted; rerun with --resume to continue")
			}
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.in, "in", "", "comment JSONL (required)")
	f.StringVar(&flags.out, "out", "", "raw prediction JSONL (required)")
	f.BoolVar(&flags.resume, "resume", false, "append to --out and skip comments already in it")
	f.IntVar(&flags.limit, "limit", 0, "annotate at most N comments")
	_ = cmd.MarkFlagRequired("in")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

// pending drops the records whose id already appears in the prediction file
// at path. A missing file means nothing is done yet.
func pending(path string, records []models.Annotation) ([]models.Annotation, error) {
	done, err := store.ReadJSONL[models.RawPredictionRecord](path)
	if errors.Is(err, os.ErrNotExist) {
		return records, nil
	}
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(done))
	for _, p := range done {
		seen[p.ID.Key()] = struct{}{}
	}

	out := records[:0:0]
	for _, r := range records {
		if _, ok := seen[r.CommentID.Key()]; !ok {
			out = append(out, r)
		}
	}
	return out, nil
}
