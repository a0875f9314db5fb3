package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"hatespeech-annotation/internal/aggregate"
	"hatespeech-annotation/internal/extract"
	"hatespeech-annotation/internal/llm"
	"hatespeech-annotation/internal/metrics"
	"hatespeech-annotation/internal/models"
	"hatespeech-annotation/internal/normalize"
	"hatespeech-annotation/internal/repository"
	"hatespeech-annotation/internal/scoring"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrNoRepository is returned by operations that need persistence when the
// annotator runs without a database.
var ErrNoRepository = errors.New("annotator has no repository")

// LLMClient is the model-invocation collaborator
type LLMClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Close() error
	GetModelInfo() map[string]interface{}
}

// Options tune inference and evaluation
type Options struct {
	Workers     int
	Timeout     time.Duration
	CacheSize   int
	DeriveLabel bool
	OverallMode scoring.OverallMode
}

// BatchStats counts the outcomes of one batch run
type BatchStats struct {
	Total          int `json:"total"`
	OK             int `json:"ok"`
	NoJSON         int `json:"no_json"`
	ProviderErrors int `json:"provider_errors"`
}

func (s *BatchStats) add(outcome string) {
	s.Total++
	switch outcome {
	case models.OutcomeOK:
		s.OK++
	case models.OutcomeNoJSON:
		s.NoJSON++
	default:
		s.ProviderErrors++
	}
}

// SinkFunc receives predictions in input order. seq is the record's index in
// the batch.
type SinkFunc func(seq int, p *models.StoredPrediction) error

// EvaluationResult is a scoring report and the id it was stored under
type EvaluationResult struct {
	ID     int64           `json:"id,omitempty"`
	Report *scoring.Report `json:"report"`
}

type cachedPrediction struct {
	raw        string
	prediction models.Prediction
}

// Annotator runs the inference pipeline and scoring
type Annotator struct {
	llmClient LLMClient
	repo      *repository.AnnotationRepository
	metrics   *metrics.Metrics
	cache     *lru.Cache[string, cachedPrediction]
	opts      Options
	logger    *zap.Logger

	// background jobs outlive the request that started them
	jobCtx    context.Context
	cancelJob context.CancelFunc
	jobs      sync.WaitGroup
}

// NewAnnotator creates a new annotator service. repo and m may be nil.
func NewAnnotator(
	llmClient LLMClient,
	repo *repository.AnnotationRepository,
	m *metrics.Metrics,
	opts Options,
	logger *zap.Logger,
) (*Annotator, error) {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}

	a := &Annotator{
		llmClient: llmClient,
		repo:      repo,
		metrics:   m,
		opts:      opts,
		logger:    logger,
	}

	if opts.CacheSize > 0 {
		cache, err := lru.New[string, cachedPrediction](opts.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create prediction cache: %w", err)
		}
		a.cache = cache
	}

	a.jobCtx, a.cancelJob = context.WithCancel(context.Background())
	return a, nil
}

// Predict produces the prediction record of one comment. Provider failures
// and replies without a JSON object yield a record with a nil prediction;
// Predict itself never fails.
func (a *Annotator) Predict(ctx context.Context, rec models.Annotation) models.PredictionRecord {
	return a.predict(ctx, rec).Record
}

func (a *Annotator) predict(ctx context.Context, rec models.Annotation) *models.StoredPrediction {
	start := time.Now()
	sp := &models.StoredPrediction{Record: models.PredictionRecord{ID: rec.CommentID}}

	if a.cache != nil {
		if hit, ok := a.cache.Get(rec.Text); ok {
			a.metrics.RecordCacheHit()
			p := clonePrediction(hit.prediction)
			sp.Record.Prediction = &p
			sp.RawText = hit.raw
			sp.Outcome = models.OutcomeOK
			a.metrics.RecordPrediction(sp.Outcome, time.Since(start).Seconds())
			return sp
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, a.opts.Timeout)
	defer cancel()

	raw, err := a.llmClient.Generate(callCtx, llm.BuildPrompt(rec.Text))
	switch {
	case err != nil:
		sp.Outcome = models.OutcomeProviderError
		a.metrics.RecordProviderError(errorType(err))
		a.logger.Warn("Model invocation failed",
			zap.Stringer("comment_id", rec.CommentID),
			zap.Error(err))
	default:
		sp.RawText = raw
		obj, err := extract.Extract(raw)
		if err != nil {
			sp.Outcome = models.OutcomeNoJSON
			a.logger.Debug("No JSON object in model output",
				zap.Stringer("comment_id", rec.CommentID),
				zap.Int("length", len(raw)))
			break
		}

		p := normalize.Normalize(obj)
		if a.opts.DeriveLabel {
			normalize.DeriveLabel(&p)
		}
		sp.Record.Prediction = &p
		sp.Outcome = models.OutcomeOK

		if a.cache != nil {
			a.cache.Add(rec.Text, cachedPrediction{raw: raw, prediction: clonePrediction(p)})
		}
	}

	a.metrics.RecordPrediction(sp.Outcome, time.Since(start).Seconds())
	return sp
}

func clonePrediction(p models.Prediction) models.Prediction {
	p.Facets = maps.Clone(p.Facets)
	p.Targets = maps.Clone(p.Targets)
	return p
}

func errorType(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case llm.IsRateLimitError(err):
		return "rate_limit"
	default:
		return "other"
	}
}

// RunBatch predicts every record with bounded parallelism and hands the
// results to sink in input order. A sink error stops the batch. When ctx is
// cancelled, sink only sees the contiguous prefix that finished before it.
func (a *Annotator) RunBatch(ctx context.Context, records []models.Annotation, sink SinkFunc) (BatchStats, error) {
	var (
		stats   BatchStats
		mu      sync.Mutex
		results = make([]*models.StoredPrediction, len(records))
		next    int
	)

	// flush emits every finished prediction that has no gap before it
	flush := func(seq int, sp *models.StoredPrediction) error {
		mu.Lock()
		defer mu.Unlock()

		results[seq] = sp
		for next < len(results) && results[next] != nil {
			stats.add(results[next].Outcome)
			if sink != nil {
				if err := sink(next, results[next]); err != nil {
					return fmt.Errorf("failed to write prediction %d: %w", next, err)
				}
			}
			results[next] = nil
			next++
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Workers)

	for i, rec := range records {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			sp := a.predict(gctx, rec)
			// records interrupted by cancellation are not emitted
			if sp.Outcome == models.OutcomeProviderError && gctx.Err() != nil {
				return nil
			}
			return flush(i, sp)
		})
	}

	if err := g.Wait(); err != nil {
		return stats, err
	}
	if err := ctx.Err(); err != nil {
		return stats, err
	}

	a.logger.Info("Batch completed",
		zap.Int("total", stats.Total),
		zap.Int("ok", stats.OK),
		zap.Int("no_json", stats.NoJSON),
		zap.Int("provider_errors", stats.ProviderErrors))

	return stats, nil
}

// StartJob creates a job and runs the batch in the background. Predictions
// are stored as they complete.
func (a *Annotator) StartJob(records []models.Annotation) (string, error) {
	if a.repo == nil {
		return "", ErrNoRepository
	}

	job := &models.Job{
		ID:         uuid.New().String(),
		Status:     models.JobPending,
		TotalCount: len(records),
		CreatedAt:  time.Now(),
	}
	if err := a.repo.CreateJob(job); err != nil {
		return "", fmt.Errorf("failed to create job: %w", err)
	}

	a.jobs.Add(1)
	go func() {
		defer a.jobs.Done()
		a.processJob(job, records)
	}()

	return job.ID, nil
}

func (a *Annotator) processJob(job *models.Job, records []models.Annotation) {
	logger := a.logger.With(zap.String("job_id", job.ID))

	job.Status = models.JobProcessing
	if err := a.repo.UpdateJob(job); err != nil {
		logger.Error("Failed to update job", zap.Error(err))
	}

	_, err := a.RunBatch(a.jobCtx, records, func(seq int, sp *models.StoredPrediction) error {
		sp.JobID = job.ID
		if err := a.repo.SavePrediction(sp, seq); err != nil {
			return err
		}
		job.ProcessedCount++
		if sp.Outcome != models.OutcomeOK {
			job.FailedCount++
		}
		return a.repo.UpdateJob(job)
	})

	completedAt := time.Now()
	job.CompletedAt = &completedAt
	job.Status = models.JobCompleted
	if err != nil {
		job.Status = models.JobFailed
		job.ErrorMessage = err.Error()
		logger.Error("Inference job failed", zap.Error(err))
	}
	if err := a.repo.UpdateJob(job); err != nil {
		logger.Error("Failed to update job", zap.Error(err))
	}

	logger.Info("Inference job finished",
		zap.String("status", job.Status),
		zap.Int("processed", job.ProcessedCount),
		zap.Int("failed", job.FailedCount))
}

// GetJobStatus returns job status
func (a *Annotator) GetJobStatus(jobID string) (*models.Job, error) {
	if a.repo == nil {
		return nil, ErrNoRepository
	}
	return a.repo.GetJob(jobID)
}

// GetJobPredictions returns the stored predictions of a job in input order
func (a *Annotator) GetJobPredictions(jobID string) ([]*models.StoredPrediction, error) {
	if a.repo == nil {
		return nil, ErrNoRepository
	}
	if _, err := a.repo.GetJob(jobID); err != nil {
		return nil, err
	}
	return a.repo.GetPredictions(jobID)
}

// Aggregate groups records by comment and collapses each group
func (a *Annotator) Aggregate(records []models.Annotation) ([]models.Annotation, aggregate.Stats, error) {
	out, stats, err := aggregate.All(records)
	if err != nil {
		return nil, stats, err
	}
	a.metrics.RecordAggregated(len(out))
	a.logger.Info("Aggregated annotations",
		zap.Int("records", stats.Records),
		zap.Int("groups", stats.Groups),
		zap.Int("multi_annotator_groups", stats.MultiGroup))
	return out, stats, nil
}

// Evaluate scores predictions against gold records and stores the report.
// An empty mode falls back to the configured one. With no valid pairs the
// result still carries the report and the error wraps
// scoring.ErrNoValidPairs.
func (a *Annotator) Evaluate(gold []models.Annotation, preds []models.PredictionRecord, mode scoring.OverallMode) (*EvaluationResult, error) {
	if mode == "" {
		mode = a.opts.OverallMode
	}

	report, err := scoring.Score(gold, preds, scoring.Options{OverallMode: mode})
	switch {
	case errors.Is(err, scoring.ErrNoValidPairs):
		a.metrics.RecordEvaluation("no_valid_pairs", report.Included, report.NullPredictions, report.Unmatched)
	case err != nil:
		a.metrics.RecordEvaluation("error", 0, 0, 0)
		return nil, err
	default:
		a.metrics.RecordEvaluation("success", report.Included, report.NullPredictions, report.Unmatched)
	}

	a.logger.Info("Evaluation finished",
		zap.Int("predictions", report.Predictions),
		zap.Int("included", report.Included),
		zap.Int("null_predictions", report.NullPredictions),
		zap.Int("unmatched", report.Unmatched))

	result := &EvaluationResult{Report: report}
	if a.repo != nil {
		data, merr := json.Marshal(report)
		if merr != nil {
			return nil, fmt.Errorf("failed to encode report: %w", merr)
		}
		ev := &models.Evaluation{
			Included:        report.Included,
			NullPredictions: report.NullPredictions,
			Unmatched:       report.Unmatched,
			Report:          data,
		}
		if serr := a.repo.SaveEvaluation(ev); serr != nil {
			a.logger.Error("Failed to store evaluation", zap.Error(serr))
		} else {
			result.ID = ev.ID
		}
	}

	return result, err
}

// GetStats returns prediction statistics and the active model
func (a *Annotator) GetStats() (map[string]interface{}, error) {
	stats := map[string]interface{}{}
	if a.repo != nil {
		s, err := a.repo.GetStats()
		if err != nil {
			return nil, err
		}
		stats = s
	}
	stats["model"] = a.llmClient.GetModelInfo()
	return stats, nil
}

// Close stops background jobs and waits for them to finish
func (a *Annotator) Close() {
	a.cancelJob()
	a.jobs.Wait()
}
