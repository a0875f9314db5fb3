package handler

import (
	"errors"
	"net/http"

	"hatespeech-annotation/internal/extract"
	"hatespeech-annotation/internal/models"
	"hatespeech-annotation/internal/normalize"
	"hatespeech-annotation/internal/repository"
	"hatespeech-annotation/internal/schema"
	"hatespeech-annotation/internal/scoring"
	"hatespeech-annotation/internal/service"
	"hatespeech-annotation/internal/summary"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Handler handles HTTP requests
type Handler struct {
	annotator *service.Annotator
	logger    *zap.Logger
}

// NewHandler creates a new API handler
func NewHandler(annotator *service.Annotator, logger *zap.Logger) *Handler {
	return &Handler{
		annotator: annotator,
		logger:    logger,
	}
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		// Engine
		api.POST("/extract", h.Extract)
		api.POST("/aggregate", h.Aggregate)
		api.POST("/evaluate", h.Evaluate)
		api.POST("/summary", h.Summary)
		api.GET("/schema", h.Schema)

		// Inference
		api.POST("/annotate/single", h.AnnotateSingle)
		api.POST("/annotate/batch", h.AnnotateBatch)
		api.GET("/annotate/jobs/:id", h.GetJobStatus)
		api.GET("/annotate/jobs/:id/predictions", h.GetJobPredictions)
		api.GET("/annotate/stats", h.GetStats)
	}

	r.GET("/health", h.HealthCheck)
}

// RegisterMetrics exposes the Prometheus registry on /metrics
func RegisterMetrics(r *gin.Engine, gatherer prometheus.Gatherer) {
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
}

// Extract pulls the first JSON object out of raw model output and
// normalizes it
func (h *Handler) Extract(c *gin.Context) {
	var req models.ExtractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	obj, err := extract.Extract(req.Text)
	if errors.Is(err, extract.ErrNotFound) {
		c.JSON(http.StatusOK, gin.H{"found": false, "prediction": nil})
		return
	}

	p := normalize.Normalize(obj)
	normalize.DeriveLabel(&p)
	c.JSON(http.StatusOK, gin.H{"found": true, "prediction": p})
}

// Aggregate collapses annotations into one consensus record per comment
func (h *Handler) Aggregate(c *gin.Context) {
	var req models.AggregateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	records, stats, err := h.annotator.Aggregate(req.Annotations)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"records": records,
		"stats":   stats,
	})
}

// Evaluate normalizes the predictions and scores them against gold records
func (h *Handler) Evaluate(c *gin.Context) {
	var req models.EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// an empty mode leaves the configured one in effect
	var mode scoring.OverallMode
	if req.OverallMode != "" {
		m, err := scoring.ParseOverallMode(req.OverallMode)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		mode = m
	}

	preds := make([]models.PredictionRecord, len(req.Predictions))
	for i, raw := range req.Predictions {
		preds[i] = normalize.Record(raw)
	}

	result, err := h.annotator.Evaluate(req.Gold, preds, mode)
	switch {
	case errors.Is(err, scoring.ErrNoValidPairs):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":  err.Error(),
			"id":     result.ID,
			"report": result.Report,
		})
	case err != nil:
		h.logger.Error("Failed to evaluate", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "evaluation failed"})
	default:
		c.JSON(http.StatusOK, result)
	}
}

// Summary counts labels, facet ratings and targets
func (h *Handler) Summary(c *gin.Context) {
	var req models.SummaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, summary.Summarize(req.Annotations))
}

// Schema returns the label, facet and target catalogs
func (h *Handler) Schema(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version": schema.Version,
		"labels":  schema.Labels,
		"facets":  schema.Facets,
		"targets": schema.Targets,
		"thresholds": gin.H{
			"hateful_above":    schema.HatefulAbove,
			"supportive_below": schema.SupportiveBelow,
		},
	})
}

// AnnotateSingle runs inference on one comment. A model failure is not an
// HTTP error: the record comes back with a null prediction.
func (h *Handler) AnnotateSingle(c *gin.Context) {
	var req models.AnnotationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rec := h.annotator.Predict(c.Request.Context(), models.Annotation{CommentID: req.CommentID, Text: req.Text})
	c.JSON(http.StatusOK, rec)
}

// AnnotateBatch starts an inference job
func (h *Handler) AnnotateBatch(c *gin.Context) {
	var req models.BatchAnnotationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	jobID, err := h.annotator.StartJob(req.Annotations)
	if err != nil {
		h.logger.Error("Failed to start batch job", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start batch job"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"job_id":  jobID,
		"status":  models.JobPending,
		"message": "Batch inference started. Check /api/v1/annotate/jobs/" + jobID + " for status",
	})
}

// GetJobStatus returns batch job status
func (h *Handler) GetJobStatus(c *gin.Context) {
	job, err := h.annotator.GetJobStatus(c.Param("id"))
	if err != nil {
		h.jobError(c, err)
		return
	}

	c.JSON(http.StatusOK, job)
}

// GetJobPredictions returns the predictions stored for a job
func (h *Handler) GetJobPredictions(c *gin.Context) {
	preds, err := h.annotator.GetJobPredictions(c.Param("id"))
	if err != nil {
		h.jobError(c, err)
		return
	}

	records := make([]models.PredictionRecord, len(preds))
	for i, p := range preds {
		records[i] = p.Record
	}

	c.JSON(http.StatusOK, gin.H{
		"predictions": records,
		"total":       len(records),
	})
}

func (h *Handler) jobError(c *gin.Context, err error) {
	if errors.Is(err, repository.ErrJobNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	h.logger.Error("Failed to read job", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read job"})
}

// GetStats returns prediction statistics
func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.annotator.GetStats()
	if err != nil {
		h.logger.Error("Failed to get stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get stats"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// HealthCheck returns service health
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"service":        "hatespeech-annotation",
		"schema_version": schema.Version,
	})
}
