package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"hatespeech-annotation/internal/models"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// ErrJobNotFound is returned when no job has the requested id.
var ErrJobNotFound = errors.New("job not found")

// ErrEvaluationNotFound is returned when no evaluation has the requested id.
var ErrEvaluationNotFound = errors.New("evaluation not found")

// AnnotationRepository stores inference jobs, their predictions and
// evaluation results.
type AnnotationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAnnotationRepository creates a new repository
func NewAnnotationRepository(dbPath string, logger *zap.Logger) (*AnnotationRepository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite allows one writer; workers share a single connection
	db.SetMaxOpenConns(1)

	repo := &AnnotationRepository{
		db:     db,
		logger: logger,
	}

	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logger.Info("Annotation repository initialized", zap.String("db_path", dbPath))

	return repo, nil
}

func (r *AnnotationRepository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS predictions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		job_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		comment_id TEXT NOT NULL,
		raw_text TEXT,
		prediction_json TEXT NOT NULL,
		outcome TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_predictions_job ON predictions(job_id, seq);
	CREATE INDEX IF NOT EXISTS idx_predictions_outcome ON predictions(outcome);

	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		total_count INTEGER NOT NULL,
		processed_count INTEGER DEFAULT 0,
		failed_count INTEGER DEFAULT 0,
		created_at DATETIME NOT NULL,
		completed_at DATETIME,
		error_message TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_job_status ON jobs(status);

	CREATE TABLE IF NOT EXISTS evaluations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		included INTEGER NOT NULL,
		null_predictions INTEGER NOT NULL,
		unmatched INTEGER NOT NULL,
		report_json TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);
	`

	_, err := r.db.Exec(schema)
	return err
}

// SavePrediction stores one prediction of a job. seq is the record's
// position in the job input and orders the predictions on read.
func (r *AnnotationRepository) SavePrediction(p *models.StoredPrediction, seq int) error {
	id, err := json.Marshal(p.Record.ID)
	if err != nil {
		return fmt.Errorf("failed to encode comment id: %w", err)
	}
	pred, err := json.Marshal(p.Record.Prediction)
	if err != nil {
		return fmt.Errorf("failed to encode prediction: %w", err)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO predictions (job_id, seq, comment_id, raw_text, prediction_json, outcome, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := r.db.Exec(query, p.JobID, seq, string(id), p.RawText, string(pred), p.Outcome, p.CreatedAt); err != nil {
		return fmt.Errorf("failed to save prediction: %w", err)
	}
	return nil
}

// GetPredictions returns the predictions of a job in input order.
func (r *AnnotationRepository) GetPredictions(jobID string) ([]*models.StoredPrediction, error) {
	query := `
		SELECT job_id, comment_id, raw_text, prediction_json, outcome, created_at
		FROM predictions
		WHERE job_id = ?
		ORDER BY seq
	`

	rows, err := r.db.Query(query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query predictions: %w", err)
	}
	defer rows.Close()

	var out []*models.StoredPrediction
	for rows.Next() {
		var (
			p        models.StoredPrediction
			id, pred string
			raw      sql.NullString
		)
		if err := rows.Scan(&p.JobID, &id, &raw, &pred, &p.Outcome, &p.CreatedAt); err != nil {
			r.logger.Error("Failed to scan prediction", zap.Error(err))
			continue
		}
		if err := json.Unmarshal([]byte(id), &p.Record.ID); err != nil {
			r.logger.Error("Failed to decode comment id", zap.String("comment_id", id), zap.Error(err))
			continue
		}
		if err := json.Unmarshal([]byte(pred), &p.Record.Prediction); err != nil {
			r.logger.Error("Failed to decode prediction", zap.Error(err))
			continue
		}
		p.RawText = raw.String
		out = append(out, &p)
	}

	return out, rows.Err()
}

// GetStats counts stored predictions by outcome.
func (r *AnnotationRepository) GetStats() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var total int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM predictions").Scan(&total); err != nil {
		return nil, err
	}
	stats["total"] = total

	rows, err := r.db.Query(`SELECT outcome, COUNT(*) FROM predictions GROUP BY outcome`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byOutcome := make(map[string]int)
	for rows.Next() {
		var outcome string
		var count int
		if err := rows.Scan(&outcome, &count); err != nil {
			continue
		}
		byOutcome[outcome] = count
	}
	stats["by_outcome"] = byOutcome

	var evaluations int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM evaluations").Scan(&evaluations); err != nil {
		return nil, err
	}
	stats["evaluations"] = evaluations

	return stats, rows.Err()
}

// CreateJob creates a new inference job
func (r *AnnotationRepository) CreateJob(job *models.Job) error {
	query := `
		INSERT INTO jobs (id, status, total_count, created_at)
		VALUES (?, ?, ?, ?)
	`

	if _, err := r.db.Exec(query, job.ID, job.Status, job.TotalCount, job.CreatedAt); err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

// UpdateJob updates job progress
func (r *AnnotationRepository) UpdateJob(job *models.Job) error {
	query := `
		UPDATE jobs
		SET status = ?, processed_count = ?, failed_count = ?, completed_at = ?, error_message = ?
		WHERE id = ?
	`

	if _, err := r.db.Exec(query, job.Status, job.ProcessedCount, job.FailedCount, job.CompletedAt, job.ErrorMessage, job.ID); err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID
func (r *AnnotationRepository) GetJob(jobID string) (*models.Job, error) {
	query := `
		SELECT id, status, total_count, processed_count, failed_count, created_at, completed_at, error_message
		FROM jobs
		WHERE id = ?
	`

	job := &models.Job{}
	var errMsg sql.NullString
	err := r.db.QueryRow(query, jobID).Scan(
		&job.ID,
		&job.Status,
		&job.TotalCount,
		&job.ProcessedCount,
		&job.FailedCount,
		&job.CreatedAt,
		&job.CompletedAt,
		&errMsg,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	job.ErrorMessage = errMsg.String
	return job, nil
}

// SaveEvaluation stores a scoring run and sets its ID.
func (r *AnnotationRepository) SaveEvaluation(ev *models.Evaluation) error {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO evaluations (included, null_predictions, unmatched, report_json, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	result, err := r.db.Exec(query, ev.Included, ev.NullPredictions, ev.Unmatched, string(ev.Report), ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save evaluation: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	ev.ID = id
	return nil
}

// GetEvaluation retrieves a stored scoring run.
func (r *AnnotationRepository) GetEvaluation(id int64) (*models.Evaluation, error) {
	query := `
		SELECT id, included, null_predictions, unmatched, report_json, created_at
		FROM evaluations
		WHERE id = ?
	`

	ev := &models.Evaluation{}
	var report string
	err := r.db.QueryRow(query, id).Scan(&ev.ID, &ev.Included, &ev.NullPredictions, &ev.Unmatched, &report, &ev.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEvaluationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get evaluation: %w", err)
	}

	ev.Report = json.RawMessage(report)
	return ev, nil
}

// Close closes the database connection
func (r *AnnotationRepository) Close() error {
	return r.db.Close()
}
