package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"
)

// CommentID identifies a comment across annotations and predictions. The
// datasets use both JSON strings and JSON integers, so the original form is
// kept for re-encoding while Key gives the form used for matching.
type CommentID struct {
	value   string
	numeric bool
}

// StringID returns a string comment id.
func StringID(s string) CommentID {
	return CommentID{value: s}
}

// IntID returns a numeric comment id.
func IntID(n int64) CommentID {
	return CommentID{value: strconv.FormatInt(n, 10), numeric: true}
}

// String returns the id as written in the source record.
func (id CommentID) String() string {
	return id.value
}

// IsZero reports whether the id was absent or null.
func (id CommentID) IsZero() bool {
	return id.value == "" && !id.numeric
}

// Key returns the matching form of the id. Integer literals are used as
// written. Fractional or exponent literals with an integral value are
// rewritten exactly, so 7, 7.0, 7e0 and "7" all match while large integers
// never collide.
func (id CommentID) Key() string {
	if !id.numeric || !strings.ContainsAny(id.value, ".eE") {
		return id.value
	}
	if r, ok := new(big.Rat).SetString(id.value); ok && r.IsInt() {
		return r.Num().String()
	}
	return id.value
}

// MarshalJSON writes numeric ids bare and string ids quoted.
func (id CommentID) MarshalJSON() ([]byte, error) {
	if id.IsZero() {
		return []byte("null"), nil
	}
	if id.numeric {
		return []byte(id.value), nil
	}
	return json.Marshal(id.value)
}

// UnmarshalJSON accepts a JSON string, a JSON number or null.
func (id *CommentID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*id = CommentID{}
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("comment id: %w", err)
		}
		*id = CommentID{value: s}
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("comment id must be a string or number, got %s", data)
		}
		*id = CommentID{value: n.String(), numeric: true}
		return nil
	}
}

// Overall is the sentiment part of an annotation.
type Overall struct {
	Label           string  `json:"label"`
	HateSpeechScore float64 `json:"hate_speech_score"`
}

// Annotation is one judgment of one comment. Consensus records produced by
// the aggregator have the same shape.
type Annotation struct {
	CommentID CommentID       `json:"comment_id"`
	Text      string          `json:"text"`
	Overall   Overall         `json:"overall"`
	Facets    map[string]int  `json:"facets"`
	Targets   map[string]bool `json:"targets"`
}

// PredictionOverall carries the model's continuous score and, when the
// pipeline derived or the model emitted one, a label.
type PredictionOverall struct {
	Score float64 `json:"score"`
	Label string  `json:"label,omitempty"`
}

// Prediction is a normalized, schema-conformant model judgment.
type Prediction struct {
	Overall PredictionOverall `json:"overall"`
	Facets  map[string]int    `json:"facets"`
	Targets map[string]bool   `json:"targets"`
}

// PredictionRecord is one line of a predictions file. A nil Prediction means
// the model output held no usable JSON object.
type PredictionRecord struct {
	ID         CommentID   `json:"id"`
	Prediction *Prediction `json:"prediction"`
}

// RawPredictionRecord is a predictions line before normalization.
type RawPredictionRecord struct {
	ID         CommentID       `json:"id"`
	Prediction json.RawMessage `json:"prediction"`
}

// Job statuses
const (
	JobPending    = "pending"
	JobProcessing = "processing"
	JobCompleted  = "completed"
	JobFailed     = "failed"
)

// Job represents an async inference job
type Job struct {
	ID             string     `json:"id" db:"id"`
	Status         string     `json:"status" db:"status"`
	TotalCount     int        `json:"total_count" db:"total_count"`
	ProcessedCount int        `json:"processed_count" db:"processed_count"`
	FailedCount    int        `json:"failed_count" db:"failed_count"` // null predictions
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	ErrorMessage   string     `json:"error_message,omitempty" db:"error_message"`
}

// AnnotationRequest for single comment inference
type AnnotationRequest struct {
	CommentID CommentID `json:"comment_id"`
	Text      string    `json:"text" binding:"required"`
}

// BatchAnnotationRequest for multiple comments
type BatchAnnotationRequest struct {
	Annotations []Annotation `json:"annotations" binding:"required,min=1"`
}

// ExtractRequest carries raw model output
type ExtractRequest struct {
	Text string `json:"text" binding:"required"`
}

// AggregateRequest carries ungrouped annotations
type AggregateRequest struct {
	Annotations []Annotation `json:"annotations" binding:"required,min=1"`
}

// EvaluateRequest carries a gold set and predictions to score
type EvaluateRequest struct {
	Gold        []Annotation          `json:"gold" binding:"required"`
	Predictions []RawPredictionRecord `json:"predictions" binding:"required"`
	OverallMode string                `json:"overall_mode"`
}

// SummaryRequest carries records to count
type SummaryRequest struct {
	Annotations []Annotation `json:"annotations" binding:"required"`
}

// Prediction outcomes recorded per comment
const (
	OutcomeOK            = "ok"
	OutcomeNoJSON        = "no_json"
	OutcomeProviderError = "provider_error"
)

// StoredPrediction is one inference result as persisted for a job.
type StoredPrediction struct {
	JobID     string           `json:"job_id"`
	Record    PredictionRecord `json:"record"`
	RawText   string           `json:"raw_text,omitempty"`
	Outcome   string           `json:"outcome"`
	CreatedAt time.Time        `json:"created_at"`
}

// Evaluation is a persisted scoring run.
type Evaluation struct {
	ID              int64           `json:"id"`
	Included        int             `json:"included"`
	NullPredictions int             `json:"null_predictions"`
	Unmatched       int             `json:"unmatched"`
	Report          json.RawMessage `json:"report"`
	CreatedAt       time.Time       `json:"created_at"`
}
