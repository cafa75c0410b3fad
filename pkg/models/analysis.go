package models

import "time"

// JobStatus is the lifecycle state of an AnalysisJob. Status advances
// monotonically to a terminal state (completed or error).
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobError     JobStatus = "error"
)

// ResultStatus is the lifecycle state of a single AnalysisResult.
type ResultStatus string

const (
	ResultPending  ResultStatus = "pending"
	ResultComplete ResultStatus = "complete"
	ResultError    ResultStatus = "error"
)

// ReasoningEffort is the optional reasoning budget hint passed to providers
// that support it.
type ReasoningEffort string

const (
	ReasoningLow    ReasoningEffort = "low"
	ReasoningMedium ReasoningEffort = "medium"
	ReasoningHigh   ReasoningEffort = "high"
)

// AnalysisJob tracks one analysis run: selecting reviews, dispatching them
// to a provider, and persisting mapped results.
type AnalysisJob struct {
	ID             int64
	Name           string
	Status         JobStatus
	TotalReviews   int
	ProcessedCount int
	SettingsJSON   string // serialized start request, for audit/replay
	Error          *string
	CreatedAt      time.Time
	StartedAt      *time.Time
	CompletedAt    *time.Time
}

// AnalysisResult is one work unit: a review snapshot awaiting, then holding,
// a provider's mapped response. Terminal status is set exactly once.
type AnalysisResult struct {
	ID              int64
	JobID           int64
	ReviewID        *string // weak reference; review may be deleted independently
	GameName        string  // denormalized snapshot at creation time
	ReviewText      string  // snapshot, independent of Review's lifetime
	Prompt          string
	Model           string
	Provider        string
	ReasoningEffort ReasoningEffort

	AnalysisOutput *string // raw provider output, canonicalized to a string
	AnalysedReview *string // mapped content
	InputTokens    *int
	OutputTokens   *int
	TotalTokens    *int
	Status         ResultStatus
	Error          *string

	CreatedAt   time.Time
	CompletedAt *time.Time
}

// StartAnalysisRequest is the explicit DTO for starting an analysis job.
type StartAnalysisRequest struct {
	Name              string
	Filter            ReviewFilter
	Provider          string
	Model             string
	ReasoningEffort   ReasoningEffort
	ReviewsPerBatch   int
	BatchesPerRequest int
	PromptName        string
}
