package domain

import "time"

// JobType enumerates supported media job categories.
type JobType string

const (
	JobTypeGenerateImage JobType = "generate-image"
	JobTypeEditImage     JobType = "edit-image"
	JobTypeGenerateVideo JobType = "generate-video"
	JobTypeAnalyzeMedia  JobType = "analyze-media"
)

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Active reports whether the job still occupies its originating card.
func (s JobStatus) Active() bool {
	return s == JobStatusQueued || s == JobStatusProcessing
}

// MediaJob encapsulates the lifecycle of one image/video/analysis request.
// OriginatingCardID is a lookup key only; the job does not own the card.
type MediaJob struct {
	ID                string         `json:"job_id"`
	Type              JobType        `json:"job_type"`
	Status            JobStatus      `json:"status"`
	Progress          int            `json:"progress"`
	Prompt            string         `json:"prompt"`
	OriginatingCardID string         `json:"originating_card_id,omitempty"`
	StackType         string         `json:"stack_type,omitempty"`
	Asset             *Asset         `json:"asset,omitempty"`
	Analysis          *MediaAnalysis `json:"analysis,omitempty"`
	Error             string         `json:"error,omitempty"`
	ErrorKind         ErrorKind      `json:"error_kind,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// MediaAnalysis is the structured payload of an analyze-media job.
type MediaAnalysis struct {
	Description string   `json:"description"`
	Insights    []string `json:"insights"`
	Tags        []string `json:"tags"`
}

// JobUpdate is a partial record merged into an existing job by ID. Zero
// values leave the stored field untouched.
type JobUpdate struct {
	ID                string
	Type              JobType
	Status            JobStatus
	Progress          int
	Prompt            string
	OriginatingCardID string
	StackType         string
	Asset             *Asset
	Analysis          *MediaAnalysis
	Error             string
	ErrorKind         ErrorKind
}
