package models

import (
	"time"

	"github.com/google/uuid"
)

// SyncJobStatus represents the lifecycle state of a sync job.
// Transitions are monotonic: queued -> running -> completed|failed.
type SyncJobStatus string

const (
	SyncJobStatusQueued    SyncJobStatus = "queued"
	SyncJobStatusRunning   SyncJobStatus = "running"
	SyncJobStatusCompleted SyncJobStatus = "completed"
	SyncJobStatusFailed    SyncJobStatus = "failed"
)

// Terminal reports whether s is a terminal job status
func (s SyncJobStatus) Terminal() bool {
	return s == SyncJobStatusCompleted || s == SyncJobStatusFailed
}

// SyncJobType distinguishes scheduler-created jobs from user-triggered ones
type SyncJobType string

const (
	SyncJobTypeScheduled SyncJobType = "scheduled"
	SyncJobTypeManual    SyncJobType = "manual"
)

// SyncJob is one execution attempt of fetching reviews for a source
type SyncJob struct {
	ID           uuid.UUID     `json:"id" db:"id"`
	SourceID     uuid.UUID     `json:"source_id" db:"source_id"`
	Type         SyncJobType   `json:"type" db:"job_type"`
	Status       SyncJobStatus `json:"status" db:"status"`
	FetchedCount int           `json:"fetched_count" db:"fetched_count"`
	NewCount     int           `json:"new_count" db:"new_count"`
	UpdatedCount int           `json:"updated_count" db:"updated_count"`
	ErrorMessage *string       `json:"error_message,omitempty" db:"error_message"`
	CreatedAt    time.Time     `json:"created_at" db:"created_at"`
	StartedAt    *time.Time    `json:"started_at,omitempty" db:"started_at"`
	CompletedAt  *time.Time    `json:"completed_at,omitempty" db:"completed_at"`
}
