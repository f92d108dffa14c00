package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	JobQueued    = "queued"
	JobRunning   = "running"
	JobSucceeded = "succeeded"
	JobFailed    = "failed"
	JobDead      = "dead"
)

// JobRun is a queued background task. Rows are claimed by the worker with a row lock.
type JobRun struct {
	ID          uuid.UUID      `json:"id" gorm:"type:varchar(36);primaryKey"`
	JobType     string         `json:"job_type" gorm:"size:64;index;not null"`
	RefID       string         `json:"ref_id" gorm:"size:64;index"` // e.g. "certificate:12"
	Status      string         `json:"status" gorm:"size:20;index;not null"`
	Payload     datatypes.JSON `json:"payload"`
	Attempts    int            `json:"attempts" gorm:"not null"`
	LastError   string         `json:"last_error" gorm:"type:text"`
	LastErrorAt *time.Time     `json:"last_error_at"`
	LockedAt    *time.Time     `json:"locked_at"`
	HeartbeatAt *time.Time     `json:"heartbeat_at"`
	FinishedAt  *time.Time     `json:"finished_at"`
	CreatedAt   time.Time      `json:"created_at" gorm:"index"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
