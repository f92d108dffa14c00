package jobs

import (
	"context"
	"encoding/json"
	"time"

	"learnhub/models"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var liveStatuses = []string{models.JobQueued, models.JobRunning, models.JobFailed}

// Queue stores jobs in the job_runs table. Enqueueing on the caller's transaction makes the job commit
// or roll back together with the state change that produced it.
type Queue struct {
	db *gorm.DB
}

func NewQueue(db *gorm.DB) *Queue {
	return &Queue{db: db}
}

// Enqueue inserts a queued job. tx may be nil.
func (q *Queue) Enqueue(ctx context.Context, tx *gorm.DB, jobType, refID string, payload interface{}) (*models.JobRun, error) {
	transaction := tx
	if transaction == nil {
		transaction = q.db
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "encode job payload")
	}

	now := time.Now()
	job := &models.JobRun{
		ID:        uuid.New(),
		JobType:   jobType,
		RefID:     refID,
		Status:    models.JobQueued,
		Payload:   datatypes.JSON(raw),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := transaction.WithContext(ctx).Create(job).Error; err != nil {
		return nil, errors.Wrapf(err, "enqueue %s", jobType)
	}
	return job, nil
}

// HasLiveJob reports whether refID has a job that may still run.
func (q *Queue) HasLiveJob(ctx context.Context, jobType, refID string) (bool, error) {
	var count int64
	err := q.db.WithContext(ctx).Model(&models.JobRun{}).
		Where("job_type = ? AND ref_id = ? AND status IN ?", jobType, refID, liveStatuses).
		Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "count live jobs")
	}
	return count > 0, nil
}

// BlockedRefs lists the refs of jobType that must not get another job: refs with a job that may
// still run, and refs whose jobs have gone dead maxDead times or more. maxDead <= 0 disables the second check.
func (q *Queue) BlockedRefs(ctx context.Context, jobType string, maxDead int) ([]string, error) {
	db := q.db.WithContext(ctx)

	var refs []string
	if err := db.Model(&models.JobRun{}).
		Distinct("ref_id").
		Where("job_type = ? AND status IN ?", jobType, liveStatuses).
		Pluck("ref_id", &refs).Error; err != nil {
		return nil, errors.Wrap(err, "list live refs")
	}
	if maxDead <= 0 {
		return refs, nil
	}

	var exhausted []string
	if err := db.Model(&models.JobRun{}).
		Where("job_type = ? AND status = ?", jobType, models.JobDead).
		Group("ref_id").
		Having("COUNT(*) >= ?", maxDead).
		Pluck("ref_id", &exhausted).Error; err != nil {
		return nil, errors.Wrap(err, "list exhausted refs")
	}
	return append(refs, exhausted...), nil
}

// Get loads a job by id.
func (q *Queue) Get(ctx context.Context, id uuid.UUID) (*models.JobRun, error) {
	var job models.JobRun
	if err := q.db.WithContext(ctx).Where("id = ?", id).First(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}
