package jobs

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"learnhub/logger"
	"learnhub/models"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Handler runs one job. Returning an error schedules a retry unless it is Permanent.
type Handler func(ctx context.Context, job *models.JobRun) error

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks an error that retrying cannot fix. The job goes straight to dead.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p *permanentError
	return stderrors.As(err, &p)
}

type WorkerOptions struct {
	Concurrency  int
	PollInterval time.Duration
	MaxAttempts  int
	RetryDelay   time.Duration
	StaleAfter   time.Duration
}

// Worker polls job_runs and dispatches claimed jobs to registered handlers.
type Worker struct {
	db       *gorm.DB
	log      *logger.Logger
	handlers map[string]Handler
	opts     WorkerOptions
}

func NewWorker(db *gorm.DB, baseLog *logger.Logger, opts WorkerOptions) *Worker {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 5
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 30 * time.Minute
	}
	return &Worker{
		db:       db,
		log:      baseLog.With("component", "pdf-worker"),
		handlers: map[string]Handler{},
		opts:     opts,
	}
}

func (w *Worker) Register(jobType string, h Handler) {
	w.handlers[jobType] = h
}

// Run starts Concurrency polling loops and blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("Starting job worker pool", "concurrency", w.opts.Concurrency)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < w.opts.Concurrency; i++ {
		workerID := i + 1
		g.Go(func() error {
			w.runLoop(gctx, workerID)
			return nil
		})
	}
	return g.Wait()
}

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		case <-ticker.C:
			// drain everything runnable before waiting for the next tick
			for {
				processed, err := w.RunOnce(ctx)
				if err != nil {
					w.log.Warn("ClaimNextRunnable failed", "worker_id", workerID, "error", err)
					break
				}
				if !processed || ctx.Err() != nil {
					break
				}
			}
		}
	}
}

// RunOnce claims and processes a single job. It reports false when nothing was runnable.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := ClaimNextRunnable(ctx, w.db, w.jobTypes(), w.opts.MaxAttempts, w.opts.RetryDelay, w.opts.StaleAfter)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}
	w.process(ctx, job)
	return true, nil
}

func (w *Worker) jobTypes() []string {
	types := make([]string, 0, len(w.handlers))
	for t := range w.handlers {
		types = append(types, t)
	}
	return types
}

func (w *Worker) process(ctx context.Context, job *models.JobRun) {
	h := w.handlers[job.JobType]
	log := w.log.With("job_id", job.ID.String(), "job_type", job.JobType, "attempt", job.Attempts)

	runErr := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("Job handler panic", "panic", r)
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return h(ctx, job)
	}()

	now := time.Now()
	updates := map[string]interface{}{"updated_at": now}
	if runErr == nil {
		updates["status"] = models.JobSucceeded
		updates["finished_at"] = now
		updates["last_error"] = ""
	} else {
		status := models.JobFailed
		if IsPermanent(runErr) || job.Attempts >= w.opts.MaxAttempts {
			status = models.JobDead
			updates["finished_at"] = now
		}
		updates["status"] = status
		updates["last_error"] = runErr.Error()
		updates["last_error_at"] = now
		log.Warn("Job failed", "status", status, "error", runErr)
	}

	// the handler's ctx may be cancelled on shutdown; the outcome still has to be recorded
	if err := w.db.WithContext(context.Background()).Model(&models.JobRun{}).
		Where("id = ?", job.ID).Updates(updates).Error; err != nil {
		log.Error("Failed to record job outcome", "error", err)
	}
}

// ClaimNextRunnable locks the oldest runnable job of the given types and marks it running. Runnable means
// queued, failed with attempts left after the retry delay, or running with a heartbeat older than staleRunning.
// Stale running jobs that already used their last attempt are marked dead instead.
func ClaimNextRunnable(ctx context.Context, db *gorm.DB, jobTypes []string, maxAttempts int, retryDelay, staleRunning time.Duration) (*models.JobRun, error) {
	if len(jobTypes) == 0 {
		return nil, nil
	}
	now := time.Now()
	retryCutoff := now.Add(-retryDelay)
	staleCutoff := now.Add(-staleRunning)

	var claimed *models.JobRun
	err := db.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
		// a worker lost during the last attempt leaves nothing to reclaim
		if dErr := txx.Model(&models.JobRun{}).
			Where("job_type IN ?", jobTypes).
			Where("status = ? AND attempts >= ? AND heartbeat_at IS NOT NULL AND heartbeat_at < ?",
				models.JobRunning, maxAttempts, staleCutoff).
			Updates(map[string]interface{}{
				"status":        models.JobDead,
				"last_error":    "worker lost",
				"last_error_at": now,
				"finished_at":   now,
				"updated_at":    now,
			}).Error; dErr != nil {
			return dErr
		}

		var job models.JobRun
		qErr := txx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("job_type IN ?", jobTypes).
			Where(`
				(
					status = ?
					OR (
						status = ?
						AND attempts < ?
						AND (last_error_at IS NULL OR last_error_at <= ?)
					)
					OR (
						status = ?
						AND attempts < ?
						AND heartbeat_at IS NOT NULL
						AND heartbeat_at < ?
					)
				)
			`, models.JobQueued, models.JobFailed, maxAttempts, retryCutoff, models.JobRunning, maxAttempts, staleCutoff).
			Order("created_at ASC").
			First(&job).Error
		if stderrors.Is(qErr, gorm.ErrRecordNotFound) {
			return nil
		}
		if qErr != nil {
			return qErr
		}

		uErr := txx.Model(&models.JobRun{}).
			Where("id = ?", job.ID).
			Updates(map[string]interface{}{
				"status":       models.JobRunning,
				"attempts":     gorm.Expr("attempts + 1"),
				"locked_at":    now,
				"heartbeat_at": now,
				"updated_at":   now,
			}).Error
		if uErr != nil {
			return uErr
		}

		job.Status = models.JobRunning
		job.Attempts++
		job.LockedAt = &now
		job.HeartbeatAt = &now
		claimed = &job
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "claim job")
	}
	return claimed, nil
}
