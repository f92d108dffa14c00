package utils

import (
	"context"
	"time"

	"learnhub/logger"
	"learnhub/services"

	"github.com/jinzhu/now"
	"github.com/robfig/cron/v3"
)

const (
	// NightlySpec reconciles enrollments and sweeps certificates left from previous days.
	NightlySpec = "0 2 * * *"
	// StalledSpec picks up certificates whose render job was lost during the day.
	StalledSpec = "*/15 * * * *"

	defaultStalledAfter = time.Hour
	batchSize           = 200
)

// Maintenance repairs state the request path may have left behind: enrollments whose
// completion was missed and certificates whose PDF job never finished.
type Maintenance struct {
	Tracker *services.EnrollmentTracker
	Issuer  *services.CertificateIssuer
	Log     *logger.Logger

	// StalledAfter is how old a certificate without a PDF must be before the
	// quarter-hourly sweep requeues it.
	StalledAfter time.Duration
}

// Nightly reconciles in-progress enrollments and requeues certificates issued before today
// that still lack a PDF.
func (m *Maintenance) Nightly(ctx context.Context) {
	m.Log.Info("[SCHEDULER] running nightly maintenance")

	completed, err := m.Tracker.ReconcileInProgress(ctx, batchSize)
	if err != nil {
		m.Log.Error("[SCHEDULER] reconcile enrollments failed", "error", err)
	} else if completed > 0 {
		m.Log.Info("[SCHEDULER] completed enrollments", "count", completed)
	}

	m.requeue(ctx, now.BeginningOfDay())
}

// SweepStalled requeues certificates older than StalledAfter that have no PDF and no live job.
func (m *Maintenance) SweepStalled(ctx context.Context) {
	after := m.StalledAfter
	if after <= 0 {
		after = defaultStalledAfter
	}
	m.requeue(ctx, time.Now().Add(-after))
}

func (m *Maintenance) requeue(ctx context.Context, cutoff time.Time) {
	requeued, err := m.Issuer.RequeueStalled(ctx, cutoff, batchSize)
	if err != nil {
		m.Log.Error("[SCHEDULER] requeue certificates failed", "cutoff", cutoff, "error", err)
		return
	}
	if requeued > 0 {
		m.Log.Info("[SCHEDULER] requeued certificate renders", "count", requeued, "cutoff", cutoff)
	}
}

// StartScheduler registers both jobs and starts cron. Stop the returned scheduler on shutdown.
func (m *Maintenance) StartScheduler(ctx context.Context) (*cron.Cron, error) {
	m.Log = m.Log.With("component", "scheduler")

	c := cron.New()
	entries := map[string]func(context.Context){
		NightlySpec: m.Nightly,
		StalledSpec: m.SweepStalled,
	}
	for spec, run := range entries {
		run := run
		if _, err := c.AddFunc(spec, func() {
			runCtx, cancel := context.WithTimeout(ctx, 30*time.Minute)
			defer cancel()
			run(runCtx)
		}); err != nil {
			return nil, err
		}
	}
	c.Start()
	m.Log.Info("[SCHEDULER] started", "nightly", NightlySpec, "stalled", StalledSpec)
	return c, nil
}
