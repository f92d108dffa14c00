package services

import (
	"context"
	"time"

	"learnhub/apperr"
	"learnhub/logger"
	courseModels "learnhub/models/course"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

const tryAgainMessage = "We could not complete the course right now, please try again."

// CompletionWorkflow moves an enrollment from in_progress to completed and issues the certificate in the
// same transaction.
type CompletionWorkflow struct {
	db     *gorm.DB
	issuer *CertificateIssuer
	log    *logger.Logger
}

func NewCompletionWorkflow(db *gorm.DB, issuer *CertificateIssuer, log *logger.Logger) *CompletionWorkflow {
	return &CompletionWorkflow{db: db, issuer: issuer, log: log.With("component", "course-completion")}
}

// MarkComplete is the explicit student action. Failures are returned as transient so the student can retry.
func (w *CompletionWorkflow) MarkComplete(ctx context.Context, actor Actor, courseID uint) (*courseModels.Enrollment, *courseModels.Certificate, error) {
	db := w.db.WithContext(ctx)

	enrollment, err := requireEnrollment(db, actor.UserID, courseID)
	if err != nil {
		return nil, nil, err
	}

	if enrollment.IsCompleted() {
		cert, err := w.issuer.Issue(ctx, nil, enrollment.UserID, enrollment.CourseID)
		if err != nil {
			return nil, nil, apperr.Transient(tryAgainMessage, err)
		}
		return enrollment, cert, nil
	}

	progress, err := RecomputeProgress(ctx, db, enrollment)
	if err != nil {
		return nil, nil, err
	}
	if progress.Completed < progress.Total {
		return nil, nil, apperr.Conflict("Please complete all lessons before completing the course!")
	}

	cert, err := w.complete(ctx, enrollment)
	if err != nil {
		w.log.Error("course completion rolled back", "enrollment_id", enrollment.ID, "error", err)
		return nil, nil, apperr.Transient(tryAgainMessage, err)
	}
	return enrollment, cert, nil
}

// AutoComplete runs after the last lesson is marked done. Errors are logged and swallowed so the lesson
// completion itself still succeeds.
func (w *CompletionWorkflow) AutoComplete(ctx context.Context, enrollment *courseModels.Enrollment) *courseModels.Certificate {
	cert, err := w.complete(ctx, enrollment)
	if err != nil {
		w.log.Error("automatic course completion failed",
			"enrollment_id", enrollment.ID,
			"course_id", enrollment.CourseID,
			"error", err,
		)
		return nil
	}
	return cert
}

func (w *CompletionWorkflow) complete(ctx context.Context, enrollment *courseModels.Enrollment) (*courseModels.Certificate, error) {
	var cert *courseModels.Certificate
	completedAt := time.Now()
	stored := *enrollment

	err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&courseModels.Enrollment{}).
			Where("id = ? AND status = ?", enrollment.ID, courseModels.EnrollmentInProgress).
			Updates(map[string]interface{}{
				"status":       courseModels.EnrollmentCompleted,
				"completed_at": completedAt,
			})
		if res.Error != nil {
			return errors.Wrap(res.Error, "update enrollment status")
		}
		if res.RowsAffected == 0 {
			w.log.Debug("enrollment already completed", "enrollment_id", enrollment.ID)
			if err := tx.Select("status", "completed_at").First(&stored, enrollment.ID).Error; err != nil {
				return errors.Wrap(err, "load completed enrollment")
			}
		} else {
			stored.Status = courseModels.EnrollmentCompleted
			stored.CompletedAt = &completedAt
		}

		issued, err := w.issuer.Issue(ctx, tx, enrollment.UserID, enrollment.CourseID)
		if err != nil {
			return err
		}
		cert = issued
		return nil
	})
	if err != nil {
		return nil, err
	}
	enrollment.Status = stored.Status
	enrollment.CompletedAt = stored.CompletedAt

	w.log.Info("course completed",
		"enrollment_id", enrollment.ID,
		"course_id", enrollment.CourseID,
		"certificate_number", cert.CertificateNumber,
	)
	return cert, nil
}
