package services

import (
	"context"
	"time"

	"learnhub/apperr"
	"learnhub/database"
	"learnhub/logger"
	courseModels "learnhub/models/course"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// Progress is the completion state of one enrollment.
type Progress struct {
	EnrollmentID       uint   `json:"enrollment_id"`
	CourseID           uint   `json:"course_id"`
	Status             string `json:"status"`
	Completed          int    `json:"completed"`
	Total              int    `json:"total"`
	Percentage         int    `json:"percentage"`
	CompletedLessonIDs []uint `json:"completed_lesson_ids"`
	Persisted          bool   `json:"-"` // the stored percentage was rewritten
}

// LessonResult is returned when a student marks a lesson done.
type LessonResult struct {
	Progress         Progress                  `json:"progress"`
	AlreadyCompleted bool                      `json:"already_completed"`
	CourseCompleted  bool                      `json:"course_completed"`
	Certificate      *courseModels.Certificate `json:"certificate,omitempty"`
}

// Percentage rounds half up and treats a course without lessons as complete.
func Percentage(completed, total int) int {
	if total <= 0 {
		return 100
	}
	if completed < 0 {
		completed = 0
	}
	if completed > total {
		completed = total
	}
	return (200*completed + total) / (2 * total)
}

type EnrollmentTracker struct {
	db         *gorm.DB
	completion *CompletionWorkflow
	log        *logger.Logger
}

func NewEnrollmentTracker(db *gorm.DB, completion *CompletionWorkflow, log *logger.Logger) *EnrollmentTracker {
	return &EnrollmentTracker{db: db, completion: completion, log: log.With("component", "enrollment-tracker")}
}

// Enroll creates the enrollment for a published course. A second enrollment is a conflict.
func (t *EnrollmentTracker) Enroll(ctx context.Context, actor Actor, courseID uint) (*courseModels.Enrollment, error) {
	db := t.db.WithContext(ctx)

	var course courseModels.Course
	if err := db.Where("id = ? AND is_published = ? AND is_deleted = ?", courseID, true, false).First(&course).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, apperr.NotFound("Course not found or not published!")
		}
		return nil, errors.Wrap(err, "load course")
	}

	if _, err := findEnrollment(db, actor.UserID, courseID); err == nil {
		return nil, apperr.Conflict("Already enrolled in this course!")
	} else if !database.IsNotFound(err) {
		return nil, err
	}

	enrollment := courseModels.Enrollment{
		UserID:     actor.UserID,
		CourseID:   courseID,
		Status:     courseModels.EnrollmentInProgress,
		EnrolledAt: time.Now(),
	}
	if err := db.Create(&enrollment).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return nil, apperr.Conflict("Already enrolled in this course!")
		}
		return nil, errors.Wrap(err, "create enrollment")
	}

	if _, err := RecomputeProgress(ctx, db, &enrollment); err != nil {
		return nil, err
	}

	t.log.Info("enrolled", "user_id", actor.UserID, "course_id", courseID)
	return &enrollment, nil
}

// Recompute refreshes the stored percentage of an enrollment. tx may be nil.
func (t *EnrollmentTracker) Recompute(ctx context.Context, tx *gorm.DB, enrollment *courseModels.Enrollment) (Progress, error) {
	if tx == nil {
		tx = t.db
	}
	return RecomputeProgress(ctx, tx, enrollment)
}

// Progress recomputes on read so a percentage left stale by concurrent completions is corrected.
func (t *EnrollmentTracker) Progress(ctx context.Context, actor Actor, courseID uint) (Progress, error) {
	db := t.db.WithContext(ctx)
	enrollment, err := requireEnrollment(db, actor.UserID, courseID)
	if err != nil {
		return Progress{}, err
	}
	return RecomputeProgress(ctx, db, enrollment)
}

// CompleteLesson records the lesson once and fires automatic course completion when the last lesson is done.
func (t *EnrollmentTracker) CompleteLesson(ctx context.Context, actor Actor, courseID, lessonID uint) (LessonResult, error) {
	db := t.db.WithContext(ctx)

	enrollment, err := requireEnrollment(db, actor.UserID, courseID)
	if err != nil {
		return LessonResult{}, err
	}

	var lesson courseModels.Lesson
	if err := db.Where("id = ? AND course_id = ? AND is_deleted = ?", lessonID, courseID, false).First(&lesson).Error; err != nil {
		if database.IsNotFound(err) {
			return LessonResult{}, apperr.NotFound("Lesson not found in this course!")
		}
		return LessonResult{}, errors.Wrap(err, "load lesson")
	}

	result := LessonResult{}
	var existing courseModels.LessonCompletion
	err = db.Where("enrollment_id = ? AND lesson_id = ?", enrollment.ID, lesson.ID).First(&existing).Error
	switch {
	case err == nil:
		result.AlreadyCompleted = true
	case database.IsNotFound(err):
		completion := courseModels.LessonCompletion{EnrollmentID: enrollment.ID, LessonID: lesson.ID, CompletedAt: time.Now()}
		if err := db.Create(&completion).Error; err != nil {
			if !database.IsUniqueViolation(err) {
				return LessonResult{}, errors.Wrap(err, "create lesson completion")
			}
			result.AlreadyCompleted = true
		}
	default:
		return LessonResult{}, errors.Wrap(err, "load lesson completion")
	}

	progress, err := RecomputeProgress(ctx, db, enrollment)
	if err != nil {
		return LessonResult{}, err
	}

	if !enrollment.IsCompleted() && progress.Total > 0 && progress.Completed >= progress.Total {
		result.Certificate = t.completion.AutoComplete(ctx, enrollment)
		progress.Status = enrollment.Status
	}

	result.Progress = progress
	result.CourseCompleted = enrollment.IsCompleted()
	return result, nil
}

// ReconcileInProgress recomputes every in-progress enrollment and completes the ones that are due.
// It returns how many enrollments transitioned to completed.
func (t *EnrollmentTracker) ReconcileInProgress(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 200
	}
	db := t.db.WithContext(ctx)

	var batch []courseModels.Enrollment
	completed := 0
	res := db.Where("status = ?", courseModels.EnrollmentInProgress).
		FindInBatches(&batch, batchSize, func(_ *gorm.DB, _ int) error {
			for i := range batch {
				enrollment := &batch[i]
				progress, err := RecomputeProgress(ctx, t.db, enrollment)
				if err != nil {
					return err
				}
				if progress.Total > 0 && progress.Completed >= progress.Total {
					t.completion.AutoComplete(ctx, enrollment)
					if enrollment.IsCompleted() {
						completed++
					}
				}
			}
			return nil
		})
	if res.Error != nil {
		return completed, errors.Wrap(res.Error, "reconcile enrollments")
	}
	return completed, nil
}

// RecomputeProgress counts the completed lessons that still belong to the course and writes the
// percentage only when it changed.
func RecomputeProgress(ctx context.Context, db *gorm.DB, enrollment *courseModels.Enrollment) (Progress, error) {
	db = db.WithContext(ctx)

	var total int64
	if err := db.Model(&courseModels.Lesson{}).
		Where("course_id = ? AND is_deleted = ?", enrollment.CourseID, false).
		Count(&total).Error; err != nil {
		return Progress{}, errors.Wrap(err, "count lessons")
	}

	completedIDs := []uint{}
	if err := db.Model(&courseModels.LessonCompletion{}).
		Joins("JOIN lessons ON lessons.id = lesson_completions.lesson_id").
		Where("lesson_completions.enrollment_id = ?", enrollment.ID).
		Where("lessons.course_id = ? AND lessons.is_deleted = ? AND lessons.deleted_at IS NULL", enrollment.CourseID, false).
		Order("lesson_completions.lesson_id").
		Pluck("lesson_completions.lesson_id", &completedIDs).Error; err != nil {
		return Progress{}, errors.Wrap(err, "list completed lessons")
	}

	progress := Progress{
		EnrollmentID:       enrollment.ID,
		CourseID:           enrollment.CourseID,
		Completed:          len(completedIDs),
		Total:              int(total),
		Percentage:         Percentage(len(completedIDs), int(total)),
		CompletedLessonIDs: completedIDs,
	}

	if progress.Percentage != enrollment.Progress {
		if err := db.Model(&courseModels.Enrollment{}).
			Where("id = ?", enrollment.ID).
			Update("progress", progress.Percentage).Error; err != nil {
			return Progress{}, errors.Wrap(err, "update progress")
		}
		enrollment.Progress = progress.Percentage
		progress.Persisted = true
	}

	progress.Status = enrollment.Status
	return progress, nil
}

func findEnrollment(db *gorm.DB, userID, courseID uint) (*courseModels.Enrollment, error) {
	var enrollment courseModels.Enrollment
	if err := db.Where("user_id = ? AND course_id = ?", userID, courseID).First(&enrollment).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, err
		}
		return nil, errors.Wrap(err, "load enrollment")
	}
	return &enrollment, nil
}

// requireEnrollment maps a missing enrollment to an authorization error.
func requireEnrollment(db *gorm.DB, userID, courseID uint) (*courseModels.Enrollment, error) {
	enrollment, err := findEnrollment(db, userID, courseID)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, apperr.Forbidden("You are not enrolled in this course!")
		}
		return nil, err
	}
	return enrollment, nil
}
