package services

import (
	"context"
	"strings"

	"learnhub/apperr"
	"learnhub/database"
	"learnhub/logger"
	courseModels "learnhub/models/course"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type ReviewRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=2000"`
}

type Reviews struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewReviews(db *gorm.DB, log *logger.Logger) *Reviews {
	return &Reviews{db: db, log: log.With("component", "reviews")}
}

// Add stores the actor's review. Only students who completed the course may review it, once.
func (r *Reviews) Add(ctx context.Context, actor Actor, courseID uint, req ReviewRequest) (*courseModels.Review, error) {
	db := r.db.WithContext(ctx)

	enrollment, err := requireEnrollment(db, actor.UserID, courseID)
	if err != nil {
		return nil, err
	}
	if !enrollment.IsCompleted() {
		return nil, apperr.Forbidden("Only students who completed the course can review it!")
	}

	review := courseModels.Review{
		UserID:   actor.UserID,
		CourseID: courseID,
		Rating:   req.Rating,
		Comment:  strings.TrimSpace(req.Comment),
	}
	if err := db.Create(&review).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return nil, apperr.Conflict("You have already reviewed this course!")
		}
		return nil, errors.Wrap(err, "create review")
	}
	return &review, nil
}

// ForCourse lists reviews of a course, newest first.
func (r *Reviews) ForCourse(ctx context.Context, courseID uint) ([]courseModels.Review, error) {
	var reviews []courseModels.Review
	if err := r.db.WithContext(ctx).
		Where("course_id = ?", courseID).
		Order("created_at desc").
		Find(&reviews).Error; err != nil {
		return nil, errors.Wrap(err, "list reviews")
	}
	return reviews, nil
}
