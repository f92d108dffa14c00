package course

import "gorm.io/gorm"

// Review is left by a student who completed the course
type Review struct {
	gorm.Model
	UserID   uint   `json:"user_id" gorm:"uniqueIndex:idx_review_user_course;not null"`
	CourseID uint   `json:"course_id" gorm:"uniqueIndex:idx_review_user_course;not null"`
	Rating   int    `json:"rating" gorm:"not null;check:rating >= 1 AND rating <= 5"`
	Comment  string `json:"comment" gorm:"type:text"`
}
