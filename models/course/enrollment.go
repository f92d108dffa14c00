package course

import (
	"time"

	"gorm.io/gorm"
)

const (
	EnrollmentInProgress = "in_progress"
	EnrollmentCompleted  = "completed"
)

// Enrollment links a student to a course and carries their progress
type Enrollment struct {
	gorm.Model
	UserID      uint       `json:"user_id" gorm:"uniqueIndex:idx_enrollment_user_course;not null"`
	CourseID    uint       `json:"course_id" gorm:"uniqueIndex:idx_enrollment_user_course;not null"`
	Status      string     `json:"status" gorm:"size:20;default:'in_progress'"`
	Progress    int        `json:"progress" gorm:"default:0"` // 0-100
	EnrolledAt  time.Time  `json:"enrolled_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

func (e *Enrollment) IsCompleted() bool {
	return e.Status == EnrollmentCompleted
}
