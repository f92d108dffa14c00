package course

import (
	"time"

	"gorm.io/gorm"
)

// Lesson is a unit of course content counted towards progress
type Lesson struct {
	gorm.Model
	CourseID   uint   `json:"course_id" gorm:"index;not null"`
	ModuleID   *uint  `json:"module_id" gorm:"index"`
	Title      string `json:"title"`
	Body       string `json:"body" gorm:"type:text"`
	VideoURL   string `json:"video_url"`
	OrderIndex int    `json:"order_index" gorm:"default:0"`
	IsDeleted  bool   `json:"-" gorm:"default:false"`
}

// LessonCompletion marks a lesson done for an enrollment. Rows are never updated.
type LessonCompletion struct {
	gorm.Model
	EnrollmentID uint      `json:"enrollment_id" gorm:"uniqueIndex:idx_enrollment_lesson;not null"`
	LessonID     uint      `json:"lesson_id" gorm:"uniqueIndex:idx_enrollment_lesson;not null"`
	CompletedAt  time.Time `json:"completed_at"`
}
