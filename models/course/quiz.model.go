package course

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Quiz belongs to a course and is passed when the score reaches PassingScore (inclusive)
type Quiz struct {
	gorm.Model
	CourseID     uint       `json:"course_id" gorm:"index;not null"`
	LessonID     *uint      `json:"lesson_id" gorm:"index"`
	Title        string     `json:"title"`
	PassingScore int        `json:"passing_score" gorm:"default:0"`
	Questions    []Question `json:"questions,omitempty" gorm:"foreignKey:QuizID"`
	IsDeleted    bool       `json:"-" gorm:"default:false"`
}

type Question struct {
	gorm.Model
	QuizID     uint     `json:"quiz_id" gorm:"index;not null"`
	Prompt     string   `json:"prompt" gorm:"type:text"`
	Points     int      `json:"points" gorm:"not null"`
	OrderIndex int      `json:"order_index" gorm:"default:0"`
	Answers    []Answer `json:"answers,omitempty" gorm:"foreignKey:QuestionID"`
}

type Answer struct {
	gorm.Model
	QuestionID uint   `json:"question_id" gorm:"index;not null"`
	Text       string `json:"text"`
	IsCorrect  bool   `json:"is_correct" gorm:"default:false"`
	OrderIndex int    `json:"order_index" gorm:"default:0"`
}

// QuizAttempt is one graded submission. Attempts are never edited.
type QuizAttempt struct {
	gorm.Model
	QuizID       uint           `json:"quiz_id" gorm:"index;not null"`
	UserID       uint           `json:"user_id" gorm:"index;not null"`
	Score        int            `json:"score"`
	EarnedPoints int            `json:"earned_points"`
	TotalPoints  int            `json:"total_points"`
	Passed       bool           `json:"passed"`
	CompletedAt  time.Time      `json:"completed_at"`
	Details      datatypes.JSON `json:"details"`
}
