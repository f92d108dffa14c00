package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"learnhub/apperr"
	"learnhub/database"
	"learnhub/logger"
	courseModels "learnhub/models/course"

	"github.com/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// QuizAnswerInput is one answered question of a submission.
type QuizAnswerInput struct {
	QuestionID uint   `json:"question_id" validate:"required,gt=0"`
	AnswerIDs  []uint `json:"answer_ids" validate:"dive,gt=0"`
}

// QuizSubmission is the validated body of a quiz submission, in the order the student answered.
type QuizSubmission struct {
	Answers []QuizAnswerInput `json:"answers" validate:"required,min=1,dive"`
}

// QuestionResult is the graded outcome of one question, stored on the attempt.
type QuestionResult struct {
	QuestionID        uint   `json:"question_id"`
	SelectedAnswerIDs []uint `json:"selected_answer_ids"`
	Correct           bool   `json:"correct"`
	EarnedPoints      int    `json:"earned_points"`
	Points            int    `json:"points"`
}

type GradeResult struct {
	Score        int              `json:"score"`
	EarnedPoints int              `json:"earned_points"`
	TotalPoints  int              `json:"total_points"`
	Passed       bool             `json:"passed"`
	Details      []QuestionResult `json:"details"`
}

type QuizGrader struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewQuizGrader(db *gorm.DB, log *logger.Logger) *QuizGrader {
	return &QuizGrader{db: db, log: log.With("component", "quiz-grader")}
}

// Grade scores a submission against questions loaded with their answers. questions may contain
// questions of other quizzes; submitting one of them is a validation error. Credit is all or nothing
// per question: the selected set must equal the correct set.
func (g *QuizGrader) Grade(quiz *courseModels.Quiz, questions []courseModels.Question, submission QuizSubmission) (GradeResult, error) {
	byID := make(map[uint]*courseModels.Question, len(questions))
	for k := range questions {
		byID[questions[k].ID] = &questions[k]
	}

	seen := make(map[uint]bool, len(submission.Answers))
	for idx, input := range submission.Answers {
		field := fmt.Sprintf("answers[%d].question_id", idx)
		q, ok := byID[input.QuestionID]
		if !ok {
			return GradeResult{}, apperr.Field(field, "Question not found!")
		}
		if q.QuizID != quiz.ID {
			return GradeResult{}, apperr.Field(field, "Question does not belong to this quiz!")
		}
		if seen[q.ID] {
			return GradeResult{}, apperr.Field(field, "Question answered more than once!")
		}
		seen[q.ID] = true

		valid := make(map[uint]bool, len(q.Answers))
		for _, a := range q.Answers {
			valid[a.ID] = true
		}
		for _, id := range input.AnswerIDs {
			if !valid[id] {
				return GradeResult{}, apperr.Field(fmt.Sprintf("answers[%d].answer_ids", idx), "Answer does not belong to this question!")
			}
		}
	}

	result := GradeResult{Details: make([]QuestionResult, 0, len(submission.Answers))}
	for _, input := range submission.Answers {
		q := byID[input.QuestionID]

		correct := map[uint]bool{}
		for _, a := range q.Answers {
			if a.IsCorrect {
				correct[a.ID] = true
			}
		}
		selected := uniqueSorted(input.AnswerIDs)

		exact := len(selected) == len(correct)
		for _, id := range selected {
			if !correct[id] {
				exact = false
				break
			}
		}

		detail := QuestionResult{
			QuestionID:        q.ID,
			SelectedAnswerIDs: selected,
			Correct:           exact,
			Points:            q.Points,
		}
		if exact {
			detail.EarnedPoints = q.Points
			result.EarnedPoints += q.Points
		}
		result.TotalPoints += q.Points
		result.Details = append(result.Details, detail)
	}

	result.Score = ScorePercentage(result.EarnedPoints, result.TotalPoints)
	result.Passed = result.Score >= quiz.PassingScore
	return result, nil
}

// ScorePercentage rounds half up. A quiz without points scores 0.
func ScorePercentage(earned, total int) int {
	if total <= 0 {
		return 0
	}
	if earned < 0 {
		earned = 0
	}
	if earned > total {
		earned = total
	}
	return (200*earned + total) / (2 * total)
}

// Submit grades and stores an attempt. Nothing is written when the submission is invalid.
func (g *QuizGrader) Submit(ctx context.Context, actor Actor, quizID uint, submission QuizSubmission) (*courseModels.QuizAttempt, *GradeResult, error) {
	db := g.db.WithContext(ctx)

	var quiz courseModels.Quiz
	if err := db.Where("id = ? AND is_deleted = ?", quizID, false).First(&quiz).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, nil, apperr.NotFound("Quiz not found!")
		}
		return nil, nil, errors.Wrap(err, "load quiz")
	}

	if _, err := requireEnrollment(db, actor.UserID, quiz.CourseID); err != nil {
		return nil, nil, err
	}

	ids := make([]uint, 0, len(submission.Answers))
	for _, a := range submission.Answers {
		ids = append(ids, a.QuestionID)
	}
	var questions []courseModels.Question
	if err := db.Preload("Answers").Where("id IN ?", ids).Find(&questions).Error; err != nil {
		return nil, nil, errors.Wrap(err, "load questions")
	}

	result, err := g.Grade(&quiz, questions, submission)
	if err != nil {
		return nil, nil, err
	}

	details, err := json.Marshal(result.Details)
	if err != nil {
		return nil, nil, errors.Wrap(err, "encode attempt details")
	}
	attempt := courseModels.QuizAttempt{
		QuizID:       quiz.ID,
		UserID:       actor.UserID,
		Score:        result.Score,
		EarnedPoints: result.EarnedPoints,
		TotalPoints:  result.TotalPoints,
		Passed:       result.Passed,
		CompletedAt:  time.Now(),
		Details:      datatypes.JSON(details),
	}
	if err := db.Create(&attempt).Error; err != nil {
		return nil, nil, errors.Wrap(err, "create quiz attempt")
	}

	g.log.Info("quiz graded", "quiz_id", quiz.ID, "attempt_id", attempt.ID, "score", result.Score, "passed", result.Passed)
	return &attempt, &result, nil
}

// Attempt returns a stored attempt to its owner (or an admin).
func (g *QuizGrader) Attempt(ctx context.Context, actor Actor, attemptID uint) (*courseModels.QuizAttempt, error) {
	var attempt courseModels.QuizAttempt
	if err := g.db.WithContext(ctx).First(&attempt, attemptID).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, apperr.NotFound("Quiz attempt not found!")
		}
		return nil, errors.Wrap(err, "load quiz attempt")
	}
	if attempt.UserID != actor.UserID && !actor.IsAdmin() {
		return nil, apperr.Forbidden("You do not have access to this attempt!")
	}
	return &attempt, nil
}

func uniqueSorted(ids []uint) []uint {
	set := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if !set[id] {
			set[id] = true
			out = append(out, id)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a] < out[b] })
	return out
}
