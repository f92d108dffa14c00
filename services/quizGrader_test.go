package services

import (
	"context"
	"encoding/json"
	"testing"

	"learnhub/apperr"
	"learnhub/models"
	courseModels "learnhub/models/course"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildQuiz stores a quiz with two questions: Q1 (10 points, answers A correct, B wrong) and
// Q2 (20 points, answers C and D correct, E wrong).
func buildQuiz(t *testing.T, e *env, courseID uint, passing int) (courseModels.Quiz, []courseModels.Question) {
	t.Helper()
	quiz := courseModels.Quiz{
		CourseID:     courseID,
		Title:        "Checkpoint",
		PassingScore: passing,
		Questions: []courseModels.Question{
			{Prompt: "Q1", Points: 10, Answers: []courseModels.Answer{
				{Text: "A", IsCorrect: true}, {Text: "B"},
			}},
			{Prompt: "Q2", Points: 20, OrderIndex: 1, Answers: []courseModels.Answer{
				{Text: "C", IsCorrect: true}, {Text: "D", IsCorrect: true}, {Text: "E"},
			}},
		},
	}
	require.NoError(t, e.db.Create(&quiz).Error)

	var questions []courseModels.Question
	require.NoError(t, e.db.Preload("Answers").Where("quiz_id = ?", quiz.ID).Order("order_index").Find(&questions).Error)
	return quiz, questions
}

func answerIDs(q courseModels.Question, texts ...string) []uint {
	var ids []uint
	for _, text := range texts {
		for _, a := range q.Answers {
			if a.Text == text {
				ids = append(ids, a.ID)
			}
		}
	}
	return ids
}

func TestScorePercentage(t *testing.T) {
	assert.Equal(t, 0, ScorePercentage(0, 0))
	assert.Equal(t, 0, ScorePercentage(5, 0))
	assert.Equal(t, 33, ScorePercentage(10, 30))
	assert.Equal(t, 67, ScorePercentage(20, 30))
	assert.Equal(t, 50, ScorePercentage(1, 2))
	assert.Equal(t, 100, ScorePercentage(30, 30))
}

func TestGradePartialScore(t *testing.T) {
	e := newEnv(t)
	quiz, qs := buildQuiz(t, e, 1, 70)

	res, err := e.grader.Grade(&quiz, qs, QuizSubmission{Answers: []QuizAnswerInput{
		{QuestionID: qs[0].ID, AnswerIDs: answerIDs(qs[0], "A")},
		{QuestionID: qs[1].ID, AnswerIDs: answerIDs(qs[1], "C")},
	}})
	require.NoError(t, err)
	assert.Equal(t, 10, res.EarnedPoints)
	assert.Equal(t, 30, res.TotalPoints)
	assert.Equal(t, 33, res.Score)
	assert.False(t, res.Passed)
	require.Len(t, res.Details, 2)
	assert.True(t, res.Details[0].Correct)
	assert.False(t, res.Details[1].Correct)
}

func TestGradeIgnoresSelectionOrder(t *testing.T) {
	e := newEnv(t)
	quiz, qs := buildQuiz(t, e, 1, 70)

	res, err := e.grader.Grade(&quiz, qs, QuizSubmission{Answers: []QuizAnswerInput{
		{QuestionID: qs[1].ID, AnswerIDs: answerIDs(qs[1], "D", "C", "D")},
		{QuestionID: qs[0].ID, AnswerIDs: answerIDs(qs[0], "A")},
	}})
	require.NoError(t, err)
	assert.Equal(t, 100, res.Score)
	assert.True(t, res.Passed)
	assert.Len(t, res.Details[0].SelectedAnswerIDs, 2)
}

func TestGradeRequiresExactSet(t *testing.T) {
	e := newEnv(t)
	quiz, qs := buildQuiz(t, e, 1, 0)

	tests := map[string][]string{
		"subset":   {"C"},
		"superset": {"C", "D", "E"},
		"empty":    {},
		"wrong":    {"E"},
	}
	for name, picks := range tests {
		t.Run(name, func(t *testing.T) {
			res, err := e.grader.Grade(&quiz, qs, QuizSubmission{Answers: []QuizAnswerInput{
				{QuestionID: qs[1].ID, AnswerIDs: answerIDs(qs[1], picks...)},
			}})
			require.NoError(t, err)
			assert.Equal(t, 0, res.EarnedPoints)
			assert.Equal(t, 20, res.TotalPoints)
			assert.Equal(t, 0, res.Score)
		})
	}
}

func TestGradeRejectsInvalidSubmissions(t *testing.T) {
	e := newEnv(t)
	quiz, qs := buildQuiz(t, e, 1, 50)
	_, otherQs := buildQuiz(t, e, 1, 50)

	all := append(append([]courseModels.Question{}, qs...), otherQs...)

	_, err := e.grader.Grade(&quiz, all, QuizSubmission{Answers: []QuizAnswerInput{
		{QuestionID: otherQs[0].ID, AnswerIDs: answerIDs(otherQs[0], "A")},
	}})
	require.True(t, apperr.Is(err, apperr.KindValidation))
	appErr, _ := apperr.As(err)
	assert.Contains(t, appErr.Fields, "answers[0].question_id")

	_, err = e.grader.Grade(&quiz, qs, QuizSubmission{Answers: []QuizAnswerInput{
		{QuestionID: 99999},
	}})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = e.grader.Grade(&quiz, qs, QuizSubmission{Answers: []QuizAnswerInput{
		{QuestionID: qs[0].ID, AnswerIDs: answerIDs(qs[0], "A")},
		{QuestionID: qs[0].ID, AnswerIDs: answerIDs(qs[0], "B")},
	}})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = e.grader.Grade(&quiz, qs, QuizSubmission{Answers: []QuizAnswerInput{
		{QuestionID: qs[0].ID, AnswerIDs: answerIDs(qs[1], "C")},
	}})
	require.True(t, apperr.Is(err, apperr.KindValidation))
	appErr, _ = apperr.As(err)
	assert.Contains(t, appErr.Fields, "answers[0].answer_ids")
}

func TestGradeWithoutPoints(t *testing.T) {
	e := newEnv(t)
	quiz := courseModels.Quiz{CourseID: 1, Title: "Survey", PassingScore: 50, Questions: []courseModels.Question{
		{Prompt: "How was it?", Points: 0, Answers: []courseModels.Answer{{Text: "Good", IsCorrect: true}}},
	}}
	require.NoError(t, e.db.Create(&quiz).Error)
	var qs []courseModels.Question
	require.NoError(t, e.db.Preload("Answers").Where("quiz_id = ?", quiz.ID).Find(&qs).Error)
	require.Equal(t, 0, qs[0].Points)

	res, err := e.grader.Grade(&quiz, qs, QuizSubmission{Answers: []QuizAnswerInput{
		{QuestionID: qs[0].ID, AnswerIDs: answerIDs(qs[0], "Good")},
	}})
	require.NoError(t, err)
	assert.Equal(t, 0, res.TotalPoints)
	assert.Equal(t, 0, res.Score)
	assert.False(t, res.Passed)
}

func TestSubmitStoresAttempt(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	instructor := e.user(t, "ines", models.RoleInstructor)
	student := e.user(t, "sam", models.RoleStudent)
	stranger := e.user(t, "eve", models.RoleStudent)
	course, _ := e.course(t, instructor, 1)
	quiz, qs := buildQuiz(t, e, course.ID, 70)

	submission := QuizSubmission{Answers: []QuizAnswerInput{
		{QuestionID: qs[0].ID, AnswerIDs: answerIDs(qs[0], "A")},
		{QuestionID: qs[1].ID, AnswerIDs: answerIDs(qs[1], "C", "D")},
	}}

	_, _, err := e.grader.Submit(ctx, student, quiz.ID, submission)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	e.enroll(t, student, course.ID)
	attempt, res, err := e.grader.Submit(ctx, student, quiz.ID, submission)
	require.NoError(t, err)
	assert.Equal(t, 100, attempt.Score)
	assert.True(t, attempt.Passed)
	assert.Equal(t, res.Score, attempt.Score)

	var details []QuestionResult
	require.NoError(t, json.Unmarshal(attempt.Details, &details))
	assert.Len(t, details, 2)

	got, err := e.grader.Attempt(ctx, student, attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, attempt.ID, got.ID)

	_, err = e.grader.Attempt(ctx, stranger, attempt.ID)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	_, _, err = e.grader.Submit(ctx, student, 99999, submission)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestSubmitInvalidWritesNothing(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	instructor := e.user(t, "ines", models.RoleInstructor)
	student := e.user(t, "sam", models.RoleStudent)
	course, _ := e.course(t, instructor, 1)
	quiz, _ := buildQuiz(t, e, course.ID, 70)
	_, foreign := buildQuiz(t, e, course.ID, 70)
	e.enroll(t, student, course.ID)

	_, _, err := e.grader.Submit(ctx, student, quiz.ID, QuizSubmission{Answers: []QuizAnswerInput{
		{QuestionID: foreign[0].ID, AnswerIDs: answerIDs(foreign[0], "A")},
	}})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	var count int64
	require.NoError(t, e.db.Model(&courseModels.QuizAttempt{}).Count(&count).Error)
	assert.Zero(t, count)
}
