package services

import (
	"context"
	"fmt"
	"strings"

	"learnhub/apperr"
	"learnhub/database"
	"learnhub/logger"
	courseModels "learnhub/models/course"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type CreateCourseRequest struct {
	Title        string `json:"title" validate:"required,min=3,max=100"`
	Description  string `json:"description" validate:"max=5000"`
	ThumbnailURL string `json:"thumbnail_url" validate:"omitempty,url"`
}

type CreateModuleRequest struct {
	Title       string `json:"title" validate:"required,min=3,max=100"`
	Description string `json:"description" validate:"max=1000"`
	OrderIndex  int    `json:"order_index" validate:"gte=0"`
}

type CreateLessonRequest struct {
	ModuleID   *uint  `json:"module_id" validate:"omitempty,gt=0"`
	Title      string `json:"title" validate:"required,min=3,max=150"`
	Body       string `json:"body"`
	VideoURL   string `json:"video_url" validate:"omitempty,url"`
	OrderIndex int    `json:"order_index" validate:"gte=0"`
}

type CreateAnswerRequest struct {
	Text      string `json:"text" validate:"required,max=500"`
	IsCorrect bool   `json:"is_correct"`
}

type CreateQuestionRequest struct {
	Prompt  string                `json:"prompt" validate:"required,max=2000"`
	Points  int                   `json:"points" validate:"gte=0"`
	Answers []CreateAnswerRequest `json:"answers" validate:"required,min=2,dive"`
}

type CreateQuizRequest struct {
	LessonID     *uint                   `json:"lesson_id" validate:"omitempty,gt=0"`
	Title        string                  `json:"title" validate:"required,min=3,max=150"`
	PassingScore int                     `json:"passing_score" validate:"gte=0,lte=100"`
	Questions    []CreateQuestionRequest `json:"questions" validate:"required,min=1,dive"`
}

// CourseDetail is the student facing view of a course. Answer correctness is never included.
type CourseDetail struct {
	Course  courseModels.Course   `json:"course"`
	Modules []courseModels.Module `json:"modules"`
	Lessons []courseModels.Lesson `json:"lessons"`
	Quizzes []QuizView            `json:"quizzes"`
}

type QuizView struct {
	ID           uint           `json:"id"`
	LessonID     *uint          `json:"lesson_id"`
	Title        string         `json:"title"`
	PassingScore int            `json:"passing_score"`
	Questions    []QuestionView `json:"questions"`
}

type QuestionView struct {
	ID      uint         `json:"id"`
	Prompt  string       `json:"prompt"`
	Points  int          `json:"points"`
	Answers []AnswerView `json:"answers"`
}

type AnswerView struct {
	ID   uint   `json:"id"`
	Text string `json:"text"`
}

// Catalog covers course authoring and browsing.
type Catalog struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCatalog(db *gorm.DB, log *logger.Logger) *Catalog {
	return &Catalog{db: db, log: log.With("component", "catalog")}
}

func (s *Catalog) CreateCourse(ctx context.Context, actor Actor, req CreateCourseRequest) (*courseModels.Course, error) {
	if !actor.CanAuthor() {
		return nil, apperr.Forbidden("You do not have permission to create courses!")
	}
	course := courseModels.Course{
		Title:        strings.TrimSpace(req.Title),
		Description:  strings.TrimSpace(req.Description),
		ThumbnailURL: req.ThumbnailURL,
		InstructorID: actor.UserID,
	}
	if err := s.db.WithContext(ctx).Create(&course).Error; err != nil {
		return nil, errors.Wrap(err, "create course")
	}
	return &course, nil
}

func (s *Catalog) CreateModule(ctx context.Context, actor Actor, courseID uint, req CreateModuleRequest) (*courseModels.Module, error) {
	db := s.db.WithContext(ctx)
	if _, err := s.ownedCourse(db, actor, courseID); err != nil {
		return nil, err
	}
	module := courseModels.Module{
		CourseID:    courseID,
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		OrderIndex:  req.OrderIndex,
	}
	if err := db.Create(&module).Error; err != nil {
		return nil, errors.Wrap(err, "create module")
	}
	return &module, nil
}

func (s *Catalog) CreateLesson(ctx context.Context, actor Actor, courseID uint, req CreateLessonRequest) (*courseModels.Lesson, error) {
	db := s.db.WithContext(ctx)
	if _, err := s.ownedCourse(db, actor, courseID); err != nil {
		return nil, err
	}
	if req.ModuleID != nil {
		var count int64
		if err := db.Model(&courseModels.Module{}).
			Where("id = ? AND course_id = ? AND is_deleted = ?", *req.ModuleID, courseID, false).
			Count(&count).Error; err != nil {
			return nil, errors.Wrap(err, "check module")
		}
		if count == 0 {
			return nil, apperr.Field("module_id", "Module does not belong to this course!")
		}
	}
	lesson := courseModels.Lesson{
		CourseID:   courseID,
		ModuleID:   req.ModuleID,
		Title:      strings.TrimSpace(req.Title),
		Body:       req.Body,
		VideoURL:   req.VideoURL,
		OrderIndex: req.OrderIndex,
	}
	if err := db.Create(&lesson).Error; err != nil {
		return nil, errors.Wrap(err, "create lesson")
	}
	return &lesson, nil
}

// CreateQuiz stores the quiz with its questions and answers in one transaction.
func (s *Catalog) CreateQuiz(ctx context.Context, actor Actor, courseID uint, req CreateQuizRequest) (*courseModels.Quiz, error) {
	db := s.db.WithContext(ctx)
	if _, err := s.ownedCourse(db, actor, courseID); err != nil {
		return nil, err
	}

	fields := map[string]string{}
	for qi, q := range req.Questions {
		hasCorrect := false
		for _, a := range q.Answers {
			hasCorrect = hasCorrect || a.IsCorrect
		}
		if !hasCorrect {
			fields[fmt.Sprintf("questions[%d].answers", qi)] = "At least one answer must be correct!"
		}
	}
	if req.LessonID != nil {
		var count int64
		if err := db.Model(&courseModels.Lesson{}).
			Where("id = ? AND course_id = ? AND is_deleted = ?", *req.LessonID, courseID, false).
			Count(&count).Error; err != nil {
			return nil, errors.Wrap(err, "check lesson")
		}
		if count == 0 {
			fields["lesson_id"] = "Lesson does not belong to this course!"
		}
	}
	if len(fields) > 0 {
		return nil, apperr.Validation("Validation failed!", fields)
	}

	quiz := courseModels.Quiz{
		CourseID:     courseID,
		LessonID:     req.LessonID,
		Title:        strings.TrimSpace(req.Title),
		PassingScore: req.PassingScore,
	}
	for qi, q := range req.Questions {
		question := courseModels.Question{Prompt: q.Prompt, Points: q.Points, OrderIndex: qi}
		for ai, a := range q.Answers {
			question.Answers = append(question.Answers, courseModels.Answer{Text: a.Text, IsCorrect: a.IsCorrect, OrderIndex: ai})
		}
		quiz.Questions = append(quiz.Questions, question)
	}

	// associations are created with the quiz
	if err := db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&quiz).Error
	}); err != nil {
		return nil, errors.Wrap(err, "create quiz")
	}
	return &quiz, nil
}

func (s *Catalog) SetPublished(ctx context.Context, actor Actor, courseID uint, published bool) (*courseModels.Course, error) {
	db := s.db.WithContext(ctx)
	course, err := s.ownedCourse(db, actor, courseID)
	if err != nil {
		return nil, err
	}
	if err := db.Model(course).Update("is_published", published).Error; err != nil {
		return nil, errors.Wrap(err, "update course")
	}
	course.IsPublished = published
	s.log.Info("course publication changed", "course_id", courseID, "published", published)
	return course, nil
}

// ListPublished pages through published courses, newest first.
func (s *Catalog) ListPublished(ctx context.Context, page, limit int) ([]courseModels.Course, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}
	db := s.db.WithContext(ctx).Model(&courseModels.Course{}).
		Where("is_published = ? AND is_deleted = ?", true, false)

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "count courses")
	}
	var courses []courseModels.Course
	if err := db.Order("created_at desc").Offset((page - 1) * limit).Limit(limit).Find(&courses).Error; err != nil {
		return nil, 0, errors.Wrap(err, "list courses")
	}
	return courses, total, nil
}

// Detail returns a published course, or an unpublished one to its author.
func (s *Catalog) Detail(ctx context.Context, actor Actor, courseID uint) (*CourseDetail, error) {
	db := s.db.WithContext(ctx)

	var course courseModels.Course
	if err := db.Where("id = ? AND is_deleted = ?", courseID, false).First(&course).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, apperr.NotFound("Course not found!")
		}
		return nil, errors.Wrap(err, "load course")
	}
	if !course.IsPublished && course.InstructorID != actor.UserID && !actor.IsAdmin() {
		return nil, apperr.NotFound("Course not found!")
	}

	detail := &CourseDetail{Course: course}
	if err := db.Where("course_id = ? AND is_deleted = ?", courseID, false).
		Order("order_index asc, id asc").Find(&detail.Modules).Error; err != nil {
		return nil, errors.Wrap(err, "list modules")
	}
	if err := db.Where("course_id = ? AND is_deleted = ?", courseID, false).
		Order("order_index asc, id asc").Find(&detail.Lessons).Error; err != nil {
		return nil, errors.Wrap(err, "list lessons")
	}

	var quizzes []courseModels.Quiz
	if err := db.Preload("Questions", func(q *gorm.DB) *gorm.DB { return q.Order("order_index asc, id asc") }).
		Preload("Questions.Answers", func(q *gorm.DB) *gorm.DB { return q.Order("order_index asc, id asc") }).
		Where("course_id = ? AND is_deleted = ?", courseID, false).
		Order("id asc").Find(&quizzes).Error; err != nil {
		return nil, errors.Wrap(err, "list quizzes")
	}
	for _, quiz := range quizzes {
		view := QuizView{ID: quiz.ID, LessonID: quiz.LessonID, Title: quiz.Title, PassingScore: quiz.PassingScore}
		for _, q := range quiz.Questions {
			qv := QuestionView{ID: q.ID, Prompt: q.Prompt, Points: q.Points}
			for _, a := range q.Answers {
				qv.Answers = append(qv.Answers, AnswerView{ID: a.ID, Text: a.Text})
			}
			view.Questions = append(view.Questions, qv)
		}
		detail.Quizzes = append(detail.Quizzes, view)
	}
	return detail, nil
}

// EnrollmentSummary is an enrollment with the course title for listings.
type EnrollmentSummary struct {
	courseModels.Enrollment
	CourseTitle string `json:"course_title"`
}

func (s *Catalog) ListEnrollments(ctx context.Context, actor Actor) ([]EnrollmentSummary, error) {
	var rows []EnrollmentSummary
	err := s.db.WithContext(ctx).
		Table("enrollments").
		Select("enrollments.*, courses.title AS course_title").
		Joins("JOIN courses ON courses.id = enrollments.course_id").
		Where("enrollments.user_id = ? AND enrollments.deleted_at IS NULL", actor.UserID).
		Order("enrollments.created_at desc").
		Scan(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "list enrollments")
	}
	return rows, nil
}

func (s *Catalog) ownedCourse(db *gorm.DB, actor Actor, courseID uint) (*courseModels.Course, error) {
	if !actor.CanAuthor() {
		return nil, apperr.Forbidden("You do not have permission to edit courses!")
	}
	var course courseModels.Course
	if err := db.Where("id = ? AND is_deleted = ?", courseID, false).First(&course).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, apperr.NotFound("Course not found!")
		}
		return nil, errors.Wrap(err, "load course")
	}
	if course.InstructorID != actor.UserID && !actor.IsAdmin() {
		return nil, apperr.Forbidden("You are not the instructor of this course!")
	}
	return &course, nil
}
