package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"

	"learnhub/apperr"
	"learnhub/config"
	"learnhub/database"
	"learnhub/logger"
	"learnhub/models"
	"learnhub/services"
	"learnhub/validators"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

type catalogFile struct {
	InstructorEmail string          `yaml:"instructor_email"`
	Courses         []catalogCourse `yaml:"courses"`
}

type catalogCourse struct {
	Title        string          `yaml:"title"`
	Description  string          `yaml:"description"`
	ThumbnailURL string          `yaml:"thumbnail_url"`
	Publish      bool            `yaml:"publish"`
	Modules      []catalogModule `yaml:"modules"`
	Quizzes      []catalogQuiz   `yaml:"quizzes"`
}

type catalogModule struct {
	Title       string          `yaml:"title"`
	Description string          `yaml:"description"`
	Lessons     []catalogLesson `yaml:"lessons"`
}

type catalogLesson struct {
	Title    string `yaml:"title"`
	Body     string `yaml:"body"`
	VideoURL string `yaml:"video_url"`
}

type catalogQuiz struct {
	Title        string            `yaml:"title"`
	PassingScore int               `yaml:"passing_score"`
	AfterLesson  string            `yaml:"after_lesson"` // lesson title the quiz is attached to
	Questions    []catalogQuestion `yaml:"questions"`
}

type catalogQuestion struct {
	Prompt  string          `yaml:"prompt"`
	Points  int             `yaml:"points"`
	Answers []catalogAnswer `yaml:"answers"`
}

type catalogAnswer struct {
	Text    string `yaml:"text"`
	Correct bool   `yaml:"correct"`
}

type importStats struct {
	Courses int
	Lessons int
	Quizzes int
}

func main() {
	path := flag.String("file", "catalog.yaml", "YAML catalog to import")
	flag.Parse()

	// Load config and connect to database
	cfg := config.LoadConfig()
	db := database.ConnectDb(cfg)

	appLog, err := logger.New(cfg.AppEnv)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer appLog.Sync()

	file, err := os.Open(*path)
	if err != nil {
		log.Fatalf("Failed to open catalog file: %v", err)
	}
	defer file.Close()

	catalog, err := parseCatalog(file)
	if err != nil {
		log.Fatalf("Failed to read catalog: %v", err)
	}

	stats, err := importCatalog(context.Background(), db, appLog, catalog)
	if err != nil {
		log.Fatalf("Import failed: %v", err)
	}
	log.Printf("Import completed: %d courses, %d lessons, %d quizzes", stats.Courses, stats.Lessons, stats.Quizzes)
}

func parseCatalog(r io.Reader) (*catalogFile, error) {
	var catalog catalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&catalog); err != nil {
		return nil, errors.Wrap(err, "decode yaml")
	}
	if strings.TrimSpace(catalog.InstructorEmail) == "" {
		return nil, errors.New("instructor_email is required")
	}
	if len(catalog.Courses) == 0 {
		return nil, errors.New("catalog has no courses")
	}
	return &catalog, nil
}

// importCatalog creates every course through the catalog service so ownership and
// quiz rules are checked the same way as over HTTP. Each course is imported in its own transaction.
func importCatalog(ctx context.Context, db *gorm.DB, appLog *logger.Logger, file *catalogFile) (importStats, error) {
	var stats importStats

	var instructor models.User
	email := strings.ToLower(strings.TrimSpace(file.InstructorEmail))
	if err := db.WithContext(ctx).Where("email = ?", email).First(&instructor).Error; err != nil {
		return stats, errors.Wrapf(err, "load instructor %s", email)
	}
	actor := services.Actor{UserID: instructor.ID, Role: instructor.Role}

	for ci, c := range file.Courses {
		var courseStats importStats
		err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			courseStats = importStats{}
			return importCourse(ctx, services.NewCatalog(tx, appLog), actor, ci, c, &courseStats)
		})
		if err != nil {
			return stats, err
		}
		stats.Courses += courseStats.Courses
		stats.Lessons += courseStats.Lessons
		stats.Quizzes += courseStats.Quizzes
	}
	return stats, nil
}

func importCourse(ctx context.Context, catalog *services.Catalog, actor services.Actor, ci int, c catalogCourse, stats *importStats) error {
	courseReq := services.CreateCourseRequest{Title: c.Title, Description: c.Description, ThumbnailURL: c.ThumbnailURL}
	if err := validate(fmt.Sprintf("courses[%d]", ci), courseReq); err != nil {
		return err
	}
	course, err := catalog.CreateCourse(ctx, actor, courseReq)
	if err != nil {
		return describe(fmt.Sprintf("courses[%d]", ci), err)
	}
	stats.Courses++

	lessonIDs := map[string]uint{}
	order := 0
	for mi, m := range c.Modules {
		moduleReq := services.CreateModuleRequest{Title: m.Title, Description: m.Description, OrderIndex: mi}
		where := fmt.Sprintf("courses[%d].modules[%d]", ci, mi)
		if err := validate(where, moduleReq); err != nil {
			return err
		}
		module, err := catalog.CreateModule(ctx, actor, course.ID, moduleReq)
		if err != nil {
			return describe(where, err)
		}

		for li, l := range m.Lessons {
			lessonReq := services.CreateLessonRequest{
				ModuleID:   &module.ID,
				Title:      l.Title,
				Body:       l.Body,
				VideoURL:   l.VideoURL,
				OrderIndex: order,
			}
			where := fmt.Sprintf("courses[%d].modules[%d].lessons[%d]", ci, mi, li)
			if err := validate(where, lessonReq); err != nil {
				return err
			}
			lesson, err := catalog.CreateLesson(ctx, actor, course.ID, lessonReq)
			if err != nil {
				return describe(where, err)
			}
			lessonIDs[lesson.Title] = lesson.ID
			order++
			stats.Lessons++
		}
	}

	for qi, q := range c.Quizzes {
		where := fmt.Sprintf("courses[%d].quizzes[%d]", ci, qi)
		quizReq := services.CreateQuizRequest{Title: q.Title, PassingScore: q.PassingScore}
		if q.AfterLesson != "" {
			id, ok := lessonIDs[strings.TrimSpace(q.AfterLesson)]
			if !ok {
				return errors.Errorf("%s: unknown lesson %q", where, q.AfterLesson)
			}
			quizReq.LessonID = &id
		}
		for _, question := range q.Questions {
			qr := services.CreateQuestionRequest{Prompt: question.Prompt, Points: question.Points}
			for _, a := range question.Answers {
				qr.Answers = append(qr.Answers, services.CreateAnswerRequest{Text: a.Text, IsCorrect: a.Correct})
			}
			quizReq.Questions = append(quizReq.Questions, qr)
		}
		if err := validate(where, quizReq); err != nil {
			return err
		}
		if _, err := catalog.CreateQuiz(ctx, actor, course.ID, quizReq); err != nil {
			return describe(where, err)
		}
		stats.Quizzes++
	}

	if c.Publish {
		if _, err := catalog.SetPublished(ctx, actor, course.ID, true); err != nil {
			return describe(fmt.Sprintf("courses[%d]", ci), err)
		}
	}
	log.Printf("Imported course %q (id %d)", course.Title, course.ID)
	return nil
}

func validate(where string, v interface{}) error {
	if fields := validators.Struct(v); len(fields) > 0 {
		return errors.Errorf("%s: %s", where, formatFields(fields))
	}
	return nil
}

func describe(where string, err error) error {
	if appErr, ok := apperr.As(err); ok && len(appErr.Fields) > 0 {
		return errors.Errorf("%s: %s", where, formatFields(appErr.Fields))
	}
	return errors.Wrap(err, where)
}

func formatFields(fields map[string]string) string {
	parts := make([]string, 0, len(fields))
	for k, v := range fields {
		parts = append(parts, k+": "+v)
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}
