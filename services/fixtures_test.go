package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"learnhub/database"
	"learnhub/jobs"
	"learnhub/logger"
	"learnhub/models"
	courseModels "learnhub/models/course"
	"learnhub/renderer"
	"learnhub/storage"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type stubRenderer struct {
	calls int
	err   error
}

func (r *stubRenderer) Render(data renderer.CertificateData) ([]byte, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return []byte("%PDF-1.3 " + data.CertificateNumber), nil
}

// failingQueue rejects every job, which must roll back the surrounding completion.
type failingQueue struct{}

func (failingQueue) Enqueue(context.Context, *gorm.DB, string, string, interface{}) (*models.JobRun, error) {
	return nil, errors.New("queue unavailable")
}

func (failingQueue) BlockedRefs(context.Context, string, int) ([]string, error) {
	return nil, nil
}

type memoryCache struct {
	values map[string]interface{}
	sets   int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: map[string]interface{}{}}
}

func (c *memoryCache) Get(_ context.Context, key string, dst interface{}) (bool, error) {
	v, ok := c.values[key]
	if !ok {
		return false, nil
	}
	*(dst.(*Verification)) = v.(Verification)
	return true, nil
}

func (c *memoryCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	c.values[key] = *(value.(*Verification))
	c.sets++
	return nil
}

func (c *memoryCache) Delete(_ context.Context, key string) error {
	delete(c.values, key)
	return nil
}

type env struct {
	db         *gorm.DB
	store      *storage.LocalStore
	renderer   *stubRenderer
	issuer     *CertificateIssuer
	completion *CompletionWorkflow
	tracker    *EnrollmentTracker
	grader     *QuizGrader
	catalog    *Catalog
}

func newEnv(t *testing.T) *env {
	return newEnvWithQueue(t, nil)
}

// newEnvWithQueue wires the services over a fresh database. A nil queue means the real job table.
func newEnvWithQueue(t *testing.T, queue JobEnqueuer) *env {
	t.Helper()
	db := database.OpenTest(t)
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	if queue == nil {
		queue = jobs.NewQueue(db)
	}
	log := logger.Nop()
	r := &stubRenderer{}
	issuer := NewCertificateIssuer(db, queue, store, r, nil, log, IssuerOptions{
		Prefix:        "CERT",
		PublicBaseURL: "https://learn.example.com/",
	})
	completion := NewCompletionWorkflow(db, issuer, log)
	return &env{
		db:         db,
		store:      store,
		renderer:   r,
		issuer:     issuer,
		completion: completion,
		tracker:    NewEnrollmentTracker(db, completion, log),
		grader:     NewQuizGrader(db, log),
		catalog:    NewCatalog(db, log),
	}
}

func (e *env) user(t *testing.T, name, role string) Actor {
	t.Helper()
	u := models.User{
		Name:     name,
		Email:    fmt.Sprintf("%s-%d@example.com", name, time.Now().UnixNano()),
		Role:     role,
		Password: "x",
	}
	require.NoError(t, e.db.Create(&u).Error)
	return Actor{UserID: u.ID, Role: role}
}

// course creates a published course with n lessons.
func (e *env) course(t *testing.T, instructor Actor, lessons int) (courseModels.Course, []courseModels.Lesson) {
	t.Helper()
	c := courseModels.Course{Title: "Go Fundamentals", InstructorID: instructor.UserID, IsPublished: true}
	require.NoError(t, e.db.Create(&c).Error)

	out := make([]courseModels.Lesson, 0, lessons)
	for k := 0; k < lessons; k++ {
		l := courseModels.Lesson{CourseID: c.ID, Title: fmt.Sprintf("Lesson %d", k+1), OrderIndex: k}
		require.NoError(t, e.db.Create(&l).Error)
		out = append(out, l)
	}
	return c, out
}

func (e *env) enroll(t *testing.T, student Actor, courseID uint) *courseModels.Enrollment {
	t.Helper()
	enrollment, err := e.tracker.Enroll(context.Background(), student, courseID)
	require.NoError(t, err)
	return enrollment
}

// markDone inserts completions directly, bypassing automatic completion.
func (e *env) markDone(t *testing.T, enrollmentID uint, lessons ...courseModels.Lesson) {
	t.Helper()
	for _, l := range lessons {
		require.NoError(t, e.db.Create(&courseModels.LessonCompletion{
			EnrollmentID: enrollmentID,
			LessonID:     l.ID,
			CompletedAt:  time.Now(),
		}).Error)
	}
}

func (e *env) reloadEnrollment(t *testing.T, id uint) courseModels.Enrollment {
	t.Helper()
	var enrollment courseModels.Enrollment
	require.NoError(t, e.db.First(&enrollment, id).Error)
	return enrollment
}

func (e *env) countCertificates(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&courseModels.Certificate{}).Count(&n).Error)
	return n
}
