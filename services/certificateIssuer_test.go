package services

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"testing"
	"time"

	"learnhub/apperr"
	"learnhub/jobs"
	"learnhub/models"
	courseModels "learnhub/models/course"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func sequence(segments ...string) func() (string, error) {
	k := 0
	return func() (string, error) {
		s := segments[k]
		if k < len(segments)-1 {
			k++
		}
		return s, nil
	}
}

func TestIssueIsIdempotent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	student := e.user(t, "sam", models.RoleStudent)

	first, err := e.issuer.Issue(ctx, nil, student.UserID, 42)
	require.NoError(t, err)
	second, err := e.issuer.Issue(ctx, nil, student.UserID, 42)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.CertificateNumber, second.CertificateNumber)
	assert.EqualValues(t, 1, e.countCertificates(t))
}

func TestIssueRetriesNumberCollision(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	student := e.user(t, "sam", models.RoleStudent)

	taken := courseModels.Certificate{
		UserID:            999,
		CourseID:          999,
		CertificateNumber: "CERT-AAAAAAAAAA-" + itoa(student.UserID) + "-7",
		IssuedAt:          time.Now(),
	}
	require.NoError(t, e.db.Create(&taken).Error)

	e.issuer.randomSegment = sequence("AAAAAAAAAA", "BBBBBBBBBB")
	cert, err := e.issuer.Issue(ctx, nil, student.UserID, 7)
	require.NoError(t, err)
	assert.Equal(t, "CERT-BBBBBBBBBB-"+itoa(student.UserID)+"-7", cert.CertificateNumber)

	var jobCount int64
	require.NoError(t, e.db.Model(&models.JobRun{}).Count(&jobCount).Error)
	assert.EqualValues(t, 1, jobCount)
}

func TestIssueGivesUpAfterRepeatedCollisions(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	student := e.user(t, "sam", models.RoleStudent)

	require.NoError(t, e.db.Create(&courseModels.Certificate{
		UserID:            999,
		CourseID:          999,
		CertificateNumber: "CERT-AAAAAAAAAA-" + itoa(student.UserID) + "-7",
		IssuedAt:          time.Now(),
	}).Error)

	e.issuer.randomSegment = sequence("AAAAAAAAAA")
	_, err := e.issuer.Issue(ctx, nil, student.UserID, 7)
	require.Error(t, err)
	assert.EqualValues(t, 1, e.countCertificates(t))
}

func TestMarkCompleteIssuesOnce(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	instructor := e.user(t, "ines", models.RoleInstructor)
	student := e.user(t, "sam", models.RoleStudent)
	course, lessons := e.course(t, instructor, 2)
	enrollment := e.enroll(t, student, course.ID)

	e.markDone(t, enrollment.ID, lessons[0])
	_, _, err := e.completion.MarkComplete(ctx, student, course.ID)
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	e.markDone(t, enrollment.ID, lessons[1])
	completed, cert, err := e.completion.MarkComplete(ctx, student, course.ID)
	require.NoError(t, err)
	assert.Equal(t, courseModels.EnrollmentCompleted, completed.Status)
	require.NotNil(t, completed.CompletedAt)
	require.NotNil(t, cert)

	stored := e.reloadEnrollment(t, enrollment.ID)
	require.NotNil(t, stored.CompletedAt)
	assert.WithinDuration(t, *stored.CompletedAt, *completed.CompletedAt, time.Second)

	_, again, err := e.completion.MarkComplete(ctx, student, course.ID)
	require.NoError(t, err)
	assert.Equal(t, cert.ID, again.ID)
	assert.EqualValues(t, 1, e.countCertificates(t))
}

func TestAutoCompleteKeepsFirstCompletionTime(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	instructor := e.user(t, "ines", models.RoleInstructor)
	student := e.user(t, "sam", models.RoleStudent)
	course, _ := e.course(t, instructor, 0)
	enrollment := e.enroll(t, student, course.ID)
	stale := *enrollment

	first := e.completion.AutoComplete(ctx, enrollment)
	require.NotNil(t, first)
	require.NotNil(t, enrollment.CompletedAt)

	// a second caller still holding the in-progress row sees the stored completion
	second := e.completion.AutoComplete(ctx, &stale)
	require.NotNil(t, second)
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, stale.IsCompleted())
	require.NotNil(t, stale.CompletedAt)
	assert.WithinDuration(t, *enrollment.CompletedAt, *stale.CompletedAt, time.Second)
}

func TestMarkCompleteWithoutLessons(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	instructor := e.user(t, "ines", models.RoleInstructor)
	student := e.user(t, "sam", models.RoleStudent)
	course, _ := e.course(t, instructor, 0)
	e.enroll(t, student, course.ID)

	enrollment, cert, err := e.completion.MarkComplete(ctx, student, course.ID)
	require.NoError(t, err)
	assert.True(t, enrollment.IsCompleted())
	assert.NotNil(t, cert)
}

func TestCompletionRollsBackWhenQueueFails(t *testing.T) {
	e := newEnvWithQueue(t, failingQueue{})
	ctx := context.Background()
	instructor := e.user(t, "ines", models.RoleInstructor)
	student := e.user(t, "sam", models.RoleStudent)
	course, lessons := e.course(t, instructor, 2)
	enrollment := e.enroll(t, student, course.ID)

	_, err := e.tracker.CompleteLesson(ctx, student, course.ID, lessons[0].ID)
	require.NoError(t, err)

	// automatic completion fails quietly and leaves the lesson recorded
	res, err := e.tracker.CompleteLesson(ctx, student, course.ID, lessons[1].ID)
	require.NoError(t, err)
	assert.False(t, res.CourseCompleted)
	assert.Nil(t, res.Certificate)
	assert.Equal(t, 100, res.Progress.Percentage)

	// the explicit action reports a retryable failure
	_, _, err = e.completion.MarkComplete(ctx, student, course.ID)
	assert.True(t, apperr.Is(err, apperr.KindTransient))

	stored := e.reloadEnrollment(t, enrollment.ID)
	assert.Equal(t, courseModels.EnrollmentInProgress, stored.Status)
	assert.Nil(t, stored.CompletedAt)
	assert.Zero(t, e.countCertificates(t))
}

func TestDownload(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	student := e.user(t, "sam", models.RoleStudent)
	stranger := e.user(t, "eve", models.RoleStudent)
	admin := e.user(t, "ada", models.RoleAdmin)
	instructor := e.user(t, "ines", models.RoleInstructor)
	course, _ := e.course(t, instructor, 0)

	cert, err := e.issuer.Issue(ctx, nil, student.UserID, course.ID)
	require.NoError(t, err)

	_, err = e.issuer.Download(ctx, student, 9999)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = e.issuer.Download(ctx, student, cert.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotReady))

	_, err = e.issuer.Download(ctx, stranger, cert.ID)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	require.NoError(t, e.issuer.RenderPDF(ctx, renderJob(t, cert.ID)))

	file, err := e.issuer.Download(ctx, student, cert.ID)
	require.NoError(t, err)
	assert.Equal(t, cert.CertificateNumber+".pdf", file.FileName)
	assert.True(t, strings.HasPrefix(string(file.Content), "%PDF-"))

	_, err = e.issuer.Download(ctx, admin, cert.ID)
	assert.NoError(t, err)
}

func TestRenderPDFFillsPathOnce(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	student := e.user(t, "sam", models.RoleStudent)
	instructor := e.user(t, "ines", models.RoleInstructor)
	course, _ := e.course(t, instructor, 0)

	var events []CertificateReady
	e.issuer.OnReady(func(_ context.Context, ev CertificateReady) error {
		events = append(events, ev)
		return nil
	})

	cert, err := e.issuer.Issue(ctx, nil, student.UserID, course.ID)
	require.NoError(t, err)

	job := renderJob(t, cert.ID)
	require.NoError(t, e.issuer.RenderPDF(ctx, job))
	require.NoError(t, e.issuer.RenderPDF(ctx, job))

	assert.Equal(t, 1, e.renderer.calls)
	require.Len(t, events, 1)
	assert.Equal(t, "sam", events[0].HolderName)
	assert.Equal(t, "Go Fundamentals", events[0].CourseTitle)
	assert.Equal(t, "https://learn.example.com/certificates/"+itoa(cert.ID)+"/download", events[0].DownloadURL)
	assert.Equal(t, "https://learn.example.com/certificates/verify/"+cert.CertificateNumber, events[0].VerifyURL)

	var stored courseModels.Certificate
	require.NoError(t, e.db.First(&stored, cert.ID).Error)
	require.NotNil(t, stored.PdfPath)
	assert.Equal(t, "certificates/"+itoa(student.UserID)+"/"+cert.CertificateNumber+".pdf", *stored.PdfPath)
}

func TestRenderPDFRejectsBadJobs(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	err := e.issuer.RenderPDF(ctx, &models.JobRun{Payload: datatypes.JSON(`{"certificate_id":0}`)})
	assert.True(t, jobs.IsPermanent(err))

	err = e.issuer.RenderPDF(ctx, renderJob(t, 12345))
	assert.True(t, jobs.IsPermanent(err))
}

func TestVerify(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	student := e.user(t, "sam", models.RoleStudent)
	instructor := e.user(t, "ines", models.RoleInstructor)
	course, _ := e.course(t, instructor, 0)
	cache := newMemoryCache()
	e.issuer.cache = cache

	cert, err := e.issuer.Issue(ctx, nil, student.UserID, course.ID)
	require.NoError(t, err)

	unknown, err := e.issuer.Verify(ctx, "CERT-NOPE-1-1")
	require.NoError(t, err)
	assert.False(t, unknown.Valid)

	_, err = e.issuer.Verify(ctx, "   ")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	v, err := e.issuer.Verify(ctx, " "+cert.CertificateNumber+" ")
	require.NoError(t, err)
	assert.True(t, v.Valid)
	assert.Equal(t, "sam", v.HolderName)
	assert.Equal(t, course.ID, v.CourseID)
	assert.False(t, v.PdfReady)
	assert.Zero(t, cache.sets)

	require.NoError(t, e.issuer.RenderPDF(ctx, renderJob(t, cert.ID)))
	v, err = e.issuer.Verify(ctx, cert.CertificateNumber)
	require.NoError(t, err)
	assert.True(t, v.PdfReady)
	assert.Equal(t, 1, cache.sets)

	v, err = e.issuer.Verify(ctx, cert.CertificateNumber)
	require.NoError(t, err)
	assert.True(t, v.PdfReady)
	assert.Equal(t, 1, cache.sets)
}

func TestVerifyDoesNotCachePendingPDF(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	student := e.user(t, "sam", models.RoleStudent)
	instructor := e.user(t, "ines", models.RoleInstructor)
	course, _ := e.course(t, instructor, 0)
	cache := newMemoryCache()
	e.issuer.cache = cache

	cert, err := e.issuer.Issue(ctx, nil, student.UserID, course.ID)
	require.NoError(t, err)

	// a pending answer read just before the render must not outlive it
	_, err = e.issuer.Verify(ctx, cert.CertificateNumber)
	require.NoError(t, err)
	require.NoError(t, e.issuer.RenderPDF(ctx, renderJob(t, cert.ID)))
	assert.Empty(t, cache.values)

	v, err := e.issuer.Verify(ctx, cert.CertificateNumber)
	require.NoError(t, err)
	assert.True(t, v.PdfReady)
}

func TestRequeueStalled(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	student := e.user(t, "sam", models.RoleStudent)

	cert, err := e.issuer.Issue(ctx, nil, student.UserID, 5)
	require.NoError(t, err)
	cutoff := time.Now().Add(time.Minute)

	// the original job is still queued
	n, err := e.issuer.RequeueStalled(ctx, cutoff, 10)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, e.db.Model(&models.JobRun{}).
		Where("ref_id = ?", certificateRef(cert.ID)).
		Update("status", models.JobDead).Error)

	n, err = e.issuer.RequeueStalled(ctx, cutoff, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = e.issuer.RequeueStalled(ctx, time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestListForUser(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	student := e.user(t, "sam", models.RoleStudent)
	other := e.user(t, "eve", models.RoleStudent)

	_, err := e.issuer.Issue(ctx, nil, student.UserID, 1)
	require.NoError(t, err)
	_, err = e.issuer.Issue(ctx, nil, student.UserID, 2)
	require.NoError(t, err)
	_, err = e.issuer.Issue(ctx, nil, other.UserID, 1)
	require.NoError(t, err)

	certs, err := e.issuer.ListForUser(ctx, student)
	require.NoError(t, err)
	assert.Len(t, certs, 2)
}

func TestRequeueStalledLooksPastLiveJobs(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	student := e.user(t, "sam", models.RoleStudent)

	var certs []*courseModels.Certificate
	for k := 0; k < 3; k++ {
		cert, err := e.issuer.Issue(ctx, nil, student.UserID, uint(10+k))
		require.NoError(t, err)
		issuedAt := time.Now().Add(time.Duration(k-10) * time.Hour)
		require.NoError(t, e.db.Model(cert).Update("issued_at", issuedAt).Error)
		certs = append(certs, cert)
	}

	// the two oldest still have queued jobs; only the newest lost its job
	newest := certs[2]
	e.killRenderJobs(t, newest.ID)

	n, err := e.issuer.RequeueStalled(ctx, time.Now(), 2)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var queued int64
	require.NoError(t, e.db.Model(&models.JobRun{}).
		Where("ref_id = ? AND status = ?", certificateRef(newest.ID), models.JobQueued).
		Count(&queued).Error)
	assert.EqualValues(t, 1, queued)
}

func TestRequeueStalledGivesUpAfterDeadJobs(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	student := e.user(t, "sam", models.RoleStudent)

	cert, err := e.issuer.Issue(ctx, nil, student.UserID, 5)
	require.NoError(t, err)
	cutoff := time.Now().Add(time.Minute)

	// the issuer allows three dead render jobs per certificate
	for k := 0; k < 2; k++ {
		e.killRenderJobs(t, cert.ID)
		n, err := e.issuer.RequeueStalled(ctx, cutoff, 10)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	}

	e.killRenderJobs(t, cert.ID)
	n, err := e.issuer.RequeueStalled(ctx, cutoff, 10)
	require.NoError(t, err)
	assert.Zero(t, n)

	var total int64
	require.NoError(t, e.db.Model(&models.JobRun{}).Where("ref_id = ?", certificateRef(cert.ID)).Count(&total).Error)
	assert.EqualValues(t, 3, total)
}

func (e *env) killRenderJobs(t *testing.T, certificateID uint) {
	t.Helper()
	require.NoError(t, e.db.Model(&models.JobRun{}).
		Where("ref_id = ?", certificateRef(certificateID)).
		Update("status", models.JobDead).Error)
}

func renderJob(t *testing.T, certificateID uint) *models.JobRun {
	t.Helper()
	raw, err := json.Marshal(RenderCertificatePayload{CertificateID: certificateID})
	require.NoError(t, err)
	return &models.JobRun{
		ID:       uuid.New(),
		JobType:  JobTypeRenderCertificate,
		RefID:    certificateRef(certificateID),
		Status:   models.JobRunning,
		Payload:  datatypes.JSON(raw),
		Attempts: 1,
	}
}

func itoa(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
