package services

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"strings"
	"time"

	"learnhub/apperr"
	"learnhub/database"
	"learnhub/jobs"
	"learnhub/logger"
	"learnhub/models"
	courseModels "learnhub/models/course"
	"learnhub/renderer"
	"learnhub/storage"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// JobTypeRenderCertificate is the queue message asking for a certificate PDF.
const JobTypeRenderCertificate = "certificate.render_pdf"

const certificateAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// JobEnqueuer is satisfied by *jobs.Queue.
type JobEnqueuer interface {
	Enqueue(ctx context.Context, tx *gorm.DB, jobType, refID string, payload interface{}) (*models.JobRun, error)
	BlockedRefs(ctx context.Context, jobType string, maxDead int) ([]string, error)
}

// CertificateRenderer is satisfied by *renderer.CertificatePDF.
type CertificateRenderer interface {
	Render(data renderer.CertificateData) ([]byte, error)
}

// Cache is satisfied by *cache.RedisCache.
type Cache interface {
	Get(ctx context.Context, key string, dst interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// RenderCertificatePayload is the body of a JobTypeRenderCertificate job.
type RenderCertificatePayload struct {
	CertificateID uint `json:"certificate_id"`
}

// CertificateReady is passed to completion callbacks once the PDF is stored.
type CertificateReady struct {
	Certificate courseModels.Certificate
	HolderName  string
	HolderEmail string
	CourseTitle string
	DownloadURL string
	VerifyURL   string
}

// ReadyHook runs after a certificate PDF is stored. Errors are logged only.
type ReadyHook func(ctx context.Context, event CertificateReady) error

// Verification is the public answer for a certificate number.
type Verification struct {
	Valid             bool       `json:"valid"`
	CertificateNumber string     `json:"certificate_number"`
	HolderName        string     `json:"holder_name,omitempty"`
	CourseID          uint       `json:"course_id,omitempty"`
	CourseTitle       string     `json:"course_title,omitempty"`
	IssuedAt          *time.Time `json:"issued_at,omitempty"`
	PdfReady          bool       `json:"pdf_ready"`
}

// CertificateFile is a downloadable PDF.
type CertificateFile struct {
	Certificate courseModels.Certificate
	FileName    string
	Content     []byte
}

type IssuerOptions struct {
	Prefix         string
	Attempts       int
	PublicBaseURL  string
	VerifyCacheTTL time.Duration
	// MaxRenderJobs is how many render jobs may die for one certificate before the sweep stops requeueing it.
	MaxRenderJobs int
}

type CertificateIssuer struct {
	db       *gorm.DB
	queue    JobEnqueuer
	store    storage.Store
	renderer CertificateRenderer
	cache    Cache
	hooks    []ReadyHook
	opts     IssuerOptions
	log      *logger.Logger

	// randomSegment is swapped in tests to force number collisions
	randomSegment func() (string, error)
}

func NewCertificateIssuer(db *gorm.DB, queue JobEnqueuer, store storage.Store, r CertificateRenderer, cache Cache, log *logger.Logger, opts IssuerOptions) *CertificateIssuer {
	if opts.Prefix == "" {
		opts.Prefix = "CERT"
	}
	if opts.Attempts < 1 {
		opts.Attempts = 3
	}
	if opts.VerifyCacheTTL <= 0 {
		opts.VerifyCacheTTL = 10 * time.Minute
	}
	if opts.MaxRenderJobs < 1 {
		opts.MaxRenderJobs = 3
	}
	opts.PublicBaseURL = strings.TrimRight(opts.PublicBaseURL, "/")
	return &CertificateIssuer{
		db:            db,
		queue:         queue,
		store:         store,
		renderer:      r,
		cache:         cache,
		opts:          opts,
		log:           log.With("component", "certificate-issuer"),
		randomSegment: func() (string, error) { return randomAlphanumeric(10) },
	}
}

// OnReady registers a completion callback for rendered certificates.
func (i *CertificateIssuer) OnReady(hook ReadyHook) {
	i.hooks = append(i.hooks, hook)
}

// Issue returns the certificate for (userID, courseID), creating it and enqueueing the PDF job when missing.
// tx may be nil; when given, the certificate and its job commit with the caller's transaction.
func (i *CertificateIssuer) Issue(ctx context.Context, tx *gorm.DB, userID, courseID uint) (*courseModels.Certificate, error) {
	db := tx
	if db == nil {
		db = i.db
	}
	db = db.WithContext(ctx)

	if existing, err := i.findFor(db, userID, courseID); err == nil {
		return existing, nil
	} else if !database.IsNotFound(err) {
		return nil, err
	}

	for attempt := 1; attempt <= i.opts.Attempts; attempt++ {
		number, err := i.newNumber(userID, courseID)
		if err != nil {
			return nil, err
		}
		cert := courseModels.Certificate{
			UserID:            userID,
			CourseID:          courseID,
			CertificateNumber: number,
			IssuedAt:          time.Now(),
		}

		// savepoint, so a unique violation does not poison the caller's transaction
		err = db.Transaction(func(sp *gorm.DB) error {
			if err := sp.Create(&cert).Error; err != nil {
				return err
			}
			_, err := i.queue.Enqueue(ctx, sp, JobTypeRenderCertificate, certificateRef(cert.ID),
				RenderCertificatePayload{CertificateID: cert.ID})
			return err
		})
		if err == nil {
			i.log.Info("certificate issued",
				"certificate_id", cert.ID,
				"certificate_number", cert.CertificateNumber,
				"course_id", courseID,
			)
			return &cert, nil
		}
		if !database.IsUniqueViolation(err) {
			return nil, errors.Wrap(err, "create certificate")
		}

		// a concurrent issuance for the same pair won the race
		if existing, findErr := i.findFor(db, userID, courseID); findErr == nil {
			return existing, nil
		}
		i.log.Warn("certificate number collision, retrying", "attempt", attempt, "course_id", courseID)
	}

	return nil, errors.Errorf("could not allocate a unique certificate number after %d attempts", i.opts.Attempts)
}

// Download returns the PDF bytes. A certificate whose PDF is still rendering is reported as not ready.
func (i *CertificateIssuer) Download(ctx context.Context, actor Actor, certificateID uint) (*CertificateFile, error) {
	var cert courseModels.Certificate
	if err := i.db.WithContext(ctx).First(&cert, certificateID).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, apperr.NotFound("Certificate not found!")
		}
		return nil, errors.Wrap(err, "load certificate")
	}
	if cert.UserID != actor.UserID && !actor.IsAdmin() {
		return nil, apperr.Forbidden("You do not have access to this certificate!")
	}
	if !cert.PdfReady() {
		return nil, apperr.NotReady("Your certificate is still being generated. Please check back shortly.")
	}

	rc, err := i.store.Open(ctx, *cert.PdfPath)
	if err != nil {
		if errors.Cause(err) == storage.ErrNotFound {
			return nil, apperr.NotReady("Certificate file is not available yet. Please check back shortly.")
		}
		return nil, errors.Wrap(err, "open certificate pdf")
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		return nil, errors.Wrap(err, "read certificate pdf")
	}
	return &CertificateFile{
		Certificate: cert,
		FileName:    cert.CertificateNumber + ".pdf",
		Content:     content,
	}, nil
}

// Verify answers the public lookup. Unknown numbers are reported as invalid rather than as errors.
func (i *CertificateIssuer) Verify(ctx context.Context, number string) (*Verification, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, apperr.Field("certificate_number", "Certificate number is required!")
	}

	if i.cache != nil {
		var cached Verification
		hit, err := i.cache.Get(ctx, verifyCacheKey(number), &cached)
		if err != nil {
			i.log.Warn("verification cache read failed", "error", err)
		} else if hit {
			return &cached, nil
		}
	}

	db := i.db.WithContext(ctx)
	var cert courseModels.Certificate
	if err := db.Where("certificate_number = ?", number).First(&cert).Error; err != nil {
		if database.IsNotFound(err) {
			return &Verification{Valid: false, CertificateNumber: number}, nil
		}
		return nil, errors.Wrap(err, "load certificate")
	}

	holder, course, err := i.loadHolderAndCourse(db, &cert)
	if err != nil {
		return nil, err
	}

	issuedAt := cert.IssuedAt
	v := &Verification{
		Valid:             true,
		CertificateNumber: cert.CertificateNumber,
		HolderName:        holder.Name,
		CourseID:          course.ID,
		CourseTitle:       course.Title,
		IssuedAt:          &issuedAt,
		PdfReady:          cert.PdfReady(),
	}

	// a not-ready answer could land after RenderPDF invalidated the key
	if i.cache != nil && v.PdfReady {
		if err := i.cache.Set(ctx, verifyCacheKey(number), v, i.opts.VerifyCacheTTL); err != nil {
			i.log.Warn("verification cache write failed", "error", err)
		}
	}
	return v, nil
}

// RenderPDF is the JobTypeRenderCertificate handler. It only ever fills a null pdf_path.
func (i *CertificateIssuer) RenderPDF(ctx context.Context, job *models.JobRun) error {
	var payload RenderCertificatePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil || payload.CertificateID == 0 {
		return jobs.Permanent(errors.Errorf("invalid render payload %q", string(job.Payload)))
	}

	db := i.db.WithContext(ctx)
	var cert courseModels.Certificate
	if err := db.First(&cert, payload.CertificateID).Error; err != nil {
		if database.IsNotFound(err) {
			return jobs.Permanent(errors.Errorf("certificate %d no longer exists", payload.CertificateID))
		}
		return errors.Wrap(err, "load certificate")
	}
	if cert.PdfReady() {
		return nil
	}

	holder, course, err := i.loadHolderAndCourse(db, &cert)
	if err != nil {
		return err
	}

	pdf, err := i.renderer.Render(renderer.CertificateData{
		CertificateNumber: cert.CertificateNumber,
		HolderName:        holder.Name,
		CourseTitle:       course.Title,
		IssuedAt:          cert.IssuedAt,
		VerifyURL:         i.verifyURL(cert.CertificateNumber),
	})
	if err != nil {
		return errors.Wrap(err, "render certificate")
	}

	key := fmt.Sprintf("certificates/%d/%s.pdf", cert.UserID, cert.CertificateNumber)
	path, err := i.store.Put(ctx, key, bytes.NewReader(pdf), "application/pdf")
	if err != nil {
		return errors.Wrap(err, "store certificate")
	}

	res := db.Model(&courseModels.Certificate{}).
		Where("id = ? AND pdf_path IS NULL", cert.ID).
		Update("pdf_path", path)
	if res.Error != nil {
		return errors.Wrap(res.Error, "save pdf path")
	}
	if res.RowsAffected == 0 {
		return nil
	}
	cert.PdfPath = &path

	if i.cache != nil {
		if err := i.cache.Delete(ctx, verifyCacheKey(cert.CertificateNumber)); err != nil {
			i.log.Warn("verification cache invalidation failed", "error", err)
		}
	}

	event := CertificateReady{
		Certificate: cert,
		HolderName:  holder.Name,
		HolderEmail: holder.Email,
		CourseTitle: course.Title,
		DownloadURL: fmt.Sprintf("%s/certificates/%d/download", i.opts.PublicBaseURL, cert.ID),
		VerifyURL:   i.verifyURL(cert.CertificateNumber),
	}
	for _, hook := range i.hooks {
		if err := hook(ctx, event); err != nil {
			i.log.Warn("certificate ready callback failed", "certificate_id", cert.ID, "error", err)
		}
	}

	i.log.Info("certificate pdf stored", "certificate_id", cert.ID, "pdf_path", path)
	return nil
}

// RequeueStalled enqueues a new render job for certificates issued before cutoff that still have no PDF,
// no job left that could produce one, and fewer than MaxRenderJobs dead jobs.
func (i *CertificateIssuer) RequeueStalled(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 200
	}

	blocked, err := i.queue.BlockedRefs(ctx, JobTypeRenderCertificate, i.opts.MaxRenderJobs)
	if err != nil {
		return 0, err
	}
	skip := make([]uint, 0, len(blocked))
	for _, ref := range blocked {
		if id, ok := certificateIDFromRef(ref); ok {
			skip = append(skip, id)
		}
	}

	query := i.db.WithContext(ctx).Where("pdf_path IS NULL AND issued_at < ?", cutoff)
	if len(skip) > 0 {
		query = query.Where("id NOT IN ?", skip)
	}
	var certs []courseModels.Certificate
	if err := query.Order("issued_at ASC").Limit(limit).Find(&certs).Error; err != nil {
		return 0, errors.Wrap(err, "list stalled certificates")
	}

	requeued := 0
	for _, cert := range certs {
		if _, err := i.queue.Enqueue(ctx, nil, JobTypeRenderCertificate, certificateRef(cert.ID),
			RenderCertificatePayload{CertificateID: cert.ID}); err != nil {
			return requeued, err
		}
		requeued++
	}
	return requeued, nil
}

// ListForUser returns the actor's certificates, newest first.
func (i *CertificateIssuer) ListForUser(ctx context.Context, actor Actor) ([]courseModels.Certificate, error) {
	var certs []courseModels.Certificate
	if err := i.db.WithContext(ctx).
		Where("user_id = ?", actor.UserID).
		Order("issued_at desc").
		Find(&certs).Error; err != nil {
		return nil, errors.Wrap(err, "list certificates")
	}
	return certs, nil
}

func (i *CertificateIssuer) findFor(db *gorm.DB, userID, courseID uint) (*courseModels.Certificate, error) {
	var cert courseModels.Certificate
	if err := db.Where("user_id = ? AND course_id = ?", userID, courseID).First(&cert).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, err
		}
		return nil, errors.Wrap(err, "load certificate")
	}
	return &cert, nil
}

func (i *CertificateIssuer) loadHolderAndCourse(db *gorm.DB, cert *courseModels.Certificate) (*models.User, *courseModels.Course, error) {
	var holder models.User
	if err := db.Unscoped().First(&holder, cert.UserID).Error; err != nil {
		return nil, nil, errors.Wrap(err, "load certificate holder")
	}
	var course courseModels.Course
	if err := db.Unscoped().First(&course, cert.CourseID).Error; err != nil {
		return nil, nil, errors.Wrap(err, "load certificate course")
	}
	return &holder, &course, nil
}

func (i *CertificateIssuer) newNumber(userID, courseID uint) (string, error) {
	segment, err := i.randomSegment()
	if err != nil {
		return "", errors.Wrap(err, "generate certificate number")
	}
	return fmt.Sprintf("%s-%s-%d-%d", i.opts.Prefix, segment, userID, courseID), nil
}

func (i *CertificateIssuer) verifyURL(number string) string {
	return fmt.Sprintf("%s/certificates/verify/%s", i.opts.PublicBaseURL, number)
}

func certificateRef(id uint) string {
	return fmt.Sprintf("certificate:%d", id)
}

func certificateIDFromRef(ref string) (uint, bool) {
	raw := strings.TrimPrefix(ref, "certificate:")
	if raw == ref {
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}

func verifyCacheKey(number string) string {
	return "certificate:verify:" + number
}

func randomAlphanumeric(n int) (string, error) {
	max := big.NewInt(int64(len(certificateAlphabet)))
	out := make([]byte, n)
	for k := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[k] = certificateAlphabet[idx.Int64()]
	}
	return string(out), nil
}
