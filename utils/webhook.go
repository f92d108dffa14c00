package utils

import (
	"context"
	"time"

	"learnhub/services"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

type certificateReadyPayload struct {
	Event             string    `json:"event"`
	CertificateID     uint      `json:"certificate_id"`
	CertificateNumber string    `json:"certificate_number"`
	UserID            uint      `json:"user_id"`
	CourseID          uint      `json:"course_id"`
	CourseTitle       string    `json:"course_title"`
	HolderName        string    `json:"holder_name"`
	IssuedAt          time.Time `json:"issued_at"`
	DownloadURL       string    `json:"download_url"`
	VerifyURL         string    `json:"verify_url"`
}

// CertificateWebhook posts certificate.ready events to an external endpoint.
type CertificateWebhook struct {
	url    string
	client *resty.Client
}

func NewCertificateWebhook(url string) *CertificateWebhook {
	client := resty.New().
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetHeader("Content-Type", "application/json")
	return &CertificateWebhook{url: url, client: client}
}

// Hook adapts the webhook to the issuer's ready callback.
func (w *CertificateWebhook) Hook() services.ReadyHook {
	return w.Notify
}

func (w *CertificateWebhook) Notify(ctx context.Context, event services.CertificateReady) error {
	cert := event.Certificate
	resp, err := w.client.R().
		SetContext(ctx).
		SetBody(certificateReadyPayload{
			Event:             "certificate.ready",
			CertificateID:     cert.ID,
			CertificateNumber: cert.CertificateNumber,
			UserID:            cert.UserID,
			CourseID:          cert.CourseID,
			CourseTitle:       event.CourseTitle,
			HolderName:        event.HolderName,
			IssuedAt:          cert.IssuedAt,
			DownloadURL:       event.DownloadURL,
			VerifyURL:         event.VerifyURL,
		}).
		Post(w.url)
	if err != nil {
		return errors.Wrap(err, "post certificate webhook")
	}
	if resp.IsError() {
		return errors.Errorf("certificate webhook returned %d", resp.StatusCode())
	}
	return nil
}
