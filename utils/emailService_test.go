package utils

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"testing"

	"learnhub/config"
	"learnhub/logger"
	courseModels "learnhub/models/course"
	"learnhub/services"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readyEvent() services.CertificateReady {
	cert := courseModels.Certificate{UserID: 7, CourseID: 3, CertificateNumber: "CERT-ABCDEFGHIJ-7-3"}
	cert.ID = 11
	return services.CertificateReady{
		Certificate: cert,
		HolderName:  "Sam <Admin>",
		HolderEmail: "sam@example.com",
		CourseTitle: "Go Fundamentals",
		DownloadURL: "https://learn.example.com/certificates/11/download",
		VerifyURL:   "https://learn.example.com/certificates/verify/CERT-ABCDEFGHIJ-7-3",
	}
}

func TestCertificateReadyEmail(t *testing.T) {
	subject, body := CertificateReadyEmail(readyEvent())
	assert.Equal(t, "Your certificate for Go Fundamentals", subject)
	assert.Contains(t, body, "CERT-ABCDEFGHIJ-7-3")
	assert.Contains(t, body, "https://learn.example.com/certificates/11/download")
	assert.Contains(t, body, "Sam &lt;Admin&gt;")
	assert.NotContains(t, body, "Sam <Admin>")
}

func TestSMTPMailerBuildsMessage(t *testing.T) {
	m := NewSMTPMailer("smtp.example.com", "587", "no-reply@example.com", "secret")

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	m.sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	require.NoError(t, m.Send(context.Background(), []string{"sam@example.com"}, "Hello", "<p>hi</p>"))
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, "no-reply@example.com", gotFrom)
	assert.Equal(t, []string{"sam@example.com"}, gotTo)
	assert.Contains(t, string(gotMsg), "Subject: Hello\r\n")
	assert.Contains(t, string(gotMsg), "<p>hi</p>")

	m.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("connection refused")
	}
	err := m.Send(context.Background(), []string{"sam@example.com"}, "Hello", "")
	assert.ErrorContains(t, err, "connection refused")

	assert.Error(t, m.Send(context.Background(), nil, "Hello", ""))
}

func TestSendGridMailer(t *testing.T) {
	var payload map[string]interface{}
	var auth string
	status := http.StatusAccepted
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &payload)
		w.WriteHeader(status)
	}))
	defer srv.Close()

	m := NewSendGridMailer("sg-key", "no-reply@example.com")
	m.host = srv.URL

	require.NoError(t, m.Send(context.Background(), []string{"sam@example.com"}, "Hello", "<p>hi</p>"))
	assert.Equal(t, "Bearer sg-key", auth)
	personalizations := payload["personalizations"].([]interface{})
	require.Len(t, personalizations, 1)
	assert.Equal(t, "[LearnHub] Hello", personalizations[0].(map[string]interface{})["subject"])

	status = http.StatusUnauthorized
	assert.Error(t, m.Send(context.Background(), []string{"sam@example.com"}, "Hello", "<p>hi</p>"))
}

func TestNewMailer(t *testing.T) {
	log := logger.Nop()

	m, err := NewMailer(&config.Config{MailDriver: "log"}, log)
	require.NoError(t, err)
	assert.IsType(t, LogMailer{}, m)

	m, err = NewMailer(&config.Config{MailDriver: "smtp", SMTPHost: "smtp.example.com", SMTPPort: "25"}, log)
	require.NoError(t, err)
	assert.IsType(t, &SMTPMailer{}, m)

	_, err = NewMailer(&config.Config{MailDriver: "sendgrid"}, log)
	assert.Error(t, err)

	_, err = NewMailer(&config.Config{MailDriver: "pigeon"}, log)
	assert.Error(t, err)
}

type recordingMailer struct {
	to      []string
	subject string
}

func (m *recordingMailer) Send(_ context.Context, to []string, subject, _ string) error {
	m.to, m.subject = to, subject
	return nil
}

func TestCertificateMailHook(t *testing.T) {
	m := &recordingMailer{}
	hook := CertificateMailHook(m)

	require.NoError(t, hook(context.Background(), readyEvent()))
	assert.Equal(t, []string{"sam@example.com"}, m.to)
	assert.Equal(t, "Your certificate for Go Fundamentals", m.subject)

	m.to = nil
	event := readyEvent()
	event.HolderEmail = ""
	require.NoError(t, hook(context.Background(), event))
	assert.Nil(t, m.to)
}
