package utils

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"net/smtp"
	"strings"

	"learnhub/config"
	"learnhub/logger"
	"learnhub/services"

	"github.com/pkg/errors"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

const appName = "LearnHub"

// Mailer delivers a single HTML email.
type Mailer interface {
	Send(ctx context.Context, to []string, subject, htmlBody string) error
}

// SMTPMailer sends through a plain-auth SMTP relay.
type SMTPMailer struct {
	Host     string
	Port     string
	From     string
	Password string

	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPMailer(host, port, from, password string) *SMTPMailer {
	return &SMTPMailer{Host: host, Port: port, From: from, Password: password, sendMail: smtp.SendMail}
}

func (m *SMTPMailer) Send(_ context.Context, to []string, subject, htmlBody string) error {
	if len(to) == 0 {
		return errors.New("email has no recipients")
	}

	// MIME basics
	msg := "MIME-version: 1.0;\nContent-Type: text/html; charset=\"UTF-8\";\n"
	msg += fmt.Sprintf("From: %s <%s>\r\n", appName, m.From)
	msg += fmt.Sprintf("To: %s\r\n", strings.Join(to, ","))
	msg += fmt.Sprintf("Subject: %s\r\n\r\n", subject)
	msg += htmlBody

	auth := smtp.PlainAuth("", m.From, m.Password, m.Host)
	if err := m.sendMail(m.Host+":"+m.Port, auth, m.From, to, []byte(msg)); err != nil {
		return errors.Wrap(err, "smtp send")
	}
	return nil
}

// SendGridMailer sends through the SendGrid v3 mail API.
type SendGridMailer struct {
	key        string
	host       string
	from       *sgmail.Email
	subjPrefix string
}

func NewSendGridMailer(key, fromEmail string) *SendGridMailer {
	return &SendGridMailer{
		key:        key,
		host:       "https://api.sendgrid.com",
		from:       sgmail.NewEmail(appName, fromEmail),
		subjPrefix: "[" + appName + "] ",
	}
}

func (m *SendGridMailer) Send(ctx context.Context, to []string, subject, htmlBody string) error {
	if len(to) == 0 {
		return errors.New("email has no recipients")
	}

	p := sgmail.NewPersonalization()
	p.Subject = m.subjPrefix + subject
	for _, addr := range to {
		p.AddTos(sgmail.NewEmail("", addr))
	}

	msg := sgmail.NewV3Mail()
	msg.SetFrom(m.from)
	msg.AddPersonalizations(p)
	msg.AddContent(sgmail.NewContent("text/html", htmlBody))

	req := sendgrid.GetRequest(m.key, "/v3/mail/send", m.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(msg)

	res, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return errors.Wrap(err, "sendgrid send")
	}
	if res.StatusCode >= http.StatusBadRequest {
		return errors.Errorf("sendgrid send: status %d: %s", res.StatusCode, res.Body)
	}
	return nil
}

// LogMailer only logs outgoing mail. Used in development.
type LogMailer struct {
	Log *logger.Logger
}

func (m LogMailer) Send(_ context.Context, to []string, subject, _ string) error {
	m.Log.Info("email suppressed", "to", to, "subject", subject)
	return nil
}

// NewMailer picks the transport named by cfg.MailDriver.
func NewMailer(cfg *config.Config, log *logger.Logger) (Mailer, error) {
	switch cfg.MailDriver {
	case "smtp":
		return NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.EmailSender, cfg.SMTPPassword), nil
	case "sendgrid":
		if cfg.SendgridApiKey == "" {
			return nil, errors.New("SENDGRID_API_KEY is required for the sendgrid mail driver")
		}
		return NewSendGridMailer(cfg.SendgridApiKey, cfg.EmailSender), nil
	case "", "log":
		return LogMailer{Log: log}, nil
	default:
		return nil, errors.Errorf("unknown mail driver %q", cfg.MailDriver)
	}
}

// HTML wrapper shared by every notification
func getEmailTemplate(title string, bodyContent string) string {
	return fmt.Sprintf(`
	<!DOCTYPE html>
	<html>
	<head>
		<style>
			body { font-family: 'Helvetica Neue', Helvetica, Arial, sans-serif; background-color: #F6F6F6; margin: 0; padding: 0; }
			.container { max-width: 600px; margin: 40px auto; background: #FFFFFF; border-radius: 8px; overflow: hidden; }
			.header { background-color: #1F3A5F; padding: 30px; text-align: center; }
			.header h1 { color: #FFFFFF; margin: 0; font-size: 24px; letter-spacing: 1px; }
			.content { padding: 40px 30px; color: #1F3A5F; line-height: 1.6; }
			.footer { background-color: #F6F6F6; padding: 20px; text-align: center; font-size: 12px; color: #666666; border-top: 1px solid #E0E0E0; }
			.btn { display: inline-block; padding: 12px 24px; background-color: #C9A227; color: #FFFFFF; text-decoration: none; border-radius: 4px; font-weight: bold; margin-top: 20px; }
			.info-box { background: #E8F0FE; padding: 15px; border-radius: 4px; border-left: 4px solid #C9A227; margin: 20px 0; }
		</style>
	</head>
	<body>
		<div class="container">
			<div class="header">
				<h1>LEARNHUB</h1>
			</div>
			<div class="content">
				<h2>%s</h2>
				%s
			</div>
			<div class="footer">
				This is an automated message from LearnHub.
			</div>
		</div>
	</body>
	</html>
	`, title, bodyContent)
}

// CertificateReadyEmail builds the mail sent once a certificate PDF is available.
func CertificateReadyEmail(event services.CertificateReady) (subject, body string) {
	subject = "Your certificate for " + event.CourseTitle
	content := fmt.Sprintf(`
		<p>Dear %s,</p>
		<p>Congratulations on completing <strong>%s</strong>!</p>
		<div class="info-box">
			Certificate number: <strong>%s</strong>
		</div>
		<a href="%s" class="btn">Download certificate</a>
		<p>Anyone can confirm it at <a href="%s">%s</a>.</p>
	`,
		html.EscapeString(event.HolderName),
		html.EscapeString(event.CourseTitle),
		html.EscapeString(event.Certificate.CertificateNumber),
		event.DownloadURL,
		event.VerifyURL, event.VerifyURL,
	)
	return subject, getEmailTemplate("Certificate Ready", content)
}

// CertificateMailHook mails the holder when their certificate is ready.
func CertificateMailHook(mailer Mailer) services.ReadyHook {
	return func(ctx context.Context, event services.CertificateReady) error {
		if event.HolderEmail == "" {
			return nil
		}
		subject, body := CertificateReadyEmail(event)
		return mailer.Send(ctx, []string{event.HolderEmail}, subject, body)
	}
}
