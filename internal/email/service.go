// Package email delivers account emails over SMTP
package email

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
	"sync"

	"authguard/internal/config"

	log "github.com/sirupsen/logrus"
)

// ErrNotConfigured is returned when no SMTP host is configured
var ErrNotConfigured = errors.New("incomplete email configuration")

// EmailSender defines the interface for sending account emails
type EmailSender interface {
	SendVerificationEmail(to, name, token string) error
	SendPasswordResetEmail(to, name, token string) error
	SendTwoFactorSetupEmail(to, name, secret string) error
}

var templates = template.Must(template.New("verification").Parse(`
		<h2>Hello {{.Name}},</h2>
		<p>Please verify your email address by clicking the link below:</p>
		<p><a href="{{.URL}}">Verify Email Address</a></p>
		<p>This link will expire in 24 hours.</p>
		<p>If you did not create an account, no further action is required.</p>
`))

func init() {
	template.Must(templates.New("reset").Parse(`
		<h2>Hello {{.Name}},</h2>
		<p>You have requested to reset your password. Click the link below to proceed:</p>
		<p><a href="{{.URL}}">Reset Password</a></p>
		<p>This link will expire in 10 minutes.</p>
		<p>If you did not request a password reset, please ignore this email.</p>
`))
	template.Must(templates.New("two_factor").Parse(`
		<h2>Hello {{.Name}},</h2>
		<p>Two-factor authentication is being set up for your account.</p>
		<p>If your authenticator app cannot scan the QR code, enter this key manually:</p>
		<p><code>{{.Secret}}</code></p>
		<p>If you did not request this, change your password immediately.</p>
`))
}

// Service implements EmailSender over a pooled SMTP connection
type Service struct {
	config config.EmailConfig
	client *smtp.Client
	mu     sync.Mutex
}

func NewService(cfg config.EmailConfig) *Service {
	return &Service{config: cfg}
}

// dialSMTP reuses the current connection while it answers NOOP
func (s *Service) dialSMTP() (*smtp.Client, error) {
	if s.client != nil {
		if err := s.client.Noop(); err == nil {
			return s.client, nil
		}
		s.client.Close()
		s.client = nil
	}

	addr := fmt.Sprintf("%s:%d", s.config.SMTPHost, s.config.SMTPPort)
	client, err := smtp.Dial(addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial SMTP server: %w", err)
	}

	if s.config.SMTPUsername != "" {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(nil); err != nil {
				client.Close()
				return nil, fmt.Errorf("failed to start TLS: %w", err)
			}
		}
		auth := smtp.PlainAuth("", s.config.SMTPUsername, s.config.SMTPPassword, s.config.SMTPHost)
		if err := client.Auth(auth); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to authenticate with SMTP server: %w", err)
		}
	}

	s.client = client
	return client, nil
}

func (s *Service) sendMail(to string, msg []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	client, err := s.dialSMTP()
	if err != nil {
		return err
	}

	if err := client.Mail(s.config.FromAddress); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("failed to add recipient %s: %w", to, err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to create message writer: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close message writer: %w", err)
	}
	return nil
}

// Close closes the SMTP connection
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		err := s.client.Quit()
		s.client = nil
		return err
	}
	return nil
}

func (s *Service) SendVerificationEmail(to, name, token string) error {
	return s.send(to, "Verify Your Email Address", "verification", map[string]string{
		"Name": name,
		"URL":  s.link("verify-email", token),
	})
}

func (s *Service) SendPasswordResetEmail(to, name, token string) error {
	return s.send(to, "Reset Your Password", "reset", map[string]string{
		"Name": name,
		"URL":  s.link("reset-password", token),
	})
}

func (s *Service) SendTwoFactorSetupEmail(to, name, secret string) error {
	return s.send(to, "Two-Factor Authentication Setup", "two_factor", map[string]string{
		"Name":   name,
		"Secret": secret,
	})
}

func (s *Service) link(path, token string) string {
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(s.config.FrontendURL, "/"), path, token)
}

func (s *Service) send(to, subject, tmpl string, data map[string]string) error {
	if s.config.SMTPHost == "" || s.config.SMTPPort == 0 || s.config.FromAddress == "" {
		return ErrNotConfigured
	}

	var body bytes.Buffer
	if err := templates.ExecuteTemplate(&body, tmpl, data); err != nil {
		return fmt.Errorf("failed to execute email template: %w", err)
	}

	msg := BuildMessage(s.config.FromAddress, to, subject, body.String())

	log.WithFields(log.Fields{
		"to":       to,
		"template": tmpl,
		"smtp":     fmt.Sprintf("%s:%d", s.config.SMTPHost, s.config.SMTPPort),
	}).Debug("Sending email")
	if err := s.sendMail(to, msg); err != nil {
		return fmt.Errorf("failed to send %s email: %w", tmpl, err)
	}
	return nil
}

// BuildMessage renders an HTML message with the headers SMTP relays expect
func BuildMessage(from, to, subject, html string) []byte {
	return []byte(fmt.Sprintf("To: %s\r\n"+
		"From: %s\r\n"+
		"Subject: %s\r\n"+
		"MIME-Version: 1.0\r\n"+
		"Content-Type: text/html; charset=UTF-8\r\n"+
		"\r\n"+
		"%s", to, from, subject, html))
}
