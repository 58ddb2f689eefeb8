package service

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"

	"github.com/vibast-solutions/ms-go-tracker/config"
)

// Mailer delivers account emails. Send failures are logged by callers,
// never surfaced to the requester.
type Mailer interface {
	SendVerificationEmail(toEmail, firstName, token string, expiresAt time.Time) error
	SendPasswordResetEmail(toEmail, firstName, token string, expiresAt time.Time) error
}

type smtpMailer struct {
	dialer *gomail.Dialer
	from   string
	appURL string
}

// NewMailer builds an SMTP mailer from config. When no SMTP host is
// configured it returns a no-op mailer that only logs, so local setups
// work without a mail relay.
func NewMailer(cfg *config.Config) Mailer {
	if cfg.SMTP.Host == "" {
		return &logMailer{}
	}

	return &smtpMailer{
		dialer: gomail.NewDialer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.User, cfg.SMTP.Password),
		from:   cfg.SMTP.FromEmail,
		appURL: cfg.SMTP.AppURL,
	}
}

func (m *smtpMailer) SendVerificationEmail(toEmail, firstName, token string, expiresAt time.Time) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", toEmail)
	msg.SetHeader("Subject", "Verify your email address")

	body := fmt.Sprintf(`
		<h3>Hi %s,</h3>
		<p>Thanks for signing up. Use the following token to verify your email address:</p>
		<p><strong>%s</strong></p>
		<p>Or follow this link: <a href="%s/verify-email?token=%s">%s/verify-email?token=%s</a></p>
		<p>The token expires %s.</p>
	`, firstName, token, m.appURL, token, m.appURL, token, relativeExpiry(expiresAt))

	msg.SetBody("text/html", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send verification email: %w", err)
	}

	return nil
}

func (m *smtpMailer) SendPasswordResetEmail(toEmail, firstName, token string, expiresAt time.Time) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", toEmail)
	msg.SetHeader("Subject", "Password reset request")

	body := fmt.Sprintf(`
		<h3>Hi %s,</h3>
		<p>We received a request to reset the password for your account.</p>
		<p>Use the following token to choose a new password: <strong>%s</strong></p>
		<p>The token expires %s. If you did not request this change, you can ignore this email.</p>
	`, firstName, token, relativeExpiry(expiresAt))

	msg.SetBody("text/html", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send password reset email: %w", err)
	}

	return nil
}

// relativeExpiry renders an expiry instant as human-readable relative
// time for email bodies.
func relativeExpiry(expiresAt time.Time) string {
	remaining := time.Until(expiresAt).Round(time.Minute)
	if remaining <= 0 {
		return "immediately"
	}
	if remaining < time.Hour {
		return fmt.Sprintf("in %d minutes", int(remaining.Minutes()))
	}
	if remaining < 48*time.Hour {
		return fmt.Sprintf("in %d hours", int(remaining.Hours()))
	}
	return fmt.Sprintf("in %d days", int(remaining.Hours()/24))
}

type logMailer struct{}

func (m *logMailer) SendVerificationEmail(toEmail, _ string, token string, _ time.Time) error {
	logrus.WithField("email", toEmail).WithField("token", token).Info("smtp disabled, skipping verification email")
	return nil
}

func (m *logMailer) SendPasswordResetEmail(toEmail, _ string, token string, _ time.Time) error {
	logrus.WithField("email", toEmail).WithField("token", token).Info("smtp disabled, skipping password reset email")
	return nil
}
