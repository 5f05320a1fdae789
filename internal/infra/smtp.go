package infra

import (
	"fmt"
	"net/smtp"

	"boxtrack/internal/config"

	"github.com/jordan-wright/email"
)

// Mailer sends operator alerts over SMTP.
type Mailer struct {
	host     string
	user     string
	password string
	addr     string
	to       []string
}

// NewMailer returns nil when SMTP or recipients are not configured; callers
// treat a nil *Mailer as "alerts disabled".
func NewMailer(cfg *config.Config) *Mailer {
	if cfg.SMTPHost == "" || len(cfg.AlertEmails) == 0 {
		return nil
	}
	return &Mailer{
		host:     cfg.SMTPHost,
		user:     cfg.SMTPUser,
		password: cfg.SMTPPassword,
		addr:     fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
		to:       cfg.AlertEmails,
	}
}

// SendAlert mails a plain-text alert to the configured recipients.
func (m *Mailer) SendAlert(subject, body string) error {
	if m == nil {
		return nil
	}
	e := email.NewEmail()
	e.From = m.user
	e.To = m.to
	e.Subject = subject
	e.Text = []byte(body)

	var auth smtp.Auth
	if m.user != "" {
		auth = smtp.PlainAuth("", m.user, m.password, m.host)
	}
	if err := e.Send(m.addr, auth); err != nil {
		return fmt.Errorf("mailer: send: %w", err)
	}
	return nil
}
