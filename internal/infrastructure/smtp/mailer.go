package smtp

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/go-account-api/internal/config"
)

const verificationSubject = "Verify your email address"

// sendFunc matches smtp.SendMail.
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mailer emails verification links directly over SMTP.
type Mailer struct {
	host     string
	port     string
	from     string
	username string
	password string
	send     sendFunc
}

func NewMailer(cfg *config.Config) *Mailer {
	return &Mailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		from:     cfg.SMTPFrom,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
		send:     smtp.SendMail,
	}
}

// Deliver sends the verification link to email. net/smtp has no context
// support, so ctx is only checked before dialing.
func (m *Mailer) Deliver(ctx context.Context, email, link string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body := fmt.Sprintf("Please verify your email address by opening the link below.\r\n\r\n%s\r\n\r\nThe link expires shortly.", link)
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s", m.from, email, verificationSubject, body)
	addr := fmt.Sprintf("%s:%s", m.host, m.port)

	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}

	if err := m.send(addr, auth, m.from, []string{email}, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
