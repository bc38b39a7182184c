// Package mail is the outbound mail collaborator. The auth core only needs a
// single dispatch attempt it can fail on; delivery mechanics stay here.
package mail

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"fintrack.org/internal/obs"
)

// Mailer dispatches password-reset messages.
type Mailer interface {
	SendPasswordReset(ctx context.Context, to, name, resetLink string) error
}

// SMTPMailer delivers mail over plain SMTP with AUTH.
type SMTPMailer struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// NewSMTPMailer constructs a mailer; From defaults to Username.
func NewSMTPMailer(host, port, username, password, from string) *SMTPMailer {
	if strings.TrimSpace(from) == "" {
		from = username
	}
	return &SMTPMailer{Host: host, Port: port, Username: username, Password: password, From: from}
}

// SendPasswordReset dispatches the reset email. Failures are returned to the
// caller; the auth core never retries a dispatch.
func (m *SMTPMailer) SendPasswordReset(ctx context.Context, to, name, resetLink string) error {
	if strings.TrimSpace(to) == "" {
		return fmt.Errorf("mail: recipient is required")
	}
	msg := BuildResetMessage(m.From, to, name, resetLink)
	auth := smtp.PlainAuth("", m.Username, m.Password, m.Host)
	addr := m.Host + ":" + m.Port

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, auth, m.From, []string{to}, msg)
	}()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("mail: send reset to %s: %w", to, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("mail: send reset to %s: %w", to, ctx.Err())
	}
}

// BuildResetMessage renders the RFC 5322 message body for a reset email.
func BuildResetMessage(from, to, name, resetLink string) []byte {
	if strings.TrimSpace(name) == "" {
		name = "there"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	b.WriteString("Subject: Reset Your Password\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "<p>Hi %s,</p>", name)
	b.WriteString("<p>We received a request to reset your password. The link below expires in one hour.</p>")
	fmt.Fprintf(&b, `<p><a href="%s">Reset your password</a></p>`, resetLink)
	b.WriteString("<p>If you did not request this, you can safely ignore this email.</p>")
	fmt.Fprintf(&b, "<p>&copy; %d FinTrack</p>", time.Now().Year())
	return []byte(b.String())
}

// LogMailer writes dispatches to the shared logger instead of the network.
// Used in dev runs without SMTP credentials and in tests.
type LogMailer struct{}

func (LogMailer) SendPasswordReset(ctx context.Context, to, name, resetLink string) error {
	obs.Info("password_reset_mail", map[string]any{
		"to":   to,
		"link": resetLink,
	})
	return nil
}
