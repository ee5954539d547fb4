package mail

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/worldlaptopcare/auth-service/internal/core/ports"
)

// SMTPMailer delivers mail through a plain SMTP relay. Config carries
// the relay address (host:port), the From header, and optional PLAIN
// auth credentials.
type SMTPMailer struct {
	addr string
	from string
	auth smtp.Auth
}

type Config struct {
	Addr     string
	From     string
	Username string
	Password string
}

func NewSMTPMailer(cfg Config) *SMTPMailer {
	var auth smtp.Auth
	if cfg.Username != "" {
		host := cfg.Addr
		if i := strings.LastIndex(host, ":"); i >= 0 {
			host = host[:i]
		}
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, host)
	}
	return &SMTPMailer{addr: cfg.Addr, from: cfg.From, auth: auth}
}

// Send delivers a single message. Multipart body when both text and
// HTML parts are present; otherwise whichever part exists.
func (m *SMTPMailer) Send(_ context.Context, mail ports.Mail) error {
	msg := m.compose(mail)
	if err := smtp.SendMail(m.addr, m.auth, m.from, []string{mail.To}, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (m *SMTPMailer) compose(mail ports.Mail) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.from)
	fmt.Fprintf(&b, "To: %s\r\n", mail.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mail.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")

	switch {
	case mail.HTML != "" && mail.Text != "":
		const boundary = "mixed-auth-mail"
		fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", boundary)
		fmt.Fprintf(&b, "--%s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n", boundary, mail.Text)
		fmt.Fprintf(&b, "--%s\r\nContent-Type: text/html; charset=utf-8\r\n\r\n%s\r\n", boundary, mail.HTML)
		fmt.Fprintf(&b, "--%s--\r\n", boundary)
	case mail.HTML != "":
		fmt.Fprintf(&b, "Content-Type: text/html; charset=utf-8\r\n\r\n%s\r\n", mail.HTML)
	default:
		fmt.Fprintf(&b, "Content-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n", mail.Text)
	}
	return []byte(b.String())
}
