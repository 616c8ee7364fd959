package executor

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"
)

// Message — письмо для отправки.
type Message struct {
	// From — адрес отправителя. Пустой — дефолт мейлера.
	From string

	// To — получатели.
	To []string

	// CC — копия.
	CC []string

	// Subject — тема письма.
	Subject string

	// Body — тело письма, text/plain.
	Body string
}

// Mailer — отправщик почты.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPConfig — конфигурация SMTP-мейлера.
type SMTPConfig struct {
	// Addr — адрес сервера, host:port.
	Addr string

	// Username и Password — учётные данные. Пустой Username — без auth.
	Username string
	Password string

	// From — адрес отправителя по умолчанию.
	From string
}

// SMTPMailer шлёт почту через SMTP.
type SMTPMailer struct {
	addr string
	auth smtp.Auth
	from string
}

// NewSMTPMailer создаёт SMTPMailer.
func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	var auth smtp.Auth
	if cfg.Username != "" {
		host, _, err := net.SplitHostPort(cfg.Addr)
		if err != nil {
			host = cfg.Addr
		}
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, host)
	}
	return &SMTPMailer{addr: cfg.Addr, auth: auth, from: cfg.From}
}

// Send отправляет письмо.
// net/smtp не принимает контекст, отмена проверяется до отправки.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	from := msg.From
	if from == "" {
		from = m.from
	}
	if from == "" {
		return fmt.Errorf("smtp: sender address is not configured")
	}

	rcpt := make([]string, 0, len(msg.To)+len(msg.CC))
	rcpt = append(rcpt, msg.To...)
	rcpt = append(rcpt, msg.CC...)

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(msg.To, ", "))
	if len(msg.CC) > 0 {
		fmt.Fprintf(&b, "Cc: %s\r\n", strings.Join(msg.CC, ", "))
	}
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body)

	if err := smtp.SendMail(m.addr, m.auth, from, rcpt, []byte(b.String())); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
