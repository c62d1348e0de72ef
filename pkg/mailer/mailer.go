package mailer

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

// Message is a single HTML email.
type Message struct {
	To      []string
	Subject string
	HTML    string
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer sends through an authenticated SMTP relay.
type SMTPMailer struct {
	addr  string
	host  string
	from  string
	auth  smtp.Auth
	send  sendFunc
	clock func() time.Time
}

// NewSMTP returns nil when the mail section is not configured.
func NewSMTP(cfg config.MailConfig) *SMTPMailer {
	if !cfg.Enabled() {
		return nil
	}
	host := strings.TrimSpace(cfg.Host)
	return &SMTPMailer{
		addr:  net.JoinHostPort(host, strconv.Itoa(cfg.Port)),
		host:  host,
		from:  cfg.Sender(),
		auth:  smtp.PlainAuth("", strings.TrimSpace(cfg.User), cfg.Password, host),
		send:  smtp.SendMail,
		clock: time.Now,
	}
}

// Send is a no-op on a nil mailer.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if m == nil {
		return nil
	}
	recipients := make([]string, 0, len(msg.To))
	for _, to := range msg.To {
		if to = strings.TrimSpace(to); to != "" {
			recipients = append(recipients, to)
		}
	}
	if len(recipients) == 0 {
		return errors.New("mailer: no recipients")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.send(m.addr, m.auth, m.from, recipients, m.render(recipients, msg)); err != nil {
		return fmt.Errorf("mailer: send to %s: %w", strings.Join(recipients, ","), err)
	}
	return nil
}

func (m *SMTPMailer) render(to []string, msg Message) []byte {
	var b strings.Builder
	headers := [][2]string{
		{"From", m.from},
		{"To", strings.Join(to, ", ")},
		{"Subject", mime.QEncoding.Encode("utf-8", msg.Subject)},
		{"Date", m.clock().UTC().Format(time.RFC1123Z)},
		{"MIME-Version", "1.0"},
		{"Content-Type", `text/html; charset="UTF-8"`},
	}
	for _, h := range headers {
		b.WriteString(h[0])
		b.WriteString(": ")
		b.WriteString(h[1])
		b.WriteString("\r\n")
	}
	b.WriteString("\r\n")
	b.WriteString(msg.HTML)
	return []byte(b.String())
}
