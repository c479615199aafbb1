// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package notify

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/samber/oops"
)

// Mailer delivers a rendered message.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer writes messages to a logger instead of delivering them.
// The body, which carries single-use links, is only emitted at debug level.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer creates a LogMailer. A nil logger uses slog.Default().
func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{logger: logger}
}

// Send logs the message.
func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	m.logger.InfoContext(ctx, "mail delivered to log",
		"kind", string(msg.Kind),
		"to", msg.To,
		"subject", msg.Subject,
	)
	m.logger.DebugContext(ctx, "mail body", "kind", string(msg.Kind), "body", msg.Body)
	return nil
}

// SMTPConfig configures an SMTPMailer.
type SMTPConfig struct {
	// Addr is host:port of the submission server.
	Addr     string
	From     string
	Username string
	Password string
}

// sendFunc matches smtp.SendMail.
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer delivers messages through an SMTP relay.
type SMTPMailer struct {
	cfg  SMTPConfig
	auth smtp.Auth
	send sendFunc
	now  func() time.Time
}

// NewSMTPMailer creates an SMTPMailer. PLAIN auth is used when a username is set.
func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	host, _, err := net.SplitHostPort(cfg.Addr)
	if err != nil {
		return nil, oops.Code("NOTIFY_INVALID_SMTP_ADDR").With("addr", cfg.Addr).Wrap(err)
	}
	if cfg.From == "" {
		return nil, oops.Code("NOTIFY_INVALID_FROM").Errorf("sender address is required")
	}
	m := &SMTPMailer{cfg: cfg, send: smtp.SendMail, now: time.Now}
	if cfg.Username != "" {
		m.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, host)
	}
	return m, nil
}

// Send delivers msg. smtp.SendMail has no context support, so ctx is only
// checked before dialing.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return oops.Code("NOTIFY_SEND_FAILED").With("kind", string(msg.Kind)).Wrap(err)
	}
	if strings.ContainsAny(msg.To, "\r\n") {
		return oops.Code("NOTIFY_INVALID_RECIPIENT").With("kind", string(msg.Kind)).Errorf("recipient contains line breaks")
	}
	if err := m.send(m.cfg.Addr, m.auth, m.cfg.From, []string{msg.To}, m.render(msg)); err != nil {
		return oops.Code("NOTIFY_SEND_FAILED").
			With("kind", string(msg.Kind)).
			With("addr", m.cfg.Addr).
			Wrap(err)
	}
	return nil
}

func (m *SMTPMailer) render(msg Message) []byte {
	var b strings.Builder
	header := func(k, v string) { fmt.Fprintf(&b, "%s: %s\r\n", k, v) }
	header("From", m.cfg.From)
	header("To", msg.To)
	header("Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	header("Date", m.now().UTC().Format(time.RFC1123Z))
	header("MIME-Version", "1.0")
	header("Content-Type", `text/plain; charset="utf-8"`)
	header("Content-Transfer-Encoding", "8bit")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	b.WriteString("\r\n")
	return []byte(b.String())
}
