// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"embed"
	"fmt"
	"html/template"
	"io"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"github.com/samber/oops"
)

//go:embed templates/*.html
var templatesFS embed.FS

// SMTPConfig configures the SMTP mailer.
type SMTPConfig struct {
	Host     string `koanf:"host" json:"host,omitempty"`
	Port     int    `koanf:"port" json:"port,omitempty"`
	Username string `koanf:"username" json:"username,omitempty"`
	Password string `koanf:"password" json:"password,omitempty"`
	From     string `koanf:"from" json:"from,omitempty"`
}

func (c SMTPConfig) addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// smtpClient is the subset of *smtp.Client the mailer drives.
type smtpClient interface {
	Extension(ext string) (bool, string)
	StartTLS(config *tls.Config) error
	Auth(a smtp.Auth) error
	Mail(from string) error
	Rcpt(to string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
}

// dialFunc opens an SMTP session.
type dialFunc func(ctx context.Context, addr, host string) (smtpClient, error)

// Mailer renders message templates as HTML and sends them over SMTP.
type Mailer struct {
	cfg       SMTPConfig
	templates *template.Template
	dial      dialFunc
	now       func() time.Time
}

// NewMailer parses the embedded templates and returns a Mailer.
func NewMailer(cfg SMTPConfig) (*Mailer, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, oops.Code("NOTIFY_TEMPLATE_FAILED").Wrap(err)
	}
	return &Mailer{cfg: cfg, templates: tmpl, dial: dialSMTP, now: time.Now}, nil
}

// Render executes the named template with data.
func (m *Mailer) Render(name string, data Data) (string, error) {
	var buf bytes.Buffer
	if err := m.templates.ExecuteTemplate(&buf, name+".html", data); err != nil {
		return "", oops.Code("NOTIFY_TEMPLATE_FAILED").With("template", name).Wrap(err)
	}
	return buf.String(), nil
}

// Send renders msg and delivers it. STARTTLS is used when the server offers it;
// credentials are sent only over TLS.
func (m *Mailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return oops.Code("NOTIFY_SEND_FAILED").Wrap(err)
	}
	body, err := m.Render(msg.Template, msg.Data)
	if err != nil {
		return err
	}

	client, err := m.dial(ctx, m.cfg.addr(), m.cfg.Host)
	if err != nil {
		return oops.Code("NOTIFY_SEND_FAILED").With("operation", "connect").With("addr", m.cfg.addr()).Wrap(err)
	}
	defer func() { _ = client.Close() }()

	if err := m.deliver(client, msg, body); err != nil {
		return oops.Code("NOTIFY_SEND_FAILED").With("to", msg.To).With("template", msg.Template).Wrap(err)
	}
	return nil
}

func (m *Mailer) deliver(client smtpClient, msg Message, body string) error {
	tlsActive := false
	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: m.cfg.Host, MinVersion: tls.VersionTLS12}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
		tlsActive = true
	}
	if m.cfg.Username != "" {
		if !tlsActive {
			return fmt.Errorf("server does not offer STARTTLS; refusing to send credentials")
		}
		if err := client.Auth(smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}
	if err := client.Mail(m.cfg.From); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := client.Rcpt(msg.To); err != nil {
		return fmt.Errorf("rcpt to: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(m.compose(msg, body)); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close body: %w", err)
	}
	return client.Quit()
}

func (m *Mailer) compose(msg Message, body string) []byte {
	var buf bytes.Buffer
	headers := [][2]string{
		{"From", m.cfg.From},
		{"To", msg.To},
		{"Subject", msg.Subject},
		{"Date", m.now().Format(time.RFC1123Z)},
		{"MIME-Version", "1.0"},
		{"Content-Type", "text/html; charset=UTF-8"},
	}
	for _, h := range headers {
		fmt.Fprintf(&buf, "%s: %s\r\n", h[0], h[1])
	}
	buf.WriteString("\r\n")
	buf.WriteString(body)
	return buf.Bytes()
}

// Close is a no-op; connections are opened per message.
func (m *Mailer) Close() error { return nil }

func dialSMTP(ctx context.Context, addr, host string) (smtpClient, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	c, err := smtp.NewClient(conn, host)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return c, nil
}
