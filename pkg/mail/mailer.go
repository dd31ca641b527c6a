package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/mail"
	"net/smtp"
	"strings"
	"time"
)

const defaultTimeout = 10 * time.Second

// Message is a plain-text email.
type Message struct {
	From    string
	To      []string
	Subject string
	Body    string
}

// Mailer sends messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSettings configure the SMTP relay.
type SMTPSettings struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// UseTLS dials with implicit TLS. Otherwise STARTTLS is used when the relay offers it.
	UseTLS  bool
	Timeout time.Duration
}

func (s SMTPSettings) address() string {
	return net.JoinHostPort(s.Host, fmt.Sprint(s.Port))
}

// NewMailer builds an SMTP mailer when delivery is enabled and a discarding mailer otherwise.
func NewMailer(cfg SMTPSettings) (Mailer, error) {
	if !cfg.Enabled {
		return Discard(), nil
	}
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, errors.New("smtp: host is required when enabled")
	}
	if cfg.Port <= 0 {
		return nil, errors.New("smtp: port is required when enabled")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &SMTPMailer{cfg: cfg, now: time.Now}, nil
}

// Discard returns a Mailer that accepts and drops every message.
func Discard() Mailer {
	return discardMailer{}
}

type discardMailer struct{}

func (discardMailer) Send(context.Context, Message) error { return nil }

// SMTPMailer delivers one message per connection.
type SMTPMailer struct {
	cfg SMTPSettings
	now func() time.Time
}

// Send validates the envelope and relays msg. The whole exchange is bounded by the
// configured timeout or the context deadline, whichever comes first.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	from, recipients, err := m.envelope(msg)
	if err != nil {
		return err
	}

	client, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if m.cfg.Username != "" {
		if err := client.Auth(smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)); err != nil {
			return fmt.Errorf("smtp: auth: %w", err)
		}
	}

	if err := client.Mail(from); err != nil {
		return fmt.Errorf("smtp: mail from: %w", err)
	}
	for _, rcpt := range recipients {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp: rcpt to %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp: data: %w", err)
	}
	if _, err := w.Write([]byte(render(from, recipients, msg, m.now()))); err != nil {
		_ = w.Close()
		return fmt.Errorf("smtp: write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp: close body: %w", err)
	}
	return client.Quit()
}

func (m *SMTPMailer) envelope(msg Message) (string, []string, error) {
	from := strings.TrimSpace(msg.From)
	if from == "" {
		from = m.cfg.From
	}
	if from == "" {
		return "", nil, errors.New("smtp: sender address is required")
	}
	if _, err := mail.ParseAddress(from); err != nil {
		return "", nil, fmt.Errorf("smtp: invalid from address: %w", err)
	}

	seen := make(map[string]struct{}, len(msg.To))
	var recipients []string
	for _, rcpt := range msg.To {
		rcpt = strings.TrimSpace(rcpt)
		if rcpt == "" {
			continue
		}
		if _, dup := seen[rcpt]; dup {
			continue
		}
		if _, err := mail.ParseAddress(rcpt); err != nil {
			return "", nil, fmt.Errorf("smtp: invalid recipient address %q: %w", rcpt, err)
		}
		seen[rcpt] = struct{}{}
		recipients = append(recipients, rcpt)
	}
	if len(recipients) == 0 {
		return "", nil, errors.New("smtp: at least one recipient is required")
	}
	return from, recipients, nil
}

func (m *SMTPMailer) connect(ctx context.Context) (*smtp.Client, error) {
	deadline := time.Now().Add(m.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	dialer := &net.Dialer{Deadline: deadline}
	var (
		conn net.Conn
		err  error
	)
	if m.cfg.UseTLS {
		td := &tls.Dialer{NetDialer: dialer, Config: &tls.Config{ServerName: m.cfg.Host}}
		conn, err = td.DialContext(ctx, "tcp", m.cfg.address())
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", m.cfg.address())
	}
	if err != nil {
		return nil, fmt.Errorf("smtp: dial %s: %w", m.cfg.address(), err)
	}
	_ = conn.SetDeadline(deadline)

	client, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("smtp: greeting: %w", err)
	}

	if !m.cfg.UseTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: m.cfg.Host}); err != nil {
				_ = client.Close()
				return nil, fmt.Errorf("smtp: starttls: %w", err)
			}
		}
	}
	return client, nil
}

func render(from string, to []string, msg Message, at time.Time) string {
	var b strings.Builder
	header := func(name, value string) {
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(strings.NewReplacer("\r", " ", "\n", " ").Replace(value))
		b.WriteString("\r\n")
	}
	header("From", from)
	header("To", strings.Join(to, ", "))
	header("Subject", msg.Subject)
	header("Date", at.Format(time.RFC1123Z))
	header("MIME-Version", "1.0")
	header("Content-Type", "text/plain; charset=UTF-8")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(strings.ReplaceAll(msg.Body, "\r\n", "\n"), "\n", "\r\n"))
	return b.String()
}
