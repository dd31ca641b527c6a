package notifications

import (
	"context"
	"errors"
	"strings"

	"github.com/charlesng35/fundraiser/pkg/mail"
)

// MailSink emails notifications to the configured administrators.
type MailSink struct {
	mailer     mail.Mailer
	from       string
	recipients []string
}

// NewMailSink builds a sink. Recipients are required.
func NewMailSink(mailer mail.Mailer, from string, recipients ...string) (*MailSink, error) {
	if mailer == nil {
		return nil, errors.New("notifications: mailer is required")
	}
	cleaned := make([]string, 0, len(recipients))
	for _, r := range recipients {
		if r = strings.TrimSpace(r); r != "" {
			cleaned = append(cleaned, r)
		}
	}
	if len(cleaned) == 0 {
		return nil, errors.New("notifications: at least one recipient is required")
	}
	return &MailSink{mailer: mailer, from: from, recipients: cleaned}, nil
}

func (s *MailSink) Notify(ctx context.Context, n Notification) error {
	return s.mailer.Send(ctx, mail.Message{
		From:    s.from,
		To:      s.recipients,
		Subject: "[fundraiser] " + n.Subject,
		Body:    formatBody(n),
	})
}
