package app

import (
	"strings"

	"github.com/charlesng35/fundraiser/internal/notifications"
	"github.com/charlesng35/fundraiser/pkg/mail"
)

// SMTPSettings converts EmailConfig to the mail package representation.
func (c EmailConfig) SMTPSettings() mail.SMTPSettings {
	return mail.SMTPSettings{
		Enabled:  c.SMTP.Enabled,
		Host:     c.SMTP.Host,
		Port:     c.SMTP.Port,
		Username: c.SMTP.Username,
		Password: c.SMTP.Password,
		From:     c.SMTP.From,
		UseTLS:   c.SMTP.UseTLS,
		Timeout:  c.SMTP.Timeout,
	}
}

// QueueConfig converts NotificationsConfig into queue parameters.
func (c NotificationsConfig) QueueConfig() notifications.QueueConfig {
	return notifications.QueueConfig{
		Size:    c.QueueSize,
		Workers: c.Workers,
	}
}

// Recipients returns the trimmed, non-empty admin addresses.
func (c NotificationsConfig) Recipients() []string {
	out := make([]string, 0, len(c.AdminEmails))
	for _, addr := range c.AdminEmails {
		if addr = strings.TrimSpace(addr); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}
