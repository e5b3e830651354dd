package notify

import (
	"context"
	"errors"
	"fmt"

	"gopkg.in/gomail.v2"
)

// ErrNoRecipient is returned for messages without a To address.
var ErrNoRecipient = errors.New("notify: message has no recipient")

// Sender delivers a composed gomail message. *gomail.Dialer satisfies it.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPConfig configures SMTPNotifier.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPNotifier sends plain-text mail over SMTP.
type SMTPNotifier struct {
	from   string
	sender Sender
}

// NewSMTPNotifier returns a notifier that dials cfg.Host for every message.
func NewSMTPNotifier(cfg SMTPConfig) *SMTPNotifier {
	return &SMTPNotifier{from: cfg.From, sender: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)}
}

// NewSMTPNotifierWithSender is for callers that manage the connection themselves.
func NewSMTPNotifierWithSender(from string, sender Sender) *SMTPNotifier {
	return &SMTPNotifier{from: from, sender: sender}
}

// Notify composes and sends msg. The context is checked before dialing; gomail does not take one.
func (n *SMTPNotifier) Notify(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	if msg.ID != "" {
		m.SetHeader("X-Message-ID", msg.ID)
	}
	m.SetBody("text/plain", msg.Body)
	if err := n.sender.DialAndSend(m); err != nil {
		return fmt.Errorf("send mail to %s: %w", msg.To, err)
	}
	return nil
}
