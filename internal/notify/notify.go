// Package notify delivers messages to users. Delivery is best effort: callers log failures and
// carry on.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrNotDelivered is returned by notifiers that accept a message without delivering it.
var ErrNotDelivered = errors.New("notify: message not delivered")

// Message is one outbound notification.
type Message struct {
	ID      string
	To      string
	Subject string
	Body    string
}

// Notifier sends a message to its recipient.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Account holds the identifying fields of a newly created account. Empty fields are omitted
// from the message.
type Account struct {
	Email        string
	Username     string
	BadgeBarcode string
	BadgeRFID    string
}

// CredentialMessage builds the new-account notice carrying the one-time credential and, when
// present, the static MFA codes.
func CredentialMessage(acct Account, credential string, staticCodes []string) Message {
	var b strings.Builder
	b.WriteString("Your account has been created.\n\n")
	fmt.Fprintf(&b, "Email: %s\n", acct.Email)
	if acct.Username != "" {
		fmt.Fprintf(&b, "Username: %s\n", acct.Username)
	}
	if acct.BadgeBarcode != "" {
		fmt.Fprintf(&b, "Badge barcode: %s\n", acct.BadgeBarcode)
	}
	if acct.BadgeRFID != "" {
		fmt.Fprintf(&b, "Badge RFID: %s\n", acct.BadgeRFID)
	}
	fmt.Fprintf(&b, "Password: %s\n", credential)
	if len(staticCodes) > 0 {
		b.WriteString("\nOne-time MFA codes (each works once):\n")
		for _, c := range staticCodes {
			fmt.Fprintf(&b, "  %s\n", c)
		}
	}
	b.WriteString("\nPlease change your password after your first login.\n")
	return Message{
		ID:      uuid.NewString(),
		To:      acct.Email,
		Subject: "Your new account",
		Body:    b.String(),
	}
}

// LogNotifier writes messages to a logger instead of delivering them. The body is not logged
// because it carries credentials, so Notify always reports ErrNotDelivered.
type LogNotifier struct {
	Log logrus.FieldLogger
}

// Notify logs the message envelope and returns ErrNotDelivered.
func (n LogNotifier) Notify(_ context.Context, msg Message) error {
	log := n.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	log.WithFields(logrus.Fields{"message_id": msg.ID, "to": msg.To, "subject": msg.Subject}).Warn("notification not delivered (log notifier)")
	return ErrNotDelivered
}

// StaticCodesMessage carries a fresh set of one-time MFA codes.
func StaticCodesMessage(email string, codes []string) Message {
	var b strings.Builder
	b.WriteString("Your one-time MFA codes (each works once):\n\n")
	for _, c := range codes {
		fmt.Fprintf(&b, "  %s\n", c)
	}
	b.WriteString("\nAny codes issued before these no longer work.\n")
	return Message{ID: uuid.NewString(), To: email, Subject: "Your MFA codes", Body: b.String()}
}
