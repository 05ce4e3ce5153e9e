package core

import (
	"context"
	"net/mail"
)

type (
	EmailMessage struct {
		To          []mail.Address
		Cc          []mail.Address
		Bcc         []mail.Address
		Subject     string
		TextContent string
		HTMLContent string
	}

	// EmailSender is any service that can send an email.
	// Implementations must return a descriptive error on delivery failure;
	// callers decide whether the failure is fatal (it never is for alerts:
	// the dispatcher records it on the message's channel status instead).
	EmailSender interface {
		Send(ctx context.Context, msg *EmailMessage) error
	}
)

func (m *EmailMessage) HasRecipients() bool { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool    { return (m.TextContent != "") || (m.HTMLContent != "") }
