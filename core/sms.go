package core

import "context"

type (
	SMSMessage struct {
		To   string // phone number, international format
		Body string
	}

	// SMSSender is any service that can send a text message.
	SMSSender interface {
		Send(ctx context.Context, msg *SMSMessage) error
	}
)

func (m *SMSMessage) HasRecipient() bool { return m.To != "" }
