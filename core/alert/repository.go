package alert

import (
	"context"
	"errors"
)

var ErrMessageNotFound = errors.New("message not found")

type Repository interface {
	CreateMessage(ctx context.Context, m Message) (Message, error)
	GetMessage(ctx context.Context, id string) (Message, error)
	UpdateMessage(ctx context.Context, m Message) (Message, error)
	// QueryRetryable returns messages eligible for the periodic re-attempt
	// sweep: PENDING, or carrying a failed channel, with retries left.
	QueryRetryable(ctx context.Context, maxRetries, limit int) ([]Message, error)
}
