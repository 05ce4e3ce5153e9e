package smssvc

import (
	"context"
	"log"
	"sync"

	"github.com/tuyishimwe/umurinzi/core"
)

var (
	SentMessages = make([]core.SMSMessage, 0)
	mu           sync.Mutex
)

// consoleService writes texts to stdout instead of sending them. Used in
// DEV and in tests.
type consoleService struct {
	senderID      string
	disableOutput bool
}

var _ core.SMSSender = (*consoleService)(nil)

func NewConsoleService(conf *core.Config) core.SMSSender {
	return &consoleService{senderID: conf.SMS.SenderID}
}

// NewConsoleServiceMock suppresses output and only records sent messages.
func NewConsoleServiceMock(conf *core.Config) core.SMSSender {
	return &consoleService{senderID: conf.SMS.SenderID, disableOutput: true}
}

func (svc *consoleService) Send(_ context.Context, msg *core.SMSMessage) error {
	if !msg.HasRecipient() {
		return nil
	}
	if !svc.disableOutput {
		log.Printf("SMS from %s to %s: %s", svc.senderID, msg.To, msg.Body)
	}
	mu.Lock()
	SentMessages = append(SentMessages, *msg)
	mu.Unlock()
	return nil
}

// ClearSentMessages resets the capture buffer between tests.
func ClearSentMessages() {
	mu.Lock()
	SentMessages = SentMessages[:0]
	mu.Unlock()
}
