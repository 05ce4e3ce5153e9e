package alert

import (
	"context"
	"fmt"

	"github.com/tuyishimwe/umurinzi/core"
	"github.com/tuyishimwe/umurinzi/core/risk"
	"github.com/tuyishimwe/umurinzi/core/student"
)

// FlagNotifier adapts the dispatcher to the detection pipeline's notifier
// contract: flag events become fire-and-forget guardian alerts. A failed or
// slow send never reaches the detection path.
type FlagNotifier struct {
	svc    Service
	logger core.Logger
	sync   bool // tests run sends synchronously
}

var _ risk.Notifier = (*FlagNotifier)(nil)

func NewFlagNotifier(svc Service, logger core.Logger) *FlagNotifier {
	return &FlagNotifier{svc: svc, logger: logger}
}

// NewFlagNotifierMock runs sends synchronously, for deterministic tests.
func NewFlagNotifierMock(svc Service, logger core.Logger) *FlagNotifier {
	return &FlagNotifier{svc: svc, logger: logger, sync: true}
}

func (n *FlagNotifier) FlagRaised(st student.Student, fl risk.Flag) {
	if n.sync {
		n.send(st, fl)
		return
	}
	go n.send(st, fl)
}

func (n *FlagNotifier) send(st student.Student, fl risk.Flag) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error(fmt.Sprintf("flag notifier: panic sending alert for flag %s: %v", fl.ID, r))
		}
	}()

	_, err := n.svc.SendAlert(context.Background(), SendRequest{
		StudentID: st.ID,
		ActorID:   fl.CreatedBy,
		Channel:   ChannelBoth,
		Type:      TemplateRiskAlert,
		Variables: map[string]string{
			"riskTitle":   fl.Title,
			"severity":    string(fl.Severity),
			"description": fl.Description,
		},
	})
	if err != nil {
		// rendering/lookup errors only; delivery failures are already
		// recorded on the message by the dispatcher
		n.logger.Error(fmt.Sprintf("flag notifier: alert for flag %s not sent: %v", fl.ID, err), err)
	}
}
