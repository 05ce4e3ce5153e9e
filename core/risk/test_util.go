package risk

import (
	"context"
	"time"

	"github.com/tuyishimwe/umurinzi/core"
	"github.com/tuyishimwe/umurinzi/core/student"
)

type serviceMock struct {
	service
}

// NewServiceMock returns a Service whose school sweeps run synchronously,
// for deterministic tests.
func NewServiceMock(
	repo Repository,
	students student.Repository,
	notifier Notifier,
	logger core.Logger,
	conf *core.Config,
) Service {
	return &serviceMock{
		service: service{
			repo:     repo,
			students: students,
			notifier: notifier,
			logger:   logger,
			conf:     conf,
			policy:   DefaultEscalationPolicy(conf.Risk),
			sweeps:   newSweepRegistry(),
			nowFunc:  time.Now,
		},
	}
}

func (svc *serviceMock) DetectForSchool(ctx context.Context, schoolID, actorID string) (SweepRun, error) {
	run := SweepRun{
		ID:        "sweep-test",
		SchoolID:  schoolID,
		ActorID:   actorID,
		Status:    SweepRunning,
		StartedAt: svc.nowFunc().UTC(),
	}
	svc.sweeps.add(run)
	// run synchronously
	svc.runSweep(ctx, run)
	return svc.GetSweepRun(ctx, run.ID)
}
