package risk

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrSweepNotFound = errors.New("sweep run not found")

// sweepRegistry tracks in-flight and finished whole-school runs so callers
// can poll a run by ID instead of launching untracked background work.
type sweepRegistry struct {
	mu   sync.RWMutex
	runs map[string]*SweepRun
}

func newSweepRegistry() *sweepRegistry {
	return &sweepRegistry{runs: make(map[string]*SweepRun)}
}

func (r *sweepRegistry) add(run SweepRun) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.ID] = &run
}

func (r *sweepRegistry) get(id string) (SweepRun, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runs[id]
	if !ok {
		return SweepRun{}, false
	}
	return *run, true
}

func (r *sweepRegistry) finish(id string, summary SweepSummary, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if run, ok := r.runs[id]; ok {
		run.Status = SweepDone
		run.FinishedAt = &at
		run.Summary = summary
	}
}

func (svc *service) DetectForSchool(ctx context.Context, schoolID, actorID string) (SweepRun, error) {
	run := SweepRun{
		ID:        uuid.NewString(),
		SchoolID:  schoolID,
		ActorID:   actorID,
		Status:    SweepRunning,
		StartedAt: svc.nowFunc().UTC(),
	}
	svc.sweeps.add(run)

	// the run outlives the triggering request
	go svc.runSweep(context.Background(), run)

	return run, nil
}

func (svc *service) GetSweepRun(_ context.Context, id string) (SweepRun, error) {
	run, ok := svc.sweeps.get(id)
	if !ok {
		return SweepRun{}, ErrSweepNotFound
	}
	return run, nil
}

// runSweep processes every active student of the school with a bounded
// worker pool. A student's failure lands in the summary's error list; it
// never aborts the sweep and never rolls back other students' commits.
func (svc *service) runSweep(ctx context.Context, run SweepRun) {
	var summary SweepSummary
	defer func() {
		svc.sweeps.finish(run.ID, summary, svc.nowFunc().UTC())
		svc.logger.Info(fmt.Sprintf(
			"sweep %s done: school=%s scanned=%d detected=%d created=%d errors=%d",
			run.ID, run.SchoolID, summary.StudentsScanned, summary.RisksDetected, summary.FlagsCreated, len(summary.Errors),
		))
	}()

	students, err := svc.students.QueryActiveStudentsBySchool(ctx, run.SchoolID)
	if err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("loading students: %v", err))
		return
	}

	workers := svc.conf.Risk.SweepWorkers
	if workers < 1 {
		workers = 1
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		ids = make(chan string)
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range ids {
				res, err := svc.sweepOne(ctx, id, run.SchoolID, run.ActorID)
				mu.Lock()
				summary.StudentsScanned++
				summary.RisksDetected += res.RisksDetected
				summary.FlagsCreated += res.FlagsCreated
				if err != nil {
					summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", id, err))
				}
				mu.Unlock()
			}
		}()
	}
	for _, st := range students {
		ids <- st.ID
	}
	close(ids)
	wg.Wait()
}

// sweepOne isolates a single student's detection, converting panics into
// errors so one bad record cannot take the whole sweep down.
func (svc *service) sweepOne(ctx context.Context, studentID, schoolID, actorID string) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return svc.detectStudent(ctx, studentID, schoolID, actorID, allFamilies)
}
