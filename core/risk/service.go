package risk

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/tuyishimwe/umurinzi/core"
	"github.com/tuyishimwe/umurinzi/core/student"
)

type (
	// Notifier receives flag events the dispatcher turns into guardian
	// alerts. Implementations must not block and must swallow delivery
	// errors: a failed send never affects flag state.
	Notifier interface {
		FlagRaised(st student.Student, fl Flag)
	}

	Service interface {
		// DetectForStudent runs the full evaluator pipeline for one student
		// and reconciles the outcome, synchronously. The student's risk
		// level reflects the new flag state when this returns.
		DetectForStudent(ctx context.Context, studentID, schoolID, actorID string) (Result, error)
		// DetectSocioeconomic runs only the socioeconomic rule family; used
		// right after registration and on profile changes.
		DetectSocioeconomic(ctx context.Context, studentID, schoolID, actorID string) (Result, error)
		// DetectForSchool accepts immediately and runs the pipeline for
		// every active student of the school in the background. Per-student
		// failures are collected into the run summary, never aborting the
		// sweep.
		DetectForSchool(ctx context.Context, schoolID, actorID string) (SweepRun, error)
		GetSweepRun(ctx context.Context, id string) (SweepRun, error)

		// ReportSignal records a staff-submitted signal through the same
		// dedup reconciliation as automatic detection.
		ReportSignal(ctx context.Context, sig ManualSignal) (Flag, error)
		ResolveFlag(ctx context.Context, flagID, actorID, notes string) (Flag, error)
		// DeleteFlag hard-deletes a flag (admin only) and recomputes the
		// student's risk level.
		DeleteFlag(ctx context.Context, flagID string) error
		// UpdateRiskLevel recomputes the cached risk level projection from
		// the student's active flags.
		UpdateRiskLevel(ctx context.Context, studentID string) (student.RiskLevel, error)

		GetFlag(ctx context.Context, flagID string) (Flag, error)
		ActiveFlags(ctx context.Context, studentID string) ([]Flag, error)
		FilterFlags(ctx context.Context, filter FlagFilter) ([]Flag, error)
	}

	service struct {
		repo     Repository
		students student.Repository
		notifier Notifier
		logger   core.Logger
		conf     *core.Config
		policy   EscalationPolicy
		sweeps   *sweepRegistry
		nowFunc  func() time.Time
	}
)

func NewService(
	repo Repository,
	students student.Repository,
	notifier Notifier,
	logger core.Logger,
	conf *core.Config,
) Service {
	return &service{
		repo:     repo,
		students: students,
		notifier: notifier,
		logger:   logger,
		conf:     conf,
		policy:   DefaultEscalationPolicy(conf.Risk),
		sweeps:   newSweepRegistry(),
		nowFunc:  time.Now,
	}
}

type evalFamilies struct {
	attendance    bool
	performance   bool
	socioeconomic bool
}

var (
	allFamilies     = evalFamilies{attendance: true, performance: true, socioeconomic: true}
	socioFamilyOnly = evalFamilies{socioeconomic: true}
)

func (svc *service) DetectForStudent(ctx context.Context, studentID, schoolID, actorID string) (Result, error) {
	return svc.detectStudent(ctx, studentID, schoolID, actorID, allFamilies)
}

func (svc *service) DetectSocioeconomic(ctx context.Context, studentID, schoolID, actorID string) (Result, error) {
	return svc.detectStudent(ctx, studentID, schoolID, actorID, socioFamilyOnly)
}

func (svc *service) detectStudent(ctx context.Context, studentID, schoolID, actorID string, families evalFamilies) (Result, error) {
	st, err := svc.students.GetStudent(ctx, studentID)
	if err != nil {
		return Result{}, err
	}
	if schoolID != "" && st.SchoolID != schoolID {
		return Result{}, student.ErrNotFound
	}

	var candidates []CandidateSignal
	if families.attendance {
		since := svc.nowFunc().UTC().AddDate(0, 0, -svc.conf.Risk.AttendanceWindowDays)
		recs, err := svc.students.AttendanceSince(ctx, st.ID, since)
		if err != nil {
			return Result{}, errors.Wrap(err, "loading attendance")
		}
		candidates = append(candidates, evaluateAttendance(recs, svc.conf.Risk)...)
	}
	if families.performance {
		recs, err := svc.students.RecentPerformance(ctx, st.ID)
		if err != nil {
			return Result{}, errors.Wrap(err, "loading performance")
		}
		candidates = append(candidates, evaluatePerformance(recs, svc.conf.Risk)...)
	}
	if families.socioeconomic {
		candidates = append(candidates, evaluateSocioeconomic(st.Profile, svc.conf.Risk)...)
	}

	res, changed, err := svc.reconcile(ctx, st, actorID, candidates, true)
	if err != nil {
		return res, err
	}

	// read-after-write: the level must observe the mutations above before
	// this call returns to the triggering write path.
	if _, err = svc.UpdateRiskLevel(ctx, st.ID); err != nil {
		return res, err
	}

	svc.notifyChanged(st, changed)
	return res, nil
}

func (svc *service) ReportSignal(ctx context.Context, sig ManualSignal) (Flag, error) {
	if err := sig.Validate(); err != nil {
		return Flag{}, err
	}

	st, err := svc.students.GetStudent(ctx, sig.StudentID)
	if err != nil {
		return Flag{}, err
	}
	if st.SchoolID != sig.SchoolID {
		return Flag{}, student.ErrNotFound
	}

	cand := CandidateSignal{
		Type:        sig.Type,
		Severity:    sig.Severity,
		Title:       core.CleanString(sig.Title),
		Description: core.CleanString(sig.Description),
	}
	_, changed, err := svc.reconcile(ctx, st, sig.ActorID, []CandidateSignal{cand}, false)
	if err != nil {
		return Flag{}, err
	}
	if _, err = svc.UpdateRiskLevel(ctx, st.ID); err != nil {
		return Flag{}, err
	}
	svc.notifyChanged(st, changed)

	if len(changed) > 0 {
		return changed[0], nil
	}
	// already represented by an active flag of equal or higher severity
	flags, err := svc.repo.ActiveFlags(ctx, st.ID)
	if err != nil {
		return Flag{}, err
	}
	for _, fl := range flags {
		if fl.Type == sig.Type {
			return fl, nil
		}
	}
	return Flag{}, ErrFlagNotFound
}

func (svc *service) ResolveFlag(ctx context.Context, flagID, actorID, notes string) (Flag, error) {
	fl, err := svc.repo.ResolveFlag(ctx, flagID, actorID, notes, svc.nowFunc().UTC())
	if err != nil {
		return Flag{}, err
	}
	if _, err = svc.UpdateRiskLevel(ctx, fl.StudentID); err != nil {
		return fl, err
	}
	return fl, nil
}

func (svc *service) DeleteFlag(ctx context.Context, flagID string) error {
	fl, err := svc.repo.DeleteFlag(ctx, flagID)
	if err != nil {
		return err
	}
	_, err = svc.UpdateRiskLevel(ctx, fl.StudentID)
	return err
}

func (svc *service) UpdateRiskLevel(ctx context.Context, studentID string) (student.RiskLevel, error) {
	flags, err := svc.repo.ActiveFlags(ctx, studentID)
	if err != nil {
		return student.RiskNone, err
	}
	level := ComputeLevel(flags, svc.policy)
	if err = svc.students.SetRiskLevel(ctx, studentID, level, svc.nowFunc().UTC()); err != nil {
		return level, err
	}
	return level, nil
}

func (svc *service) GetFlag(ctx context.Context, flagID string) (Flag, error) {
	return svc.repo.GetFlag(ctx, flagID)
}

func (svc *service) ActiveFlags(ctx context.Context, studentID string) ([]Flag, error) {
	return svc.repo.ActiveFlags(ctx, studentID)
}

func (svc *service) FilterFlags(ctx context.Context, filter FlagFilter) ([]Flag, error) {
	return svc.repo.FilterFlags(ctx, filter)
}

// notifyChanged forwards created/escalated flags to the dispatcher. The
// notifier contract is non-blocking and failure-isolated, so detection never
// waits on (or fails with) a delivery.
func (svc *service) notifyChanged(st student.Student, changed []Flag) {
	if svc.notifier == nil {
		return
	}
	for _, fl := range changed {
		svc.notifier.FlagRaised(st, fl)
	}
}
