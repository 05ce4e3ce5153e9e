package risk_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tuyishimwe/umurinzi/core"
	"github.com/tuyishimwe/umurinzi/core/alert"
	"github.com/tuyishimwe/umurinzi/core/risk"
	"github.com/tuyishimwe/umurinzi/core/student"
	emailsvc "github.com/tuyishimwe/umurinzi/services/email"
	smssvc "github.com/tuyishimwe/umurinzi/services/sms"
	dummydb "github.com/tuyishimwe/umurinzi/storage/database/dummy"
	testutil "github.com/tuyishimwe/umurinzi/tests"
)

type fixture struct {
	conf     *core.Config
	students testutil.StudentFixtureRepo
	flags    risk.Repository
	messages alert.Repository
	alertSvc alert.Service
	svc      risk.Service
}

func dayZero() time.Time {
	return time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
}

type failingEmailSender struct{}

func (failingEmailSender) Send(context.Context, *core.EmailMessage) error {
	return errors.New("smtp gateway down")
}

type failingSMSSender struct{}

func (failingSMSSender) Send(context.Context, *core.SMSMessage) error {
	return errors.New("sms gateway down")
}

func setup(t *testing.T) *fixture {
	t.Helper()

	conf := testutil.NewConfig()
	logger := testutil.NewLogger(t)

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open(): %v", err)
	}
	students := dummydb.NewStudentRepository(db)
	flags := dummydb.NewFlagRepository(db)
	messages := dummydb.NewMessageRepository(db)

	emailsvc.ClearSentMessages()
	smssvc.ClearSentMessages()
	alertSvc := alert.NewService(
		messages, students,
		emailsvc.NewConsoleServiceMock(conf), smssvc.NewConsoleServiceMock(conf),
		logger, conf,
	)
	notifier := alert.NewFlagNotifierMock(alertSvc, logger)

	return &fixture{
		conf:     conf,
		students: students,
		flags:    flags,
		messages: messages,
		alertSvc: alertSvc,
		svc:      risk.NewServiceMock(flags, students, notifier, logger, conf),
	}
}

func absences(n int) []student.AttendanceStatus {
	out := make([]student.AttendanceStatus, n)
	for i := range out {
		out[i] = student.AttendanceAbsent
	}
	return out
}

func presents(n int) []student.AttendanceStatus {
	out := make([]student.AttendanceStatus, n)
	for i := range out {
		out[i] = student.AttendancePresent
	}
	return out
}

func activeByType(t *testing.T, f *fixture, studentID string) map[risk.FlagType]risk.Flag {
	t.Helper()
	flags, err := f.svc.ActiveFlags(context.Background(), studentID)
	if err != nil {
		t.Fatalf("ActiveFlags(): %v", err)
	}
	byType := make(map[risk.FlagType]risk.Flag, len(flags))
	for _, fl := range flags {
		if _, dup := byType[fl.Type]; dup {
			t.Fatalf("two active flags of type %s", fl.Type)
		}
		byType[fl.Type] = fl
	}
	return byType
}

func TestService_DetectForStudent(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	st := testutil.CreateStudent(t, f.students, "sch1", "Aline", "Uwase", testutil.StableProfile(),
		[]student.GuardianContact{testutil.Guardian("Mukamana", "+250780000001", "muka@test.rw", true)})
	day := dayZero()
	testutil.AddAttendanceRun(t, f.students, st.ID, day, presents(17)...)
	testutil.AddAttendanceRun(t, f.students, st.ID, day.AddDate(0, 0, 17), absences(3)...)

	res, err := f.svc.DetectForStudent(ctx, st.ID, st.SchoolID, "staff1")
	if err != nil {
		t.Fatalf("DetectForStudent(): %v", err)
	}
	if res.FlagsCreated == 0 {
		t.Fatal("DetectForStudent() created no flags")
	}

	byType := activeByType(t, f, st.ID)
	fl, ok := byType[risk.TypeAttendance]
	if !ok {
		t.Fatal("no active ATTENDANCE flag")
	}
	if fl.Severity != risk.SeverityHigh {
		t.Errorf("flag severity = %v, want %v", fl.Severity, risk.SeverityHigh)
	}
	if !fl.AutoGenerated {
		t.Error("detected flag not marked auto-generated")
	}

	// the cached level observes the new flags before the call returns
	got, err := f.students.GetStudent(ctx, st.ID)
	if err != nil {
		t.Fatalf("GetStudent(): %v", err)
	}
	if got.RiskLevel != student.RiskHigh {
		t.Errorf("risk level = %v, want %v", got.RiskLevel, student.RiskHigh)
	}

	// alerts went out for the created flag
	if len(smssvc.SentMessages) == 0 {
		t.Error("no SMS sent for created flag")
	}
	if len(emailsvc.SentMessages) == 0 {
		t.Error("no email sent for created flag")
	}

	t.Run("rerun is idempotent", func(t *testing.T) {
		smssvc.ClearSentMessages()

		res, err := f.svc.DetectForStudent(ctx, st.ID, st.SchoolID, "staff1")
		if err != nil {
			t.Fatalf("DetectForStudent(): %v", err)
		}
		if res.FlagsCreated != 0 {
			t.Errorf("rerun FlagsCreated = %d, want 0", res.FlagsCreated)
		}
		rerun := activeByType(t, f, st.ID)
		if rerun[risk.TypeAttendance].ID != fl.ID {
			t.Error("rerun replaced the existing flag")
		}
		if len(smssvc.SentMessages) != 0 {
			t.Error("rerun sent duplicate alerts")
		}
	})

	t.Run("worsening data escalates in place", func(t *testing.T) {
		// extend the absence streak past the critical threshold
		testutil.AddAttendanceRun(t, f.students, st.ID, day.AddDate(0, 0, 20), absences(4)...)

		res, err := f.svc.DetectForStudent(ctx, st.ID, st.SchoolID, "staff1")
		if err != nil {
			t.Fatalf("DetectForStudent(): %v", err)
		}
		if res.FlagsCreated != 0 {
			t.Errorf("escalation FlagsCreated = %d, want 0", res.FlagsCreated)
		}

		byType := activeByType(t, f, st.ID)
		fl2 := byType[risk.TypeAttendance]
		if fl2.ID != fl.ID {
			t.Error("escalation replaced the flag instead of updating it")
		}
		if fl2.Severity != risk.SeverityCritical {
			t.Errorf("escalated severity = %v, want %v", fl2.Severity, risk.SeverityCritical)
		}

		got, _ := f.students.GetStudent(ctx, st.ID)
		if got.RiskLevel != student.RiskCritical {
			t.Errorf("risk level = %v, want %v", got.RiskLevel, student.RiskCritical)
		}
	})
}

func TestService_DetectForStudent_notFound(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	if _, err := f.svc.DetectForStudent(ctx, "nope", "sch1", "staff1"); err != student.ErrNotFound {
		t.Errorf("DetectForStudent(unknown) error = %v, want %v", err, student.ErrNotFound)
	}

	st := testutil.CreateStudent(t, f.students, "sch1", "Eric", "Mugisha", testutil.StableProfile(), nil)
	if _, err := f.svc.DetectForStudent(ctx, st.ID, "other-school", "staff1"); err != student.ErrNotFound {
		t.Errorf("DetectForStudent(wrong school) error = %v, want %v", err, student.ErrNotFound)
	}
}

func TestService_improvedDataDoesNotResolve(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	st := testutil.CreateStudent(t, f.students, "sch1", "Chantal", "Ingabire", testutil.StableProfile(),
		[]student.GuardianContact{testutil.Guardian("Nkurunziza", "+250780000002", "", true)})
	day := dayZero()
	testutil.AddAttendanceRun(t, f.students, st.ID, day, absences(3)...)

	if _, err := f.svc.DetectForStudent(ctx, st.ID, st.SchoolID, "staff1"); err != nil {
		t.Fatalf("DetectForStudent(): %v", err)
	}
	before := activeByType(t, f, st.ID)
	if _, ok := before[risk.TypeAttendance]; !ok {
		t.Fatal("no active ATTENDANCE flag")
	}

	// attendance recovers; the flag stays until a staff member resolves it
	testutil.AddAttendanceRun(t, f.students, st.ID, day.AddDate(0, 0, 3), presents(27)...)

	res, err := f.svc.DetectForStudent(ctx, st.ID, st.SchoolID, "staff1")
	if err != nil {
		t.Fatalf("DetectForStudent(): %v", err)
	}
	if res.FlagsCreated != 0 {
		t.Errorf("FlagsCreated = %d, want 0", res.FlagsCreated)
	}

	after := activeByType(t, f, st.ID)
	fl, ok := after[risk.TypeAttendance]
	if !ok {
		t.Fatal("improving data auto-resolved the flag")
	}
	if fl.ID != before[risk.TypeAttendance].ID || fl.Severity != before[risk.TypeAttendance].Severity {
		t.Error("improving data altered the flag")
	}
}

func TestService_ResolveFlag(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	st := testutil.CreateStudent(t, f.students, "sch1", "Diane", "Umutoni", testutil.StableProfile(),
		[]student.GuardianContact{testutil.Guardian("Mugwaneza", "+250780000003", "", true)})
	testutil.AddAttendanceRun(t, f.students, st.ID, dayZero(), absences(3)...)

	if _, err := f.svc.DetectForStudent(ctx, st.ID, st.SchoolID, "staff1"); err != nil {
		t.Fatalf("DetectForStudent(): %v", err)
	}
	fl := activeByType(t, f, st.ID)[risk.TypeAttendance]

	resolved, err := f.svc.ResolveFlag(ctx, fl.ID, "counselor1", "home visit done")
	if err != nil {
		t.Fatalf("ResolveFlag(): %v", err)
	}
	if resolved.IsActive {
		t.Error("resolved flag still active")
	}
	if resolved.ResolvedBy != "counselor1" || resolved.ResolutionNotes != "home visit done" {
		t.Errorf("resolution fields = %q/%q", resolved.ResolvedBy, resolved.ResolutionNotes)
	}
	if resolved.ResolvedAt == nil {
		t.Error("ResolvedAt not set")
	}

	// the resolved flag no longer contributes to the level
	got, _ := f.students.GetStudent(ctx, st.ID)
	if got.RiskLevel != student.RiskNone {
		t.Errorf("risk level = %v, want %v", got.RiskLevel, student.RiskNone)
	}

	if _, err := f.svc.ResolveFlag(ctx, fl.ID, "counselor1", ""); err != risk.ErrFlagNotFound {
		t.Errorf("ResolveFlag(resolved) error = %v, want %v", err, risk.ErrFlagNotFound)
	}
}

func TestService_ReportSignal(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	st := testutil.CreateStudent(t, f.students, "sch1", "Jean", "Habimana", testutil.StableProfile(),
		[]student.GuardianContact{testutil.Guardian("Habimana Sr", "+250780000004", "", true)})

	fl, err := f.svc.ReportSignal(ctx, risk.ManualSignal{
		StudentID: st.ID,
		SchoolID:  st.SchoolID,
		ActorID:   "teacher1",
		Type:      risk.TypeBehavior,
		Severity:  risk.SeverityHigh,
		Title:     "Repeated fights",
	})
	if err != nil {
		t.Fatalf("ReportSignal(): %v", err)
	}
	if fl.AutoGenerated {
		t.Error("manual flag marked auto-generated")
	}
	if fl.CreatedBy != "teacher1" {
		t.Errorf("CreatedBy = %q, want teacher1", fl.CreatedBy)
	}

	got, _ := f.students.GetStudent(ctx, st.ID)
	if got.RiskLevel != student.RiskHigh {
		t.Errorf("risk level = %v, want %v", got.RiskLevel, student.RiskHigh)
	}

	t.Run("weaker duplicate is a no-op", func(t *testing.T) {
		dup, err := f.svc.ReportSignal(ctx, risk.ManualSignal{
			StudentID: st.ID,
			SchoolID:  st.SchoolID,
			ActorID:   "teacher2",
			Type:      risk.TypeBehavior,
			Severity:  risk.SeverityMedium,
			Title:     "Late again",
		})
		if err != nil {
			t.Fatalf("ReportSignal(): %v", err)
		}
		if dup.ID != fl.ID || dup.Severity != risk.SeverityHigh {
			t.Errorf("duplicate returned %+v, want existing flag %s", dup, fl.ID)
		}
		if n := len(activeByType(t, f, st.ID)); n != 1 {
			t.Errorf("active flag count = %d, want 1", n)
		}
	})

	t.Run("wrong school is hidden", func(t *testing.T) {
		_, err := f.svc.ReportSignal(ctx, risk.ManualSignal{
			StudentID: st.ID,
			SchoolID:  "sch2",
			ActorID:   "teacher1",
			Type:      risk.TypeBehavior,
			Severity:  risk.SeverityLow,
			Title:     "Skipping class",
		})
		if err != student.ErrNotFound {
			t.Errorf("ReportSignal() error = %v, want %v", err, student.ErrNotFound)
		}
	})

	t.Run("validation", func(t *testing.T) {
		_, err := f.svc.ReportSignal(ctx, risk.ManualSignal{StudentID: st.ID, SchoolID: st.SchoolID, ActorID: "t", Type: "WEIRD", Severity: risk.SeverityLow, Title: "x"})
		if err == nil {
			t.Error("ReportSignal(bad type) error = nil")
		}
	})
}

func TestService_DeleteFlag(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	st := testutil.CreateStudent(t, f.students, "sch1", "Alice", "Keza", testutil.StableProfile(),
		[]student.GuardianContact{testutil.Guardian("Keza Sr", "+250780000005", "", true)})

	fl, err := f.svc.ReportSignal(ctx, risk.ManualSignal{
		StudentID: st.ID, SchoolID: st.SchoolID, ActorID: "t1",
		Type: risk.TypeOther, Severity: risk.SeverityMedium, Title: "One-off",
	})
	if err != nil {
		t.Fatalf("ReportSignal(): %v", err)
	}

	if err := f.svc.DeleteFlag(ctx, fl.ID); err != nil {
		t.Fatalf("DeleteFlag(): %v", err)
	}
	if _, err := f.svc.GetFlag(ctx, fl.ID); err != risk.ErrFlagNotFound {
		t.Errorf("GetFlag(deleted) error = %v, want %v", err, risk.ErrFlagNotFound)
	}
	got, _ := f.students.GetStudent(ctx, st.ID)
	if got.RiskLevel != student.RiskNone {
		t.Errorf("risk level = %v, want %v", got.RiskLevel, student.RiskNone)
	}
}

func TestService_DetectForSchool(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	day := dayZero()

	atRisk := testutil.CreateStudent(t, f.students, "sch1", "Yves", "Niyonzima", testutil.StableProfile(),
		[]student.GuardianContact{testutil.Guardian("Niyonzima Sr", "+250780000006", "", true)})
	testutil.AddAttendanceRun(t, f.students, atRisk.ID, day, absences(3)...)

	fine := testutil.CreateStudent(t, f.students, "sch1", "Sandrine", "Ishimwe", testutil.StableProfile(),
		[]student.GuardianContact{testutil.Guardian("Ishimwe Sr", "+250780000007", "", true)})
	testutil.AddAttendanceRun(t, f.students, fine.ID, day, presents(10)...)

	// other school, must not be scanned
	other := testutil.CreateStudent(t, f.students, "sch2", "Olivier", "Ndayisaba", testutil.StableProfile(), nil)
	testutil.AddAttendanceRun(t, f.students, other.ID, day, absences(10)...)

	run, err := f.svc.DetectForSchool(ctx, "sch1", "head1")
	if err != nil {
		t.Fatalf("DetectForSchool(): %v", err)
	}

	// the mock runs the sweep synchronously
	run, err = f.svc.GetSweepRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetSweepRun(): %v", err)
	}
	if run.Status != risk.SweepDone {
		t.Fatalf("sweep status = %v, want %v", run.Status, risk.SweepDone)
	}
	if run.FinishedAt == nil {
		t.Error("FinishedAt not set")
	}
	if run.Summary.StudentsScanned != 2 {
		t.Errorf("StudentsScanned = %d, want 2", run.Summary.StudentsScanned)
	}
	if run.Summary.FlagsCreated == 0 {
		t.Error("sweep created no flags")
	}
	if len(run.Summary.Errors) != 0 {
		t.Errorf("sweep errors = %v", run.Summary.Errors)
	}

	if flags := activeByType(t, f, other.ID); len(flags) != 0 {
		t.Errorf("sweep flagged a student of another school: %v", flags)
	}

	if _, err := f.svc.GetSweepRun(ctx, "nope"); err != risk.ErrSweepNotFound {
		t.Errorf("GetSweepRun(unknown) error = %v, want %v", err, risk.ErrSweepNotFound)
	}
}

// failing senders: delivery problems stay on the message, detection and flag
// state never see them.
func TestService_deliveryFailureIsolated(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	logger := testutil.NewLogger(t)
	alertSvc := alert.NewService(f.messages, f.students, failingEmailSender{}, failingSMSSender{}, logger, f.conf)
	notifier := alert.NewFlagNotifierMock(alertSvc, logger)
	svc := risk.NewServiceMock(f.flags, f.students, notifier, logger, f.conf)

	st := testutil.CreateStudent(t, f.students, "sch1", "Pacifique", "Tuyizere", testutil.StableProfile(),
		[]student.GuardianContact{testutil.Guardian("Tuyizere Sr", "+250780000008", "tuyizere@test.rw", true)})
	testutil.AddAttendanceRun(t, f.students, st.ID, dayZero(), absences(3)...)

	res, err := svc.DetectForStudent(ctx, st.ID, st.SchoolID, "staff1")
	if err != nil {
		t.Fatalf("DetectForStudent(): %v", err)
	}
	if res.FlagsCreated == 0 {
		t.Fatal("no flags created")
	}
	if _, ok := activeByType(t, f, st.ID)[risk.TypeAttendance]; !ok {
		t.Fatal("flag not persisted")
	}

	// the failed attempts were recorded for the retry sweep
	msgs, err := f.messages.QueryRetryable(ctx, f.conf.Alert.MaxRetries, 10)
	if err != nil {
		t.Fatalf("QueryRetryable(): %v", err)
	}
	if len(msgs) == 0 {
		t.Fatal("no retryable message recorded")
	}
	m := msgs[0]
	if m.SMSStatus != alert.StatusFailed || m.EmailStatus != alert.StatusFailed {
		t.Errorf("channel statuses = %v/%v, want FAILED/FAILED", m.SMSStatus, m.EmailStatus)
	}
	if m.Status != alert.StatusPending {
		t.Errorf("message status = %v, want %v (retries left)", m.Status, alert.StatusPending)
	}
}
