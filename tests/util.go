package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tuyishimwe/umurinzi/core"
	"github.com/tuyishimwe/umurinzi/core/student"
)

// StudentFixtureRepo is a student.Repository that also accepts fixture data.
// The dummy repos implement it.
type StudentFixtureRepo interface {
	student.Repository
	CreateStudent(st student.Student) student.Student
	AddAttendance(rec student.AttendanceRecord)
	AddPerformance(rec student.PerformanceRecord)
}

// NewConfig returns a config suitable for tests: defaults only, no env.
func NewConfig() *core.Config {
	conf := core.NewConfig()
	conf.Debug = true
	conf.TestMode = true
	return conf
}

// StableProfile is a household profile that triggers no socioeconomic signal.
func StableProfile() student.SocioEconomicProfile {
	return student.SocioEconomicProfile{
		UbudeheCategory:    4,
		ParentalPresence:   student.ParentsBoth,
		FamilyStable:       true,
		DistanceToSchoolKm: 1,
		SiblingCount:       1,
		ParentEducation:    student.EducationTertiary,
	}
}

func CreateStudent(
	t *testing.T,
	repo StudentFixtureRepo,
	schoolID, firstName, lastName string,
	profile student.SocioEconomicProfile,
	guardians []student.GuardianContact,
) student.Student {
	t.Helper()
	now := time.Now().UTC()
	st := student.Student{
		ID:        uuid.NewString(),
		SchoolID:  schoolID,
		FirstName: firstName,
		LastName:  lastName,
		IsActive:  true,
		Profile:   profile,
		Guardians: guardians,
		RiskLevel: student.RiskNone,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for i := range st.Guardians {
		if st.Guardians[i].ID == "" {
			st.Guardians[i].ID = uuid.NewString()
		}
		st.Guardians[i].StudentID = st.ID
	}
	return repo.CreateStudent(st)
}

func Guardian(name, phone, email string, primary bool) student.GuardianContact {
	return student.GuardianContact{Name: name, Phone: phone, Email: email, Relation: "parent", IsPrimary: primary}
}

// AddAttendanceRun records one attendance entry per day starting at from,
// oldest first.
func AddAttendanceRun(
	t *testing.T,
	repo StudentFixtureRepo,
	studentID string,
	from time.Time,
	statuses ...student.AttendanceStatus,
) {
	t.Helper()
	for i, status := range statuses {
		repo.AddAttendance(student.AttendanceRecord{
			ID:        uuid.NewString(),
			StudentID: studentID,
			Date:      from.AddDate(0, 0, i),
			Status:    status,
			CreatedAt: time.Now().UTC(),
		})
	}
}

func AddPerformance(
	t *testing.T,
	repo StudentFixtureRepo,
	studentID, subject string,
	academicYear string,
	term int,
	score, maxScore float64,
) {
	t.Helper()
	repo.AddPerformance(student.PerformanceRecord{
		ID:           uuid.NewString(),
		StudentID:    studentID,
		Subject:      subject,
		Term:         term,
		AcademicYear: academicYear,
		Score:        score,
		MaxScore:     maxScore,
		Grade:        student.LetterGrade(score, maxScore),
		CreatedAt:    time.Now().UTC(),
	})
}

// Logger is a core.Logger that writes to the test log.
type Logger struct {
	T *testing.T
}

var _ core.Logger = (*Logger)(nil)

func NewLogger(t *testing.T) *Logger { return &Logger{T: t} }

func (l *Logger) log(level, msg string, args []interface{}) {
	l.T.Helper()
	l.T.Logf("%s: %s %v", level, msg, args)
}

func (l *Logger) Enable(bool)                           {}
func (l *Logger) Debug(msg string, args ...interface{}) { l.log("DEBUG", msg, args) }
func (l *Logger) Info(msg string, args ...interface{})  { l.log("INFO", msg, args) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.log("WARN", msg, args) }
func (l *Logger) Error(msg string, args ...interface{}) { l.log("ERROR", msg, args) }
func (l *Logger) Fatal(msg string, args ...interface{}) {
	l.T.Fatal(fmt.Sprint(append([]interface{}{msg}, args...)...))
}
