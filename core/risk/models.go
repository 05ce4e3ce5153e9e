package risk

import (
	"time"

	"github.com/tuyishimwe/umurinzi/core"
	"github.com/tuyishimwe/umurinzi/core/student"
)

type FlagType string

const (
	TypeAttendance    FlagType = "ATTENDANCE"
	TypePerformance   FlagType = "PERFORMANCE"
	TypeBehavior      FlagType = "BEHAVIOR"
	TypeSocioeconomic FlagType = "SOCIOECONOMIC"
	TypeOther         FlagType = "OTHER"
)

var AllFlagTypes = []FlagType{TypeAttendance, TypePerformance, TypeBehavior, TypeSocioeconomic, TypeOther}

func (t FlagType) IsValid() bool {
	for _, ft := range AllFlagTypes {
		if t == ft {
			return true
		}
	}
	return false
}

type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

var severityRanks = map[Severity]int{
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

func (s Severity) Rank() int     { return severityRanks[s] }
func (s Severity) IsValid() bool { _, ok := severityRanks[s]; return ok }

// Level maps a severity to the risk level of the same name.
func (s Severity) Level() student.RiskLevel {
	switch s {
	case SeverityLow:
		return student.RiskLow
	case SeverityMedium:
		return student.RiskMedium
	case SeverityHigh:
		return student.RiskHigh
	case SeverityCritical:
		return student.RiskCritical
	}
	return student.RiskNone
}

// Flag is one detected or manually entered risk concern for a student.
// At most one active flag exists per (student, type); the storage layer
// enforces this with a partial unique index.
type Flag struct {
	ID        string   `db:"id" json:"id"`
	StudentID string   `db:"student_id" json:"student_id"`
	SchoolID  string   `db:"school_id" json:"school_id"`
	Type      FlagType `db:"type" json:"type"`
	Severity  Severity `db:"severity" json:"severity"`

	Title       string `db:"title" json:"title"`
	Description string `db:"description" json:"description"`

	IsActive      bool `db:"is_active" json:"is_active"`
	IsResolved    bool `db:"is_resolved" json:"is_resolved"`
	AutoGenerated bool `db:"auto_generated" json:"auto_generated"`

	CreatedBy       string     `db:"created_by" json:"created_by"`
	ResolvedBy      string     `db:"resolved_by" json:"resolved_by"`
	ResolvedAt      *time.Time `db:"resolved_at" json:"resolved_at"` // UTC
	ResolutionNotes string     `db:"resolution_notes" json:"resolution_notes"`

	CreatedAt time.Time `db:"created_at" json:"created_at"` // UTC
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"` // UTC
}

// CandidateSignal is the transient output of a signal evaluator before it is
// reconciled against existing flags.
type CandidateSignal struct {
	Type        FlagType
	Severity    Severity
	Title       string
	Description string
	Evidence    string
}

// ManualSignal is a staff-submitted signal. It bypasses automatic evaluation
// but goes through the same dedup reconciliation.
type ManualSignal struct {
	StudentID   string   `json:"student_id" validate:"required"`
	SchoolID    string   `json:"school_id" validate:"required"`
	ActorID     string   `json:"actor_id" validate:"required"`
	Type        FlagType `json:"type" validate:"required,oneof=ATTENDANCE PERFORMANCE BEHAVIOR SOCIOECONOMIC OTHER"`
	Severity    Severity `json:"severity" validate:"required,oneof=LOW MEDIUM HIGH CRITICAL"`
	Title       string   `json:"title" validate:"required"`
	Description string   `json:"description"`
}

// Result summarizes one per-student detection run.
type Result struct {
	RisksDetected int `json:"risks_detected"`
	FlagsCreated  int `json:"flags_created"`
}

type SweepStatus string

const (
	SweepRunning SweepStatus = "RUNNING"
	SweepDone    SweepStatus = "DONE"
)

// SweepRun is one identifiable whole-school detection run.
type SweepRun struct {
	ID         string       `json:"id"`
	SchoolID   string       `json:"school_id"`
	ActorID    string       `json:"actor_id"`
	Status     SweepStatus  `json:"status"`
	StartedAt  time.Time    `json:"started_at"`  // UTC
	FinishedAt *time.Time   `json:"finished_at"` // UTC
	Summary    SweepSummary `json:"summary"`
}

type SweepSummary struct {
	StudentsScanned int      `json:"students_scanned"`
	RisksDetected   int      `json:"risks_detected"`
	FlagsCreated    int      `json:"flags_created"`
	Errors          []string `json:"errors"`
}

// FlagFilter applies AND operation on available fields. An empty OrderBy
// defaults to newest first.
type FlagFilter struct {
	StudentID string
	SchoolID  string
	Type      FlagType
	Active    *bool
	OrderBy   core.DBOrdering
}
