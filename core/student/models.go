package student

import (
	"strings"
	"time"
)

// RiskLevel is the aggregate risk classification of a student, derived from
// their currently active risk flags. It is a cached projection: the flag
// store is the source of truth and the level is recomputed whenever flag
// state changes.
type RiskLevel string

const (
	RiskNone     RiskLevel = "NONE"
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

var riskLevelRanks = map[RiskLevel]int{
	RiskNone:     0,
	RiskLow:      1,
	RiskMedium:   2,
	RiskHigh:     3,
	RiskCritical: 4,
}

func (l RiskLevel) Rank() int     { return riskLevelRanks[l] }
func (l RiskLevel) IsValid() bool { _, ok := riskLevelRanks[l]; return ok }

type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "PRESENT"
	AttendanceAbsent  AttendanceStatus = "ABSENT"
	AttendanceLate    AttendanceStatus = "LATE"
	AttendanceExcused AttendanceStatus = "EXCUSED"
)

type ParentalPresence string

const (
	ParentsBoth   ParentalPresence = "BOTH"
	ParentsSingle ParentalPresence = "SINGLE"
	ParentsNone   ParentalPresence = "NONE"
)

type EducationLevel string

const (
	EducationNone      EducationLevel = "NONE"
	EducationPrimary   EducationLevel = "PRIMARY"
	EducationSecondary EducationLevel = "SECONDARY"
	EducationTertiary  EducationLevel = "TERTIARY"
)

type GuardianContact struct {
	ID        string `db:"id" json:"id"`
	StudentID string `db:"student_id" json:"student_id"`
	Name      string `db:"name" json:"name"`
	Phone     string `db:"phone" json:"phone"`
	Email     string `db:"email" json:"email"`
	Relation  string `db:"relation" json:"relation"`
	IsPrimary bool   `db:"is_primary" json:"is_primary"`
}

// SocioEconomicProfile is the mostly-static household profile captured at
// registration. UbudeheCategory follows the national classification:
// 1 is the poorest tier, 4 the wealthiest.
type SocioEconomicProfile struct {
	UbudeheCategory    int              `db:"ubudehe_category" json:"ubudehe_category"`
	ParentalPresence   ParentalPresence `db:"parental_presence" json:"parental_presence"`
	FamilyStable       bool             `db:"family_stable" json:"family_stable"`
	DistanceToSchoolKm float64          `db:"distance_to_school_km" json:"distance_to_school_km"`
	SiblingCount       int              `db:"sibling_count" json:"sibling_count"`
	ParentEducation    EducationLevel   `db:"parent_education" json:"parent_education"`
}

type Student struct {
	ID        string `db:"id" json:"id"`
	SchoolID  string `db:"school_id" json:"school_id"`
	FirstName string `db:"first_name" json:"first_name"`
	LastName  string `db:"last_name" json:"last_name"`
	IsActive  bool   `db:"is_active" json:"is_active"`

	Profile   SocioEconomicProfile `json:"profile"`
	Guardians []GuardianContact    `json:"guardians"`

	RiskLevel          RiskLevel `db:"risk_level" json:"risk_level"`
	RiskLevelUpdatedAt time.Time `db:"risk_level_updated_at" json:"risk_level_updated_at"` // UTC

	CreatedAt time.Time `db:"created_at" json:"created_at"` // UTC
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"` // UTC
}

func (s Student) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

// PrimaryGuardian returns the primary-flagged contact, or the first contact
// in the list when none is flagged.
func (s Student) PrimaryGuardian() (GuardianContact, bool) {
	for _, g := range s.Guardians {
		if g.IsPrimary {
			return g, true
		}
	}
	if len(s.Guardians) > 0 {
		return s.Guardians[0], true
	}
	return GuardianContact{}, false
}

// AttendanceRecord holds one attendance entry per (student, day).
type AttendanceRecord struct {
	ID        string           `db:"id" json:"id"`
	StudentID string           `db:"student_id" json:"student_id"`
	Date      time.Time        `db:"date" json:"date"`
	Status    AttendanceStatus `db:"status" json:"status"`
	Reason    string           `db:"reason" json:"reason"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"` // UTC
}

type PerformanceRecord struct {
	ID           string    `db:"id" json:"id"`
	StudentID    string    `db:"student_id" json:"student_id"`
	Subject      string    `db:"subject" json:"subject"`
	Term         int       `db:"term" json:"term"`
	AcademicYear string    `db:"academic_year" json:"academic_year"`
	Score        float64   `db:"score" json:"score"`
	MaxScore     float64   `db:"max_score" json:"max_score"`
	Grade        string    `db:"grade" json:"grade"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"` // UTC
}

func (r PerformanceRecord) Percent() float64 {
	if r.MaxScore == 0 {
		return 0
	}
	return r.Score / r.MaxScore * 100
}

// LetterGrade derives the letter grade from a score out of maxScore using
// fixed percentage bands.
func LetterGrade(score, maxScore float64) string {
	if maxScore == 0 {
		return "F"
	}
	pct := score / maxScore * 100
	switch {
	case pct >= 90:
		return "A"
	case pct >= 80:
		return "B"
	case pct >= 70:
		return "C"
	case pct >= 60:
		return "D"
	case pct >= 50:
		return "E"
	default:
		return "F"
	}
}
