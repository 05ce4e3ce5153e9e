package student

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("student not found")

// Repository is the read side the risk engine consumes, plus the single
// write it owns: the cached risk level projection. Student lifecycle CRUD
// lives elsewhere.
type Repository interface {
	GetStudent(ctx context.Context, id string) (Student, error)
	// QueryActiveStudentsBySchool returns the active students of a school,
	// guardians included.
	QueryActiveStudentsBySchool(ctx context.Context, schoolID string) ([]Student, error)
	// AttendanceSince returns the student's attendance records on or after
	// `since`, most recent first.
	AttendanceSince(ctx context.Context, studentID string, since time.Time) ([]AttendanceRecord, error)
	// RecentPerformance returns the student's performance records for the
	// current and previous academic terms, most recent first.
	RecentPerformance(ctx context.Context, studentID string) ([]PerformanceRecord, error)
	// SetRiskLevel overwrites the cached risk level projection.
	SetRiskLevel(ctx context.Context, studentID string, level RiskLevel, at time.Time) error
}
