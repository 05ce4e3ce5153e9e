package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/tuyishimwe/umurinzi/core/student"
)

type studentRepository struct {
	db *studentTable
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *DB) *studentRepository {
	return &studentRepository{db: db.student}
}

func (repo *studentRepository) GetStudent(_ context.Context, id string) (student.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if st, ok := repo.db.table[id]; ok {
		return *st, nil
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) QueryActiveStudentsBySchool(_ context.Context, schoolID string) ([]student.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var students []student.Student
	for _, st := range repo.db.table {
		if st.SchoolID == schoolID && st.IsActive {
			students = append(students, *st)
		}
	}
	sort.Slice(students, func(i, j int) bool { return students[i].ID < students[j].ID })
	return students, nil
}

func (repo *studentRepository) AttendanceSince(_ context.Context, studentID string, since time.Time) ([]student.AttendanceRecord, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var recs []student.AttendanceRecord
	for _, r := range repo.db.attendance[studentID] {
		if !r.Date.Before(since) {
			recs = append(recs, r)
		}
	}
	// most recent first
	sort.Slice(recs, func(i, j int) bool { return recs[i].Date.After(recs[j].Date) })
	return recs, nil
}

func (repo *studentRepository) RecentPerformance(_ context.Context, studentID string) ([]student.PerformanceRecord, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	recs := make([]student.PerformanceRecord, len(repo.db.performance[studentID]))
	copy(recs, repo.db.performance[studentID])
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].AcademicYear != recs[j].AcademicYear {
			return recs[i].AcademicYear > recs[j].AcademicYear
		}
		return recs[i].Term > recs[j].Term
	})
	return recs, nil
}

func (repo *studentRepository) SetRiskLevel(_ context.Context, studentID string, level student.RiskLevel, at time.Time) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	st, ok := repo.db.table[studentID]
	if !ok {
		return student.ErrNotFound
	}
	st.RiskLevel = level
	st.RiskLevelUpdatedAt = at
	st.UpdatedAt = at
	return nil
}

// test fixture helpers

func (repo *studentRepository) CreateStudent(st student.Student) student.Student {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.table[st.ID] = &st
	return st
}

func (repo *studentRepository) AddAttendance(rec student.AttendanceRecord) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.attendance[rec.StudentID] = append(repo.db.attendance[rec.StudentID], rec)
}

func (repo *studentRepository) AddPerformance(rec student.PerformanceRecord) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.performance[rec.StudentID] = append(repo.db.performance[rec.StudentID], rec)
}
