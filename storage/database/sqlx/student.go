package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/tuyishimwe/umurinzi/core/student"
)

type studentRepository struct {
	db *sqlx.DB
}

var _ student.Repository = (*studentRepository)(nil)

func NewStudentRepository(db *sql.DB) student.Repository {
	return &studentRepository{db: sqlx.NewDb(db, "postgres")}
}

type studentRow struct {
	ID                 string                   `db:"id"`
	SchoolID           string                   `db:"school_id"`
	FirstName          string                   `db:"first_name"`
	LastName           string                   `db:"last_name"`
	IsActive           bool                     `db:"is_active"`
	UbudeheCategory    int                      `db:"ubudehe_category"`
	ParentalPresence   student.ParentalPresence `db:"parental_presence"`
	FamilyStable       bool                     `db:"family_stable"`
	DistanceToSchoolKm float64                  `db:"distance_to_school_km"`
	SiblingCount       int                      `db:"sibling_count"`
	ParentEducation    student.EducationLevel   `db:"parent_education"`
	RiskLevel          student.RiskLevel        `db:"risk_level"`
	RiskLevelUpdatedAt time.Time                `db:"risk_level_updated_at"`
	CreatedAt          time.Time                `db:"created_at"`
	UpdatedAt          time.Time                `db:"updated_at"`
}

func (r studentRow) toDomain() student.Student {
	return student.Student{
		ID:        r.ID,
		SchoolID:  r.SchoolID,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		IsActive:  r.IsActive,
		Profile: student.SocioEconomicProfile{
			UbudeheCategory:    r.UbudeheCategory,
			ParentalPresence:   r.ParentalPresence,
			FamilyStable:       r.FamilyStable,
			DistanceToSchoolKm: r.DistanceToSchoolKm,
			SiblingCount:       r.SiblingCount,
			ParentEducation:    r.ParentEducation,
		},
		RiskLevel:          r.RiskLevel,
		RiskLevelUpdatedAt: r.RiskLevelUpdatedAt,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

const studentColumns = `id, school_id, first_name, last_name, is_active,
	ubudehe_category, parental_presence, family_stable, distance_to_school_km,
	sibling_count, parent_education, risk_level, risk_level_updated_at,
	created_at, updated_at`

func (repo *studentRepository) GetStudent(ctx context.Context, id string) (student.Student, error) {
	var row studentRow
	err := repo.db.GetContext(ctx, &row, `SELECT `+studentColumns+` FROM students WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return student.Student{}, student.ErrNotFound
	}
	if err != nil {
		return student.Student{}, errors.Wrap(err, "getting student")
	}

	st := row.toDomain()
	guardians, err := repo.guardiansFor(ctx, []string{st.ID})
	if err != nil {
		return student.Student{}, err
	}
	st.Guardians = guardians[st.ID]
	return st, nil
}

func (repo *studentRepository) QueryActiveStudentsBySchool(ctx context.Context, schoolID string) ([]student.Student, error) {
	var rows []studentRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT `+studentColumns+` FROM students WHERE school_id = $1 AND is_active ORDER BY last_name, first_name`,
		schoolID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	guardians, err := repo.guardiansFor(ctx, ids)
	if err != nil {
		return nil, err
	}

	students := make([]student.Student, 0, len(rows))
	for _, r := range rows {
		st := r.toDomain()
		st.Guardians = guardians[st.ID]
		students = append(students, st)
	}
	return students, nil
}

func (repo *studentRepository) guardiansFor(ctx context.Context, studentIDs []string) (map[string][]student.GuardianContact, error) {
	query, args, err := sqlx.In(
		`SELECT id, student_id, name, phone, email, relation, is_primary
		 FROM guardian_contacts WHERE student_id IN (?) ORDER BY is_primary DESC, name`,
		studentIDs,
	)
	if err != nil {
		return nil, errors.Wrap(err, "building guardians query")
	}

	var contacts []student.GuardianContact
	if err = repo.db.SelectContext(ctx, &contacts, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "querying guardians")
	}

	byStudent := make(map[string][]student.GuardianContact, len(studentIDs))
	for _, c := range contacts {
		byStudent[c.StudentID] = append(byStudent[c.StudentID], c)
	}
	return byStudent, nil
}

func (repo *studentRepository) AttendanceSince(ctx context.Context, studentID string, since time.Time) ([]student.AttendanceRecord, error) {
	var recs []student.AttendanceRecord
	err := repo.db.SelectContext(ctx, &recs,
		`SELECT id, student_id, date, status, reason, created_at
		 FROM attendance_records WHERE student_id = $1 AND date >= $2 ORDER BY date DESC`,
		studentID, since,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying attendance")
	}
	return recs, nil
}

func (repo *studentRepository) RecentPerformance(ctx context.Context, studentID string) ([]student.PerformanceRecord, error) {
	// current and previous terms, as two most recent (year, term) groups
	var recs []student.PerformanceRecord
	err := repo.db.SelectContext(ctx, &recs,
		`SELECT id, student_id, subject, term, academic_year, score, max_score, grade, created_at
		 FROM performance_records
		 WHERE student_id = $1
		   AND (academic_year, term) IN (
		       SELECT DISTINCT academic_year, term FROM performance_records
		       WHERE student_id = $1
		       ORDER BY academic_year DESC, term DESC
		       LIMIT 2
		   )
		 ORDER BY academic_year DESC, term DESC, subject`,
		studentID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying performance")
	}
	return recs, nil
}

func (repo *studentRepository) SetRiskLevel(ctx context.Context, studentID string, level student.RiskLevel, at time.Time) error {
	res, err := repo.db.ExecContext(ctx,
		`UPDATE students SET risk_level = $1, risk_level_updated_at = $2, updated_at = $2 WHERE id = $3`,
		level, at, studentID,
	)
	if err != nil {
		return errors.Wrap(err, "setting risk level")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return student.ErrNotFound
	}
	return nil
}
