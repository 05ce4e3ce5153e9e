package sqlxrepos

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/tuyishimwe/umurinzi/core"
	"github.com/tuyishimwe/umurinzi/core/risk"
)

type flagRepository struct {
	db *sqlx.DB
}

var _ risk.Repository = (*flagRepository)(nil)

func NewFlagRepository(db *sql.DB) risk.Repository {
	return &flagRepository{db: sqlx.NewDb(db, "postgres")}
}

const flagColumns = `id, student_id, school_id, type, severity, title, description,
	is_active, is_resolved, auto_generated, created_by, resolved_by, resolved_at,
	resolution_notes, created_at, updated_at`

func (repo *flagRepository) GetFlag(ctx context.Context, id string) (risk.Flag, error) {
	var fl risk.Flag
	err := repo.db.GetContext(ctx, &fl, `SELECT `+flagColumns+` FROM risk_flags WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return risk.Flag{}, risk.ErrFlagNotFound
	}
	if err != nil {
		return risk.Flag{}, errors.Wrap(err, "getting flag")
	}
	return fl, nil
}

func (repo *flagRepository) ActiveFlags(ctx context.Context, studentID string) ([]risk.Flag, error) {
	var flags []risk.Flag
	err := repo.db.SelectContext(ctx, &flags,
		`SELECT `+flagColumns+` FROM risk_flags WHERE student_id = $1 AND is_active ORDER BY created_at`,
		studentID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying active flags")
	}
	return flags, nil
}

func (repo *flagRepository) FilterFlags(ctx context.Context, filter risk.FlagFilter) ([]risk.Flag, error) {
	query := `SELECT ` + flagColumns + ` FROM risk_flags WHERE 1=1`
	var (
		args  []interface{}
		conds string
	)
	n := 0
	next := func() string { n++; return "$" + strconv.Itoa(n) }
	if filter.StudentID != "" {
		conds += ` AND student_id = ` + next()
		args = append(args, filter.StudentID)
	}
	if filter.SchoolID != "" {
		conds += ` AND school_id = ` + next()
		args = append(args, filter.SchoolID)
	}
	if filter.Type != "" {
		conds += ` AND type = ` + next()
		args = append(args, filter.Type)
	}
	if filter.Active != nil {
		conds += ` AND is_active = ` + next()
		args = append(args, *filter.Active)
	}

	var flags []risk.Flag
	if err := repo.db.SelectContext(ctx, &flags, query+conds+flagOrderClause(filter.OrderBy), args...); err != nil {
		return nil, errors.Wrap(err, "filtering flags")
	}
	return flags, nil
}

// orderable flag columns; anything else falls back to newest first
var flagOrderFields = map[string]bool{
	"created_at": true,
	"updated_at": true,
	"severity":   true,
}

func flagOrderClause(ord core.DBOrdering) string {
	if !flagOrderFields[ord.Field] {
		return ` ORDER BY created_at DESC`
	}
	return ` ORDER BY ` + ord.String()
}

// UpsertActiveFlag relies on the ux_risk_flags_active partial unique index:
// the insert conflicts with an existing active (student, type) flag and is
// converted into an in-place escalation, but only when the candidate's
// severity outranks the stored one. The (xmax = 0) trick distinguishes an
// insert from an update; zero returned rows means the candidate lost.
func (repo *flagRepository) UpsertActiveFlag(ctx context.Context, fl risk.Flag) (risk.Flag, risk.UpsertOutcome, error) {
	row := repo.db.QueryRowxContext(ctx,
		`INSERT INTO risk_flags AS rf (`+flagColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		 ON CONFLICT (student_id, type) WHERE is_active DO UPDATE SET
		     severity    = EXCLUDED.severity,
		     title       = EXCLUDED.title,
		     description = EXCLUDED.description,
		     updated_at  = EXCLUDED.updated_at
		 WHERE risk_severity_rank(rf.severity) < risk_severity_rank(EXCLUDED.severity)
		 RETURNING `+flagColumns+`, (xmax = 0) AS inserted`,
		fl.ID, fl.StudentID, fl.SchoolID, fl.Type, fl.Severity, fl.Title, fl.Description,
		fl.IsActive, fl.IsResolved, fl.AutoGenerated, fl.CreatedBy, fl.ResolvedBy, fl.ResolvedAt,
		fl.ResolutionNotes, fl.CreatedAt, fl.UpdatedAt,
	)

	var (
		stored   flagScan
		inserted bool
	)
	err := row.Scan(
		&stored.ID, &stored.StudentID, &stored.SchoolID, &stored.Type, &stored.Severity,
		&stored.Title, &stored.Description, &stored.IsActive, &stored.IsResolved,
		&stored.AutoGenerated, &stored.CreatedBy, &stored.ResolvedBy, &stored.ResolvedAt,
		&stored.ResolutionNotes, &stored.CreatedAt, &stored.UpdatedAt, &inserted,
	)
	if err == sql.ErrNoRows {
		// an active flag of equal or higher severity already represents this
		existing, err := repo.activeFlagByType(ctx, fl.StudentID, fl.Type)
		if err != nil {
			return risk.Flag{}, risk.OutcomeUnchanged, err
		}
		return existing, risk.OutcomeUnchanged, nil
	}
	if err != nil {
		return risk.Flag{}, risk.OutcomeUnchanged, errors.Wrap(err, "upserting flag")
	}

	outcome := risk.OutcomeEscalated
	if inserted {
		outcome = risk.OutcomeCreated
	}
	return stored.toDomain(), outcome, nil
}

func (repo *flagRepository) activeFlagByType(ctx context.Context, studentID string, typ risk.FlagType) (risk.Flag, error) {
	var fl risk.Flag
	err := repo.db.GetContext(ctx, &fl,
		`SELECT `+flagColumns+` FROM risk_flags WHERE student_id = $1 AND type = $2 AND is_active`,
		studentID, typ,
	)
	if err == sql.ErrNoRows {
		return risk.Flag{}, risk.ErrFlagNotFound
	}
	if err != nil {
		return risk.Flag{}, errors.Wrap(err, "getting active flag")
	}
	return fl, nil
}

func (repo *flagRepository) ResolveFlag(ctx context.Context, id, actorID, notes string, at time.Time) (risk.Flag, error) {
	var fl risk.Flag
	err := repo.db.GetContext(ctx, &fl,
		`UPDATE risk_flags
		 SET is_active = false, is_resolved = true, resolved_by = $2, resolved_at = $3,
		     resolution_notes = $4, updated_at = $3
		 WHERE id = $1 AND is_active
		 RETURNING `+flagColumns,
		id, actorID, at, notes,
	)
	if err == sql.ErrNoRows {
		return risk.Flag{}, risk.ErrFlagNotFound
	}
	if err != nil {
		return risk.Flag{}, errors.Wrap(err, "resolving flag")
	}
	return fl, nil
}

func (repo *flagRepository) DeleteFlag(ctx context.Context, id string) (risk.Flag, error) {
	var fl risk.Flag
	err := repo.db.GetContext(ctx, &fl,
		`DELETE FROM risk_flags WHERE id = $1 RETURNING `+flagColumns, id)
	if err == sql.ErrNoRows {
		return risk.Flag{}, risk.ErrFlagNotFound
	}
	if err != nil {
		return risk.Flag{}, errors.Wrap(err, "deleting flag")
	}
	return fl, nil
}

// flagScan mirrors risk.Flag for row scanning.
type flagScan struct {
	ID              string
	StudentID       string
	SchoolID        string
	Type            risk.FlagType
	Severity        risk.Severity
	Title           string
	Description     string
	IsActive        bool
	IsResolved      bool
	AutoGenerated   bool
	CreatedBy       string
	ResolvedBy      string
	ResolvedAt      *time.Time
	ResolutionNotes string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (s flagScan) toDomain() risk.Flag {
	return risk.Flag{
		ID:              s.ID,
		StudentID:       s.StudentID,
		SchoolID:        s.SchoolID,
		Type:            s.Type,
		Severity:        s.Severity,
		Title:           s.Title,
		Description:     s.Description,
		IsActive:        s.IsActive,
		IsResolved:      s.IsResolved,
		AutoGenerated:   s.AutoGenerated,
		CreatedBy:       s.CreatedBy,
		ResolvedBy:      s.ResolvedBy,
		ResolvedAt:      s.ResolvedAt,
		ResolutionNotes: s.ResolutionNotes,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
}
