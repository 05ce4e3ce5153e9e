package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/tuyishimwe/umurinzi/core"
	"github.com/tuyishimwe/umurinzi/core/risk"
)

type flagRepository struct {
	db *flagTable
}

var _ risk.Repository = (*flagRepository)(nil) // interface compliance check

func NewFlagRepository(db *DB) *flagRepository {
	return &flagRepository{db: db.flag}
}

func (repo *flagRepository) GetFlag(_ context.Context, id string) (risk.Flag, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if fl, ok := repo.db.table[id]; ok {
		return *fl, nil
	}
	return risk.Flag{}, risk.ErrFlagNotFound
}

func (repo *flagRepository) ActiveFlags(_ context.Context, studentID string) ([]risk.Flag, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var flags []risk.Flag
	for _, fl := range repo.db.table {
		if fl.StudentID == studentID && fl.IsActive {
			flags = append(flags, *fl)
		}
	}
	sort.Slice(flags, func(i, j int) bool { return flags[i].CreatedAt.Before(flags[j].CreatedAt) })
	return flags, nil
}

func (repo *flagRepository) FilterFlags(_ context.Context, filter risk.FlagFilter) ([]risk.Flag, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var flags []risk.Flag
	for _, fl := range repo.db.table {
		if filter.StudentID != "" && fl.StudentID != filter.StudentID {
			continue
		}
		if filter.SchoolID != "" && fl.SchoolID != filter.SchoolID {
			continue
		}
		if filter.Type != "" && fl.Type != filter.Type {
			continue
		}
		if filter.Active != nil && fl.IsActive != *filter.Active {
			continue
		}
		flags = append(flags, *fl)
	}
	sortFlags(flags, filter.OrderBy)
	return flags, nil
}

func sortFlags(flags []risk.Flag, ord core.DBOrdering) {
	less := func(i, j int) bool { return flags[i].CreatedAt.After(flags[j].CreatedAt) }
	switch ord.Field {
	case "severity":
		less = func(i, j int) bool { return flags[i].Severity.Rank() < flags[j].Severity.Rank() }
	case "updated_at":
		less = func(i, j int) bool { return flags[i].UpdatedAt.Before(flags[j].UpdatedAt) }
	case "created_at":
		less = func(i, j int) bool { return flags[i].CreatedAt.Before(flags[j].CreatedAt) }
	default:
		sort.Slice(flags, less)
		return
	}
	if !ord.Ascending {
		asc := less
		less = func(i, j int) bool { return asc(j, i) }
	}
	sort.Slice(flags, less)
}

// UpsertActiveFlag holds the table lock for the whole reconcile decision,
// mirroring the atomicity the partial unique index gives the SQL repo.
func (repo *flagRepository) UpsertActiveFlag(_ context.Context, fl risk.Flag) (risk.Flag, risk.UpsertOutcome, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, existing := range repo.db.table {
		if !(existing.StudentID == fl.StudentID && existing.Type == fl.Type && existing.IsActive) {
			continue
		}
		if existing.Severity.Rank() >= fl.Severity.Rank() {
			return *existing, risk.OutcomeUnchanged, nil
		}
		existing.Severity = fl.Severity
		existing.Title = fl.Title
		existing.Description = fl.Description
		existing.UpdatedAt = fl.UpdatedAt
		return *existing, risk.OutcomeEscalated, nil
	}

	repo.db.table[fl.ID] = &fl
	return fl, risk.OutcomeCreated, nil
}

func (repo *flagRepository) ResolveFlag(_ context.Context, id, actorID, notes string, at time.Time) (risk.Flag, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	fl, ok := repo.db.table[id]
	if !ok || !fl.IsActive {
		return risk.Flag{}, risk.ErrFlagNotFound
	}
	fl.IsActive = false
	fl.IsResolved = true
	fl.ResolvedBy = actorID
	fl.ResolvedAt = &at
	fl.ResolutionNotes = notes
	fl.UpdatedAt = at
	return *fl, nil
}

func (repo *flagRepository) DeleteFlag(_ context.Context, id string) (risk.Flag, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	fl, ok := repo.db.table[id]
	if !ok {
		return risk.Flag{}, risk.ErrFlagNotFound
	}
	delete(repo.db.table, id)
	return *fl, nil
}
