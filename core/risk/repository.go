package risk

import (
	"context"
	"errors"
	"time"
)

var ErrFlagNotFound = errors.New("risk flag not found")

// UpsertOutcome reports what UpsertActiveFlag did for a candidate.
type UpsertOutcome int

const (
	// OutcomeUnchanged means an active flag of the same type already carries
	// an equal or higher severity.
	OutcomeUnchanged UpsertOutcome = iota
	// OutcomeCreated means no active flag of that type existed and one was
	// inserted.
	OutcomeCreated
	// OutcomeEscalated means the existing active flag was updated in place
	// with the candidate's higher severity.
	OutcomeEscalated
)

type Repository interface {
	GetFlag(ctx context.Context, id string) (Flag, error)
	ActiveFlags(ctx context.Context, studentID string) ([]Flag, error)
	FilterFlags(ctx context.Context, filter FlagFilter) ([]Flag, error)

	// UpsertActiveFlag reconciles `fl` against the at-most-one-active-flag-
	// per-(student, type) invariant as a single storage-level atomic
	// conditional write: insert when no active flag of that type exists,
	// escalate the existing one in place when its severity is lower, no-op
	// otherwise. It must stay correct under concurrent callers across
	// processes; a duplicate-key conflict is converted into the
	// escalate-or-no-op update, never surfaced.
	UpsertActiveFlag(ctx context.Context, fl Flag) (Flag, UpsertOutcome, error)

	// ResolveFlag deactivates the flag and records the resolution.
	ResolveFlag(ctx context.Context, id, actorID, notes string, at time.Time) (Flag, error)
	// DeleteFlag hard-deletes the flag and returns it so callers can
	// recompute the affected student's risk level.
	DeleteFlag(ctx context.Context, id string) (Flag, error)
}
