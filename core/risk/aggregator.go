package risk

import (
	"context"

	"github.com/google/uuid"

	"github.com/tuyishimwe/umurinzi/core/student"
)

// reconcile runs each candidate signal through the storage-level dedup
// upsert and reports the flags that were created or escalated in place.
// Candidates that are already represented by an active flag of equal or
// higher severity are no-ops, which is what makes detection idempotent.
func (svc *service) reconcile(
	ctx context.Context,
	st student.Student,
	actorID string,
	candidates []CandidateSignal,
	auto bool,
) (Result, []Flag, error) {
	res := Result{RisksDetected: len(candidates)}

	var changed []Flag
	now := svc.nowFunc().UTC()
	for _, cand := range candidates {
		fl := Flag{
			ID:            uuid.NewString(),
			StudentID:     st.ID,
			SchoolID:      st.SchoolID,
			Type:          cand.Type,
			Severity:      cand.Severity,
			Title:         cand.Title,
			Description:   cand.Description,
			IsActive:      true,
			AutoGenerated: auto,
			CreatedBy:     actorID,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		stored, outcome, err := svc.repo.UpsertActiveFlag(ctx, fl)
		if err != nil {
			return res, changed, err
		}
		switch outcome {
		case OutcomeCreated:
			res.FlagsCreated++
			changed = append(changed, stored)
		case OutcomeEscalated:
			changed = append(changed, stored)
		}
	}
	return res, changed, nil
}
