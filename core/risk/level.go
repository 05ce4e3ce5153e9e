package risk

import (
	"github.com/tuyishimwe/umurinzi/core"
	"github.com/tuyishimwe/umurinzi/core/student"
)

// EscalationPolicy drives the aggregate level derivation: the baseline is
// the maximum severity among active flags; when MinFlags or more active
// flags of distinct types reach MinSeverity, the level escalates one tier
// beyond the baseline, capped at CRITICAL.
//
// The multi-flag rule is deliberately a table, not constants: the exact
// policy is still under review with the schools directorate.
type EscalationPolicy struct {
	MinSeverity Severity
	MinFlags    int
}

func DefaultEscalationPolicy(conf core.RiskConfig) EscalationPolicy {
	pol := EscalationPolicy{
		MinSeverity: Severity(conf.EscalationMinSeverity),
		MinFlags:    conf.EscalationMinFlags,
	}
	if !pol.MinSeverity.IsValid() {
		pol.MinSeverity = SeverityHigh
	}
	if pol.MinFlags < 2 {
		pol.MinFlags = 2
	}
	return pol
}

// ComputeLevel derives the aggregate risk level from the student's active
// flags. No active flags yields NONE.
func ComputeLevel(flags []Flag, pol EscalationPolicy) student.RiskLevel {
	var baseline Severity
	distinct := make(map[FlagType]struct{})
	for _, fl := range flags {
		if !fl.IsActive {
			continue
		}
		if fl.Severity.Rank() > baseline.Rank() {
			baseline = fl.Severity
		}
		if fl.Severity.Rank() >= pol.MinSeverity.Rank() {
			distinct[fl.Type] = struct{}{}
		}
	}
	if baseline == "" {
		return student.RiskNone
	}

	level := baseline.Level()
	if len(distinct) >= pol.MinFlags {
		level = escalate(level)
	}
	return level
}

func escalate(level student.RiskLevel) student.RiskLevel {
	switch level {
	case student.RiskLow:
		return student.RiskMedium
	case student.RiskMedium:
		return student.RiskHigh
	case student.RiskHigh:
		return student.RiskCritical
	}
	return level
}
