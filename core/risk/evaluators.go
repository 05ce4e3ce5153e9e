package risk

import (
	"fmt"
	"sort"

	"github.com/tuyishimwe/umurinzi/core"
	"github.com/tuyishimwe/umurinzi/core/student"
)

// Signal evaluators are pure: they read a student's history and profile and
// produce zero or more candidate signals against the configured thresholds.
// They never touch storage; the aggregator reconciles their output against
// existing flags.

// evaluateAttendance inspects the trailing-window attendance history.
// `recs` must be ordered most recent first.
func evaluateAttendance(recs []student.AttendanceRecord, conf core.RiskConfig) []CandidateSignal {
	if len(recs) == 0 {
		return nil
	}

	var signals []CandidateSignal

	// consecutive absences, counted back from the most recent record
	var consecutive int
	for _, r := range recs {
		if r.Status != student.AttendanceAbsent {
			break
		}
		consecutive++
	}
	switch {
	case conf.ConsecutiveAbsencesCrit > 0 && consecutive >= conf.ConsecutiveAbsencesCrit:
		signals = append(signals, CandidateSignal{
			Type:        TypeAttendance,
			Severity:    SeverityCritical,
			Title:       "Prolonged absence",
			Description: fmt.Sprintf("%d consecutive days absent", consecutive),
			Evidence:    fmt.Sprintf("consecutive_absences=%d", consecutive),
		})
	case conf.ConsecutiveAbsencesHigh > 0 && consecutive >= conf.ConsecutiveAbsencesHigh:
		signals = append(signals, CandidateSignal{
			Type:        TypeAttendance,
			Severity:    SeverityHigh,
			Title:       "Consecutive absences",
			Description: fmt.Sprintf("%d consecutive days absent", consecutive),
			Evidence:    fmt.Sprintf("consecutive_absences=%d", consecutive),
		})
	}

	// absence rate over the trailing window
	var absent int
	for _, r := range recs {
		if r.Status == student.AttendanceAbsent {
			absent++
		}
	}
	rate := float64(absent) / float64(len(recs))
	switch {
	case conf.AbsenceRateHigh > 0 && rate >= conf.AbsenceRateHigh:
		signals = append(signals, CandidateSignal{
			Type:        TypeAttendance,
			Severity:    SeverityHigh,
			Title:       "High absence rate",
			Description: fmt.Sprintf("absent %d of the last %d recorded days", absent, len(recs)),
			Evidence:    fmt.Sprintf("absence_rate=%.2f", rate),
		})
	case conf.AbsenceRateMedium > 0 && rate >= conf.AbsenceRateMedium:
		signals = append(signals, CandidateSignal{
			Type:        TypeAttendance,
			Severity:    SeverityMedium,
			Title:       "Elevated absence rate",
			Description: fmt.Sprintf("absent %d of the last %d recorded days", absent, len(recs)),
			Evidence:    fmt.Sprintf("absence_rate=%.2f", rate),
		})
	}

	return signals
}

// evaluatePerformance emits a signal for failing grades (E or F) and a
// separate one for a term-over-term average drop per subject beyond the
// configured percentage.
func evaluatePerformance(recs []student.PerformanceRecord, conf core.RiskConfig) []CandidateSignal {
	if len(recs) == 0 {
		return nil
	}

	var signals []CandidateSignal

	// failing grades
	var failing int
	worst := ""
	for _, r := range recs {
		if r.Grade == "E" || r.Grade == "F" {
			failing++
			if r.Grade > worst { // "F" > "E"
				worst = r.Grade
			}
		}
	}
	if failing > 0 {
		sev := SeverityMedium
		if worst == "F" {
			sev = SeverityHigh
		}
		signals = append(signals, CandidateSignal{
			Type:        TypePerformance,
			Severity:    sev,
			Title:       "Failing grades",
			Description: fmt.Sprintf("%d failing grade(s), worst %s", failing, worst),
			Evidence:    fmt.Sprintf("failing_count=%d worst_grade=%s", failing, worst),
		})
	}

	// term-over-term average drop per subject
	if conf.PerformanceDropPct > 0 {
		for subject, drop := range subjectDrops(recs) {
			if drop < conf.PerformanceDropPct {
				continue
			}
			sev := SeverityMedium
			if drop >= 2*conf.PerformanceDropPct {
				sev = SeverityHigh
			}
			signals = append(signals, CandidateSignal{
				Type:        TypePerformance,
				Severity:    sev,
				Title:       "Performance drop",
				Description: fmt.Sprintf("%s average dropped %.1f%% since last term", subject, drop),
				Evidence:    fmt.Sprintf("subject=%s drop_pct=%.1f", subject, drop),
			})
		}
	}

	return signals
}

type termKey struct {
	year string
	term int
}

// subjectDrops computes, per subject, the percentage drop of the latest
// term's average score relative to the previous term's. Subjects with fewer
// than two terms of records are skipped.
func subjectDrops(recs []student.PerformanceRecord) map[string]float64 {
	type termAvg struct {
		key        termKey
		sum, count float64
	}
	bySubject := make(map[string]map[termKey]*termAvg)
	for _, r := range recs {
		key := termKey{year: r.AcademicYear, term: r.Term}
		terms, ok := bySubject[r.Subject]
		if !ok {
			terms = make(map[termKey]*termAvg)
			bySubject[r.Subject] = terms
		}
		avg, ok := terms[key]
		if !ok {
			avg = &termAvg{key: key}
			terms[key] = avg
		}
		avg.sum += r.Percent()
		avg.count++
	}

	drops := make(map[string]float64)
	for subject, terms := range bySubject {
		if len(terms) < 2 {
			continue
		}
		avgs := make([]*termAvg, 0, len(terms))
		for _, a := range terms {
			avgs = append(avgs, a)
		}
		sort.Slice(avgs, func(i, j int) bool {
			if avgs[i].key.year != avgs[j].key.year {
				return avgs[i].key.year < avgs[j].key.year
			}
			return avgs[i].key.term < avgs[j].key.term
		})
		prev := avgs[len(avgs)-2]
		last := avgs[len(avgs)-1]
		prevAvg := prev.sum / prev.count
		lastAvg := last.sum / last.count
		if prevAvg <= 0 {
			continue
		}
		if drop := (prevAvg - lastAvg) / prevAvg * 100; drop > 0 {
			drops[subject] = drop
		}
	}
	return drops
}

// evaluateSocioeconomic scores the household profile. Distance to school
// maps directly to a severity tier; the remaining factors combine into a
// weighted score bucketed to a tier. Both candidates share the
// SOCIOECONOMIC type, so the aggregator keeps whichever is strongest.
func evaluateSocioeconomic(profile student.SocioEconomicProfile, conf core.RiskConfig) []CandidateSignal {
	var signals []CandidateSignal

	dist := profile.DistanceToSchoolKm
	switch {
	case conf.DistanceCriticalKm > 0 && dist >= conf.DistanceCriticalKm:
		signals = append(signals, distanceSignal(dist, SeverityCritical))
	case conf.DistanceHighKm > 0 && dist >= conf.DistanceHighKm:
		signals = append(signals, distanceSignal(dist, SeverityHigh))
	case conf.DistanceMediumKm > 0 && dist >= conf.DistanceMediumKm:
		signals = append(signals, distanceSignal(dist, SeverityMedium))
	}

	score := socioScore(profile, conf)
	var sev Severity
	switch {
	case score >= conf.SocioScoreCritical:
		sev = SeverityCritical
	case score >= conf.SocioScoreHigh:
		sev = SeverityHigh
	case score >= conf.SocioScoreMedium:
		sev = SeverityMedium
	case score >= conf.SocioScoreLow:
		sev = SeverityLow
	}
	if sev != "" {
		signals = append(signals, CandidateSignal{
			Type:        TypeSocioeconomic,
			Severity:    sev,
			Title:       "Vulnerable household",
			Description: "household profile indicates socioeconomic vulnerability",
			Evidence:    fmt.Sprintf("socio_score=%d", score),
		})
	}

	return signals
}

func distanceSignal(dist float64, sev Severity) CandidateSignal {
	return CandidateSignal{
		Type:        TypeSocioeconomic,
		Severity:    sev,
		Title:       "Long distance to school",
		Description: fmt.Sprintf("student lives %.1f km from school", dist),
		Evidence:    fmt.Sprintf("distance_km=%.1f", dist),
	}
}

// socioScore combines the inverse-scored ubudehe tier, parental presence,
// family stability, distance, sibling count and parent education into one
// weighted score.
func socioScore(p student.SocioEconomicProfile, conf core.RiskConfig) int {
	var score int

	// ubudehe category 1 (poorest) scores highest
	if p.UbudeheCategory >= 1 && p.UbudeheCategory <= 4 {
		score += (4 - p.UbudeheCategory) * 2
	}

	switch p.ParentalPresence {
	case student.ParentsNone:
		score += 4
	case student.ParentsSingle:
		score += 2
	}

	if !p.FamilyStable {
		score += 2
	}

	switch {
	case conf.DistanceCriticalKm > 0 && p.DistanceToSchoolKm >= conf.DistanceCriticalKm:
		score += 4
	case conf.DistanceHighKm > 0 && p.DistanceToSchoolKm >= conf.DistanceHighKm:
		score += 3
	case conf.DistanceMediumKm > 0 && p.DistanceToSchoolKm >= conf.DistanceMediumKm:
		score += 1
	}

	if p.SiblingCount >= 6 {
		score += 2
	}

	switch p.ParentEducation {
	case student.EducationNone:
		score += 2
	case student.EducationPrimary:
		score += 1
	}

	return score
}
