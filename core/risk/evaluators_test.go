package risk

import (
	"testing"
	"time"

	"github.com/tuyishimwe/umurinzi/core"
	"github.com/tuyishimwe/umurinzi/core/student"
)

func testRiskConfig() core.RiskConfig {
	return core.RiskConfig{
		AttendanceWindowDays:    30,
		ConsecutiveAbsencesHigh: 3,
		ConsecutiveAbsencesCrit: 7,
		AbsenceRateMedium:       0.2,
		AbsenceRateHigh:         0.4,
		PerformanceDropPct:      15,
		DistanceMediumKm:        3,
		DistanceHighKm:          5,
		DistanceCriticalKm:      7,
		SocioScoreLow:           3,
		SocioScoreMedium:        5,
		SocioScoreHigh:          8,
		SocioScoreCritical:      12,
		EscalationMinSeverity:   string(SeverityHigh),
		EscalationMinFlags:      2,
		SweepWorkers:            4,
	}
}

// attendance builds a most-recent-first history from a most-recent-first
// status list.
func attendance(statuses ...student.AttendanceStatus) []student.AttendanceRecord {
	day := time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)
	recs := make([]student.AttendanceRecord, len(statuses))
	for i, s := range statuses {
		recs[i] = student.AttendanceRecord{
			StudentID: "st1",
			Date:      day.AddDate(0, 0, -i),
			Status:    s,
		}
	}
	return recs
}

func TestEvaluateAttendance(t *testing.T) {
	conf := testRiskConfig()
	a, p := student.AttendanceAbsent, student.AttendancePresent

	tests := []struct {
		name string
		recs []student.AttendanceRecord
		want map[Severity]int // severity -> signal count
	}{
		{name: "no records", recs: nil, want: nil},
		{name: "all present", recs: attendance(p, p, p, p, p), want: nil},
		{
			name: "2 consecutive absences below threshold",
			recs: attendance(a, a, p, p, p, p, p, p, p, p, p, p, p, p, p),
			want: nil,
		},
		{
			name: "3 consecutive absences",
			recs: attendance(a, a, a, p, p, p, p, p, p, p, p, p, p, p, p, p, p, p, p, p),
			want: map[Severity]int{SeverityHigh: 1},
		},
		{
			name: "7 consecutive absences",
			recs: attendance(append([]student.AttendanceStatus{a, a, a, a, a, a, a}, repeat(p, 29)...)...),
			want: map[Severity]int{SeverityCritical: 1},
		},
		{
			name: "broken streak does not count",
			recs: attendance(p, a, a, a, a, a, a, a, p, p),
			want: map[Severity]int{SeverityHigh: 1}, // absence rate 70%
		},
		{
			name: "medium absence rate",
			recs: attendance(a, p, p, a, p, p, p, p, p, p),
			want: map[Severity]int{SeverityMedium: 1},
		},
		{
			name: "high rate and critical streak",
			recs: attendance(a, a, a, a, a, a, a, p, p, p),
			want: map[Severity]int{SeverityCritical: 1, SeverityHigh: 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := evaluateAttendance(tt.recs, conf)
			if len(got) != countSignals(tt.want) {
				t.Fatalf("evaluateAttendance() = %d signals, want %d: %+v", len(got), countSignals(tt.want), got)
			}
			for _, sig := range got {
				if sig.Type != TypeAttendance {
					t.Errorf("signal type = %v, want %v", sig.Type, TypeAttendance)
				}
				if tt.want[sig.Severity] == 0 {
					t.Errorf("unexpected severity %v", sig.Severity)
				}
			}
		})
	}
}

func repeat(s student.AttendanceStatus, n int) []student.AttendanceStatus {
	out := make([]student.AttendanceStatus, n)
	for i := range out {
		out[i] = s
	}
	return out
}

func countSignals(want map[Severity]int) int {
	var n int
	for _, c := range want {
		n += c
	}
	return n
}

func TestEvaluatePerformance(t *testing.T) {
	conf := testRiskConfig()

	perf := func(subject, year string, term int, scores ...float64) []student.PerformanceRecord {
		recs := make([]student.PerformanceRecord, len(scores))
		for i, s := range scores {
			recs[i] = student.PerformanceRecord{
				StudentID:    "st1",
				Subject:      subject,
				Term:         term,
				AcademicYear: year,
				Score:        s,
				MaxScore:     100,
				Grade:        student.LetterGrade(s, 100),
			}
		}
		return recs
	}

	t.Run("no records", func(t *testing.T) {
		if got := evaluatePerformance(nil, conf); got != nil {
			t.Errorf("evaluatePerformance() = %+v, want nil", got)
		}
	})

	t.Run("passing grades, single term", func(t *testing.T) {
		if got := evaluatePerformance(perf("Math", "2026", 1, 80, 75), conf); len(got) != 0 {
			t.Errorf("evaluatePerformance() = %+v, want none", got)
		}
	})

	t.Run("E grade is medium", func(t *testing.T) {
		got := evaluatePerformance(perf("Math", "2026", 1, 52), conf)
		if len(got) != 1 || got[0].Severity != SeverityMedium || got[0].Type != TypePerformance {
			t.Errorf("evaluatePerformance() = %+v, want one MEDIUM PERFORMANCE signal", got)
		}
	})

	t.Run("F grade is high", func(t *testing.T) {
		got := evaluatePerformance(perf("Math", "2026", 1, 30), conf)
		if len(got) != 1 || got[0].Severity != SeverityHigh {
			t.Errorf("evaluatePerformance() = %+v, want one HIGH signal", got)
		}
	})

	t.Run("term-over-term drop", func(t *testing.T) {
		recs := append(perf("Math", "2026", 1, 90), perf("Math", "2026", 2, 72)...) // 20% drop
		got := evaluatePerformance(recs, conf)
		if len(got) != 1 || got[0].Severity != SeverityMedium {
			t.Fatalf("evaluatePerformance() = %+v, want one MEDIUM drop signal", got)
		}
	})

	t.Run("steep drop is high", func(t *testing.T) {
		recs := append(perf("Math", "2026", 1, 90), perf("Math", "2026", 2, 60)...) // 33% drop but also D grade
		got := evaluatePerformance(recs, conf)
		if len(got) != 1 || got[0].Severity != SeverityHigh {
			t.Fatalf("evaluatePerformance() = %+v, want one HIGH drop signal", got)
		}
	})

	t.Run("improvement is not a drop", func(t *testing.T) {
		recs := append(perf("Math", "2026", 1, 70), perf("Math", "2026", 2, 90)...)
		if got := evaluatePerformance(recs, conf); len(got) != 0 {
			t.Errorf("evaluatePerformance() = %+v, want none", got)
		}
	})
}

func TestEvaluateSocioeconomic(t *testing.T) {
	conf := testRiskConfig()

	stable := student.SocioEconomicProfile{
		UbudeheCategory:    4,
		ParentalPresence:   student.ParentsBoth,
		FamilyStable:       true,
		DistanceToSchoolKm: 1,
		SiblingCount:       1,
		ParentEducation:    student.EducationTertiary,
	}

	t.Run("stable household", func(t *testing.T) {
		if got := evaluateSocioeconomic(stable, conf); len(got) != 0 {
			t.Errorf("evaluateSocioeconomic() = %+v, want none", got)
		}
	})

	t.Run("distance tiers", func(t *testing.T) {
		tests := []struct {
			km   float64
			want Severity
		}{
			{km: 3, want: SeverityMedium},
			{km: 5, want: SeverityHigh},
			{km: 7.5, want: SeverityCritical},
		}
		for _, tt := range tests {
			p := stable
			p.DistanceToSchoolKm = tt.km
			got := evaluateSocioeconomic(p, conf)
			var found bool
			for _, sig := range got {
				if sig.Severity == tt.want && sig.Type == TypeSocioeconomic {
					found = true
				}
			}
			if !found {
				t.Errorf("evaluateSocioeconomic(km=%v) = %+v, want a %v signal", tt.km, got, tt.want)
			}
		}
	})

	t.Run("vulnerable household scores critical", func(t *testing.T) {
		p := student.SocioEconomicProfile{
			UbudeheCategory:    1, // +6
			ParentalPresence:   student.ParentsNone,
			FamilyStable:       false,
			DistanceToSchoolKm: 1,
			SiblingCount:       7,
			ParentEducation:    student.EducationNone,
		} // 6+4+2+2+2 = 16
		got := evaluateSocioeconomic(p, conf)
		if len(got) != 1 || got[0].Severity != SeverityCritical {
			t.Errorf("evaluateSocioeconomic() = %+v, want one CRITICAL signal", got)
		}
	})

	t.Run("single parent category 2 is medium", func(t *testing.T) {
		p := stable
		p.UbudeheCategory = 2 // +4
		p.ParentalPresence = student.ParentsSingle
		// 4+2 = 6
		got := evaluateSocioeconomic(p, conf)
		if len(got) != 1 || got[0].Severity != SeverityMedium {
			t.Errorf("evaluateSocioeconomic() = %+v, want one MEDIUM signal", got)
		}
	})
}
