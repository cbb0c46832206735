// Package evaluate implements the Suggestion Evaluator (C9): it scores
// how feasible, impactful, and risky a proposed Suggestion is, and
// recommends whether to approve it automatically or route it for human
// review (spec.md §4.9).
package evaluate

import (
	"github.com/campusplan/timetable-engine/internal/domain"
	"github.com/campusplan/timetable-engine/internal/normalize"
	"github.com/campusplan/timetable-engine/internal/suggest"
	"github.com/campusplan/timetable-engine/internal/validate"
)

// RiskLevel is the Evaluator's coarse risk bucket for a Suggestion.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Evaluation is the Evaluator's output for one Suggestion (spec.md §4.9).
type Evaluation struct {
	SuggestionID     string
	FeasibilityScore float64
	ImpactScore      float64
	EffortScore      float64
	OverallScore     float64
	Risk             RiskLevel
	RiskFactors      []string
	Recommendation   string // "approve" or "review"
}

var effortScores = map[suggest.Effort]float64{
	suggest.EffortLow:    0.9,
	suggest.EffortMedium: 0.6,
	suggest.EffortHigh:   0.3,
}

var complexKinds = map[string]struct{}{
	"split":       {},
	"split_group": {},
}

// Evaluate scores one Suggestion against the conflict it targets and the
// report it was generated from.
func Evaluate(sug suggest.Suggestion, conflict validate.Conflict, r *normalize.Report) Evaluation {
	feasibility := feasibilityScore(sug, r)
	impact := impactScore(sug, conflict)
	effort := effortScores[sug.Effort]
	overall := 0.4*sug.Score + 0.3*feasibility + 0.2*impact + 0.1*effort

	risk, factors := riskAssessment(sug, conflict, feasibility)

	rec := "review"
	if overall >= 0.7 && risk != RiskHigh {
		rec = "approve"
	}

	return Evaluation{
		SuggestionID:     sug.ID,
		FeasibilityScore: clamp01(feasibility),
		ImpactScore:      clamp01(impact),
		EffortScore:      effort,
		OverallScore:     clamp01(overall),
		Risk:             risk,
		RiskFactors:      factors,
		Recommendation:   rec,
	}
}

// feasibilityScore starts optimistic and penalizes references to unknown
// entities and large blast radii (spec.md §4.9).
func feasibilityScore(sug suggest.Suggestion, r *normalize.Report) float64 {
	score := 0.8

	if venues, ok := sug.Params["alternative_venues"].([]string); ok {
		for _, id := range venues {
			if _, known := r.VenueByID[id]; !known {
				score -= 0.3
			}
		}
	}
	if lecturers, ok := sug.Params["alternative_lecturers"].([]string); ok {
		for _, id := range lecturers {
			if _, known := r.LecturerByID[id]; !known {
				score -= 0.3
			}
		}
	}

	if groups, ok := sug.Params["group_ids"].([]string); ok && len(groups) > 3 {
		score -= 0.1 * float64(len(groups)-3)
	}

	return clamp01(score)
}

// impactScore measures how much of the conflict the suggestion resolves,
// with a bonus for resolving high-severity conflicts (spec.md §4.9).
func impactScore(sug suggest.Suggestion, conflict validate.Conflict) float64 {
	resolvedFraction := 0.0
	if len(conflict.SessionIDs) > 0 {
		resolvedFraction = 1.0 / float64(len(conflict.SessionIDs))
		if n := alternativeCount(sug); n > 0 {
			resolvedFraction = clamp01(float64(n) / float64(len(conflict.SessionIDs)))
			if resolvedFraction < 1.0/float64(len(conflict.SessionIDs)) {
				resolvedFraction = 1.0 / float64(len(conflict.SessionIDs))
			}
		}
	}
	score := resolvedFraction
	if conflict.Severity == validate.SeverityHigh {
		score += 0.2
	}
	return clamp01(score)
}

func alternativeCount(sug suggest.Suggestion) int {
	if v, ok := sug.Params["alternative_venues"].([]string); ok {
		return len(v)
	}
	if v, ok := sug.Params["alternative_slots"].([]domain.SlotKey); ok {
		return len(v)
	}
	if v, ok := sug.Params["alternative_lecturers"].([]string); ok {
		return len(v)
	}
	return 0
}

// riskAssessment escalates risk for high-effort suggestions, suggestions
// touching many sessions, structurally complex actions, low-confidence
// suggestions (spec.md §4.9), and suggestions whose feasibility score is
// below 0.5.
func riskAssessment(sug suggest.Suggestion, conflict validate.Conflict, feasibility float64) (RiskLevel, []string) {
	var factors []string
	level := RiskLow

	if sug.Effort == suggest.EffortHigh {
		factors = append(factors, "high implementation effort")
		level = RiskMedium
	}
	if len(conflict.SessionIDs) > 3 {
		factors = append(factors, "affects more than three sessions")
		level = RiskHigh
	}
	if _, complex := complexKinds[sug.Action]; complex {
		factors = append(factors, "structurally complex action ("+sug.Action+")")
		if level != RiskHigh {
			level = RiskMedium
		}
	}
	if sug.Confidence < 0.5 {
		factors = append(factors, "low suggestion confidence")
		level = RiskHigh
	}
	if feasibility < 0.5 {
		factors = append(factors, "references entities not present in the current report")
		level = RiskHigh
	}

	return level, factors
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
