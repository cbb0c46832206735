package solver

import (
	"math"

	"github.com/campusplan/timetable-engine/internal/domain"
	"github.com/campusplan/timetable-engine/internal/model"
	"github.com/campusplan/timetable-engine/internal/normalize"
)

// Weights are the three objective weights supplied per request, each in
// [0,1] (spec.md §4.4 / §6).
type Weights struct {
	Preference float64
	Efficiency float64
	Balance    float64
}

// softCounts holds the indicator counts used to build the integer
// objective: preference, efficiency, and lecturer balance plus venue
// utilization combined. Student convenience (countStudentConvenience) is
// not part of it. There is no CP engine in the corpus to reify these
// as boolean propagation variables (see DESIGN.md); they are computed
// directly against a complete candidate assignment instead, which is
// behaviorally equivalent for the purpose of ranking and scoring.
type softCounts struct {
	Preference  int
	Efficiency  int
	BalanceUtil int
}

// countSoftIndicators evaluates the soft constraint families of
// spec.md §4.4 against a complete session list.
func countSoftIndicators(sessions []model.ScheduledSession, r *normalize.Report) softCounts {
	return softCounts{
		Preference:  countPreference(sessions, r),
		Efficiency:  countEfficiency(sessions),
		BalanceUtil: countBalance(sessions, r) + countUtilization(sessions, r),
	}
}

func countPreference(sessions []model.ScheduledSession, r *normalize.Report) int {
	count := 0
	for _, s := range sessions {
		lecturer, ok := r.LecturerByID[s.LecturerID]
		if !ok {
			continue
		}
		if _, preferred := lecturer.Preferences.PreferredSlotKeys[s.Key()]; preferred {
			count++
		}
	}
	return count
}

// countEfficiency counts (day, consecutive-hour-pair) cells where at
// least one session runs at hour h and another at h+1, per spec.md §4.4.
func countEfficiency(sessions []model.ScheduledSession) int {
	occupied := make(map[domain.SlotKey]struct{}, len(sessions))
	for _, s := range sessions {
		occupied[s.Key()] = struct{}{}
	}
	count := 0
	for day := 0; day < domain.GridDays; day++ {
		for hour := domain.GridStartHour; hour < domain.GridEndHour-1; hour++ {
			_, hasFirst := occupied[domain.SlotKey{Day: day, Hour: hour}]
			_, hasSecond := occupied[domain.SlotKey{Day: day, Hour: hour + 1}]
			if hasFirst && hasSecond {
				count++
			}
		}
	}
	return count
}

// countBalance counts lecturers whose total session load lies within
// [ceil(0.5*M), floor(0.8*M)] of their max weekly hours M.
func countBalance(sessions []model.ScheduledSession, r *normalize.Report) int {
	loads := make(map[string]int)
	for _, s := range sessions {
		loads[s.LecturerID]++
	}
	count := 0
	for _, lecturer := range r.Lecturers {
		m := lecturer.MaxWeeklyHours
		if m <= 0 {
			continue
		}
		load := loads[lecturer.ID]
		lo := int(math.Ceil(0.5 * float64(m)))
		hi := int(math.Floor(0.8 * float64(m)))
		if load >= lo && load <= hi {
			count++
		}
	}
	return count
}

// countUtilization counts venues hosting between 1 and floor(0.8*N)
// sessions, where N is the total number of session variables.
func countUtilization(sessions []model.ScheduledSession, r *normalize.Report) int {
	loads := make(map[string]int)
	for _, s := range sessions {
		loads[s.VenueID]++
	}
	ceiling := int(math.Floor(0.8 * float64(len(sessions))))
	count := 0
	for _, venue := range r.Venues {
		load := loads[venue.ID]
		if load >= 1 && load <= ceiling {
			count++
		}
	}
	return count
}

// countStudentConvenience approximates "sessions on this day are
// consecutive / gap-free" per student group per day. This is an
// approximation, not a strict consecutiveness constraint, per spec.md §9
// open question 3 — a future refinement could model exact consecutive
// runs instead of counting gap-free days.
func countStudentConvenience(sessions []model.ScheduledSession, r *normalize.Report) int {
	type groupDay struct {
		group string
		day   int
	}
	hours := make(map[groupDay][]int)
	for _, s := range sessions {
		for _, gid := range s.StudentGroupIDs {
			key := groupDay{group: gid, day: s.Day}
			hours[key] = append(hours[key], s.Hour)
		}
	}
	count := 0
	for _, hrs := range hours {
		if len(hrs) < 2 {
			count++
			continue
		}
		min, max := hrs[0], hrs[0]
		for _, h := range hrs {
			if h < min {
				min = h
			}
			if h > max {
				max = h
			}
		}
		if max-min+1 == len(hrs) {
			count++
		}
	}
	return count
}

// objective computes the integer-scaled weighted sum of spec.md §4.4/§9:
// floor(w*1000) per weight, multiplied by the matching indicator count.
// Scaling avoids loss of significant ranking under an integer-only
// search while downstream validation still reports real-valued scores.
func objective(weights Weights, counts softCounts) int {
	scale := func(w float64) int { return int(math.Floor(w * 1000)) }
	return scale(weights.Preference)*counts.Preference +
		scale(weights.Efficiency)*counts.Efficiency +
		scale(weights.Balance)*counts.BalanceUtil
}
