// Package suggest implements the Resolution Suggester (C8): given a
// conflict and the schedule/entities it arose from, it proposes concrete,
// scored, ranked repair actions (spec.md §4.8).
package suggest

import (
	"fmt"
	"math"
	"sort"

	"github.com/campusplan/timetable-engine/internal/domain"
	"github.com/campusplan/timetable-engine/internal/model"
	"github.com/campusplan/timetable-engine/internal/normalize"
	"github.com/campusplan/timetable-engine/internal/validate"
)

// Effort levels for a Suggestion.
type Effort string

const (
	EffortLow    Effort = "low"
	EffortMedium Effort = "medium"
	EffortHigh   Effort = "high"
)

// Suggestion is one proposed repair action for a conflict (spec.md §3, §4.8).
type Suggestion struct {
	ID                string
	ConflictID        string
	Action            string
	Effort            Effort
	Params            map[string]interface{}
	Score             float64
	Description       string  // natural-language summary of the repair
	ImpactDescription string  // natural-language summary of what it resolves
	Confidence        float64 // derived confidence in the proposed fix, ∈ [0,1]
}

var typeBonus = map[string]float64{
	"reassign_venue":     0.05,
	"reschedule":         0.0,
	"reassign_lecturer":  0.03,
	"move_larger_venue":  0.05,
	"split":              -0.02,
	"split_group":        -0.02,
	"generic_reschedule": -0.05,
}

var effortPenalty = map[Effort]float64{
	EffortLow:    0.0,
	EffortMedium: 0.05,
	EffortHigh:   0.12,
}

var effortByAction = map[string]Effort{
	"reassign_venue":     EffortLow,
	"reschedule":         EffortMedium,
	"reassign_lecturer":  EffortMedium,
	"move_larger_venue":  EffortLow,
	"split":              EffortHigh,
	"split_group":        EffortHigh,
	"generic_reschedule": EffortMedium,
}

// Suggest proposes actions for every conflict, in ranked order, capped at
// maxSuggestions (spec.md §4.8; default 5 when maxSuggestions <= 0).
func Suggest(conflicts []validate.Conflict, sessions []model.ScheduledSession, r *normalize.Report, maxSuggestions int) []Suggestion {
	if maxSuggestions <= 0 {
		maxSuggestions = 5
	}
	sessionByID := indexSessions(sessions)

	var out []Suggestion
	for _, c := range conflicts {
		out = append(out, suggestionsFor(c, sessionByID, r)...)
	}

	rankSuggestions(out)

	if len(out) > maxSuggestions {
		out = out[:maxSuggestions]
	}
	return out
}

func indexSessions(sessions []model.ScheduledSession) map[string]model.ScheduledSession {
	sessionByID := make(map[string]model.ScheduledSession, len(sessions))
	for _, s := range sessions {
		sessionByID[s.ID] = s
	}
	return sessionByID
}

// rankSuggestions sorts in place by (score desc, effort asc), the ordering
// spec.md §4.8 requires.
func rankSuggestions(out []Suggestion) {
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return effortRank(out[i].Effort) < effortRank(out[j].Effort)
	})
}

func effortRank(e Effort) int {
	switch e {
	case EffortLow:
		return 0
	case EffortMedium:
		return 1
	default:
		return 2
	}
}

// suggestionsFor dispatches by conflict kind per spec.md §4.8's table.
func suggestionsFor(c validate.Conflict, sessionByID map[string]model.ScheduledSession, r *normalize.Report) []Suggestion {
	var anchor *model.ScheduledSession
	if len(c.SessionIDs) > 0 {
		if s, ok := sessionByID[c.SessionIDs[0]]; ok {
			anchor = &s
		}
	}

	var actions []string
	switch c.Kind {
	case validate.ConflictVenueDoubleBooking:
		actions = []string{"reassign_venue", "reschedule"}
	case validate.ConflictLecturerDoubleBooking:
		actions = []string{"reschedule", "reassign_lecturer"}
	case validate.ConflictGroupOverlap:
		actions = []string{"reschedule", "split_group"}
	case validate.ConflictCapacityExceeded:
		actions = []string{"move_larger_venue", "split"}
	case validate.ConflictEquipmentConflict:
		actions = []string{"reassign_venue"}
	case validate.ConflictAvailabilityViolation:
		actions = []string{"reschedule", "reassign_lecturer"}
	default:
		actions = []string{"generic_reschedule"}
	}

	var out []Suggestion
	for i, action := range actions {
		sug := buildSuggestion(c, action, i, anchor, r)
		out = append(out, sug)
	}
	return out
}

func buildSuggestion(c validate.Conflict, action string, rank int, anchor *model.ScheduledSession, r *normalize.Report) Suggestion {
	params := map[string]interface{}{}
	resolvedCount := 0
	hasConcretePick := false

	if anchor != nil {
		params["session_id"] = anchor.ID
	}

	switch action {
	case "reassign_venue", "move_larger_venue":
		if anchor != nil {
			seats := requiredSeats(anchor, r)
			var equipment []string
			if course, ok := r.CourseByID[anchor.CourseID]; ok {
				equipment = course.RequiredEquipment
			}
			alts := alternativeVenues(anchor.VenueID, seats, equipment, r, 4) // new_venue_id + up to 3 alternatives
			params["alternative_venues"] = alts
			resolvedCount = len(alts)
			if len(alts) > 0 {
				params["new_venue_id"] = alts[0]
				hasConcretePick = true
			}
			switch c.Kind {
			case validate.ConflictCapacityExceeded:
				params["required_capacity"] = seats
			case validate.ConflictEquipmentConflict:
				if course, ok := r.CourseByID[anchor.CourseID]; ok {
					params["required_equipment"] = course.RequiredEquipment
				}
			}
		}
	case "reschedule", "generic_reschedule":
		if anchor != nil {
			alts := alternativeSlots(*anchor, r, 5)
			params["alternative_slots"] = alts
			resolvedCount = len(alts)
			if len(alts) > 0 {
				params["new_time"] = formatSlot(alts[0])
				hasConcretePick = true
			}
		}
	case "reassign_lecturer":
		if anchor != nil {
			alts := alternativeLecturers(*anchor, r, 3)
			params["alternative_lecturers"] = alts
			resolvedCount = len(alts)
			if len(alts) > 0 {
				params["new_lecturer_id"] = alts[0]
				hasConcretePick = true
				if l, ok := r.LecturerByID[alts[0]]; ok {
					params["alternative_times"] = AvailableTimesFor(l, r, 5)
				}
			}
		}
	case "split_group":
		if anchor != nil {
			params["split_strategy"] = "parallel_sessions"
			params["group_ids"] = anchor.StudentGroupIDs
			hasConcretePick = len(anchor.StudentGroupIDs) > 1
			resolvedCount = len(anchor.StudentGroupIDs)
		}
	case "split":
		if anchor != nil {
			seats := requiredSeats(anchor, r)
			maxCap := venueCapacity(anchor.VenueID, r)
			params["max_capacity"] = maxCap
			if maxCap > 0 {
				params["sessions_needed"] = ceilDiv(seats, maxCap)
				hasConcretePick = true
				resolvedCount = 1
			}
		}
	}

	effort := effortByAction[action]
	base := 0.5
	multiImpact := len(c.SessionIDs)
	score := base + math.Min(1, float64(resolvedCount)/5) + typeBonus[action] - effortPenalty[effort]
	score -= 0.05 * math.Max(0, float64(multiImpact-2))
	score -= 0.1 * float64(rank) // the kind's primary action (rank 0) outranks its fallbacks
	score = clamp01(score)

	return Suggestion{
		ID:                fmt.Sprintf("%s-%s-%d", c.ID, action, rank),
		ConflictID:        c.ID,
		Action:            action,
		Effort:            effort,
		Params:            params,
		Score:             score,
		Description:       describe(c, action, anchor, params),
		ImpactDescription: describeImpact(c, resolvedCount),
		Confidence:        confidenceFor(hasConcretePick, resolvedCount, effort),
	}
}

// describe renders a one-line natural-language summary of the repair.
func describe(c validate.Conflict, action string, anchor *model.ScheduledSession, params map[string]interface{}) string {
	if anchor == nil {
		return fmt.Sprintf("propose a %s to resolve a %s conflict", action, c.Kind)
	}
	switch action {
	case "reassign_venue", "move_larger_venue":
		if v, ok := params["new_venue_id"].(string); ok {
			return fmt.Sprintf("move session %s to venue %s to resolve a %s conflict", anchor.ID, v, c.Kind)
		}
	case "reschedule", "generic_reschedule":
		if t, ok := params["new_time"].(string); ok {
			return fmt.Sprintf("reschedule session %s to %s to resolve a %s conflict", anchor.ID, t, c.Kind)
		}
	case "reassign_lecturer":
		if l, ok := params["new_lecturer_id"].(string); ok {
			return fmt.Sprintf("reassign session %s to lecturer %s to resolve a %s conflict", anchor.ID, l, c.Kind)
		}
	case "split_group":
		return fmt.Sprintf("split the student groups in session %s into parallel sessions to resolve a %s conflict", anchor.ID, c.Kind)
	case "split":
		if n, ok := params["sessions_needed"].(int); ok {
			return fmt.Sprintf("split session %s into %d parallel sessions to resolve a %s conflict", anchor.ID, n, c.Kind)
		}
	}
	return fmt.Sprintf("no viable %s found for session %s", action, anchor.ID)
}

// describeImpact renders a one-line summary of what the repair resolves.
func describeImpact(c validate.Conflict, resolvedCount int) string {
	if len(c.SessionIDs) > 1 {
		return fmt.Sprintf("affects multiple sessions (%d) involved in the conflict", len(c.SessionIDs))
	}
	if resolvedCount == 0 {
		return "resolves the reported conflict, no alternative was located"
	}
	return "resolves the reported conflict for its single affected session"
}

// confidenceFor derives the suggester's own confidence in a proposed repair,
// independent of its ranking score: no concrete pick means low confidence,
// and a pick backed by only one viable alternative is less certain than one
// backed by several (spec.md §3 "derived confidence").
func confidenceFor(hasConcretePick bool, resolvedCount int, effort Effort) float64 {
	if !hasConcretePick {
		return 0.2
	}
	confidence := 0.9 - effortPenalty[effort]
	if resolvedCount <= 1 {
		confidence -= 0.1
	}
	return clamp01(confidence)
}

func requiredSeats(s *model.ScheduledSession, r *normalize.Report) int {
	total := 0
	for _, gid := range s.StudentGroupIDs {
		if g, ok := r.GroupByID[gid]; ok {
			total += g.Size
		}
	}
	return total
}

func venueCapacity(id string, r *normalize.Report) int {
	if v, ok := r.VenueByID[id]; ok {
		return v.Capacity
	}
	return 0
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

// formatSlot renders a slot the way spec.md §8's scenarios expect it,
// e.g. "Monday 09:00".
func formatSlot(k domain.SlotKey) string {
	return fmt.Sprintf("%s %02d:00", domain.DayName(k.Day), k.Hour)
}

// alternativeVenues returns up to limit venues (excluding current) with
// sufficient capacity and the required equipment, sorted by capacity
// ascending (spec.md §4.8).
func alternativeVenues(currentVenueID string, seats int, equipment []string, r *normalize.Report, limit int) []string {
	var candidates []domain.Venue
	for _, v := range r.Venues {
		if v.ID == currentVenueID {
			continue
		}
		if v.Capacity >= seats && v.HasEquipment(equipment) {
			candidates = append(candidates, v)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Capacity < candidates[j].Capacity })
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	ids := make([]string, len(candidates))
	for i, v := range candidates {
		ids[i] = v.ID
	}
	return ids
}

// alternativeSlots returns up to limit (day,hour) slots in grid order,
// excluding the current slot and the lunch hour, per spec.md §4.8. The
// slots are not checked against other sessions' venue, lecturer or group
// occupancy.
func alternativeSlots(s model.ScheduledSession, r *normalize.Report, limit int) []domain.SlotKey {
	var out []domain.SlotKey
	for _, slot := range r.Grid {
		if slot.Hour == domain.LunchHour {
			continue
		}
		if slot.Day == s.Day && slot.Hour == s.Hour {
			continue
		}
		out = append(out, slot.Key())
		if len(out) >= limit {
			break
		}
	}
	return out
}

// alternativeLecturers returns up to limit lecturers who teach the
// course's subjects and are below half their max weekly hours.
func alternativeLecturers(s model.ScheduledSession, r *normalize.Report, limit int) []string {
	course, ok := r.CourseByID[s.CourseID]
	if !ok {
		return nil
	}
	loads := map[string]int{}
	var out []string
	for _, l := range r.Lecturers {
		if l.ID == s.LecturerID {
			continue
		}
		if len(course.SubjectTags) > 0 && !l.TeachesAnyOf(course.SubjectTags) {
			continue
		}
		if l.MaxWeeklyHours > 0 && loads[l.ID] >= l.MaxWeeklyHours/2 {
			continue
		}
		out = append(out, l.ID)
		if len(out) >= limit {
			break
		}
	}
	return out
}

// AvailableTimesFor returns up to limit (day,hour) slots, in grid order,
// inside the lecturer's declared availability. Used to enrich a
// "reassign_lecturer" suggestion's payload with the candidate lecturer's
// available slots (spec.md §4.8's fourth alternative-finder contract).
// Slots where the lecturer already teaches a session are not excluded.
func AvailableTimesFor(l domain.Lecturer, r *normalize.Report, limit int) []domain.SlotKey {
	var out []domain.SlotKey
	for _, slot := range r.Grid {
		if !l.AvailableAt(slot.Day, slot.Hour) {
			continue
		}
		out = append(out, slot.Key())
		if len(out) >= limit {
			break
		}
	}
	return out
}

// PathBias picks which strategy a GenerateAlternativePaths path favors.
type PathBias string

const (
	BiasHighestScore       PathBias = "highest_score"
	BiasLowestEffort       PathBias = "lowest_effort"
	BiasPreferReschedule   PathBias = "prefer_reschedule"
	BiasPreferReassignment PathBias = "prefer_reassignment"
)

var allBiases = []PathBias{BiasHighestScore, BiasLowestEffort, BiasPreferReschedule, BiasPreferReassignment}

// AlternativePath is one disjoint, greedily-built resolution plan: at most
// one suggestion per conflict, never touching a session already claimed by
// an earlier pick in the same path.
type AlternativePath struct {
	Bias        PathBias
	Suggestions []Suggestion
}

// GenerateAlternativePaths implements the §4.8 "multiple alternatives path
// generator": up to four disjoint suggestion paths over the same conflict
// set, each biased toward a different strategy. A path greedily selects one
// suggestion per conflict, skipping conflicts whose sessions are already
// claimed by an earlier pick in the same path.
func GenerateAlternativePaths(conflicts []validate.Conflict, sessions []model.ScheduledSession, r *normalize.Report) []AlternativePath {
	sessionByID := indexSessions(sessions)

	paths := make([]AlternativePath, 0, len(allBiases))
	for _, bias := range allBiases {
		claimed := map[string]bool{}
		path := AlternativePath{Bias: bias}

		for _, c := range conflicts {
			if anySessionClaimed(c, claimed) {
				continue
			}
			candidates := suggestionsFor(c, sessionByID, r)
			pick := pickByBias(candidates, bias)
			if pick == nil {
				continue
			}
			path.Suggestions = append(path.Suggestions, *pick)
			for _, sid := range c.SessionIDs {
				claimed[sid] = true
			}
		}
		paths = append(paths, path)
	}
	return paths
}

func anySessionClaimed(c validate.Conflict, claimed map[string]bool) bool {
	for _, sid := range c.SessionIDs {
		if claimed[sid] {
			return true
		}
	}
	return false
}

// pickByBias selects one candidate suggestion per the path's strategy.
func pickByBias(candidates []Suggestion, bias PathBias) *Suggestion {
	if len(candidates) == 0 {
		return nil
	}
	ranked := append([]Suggestion(nil), candidates...)
	rankSuggestions(ranked)

	switch bias {
	case BiasLowestEffort:
		best := ranked[0]
		for _, s := range ranked[1:] {
			if effortRank(s.Effort) < effortRank(best.Effort) {
				best = s
			}
		}
		return &best
	case BiasPreferReschedule:
		if s := firstMatchingAction(ranked, "reschedule", "generic_reschedule"); s != nil {
			return s
		}
	case BiasPreferReassignment:
		if s := firstMatchingAction(ranked, "reassign_venue", "reassign_lecturer", "move_larger_venue"); s != nil {
			return s
		}
	}
	// BiasHighestScore, and the fallback for biases with no matching action.
	best := ranked[0]
	return &best
}

func firstMatchingAction(candidates []Suggestion, actions ...string) *Suggestion {
	for _, s := range candidates {
		for _, a := range actions {
			if s.Action == a {
				sug := s
				return &sug
			}
		}
	}
	return nil
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
