// Package validate implements the Schedule Validator (C6): it re-checks
// a schedule against the per-session invariants of spec.md §3 (venue,
// lecturer and group collisions, capacity, equipment, availability,
// subject eligibility) independent of how the schedule was produced, and
// computes the five-term weighted quality score. It does not check that
// each course has exactly Frequency sessions. It backs the validate()
// external entry point; the Search Driver does not call it.
package validate

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/campusplan/timetable-engine/internal/domain"
	"github.com/campusplan/timetable-engine/internal/model"
	"github.com/campusplan/timetable-engine/internal/normalize"
)

// ConflictKind enumerates the hard-rule-violation conflict kinds the
// Validator can surface (spec.md §3/§7).
type ConflictKind string

const (
	ConflictVenueDoubleBooking    ConflictKind = "venue_double_booking"
	ConflictLecturerDoubleBooking ConflictKind = "lecturer_double_booking"
	ConflictGroupOverlap          ConflictKind = "student_group_overlap"
	ConflictCapacityExceeded      ConflictKind = "capacity_exceeded"
	ConflictEquipmentConflict     ConflictKind = "equipment_conflict"
	ConflictAvailabilityViolation ConflictKind = "availability_violation"
	ConflictSubjectMismatch       ConflictKind = "subject_mismatch"
	ConflictInfeasibleProblem     ConflictKind = "infeasible_problem"
)

// Severity levels for a Conflict.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Conflict is a concrete instance of a hard rule violated by a schedule.
type Conflict struct {
	ID          string
	Kind        ConflictKind
	Severity    Severity
	EntityIDs   []string
	SessionIDs  []string
	Description string
}

// Violation details one failed invariant check for one session.
type Violation struct {
	SessionID string
	Rule      string
	Detail    string
}

// Result is the Validator's output (spec.md §4.6).
type Result struct {
	IsValid              bool
	Score                float64
	Conflicts            []Conflict
	ConstraintViolations []Violation
}

// Validate re-checks the per-session invariants of spec.md §3 against the
// supplied schedule and report, and computes the weighted composite score.
// An empty schedule is valid with score 0, per spec.md §4.6.
func Validate(sessions []model.ScheduledSession, r *normalize.Report) Result {
	if len(sessions) == 0 {
		return Result{IsValid: true, Score: 0}
	}

	conflicts, violations := checkHardRules(sessions, r)
	hardChecked, hardPassed := countHardChecks(sessions, r)
	hardScore := 1.0
	if hardChecked > 0 {
		hardScore = float64(hardPassed) / float64(hardChecked)
	}

	venueUtil := venueUtilizationScore(sessions, r)
	lecturerSat := lecturerSatisfactionScore(sessions, r)
	studentConv := studentConvenienceScore(sessions)
	efficiency := efficiencyScore(sessions)

	score := 0.4*hardScore + 0.15*venueUtil + 0.20*lecturerSat + 0.15*studentConv + 0.10*efficiency

	return Result{
		IsValid:              len(conflicts) == 0,
		Score:                clamp01(score),
		Conflicts:            conflicts,
		ConstraintViolations: violations,
	}
}

// checkHardRules scans for the collision-style conflicts (venue,
// lecturer, student group are detected by scanning for matching (dimension, slot)
// pairs, per spec.md §4.6) plus the per-session invariant violations.
func checkHardRules(sessions []model.ScheduledSession, r *normalize.Report) ([]Conflict, []Violation) {
	var conflicts []Conflict
	var violations []Violation

	byVenueSlot := map[string][]model.ScheduledSession{}
	byLecturerSlot := map[string][]model.ScheduledSession{}
	byGroupSlot := map[string][]model.ScheduledSession{}

	for _, s := range sessions {
		key := slotKeyString(s.Key())
		byVenueSlot[s.VenueID+"|"+key] = append(byVenueSlot[s.VenueID+"|"+key], s)
		byLecturerSlot[s.LecturerID+"|"+key] = append(byLecturerSlot[s.LecturerID+"|"+key], s)
		for _, gid := range s.StudentGroupIDs {
			byGroupSlot[gid+"|"+key] = append(byGroupSlot[gid+"|"+key], s)
		}
	}

	conflicts = append(conflicts, collisionConflicts(byVenueSlot, ConflictVenueDoubleBooking, "venue")...)
	conflicts = append(conflicts, collisionConflicts(byLecturerSlot, ConflictLecturerDoubleBooking, "lecturer")...)
	conflicts = append(conflicts, collisionConflicts(byGroupSlot, ConflictGroupOverlap, "student_group")...)

	for _, s := range sessions {
		course, hasCourse := r.CourseByID[s.CourseID]
		venue, hasVenue := r.VenueByID[s.VenueID]
		lecturer, hasLecturer := r.LecturerByID[s.LecturerID]

		if hasVenue && hasCourse {
			seats := requiredSeatsFor(course, r)
			if venue.Capacity < seats {
				violations = append(violations, Violation{SessionID: s.ID, Rule: "venue_capacity", Detail: fmt.Sprintf("venue %s capacity %d < required %d", venue.ID, venue.Capacity, seats)})
				conflicts = append(conflicts, Conflict{
					ID: "capacity-" + s.ID, Kind: ConflictCapacityExceeded, Severity: SeverityHigh,
					EntityIDs: []string{venue.ID}, SessionIDs: []string{s.ID},
					Description: fmt.Sprintf("session %s exceeds venue %s capacity", s.ID, venue.ID),
				})
			}
			if hasCourse && !venue.HasEquipment(course.RequiredEquipment) {
				violations = append(violations, Violation{SessionID: s.ID, Rule: "equipment_requirement", Detail: fmt.Sprintf("venue %s missing required equipment", venue.ID)})
				conflicts = append(conflicts, Conflict{
					ID: "equipment-" + s.ID, Kind: ConflictEquipmentConflict, Severity: SeverityMedium,
					EntityIDs: []string{venue.ID}, SessionIDs: []string{s.ID},
					Description: fmt.Sprintf("session %s venue %s lacks required equipment", s.ID, venue.ID),
				})
			}
		}
		if hasLecturer {
			if !lecturer.AvailableAt(s.Day, s.Hour) {
				violations = append(violations, Violation{SessionID: s.ID, Rule: "hard_availability", Detail: fmt.Sprintf("lecturer %s unavailable at day %d hour %d", lecturer.ID, s.Day, s.Hour)})
				conflicts = append(conflicts, Conflict{
					ID: "availability-" + s.ID, Kind: ConflictAvailabilityViolation, Severity: SeverityHigh,
					EntityIDs: []string{lecturer.ID}, SessionIDs: []string{s.ID},
					Description: fmt.Sprintf("session %s lecturer %s not available", s.ID, lecturer.ID),
				})
			}
			if hasCourse && len(course.SubjectTags) > 0 && !lecturer.TeachesAnyOf(course.SubjectTags) {
				violations = append(violations, Violation{SessionID: s.ID, Rule: "subject_eligibility", Detail: fmt.Sprintf("lecturer %s does not teach course %s subjects", lecturer.ID, course.ID)})
				conflicts = append(conflicts, Conflict{
					ID: "subject-" + s.ID, Kind: ConflictSubjectMismatch, Severity: SeverityMedium,
					EntityIDs: []string{lecturer.ID, course.ID}, SessionIDs: []string{s.ID},
					Description: fmt.Sprintf("session %s lecturer %s subject mismatch", s.ID, lecturer.ID),
				})
			}
		}
	}

	sortConflicts(conflicts)
	return conflicts, violations
}

func collisionConflicts(byKey map[string][]model.ScheduledSession, kind ConflictKind, dimension string) []Conflict {
	var out []Conflict
	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		group := byKey[k]
		if len(group) < 2 {
			continue
		}
		var sessionIDs []string
		var entityIDs []string
		seen := map[string]struct{}{}
		for _, s := range group {
			sessionIDs = append(sessionIDs, s.ID)
			var id string
			switch dimension {
			case "venue":
				id = s.VenueID
			case "lecturer":
				id = s.LecturerID
			default:
				// byGroupSlot keys are "<group id>|<slot>"
				id = strings.SplitN(k, "|", 2)[0]
			}
			if _, ok := seen[id]; !ok && id != "" {
				seen[id] = struct{}{}
				entityIDs = append(entityIDs, id)
			}
		}
		out = append(out, Conflict{
			ID:          fmt.Sprintf("%s-%s", kind, k),
			Kind:        kind,
			Severity:    SeverityHigh,
			EntityIDs:   entityIDs,
			SessionIDs:  sessionIDs,
			Description: fmt.Sprintf("%d sessions collide on %s at the same slot", len(group), dimension),
		})
	}
	return out
}

func sortConflicts(c []Conflict) {
	sort.Slice(c, func(i, j int) bool { return c[i].ID < c[j].ID })
}

func slotKeyString(k domain.SlotKey) string {
	return fmt.Sprintf("%d:%d", k.Day, k.Hour)
}

func requiredSeatsFor(course domain.Course, r *normalize.Report) int {
	total := 0
	for _, gid := range course.StudentGroupIDs {
		if g, ok := r.GroupByID[gid]; ok {
			total += g.Size
		}
	}
	return total
}

// countHardChecks evaluates the per-session invariants of spec.md §3
// (the per-course session count is not among them) and returns
// (checked, passed) for the hard_score term.
func countHardChecks(sessions []model.ScheduledSession, r *normalize.Report) (checked, passed int) {
	venueSlot := map[string]map[domain.SlotKey]int{}
	lecturerSlot := map[string]map[domain.SlotKey]int{}
	groupSlot := map[string]map[domain.SlotKey]int{}

	for _, s := range sessions {
		addOccupancy(venueSlot, s.VenueID, s.Key())
		addOccupancy(lecturerSlot, s.LecturerID, s.Key())
		for _, gid := range s.StudentGroupIDs {
			addOccupancy(groupSlot, gid, s.Key())
		}
	}

	for _, s := range sessions {
		course, hasCourse := r.CourseByID[s.CourseID]
		venue, hasVenue := r.VenueByID[s.VenueID]
		lecturer, hasLecturer := r.LecturerByID[s.LecturerID]

		checked++
		if venueSlot[s.VenueID][s.Key()] <= 1 {
			passed++
		}
		checked++
		if lecturerSlot[s.LecturerID][s.Key()] <= 1 {
			passed++
		}
		checked++
		groupOK := true
		for _, gid := range s.StudentGroupIDs {
			if groupSlot[gid][s.Key()] > 1 {
				groupOK = false
				break
			}
		}
		if groupOK {
			passed++
		}
		if hasVenue && hasCourse {
			checked++
			if venue.Capacity >= requiredSeatsFor(course, r) {
				passed++
			}
			checked++
			if venue.HasEquipment(course.RequiredEquipment) {
				passed++
			}
		}
		if hasLecturer {
			checked++
			if lecturer.AvailableAt(s.Day, s.Hour) {
				passed++
			}
			if hasCourse && len(course.SubjectTags) > 0 {
				checked++
				if lecturer.TeachesAnyOf(course.SubjectTags) {
					passed++
				}
			}
		}
	}
	return checked, passed
}

func addOccupancy(m map[string]map[domain.SlotKey]int, id string, key domain.SlotKey) {
	if m[id] == nil {
		m[id] = make(map[domain.SlotKey]int)
	}
	m[id][key]++
}

func venueUtilizationScore(sessions []model.ScheduledSession, r *normalize.Report) float64 {
	if len(r.Venues) == 0 {
		return 0
	}
	loads := make(map[string]int)
	for _, s := range sessions {
		loads[s.VenueID]++
	}
	ideal := float64(len(sessions)) / float64(len(r.Venues))
	if ideal == 0 {
		return 0
	}
	var sumAbsDev float64
	for _, v := range r.Venues {
		sumAbsDev += math.Abs(float64(loads[v.ID]) - ideal)
	}
	mad := sumAbsDev / float64(len(r.Venues))
	return clamp01(1 - mad/ideal)
}

func lecturerSatisfactionScore(sessions []model.ScheduledSession, r *normalize.Report) float64 {
	if len(r.Lecturers) == 0 {
		return 0
	}
	loads := make(map[string]int)
	for _, s := range sessions {
		loads[s.LecturerID]++
	}
	var total float64
	for _, l := range r.Lecturers {
		total += float64(loads[l.ID])
	}
	avg := total / float64(len(r.Lecturers))
	if avg == 0 {
		return 0
	}
	var sumAbsDev float64
	for _, l := range r.Lecturers {
		sumAbsDev += math.Abs(float64(loads[l.ID]) - avg)
	}
	mad := sumAbsDev / float64(len(r.Lecturers))
	return clamp01(1 - mad/avg)
}

func studentConvenienceScore(sessions []model.ScheduledSession) float64 {
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
	if len(hours) == 0 {
		return 0
	}
	var totalGap float64
	for _, hrs := range hours {
		sort.Ints(hrs)
		for i := 1; i < len(hrs); i++ {
			gap := hrs[i] - hrs[i-1] - 1
			if gap > 0 {
				totalGap += float64(gap)
			}
		}
	}
	avgGap := totalGap / float64(len(hours))
	return clamp01(1 - avgGap/8)
}

func efficiencyScore(sessions []model.ScheduledSession) float64 {
	occupied := map[domain.SlotKey]struct{}{}
	for _, s := range sessions {
		occupied[s.Key()] = struct{}{}
	}
	utilization := float64(len(occupied)) / float64(domain.GridSlotCount)
	if utilization >= 0.6 && utilization <= 0.8 {
		return 1.0
	}
	if utilization < 0.6 {
		if utilization <= 0 {
			return 0
		}
		return clamp01(utilization / 0.6)
	}
	remaining := 1 - utilization
	return clamp01(remaining / 0.2)
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
