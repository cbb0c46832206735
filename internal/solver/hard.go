package solver

import (
	"github.com/campusplan/timetable-engine/internal/domain"
)

// The predicates in this file (together with assignState.canPlace)
// implement the six constraint families of spec.md §4.3 as functions consulted by the search driver for
// every candidate (venue, lecturer, slot) triple. There is no CP/SAT
// engine in the dependency corpus to reify these as propagators against
// (see DESIGN.md), so each predicate is evaluated directly against the
// partial assignment kept by assignState.

// capacityOK is hard constraint 1: venue capacity must cover the sum of
// attending group sizes.
func capacityOK(venue domain.Venue, requiredSeats int) bool {
	return venue.Capacity >= requiredSeats
}

// equipmentOK is hard constraint 2: venue equipment must be a superset of
// the course's required equipment.
func equipmentOK(venue domain.Venue, course domain.Course) bool {
	return venue.HasEquipment(course.RequiredEquipment)
}

// lecturerAvailableOK is hard constraint 3: the lecturer must be
// available at the slot's (day, hour).
func lecturerAvailableOK(lecturer domain.Lecturer, slot domain.Slot) bool {
	return lecturer.AvailableAt(slot.Day, slot.Hour)
}

// subjectEligibleOK applies the unary subject-eligibility filter (§3
// invariant 8) only when the course declares subject tags; otherwise it
// is omitted, per spec.md §4.3.
func subjectEligibleOK(lecturer domain.Lecturer, course domain.Course) bool {
	if len(course.SubjectTags) == 0 {
		return true
	}
	return lecturer.TeachesAnyOf(course.SubjectTags)
}

// requiredSeats sums the sizes of a course's attending student groups.
func requiredSeats(course domain.Course, groupByID map[string]domain.StudentGroup) int {
	total := 0
	for _, gid := range course.StudentGroupIDs {
		if g, ok := groupByID[gid]; ok {
			total += g.Size
		}
	}
	return total
}
