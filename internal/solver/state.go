package solver

import (
	"github.com/campusplan/timetable-engine/internal/domain"
	"github.com/campusplan/timetable-engine/internal/model"
	"github.com/campusplan/timetable-engine/internal/normalize"
)

// assignState tracks the partial assignment built during backtracking
// search and the per-venue/per-lecturer/per-group slot occupancy needed
// to enforce hard constraints 4-6 of spec.md §4.3. The Reserve/Release
// pair mirrors the teacher's teacherAvailability.Reserve/Release idiom
// (schedule_generator_service.go), generalized from "one teacher" to
// "venue, lecturer, and every attending group".
type assignState struct {
	report *normalize.Report

	venueSlot    map[string]map[domain.SlotKey]struct{}
	lecturerSlot map[string]map[domain.SlotKey]struct{}
	groupSlot    map[string]map[domain.SlotKey]struct{}

	placed []model.ScheduledSession
}

func newAssignState(r *normalize.Report) *assignState {
	return &assignState{
		report:       r,
		venueSlot:    make(map[string]map[domain.SlotKey]struct{}),
		lecturerSlot: make(map[string]map[domain.SlotKey]struct{}),
		groupSlot:    make(map[string]map[domain.SlotKey]struct{}),
	}
}

// canPlace reports whether placing the candidate would violate hard
// constraints 4 (venue collision), 5 (lecturer collision), or 6 (student
// group collision).
func (s *assignState) canPlace(venueID, lecturerID string, groupIDs []string, key domain.SlotKey) bool {
	if _, busy := s.venueSlot[venueID][key]; busy {
		return false
	}
	if _, busy := s.lecturerSlot[lecturerID][key]; busy {
		return false
	}
	for _, gid := range groupIDs {
		if _, busy := s.groupSlot[gid][key]; busy {
			return false
		}
	}
	return true
}

func (s *assignState) place(session model.ScheduledSession) {
	key := session.Key()
	reserve(s.venueSlot, session.VenueID, key)
	reserve(s.lecturerSlot, session.LecturerID, key)
	for _, gid := range session.StudentGroupIDs {
		reserve(s.groupSlot, gid, key)
	}
	s.placed = append(s.placed, session)
}

func (s *assignState) undo() {
	if len(s.placed) == 0 {
		return
	}
	last := s.placed[len(s.placed)-1]
	s.placed = s.placed[:len(s.placed)-1]
	key := last.Key()
	release(s.venueSlot, last.VenueID, key)
	release(s.lecturerSlot, last.LecturerID, key)
	for _, gid := range last.StudentGroupIDs {
		release(s.groupSlot, gid, key)
	}
}

func reserve(m map[string]map[domain.SlotKey]struct{}, id string, key domain.SlotKey) {
	if m[id] == nil {
		m[id] = make(map[domain.SlotKey]struct{})
	}
	m[id][key] = struct{}{}
}

func release(m map[string]map[domain.SlotKey]struct{}, id string, key domain.SlotKey) {
	if m[id] != nil {
		delete(m[id], key)
	}
}
