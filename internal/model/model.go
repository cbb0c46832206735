// Package model implements the Variable Model Builder (C2) and the
// scheduled-session output shape produced by a successful solve.
package model

import (
	"github.com/campusplan/timetable-engine/internal/domain"
	"github.com/campusplan/timetable-engine/internal/normalize"
)

// SessionVariable stands for one occurrence of a course in the week. Its
// domain is the product of venue/lecturer/slot indices into the
// normalized report's entity lists.
type SessionVariable struct {
	CourseID     string
	Occurrence   int
	VenueDomain  []int // indices into Report.Venues
	LecturerDomain []int // indices into Report.Lecturers
	SlotDomain   []int // indices into Report.Grid
}

// BuildSessionVariables enumerates one SessionVariable per course
// occurrence, in deterministic (course order, occurrence index) order,
// per spec.md §4.2.
func BuildSessionVariables(r *normalize.Report) []SessionVariable {
	venueDomain := indexRange(len(r.Venues))
	lecturerDomain := indexRange(len(r.Lecturers))
	slotDomain := indexRange(len(r.Grid))

	var vars []SessionVariable
	for _, course := range r.Courses {
		for occ := 0; occ < course.Frequency; occ++ {
			vars = append(vars, SessionVariable{
				CourseID:       course.ID,
				Occurrence:     occ,
				VenueDomain:    venueDomain,
				LecturerDomain: lecturerDomain,
				SlotDomain:     slotDomain,
			})
		}
	}
	return vars
}

func indexRange(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// ScheduledSession is the materialized assignment result for one session
// variable after a successful solve, or a slot in a caller-supplied
// schedule handed to the Validator/Analyzer/Suggester.
type ScheduledSession struct {
	ID              string
	CourseID        string
	LecturerID      string
	VenueID         string
	StudentGroupIDs []string
	Day             int
	Hour            int
	StartMinute     int
	EndMinute       int
}

// Key returns the (day, hour) slot identity this session occupies.
func (s ScheduledSession) Key() domain.SlotKey {
	return domain.SlotKey{Day: s.Day, Hour: s.Hour}
}

// SolveStatus describes the outcome of a search.
type SolveStatus string

const (
	StatusOptimal    SolveStatus = "optimal"
	StatusFeasible   SolveStatus = "feasible"
	StatusInfeasible SolveStatus = "infeasible"
)

// SolveMetadata carries provenance and summary statistics for one solve.
type SolveMetadata struct {
	ProcessingTimeSeconds float64
	SolverStatus          SolveStatus
	TotalSessions         int
	UniqueVenues          int
	UniqueLecturers       int
	OptimizationScore     int
	// This repository's own provenance fields (not ported from the
	// original source), which a caller can log/display and which never
	// affect solver semantics. Solve leaves both at their zero values.
	SolverVersion string
	GeneratedAtUnix int64
}
