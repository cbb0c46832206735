package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusplan/timetable-engine/internal/model"
	"github.com/campusplan/timetable-engine/internal/normalize"
	"github.com/campusplan/timetable-engine/internal/validate"
)

func baseEntities() (venues []normalize.RawVenue, lecturers []normalize.RawLecturer, courses []normalize.RawCourse, groups []normalize.RawStudentGroup) {
	venues = []normalize.RawVenue{{ID: "room-a", Capacity: 30}}
	lecturers = []normalize.RawLecturer{{
		ID:           "prof-x",
		Availability: map[string][]normalize.RawInterval{"monday": {{StartHour: 8, EndHour: 17}}},
	}}
	courses = []normalize.RawCourse{{
		ID: "course-1", Frequency: 1, DurationMinutes: 60,
		LecturerID: "prof-x", StudentGroupIDs: []string{"group-1"},
	}}
	groups = []normalize.RawStudentGroup{{ID: "group-1", Size: 20}}
	return
}

func TestEngineOptimizeProducesFeasibleSchedule(t *testing.T) {
	venues, lecturers, courses, groups := baseEntities()
	e := New(nil, nil)

	resp, err := e.Optimize(context.Background(), OptimizeRequest{
		Venues: venues, Lecturers: lecturers, Courses: courses, StudentGroups: groups,
		MaxSolveTimeSeconds: 2, WeightPreference: 0.4, WeightEfficiency: 0.3, WeightBalance: 0.3,
	})

	require.NoError(t, err)
	require.Len(t, resp.Sessions, 1)
	assert.Equal(t, "room-a", resp.Sessions[0].VenueID)
	assert.Equal(t, model.StatusOptimal, resp.Metadata.SolverStatus)
}

func TestEngineOptimizeRejectsInvalidWeights(t *testing.T) {
	venues, lecturers, courses, groups := baseEntities()
	e := New(nil, nil)

	_, err := e.Optimize(context.Background(), OptimizeRequest{
		Venues: venues, Lecturers: lecturers, Courses: courses, StudentGroups: groups,
		MaxSolveTimeSeconds: 2, WeightPreference: 5, WeightEfficiency: 0.3, WeightBalance: 0.3,
	})
	require.Error(t, err)
}

func TestEngineOptimizeReturnsInfeasibleError(t *testing.T) {
	venues := []normalize.RawVenue{{ID: "room-a", Capacity: 30}}
	lecturers := []normalize.RawLecturer{{ID: "prof-x"}} // no availability
	courses := []normalize.RawCourse{{ID: "course-1", Frequency: 1, DurationMinutes: 60, LecturerID: "prof-x", StudentGroupIDs: []string{"group-1"}}}
	groups := []normalize.RawStudentGroup{{ID: "group-1", Size: 20}}
	e := New(nil, nil)

	_, err := e.Optimize(context.Background(), OptimizeRequest{
		Venues: venues, Lecturers: lecturers, Courses: courses, StudentGroups: groups,
		MaxSolveTimeSeconds: 1, WeightPreference: 0.4, WeightEfficiency: 0.3, WeightBalance: 0.3,
	})
	require.Error(t, err)
}

func TestEngineValidateRoundTripsOptimizedSchedule(t *testing.T) {
	venues, lecturers, courses, groups := baseEntities()
	e := New(nil, nil)

	optimized, err := e.Optimize(context.Background(), OptimizeRequest{
		Venues: venues, Lecturers: lecturers, Courses: courses, StudentGroups: groups,
		MaxSolveTimeSeconds: 2, WeightPreference: 0.4, WeightEfficiency: 0.3, WeightBalance: 0.3,
	})
	require.NoError(t, err)

	result, err := e.Validate(context.Background(), ValidateRequest{
		Sessions: optimized.Sessions, Venues: venues, Lecturers: lecturers, Courses: courses, StudentGroups: groups,
	})
	require.NoError(t, err)
	assert.True(t, result.IsValid)
}

func TestEngineAnalyzeAndSuggestPipeline(t *testing.T) {
	venues, lecturers, courses, groups := baseEntities()
	e := New(nil, nil)

	sessions := []model.ScheduledSession{
		{ID: "s1", CourseID: "course-1", VenueID: "room-a", LecturerID: "prof-x", StudentGroupIDs: []string{"group-1"}, Day: 0, Hour: 9},
		{ID: "s2", CourseID: "course-1", VenueID: "room-a", LecturerID: "prof-x", StudentGroupIDs: []string{"group-1"}, Day: 0, Hour: 9},
	}
	conflicts := []validate.Conflict{
		{ID: "conflict-1", Kind: validate.ConflictVenueDoubleBooking, Severity: validate.SeverityHigh, SessionIDs: []string{"s1", "s2"}, EntityIDs: []string{"room-a"}},
	}

	analysis, err := e.AnalyzeConflicts(context.Background(), AnalyzeConflictsRequest{
		Conflicts: conflicts, Sessions: sessions,
		Venues: venues, Lecturers: lecturers, Courses: courses, StudentGroups: groups,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, analysis.TotalConflicts)

	suggestions, err := e.SuggestResolutions(context.Background(), SuggestResolutionsRequest{
		Conflicts: conflicts, Sessions: sessions,
		Venues: venues, Lecturers: lecturers, Courses: courses, StudentGroups: groups,
		MaxSuggestions: 5,
	})
	require.NoError(t, err)
	require.NotEmpty(t, suggestions.Suggestions)
	for _, s := range suggestions.Suggestions {
		_, ok := suggestions.Evaluations[s.ID]
		assert.True(t, ok)
	}
}

func TestEngineValidateRejectsMissingEntities(t *testing.T) {
	e := New(nil, nil)
	_, err := e.Validate(context.Background(), ValidateRequest{})
	require.Error(t, err)
}

func TestEngineGenerateAlternativePathsReturnsFourBiasedPaths(t *testing.T) {
	venues, lecturers, courses, groups := baseEntities()
	e := New(nil, nil)

	sessions := []model.ScheduledSession{
		{ID: "s1", CourseID: "course-1", VenueID: "room-a", LecturerID: "prof-x", StudentGroupIDs: []string{"group-1"}, Day: 0, Hour: 9},
		{ID: "s2", CourseID: "course-1", VenueID: "room-a", LecturerID: "prof-x", StudentGroupIDs: []string{"group-1"}, Day: 0, Hour: 9},
	}
	conflicts := []validate.Conflict{
		{ID: "conflict-1", Kind: validate.ConflictVenueDoubleBooking, Severity: validate.SeverityHigh, SessionIDs: []string{"s1", "s2"}, EntityIDs: []string{"room-a"}},
	}

	paths, err := e.GenerateAlternativePaths(context.Background(), SuggestResolutionsRequest{
		Conflicts: conflicts, Sessions: sessions,
		Venues: venues, Lecturers: lecturers, Courses: courses, StudentGroups: groups,
	})
	require.NoError(t, err)
	assert.Len(t, paths, 4)
}
