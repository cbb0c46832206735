package suggest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusplan/timetable-engine/internal/domain"
	"github.com/campusplan/timetable-engine/internal/model"
	"github.com/campusplan/timetable-engine/internal/normalize"
	"github.com/campusplan/timetable-engine/internal/validate"
)

func buildReport() *normalize.Report {
	return normalize.Normalize(normalize.Input{
		Venues: []normalize.RawVenue{
			{ID: "room-a", Capacity: 15},
			{ID: "room-b", Capacity: 40},
		},
		Lecturers: []normalize.RawLecturer{
			{ID: "prof-x", Availability: map[string][]normalize.RawInterval{"monday": {{StartHour: 8, EndHour: 17}}}},
			{ID: "prof-y", Subjects: []string{"math"}, MaxWeeklyHours: 20, Availability: map[string][]normalize.RawInterval{"monday": {{StartHour: 8, EndHour: 17}}}},
		},
		Courses: []normalize.RawCourse{
			{ID: "course-1", LecturerID: "prof-x", StudentGroupIDs: []string{"group-1"}, SubjectTags: []string{"math"}},
		},
		StudentGroups: []normalize.RawStudentGroup{{ID: "group-1", Size: 20}},
	}, nil)
}

func sessions() []model.ScheduledSession {
	return []model.ScheduledSession{
		{ID: "s1", CourseID: "course-1", VenueID: "room-a", LecturerID: "prof-x", StudentGroupIDs: []string{"group-1"}, Day: 0, Hour: 9},
	}
}

func TestSuggestVenueDoubleBookingOffersReassignAndReschedule(t *testing.T) {
	r := buildReport()
	conflicts := []validate.Conflict{
		{ID: "conflict-1", Kind: validate.ConflictVenueDoubleBooking, Severity: validate.SeverityHigh, SessionIDs: []string{"s1"}},
	}
	out := Suggest(conflicts, sessions(), r, 5)
	require.NotEmpty(t, out)

	var actions []string
	for _, s := range out {
		actions = append(actions, s.Action)
	}
	assert.Contains(t, actions, "reassign_venue")
	assert.Contains(t, actions, "reschedule")
}

func TestSuggestReassignVenueExcludesCurrentAndUndersized(t *testing.T) {
	r := buildReport()
	conflicts := []validate.Conflict{
		{ID: "conflict-1", Kind: validate.ConflictCapacityExceeded, Severity: validate.SeverityHigh, SessionIDs: []string{"s1"}},
	}
	out := Suggest(conflicts, sessions(), r, 5)

	for _, s := range out {
		if s.Action == "move_larger_venue" {
			venues, ok := s.Params["alternative_venues"].([]string)
			require.True(t, ok)
			assert.NotContains(t, venues, "room-a")
			assert.Contains(t, venues, "room-b")
		}
	}
}

func TestSuggestRankedByScoreThenEffort(t *testing.T) {
	r := buildReport()
	conflicts := []validate.Conflict{
		{ID: "conflict-1", Kind: validate.ConflictLecturerDoubleBooking, Severity: validate.SeverityHigh, SessionIDs: []string{"s1"}},
	}
	out := Suggest(conflicts, sessions(), r, 5)
	require.NotEmpty(t, out)
	for i := 1; i < len(out); i++ {
		assert.GreaterOrEqual(t, out[i-1].Score, out[i].Score)
		if out[i-1].Score == out[i].Score {
			assert.LessOrEqual(t, effortRank(out[i-1].Effort), effortRank(out[i].Effort))
		}
	}
}

func TestSuggestRespectsMaxSuggestions(t *testing.T) {
	r := buildReport()
	conflicts := []validate.Conflict{
		{ID: "conflict-1", Kind: validate.ConflictVenueDoubleBooking, Severity: validate.SeverityHigh, SessionIDs: []string{"s1"}},
		{ID: "conflict-2", Kind: validate.ConflictLecturerDoubleBooking, Severity: validate.SeverityHigh, SessionIDs: []string{"s1"}},
	}
	out := Suggest(conflicts, sessions(), r, 1)
	assert.Len(t, out, 1)
}

func TestAlternativeSlotsExcludeLunchAndCurrent(t *testing.T) {
	r := buildReport()
	s := sessions()[0]
	alts := alternativeSlots(s, r, 50)
	for _, k := range alts {
		assert.NotEqual(t, 12, k.Hour)
		assert.False(t, k.Day == s.Day && k.Hour == s.Hour)
	}
}

func TestSuggestCapacityExceededSetsNewVenueAndRequiredCapacity(t *testing.T) {
	r := buildReport()
	conflicts := []validate.Conflict{
		{ID: "conflict-1", Kind: validate.ConflictCapacityExceeded, Severity: validate.SeverityHigh, SessionIDs: []string{"s1"}},
	}
	out := Suggest(conflicts, sessions(), r, 5)

	var move, split *Suggestion
	for i := range out {
		switch out[i].Action {
		case "move_larger_venue":
			move = &out[i]
		case "split":
			split = &out[i]
		}
	}
	require.NotNil(t, move)
	assert.Equal(t, "room-b", move.Params["new_venue_id"])
	assert.Equal(t, 20, move.Params["required_capacity"])

	require.NotNil(t, split)
	assert.Equal(t, 15, split.Params["max_capacity"])
	assert.Equal(t, 2, split.Params["sessions_needed"]) // ceil(20/15)
}

func TestSuggestRescheduleSetsNewTime(t *testing.T) {
	r := buildReport()
	conflicts := []validate.Conflict{
		{ID: "conflict-1", Kind: validate.ConflictVenueDoubleBooking, Severity: validate.SeverityHigh, SessionIDs: []string{"s1"}},
	}
	out := Suggest(conflicts, sessions(), r, 5)

	var reschedule *Suggestion
	for i := range out {
		if out[i].Action == "reschedule" {
			reschedule = &out[i]
		}
	}
	require.NotNil(t, reschedule)
	newTime, ok := reschedule.Params["new_time"].(string)
	require.True(t, ok)
	assert.Contains(t, newTime, "Monday")
	assert.NotEqual(t, "Monday 09:00", newTime)
}

func TestSuggestReassignLecturerSetsNewLecturerAndAvailableTimes(t *testing.T) {
	r := buildReport()
	conflicts := []validate.Conflict{
		{ID: "conflict-1", Kind: validate.ConflictLecturerDoubleBooking, Severity: validate.SeverityHigh, SessionIDs: []string{"s1"}},
	}
	out := Suggest(conflicts, sessions(), r, 5)

	var reassign *Suggestion
	for i := range out {
		if out[i].Action == "reassign_lecturer" {
			reassign = &out[i]
		}
	}
	require.NotNil(t, reassign)
	assert.Equal(t, "prof-y", reassign.Params["new_lecturer_id"])
	times, ok := reassign.Params["alternative_times"].([]domain.SlotKey)
	require.True(t, ok)
	assert.NotEmpty(t, times)
}

func TestSuggestGroupOverlapSplitStrategy(t *testing.T) {
	r := buildReport()
	twoGroupSession := []model.ScheduledSession{
		{ID: "s2", CourseID: "course-1", VenueID: "room-b", LecturerID: "prof-x", StudentGroupIDs: []string{"group-1", "group-2"}, Day: 0, Hour: 9},
	}
	conflicts := []validate.Conflict{
		{ID: "conflict-1", Kind: validate.ConflictGroupOverlap, Severity: validate.SeverityHigh, SessionIDs: []string{"s2"}},
	}
	out := Suggest(conflicts, twoGroupSession, r, 5)

	var split *Suggestion
	for i := range out {
		if out[i].Action == "split_group" {
			split = &out[i]
		}
	}
	require.NotNil(t, split)
	assert.Equal(t, "parallel_sessions", split.Params["split_strategy"])
}

func TestSuggestionsCarryDescriptionImpactAndConfidence(t *testing.T) {
	r := buildReport()
	conflicts := []validate.Conflict{
		{ID: "conflict-1", Kind: validate.ConflictVenueDoubleBooking, Severity: validate.SeverityHigh, SessionIDs: []string{"s1"}},
	}
	out := Suggest(conflicts, sessions(), r, 5)
	require.NotEmpty(t, out)
	for _, s := range out {
		assert.NotEmpty(t, s.Description)
		assert.NotEmpty(t, s.ImpactDescription)
		assert.GreaterOrEqual(t, s.Confidence, 0.0)
		assert.LessOrEqual(t, s.Confidence, 1.0)
	}
}

func TestGenerateAlternativePathsAreDisjointAndBiased(t *testing.T) {
	r := buildReport()
	conflicts := []validate.Conflict{
		{ID: "conflict-1", Kind: validate.ConflictVenueDoubleBooking, Severity: validate.SeverityHigh, SessionIDs: []string{"s1"}},
	}
	paths := GenerateAlternativePaths(conflicts, sessions(), r)
	require.Len(t, paths, 4)

	seenBiases := map[PathBias]bool{}
	for _, p := range paths {
		seenBiases[p.Bias] = true
		for _, s := range p.Suggestions {
			assert.Equal(t, "conflict-1", s.ConflictID)
		}
	}
	assert.True(t, seenBiases[BiasHighestScore])
	assert.True(t, seenBiases[BiasLowestEffort])
	assert.True(t, seenBiases[BiasPreferReschedule])
	assert.True(t, seenBiases[BiasPreferReassignment])

	for _, p := range paths {
		if p.Bias == BiasPreferReschedule {
			require.Len(t, p.Suggestions, 1)
			assert.Equal(t, "reschedule", p.Suggestions[0].Action)
		}
		if p.Bias == BiasPreferReassignment {
			require.Len(t, p.Suggestions, 1)
			assert.Equal(t, "reassign_venue", p.Suggestions[0].Action)
		}
	}
}

func TestGenerateAlternativePathsSkipClaimedSessions(t *testing.T) {
	r := buildReport()
	conflicts := []validate.Conflict{
		{ID: "conflict-1", Kind: validate.ConflictVenueDoubleBooking, Severity: validate.SeverityHigh, SessionIDs: []string{"s1"}},
		{ID: "conflict-2", Kind: validate.ConflictLecturerDoubleBooking, Severity: validate.SeverityHigh, SessionIDs: []string{"s1"}},
	}
	paths := GenerateAlternativePaths(conflicts, sessions(), r)
	for _, p := range paths {
		assert.LessOrEqual(t, len(p.Suggestions), 1) // both conflicts share session s1
	}
}
