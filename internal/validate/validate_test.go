package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusplan/timetable-engine/internal/model"
	"github.com/campusplan/timetable-engine/internal/normalize"
)

func buildReport() *normalize.Report {
	return normalize.Normalize(normalize.Input{
		Venues: []normalize.RawVenue{
			{ID: "room-a", Capacity: 20, Equipment: []string{"projector"}},
		},
		Lecturers: []normalize.RawLecturer{{
			ID: "prof-x",
			Availability: map[string][]normalize.RawInterval{
				"monday": {{StartHour: 8, EndHour: 17}},
			},
		}},
		Courses: []normalize.RawCourse{{
			ID: "course-1", Frequency: 1, DurationMinutes: 60,
			LecturerID: "prof-x", StudentGroupIDs: []string{"group-1"},
			RequiredEquipment: []string{"projector"},
		}},
		StudentGroups: []normalize.RawStudentGroup{{ID: "group-1", Size: 15}},
	}, nil)
}

func TestValidateEmptyScheduleIsValid(t *testing.T) {
	result := Validate(nil, buildReport())
	assert.True(t, result.IsValid)
	assert.Equal(t, 0.0, result.Score)
}

func TestValidateCleanScheduleHasNoConflicts(t *testing.T) {
	r := buildReport()
	sessions := []model.ScheduledSession{
		{ID: "s1", CourseID: "course-1", VenueID: "room-a", LecturerID: "prof-x", StudentGroupIDs: []string{"group-1"}, Day: 0, Hour: 9},
	}
	result := Validate(sessions, r)
	assert.True(t, result.IsValid)
	assert.Empty(t, result.Conflicts)
	assert.Greater(t, result.Score, 0.0)
}

func TestValidateDetectsVenueDoubleBooking(t *testing.T) {
	r := buildReport()
	sessions := []model.ScheduledSession{
		{ID: "s1", CourseID: "course-1", VenueID: "room-a", LecturerID: "prof-x", StudentGroupIDs: []string{"group-1"}, Day: 0, Hour: 9},
		{ID: "s2", CourseID: "course-1", VenueID: "room-a", LecturerID: "prof-x", StudentGroupIDs: []string{"group-1"}, Day: 0, Hour: 9},
	}
	result := Validate(sessions, r)
	assert.False(t, result.IsValid)

	var kinds []string
	for _, c := range result.Conflicts {
		kinds = append(kinds, string(c.Kind))
	}
	assert.Contains(t, kinds, string(ConflictVenueDoubleBooking))
	assert.Contains(t, kinds, string(ConflictLecturerDoubleBooking))
	assert.Contains(t, kinds, string(ConflictGroupOverlap))
}

func TestValidateDetectsCapacityExceeded(t *testing.T) {
	r := buildReport()
	sessions := []model.ScheduledSession{
		{ID: "s1", CourseID: "course-1", VenueID: "room-a", LecturerID: "prof-x", StudentGroupIDs: []string{"group-1"}, Day: 0, Hour: 9},
	}
	// bump the required seats above the venue's capacity
	big := r.GroupByID["group-1"]
	big.Size = 999
	r.GroupByID["group-1"] = big

	result := Validate(sessions, r)
	assert.False(t, result.IsValid)
	var kinds []string
	for _, c := range result.Conflicts {
		kinds = append(kinds, string(c.Kind))
	}
	assert.Contains(t, kinds, string(ConflictCapacityExceeded))
}

func TestValidateDetectsAvailabilityViolation(t *testing.T) {
	r := buildReport()
	sessions := []model.ScheduledSession{
		// prof-x is only available Monday (day 0); day 1 is a violation
		{ID: "s1", CourseID: "course-1", VenueID: "room-a", LecturerID: "prof-x", StudentGroupIDs: []string{"group-1"}, Day: 1, Hour: 9},
	}
	result := Validate(sessions, r)
	assert.False(t, result.IsValid)

	found := false
	for _, v := range result.ConstraintViolations {
		if v.Rule == "hard_availability" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestEfficiencyScoreBand(t *testing.T) {
	sessions := make([]model.ScheduledSession, 0, 35)
	// occupy 35 of 50 slots -> utilization 0.7, within [0.6, 0.8]
	count := 0
	for day := 0; day < 5 && count < 35; day++ {
		for hour := 8; hour < 18 && count < 35; hour++ {
			sessions = append(sessions, model.ScheduledSession{Day: day, Hour: hour})
			count++
		}
	}
	require.Equal(t, 1.0, efficiencyScore(sessions))
}
