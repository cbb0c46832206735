package solver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusplan/timetable-engine/internal/domain"
	"github.com/campusplan/timetable-engine/internal/model"
	"github.com/campusplan/timetable-engine/internal/normalize"
)

func TestCapacityAndEquipmentOK(t *testing.T) {
	v := domain.Venue{Capacity: 30, Equipment: map[string]struct{}{"projector": {}}}
	assert.True(t, capacityOK(v, 25))
	assert.False(t, capacityOK(v, 31))

	c := domain.Course{RequiredEquipment: []string{"projector"}}
	assert.True(t, equipmentOK(v, c))
	c2 := domain.Course{RequiredEquipment: []string{"lab"}}
	assert.False(t, equipmentOK(v, c2))
}

func TestSubjectEligibleOKEmptyTagsAlwaysEligible(t *testing.T) {
	l := domain.Lecturer{Subjects: map[string]struct{}{"math": {}}}
	assert.True(t, subjectEligibleOK(l, domain.Course{}))

	c := domain.Course{SubjectTags: map[string]struct{}{"art": {}}}
	assert.False(t, subjectEligibleOK(l, c))
}

func TestAssignStateCanPlaceAndUndo(t *testing.T) {
	r := &normalize.Report{}
	s := newAssignState(r)
	key := domain.SlotKey{Day: 0, Hour: 9}

	assert.True(t, s.canPlace("v1", "l1", []string{"g1"}, key))

	s.place(model.ScheduledSession{VenueID: "v1", LecturerID: "l1", StudentGroupIDs: []string{"g1"}, Day: 0, Hour: 9})
	assert.False(t, s.canPlace("v1", "l2", nil, key))
	assert.False(t, s.canPlace("v2", "l1", nil, key))
	assert.False(t, s.canPlace("v2", "l2", []string{"g1"}, key))

	s.undo()
	assert.True(t, s.canPlace("v1", "l1", []string{"g1"}, key))
}

func buildSimpleReport() *normalize.Report {
	return normalize.Normalize(normalize.Input{
		Venues: []normalize.RawVenue{{ID: "room-a", Capacity: 30}},
		Lecturers: []normalize.RawLecturer{{
			ID: "prof-x",
			Availability: map[string][]normalize.RawInterval{
				"monday": {{StartHour: 8, EndHour: 17}},
			},
		}},
		Courses: []normalize.RawCourse{{
			ID: "course-1", Frequency: 1, DurationMinutes: 60,
			LecturerID: "prof-x", StudentGroupIDs: []string{"group-1"},
		}},
		StudentGroups: []normalize.RawStudentGroup{{ID: "group-1", Size: 20}},
	}, nil)
}

func TestSolveFindsFeasibleSchedule(t *testing.T) {
	r := buildSimpleReport()
	vars := model.BuildSessionVariables(r)

	result, infeasible := Solve(context.Background(), r, vars, Params{
		MaxSolveTime: 2 * time.Second,
		Weights:      Weights{Preference: 0.4, Efficiency: 0.3, Balance: 0.3},
	}, nil, nil)

	require.Nil(t, infeasible)
	require.Len(t, result.Sessions, 1)
	assert.Equal(t, "room-a", result.Sessions[0].VenueID)
	assert.Equal(t, "prof-x", result.Sessions[0].LecturerID)
	assert.Equal(t, model.StatusOptimal, result.Metadata.SolverStatus)
}

func TestSolveEmptyVariablesReturnsOptimalEmpty(t *testing.T) {
	r := buildSimpleReport()
	result, infeasible := Solve(context.Background(), r, nil, Params{}, nil, nil)
	require.Nil(t, infeasible)
	assert.Empty(t, result.Sessions)
	assert.Equal(t, model.StatusOptimal, result.Metadata.SolverStatus)
}

func TestSolveInfeasibleWhenNoLecturerAvailable(t *testing.T) {
	r := normalize.Normalize(normalize.Input{
		Venues:    []normalize.RawVenue{{ID: "room-a", Capacity: 30}},
		Lecturers: []normalize.RawLecturer{{ID: "prof-x"}}, // no availability at all
		Courses: []normalize.RawCourse{{
			ID: "course-1", Frequency: 1, DurationMinutes: 60,
			LecturerID: "prof-x", StudentGroupIDs: []string{"group-1"},
		}},
		StudentGroups: []normalize.RawStudentGroup{{ID: "group-1", Size: 20}},
	}, nil)
	vars := model.BuildSessionVariables(r)

	result, infeasible := Solve(context.Background(), r, vars, Params{MaxSolveTime: time.Second}, nil, nil)
	assert.Nil(t, result)
	require.NotNil(t, infeasible)
	assert.Equal(t, "infeasible_problem", infeasible.Kind)
}

func TestSolveIsDeterministic(t *testing.T) {
	r := buildSimpleReport()
	vars := model.BuildSessionVariables(r)
	params := Params{MaxSolveTime: 2 * time.Second, Weights: Weights{Preference: 0.4, Efficiency: 0.3, Balance: 0.3}}

	first, _ := Solve(context.Background(), r, vars, params, nil, nil)
	second, _ := Solve(context.Background(), r, vars, params, nil, nil)

	require.Equal(t, len(first.Sessions), len(second.Sessions))
	for i := range first.Sessions {
		assert.Equal(t, first.Sessions[i].VenueID, second.Sessions[i].VenueID)
		assert.Equal(t, first.Sessions[i].LecturerID, second.Sessions[i].LecturerID)
		assert.Equal(t, first.Sessions[i].Day, second.Sessions[i].Day)
		assert.Equal(t, first.Sessions[i].Hour, second.Sessions[i].Hour)
	}
}

func TestObjectiveScalesAndSumsWeightedCounts(t *testing.T) {
	w := Weights{Preference: 0.5, Efficiency: 0.25, Balance: 0.25}
	counts := softCounts{Preference: 2, Efficiency: 1, BalanceUtil: 4}
	got := objective(w, counts)
	want := 500*2 + 250*1 + 250*4
	assert.Equal(t, want, got)
}

func TestCountEfficiencyCountsConsecutivePairs(t *testing.T) {
	sessions := []model.ScheduledSession{
		{Day: 0, Hour: 9}, {Day: 0, Hour: 10}, {Day: 0, Hour: 12},
	}
	assert.Equal(t, 1, countEfficiency(sessions))
}
