// Package solver implements the Hard Constraint Layer (C3), Soft
// Constraint & Objective Layer (C4), and Search Driver (C5). There is no
// CP/SAT library anywhere in the retrieved example corpus (checked every
// example repo's go.mod and the other_examples manifests — see
// DESIGN.md), so the search is a deterministic, budget-bounded
// backtracking enumeration rather than a call into a fabricated
// dependency.
package solver

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/campusplan/timetable-engine/internal/domain"
	"github.com/campusplan/timetable-engine/internal/model"
	"github.com/campusplan/timetable-engine/internal/normalize"
)

// InfeasibleReport is the structured failure spec.md §4.5/§7 requires
// when the search proves no assignment exists, or the budget expires
// without finding a feasible one.
type InfeasibleReport struct {
	Kind       string
	Suggestion string
	Detail     string
}

func (r *InfeasibleReport) Error() string {
	return fmt.Sprintf("%s: %s", r.Kind, r.Detail)
}

// Result is the output of a successful (optimal or feasible) solve.
type Result struct {
	Sessions []model.ScheduledSession
	Metadata model.SolveMetadata
}

// Recorder observes search outcomes for the metrics domain stack; nil is
// a valid no-op recorder.
type Recorder interface {
	ObserveSolveDuration(seconds float64)
	IncSolveOutcome(status string)
}

// Params configures one search invocation (spec.md §4.5/§6).
type Params struct {
	MaxSolveTime          time.Duration
	Weights               Weights
	AllowPartialSolutions bool
}

// Solve runs the backtracking search to time-budgeted
// completion (spec.md §4.5). ctx's deadline, if any, is honored in
// addition to Params.MaxSolveTime; whichever is sooner wins. The search
// is the single bounded-wait / cancellable operation in the engine
// (spec.md §5).
func Solve(ctx context.Context, r *normalize.Report, sessionVars []model.SessionVariable, params Params, log *zap.Logger, rec Recorder) (*Result, *InfeasibleReport) {
	if log == nil {
		log = zap.NewNop()
	}
	start := time.Now()
	budget := params.MaxSolveTime
	if budget <= 0 {
		budget = 300 * time.Second
	}
	deadline := start.Add(budget)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	if len(sessionVars) == 0 {
		meta := model.SolveMetadata{
			ProcessingTimeSeconds: time.Since(start).Seconds(),
			SolverStatus:          model.StatusOptimal,
		}
		recordOutcome(rec, start, string(model.StatusOptimal))
		return &Result{Sessions: nil, Metadata: meta}, nil
	}

	sr := newSearcher(r, sessionVars, params.Weights, deadline, ctx)
	sr.run()

	elapsed := time.Since(start).Seconds()

	if !sr.found {
		log.Warn("search_infeasible",
			zap.Int("session_variables", len(sessionVars)),
			zap.Float64("elapsed_seconds", elapsed),
			zap.Bool("timed_out", sr.timedOut),
		)
		recordOutcome(rec, start, "infeasible")
		return nil, &InfeasibleReport{
			Kind:       "infeasible_problem",
			Suggestion: "relax constraints or add resources",
			Detail:     fmt.Sprintf("no feasible assignment found for %d session variables within budget", len(sessionVars)),
		}
	}

	status := model.StatusOptimal
	if sr.timedOut {
		status = model.StatusFeasible
	}

	venues := map[string]struct{}{}
	lecturers := map[string]struct{}{}
	for _, s := range sr.best {
		venues[s.VenueID] = struct{}{}
		lecturers[s.LecturerID] = struct{}{}
	}

	meta := model.SolveMetadata{
		ProcessingTimeSeconds: elapsed,
		SolverStatus:          status,
		TotalSessions:         len(sr.best),
		UniqueVenues:          len(venues),
		UniqueLecturers:       len(lecturers),
		OptimizationScore:     sr.bestObjective,
	}
	recordOutcome(rec, start, string(status))
	return &Result{Sessions: sr.best, Metadata: meta}, nil
}

func recordOutcome(rec Recorder, start time.Time, status string) {
	if rec == nil {
		return
	}
	rec.ObserveSolveDuration(time.Since(start).Seconds())
	rec.IncSolveOutcome(status)
}

type candidateSlot struct {
	slot domain.Slot
}

type searcher struct {
	report   *normalize.Report
	vars     []model.SessionVariable
	weights  Weights
	deadline time.Time
	ctx      context.Context
	state    *assignState

	venueCandidates    map[string][]domain.Venue
	lecturerCandidates map[string][]domain.Lecturer
	slotCandidates      map[string][]domain.Slot // keyed by lecturer ID

	current       []model.ScheduledSession
	best          []model.ScheduledSession
	bestObjective int
	found         bool
	timedOut      bool
}

func newSearcher(r *normalize.Report, vars []model.SessionVariable, w Weights, deadline time.Time, ctx context.Context) *searcher {
	s := &searcher{
		report:              r,
		vars:                vars,
		weights:             w,
		deadline:            deadline,
		ctx:                 ctx,
		state:               newAssignState(r),
		venueCandidates:     make(map[string][]domain.Venue),
		lecturerCandidates:  make(map[string][]domain.Lecturer),
		slotCandidates:      make(map[string][]domain.Slot),
		bestObjective:       -1,
	}
	for _, course := range r.Courses {
		s.venueCandidates[course.ID] = candidateVenues(course, r)
		s.lecturerCandidates[course.ID] = candidateLecturers(course, r)
	}
	for _, lecturer := range r.Lecturers {
		s.slotCandidates[lecturer.ID] = candidateSlots(lecturer, r)
	}
	return s
}

func candidateVenues(course domain.Course, r *normalize.Report) []domain.Venue {
	seats := requiredSeats(course, r.GroupByID)
	var out []domain.Venue
	for _, v := range r.Venues {
		if capacityOK(v, seats) && equipmentOK(v, course) {
			out = append(out, v)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Capacity < out[j].Capacity })
	return out
}

func candidateLecturers(course domain.Course, r *normalize.Report) []domain.Lecturer {
	var primary []domain.Lecturer
	var rest []domain.Lecturer
	for _, l := range r.Lecturers {
		if !subjectEligibleOK(l, course) {
			continue
		}
		if l.ID == course.LecturerID {
			primary = append(primary, l)
		} else {
			rest = append(rest, l)
		}
	}
	return append(primary, rest...)
}

func candidateSlots(lecturer domain.Lecturer, r *normalize.Report) []domain.Slot {
	var preferred []domain.Slot
	var rest []domain.Slot
	for _, slot := range r.Grid {
		if !lecturerAvailableOK(lecturer, slot) {
			continue
		}
		if _, ok := lecturer.Preferences.PreferredSlotKeys[slot.Key()]; ok {
			preferred = append(preferred, slot)
		} else {
			rest = append(rest, slot)
		}
	}
	return append(preferred, rest...)
}

func (s *searcher) expired() bool {
	if time.Now().After(s.deadline) {
		return true
	}
	select {
	case <-s.ctx.Done():
		return true
	default:
		return false
	}
}

func (s *searcher) run() {
	s.backtrack(0)
}

// backtrack assigns session variables in (course order, occurrence
// index) order — the fixed deterministic order spec.md §5 requires for
// reproducibility. Partial assignments are not pruned by objective: every
// complete assignment updates the incumbent if its objective improves,
// then search continues (time permitting) looking for a better one. Returning
// true stops the whole search early only when the budget has expired.
func (s *searcher) backtrack(idx int) bool {
	if s.expired() {
		s.timedOut = true
		return true
	}
	if idx == len(s.vars) {
		counts := countSoftIndicators(s.current, s.report)
		obj := objective(s.weights, counts)
		if !s.found || obj > s.bestObjective {
			s.found = true
			s.bestObjective = obj
			s.best = append([]model.ScheduledSession(nil), s.current...)
		}
		return false
	}

	v := s.vars[idx]
	course := s.report.CourseByID[v.CourseID]
	groupIDs := course.StudentGroupIDs

	for _, venue := range s.venueCandidates[course.ID] {
		for _, lecturer := range s.lecturerCandidates[course.ID] {
			for _, slot := range s.slotCandidates[lecturer.ID] {
				if s.expired() {
					s.timedOut = true
					return true
				}
				key := slot.Key()
				if !s.state.canPlace(venue.ID, lecturer.ID, groupIDs, key) {
					continue
				}
				session := model.ScheduledSession{
					ID:              fmt.Sprintf("%s#%d", v.CourseID, v.Occurrence),
					CourseID:        v.CourseID,
					LecturerID:      lecturer.ID,
					VenueID:         venue.ID,
					StudentGroupIDs: append([]string(nil), groupIDs...),
					Day:             slot.Day,
					Hour:            slot.Hour,
					StartMinute:     slot.Hour * 60,
					EndMinute:       slot.Hour*60 + course.DurationMinutes,
				}
				s.state.place(session)
				s.current = append(s.current, session)

				stop := s.backtrack(idx + 1)

				s.current = s.current[:len(s.current)-1]
				s.state.undo()

				if stop {
					return true
				}
			}
		}
	}
	return false
}
