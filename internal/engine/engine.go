// Package engine is the facade (spec.md §6): it exposes the four
// external operations — Optimize, Validate, AnalyzeConflicts, and
// SuggestResolutions — as the single integration point the rest of the
// system calls into. Every entry point validates its request and logs its
// outcome; Optimize (through the solver) and SuggestResolutions also
// record metrics. This mirrors the way the teacher's service
// layer wraps repository calls (schedule_generator_service.go).
package engine

import (
	"context"
	"time"

	validatorpkg "github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campusplan/timetable-engine/internal/analyze"
	"github.com/campusplan/timetable-engine/internal/evaluate"
	"github.com/campusplan/timetable-engine/internal/model"
	"github.com/campusplan/timetable-engine/internal/normalize"
	"github.com/campusplan/timetable-engine/internal/solver"
	"github.com/campusplan/timetable-engine/internal/suggest"
	"github.com/campusplan/timetable-engine/internal/validate"
	pkgerrors "github.com/campusplan/timetable-engine/pkg/errors"
	"github.com/campusplan/timetable-engine/pkg/logger"
)

// Recorder is the subset of pkg/metrics.Recorder the engine depends on,
// satisfied by both the real recorder and a nil-safe no-op in tests.
type Recorder interface {
	solver.Recorder
	IncSuggestions(count int)
}

// Engine wires the normalizer, solver, validator, analyzer, suggester,
// and evaluator behind the four external operations.
type Engine struct {
	log       *zap.Logger
	validator *validatorpkg.Validate
	rec       Recorder
}

// New builds an Engine. A nil logger defaults to zap.NewNop(); a nil
// Recorder is a valid no-op.
func New(log *zap.Logger, rec Recorder) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{log: log, validator: validatorpkg.New(), rec: rec}
}

// OptimizeRequest is the input to Optimize (spec.md §6).
type OptimizeRequest struct {
	Venues        []normalize.RawVenue       `validate:"required,min=1,dive"`
	Lecturers     []normalize.RawLecturer    `validate:"required,min=1,dive"`
	Courses       []normalize.RawCourse      `validate:"required,min=1,dive"`
	StudentGroups []normalize.RawStudentGroup `validate:"required,min=1,dive"`
	Rules         []normalize.RawRule        `validate:"dive"`

	MaxSolveTimeSeconds   float64 `validate:"gte=0"`
	WeightPreference      float64 `validate:"gte=0,lte=1"`
	WeightEfficiency      float64 `validate:"gte=0,lte=1"`
	WeightBalance         float64 `validate:"gte=0,lte=1"`
	AllowPartialSolutions bool
}

// OptimizeResponse is the output of Optimize (spec.md §6).
type OptimizeResponse struct {
	Sessions []model.ScheduledSession
	Metadata model.SolveMetadata
	Warnings []normalize.Warning
}

// Optimize runs the normalize -> build-variables -> solve pipeline.
func (e *Engine) Optimize(ctx context.Context, req OptimizeRequest) (*OptimizeResponse, error) {
	start := time.Now()
	const op = "optimize"
	log := logger.WithOperation(e.log, op)

	if err := e.validator.Struct(req); err != nil {
		logger.LogOutcome(log, op, start, err)
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrValidation.Code, pkgerrors.ErrValidation.Status, pkgerrors.ErrValidation.Message)
	}

	report := normalize.Normalize(normalize.Input{
		Venues:        req.Venues,
		Lecturers:     req.Lecturers,
		Courses:       req.Courses,
		StudentGroups: req.StudentGroups,
		Rules:         req.Rules,
	}, log)

	vars := model.BuildSessionVariables(report)

	params := solver.Params{
		MaxSolveTime:          time.Duration(req.MaxSolveTimeSeconds * float64(time.Second)),
		Weights:               solver.Weights{Preference: req.WeightPreference, Efficiency: req.WeightEfficiency, Balance: req.WeightBalance},
		AllowPartialSolutions: req.AllowPartialSolutions,
	}

	result, infeasible := solver.Solve(ctx, report, vars, params, log, e.rec)
	if infeasible != nil {
		logger.LogOutcome(log, op, start, infeasible)
		return nil, pkgerrors.Wrap(infeasible, pkgerrors.ErrInfeasible.Code, pkgerrors.ErrInfeasible.Status, infeasible.Suggestion)
	}

	logger.LogOutcome(log, op, start, nil)
	return &OptimizeResponse{Sessions: result.Sessions, Metadata: result.Metadata, Warnings: report.SortedWarnings()}, nil
}

// ValidateRequest is the input to Validate (spec.md §6).
type ValidateRequest struct {
	Sessions      []model.ScheduledSession    `validate:"dive"`
	Venues        []normalize.RawVenue        `validate:"required,min=1,dive"`
	Lecturers     []normalize.RawLecturer     `validate:"required,min=1,dive"`
	Courses       []normalize.RawCourse       `validate:"required,min=1,dive"`
	StudentGroups []normalize.RawStudentGroup `validate:"required,min=1,dive"`
	Rules         []normalize.RawRule         `validate:"dive"`
}

// Validate re-checks a schedule against the entities it was built from.
func (e *Engine) Validate(ctx context.Context, req ValidateRequest) (*validate.Result, error) {
	start := time.Now()
	const op = "validate"
	log := logger.WithOperation(e.log, op)

	if err := e.validator.Struct(req); err != nil {
		logger.LogOutcome(log, op, start, err)
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrValidation.Code, pkgerrors.ErrValidation.Status, pkgerrors.ErrValidation.Message)
	}

	report := normalize.Normalize(normalize.Input{
		Venues:        req.Venues,
		Lecturers:     req.Lecturers,
		Courses:       req.Courses,
		StudentGroups: req.StudentGroups,
		Rules:         req.Rules,
	}, log)

	result := validate.Validate(req.Sessions, report)
	logger.LogOutcome(log, op, start, nil)
	return &result, nil
}

// AnalyzeConflictsRequest is the input to AnalyzeConflicts (spec.md §6).
type AnalyzeConflictsRequest struct {
	Conflicts []validate.Conflict      `validate:"dive"`
	Sessions  []model.ScheduledSession `validate:"dive"`

	Venues        []normalize.RawVenue        `validate:"required,min=1,dive"`
	Lecturers     []normalize.RawLecturer     `validate:"required,min=1,dive"`
	Courses       []normalize.RawCourse       `validate:"required,min=1,dive"`
	StudentGroups []normalize.RawStudentGroup `validate:"required,min=1,dive"`
	Rules         []normalize.RawRule         `validate:"dive"`
}

// AnalyzeConflicts mines patterns and root causes from a conflict list.
func (e *Engine) AnalyzeConflicts(ctx context.Context, req AnalyzeConflictsRequest) (*analyze.Analysis, error) {
	start := time.Now()
	const op = "analyze_conflicts"
	log := logger.WithOperation(e.log, op)

	if err := e.validator.Struct(req); err != nil {
		logger.LogOutcome(log, op, start, err)
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrValidation.Code, pkgerrors.ErrValidation.Status, pkgerrors.ErrValidation.Message)
	}

	report := normalize.Normalize(normalize.Input{
		Venues:        req.Venues,
		Lecturers:     req.Lecturers,
		Courses:       req.Courses,
		StudentGroups: req.StudentGroups,
		Rules:         req.Rules,
	}, log)

	result := analyze.Analyze(req.Conflicts, req.Sessions, report)
	logger.LogOutcome(log, op, start, nil)
	return &result, nil
}

// SuggestResolutionsRequest is the input to SuggestResolutions (spec.md §6).
type SuggestResolutionsRequest struct {
	Conflicts []validate.Conflict      `validate:"dive"`
	Sessions  []model.ScheduledSession `validate:"dive"`

	Venues        []normalize.RawVenue        `validate:"required,min=1,dive"`
	Lecturers     []normalize.RawLecturer     `validate:"required,min=1,dive"`
	Courses       []normalize.RawCourse       `validate:"required,min=1,dive"`
	StudentGroups []normalize.RawStudentGroup `validate:"required,min=1,dive"`
	Rules         []normalize.RawRule         `validate:"dive"`

	MaxSuggestions int `validate:"gte=0"`
}

// SuggestResolutionsResponse pairs each Suggestion with its Evaluation.
type SuggestResolutionsResponse struct {
	Suggestions []suggest.Suggestion
	Evaluations map[string]evaluate.Evaluation // keyed by Suggestion.ID
}

// SuggestResolutions proposes and scores repair actions for every
// conflict, then evaluates each one for feasibility, impact, and risk.
func (e *Engine) SuggestResolutions(ctx context.Context, req SuggestResolutionsRequest) (*SuggestResolutionsResponse, error) {
	start := time.Now()
	const op = "suggest_resolutions"
	log := logger.WithOperation(e.log, op)

	if err := e.validator.Struct(req); err != nil {
		logger.LogOutcome(log, op, start, err)
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrValidation.Code, pkgerrors.ErrValidation.Status, pkgerrors.ErrValidation.Message)
	}

	report := normalize.Normalize(normalize.Input{
		Venues:        req.Venues,
		Lecturers:     req.Lecturers,
		Courses:       req.Courses,
		StudentGroups: req.StudentGroups,
		Rules:         req.Rules,
	}, log)

	suggestions := suggest.Suggest(req.Conflicts, req.Sessions, report, req.MaxSuggestions)

	conflictByID := map[string]validate.Conflict{}
	for _, c := range req.Conflicts {
		conflictByID[c.ID] = c
	}

	evaluations := make(map[string]evaluate.Evaluation, len(suggestions))
	for _, s := range suggestions {
		evaluations[s.ID] = evaluate.Evaluate(s, conflictByID[s.ConflictID], report)
	}

	if e.rec != nil {
		e.rec.IncSuggestions(len(suggestions))
	}

	logger.LogOutcome(log, op, start, nil)
	return &SuggestResolutionsResponse{Suggestions: suggestions, Evaluations: evaluations}, nil
}

// GenerateAlternativePaths runs the §4.8 "multiple alternatives path
// generator": up to four disjoint repair plans over the same conflict set,
// each biased toward a different strategy (highest score, lowest effort,
// prefer rescheduling, prefer reassignment). It reuses SuggestResolutions's
// request shape; MaxSuggestions is ignored since a path is one suggestion
// per conflict, not a ranked top-N list.
func (e *Engine) GenerateAlternativePaths(ctx context.Context, req SuggestResolutionsRequest) ([]suggest.AlternativePath, error) {
	start := time.Now()
	const op = "generate_alternative_paths"
	log := logger.WithOperation(e.log, op)

	if err := e.validator.Struct(req); err != nil {
		logger.LogOutcome(log, op, start, err)
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrValidation.Code, pkgerrors.ErrValidation.Status, pkgerrors.ErrValidation.Message)
	}

	report := normalize.Normalize(normalize.Input{
		Venues:        req.Venues,
		Lecturers:     req.Lecturers,
		Courses:       req.Courses,
		StudentGroups: req.StudentGroups,
		Rules:         req.Rules,
	}, log)

	paths := suggest.GenerateAlternativePaths(req.Conflicts, req.Sessions, report)

	logger.LogOutcome(log, op, start, nil)
	return paths, nil
}
