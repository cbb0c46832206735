// Package normalize implements the Entity & Rule Normalizer (C1): it
// canonicalizes heterogeneous entity records, generates the weekly time
// grid, and classifies rules as hard or soft. It never fails — malformed
// input is coerced to a default and recorded as a warning (spec.md §7).
package normalize

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/campusplan/timetable-engine/internal/domain"
)

// Warning describes one coercion the normalizer applied.
type Warning struct {
	Entity  string
	ID      string
	Field   string
	Message string
}

// Report is the normalized, read-only context threaded through every
// later pipeline stage (spec.md §9 "Shared state between Analyzer
// passes").
type Report struct {
	Venues        []domain.Venue
	Lecturers     []domain.Lecturer
	Courses       []domain.Course
	StudentGroups []domain.StudentGroup
	Rules         []domain.Rule
	Grid          []domain.Slot

	VenueByID    map[string]domain.Venue
	LecturerByID map[string]domain.Lecturer
	CourseByID   map[string]domain.Course
	GroupByID    map[string]domain.StudentGroup

	Warnings []Warning
}

// RawVenue is the permissive input shape for a venue record.
type RawVenue struct {
	ID        string
	Name      string
	Capacity  int
	Equipment []string
}

// RawLecturer is the permissive input shape for a lecturer record.
// Availability is keyed by a loosely-typed day label ("monday", "Mon",
// "0", ...); a day mapping to nil/empty means unavailable that day.
type RawLecturer struct {
	ID                 string
	Name               string
	Subjects           []string
	Availability       map[string][]RawInterval
	PreferredSlotKeys  []domain.SlotKey
	MaxConsecutiveHour int
	MaxWeeklyHours     int
}

// RawInterval mirrors a single availability window before normalization.
type RawInterval struct {
	StartHour int
	EndHour   int
}

// RawCourse is the permissive input shape for a course record.
type RawCourse struct {
	ID                string
	Name              string
	DurationMinutes   int
	Frequency         int
	RequiredEquipment []string
	StudentGroupIDs   []string
	LecturerID        string
	SubjectTags       []string
}

// RawStudentGroup is the permissive input shape for a student group record.
type RawStudentGroup struct {
	ID        string
	Name      string
	Size      int
	CourseIDs []string
}

// RawRule is the permissive input shape for a rule record.
type RawRule struct {
	ID       string
	Kind     string
	Priority string
	Weight   float64
	Entities []string
	Source   string
}

// Input bundles every raw entity collection for one normalization pass.
type Input struct {
	Venues        []RawVenue
	Lecturers     []RawLecturer
	Courses       []RawCourse
	StudentGroups []RawStudentGroup
	Rules         []RawRule
}

// Normalize canonicalizes the input and builds the shared pipeline context.
// It never returns an error; every defect becomes a Warning.
func Normalize(input Input, log *zap.Logger) *Report {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Report{
		Grid:         domain.BuildTimeGrid(),
		VenueByID:    make(map[string]domain.Venue, len(input.Venues)),
		LecturerByID: make(map[string]domain.Lecturer, len(input.Lecturers)),
		CourseByID:   make(map[string]domain.Course, len(input.Courses)),
		GroupByID:    make(map[string]domain.StudentGroup, len(input.StudentGroups)),
	}

	for _, raw := range input.Venues {
		v := normalizeVenue(raw, r, log)
		r.Venues = append(r.Venues, v)
		r.VenueByID[v.ID] = v
	}
	for _, raw := range input.Lecturers {
		l := normalizeLecturer(raw, r, log)
		r.Lecturers = append(r.Lecturers, l)
		r.LecturerByID[l.ID] = l
	}
	for _, raw := range input.Courses {
		c := normalizeCourse(raw, r, log)
		r.Courses = append(r.Courses, c)
		r.CourseByID[c.ID] = c
	}
	for _, raw := range input.StudentGroups {
		g := normalizeGroup(raw, r, log)
		r.StudentGroups = append(r.StudentGroups, g)
		r.GroupByID[g.ID] = g
	}
	for _, raw := range input.Rules {
		rule := classifyRule(raw)
		if rule.Weight != raw.Weight {
			r.warn("rule", raw.ID, "weight", "weight outside [0,10], clamped", log)
		}
		if raw.Priority != "" && string(rule.Priority) != strings.ToLower(raw.Priority) {
			r.warn("rule", raw.ID, "priority", fmt.Sprintf("unknown priority %q defaulted to medium", raw.Priority), log)
		}
		r.Rules = append(r.Rules, rule)
	}

	return r
}

func (r *Report) warn(entity, id, field, message string, log *zap.Logger) {
	w := Warning{Entity: entity, ID: id, Field: field, Message: message}
	r.Warnings = append(r.Warnings, w)
	log.Warn("normalization_coercion",
		zap.String("entity", entity),
		zap.String("id", id),
		zap.String("field", field),
		zap.String("message", message),
	)
}

func normalizeVenue(raw RawVenue, r *Report, log *zap.Logger) domain.Venue {
	capacity := raw.Capacity
	if capacity < 1 {
		r.warn("venue", raw.ID, "capacity", "capacity below 1, defaulted to 1", log)
		capacity = 1
	}
	equipment := make(map[string]struct{}, len(raw.Equipment))
	for _, tag := range raw.Equipment {
		equipment[tag] = struct{}{}
	}
	return domain.Venue{ID: raw.ID, Name: raw.Name, Capacity: capacity, Equipment: equipment}
}

func normalizeLecturer(raw RawLecturer, r *Report, log *zap.Logger) domain.Lecturer {
	subjects := make(map[string]struct{}, len(raw.Subjects))
	for _, s := range raw.Subjects {
		subjects[s] = struct{}{}
	}

	availability := make(map[int][]domain.TimeInterval)
	for day := 0; day < domain.GridDays; day++ {
		availability[day] = nil
	}
	seenKey := false
	for dayKey, windows := range raw.Availability {
		day, ok := CanonicalDay(dayKey)
		if !ok {
			r.warn("lecturer", raw.ID, "availability.day", fmt.Sprintf("unknown day key %q defaulted to Monday", dayKey), log)
			day = 0
		}
		seenKey = true
		for _, w := range windows {
			if w.EndHour <= w.StartHour {
				r.warn("lecturer", raw.ID, "availability.interval", "end_hour <= start_hour, interval dropped", log)
				continue
			}
			availability[day] = append(availability[day], domain.TimeInterval{StartHour: w.StartHour, EndHour: w.EndHour})
		}
	}
	if !seenKey {
		r.warn("lecturer", raw.ID, "availability", "no availability supplied, lecturer treated as unavailable", log)
	}

	prefKeys := make(map[domain.SlotKey]struct{}, len(raw.PreferredSlotKeys))
	for _, k := range raw.PreferredSlotKeys {
		prefKeys[k] = struct{}{}
	}

	return domain.Lecturer{
		ID:       raw.ID,
		Name:     raw.Name,
		Subjects: subjects,
		Availability: availability,
		Preferences: domain.LecturerPreferences{
			PreferredSlotKeys:  prefKeys,
			MaxConsecutiveHour: raw.MaxConsecutiveHour,
		},
		MaxWeeklyHours: raw.MaxWeeklyHours,
	}
}

func normalizeCourse(raw RawCourse, r *Report, log *zap.Logger) domain.Course {
	duration := raw.DurationMinutes
	if duration <= 0 {
		duration = 60
	}
	frequency := raw.Frequency
	if frequency < 1 {
		r.warn("course", raw.ID, "frequency", "frequency below 1, defaulted to 1", log)
		frequency = 1
	}
	tags := make(map[string]struct{}, len(raw.SubjectTags))
	for _, t := range raw.SubjectTags {
		tags[t] = struct{}{}
	}
	return domain.Course{
		ID:                raw.ID,
		Name:              raw.Name,
		DurationMinutes:   duration,
		Frequency:         frequency,
		RequiredEquipment: append([]string(nil), raw.RequiredEquipment...),
		StudentGroupIDs:   append([]string(nil), raw.StudentGroupIDs...),
		LecturerID:        raw.LecturerID,
		SubjectTags:       tags,
	}
}

func normalizeGroup(raw RawStudentGroup, r *Report, log *zap.Logger) domain.StudentGroup {
	size := raw.Size
	if size == 0 {
		r.warn("student_group", raw.ID, "size", "size absent, defaulted to 30", log)
		size = 30
	}
	return domain.StudentGroup{
		ID:        raw.ID,
		Name:      raw.Name,
		Size:      size,
		CourseIDs: append([]string(nil), raw.CourseIDs...),
	}
}

func classifyRule(raw RawRule) domain.Rule {
	priority := domain.RulePriority(strings.ToLower(raw.Priority))
	switch priority {
	case domain.PriorityCritical, domain.PriorityHigh, domain.PriorityMedium, domain.PriorityLow:
	default:
		priority = domain.PriorityMedium
	}
	weight := raw.Weight
	if weight < 0 {
		weight = 0
	}
	if weight > 10 {
		weight = 10
	}

	kind := domain.RuleKind(raw.Kind)
	hard := isAlwaysHard(kind)
	if !hard && kind != domain.RuleLecturerPreference {
		hard = priority == domain.PriorityCritical || priority == domain.PriorityHigh
	}

	return domain.Rule{
		ID:       raw.ID,
		Kind:     kind,
		Priority: priority,
		Weight:   weight,
		Entities: append([]string(nil), raw.Entities...),
		Hard:     hard,
		Source:   raw.Source,
	}
}

func isAlwaysHard(kind domain.RuleKind) bool {
	switch kind {
	case domain.RuleHardAvailability, domain.RuleVenueCapacity, domain.RuleEquipmentRequired:
		return true
	default:
		return false
	}
}

// CanonicalDay maps a loosely-typed day label to a 0..4 weekday index.
// Accepts "monday"/"Mon"/"0" (case-insensitive) forms.
func CanonicalDay(raw string) (int, bool) {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	switch trimmed {
	case "monday", "mon", "0":
		return 0, true
	case "tuesday", "tue", "tues", "1":
		return 1, true
	case "wednesday", "wed", "2":
		return 2, true
	case "thursday", "thu", "thurs", "3":
		return 3, true
	case "friday", "fri", "4":
		return 4, true
	}
	if n, err := strconv.Atoi(trimmed); err == nil && n >= 0 && n < domain.GridDays {
		return n, true
	}
	return 0, false
}

// SortedWarnings returns the report's warnings in a stable, deterministic
// order (entity, then id, then field) for reproducible output.
func (r *Report) SortedWarnings() []Warning {
	out := append([]Warning(nil), r.Warnings...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Entity != out[j].Entity {
			return out[i].Entity < out[j].Entity
		}
		if out[i].ID != out[j].ID {
			return out[i].ID < out[j].ID
		}
		return out[i].Field < out[j].Field
	})
	return out
}
