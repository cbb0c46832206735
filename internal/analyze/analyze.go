// Package analyze implements the Conflict Analyzer (C7): given a
// schedule's conflicts plus the schedule and entities, it mines patterns,
// entity hotspots, and structural root causes. It never mutates the
// schedule it is given (spec.md §5) and never fails (spec.md §7).
package analyze

import (
	"fmt"
	"math"
	"sort"

	"github.com/campusplan/timetable-engine/internal/domain"
	"github.com/campusplan/timetable-engine/internal/model"
	"github.com/campusplan/timetable-engine/internal/normalize"
	"github.com/campusplan/timetable-engine/internal/validate"
)

// Pattern is a recurring conflict kind or entity hotspot (spec.md §4.7).
type Pattern struct {
	Kind     string
	Subject  string // conflict kind, "entity:<id>" for a hotspot, or a weekday name for a day overload
	Frequency int
	Entities []string
	Severity float64
	// CompoundingKinds is populated only when two conflict kinds are
	// observed to repeatedly name the same session id — this repository's
	// own enrichment, not ported from the original analyzer (SPEC_FULL.md
	// §4.7). Callers that ignore it see the same Pattern shape as before.
	CompoundingKinds [][2]string
}

// EntityHotspot is one of the top-10 most-conflict-heavy entities.
type EntityHotspot struct {
	EntityID string
	Count    int
	Kinds    []string
}

// EntityTypeAggregate summarizes conflicts for one entity type.
type EntityTypeAggregate struct {
	Type           string
	TotalConflicts int
	EntityCount    int
}

// RootCause is a structural property plausibly producing conflicts.
type RootCause struct {
	Kind        string
	Severity    validate.Severity
	Description string
}

// Analysis is the Conflict Analyzer's full output (spec.md §6).
type Analysis struct {
	TotalConflicts       int
	Patterns             []Pattern
	EntityHotspots       []EntityHotspot
	EntityTypeAggregates []EntityTypeAggregate
	RootCauses           []RootCause
	SeverityDistribution map[validate.Severity]int
	Recommendations      []string
}

// Analyze mines patterns, hotspots, and root causes from a conflict list.
func Analyze(conflicts []validate.Conflict, sessions []model.ScheduledSession, r *normalize.Report) Analysis {
	a := Analysis{
		TotalConflicts:       len(conflicts),
		SeverityDistribution: map[validate.Severity]int{},
	}
	if len(conflicts) == 0 {
		return a
	}

	a.Patterns = kindPatterns(conflicts)
	a.Patterns = append(a.Patterns, entityHotspotPatterns(conflicts)...)
	a.Patterns = append(a.Patterns, dayOverloadPatterns(conflicts, sessions)...)
	sortPatterns(a.Patterns)

	a.EntityHotspots, a.EntityTypeAggregates = entityAnalysis(conflicts, r)
	a.RootCauses = rootCauses(sessions, r)

	for _, c := range conflicts {
		a.SeverityDistribution[c.Severity]++
	}

	a.Recommendations = recommendations(a.Patterns, a.RootCauses)
	return a
}

// kindPatterns groups conflicts by kind; any kind appearing >= 2 times
// becomes a pattern, with compounding-kind annotations when two kinds
// repeatedly name the same session (SPEC_FULL.md §4.7 supplement).
func kindPatterns(conflicts []validate.Conflict) []Pattern {
	byKind := map[validate.ConflictKind][]validate.Conflict{}
	for _, c := range conflicts {
		byKind[c.Kind] = append(byKind[c.Kind], c)
	}

	sessionKinds := map[string]map[validate.ConflictKind]struct{}{}
	for _, c := range conflicts {
		for _, sid := range c.SessionIDs {
			if sessionKinds[sid] == nil {
				sessionKinds[sid] = map[validate.ConflictKind]struct{}{}
			}
			sessionKinds[sid][c.Kind] = struct{}{}
		}
	}

	var kinds []string
	for k := range byKind {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)

	var out []Pattern
	for _, kindStr := range kinds {
		kind := validate.ConflictKind(kindStr)
		group := byKind[kind]
		if len(group) < 2 {
			continue
		}
		entitySet := map[string]struct{}{}
		for _, c := range group {
			for _, e := range c.EntityIDs {
				entitySet[e] = struct{}{}
			}
		}
		out = append(out, Pattern{
			Kind:      "conflict_kind",
			Subject:   kindStr,
			Frequency: len(group),
			Entities:  sortedKeys(entitySet),
			Severity:  math.Min(1, float64(len(group))/10+float64(len(entitySet))/20),
			CompoundingKinds: compoundingKinds(kind, group, sessionKinds),
		})
	}
	return out
}

func compoundingKinds(kind validate.ConflictKind, group []validate.Conflict, sessionKinds map[string]map[validate.ConflictKind]struct{}) [][2]string {
	seen := map[[2]string]int{}
	for _, c := range group {
		for _, sid := range c.SessionIDs {
			for other := range sessionKinds[sid] {
				if other == kind {
					continue
				}
				pair := sortedPair(string(kind), string(other))
				seen[pair]++
			}
		}
	}
	var out [][2]string
	var keys [][2]string
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i][0] != keys[j][0] {
			return keys[i][0] < keys[j][0]
		}
		return keys[i][1] < keys[j][1]
	})
	for _, k := range keys {
		if seen[k] >= 2 {
			out = append(out, k)
		}
	}
	return out
}

func sortedPair(a, b string) [2]string {
	if a <= b {
		return [2]string{a, b}
	}
	return [2]string{b, a}
}

// entityHotspotPatterns flags any entity appearing in >= 3 conflicts.
func entityHotspotPatterns(conflicts []validate.Conflict) []Pattern {
	counts := map[string]int{}
	for _, c := range conflicts {
		for _, e := range c.EntityIDs {
			counts[e]++
		}
	}
	var ids []string
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []Pattern
	for _, id := range ids {
		freq := counts[id]
		if freq < 3 {
			continue
		}
		out = append(out, Pattern{
			Kind:      "entity_hotspot",
			Subject:   "entity:" + id,
			Frequency: freq,
			Entities:  []string{id},
			Severity:  math.Min(1, float64(freq)/10+1.0/20),
		})
	}
	return out
}

// dayOverloadPatterns buckets conflicts by weekday and flags a day with
// disproportionately many as a "day_overload" pattern — this repository's
// own enrichment, not ported from the original analyzer (SPEC_FULL.md §4.7).
func dayOverloadPatterns(conflicts []validate.Conflict, sessions []model.ScheduledSession) []Pattern {
	sessionDay := map[string]int{}
	for _, s := range sessions {
		sessionDay[s.ID] = s.Day
	}
	dayCounts := map[int]int{}
	total := 0
	for _, c := range conflicts {
		for _, sid := range c.SessionIDs {
			if day, ok := sessionDay[sid]; ok {
				dayCounts[day]++
				total++
			}
		}
	}
	if total == 0 || len(dayCounts) == 0 {
		return nil
	}
	mean := float64(total) / float64(domain.GridDays)
	var out []Pattern
	for day := 0; day < domain.GridDays; day++ {
		count := dayCounts[day]
		if float64(count) > 1.5*mean && count >= 2 {
			out = append(out, Pattern{
				Kind:      "day_overload",
				Subject:   domain.DayName(day),
				Frequency: count,
				Severity:  math.Min(1, float64(count)/10),
			})
		}
	}
	return out
}

func sortPatterns(p []Pattern) {
	sort.Slice(p, func(i, j int) bool {
		if p[i].Kind != p[j].Kind {
			return p[i].Kind < p[j].Kind
		}
		return p[i].Subject < p[j].Subject
	})
}

func entityAnalysis(conflicts []validate.Conflict, r *normalize.Report) ([]EntityHotspot, []EntityTypeAggregate) {
	counts := map[string]int{}
	kindsByEntity := map[string]map[string]struct{}{}
	for _, c := range conflicts {
		for _, e := range c.EntityIDs {
			counts[e]++
			if kindsByEntity[e] == nil {
				kindsByEntity[e] = map[string]struct{}{}
			}
			kindsByEntity[e][string(c.Kind)] = struct{}{}
		}
	}

	var ids []string
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if counts[ids[i]] != counts[ids[j]] {
			return counts[ids[i]] > counts[ids[j]]
		}
		return ids[i] < ids[j]
	})
	if len(ids) > 10 {
		ids = ids[:10]
	}

	hotspots := make([]EntityHotspot, 0, len(ids))
	for _, id := range ids {
		hotspots = append(hotspots, EntityHotspot{
			EntityID: id,
			Count:    counts[id],
			Kinds:    sortedKeys(kindsByEntity[id]),
		})
	}

	aggByType := map[string]*EntityTypeAggregate{}
	for id, count := range counts {
		t := entityType(id, r)
		agg, ok := aggByType[t]
		if !ok {
			agg = &EntityTypeAggregate{Type: t}
			aggByType[t] = agg
		}
		agg.TotalConflicts += count
		agg.EntityCount++
	}
	var aggs []EntityTypeAggregate
	var types []string
	for t := range aggByType {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		aggs = append(aggs, *aggByType[t])
	}

	return hotspots, aggs
}

func entityType(id string, r *normalize.Report) string {
	if _, ok := r.VenueByID[id]; ok {
		return "venue"
	}
	if _, ok := r.LecturerByID[id]; ok {
		return "lecturer"
	}
	if _, ok := r.GroupByID[id]; ok {
		return "student_group"
	}
	if _, ok := r.CourseByID[id]; ok {
		return "course"
	}
	return "unknown"
}

// rootCauses computes venue scarcity, lecturer overload, and time-slot
// congestion per spec.md §4.7's exact thresholds.
func rootCauses(sessions []model.ScheduledSession, r *normalize.Report) []RootCause {
	var causes []RootCause

	if len(r.Venues) > 0 {
		loads := map[string]int{}
		for _, s := range sessions {
			loads[s.VenueID]++
		}
		mean := float64(len(sessions)) / float64(len(r.Venues))
		scarce := 0
		for _, v := range r.Venues {
			if float64(loads[v.ID]) > 1.5*mean {
				scarce++
			}
		}
		if scarce > 0 {
			sev := validate.SeverityMedium
			if float64(scarce)/float64(len(r.Venues)) > 0.3 {
				sev = validate.SeverityHigh
			}
			causes = append(causes, RootCause{
				Kind: "venue_scarcity", Severity: sev,
				Description: fmt.Sprintf("%d of %d venues are used over 1.5x the mean venue load", scarce, len(r.Venues)),
			})
		}
	}

	if len(r.Lecturers) > 0 {
		loads := map[string]int{}
		for _, s := range sessions {
			loads[s.LecturerID]++
		}
		mean := float64(len(sessions)) / float64(len(r.Lecturers))
		overloaded := 0
		for _, l := range r.Lecturers {
			if float64(loads[l.ID]) > 1.5*mean {
				overloaded++
			}
		}
		if overloaded > 0 {
			sev := validate.SeverityMedium
			if float64(overloaded)/float64(len(r.Lecturers)) > 0.2 {
				sev = validate.SeverityHigh
			}
			causes = append(causes, RootCause{
				Kind: "lecturer_overload", Severity: sev,
				Description: fmt.Sprintf("%d of %d lecturers are loaded over 1.5x the mean lecturer load", overloaded, len(r.Lecturers)),
			})
		}
	}

	if len(sessions) > 0 {
		slotLoads := map[domain.SlotKey]int{}
		for _, s := range sessions {
			slotLoads[s.Key()]++
		}
		mean := float64(len(sessions)) / float64(domain.GridSlotCount)
		congested := 0
		for _, count := range slotLoads {
			if float64(count) > 2*mean {
				congested++
			}
		}
		if congested > 0 {
			causes = append(causes, RootCause{
				Kind: "time_slot_congestion", Severity: validate.SeverityMedium,
				Description: fmt.Sprintf("%d (day, hour) cells exceed 2x the mean slot load", congested),
			})
		}
	}

	return causes
}

func recommendations(patterns []Pattern, causes []RootCause) []string {
	var recs []string
	for _, c := range causes {
		if c.Severity == validate.SeverityHigh {
			switch c.Kind {
			case "venue_scarcity":
				recs = append(recs, "add venue capacity or spread sessions across underused rooms")
			case "lecturer_overload":
				recs = append(recs, "hire or reassign lecturers to relieve overloaded teaching staff")
			}
		}
	}
	for _, p := range patterns {
		if p.Kind == "conflict_kind" {
			recs = append(recs, fmt.Sprintf("investigate recurring %s conflicts (%d occurrences)", p.Subject, p.Frequency))
		}
		if p.Kind == "entity_hotspot" {
			recs = append(recs, fmt.Sprintf("review entity %s, implicated in %d conflicts", p.Subject, p.Frequency))
		}
		if len(recs) >= 5 {
			break
		}
	}
	if len(recs) > 5 {
		recs = recs[:5]
	}
	return recs
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
