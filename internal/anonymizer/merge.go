package anonymizer

import (
	"sort"
	"strings"
)

// sourcePriority breaks confidence ties between detectors. AI responses
// carry the most context, rule matches the least. This is a policy choice,
// not a law of nature.
var sourcePriority = map[Source]int{
	SourceAI:   3,
	SourceNER:  2,
	SourceRule: 1,
}

// entityGroup accumulates all entities sharing one exact original string
type entityGroup struct {
	best      Entity
	sources   map[Source]bool
	firstSeen int
	spanStart int // earliest span start among contributors, -1 when none carried offsets
}

// mergeEntities combines entity lists from one or more detectors into the
// deduplicated mapping list used for substitution. Entities below
// minConfidence are dropped, survivors are grouped by exact original string
// (case- and whitespace-sensitive), and each group keeps the
// highest-confidence type/confidence while recording full provenance.
// Output order follows first occurrence in text; tags are allocated in that
// order so per-type counters run in first-seen order.
func mergeEntities(text string, entities []Entity, minConfidence float64, alloc *TagAllocator) []Mapping {
	groups := make(map[string]*entityGroup)
	var order []string

	for i, e := range entities {
		if e.Original == "" || e.Confidence < minConfidence {
			continue
		}

		g, ok := groups[e.Original]
		if !ok {
			g = &entityGroup{
				best:      e,
				sources:   map[Source]bool{e.Source: true},
				firstSeen: i,
				spanStart: -1,
			}
			groups[e.Original] = g
			order = append(order, e.Original)
		} else {
			g.sources[e.Source] = true
			if betterThan(e, g.best) {
				g.best = e
			}
		}

		if e.Span != nil && (g.spanStart < 0 || e.Span.Start < g.spanStart) {
			g.spanStart = e.Span.Start
		}
	}

	// Position each group at its first occurrence in the source text,
	// preferring detector-reported offsets over a string search.
	type positioned struct {
		original string
		position int
		seen     int
	}
	rows := make([]positioned, 0, len(order))
	for _, original := range order {
		g := groups[original]
		pos := g.spanStart
		if pos < 0 {
			pos = strings.Index(text, original)
		}
		if pos < 0 {
			// Not locatable; keep insertion order at the end.
			pos = len(text)
		}
		rows = append(rows, positioned{original: original, position: pos, seen: g.firstSeen})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].position != rows[j].position {
			return rows[i].position < rows[j].position
		}
		return rows[i].seen < rows[j].seen
	})

	mappings := make([]Mapping, 0, len(rows))
	for _, row := range rows {
		g := groups[row.original]

		sources := make([]Source, 0, len(g.sources))
		for _, s := range []Source{SourceRule, SourceAI, SourceNER} {
			if g.sources[s] {
				sources = append(sources, s)
			}
		}

		mappings = append(mappings, Mapping{
			Original:   row.original,
			Anonymized: alloc.Allocate(row.original, g.best.Type),
			Type:       g.best.Type,
			Confidence: g.best.Confidence,
			Sources:    sources,
		})
	}

	return mappings
}

// betterThan reports whether candidate should replace current as a group's
// winning entity
func betterThan(candidate, current Entity) bool {
	if candidate.Confidence != current.Confidence {
		return candidate.Confidence > current.Confidence
	}
	return sourcePriority[candidate.Source] > sourcePriority[current.Source]
}

// calculateStats summarizes a mapping table by type and source
func calculateStats(mappings []Mapping) Stats {
	stats := Stats{
		TotalEntities: len(mappings),
		ByType:        make(map[EntityType]int),
		BySource:      make(map[Source]int),
	}

	for _, m := range mappings {
		stats.ByType[m.Type]++
		for _, s := range m.Sources {
			stats.BySource[s]++
		}
	}

	return stats
}
