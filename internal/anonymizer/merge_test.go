package anonymizer

import "testing"

// TestMergeEntities tests deduplication, provenance and ordering
func TestMergeEntities(t *testing.T) {
	t.Run("ConfidenceTieBreak", func(t *testing.T) {
		text := "김철수 환자가 내원했다"
		entities := []Entity{
			{Original: "김철수", Type: EntityName, Confidence: 0.85, Source: SourceRule},
			{Original: "김철수", Type: EntityName, Confidence: 0.93, Source: SourceAI},
		}

		mappings := mergeEntities(text, entities, 0.7, NewTagAllocator())

		if len(mappings) != 1 {
			t.Fatalf("Expected 1 mapping, got %d", len(mappings))
		}
		m := mappings[0]
		if m.Confidence != 0.93 {
			t.Errorf("Expected winning confidence 0.93, got %f", m.Confidence)
		}
		if len(m.Sources) != 2 || m.Sources[0] != SourceRule || m.Sources[1] != SourceAI {
			t.Errorf("Expected sources [rule ai], got %v", m.Sources)
		}
	})

	t.Run("EqualConfidencePrefersAI", func(t *testing.T) {
		entities := []Entity{
			{Original: "김철수", Type: EntityName, Confidence: 0.9, Source: SourceRule},
			{Original: "김철수", Type: EntityFacility, Confidence: 0.9, Source: SourceAI},
		}

		mappings := mergeEntities("김철수", entities, 0.7, NewTagAllocator())
		if len(mappings) != 1 {
			t.Fatalf("Expected 1 mapping, got %d", len(mappings))
		}
		if mappings[0].Type != EntityFacility {
			t.Errorf("Equal-confidence tie should keep the AI entity's type, got %s", mappings[0].Type)
		}
	})

	t.Run("FilterBelowMinConfidence", func(t *testing.T) {
		entities := []Entity{
			{Original: "김철수", Type: EntityName, Confidence: 0.8, Source: SourceRule},
			{Original: "어쩌면이름", Type: EntityName, Confidence: 0.3, Source: SourceAI},
		}

		mappings := mergeEntities("김철수 어쩌면이름", entities, 0.7, NewTagAllocator())
		if len(mappings) != 1 {
			t.Fatalf("Expected low-confidence entity filtered, got %d mappings", len(mappings))
		}
		if mappings[0].Original != "김철수" {
			t.Errorf("Wrong survivor: %q", mappings[0].Original)
		}
	})

	t.Run("ExactStringGrouping", func(t *testing.T) {
		// Case and whitespace variants are distinct originals.
		entities := []Entity{
			{Original: "kim@example.com", Type: EntityEmail, Confidence: 0.95, Source: SourceRule},
			{Original: "Kim@example.com", Type: EntityEmail, Confidence: 0.95, Source: SourceAI},
		}

		mappings := mergeEntities("kim@example.com Kim@example.com", entities, 0.7, NewTagAllocator())
		if len(mappings) != 2 {
			t.Fatalf("Case variants merged, expected 2 mappings, got %d", len(mappings))
		}
	})

	t.Run("TextOrderFromSpans", func(t *testing.T) {
		text := "연락처 010-1234-5678, 담당자 김철수"
		entities := []Entity{
			// Reported out of text order.
			{Original: "김철수", Type: EntityName, Confidence: 0.8, Source: SourceAI},
			{Original: "010-1234-5678", Type: EntityPhone, Confidence: 0.95, Source: SourceRule,
				Span: &Span{Start: 11, End: 24}},
		}

		mappings := mergeEntities(text, entities, 0.7, NewTagAllocator())
		if len(mappings) != 2 {
			t.Fatalf("Expected 2 mappings, got %d", len(mappings))
		}
		if mappings[0].Original != "010-1234-5678" {
			t.Errorf("Expected phone first by text position, got %q", mappings[0].Original)
		}
		if mappings[0].Anonymized != "[연락처_1]" || mappings[1].Anonymized != "[이름_1]" {
			t.Errorf("Tags not allocated in output order: %q, %q",
				mappings[0].Anonymized, mappings[1].Anonymized)
		}
	})

	t.Run("UnlocatableOriginalSortsLast", func(t *testing.T) {
		text := "담당자 김철수"
		entities := []Entity{
			{Original: "본문에없는이름", Type: EntityName, Confidence: 0.9, Source: SourceNER},
			{Original: "김철수", Type: EntityName, Confidence: 0.8, Source: SourceRule},
		}

		mappings := mergeEntities(text, entities, 0.7, NewTagAllocator())
		if len(mappings) != 2 {
			t.Fatalf("Expected 2 mappings, got %d", len(mappings))
		}
		if mappings[1].Original != "본문에없는이름" {
			t.Errorf("Unlocatable original should sort last, got order %q, %q",
				mappings[0].Original, mappings[1].Original)
		}
	})
}

// TestCalculateStats tests mapping summarization
func TestCalculateStats(t *testing.T) {
	mappings := []Mapping{
		{Original: "김철수", Type: EntityName, Sources: []Source{SourceRule, SourceAI}},
		{Original: "박영희", Type: EntityName, Sources: []Source{SourceAI}},
		{Original: "010-1234-5678", Type: EntityPhone, Sources: []Source{SourceRule}},
	}

	stats := calculateStats(mappings)

	if stats.TotalEntities != 3 {
		t.Errorf("Expected 3 total entities, got %d", stats.TotalEntities)
	}
	if stats.ByType[EntityName] != 2 || stats.ByType[EntityPhone] != 1 {
		t.Errorf("Wrong per-type counts: %v", stats.ByType)
	}
	if stats.BySource[SourceRule] != 2 || stats.BySource[SourceAI] != 2 {
		t.Errorf("Wrong per-source counts: %v", stats.BySource)
	}
}
