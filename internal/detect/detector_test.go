package detect

import (
	"errors"
	"testing"

	"github.com/casenetai/anonymizer/internal/anonymizer"
)

// TestParseEntityJSON tests normalization of both wire schemas
func TestParseEntityJSON(t *testing.T) {
	t.Run("EntitiesSchema", func(t *testing.T) {
		content := `{"entities": [
			{"text": "김철수", "type": "PERSON", "start": 0, "end": 9, "confidence": 0.95},
			{"text": "010-1234-5678", "type": "PHONE"},
			{"text": "뭔가", "type": "UNKNOWN_TYPE", "confidence": 0.9}
		]}`

		entities, err := parseEntityJSON([]byte(content), anonymizer.SourceAI, 0.8)
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		if len(entities) != 2 {
			t.Fatalf("Expected 2 entities (unknown type skipped), got %d", len(entities))
		}

		if entities[0].Original != "김철수" || entities[0].Confidence != 0.95 {
			t.Errorf("Unexpected first entity: %+v", entities[0])
		}
		if entities[0].Span == nil || entities[0].Span.Start != 0 || entities[0].Span.End != 9 {
			t.Errorf("Span not carried through: %+v", entities[0].Span)
		}
		if entities[1].Confidence != 0.8 {
			t.Errorf("Missing confidence should default to 0.8, got %f", entities[1].Confidence)
		}
		if entities[1].Span != nil {
			t.Errorf("Entity without offsets should have nil span: %+v", entities[1].Span)
		}
	})

	t.Run("FlatCategorySchema", func(t *testing.T) {
		content := `{"names": ["김철수"], "phones": ["010-1234-5678"], "residentIds": ["901234-1234567"]}`

		entities, err := parseEntityJSON([]byte(content), anonymizer.SourceNER, 0.75)
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		if len(entities) != 3 {
			t.Fatalf("Expected 3 entities, got %d", len(entities))
		}
		for _, e := range entities {
			if e.Confidence != 0.75 || e.Source != anonymizer.SourceNER {
				t.Errorf("Wrong defaults applied: %+v", e)
			}
		}
		if entities[2].Type != anonymizer.EntityIdentifier {
			t.Errorf("residentIds mapped to wrong type: %s", entities[2].Type)
		}
	})

	t.Run("MalformedJSON", func(t *testing.T) {
		_, err := parseEntityJSON([]byte("죄송하지만 추출할 수 없습니다"), anonymizer.SourceAI, 0.8)
		if !errors.Is(err, anonymizer.ErrDetectorParse) {
			t.Errorf("Expected ErrDetectorParse, got %v", err)
		}
	})
}

// TestValidateEntities tests substring validation of backend output
func TestValidateEntities(t *testing.T) {
	text := "김철수 씨 연락처 010-1234-5678"

	t.Run("ParaphrasedOriginalDropped", func(t *testing.T) {
		entities := []anonymizer.Entity{
			{Original: "김철수", Type: anonymizer.EntityName, Confidence: 0.9},
			{Original: "김 철수", Type: anonymizer.EntityName, Confidence: 0.9},
			{Original: "", Type: anonymizer.EntityName, Confidence: 0.9},
		}

		valid, dropped := validateEntities(text, entities)
		if len(valid) != 1 || dropped != 2 {
			t.Errorf("Expected 1 valid / 2 dropped, got %d / %d", len(valid), dropped)
		}
	})

	t.Run("BadSpanClearedEntityKept", func(t *testing.T) {
		entities := []anonymizer.Entity{
			{Original: "김철수", Confidence: 0.9, Span: &anonymizer.Span{Start: 3, End: 12}},
		}

		valid, dropped := validateEntities(text, entities)
		if dropped != 0 || len(valid) != 1 {
			t.Fatalf("Entity with bad span should survive: %d valid, %d dropped", len(valid), dropped)
		}
		if valid[0].Span != nil {
			t.Errorf("Disagreeing span should be cleared: %+v", valid[0].Span)
		}
	})

	t.Run("CorrectSpanKept", func(t *testing.T) {
		entities := []anonymizer.Entity{
			{Original: "김철수", Confidence: 0.9, Span: &anonymizer.Span{Start: 0, End: 9}},
		}

		valid, _ := validateEntities(text, entities)
		if valid[0].Span == nil {
			t.Error("Agreeing span should be kept")
		}
	})
}

// TestFilterByConfidence tests the threshold filter
func TestFilterByConfidence(t *testing.T) {
	entities := []anonymizer.Entity{
		{Original: "a", Confidence: 0.6},
		{Original: "b", Confidence: 0.7},
		{Original: "c", Confidence: 0.95},
	}

	filtered := filterByConfidence(entities, 0.7)
	if len(filtered) != 2 {
		t.Fatalf("Expected threshold to be inclusive, got %d survivors", len(filtered))
	}
	if filtered[0].Original != "b" || filtered[1].Original != "c" {
		t.Errorf("Wrong survivors: %+v", filtered)
	}
}
