package anonymizer_test

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/casenetai/anonymizer/internal/anonymizer"
	"github.com/casenetai/anonymizer/internal/detect"
	"github.com/casenetai/anonymizer/internal/logger"
)

// TestRuleOnlyEndToEnd runs the full pipeline over a counseling-style
// sentence with the real rule detector.
func TestRuleOnlyEndToEnd(t *testing.T) {
	log := &logger.Logger{Logger: zap.NewNop()}
	engine, err := anonymizer.New(anonymizer.Config{}, log, detect.NewRuleDetector(log))
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	text := "김철수 님의 연락처는 010-1234-5678이고, 배우자 박영희씨도 같은 번호 010-1234-5678을 사용합니다."

	report, err := engine.Anonymize(context.Background(), text, anonymizer.Options{Method: anonymizer.MethodRule})
	if err != nil {
		t.Fatalf("Anonymize failed: %v", err)
	}
	if !report.Success {
		t.Fatal("Expected a successful report")
	}

	phones := 0
	for _, m := range report.Mappings {
		if m.Type == anonymizer.EntityPhone {
			phones++
			if m.Original != "010-1234-5678" || m.Anonymized != "[연락처_1]" {
				t.Errorf("Unexpected phone mapping: %+v", m)
			}
		}
	}
	if phones != 1 {
		t.Errorf("Both phone occurrences must collapse into one mapping, got %d", phones)
	}

	if strings.Contains(report.AnonymizedText, "010-1234-5678") {
		t.Errorf("Raw phone number survived: %q", report.AnonymizedText)
	}
	if strings.Count(report.AnonymizedText, "[연락처_1]") != 2 {
		t.Errorf("Phone tag should appear twice: %q", report.AnonymizedText)
	}

	if strings.Contains(report.AnonymizedText, "김철수") || strings.Contains(report.AnonymizedText, "박영희") {
		t.Errorf("Name survived: %q", report.AnonymizedText)
	}
	if !strings.Contains(report.AnonymizedText, "[이름_1]") || !strings.Contains(report.AnonymizedText, "[이름_2]") {
		t.Errorf("Expected two distinct name tags: %q", report.AnonymizedText)
	}

	if report.Stats.TotalEntities != 3 {
		t.Errorf("Expected 3 mappings (2 names, 1 phone), got %d", report.Stats.TotalEntities)
	}
	if report.Stats.BySource[anonymizer.SourceRule] != 3 {
		t.Errorf("All mappings should come from the rule detector: %v", report.Stats.BySource)
	}
}
