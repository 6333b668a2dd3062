package anonymizer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/casenetai/anonymizer/internal/logger"
)

type fakeDetector struct {
	source    Source
	detection Detection
	err       error
}

func (f *fakeDetector) Source() Source { return f.source }

func (f *fakeDetector) Detect(ctx context.Context, text string, opts DetectOptions) (Detection, error) {
	if f.err != nil {
		return Detection{}, f.err
	}
	return f.detection, nil
}

func testLogger() *logger.Logger {
	return &logger.Logger{Logger: zap.NewNop()}
}

func newTestEngine(t *testing.T, detectors ...Detector) *Engine {
	t.Helper()
	engine, err := New(Config{}, testLogger(), detectors...)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	return engine
}

// TestNew tests engine construction
func TestNew(t *testing.T) {
	t.Run("RequiresRuleDetector", func(t *testing.T) {
		_, err := New(Config{}, testLogger(), &fakeDetector{source: SourceAI})
		if !errors.Is(err, ErrConfiguration) {
			t.Errorf("Expected ErrConfiguration without a rule detector, got %v", err)
		}
	})

	t.Run("AvailableMethods", func(t *testing.T) {
		engine := newTestEngine(t,
			&fakeDetector{source: SourceRule},
			&fakeDetector{source: SourceAI},
		)

		methods := engine.AvailableMethods()
		want := []Method{MethodRule, MethodAI, MethodHybrid, MethodCompare}
		if len(methods) != len(want) {
			t.Fatalf("Expected methods %v, got %v", want, methods)
		}
		for i := range want {
			if methods[i] != want[i] {
				t.Fatalf("Expected methods %v, got %v", want, methods)
			}
		}
		if engine.Has(SourceNER) {
			t.Error("Engine reports an NER detector it does not have")
		}
	})
}

// TestAnonymize tests the orchestrator entry point
func TestAnonymize(t *testing.T) {
	ctx := context.Background()

	ruleDetection := Detection{Entities: []Entity{
		{Original: "김철수", Type: EntityName, Confidence: 0.8, Source: SourceRule},
		{Original: "010-1234-5678", Type: EntityPhone, Confidence: 0.95, Source: SourceRule},
	}}

	t.Run("EmptyText", func(t *testing.T) {
		engine := newTestEngine(t, &fakeDetector{source: SourceRule})

		report, err := engine.Anonymize(ctx, "", Options{})
		if err != nil {
			t.Fatalf("Empty text should not error: %v", err)
		}
		if !report.Success || len(report.Mappings) != 0 {
			t.Errorf("Expected empty success report, got %+v", report)
		}
	})

	t.Run("InvalidMinConfidence", func(t *testing.T) {
		engine := newTestEngine(t, &fakeDetector{source: SourceRule})

		_, err := engine.Anonymize(ctx, "본문", Options{MinConfidence: 1.5})
		if !errors.Is(err, ErrConfiguration) {
			t.Errorf("Expected ErrConfiguration, got %v", err)
		}
	})

	t.Run("UnsupportedMethod", func(t *testing.T) {
		engine := newTestEngine(t, &fakeDetector{source: SourceRule})

		_, err := engine.Anonymize(ctx, "본문", Options{Method: Method("quantum")})
		if !errors.Is(err, ErrConfiguration) {
			t.Errorf("Expected ErrConfiguration, got %v", err)
		}
	})

	t.Run("SingleMethodMissingDetector", func(t *testing.T) {
		engine := newTestEngine(t, &fakeDetector{source: SourceRule})

		_, err := engine.Anonymize(ctx, "본문", Options{Method: MethodAI})
		if !errors.Is(err, ErrDetectorUnavailable) {
			t.Errorf("Expected ErrDetectorUnavailable, got %v", err)
		}
	})

	t.Run("SingleMethodDetectorFailureIsFatal", func(t *testing.T) {
		engine := newTestEngine(t,
			&fakeDetector{source: SourceRule},
			&fakeDetector{source: SourceAI, err: ErrDetectorTransport},
		)

		_, err := engine.Anonymize(ctx, "본문", Options{Method: MethodAI})
		if !errors.Is(err, ErrDetectorTransport) {
			t.Errorf("Expected transport error surfaced, got %v", err)
		}
	})

	t.Run("RuleMethod", func(t *testing.T) {
		engine := newTestEngine(t, &fakeDetector{source: SourceRule, detection: ruleDetection})

		text := "담당자 김철수, 연락처 010-1234-5678 혹은 010-1234-5678"
		report, err := engine.Anonymize(ctx, text, Options{Method: MethodRule})
		if err != nil {
			t.Fatalf("Rule anonymization failed: %v", err)
		}

		if !report.Success || report.Method != MethodRule {
			t.Errorf("Unexpected report header: %+v", report)
		}
		if len(report.Mappings) != 2 {
			t.Fatalf("Expected 2 mappings, got %d", len(report.Mappings))
		}
		if strings.Contains(report.AnonymizedText, "김철수") ||
			strings.Contains(report.AnonymizedText, "010-1234-5678") {
			t.Errorf("PII survived anonymization: %q", report.AnonymizedText)
		}
		if strings.Count(report.AnonymizedText, "[연락처_1]") != 2 {
			t.Errorf("Repeated phone should reuse one tag: %q", report.AnonymizedText)
		}
	})

	t.Run("HybridMergesDetectors", func(t *testing.T) {
		engine := newTestEngine(t,
			&fakeDetector{source: SourceRule, detection: ruleDetection},
			&fakeDetector{source: SourceAI, detection: Detection{
				Entities: []Entity{
					{Original: "김철수", Type: EntityName, Confidence: 0.93, Source: SourceAI},
					{Original: "행복요양원", Type: EntityFacility, Confidence: 0.9, Source: SourceAI},
				},
				Usage: &TokenUsage{PromptTokens: 500, CompletionTokens: 100, TotalTokens: 600},
			}},
		)

		text := "행복요양원 담당자 김철수, 연락처 010-1234-5678"
		report, err := engine.Anonymize(ctx, text, Options{Method: MethodHybrid})
		if err != nil {
			t.Fatalf("Hybrid anonymization failed: %v", err)
		}

		if len(report.Mappings) != 3 {
			t.Fatalf("Expected 3 merged mappings, got %d", len(report.Mappings))
		}
		var name *Mapping
		for i := range report.Mappings {
			if report.Mappings[i].Original == "김철수" {
				name = &report.Mappings[i]
			}
		}
		if name == nil {
			t.Fatal("Name mapping missing")
		}
		if name.Confidence != 0.93 || len(name.Sources) != 2 {
			t.Errorf("Duplicate name not merged with max confidence: %+v", name)
		}
		if report.Cost == nil || report.Cost.TotalTokens != 600 {
			t.Errorf("AI usage should produce a cost estimate: %+v", report.Cost)
		}
		if report.FallbackReason != "" {
			t.Errorf("Unexpected degradation: %q", report.FallbackReason)
		}
		if len(report.Breakdown) != 2 {
			t.Errorf("Expected per-detector breakdown, got %+v", report.Breakdown)
		}
	})

	t.Run("HybridDegradesOnSecondaryFailure", func(t *testing.T) {
		engine := newTestEngine(t,
			&fakeDetector{source: SourceRule, detection: ruleDetection},
			&fakeDetector{source: SourceAI, err: errors.New("api quota exceeded")},
		)

		report, err := engine.Anonymize(ctx, "담당자 김철수", Options{Method: MethodHybrid})
		if err != nil {
			t.Fatalf("Hybrid run should survive AI failure: %v", err)
		}

		if !report.Success {
			t.Error("Degraded run should still succeed")
		}
		if report.FallbackReason == "" || !strings.Contains(report.FallbackReason, "quota") {
			t.Errorf("Expected fallback reason naming the failure, got %q", report.FallbackReason)
		}
		if len(report.Mappings) == 0 {
			t.Error("Rule results should survive the degradation")
		}
		var aiResult *MethodResult
		for i := range report.Breakdown {
			if report.Breakdown[i].Source == SourceAI {
				aiResult = &report.Breakdown[i]
			}
		}
		if aiResult == nil || aiResult.Succeeded || aiResult.Error == "" {
			t.Errorf("AI failure should be visible in the breakdown: %+v", aiResult)
		}
	})

	t.Run("HybridSkipsNERWhenDisabled", func(t *testing.T) {
		engine := newTestEngine(t,
			&fakeDetector{source: SourceRule, detection: ruleDetection},
			&fakeDetector{source: SourceNER, detection: Detection{Entities: []Entity{
				{Original: "박영희", Type: EntityName, Confidence: 0.9, Source: SourceNER},
			}}},
		)

		report, err := engine.Anonymize(ctx, "김철수 박영희", Options{Method: MethodHybrid, UseNER: false})
		if err != nil {
			t.Fatalf("Hybrid anonymization failed: %v", err)
		}
		for _, m := range report.Mappings {
			if m.Original == "박영희" {
				t.Error("NER entity present although NER was disabled")
			}
		}
	})

	t.Run("CompareRunsAllMethods", func(t *testing.T) {
		engine := newTestEngine(t,
			&fakeDetector{source: SourceRule, detection: ruleDetection},
			&fakeDetector{source: SourceAI, err: errors.New("down")},
		)

		report, err := engine.Anonymize(ctx, "담당자 김철수", Options{Method: MethodCompare})
		if err != nil {
			t.Fatalf("Compare run failed: %v", err)
		}
		if report.Compare == nil {
			t.Fatal("Compare payload missing")
		}

		ruleResult := report.Compare.Results[MethodRule]
		if ruleResult == nil || !ruleResult.Success {
			t.Errorf("Rule result missing or failed: %+v", ruleResult)
		}
		aiResult := report.Compare.Results[MethodAI]
		if aiResult == nil || aiResult.Success || aiResult.Error == "" {
			t.Errorf("AI failure should appear as an unsuccessful result: %+v", aiResult)
		}
		if _, ok := report.Compare.Comparison.EntityCounts[MethodAI]; ok {
			t.Error("Failed method should not contribute comparison numbers")
		}
		if len(report.Compare.Recommendations) == 0 {
			t.Error("Recommendations missing")
		}
	})
}
