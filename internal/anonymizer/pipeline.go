package anonymizer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/casenetai/anonymizer/internal/logger"
	"go.uber.org/zap"
)

// Config contains anonymization engine configuration
type Config struct {
	DefaultMethod   Method
	MinConfidence   float64
	DetectorTimeout time.Duration
}

// Engine is the pipeline orchestrator. It owns no mutable per-document
// state: tag allocators are constructed fresh inside each Anonymize call,
// so one Engine may serve concurrent documents.
type Engine struct {
	detectors map[Source]Detector
	config    Config
	logger    *logger.Logger
}

// fixed detector fan-out order; keeps first-seen tie-breaking deterministic
var hybridOrder = []Source{SourceRule, SourceAI, SourceNER}

// New creates an engine over the given detectors. A rule detector is
// mandatory: it is the always-available floor every hybrid run degrades to.
func New(cfg Config, log *logger.Logger, detectors ...Detector) (*Engine, error) {
	if cfg.DefaultMethod == "" {
		cfg.DefaultMethod = MethodHybrid
	}
	if cfg.MinConfidence == 0 {
		cfg.MinConfidence = 0.7
	}
	if cfg.DetectorTimeout == 0 {
		cfg.DetectorTimeout = 45 * time.Second
	}

	engine := &Engine{
		detectors: make(map[Source]Detector),
		config:    cfg,
		logger:    log,
	}

	for _, d := range detectors {
		engine.detectors[d.Source()] = d
	}

	if _, ok := engine.detectors[SourceRule]; !ok {
		return nil, fmt.Errorf("%w: a rule detector is required", ErrConfiguration)
	}

	log.Info("Anonymization engine initialized",
		zap.Int("detectors", len(engine.detectors)),
		zap.String("default_method", string(cfg.DefaultMethod)),
		zap.Float64("min_confidence", cfg.MinConfidence),
	)

	return engine, nil
}

// Has reports whether a detector backend is configured
func (e *Engine) Has(source Source) bool {
	_, ok := e.detectors[source]
	return ok
}

// AvailableMethods lists the methods the engine can currently serve
func (e *Engine) AvailableMethods() []Method {
	methods := []Method{MethodRule}
	if e.Has(SourceAI) {
		methods = append(methods, MethodAI)
	}
	if e.Has(SourceNER) {
		methods = append(methods, MethodNER)
	}
	return append(methods, MethodHybrid, MethodCompare)
}

// Anonymize is the single entry point: it runs the selected strategy over
// text and returns the final report.
func (e *Engine) Anonymize(ctx context.Context, text string, opts Options) (*Report, error) {
	start := time.Now()

	method := opts.Method
	if method == "" {
		method = e.config.DefaultMethod
	}

	minConfidence := opts.MinConfidence
	if minConfidence == 0 {
		minConfidence = e.config.MinConfidence
	}
	if minConfidence < 0 || minConfidence > 1 {
		return nil, fmt.Errorf("%w: min confidence %f out of range [0,1]", ErrConfiguration, minConfidence)
	}

	if text == "" {
		return &Report{Success: true, Method: method, Mappings: []Mapping{}, Stats: calculateStats(nil)}, nil
	}

	switch method {
	case MethodRule, MethodAI, MethodNER:
		return e.runSingle(ctx, text, method, minConfidence, start)
	case MethodHybrid:
		return e.runHybrid(ctx, text, minConfidence, opts.UseNER, start)
	case MethodCompare:
		return e.runCompare(ctx, text, minConfidence, start)
	default:
		return nil, fmt.Errorf("%w: unsupported method %q", ErrConfiguration, method)
	}
}

// runDetector executes one detector under the engine's per-call time box
func (e *Engine) runDetector(ctx context.Context, d Detector, text string, minConfidence float64) (Detection, time.Duration, error) {
	dctx, cancel := context.WithTimeout(ctx, e.config.DetectorTimeout)
	defer cancel()

	start := time.Now()
	detection, err := d.Detect(dctx, text, DetectOptions{MinConfidence: minConfidence})
	return detection, time.Since(start), err
}

// runSingle runs exactly one detector. Detector failure is fatal here,
// unlike in hybrid mode.
func (e *Engine) runSingle(ctx context.Context, text string, method Method, minConfidence float64, start time.Time) (*Report, error) {
	source := Source(method)
	detector, ok := e.detectors[source]
	if !ok {
		return nil, fmt.Errorf("%w: no %s detector configured", ErrDetectorUnavailable, source)
	}

	detection, elapsed, err := e.runDetector(ctx, detector, text, minConfidence)
	if err != nil {
		return nil, fmt.Errorf("%s detection failed: %w", source, err)
	}

	alloc := NewTagAllocator()
	mappings := mergeEntities(text, detection.Entities, minConfidence, alloc)

	e.logger.Info("Single-method anonymization complete",
		zap.String("method", string(method)),
		zap.Int("mappings", len(mappings)),
		zap.Duration("duration", elapsed),
	)

	return &Report{
		Success:        true,
		Method:         method,
		AnonymizedText: applyMappings(text, mappings),
		Mappings:       mappings,
		Stats:          calculateStats(mappings),
		ProcessingMS:   time.Since(start).Milliseconds(),
		Cost:           EstimateCost(detection.Usage),
		Breakdown: []MethodResult{{
			Source:      source,
			Succeeded:   true,
			Fallback:    detection.Fallback,
			EntityCount: len(detection.Entities),
			Dropped:     detection.Dropped,
			Duration:    elapsed,
		}},
	}, nil
}

// detectorRun carries one detector's outcome across the hybrid fan-out
type detectorRun struct {
	source    Source
	detection Detection
	duration  time.Duration
	err       error
}

// runHybrid fans out over every configured detector concurrently and
// merges whatever succeeded. Backend failures degrade the run instead of
// failing it; the rule detector's results always survive.
func (e *Engine) runHybrid(ctx context.Context, text string, minConfidence float64, useNER bool, start time.Time) (*Report, error) {
	sources := []Source{SourceRule}
	if e.Has(SourceAI) {
		sources = append(sources, SourceAI)
	}
	if e.Has(SourceNER) && useNER {
		sources = append(sources, SourceNER)
	}

	runs := e.fanOut(ctx, text, minConfidence, sources)

	var entities []Entity
	var breakdown []MethodResult
	var usage *TokenUsage
	var failures []string
	secondaryAttempted := false
	secondarySucceeded := false

	for _, source := range hybridOrder {
		run, ok := runs[source]
		if !ok {
			continue
		}

		result := MethodResult{
			Source:   source,
			Duration: run.duration,
		}

		if run.err != nil {
			// Non-fatal: the detector contributes zero entities, but the
			// error stays visible in the breakdown for diagnostics.
			result.Error = run.err.Error()
			failures = append(failures, fmt.Sprintf("%s: %v", source, run.err))
			e.logger.Warn("Detector failed in hybrid mode, continuing",
				zap.String("source", string(source)),
				zap.Error(run.err),
			)
		} else {
			result.Succeeded = true
			result.Fallback = run.detection.Fallback
			result.EntityCount = len(run.detection.Entities)
			result.Dropped = run.detection.Dropped
			entities = append(entities, run.detection.Entities...)
			if source == SourceAI {
				usage = run.detection.Usage
			}
		}

		if source != SourceRule {
			secondaryAttempted = true
			if run.err == nil {
				secondarySucceeded = true
			}
		}

		breakdown = append(breakdown, result)
	}

	alloc := NewTagAllocator()
	mappings := mergeEntities(text, entities, minConfidence, alloc)

	report := &Report{
		Success:        true,
		Method:         MethodHybrid,
		AnonymizedText: applyMappings(text, mappings),
		Mappings:       mappings,
		Stats:          calculateStats(mappings),
		ProcessingMS:   time.Since(start).Milliseconds(),
		Cost:           EstimateCost(usage),
		Breakdown:      breakdown,
	}

	if secondaryAttempted && !secondarySucceeded {
		report.FallbackReason = strings.Join(failures, "; ")
	}

	e.logger.Info("Hybrid anonymization complete",
		zap.Int("detectors", len(sources)),
		zap.Int("mappings", len(mappings)),
		zap.Bool("degraded", report.FallbackReason != ""),
	)

	return report, nil
}

// fanOut runs the given detectors concurrently and collects their outcomes
func (e *Engine) fanOut(ctx context.Context, text string, minConfidence float64, sources []Source) map[Source]detectorRun {
	runs := make(map[Source]detectorRun, len(sources))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, source := range sources {
		detector := e.detectors[source]
		wg.Add(1)
		go func(source Source, detector Detector) {
			defer wg.Done()
			detection, elapsed, err := e.runDetector(ctx, detector, text, minConfidence)
			mu.Lock()
			runs[source] = detectorRun{source: source, detection: detection, duration: elapsed, err: err}
			mu.Unlock()
		}(source, detector)
	}

	wg.Wait()
	return runs
}

// runCompare runs every available detector independently and returns each
// full standalone report side by side, without merging.
func (e *Engine) runCompare(ctx context.Context, text string, minConfidence float64, start time.Time) (*Report, error) {
	methods := []Method{MethodRule}
	if e.Has(SourceAI) {
		methods = append(methods, MethodAI)
	}
	if e.Has(SourceNER) {
		methods = append(methods, MethodNER)
	}

	results := make(map[Method]*Report, len(methods))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, method := range methods {
		wg.Add(1)
		go func(method Method) {
			defer wg.Done()
			report, err := e.runSingle(ctx, text, method, minConfidence, time.Now())
			if err != nil {
				report = &Report{Success: false, Method: method, Error: err.Error()}
			}
			mu.Lock()
			results[method] = report
			mu.Unlock()
		}(method)
	}

	wg.Wait()

	comparison := Comparison{
		EntityCounts:     make(map[Method]int),
		SpeedMS:          make(map[Method]int64),
		CostKRW:          make(map[Method]int64),
		AccuracyEstimate: make(map[Method]float64),
	}

	for method, report := range results {
		if !report.Success {
			continue
		}
		comparison.EntityCounts[method] = report.Stats.TotalEntities
		comparison.SpeedMS[method] = report.ProcessingMS
		if report.Cost != nil {
			comparison.CostKRW[method] = report.Cost.KRW
		}
		if estimate, ok := accuracyEstimates[method]; ok {
			comparison.AccuracyEstimate[method] = estimate
		}
	}

	return &Report{
		Success:      true,
		Method:       MethodCompare,
		Mappings:     []Mapping{},
		ProcessingMS: time.Since(start).Milliseconds(),
		Compare: &CompareResult{
			Results:         results,
			Comparison:      comparison,
			Recommendations: defaultRecommendations(),
		},
	}, nil
}

// accuracyEstimates are per-method heuristics, not measured values
var accuracyEstimates = map[Method]float64{
	MethodRule: 0.85,
	MethodAI:   0.95,
	MethodNER:  0.90,
}

// defaultRecommendations is an informational lookup keyed by priority. It
// is intentionally static rather than derived from a single run's numbers.
func defaultRecommendations() []Recommendation {
	return []Recommendation{
		{Priority: "accuracy", Method: MethodAI, Reason: "문맥 이해 및 정확도 최고 (~95%)"},
		{Priority: "speed", Method: MethodRule, Reason: "가장 빠른 처리 속도 (~50ms)"},
		{Priority: "cost", Method: MethodRule, Reason: "API 비용 0원"},
		{Priority: "balanced", Method: MethodHybrid, Reason: "정확도, 속도, 비용의 최적 균형"},
	}
}
