package anonymizer

import (
	"context"
	"time"
)

// EntityType classifies a piece of personally identifiable information
type EntityType string

const (
	EntityName       EntityType = "name"
	EntityPhone      EntityType = "phone"
	EntityEmail      EntityType = "email"
	EntityAddress    EntityType = "address"
	EntityIdentifier EntityType = "identifier"
	EntityFacility   EntityType = "facility"
	EntityDate       EntityType = "date"
)

// Source identifies which detector produced an entity
type Source string

const (
	SourceRule Source = "rule"
	SourceAI   Source = "ai"
	SourceNER  Source = "ner"
)

// Method selects the detection strategy for a document
type Method string

const (
	MethodRule    Method = "rule"
	MethodAI      Method = "ai"
	MethodNER     Method = "ner"
	MethodHybrid  Method = "hybrid"
	MethodCompare Method = "compare"
)

// Span holds byte offsets into the scanned text. Detectors that only match
// at string level leave it nil.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Entity is a single detected piece of PII from one detector, pre-merge.
// Original must be a non-empty exact substring of the scanned text.
type Entity struct {
	Original   string     `json:"original"`
	Type       EntityType `json:"type"`
	Confidence float64    `json:"confidence"`
	Source     Source     `json:"source"`
	Span       *Span      `json:"span,omitempty"`
}

// TokenUsage reports token consumption of an AI-backed detector call
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Detection is the full result of one detector run
type Detection struct {
	Entities []Entity
	Usage    *TokenUsage // nil for offline detectors
	Dropped  int         // entities discarded because Original was not a substring of the text
	Fallback string      // non-empty when the detector degraded to its fallback path
}

// DetectOptions carries per-call detector tuning
type DetectOptions struct {
	MinConfidence float64
}

// Detector is the common contract implemented by the rule, AI and NER
// backends. Detect must not mutate text.
type Detector interface {
	Source() Source
	Detect(ctx context.Context, text string, opts DetectOptions) (Detection, error)
}

// Mapping is the deduplicated, merged record translating one original
// string to one anonymization tag
type Mapping struct {
	Original   string     `json:"original"`
	Anonymized string     `json:"anonymized"`
	Type       EntityType `json:"type"`
	Confidence float64    `json:"confidence"`
	Sources    []Source   `json:"sources"`
}

// Stats summarizes a mapping table
type Stats struct {
	TotalEntities int                `json:"total_entities"`
	ByType        map[EntityType]int `json:"by_type"`
	BySource      map[Source]int     `json:"by_source"`
}

// CostEstimate is a token-based API cost estimate
type CostEstimate struct {
	USD          float64 `json:"usd"`
	KRW          int64   `json:"krw"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalTokens  int     `json:"total_tokens"`
}

// MethodResult is the per-detector breakdown entry of a pipeline run
type MethodResult struct {
	Source      Source        `json:"source"`
	Succeeded   bool          `json:"succeeded"`
	Error       string        `json:"error,omitempty"`
	Fallback    string        `json:"fallback,omitempty"`
	EntityCount int           `json:"entity_count"`
	Dropped     int           `json:"dropped,omitempty"`
	Duration    time.Duration `json:"duration_ms"`
}

// Report is the final output of one Anonymize call
type Report struct {
	Success        bool           `json:"success"`
	Method         Method         `json:"method"`
	AnonymizedText string         `json:"anonymized_text"`
	Mappings       []Mapping      `json:"mappings"`
	Stats          Stats          `json:"stats"`
	ProcessingMS   int64          `json:"processing_time_ms"`
	Cost           *CostEstimate  `json:"cost_estimate,omitempty"`
	Breakdown      []MethodResult `json:"breakdown,omitempty"`
	FallbackReason string         `json:"fallback_reason,omitempty"`
	Error          string         `json:"error,omitempty"`
	Compare        *CompareResult `json:"compare,omitempty"`
}

// CompareResult holds the side-by-side evaluation produced by compare mode
type CompareResult struct {
	Results         map[Method]*Report `json:"results"`
	Comparison      Comparison         `json:"comparison"`
	Recommendations []Recommendation   `json:"recommendations"`
}

// Comparison aggregates per-method measurements from a compare run
type Comparison struct {
	EntityCounts     map[Method]int     `json:"entity_counts"`
	SpeedMS          map[Method]int64   `json:"speed_ms"`
	CostKRW          map[Method]int64   `json:"cost_krw"`
	AccuracyEstimate map[Method]float64 `json:"accuracy_estimate"`
}

// Recommendation is an informational default, not computed from the live
// comparison numbers
type Recommendation struct {
	Priority string `json:"priority"` // accuracy, speed, cost, balanced
	Method   Method `json:"method"`
	Reason   string `json:"reason"`
}

// Options tunes one Anonymize call
type Options struct {
	Method        Method
	MinConfidence float64 // 0 means the engine default
	UseNER        bool    // run the secondary NER detector in hybrid mode
}
