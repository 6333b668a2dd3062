package batch

import (
	"strings"
	"time"

	"github.com/casenetai/anonymizer/internal/anonymizer"
)

// Document is a single input record. Only Text is required; ID is carried
// through to the output when present.
type Document struct {
	ID   string `csv:"id" parquet:"id,optional" json:"id,omitempty"`
	Text string `csv:"text" parquet:"text" json:"text"`
}

// OutputRecord is one anonymized document in the output dataset
type OutputRecord struct {
	ID             string `csv:"id" parquet:"id,optional" json:"id,omitempty"`
	AnonymizedText string `csv:"anonymized_text" parquet:"anonymized_text" json:"anonymized_text"`
	Method         string `csv:"method" parquet:"method" json:"method"`
	EntityCount    int32  `csv:"entity_count" parquet:"entity_count" json:"entity_count"`
	Success        bool   `csv:"success" parquet:"success" json:"success"`
	Error          string `csv:"error" parquet:"error,optional" json:"error,omitempty"`
}

// Result aggregates a full pipeline run
type Result struct {
	TotalDocuments  int64                           `json:"total_documents"`
	ProcessedOK     int64                           `json:"processed_ok"`
	ProcessedFailed int64                           `json:"processed_failed"`
	Skipped         int64                           `json:"skipped"`
	TotalEntities   int64                           `json:"total_entities"`
	EntitiesByType  map[anonymizer.EntityType]int64 `json:"entities_by_type,omitempty"`
	TotalCostKRW    int64                           `json:"total_cost_krw"`
	Duration        time.Duration                   `json:"duration"`
	Errors          []string                        `json:"errors,omitempty"`
}

// Config contains batch pipeline configuration
type Config struct {
	Method        anonymizer.Method `yaml:"method" mapstructure:"method"`
	MinConfidence float64           `yaml:"min_confidence" mapstructure:"min_confidence"`
	BatchSize     int               `yaml:"batch_size" mapstructure:"batch_size"`
	Workers       int               `yaml:"workers" mapstructure:"workers"`
	DryRun        bool              `yaml:"dry_run" mapstructure:"dry_run"`
	MaxTextLength int               `yaml:"max_text_length" mapstructure:"max_text_length"`
}

// FileFormat represents supported file formats
type FileFormat string

const (
	FormatCSV     FileFormat = "csv"
	FormatParquet FileFormat = "parquet"
	FormatJSON    FileFormat = "json"
)

// DetectFileFormat detects file format from extension
func DetectFileFormat(filename string) FileFormat {
	switch {
	case strings.HasSuffix(filename, ".parquet"):
		return FormatParquet
	case strings.HasSuffix(filename, ".json"), strings.HasSuffix(filename, ".jsonl"):
		return FormatJSON
	default:
		return FormatCSV
	}
}
