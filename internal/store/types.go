package store

import "time"

// Config contains report persistence configuration
type Config struct {
	DatabaseURL     string        `yaml:"database_url" mapstructure:"database_url"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
}

// ReportRecord is one persisted anonymization run
type ReportRecord struct {
	ID             int64     `db:"id" json:"id"`
	Method         string    `db:"method" json:"method"`
	Success        bool      `db:"success" json:"success"`
	AnonymizedText string    `db:"anonymized_text" json:"anonymized_text"`
	EntityCount    int       `db:"entity_count" json:"entity_count"`
	ProcessingMS   int64     `db:"processing_ms" json:"processing_ms"`
	CostKRW        int64     `db:"cost_krw" json:"cost_krw"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// MappingRecord is one persisted original→tag translation. Retained so a
// report can later be de-anonymized by authorized staff.
type MappingRecord struct {
	ID         int64   `db:"id" json:"id"`
	ReportID   int64   `db:"report_id" json:"report_id"`
	Original   string  `db:"original" json:"original"`
	Anonymized string  `db:"anonymized" json:"anonymized"`
	EntityType string  `db:"entity_type" json:"entity_type"`
	Confidence float64 `db:"confidence" json:"confidence"`
	Sources    string  `db:"sources" json:"sources"`
}

// ReportStats summarizes the persisted history
type ReportStats struct {
	TotalReports  int64   `db:"total_reports" json:"total_reports"`
	TotalMappings int64   `db:"total_mappings" json:"total_mappings"`
	AvgProcessMS  float64 `db:"avg_process_ms" json:"avg_process_ms"`
}
