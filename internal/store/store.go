package store

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/casenetai/anonymizer/internal/anonymizer"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// Store persists anonymization reports and their mapping tables in
// PostgreSQL
type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS anonymization_reports (
	id              BIGSERIAL PRIMARY KEY,
	method          TEXT NOT NULL,
	success         BOOLEAN NOT NULL,
	anonymized_text TEXT NOT NULL,
	entity_count    INTEGER NOT NULL,
	processing_ms   BIGINT NOT NULL,
	cost_krw        BIGINT NOT NULL DEFAULT 0,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS anonymization_mappings (
	id          BIGSERIAL PRIMARY KEY,
	report_id   BIGINT NOT NULL REFERENCES anonymization_reports(id) ON DELETE CASCADE,
	original    TEXT NOT NULL,
	anonymized  TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	confidence  DOUBLE PRECISION NOT NULL,
	sources     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_mappings_report ON anonymization_mappings(report_id);
`

// NewStore connects to the database and ensures the schema exists
func NewStore(config *Config, logger *zap.Logger) (*Store, error) {
	db, err := sqlx.Connect("postgres", config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)

	store := &Store{
		db:     db,
		logger: logger,
	}

	if err := store.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	logger.Info("Report store initialized",
		zap.String("database_url", maskDatabaseURL(config.DatabaseURL)),
		zap.Int("max_open_conns", config.MaxOpenConns),
	)

	return store, nil
}

// initialize checks the connection and creates tables when missing
func (s *Store) initialize() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("schema creation failed: %w", err)
	}

	return nil
}

// SaveReport persists a report and its mapping table in one transaction
func (s *Store) SaveReport(ctx context.Context, report *anonymizer.Report) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var costKRW int64
	if report.Cost != nil {
		costKRW = report.Cost.KRW
	}

	var reportID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO anonymization_reports (method, success, anonymized_text, entity_count, processing_ms, cost_krw)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		string(report.Method),
		report.Success,
		report.AnonymizedText,
		report.Stats.TotalEntities,
		report.ProcessingMS,
		costKRW,
	).Scan(&reportID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert report: %w", err)
	}

	for _, m := range report.Mappings {
		sources := make([]string, 0, len(m.Sources))
		for _, src := range m.Sources {
			sources = append(sources, string(src))
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO anonymization_mappings (report_id, original, anonymized, entity_type, confidence, sources)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			reportID,
			m.Original,
			m.Anonymized,
			string(m.Type),
			m.Confidence,
			strings.Join(sources, ","),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert mapping: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit report: %w", err)
	}

	s.logger.Debug("Report persisted",
		zap.Int64("report_id", reportID),
		zap.Int("mappings", len(report.Mappings)),
	)

	return reportID, nil
}

// GetMappings loads the mapping table for one report
func (s *Store) GetMappings(ctx context.Context, reportID int64) ([]MappingRecord, error) {
	var mappings []MappingRecord
	err := s.db.SelectContext(ctx, &mappings, `
		SELECT id, report_id, original, anonymized, entity_type, confidence, sources
		FROM anonymization_mappings
		WHERE report_id = $1
		ORDER BY id`,
		reportID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load mappings: %w", err)
	}
	return mappings, nil
}

// GetStats returns aggregate counts over the persisted history
func (s *Store) GetStats(ctx context.Context) (*ReportStats, error) {
	var stats ReportStats
	err := s.db.GetContext(ctx, &stats, `
		SELECT
			(SELECT count(*) FROM anonymization_reports)  AS total_reports,
			(SELECT count(*) FROM anonymization_mappings) AS total_mappings,
			COALESCE((SELECT avg(processing_ms) FROM anonymization_reports), 0) AS avg_process_ms`)
	if err != nil {
		return nil, fmt.Errorf("failed to load stats: %w", err)
	}
	return &stats, nil
}

// Close releases the database connection pool
func (s *Store) Close() error {
	return s.db.Close()
}

// maskDatabaseURL hides credentials when logging the connection target
func maskDatabaseURL(databaseURL string) string {
	parsed, err := url.Parse(databaseURL)
	if err != nil {
		return "invalid-url"
	}
	if parsed.User != nil {
		parsed.User = url.User("***")
	}
	return parsed.String()
}
