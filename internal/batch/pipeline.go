package batch

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/parquet-go"
	"go.uber.org/zap"

	"github.com/casenetai/anonymizer/internal/anonymizer"
)

// Pipeline anonymizes whole datasets. Documents are read in batches,
// fanned out to a worker pool, and the anonymized records written back
// out in the requested format.
type Pipeline struct {
	engine *anonymizer.Engine
	config *Config
	logger *zap.Logger

	mu     sync.Mutex
	result *Result
}

// NewPipeline creates a new batch pipeline
func NewPipeline(engine *anonymizer.Engine, config *Config, logger *zap.Logger) *Pipeline {
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.Workers <= 0 {
		config.Workers = 4
	}
	if config.MaxTextLength <= 0 {
		config.MaxTextLength = 50000
	}
	return &Pipeline{
		engine: engine,
		config: config,
		logger: logger,
	}
}

// ProcessFile anonymizes every document in inputPath and writes the results
// to outputPath. Output format follows the output file extension.
func (p *Pipeline) ProcessFile(ctx context.Context, inputPath, outputPath string) (*Result, error) {
	start := time.Now()

	p.mu.Lock()
	p.result = &Result{EntitiesByType: make(map[anonymizer.EntityType]int64)}
	result := p.result
	p.mu.Unlock()

	inputFormat := DetectFileFormat(inputPath)
	p.logger.Info("Starting batch pipeline",
		zap.String("input", inputPath),
		zap.String("format", string(inputFormat)),
		zap.String("method", string(p.config.Method)),
		zap.Int("batch_size", p.config.BatchSize),
		zap.Int("workers", p.config.Workers),
		zap.Bool("dry_run", p.config.DryRun))

	readBatch, closeInput, err := p.openReader(inputPath, inputFormat)
	if err != nil {
		return result, err
	}
	defer closeInput()

	var writeRecords func([]OutputRecord) error
	var closeOutput func() error
	if !p.config.DryRun {
		writeRecords, closeOutput, err = p.openWriter(outputPath)
		if err != nil {
			return result, err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		batch, err := readBatch()
		if err != nil {
			return result, fmt.Errorf("failed to read batch: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		records := p.processBatch(ctx, batch, result)

		if writeRecords != nil {
			if err := writeRecords(records); err != nil {
				return result, fmt.Errorf("failed to write batch: %w", err)
			}
		}

		p.logger.Info("Batch processed",
			zap.Int64("total", result.TotalDocuments),
			zap.Int64("ok", result.ProcessedOK),
			zap.Int64("failed", result.ProcessedFailed))
	}

	if closeOutput != nil {
		if err := closeOutput(); err != nil {
			return result, fmt.Errorf("failed to finalize output: %w", err)
		}
	}

	result.Duration = time.Since(start)

	p.logger.Info("Batch pipeline completed",
		zap.Int64("total_documents", result.TotalDocuments),
		zap.Int64("processed_ok", result.ProcessedOK),
		zap.Int64("processed_failed", result.ProcessedFailed),
		zap.Int64("skipped", result.Skipped),
		zap.Int64("total_entities", result.TotalEntities),
		zap.Int64("total_cost_krw", result.TotalCostKRW),
		zap.Duration("duration", result.Duration))

	return result, nil
}

// processBatch fans one batch out to the worker pool and collects the
// output records in input order.
func (p *Pipeline) processBatch(ctx context.Context, batch []Document, result *Result) []OutputRecord {
	records := make([]OutputRecord, len(batch))

	jobs := make(chan int, len(batch))
	var wg sync.WaitGroup

	for w := 0; w < p.config.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				records[i] = p.processDocument(ctx, batch[i])
			}
		}()
	}

	for i := range batch {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range records {
		result.TotalDocuments++
		if records[i].Success {
			result.ProcessedOK++
		} else {
			result.ProcessedFailed++
			if records[i].Error != "" && len(result.Errors) < 20 {
				result.Errors = append(result.Errors, records[i].Error)
			}
		}
	}
	return records
}

// processDocument anonymizes one document
func (p *Pipeline) processDocument(ctx context.Context, doc Document) OutputRecord {
	record := OutputRecord{ID: doc.ID, Method: string(p.config.Method)}

	report, err := p.engine.Anonymize(ctx, doc.Text, anonymizer.Options{
		Method:        p.config.Method,
		MinConfidence: p.config.MinConfidence,
		UseNER:        true,
	})
	if err != nil {
		record.Error = err.Error()
		return record
	}

	record.Success = report.Success
	record.AnonymizedText = report.AnonymizedText
	record.Method = string(report.Method)
	record.EntityCount = int32(report.Stats.TotalEntities)

	p.mu.Lock()
	result := p.result
	result.TotalEntities += int64(report.Stats.TotalEntities)
	for entityType, count := range report.Stats.ByType {
		result.EntitiesByType[entityType] += int64(count)
	}
	if report.Cost != nil {
		result.TotalCostKRW += report.Cost.KRW
	}
	p.mu.Unlock()

	return record
}

// openReader returns a batch reader for the input file
func (p *Pipeline) openReader(path string, format FileFormat) (func() ([]Document, error), func() error, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open input file: %w", err)
	}

	switch format {
	case FormatCSV:
		reader := csv.NewReader(file)
		header, err := reader.Read()
		if err != nil {
			file.Close()
			return nil, nil, fmt.Errorf("failed to read CSV header: %w", err)
		}
		idCol, textCol := columnIndexes(header)
		if textCol < 0 {
			file.Close()
			return nil, nil, fmt.Errorf("CSV input has no text column: %v", header)
		}
		return func() ([]Document, error) {
			var batch []Document
			for len(batch) < p.config.BatchSize {
				row, err := reader.Read()
				if err == io.EOF {
					break
				}
				if err != nil {
					p.logger.Warn("Failed to read CSV record", zap.Error(err))
					continue
				}
				doc := Document{Text: strings.TrimSpace(row[textCol])}
				if idCol >= 0 && idCol < len(row) {
					doc.ID = row[idCol]
				}
				if p.validateDocument(&doc) {
					batch = append(batch, doc)
				}
			}
			return batch, nil
		}, file.Close, nil

	case FormatParquet:
		reader := parquet.NewReader(file)
		return func() ([]Document, error) {
			var batch []Document
			for len(batch) < p.config.BatchSize {
				var doc Document
				err := reader.Read(&doc)
				if err == io.EOF {
					break
				}
				if err != nil {
					p.logger.Warn("Failed to read Parquet record", zap.Error(err))
					continue
				}
				if p.validateDocument(&doc) {
					batch = append(batch, doc)
				}
			}
			return batch, nil
		}, func() error {
			reader.Close()
			return file.Close()
		}, nil

	case FormatJSON:
		decoder := json.NewDecoder(file)
		return func() ([]Document, error) {
			var batch []Document
			for len(batch) < p.config.BatchSize {
				var doc Document
				err := decoder.Decode(&doc)
				if err == io.EOF {
					break
				}
				if err != nil {
					p.logger.Warn("Failed to read JSON record", zap.Error(err))
					continue
				}
				if p.validateDocument(&doc) {
					batch = append(batch, doc)
				}
			}
			return batch, nil
		}, file.Close, nil
	}

	file.Close()
	return nil, nil, fmt.Errorf("unsupported input format: %s", format)
}

// openWriter returns a record writer for the output file
func (p *Pipeline) openWriter(path string) (func([]OutputRecord) error, func() error, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}

	switch DetectFileFormat(path) {
	case FormatParquet:
		writer := parquet.NewWriter(file, parquet.SchemaOf(OutputRecord{}))
		return func(records []OutputRecord) error {
				for i := range records {
					if err := writer.Write(records[i]); err != nil {
						return err
					}
				}
				return nil
			}, func() error {
				if err := writer.Close(); err != nil {
					file.Close()
					return err
				}
				return file.Close()
			}, nil

	case FormatJSON:
		encoder := json.NewEncoder(file)
		return func(records []OutputRecord) error {
				for i := range records {
					if err := encoder.Encode(records[i]); err != nil {
						return err
					}
				}
				return nil
			}, file.Close, nil

	default:
		writer := csv.NewWriter(file)
		if err := writer.Write([]string{"id", "anonymized_text", "method", "entity_count", "success", "error"}); err != nil {
			file.Close()
			return nil, nil, fmt.Errorf("failed to write CSV header: %w", err)
		}
		return func(records []OutputRecord) error {
				for i := range records {
					r := records[i]
					row := []string{
						r.ID,
						r.AnonymizedText,
						r.Method,
						strconv.Itoa(int(r.EntityCount)),
						strconv.FormatBool(r.Success),
						r.Error,
					}
					if err := writer.Write(row); err != nil {
						return err
					}
				}
				writer.Flush()
				return writer.Error()
			}, func() error {
				writer.Flush()
				if err := writer.Error(); err != nil {
					file.Close()
					return err
				}
				return file.Close()
			}, nil
	}
}

// validateDocument filters unusable documents and counts skips
func (p *Pipeline) validateDocument(doc *Document) bool {
	if strings.TrimSpace(doc.Text) == "" {
		p.countSkip()
		return false
	}
	if len(doc.Text) > p.config.MaxTextLength {
		p.logger.Warn("Skipping oversized document",
			zap.String("id", doc.ID),
			zap.Int("length", len(doc.Text)))
		p.countSkip()
		return false
	}
	return true
}

func (p *Pipeline) countSkip() {
	p.mu.Lock()
	p.result.Skipped++
	p.mu.Unlock()
}

// columnIndexes locates the id and text columns in a CSV header
func columnIndexes(header []string) (idCol, textCol int) {
	idCol, textCol = -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "id":
			idCol = i
		case "text", "content":
			textCol = i
		}
	}
	return idCol, textCol
}
