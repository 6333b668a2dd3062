package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/casenetai/anonymizer/internal/anonymizer"
	"github.com/casenetai/anonymizer/internal/batch"
	"github.com/casenetai/anonymizer/internal/config"
	"github.com/casenetai/anonymizer/internal/detect"
	"github.com/casenetai/anonymizer/internal/logger"
)

func main() {
	var (
		configPath    = flag.String("config", "", "Configuration file path")
		inputFile     = flag.String("input", "", "Input dataset file (CSV, JSON lines, or Parquet)")
		outputFile    = flag.String("output", "", "Output file (format follows extension)")
		method        = flag.String("method", "", "Anonymization method: rule, ai, ner, hybrid")
		minConfidence = flag.Float64("min-confidence", 0, "Minimum mapping confidence (0 uses configured default)")
		batchSize     = flag.Int("batch-size", 0, "Documents per batch (0 uses configured default)")
		workers       = flag.Int("workers", 0, "Worker goroutines (0 uses configured default)")
		dryRun        = flag.Bool("dry-run", false, "Process without writing output")
	)
	flag.Parse()

	if *inputFile == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s --input cases.csv --output cases_anonymized.csv\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --input cases.parquet --output out.parquet --method rule --workers 8\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --input cases.jsonl --dry-run\n", os.Args[0])
		os.Exit(1)
	}
	if *outputFile == "" && !*dryRun {
		fmt.Fprintln(os.Stderr, "Either --output or --dry-run is required")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Received shutdown signal, cancelling operations...")
		cancel()
	}()

	engine, err := buildEngine(cfg, log)
	if err != nil {
		log.Fatal("Failed to create anonymization engine", zap.Error(err))
	}

	runMethod := anonymizer.Method(*method)
	if runMethod == "" {
		runMethod = anonymizer.Method(cfg.Engine.DefaultMethod)
	}
	if runMethod == anonymizer.MethodCompare {
		log.Fatal("Compare mode is not supported for batch runs")
	}

	batchConfig := &batch.Config{
		Method:        runMethod,
		MinConfidence: *minConfidence,
		BatchSize:     cfg.Batch.BatchSize,
		Workers:       cfg.Batch.Workers,
		DryRun:        *dryRun,
	}
	if *batchSize > 0 {
		batchConfig.BatchSize = *batchSize
	}
	if *workers > 0 {
		batchConfig.Workers = *workers
	}

	pipeline := batch.NewPipeline(engine, batchConfig, log.WithComponent("batch").Logger)

	result, err := pipeline.ProcessFile(ctx, *inputFile, *outputFile)
	if err != nil {
		log.Fatal("Batch processing failed", zap.Error(err))
	}

	fmt.Printf("Processed %d documents (%d ok, %d failed, %d skipped) in %s\n",
		result.TotalDocuments, result.ProcessedOK, result.ProcessedFailed,
		result.Skipped, result.Duration.Round(time.Millisecond))
	fmt.Printf("Replaced %d entities", result.TotalEntities)
	if result.TotalCostKRW > 0 {
		fmt.Printf(", estimated API cost %d KRW", result.TotalCostKRW)
	}
	fmt.Println()
	if len(result.Errors) > 0 {
		fmt.Printf("Errors (%d):\n  %s\n", len(result.Errors), strings.Join(result.Errors, "\n  "))
	}
}

// buildEngine wires the configured detectors for a batch run. External
// detectors join only when credentials are configured; rule-only runs
// need no credentials at all.
func buildEngine(cfg *config.Config, log *logger.Logger) (*anonymizer.Engine, error) {
	detectors := []anonymizer.Detector{
		detect.NewRuleDetector(log.WithComponent("rule")),
	}

	if cfg.Detectors.OpenAI.APIKey != "" {
		ai, err := detect.NewOpenAIDetector(detect.OpenAIConfig{
			APIKey:            cfg.Detectors.OpenAI.APIKey,
			BaseURL:           cfg.Detectors.OpenAI.BaseURL,
			Model:             cfg.Detectors.OpenAI.Model,
			Timeout:           cfg.Detectors.OpenAI.Timeout,
			RequestsPerSecond: cfg.Detectors.OpenAI.RequestsPerSecond,
			MinConfidence:     cfg.Detectors.OpenAI.MinConfidence,
		}, log.WithComponent("ai"))
		if err != nil {
			return nil, err
		}
		detectors = append(detectors, ai)
	}

	if cfg.Detectors.Clova.ClientID != "" && cfg.Detectors.Clova.ClientSecret != "" {
		ner, err := detect.NewClovaDetector(detect.ClovaConfig{
			ClientID:     cfg.Detectors.Clova.ClientID,
			ClientSecret: cfg.Detectors.Clova.ClientSecret,
			BaseURL:      cfg.Detectors.Clova.BaseURL,
			Model:        cfg.Detectors.Clova.Model,
			Timeout:      cfg.Detectors.Clova.Timeout,
		}, log.WithComponent("ner"))
		if err != nil {
			return nil, err
		}
		detectors = append(detectors, ner)
	}

	return anonymizer.New(anonymizer.Config{
		DefaultMethod:   anonymizer.Method(cfg.Engine.DefaultMethod),
		MinConfidence:   cfg.Engine.MinConfidence,
		DetectorTimeout: cfg.Engine.DetectorTimeout,
	}, log.WithComponent("engine"), detectors...)
}
