package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/casenetai/anonymizer/internal/anonymizer"
	"github.com/casenetai/anonymizer/internal/cache"
	"github.com/casenetai/anonymizer/internal/config"
	"github.com/casenetai/anonymizer/internal/detect"
	"github.com/casenetai/anonymizer/internal/logger"
	"github.com/casenetai/anonymizer/internal/server"
	"github.com/casenetai/anonymizer/internal/store"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
		healthCheck = flag.Bool("health-check", false, "Perform health check and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("anonymizer %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	if *healthCheck {
		performHealthCheck()
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	loggerConfig := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}
	if cfg.Logging.File.Enabled {
		loggerConfig.File = &logger.FileConfig{
			Enabled: true,
			Path:    cfg.Logging.File.Path,
		}
	}

	log, err := logger.New(loggerConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting anonymizer",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("build_date", date),
		zap.Int("port", cfg.Server.Port),
	)

	engine, err := buildEngine(cfg, log)
	if err != nil {
		log.Fatal("Failed to create anonymization engine", zap.Error(err))
	}

	var opts server.Options

	if cfg.Cache.Enabled {
		reportCache, err := cache.NewReportCache(&cache.Config{
			RedisURL:       cfg.Cache.RedisURL,
			MaxConnections: cfg.Cache.MaxConnections,
			MinIdleConns:   cfg.Cache.MinIdleConns,
			DefaultTTL:     cfg.Cache.DefaultTTL,
			KeyPrefix:      cfg.Cache.KeyPrefix,
		}, log.WithComponent("cache").Logger)
		if err != nil {
			log.Fatal("Failed to connect to report cache", zap.Error(err))
		}
		defer reportCache.Close()
		opts.Cache = reportCache
	}

	if cfg.Store.Enabled {
		reportStore, err := store.NewStore(&store.Config{
			DatabaseURL:     cfg.Store.DatabaseURL,
			MaxOpenConns:    cfg.Store.MaxOpenConns,
			MaxIdleConns:    cfg.Store.MaxIdleConns,
			ConnMaxLifetime: cfg.Store.ConnMaxLifetime,
		}, log.WithComponent("store").Logger)
		if err != nil {
			log.Fatal("Failed to connect to report store", zap.Error(err))
		}
		defer reportStore.Close()
		opts.Store = reportStore
	}

	srv := server.New(cfg, log, engine, opts)

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
		serverErrors <- srv.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Error("Server error", zap.Error(err))
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Stop(ctx); err != nil {
			log.Error("Failed to shutdown server gracefully", zap.Error(err))
			os.Exit(1)
		}

		log.Info("Server shutdown complete")
	}
}

// buildEngine wires the configured detectors into an engine. The rule
// detector always runs; AI and NER join only when credentials are present.
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
	} else {
		log.Warn("OpenAI API key not configured, ai and hybrid methods run without the AI detector")
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
	} else {
		log.Warn("CLOVA credentials not configured, ner method unavailable")
	}

	return anonymizer.New(anonymizer.Config{
		DefaultMethod:   anonymizer.Method(cfg.Engine.DefaultMethod),
		MinConfidence:   cfg.Engine.MinConfidence,
		DetectorTimeout: cfg.Engine.DetectorTimeout,
	}, log.WithComponent("engine"), detectors...)
}

// performHealthCheck performs a health check against the running server
func performHealthCheck() {
	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	resp, err := client.Get("http://localhost:8080/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: HTTP %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("Health check passed")
	os.Exit(0)
}
