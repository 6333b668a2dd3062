package config

import "time"

// Config represents the main configuration structure
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Engine    EngineConfig    `yaml:"engine" mapstructure:"engine"`
	Detectors DetectorsConfig `yaml:"detectors" mapstructure:"detectors"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Logging   LoggingConfig   `yaml:"logging" mapstructure:"logging"`
	WebSocket WebSocketConfig `yaml:"websocket" mapstructure:"websocket"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port         int           `yaml:"port" mapstructure:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
}

// EngineConfig contains anonymization engine configuration
type EngineConfig struct {
	DefaultMethod   string        `yaml:"default_method" mapstructure:"default_method"` // rule, ai, ner, hybrid, compare
	MinConfidence   float64       `yaml:"min_confidence" mapstructure:"min_confidence"`
	DetectorTimeout time.Duration `yaml:"detector_timeout" mapstructure:"detector_timeout"`
}

// DetectorsConfig contains external detector backend configuration
type DetectorsConfig struct {
	OpenAI OpenAIConfig `yaml:"openai" mapstructure:"openai"`
	Clova  ClovaConfig  `yaml:"clova" mapstructure:"clova"`
}

// OpenAIConfig contains the AI detector backend configuration
type OpenAIConfig struct {
	APIKey            string        `yaml:"api_key" mapstructure:"api_key"`
	BaseURL           string        `yaml:"base_url" mapstructure:"base_url"`
	Model             string        `yaml:"model" mapstructure:"model"`
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	MinConfidence     float64       `yaml:"min_confidence" mapstructure:"min_confidence"`
}

// ClovaConfig contains the Korean NER detector backend configuration
type ClovaConfig struct {
	ClientID     string        `yaml:"client_id" mapstructure:"client_id"`
	ClientSecret string        `yaml:"client_secret" mapstructure:"client_secret"`
	BaseURL      string        `yaml:"base_url" mapstructure:"base_url"`
	Model        string        `yaml:"model" mapstructure:"model"`
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// CacheConfig contains report cache configuration
type CacheConfig struct {
	Enabled        bool          `yaml:"enabled" mapstructure:"enabled"`
	RedisURL       string        `yaml:"redis_url" mapstructure:"redis_url"`
	MaxConnections int           `yaml:"max_connections" mapstructure:"max_connections"`
	MinIdleConns   int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
	DefaultTTL     time.Duration `yaml:"default_ttl" mapstructure:"default_ttl"`
	KeyPrefix      string        `yaml:"key_prefix" mapstructure:"key_prefix"`
}

// StoreConfig contains report persistence configuration
type StoreConfig struct {
	Enabled         bool          `yaml:"enabled" mapstructure:"enabled"`
	DatabaseURL     string        `yaml:"database_url" mapstructure:"database_url"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // json or console
	File   struct {
		Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
		Path    string `yaml:"path" mapstructure:"path"`
	} `yaml:"file" mapstructure:"file"`
}

// WebSocketConfig contains live event stream configuration
type WebSocketConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
	Events  struct {
		BroadcastAnonymizations bool `yaml:"broadcast_anonymizations" mapstructure:"broadcast_anonymizations"`
		BroadcastSystem         bool `yaml:"broadcast_system" mapstructure:"broadcast_system"`
		BroadcastConnections    bool `yaml:"broadcast_connections" mapstructure:"broadcast_connections"`
	} `yaml:"events" mapstructure:"events"`
}

// BatchConfig contains batch pipeline configuration
type BatchConfig struct {
	BatchSize int `yaml:"batch_size" mapstructure:"batch_size"`
	Workers   int `yaml:"workers" mapstructure:"workers"`
}

// GetDefaults returns a configuration with sensible defaults
func GetDefaults() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Engine: EngineConfig{
			DefaultMethod:   "hybrid",
			MinConfidence:   0.7,
			DetectorTimeout: 45 * time.Second,
		},
		Detectors: DetectorsConfig{
			OpenAI: OpenAIConfig{
				BaseURL:           "https://api.openai.com",
				Model:             "gpt-4o-mini",
				Timeout:           45 * time.Second,
				RequestsPerSecond: 2,
				MinConfidence:     0.7,
			},
			Clova: ClovaConfig{
				BaseURL: "https://clovastudio.stream.ntruss.com",
				Model:   "HCX-DASH-001",
				Timeout: 45 * time.Second,
			},
		},
		Cache: CacheConfig{
			Enabled:        false,
			RedisURL:       "redis://localhost:6379/0",
			MaxConnections: 10,
			MinIdleConns:   2,
			DefaultTTL:     time.Hour,
			KeyPrefix:      "anon",
		},
		Store: StoreConfig{
			Enabled:         false,
			DatabaseURL:     "postgres://localhost:5432/anonymizer?sslmode=disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Batch: BatchConfig{
			BatchSize: 100,
			Workers:   4,
		},
	}

	cfg.WebSocket.Enabled = true
	cfg.WebSocket.Path = "/ws"
	cfg.WebSocket.Events.BroadcastAnonymizations = true
	cfg.WebSocket.Events.BroadcastSystem = true
	cfg.WebSocket.Events.BroadcastConnections = true

	return cfg
}
