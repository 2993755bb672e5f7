package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Data directory and the forests offered by the dashboard.
	DataDir        string
	Forests        []string
	PreloadForests bool

	// Model artifact format and the onnxruntime shared library.
	ModelFormat     string
	ONNXLibraryPath string

	// Remote acquisition of missing artifacts. Disabled when DataBaseURL is empty.
	DataBaseURL         string
	DataDownloadTimeout time.Duration
	DataDownloadRate    float64
	DataDownloadRetries int

	// Prediction audit events.
	PredictionEventsEnabled bool
	KafkaBrokers            []string
	PredictionTopic         string

	SentryDSN string
	AppEnv    string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	downloadTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("DATA_DOWNLOAD_TIMEOUT", "60s"))
	if err != nil || downloadTimeout <= 0 {
		return nil, errors.New("invalid DATA_DOWNLOAD_TIMEOUT")
	}

	downloadRate, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("DATA_DOWNLOAD_RATE", "2"), 64)
	if err != nil || downloadRate <= 0 {
		return nil, errors.New("invalid DATA_DOWNLOAD_RATE: must be a positive number")
	}

	downloadRetries, err := strconv.Atoi(sharedcfg.EnvOrDefault("DATA_DOWNLOAD_RETRIES", "3"))
	if err != nil || downloadRetries < 0 || downloadRetries > 10 {
		return nil, errors.New("invalid DATA_DOWNLOAD_RETRIES: must be 0-10")
	}

	preload, err := parseBool("PRELOAD_FORESTS")
	if err != nil {
		return nil, err
	}
	eventsEnabled, err := parseBool("PREDICTION_EVENTS_ENABLED")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		DataDir:        sharedcfg.EnvOrDefault("DATA_DIR", "data"),
		Forests:        parseList(sharedcfg.EnvOrDefault("FORESTS", "Coconino,Tongass,White Mountain")),
		PreloadForests: preload,

		ModelFormat:     strings.ToLower(sharedcfg.EnvOrDefault("MODEL_FORMAT", "json")),
		ONNXLibraryPath: os.Getenv("ONNX_LIBRARY_PATH"),

		DataBaseURL:         strings.TrimRight(os.Getenv("DATA_BASE_URL"), "/"),
		DataDownloadTimeout: downloadTimeout,
		DataDownloadRate:    downloadRate,
		DataDownloadRetries: downloadRetries,

		PredictionEventsEnabled: eventsEnabled,
		KafkaBrokers:            sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		PredictionTopic:         sharedcfg.EnvOrDefault("PREDICTION_TOPIC", "wildfire-risk-predictions"),

		SentryDSN: os.Getenv("SENTRY_DSN"),
		AppEnv:    sharedcfg.EnvOrDefault("APP_ENV", "development"),
	}

	if len(cfg.Forests) == 0 {
		return nil, errors.New("FORESTS is required")
	}
	for _, f := range cfg.Forests {
		if strings.ContainsAny(f, `/\`) || strings.Contains(f, "..") {
			return nil, fmt.Errorf("invalid FORESTS entry %q", f)
		}
	}
	if cfg.ModelFormat != "json" && cfg.ModelFormat != "onnx" {
		return nil, fmt.Errorf("invalid MODEL_FORMAT %q: must be json or onnx", cfg.ModelFormat)
	}
	if cfg.DataBaseURL != "" {
		u, err := url.Parse(cfg.DataBaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, errors.New("invalid DATA_BASE_URL: must be an http(s) URL")
		}
	}
	if cfg.PredictionEventsEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required when PREDICTION_EVENTS_ENABLED is true")
		}
		if cfg.PredictionTopic == "" {
			return nil, errors.New("PREDICTION_TOPIC is required when PREDICTION_EVENTS_ENABLED is true")
		}
	}

	return cfg, nil
}

// AcquisitionEnabled reports whether missing artifacts are downloaded.
func (c *Config) AcquisitionEnabled() bool {
	return c.DataBaseURL != ""
}

// parseList splits a comma-separated list, trimming whitespace. Forest names
// may contain spaces ("White Mountain") so only commas separate entries.
func parseList(value string) []string {
	return sharedcfg.ParseBrokers(value)
}

func parseBool(key string) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s: must be true or false", key)
	}
	return b, nil
}
