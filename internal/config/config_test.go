package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const defaultBroker = "localhost:9092"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, []string{"Coconino", "Tongass", "White Mountain"}, cfg.Forests)
	assert.False(t, cfg.PreloadForests)
	assert.Equal(t, "json", cfg.ModelFormat)
	assert.Empty(t, cfg.ONNXLibraryPath)
	assert.Empty(t, cfg.DataBaseURL)
	assert.False(t, cfg.AcquisitionEnabled())
	assert.Equal(t, 60*time.Second, cfg.DataDownloadTimeout)
	assert.InDelta(t, 2.0, cfg.DataDownloadRate, 1e-9)
	assert.Equal(t, 3, cfg.DataDownloadRetries)
	assert.False(t, cfg.PredictionEventsEnabled)
	assert.Equal(t, []string{defaultBroker}, cfg.KafkaBrokers)
	assert.Equal(t, "wildfire-risk-predictions", cfg.PredictionTopic)
	assert.Empty(t, cfg.SentryDSN)
	assert.Equal(t, "development", cfg.AppEnv)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("DATA_DIR", "/srv/wildfire")
	t.Setenv("FORESTS", " Coconino , White Mountain ,")
	t.Setenv("PRELOAD_FORESTS", "true")
	t.Setenv("MODEL_FORMAT", "ONNX")
	t.Setenv("ONNX_LIBRARY_PATH", "/usr/lib/libonnxruntime.so")
	t.Setenv("DATA_BASE_URL", "https://storage.example.com/wildfire/")
	t.Setenv("DATA_DOWNLOAD_TIMEOUT", "2m")
	t.Setenv("DATA_DOWNLOAD_RATE", "0.5")
	t.Setenv("DATA_DOWNLOAD_RETRIES", "0")
	t.Setenv("PREDICTION_EVENTS_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("PREDICTION_TOPIC", "custom-predictions")
	t.Setenv("SENTRY_DSN", "https://key@sentry.example.com/1")
	t.Setenv("APP_ENV", "production")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "/srv/wildfire", cfg.DataDir)
	assert.Equal(t, []string{"Coconino", "White Mountain"}, cfg.Forests)
	assert.True(t, cfg.PreloadForests)
	assert.Equal(t, "onnx", cfg.ModelFormat)
	assert.Equal(t, "/usr/lib/libonnxruntime.so", cfg.ONNXLibraryPath)
	assert.Equal(t, "https://storage.example.com/wildfire", cfg.DataBaseURL)
	assert.True(t, cfg.AcquisitionEnabled())
	assert.Equal(t, 2*time.Minute, cfg.DataDownloadTimeout)
	assert.InDelta(t, 0.5, cfg.DataDownloadRate, 1e-9)
	assert.Equal(t, 0, cfg.DataDownloadRetries)
	assert.True(t, cfg.PredictionEventsEnabled)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-predictions", cfg.PredictionTopic)
	assert.Equal(t, "https://key@sentry.example.com/1", cfg.SentryDSN)
	assert.Equal(t, "production", cfg.AppEnv)
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_NegativeShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "-1s")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
		want string
	}{
		{"download timeout", "DATA_DOWNLOAD_TIMEOUT", "soon", "DATA_DOWNLOAD_TIMEOUT"},
		{"zero download timeout", "DATA_DOWNLOAD_TIMEOUT", "0s", "DATA_DOWNLOAD_TIMEOUT"},
		{"download rate", "DATA_DOWNLOAD_RATE", "fast", "DATA_DOWNLOAD_RATE"},
		{"zero download rate", "DATA_DOWNLOAD_RATE", "0", "DATA_DOWNLOAD_RATE"},
		{"download retries", "DATA_DOWNLOAD_RETRIES", "11", "DATA_DOWNLOAD_RETRIES"},
		{"preload flag", "PRELOAD_FORESTS", "sometimes", "PRELOAD_FORESTS"},
		{"events flag", "PREDICTION_EVENTS_ENABLED", "yes please", "PREDICTION_EVENTS_ENABLED"},
		{"model format", "MODEL_FORMAT", "pkl", "MODEL_FORMAT"},
		{"base url scheme", "DATA_BASE_URL", "ftp://example.com/data", "DATA_BASE_URL"},
		{"base url host", "DATA_BASE_URL", "https://", "DATA_BASE_URL"},
		{"forest path", "FORESTS", "Coconino,../etc", "FORESTS"},
		{"no forests", "FORESTS", " , ", "FORESTS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_EventsRequireTopic(t *testing.T) {
	t.Setenv("PREDICTION_EVENTS_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", " , ")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KAFKA_BROKERS")
}
