package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- DefaultConfig aggregate ---

func TestDefaultConfig_ContainsAllSubConfigs(t *testing.T) {
	cfg := DefaultConfig()
	require.NotNil(t, cfg)

	assert.NotEqual(t, ServerConfig{}, cfg.Server)
	assert.NotEqual(t, BatchConfig{}, cfg.Batch)
	assert.NotEqual(t, LimiterConfig{}, cfg.Limiter)
	assert.NotEqual(t, LogConfig{}, cfg.Log)
	assert.NotEqual(t, TelemetryConfig{}, cfg.Telemetry)
	assert.Equal(t, JWTConfig{}, cfg.JWT, "jwt is opt-in")
	assert.NoError(t, cfg.Validate())
}

// --- Individual Default*Config functions ---

func TestDefaultServerConfig(t *testing.T) {
	cfg := DefaultServerConfig()
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, 9091, cfg.MetricsPort)
	assert.Equal(t, 30*time.Second, cfg.ReadTimeout)
	assert.Zero(t, cfg.WriteTimeout)
	assert.Equal(t, 15*time.Second, cfg.ShutdownTimeout)
	assert.False(t, cfg.AllowQueryAPIKey)
	assert.False(t, cfg.TLSEnabled())
	assert.Equal(t, 100.0, cfg.RateLimitRPS)
	assert.Equal(t, 200, cfg.RateLimitBurst)
}

func TestDefaultBatchConfig(t *testing.T) {
	cfg := DefaultBatchConfig()
	assert.Equal(t, "buffered", cfg.Mode)
	assert.Equal(t, 100, cfg.MaxItems)
	assert.Equal(t, int64(10<<20), cfg.MaxBodyBytes)
	assert.Equal(t, 1000, cfg.FlushEvery)
	assert.Equal(t, 1, cfg.Concurrency, "sequential dispatch by default")
	assert.Equal(t, 30*time.Second, cfg.ItemTimeout)
	assert.Empty(t, cfg.UpstreamURL)
	assert.False(t, cfg.IncludeHeadersDefault)
}

func TestDefaultLimiterConfig(t *testing.T) {
	cfg := DefaultLimiterConfig()
	assert.Equal(t, "none", cfg.Driver)
	assert.Equal(t, 50.0, cfg.Rate)
	assert.Equal(t, 100, cfg.Burst)
	assert.Equal(t, "batchgate:ratelimit:", cfg.KeyPrefix)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.False(t, cfg.Redis.TLS)
}

func TestDefaultLogConfig(t *testing.T) {
	cfg := DefaultLogConfig()
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, []string{"stdout"}, cfg.OutputPaths)
	assert.True(t, cfg.EnableCaller)
}

func TestDefaultTelemetryConfig(t *testing.T) {
	cfg := DefaultTelemetryConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "batchgate", cfg.ServiceName)
	assert.Equal(t, "localhost:4317", cfg.OTLPEndpoint)
	assert.Equal(t, 0.1, cfg.SampleRate)
}
