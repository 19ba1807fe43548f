// 配置加载器测试。
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// --- Loader 测试 ---

func TestLoader_LoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, "buffered", cfg.Batch.Mode)
}

func TestLoader_LoadFromYAML(t *testing.T) {
	path := writeConfig(t, `
server:
  http_port: 8888
  read_timeout: 60s
  api_keys: ["k1", "k2"]
  tls_cert_file: /etc/tls/cert.pem
  tls_key_file: /etc/tls/key.pem

batch:
  mode: streamed
  max_items: 25
  concurrency: 4
  item_timeout: 2s
  upstream_url: https://api.internal:8443

limiter:
  driver: redis
  rate: 10
  burst: 20
  redis:
    addr: "redis.example.com:6379"
    password: "secret"
    db: 1
    tls: true

log:
  level: "debug"
  format: "console"
`)

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 8888, cfg.Server.HTTPPort)
	assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, []string{"k1", "k2"}, cfg.Server.APIKeys)
	assert.True(t, cfg.Server.TLSEnabled())

	assert.Equal(t, "streamed", cfg.Batch.Mode)
	assert.Equal(t, 25, cfg.Batch.MaxItems)
	assert.Equal(t, 4, cfg.Batch.Concurrency)
	assert.Equal(t, 2*time.Second, cfg.Batch.ItemTimeout)
	assert.Equal(t, "https://api.internal:8443", cfg.Batch.UpstreamURL)
	assert.Equal(t, 1000, cfg.Batch.FlushEvery, "unset keys keep their defaults")

	assert.Equal(t, "redis", cfg.Limiter.Driver)
	assert.Equal(t, 10.0, cfg.Limiter.Rate)
	assert.Equal(t, "redis.example.com:6379", cfg.Limiter.Redis.Addr)
	assert.Equal(t, "secret", cfg.Limiter.Redis.Password)
	assert.Equal(t, 1, cfg.Limiter.Redis.DB)
	assert.True(t, cfg.Limiter.Redis.TLS)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.NoError(t, cfg.Validate())
}

func TestLoader_LoadFromEnv(t *testing.T) {
	envVars := map[string]string{
		"BATCHGATE_SERVER_HTTP_PORT":              "7777",
		"BATCHGATE_SERVER_CORS_ALLOWED_ORIGINS":   "https://a.example, https://b.example,",
		"BATCHGATE_BATCH_MAX_ITEMS":               "5",
		"BATCHGATE_BATCH_ITEM_TIMEOUT":            "750ms",
		"BATCHGATE_BATCH_INCLUDE_HEADERS_DEFAULT": "true",
		"BATCHGATE_LIMITER_DRIVER":                "memory",
		"BATCHGATE_LIMITER_RATE":                  "2.5",
		"BATCHGATE_LIMITER_REDIS_ADDR":            "env-redis:6379",
		"BATCHGATE_LOG_LEVEL":                     "warn",
	}
	for k, v := range envVars {
		t.Setenv(k, v)
	}

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Server.HTTPPort)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSAllowedOrigins)
	assert.Equal(t, 5, cfg.Batch.MaxItems)
	assert.Equal(t, 750*time.Millisecond, cfg.Batch.ItemTimeout)
	assert.True(t, cfg.Batch.IncludeHeadersDefault)
	assert.Equal(t, "memory", cfg.Limiter.Driver)
	assert.Equal(t, 2.5, cfg.Limiter.Rate)
	assert.Equal(t, "env-redis:6379", cfg.Limiter.Redis.Addr)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	path := writeConfig(t, `
server:
  http_port: 8888
batch:
  mode: streamed
  max_items: 10
`)
	t.Setenv("BATCHGATE_SERVER_HTTP_PORT", "9999")
	t.Setenv("BATCHGATE_BATCH_MAX_ITEMS", "3")

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.HTTPPort)
	assert.Equal(t, 3, cfg.Batch.MaxItems)
	assert.Equal(t, "streamed", cfg.Batch.Mode)
}

func TestLoader_InvalidEnvValue(t *testing.T) {
	t.Setenv("BATCHGATE_BATCH_ITEM_TIMEOUT", "soon")

	_, err := NewLoader().Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BATCHGATE_BATCH_ITEM_TIMEOUT")
}

func TestLoader_CustomEnvPrefix(t *testing.T) {
	t.Setenv("MYAPP_SERVER_HTTP_PORT", "6666")

	cfg, err := NewLoader().WithEnvPrefix("MYAPP").Load()
	require.NoError(t, err)
	assert.Equal(t, 6666, cfg.Server.HTTPPort)
}

func TestLoader_WithValidator(t *testing.T) {
	t.Setenv("BATCHGATE_SERVER_HTTP_PORT", "80")

	_, err := NewLoader().
		WithValidator(func(cfg *Config) error {
			if cfg.Server.HTTPPort < 1024 {
				return assert.AnError
			}
			return nil
		}).
		Load()
	assert.ErrorIs(t, err, assert.AnError)
}

func TestLoader_NonExistentFile(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath("/non/existent/path/config.yaml").Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.HTTPPort)
}

func TestLoader_InvalidYAML(t *testing.T) {
	path := writeConfig(t, `
server:
  http_port: [invalid
  this is not valid yaml
`)
	_, err := NewLoader().WithConfigPath(path).Load()
	assert.Error(t, err)
}

// --- Config 方法测试 ---

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{name: "valid default config", modify: func(c *Config) {}},
		{name: "negative HTTP port", modify: func(c *Config) { c.Server.HTTPPort = -1 }, wantErr: "invalid HTTP port"},
		{name: "HTTP port too large", modify: func(c *Config) { c.Server.HTTPPort = 70000 }, wantErr: "invalid HTTP port"},
		{name: "port clash", modify: func(c *Config) { c.Server.MetricsPort = c.Server.HTTPPort }, wantErr: "metrics port"},
		{name: "half tls", modify: func(c *Config) { c.Server.TLSCertFile = "cert.pem" }, wantErr: "tls_cert_file"},
		{name: "burst missing", modify: func(c *Config) { c.Server.RateLimitBurst = 0 }, wantErr: "rate_limit_burst"},
		{name: "unknown mode", modify: func(c *Config) { c.Batch.Mode = "chunked" }, wantErr: "batch mode"},
		{name: "zero flush", modify: func(c *Config) { c.Batch.FlushEvery = 0 }, wantErr: "flush_every"},
		{name: "zero concurrency", modify: func(c *Config) { c.Batch.Concurrency = 0 }, wantErr: "concurrency"},
		{name: "zero body limit", modify: func(c *Config) { c.Batch.MaxBodyBytes = 0 }, wantErr: "max_body_bytes"},
		{name: "relative upstream", modify: func(c *Config) { c.Batch.UpstreamURL = "/api" }, wantErr: "upstream_url"},
		{name: "memory limiter needs rate", modify: func(c *Config) {
			c.Limiter.Driver = "memory"
			c.Limiter.Rate = 0
		}, wantErr: "limiter rate"},
		{name: "redis limiter needs addr", modify: func(c *Config) {
			c.Limiter.Driver = "redis"
			c.Limiter.Redis.Addr = ""
		}, wantErr: "redis addr"},
		{name: "unknown limiter", modify: func(c *Config) { c.Limiter.Driver = "etcd" }, wantErr: "unknown limiter driver"},
		{name: "jwt without keys", modify: func(c *Config) { c.JWT.Enabled = true }, wantErr: "jwt"},
		{name: "sample rate", modify: func(c *Config) {
			c.Telemetry.Enabled = true
			c.Telemetry.SampleRate = 2
		}, wantErr: "sample_rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_ValidateAggregatesErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.HTTPPort = 0
	cfg.Batch.Mode = "bogus"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid HTTP port; ")
	assert.Contains(t, err.Error(), "batch mode")
}

// --- MustLoad 测试 ---

func TestMustLoad_Success(t *testing.T) {
	path := writeConfig(t, "server:\n  http_port: 8081\n")

	assert.NotPanics(t, func() {
		cfg := MustLoad(path)
		assert.Equal(t, 8081, cfg.Server.HTTPPort)
	})
}

func TestMustLoad_InvalidFile(t *testing.T) {
	path := writeConfig(t, "invalid: [yaml")
	assert.Panics(t, func() { MustLoad(path) })
}

func TestLoadFromEnv_Function(t *testing.T) {
	t.Setenv("BATCHGATE_BATCH_MODE", "streamed")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "streamed", cfg.Batch.Mode)
}
