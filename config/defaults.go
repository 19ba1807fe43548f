// =============================================================================
// 📦 BatchGate 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Batch:     DefaultBatchConfig(),
		Limiter:   DefaultLimiterConfig(),
		JWT:       JWTConfig{},
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    0,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    100,
		RateLimitBurst:  200,
	}
}

// DefaultBatchConfig 返回默认批处理配置
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		Mode:            "buffered",
		MaxItems:        100,
		MaxBodyBytes:    10 << 20, // 10 MB
		FlushEvery:      1000,
		Concurrency:     1,
		ItemTimeout:     30 * time.Second,
		UpstreamTimeout: 30 * time.Second,
	}
}

// DefaultLimiterConfig 返回默认准入限流配置
func DefaultLimiterConfig() LimiterConfig {
	return LimiterConfig{
		Driver:    "none",
		Rate:      50,
		Burst:     100,
		IdleTTL:   3 * time.Minute,
		KeyPrefix: "batchgate:ratelimit:",
		Redis:     DefaultRedisConfig(),
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		MaxRetries:   3,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		Insecure:     true,
		ServiceName:  "batchgate",
		SampleRate:   0.1,
	}
}
