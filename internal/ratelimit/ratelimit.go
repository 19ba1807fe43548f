package ratelimit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/batchgate/batch"
)

// =============================================================================
// 🎯 配置
// =============================================================================

// 驱动名称
const (
	DriverNone   = "none"
	DriverMemory = "memory"
	DriverRedis  = "redis"
)

// Config 准入限流配置
type Config struct {
	// 驱动: none, memory, redis
	Driver string `yaml:"driver" json:"driver"`

	// 每秒补充的令牌数
	Rate float64 `yaml:"rate" json:"rate"`

	// 桶容量，也是单个批次允许的最大子请求数
	Burst int `yaml:"burst" json:"burst"`

	// 空闲 key 的保留时间
	IdleTTL time.Duration `yaml:"idle_ttl" json:"idle_ttl"`

	// Redis key 前缀
	KeyPrefix string `yaml:"key_prefix" json:"key_prefix"`

	// Redis 连接
	Redis RedisConfig `yaml:"redis" json:"redis"`
}

// DefaultConfig 返回默认限流配置
func DefaultConfig() Config {
	return Config{
		Driver:    DriverNone,
		Rate:      50,
		Burst:     100,
		IdleTTL:   3 * time.Minute,
		KeyPrefix: "batchgate:ratelimit:",
		Redis:     DefaultRedisConfig(),
	}
}

// Limiter 是可关闭、可探活的 batch.Limiter
type Limiter interface {
	batch.Limiter
	Ping(ctx context.Context) error
	Close() error
}

var (
	_ Limiter = (*TokenBucket)(nil)
	_ Limiter = (*Redis)(nil)
)

// New 按驱动创建限流器。Driver 为 none 时返回 nil, nil。
func New(ctx context.Context, cfg Config, logger *zap.Logger) (Limiter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Driver {
	case "", DriverNone:
		return nil, nil
	case DriverMemory:
		if err := cfg.validateBucket(); err != nil {
			return nil, err
		}
		logger.Info("admission limiter initialized",
			zap.String("driver", DriverMemory),
			zap.Float64("rate", cfg.Rate),
			zap.Int("burst", cfg.Burst),
		)
		return NewTokenBucket(ctx, cfg.Rate, cfg.Burst, WithIdleTTL(cfg.IdleTTL)), nil
	case DriverRedis:
		if err := cfg.validateBucket(); err != nil {
			return nil, err
		}
		client, err := NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		logger.Info("admission limiter initialized",
			zap.String("driver", DriverRedis),
			zap.String("addr", cfg.Redis.Addr),
			zap.Bool("tls", cfg.Redis.TLS),
		)
		return NewRedis(client, cfg.Rate, cfg.Burst,
			WithKeyPrefix(cfg.KeyPrefix),
			WithLogger(logger),
		), nil
	default:
		return nil, fmt.Errorf("unknown limiter driver %q", cfg.Driver)
	}
}

func (c Config) validateBucket() error {
	if c.Rate <= 0 {
		return fmt.Errorf("limiter rate must be positive, got %v", c.Rate)
	}
	if c.Burst <= 0 {
		return fmt.Errorf("limiter burst must be positive, got %d", c.Burst)
	}
	return nil
}
