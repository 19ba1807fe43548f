package ratelimit

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/batchgate/batch"
	"github.com/BaSui01/batchgate/internal/tlsutil"
)

// =============================================================================
// 🔌 Redis 连接
// =============================================================================

// RedisConfig Redis 连接配置
type RedisConfig struct {
	// 地址
	Addr string `yaml:"addr" json:"addr"`

	// 密码
	Password string `yaml:"password" json:"password"`

	// 数据库编号
	DB int `yaml:"db" json:"db"`

	// 最大重试次数
	MaxRetries int `yaml:"max_retries" json:"max_retries"`

	// 连接池大小
	PoolSize int `yaml:"pool_size" json:"pool_size"`

	// 最小空闲连接数
	MinIdleConns int `yaml:"min_idle_conns" json:"min_idle_conns"`

	// 是否启用 TLS
	TLS bool `yaml:"tls" json:"tls"`
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

// NewRedisClient 创建 Redis 客户端并测试连接
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	opts := &redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   cfg.MaxRetries,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	}
	if cfg.TLS {
		opts.TLSConfig = tlsutil.DefaultTLSConfig()
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// =============================================================================
// 🪣 分布式令牌桶
// =============================================================================

// tokenBucketScript 原子地补充并扣减令牌。
//
// KEYS[1] 桶 key
// ARGV    每毫秒补充速率, 容量, 当前毫秒时间戳, 请求数量, 过期毫秒
// 返回    {是否准入, 剩余令牌, 等待毫秒}
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local n = tonumber(ARGV[4])
local ttl = tonumber(ARGV[5])

local state = redis.call('HMGET', key, 'tokens', 'ts')
local tokens = tonumber(state[1])
local ts = tonumber(state[2])
if tokens == nil or ts == nil then
  tokens = burst
  ts = now
end
if now > ts then
  tokens = math.min(burst, tokens + (now - ts) * rate)
  ts = now
end

local allowed = 0
local wait = 0
if n <= tokens then
  tokens = tokens - n
  allowed = 1
elseif n <= burst and rate > 0 then
  wait = math.ceil((n - tokens) / rate)
end

redis.call('HSET', key, 'tokens', tostring(tokens), 'ts', tostring(ts))
redis.call('PEXPIRE', key, ttl)
return {allowed, math.floor(tokens), wait}
`)

// Redis 基于 Redis 的令牌桶，多副本共享同一份状态
type Redis struct {
	client redis.UniversalClient
	rate   float64 // 每毫秒
	burst  int
	ttl    time.Duration
	opts   options

	mu     sync.RWMutex
	closed bool
}

// NewRedis 创建 Redis 令牌桶。rps 为每秒补充的令牌数。
func NewRedis(client redis.UniversalClient, rps float64, burst int, opts ...Option) *Redis {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	perMs := rps / 1000
	// 桶从空到满所需时间，再留 1 秒余量
	fill := time.Duration(math.Ceil(float64(burst)/perMs)) * time.Millisecond

	return &Redis{
		client: client,
		rate:   perMs,
		burst:  burst,
		ttl:    fill + time.Second,
		opts:   o,
	}
}

// Consume 一次性消费 n 个令牌
func (r *Redis) Consume(ctx context.Context, key string, n int) (batch.Decision, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return batch.Decision{}, fmt.Errorf("redis limiter is closed")
	}
	if n < 0 {
		n = 0
	}

	res, err := tokenBucketScript.Run(ctx, r.client,
		[]string{r.opts.keyPrefix + key},
		strconv.FormatFloat(r.rate, 'f', -1, 64),
		r.burst,
		r.opts.now().UnixMilli(),
		n,
		r.ttl.Milliseconds(),
	).Int64Slice()
	if err != nil {
		r.opts.logger.Error("token bucket script failed", zap.String("key", key), zap.Error(err))
		return batch.Decision{}, fmt.Errorf("token bucket script failed: %w", err)
	}
	if len(res) != 3 {
		return batch.Decision{}, fmt.Errorf("token bucket script returned %d values", len(res))
	}

	return batch.Decision{
		Accepted:   res[0] == 1,
		Remaining:  int(res[1]),
		RetryAfter: time.Duration(res[2]) * time.Millisecond,
	}, nil
}

// Ping 检查 Redis 连接
func (r *Redis) Ping(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("redis limiter is closed")
	}
	return r.client.Ping(ctx).Err()
}

// Close 关闭底层连接
func (r *Redis) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	r.opts.logger.Info("closing redis limiter")
	return r.client.Close()
}
