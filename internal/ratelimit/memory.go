package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/batchgate/batch"
)

// Option 配置限流器
type Option func(*options)

type options struct {
	idleTTL   time.Duration
	keyPrefix string
	logger    *zap.Logger
	now       func() time.Time
}

func defaultOptions() options {
	return options{
		idleTTL:   3 * time.Minute,
		keyPrefix: "batchgate:ratelimit:",
		logger:    zap.NewNop(),
		now:       time.Now,
	}
}

// WithIdleTTL 设置空闲 key 的保留时间（TokenBucket）
func WithIdleTTL(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.idleTTL = d
		}
	}
}

// WithKeyPrefix 设置 Redis key 前缀
func WithKeyPrefix(prefix string) Option {
	return func(o *options) {
		if prefix != "" {
			o.keyPrefix = prefix
		}
	}
}

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock 替换时间源，测试使用
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// =============================================================================
// 🪣 进程内令牌桶
// =============================================================================

// TokenBucket 按 key 隔离的进程内令牌桶
type TokenBucket struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	opts     options

	stop     chan struct{}
	stopOnce sync.Once
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewTokenBucket 创建令牌桶。ctx 结束或 Close 时停止后台清理。
func NewTokenBucket(ctx context.Context, rps float64, burst int, opts ...Option) *TokenBucket {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	b := &TokenBucket{
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(rps),
		burst:    burst,
		opts:     o,
		stop:     make(chan struct{}),
	}
	go b.cleanupLoop(ctx)
	return b
}

// Consume 一次性消费 n 个令牌。n 超过桶容量时永远不会准入，RetryAfter 为 0。
func (b *TokenBucket) Consume(_ context.Context, key string, n int) (batch.Decision, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.opts.now()
	lim := b.visitorLocked(key, now)

	if n <= 0 {
		return batch.Decision{Accepted: true, Remaining: remaining(lim, now)}, nil
	}
	if n > b.burst {
		return batch.Decision{Remaining: remaining(lim, now)}, nil
	}

	r := lim.ReserveN(now, n)
	if !r.OK() {
		return batch.Decision{Remaining: remaining(lim, now)}, nil
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return batch.Decision{Remaining: remaining(lim, now), RetryAfter: delay}, nil
	}
	return batch.Decision{Accepted: true, Remaining: remaining(lim, now)}, nil
}

// Len 返回当前跟踪的 key 数量
func (b *TokenBucket) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.visitors)
}

// Prune 删除在 now 之前空闲超过 idleTTL 的 key，返回删除数量
func (b *TokenBucket) Prune(now time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	removed := 0
	for key, v := range b.visitors {
		if now.Sub(v.lastSeen) > b.opts.idleTTL {
			delete(b.visitors, key)
			removed++
		}
	}
	return removed
}

// Ping 进程内实现始终可用
func (b *TokenBucket) Ping(context.Context) error { return nil }

// Close 停止后台清理
func (b *TokenBucket) Close() error {
	b.stopOnce.Do(func() { close(b.stop) })
	return nil
}

func (b *TokenBucket) visitorLocked(key string, now time.Time) *rate.Limiter {
	v, ok := b.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(b.limit, b.burst)}
		b.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter
}

func (b *TokenBucket) cleanupLoop(ctx context.Context) {
	interval := time.Minute
	if b.opts.idleTTL < interval {
		interval = b.opts.idleTTL
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.stop:
			return
		case <-ticker.C:
			if n := b.Prune(b.opts.now()); n > 0 {
				b.opts.logger.Debug("pruned idle limiter keys", zap.Int("count", n))
			}
		}
	}
}

func remaining(lim *rate.Limiter, now time.Time) int {
	tokens := lim.TokensAt(now)
	if tokens < 0 {
		return 0
	}
	return int(tokens)
}
