package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/BaSui01/batchgate/batch"
)

// MockLimiter 是 batch.Limiter 的模拟实现，按固定容量准入
type MockLimiter struct {
	mu         sync.Mutex
	capacity   int
	retryAfter time.Duration
	err        error
	consumed   map[string]int
	calls      []LimiterCall
}

// LimiterCall 记录单次 Consume
type LimiterCall struct {
	Key string
	N   int
}

// NewMockLimiter 创建每个 key 拥有 capacity 个令牌的限流器
func NewMockLimiter(capacity int) *MockLimiter {
	return &MockLimiter{capacity: capacity, consumed: make(map[string]int)}
}

// WithRetryAfter 设置拒绝时返回的重试间隔
func (m *MockLimiter) WithRetryAfter(d time.Duration) *MockLimiter {
	m.retryAfter = d
	return m
}

// WithError 让 Consume 返回错误
func (m *MockLimiter) WithError(err error) *MockLimiter {
	m.err = err
	return m
}

// Consume 实现 batch.Limiter
func (m *MockLimiter) Consume(_ context.Context, key string, n int) (batch.Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, LimiterCall{Key: key, N: n})
	if m.err != nil {
		return batch.Decision{}, m.err
	}
	remaining := m.capacity - m.consumed[key]
	if n > remaining {
		return batch.Decision{Accepted: false, Remaining: remaining, RetryAfter: m.retryAfter}, nil
	}
	m.consumed[key] += n
	return batch.Decision{Accepted: true, Remaining: remaining - n}, nil
}

// Calls 返回调用记录
func (m *MockLimiter) Calls() []LimiterCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]LimiterCall, len(m.calls))
	copy(out, m.calls)
	return out
}
