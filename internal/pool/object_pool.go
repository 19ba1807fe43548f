// Package pool provides object pooling on top of sync.Pool.
package pool

import (
	"bytes"
	"sync"
	"sync/atomic"
)

// Pool is a generic object pool with hit statistics.
type Pool[T any] struct {
	pool  sync.Pool
	reset func(*T)
	keep  func(T) bool

	// Metrics
	gets    atomic.Int64
	puts    atomic.Int64
	news    atomic.Int64
	dropped atomic.Int64
}

// Option configures a Pool.
type Option[T any] func(*Pool[T])

// WithReset runs fn on every object returned to the pool.
func WithReset[T any](fn func(*T)) Option[T] {
	return func(p *Pool[T]) { p.reset = fn }
}

// WithKeep discards objects for which fn reports false instead of pooling
// them.
func WithKeep[T any](fn func(T) bool) Option[T] {
	return func(p *Pool[T]) { p.keep = fn }
}

// NewPool creates a new object pool.
func NewPool[T any](newFunc func() T, opts ...Option[T]) *Pool[T] {
	p := &Pool[T]{}
	for _, opt := range opts {
		opt(p)
	}
	p.pool.New = func() any {
		p.news.Add(1)
		return newFunc()
	}
	return p
}

// Get retrieves an object from the pool.
func (p *Pool[T]) Get() T {
	p.gets.Add(1)
	return p.pool.Get().(T)
}

// Put returns an object to the pool.
func (p *Pool[T]) Put(obj T) {
	if p.keep != nil && !p.keep(obj) {
		p.dropped.Add(1)
		return
	}
	p.puts.Add(1)
	if p.reset != nil {
		p.reset(&obj)
	}
	p.pool.Put(obj)
}

// Stats returns pool statistics.
func (p *Pool[T]) Stats() PoolStats {
	return PoolStats{
		Gets:    p.gets.Load(),
		Puts:    p.puts.Load(),
		News:    p.news.Load(),
		Dropped: p.dropped.Load(),
	}
}

// PoolStats contains pool statistics.
type PoolStats struct {
	Gets    int64 `json:"gets"`
	Puts    int64 `json:"puts"`
	News    int64 `json:"news"`
	Dropped int64 `json:"dropped"`
}

// HitRate returns the share of Gets served without allocating.
func (s PoolStats) HitRate() float64 {
	if s.Gets == 0 {
		return 0
	}
	return float64(s.Gets-s.News) / float64(s.Gets)
}

// =============================================================================
// 字节缓冲池
// =============================================================================

const (
	bufferInitSize = 4 << 10
	// buffers grown past this are left to the GC
	bufferMaxSize = 64 << 10
)

// ByteBufferPool provides pooled byte buffers for response encoding.
var ByteBufferPool = NewPool(
	func() *bytes.Buffer {
		return bytes.NewBuffer(make([]byte, 0, bufferInitSize))
	},
	WithReset(func(b **bytes.Buffer) { (*b).Reset() }),
	WithKeep(func(b *bytes.Buffer) bool { return b.Cap() <= bufferMaxSize }),
)
