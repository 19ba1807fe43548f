// MockDispatcher 是 batch.Dispatcher 的测试模拟实现。
//
// 支持按路由返回固定响应、错误注入、panic 注入与延迟模拟。
package mocks

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/BaSui01/batchgate/batch"
)

// --- MockDispatcher 结构 ---

// MockDispatcher 记录每次分派并按 "METHOD /path" 返回预置响应
type MockDispatcher struct {
	mu sync.Mutex

	routes   map[string]*batch.Response
	errors   map[string]error
	panics   map[string]any
	delays   map[string]time.Duration
	fallback *batch.Response
	handler  func(ctx context.Context, req *http.Request) (*batch.Response, error)

	calls []DispatchCall
}

// DispatchCall 记录单次分派
type DispatchCall struct {
	Method   string
	Path     string
	RawQuery string
	Header   http.Header
	Body     []byte
	Internal bool
	Params   batch.Params
	Session  any
}

// --- 构造函数和 Builder 方法 ---

// NewMockDispatcher 创建默认对任意请求返回 200 空 JSON 体的 MockDispatcher
func NewMockDispatcher() *MockDispatcher {
	return &MockDispatcher{
		routes: make(map[string]*batch.Response),
		errors: make(map[string]error),
		panics: make(map[string]any),
		delays: make(map[string]time.Duration),
		fallback: &batch.Response{
			StatusCode: http.StatusOK,
			Header:     make(http.Header),
		},
	}
}

func routeKey(method, path string) string {
	return method + " " + path
}

// WithRoute 为路由设置固定响应
func (m *MockDispatcher) WithRoute(method, path string, resp *batch.Response) *MockDispatcher {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes[routeKey(method, path)] = resp
	return m
}

// WithJSONRoute 为路由设置 JSON 响应
func (m *MockDispatcher) WithJSONRoute(method, path string, status int, body string) *MockDispatcher {
	h := make(http.Header)
	h.Set("Content-Type", "application/json")
	return m.WithRoute(method, path, &batch.Response{StatusCode: status, Header: h, Body: []byte(body)})
}

// WithError 让路由返回错误
func (m *MockDispatcher) WithError(method, path string, err error) *MockDispatcher {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[routeKey(method, path)] = err
	return m
}

// WithPanic 让路由 panic
func (m *MockDispatcher) WithPanic(method, path string, v any) *MockDispatcher {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panics[routeKey(method, path)] = v
	return m
}

// WithDelay 为路由设置延迟（受 ctx 约束）
func (m *MockDispatcher) WithDelay(method, path string, d time.Duration) *MockDispatcher {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delays[routeKey(method, path)] = d
	return m
}

// WithFallback 设置未配置路由的响应；nil 表示返回 batch.ErrRouteNotFound
func (m *MockDispatcher) WithFallback(resp *batch.Response) *MockDispatcher {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = resp
	return m
}

// WithHandler 使用自定义函数处理所有请求（优先级最高）
func (m *MockDispatcher) WithHandler(fn func(ctx context.Context, req *http.Request) (*batch.Response, error)) *MockDispatcher {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = fn
	return m
}

// --- batch.Dispatcher 实现 ---

// Dispatch 实现 batch.Dispatcher
func (m *MockDispatcher) Dispatch(ctx context.Context, req *http.Request) (*batch.Response, error) {
	var body []byte
	if req.Body != nil {
		body, _ = io.ReadAll(req.Body)
	}
	params, _ := batch.ParamsFrom(req.Context())
	session, _ := batch.SessionFrom(req.Context())
	key := routeKey(req.Method, req.URL.Path)

	m.mu.Lock()
	m.calls = append(m.calls, DispatchCall{
		Method:   req.Method,
		Path:     req.URL.Path,
		RawQuery: req.URL.RawQuery,
		Header:   req.Header.Clone(),
		Body:     body,
		Internal: batch.IsInternal(req.Context()),
		Params:   params,
		Session:  session,
	})
	handler := m.handler
	delay := m.delays[key]
	panicValue, shouldPanic := m.panics[key]
	err := m.errors[key]
	resp, ok := m.routes[key]
	fallback := m.fallback
	m.mu.Unlock()

	if handler != nil {
		return handler(ctx, req)
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if shouldPanic {
		panic(panicValue)
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		if fallback == nil {
			return nil, batch.ErrRouteNotFound
		}
		resp = fallback
	}
	return batch.NewResponse(resp.StatusCode, resp.Header, resp.Body), nil
}

// --- 调用记录 ---

// Calls 返回所有调用记录的副本
func (m *MockDispatcher) Calls() []DispatchCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]DispatchCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount 返回分派次数
func (m *MockDispatcher) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
