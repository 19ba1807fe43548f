package batch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/BaSui01/batchgate/internal/ctxkeys"
)

// ErrRouteNotFound is returned by a Dispatcher when no handler matches the
// sub-request.
var ErrRouteNotFound = errors.New("route not found")

// Response is the outcome of dispatching one sub-request.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// NewResponse builds a response with a cloned header map.
func NewResponse(status int, header http.Header, body []byte) *Response {
	h := header.Clone()
	if h == nil {
		h = make(http.Header)
	}
	return &Response{StatusCode: status, Header: h, Body: body}
}

// Dispatcher runs one virtual request through the host's request-handling
// pipeline.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *http.Request) (*Response, error)
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, req *http.Request) (*Response, error)

// Dispatch calls f.
func (f DispatcherFunc) Dispatch(ctx context.Context, req *http.Request) (*Response, error) {
	return f(ctx, req)
}

// =============================================================================
// 🔀 http.Handler 适配
// =============================================================================

// routeMatcher is implemented by *http.ServeMux.
type routeMatcher interface {
	Handler(r *http.Request) (h http.Handler, pattern string)
}

// HandlerDispatcher dispatches sub-requests in process through an
// http.Handler. When the handler is an *http.ServeMux, a request matching no
// pattern yields ErrRouteNotFound instead of the mux's 404 page.
type HandlerDispatcher struct {
	handler http.Handler
	matcher routeMatcher
}

// NewHandlerDispatcher creates a dispatcher for h.
func NewHandlerDispatcher(h http.Handler) *HandlerDispatcher {
	d := &HandlerDispatcher{handler: h}
	if m, ok := h.(routeMatcher); ok {
		d.matcher = m
	}
	return d
}

// Dispatch serves req and records the response. req keeps its own context,
// which carries the sub-request markers.
func (d *HandlerDispatcher) Dispatch(_ context.Context, req *http.Request) (*Response, error) {
	unmatched := false
	if d.matcher != nil {
		_, pattern := d.matcher.Handler(req)
		unmatched = pattern == ""
	}

	rec := newRecorder()
	d.handler.ServeHTTP(rec, req)
	resp := rec.response()

	// an unmatched pattern can still produce a redirect or a 405
	if unmatched && resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s %s", ErrRouteNotFound, req.Method, req.URL.Path)
	}
	return resp, nil
}

// recorder is a minimal in-memory http.ResponseWriter.
type recorder struct {
	header      http.Header
	body        bytes.Buffer
	status      int
	wroteHeader bool
}

func newRecorder() *recorder {
	return &recorder{header: make(http.Header)}
}

func (r *recorder) Header() http.Header { return r.header }

func (r *recorder) WriteHeader(status int) {
	if r.wroteHeader {
		return
	}
	r.status = status
	r.wroteHeader = true
}

func (r *recorder) Write(p []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	return r.body.Write(p)
}

// Flush is a no-op; buffered handlers still expect a Flusher.
func (r *recorder) Flush() {}

func (r *recorder) response() *Response {
	status := r.status
	if status == 0 {
		status = http.StatusOK
	}
	return &Response{
		StatusCode: status,
		Header:     r.header.Clone(),
		Body:       bytes.Clone(r.body.Bytes()),
	}
}

// =============================================================================
// 🔑 子请求上下文访问器
// =============================================================================

// IsInternal reports whether ctx belongs to a sub-request issued by the
// gateway.
func IsInternal(ctx context.Context) bool {
	return ctxkeys.Internal(ctx)
}

// ParamsFrom returns the resolved parameters of the sub-request.
func ParamsFrom(ctx context.Context) (Params, bool) {
	p, ok := ctxkeys.Params(ctx)
	return Params(p), ok
}

// ServerVarsFrom returns the server variables of the sub-request.
func ServerVarsFrom(ctx context.Context) (map[string]string, bool) {
	return ctxkeys.ServerVars(ctx)
}

// SessionFrom returns the session handle shared with the parent request.
func SessionFrom(ctx context.Context) (any, bool) {
	return ctxkeys.Session(ctx)
}

// WithSession attaches a session handle that NewParentContext picks up.
func WithSession(ctx context.Context, session any) context.Context {
	return ctxkeys.WithSession(ctx, session)
}

// ItemIndexFrom returns the envelope position of the sub-request.
func ItemIndexFrom(ctx context.Context) (int, bool) {
	return ctxkeys.ItemIndex(ctx)
}
