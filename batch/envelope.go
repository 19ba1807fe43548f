package batch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net"
	"net/http"
	"strings"

	"github.com/BaSui01/batchgate/internal/ctxkeys"
)

// =============================================================================
// 📦 信封条目
// =============================================================================

// EnvelopeItem is one entry of the inbound batch envelope.
type EnvelopeItem struct {
	// Method defaults to GET when absent.
	Method string `json:"method,omitempty"`
	// RelativeURL is required; it may carry a query string.
	RelativeURL string `json:"relative_url"`
	// Body is either a string (form encoded or raw) or structured JSON.
	Body any `json:"body,omitempty"`
	// ContentType selects how Body contributes to the parameter map.
	ContentType string `json:"content-type,omitempty"`
	// AttachedFiles is a comma-separated list of uploaded file field names.
	AttachedFiles string `json:"attached_files,omitempty"`
	// Headers override or extend the parent request headers.
	Headers ItemHeaders `json:"headers,omitempty"`
}

// EffectiveMethod returns the upper-cased method, defaulting to GET.
func (it EnvelopeItem) EffectiveMethod() string {
	m := strings.TrimSpace(it.Method)
	if m == "" {
		return http.MethodGet
	}
	return strings.ToUpper(m)
}

// ItemHeaders maps header names to scalar or list values.
type ItemHeaders map[string]HeaderValue

// HeaderValue is a header override. Scalars replace the inherited value,
// lists are appended to it.
type HeaderValue struct {
	Values []string
	List   bool
}

// Scalar builds a replacing header value.
func Scalar(v string) HeaderValue {
	return HeaderValue{Values: []string{v}}
}

// List builds an appending header value.
func List(vs ...string) HeaderValue {
	return HeaderValue{Values: vs, List: true}
}

// UnmarshalJSON accepts a JSON scalar or an array of scalars.
func (h *HeaderValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*h = HeaderValue{}
		return nil
	}
	if data[0] == '[' {
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		vals := make([]string, 0, len(raw))
		for _, r := range raw {
			s, err := scalarText(r)
			if err != nil {
				return err
			}
			vals = append(vals, s)
		}
		*h = HeaderValue{Values: vals, List: true}
		return nil
	}
	s, err := scalarText(data)
	if err != nil {
		return err
	}
	*h = HeaderValue{Values: []string{s}}
	return nil
}

// MarshalJSON mirrors UnmarshalJSON.
func (h HeaderValue) MarshalJSON() ([]byte, error) {
	if h.List {
		if h.Values == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(h.Values)
	}
	if len(h.Values) == 0 {
		return []byte("null"), nil
	}
	return json.Marshal(h.Values[0])
}

func scalarText(data json.RawMessage) (string, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return "", fmt.Errorf("empty header value")
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", err
		}
		return s, nil
	case '{', '[':
		return "", fmt.Errorf("header value must be a scalar, got %s", data)
	case 'n':
		return "", nil
	default:
		// numbers and booleans keep their literal text
		return string(data), nil
	}
}

// =============================================================================
// 🧬 父请求上下文
// =============================================================================

// ParentContext is the read-only snapshot of the inbound request shared by
// every item of one batch.
type ParentContext struct {
	Header  http.Header
	Cookies map[string]string
	Server  map[string]string
	// Session is reused by reference, never copied.
	Session any
	Files   map[string][]*multipart.FileHeader
}

// NewParentContext snapshots r. Uploaded files are only visible when the
// multipart form was parsed before the call.
func NewParentContext(r *http.Request) *ParentContext {
	pc := &ParentContext{
		Header:  r.Header.Clone(),
		Cookies: make(map[string]string),
		Server:  serverVars(r),
		Files:   make(map[string][]*multipart.FileHeader),
	}
	if pc.Header == nil {
		pc.Header = make(http.Header)
	}
	for _, c := range r.Cookies() {
		pc.Cookies[c.Name] = c.Value
	}
	if r.MultipartForm != nil {
		for name, fhs := range r.MultipartForm.File {
			pc.Files[name] = fhs
		}
	}
	if s, ok := ctxkeys.Session(r.Context()); ok {
		pc.Session = s
	}
	return pc
}

// EmptyParentContext returns a parent with no inherited state.
func EmptyParentContext() *ParentContext {
	return &ParentContext{
		Header:  make(http.Header),
		Cookies: make(map[string]string),
		Server:  make(map[string]string),
		Files:   make(map[string][]*multipart.FileHeader),
	}
}

func serverVars(r *http.Request) map[string]string {
	vars := map[string]string{
		"REQUEST_METHOD":  r.Method,
		"SERVER_PROTOCOL": r.Proto,
		"HTTP_HOST":       r.Host,
		"REMOTE_ADDR":     r.RemoteAddr,
	}
	if r.URL != nil {
		vars["REQUEST_URI"] = r.URL.RequestURI()
		vars["QUERY_STRING"] = r.URL.RawQuery
	}
	if host, _, err := net.SplitHostPort(r.Host); err == nil {
		vars["SERVER_NAME"] = host
	} else {
		vars["SERVER_NAME"] = r.Host
	}
	if r.TLS != nil {
		vars["HTTPS"] = "on"
	}
	return vars
}
