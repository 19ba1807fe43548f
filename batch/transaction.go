package batch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"maps"
	"mime/multipart"
	"net/http"
	"sort"
	"strings"

	"github.com/BaSui01/batchgate/internal/ctxkeys"
	"github.com/BaSui01/batchgate/types"
)

// Transaction is one self-contained virtual sub-request. It is immutable
// after construction and constructing it never dispatches anything.
type Transaction struct {
	index   int
	method  string
	uri     string
	params  Params
	content []byte
	header  http.Header
	cookies map[string]string
	server  map[string]string
	files   map[string][]*multipart.FileHeader
	session any
}

// NewTransaction builds the virtual request for item. parent may be nil.
func NewTransaction(item EnvelopeItem, parent *ParentContext, parser *ParameterParser) *Transaction {
	if parent == nil {
		parent = EmptyParentContext()
	}
	if parser == nil {
		parser = NewParameterParser()
	}
	params, structured := parser.resolve(item)

	server := make(map[string]string, len(parent.Server)+1)
	maps.Copy(server, parent.Server)
	server["IS_INTERNAL"] = "true"

	return &Transaction{
		method:  item.EffectiveMethod(),
		uri:     normalizeURI(item.RelativeURL),
		params:  params,
		content: buildContent(params, item.Body, structured),
		header:  MergeHeaders(parent.Header, item.Headers),
		cookies: maps.Clone(parent.Cookies),
		server:  server,
		files:   selectFiles(parent.Files, item.AttachedFiles),
		session: parent.Session,
	}
}

// normalizeURI makes path-relative URLs like "me/photos" absolute-path.
func normalizeURI(relativeURL string) string {
	u := strings.TrimSpace(relativeURL)
	if strings.HasPrefix(u, "/") || strings.Contains(u, "://") {
		return u
	}
	return "/" + u
}

func buildContent(params Params, body any, structured bool) []byte {
	var v any = map[string]any{}
	switch {
	case structured:
		v = body
	case len(params) > 0:
		v = params
	case body != nil:
		v = body
	}
	content, err := marshalJSON(v)
	if err != nil {
		return []byte("{}")
	}
	return content
}

func selectFiles(files map[string][]*multipart.FileHeader, attached string) map[string][]*multipart.FileHeader {
	out := make(map[string][]*multipart.FileHeader)
	if attached == "" || len(files) == 0 {
		return out
	}
	for _, name := range strings.Split(attached, ",") {
		name = strings.TrimSpace(name)
		if fhs, ok := files[name]; ok && name != "" {
			out[name] = fhs
		}
	}
	return out
}

// Index is the position of the transaction in its envelope.
func (t *Transaction) Index() int { return t.index }

// Method returns the HTTP method.
func (t *Transaction) Method() string { return t.method }

// URI returns the request URI including any query string.
func (t *Transaction) URI() string { return t.uri }

// Params returns a copy of the resolved parameters.
func (t *Transaction) Params() Params { return t.params.Clone() }

// Content returns a copy of the JSON request content.
func (t *Transaction) Content() []byte { return bytes.Clone(t.content) }

// Header returns a copy of the merged headers.
func (t *Transaction) Header() http.Header { return t.header.Clone() }

// Cookies returns a copy of the inherited cookies.
func (t *Transaction) Cookies() map[string]string { return maps.Clone(t.cookies) }

// Server returns a copy of the server variables.
func (t *Transaction) Server() map[string]string { return maps.Clone(t.server) }

// Files returns a copy of the attached file subset.
func (t *Transaction) Files() map[string][]*multipart.FileHeader { return maps.Clone(t.files) }

// Session returns the session handle shared with the parent request.
func (t *Transaction) Session() any { return t.session }

// Request materializes the transaction as an *http.Request bound to ctx.
func (t *Transaction) Request(ctx context.Context) (*http.Request, error) {
	ctx = ctxkeys.WithInternal(ctx)
	ctx = ctxkeys.WithItemIndex(ctx, t.index)
	ctx = ctxkeys.WithServerVars(ctx, t.Server())
	ctx = ctxkeys.WithParams(ctx, t.Params())
	if t.session != nil {
		ctx = ctxkeys.WithSession(ctx, t.session)
	}

	req, err := http.NewRequestWithContext(ctx, t.method, t.uri, bytes.NewReader(t.content))
	if err != nil {
		return nil, fmt.Errorf("build request %s %s: %w", t.method, t.uri, err)
	}
	req.Header = t.Header()
	if host := req.Header.Get("Host"); host != "" {
		req.Host = host
	} else if host := t.server["HTTP_HOST"]; host != "" && req.URL.Host == "" {
		req.Host = host
	}
	req.RemoteAddr = t.server["REMOTE_ADDR"]

	if req.Header.Get("Cookie") == "" && len(t.cookies) > 0 {
		names := make([]string, 0, len(t.cookies))
		for name := range t.cookies {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			req.AddCookie(&http.Cookie{Name: name, Value: t.cookies[name]})
		}
	}
	if len(t.files) > 0 {
		req.MultipartForm = &multipart.Form{
			Value: make(map[string][]string),
			File:  t.Files(),
		}
	}
	return req, nil
}

// Dispatch runs the transaction through d. It never returns an error:
// routing failures become a 404 NotFound result and every other failure,
// including a panic, becomes a 500 InternalError result.
func (t *Transaction) Dispatch(ctx context.Context, d Dispatcher) (resp *Response) {
	defer func() {
		if r := recover(); r != nil {
			resp = itemErrorResponse(http.StatusInternalServerError, itemErrorInternal, fmt.Sprintf("panic: %v", r))
		}
	}()

	req, err := t.Request(ctx)
	if err != nil {
		return itemErrorResponse(http.StatusInternalServerError, itemErrorInternal, err.Error())
	}

	out, err := d.Dispatch(req.Context(), req)
	if err != nil {
		return failureResponse(err)
	}
	if out == nil {
		return itemErrorResponse(http.StatusInternalServerError, itemErrorInternal, "dispatcher returned no response")
	}
	if out.StatusCode == 0 {
		out.StatusCode = http.StatusOK
	}
	return out
}

const (
	itemErrorNotFound = "NotFound"
	itemErrorInternal = "InternalError"
)

type itemError struct {
	Error itemErrorBody `json:"error"`
}

type itemErrorBody struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func failureResponse(err error) *Response {
	if errors.Is(err, ErrRouteNotFound) || types.IsErrorCode(err, types.ErrRouteNotFound) {
		return itemErrorResponse(http.StatusNotFound, itemErrorNotFound, errorMessage(err))
	}
	return itemErrorResponse(http.StatusInternalServerError, itemErrorInternal, errorMessage(err))
}

func itemErrorResponse(status int, kind, message string) *Response {
	body, err := marshalJSON(itemError{Error: itemErrorBody{Type: kind, Message: message}})
	if err != nil {
		body = []byte(`{"error":{"type":"InternalError","message":"encode failure"}}`)
	}
	h := make(http.Header)
	h.Set("Content-Type", mediaTypeJSON)
	return &Response{StatusCode: status, Header: h, Body: body}
}

// errorMessage prefers the human message of a *types.Error.
func errorMessage(err error) string {
	if e, ok := types.AsError(err); ok && e.Message != "" {
		return e.Message
	}
	return err.Error()
}
