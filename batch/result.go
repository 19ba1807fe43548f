package batch

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
)

// emptyBody is what an undecodable or empty JSON body is reported as.
var emptyBody = json.RawMessage("[]")

// ExecutionResult is the per-item entry of the batch response.
type ExecutionResult struct {
	Code    int            `json:"code"`
	Body    any            `json:"body"`
	Headers map[string]any `json:"headers,omitempty"`
}

// BuildResult converts a dispatch response into its result entry. Headers
// are included only when includeHeaders is set.
func BuildResult(resp *Response, includeHeaders bool) ExecutionResult {
	if resp == nil {
		resp = itemErrorResponse(http.StatusInternalServerError, itemErrorInternal, "missing response")
	}
	code := resp.StatusCode
	if code == 0 {
		code = http.StatusOK
	}

	headers := flattenHeaders(resp.Header)
	contentType, _ := headers["content-type"].(string)

	res := ExecutionResult{Code: code, Body: ParseResultBody(contentType, resp.Body)}
	if includeHeaders {
		res.Headers = headers
	}
	return res
}

// ParseResultBody returns structured JSON for JSON media types, "[]" when a
// JSON body is empty or invalid, and the raw text otherwise.
func ParseResultBody(contentType string, body []byte) any {
	if !isJSONMediaType(contentType) {
		return string(body)
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || !json.Valid(trimmed) {
		return emptyBody
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return emptyBody
	}
	return json.RawMessage(buf.Bytes())
}

// flattenHeaders lower-cases names, keeps the last value of multi-valued
// headers, turns "true"/"false" into booleans and defaults content-type to
// application/json.
func flattenHeaders(h http.Header) map[string]any {
	out := make(map[string]any, len(h)+1)
	for name, values := range h {
		if len(values) == 0 {
			continue
		}
		last := values[len(values)-1]
		var v any = last
		switch last {
		case "true":
			v = true
		case "false":
			v = false
		}
		out[strings.ToLower(name)] = v
	}
	if _, ok := out["content-type"]; !ok {
		out["content-type"] = mediaTypeJSON
	}
	return out
}
