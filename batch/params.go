package batch

import (
	"maps"
	"net/url"
	"strconv"
	"strings"
)

// Params is the resolved parameter map of one sub-request.
type Params map[string]any

// Clone returns a shallow copy.
func (p Params) Clone() Params {
	if p == nil {
		return nil
	}
	return maps.Clone(p)
}

const (
	mediaTypeForm = "application/x-www-form-urlencoded"
)

// ParameterParser resolves the parameter map of an envelope item from its
// query string and payload. The zero value is ready to use.
type ParameterParser struct{}

// NewParameterParser creates a ParameterParser.
func NewParameterParser() *ParameterParser {
	return &ParameterParser{}
}

// Parse never fails. Unparseable input simply contributes nothing.
func (p *ParameterParser) Parse(item EnvelopeItem) Params {
	params, _ := p.resolve(item)
	return params
}

// resolve reports whether the body is a structured JSON value. Such a body
// is the request content verbatim and the query string is ignored.
func (p *ParameterParser) resolve(item EnvelopeItem) (Params, bool) {
	payload, structured := p.payload(item)
	if structured {
		return payload, true
	}
	query := p.query(item.RelativeURL)

	out := make(Params, len(payload)+len(query))
	maps.Copy(out, payload)
	// query wins on conflict
	maps.Copy(out, query)
	return out, false
}

// ParseParameters resolves item with the default parser.
func ParseParameters(item EnvelopeItem) Params {
	return (&ParameterParser{}).Parse(item)
}

// query parses the query string of relativeURL. A URL with no '?', or with
// more than one, yields no query parameters.
func (p *ParameterParser) query(relativeURL string) Params {
	parts := strings.Split(relativeURL, "?")
	if len(parts) != 2 || parts[1] == "" {
		return nil
	}
	return parseQueryString(parts[1])
}

// payload returns the body contribution and whether it short-circuits the
// query merge. A JSON list short-circuits with no parameters.
func (p *ParameterParser) payload(item EnvelopeItem) (Params, bool) {
	if item.Body == nil || item.ContentType == "" {
		return nil, false
	}
	switch mediaType(item.ContentType) {
	case mediaTypeJSON:
		switch body := item.Body.(type) {
		case map[string]any:
			return Params(body), true
		case []any:
			return nil, true
		}
	case mediaTypeForm:
		if s, ok := item.Body.(string); ok {
			return decodeFormValues(parseQueryString(s)), false
		}
	}
	return nil, false
}

// decodeFormValues JSON-decodes every top-level string value, keeping the
// raw string when it is not valid JSON.
func decodeFormValues(form Params) Params {
	for k, v := range form {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if decoded, err := decodeJSON([]byte(s)); err == nil {
			form[k] = decoded
		}
	}
	return form
}

// =============================================================================
// 🔧 查询串解析（方括号约定）
// =============================================================================

// parseQueryString decodes a URL-encoded string using bracket conventions:
// "a[]=1&a[]=2" yields a list, "a[b]=1" a nested map, and repeated plain
// keys keep the last value.
func parseQueryString(qs string) Params {
	out := make(Params)
	for _, pair := range strings.Split(qs, "&") {
		if pair == "" {
			continue
		}
		rawKey, rawValue, _ := strings.Cut(pair, "=")
		key := unescape(rawKey)
		if key == "" {
			continue
		}
		setParam(out, key, unescape(rawValue))
	}
	return out
}

func unescape(s string) string {
	if u, err := url.QueryUnescape(s); err == nil {
		return u
	}
	return s
}

func setParam(dst Params, key, value string) {
	base, segments, ok := splitBracketKey(key)
	if !ok {
		dst[key] = value
		return
	}
	dst[base] = assignPath(dst[base], segments, value)
}

// splitBracketKey splits "a[b][]" into "a" and ["b", ""]. Keys without a
// well-formed bracket suffix report ok=false.
func splitBracketKey(key string) (string, []string, bool) {
	open := strings.IndexByte(key, '[')
	if open <= 0 {
		return "", nil, false
	}
	base, rest := key[:open], key[open:]
	var segments []string
	for len(rest) > 0 {
		if rest[0] != '[' {
			return "", nil, false
		}
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return "", nil, false
		}
		segments = append(segments, rest[1:end])
		rest = rest[end+1:]
	}
	return base, segments, true
}

func assignPath(current any, segments []string, value string) any {
	if len(segments) == 0 {
		return value
	}
	seg, rest := segments[0], segments[1:]
	if seg == "" {
		list, _ := current.([]any)
		return append(list, assignPath(nil, rest, value))
	}
	m, ok := current.(map[string]any)
	if !ok {
		m = listToMap(current)
	}
	m[seg] = assignPath(m[seg], rest, value)
	return m
}

// listToMap converts a previously built list into an index-keyed map so that
// mixed "a[]" and "a[k]" keys keep every value.
func listToMap(current any) map[string]any {
	m := make(map[string]any)
	if list, ok := current.([]any); ok {
		for i, v := range list {
			m[strconv.Itoa(i)] = v
		}
	}
	return m
}
