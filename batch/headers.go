package batch

import (
	"net/http"
	"net/textproto"
	"slices"
	"sort"

	"golang.org/x/net/http/httpguts"
)

// The parent's framing headers describe the envelope, not the sub-request
// content, so they are never inherited.
var uninheritedHeaders = []string{"Content-Length", "Content-Type", "Transfer-Encoding"}

// MergeHeaders overlays item on parent and returns a new header map. List
// values append to the inherited values, scalar values replace them. Names
// are canonicalized and invalid names or values are dropped. Content-Type
// is application/json unless item sets it. Neither input is modified.
func MergeHeaders(parent http.Header, item ItemHeaders) http.Header {
	out := make(http.Header, len(parent)+len(item)+1)
	for name, values := range parent {
		if !httpguts.ValidHeaderFieldName(name) {
			continue
		}
		key := textproto.CanonicalMIMEHeaderKey(name)
		out[key] = append(out[key], validValues(values)...)
	}
	for _, name := range uninheritedHeaders {
		delete(out, name)
	}

	// sorted so that names differing only in case merge deterministically
	names := make([]string, 0, len(item))
	for name := range item {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if !httpguts.ValidHeaderFieldName(name) {
			continue
		}
		hv := item[name]
		key := textproto.CanonicalMIMEHeaderKey(name)
		values := validValues(hv.Values)
		if hv.List {
			out[key] = append(out[key], values...)
			continue
		}
		if len(values) == 0 {
			continue
		}
		out[key] = values[:1]
	}

	if out.Get("Content-Type") == "" {
		out.Set("Content-Type", mediaTypeJSON)
	}
	return out
}

func validValues(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if httpguts.ValidHeaderFieldValue(v) {
			out = append(out, v)
		}
	}
	return slices.Clip(out)
}
