package batch

import (
	"encoding/json"
	"net/url"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestParseParameters_Query(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want Params
	}{
		{name: "no query", url: "/users", want: Params{}},
		{name: "empty query", url: "/users?", want: Params{}},
		{name: "simple", url: "/users?limit=10&sort=name", want: Params{"limit": "10", "sort": "name"}},
		{name: "last value wins", url: "/users?a=1&a=2", want: Params{"a": "2"}},
		{name: "list", url: "/users?id[]=1&id[]=2", want: Params{"id": []any{"1", "2"}}},
		{name: "nested", url: "/users?filter[name]=bob&filter[age]=3", want: Params{"filter": map[string]any{"name": "bob", "age": "3"}}},
		{name: "nested list", url: "/q?f[tags][]=a&f[tags][]=b", want: Params{"f": map[string]any{"tags": []any{"a", "b"}}}},
		{name: "escaped", url: "/q?name=J%C3%B6rg+M", want: Params{"name": "Jörg M"}},
		{name: "key without value", url: "/q?flag", want: Params{"flag": ""}},
		{name: "two question marks", url: "/q?a=1?b=2", want: Params{}},
		{name: "unbalanced bracket is literal", url: "/q?a[b=1", want: Params{"a[b": "1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseParameters(EnvelopeItem{RelativeURL: tt.url})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseParameters_FormBody(t *testing.T) {
	item := EnvelopeItem{
		Method:      "POST",
		RelativeURL: "/messages?to=carol",
		ContentType: "application/x-www-form-urlencoded",
		Body:        `to=bob&count=3&meta=%7B%22k%22%3A1%7D&text=hello&flags[]=a`,
	}

	got := ParseParameters(item)

	assert.Equal(t, "carol", got["to"], "query wins on conflict")
	assert.Equal(t, json.Number("3"), got["count"])
	assert.Equal(t, map[string]any{"k": json.Number("1")}, got["meta"])
	assert.Equal(t, "hello", got["text"], "invalid JSON keeps the raw string")
	assert.Equal(t, []any{"a"}, got["flags"], "only top-level strings are decoded")
}

func TestParseParameters_JSONBodyShortCircuits(t *testing.T) {
	body := map[string]any{"name": "bob"}
	item := EnvelopeItem{
		Method:      "POST",
		RelativeURL: "/users?name=carol&extra=1",
		ContentType: "application/json; charset=utf-8",
		Body:        body,
	}

	got := ParseParameters(item)

	assert.Equal(t, Params{"name": "bob"}, got)
}

func TestParseParameters_JSONListShortCircuits(t *testing.T) {
	item := EnvelopeItem{
		Method:      "POST",
		RelativeURL: "/x?a=1",
		ContentType: "application/json",
		Body:        []any{json.Number("1"), json.Number("2")},
	}

	params, structured := NewParameterParser().resolve(item)

	assert.True(t, structured)
	assert.Empty(t, params, "a list has no named parameters and the query is ignored")
}

func TestParseParameters_PayloadIgnored(t *testing.T) {
	tests := []struct {
		name string
		item EnvelopeItem
	}{
		{name: "no content type", item: EnvelopeItem{RelativeURL: "/u?a=1", Body: map[string]any{"b": "2"}}},
		{name: "form with object body", item: EnvelopeItem{RelativeURL: "/u?a=1", ContentType: "application/x-www-form-urlencoded", Body: map[string]any{"b": "2"}}},
		{name: "unknown type", item: EnvelopeItem{RelativeURL: "/u?a=1", ContentType: "text/plain", Body: "b=2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, Params{"a": "1"}, ParseParameters(tt.item))
		})
	}
}

// The payload is the base map and query keys override it.
func TestProperty_ParseParameters_QueryOverridesForm(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("query keys win and form-only keys survive", prop.ForAll(
		func(form, query map[string]string) bool {
			formValues := url.Values{}
			for k, v := range form {
				formValues.Set(k, "v"+v)
			}
			queryValues := url.Values{}
			for k, v := range query {
				queryValues.Set(k, "q"+v)
			}
			relativeURL := "/resource"
			if len(queryValues) > 0 {
				relativeURL += "?" + queryValues.Encode()
			}

			got := ParseParameters(EnvelopeItem{
				Method:      "POST",
				RelativeURL: relativeURL,
				ContentType: "application/x-www-form-urlencoded",
				Body:        formValues.Encode(),
			})

			for k := range query {
				if got[k] != "q"+query[k] {
					return false
				}
			}
			for k := range form {
				if _, inQuery := query[k]; inQuery {
					continue
				}
				if got[k] != "v"+form[k] {
					return false
				}
			}
			return len(got) == len(unionKeys(form, query))
		},
		gen.MapOf(gen.Identifier(), gen.AlphaString()),
		gen.MapOf(gen.Identifier(), gen.AlphaString()),
	))

	properties.Property("JSON object bodies ignore the query", prop.ForAll(
		func(body map[string]string, query map[string]string) bool {
			obj := make(map[string]any, len(body))
			for k, v := range body {
				obj[k] = v
			}
			queryValues := url.Values{}
			for k, v := range query {
				queryValues.Set(k, v)
			}
			got := ParseParameters(EnvelopeItem{
				RelativeURL: "/r?" + queryValues.Encode(),
				ContentType: "application/json",
				Body:        obj,
			})
			return len(got) == len(obj)
		},
		gen.MapOf(gen.Identifier(), gen.AlphaString()),
		gen.MapOf(gen.Identifier(), gen.AlphaString()),
	))

	properties.TestingRun(t)
}

func unionKeys(a, b map[string]string) map[string]struct{} {
	out := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		out[k] = struct{}{}
	}
	for k := range b {
		out[k] = struct{}{}
	}
	return out
}
