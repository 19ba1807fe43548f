package batch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderValue_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    HeaderValue
		wantErr bool
	}{
		{name: "string", input: `"abc"`, want: Scalar("abc")},
		{name: "number", input: `12`, want: Scalar("12")},
		{name: "bool", input: `true`, want: Scalar("true")},
		{name: "list", input: `["a", 2]`, want: List("a", "2")},
		{name: "null", input: `null`, want: HeaderValue{}},
		{name: "object", input: `{"a":1}`, wantErr: true},
		{name: "nested list", input: `[["a"]]`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got HeaderValue
			err := json.Unmarshal([]byte(tt.input), &got)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEnvelopeItem_EffectiveMethod(t *testing.T) {
	assert.Equal(t, "GET", EnvelopeItem{}.EffectiveMethod())
	assert.Equal(t, "POST", EnvelopeItem{Method: " post "}.EffectiveMethod())
}

func TestNewParentContext(t *testing.T) {
	session := &struct{ user string }{user: "alice"}
	r := httptest.NewRequest(http.MethodPost, "https://api.example.com:8443/api/v1/batch?include_headers=true", nil)
	r.Header.Set("Authorization", "Bearer x")
	r.AddCookie(&http.Cookie{Name: "sid", Value: "42"})
	r = r.WithContext(WithSession(context.Background(), session))

	pc := NewParentContext(r)

	assert.Equal(t, "Bearer x", pc.Header.Get("Authorization"))
	assert.Equal(t, "42", pc.Cookies["sid"])
	assert.Equal(t, "POST", pc.Server["REQUEST_METHOD"])
	assert.Equal(t, "api.example.com", pc.Server["SERVER_NAME"])
	assert.Equal(t, "/api/v1/batch?include_headers=true", pc.Server["REQUEST_URI"])
	assert.Equal(t, "on", pc.Server["HTTPS"])
	assert.Same(t, session, pc.Session)

	r.Header.Set("Authorization", "changed")
	assert.Equal(t, "Bearer x", pc.Header.Get("Authorization"), "snapshot is independent of the request")
}
