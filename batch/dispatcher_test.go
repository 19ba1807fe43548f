package batch_test

import (
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/batchgate/batch"
	"github.com/BaSui01/batchgate/testutil"
	"github.com/BaSui01/batchgate/testutil/fixtures"
)

func newRouteTable() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /users/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Internal", boolString(batch.IsInternal(r.Context())))
		_, _ = io.WriteString(w, `{"id":"`+r.PathValue("id")+`"}`)
	})
	mux.HandleFunc("POST /users", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write(body)
	})
	return mux
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func TestHandlerDispatcher(t *testing.T) {
	d := batch.NewHandlerDispatcher(newRouteTable())

	tests := []struct {
		name     string
		item     batch.EnvelopeItem
		wantCode int
		wantBody string
	}{
		{name: "path value", item: fixtures.GetItem("/users/42"), wantCode: 200, wantBody: `{"id":"42"}`},
		{name: "post echoes content", item: fixtures.JSONItem("POST", "/users", map[string]any{"n": "x"}), wantCode: 201, wantBody: `{"n":"x"}`},
		{name: "unknown route", item: fixtures.GetItem("/missing"), wantCode: 404, wantBody: `{"error":{"type":"NotFound","message":"route not found: GET /missing"}}`},
		{name: "method mismatch is not a missing route", item: fixtures.JSONItem("DELETE", "/users", nil), wantCode: 405},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := batch.NewTransaction(tt.item, nil, nil)
			resp := tx.Dispatch(testutil.TestContext(t), d)

			require.NotNil(t, resp)
			assert.Equal(t, tt.wantCode, resp.StatusCode)
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, string(resp.Body))
			}
		})
	}
}

func TestHandlerDispatcher_MarksInternal(t *testing.T) {
	d := batch.NewHandlerDispatcher(newRouteTable())
	tx := batch.NewTransaction(fixtures.GetItem("/users/1"), nil, nil)

	resp := tx.Dispatch(testutil.TestContext(t), d)

	assert.Equal(t, "true", resp.Header.Get("X-Internal"))
}

func TestHandlerDispatcher_PlainHandler(t *testing.T) {
	d := batch.NewHandlerDispatcher(http.NotFoundHandler())
	tx := batch.NewTransaction(fixtures.GetItem("/anything"), nil, nil)

	resp := tx.Dispatch(testutil.TestContext(t), d)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "non-mux handlers answer for themselves")
	assert.Equal(t, "404 page not found\n", string(resp.Body))
}
