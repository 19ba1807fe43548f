package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/BaSui01/batchgate/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSON(w, http.StatusAccepted, map[string]string{"k": "v"})

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.JSONEq(t, `{"k":"v"}`, w.Body.String())
}

func TestWriteSuccess(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccess(w, []int{1, 2})

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Nil(t, resp.Error)
	assert.Equal(t, []any{float64(1), float64(2)}, resp.Data)
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        *types.Error
		wantStatus int
		wantCode   string
	}{
		{"explicit status", types.NewInvalidRequestError("bad"), http.StatusBadRequest, "INVALID_REQUEST"},
		{"status from code", types.NewError(types.ErrForbidden, "no"), http.StatusForbidden, "FORBIDDEN"},
		{"unknown code", types.NewError(types.ErrLimiterFailure, "x"), http.StatusInternalServerError, "LIMITER_FAILURE"},
		{"retryable", types.NewRateLimitError("slow down"), http.StatusTooManyRequests, "RATE_LIMITED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, tt.err, zaptest.NewLogger(t))

			assert.Equal(t, tt.wantStatus, w.Code)
			var resp Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.Equal(t, tt.err.Message, resp.Error.Message)
			assert.Equal(t, tt.err.Retryable, resp.Error.Retryable)
		})
	}
}

func TestWriteErrorMessage_NilLogger(t *testing.T) {
	w := httptest.NewRecorder()
	WriteErrorMessage(w, http.StatusUnauthorized, types.ErrUnauthorized, "missing token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "missing token")
}

func TestReadBody(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		limit    int64
		wantErr  types.ErrorCode
		wantBody string
	}{
		{name: "within limit", body: `[{"method":"GET"}]`, limit: 64, wantBody: `[{"method":"GET"}]`},
		{name: "unlimited", body: strings.Repeat("a", 1024), limit: 0, wantBody: strings.Repeat("a", 1024)},
		{name: "exactly limit", body: "12345", limit: 5, wantBody: "12345"},
		{name: "over limit", body: "123456", limit: 5, wantErr: types.ErrPayloadTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))

			body, err := ReadBody(w, r, tt.limit)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, types.IsErrorCode(err, tt.wantErr))
				assert.Equal(t, http.StatusRequestEntityTooLarge, types.HTTPStatusOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBody, string(body))
		})
	}
}

func TestReadBody_NoBody(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	body, err := ReadBody(httptest.NewRecorder(), r, 10)
	require.NoError(t, err)
	assert.Empty(t, body)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("reset by peer") }

func TestReadBody_ReadFailure(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", failingReader{})
	_, err := ReadBody(httptest.NewRecorder(), r, 0)
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidRequest))
}

func TestResponseWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := NewResponseWriter(rec)

	assert.Equal(t, http.StatusOK, rw.StatusCode)

	rw.WriteHeader(http.StatusTeapot)
	rw.WriteHeader(http.StatusInternalServerError)
	n, err := rw.Write([]byte("hello"))
	require.NoError(t, err)

	assert.Equal(t, 5, n)
	assert.Equal(t, http.StatusTeapot, rw.StatusCode)
	assert.Equal(t, int64(5), rw.BytesWritten)
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Same(t, rec, rw.Unwrap())
}

func TestResponseWriter_Flush(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := NewResponseWriter(rec)

	rw.Flush()

	assert.True(t, rec.Flushed)
	assert.True(t, rw.Written)
	assert.Equal(t, http.StatusOK, rec.Code)
}
