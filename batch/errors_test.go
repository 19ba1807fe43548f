package batch

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/batchgate/types"
)

func TestErrorTypeFor(t *testing.T) {
	tests := []struct {
		status   int
		buffered string
		streamed string
	}{
		{http.StatusBadRequest, ErrorTypeClient, ErrorTypeValidation},
		{http.StatusNotFound, ErrorTypeClient, ErrorTypeRouting},
		{http.StatusMethodNotAllowed, ErrorTypeClient, ErrorTypeMethod},
		{http.StatusTooManyRequests, ErrorTypeClient, ErrorTypeSystem},
		{http.StatusInternalServerError, ErrorTypeSystem, ErrorTypeSystem},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.buffered, ErrorTypeFor(tt.status, ModeBuffered))
			assert.Equal(t, tt.streamed, ErrorTypeFor(tt.status, ModeStreamed))
		})
	}
}

func TestNewErrorEnvelope(t *testing.T) {
	status, env := NewErrorEnvelope(types.NewInvalidRequestError("Invalid request: bad"), ModeBuffered)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, ErrorEnvelope{
		Result: "error",
		Errors: []ErrorDetail{{Message: "Invalid request: bad", Type: ErrorTypeClient}},
	}, env)

	status, env = NewErrorEnvelope(fmt.Errorf("wrapped: %w", errors.New("disk on fire")), ModeStreamed)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, ErrorTypeSystem, env.Errors[0].Type)
	assert.Equal(t, "wrapped: disk on fire", env.Errors[0].Message)
}

func TestWriteError_RetryAfter(t *testing.T) {
	err := &retryAfterError{err: types.NewRateLimitError("Too many requests"), after: 1500 * time.Millisecond}
	rec := httptest.NewRecorder()

	WriteError(rec, err, ModeBuffered)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"result":"error","errors":[{"message":"Too many requests","type":"client_error"}]}`, rec.Body.String())

	d, ok := RetryAfter(fmt.Errorf("outer: %w", err))
	require.True(t, ok)
	assert.Equal(t, 1500*time.Millisecond, d)
	assert.True(t, types.IsErrorCode(err, types.ErrRateLimited))
}
