package batch

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/BaSui01/batchgate/types"
)

// Error presentation types of the top-level error envelope.
const (
	ErrorTypeClient     = "client_error"
	ErrorTypeSystem     = "system_error"
	ErrorTypeValidation = "validation_error"
	ErrorTypeMethod     = "method_error"
	ErrorTypeRouting    = "routing_error"
)

// ErrorDetail is one entry of ErrorEnvelope.Errors.
type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// ErrorEnvelope is the body of every failure that happens before dispatch.
type ErrorEnvelope struct {
	Result string        `json:"result"`
	Errors []ErrorDetail `json:"errors"`
}

// StatusOf returns the HTTP status carried by err, or 500.
func StatusOf(err error) int {
	return types.HTTPStatusOf(err)
}

// ErrorTypeFor maps a status to its presentation type. Buffered responses
// distinguish client from system errors; streamed responses name the class
// of client error.
func ErrorTypeFor(status int, mode Mode) string {
	if mode == ModeStreamed {
		switch status {
		case http.StatusBadRequest:
			return ErrorTypeValidation
		case http.StatusMethodNotAllowed:
			return ErrorTypeMethod
		case http.StatusNotFound:
			return ErrorTypeRouting
		default:
			return ErrorTypeSystem
		}
	}
	if status >= 400 && status < 500 {
		return ErrorTypeClient
	}
	return ErrorTypeSystem
}

// NewErrorEnvelope builds the envelope for err and returns it with its
// status.
func NewErrorEnvelope(err error, mode Mode) (int, ErrorEnvelope) {
	status := StatusOf(err)
	return status, ErrorEnvelope{
		Result: "error",
		Errors: []ErrorDetail{{Message: errorMessage(err), Type: ErrorTypeFor(status, mode)}},
	}
}

// WriteError writes the error envelope for err, with Retry-After when the
// error carries one.
func WriteError(w http.ResponseWriter, err error, mode Mode) {
	status, env := NewErrorEnvelope(err, mode)
	body, encErr := marshalJSON(env)
	if encErr != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"result":"error","errors":[{"message":"internal error","type":"system_error"}]}`)
	}
	w.Header().Set("Content-Type", mediaTypeJSON)
	if d, ok := RetryAfter(err); ok {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(d.Seconds()))))
	}
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// retryAfterError attaches a retry delay to an admission rejection.
type retryAfterError struct {
	err   *types.Error
	after time.Duration
}

func (e *retryAfterError) Error() string { return e.err.Error() }
func (e *retryAfterError) Unwrap() error { return e.err }

// RetryAfter reports the retry delay carried by err.
func RetryAfter(err error) (time.Duration, bool) {
	var ra *retryAfterError
	if errors.As(err, &ra) && ra.after > 0 {
		return ra.after, true
	}
	return 0, false
}
