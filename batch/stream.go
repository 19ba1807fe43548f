package batch

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/BaSui01/batchgate/internal/pool"
)

// DefaultFlushEvery is the number of streamed items between flushes.
const DefaultFlushEvery = 1000

type streamState int

const (
	streamNotStarted streamState = iota
	streamStreaming
	streamClosed
)

// StreamWriter writes a JSON array incrementally. Close is the terminal
// transition from any state, so the array is always well formed.
type StreamWriter struct {
	w          io.Writer
	flush      func() error
	flushEvery int
	state      streamState
	written    int
	err        error
}

// NewStreamWriter creates a writer on w. When w is an http.ResponseWriter
// it is flushed every flushEvery items; flushEvery <= 0 uses
// DefaultFlushEvery.
func NewStreamWriter(w io.Writer, flushEvery int) *StreamWriter {
	if flushEvery <= 0 {
		flushEvery = DefaultFlushEvery
	}
	sw := &StreamWriter{w: w, flushEvery: flushEvery, flush: func() error { return nil }}
	switch fw := w.(type) {
	case http.ResponseWriter:
		rc := http.NewResponseController(fw)
		sw.flush = func() error {
			if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
				return err
			}
			return nil
		}
	case http.Flusher:
		sw.flush = func() error { fw.Flush(); return nil }
	}
	return sw
}

// Written returns the number of items written.
func (s *StreamWriter) Written() int { return s.written }

// Err returns the first write error, typically a disconnected client.
func (s *StreamWriter) Err() error { return s.err }

// Open writes the opening bracket and flushes it.
func (s *StreamWriter) Open() error {
	if s.state != streamNotStarted {
		return s.err
	}
	s.state = streamStreaming
	s.write([]byte("["))
	s.doFlush()
	return s.err
}

// WriteItem encodes v as the next array element.
func (s *StreamWriter) WriteItem(v any) error {
	if s.state == streamClosed {
		return errors.New("stream is closed")
	}
	if err := s.Open(); err != nil {
		return err
	}

	buf := pool.ByteBufferPool.Get()
	defer pool.ByteBufferPool.Put(buf)
	if s.written > 0 {
		buf.WriteByte(',')
	}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	// drop the encoder's trailing newline
	buf.Truncate(buf.Len() - 1)

	s.write(buf.Bytes())
	if s.err != nil {
		return s.err
	}
	s.written++
	if s.written%s.flushEvery == 0 {
		s.doFlush()
	}
	return s.err
}

// Fail appends a trailing {"error": message} element and closes the array.
func (s *StreamWriter) Fail(message string) error {
	if s.state == streamClosed {
		return s.err
	}
	_ = s.Open()
	elem, _ := marshalJSON(map[string]string{"error": message})
	if s.written > 0 {
		s.write([]byte(","))
	}
	s.write(elem)
	return s.Close()
}

// Close writes the closing bracket and flushes. Closing twice is a no-op.
func (s *StreamWriter) Close() error {
	if s.state == streamClosed {
		return s.err
	}
	if s.state == streamNotStarted {
		s.write([]byte("["))
	}
	s.write([]byte("]"))
	s.state = streamClosed
	s.doFlush()
	return s.err
}

func (s *StreamWriter) write(p []byte) {
	if s.err != nil {
		return
	}
	_, s.err = s.w.Write(p)
}

func (s *StreamWriter) doFlush() {
	if s.err != nil {
		return
	}
	s.err = s.flush()
}
