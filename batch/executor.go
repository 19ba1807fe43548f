package batch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const instrumentationName = "github.com/BaSui01/batchgate/batch"

// TransactionHandler runs one transaction through a dispatcher. A returned
// error aborts the remaining items; per-item failures are responses.
type TransactionHandler interface {
	HandleTransaction(ctx context.Context, tx *Transaction, d Dispatcher) (*Response, error)
}

// TransactionHandlerFunc adapts a function to TransactionHandler.
type TransactionHandlerFunc func(ctx context.Context, tx *Transaction, d Dispatcher) (*Response, error)

// HandleTransaction calls f.
func (f TransactionHandlerFunc) HandleTransaction(ctx context.Context, tx *Transaction, d Dispatcher) (*Response, error) {
	return f(ctx, tx, d)
}

// =============================================================================
// 🧵 TaskHandler
// =============================================================================

// TaskHandler runs every dispatch inside its own Task.
type TaskHandler struct {
	timeout time.Duration
	tracer  trace.Tracer
	latency metric.Float64Histogram
}

// TaskHandlerOption configures a TaskHandler.
type TaskHandlerOption func(*TaskHandler)

// WithItemTimeout bounds each dispatch. Zero means no bound.
func WithItemTimeout(d time.Duration) TaskHandlerOption {
	return func(h *TaskHandler) { h.timeout = d }
}

// WithTracerProvider sets the provider used for per-item spans.
func WithTracerProvider(tp trace.TracerProvider) TaskHandlerOption {
	return func(h *TaskHandler) {
		if tp != nil {
			h.tracer = tp.Tracer(instrumentationName)
		}
	}
}

// WithMeterProvider sets the provider used for the item latency histogram.
func WithMeterProvider(mp metric.MeterProvider) TaskHandlerOption {
	return func(h *TaskHandler) {
		if mp != nil {
			h.latency = newLatencyHistogram(mp)
		}
	}
}

// NewTaskHandler creates a TaskHandler using the global OTel providers
// unless overridden.
func NewTaskHandler(opts ...TaskHandlerOption) *TaskHandler {
	h := &TaskHandler{
		tracer:  otel.Tracer(instrumentationName),
		latency: newLatencyHistogram(otel.GetMeterProvider()),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func newLatencyHistogram(mp metric.MeterProvider) metric.Float64Histogram {
	hist, err := mp.Meter(instrumentationName).Float64Histogram(
		"batchgate.item.duration",
		metric.WithDescription("Sub-request dispatch latency"),
		metric.WithUnit("s"),
	)
	if err != nil {
		otel.Handle(err)
	}
	return hist
}

// HandleTransaction starts the task and drives it to completion.
func (h *TaskHandler) HandleTransaction(ctx context.Context, tx *Transaction, d Dispatcher) (*Response, error) {
	ctx, span := h.tracer.Start(ctx, "batch.item",
		trace.WithAttributes(
			attribute.Int("batch.item.index", tx.Index()),
			attribute.String("http.request.method", tx.Method()),
			attribute.String("url.path", tx.URI()),
		),
	)
	defer span.End()

	itemCtx := ctx
	if h.timeout > 0 {
		var cancel context.CancelFunc
		itemCtx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	start := time.Now()
	task := NewTask(func(c context.Context) *Response { return tx.Dispatch(c, d) })
	task.Start(itemCtx)

	var (
		resp *Response
		err  error
	)
	switch {
	case task.Suspended():
		resp, err = task.Resume(itemCtx)
	case task.Terminated():
		resp, err = task.Result()
	default:
		err = ErrInvalidTaskState
	}

	if err != nil {
		switch {
		case ctx.Err() != nil:
			span.SetStatus(codes.Error, "canceled")
			return nil, fmt.Errorf("item %d: %w", tx.Index(), ctx.Err())
		case errors.Is(err, context.DeadlineExceeded):
			resp = itemErrorResponse(http.StatusInternalServerError, itemErrorInternal,
				fmt.Sprintf("dispatch timed out after %s", h.timeout))
		default:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if resp.StatusCode >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
	}
	if h.latency != nil {
		h.latency.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(attribute.Int("http.response.status_code", resp.StatusCode)))
	}
	return resp, nil
}

// =============================================================================
// 📋 Scheduler
// =============================================================================

// EmitFunc receives results strictly in collection order.
type EmitFunc func(index int, tx *Transaction, resp *Response) error

// Scheduler maps a collection through a TransactionHandler.
type Scheduler struct {
	handler     TransactionHandler
	concurrency int
}

// NewScheduler creates a scheduler. concurrency <= 1 runs the items one
// after another.
func NewScheduler(handler TransactionHandler, concurrency int) *Scheduler {
	if handler == nil {
		handler = NewTaskHandler()
	}
	return &Scheduler{handler: handler, concurrency: concurrency}
}

// Concurrency returns the configured dispatch concurrency.
func (s *Scheduler) Concurrency() int { return s.concurrency }

// Run dispatches every transaction of c and emits each result in collection
// order. It stops at the first handler or emit error.
func (s *Scheduler) Run(ctx context.Context, c *TransactionCollection, d Dispatcher, emit EmitFunc) error {
	if s.concurrency <= 1 || c.Size() <= 1 {
		return s.runSequential(ctx, c, d, emit)
	}
	return s.runConcurrent(ctx, c, d, emit)
}

func (s *Scheduler) runSequential(ctx context.Context, c *TransactionCollection, d Dispatcher, emit EmitFunc) error {
	for i, tx := range c.All() {
		resp, err := s.handler.HandleTransaction(ctx, tx, d)
		if err != nil {
			return err
		}
		if err := emit(i, tx, resp); err != nil {
			return err
		}
	}
	return nil
}

type outcome struct {
	index int
	resp  *Response
}

// runConcurrent overlaps dispatches and re-sequences the results. At most
// window results are in flight or buffered at any time.
func (s *Scheduler) runConcurrent(ctx context.Context, c *TransactionCollection, d Dispatcher, emit EmitFunc) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	results := make(chan outcome, s.concurrency)
	window := make(chan struct{}, s.concurrency*4)
	var runErr error

	go func() {
	submit:
		for i, tx := range c.All() {
			select {
			case window <- struct{}{}:
			case <-gctx.Done():
				break submit
			}
			g.Go(func() error {
				resp, err := s.handler.HandleTransaction(gctx, tx, d)
				if err != nil {
					return err
				}
				select {
				case results <- outcome{index: i, resp: resp}:
					return nil
				case <-gctx.Done():
					return gctx.Err()
				}
			})
		}
		runErr = g.Wait()
		close(results)
	}()

	pending := make(map[int]*Response)
	next := 0
	for out := range results {
		pending[out.index] = out.resp
		for {
			resp, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			if err := emit(next, c.At(next), resp); err != nil {
				cancel()
				for range results {
				}
				return err
			}
			<-window
			next++
		}
	}
	if runErr != nil {
		return runErr
	}
	if next != c.Size() {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fmt.Errorf("scheduler emitted %d of %d results", next, c.Size())
	}
	return nil
}
