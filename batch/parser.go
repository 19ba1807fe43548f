package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/batchgate/internal/ctxkeys"
	"github.com/BaSui01/batchgate/internal/pool"
	"github.com/BaSui01/batchgate/types"
)

// =============================================================================
// 🎛️ 输出模式
// =============================================================================

// Mode selects how results are delivered.
type Mode string

const (
	ModeBuffered Mode = "buffered"
	ModeStreamed Mode = "streamed"
)

// ParseMode parses a configured mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeBuffered, "":
		return ModeBuffered, nil
	case ModeStreamed:
		return ModeStreamed, nil
	default:
		return "", fmt.Errorf("unknown batch mode %q", s)
	}
}

// =============================================================================
// 🚦 准入控制与观测接口
// =============================================================================

// Decision is the outcome of one admission request.
type Decision struct {
	Accepted   bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter admits or rejects n units of work for key in one step.
type Limiter interface {
	Consume(ctx context.Context, key string, n int) (Decision, error)
}

// Recorder receives batch level measurements.
type Recorder interface {
	RecordAdmission(accepted bool)
	RecordBatch(mode Mode, outcome string, size int, duration time.Duration)
	RecordItem(mode Mode, status int)
}

// Batch outcomes passed to Recorder.RecordBatch.
const (
	OutcomeOK          = "ok"
	OutcomeClientError = "client_error"
	OutcomeSystemError = "system_error"
	OutcomeAborted     = "aborted"
)

type nopRecorder struct{}

func (nopRecorder) RecordAdmission(bool) {}
func (nopRecorder) RecordBatch(Mode, string, int, time.Duration) {}
func (nopRecorder) RecordItem(Mode, int) {}

// =============================================================================
// 🧭 RequestParser
// =============================================================================

// Inbound is the transport-independent view of one batch request.
type Inbound struct {
	// Body is the raw JSON envelope.
	Body           []byte
	Parent         *ParentContext
	IncludeHeaders bool
	// ClientKey identifies the caller for admission control.
	ClientKey string
}

// RequestParser builds, admits and executes batches.
type RequestParser struct {
	dispatcher Dispatcher
	factory    *TransactionFactory
	handler    TransactionHandler
	scheduler  *Scheduler
	limiter    Limiter
	recorder   Recorder
	logger     *zap.Logger
	tracer     trace.Tracer

	concurrency int
	flushEvery  int
	itemTimeout time.Duration
}

// ParserOption configures a RequestParser.
type ParserOption func(*RequestParser)

// WithLimiter enables admission control.
func WithLimiter(l Limiter) ParserOption {
	return func(p *RequestParser) { p.limiter = l }
}

// WithRecorder sets the measurement sink.
func WithRecorder(r Recorder) ParserOption {
	return func(p *RequestParser) {
		if r != nil {
			p.recorder = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) ParserOption {
	return func(p *RequestParser) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithFactory replaces the envelope factory.
func WithFactory(f *TransactionFactory) ParserOption {
	return func(p *RequestParser) {
		if f != nil {
			p.factory = f
		}
	}
}

// WithTransactionHandler replaces the default TaskHandler.
func WithTransactionHandler(h TransactionHandler) ParserOption {
	return func(p *RequestParser) { p.handler = h }
}

// WithConcurrency sets how many items may be dispatched at once.
func WithConcurrency(n int) ParserOption {
	return func(p *RequestParser) { p.concurrency = n }
}

// WithFlushEvery sets the streaming flush cadence.
func WithFlushEvery(n int) ParserOption {
	return func(p *RequestParser) { p.flushEvery = n }
}

// WithDispatchTimeout bounds each item of the default TaskHandler.
func WithDispatchTimeout(d time.Duration) ParserOption {
	return func(p *RequestParser) { p.itemTimeout = d }
}

// NewRequestParser creates a parser dispatching through d.
func NewRequestParser(d Dispatcher, opts ...ParserOption) *RequestParser {
	p := &RequestParser{
		dispatcher: d,
		factory:    NewTransactionFactory(),
		recorder:   nopRecorder{},
		logger:     zap.NewNop(),
		tracer:     otel.Tracer(instrumentationName),
		flushEvery: DefaultFlushEvery,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.handler == nil {
		p.handler = NewTaskHandler(WithItemTimeout(p.itemTimeout))
	}
	p.scheduler = NewScheduler(p.handler, p.concurrency)
	p.logger = p.logger.With(zap.String("component", "batch"))
	return p
}

// Parse builds the collection and consumes admission for it. Nothing is
// dispatched.
func (p *RequestParser) Parse(ctx context.Context, in *Inbound) (*Batch, error) {
	id, ok := ctxkeys.BatchID(ctx)
	if !ok {
		id = uuid.NewString()
	}
	ctx, span := p.tracer.Start(ctx, "batch.parse", trace.WithAttributes(attribute.String("batch.id", id)))
	defer span.End()

	logger := p.logger.With(zap.String("batch_id", id))

	coll, err := p.factory.Create(in.Body, in.Parent)
	if err != nil {
		span.SetStatus(codes.Error, "invalid envelope")
		logger.Info("batch rejected", zap.Error(err))
		return nil, err
	}
	span.SetAttributes(attribute.Int("batch.size", coll.Size()))

	if err := p.admit(ctx, in.ClientKey, coll.Size()); err != nil {
		span.SetStatus(codes.Error, "admission")
		if StatusOf(err) >= http.StatusInternalServerError {
			logger.Error("batch admission failed", zap.Error(err))
		} else {
			logger.Info("batch rejected", zap.Int("size", coll.Size()), zap.Error(err))
		}
		return nil, err
	}

	return &Batch{
		id:             id,
		collection:     coll,
		includeHeaders: in.IncludeHeaders,
		parser:         p,
		logger:         logger,
	}, nil
}

func (p *RequestParser) admit(ctx context.Context, key string, size int) error {
	if p.limiter == nil {
		return nil
	}
	if key == "" {
		key = "anonymous"
	}
	decision, err := p.limiter.Consume(ctx, key, size)
	if err != nil {
		return types.NewError(types.ErrLimiterFailure, "rate limiter unavailable").
			WithCause(err).
			WithHTTPStatus(http.StatusInternalServerError)
	}
	p.recorder.RecordAdmission(decision.Accepted)
	if !decision.Accepted {
		return &retryAfterError{err: types.NewRateLimitError("Too many requests"), after: decision.RetryAfter}
	}
	return nil
}

// =============================================================================
// 📤 Batch
// =============================================================================

// Batch is an admitted envelope ready for execution.
type Batch struct {
	id             string
	collection     *TransactionCollection
	includeHeaders bool
	parser         *RequestParser
	logger         *zap.Logger
}

// ID returns the batch correlation id.
func (b *Batch) ID() string { return b.id }

// Size returns the number of items.
func (b *Batch) Size() int { return b.collection.Size() }

// Collection returns the admitted transactions.
func (b *Batch) Collection() *TransactionCollection { return b.collection }

// Results executes every item and returns the results in envelope order.
func (b *Batch) Results(ctx context.Context) ([]ExecutionResult, error) {
	return b.results(ctx, ModeBuffered)
}

func (b *Batch) results(ctx context.Context, mode Mode) ([]ExecutionResult, error) {
	results := make([]ExecutionResult, 0, b.Size())
	err := b.run(ctx, mode, func(res ExecutionResult) error {
		results = append(results, res)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (b *Batch) run(ctx context.Context, mode Mode, emit func(ExecutionResult) error) error {
	p := b.parser
	return p.scheduler.Run(ctx, b.collection, p.dispatcher, func(i int, tx *Transaction, resp *Response) error {
		res := BuildResult(resp, b.includeHeaders)
		p.recorder.RecordItem(mode, res.Code)
		if res.Code >= http.StatusInternalServerError {
			b.logger.Warn("batch item failed",
				zap.Int("index", i),
				zap.String("method", tx.Method()),
				zap.String("uri", tx.URI()),
				zap.Int("code", res.Code),
			)
		}
		return emit(res)
	})
}

// WriteBuffered executes the batch and writes all results as one JSON array.
func (b *Batch) WriteBuffered(ctx context.Context, w http.ResponseWriter) error {
	start := time.Now()
	ctx, span := b.startSpan(ctx, ModeBuffered)
	defer span.End()

	results, err := b.results(ctx, ModeBuffered)
	if err != nil {
		b.fail(span, ModeBuffered, start, err)
		WriteError(w, err, ModeBuffered)
		return err
	}

	buf := pool.ByteBufferPool.Get()
	defer pool.ByteBufferPool.Put(buf)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(results); err != nil {
		err = types.NewInternalError("encode batch results", err)
		b.fail(span, ModeBuffered, start, err)
		WriteError(w, err, ModeBuffered)
		return err
	}

	w.Header().Set("Content-Type", mediaTypeJSON)
	w.WriteHeader(http.StatusOK)
	_, err = w.Write(buf.Bytes())
	b.done(ModeBuffered, start, err)
	return err
}

// WriteStreamed executes the batch and streams each result as soon as it
// is available.
func (b *Batch) WriteStreamed(ctx context.Context, w http.ResponseWriter) error {
	start := time.Now()
	ctx, span := b.startSpan(ctx, ModeStreamed)
	defer span.End()

	h := w.Header()
	h.Set("Content-Type", mediaTypeJSON)
	h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	h.Set("Pragma", "no-cache")
	h.Set("Expires", "0")
	w.WriteHeader(http.StatusOK)

	sw := NewStreamWriter(w, b.parser.flushEvery)
	if err := sw.Open(); err != nil {
		b.done(ModeStreamed, start, err)
		return err
	}
	err := b.run(ctx, ModeStreamed, func(res ExecutionResult) error {
		return sw.WriteItem(res)
	})
	if err != nil {
		if werr := sw.Err(); werr != nil {
			b.logger.Info("batch stream aborted by client", zap.Int("written", sw.Written()), zap.Error(werr))
			b.done(ModeStreamed, start, werr)
			return werr
		}
		b.fail(span, ModeStreamed, start, err)
		_ = sw.Fail(errorMessage(err))
		return err
	}
	err = sw.Close()
	b.done(ModeStreamed, start, err)
	return err
}

func (b *Batch) startSpan(ctx context.Context, mode Mode) (context.Context, trace.Span) {
	return b.parser.tracer.Start(ctx, "batch.execute", trace.WithAttributes(
		attribute.String("batch.id", b.id),
		attribute.String("batch.mode", string(mode)),
		attribute.Int("batch.size", b.Size()),
	))
}

func (b *Batch) fail(span trace.Span, mode Mode, start time.Time, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	outcome := OutcomeSystemError
	if status := StatusOf(err); status >= 400 && status < 500 {
		outcome = OutcomeClientError
	}
	b.parser.recorder.RecordBatch(mode, outcome, b.Size(), time.Since(start))
	b.logger.Error("batch execution failed", zap.String("mode", string(mode)), zap.Error(err))
}

func (b *Batch) done(mode Mode, start time.Time, err error) {
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeAborted
	}
	elapsed := time.Since(start)
	b.parser.recorder.RecordBatch(mode, outcome, b.Size(), elapsed)
	b.logger.Debug("batch completed",
		zap.String("mode", string(mode)),
		zap.Int("size", b.Size()),
		zap.String("outcome", outcome),
		zap.Duration("elapsed", elapsed),
	)
}

// Write executes the batch in the given mode.
func (b *Batch) Write(ctx context.Context, w http.ResponseWriter, mode Mode) error {
	if mode == ModeStreamed {
		return b.WriteStreamed(ctx, w)
	}
	return b.WriteBuffered(ctx, w)
}
