package handlers

import (
	"errors"
	"mime"
	"net"
	"net/http"

	"github.com/BaSui01/batchgate/batch"
	"github.com/BaSui01/batchgate/internal/ctxkeys"
	"github.com/BaSui01/batchgate/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// =============================================================================
// 📦 批处理 Handler
// =============================================================================

const (
	// BatchIDHeader 回写给调用方的批次 ID
	BatchIDHeader = "X-Batch-ID"

	maxMultipartMemory = 32 << 20
)

// envelopeFields 表单请求中承载信封的字段，按顺序查找
var envelopeFields = []string{"batch", "data"}

// BatchHandler 将入站 HTTP 请求转换为 batch.Inbound 并写回结果
type BatchHandler struct {
	parser         *batch.RequestParser
	mode           batch.Mode
	maxBodyBytes   int64
	includeHeaders bool
	logger         *zap.Logger
}

// BatchHandlerOption 配置 BatchHandler
type BatchHandlerOption func(*BatchHandler)

// WithDefaultMode 设置 HandleBatch 使用的输出模式
func WithDefaultMode(mode batch.Mode) BatchHandlerOption {
	return func(h *BatchHandler) { h.mode = mode }
}

// WithMaxBodyBytes 限制请求体大小
func WithMaxBodyBytes(n int64) BatchHandlerOption {
	return func(h *BatchHandler) { h.maxBodyBytes = n }
}

// WithIncludeHeadersDefault 设置请求未携带 include_headers 时的默认值
func WithIncludeHeadersDefault(v bool) BatchHandlerOption {
	return func(h *BatchHandler) { h.includeHeaders = v }
}

// NewBatchHandler 创建批处理处理器
func NewBatchHandler(parser *batch.RequestParser, logger *zap.Logger, opts ...BatchHandlerOption) *BatchHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &BatchHandler{
		parser: parser,
		mode:   batch.ModeBuffered,
		logger: logger.With(zap.String("handler", "batch")),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleBatch 处理 POST /api/v1/batch，使用配置的默认模式
// @Summary 批量请求
// @Description 在一次往返中执行多个子请求
// @Tags 批处理
// @Accept json
// @Produce json
// @Success 200 {array} batch.ExecutionResult "按请求顺序排列的结果"
// @Failure 400 {object} batch.ErrorEnvelope "信封无效"
// @Failure 429 {object} batch.ErrorEnvelope "准入被拒绝"
// @Router /api/v1/batch [post]
func (h *BatchHandler) HandleBatch(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, h.mode)
}

// HandleStream 处理 POST /api/v1/batch/stream，总是流式输出
// @Summary 流式批量请求
// @Tags 批处理
// @Accept json
// @Produce json
// @Router /api/v1/batch/stream [post]
func (h *BatchHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, batch.ModeStreamed)
}

func (h *BatchHandler) serve(w http.ResponseWriter, r *http.Request, mode batch.Mode) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		batch.WriteError(w, types.NewError(types.ErrMethodNotAllowed, "Method not allowed").
			WithHTTPStatus(http.StatusMethodNotAllowed), mode)
		return
	}
	if batch.IsInternal(r.Context()) {
		batch.WriteError(w, types.NewInvalidRequestError("Invalid request: nested batch requests are not allowed"), mode)
		return
	}

	body, err := h.envelope(w, r)
	if err != nil {
		batch.WriteError(w, err, mode)
		return
	}

	id := uuid.NewString()
	w.Header().Set(BatchIDHeader, id)
	ctx := ctxkeys.WithBatchID(r.Context(), id)

	b, err := h.parser.Parse(ctx, &batch.Inbound{
		Body:           body,
		Parent:         batch.NewParentContext(r),
		IncludeHeaders: h.includeHeadersFor(r),
		ClientKey:      ClientKey(r),
	})
	if err != nil {
		batch.WriteError(w, err, mode)
		return
	}

	if err := b.Write(ctx, w, mode); err != nil {
		h.logger.Debug("batch write finished with error",
			zap.String("batch_id", id),
			zap.String("mode", string(mode)),
			zap.Error(err),
		)
	}
}

// envelope 取出信封原文：表单请求读 batch/data 字段，其余直接读取请求体
func (h *BatchHandler) envelope(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "multipart/form-data", "application/x-www-form-urlencoded":
		if h.maxBodyBytes > 0 && r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
		}
		var err error
		if mediaType == "multipart/form-data" {
			err = r.ParseMultipartForm(maxMultipartMemory)
		} else {
			err = r.ParseForm()
		}
		if err != nil {
			return nil, formError(err)
		}
		for _, field := range envelopeFields {
			if v := r.PostFormValue(field); v != "" {
				return []byte(v), nil
			}
		}
		return nil, nil
	default:
		return ReadBody(w, r, h.maxBodyBytes)
	}
}

func formError(err error) *types.Error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return bodyError(err)
	}
	return types.NewInvalidRequestError("Invalid request: malformed form body").WithCause(err)
}

// includeHeadersFor 表单字段优先，其次查询参数，仅字面量 "true" 生效
func (h *BatchHandler) includeHeadersFor(r *http.Request) bool {
	if vs, ok := r.PostForm["include_headers"]; ok && len(vs) > 0 {
		return vs[0] == "true"
	}
	if vs, ok := r.URL.Query()["include_headers"]; ok && len(vs) > 0 {
		return vs[0] == "true"
	}
	return h.includeHeaders
}

// ClientKey 返回准入控制使用的调用方标识：租户优先，否则为客户端 IP
func ClientKey(r *http.Request) string {
	if tenant, ok := types.TenantID(r.Context()); ok && tenant != "" {
		return "tenant:" + tenant
	}
	return "ip:" + ClientIP(r)
}

// ClientIP 返回 RemoteAddr 中的主机部分
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
