package ctxkeys

import "context"

// contextKey 用于在 context 中存储值的键类型
type contextKey string

const (
	batchIDKey    contextKey = "batch_id"
	itemIndexKey  contextKey = "batch_item_index"
	internalKey   contextKey = "batch_internal"
	serverVarsKey contextKey = "batch_server_vars"
	paramsKey     contextKey = "batch_params"
	sessionKey    contextKey = "batch_session"
)

// WithBatchID 设置 BatchID
func WithBatchID(ctx context.Context, batchID string) context.Context {
	return context.WithValue(ctx, batchIDKey, batchID)
}

// BatchID 获取 BatchID
func BatchID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(batchIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// WithItemIndex 设置子请求在信封中的位置
func WithItemIndex(ctx context.Context, index int) context.Context {
	return context.WithValue(ctx, itemIndexKey, index)
}

// ItemIndex 获取子请求在信封中的位置
func ItemIndex(ctx context.Context) (int, bool) {
	v, ok := ctx.Value(itemIndexKey).(int)
	return v, ok
}

// WithInternal 标记请求由批处理网关内部发起
func WithInternal(ctx context.Context) context.Context {
	return context.WithValue(ctx, internalKey, true)
}

// Internal 判断请求是否由批处理网关内部发起
func Internal(ctx context.Context) bool {
	v, _ := ctx.Value(internalKey).(bool)
	return v
}

// WithServerVars 设置子请求的 server 变量
func WithServerVars(ctx context.Context, vars map[string]string) context.Context {
	return context.WithValue(ctx, serverVarsKey, vars)
}

// ServerVars 获取子请求的 server 变量
func ServerVars(ctx context.Context) (map[string]string, bool) {
	v, ok := ctx.Value(serverVarsKey).(map[string]string)
	return v, ok
}

// WithParams 设置解析后的子请求参数
func WithParams(ctx context.Context, params map[string]any) context.Context {
	return context.WithValue(ctx, paramsKey, params)
}

// Params 获取解析后的子请求参数
func Params(ctx context.Context) (map[string]any, bool) {
	v, ok := ctx.Value(paramsKey).(map[string]any)
	return v, ok
}

// WithSession 设置会话句柄（按引用共享，不复制）
func WithSession(ctx context.Context, session any) context.Context {
	return context.WithValue(ctx, sessionKey, session)
}

// Session 获取会话句柄
func Session(ctx context.Context) (any, bool) {
	v := ctx.Value(sessionKey)
	return v, v != nil
}
