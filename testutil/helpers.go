// =============================================================================
// 🧪 测试辅助函数
// =============================================================================
// 提供通用的测试辅助函数和断言
//
// 使用方法:
//
//	testutil.AssertJSONEqual(t, `[{"code":200,"body":[]}]`, rec.Body.String())
//	ctx := testutil.TestContext(t)
// =============================================================================
package testutil

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/batchgate/batch"
)

// =============================================================================
// 🎯 上下文辅助
// =============================================================================

// TestContext 返回带超时的测试上下文
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// CancelledContext 返回已取消的上下文
func CancelledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

// =============================================================================
// 🔍 断言辅助
// =============================================================================

// AssertJSONEqual 断言两个 JSON 文本语义相等（忽略空白与键顺序）
func AssertJSONEqual(t *testing.T, expected, actual string) {
	t.Helper()
	assert.JSONEq(t, expected, actual)
}

// DecodeResults 把批量响应体解码为结果切片
func DecodeResults(t *testing.T, body []byte) []batch.ExecutionResult {
	t.Helper()
	var results []batch.ExecutionResult
	require.NoError(t, json.Unmarshal(body, &results), "body: %s", body)
	return results
}

// DecodeErrorEnvelope 解码顶层错误信封
func DecodeErrorEnvelope(t *testing.T, body []byte) batch.ErrorEnvelope {
	t.Helper()
	var env batch.ErrorEnvelope
	require.NoError(t, json.Unmarshal(body, &env), "body: %s", body)
	return env
}

// =============================================================================
// 🔧 测试数据辅助
// =============================================================================

// MustParseJSON 解析 JSON 字符串，失败时 panic
func MustParseJSON[T any](s string) T {
	var v T
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		panic(err)
	}
	return v
}

