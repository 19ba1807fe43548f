// Package fixtures 提供批量信封与父请求的测试数据工厂。
package fixtures

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/BaSui01/batchgate/batch"
)

// --- 信封条目 ---

// GetItem 返回一个 GET 条目
func GetItem(relativeURL string) batch.EnvelopeItem {
	return batch.EnvelopeItem{Method: http.MethodGet, RelativeURL: relativeURL}
}

// JSONItem 返回带 JSON 对象体的条目
func JSONItem(method, relativeURL string, body map[string]any) batch.EnvelopeItem {
	return batch.EnvelopeItem{
		Method:      method,
		RelativeURL: relativeURL,
		Body:        body,
		ContentType: "application/json",
	}
}

// FormItem 返回带表单体的条目
func FormItem(method, relativeURL, form string) batch.EnvelopeItem {
	return batch.EnvelopeItem{
		Method:      method,
		RelativeURL: relativeURL,
		Body:        form,
		ContentType: "application/x-www-form-urlencoded",
	}
}

// --- 信封 ---

// Envelope 把条目编码为原始信封
func Envelope(items ...batch.EnvelopeItem) []byte {
	data, err := json.Marshal(items)
	if err != nil {
		panic(err)
	}
	return data
}

// GetEnvelope 返回 n 个 GET 条目，路径为 /items/0 ... /items/n-1
func GetEnvelope(n int) []byte {
	items := make([]batch.EnvelopeItem, n)
	for i := range items {
		items[i] = GetItem(fmt.Sprintf("/items/%d", i))
	}
	return Envelope(items...)
}

// TwoRootGets 是 "两个 GET /" 的经典信封
const TwoRootGets = `[{"method":"GET","relative_url":"/"},{"method":"GET","relative_url":"/"}]`

// InvalidEnvelopes 是各类应被拒绝的信封
var InvalidEnvelopes = map[string]string{
	"empty":            ``,
	"whitespace":       "  \n ",
	"malformed":        `[{"method":"GET",`,
	"not array":        `{"method":"GET","relative_url":"/"}`,
	"empty array":      `[]`,
	"scalar item":      `[1]`,
	"missing url":      `[{"method":"GET"}]`,
	"blank url":        `[{"method":"GET","relative_url":"  "}]`,
	"object header":    `[{"relative_url":"/","headers":{"X-A":{"b":1}}}]`,
	"numeric method":   `[{"method":7,"relative_url":"/"}]`,
	"trailing garbage": `[{"relative_url":"/"}] x`,
}

// --- 父请求 ---

// Parent 返回带常用请求头与 cookie 的父上下文
func Parent() *batch.ParentContext {
	pc := batch.EmptyParentContext()
	pc.Header.Set("Authorization", "Bearer parent-token")
	pc.Header.Set("Accept", "application/json")
	pc.Header.Set("Content-Length", "1234")
	pc.Cookies["session"] = "abc"
	pc.Server["REMOTE_ADDR"] = "10.0.0.1:5555"
	pc.Server["HTTP_HOST"] = "api.example.com"
	return pc
}
