// Package api 描述 BatchGate 的 HTTP API。
//
// # 端点
//
//	POST /api/v1/batch          按配置模式（buffered 或 streamed）执行批次
//	POST /api/v1/batch/stream   总是流式输出
//	GET  /health /healthz       存活探针
//	GET  /ready /readyz         就绪探针（包含限流器后端检查）
//	GET  /version               版本信息
//	GET  /metrics               Prometheus 指标（独立端口）
//
// # 认证
//
// 配置 server.api_keys 时需要 X-API-Key 请求头；启用 jwt 时需要
// Authorization: Bearer <token>，其 tenant_id 声明作为批处理准入键。
//
// # 信封
//
// 请求体是 JSON 数组，每个条目包含 method、relative_url、body、
// content-type、attached_files 与 headers。响应是按同一顺序排列的
// {"code", "body", "headers"} 结果数组。
package api
