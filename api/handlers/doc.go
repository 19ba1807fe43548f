// Copyright (c) BatchGate Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 BatchGate HTTP 端点的请求处理器实现。

# 核心类型

  - BatchHandler     - 批处理入口，POST /api/v1/batch 与 /api/v1/batch/stream
  - HealthHandler    - 存活、就绪与版本探针（/health, /healthz, /ready, /version）
  - HealthCheck      - 可插拔就绪检查接口，NewCheck 将函数适配为检查
  - Response         - 非批处理端点的统一 JSON 响应结构
  - ResponseWriter   - 包装 http.ResponseWriter 以捕获状态码，支持 Flush

# 批处理请求

信封来自请求体；表单或 multipart 请求时取 batch 或 data 字段，
multipart 中上传的文件可由条目的 attached_files 引用。include_headers
先读表单字段再读查询参数，只有字面量 "true" 生效，缺省时使用配置值。
准入键为 "tenant:<id>"（JWT 租户）或 "ip:<客户端地址>"。
每个批次生成 X-Batch-ID 响应头。
*/
package handlers
