// Copyright (c) BatchGate Authors.
// Licensed under the MIT License.

/*
Package main 提供 BatchGate 服务端程序入口。

# 概述

cmd/batchgate 提供 serve、version、health 子命令。serve 加载 YAML 与
环境变量配置，初始化 zap 日志、OpenTelemetry、批处理准入限流器与
Prometheus 指标，然后在业务端口与指标端口上分别启动 HTTP 服务。

# 路由

批处理条目在进程内分派到同一张路由表（http.ServeMux）。配置
batch.upstream_url 后，未匹配的路径由反向代理转发到上游服务，
上游连接使用 tlsutil 的加固传输。

# 中间件链

Recovery → RequestID → SecurityHeaders → OTelTracing → Metrics →
RequestLogger → CORS → APIKeyAuth → JWTAuth（可选）→ RateLimiter。
RateLimiter 位于认证之后，以便按 JWT 租户计数。

# 关闭

信号到达后依次关闭 HTTP 服务、Metrics 服务、限流器与遥测导出器。
*/
package main
