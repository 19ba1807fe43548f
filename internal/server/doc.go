// Copyright (c) BatchGate Authors.
// Licensed under the MIT License.

/*
包 server 提供批处理网关的 HTTP/HTTPS 服务器生命周期管理。

# 核心类型

  - Manager：持有 http.Server、net.Listener 与异步错误通道，
    提供 Start/StartTLS/Shutdown/WaitForShutdown。
  - Config：监听地址、读写超时、空闲超时、最大请求头与优雅关闭超时。
    WriteTimeout 默认为 0，流式批处理响应不受固定写超时截断。

# 主要能力

  - 非阻塞启动：Start/StartTLS 在后台 goroutine 中运行服务。
  - HTTPS 使用 internal/tlsutil 的加固配置。
  - WaitForShutdown 监听 SIGINT/SIGTERM、服务异常或 ctx 结束，
    随后在超时内排空请求。
  - Addr 在启动后返回实际绑定的地址（支持 ":0"）。
*/
package server
