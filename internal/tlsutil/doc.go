// Package tlsutil 提供集中式 TLS 配置，
// 为 HTTPS 监听、上游代理传输、OTLP 导出和 Redis 限流连接提供安全加固的 TLS 设置（TLS 1.2+，仅 AEAD 密码套件）。
package tlsutil
