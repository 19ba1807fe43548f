// Package config 提供 BatchGate 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → 环境变量（前缀 BATCHGATE_）的顺序加载，
// 环境变量名由 env 标签逐级拼接，例如 BATCHGATE_BATCH_MAX_ITEMS、
// BATCHGATE_LIMITER_REDIS_ADDR。Validate 汇总所有字段错误后一次返回。
package config
