// Copyright (c) BatchGate Authors.
// Licensed under the MIT License.

/*
包 ratelimit 提供批量请求的准入控制实现，均满足 batch.Limiter 接口。

# 概述

一次批量请求在分派任何子请求之前，按子请求数量 n 一次性消费令牌：
要么全部准入，要么整体拒绝，不存在部分准入。

# 核心类型

  - TokenBucket：进程内令牌桶，基于 golang.org/x/time/rate，
    按客户端 key 维护独立的桶，后台定期清理空闲 key。
  - Redis：分布式令牌桶，状态保存在 Redis Hash 中，
    通过 Lua 脚本原子地完成补充与扣减，适合多副本部署。
  - Config / RedisConfig：驱动选择与桶参数。

# 驱动

  - none：不做准入控制，New 返回 nil。
  - memory：TokenBucket。
  - redis：Redis，连接可选 TLS（internal/tlsutil）。
*/
package ratelimit
