// Copyright (c) BatchGate Authors.
// Licensed under the MIT License.

/*
Package types 提供 BatchGate 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 batch、api、cmd 等上层
模块提供统一的错误契约与上下文传播工具，以避免循环依赖。

# 核心类型

  - Error / ErrorCode - 结构化错误体系，含 HTTP 状态码与 Retryable 标记

# 主要能力

  - Context 传播：WithTraceID / WithTenantID / WithUserID / WithRoles
  - 错误工具链：AsError / IsErrorCode / HTTPStatusOf / StatusForCode
  - 常用错误构造：NewInvalidRequestError / NewRateLimitError /
    NewNotFoundError / NewInternalError
*/
package types
