// Copyright (c) BatchGate Authors.
// Licensed under the MIT License.

/*
Package batch 实现批量请求网关的核心：把一个入站信封拆分为 N 个独立的虚拟子请求，
逐个分派，再按原始顺序汇总为一个响应。

# 数据流

	raw envelope
	  → TransactionFactory.Create      校验信封形状，失败即 400
	  → TransactionCollection          有序的 Transaction 集合
	  → RequestParser.Parse            准入控制（按批大小一次性消费令牌）
	  → Scheduler.Run                  顺序或有界并发，结果按索引重排
	  → TaskHandler                    每次分派运行在独立的 Task 中
	  → Transaction.Dispatch           失败被收敛为 404/500 结果，绝不中断批次
	  → BuildResult                    生成 ExecutionResult
	  → Batch.WriteBuffered / WriteStreamed

# 核心类型

  - [ParameterParser]：从查询串与请求体解析参数（方括号约定、JSON 短路）
  - [MergeHeaders]：父请求头与条目头的纯函数合并
  - [Transaction]：不可变的虚拟子请求，可物化为 *http.Request
  - [Dispatcher]：宿主的请求处理边界；[HandlerDispatcher] 适配任意 http.Handler
  - [Limiter]：准入控制接口，实现在 internal/ratelimit
  - [StreamWriter]：NOT_STARTED → STREAMING → CLOSED 的流式 JSON 数组写入器

# 错误

信封与准入阶段的失败以 [ErrorEnvelope] 返回；分派阶段的失败只会出现在对应条目的
ExecutionResult 中。
*/
package batch
