// Copyright (c) BatchGate Authors.
// Licensed under the MIT License.

/*
Package testutil 提供 BatchGate 测试的共享工具和辅助函数。

# 概述

testutil 包为各包的单元测试提供统一的辅助能力，避免重复实现相似的测试基础设施。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout / CancelledContext，
    自动注册 Cleanup 防止泄漏
  - 断言工具: AssertJSONEqual / AssertContains / DecodeResults /
    DecodeErrorEnvelope
  - 异步断言: AssertEventuallyTrue / AssertEventuallyEqual
  - 数据工具: MustJSON / MustParseJSON / WaitForChannel

# 子包

  - testutil/mocks: MockDispatcher（按路由响应、错误/panic/延迟注入、调用记录）
    与 MockLimiter（固定容量准入）
  - testutil/fixtures: 信封条目、原始信封、非法信封样例与父请求上下文

# 使用示例

	d := mocks.NewMockDispatcher().WithJSONRoute("GET", "/users", 200, `[]`)
	parser := batch.NewRequestParser(d)
	b, err := parser.Parse(testutil.TestContext(t), &batch.Inbound{Body: fixtures.GetEnvelope(2)})
*/
package testutil
