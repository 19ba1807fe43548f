// Copyright (c) BatchGate Authors.
// Licensed under the MIT License.

/*
包 metrics 提供基于 Prometheus 的指标采集能力，覆盖 HTTP 入口
与批处理执行两个维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
自动注册到默认 Registry。所有指标按 namespace 隔离。Collector
实现 batch.Recorder，由 RequestParser 在准入、子请求完成与批次结束时回调。

# 核心类型

  - Collector：指标收集器，持有 Counter、Histogram 向量指标。

# 指标

  - http_requests_total / http_request_duration_seconds /
    http_request_size_bytes / http_response_size_bytes：
    按 method/path 分组，状态码归类为 1xx~5xx。
  - batches_total{mode,outcome}：批次结果，outcome 取
    ok、client_error、system_error、aborted。
  - batch_duration_seconds{mode}、batch_size_items{mode}：批次耗时与规模。
  - batch_items_total{mode,status}：子请求按状态码类别计数。
  - batch_admissions_total{result}：准入 accepted / rejected。
*/
package metrics
