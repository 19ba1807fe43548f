package metrics

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/BaSui01/batchgate/batch"
)

var collectorNamespaceSeq uint64

func nextTestNamespace() string {
	seq := atomic.AddUint64(&collectorNamespaceSeq, 1)
	return fmt.Sprintf("test_%d", seq)
}

// =============================================================================
// 🧪 Collector 测试
// =============================================================================

func TestNewCollector(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.httpRequestsTotal)
	assert.NotNil(t, collector.batchesTotal)
	assert.NotNil(t, collector.itemsTotal)
	assert.NotNil(t, collector.admissionsTotal)
}

func TestCollector_RecordHTTPRequest(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordHTTPRequest("POST", "/api/v1/batch", 200, 100*time.Millisecond, 1024, 2048)
	collector.RecordHTTPRequest("POST", "/api/v1/batch", 201, 50*time.Millisecond, 512, 1024)

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.httpRequestsTotal.WithLabelValues("POST", "/api/v1/batch", "2xx")))
	assert.Equal(t, 1, testutil.CollectAndCount(collector.httpRequestDuration))
}

func TestCollector_RecordBatch(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordBatch(batch.ModeBuffered, batch.OutcomeOK, 3, 20*time.Millisecond)
	collector.RecordBatch(batch.ModeBuffered, batch.OutcomeClientError, 0, time.Millisecond)
	collector.RecordBatch(batch.ModeStreamed, batch.OutcomeOK, 10, time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.batchesTotal.WithLabelValues("buffered", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.batchesTotal.WithLabelValues("buffered", "client_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.batchesTotal.WithLabelValues("streamed", "ok")))
	assert.Equal(t, 2, testutil.CollectAndCount(collector.batchSize), "rejected envelopes carry no size")
}

func TestCollector_RecordItemAndAdmission(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordItem(batch.ModeBuffered, 200)
	collector.RecordItem(batch.ModeBuffered, 404)
	collector.RecordItem(batch.ModeBuffered, 500)
	collector.RecordItem(batch.ModeBuffered, 503)
	collector.RecordAdmission(true)
	collector.RecordAdmission(false)
	collector.RecordAdmission(false)

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.itemsTotal.WithLabelValues("buffered", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.itemsTotal.WithLabelValues("buffered", "4xx")))
	assert.Equal(t, 2.0, testutil.ToFloat64(collector.itemsTotal.WithLabelValues("buffered", "5xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.admissionsTotal.WithLabelValues("accepted")))
	assert.Equal(t, 2.0, testutil.ToFloat64(collector.admissionsTotal.WithLabelValues("rejected")))
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{101, "1xx"},
		{200, "2xx"},
		{302, "3xx"},
		{429, "4xx"},
		{504, "5xx"},
		{0, "unknown"},
		{700, "unknown"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, statusCode(tt.code))
		})
	}
}

func TestCollector_ConcurrentRecording(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			collector.RecordHTTPRequest("GET", "/health", 200, time.Millisecond, 0, 16)
			collector.RecordItem(batch.ModeStreamed, 200)
			collector.RecordAdmission(true)
		}()
	}
	wg.Wait()

	assert.Equal(t, 10.0, testutil.ToFloat64(collector.itemsTotal.WithLabelValues("streamed", "2xx")))
	assert.Equal(t, 10.0, testutil.ToFloat64(collector.admissionsTotal.WithLabelValues("accepted")))
}

func TestCollector_MetricsRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	registry.MustRegister(collector.batchesTotal)
	collector.RecordBatch(batch.ModeBuffered, batch.OutcomeOK, 1, time.Millisecond)

	count, err := testutil.GatherAndCount(registry)
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
}
