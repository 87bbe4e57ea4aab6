package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordUpstreamRequest_IncrementsCounterWithLabels は上流リクエスト
// カウンタがラベル付きで増加することを検証する。
func TestRecordUpstreamRequest_IncrementsCounterWithLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordUpstreamRequest("list repositories", 200)
	c.RecordUpstreamRequest("list repositories", 200)
	c.RecordUpstreamRequest("upload file", 0)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "gitcloud_upstream_requests_total" {
			found = true
			if len(mf.GetMetric()) != 2 {
				t.Fatalf("expected 2 label combinations, got %d", len(mf.GetMetric()))
			}
		}
	}
	if !found {
		t.Error("gitcloud_upstream_requests_total metric not found")
	}
}

// TestRecordUpstreamLatency_ObservesHistogram はレイテンシのヒストグラムに
// 値が記録されることを検証する。
func TestRecordUpstreamLatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordUpstreamLatency("get file", 100*time.Millisecond)
	c.RecordUpstreamLatency("get file", 2*time.Second)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "gitcloud_upstream_latency_seconds" {
			found = true
			h := mf.GetMetric()[0].GetHistogram()
			if h.GetSampleCount() != 2 {
				t.Errorf("sample_count = %d, want 2", h.GetSampleCount())
			}
			// 合計は0.1 + 2.0 = 2.1秒
			if h.GetSampleSum() < 2.0 || h.GetSampleSum() > 2.2 {
				t.Errorf("sample_sum = %v, want ~2.1", h.GetSampleSum())
			}
		}
	}
	if !found {
		t.Error("gitcloud_upstream_latency_seconds metric not found")
	}
}

// TestRecordUploadBytes_AccumulatesTotal はアップロードバイト数が
// 累積されることを検証する。
func TestRecordUploadBytes_AccumulatesTotal(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordUploadBytes(1024)
	c.RecordUploadBytes(2048)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "gitcloud_upload_bytes_total" {
			found = true
			val := mf.GetMetric()[0].GetCounter().GetValue()
			if val != 3072 {
				t.Errorf("upload_bytes_total = %v, want 3072", val)
			}
		}
	}
	if !found {
		t.Error("gitcloud_upload_bytes_total metric not found")
	}
}

// TestRecordPartialBatch_IncrementsCounter は部分失敗カウンタが増加することを検証する。
func TestRecordPartialBatch_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordPartialBatch()
	c.RecordPartialBatch()

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "gitcloud_partial_batch_total" {
			found = true
			val := mf.GetMetric()[0].GetCounter().GetValue()
			if val != 2 {
				t.Errorf("partial_batch_total = %v, want 2", val)
			}
		}
	}
	if !found {
		t.Error("gitcloud_partial_batch_total metric not found")
	}
}

// TestMetricsHandler_ReturnsPrometheusFormat は/metricsエンドポイントが
// Prometheus形式で返すことを検証する。
func TestMetricsHandler_ReturnsPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordUpstreamRequest("get user", 200)
	c.RecordUpstreamLatency("get user", 500*time.Millisecond)
	c.RecordUploadBytes(100)
	c.RecordPartialBatch()

	handler := Handler(reg)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	bodyStr := string(body)

	expectedMetrics := []string{
		"gitcloud_upstream_requests_total",
		"gitcloud_upstream_latency_seconds",
		"gitcloud_upload_bytes_total",
		"gitcloud_partial_batch_total",
	}

	for _, metric := range expectedMetrics {
		if !strings.Contains(bodyStr, metric) {
			t.Errorf("response body does not contain %q", metric)
		}
	}
}

// TestMultipleCollectors_IndependentRegistries は異なるレジストリで独立に動作することを検証する。
func TestMultipleCollectors_IndependentRegistries(t *testing.T) {
	reg1 := prometheus.NewRegistry()
	reg2 := prometheus.NewRegistry()
	c1 := NewCollector(reg1)
	c2 := NewCollector(reg2)

	c1.RecordPartialBatch()
	c2.RecordPartialBatch()
	c2.RecordPartialBatch()

	metrics1, _ := reg1.Gather()
	metrics2, _ := reg2.Gather()

	var val1, val2 float64
	for _, mf := range metrics1 {
		if mf.GetName() == "gitcloud_partial_batch_total" {
			val1 = mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	for _, mf := range metrics2 {
		if mf.GetName() == "gitcloud_partial_batch_total" {
			val2 = mf.GetMetric()[0].GetCounter().GetValue()
		}
	}

	if val1 != 1 {
		t.Errorf("reg1 partial_batch = %v, want 1", val1)
	}
	if val2 != 2 {
		t.Errorf("reg2 partial_batch = %v, want 2", val2)
	}
}
