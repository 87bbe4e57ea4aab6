// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する実装。
// GitHub APIへの上流呼び出しの回数・レイテンシと、
// アップロードバイト数・バッチ部分失敗を記録する。
type Collector struct {
	upstreamRequests *prometheus.CounterVec
	upstreamLatency  prometheus.Histogram
	uploadBytes      prometheus.Counter
	partialBatch     prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gitcloud_upstream_requests_total",
			Help: "GitHub APIへのリクエスト数（操作・ステータスコード別）",
		}, []string{"operation", "status_code"}),
		upstreamLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gitcloud_upstream_latency_seconds",
			Help:    "GitHub APIリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		uploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gitcloud_upload_bytes_total",
			Help: "アップロードされたファイルの合計バイト数",
		}),
		partialBatch: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gitcloud_partial_batch_total",
			Help: "部分失敗したバッチ操作の合計数",
		}),
	}

	reg.MustRegister(
		c.upstreamRequests,
		c.upstreamLatency,
		c.uploadBytes,
		c.partialBatch,
	)

	return c
}

// RecordUpstreamRequest は上流リクエストを記録する。
// statusCode 0はトランスポート失敗を示す。
func (c *Collector) RecordUpstreamRequest(operation string, statusCode int) {
	c.upstreamRequests.WithLabelValues(operation, strconv.Itoa(statusCode)).Inc()
}

// RecordUpstreamLatency は上流リクエストのレイテンシを記録する。
func (c *Collector) RecordUpstreamLatency(operation string, duration time.Duration) {
	c.upstreamLatency.Observe(duration.Seconds())
}

// RecordUploadBytes はアップロードされたバイト数を記録する。
func (c *Collector) RecordUploadBytes(n int) {
	c.uploadBytes.Add(float64(n))
}

// RecordPartialBatch はバッチ操作の部分失敗を記録する。
func (c *Collector) RecordPartialBatch() {
	c.partialBatch.Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
