// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// APIクライアント・ページネーション・ポーリングの各層から利用する。
type MetricsCollector interface {
	RecordAPIRequest(method string, statusCode int)
	RecordAPILatency(duration time.Duration)
	RecordPageFetch(list string, first bool)
	RecordToggleFailure(target string)
	RecordPollTick(result string)
	RecordNotification(kind string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	apiRequests   *prometheus.CounterVec
	apiLatency    prometheus.Histogram
	pageFetches   *prometheus.CounterVec
	toggleFails   *prometheus.CounterVec
	pollTicks     *prometheus.CounterVec
	notifications *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "onthetop_api_requests_total",
			Help: "HTTPメソッド・ステータスコード別のAPIリクエスト数",
		}, []string{"method", "status_code"}),
		apiLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "onthetop_api_latency_seconds",
			Help:    "APIリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		pageFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "onthetop_page_fetch_total",
			Help: "リスト・種別（first/next）別のページ取得数",
		}, []string{"list", "kind"}),
		toggleFails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "onthetop_toggle_fail_total",
			Help: "対象種別ごとのいいね・スクラップトグル失敗数",
		}, []string{"target"}),
		pollTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "onthetop_poll_ticks_total",
			Help: "結果（pending/done/failed/skipped）別の生成ポーリング数",
		}, []string{"result"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "onthetop_notifications_total",
			Help: "種別（modal/toast）別の通知発火数",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		c.apiRequests,
		c.apiLatency,
		c.pageFetches,
		c.toggleFails,
		c.pollTicks,
		c.notifications,
	)

	return c
}

// RecordAPIRequest はAPIリクエストの完了を記録する。
func (c *Collector) RecordAPIRequest(method string, statusCode int) {
	c.apiRequests.WithLabelValues(method, strconv.Itoa(statusCode)).Inc()
}

// RecordAPILatency はAPIリクエストのレイテンシを記録する。
func (c *Collector) RecordAPILatency(duration time.Duration) {
	c.apiLatency.Observe(duration.Seconds())
}

// RecordPageFetch はページ取得を記録する。
func (c *Collector) RecordPageFetch(list string, first bool) {
	kind := "next"
	if first {
		kind = "first"
	}
	c.pageFetches.WithLabelValues(list, kind).Inc()
}

// RecordToggleFailure はトグル操作の失敗を記録する。
func (c *Collector) RecordToggleFailure(target string) {
	c.toggleFails.WithLabelValues(target).Inc()
}

// RecordPollTick は生成ポーリングの結果を記録する。
func (c *Collector) RecordPollTick(result string) {
	c.pollTicks.WithLabelValues(result).Inc()
}

// RecordNotification は通知の発火を記録する。
func (c *Collector) RecordNotification(kind string) {
	c.notifications.WithLabelValues(kind).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Noop は何も記録しないMetricsCollector実装。
// メトリクスを使わない軽量な起動モードやテストで使用する。
type Noop struct{}

func (Noop) RecordAPIRequest(method string, statusCode int) {}
func (Noop) RecordAPILatency(duration time.Duration)        {}
func (Noop) RecordPageFetch(list string, first bool)        {}
func (Noop) RecordToggleFailure(target string)              {}
func (Noop) RecordPollTick(result string)                   {}
func (Noop) RecordNotification(kind string)                 {}
