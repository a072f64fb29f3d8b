// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// パイプラインとワーカーから利用する。
type MetricsCollector interface {
	RecordRun(forced bool)
	RecordRunDuration(duration time.Duration)
	RecordItemProcessed(decision string)
	RecordImageResolved(strategy string)
	RecordRewriteFailure()
	RecordSourceFetchFailure()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	runs           *prometheus.CounterVec
	runDuration    prometheus.Histogram
	itemsProcessed *prometheus.CounterVec
	imageResolved  *prometheus.CounterVec
	rewriteFail    prometheus.Counter
	sourceFail     prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsmill_runs_total",
			Help: "パイプライン実行の合計数",
		}, []string{"trigger"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "newsmill_run_duration_seconds",
			Help:    "パイプライン実行の所要時間（秒）",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		itemsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsmill_items_processed_total",
			Help: "重複判定別の処理記事数",
		}, []string{"decision"}),
		imageResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsmill_image_resolved_total",
			Help: "抽出戦略別の画像解決数",
		}, []string{"strategy"}),
		rewriteFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newsmill_rewrite_failures_total",
			Help: "リライト失敗の合計数",
		}),
		sourceFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newsmill_source_fetch_failures_total",
			Help: "ソースのフィード取得失敗の合計数",
		}),
	}

	reg.MustRegister(
		c.runs,
		c.runDuration,
		c.itemsProcessed,
		c.imageResolved,
		c.rewriteFail,
		c.sourceFail,
	)

	return c
}

// RecordRun はパイプライン実行の開始を記録する。
func (c *Collector) RecordRun(forced bool) {
	trigger := "scheduled"
	if forced {
		trigger = "manual"
	}
	c.runs.WithLabelValues(trigger).Inc()
}

// RecordRunDuration はパイプライン実行の所要時間を記録する。
func (c *Collector) RecordRunDuration(duration time.Duration) {
	c.runDuration.Observe(duration.Seconds())
}

// RecordItemProcessed は記事の重複判定結果を記録する。
func (c *Collector) RecordItemProcessed(decision string) {
	c.itemsProcessed.WithLabelValues(decision).Inc()
}

// RecordImageResolved は画像解決に採用された戦略を記録する。
func (c *Collector) RecordImageResolved(strategy string) {
	c.imageResolved.WithLabelValues(strategy).Inc()
}

// RecordRewriteFailure はリライト失敗を記録する。
func (c *Collector) RecordRewriteFailure() {
	c.rewriteFail.Inc()
}

// RecordSourceFetchFailure はソースのフィード取得失敗を記録する。
func (c *Collector) RecordSourceFetchFailure() {
	c.sourceFail.Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
