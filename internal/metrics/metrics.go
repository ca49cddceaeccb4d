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
// スケジューラやハンドラーから利用する。
type MetricsCollector interface {
	RecordSubmission(kind string)
	RecordRejection(code string)
	RecordJobCompleted(kind, verdict string, trustScore float64)
	RecordJobFailed(kind, code string)
	RecordJobCanceled(kind string)
	RecordAnalysisLatency(kind string, duration time.Duration)
	IncInFlight()
	DecInFlight()
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	submissions *prometheus.CounterVec
	rejections  *prometheus.CounterVec
	completed   *prometheus.CounterVec
	failed      *prometheus.CounterVec
	canceled    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	trustScore  prometheus.Histogram
	inFlight    prometheus.Gauge
	httpStatus  *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "truthlens_submissions_total",
			Help: "受け付けた投稿の合計数",
		}, []string{"kind"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "truthlens_rejections_total",
			Help: "検証エラーで拒否した投稿の合計数",
		}, []string{"code"}),
		completed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "truthlens_jobs_completed_total",
			Help: "完了した解析ジョブの合計数",
		}, []string{"kind", "verdict"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "truthlens_jobs_failed_total",
			Help: "失敗した解析ジョブの合計数",
		}, []string{"kind", "code"}),
		canceled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "truthlens_jobs_canceled_total",
			Help: "キャンセルされた解析ジョブの合計数",
		}, []string{"kind"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "truthlens_analysis_latency_seconds",
			Help:    "解析ジョブの所要時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		trustScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "truthlens_trust_score",
			Help:    "完了した解析結果の信頼スコア分布",
			Buckets: prometheus.LinearBuckets(10, 10, 9),
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "truthlens_jobs_in_flight",
			Help: "実行中の解析ジョブ数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "truthlens_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.submissions,
		c.rejections,
		c.completed,
		c.failed,
		c.canceled,
		c.latency,
		c.trustScore,
		c.inFlight,
		c.httpStatus,
	)

	return c
}

// RecordSubmission は投稿の受け付けを記録する。
func (c *Collector) RecordSubmission(kind string) {
	c.submissions.WithLabelValues(kind).Inc()
}

// RecordRejection は投稿の拒否をエラーコード別に記録する。
func (c *Collector) RecordRejection(code string) {
	c.rejections.WithLabelValues(code).Inc()
}

// RecordJobCompleted はジョブの完了と信頼スコアを記録する。
func (c *Collector) RecordJobCompleted(kind, verdict string, trustScore float64) {
	c.completed.WithLabelValues(kind, verdict).Inc()
	c.trustScore.Observe(trustScore)
}

// RecordJobFailed はジョブの失敗をエラーコード別に記録する。
func (c *Collector) RecordJobFailed(kind, code string) {
	c.failed.WithLabelValues(kind, code).Inc()
}

// RecordJobCanceled はジョブのキャンセルを記録する。
func (c *Collector) RecordJobCanceled(kind string) {
	c.canceled.WithLabelValues(kind).Inc()
}

// RecordAnalysisLatency は解析ジョブの所要時間を記録する。
func (c *Collector) RecordAnalysisLatency(kind string, duration time.Duration) {
	c.latency.WithLabelValues(kind).Observe(duration.Seconds())
}

// IncInFlight は実行中ジョブ数を1増やす。
func (c *Collector) IncInFlight() {
	c.inFlight.Inc()
}

// DecInFlight は実行中ジョブ数を1減らす。
func (c *Collector) DecInFlight() {
	c.inFlight.Dec()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
