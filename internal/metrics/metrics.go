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
// ミドルウェア、データソースクライアント、ワーカーから利用する。
type MetricsCollector interface {
	RecordGateDecision(outcome string)
	RecordAuthResult(operation, result string)
	RecordFetchLatency(resource string, duration time.Duration)
	RecordFetchFailure(resource string)
	RecordHTTPStatus(statusCode int)
	RecordResponse(statusCode int)
	SetActiveHolders(count int)
	RecordHoldersEvicted(count int)
	RecordSessionsPurged(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	gateDecisions  *prometheus.CounterVec
	authResults    *prometheus.CounterVec
	fetchLatency   *prometheus.HistogramVec
	fetchFail      *prometheus.CounterVec
	httpStatus     *prometheus.CounterVec
	responses      *prometheus.CounterVec
	activeHolders  prometheus.Gauge
	holdersEvicted prometheus.Counter
	sessionsPurged prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		gateDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "invoicedash_gate_decisions_total",
			Help: "ルートゲートの判定結果別の件数",
		}, []string{"outcome"}),
		authResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "invoicedash_auth_results_total",
			Help: "サインイン・サインアップの結果別の件数",
		}, []string{"operation", "result"}),
		fetchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "invoicedash_datasource_fetch_latency_seconds",
			Help:    "データソース取得のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"resource"}),
		fetchFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "invoicedash_datasource_fetch_fail_total",
			Help: "データソース取得失敗の合計数",
		}, []string{"resource"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "invoicedash_datasource_http_status_total",
			Help: "データソースのHTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "invoicedash_http_responses_total",
			Help: "サーバーが返したHTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		activeHolders: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "invoicedash_session_holders",
			Help: "保持中のセッション状態ホルダー数",
		}),
		holdersEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "invoicedash_session_holders_evicted_total",
			Help: "アイドルにより破棄されたセッション状態ホルダーの合計数",
		}),
		sessionsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "invoicedash_sessions_purged_total",
			Help: "削除された期限切れセッションの合計数",
		}),
	}

	reg.MustRegister(
		c.gateDecisions,
		c.authResults,
		c.fetchLatency,
		c.fetchFail,
		c.httpStatus,
		c.responses,
		c.activeHolders,
		c.holdersEvicted,
		c.sessionsPurged,
	)

	return c
}

// RecordGateDecision はゲートの判定結果を記録する。
func (c *Collector) RecordGateDecision(outcome string) {
	c.gateDecisions.WithLabelValues(outcome).Inc()
}

// RecordAuthResult はサインイン・サインアップの結果を記録する。
func (c *Collector) RecordAuthResult(operation, result string) {
	c.authResults.WithLabelValues(operation, result).Inc()
}

// RecordFetchLatency はデータソース取得のレイテンシを記録する。
func (c *Collector) RecordFetchLatency(resource string, duration time.Duration) {
	c.fetchLatency.WithLabelValues(resource).Observe(duration.Seconds())
}

// RecordFetchFailure はデータソース取得の失敗を記録する。
func (c *Collector) RecordFetchFailure(resource string) {
	c.fetchFail.WithLabelValues(resource).Inc()
}

// RecordHTTPStatus はデータソースのHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordResponse はサーバーが返したHTTPステータスコードを記録する。
func (c *Collector) RecordResponse(statusCode int) {
	c.responses.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// SetActiveHolders は保持中のホルダー数を設定する。
func (c *Collector) SetActiveHolders(count int) {
	c.activeHolders.Set(float64(count))
}

// RecordHoldersEvicted は破棄したホルダー数を記録する。
func (c *Collector) RecordHoldersEvicted(count int) {
	c.holdersEvicted.Add(float64(count))
}

// RecordSessionsPurged は削除した期限切れセッション数を記録する。
func (c *Collector) RecordSessionsPurged(count int64) {
	c.sessionsPurged.Add(float64(count))
}

// NopCollector は何も記録しないMetricsCollector。
type NopCollector struct{}

func (NopCollector) RecordGateDecision(string)                {}
func (NopCollector) RecordAuthResult(string, string)          {}
func (NopCollector) RecordFetchLatency(string, time.Duration) {}
func (NopCollector) RecordFetchFailure(string)                {}
func (NopCollector) RecordHTTPStatus(int)                     {}
func (NopCollector) RecordResponse(int)                       {}
func (NopCollector) SetActiveHolders(int)                     {}
func (NopCollector) RecordHoldersEvicted(int)                 {}
func (NopCollector) RecordSessionsPurged(int64)               {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = NopCollector{}
)
