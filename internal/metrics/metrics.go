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
// サービス層、ミドルウェア、ワーカーから利用する。
type MetricsCollector interface {
	RecordCheckin(alreadyCheckedIn bool)
	RecordLinkOutcome(status string)
	RecordOrphanDeleteFailure()
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	RecordCleanup(expiredSessions, orphans int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	checkins             prometheus.Counter
	duplicateCheckins    prometheus.Counter
	linkOutcomes         *prometheus.CounterVec
	orphanDeleteFailures prometheus.Counter
	httpStatus           *prometheus.CounterVec
	requestLatency       prometheus.Histogram
	cleanupDeleted       *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		checkins: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "habitstreak_checkins_total",
			Help: "記録されたチェックインの合計数",
		}),
		duplicateCheckins: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "habitstreak_duplicate_checkins_total",
			Help: "同日に既に記録済みだったチェックイン要求の合計数",
		}),
		linkOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "habitstreak_link_outcomes_total",
			Help: "アカウントリンク処理の結果別件数",
		}, []string{"status"}),
		orphanDeleteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "habitstreak_orphan_delete_failures_total",
			Help: "リンク後のGoogleアカウント削除に失敗した回数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "habitstreak_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "habitstreak_request_latency_seconds",
			Help:    "HTTPリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		cleanupDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "habitstreak_cleanup_deleted_total",
			Help: "クリーンアップで削除された行数",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		c.checkins,
		c.duplicateCheckins,
		c.linkOutcomes,
		c.orphanDeleteFailures,
		c.httpStatus,
		c.requestLatency,
		c.cleanupDeleted,
	)

	return c
}

// RecordCheckin はチェックイン要求を記録する。
func (c *Collector) RecordCheckin(alreadyCheckedIn bool) {
	if alreadyCheckedIn {
		c.duplicateCheckins.Inc()
		return
	}
	c.checkins.Inc()
}

// RecordLinkOutcome はリンク処理の結果を記録する。
func (c *Collector) RecordLinkOutcome(status string) {
	c.linkOutcomes.WithLabelValues(status).Inc()
}

// RecordOrphanDeleteFailure はGoogleアカウント削除の失敗を記録する。
func (c *Collector) RecordOrphanDeleteFailure() {
	c.orphanDeleteFailures.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストのレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordCleanup はクリーンアップで削除した件数を記録する。
func (c *Collector) RecordCleanup(expiredSessions, orphans int64) {
	c.cleanupDeleted.WithLabelValues("session").Add(float64(expiredSessions))
	c.cleanupDeleted.WithLabelValues("orphan_identity").Add(float64(orphans))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
