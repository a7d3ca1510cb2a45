package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 通知流水线的监控指标，nil 接收者上的记录方法为空操作
type Metrics struct {
	// 收件解析指标
	RecipientsResolved prometheus.Counter
	RecipientsDropped  *prometheus.CounterVec

	// 队列与投递指标
	EmailsEnqueued prometheus.Counter
	EmailsSent     prometheus.Counter
	EmailsFailed   prometheus.Counter
	DrainAborts    prometheus.Counter
	QueueDepth     prometheus.Gauge

	// HTTP 指标
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// NewMetrics 创建监控指标
func NewMetrics() *Metrics {
	return &Metrics{
		RecipientsResolved: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "bugtrack_notify_recipients_resolved_total",
				Help: "Total number of recipients that passed all filters",
			},
		),

		RecipientsDropped: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bugtrack_notify_recipients_dropped_total",
				Help: "Total number of recipient candidates dropped, by reason",
			},
			[]string{"reason"},
		),

		EmailsEnqueued: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "bugtrack_notify_emails_enqueued_total",
				Help: "Total number of notification emails enqueued",
			},
		),

		EmailsSent: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "bugtrack_notify_emails_sent_total",
				Help: "Total number of emails delivered successfully",
			},
		),

		EmailsFailed: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "bugtrack_notify_emails_failed_total",
				Help: "Total number of email delivery failures",
			},
		),

		DrainAborts: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "bugtrack_notify_drain_aborts_total",
				Help: "Total number of drains aborted by the failure budget",
			},
		),

		QueueDepth: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "bugtrack_notify_queue_depth",
				Help: "Number of emails currently pending delivery",
			},
		),

		HTTPRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bugtrack_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		HTTPDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bugtrack_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}

// RecordRecipientResolved 记录一位通过全部过滤的收件人
func (m *Metrics) RecordRecipientResolved() {
	if m == nil {
		return
	}
	m.RecipientsResolved.Inc()
}

// RecordRecipientDropped 记录一位被排除的候选收件人
func (m *Metrics) RecordRecipientDropped(reason string) {
	if m == nil {
		return
	}
	m.RecipientsDropped.WithLabelValues(reason).Inc()
}

// RecordEmailEnqueued 记录一封入队邮件
func (m *Metrics) RecordEmailEnqueued() {
	if m == nil {
		return
	}
	m.EmailsEnqueued.Inc()
}

// RecordEmailSent 记录一次投递成功
func (m *Metrics) RecordEmailSent() {
	if m == nil {
		return
	}
	m.EmailsSent.Inc()
}

// RecordEmailFailed 记录一次投递失败
func (m *Metrics) RecordEmailFailed() {
	if m == nil {
		return
	}
	m.EmailsFailed.Inc()
}

// RecordDrainAbort 记录一次因失败预算耗尽而中止的 drain
func (m *Metrics) RecordDrainAbort() {
	if m == nil {
		return
	}
	m.DrainAborts.Inc()
}

// UpdateQueueDepth 更新当前队列深度
func (m *Metrics) UpdateQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(depth))
}

// RecordHTTPRequest 记录一次 HTTP 请求
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, path, status).Inc()
	m.HTTPDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// HTTPHandler 返回 Prometheus 指标的 HTTP 处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.Handler()
}
