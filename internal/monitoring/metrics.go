package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
type Metrics struct {
	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 邮箱指标
	MailboxesCreated prometheus.Counter
	MailboxesDeleted prometheus.Counter
	MailboxesExpired prometheus.Counter
	MailboxesActive  prometheus.Gauge

	// 邮件指标
	MessagesGenerated prometheus.Counter
	MessagesReceived  prometheus.Counter
	MessagesTotal     prometheus.Gauge

	// 实时推送指标
	PushesDelivered   prometheus.Counter
	PushesFailed      prometheus.Counter
	SubscribersActive prometheus.Gauge

	// 错误指标
	ErrorsTotal *prometheus.CounterVec
	PanicsTotal prometheus.Counter
}

// NewMetrics 创建监控指标，注册到全局默认 Registry。
func NewMetrics() *Metrics {
	return newMetrics(promauto.With(prometheus.DefaultRegisterer))
}

// NewTestMetrics 创建注册到独立 Registry 的指标，供测试使用，
// 避免多次创建时在默认 Registry 上重复注册。
func NewTestMetrics() *Metrics {
	return newMetrics(promauto.With(prometheus.NewRegistry()))
}

func newMetrics(factory promauto.Factory) *Metrics {
	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempinbox_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tempinbox_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		MailboxesCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tempinbox_mailboxes_created_total",
				Help: "Total number of mailboxes created",
			},
		),

		MailboxesDeleted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tempinbox_mailboxes_deleted_total",
				Help: "Total number of mailboxes deleted by request",
			},
		),

		MailboxesExpired: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tempinbox_mailboxes_expired_total",
				Help: "Total number of mailboxes evicted by the reaper",
			},
		),

		MailboxesActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "tempinbox_mailboxes_active",
				Help: "Number of live mailboxes",
			},
		),

		MessagesGenerated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tempinbox_messages_generated_total",
				Help: "Total number of messages synthesized by the generator",
			},
		),

		MessagesReceived: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tempinbox_messages_received_total",
				Help: "Total number of messages received over SMTP",
			},
		),

		MessagesTotal: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "tempinbox_messages_total",
				Help: "Total number of stored messages",
			},
		),

		PushesDelivered: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tempinbox_pushes_delivered_total",
				Help: "Total number of messages delivered over live channels",
			},
		),

		PushesFailed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tempinbox_pushes_failed_total",
				Help: "Total number of live pushes that failed and detached the channel",
			},
		),

		SubscribersActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "tempinbox_subscribers_active",
				Help: "Number of attached delivery channels",
			},
		),

		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempinbox_errors_total",
				Help: "Total number of errors",
			},
			[]string{"type", "component"},
		),

		PanicsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tempinbox_panics_total",
				Help: "Total number of panics",
			},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求指标
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordMailboxCreated 记录邮箱创建
func (m *Metrics) RecordMailboxCreated() {
	m.MailboxesCreated.Inc()
}

// RecordMailboxDeleted 记录邮箱删除
func (m *Metrics) RecordMailboxDeleted() {
	m.MailboxesDeleted.Inc()
}

// RecordMailboxExpired 记录邮箱过期清理
func (m *Metrics) RecordMailboxExpired() {
	m.MailboxesExpired.Inc()
}

// RecordMessageGenerated 记录生成器合成的邮件
func (m *Metrics) RecordMessageGenerated() {
	m.MessagesGenerated.Inc()
}

// RecordMessageReceived 记录 SMTP 接收的邮件
func (m *Metrics) RecordMessageReceived() {
	m.MessagesReceived.Inc()
}

// RecordPushDelivered 记录实时推送成功
func (m *Metrics) RecordPushDelivered() {
	m.PushesDelivered.Inc()
}

// RecordPushFailed 记录实时推送失败
func (m *Metrics) RecordPushFailed() {
	m.PushesFailed.Inc()
}

// RecordError 记录错误
func (m *Metrics) RecordError(errorType, component string) {
	m.ErrorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	m.PanicsTotal.Inc()
}

// UpdateMailboxesActive 更新活跃邮箱数
func (m *Metrics) UpdateMailboxesActive(count int) {
	m.MailboxesActive.Set(float64(count))
}

// UpdateMessagesTotal 更新总邮件数
func (m *Metrics) UpdateMessagesTotal(count int) {
	m.MessagesTotal.Set(float64(count))
}

// UpdateSubscribersActive 更新已连接的推送通道数
func (m *Metrics) UpdateSubscribersActive(count int) {
	m.SubscribersActive.Set(float64(count))
}

// HTTPHandler 返回 Prometheus HTTP 处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.Handler()
}
