package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder метрики сервиса синхронизации. Реализует services.MetricsRecorder
type Recorder struct {
	registry *prometheus.Registry

	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	drift             *prometheus.HistogramVec
	webhooks          *prometheus.CounterVec

	httpRequests   *prometheus.CounterVec
	httpDurations  *prometheus.HistogramVec
	activeRequests prometheus.Gauge

	messagesProcessed *prometheus.CounterVec
	messageDuration   *prometheus.HistogramVec
	scheduledRuns     *prometheus.CounterVec
}

// NewRecorder регистрирует метрики в собственном реестре вместе с метриками процесса и Go runtime
func NewRecorder(namespace string) *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_operations_total",
			Help:      "Количество операций синхронизации по исходу",
		}, []string{"operation", "outcome"}),
		operationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_operation_duration_seconds",
			Help:      "Длительность операций синхронизации",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		drift: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_drift_score",
			Help:      "Распределение drift score при проверках статуса",
			Buckets:   []float64{0, 0.5, 1, 2, 3, 5, 7.5, 10},
		}, []string{"account_id"}),
		webhooks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_ingested_total",
			Help:      "Количество обработанных вебхуков",
		}, []string{"topic", "correlated"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Общее количество HTTP запросов",
		}, []string{"path", "method", "status"}),
		httpDurations: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_durations_seconds",
			Help:      "Длительность HTTP запросов",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path", "method", "status"}),
		activeRequests: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_active_requests",
			Help:      "Количество активных HTTP запросов",
		}),
		messagesProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_messages_processed_total",
			Help:      "Общее количество обработанных сообщений",
		}, []string{"topic", "status"}),
		messageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "worker_message_processing_duration_seconds",
			Help:      "Длительность обработки сообщений",
			Buckets:   prometheus.DefBuckets,
		}, []string{"topic"}),
		scheduledRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_scheduled_runs_total",
			Help:      "Запуски плановой проверки по исходу",
		}, []string{"outcome"}),
	}
}

func (r *Recorder) ObserveOperation(operation, outcome string, duration time.Duration) {
	r.operations.WithLabelValues(operation, outcome).Inc()
	r.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (r *Recorder) ObserveDrift(accountID string, drift float64) {
	r.drift.WithLabelValues(accountID).Observe(drift)
}

func (r *Recorder) ObserveWebhook(topic string, correlated bool) {
	r.webhooks.WithLabelValues(topic, strconv.FormatBool(correlated)).Inc()
}

// RequestStarted увеличивает счетчик активных запросов, возвращает функцию завершения
func (r *Recorder) RequestStarted() func(path, method string, status int, duration time.Duration) {
	r.activeRequests.Inc()
	return func(path, method string, status int, duration time.Duration) {
		r.activeRequests.Dec()
		code := classifyStatus(status)
		r.httpRequests.WithLabelValues(path, method, code).Inc()
		r.httpDurations.WithLabelValues(path, method, code).Observe(duration.Seconds())
	}
}

// ObserveMessage учитывает сообщение, обработанное воркером
func (r *Recorder) ObserveMessage(topic, status string, duration time.Duration) {
	r.messagesProcessed.WithLabelValues(topic, status).Inc()
	r.messageDuration.WithLabelValues(topic).Observe(duration.Seconds())
}

// ObserveScheduledRun учитывает запуск планировщика
func (r *Recorder) ObserveScheduledRun(outcome string) {
	r.scheduledRuns.WithLabelValues(outcome).Inc()
}

// Handler HTTP обработчик для экспорта метрик
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Registry реестр метрик
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func classifyStatus(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "2xx"
	case statusCode >= 300 && statusCode < 400:
		return "3xx"
	case statusCode >= 400 && statusCode < 500:
		return "4xx"
	case statusCode >= 500 && statusCode < 600:
		return "5xx"
	default:
		return "unknown"
	}
}
