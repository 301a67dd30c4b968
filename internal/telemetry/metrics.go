package telemetry

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var handlerBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

// Metrics — Prometheus метрики транспорта.
type Metrics struct {
	published           *prometheus.CounterVec
	publishErrors       *prometheus.CounterVec
	deliveries          *prometheus.CounterVec
	handlerDuration     *prometheus.HistogramVec
	activeSubscriptions prometheus.Gauge
}

// NewMetrics создаёт метрики и регистрирует их в reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shardbus_published_total",
			Help: "Total number of messages published, by node index",
		}, []string{"node"}),

		publishErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shardbus_publish_errors_total",
			Help: "Total number of failed publishes, by node index",
		}, []string{"node"}),

		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shardbus_deliveries_total",
			Help: "Total number of delivered messages, by queue and outcome",
		}, []string{"queue", "outcome"}),

		handlerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "shardbus_handler_duration_seconds",
			Help:    "Consumer handler execution time in seconds",
			Buckets: handlerBuckets,
		}, []string{"queue"}),

		activeSubscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "shardbus_active_subscriptions",
			Help: "Number of open queue subscriptions",
		}),
	}

	reg.MustRegister(
		m.published,
		m.publishErrors,
		m.deliveries,
		m.handlerDuration,
		m.activeSubscriptions,
	)

	return m
}

// Published учитывает успешную публикацию на узел.
func (m *Metrics) Published(node int) {
	m.published.WithLabelValues(strconv.Itoa(node)).Inc()
}

// PublishFailed учитывает неудачную публикацию на узел.
func (m *Metrics) PublishFailed(node int) {
	m.publishErrors.WithLabelValues(strconv.Itoa(node)).Inc()
}

// Delivered учитывает обработанную доставку и время обработчика.
func (m *Metrics) Delivered(queue, outcome string, elapsed time.Duration) {
	m.deliveries.WithLabelValues(queue, outcome).Inc()
	m.handlerDuration.WithLabelValues(queue).Observe(elapsed.Seconds())
}

// SubscriptionsChanged меняет число открытых подписок на delta.
func (m *Metrics) SubscriptionsChanged(delta int) {
	m.activeSubscriptions.Add(float64(delta))
}
