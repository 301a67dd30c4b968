package transport

import "time"

// Исходы обработки доставки.
const (
	OutcomeAcked    = "ack"
	OutcomeRequeued = "requeue"
	OutcomeRejected = "reject"
)

// Metrics — инструментирование публикаций и доставок.
// Реализация на Prometheus: telemetry.NewMetrics.
type Metrics interface {
	Published(node int)
	PublishFailed(node int)
	Delivered(queue, outcome string, elapsed time.Duration)
	SubscriptionsChanged(delta int)
}

type nopMetrics struct{}

func (nopMetrics) Published(int)                           {}
func (nopMetrics) PublishFailed(int)                       {}
func (nopMetrics) Delivered(string, string, time.Duration) {}
func (nopMetrics) SubscriptionsChanged(int)                {}
