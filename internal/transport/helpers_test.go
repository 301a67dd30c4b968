package transport

import (
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shaiso/shardbus/internal/broker/brokertest"
)

var (
	testNodes = []string{
		"amqp://mqhost00:5672",
		"amqp://mqhost01:5672",
		"amqp://mqhost02:5672",
	}
	testRoutingKeys = []string{"r00", "r01", "r02", "r03", "r04", "r05"}
)

const (
	testExchange    = "transport_exchange"
	testQueuePrefix = "transport_queue_"
)

func testConfig(b *brokertest.Broker) Config {
	return Config{
		Nodes:             testNodes,
		ConnectionFactory: b,
		ExchangeName:      testExchange,
		QueuePrefix:       testQueuePrefix,
		RoutingKeys:       testRoutingKeys,
		Logger:            slog.New(slog.DiscardHandler),
	}
}

func newTestSystem(t *testing.T, cfg Config) *System {
	t.Helper()

	sys, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { sys.Disconnect() })

	return sys
}

// scriptedRand возвращает заранее заданную последовательность (по модулю n).
type scriptedRand struct {
	mu     sync.Mutex
	values []int
	next   int
}

func newScriptedRand(values ...int) *scriptedRand {
	return &scriptedRand{values: values}
}

func (r *scriptedRand) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	v := r.values[r.next%len(r.values)]
	r.next++
	return v % n
}

// recordingMetrics запоминает вызовы Metrics.
type recordingMetrics struct {
	mu            sync.Mutex
	published     map[int]int
	publishFailed map[int]int
	outcomes      map[string]int
	subscriptions int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		published:     make(map[int]int),
		publishFailed: make(map[int]int),
		outcomes:      make(map[string]int),
	}
}

func (m *recordingMetrics) Published(node int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published[node]++
}

func (m *recordingMetrics) PublishFailed(node int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishFailed[node]++
}

func (m *recordingMetrics) Delivered(_ string, outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes[outcome]++
}

func (m *recordingMetrics) SubscriptionsChanged(delta int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions += delta
}

func (m *recordingMetrics) outcome(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outcomes[name]
}

func (m *recordingMetrics) openSubscriptions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subscriptions
}
