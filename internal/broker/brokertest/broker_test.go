package brokertest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/shardbus/internal/broker"
)

func channel(t *testing.T, b *Broker, address string) broker.Channel {
	t.Helper()

	conn, err := b.Connect(context.Background(), address)
	require.NoError(t, err)
	ch, err := conn.Channel()
	require.NoError(t, err)
	return ch
}

func TestBroker_PublishThroughAnyNodeReachesBoundQueue(t *testing.T) {
	b := New()

	ch0 := channel(t, b, "amqp://n0")
	ex0, err := ch0.Exchange("ex", broker.ExchangeOptions{Type: broker.ExchangeKindDirect})
	require.NoError(t, err)
	q, err := ch0.Queue("q_00", broker.QueueOptions{})
	require.NoError(t, err)
	require.NoError(t, q.Bind(ex0, "k1"))

	ch1 := channel(t, b, "amqp://n1")
	ex1, err := ch1.Exchange("ex", broker.ExchangeOptions{Passive: true})
	require.NoError(t, err)

	require.NoError(t, ex1.Publish(context.Background(), "k1", broker.Publishing{Body: []byte("hi")}))
	require.NoError(t, ex1.Publish(context.Background(), "unbound", broker.Publishing{Body: []byte("lost")}))

	assert.Equal(t, 1, b.Pending("q_00"))
	published := b.Published()
	require.Len(t, published, 2)
	assert.Equal(t, "amqp://n1", published[0].Address)
}

func TestBroker_PassiveLookupOfMissingObject(t *testing.T) {
	ch := channel(t, New(), "amqp://n0")

	_, err := ch.Exchange("ex", broker.ExchangeOptions{Passive: true})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = ch.Queue("q", broker.QueueOptions{Passive: true})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBroker_FailConnect(t *testing.T) {
	errRefused := errors.New("refused")
	b := New()
	b.FailConnect("amqp://n0", errRefused)

	_, err := b.Connect(context.Background(), "amqp://n0")
	assert.ErrorIs(t, err, errRefused)

	b.FailConnect("amqp://n0", nil)
	_, err = b.Connect(context.Background(), "amqp://n0")
	assert.NoError(t, err)

	assert.Equal(t, []string{"amqp://n0", "amqp://n0"}, b.Connects())
	assert.Len(t, b.Connections(), 1)
}

func TestBroker_SubscribeAckNack(t *testing.T) {
	b := New()
	ch := channel(t, b, "amqp://n0")
	ex, err := ch.Exchange("ex", broker.ExchangeOptions{})
	require.NoError(t, err)
	q, err := ch.Queue("q", broker.QueueOptions{})
	require.NoError(t, err)
	require.NoError(t, q.Bind(ex, "k"))
	require.NoError(t, q.Bind(ex, "k"))
	assert.Len(t, b.Bindings(), 1, "duplicate binding is ignored")

	sub, err := q.Subscribe(broker.SubscribeOptions{ManualAck: true})
	require.NoError(t, err)
	assert.Equal(t, 1, b.Subscribers("q"))

	deliveries := make(chan *broker.Delivery, 2)
	require.NoError(t, sub.Each(func(d *broker.Delivery) { deliveries <- d }))
	assert.Error(t, sub.Each(func(*broker.Delivery) {}))

	for _, body := range []string{"a", "b"} {
		require.NoError(t, ex.Publish(context.Background(), "k", broker.Publishing{Body: []byte(body)}))
	}

	first, second := <-deliveries, <-deliveries
	require.NoError(t, first.Ack())
	assert.ErrorIs(t, first.Nack(true), ErrAlreadyAcknowledged)
	require.NoError(t, second.Nack(true))

	acked, nacked, requeued := b.Acks("q")
	assert.Equal(t, 1, acked)
	assert.Equal(t, 1, nacked)
	assert.Equal(t, 1, requeued)

	require.NoError(t, sub.Cancel())
	require.NoError(t, sub.Cancel())
	assert.Zero(t, b.Subscribers("q"))
}

func TestBroker_AutoAckDeliveryHasNoAcknowledger(t *testing.T) {
	b := New()
	ch := channel(t, b, "amqp://n0")
	ex, _ := ch.Exchange("ex", broker.ExchangeOptions{})
	q, _ := ch.Queue("q", broker.QueueOptions{})
	require.NoError(t, q.Bind(ex, "k"))

	sub, err := q.Subscribe(broker.SubscribeOptions{})
	require.NoError(t, err)
	deliveries := make(chan *broker.Delivery, 1)
	require.NoError(t, sub.Each(func(d *broker.Delivery) { deliveries <- d }))
	require.NoError(t, ex.Publish(context.Background(), "k", broker.Publishing{}))

	select {
	case d := <-deliveries:
		assert.ErrorIs(t, d.Ack(), broker.ErrAutoAck)
		assert.ErrorIs(t, d.Nack(false), broker.ErrAutoAck)
	case <-time.After(time.Second):
		t.Fatal("no delivery")
	}
}

func TestBroker_FailSubscribe(t *testing.T) {
	errDenied := errors.New("denied")
	b := New()
	ch := channel(t, b, "amqp://n0")
	q, _ := ch.Queue("q", broker.QueueOptions{})

	b.FailSubscribe("q", errDenied)
	_, err := q.Subscribe(broker.SubscribeOptions{})
	assert.ErrorIs(t, err, errDenied)
	assert.Zero(t, b.Subscribers("q"))

	b.FailSubscribe("q", nil)
	_, err = q.Subscribe(broker.SubscribeOptions{})
	assert.NoError(t, err)
}

func TestConnection_CloseCancelsSubscriptions(t *testing.T) {
	b := New()
	conn, err := b.Connect(context.Background(), "amqp://n0")
	require.NoError(t, err)
	ch, _ := conn.Channel()
	q, _ := ch.Queue("q", broker.QueueOptions{})
	_, err = q.Subscribe(broker.SubscribeOptions{})
	require.NoError(t, err)

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())

	assert.Zero(t, b.Subscribers("q"))
	_, err = conn.Channel()
	assert.ErrorIs(t, err, ErrClosed)
	_, err = ch.Exchange("ex", broker.ExchangeOptions{})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestExchange_PublishRespectsContext(t *testing.T) {
	ch := channel(t, New(), "amqp://n0")
	ex, _ := ch.Exchange("ex", broker.ExchangeOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, ex.Publish(ctx, "k", broker.Publishing{}), context.Canceled)
}
