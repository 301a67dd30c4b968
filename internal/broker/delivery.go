package broker

import (
	"errors"
	"time"
)

// ErrAutoAck — подписка открыта без ManualAck, подтверждать нечего.
var ErrAutoAck = errors.New("delivery was auto-acknowledged")

// Publishing — сообщение для публикации.
type Publishing struct {
	Headers     Table
	ContentType string
	MessageID   string
	Timestamp   time.Time

	// Persistent — сообщение должно пережить рестарт брокера
	// (если очередь durable).
	Persistent bool

	Body []byte
}

// Acknowledger подтверждает или отклоняет доставку.
type Acknowledger interface {
	Ack() error
	Nack(requeue bool) error
}

// Delivery — доставленное сообщение.
type Delivery struct {
	Headers     Table
	ContentType string
	MessageID   string
	RoutingKey  string
	Exchange    string
	Timestamp   time.Time
	Redelivered bool

	Body []byte

	// Acknowledger — nil для подписок без ManualAck.
	Acknowledger Acknowledger
}

// Ack подтверждает успешную обработку сообщения.
func (d *Delivery) Ack() error {
	if d.Acknowledger == nil {
		return ErrAutoAck
	}
	return d.Acknowledger.Ack()
}

// Nack отклоняет сообщение.
// requeue=true — вернуть в очередь, false — отбросить (или в DLQ, если настроен).
func (d *Delivery) Nack(requeue bool) error {
	if d.Acknowledger == nil {
		return ErrAutoAck
	}
	return d.Acknowledger.Nack(requeue)
}
