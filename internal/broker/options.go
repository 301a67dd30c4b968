package broker

// ExchangeKindDirect — тип обменника для шардов.
const ExchangeKindDirect = "direct"

// Table — дополнительные аргументы объявления (x-* аргументы AMQP).
type Table map[string]any

// ExchangeOptions — параметры объявления exchange.
type ExchangeOptions struct {
	// Type — тип обменника (direct, topic, fanout, headers).
	Type string

	// Passive — только проверить существование, не создавать.
	Passive bool

	Durable    bool
	AutoDelete bool
	Internal   bool
	Args       Table
}

// QueueOptions — параметры объявления очереди.
type QueueOptions struct {
	// Passive — только проверить существование, не создавать.
	Passive bool

	Durable    bool
	AutoDelete bool
	Exclusive  bool
	Args       Table
}

// SubscribeOptions — параметры подписки.
type SubscribeOptions struct {
	// ManualAck — сообщения подтверждаются вызовом Delivery.Ack/Nack.
	// Если false, брокер считает сообщение подтверждённым при отправке.
	ManualAck bool

	// Prefetch — сколько неподтверждённых сообщений брокер отдаёт подписке.
	Prefetch int

	// ConsumerTag — идентификатор подписки. Пустой — генерируется брокером.
	ConsumerTag string
}
