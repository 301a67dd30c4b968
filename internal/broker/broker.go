package broker

import "context"

// ConnectionFactory открывает соединение с узлом брокера по адресу.
type ConnectionFactory interface {
	Connect(ctx context.Context, address string) (Connection, error)
}

// Connection — соединение с одним узлом брокера.
//
// Close закрывает соединение вместе со всеми открытыми на нём каналами.
type Connection interface {
	Channel() (Channel, error)
	Close() error
}

// Channel — канал внутри соединения.
//
// Exchange и Queue объявляют объект топологии (или ищут существующий,
// если в параметрах указан Passive). Возвращённый объект продолжает
// использовать этот канал, поэтому канал живёт столько же, сколько объект.
type Channel interface {
	Exchange(name string, opts ExchangeOptions) (Exchange, error)
	Queue(name string, opts QueueOptions) (Queue, error)
	Close() error
}

// Exchange — обменник на конкретном узле.
type Exchange interface {
	Name() string

	// Publish отправляет сообщение с указанным routing key.
	// Подтверждение от брокера не ожидается.
	Publish(ctx context.Context, routingKey string, msg Publishing) error
}

// Queue — очередь на конкретном узле.
type Queue interface {
	Name() string

	// Bind привязывает очередь к exchange по routing key.
	Bind(exchange Exchange, routingKey string) error

	// Subscribe открывает подписку на очередь.
	Subscribe(opts SubscribeOptions) (Subscription, error)
}

// Subscription — активная подписка на очередь.
type Subscription interface {
	// Each регистрирует обработчик и сразу возвращает управление.
	// Сообщения доставляются в отдельной горутине подписки.
	Each(fn func(*Delivery)) error

	// Cancel отменяет подписку. Уже начатый вызов обработчика
	// не прерывается и не ожидается.
	Cancel() error
}
