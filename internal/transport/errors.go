package transport

import (
	"errors"
	"fmt"
)

// Ошибки конфигурации. Все оборачивают ErrInvalidConfig.
var (
	// ErrInvalidConfig — конфигурация транспорта некорректна.
	ErrInvalidConfig = errors.New("invalid transport config")

	ErrNoNodes             = fmt.Errorf("%w: node list is empty", ErrInvalidConfig)
	ErrNoConnectionFactory = fmt.Errorf("%w: connection factory is nil", ErrInvalidConfig)
	ErrNoExchangeName      = fmt.Errorf("%w: exchange name is empty", ErrInvalidConfig)
	ErrNoQueuePrefix       = fmt.Errorf("%w: queue prefix is empty", ErrInvalidConfig)
	ErrNoRoutingKeys       = fmt.Errorf("%w: routing key list is empty", ErrInvalidConfig)
	ErrDuplicateRoutingKey = fmt.Errorf("%w: duplicate routing key", ErrInvalidConfig)
)

// Ошибки жизненного цикла.
var (
	// ErrClosed — транспорт отключён через Disconnect.
	ErrClosed = errors.New("transport is closed")

	// ErrConsumerActive — Each вызван на уже активном consumer.
	ErrConsumerActive = errors.New("consumer is already active")

	// ErrConsumerStopped — Each вызван на остановленном consumer.
	ErrConsumerStopped = errors.New("consumer is stopped")

	// ErrAlreadySettled — доставка уже подтверждена или отклонена.
	ErrAlreadySettled = errors.New("delivery already settled")

	// ErrUnknownRoutingKey — routing key не входит в пространство ключей.
	ErrUnknownRoutingKey = errors.New("unknown routing key")
)
