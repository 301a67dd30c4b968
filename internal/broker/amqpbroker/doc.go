// Package amqpbroker реализует интерфейсы пакета broker поверх RabbitMQ
// (github.com/rabbitmq/amqp091-go).
//
// Структура:
//   - connection.go   — Factory и Connection (dial, открытие каналов, close)
//   - topology.go     — Channel: объявление и passive-поиск exchanges и queues
//   - exchange.go     — публикация сообщений
//   - subscription.go — очереди, bindings и подписки с ручным ack
//
// Каждый объект топологии держит собственный AMQP канал: каналы
// закрываются вместе с соединением.
//
// Переподключения нет: набор узлов и соединения фиксированы на время
// жизни транспорта, разрыв соединения возвращается ошибкой.
package amqpbroker
