// Package broker описывает возможности брокера сообщений, на которые
// опирается транспорт.
//
// Структура:
//   - broker.go    — интерфейсы ConnectionFactory, Connection, Channel,
//     Exchange, Queue, Subscription
//   - options.go   — параметры объявления exchanges, queues и подписок
//   - delivery.go  — Publishing (исходящее) и Delivery (входящее) сообщения
//
// Реализации:
//   - amqpbroker — RabbitMQ через github.com/rabbitmq/amqp091-go
//   - brokertest — брокер в памяти для тестов
//
// Пакет не содержит логики транспорта: шардирование, выбор узла и
// routing key живут в пакете transport.
package broker
