// Package transport реализует шардированный publish/subscribe поверх
// набора узлов брокера.
//
// # Обзор
//
// Пространство routing keys делится между N узлами. На каждом узле есть
// exchange (direct, одинаковое имя на всех узлах) и очередь шарда
// <prefix><index>. Очередь узла i привязана к exchange своего узла по
// каждому ключу из части i.
//
// Producer публикует на случайно выбранный узел, routing key выбирается
// стратегией. Consumer подписывается на очереди всех узлов и получает
// сообщения в один Handler.
//
// # Ключевые компоненты
//
// ## System
//
// Владеет соединениями, топологией и выбором routing key.
//
//	sys, err := transport.New(transport.Config{
//	    Nodes:             []string{"amqp://mq00:5672", "amqp://mq01:5672", "amqp://mq02:5672"},
//	    ConnectionFactory: amqpbroker.NewFactory(logger),
//	    ExchangeName:      "events",
//	    QueuePrefix:       "events_",
//	    RoutingKeys:       []string{"r00", "r01", "r02", "r03", "r04", "r05"},
//	    Logger:            logger,
//	})
//	if err != nil {
//	    return err
//	}
//	defer sys.Disconnect()
//
//	if err := sys.DeclareTopology(ctx); err != nil {
//	    return err
//	}
//
// DeclareTopology создаёт exchanges, очереди и bindings. Если топология
// уже существует, достаточно Publisher/Consumer: они найдут её в passive
// режиме (AttachToExistingTopology делает это явно).
//
// ## Publisher
//
//	pub, err := sys.Publisher(ctx)
//	err = pub.Publish(ctx, "hello world")          // как есть
//	err = pub.Publish(ctx, map[string]string{...}) // через Encoder
//
// ## Consumer
//
//	c, err := sys.Consumer(ctx)
//	err = c.Each(ctx, func(ctx context.Context, d *broker.Delivery) error {
//	    return process(d.Headers, d.Body)
//	})
//	defer c.Stop()
//
// Подтверждение ручное: nil из Handler → ack, error → nack с requeue,
// panic → nack без requeue. Handler может вызвать d.Ack/d.Nack сам.
//
// # Шардирование
//
// Имя очереди: prefix + индекс узла, дополненный нулями до
// max(2, число цифр в N): 3 узла → 00..02, 222 узла → 000..221.
//
// Ключи делятся на непрерывные части в порядке списка, размеры частей
// отличаются не больше чем на один (7 ключей на 3 узла → 3, 2, 2).
//
// # Routing
//
//   - RandomRouting — по умолчанию, равномерно случайный ключ
//   - HashRouting — одинаковый ключ сообщения → одинаковая очередь
//   - RoutingFunc — произвольная функция
//
// Любой результат стратегии берётся по модулю числа ключей.
//
// # Ошибки
//
// Ошибки брокера не повторяются и возвращаются вызывающему с индексом
// узла. Retry и backoff — ответственность вызывающего.
package transport
