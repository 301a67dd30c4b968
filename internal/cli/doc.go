// Package cli реализует команды утилиты shardbus.
//
// # Обзор
//
// CLI работает с транспортом напрямую: собирает transport.Config из
// глобальных флагов и вызывает System. Используется для проверки
// топологии, ручной публикации и чтения сообщений.
//
// # Ключевые компоненты
//
// ## Options
//
// Глобальные флаги (--nodes, --exchange, --queue-prefix, --routing-keys,
// --durable, --json). Каждый флаг можно задать переменной окружения
// SHARDBUS_*; явный флаг имеет приоритет.
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON — с флагом --json (consume печатает JSON Lines)
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: shardbus consume --json | jq .
//
// ## Commands
//
//   - shards: план шардирования, без подключения к брокеру
//   - setup: объявление топологии на всех узлах
//   - publish: публикация сообщений
//   - consume: чтение со всех очередей до сигнала, /metrics и /healthz
//
// Каждая команда создаётся фабричной функцией (NewShardsCmd и т.д.),
// принимающей configFn и outputFn — замыкания, которые вызываются после
// парсинга PersistentFlags.
package cli
