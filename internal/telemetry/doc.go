// Package telemetry обеспечивает наблюдаемость транспорта.
//
// Включает:
//   - logging.go — structured logging через slog
//   - metrics.go — Prometheus метрики публикаций и доставок
//
// Metrics реализует transport.Metrics; команда consume экспортирует
// метрики на /metrics endpoint.
package telemetry
