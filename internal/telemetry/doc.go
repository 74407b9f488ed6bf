// Package telemetry обеспечивает наблюдаемость системы.
//
// Включает:
//   - logging.go — structured logging через slog (json, text, console через tint)
//
// Метрики объявляются в пакетах, которые их пишут (command, dispatcher,
// scheduler), и экспортируются на /metrics endpoint.
package telemetry
