// Package api содержит HTTP API сервера координатора.
//
// Структура:
//   - handler.go       — Handler с DI (сервис, режим, logger)
//   - routes.go        — регистрация маршрутов
//   - middleware.go    — middleware (logging, recovery, режим NOWEBSERVICE)
//   - response.go      — унифицированные JSON-ответы и обработка ошибок
//   - dto.go           — Data Transfer Objects (request/response)
//   - job_handler.go   — обработчики для /jobs
//   - admin_handler.go — обработчики для /admin
//
// API предоставляет REST endpoints для отправки job, управления ими
// и администрирования очереди и режима.
package api
