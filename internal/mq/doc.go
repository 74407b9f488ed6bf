// Package mq — инфраструктура RabbitMQ.
//
//   - connection.go — соединение с переподключением
//   - topology.go   — обменники, очереди, привязки
//   - publisher.go  — события переходов статусов
//   - consumer.go   — обратные вызовы внешних систем по действиям
//
// Брокер необязателен: без него уведомления идут только по HTTP,
// а опрос действий выполняет планировщик.
package mq
