// Package notify доставляет уведомления о переходах статусов:
// HTTP GET на URL из определения workflow и событие в AMQP.
package notify
