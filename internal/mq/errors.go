package mq

import "errors"

var (
	// ErrNoChannel — канал AMQP недоступен (нет соединения).
	ErrNoChannel = errors.New("no amqp channel available")

	// ErrConnectionClosed — соединение закрыто через Close.
	ErrConnectionClosed = errors.New("amqp connection closed")
)
