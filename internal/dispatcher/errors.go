package dispatcher

import "errors"

// Ошибки диспетчера.
var (
	// ErrQueueFull — очередь заполнена, работа не принята.
	ErrQueueFull = errors.New("queue is full")

	// ErrSafeMode — система в SAFEMODE, новая работа не принимается.
	ErrSafeMode = errors.New("system is in safe mode")

	// ErrStopped — диспетчер остановлен.
	ErrStopped = errors.New("dispatcher stopped")

	// ErrEmptyBatch — пустой список для последовательного выполнения.
	ErrEmptyBatch = errors.New("empty serial batch")
)
