package scheduler

import "errors"

var (
	// ErrInvalidFrequency — частота не является числом минут или cron-выражением.
	ErrInvalidFrequency = errors.New("invalid frequency")

	// ErrAlreadyStarted — задачи регистрируются до Start.
	ErrAlreadyStarted = errors.New("scheduler already started")
)
