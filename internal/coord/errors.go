package coord

import "errors"

var (
	// ErrNoWorkflowServices — не настроены сервисы workflow для запуска действий.
	ErrNoWorkflowServices = errors.New("workflow services are not configured")
)
