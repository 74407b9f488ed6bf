package service

import "errors"

var (
	// ErrUnknownJobType — ID не относится ни к workflow, ни к координатору, ни к bundle.
	ErrUnknownJobType = errors.New("unknown job type")

	// ErrInvalidDefinition — определение должно содержать ровно одно
	// приложение: workflow, coordinator или bundle.
	ErrInvalidDefinition = errors.New("invalid definition")
)
