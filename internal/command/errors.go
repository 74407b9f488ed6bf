package command

import (
	"errors"
	"fmt"
)

// Ошибки жизненного цикла команды.
var (
	// ErrAlreadyExecuted — экземпляр команды уже был вызван.
	ErrAlreadyExecuted = errors.New("command already executed")

	// ErrPrecondition — предусловие не выполнено, команда не исполнялась.
	ErrPrecondition = errors.New("precondition not met")

	// ErrLockTimeout — не удалось получить блокировку сущности.
	ErrLockTimeout = errors.New("entity lock timeout")
)

// PreconditionError — невыполненное предусловие.
//
// Может нести запрос на повторное планирование свежей команды
// (например, "ещё не время").
type PreconditionError struct {
	Reason string
	Retry  *Request
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: %s", ErrPrecondition, e.Reason)
}

func (e *PreconditionError) Unwrap() error {
	return ErrPrecondition
}

// Skip возвращает ошибку невыполненного предусловия.
func Skip(format string, args ...any) error {
	return &PreconditionError{Reason: fmt.Sprintf(format, args...)}
}

// SkipAndRetry возвращает ошибку предусловия с запросом повтора.
func SkipAndRetry(retry Request, format string, args ...any) error {
	return &PreconditionError{Reason: fmt.Sprintf(format, args...), Retry: &retry}
}

// IsPrecondition проверяет, что ошибка — невыполненное предусловие.
func IsPrecondition(err error) bool {
	return errors.Is(err, ErrPrecondition)
}

// Коды ошибок для синхронных вызовов.
const (
	CodePrecondition = "PRECONDITION_FAILED"
	CodeLockTimeout  = "LOCK_TIMEOUT"
	CodeIllegalState = "ILLEGAL_STATE"
	CodeInternal     = "INTERNAL_ERROR"
)

// Code возвращает код ошибки команды.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrPrecondition):
		return CodePrecondition
	case errors.Is(err, ErrLockTimeout):
		return CodeLockTimeout
	case errors.Is(err, ErrAlreadyExecuted):
		return CodeIllegalState
	default:
		return CodeInternal
	}
}
