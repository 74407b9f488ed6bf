package wf

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownActionType — нет executor'а для типа действия.
	ErrUnknownActionType = errors.New("unknown action type")

	// ErrActionDefNotFound — действие отсутствует в определении job.
	ErrActionDefNotFound = errors.New("action definition not found")

	// ErrInvalidConfig — некорректная конфигурация действия.
	ErrInvalidConfig = errors.New("invalid action config")
)

// ErrorKind — класс ошибки executor'а.
type ErrorKind int

const (
	// Transient — временная ошибка, действие повторяется.
	Transient ErrorKind = iota + 1

	// NonTransient — требуется вмешательство, job приостанавливается.
	NonTransient

	// Error — действие завершается со статусом ERROR.
	Error

	// Failed — фатальная ошибка, job завершается FAILED.
	Failed
)

func (k ErrorKind) String() string {
	switch k {
	case Transient:
		return "TRANSIENT"
	case NonTransient:
		return "NON_TRANSIENT"
	case Error:
		return "ERROR"
	case Failed:
		return "FAILED"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// ExecutorError — ошибка executor'а с классом и кодом.
type ExecutorError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

func (e *ExecutorError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s [%s]: %s: %v", e.Kind, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %s", e.Kind, e.Code, e.Message)
}

func (e *ExecutorError) Unwrap() error {
	return e.Err
}

// NewExecutorError создаёт ExecutorError.
func NewExecutorError(kind ErrorKind, code string, err error, format string, args ...any) *ExecutorError {
	return &ExecutorError{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// asExecutorError приводит err к ExecutorError.
// Ошибки без класса считаются ERROR.
func asExecutorError(err error) *ExecutorError {
	var ee *ExecutorError
	if errors.As(err, &ee) {
		return ee
	}
	return &ExecutorError{Kind: Error, Code: "EXECUTOR_ERROR", Message: err.Error(), Err: err}
}
