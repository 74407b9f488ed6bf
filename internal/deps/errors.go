package deps

import "errors"

// Ошибки разрешения зависимостей.
var (
	// ErrInvalidInstance — выражение экземпляра не разобрано.
	ErrInvalidInstance = errors.New("invalid instance expression")

	// ErrUnsupportedScheme — схема URI не поддерживается.
	ErrUnsupportedScheme = errors.New("unsupported uri scheme")

	// ErrCheckFailed — не удалось проверить существование.
	ErrCheckFailed = errors.New("existence check failed")
)
