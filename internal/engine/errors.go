package engine

import "errors"

// Ошибки валидации приложений.
var (
	// ErrEmptyName — приложение без имени.
	ErrEmptyName = errors.New("application has no name")

	// ErrEmptyActions — workflow не содержит действий.
	ErrEmptyActions = errors.New("workflow has no actions")

	// ErrEmptyActionName — действие без имени.
	ErrEmptyActionName = errors.New("action has empty name")

	// ErrDuplicateActionName — несколько действий с одинаковым именем.
	ErrDuplicateActionName = errors.New("duplicate action name")

	// ErrUnknownActionType — неизвестный тип действия.
	ErrUnknownActionType = errors.New("unknown action type")

	// ErrMissingDependency — действие зависит от несуществующего действия.
	ErrMissingDependency = errors.New("action depends on unknown action")

	// ErrCyclicDependency — обнаружен цикл в зависимостях.
	ErrCyclicDependency = errors.New("cyclic dependency detected")

	// ErrSelfDependency — действие зависит от самого себя.
	ErrSelfDependency = errors.New("action depends on itself")

	// ErrInvalidWindow — пустой или перевёрнутый интервал [start, end).
	ErrInvalidWindow = errors.New("invalid start/end window")

	// ErrEmptyFrequency — координатор без частоты.
	ErrEmptyFrequency = errors.New("coordinator has no frequency")

	// ErrDuplicateInput — несколько входов с одинаковым именем.
	ErrDuplicateInput = errors.New("duplicate input name")

	// ErrEmptyInput — вход без имени или URI.
	ErrEmptyInput = errors.New("input has empty name or uri")

	// ErrEmptyCoordinators — bundle без координаторов.
	ErrEmptyCoordinators = errors.New("bundle has no coordinators")
)

// Ошибки рендеринга шаблонов.
var (
	// ErrTemplateRender — ошибка рендеринга шаблона.
	ErrTemplateRender = errors.New("template render failed")

	// ErrTemplateParse — ошибка парсинга шаблона.
	ErrTemplateParse = errors.New("template parse failed")
)

// ValidationError — ошибка валидации с контекстом.
type ValidationError struct {
	Element string // действие, вход или координатор, где произошла ошибка
	Field   string // поле, вызвавшее ошибку
	Message string // описание ошибки
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.Element != "" {
		return e.Element + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт новую ошибку валидации.
func NewValidationError(element, field, message string, err error) *ValidationError {
	return &ValidationError{
		Element: element,
		Field:   field,
		Message: message,
		Err:     err,
	}
}
