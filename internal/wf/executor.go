package wf

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/shaiso/Coordinator/internal/domain"
)

// ActionContext — то, что executor видит о действии.
//
// Executor меняет Action.ExternalID, ExternalStatus и Data;
// сохраняет их команда.
type ActionContext struct {
	Job    *domain.WorkflowJob
	Action *domain.WorkflowAction

	// Config — отрендеренная конфигурация действия.
	Config map[string]any

	Now time.Time
}

// Executor — реализация типа действия.
//
// Start запускает работу. Если после Start IsCompleted(ExternalStatus)
// истинно, действие сразу переходит к End; иначе опрашивается через Check.
type Executor interface {
	Type() string
	Start(ctx context.Context, ac *ActionContext) error
	Check(ctx context.Context, ac *ActionContext) error
	End(ctx context.Context, ac *ActionContext) (domain.ActionStatus, error)
	Kill(ctx context.Context, ac *ActionContext) error
	IsCompleted(externalStatus string) bool

	// MaxRetries и RetryInterval — параметры повторов по умолчанию.
	MaxRetries() int
	RetryInterval() time.Duration
}

// Registry — executor'ы по типу действия.
type Registry struct {
	executors map[string]Executor
}

// NewRegistry создаёт реестр с executor'ами http, sleep, transform, noop.
func NewRegistry(client *http.Client) *Registry {
	r := &Registry{executors: make(map[string]Executor)}
	r.Register(NewHTTPExecutor(client))
	r.Register(&SleepExecutor{})
	r.Register(&TransformExecutor{})
	r.Register(&NoopExecutor{})
	return r
}

// Register добавляет или заменяет executor.
func (r *Registry) Register(e Executor) {
	r.executors[e.Type()] = e
}

// Get возвращает executor для типа.
func (r *Registry) Get(actionType string) (Executor, error) {
	e, ok := r.executors[actionType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownActionType, actionType)
	}
	return e, nil
}

// Has сообщает, зарегистрирован ли тип.
func (r *Registry) Has(actionType string) bool {
	_, ok := r.executors[actionType]
	return ok
}

// Types возвращает зарегистрированные типы по алфавиту.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.executors))
	for t := range r.executors {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
