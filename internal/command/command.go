package command

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/shaiso/Coordinator/internal/lock"
)

const defaultLockTimeout = 5 * time.Second

// Callable — единица работы для диспетчера.
type Callable interface {
	// Name — описание для логов и дампа очереди.
	Name() string

	// Kind — тип (ключ лимита параллелизма и метрик).
	Kind() Kind

	// Priority — приоритет, больше — раньше.
	Priority() int

	// CreatedAt — время создания (для FIFO внутри приоритета).
	CreatedAt() time.Time

	// Call выполняет работу.
	Call(ctx context.Context) error
}

// Submitter — асинхронная постановка работы в очередь.
type Submitter interface {
	Submit(c Callable, delay time.Duration) error
	SubmitSerial(cs []Callable, delay time.Duration) error
}

// Meta — метаданные конкретной команды.
type Meta struct {
	Kind      Kind
	Priority  int
	Group     Group
	NeedsLock bool
}

// Command — команда с результатом R.
//
// Жизненный цикл (см. Call):
//
//	EagerPrecheck → [lock EntityKey] → Precheck → Execute → [unlock] → flush Outbox
//
// Любая ошибка предусловия завершает вызов без Execute.
// Конкретные команды встраивают Base.
type Command[R any] interface {
	Meta() Meta

	// EntityKey — домен блокировки, обычно ID владеющего job.
	EntityKey() string

	// EagerPrecheck — дешёвые проверки без блокировки.
	EagerPrecheck(ctx context.Context) error

	// Precheck — авторитетная проверка под блокировкой.
	Precheck(ctx context.Context) error

	// Execute — сама мутация. Последующие команды кладутся в out.
	Execute(ctx context.Context, out *Outbox) (R, error)

	base() *Base
}

// Base — общая часть команд: время создания, dry-run и защита от повторного вызова.
type Base struct {
	id      string
	created time.Time
	dryRun  bool
	used    int32
}

// NewBase создаёт Base; id попадает в имя команды.
func NewBase(id string) Base {
	return Base{id: id, created: time.Now()}
}

func (b *Base) base() *Base { return b }

// claim отмечает экземпляр использованным; false — если уже был вызван.
func (b *Base) claim() bool {
	return atomic.CompareAndSwapInt32(&b.used, 0, 1)
}

// ID возвращает идентификатор, переданный в NewBase.
func (b *Base) ID() string { return b.id }

// CreatedAt возвращает время создания команды.
func (b *Base) CreatedAt() time.Time { return b.created }

// SetDryRun включает режим, в котором выполняются только проверки.
func (b *Base) SetDryRun(v bool) { b.dryRun = v }

// DryRun сообщает, включён ли dry-run.
func (b *Base) DryRun() bool { return b.dryRun }

// Env — окружение выполнения команд.
type Env struct {
	Locks       *lock.Table
	Submitter   Submitter
	Metrics     *Metrics
	Logger      *slog.Logger
	LockTimeout time.Duration
}

func (e *Env) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

func (e *Env) lockTimeout() time.Duration {
	if e.LockTimeout <= 0 {
		return defaultLockTimeout
	}
	return e.LockTimeout
}
