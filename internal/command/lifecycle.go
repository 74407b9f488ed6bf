package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Coordinator/internal/lock"
	"github.com/shaiso/Coordinator/internal/telemetry"
)

// Call синхронно выполняет команду.
//
// Экземпляр выполняется не более одного раза: повторный вызов
// возвращает ErrAlreadyExecuted. Ошибки предусловия возвращаются
// вызывающему (с кодом CodePrecondition), но Execute не вызывается;
// если предусловие несёт запрос повтора, он ставится в очередь.
func Call[R any](ctx context.Context, env *Env, cmd Command[R]) (R, error) {
	var zero R
	meta := cmd.Meta()
	b := cmd.base()

	if !b.claim() {
		return zero, fmt.Errorf("%w: %s", ErrAlreadyExecuted, name(meta, b))
	}

	logger := telemetry.WithCommand(env.logger(), string(meta.Group), meta.Kind.String()).
		With("id", b.id)
	ctx = telemetry.WithLogger(ctx, logger)

	start := time.Now()
	env.Metrics.incExecution(meta.Kind)
	defer func() { env.Metrics.observe(meta.Kind, time.Since(start)) }()

	logger.Debug("command start")

	// 1. Дешёвые проверки без блокировки
	if err := cmd.EagerPrecheck(ctx); err != nil {
		return zero, env.fail(logger, meta, err)
	}

	// 2. Блокировка сущности
	release := func() {}
	if meta.NeedsLock {
		r, err := env.Locks.Acquire(ctx, cmd.EntityKey(), env.lockTimeout())
		if err != nil {
			if errors.Is(err, lock.ErrTimeout) {
				env.Metrics.incLockTimeout(meta.Kind)
				err = fmt.Errorf("%w: %s", ErrLockTimeout, cmd.EntityKey())
			}
			return zero, env.fail(logger, meta, err)
		}
		release = r
	}
	// Паника в Precheck/Execute не должна оставлять сущность заблокированной
	defer release()

	// 3. Авторитетная проверка под блокировкой
	if err := cmd.Precheck(ctx); err != nil {
		release()
		return zero, env.fail(logger, meta, err)
	}

	if b.dryRun {
		release()
		logger.Debug("dry run, skipping execute")
		return zero, nil
	}

	// 4. Мутация
	out := NewOutbox(env)
	result, err := cmd.Execute(ctx, out)
	release()
	if err != nil {
		return zero, env.fail(logger, meta, err)
	}

	// 5. Последующие команды — только после успешного выполнения
	out.flush(logger)

	logger.Debug("command end", "duration", time.Since(start))
	return result, nil
}

// fail учитывает ошибку и, для предусловий, ставит запрошенный повтор.
func (e *Env) fail(logger *slog.Logger, meta Meta, err error) error {
	var pe *PreconditionError
	if errors.As(err, &pe) {
		e.Metrics.incPrecondition(meta.Kind)
		logger.Debug("precondition not met", "reason", pe.Reason)
		if pe.Retry != nil {
			out := NewOutbox(e)
			out.Add(*pe.Retry)
			out.flush(logger)
		}
		return err
	}
	if errors.Is(err, ErrPrecondition) {
		e.Metrics.incPrecondition(meta.Kind)
		logger.Debug("precondition not met", "reason", err)
		return err
	}

	e.Metrics.incFailure(meta.Kind)
	logger.Warn("command failed", "error", err)
	return err
}

// Bind оборачивает команду в Callable для асинхронного выполнения.
//
// Асинхронный вызов не сообщает диспетчеру о невыполненных предусловиях:
// это локальный поток управления, а не ошибка.
func Bind[R any](env *Env, cmd Command[R]) Callable {
	return &task[R]{env: env, cmd: cmd}
}

type task[R any] struct {
	env *Env
	cmd Command[R]
}

func (t *task[R]) Name() string { return name(t.cmd.Meta(), t.cmd.base()) }
func (t *task[R]) Kind() Kind { return t.cmd.Meta().Kind }
func (t *task[R]) Priority() int { return t.cmd.Meta().Priority }
func (t *task[R]) CreatedAt() time.Time { return t.cmd.base().created }

func (t *task[R]) Call(ctx context.Context) error {
	_, err := Call(ctx, t.env, t.cmd)
	if IsPrecondition(err) {
		return nil
	}
	return err
}

func name(meta Meta, b *Base) string {
	if b.id == "" {
		return meta.Kind.String()
	}
	return meta.Kind.String() + ":" + b.id
}
