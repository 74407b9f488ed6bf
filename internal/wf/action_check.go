package wf

import (
	"context"
	"time"

	"github.com/shaiso/Coordinator/internal/command"
	"github.com/shaiso/Coordinator/internal/domain"
	"github.com/shaiso/Coordinator/internal/telemetry"
)

// ActionCheckCommand опрашивает executor о состоянии RUNNING действия.
//
// Проверка пропускается, если с прошлой не прошло checkDelay.
// Ошибки проверки, кроме FAILED, не меняют статус.
type ActionCheckCommand struct {
	actionCommand
	checkDelay time.Duration
}

// NewActionCheckCommand создаёт проверку с задержкой по умолчанию.
func NewActionCheckCommand(svc *Services, actionID string) *ActionCheckCommand {
	return &ActionCheckCommand{actionCommand: newActionCommand(svc, actionID), checkDelay: svc.checkDelay()}
}

// NewActionCallbackCommand создаёт проверку без задержки
// (обратный вызов внешней системы).
func NewActionCallbackCommand(svc *Services, actionID string) *ActionCheckCommand {
	return &ActionCheckCommand{actionCommand: newActionCommand(svc, actionID)}
}

func (c *ActionCheckCommand) Meta() command.Meta {
	return command.Meta{Kind: command.KindActionCheck, Priority: 0, Group: command.GroupWorkflow, NeedsLock: true}
}

func (c *ActionCheckCommand) Precheck(ctx context.Context) error {
	if err := c.load(ctx); err != nil {
		return err
	}
	if !c.action.Pending || c.action.Status != domain.ActionRunning {
		return command.Skip("action %s is %s (pending=%t)", c.actionID, c.action.Status, c.action.Pending)
	}
	if c.job.Status != domain.JobRunning {
		return command.Skip("job %s is %s, not RUNNING", c.job.ID, c.job.Status)
	}
	if last := c.action.LastCheckTime; last != nil && c.checkDelay > 0 &&
		c.svc.now().Before(last.Add(c.checkDelay)) {
		return command.Skip("action %s checked at %s", c.actionID, last.Format(time.RFC3339))
	}
	return nil
}

func (c *ActionCheckCommand) Execute(ctx context.Context, out *command.Outbox) (struct{}, error) {
	err := c.svc.Store.InTx(ctx, func(ctx context.Context) error {
		exec, err := c.svc.Executors.Get(c.action.Type)
		if err != nil {
			return failJob(ctx, c.svc, c.job, c.action, NewExecutorError(Failed, "UNKNOWN_TYPE", err, "no executor"), out)
		}
		ac, err := c.svc.actionContext(ctx, c.job, c.action)
		if err != nil {
			return failJob(ctx, c.svc, c.job, c.action, NewExecutorError(Failed, "CONFIG_RENDER", err, "render config"), out)
		}

		now := c.svc.now()
		c.action.LastCheckTime = &now

		if err := exec.Check(ctx, ac); err != nil {
			ee := asExecutorError(err)
			if ee.Kind == Failed {
				return failJob(ctx, c.svc, c.job, c.action, ee, out)
			}
			telemetry.WithActionID(telemetry.FromContext(ctx), c.actionID).
				Warn("action check failed", "kind", ee.Kind, "code", ee.Code, "error", ee.Message)
		} else if exec.IsCompleted(c.action.ExternalStatus) {
			c.action.Status = domain.ActionDone
			c.action.SetPending(now)
			command.Follow(out, NewActionEndCommand(c.svc, c.actionID), 0)
		}

		return c.svc.Store.UpdateWorkflowAction(ctx, c.action)
	})
	return struct{}{}, err
}

// ActionEndCommand завершает действие: End executor'а даёт OK или ERROR,
// затем сигнал job.
type ActionEndCommand struct {
	actionCommand
}

func NewActionEndCommand(svc *Services, actionID string) *ActionEndCommand {
	return &ActionEndCommand{actionCommand: newActionCommand(svc, actionID)}
}

func (c *ActionEndCommand) Meta() command.Meta {
	return command.Meta{Kind: command.KindActionEnd, Priority: 1, Group: command.GroupWorkflow, NeedsLock: true}
}

func (c *ActionEndCommand) Precheck(ctx context.Context) error {
	if err := c.load(ctx); err != nil {
		return err
	}
	if c.job.Status != domain.JobRunning {
		return command.Skip("job %s is %s, not RUNNING", c.job.ID, c.job.Status)
	}
	if !c.action.Pending {
		return command.Skip("action %s is not pending", c.actionID)
	}
	switch c.action.Status {
	case domain.ActionDone, domain.ActionEndRetry, domain.ActionEndManual:
		return nil
	default:
		return command.Skip("action %s is %s", c.actionID, c.action.Status)
	}
}

func (c *ActionEndCommand) Execute(ctx context.Context, out *command.Outbox) (struct{}, error) {
	err := c.svc.Store.InTx(ctx, func(ctx context.Context) error {
		now := c.svc.now()

		// Ошибка старта уже записана, executor не вызывается
		if c.action.ExternalStatus == ExternalError && c.action.ErrorCode != "" {
			return c.finish(ctx, domain.ActionError, now, out)
		}

		exec, err := c.svc.Executors.Get(c.action.Type)
		if err != nil {
			return failJob(ctx, c.svc, c.job, c.action, NewExecutorError(Failed, "UNKNOWN_TYPE", err, "no executor"), out)
		}
		ac, err := c.svc.actionContext(ctx, c.job, c.action)
		if err != nil {
			return failJob(ctx, c.svc, c.job, c.action, NewExecutorError(Failed, "CONFIG_RENDER", err, "render config"), out)
		}

		status, err := exec.End(ctx, ac)
		if err != nil {
			return handleExecutorError(ctx, c.svc, c.job, c.action, exec, err, endPhase, out)
		}
		return c.finish(ctx, status, now, out)
	})
	return struct{}{}, err
}

func (c *ActionEndCommand) finish(ctx context.Context, status domain.ActionStatus, now time.Time, out *command.Outbox) error {
	c.action.MarkEnded(status, now)
	if err := c.svc.Store.UpdateWorkflowAction(ctx, c.action); err != nil {
		return err
	}
	c.svc.notifyAction(out, c.job, c.action)
	command.Follow(out, NewSignalCommand(c.svc, c.job.ID), 0)
	return nil
}

// ActionKillCommand останавливает запущенное действие, отмеченное KILLED.
type ActionKillCommand struct {
	actionCommand
}

func NewActionKillCommand(svc *Services, actionID string) *ActionKillCommand {
	return &ActionKillCommand{actionCommand: newActionCommand(svc, actionID)}
}

func (c *ActionKillCommand) Meta() command.Meta {
	return command.Meta{Kind: command.KindActionKill, Priority: 2, Group: command.GroupWorkflow, NeedsLock: true}
}

func (c *ActionKillCommand) Precheck(ctx context.Context) error {
	if err := c.load(ctx); err != nil {
		return err
	}
	if !c.action.Pending || c.action.Status != domain.ActionKilled {
		return command.Skip("action %s is %s (pending=%t)", c.actionID, c.action.Status, c.action.Pending)
	}
	return nil
}

func (c *ActionKillCommand) Execute(ctx context.Context, out *command.Outbox) (struct{}, error) {
	logger := telemetry.WithActionID(telemetry.FromContext(ctx), c.actionID)

	if exec, err := c.svc.Executors.Get(c.action.Type); err == nil {
		ac := &ActionContext{Job: c.job, Action: c.action, Now: c.svc.now()}
		if err := exec.Kill(ctx, ac); err != nil {
			logger.Warn("executor kill failed", "error", err)
		}
	}

	c.action.MarkEnded(domain.ActionKilled, c.svc.now())
	if err := c.svc.Store.UpdateWorkflowAction(ctx, c.action); err != nil {
		return struct{}{}, err
	}
	c.svc.notifyAction(out, c.job, c.action)
	return struct{}{}, nil
}
