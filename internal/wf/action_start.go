package wf

import (
	"context"

	"github.com/shaiso/Coordinator/internal/command"
	"github.com/shaiso/Coordinator/internal/domain"
)

// ActionStartCommand запускает действие через его executor.
type ActionStartCommand struct {
	actionCommand
}

func NewActionStartCommand(svc *Services, actionID string) *ActionStartCommand {
	return &ActionStartCommand{actionCommand: newActionCommand(svc, actionID)}
}

func (c *ActionStartCommand) Meta() command.Meta {
	return command.Meta{Kind: command.KindActionStart, Priority: 1, Group: command.GroupWorkflow, NeedsLock: true}
}

func (c *ActionStartCommand) Precheck(ctx context.Context) error {
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
	case domain.ActionPrep, domain.ActionStartRetry, domain.ActionStartManual:
		return nil
	default:
		return command.Skip("action %s is %s", c.actionID, c.action.Status)
	}
}

func (c *ActionStartCommand) Execute(ctx context.Context, out *command.Outbox) (struct{}, error) {
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
		if c.action.StartTime == nil {
			c.action.StartTime = &now
		}
		c.action.ErrorCode, c.action.ErrorMessage = "", ""

		if err := exec.Start(ctx, ac); err != nil {
			return handleExecutorError(ctx, c.svc, c.job, c.action, exec, err, startPhase, out)
		}

		c.action.Retries = 0
		if exec.IsCompleted(c.action.ExternalStatus) {
			c.action.Status = domain.ActionDone
			c.action.SetPending(now)
			command.Follow(out, NewActionEndCommand(c.svc, c.actionID), 0)
		} else {
			c.action.Status = domain.ActionRunning
			c.action.SetPending(now)
			c.action.LastCheckTime = &now
		}
		if err := c.svc.Store.UpdateWorkflowAction(ctx, c.action); err != nil {
			return err
		}
		c.svc.notifyAction(out, c.job, c.action)
		return nil
	})
	return struct{}{}, err
}
