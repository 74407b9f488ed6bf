package coord

import (
	"context"

	"github.com/shaiso/Coordinator/internal/command"
	"github.com/shaiso/Coordinator/internal/domain"
	"github.com/shaiso/Coordinator/internal/telemetry"
	"github.com/shaiso/Coordinator/internal/wf"
)

// ReadyCommand отправляет READY действия (старшие первыми), пока число
// SUBMITTED и RUNNING действий меньше Concurrency координатора.
type ReadyCommand struct {
	jobCommand
}

func NewReadyCommand(svc *Services, jobID string) *ReadyCommand {
	return &ReadyCommand{jobCommand: newJobCommand(svc, jobID)}
}

func (c *ReadyCommand) Meta() command.Meta {
	return command.Meta{Kind: command.KindCoordActionReady, Priority: 1, Group: command.GroupCoordinator, NeedsLock: true}
}

func (c *ReadyCommand) Precheck(ctx context.Context) error {
	return c.load(ctx, domain.JobRunning)
}

func (c *ReadyCommand) Execute(ctx context.Context, out *command.Outbox) (int, error) {
	limit := c.job.App.Concurrency
	if limit == 0 {
		limit = 1
	}

	submitted := 0
	err := c.svc.Store.InTx(ctx, func(ctx context.Context) error {
		actions, err := c.svc.Store.ListCoordActions(ctx, c.jobID)
		if err != nil {
			return err
		}

		active := 0
		for _, a := range actions {
			if a.Status == domain.CoordSubmitted || a.Status == domain.CoordRunning {
				active++
			}
		}

		now := c.svc.now()
		for i := range actions {
			a := &actions[i]
			if a.Status != domain.CoordReady {
				continue
			}
			// Отрицательный Concurrency — без ограничения
			if limit > 0 && active >= limit {
				break
			}
			a.Status = domain.CoordSubmitted
			a.LastModified = now
			if err := c.svc.Store.UpdateCoordAction(ctx, a); err != nil {
				return err
			}
			command.Follow(out, NewActionStartCommand(c.svc, a.ID), 0)
			active++
			submitted++
		}
		return nil
	})
	return submitted, err
}

// ActionStartCommand создаёт и запускает workflow SUBMITTED действия.
// Действие становится RUNNING, workflow ссылается на него как на родителя.
type ActionStartCommand struct {
	actionCommand
}

func NewActionStartCommand(svc *Services, actionID string) *ActionStartCommand {
	return &ActionStartCommand{actionCommand: newActionCommand(svc, actionID)}
}

func (c *ActionStartCommand) Meta() command.Meta {
	return command.Meta{Kind: command.KindCoordActionStart, Priority: 1, Group: command.GroupCoordinator, NeedsLock: true}
}

func (c *ActionStartCommand) EagerPrecheck(ctx context.Context) error {
	if c.svc.Workflow == nil {
		return ErrNoWorkflowServices
	}
	return nil
}

func (c *ActionStartCommand) Precheck(ctx context.Context) error {
	if err := c.load(ctx); err != nil {
		return err
	}
	if c.action.Status != domain.CoordSubmitted {
		return command.Skip("action %s is %s, not SUBMITTED", c.actionID, c.action.Status)
	}
	if c.job.Status != domain.JobRunning {
		return command.Skip("coordinator %s is %s, not RUNNING", c.job.ID, c.job.Status)
	}
	return nil
}

func (c *ActionStartCommand) Execute(ctx context.Context, out *command.Outbox) (string, error) {
	var wfJobID string
	err := c.svc.Store.InTx(ctx, func(ctx context.Context) error {
		now := c.svc.now()
		a := c.action

		submit := wf.NewSubmitCommand(c.svc.Workflow, c.job.App.Workflow, a.RunConf, a.ID)
		id, err := command.Call(ctx, c.svc.Workflow.Env, submit)
		if err != nil {
			telemetry.WithActionID(telemetry.FromContext(ctx), c.actionID).
				Error("failed to submit workflow", "error", err)
			a.Status = domain.CoordFailed
			a.ErrorMessage = err.Error()
			a.LastModified = now
			if err := c.svc.Store.UpdateCoordAction(ctx, a); err != nil {
				return err
			}
			c.svc.notifyAction(out, a)
			command.Follow(out, NewReadyCommand(c.svc, a.JobID), 0)
			command.Follow(out, NewStatusTransitCommand(c.svc, a.JobID), 0)
			return nil
		}

		wfJobID = id
		a.ExternalID = id
		a.Status = domain.CoordRunning
		a.LastModified = now
		if err := c.svc.Store.UpdateCoordAction(ctx, a); err != nil {
			return err
		}
		c.svc.notifyAction(out, a)
		out.Add(workflowCommand(c.svc, wf.NewStartCommand(c.svc.Workflow, id)))
		return nil
	})
	return wfJobID, err
}
