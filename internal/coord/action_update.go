package coord

import (
	"context"

	"github.com/shaiso/Coordinator/internal/command"
	"github.com/shaiso/Coordinator/internal/domain"
)

// ActionUpdateCommand переносит статус workflow в действие координатора
// и снимает одну отметку pending, поставленную командой координатора.
//
// Вызывается при каждом переходе workflow и action checker'ом.
type ActionUpdateCommand struct {
	actionCommand
	wfJob *domain.WorkflowJob
}

func NewActionUpdateCommand(svc *Services, actionID string) *ActionUpdateCommand {
	return &ActionUpdateCommand{actionCommand: newActionCommand(svc, actionID)}
}

func (c *ActionUpdateCommand) Meta() command.Meta {
	return command.Meta{Kind: command.KindCoordActionUpdate, Priority: 1, Group: command.GroupCoordinator, NeedsLock: true}
}

func (c *ActionUpdateCommand) Precheck(ctx context.Context) error {
	if err := c.load(ctx); err != nil {
		return err
	}
	if c.action.ExternalID == "" {
		return command.Skip("action %s has no workflow", c.actionID)
	}
	if c.action.Status.IsTerminal() && c.action.Pending == 0 {
		return command.Skip("action %s is already %s", c.actionID, c.action.Status)
	}

	wfJob, err := c.svc.Store.GetWorkflowJob(ctx, c.action.ExternalID)
	if err != nil {
		return err
	}
	c.wfJob = wfJob
	return nil
}

func (c *ActionUpdateCommand) Execute(ctx context.Context, out *command.Outbox) (domain.CoordActionStatus, error) {
	a := c.action
	before := a.Status

	// KILLED, выставленный координатором, не перезаписывается
	if !before.IsTerminal() {
		a.Status = statusFromWorkflow(c.wfJob.Status, before)
	}
	a.DecrementPending()
	a.LastModified = c.svc.now()
	if c.wfJob.Status == domain.JobFailed || c.wfJob.Status == domain.JobKilled {
		a.ErrorMessage = c.wfJob.ErrorMessage
	}

	if err := c.svc.Store.UpdateCoordAction(ctx, a); err != nil {
		return "", err
	}

	if a.Status != before {
		c.svc.notifyAction(out, a)
	}
	if a.Status.IsTerminal() && !before.IsTerminal() {
		command.Follow(out, NewReadyCommand(c.svc, a.JobID), 0)
	}
	if a.Status.IsTerminal() && a.Pending == 0 {
		command.Follow(out, NewStatusTransitCommand(c.svc, a.JobID), 0)
	}
	return a.Status, nil
}

// statusFromWorkflow отображает статус workflow на статус действия.
func statusFromWorkflow(s domain.JobStatus, current domain.CoordActionStatus) domain.CoordActionStatus {
	switch s {
	case domain.JobRunning:
		return domain.CoordRunning
	case domain.JobSuspended, domain.JobPrepSuspended:
		return domain.CoordSuspended
	case domain.JobSucceeded:
		return domain.CoordSucceeded
	case domain.JobFailed:
		return domain.CoordFailed
	case domain.JobKilled:
		return domain.CoordKilled
	default:
		return current
	}
}

// TimeoutCommand завершает обработку TIMEDOUT действия: событие и
// пересчёт статуса координатора.
type TimeoutCommand struct {
	actionCommand
}

func NewTimeoutCommand(svc *Services, actionID string) *TimeoutCommand {
	return &TimeoutCommand{actionCommand: newActionCommand(svc, actionID)}
}

func (c *TimeoutCommand) Meta() command.Meta {
	return command.Meta{Kind: command.KindCoordActionTimeout, Priority: 1, Group: command.GroupCoordinator, NeedsLock: true}
}

func (c *TimeoutCommand) Precheck(ctx context.Context) error {
	if err := c.load(ctx); err != nil {
		return err
	}
	if c.action.Status != domain.CoordTimedOut {
		return command.Skip("action %s is %s, not TIMEDOUT", c.actionID, c.action.Status)
	}
	return nil
}

func (c *TimeoutCommand) Execute(ctx context.Context, out *command.Outbox) (struct{}, error) {
	c.svc.notifyAction(out, c.action)
	command.Follow(out, NewStatusTransitCommand(c.svc, c.action.JobID), 0)
	return struct{}{}, nil
}
