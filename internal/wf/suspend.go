package wf

import (
	"context"

	"github.com/shaiso/Coordinator/internal/command"
	"github.com/shaiso/Coordinator/internal/domain"
)

// SuspendCommand приостанавливает job. Запущенные действия продолжают
// работу во внешней системе, но не продвигаются до Resume.
type SuspendCommand struct {
	jobCommand
}

func NewSuspendCommand(svc *Services, jobID string) *SuspendCommand {
	return &SuspendCommand{jobCommand: newJobCommand(svc, jobID)}
}

func (c *SuspendCommand) Meta() command.Meta {
	return command.Meta{Kind: command.KindWorkflowSuspend, Priority: 1, Group: command.GroupWorkflow, NeedsLock: true}
}

func (c *SuspendCommand) Precheck(ctx context.Context) error {
	job, err := c.svc.loadJob(ctx, c.jobID)
	if err != nil {
		return err
	}
	if job.Status != domain.JobRunning && job.Status != domain.JobPrep {
		return command.Skip("job %s is %s, cannot suspend", c.jobID, job.Status)
	}
	c.job = job
	return nil
}

func (c *SuspendCommand) Execute(ctx context.Context, out *command.Outbox) (struct{}, error) {
	return struct{}{}, suspendJob(ctx, c.svc, c.job, out)
}

// ResumeCommand возобновляет приостановленный job.
//
// Действия в *_MANUAL и *_RETRY получают свежие команды старта или
// завершения, затем job получает сигнал.
type ResumeCommand struct {
	jobCommand
}

func NewResumeCommand(svc *Services, jobID string) *ResumeCommand {
	return &ResumeCommand{jobCommand: newJobCommand(svc, jobID)}
}

func (c *ResumeCommand) Meta() command.Meta {
	return command.Meta{Kind: command.KindWorkflowResume, Priority: 1, Group: command.GroupWorkflow, NeedsLock: true}
}

func (c *ResumeCommand) Precheck(ctx context.Context) error {
	job, err := c.svc.loadJob(ctx, c.jobID)
	if err != nil {
		return err
	}
	if !job.Status.IsSuspended() {
		return command.Skip("job %s is %s, not suspended", c.jobID, job.Status)
	}
	c.job = job
	return nil
}

func (c *ResumeCommand) Execute(ctx context.Context, out *command.Outbox) (struct{}, error) {
	err := c.svc.Store.InTx(ctx, func(ctx context.Context) error {
		now := c.svc.now()

		if c.job.Status == domain.JobPrepSuspended {
			c.job.Status = domain.JobPrep
			c.job.LastModified = now
			if err := c.svc.Store.UpdateWorkflowJob(ctx, c.job); err != nil {
				return err
			}
			c.svc.notifyJob(out, c.job)
			return nil
		}

		c.job.Status = domain.JobRunning
		c.job.LastModified = now
		if err := c.svc.Store.UpdateWorkflowJob(ctx, c.job); err != nil {
			return err
		}

		actions, err := c.svc.Store.ListWorkflowActions(ctx, c.jobID)
		if err != nil {
			return err
		}
		for i := range actions {
			a := &actions[i]
			var next func()
			switch {
			case a.Status == domain.ActionStartManual,
				a.Status == domain.ActionStartRetry,
				a.Status == domain.ActionPrep && a.Pending:
				next = func() { command.Follow(out, NewActionStartCommand(c.svc, a.ID), 0) }
			case a.Status == domain.ActionEndManual,
				a.Status == domain.ActionEndRetry,
				a.Status == domain.ActionDone:
				next = func() { command.Follow(out, NewActionEndCommand(c.svc, a.ID), 0) }
			default:
				continue
			}
			if a.Status.IsManual() {
				a.Retries = 0
			}
			a.SetPending(now)
			if err := c.svc.Store.UpdateWorkflowAction(ctx, a); err != nil {
				return err
			}
			next()
		}

		c.svc.notifyJob(out, c.job)
		command.Follow(out, NewSignalCommand(c.svc, c.jobID), 0)
		return nil
	})
	return struct{}{}, err
}

// KillCommand завершает job статусом KILLED и убивает его действия.
// Для job в FAILED убиваются только оставшиеся действия.
type KillCommand struct {
	jobCommand
}

func NewKillCommand(svc *Services, jobID string) *KillCommand {
	return &KillCommand{jobCommand: newJobCommand(svc, jobID)}
}

func (c *KillCommand) Meta() command.Meta {
	return command.Meta{Kind: command.KindWorkflowKill, Priority: 2, Group: command.GroupWorkflow, NeedsLock: true}
}

func (c *KillCommand) Precheck(ctx context.Context) error {
	job, err := c.svc.loadJob(ctx, c.jobID)
	if err != nil {
		return err
	}
	if job.Status == domain.JobSucceeded || job.Status == domain.JobKilled {
		return command.Skip("job %s is already %s", c.jobID, job.Status)
	}
	c.job = job
	return nil
}

func (c *KillCommand) Execute(ctx context.Context, out *command.Outbox) (struct{}, error) {
	err := c.svc.Store.InTx(ctx, func(ctx context.Context) error {
		if c.job.Status != domain.JobFailed {
			c.job.MarkEnded(domain.JobKilled, c.svc.now())
			if err := c.svc.Store.UpdateWorkflowJob(ctx, c.job); err != nil {
				return err
			}
			c.svc.notifyJob(out, c.job)
		}

		actions, err := c.svc.Store.ListWorkflowActions(ctx, c.jobID)
		if err != nil {
			return err
		}
		return killActions(ctx, c.svc, c.job, actions, out)
	})
	return struct{}{}, err
}
