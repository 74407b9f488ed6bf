package coord

import (
	"context"

	"github.com/shaiso/Coordinator/internal/command"
	"github.com/shaiso/Coordinator/internal/domain"
	"github.com/shaiso/Coordinator/internal/wf"
)

// SuspendCommand приостанавливает координатор и workflow его
// выполняющихся действий. Материализация и проверки входов
// останавливаются до Resume.
type SuspendCommand struct {
	jobCommand
}

func NewSuspendCommand(svc *Services, jobID string) *SuspendCommand {
	return &SuspendCommand{jobCommand: newJobCommand(svc, jobID)}
}

func (c *SuspendCommand) Meta() command.Meta {
	return command.Meta{Kind: command.KindCoordSuspend, Priority: 1, Group: command.GroupCoordinator, NeedsLock: true}
}

func (c *SuspendCommand) Precheck(ctx context.Context) error {
	return c.load(ctx, domain.JobRunning, domain.JobPrep)
}

func (c *SuspendCommand) Execute(ctx context.Context, out *command.Outbox) (struct{}, error) {
	err := c.svc.Store.InTx(ctx, func(ctx context.Context) error {
		now := c.svc.now()
		if c.job.Status == domain.JobPrep {
			c.job.Status = domain.JobPrepSuspended
		} else {
			c.job.Status = domain.JobSuspended
		}
		c.job.LastModified = now
		if err := c.svc.Store.UpdateCoordJob(ctx, c.job); err != nil {
			return err
		}
		c.svc.notifyJob(out, c.job)

		return c.updateActions(ctx, out, func(a *domain.CoordinatorAction, wfStatus domain.JobStatus) bool {
			if a.Status != domain.CoordRunning || wfStatus != domain.JobRunning {
				return false
			}
			a.Status = domain.CoordSuspended
			a.Pending++
			a.LastModified = now
			out.Add(workflowCommand(c.svc, wf.NewSuspendCommand(c.svc.Workflow, a.ExternalID)))
			return true
		})
	})
	return struct{}{}, err
}

// ResumeCommand возобновляет координатор: workflow приостановленных
// действий, проверки входов WAITING действий и отправку READY.
type ResumeCommand struct {
	jobCommand
}

func NewResumeCommand(svc *Services, jobID string) *ResumeCommand {
	return &ResumeCommand{jobCommand: newJobCommand(svc, jobID)}
}

func (c *ResumeCommand) Meta() command.Meta {
	return command.Meta{Kind: command.KindCoordResume, Priority: 1, Group: command.GroupCoordinator, NeedsLock: true}
}

func (c *ResumeCommand) Precheck(ctx context.Context) error {
	return c.load(ctx, domain.JobSuspended, domain.JobPrepSuspended)
}

func (c *ResumeCommand) Execute(ctx context.Context, out *command.Outbox) (struct{}, error) {
	err := c.svc.Store.InTx(ctx, func(ctx context.Context) error {
		now := c.svc.now()
		if c.job.Status == domain.JobPrepSuspended {
			c.job.Status = domain.JobPrep
		} else {
			c.job.Status = domain.JobRunning
		}
		c.job.LastModified = now
		if err := c.svc.Store.UpdateCoordJob(ctx, c.job); err != nil {
			return err
		}
		c.svc.notifyJob(out, c.job)
		if c.job.Status == domain.JobPrep {
			return nil
		}

		err := c.updateActions(ctx, out, func(a *domain.CoordinatorAction, wfStatus domain.JobStatus) bool {
			switch {
			case a.Status == domain.CoordWaiting:
				command.Follow(out, NewInputCheckCommand(c.svc, a.ID), 0)
				return false
			case a.Status == domain.CoordSuspended && wfStatus.IsSuspended():
				a.Status = domain.CoordRunning
				a.Pending++
				a.LastModified = now
				out.Add(workflowCommand(c.svc, wf.NewResumeCommand(c.svc.Workflow, a.ExternalID)))
				return true
			default:
				return false
			}
		})
		if err != nil {
			return err
		}

		command.Follow(out, NewReadyCommand(c.svc, c.jobID), 0)
		if c.job.DoneMaterialization {
			command.Follow(out, NewStatusTransitCommand(c.svc, c.jobID), 0)
		}
		return nil
	})
	return struct{}{}, err
}

// KillCommand завершает координатор статусом KILLED. Нефинальные
// действия становятся KILLED, их живые workflow убиваются.
type KillCommand struct {
	jobCommand
}

func NewKillCommand(svc *Services, jobID string) *KillCommand {
	return &KillCommand{jobCommand: newJobCommand(svc, jobID)}
}

func (c *KillCommand) Meta() command.Meta {
	return command.Meta{Kind: command.KindCoordKill, Priority: 2, Group: command.GroupCoordinator, NeedsLock: true}
}

func (c *KillCommand) Precheck(ctx context.Context) error {
	if err := c.load(ctx); err != nil {
		return err
	}
	if c.job.Status.IsTerminal() {
		return command.Skip("coordinator %s is already %s", c.jobID, c.job.Status)
	}
	return nil
}

func (c *KillCommand) Execute(ctx context.Context, out *command.Outbox) (struct{}, error) {
	err := c.svc.Store.InTx(ctx, func(ctx context.Context) error {
		now := c.svc.now()
		c.job.MarkEnded(domain.JobKilled, now)
		if err := c.svc.Store.UpdateCoordJob(ctx, c.job); err != nil {
			return err
		}
		c.svc.notifyJob(out, c.job)

		return c.updateActions(ctx, out, func(a *domain.CoordinatorAction, wfStatus domain.JobStatus) bool {
			if a.Status.IsTerminal() {
				return false
			}
			a.Status = domain.CoordKilled
			a.LastModified = now
			if wfStatus != "" && !wfStatus.IsTerminal() {
				a.Pending++
				out.Add(workflowCommand(c.svc, wf.NewKillCommand(c.svc.Workflow, a.ExternalID)))
			}
			return true
		})
	})
	return struct{}{}, err
}

// updateActions вызывает fn для каждого действия координатора вместе со
// статусом его workflow (пустым, если workflow нет) и сохраняет действия,
// для которых fn вернула true.
func (c *jobCommand) updateActions(ctx context.Context, out *command.Outbox,
	fn func(a *domain.CoordinatorAction, wfStatus domain.JobStatus) bool) error {

	actions, err := c.svc.Store.ListCoordActions(ctx, c.jobID)
	if err != nil {
		return err
	}
	for i := range actions {
		a := &actions[i]

		var wfStatus domain.JobStatus
		if a.ExternalID != "" && c.svc.Workflow != nil {
			wfJob, err := c.svc.Store.GetWorkflowJob(ctx, a.ExternalID)
			if err != nil {
				return err
			}
			wfStatus = wfJob.Status
		}

		if !fn(a, wfStatus) {
			continue
		}
		if err := c.svc.Store.UpdateCoordAction(ctx, a); err != nil {
			return err
		}
		c.svc.notifyAction(out, a)
	}
	return nil
}
