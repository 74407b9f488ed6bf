package bundle

import (
	"context"

	"github.com/shaiso/Coordinator/internal/command"
	"github.com/shaiso/Coordinator/internal/coord"
	"github.com/shaiso/Coordinator/internal/domain"
)

// SuspendCommand приостанавливает bundle и его активные координаторы.
type SuspendCommand struct {
	jobCommand
}

func NewSuspendCommand(svc *Services, jobID string) *SuspendCommand {
	return &SuspendCommand{jobCommand: newJobCommand(svc, jobID)}
}

func (c *SuspendCommand) Meta() command.Meta {
	return command.Meta{Kind: command.KindBundleSuspend, Priority: 1, Group: command.GroupBundle, NeedsLock: true}
}

func (c *SuspendCommand) Precheck(ctx context.Context) error {
	return c.load(ctx, domain.JobRunning, domain.JobPrep)
}

func (c *SuspendCommand) Execute(ctx context.Context, out *command.Outbox) (struct{}, error) {
	now := c.svc.now()
	if c.job.Status == domain.JobPrep {
		c.job.Status = domain.JobPrepSuspended
	} else {
		c.job.Status = domain.JobSuspended
	}
	c.job.LastModified = now

	err := c.forEachCoordinator(ctx, now, func(a *domain.BundleAction, status domain.JobStatus) bool {
		// PREP координатор ещё ждёт своего StartCommand
		if status != domain.JobRunning {
			return false
		}
		out.Add(coordCommand(c.svc, coord.NewSuspendCommand(c.svc.Coord, a.CoordJobID)))
		return true
	})
	if err != nil {
		return struct{}{}, err
	}
	return struct{}{}, c.save(ctx, out)
}

// ResumeCommand возобновляет bundle и его приостановленные координаторы.
type ResumeCommand struct {
	jobCommand
}

func NewResumeCommand(svc *Services, jobID string) *ResumeCommand {
	return &ResumeCommand{jobCommand: newJobCommand(svc, jobID)}
}

func (c *ResumeCommand) Meta() command.Meta {
	return command.Meta{Kind: command.KindBundleResume, Priority: 1, Group: command.GroupBundle, NeedsLock: true}
}

func (c *ResumeCommand) Precheck(ctx context.Context) error {
	return c.load(ctx, domain.JobSuspended, domain.JobPrepSuspended)
}

func (c *ResumeCommand) Execute(ctx context.Context, out *command.Outbox) (struct{}, error) {
	now := c.svc.now()
	if c.job.Status == domain.JobPrepSuspended {
		c.job.Status = domain.JobPrep
	} else {
		c.job.Status = domain.JobRunning
	}
	c.job.LastModified = now

	err := c.forEachCoordinator(ctx, now, func(a *domain.BundleAction, status domain.JobStatus) bool {
		if !status.IsSuspended() {
			return false
		}
		out.Add(coordCommand(c.svc, coord.NewResumeCommand(c.svc.Coord, a.CoordJobID)))
		return true
	})
	if err != nil {
		return struct{}{}, err
	}
	if err := c.save(ctx, out); err != nil {
		return struct{}{}, err
	}

	// Координаторы могли завершиться, пока bundle был приостановлен
	if c.job.Status == domain.JobRunning {
		command.Follow(out, NewStatusUpdateCommand(c.svc, c.jobID, ""), 0)
	}
	return struct{}{}, nil
}

// KillCommand завершает bundle статусом KILLED и убивает его
// нефинальные координаторы.
type KillCommand struct {
	jobCommand
}

func NewKillCommand(svc *Services, jobID string) *KillCommand {
	return &KillCommand{jobCommand: newJobCommand(svc, jobID)}
}

func (c *KillCommand) Meta() command.Meta {
	return command.Meta{Kind: command.KindBundleKill, Priority: 2, Group: command.GroupBundle, NeedsLock: true}
}

func (c *KillCommand) Precheck(ctx context.Context) error {
	if err := c.load(ctx); err != nil {
		return err
	}
	if c.job.Status.IsTerminal() {
		return command.Skip("bundle %s is already %s", c.jobID, c.job.Status)
	}
	return nil
}

func (c *KillCommand) Execute(ctx context.Context, out *command.Outbox) (struct{}, error) {
	now := c.svc.now()
	c.job.MarkEnded(domain.JobKilled, now)

	err := c.forEachCoordinator(ctx, now, func(a *domain.BundleAction, status domain.JobStatus) bool {
		if status.IsTerminal() {
			return false
		}
		out.Add(coordCommand(c.svc, coord.NewKillCommand(c.svc.Coord, a.CoordJobID)))
		return true
	})
	if err != nil {
		return struct{}{}, err
	}
	return struct{}{}, c.save(ctx, out)
}

func (c *jobCommand) save(ctx context.Context, out *command.Outbox) error {
	if err := c.svc.Store.UpdateBundleJob(ctx, c.job); err != nil {
		return err
	}
	c.svc.notifyJob(out, c.job)
	return nil
}
