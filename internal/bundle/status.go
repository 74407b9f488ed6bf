package bundle

import (
	"context"
	"fmt"

	"github.com/shaiso/Coordinator/internal/command"
	"github.com/shaiso/Coordinator/internal/domain"
	"github.com/shaiso/Coordinator/internal/telemetry"
)

// StatusUpdateCommand переносит статус координатора в действие bundle,
// снимает одну отметку pending и завершает bundle, когда все
// координаторы финальные и ничего не ожидают.
//
// Пустой coordJobID — только пересчёт итогового статуса.
type StatusUpdateCommand struct {
	jobCommand
	coordJobID string
	coordJob   *domain.CoordinatorJob
}

func NewStatusUpdateCommand(svc *Services, jobID, coordJobID string) *StatusUpdateCommand {
	return &StatusUpdateCommand{jobCommand: newJobCommand(svc, jobID), coordJobID: coordJobID}
}

func (c *StatusUpdateCommand) Meta() command.Meta {
	return command.Meta{Kind: command.KindBundleStatusUpdate, Priority: 1, Group: command.GroupBundle, NeedsLock: true}
}

func (c *StatusUpdateCommand) Precheck(ctx context.Context) error {
	if err := c.load(ctx); err != nil {
		return err
	}
	if c.coordJobID == "" {
		return nil
	}

	a := c.job.Action(c.coordJobID)
	if a == nil {
		return command.Skip("coordinator %s does not belong to bundle %s", c.coordJobID, c.jobID)
	}
	if a.Status.IsTerminal() && a.Pending == 0 {
		return command.Skip("coordinator %s is already %s", c.coordJobID, a.Status)
	}

	cj, err := c.svc.Store.GetCoordJob(ctx, c.coordJobID)
	if err != nil {
		return fmt.Errorf("load coordinator %s: %w", c.coordJobID, err)
	}
	c.coordJob = cj
	return nil
}

func (c *StatusUpdateCommand) Execute(ctx context.Context, out *command.Outbox) (domain.JobStatus, error) {
	now := c.svc.now()
	before := c.job.Status

	if c.coordJob != nil {
		a := c.job.Action(c.coordJobID)
		a.Status = c.coordJob.Status
		a.DecrementPending()
		a.LastModified = now
	}

	if c.job.Status == domain.JobRunning && settled(c.job.Actions) {
		c.job.MarkEnded(aggregate(c.job.Actions), now)
		telemetry.WithJobID(telemetry.FromContext(ctx), c.jobID).
			Info("bundle finished", "status", c.job.Status)
	} else {
		c.job.LastModified = now
	}

	if err := c.svc.Store.UpdateBundleJob(ctx, c.job); err != nil {
		return "", err
	}
	if c.job.Status != before {
		c.svc.notifyJob(out, c.job)
	}
	return c.job.Status, nil
}

// settled — все координаторы финальные и без pending.
func settled(actions []domain.BundleAction) bool {
	for _, a := range actions {
		if !a.Status.IsTerminal() || a.Pending > 0 {
			return false
		}
	}
	return true
}

func aggregate(actions []domain.BundleAction) domain.JobStatus {
	counts := make(map[domain.JobStatus]int)
	for _, a := range actions {
		counts[a.Status]++
	}

	switch len(actions) {
	case counts[domain.JobSucceeded]:
		return domain.JobSucceeded
	case counts[domain.JobFailed]:
		return domain.JobFailed
	case counts[domain.JobKilled]:
		return domain.JobKilled
	default:
		return domain.JobDoneWithError
	}
}
