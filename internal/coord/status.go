package coord

import (
	"context"

	"github.com/shaiso/Coordinator/internal/command"
	"github.com/shaiso/Coordinator/internal/domain"
	"github.com/shaiso/Coordinator/internal/telemetry"
)

// StatusTransitCommand завершает координатор, когда материализация
// окончена и все действия финальные без pending:
// все SUCCEEDED — SUCCEEDED, все FAILED — FAILED, все KILLED — KILLED,
// иначе DONEWITHERROR.
type StatusTransitCommand struct {
	jobCommand
	actions []domain.CoordinatorAction
}

func NewStatusTransitCommand(svc *Services, jobID string) *StatusTransitCommand {
	return &StatusTransitCommand{jobCommand: newJobCommand(svc, jobID)}
}

func (c *StatusTransitCommand) Meta() command.Meta {
	return command.Meta{Kind: command.KindCoordStatusTransit, Priority: 1, Group: command.GroupCoordinator, NeedsLock: true}
}

func (c *StatusTransitCommand) Precheck(ctx context.Context) error {
	if err := c.load(ctx, domain.JobRunning); err != nil {
		return err
	}
	if !c.job.DoneMaterialization {
		return command.Skip("coordinator %s is still materializing", c.jobID)
	}

	actions, err := c.svc.Store.ListCoordActions(ctx, c.jobID)
	if err != nil {
		return err
	}
	for _, a := range actions {
		if !a.Status.IsTerminal() || a.Pending > 0 {
			return command.Skip("coordinator %s has unfinished action %d", c.jobID, a.Number)
		}
	}
	c.actions = actions
	return nil
}

func (c *StatusTransitCommand) Execute(ctx context.Context, out *command.Outbox) (domain.JobStatus, error) {
	status := aggregate(c.actions)

	c.job.MarkEnded(status, c.svc.now())
	if err := c.svc.Store.UpdateCoordJob(ctx, c.job); err != nil {
		return "", err
	}

	telemetry.WithJobID(telemetry.FromContext(ctx), c.jobID).
		Info("coordinator finished", "status", status, "actions", len(c.actions))
	c.svc.notifyJob(out, c.job)
	return status, nil
}

func aggregate(actions []domain.CoordinatorAction) domain.JobStatus {
	counts := make(map[domain.CoordActionStatus]int)
	for _, a := range actions {
		counts[a.Status]++
	}

	switch len(actions) {
	case counts[domain.CoordSucceeded]:
		return domain.JobSucceeded
	case counts[domain.CoordFailed]:
		return domain.JobFailed
	case counts[domain.CoordKilled]:
		return domain.JobKilled
	default:
		return domain.JobDoneWithError
	}
}
