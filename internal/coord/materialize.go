package coord

import (
	"context"
	"fmt"
	"time"

	"github.com/shaiso/Coordinator/internal/command"
	"github.com/shaiso/Coordinator/internal/deps"
	"github.com/shaiso/Coordinator/internal/domain"
	"github.com/shaiso/Coordinator/internal/engine"
	"github.com/shaiso/Coordinator/internal/scheduler"
	"github.com/shaiso/Coordinator/internal/telemetry"
)

// MaterializeCommand создаёт WAITING действия для nominal time из окна
// [NextMaterializeAt, min(End, now+lookahead)) и ставит их проверки входов.
type MaterializeCommand struct {
	jobCommand
}

func NewMaterializeCommand(svc *Services, jobID string) *MaterializeCommand {
	return &MaterializeCommand{jobCommand: newJobCommand(svc, jobID)}
}

func (c *MaterializeCommand) Meta() command.Meta {
	return command.Meta{Kind: command.KindCoordMaterialize, Priority: 1, Group: command.GroupCoordinator, NeedsLock: true}
}

func (c *MaterializeCommand) Precheck(ctx context.Context) error {
	if err := c.load(ctx, domain.JobRunning); err != nil {
		return err
	}
	if c.job.DoneMaterialization {
		return command.Skip("coordinator %s is fully materialized", c.jobID)
	}
	return nil
}

func (c *MaterializeCommand) Execute(ctx context.Context, out *command.Outbox) (int, error) {
	app := &c.job.App
	freq, err := scheduler.ParseFrequency(app.Frequency, app.Timezone)
	if err != nil {
		return 0, err
	}

	now := c.svc.now()
	until := now.Add(c.svc.lookahead())
	if app.End.Before(until) {
		until = app.End
	}
	times := scheduler.NominalTimes(freq, c.job.NextMaterializeAt, until, c.svc.materializeMax())

	err = c.svc.Store.InTx(ctx, func(ctx context.Context) error {
		for _, nominal := range times {
			c.job.LastActionNumber++
			action, err := c.newAction(nominal, c.job.LastActionNumber, now)
			if err != nil {
				return err
			}
			if err := c.svc.Store.CreateCoordAction(ctx, action); err != nil {
				return err
			}
			command.Follow(out, NewInputCheckCommand(c.svc, action.ID), 0)
		}

		if len(times) > 0 {
			c.job.NextMaterializeAt = freq.Next(times[len(times)-1])
		}
		c.job.DoneMaterialization = !c.job.NextMaterializeAt.Before(app.End)
		c.job.LastModified = now
		return c.svc.Store.UpdateCoordJob(ctx, c.job)
	})
	if err != nil {
		return 0, err
	}

	if len(times) > 0 {
		telemetry.WithJobID(telemetry.FromContext(ctx), c.jobID).
			Info("actions materialized", "count", len(times), "last_number", c.job.LastActionNumber)
	}
	if c.job.DoneMaterialization {
		command.Follow(out, NewStatusTransitCommand(c.svc, c.jobID), 0)
	}
	return len(times), nil
}

// newAction создаёт WAITING действие: обычные входы рендерятся
// относительно nominal time, экземпляры latest/future остаются
// неразрешёнными в дескрипторе.
func (c *MaterializeCommand) newAction(nominal time.Time, number int, now time.Time) (*domain.CoordinatorAction, error) {
	id := domain.CoordActionID(c.jobID, number)
	tctx := engine.NewNominalContext(nominal, id, nil, c.job.Conf)

	inputs := make(map[string]string, len(c.job.App.Inputs))
	var desc deps.Descriptor
	for _, in := range c.job.App.Inputs {
		if deps.IsInstance(in.URI) {
			desc.Unresolved = append(desc.Unresolved, deps.Instance{Name: in.Name, Expr: in.URI})
			continue
		}
		uri, err := engine.Render(in.URI, tctx)
		if err != nil {
			return nil, fmt.Errorf("render input %s: %w", in.Name, err)
		}
		inputs[in.Name] = uri
		desc.Resolved = append(desc.Resolved, uri)
	}

	return &domain.CoordinatorAction{
		ID:                  id,
		JobID:               c.jobID,
		Number:              number,
		Status:              domain.CoordWaiting,
		NominalTime:         nominal,
		Inputs:              inputs,
		MissingDependencies: desc.String(),
		Timeout:             c.svc.actionTimeout(&c.job.App),
		CreatedAt:           now,
		LastModified:        now,
	}, nil
}
