package bundle

import (
	"context"
	"maps"

	"github.com/shaiso/Coordinator/internal/command"
	"github.com/shaiso/Coordinator/internal/coord"
	"github.com/shaiso/Coordinator/internal/domain"
	"github.com/shaiso/Coordinator/internal/engine"
	"github.com/shaiso/Coordinator/internal/telemetry"
)

// SubmitCommand создаёт bundle в PREP. Результат — ID bundle.
type SubmitCommand struct {
	command.Base
	svc   *Services
	app   domain.BundleApp
	conf  map[string]string
	jobID string
}

func NewSubmitCommand(svc *Services, app domain.BundleApp, conf map[string]string) *SubmitCommand {
	jobID := domain.NewJobID(domain.JobTypeBundle)
	return &SubmitCommand{
		Base:  command.NewBase(jobID),
		svc:   svc,
		app:   app,
		conf:  maps.Clone(conf),
		jobID: jobID,
	}
}

func (c *SubmitCommand) Meta() command.Meta {
	return command.Meta{Kind: command.KindBundleSubmit, Priority: 1, Group: command.GroupBundle}
}

func (c *SubmitCommand) EntityKey() string { return c.jobID }

func (c *SubmitCommand) EagerPrecheck(ctx context.Context) error {
	var known func(string) bool
	if c.svc.Coord != nil && c.svc.Coord.Workflow != nil {
		known = c.svc.Coord.Workflow.Executors.Has
	}
	return engine.ValidateBundle(&c.app, known)
}

func (c *SubmitCommand) Precheck(ctx context.Context) error { return nil }

func (c *SubmitCommand) Execute(ctx context.Context, out *command.Outbox) (string, error) {
	now := c.svc.now()
	job := &domain.BundleJob{
		ID:           c.jobID,
		Name:         c.app.Name,
		App:          c.app,
		Status:       domain.JobPrep,
		Conf:         c.conf,
		Actions:      make([]domain.BundleAction, len(c.app.Coordinators)),
		CreatedAt:    now,
		LastModified: now,
	}
	for i, bc := range c.app.Coordinators {
		job.Actions[i] = domain.BundleAction{CoordName: bc.Name, Status: domain.JobPrep, LastModified: now}
	}
	if err := c.svc.Store.CreateBundleJob(ctx, job); err != nil {
		return "", err
	}
	return job.ID, nil
}

// StartCommand переводит bundle в RUNNING: создаёт его координаторы
// и ставит их запуск.
type StartCommand struct {
	jobCommand
}

func NewStartCommand(svc *Services, jobID string) *StartCommand {
	return &StartCommand{jobCommand: newJobCommand(svc, jobID)}
}

func (c *StartCommand) Meta() command.Meta {
	return command.Meta{Kind: command.KindBundleStart, Priority: 1, Group: command.GroupBundle, NeedsLock: true}
}

func (c *StartCommand) Precheck(ctx context.Context) error {
	return c.load(ctx, domain.JobPrep)
}

func (c *StartCommand) Execute(ctx context.Context, out *command.Outbox) (struct{}, error) {
	err := c.svc.Store.InTx(ctx, func(ctx context.Context) error {
		now := c.svc.now()

		for i, bc := range c.job.App.Coordinators {
			conf := maps.Clone(c.job.Conf)
			if conf == nil {
				conf = make(map[string]string, len(bc.Conf))
			}
			maps.Copy(conf, bc.Conf)

			submit := coord.NewSubmitCommand(c.svc.Coord, bc.App, conf, c.jobID)
			coordJobID, err := command.Call(ctx, c.svc.Coord.Env, submit)
			if err != nil {
				return err
			}

			a := &c.job.Actions[i]
			a.CoordJobID = coordJobID
			a.Pending++
			a.LastModified = now
			out.Add(coordCommand(c.svc, coord.NewStartCommand(c.svc.Coord, coordJobID)))
		}

		c.job.Status = domain.JobRunning
		c.job.StartedAt = &now
		c.job.LastModified = now
		if err := c.svc.Store.UpdateBundleJob(ctx, c.job); err != nil {
			return err
		}
		c.svc.notifyJob(out, c.job)
		return nil
	})
	if err != nil {
		return struct{}{}, err
	}

	telemetry.WithJobID(telemetry.FromContext(ctx), c.jobID).
		Info("bundle started", "coordinators", len(c.job.Actions))
	return struct{}{}, nil
}
