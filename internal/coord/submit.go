package coord

import (
	"context"
	"maps"

	"github.com/shaiso/Coordinator/internal/command"
	"github.com/shaiso/Coordinator/internal/domain"
	"github.com/shaiso/Coordinator/internal/engine"
	"github.com/shaiso/Coordinator/internal/scheduler"
)

// SubmitCommand создаёт координатор в PREP. Результат — ID job.
type SubmitCommand struct {
	command.Base
	svc      *Services
	app      domain.CoordinatorApp
	conf     map[string]string
	bundleID string
	jobID    string
}

// NewSubmitCommand создаёт команду отправки координатора.
// bundleID — владеющий bundle (может быть пустым).
func NewSubmitCommand(svc *Services, app domain.CoordinatorApp, conf map[string]string, bundleID string) *SubmitCommand {
	jobID := domain.NewJobID(domain.JobTypeCoordinator)
	return &SubmitCommand{
		Base:     command.NewBase(jobID),
		svc:      svc,
		app:      app,
		conf:     maps.Clone(conf),
		bundleID: bundleID,
		jobID:    jobID,
	}
}

func (c *SubmitCommand) Meta() command.Meta {
	return command.Meta{Kind: command.KindCoordSubmit, Priority: 1, Group: command.GroupCoordinator}
}

func (c *SubmitCommand) EntityKey() string { return c.jobID }

func (c *SubmitCommand) EagerPrecheck(ctx context.Context) error {
	var known func(string) bool
	if c.svc.Workflow != nil {
		known = c.svc.Workflow.Executors.Has
	}
	if err := engine.ValidateCoordinator(&c.app, known); err != nil {
		return err
	}
	return scheduler.ValidateFrequency(c.app.Frequency, c.app.Timezone)
}

func (c *SubmitCommand) Precheck(ctx context.Context) error { return nil }

func (c *SubmitCommand) Execute(ctx context.Context, out *command.Outbox) (string, error) {
	freq, err := scheduler.ParseFrequency(c.app.Frequency, c.app.Timezone)
	if err != nil {
		return "", err
	}

	now := c.svc.now()
	job := &domain.CoordinatorJob{
		ID:                c.jobID,
		Name:              c.app.Name,
		App:               c.app,
		Status:            domain.JobPrep,
		Conf:              c.conf,
		BundleID:          c.bundleID,
		NextMaterializeAt: freq.First(c.app.Start),
		CreatedAt:         now,
		LastModified:      now,
	}
	if err := c.svc.Store.CreateCoordJob(ctx, job); err != nil {
		return "", err
	}
	return job.ID, nil
}

// StartCommand переводит координатор из PREP в RUNNING и запускает материализацию.
type StartCommand struct {
	jobCommand
}

func NewStartCommand(svc *Services, jobID string) *StartCommand {
	return &StartCommand{jobCommand: newJobCommand(svc, jobID)}
}

func (c *StartCommand) Meta() command.Meta {
	return command.Meta{Kind: command.KindCoordStart, Priority: 1, Group: command.GroupCoordinator, NeedsLock: true}
}

func (c *StartCommand) Precheck(ctx context.Context) error {
	return c.load(ctx, domain.JobPrep)
}

func (c *StartCommand) Execute(ctx context.Context, out *command.Outbox) (struct{}, error) {
	now := c.svc.now()
	c.job.Status = domain.JobRunning
	c.job.StartedAt = &now
	c.job.LastModified = now
	if err := c.svc.Store.UpdateCoordJob(ctx, c.job); err != nil {
		return struct{}{}, err
	}
	c.svc.notifyJob(out, c.job)
	command.Follow(out, NewMaterializeCommand(c.svc, c.jobID), 0)
	return struct{}{}, nil
}
