package wf

import (
	"context"
	"maps"
	"time"

	"github.com/shaiso/Coordinator/internal/command"
	"github.com/shaiso/Coordinator/internal/domain"
	"github.com/shaiso/Coordinator/internal/engine"
)

// SubmitCommand создаёт job в PREP и его действия в PREP.
// Результат — ID нового job.
type SubmitCommand struct {
	command.Base
	svc      *Services
	app      domain.WorkflowApp
	conf     map[string]string
	parentID string
	jobID    string
}

// NewSubmitCommand создаёт команду отправки workflow.
// parentID — ID действия координатора, породившего job (может быть пустым).
func NewSubmitCommand(svc *Services, app domain.WorkflowApp, conf map[string]string, parentID string) *SubmitCommand {
	jobID := domain.NewJobID(domain.JobTypeWorkflow)
	return &SubmitCommand{
		Base:     command.NewBase(jobID),
		svc:      svc,
		app:      app,
		conf:     maps.Clone(conf),
		parentID: parentID,
		jobID:    jobID,
	}
}

func (c *SubmitCommand) Meta() command.Meta {
	return command.Meta{Kind: command.KindWorkflowSubmit, Priority: 1, Group: command.GroupWorkflow}
}

func (c *SubmitCommand) EntityKey() string { return c.jobID }

func (c *SubmitCommand) EagerPrecheck(ctx context.Context) error {
	return engine.ValidateWorkflow(&c.app, c.svc.Executors.Has)
}

func (c *SubmitCommand) Precheck(ctx context.Context) error { return nil }

func (c *SubmitCommand) Execute(ctx context.Context, out *command.Outbox) (string, error) {
	now := c.svc.now()
	if c.conf == nil {
		c.conf = make(map[string]string)
	}

	job := &domain.WorkflowJob{
		ID:           c.jobID,
		AppName:      c.app.Name,
		App:          c.app,
		Status:       domain.JobPrep,
		Conf:         c.conf,
		ParentID:     c.parentID,
		CreatedAt:    now,
		LastModified: now,
	}

	err := c.svc.Store.InTx(ctx, func(ctx context.Context) error {
		if err := c.svc.Store.CreateWorkflowJob(ctx, job); err != nil {
			return err
		}
		for i, def := range c.app.Actions {
			action := &domain.WorkflowAction{
				ID:         domain.WorkflowActionID(job.ID, def.Name),
				JobID:      job.ID,
				Name:       def.Name,
				Type:       def.Type,
				Status:     domain.ActionPrep,
				PendingAge: now,
				// Порядок объявления сохраняется в порядке создания
				CreatedAt: now.Add(time.Duration(i) * time.Microsecond),
			}
			if def.Retry != nil {
				action.UserRetryMax = def.Retry.MaxRetries
				action.UserRetryInterval = time.Duration(def.Retry.IntervalSec) * time.Second
			}
			if err := c.svc.Store.CreateWorkflowAction(ctx, action); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return job.ID, nil
}

// StartCommand переводит job из PREP в RUNNING и запускает сигнал.
type StartCommand struct {
	jobCommand
}

func NewStartCommand(svc *Services, jobID string) *StartCommand {
	return &StartCommand{jobCommand: newJobCommand(svc, jobID)}
}

func (c *StartCommand) Meta() command.Meta {
	return command.Meta{Kind: command.KindWorkflowStart, Priority: 1, Group: command.GroupWorkflow, NeedsLock: true}
}

func (c *StartCommand) Precheck(ctx context.Context) error {
	job, err := c.svc.loadJob(ctx, c.jobID)
	if err != nil {
		return err
	}
	if job.Status != domain.JobPrep {
		return command.Skip("job %s is %s, not PREP", c.jobID, job.Status)
	}
	c.job = job
	return nil
}

func (c *StartCommand) Execute(ctx context.Context, out *command.Outbox) (struct{}, error) {
	c.job.MarkRunning(c.svc.now())
	if err := c.svc.Store.UpdateWorkflowJob(ctx, c.job); err != nil {
		return struct{}{}, err
	}
	c.svc.notifyJob(out, c.job)
	command.Follow(out, NewSignalCommand(c.svc, c.jobID), 0)
	return struct{}{}, nil
}
