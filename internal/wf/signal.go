package wf

import (
	"context"

	"github.com/shaiso/Coordinator/internal/command"
	"github.com/shaiso/Coordinator/internal/domain"
	"github.com/shaiso/Coordinator/internal/engine"
	"github.com/shaiso/Coordinator/internal/telemetry"
)

// SignalCommand продвигает RUNNING job по DAG.
//
//   - действие в ERROR — job KILLED, остальные действия убиваются;
//   - все действия OK — job SUCCEEDED;
//   - иначе запускаются PREP действия, чьи зависимости в OK.
type SignalCommand struct {
	jobCommand
	actions []domain.WorkflowAction
}

func NewSignalCommand(svc *Services, jobID string) *SignalCommand {
	return &SignalCommand{jobCommand: newJobCommand(svc, jobID)}
}

func (c *SignalCommand) Meta() command.Meta {
	return command.Meta{Kind: command.KindSignal, Priority: 1, Group: command.GroupWorkflow, NeedsLock: true}
}

func (c *SignalCommand) Precheck(ctx context.Context) error {
	job, err := c.svc.loadJob(ctx, c.jobID)
	if err != nil {
		return err
	}
	if job.Status != domain.JobRunning {
		return command.Skip("job %s is %s, not RUNNING", c.jobID, job.Status)
	}
	c.job = job
	return nil
}

func (c *SignalCommand) Execute(ctx context.Context, out *command.Outbox) (struct{}, error) {
	logger := telemetry.WithJobID(telemetry.FromContext(ctx), c.jobID)

	err := c.svc.Store.InTx(ctx, func(ctx context.Context) error {
		actions, err := c.svc.Store.ListWorkflowActions(ctx, c.jobID)
		if err != nil {
			return err
		}
		c.actions = actions

		completed := make(map[string]bool, len(actions))
		started := make(map[string]bool, len(actions))
		var failed *domain.WorkflowAction
		for i := range actions {
			a := &actions[i]
			switch {
			case a.Status == domain.ActionOK:
				completed[a.Name] = true
			case a.Status == domain.ActionError && failed == nil:
				failed = a
			case a.Status != domain.ActionPrep || a.Pending:
				started[a.Name] = true
			}
		}

		now := c.svc.now()

		if failed != nil {
			logger.Info("action ended in error, killing job", "action", failed.Name)
			c.job.ErrorMessage = failed.ErrorMessage
			c.job.MarkEnded(domain.JobKilled, now)
			if err := c.svc.Store.UpdateWorkflowJob(ctx, c.job); err != nil {
				return err
			}
			if err := killActions(ctx, c.svc, c.job, actions, out); err != nil {
				return err
			}
			c.svc.notifyJob(out, c.job)
			return nil
		}

		if len(completed) == len(actions) {
			logger.Info("all actions succeeded")
			c.job.MarkEnded(domain.JobSucceeded, now)
			if err := c.svc.Store.UpdateWorkflowJob(ctx, c.job); err != nil {
				return err
			}
			c.svc.notifyJob(out, c.job)
			return nil
		}

		dag, err := engine.BuildDAG(&c.job.App)
		if err != nil {
			return err
		}
		byName := make(map[string]*domain.WorkflowAction, len(actions))
		for i := range actions {
			byName[actions[i].Name] = &actions[i]
		}

		for _, node := range dag.ReadyNodes(completed, started) {
			a, ok := byName[node.ID]
			if !ok {
				continue
			}
			a.SetPending(now)
			if err := c.svc.Store.UpdateWorkflowAction(ctx, a); err != nil {
				return err
			}
			command.Follow(out, NewActionStartCommand(c.svc, a.ID), 0)
		}
		return nil
	})
	return struct{}{}, err
}

// killActions завершает незавершённые действия job.
// Запущенные (RUNNING, DONE) получают ActionKill, остальные — KILLED сразу.
func killActions(ctx context.Context, svc *Services, job *domain.WorkflowJob, actions []domain.WorkflowAction, out *command.Outbox) error {
	now := svc.now()
	for i := range actions {
		a := &actions[i]
		switch a.Status {
		case domain.ActionRunning, domain.ActionDone:
			a.Status = domain.ActionKilled
			a.SetPending(now)
			if err := svc.Store.UpdateWorkflowAction(ctx, a); err != nil {
				return err
			}
			command.Follow(out, NewActionKillCommand(svc, a.ID), 0)
		case domain.ActionPrep, domain.ActionStartRetry, domain.ActionStartManual,
			domain.ActionEndRetry, domain.ActionEndManual:
			a.MarkEnded(domain.ActionKilled, now)
			if err := svc.Store.UpdateWorkflowAction(ctx, a); err != nil {
				return err
			}
		}
	}
	return nil
}
