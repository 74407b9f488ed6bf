package wf

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shaiso/Coordinator/internal/command"
	"github.com/shaiso/Coordinator/internal/domain"
	"github.com/shaiso/Coordinator/internal/engine"
	"github.com/shaiso/Coordinator/internal/notify"
	"github.com/shaiso/Coordinator/internal/repo"
)

const defaultCheckDelay = 600 * time.Second

// Services — зависимости команд workflow.
type Services struct {
	Env       *command.Env
	Store     repo.Store
	Executors *Registry

	// Notifier — nil отключает уведомления.
	Notifier *notify.Notifier

	// ParentUpdate возвращает команду обновления родительского действия
	// координатора после перехода job. nil — родителей нет.
	ParentUpdate func(parentID, jobID string) command.Callable

	// CheckDelay — минимальный интервал между проверками действия
	// (600s по умолчанию). Обратные вызовы проверяют без задержки.
	CheckDelay time.Duration

	Now func() time.Time
}

func (s *Services) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Services) checkDelay() time.Duration {
	if s.CheckDelay <= 0 {
		return defaultCheckDelay
	}
	return s.CheckDelay
}

func (s *Services) loadJob(ctx context.Context, jobID string) (*domain.WorkflowJob, error) {
	job, err := s.Store.GetWorkflowJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("load workflow job %s: %w", jobID, err)
	}
	return job, nil
}

func (s *Services) loadAction(ctx context.Context, actionID string) (*domain.WorkflowAction, error) {
	action, err := s.Store.GetWorkflowAction(ctx, actionID)
	if err != nil {
		return nil, fmt.Errorf("load workflow action %s: %w", actionID, err)
	}
	return action, nil
}

// notifyJob ставит уведомление о статусе job и обновление родителя.
func (s *Services) notifyJob(out *command.Outbox, job *domain.WorkflowJob) {
	if s.Notifier != nil {
		out.Add(command.Request{Callable: s.Notifier.ForJob(job)})
	}
	if job.ParentID != "" && s.ParentUpdate != nil {
		out.Add(command.Request{Callable: s.ParentUpdate(job.ParentID, job.ID)})
	}
}

func (s *Services) notifyAction(out *command.Outbox, job *domain.WorkflowJob, a *domain.WorkflowAction) {
	if s.Notifier != nil {
		out.Add(command.Request{Callable: s.Notifier.ForAction(job, a)})
	}
}

// actionContext рендерит конфигурацию действия с результатами
// завершённых действий job.
func (s *Services) actionContext(ctx context.Context, job *domain.WorkflowJob, a *domain.WorkflowAction) (*ActionContext, error) {
	def := findActionDef(&job.App, a.Name)
	if def == nil {
		return nil, fmt.Errorf("%w: %s", ErrActionDefNotFound, a.Name)
	}

	actions, err := s.Store.ListWorkflowActions(ctx, job.ID)
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}

	tctx := engine.NewContext(job.ID, job.Conf)
	for _, other := range actions {
		if other.Status.IsTerminal() {
			tctx.AddActionResult(other.Name, other.Data, string(other.Status))
		}
	}

	config, err := engine.RenderConfig(def.Config, tctx)
	if err != nil {
		return nil, err
	}
	return &ActionContext{Job: job, Action: a, Config: config, Now: s.now()}, nil
}

// retryPolicy — пользовательские параметры повторов или executor'а.
func retryPolicy(a *domain.WorkflowAction, e Executor) (int, time.Duration) {
	maxRetries, interval := e.MaxRetries(), e.RetryInterval()
	if a.UserRetryMax > 0 {
		maxRetries = a.UserRetryMax
	}
	if a.UserRetryInterval > 0 {
		interval = a.UserRetryInterval
	}
	return maxRetries, interval
}

func findActionDef(app *domain.WorkflowApp, name string) *domain.ActionDef {
	for i := range app.Actions {
		if app.Actions[i].Name == name {
			return &app.Actions[i]
		}
	}
	return nil
}

func toJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// jobCommand — общая часть команд уровня job.
type jobCommand struct {
	command.Base
	svc   *Services
	jobID string
	job   *domain.WorkflowJob
}

func newJobCommand(svc *Services, jobID string) jobCommand {
	return jobCommand{Base: command.NewBase(jobID), svc: svc, jobID: jobID}
}

func (c *jobCommand) EntityKey() string { return c.jobID }

func (c *jobCommand) EagerPrecheck(ctx context.Context) error { return nil }

// actionCommand — общая часть команд уровня действия; блокировка по job.
type actionCommand struct {
	command.Base
	svc      *Services
	actionID string
	job      *domain.WorkflowJob
	action   *domain.WorkflowAction
}

func newActionCommand(svc *Services, actionID string) actionCommand {
	return actionCommand{Base: command.NewBase(actionID), svc: svc, actionID: actionID}
}

func (c *actionCommand) EntityKey() string { return domain.JobIDOf(c.actionID) }

func (c *actionCommand) EagerPrecheck(ctx context.Context) error { return nil }

// load читает действие и его job.
func (c *actionCommand) load(ctx context.Context) error {
	action, err := c.svc.loadAction(ctx, c.actionID)
	if err != nil {
		return err
	}
	job, err := c.svc.loadJob(ctx, action.JobID)
	if err != nil {
		return err
	}
	c.action, c.job = action, job
	return nil
}
