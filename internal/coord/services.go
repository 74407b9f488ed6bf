package coord

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/shaiso/Coordinator/internal/command"
	"github.com/shaiso/Coordinator/internal/domain"
	"github.com/shaiso/Coordinator/internal/notify"
	"github.com/shaiso/Coordinator/internal/repo"
	"github.com/shaiso/Coordinator/internal/wf"
)

// Default configuration values.
const (
	defaultRequeueInterval = 60 * time.Second
	defaultTimeoutMinutes  = 120
	defaultMaterializeMax  = 10
	defaultLookahead       = 5 * time.Minute

	// readyDelay — задержка перед ReadyCommand и TimeoutCommand.
	readyDelay = 100 * time.Millisecond
)

// Имена сущностей в событиях переходов.
const (
	entityJob    = "coordinator"
	entityAction = "coord_action"
)

// InstanceResolver разрешает экземпляры latest/future.
type InstanceResolver interface {
	Resolve(ctx context.Context, expr string, nominal time.Time) (string, bool, error)
}

// ExistenceChecker проверяет наличие URI.
type ExistenceChecker interface {
	Exists(ctx context.Context, uri string) (bool, error)
}

// DependencyWatcher получает отсутствующие URI для push-проверок.
type DependencyWatcher interface {
	Register(actionID string, uris []string)
}

// Services — зависимости команд координатора.
type Services struct {
	Env   *command.Env
	Store repo.Store

	// Workflow — сервисы запуска workflow действий.
	Workflow *wf.Services

	Resolver InstanceResolver
	Checker  ExistenceChecker

	// Watcher — nil отключает push-проверки.
	Watcher DependencyWatcher

	// Notifier — nil отключает события.
	Notifier *notify.Notifier

	// OnBundleUpdate возвращает команду обновления bundle после
	// перехода координатора. nil — bundle нет.
	OnBundleUpdate func(bundleID, coordJobID string) command.Callable

	// RequeueInterval — интервал повторной проверки входов (default: 60s).
	RequeueInterval time.Duration

	// DefaultTimeout — таймаут ожидания входов в минутах (default: 120).
	DefaultTimeout int

	// MaterializeMax — сколько действий создаётся за одну материализацию (default: 10).
	MaterializeMax int

	// Lookahead — на сколько вперёд материализуются действия (default: 5m).
	Lookahead time.Duration

	Now func() time.Time
}

func (s *Services) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Services) requeueInterval() time.Duration {
	if s.RequeueInterval <= 0 {
		return defaultRequeueInterval
	}
	return s.RequeueInterval
}

func (s *Services) materializeMax() int {
	if s.MaterializeMax <= 0 {
		return defaultMaterializeMax
	}
	return s.MaterializeMax
}

func (s *Services) lookahead() time.Duration {
	if s.Lookahead <= 0 {
		return defaultLookahead
	}
	return s.Lookahead
}

// actionTimeout — таймаут действия: 0 в приложении — значение по умолчанию,
// отрицательный — без таймаута (-1).
func (s *Services) actionTimeout(app *domain.CoordinatorApp) int {
	switch {
	case app.Timeout < 0:
		return -1
	case app.Timeout > 0:
		return app.Timeout
	case s.DefaultTimeout != 0:
		return s.DefaultTimeout
	default:
		return defaultTimeoutMinutes
	}
}

func (s *Services) loadJob(ctx context.Context, jobID string) (*domain.CoordinatorJob, error) {
	job, err := s.Store.GetCoordJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("load coordinator job %s: %w", jobID, err)
	}
	return job, nil
}

func (s *Services) loadAction(ctx context.Context, actionID string) (*domain.CoordinatorAction, error) {
	action, err := s.Store.GetCoordAction(ctx, actionID)
	if err != nil {
		return nil, fmt.Errorf("load coordinator action %s: %w", actionID, err)
	}
	return action, nil
}

// notifyJob ставит событие перехода координатора и обновление bundle.
func (s *Services) notifyJob(out *command.Outbox, job *domain.CoordinatorJob) {
	if s.Notifier != nil {
		out.Add(command.Request{Callable: s.Notifier.ForEntity(entityJob, job.ID, string(job.Status))})
	}
	if job.BundleID != "" && s.OnBundleUpdate != nil {
		out.Add(command.Request{Callable: s.OnBundleUpdate(job.BundleID, job.ID)})
	}
}

func (s *Services) notifyAction(out *command.Outbox, a *domain.CoordinatorAction) {
	if s.Notifier != nil {
		out.Add(command.Request{Callable: s.Notifier.ForEntity(entityAction, a.ID, string(a.Status))})
	}
}

// workflowCommand оборачивает команду workflow в единицу работы.
func workflowCommand[R any](s *Services, cmd command.Command[R]) command.Request {
	return command.Request{Callable: command.Bind(s.Workflow.Env, cmd)}
}

// jobCommand — общая часть команд уровня координатора.
type jobCommand struct {
	command.Base
	svc   *Services
	jobID string
	job   *domain.CoordinatorJob
}

func newJobCommand(svc *Services, jobID string) jobCommand {
	return jobCommand{Base: command.NewBase(jobID), svc: svc, jobID: jobID}
}

func (c *jobCommand) EntityKey() string { return c.jobID }

func (c *jobCommand) EagerPrecheck(ctx context.Context) error { return nil }

// load читает job и проверяет его статус.
func (c *jobCommand) load(ctx context.Context, allowed ...domain.JobStatus) error {
	job, err := c.svc.loadJob(ctx, c.jobID)
	if err != nil {
		return err
	}
	if len(allowed) > 0 && !slices.Contains(allowed, job.Status) {
		return command.Skip("coordinator %s is %s", c.jobID, job.Status)
	}
	c.job = job
	return nil
}

// actionCommand — общая часть команд уровня действия; блокировка по job.
type actionCommand struct {
	command.Base
	svc      *Services
	actionID string
	job      *domain.CoordinatorJob
	action   *domain.CoordinatorAction
}

func newActionCommand(svc *Services, actionID string) actionCommand {
	return actionCommand{Base: command.NewBase(actionID), svc: svc, actionID: actionID}
}

func (c *actionCommand) EntityKey() string { return domain.JobIDOf(c.actionID) }

func (c *actionCommand) EagerPrecheck(ctx context.Context) error { return nil }

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
