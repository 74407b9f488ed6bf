package bundle

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/shaiso/Coordinator/internal/command"
	"github.com/shaiso/Coordinator/internal/coord"
	"github.com/shaiso/Coordinator/internal/domain"
	"github.com/shaiso/Coordinator/internal/notify"
	"github.com/shaiso/Coordinator/internal/repo"
)

const entityBundle = "bundle"

// Services — зависимости команд bundle.
type Services struct {
	Env   *command.Env
	Store repo.Store

	// Coord — сервисы координаторов bundle.
	Coord *coord.Services

	// Notifier — nil отключает события.
	Notifier *notify.Notifier

	Now func() time.Time
}

func (s *Services) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Services) notifyJob(out *command.Outbox, job *domain.BundleJob) {
	if s.Notifier != nil {
		out.Add(command.Request{Callable: s.Notifier.ForEntity(entityBundle, job.ID, string(job.Status))})
	}
}

// coordCommand оборачивает команду координатора в единицу работы.
func coordCommand[R any](s *Services, cmd command.Command[R]) command.Request {
	return command.Request{Callable: command.Bind(s.Coord.Env, cmd)}
}

// jobCommand — общая часть команд bundle; блокировка по ID bundle.
type jobCommand struct {
	command.Base
	svc   *Services
	jobID string
	job   *domain.BundleJob
}

func newJobCommand(svc *Services, jobID string) jobCommand {
	return jobCommand{Base: command.NewBase(jobID), svc: svc, jobID: jobID}
}

func (c *jobCommand) EntityKey() string { return c.jobID }

func (c *jobCommand) EagerPrecheck(ctx context.Context) error { return nil }

func (c *jobCommand) load(ctx context.Context, allowed ...domain.JobStatus) error {
	job, err := c.svc.Store.GetBundleJob(ctx, c.jobID)
	if err != nil {
		return fmt.Errorf("load bundle %s: %w", c.jobID, err)
	}
	if len(allowed) > 0 && !slices.Contains(allowed, job.Status) {
		return command.Skip("bundle %s is %s", c.jobID, job.Status)
	}
	c.job = job
	return nil
}

// forEachCoordinator вызывает fn для каждого запущенного координатора
// bundle вместе с его текущим статусом. Действия, для которых fn вернула
// true, получают отметку pending.
func (c *jobCommand) forEachCoordinator(ctx context.Context, now time.Time,
	fn func(a *domain.BundleAction, status domain.JobStatus) bool) error {

	for i := range c.job.Actions {
		a := &c.job.Actions[i]
		if a.CoordJobID == "" {
			continue
		}
		cj, err := c.svc.Store.GetCoordJob(ctx, a.CoordJobID)
		if err != nil {
			return fmt.Errorf("load coordinator %s: %w", a.CoordJobID, err)
		}
		if fn(a, cj.Status) {
			a.Pending++
			a.LastModified = now
		}
	}
	return nil
}
