package coord

import (
	"context"
	"maps"
	"time"

	"github.com/shaiso/Coordinator/internal/command"
	"github.com/shaiso/Coordinator/internal/deps"
	"github.com/shaiso/Coordinator/internal/domain"
	"github.com/shaiso/Coordinator/internal/engine"
	"github.com/shaiso/Coordinator/internal/telemetry"
)

// InputCheckCommand проверяет готовность входов WAITING действия.
//
//   - nominal time в будущем — повтор через max(nominal-now, requeue);
//   - все входы на месте — параметры запуска рендерятся, действие READY;
//   - чего-то нет — дескриптор сохраняется, повтор через requeue;
//   - ожидание дольше Timeout минут — TIMEDOUT, проверки прекращаются.
type InputCheckCommand struct {
	actionCommand
}

func NewInputCheckCommand(svc *Services, actionID string) *InputCheckCommand {
	return &InputCheckCommand{actionCommand: newActionCommand(svc, actionID)}
}

func (c *InputCheckCommand) Meta() command.Meta {
	return command.Meta{Kind: command.KindCoordActionInput, Priority: 1, Group: command.GroupCoordinator, NeedsLock: true}
}

func (c *InputCheckCommand) Precheck(ctx context.Context) error {
	if err := c.load(ctx); err != nil {
		return err
	}
	if c.action.Status != domain.CoordWaiting {
		return command.Skip("action %s is %s, not WAITING", c.actionID, c.action.Status)
	}
	if c.job.Status != domain.JobRunning {
		return command.Skip("coordinator %s is %s, not RUNNING", c.job.ID, c.job.Status)
	}
	return nil
}

func (c *InputCheckCommand) Execute(ctx context.Context, out *command.Outbox) (domain.CoordActionStatus, error) {
	logger := telemetry.WithActionID(telemetry.FromContext(ctx), c.actionID)
	now := c.svc.now()
	a := c.action

	if now.Before(a.NominalTime) {
		a.LastModified = now
		if err := c.svc.Store.UpdateCoordAction(ctx, a); err != nil {
			return "", err
		}
		delay := max(a.NominalTime.Sub(now), c.svc.requeueInterval())
		command.Follow(out, NewInputCheckCommand(c.svc, c.actionID), delay)
		return a.Status, nil
	}

	missing := c.check(ctx, deps.ParseDescriptor(a.MissingDependencies))

	if missing.Empty() {
		conf, err := c.runConf()
		if err != nil {
			logger.Error("failed to render run conf", "error", err)
			a.Status = domain.CoordFailed
			a.ErrorMessage = err.Error()
			a.MissingDependencies = ""
			a.LastModified = now
			if err := c.svc.Store.UpdateCoordAction(ctx, a); err != nil {
				return "", err
			}
			c.svc.notifyAction(out, a)
			command.Follow(out, NewStatusTransitCommand(c.svc, a.JobID), 0)
			return a.Status, nil
		}

		a.RunConf = conf
		a.Status = domain.CoordReady
		a.MissingDependencies = ""
		a.LastModified = now
		if err := c.svc.Store.UpdateCoordAction(ctx, a); err != nil {
			return "", err
		}
		logger.Info("inputs available, action ready")
		c.svc.notifyAction(out, a)
		command.Follow(out, NewReadyCommand(c.svc, a.JobID), readyDelay)
		return a.Status, nil
	}

	a.MissingDependencies = missing.String()
	a.LastModified = now

	if c.timedOut(now) {
		a.Status = domain.CoordTimedOut
		if err := c.svc.Store.UpdateCoordAction(ctx, a); err != nil {
			return "", err
		}
		logger.Warn("action timed out waiting for inputs", "missing", a.MissingDependencies)
		command.Follow(out, NewTimeoutCommand(c.svc, c.actionID), readyDelay)
		return a.Status, nil
	}

	if err := c.svc.Store.UpdateCoordAction(ctx, a); err != nil {
		return "", err
	}
	if c.svc.Watcher != nil && len(missing.Resolved) > 0 {
		c.svc.Watcher.Register(c.actionID, missing.Resolved)
	}
	logger.Debug("inputs missing", "missing", a.MissingDependencies)
	command.Follow(out, NewInputCheckCommand(c.svc, c.actionID), c.svc.requeueInterval())
	return a.Status, nil
}

// check возвращает то, чего всё ещё нет. Разрешённые URI проверяются
// по порядку до первого отсутствующего; экземпляры latest/future
// разрешаются, только когда все разрешённые URI на месте.
func (c *InputCheckCommand) check(ctx context.Context, desc deps.Descriptor) deps.Descriptor {
	logger := telemetry.WithActionID(telemetry.FromContext(ctx), c.actionID)
	var missing deps.Descriptor

	for i, uri := range desc.Resolved {
		ok, err := c.svc.Checker.Exists(ctx, uri)
		if err != nil {
			logger.Warn("existence check failed", "uri", uri, "error", err)
		}
		if !ok {
			missing.Resolved = desc.Resolved[i:]
			missing.Unresolved = desc.Unresolved
			return missing
		}
	}

	for _, inst := range desc.Unresolved {
		uri, ok, err := c.svc.Resolver.Resolve(ctx, inst.Expr, c.action.NominalTime)
		if err != nil {
			logger.Warn("instance resolution failed", "input", inst.Name, "expr", inst.Expr, "error", err)
		}
		if !ok {
			missing.Unresolved = append(missing.Unresolved, inst)
			continue
		}
		if c.action.Inputs == nil {
			c.action.Inputs = make(map[string]string)
		}
		c.action.Inputs[inst.Name] = uri
	}
	return missing
}

// timedOut — ожидание с max(nominal, created) дольше Timeout минут.
func (c *InputCheckCommand) timedOut(now time.Time) bool {
	a := c.action
	if a.Timeout < 0 {
		return false
	}
	since := a.NominalTime
	if a.CreatedAt.After(since) {
		since = a.CreatedAt
	}
	return now.Sub(since) > time.Duration(a.Timeout)*time.Minute
}

// runConf — параметры job, дополненные отрендеренными Conf приложения.
func (c *InputCheckCommand) runConf() (map[string]string, error) {
	tctx := engine.NewNominalContext(c.action.NominalTime, c.actionID, c.action.Inputs, c.job.Conf)
	rendered, err := engine.RenderStrings(c.job.App.Conf, tctx)
	if err != nil {
		return nil, err
	}
	conf := maps.Clone(c.job.Conf)
	if conf == nil {
		conf = make(map[string]string, len(rendered))
	}
	maps.Copy(conf, rendered)
	return conf, nil
}
