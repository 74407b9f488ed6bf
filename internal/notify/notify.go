package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shaiso/Coordinator/internal/command"
	"github.com/shaiso/Coordinator/internal/domain"
	"github.com/shaiso/Coordinator/internal/mq"
	"github.com/shaiso/Coordinator/internal/telemetry"
)

const (
	defaultMaxRetries = 3
	defaultRetryDelay = 60 * time.Second
	defaultTimeout    = 10 * time.Second
)

// EventPublisher публикует события переходов (mq.Publisher).
type EventPublisher interface {
	PublishTransition(ctx context.Context, ev mq.TransitionEvent) error
}

// Config — настройки Notifier.
type Config struct {
	Client     *http.Client
	Publisher  EventPublisher
	MaxRetries int
	RetryDelay time.Duration
}

// Notifier создаёт команды уведомлений.
type Notifier struct {
	env        *command.Env
	client     *http.Client
	publisher  EventPublisher
	maxRetries int
	retryDelay time.Duration
}

// New создаёт Notifier.
func New(env *command.Env, cfg Config) *Notifier {
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: defaultTimeout}
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	return &Notifier{
		env:        env,
		client:     cfg.Client,
		publisher:  cfg.Publisher,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
	}
}

// JobURL подставляет $jobId и $status в URL уведомления job.
func JobURL(tmpl, jobID string, status domain.JobStatus) string {
	if tmpl == "" {
		return ""
	}
	return strings.NewReplacer(
		"$jobId", jobID,
		"$status", string(status),
	).Replace(tmpl)
}

// ActionURL подставляет $jobId, $actionId, $nodeName и $status.
// Для завершённого действия статус — "T:<status>", иначе "S:<status>".
func ActionURL(tmpl string, a *domain.WorkflowAction) string {
	if tmpl == "" {
		return ""
	}
	status := "S:" + string(a.Status)
	if a.Status.IsTerminal() {
		status = "T:" + string(a.Status)
	}
	return strings.NewReplacer(
		"$jobId", a.JobID,
		"$actionId", a.ID,
		"$nodeName", a.Name,
		"$status", status,
	).Replace(tmpl)
}

// ForJob возвращает уведомление о переходе workflow job.
func (n *Notifier) ForJob(job *domain.WorkflowJob) command.Callable {
	return n.bind(&Command{
		Base:     command.NewBase(job.ID),
		notifier: n,
		url:      JobURL(job.App.NotificationURL, job.ID, job.Status),
		event: mq.TransitionEvent{
			Entity: "workflow",
			JobID:  job.ID,
			Status: string(job.Status),
		},
	})
}

// ForAction возвращает уведомление о переходе действия.
func (n *Notifier) ForAction(job *domain.WorkflowJob, a *domain.WorkflowAction) command.Callable {
	return n.bind(&Command{
		Base:     command.NewBase(a.ID),
		notifier: n,
		url:      ActionURL(job.App.ActionNotificationURL, a),
		event: mq.TransitionEvent{
			Entity:   "action",
			JobID:    job.ID,
			ActionID: a.ID,
			NodeName: a.Name,
			Status:   string(a.Status),
		},
	})
}

// ForEntity возвращает событие перехода координатора, его действия
// или bundle (HTTP-уведомлений у них нет).
func (n *Notifier) ForEntity(entity, id, status string) command.Callable {
	return n.bind(&Command{
		Base:     command.NewBase(id),
		notifier: n,
		event: mq.TransitionEvent{
			Entity: entity,
			JobID:  id,
			Status: status,
		},
	})
}

func (n *Notifier) bind(c *Command) command.Callable {
	return command.Bind(n.env, c)
}

// Command — одна попытка доставки уведомления.
//
// Неудача не влияет на владельца: новая попытка ставится свежей
// командой через retryDelay, после maxRetries уведомление отбрасывается.
type Command struct {
	command.Base
	notifier *Notifier
	url      string
	event    mq.TransitionEvent
	retries  int
}

func (c *Command) Meta() command.Meta {
	return command.Meta{Kind: command.KindNotification, Priority: 0, Group: command.GroupNotification}
}

func (c *Command) EntityKey() string { return c.url }

func (c *Command) EagerPrecheck(ctx context.Context) error {
	if c.url == "" && c.notifier.publisher == nil {
		return command.Skip("nothing to notify")
	}
	return nil
}

func (c *Command) Precheck(ctx context.Context) error { return nil }

func (c *Command) Execute(ctx context.Context, out *command.Outbox) (struct{}, error) {
	logger := telemetry.FromContext(ctx)

	if c.notifier.publisher != nil && c.retries == 0 {
		// Событие публикуется один раз, повторяется только HTTP
		if err := c.notifier.publisher.PublishTransition(ctx, c.event); err != nil {
			logger.Warn("failed to publish transition event", "job_id", c.event.JobID, "error", err)
		}
	}

	if c.url == "" {
		return struct{}{}, nil
	}

	if err := c.send(ctx); err != nil {
		c.handleRetry(logger, out, err)
	}
	return struct{}{}, nil
}

func (c *Command) send(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.notifier.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (c *Command) handleRetry(logger *slog.Logger, out *command.Outbox, cause error) {
	if c.retries >= c.notifier.maxRetries {
		logger.Warn("could not send notification", "url", c.url, "error", cause)
		return
	}
	next := &Command{
		Base:     command.NewBase(c.ID()),
		notifier: c.notifier,
		url:      c.url,
		event:    c.event,
		retries:  c.retries + 1,
	}
	logger.Debug("notification failed, retrying", "url", c.url, "attempt", next.retries, "error", cause)
	command.Follow(out, next, c.notifier.retryDelay)
}
