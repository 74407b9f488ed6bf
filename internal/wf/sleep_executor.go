package wf

import (
	"context"
	"time"

	"github.com/shaiso/Coordinator/internal/domain"
)

const deadlineKey = "deadline"

// SleepExecutor — действие типа "sleep": завершается, когда проходит срок.
//
// Config:
//   - duration_sec (number): длительность, 1 по умолчанию
//
// Срок хранится в Data["deadline"]; завершение обнаруживает Check.
type SleepExecutor struct{}

func (e *SleepExecutor) Type() string { return "sleep" }

func (e *SleepExecutor) Start(ctx context.Context, ac *ActionContext) error {
	d, ok := getSeconds(ac.Config, "duration_sec")
	if !ok {
		d = time.Second
	}

	if ac.Action.Data == nil {
		ac.Action.Data = make(map[string]string)
	}
	ac.Action.ExternalID = ac.Action.ID
	ac.Action.Data[deadlineKey] = ac.Now.Add(d).UTC().Format(time.RFC3339Nano)
	ac.Action.ExternalStatus = ExternalRunning
	if d <= 0 {
		ac.Action.ExternalStatus = ExternalOK
	}
	return nil
}

func (e *SleepExecutor) Check(ctx context.Context, ac *ActionContext) error {
	deadline, err := time.Parse(time.RFC3339Nano, ac.Action.Data[deadlineKey])
	if err != nil {
		return NewExecutorError(Failed, "SLEEP_DEADLINE", err, "bad deadline %q", ac.Action.Data[deadlineKey])
	}
	if !ac.Now.Before(deadline) {
		ac.Action.ExternalStatus = ExternalOK
	}
	return nil
}

func (e *SleepExecutor) End(ctx context.Context, ac *ActionContext) (domain.ActionStatus, error) {
	if ac.Action.ExternalStatus == ExternalOK {
		return domain.ActionOK, nil
	}
	return domain.ActionError, nil
}

func (e *SleepExecutor) Kill(ctx context.Context, ac *ActionContext) error {
	ac.Action.ExternalStatus = ExternalKilled
	return nil
}

func (e *SleepExecutor) IsCompleted(externalStatus string) bool {
	return externalStatus == ExternalOK
}

func (e *SleepExecutor) MaxRetries() int              { return 0 }
func (e *SleepExecutor) RetryInterval() time.Duration { return 0 }

// TransformExecutor — действие типа "transform": отрендеренная конфигурация
// становится Data действия и доступна следующим действиям в шаблонах.
type TransformExecutor struct{}

func (e *TransformExecutor) Type() string { return "transform" }

func (e *TransformExecutor) Start(ctx context.Context, ac *ActionContext) error {
	data := make(map[string]string, len(ac.Config))
	for k, v := range ac.Config {
		if s, ok := v.(string); ok {
			data[k] = s
			continue
		}
		data[k] = toJSON(v)
	}
	ac.Action.Data = data
	ac.Action.ExternalStatus = ExternalOK
	return nil
}

func (e *TransformExecutor) Check(ctx context.Context, ac *ActionContext) error { return nil }

func (e *TransformExecutor) End(ctx context.Context, ac *ActionContext) (domain.ActionStatus, error) {
	return domain.ActionOK, nil
}

func (e *TransformExecutor) Kill(ctx context.Context, ac *ActionContext) error { return nil }
func (e *TransformExecutor) IsCompleted(externalStatus string) bool          { return externalStatus == ExternalOK }
func (e *TransformExecutor) MaxRetries() int                                 { return 0 }
func (e *TransformExecutor) RetryInterval() time.Duration                    { return 0 }

// NoopExecutor — действие типа "noop", завершается сразу.
type NoopExecutor struct{}

func (e *NoopExecutor) Type() string { return "noop" }

func (e *NoopExecutor) Start(ctx context.Context, ac *ActionContext) error {
	ac.Action.ExternalStatus = ExternalOK
	return nil
}

func (e *NoopExecutor) Check(ctx context.Context, ac *ActionContext) error { return nil }

func (e *NoopExecutor) End(ctx context.Context, ac *ActionContext) (domain.ActionStatus, error) {
	return domain.ActionOK, nil
}

func (e *NoopExecutor) Kill(ctx context.Context, ac *ActionContext) error { return nil }
func (e *NoopExecutor) IsCompleted(externalStatus string) bool          { return externalStatus == ExternalOK }
func (e *NoopExecutor) MaxRetries() int                                 { return 0 }
func (e *NoopExecutor) RetryInterval() time.Duration                    { return 0 }
