package wf

import (
	"context"
	"time"

	"github.com/shaiso/Coordinator/internal/command"
	"github.com/shaiso/Coordinator/internal/domain"
	"github.com/shaiso/Coordinator/internal/telemetry"
)

// phase — фаза действия, в которой произошла ошибка executor'а.
type phase struct {
	retry  domain.ActionStatus
	manual domain.ActionStatus

	// resubmit ставит свежую команду этой фазы.
	resubmit func(svc *Services, out *command.Outbox, actionID string, delay time.Duration)
}

var (
	startPhase = phase{
		retry:  domain.ActionStartRetry,
		manual: domain.ActionStartManual,
		resubmit: func(svc *Services, out *command.Outbox, actionID string, delay time.Duration) {
			command.Follow(out, NewActionStartCommand(svc, actionID), delay)
		},
	}
	endPhase = phase{
		retry:  domain.ActionEndRetry,
		manual: domain.ActionEndManual,
		resubmit: func(svc *Services, out *command.Outbox, actionID string, delay time.Duration) {
			command.Follow(out, NewActionEndCommand(svc, actionID), delay)
		},
	}
)

// handleExecutorError переводит ошибку executor'а в сохраняемый статус.
// Возвращает ошибку только при сбое хранилища.
func handleExecutorError(ctx context.Context, svc *Services, job *domain.WorkflowJob, a *domain.WorkflowAction,
	exec Executor, err error, p phase, out *command.Outbox) error {
	ee := asExecutorError(err)
	telemetry.WithActionID(telemetry.FromContext(ctx), a.ID).
		Warn("executor error", "kind", ee.Kind, "code", ee.Code, "error", ee.Message)

	switch ee.Kind {
	case Transient:
		return handleTransient(ctx, svc, job, a, exec, ee, p, out)
	case NonTransient:
		return handleNonTransient(ctx, svc, job, a, ee, p, out)
	case Failed:
		return failJob(ctx, svc, job, a, ee, out)
	default:
		return handleError(ctx, svc, job, a, ee, p, out)
	}
}

// handleTransient планирует повтор или, если повторы исчерпаны,
// переводит действие в *_MANUAL.
func handleTransient(ctx context.Context, svc *Services, job *domain.WorkflowJob, a *domain.WorkflowAction,
	exec Executor, ee *ExecutorError, p phase, out *command.Outbox) error {
	maxRetries, interval := retryPolicy(a, exec)
	if a.Retries >= maxRetries {
		return handleNonTransient(ctx, svc, job, a, ee, p, out)
	}

	now := svc.now()
	a.Retries++
	a.Status = p.retry
	a.SetError(ee.Code, ee.Message)
	a.SetPending(now.Add(interval))
	if err := svc.Store.UpdateWorkflowAction(ctx, a); err != nil {
		return err
	}
	p.resubmit(svc, out, a.ID, interval)
	return nil
}

// handleNonTransient переводит действие в *_MANUAL и приостанавливает job
// в той же транзакции.
func handleNonTransient(ctx context.Context, svc *Services, job *domain.WorkflowJob, a *domain.WorkflowAction,
	ee *ExecutorError, p phase, out *command.Outbox) error {
	a.Status = p.manual
	a.SetError(ee.Code, ee.Message)
	a.ResetPending()
	if err := svc.Store.UpdateWorkflowAction(ctx, a); err != nil {
		return err
	}
	svc.notifyAction(out, job, a)
	return suspendJob(ctx, svc, job, out)
}

// handleError: на старте действие остаётся pending и уходит в End,
// на завершении — сразу ERROR и сигнал job.
func handleError(ctx context.Context, svc *Services, job *domain.WorkflowJob, a *domain.WorkflowAction,
	ee *ExecutorError, p phase, out *command.Outbox) error {
	now := svc.now()
	a.SetError(ee.Code, ee.Message)
	a.ExternalStatus = ExternalError

	if p.retry == domain.ActionStartRetry {
		a.Status = domain.ActionDone
		a.SetPending(now)
		if err := svc.Store.UpdateWorkflowAction(ctx, a); err != nil {
			return err
		}
		command.Follow(out, NewActionEndCommand(svc, a.ID), 0)
		return nil
	}

	a.MarkEnded(domain.ActionError, now)
	if err := svc.Store.UpdateWorkflowAction(ctx, a); err != nil {
		return err
	}
	svc.notifyAction(out, job, a)
	command.Follow(out, NewSignalCommand(svc, job.ID), 0)
	return nil
}

// failJob завершает действие и job статусом FAILED и убивает остальные действия.
func failJob(ctx context.Context, svc *Services, job *domain.WorkflowJob, a *domain.WorkflowAction,
	ee *ExecutorError, out *command.Outbox) error {
	now := svc.now()
	a.SetError(ee.Code, ee.Message)
	a.MarkEnded(domain.ActionFailed, now)
	if err := svc.Store.UpdateWorkflowAction(ctx, a); err != nil {
		return err
	}

	job.ErrorMessage = ee.Message
	job.MarkEnded(domain.JobFailed, now)
	if err := svc.Store.UpdateWorkflowJob(ctx, job); err != nil {
		return err
	}

	svc.notifyAction(out, job, a)
	svc.notifyJob(out, job)
	command.Follow(out, NewKillCommand(svc, job.ID), 0)
	return nil
}

// suspendJob синхронно приостанавливает job (RUNNING → SUSPENDED,
// PREP → PREPSUSPENDED). Для остальных статусов ничего не делает.
func suspendJob(ctx context.Context, svc *Services, job *domain.WorkflowJob, out *command.Outbox) error {
	switch job.Status {
	case domain.JobRunning:
		job.Status = domain.JobSuspended
	case domain.JobPrep:
		job.Status = domain.JobPrepSuspended
	default:
		return nil
	}
	job.LastModified = svc.now()
	if err := svc.Store.UpdateWorkflowJob(ctx, job); err != nil {
		return err
	}
	svc.notifyJob(out, job)
	return nil
}
