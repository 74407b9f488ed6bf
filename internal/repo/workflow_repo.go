package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shaiso/Coordinator/internal/domain"
)

const workflowJobColumns = `id, app_name, app, status, conf, parent_id, error_message,
	created_at, last_modified, started_at, ended_at`

const workflowActionColumns = `id, job_id, name, type, status, pending, pending_age, retries,
	user_retry_max, user_retry_interval, external_id, external_status, data,
	error_code, error_message, created_at, last_check_time, start_time, end_time`

// CreateWorkflowJob создаёт workflow job.
func (s *PGStore) CreateWorkflowJob(ctx context.Context, job *domain.WorkflowJob) error {
	appJSON, err := json.Marshal(job.App)
	if err != nil {
		return fmt.Errorf("marshal app: %w", err)
	}
	confJSON, err := json.Marshal(job.Conf)
	if err != nil {
		return fmt.Errorf("marshal conf: %w", err)
	}

	query := `INSERT INTO workflow_jobs (` + workflowJobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	return s.insert(ctx, "workflow job "+job.ID, query,
		job.ID,
		job.AppName,
		appJSON,
		job.Status,
		confJSON,
		job.ParentID,
		job.ErrorMessage,
		job.CreatedAt,
		job.LastModified,
		job.StartedAt,
		job.EndedAt,
	)
}

// GetWorkflowJob возвращает workflow job по ID.
func (s *PGStore) GetWorkflowJob(ctx context.Context, id string) (*domain.WorkflowJob, error) {
	query := `SELECT ` + workflowJobColumns + ` FROM workflow_jobs WHERE id = $1`
	return scanWorkflowJob(s.q(ctx).QueryRow(ctx, query, id))
}

// UpdateWorkflowJob обновляет изменяемые поля job.
func (s *PGStore) UpdateWorkflowJob(ctx context.Context, job *domain.WorkflowJob) error {
	confJSON, err := json.Marshal(job.Conf)
	if err != nil {
		return fmt.Errorf("marshal conf: %w", err)
	}

	query := `
		UPDATE workflow_jobs
		SET status = $2, conf = $3, error_message = $4, last_modified = $5,
		    started_at = $6, ended_at = $7
		WHERE id = $1
	`
	return s.execOne(ctx, "workflow job", query,
		job.ID,
		job.Status,
		confJSON,
		job.ErrorMessage,
		job.LastModified,
		job.StartedAt,
		job.EndedAt,
	)
}

// ListWorkflowJobs возвращает job, новые первыми.
func (s *PGStore) ListWorkflowJobs(ctx context.Context, filter JobFilter) ([]domain.WorkflowJob, error) {
	query := `SELECT ` + workflowJobColumns + ` FROM workflow_jobs
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`
	rows, err := s.q(ctx).Query(ctx, query, string(filter.Status), filter.limit(), filter.Offset)
	return collect(rows, err, "workflow jobs", scanWorkflowJob)
}

// CreateWorkflowAction создаёт действие.
func (s *PGStore) CreateWorkflowAction(ctx context.Context, a *domain.WorkflowAction) error {
	dataJSON, err := json.Marshal(a.Data)
	if err != nil {
		return fmt.Errorf("marshal data: %w", err)
	}

	query := `INSERT INTO workflow_actions (` + workflowActionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`
	return s.insert(ctx, "workflow action "+a.ID, query,
		a.ID,
		a.JobID,
		a.Name,
		a.Type,
		a.Status,
		a.Pending,
		a.PendingAge,
		a.Retries,
		a.UserRetryMax,
		int64(a.UserRetryInterval),
		a.ExternalID,
		a.ExternalStatus,
		dataJSON,
		a.ErrorCode,
		a.ErrorMessage,
		a.CreatedAt,
		a.LastCheckTime,
		a.StartTime,
		a.EndTime,
	)
}

// GetWorkflowAction возвращает действие по ID.
func (s *PGStore) GetWorkflowAction(ctx context.Context, id string) (*domain.WorkflowAction, error) {
	query := `SELECT ` + workflowActionColumns + ` FROM workflow_actions WHERE id = $1`
	return scanWorkflowAction(s.q(ctx).QueryRow(ctx, query, id))
}

// UpdateWorkflowAction обновляет изменяемые поля действия.
func (s *PGStore) UpdateWorkflowAction(ctx context.Context, a *domain.WorkflowAction) error {
	dataJSON, err := json.Marshal(a.Data)
	if err != nil {
		return fmt.Errorf("marshal data: %w", err)
	}

	query := `
		UPDATE workflow_actions
		SET status = $2, pending = $3, pending_age = $4, retries = $5,
		    external_id = $6, external_status = $7, data = $8,
		    error_code = $9, error_message = $10,
		    last_check_time = $11, start_time = $12, end_time = $13
		WHERE id = $1
	`
	return s.execOne(ctx, "workflow action", query,
		a.ID,
		a.Status,
		a.Pending,
		a.PendingAge,
		a.Retries,
		a.ExternalID,
		a.ExternalStatus,
		dataJSON,
		a.ErrorCode,
		a.ErrorMessage,
		a.LastCheckTime,
		a.StartTime,
		a.EndTime,
	)
}

// ListWorkflowActions возвращает действия job в порядке создания.
func (s *PGStore) ListWorkflowActions(ctx context.Context, jobID string) ([]domain.WorkflowAction, error) {
	query := `SELECT ` + workflowActionColumns + ` FROM workflow_actions
		WHERE job_id = $1
		ORDER BY created_at, id`
	rows, err := s.q(ctx).Query(ctx, query, jobID)
	return collect(rows, err, "workflow actions", scanWorkflowAction)
}

// ListRunningActions возвращает RUNNING действия для опроса.
func (s *PGStore) ListRunningActions(ctx context.Context, checkedBefore time.Time, limit int) ([]domain.WorkflowAction, error) {
	query := `SELECT ` + workflowActionColumns + ` FROM workflow_actions
		WHERE status = 'RUNNING' AND (last_check_time IS NULL OR last_check_time < $1)
		ORDER BY created_at, id
		LIMIT $2`
	rows, err := s.q(ctx).Query(ctx, query, checkedBefore, limit)
	return collect(rows, err, "running actions", scanWorkflowAction)
}

// ListPendingActions возвращает зависшие pending действия.
func (s *PGStore) ListPendingActions(ctx context.Context, olderThan time.Time, limit int) ([]domain.WorkflowAction, error) {
	query := `SELECT ` + workflowActionColumns + ` FROM workflow_actions
		WHERE pending AND pending_age < $1
		ORDER BY pending_age
		LIMIT $2`
	rows, err := s.q(ctx).Query(ctx, query, olderThan, limit)
	return collect(rows, err, "pending actions", scanWorkflowAction)
}

func scanWorkflowJob(row scanner) (*domain.WorkflowJob, error) {
	var job domain.WorkflowJob
	var appJSON, confJSON []byte

	err := row.Scan(
		&job.ID,
		&job.AppName,
		&appJSON,
		&job.Status,
		&confJSON,
		&job.ParentID,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.LastModified,
		&job.StartedAt,
		&job.EndedAt,
	)
	if err != nil {
		return nil, notFound(err, "workflow job")
	}

	if err := json.Unmarshal(appJSON, &job.App); err != nil {
		return nil, fmt.Errorf("unmarshal app: %w", err)
	}
	if confJSON != nil {
		if err := json.Unmarshal(confJSON, &job.Conf); err != nil {
			return nil, fmt.Errorf("unmarshal conf: %w", err)
		}
	}
	return &job, nil
}

func scanWorkflowAction(row scanner) (*domain.WorkflowAction, error) {
	var a domain.WorkflowAction
	var dataJSON []byte
	var retryInterval int64

	err := row.Scan(
		&a.ID,
		&a.JobID,
		&a.Name,
		&a.Type,
		&a.Status,
		&a.Pending,
		&a.PendingAge,
		&a.Retries,
		&a.UserRetryMax,
		&retryInterval,
		&a.ExternalID,
		&a.ExternalStatus,
		&dataJSON,
		&a.ErrorCode,
		&a.ErrorMessage,
		&a.CreatedAt,
		&a.LastCheckTime,
		&a.StartTime,
		&a.EndTime,
	)
	if err != nil {
		return nil, notFound(err, "workflow action")
	}
	a.UserRetryInterval = time.Duration(retryInterval)

	if dataJSON != nil {
		if err := json.Unmarshal(dataJSON, &a.Data); err != nil {
			return nil, fmt.Errorf("unmarshal data: %w", err)
		}
	}
	return &a, nil
}
