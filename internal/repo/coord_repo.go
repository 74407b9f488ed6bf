package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shaiso/Coordinator/internal/domain"
)

const coordJobColumns = `id, name, app, status, conf, bundle_id, last_action_number,
	next_materialize_at, done_materialization, error_message,
	created_at, last_modified, started_at, ended_at`

const coordActionColumns = `id, job_id, number, status, nominal_time, inputs,
	missing_dependencies, timeout, run_conf, external_id, pending, error_message,
	created_at, last_modified`

// CreateCoordJob создаёт координатор.
func (s *PGStore) CreateCoordJob(ctx context.Context, job *domain.CoordinatorJob) error {
	appJSON, err := json.Marshal(job.App)
	if err != nil {
		return fmt.Errorf("marshal app: %w", err)
	}
	confJSON, err := json.Marshal(job.Conf)
	if err != nil {
		return fmt.Errorf("marshal conf: %w", err)
	}

	query := `INSERT INTO coord_jobs (` + coordJobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	return s.insert(ctx, "coordinator job "+job.ID, query,
		job.ID,
		job.Name,
		appJSON,
		job.Status,
		confJSON,
		job.BundleID,
		job.LastActionNumber,
		job.NextMaterializeAt,
		job.DoneMaterialization,
		job.ErrorMessage,
		job.CreatedAt,
		job.LastModified,
		job.StartedAt,
		job.EndedAt,
	)
}

// GetCoordJob возвращает координатор по ID.
func (s *PGStore) GetCoordJob(ctx context.Context, id string) (*domain.CoordinatorJob, error) {
	query := `SELECT ` + coordJobColumns + ` FROM coord_jobs WHERE id = $1`
	return scanCoordJob(s.q(ctx).QueryRow(ctx, query, id))
}

// UpdateCoordJob обновляет изменяемые поля координатора.
func (s *PGStore) UpdateCoordJob(ctx context.Context, job *domain.CoordinatorJob) error {
	query := `
		UPDATE coord_jobs
		SET status = $2, last_action_number = $3, next_materialize_at = $4,
		    done_materialization = $5, error_message = $6, last_modified = $7,
		    started_at = $8, ended_at = $9
		WHERE id = $1
	`
	return s.execOne(ctx, "coordinator job", query,
		job.ID,
		job.Status,
		job.LastActionNumber,
		job.NextMaterializeAt,
		job.DoneMaterialization,
		job.ErrorMessage,
		job.LastModified,
		job.StartedAt,
		job.EndedAt,
	)
}

// ListCoordJobs возвращает координаторы, новые первыми.
func (s *PGStore) ListCoordJobs(ctx context.Context, filter JobFilter) ([]domain.CoordinatorJob, error) {
	query := `SELECT ` + coordJobColumns + ` FROM coord_jobs
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`
	rows, err := s.q(ctx).Query(ctx, query, string(filter.Status), filter.limit(), filter.Offset)
	return collect(rows, err, "coordinator jobs", scanCoordJob)
}

// ListCoordJobsByBundle возвращает координаторы bundle.
func (s *PGStore) ListCoordJobsByBundle(ctx context.Context, bundleID string) ([]domain.CoordinatorJob, error) {
	query := `SELECT ` + coordJobColumns + ` FROM coord_jobs
		WHERE bundle_id = $1
		ORDER BY created_at, id`
	rows, err := s.q(ctx).Query(ctx, query, bundleID)
	return collect(rows, err, "bundle coordinators", scanCoordJob)
}

// ListCoordJobsToMaterialize возвращает координаторы, готовые к материализации.
func (s *PGStore) ListCoordJobsToMaterialize(ctx context.Context, before time.Time, limit int) ([]domain.CoordinatorJob, error) {
	query := `SELECT ` + coordJobColumns + ` FROM coord_jobs
		WHERE status = 'RUNNING' AND NOT done_materialization AND next_materialize_at < $1
		ORDER BY next_materialize_at
		LIMIT $2`
	rows, err := s.q(ctx).Query(ctx, query, before, limit)
	return collect(rows, err, "coordinators to materialize", scanCoordJob)
}

// CreateCoordAction создаёт действие координатора.
func (s *PGStore) CreateCoordAction(ctx context.Context, a *domain.CoordinatorAction) error {
	inputsJSON, err := json.Marshal(a.Inputs)
	if err != nil {
		return fmt.Errorf("marshal inputs: %w", err)
	}
	runConfJSON, err := json.Marshal(a.RunConf)
	if err != nil {
		return fmt.Errorf("marshal run conf: %w", err)
	}

	query := `INSERT INTO coord_actions (` + coordActionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	return s.insert(ctx, "coordinator action "+a.ID, query,
		a.ID,
		a.JobID,
		a.Number,
		a.Status,
		a.NominalTime,
		inputsJSON,
		a.MissingDependencies,
		a.Timeout,
		runConfJSON,
		a.ExternalID,
		a.Pending,
		a.ErrorMessage,
		a.CreatedAt,
		a.LastModified,
	)
}

// GetCoordAction возвращает действие координатора по ID.
func (s *PGStore) GetCoordAction(ctx context.Context, id string) (*domain.CoordinatorAction, error) {
	query := `SELECT ` + coordActionColumns + ` FROM coord_actions WHERE id = $1`
	return scanCoordAction(s.q(ctx).QueryRow(ctx, query, id))
}

// UpdateCoordAction обновляет изменяемые поля действия координатора.
func (s *PGStore) UpdateCoordAction(ctx context.Context, a *domain.CoordinatorAction) error {
	inputsJSON, err := json.Marshal(a.Inputs)
	if err != nil {
		return fmt.Errorf("marshal inputs: %w", err)
	}
	runConfJSON, err := json.Marshal(a.RunConf)
	if err != nil {
		return fmt.Errorf("marshal run conf: %w", err)
	}

	query := `
		UPDATE coord_actions
		SET status = $2, inputs = $3, missing_dependencies = $4, run_conf = $5,
		    external_id = $6, pending = $7, error_message = $8, last_modified = $9
		WHERE id = $1
	`
	return s.execOne(ctx, "coordinator action", query,
		a.ID,
		a.Status,
		inputsJSON,
		a.MissingDependencies,
		runConfJSON,
		a.ExternalID,
		a.Pending,
		a.ErrorMessage,
		a.LastModified,
	)
}

// ListCoordActions возвращает действия координатора по номеру.
func (s *PGStore) ListCoordActions(ctx context.Context, jobID string) ([]domain.CoordinatorAction, error) {
	query := `SELECT ` + coordActionColumns + ` FROM coord_actions
		WHERE job_id = $1
		ORDER BY number`
	rows, err := s.q(ctx).Query(ctx, query, jobID)
	return collect(rows, err, "coordinator actions", scanCoordAction)
}

// ListCoordActionsByStatus возвращает действия в статусе status.
func (s *PGStore) ListCoordActionsByStatus(ctx context.Context, status domain.CoordActionStatus, modifiedBefore time.Time, limit int) ([]domain.CoordinatorAction, error) {
	query := `SELECT ` + coordActionColumns + ` FROM coord_actions
		WHERE status = $1 AND last_modified < $2
		ORDER BY nominal_time, id
		LIMIT $3`
	rows, err := s.q(ctx).Query(ctx, query, string(status), modifiedBefore, limit)
	return collect(rows, err, "coordinator actions", scanCoordAction)
}

func scanCoordJob(row scanner) (*domain.CoordinatorJob, error) {
	var job domain.CoordinatorJob
	var appJSON, confJSON []byte

	err := row.Scan(
		&job.ID,
		&job.Name,
		&appJSON,
		&job.Status,
		&confJSON,
		&job.BundleID,
		&job.LastActionNumber,
		&job.NextMaterializeAt,
		&job.DoneMaterialization,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.LastModified,
		&job.StartedAt,
		&job.EndedAt,
	)
	if err != nil {
		return nil, notFound(err, "coordinator job")
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

func scanCoordAction(row scanner) (*domain.CoordinatorAction, error) {
	var a domain.CoordinatorAction
	var inputsJSON, runConfJSON []byte

	err := row.Scan(
		&a.ID,
		&a.JobID,
		&a.Number,
		&a.Status,
		&a.NominalTime,
		&inputsJSON,
		&a.MissingDependencies,
		&a.Timeout,
		&runConfJSON,
		&a.ExternalID,
		&a.Pending,
		&a.ErrorMessage,
		&a.CreatedAt,
		&a.LastModified,
	)
	if err != nil {
		return nil, notFound(err, "coordinator action")
	}

	if inputsJSON != nil {
		if err := json.Unmarshal(inputsJSON, &a.Inputs); err != nil {
			return nil, fmt.Errorf("unmarshal inputs: %w", err)
		}
	}
	if runConfJSON != nil {
		if err := json.Unmarshal(runConfJSON, &a.RunConf); err != nil {
			return nil, fmt.Errorf("unmarshal run conf: %w", err)
		}
	}
	return &a, nil
}
