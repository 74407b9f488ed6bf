package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shaiso/Coordinator/internal/domain"
)

const bundleJobColumns = `id, name, app, status, conf, actions, error_message,
	created_at, last_modified, started_at, ended_at`

// CreateBundleJob создаёт bundle.
func (s *PGStore) CreateBundleJob(ctx context.Context, job *domain.BundleJob) error {
	appJSON, err := json.Marshal(job.App)
	if err != nil {
		return fmt.Errorf("marshal app: %w", err)
	}
	confJSON, err := json.Marshal(job.Conf)
	if err != nil {
		return fmt.Errorf("marshal conf: %w", err)
	}
	actionsJSON, err := json.Marshal(job.Actions)
	if err != nil {
		return fmt.Errorf("marshal actions: %w", err)
	}

	query := `INSERT INTO bundle_jobs (` + bundleJobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	return s.insert(ctx, "bundle job "+job.ID, query,
		job.ID,
		job.Name,
		appJSON,
		job.Status,
		confJSON,
		actionsJSON,
		job.ErrorMessage,
		job.CreatedAt,
		job.LastModified,
		job.StartedAt,
		job.EndedAt,
	)
}

// GetBundleJob возвращает bundle по ID.
func (s *PGStore) GetBundleJob(ctx context.Context, id string) (*domain.BundleJob, error) {
	query := `SELECT ` + bundleJobColumns + ` FROM bundle_jobs WHERE id = $1`
	return scanBundleJob(s.q(ctx).QueryRow(ctx, query, id))
}

// UpdateBundleJob обновляет изменяемые поля bundle.
func (s *PGStore) UpdateBundleJob(ctx context.Context, job *domain.BundleJob) error {
	actionsJSON, err := json.Marshal(job.Actions)
	if err != nil {
		return fmt.Errorf("marshal actions: %w", err)
	}

	query := `
		UPDATE bundle_jobs
		SET status = $2, actions = $3, error_message = $4, last_modified = $5, started_at = $6, ended_at = $7
		WHERE id = $1
	`
	return s.execOne(ctx, "bundle job", query,
		job.ID,
		job.Status,
		actionsJSON,
		job.ErrorMessage,
		job.LastModified,
		job.StartedAt,
		job.EndedAt,
	)
}

// ListBundleJobs возвращает bundle, новые первыми.
func (s *PGStore) ListBundleJobs(ctx context.Context, filter JobFilter) ([]domain.BundleJob, error) {
	query := `SELECT ` + bundleJobColumns + ` FROM bundle_jobs
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`
	rows, err := s.q(ctx).Query(ctx, query, string(filter.Status), filter.limit(), filter.Offset)
	return collect(rows, err, "bundle jobs", scanBundleJob)
}

func scanBundleJob(row scanner) (*domain.BundleJob, error) {
	var job domain.BundleJob
	var appJSON, confJSON, actionsJSON []byte

	err := row.Scan(
		&job.ID,
		&job.Name,
		&appJSON,
		&job.Status,
		&confJSON,
		&actionsJSON,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.LastModified,
		&job.StartedAt,
		&job.EndedAt,
	)
	if err != nil {
		return nil, notFound(err, "bundle job")
	}

	if err := json.Unmarshal(appJSON, &job.App); err != nil {
		return nil, fmt.Errorf("unmarshal app: %w", err)
	}
	if confJSON != nil {
		if err := json.Unmarshal(confJSON, &job.Conf); err != nil {
			return nil, fmt.Errorf("unmarshal conf: %w", err)
		}
	}
	if actionsJSON != nil {
		if err := json.Unmarshal(actionsJSON, &job.Actions); err != nil {
			return nil, fmt.Errorf("unmarshal actions: %w", err)
		}
	}
	return &job, nil
}
