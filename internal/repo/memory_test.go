package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Coordinator/internal/domain"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newJob(id string, status domain.JobStatus, created time.Time) *domain.WorkflowJob {
	return &domain.WorkflowJob{
		ID:           id,
		AppName:      "app",
		Status:       status,
		Conf:         map[string]string{"k": "v"},
		CreatedAt:    created,
		LastModified: created,
	}
}

func TestMemoryStore_CreateGetUpdate(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	job := newJob("j1", domain.JobPrep, t0)
	require.NoError(t, s.CreateWorkflowJob(ctx, job))

	err := s.CreateWorkflowJob(ctx, job)
	assert.ErrorIs(t, err, ErrAlreadyExists)

	got, err := s.GetWorkflowJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobPrep, got.Status)

	// Изменение полученной копии не затрагивает хранилище
	got.Conf["k"] = "changed"
	again, err := s.GetWorkflowJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, "v", again.Conf["k"])

	got.Status = domain.JobRunning
	require.NoError(t, s.UpdateWorkflowJob(ctx, got))
	again, err = s.GetWorkflowJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobRunning, again.Status)

	_, err = s.GetWorkflowJob(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.UpdateWorkflowJob(ctx, newJob("missing", domain.JobPrep, t0)), ErrNotFound)
}

func TestMemoryStore_InTx_RollbackOnError(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.CreateWorkflowJob(ctx, newJob("j1", domain.JobPrep, t0)))

	boom := errors.New("boom")
	err := s.InTx(ctx, func(ctx context.Context) error {
		job, err := s.GetWorkflowJob(ctx, "j1")
		if err != nil {
			return err
		}
		job.Status = domain.JobRunning
		if err := s.UpdateWorkflowJob(ctx, job); err != nil {
			return err
		}
		if err := s.CreateWorkflowAction(ctx, &domain.WorkflowAction{ID: "j1@a", JobID: "j1"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	job, err := s.GetWorkflowJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobPrep, job.Status)

	_, err = s.GetWorkflowAction(ctx, "j1@a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_InTx_NestedUsesOuter(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.InTx(ctx, func(ctx context.Context) error {
		if err := s.InTx(ctx, func(ctx context.Context) error {
			return s.CreateBundleJob(ctx, &domain.BundleJob{ID: "b1", Status: domain.JobPrep})
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	// Внешний откат отменяет и вложенную запись
	_, err = s.GetBundleJob(ctx, "b1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_ListWorkflowJobs_Filter(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.CreateWorkflowJob(ctx, newJob("a", domain.JobRunning, t0)))
	require.NoError(t, s.CreateWorkflowJob(ctx, newJob("b", domain.JobPrep, t0.Add(time.Minute))))
	require.NoError(t, s.CreateWorkflowJob(ctx, newJob("c", domain.JobRunning, t0.Add(2*time.Minute))))

	running, err := s.ListWorkflowJobs(ctx, JobFilter{Status: domain.JobRunning})
	require.NoError(t, err)
	require.Len(t, running, 2)
	assert.Equal(t, "c", running[0].ID)
	assert.Equal(t, "a", running[1].ID)

	paged, err := s.ListWorkflowJobs(ctx, JobFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, "b", paged[0].ID)

	empty, err := s.ListWorkflowJobs(ctx, JobFilter{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMemoryStore_ListRunningAndPendingActions(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	checked := t0.Add(time.Minute)
	actions := []*domain.WorkflowAction{
		{ID: "j@a", JobID: "j", Status: domain.ActionRunning, CreatedAt: t0},
		{ID: "j@b", JobID: "j", Status: domain.ActionRunning, CreatedAt: t0, LastCheckTime: &checked},
		{ID: "j@c", JobID: "j", Status: domain.ActionPrep, Pending: true, PendingAge: t0, CreatedAt: t0},
		{ID: "j@d", JobID: "j", Status: domain.ActionOK, CreatedAt: t0},
	}
	for _, a := range actions {
		require.NoError(t, s.CreateWorkflowAction(ctx, a))
	}

	running, err := s.ListRunningActions(ctx, t0.Add(30*time.Second), 10)
	require.NoError(t, err)
	require.Len(t, running, 1)
	assert.Equal(t, "j@a", running[0].ID)

	running, err = s.ListRunningActions(ctx, t0.Add(2*time.Minute), 10)
	require.NoError(t, err)
	assert.Len(t, running, 2)

	pending, err := s.ListPendingActions(ctx, t0.Add(time.Second), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "j@c", pending[0].ID)

	all, err := s.ListWorkflowActions(ctx, "j")
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestMemoryStore_CoordQueries(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.CreateCoordJob(ctx, &domain.CoordinatorJob{
		ID: "c1", Status: domain.JobRunning, BundleID: "b1", NextMaterializeAt: t0,
	}))
	require.NoError(t, s.CreateCoordJob(ctx, &domain.CoordinatorJob{
		ID: "c2", Status: domain.JobRunning, DoneMaterialization: true, NextMaterializeAt: t0,
	}))
	require.NoError(t, s.CreateCoordJob(ctx, &domain.CoordinatorJob{
		ID: "c3", Status: domain.JobSuspended, BundleID: "b1", NextMaterializeAt: t0,
	}))

	due, err := s.ListCoordJobsToMaterialize(ctx, t0.Add(time.Second), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "c1", due[0].ID)

	byBundle, err := s.ListCoordJobsByBundle(ctx, "b1")
	require.NoError(t, err)
	assert.Len(t, byBundle, 2)

	for i, status := range []domain.CoordActionStatus{domain.CoordWaiting, domain.CoordReady, domain.CoordWaiting} {
		require.NoError(t, s.CreateCoordAction(ctx, &domain.CoordinatorAction{
			ID:           domain.CoordActionID("c1", i+1),
			JobID:        "c1",
			Number:       i + 1,
			Status:       status,
			NominalTime:  t0.Add(time.Duration(i) * time.Hour),
			LastModified: t0,
		}))
	}

	waiting, err := s.ListCoordActionsByStatus(ctx, domain.CoordWaiting, t0.Add(time.Second), 10)
	require.NoError(t, err)
	require.Len(t, waiting, 2)
	assert.Equal(t, 1, waiting[0].Number)
	assert.Equal(t, 3, waiting[1].Number)

	limited, err := s.ListCoordActionsByStatus(ctx, domain.CoordWaiting, t0.Add(time.Second), 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
