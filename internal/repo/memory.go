package repo

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/shaiso/Coordinator/internal/domain"
)

// MemoryStore — хранилище в памяти.
//
// Транзакции сериализуются; при ошибке fn изменения откатываются.
// Используется в тестах и в режиме без базы данных.
type MemoryStore struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	data memoryData
}

type memoryData struct {
	wfJobs       map[string]domain.WorkflowJob
	wfActions    map[string]domain.WorkflowAction
	coordJobs    map[string]domain.CoordinatorJob
	coordActions map[string]domain.CoordinatorAction
	bundles      map[string]domain.BundleJob
}

func (d memoryData) clone() memoryData {
	return memoryData{
		wfJobs:       maps.Clone(d.wfJobs),
		wfActions:    maps.Clone(d.wfActions),
		coordJobs:    maps.Clone(d.coordJobs),
		coordActions: maps.Clone(d.coordActions),
		bundles:      maps.Clone(d.bundles),
	}
}

// NewMemoryStore создаёт пустое хранилище.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: memoryData{
		wfJobs:       make(map[string]domain.WorkflowJob),
		wfActions:    make(map[string]domain.WorkflowAction),
		coordJobs:    make(map[string]domain.CoordinatorJob),
		coordActions: make(map[string]domain.CoordinatorAction),
		bundles:      make(map[string]domain.BundleJob),
	}}
}

type memTxKey struct{}

// InTx выполняет fn в транзакции.
func (s *MemoryStore) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memTxKey{}) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.data.clone()
	s.mu.RUnlock()

	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		s.mu.Lock()
		s.data = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// --- Workflow ---

func (s *MemoryStore) CreateWorkflowJob(_ context.Context, job *domain.WorkflowJob) error {
	return create(s, s.data.wfJobs, job.ID, cloneWorkflowJob(*job))
}

func (s *MemoryStore) GetWorkflowJob(_ context.Context, id string) (*domain.WorkflowJob, error) {
	job, err := get(s, s.data.wfJobs, id)
	if err != nil {
		return nil, err
	}
	job = cloneWorkflowJob(job)
	return &job, nil
}

func (s *MemoryStore) UpdateWorkflowJob(_ context.Context, job *domain.WorkflowJob) error {
	return update(s, s.data.wfJobs, job.ID, cloneWorkflowJob(*job))
}

func (s *MemoryStore) ListWorkflowJobs(_ context.Context, filter JobFilter) ([]domain.WorkflowJob, error) {
	jobs := list(s, s.data.wfJobs, func(j domain.WorkflowJob) bool {
		return filter.Status == "" || j.Status == filter.Status
	})
	slices.SortFunc(jobs, func(a, b domain.WorkflowJob) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return page(jobs, filter), nil
}

func (s *MemoryStore) CreateWorkflowAction(_ context.Context, action *domain.WorkflowAction) error {
	return create(s, s.data.wfActions, action.ID, cloneWorkflowAction(*action))
}

func (s *MemoryStore) GetWorkflowAction(_ context.Context, id string) (*domain.WorkflowAction, error) {
	action, err := get(s, s.data.wfActions, id)
	if err != nil {
		return nil, err
	}
	action = cloneWorkflowAction(action)
	return &action, nil
}

func (s *MemoryStore) UpdateWorkflowAction(_ context.Context, action *domain.WorkflowAction) error {
	return update(s, s.data.wfActions, action.ID, cloneWorkflowAction(*action))
}

func (s *MemoryStore) ListWorkflowActions(_ context.Context, jobID string) ([]domain.WorkflowAction, error) {
	actions := list(s, s.data.wfActions, func(a domain.WorkflowAction) bool { return a.JobID == jobID })
	sortActions(actions)
	return actions, nil
}

func (s *MemoryStore) ListRunningActions(_ context.Context, checkedBefore time.Time, limit int) ([]domain.WorkflowAction, error) {
	actions := list(s, s.data.wfActions, func(a domain.WorkflowAction) bool {
		return a.Status == domain.ActionRunning &&
			(a.LastCheckTime == nil || a.LastCheckTime.Before(checkedBefore))
	})
	sortActions(actions)
	return head(actions, limit), nil
}

func (s *MemoryStore) ListPendingActions(_ context.Context, olderThan time.Time, limit int) ([]domain.WorkflowAction, error) {
	actions := list(s, s.data.wfActions, func(a domain.WorkflowAction) bool {
		return a.Pending && a.PendingAge.Before(olderThan)
	})
	slices.SortFunc(actions, func(a, b domain.WorkflowAction) int { return a.PendingAge.Compare(b.PendingAge) })
	return head(actions, limit), nil
}

// --- Coordinator ---

func (s *MemoryStore) CreateCoordJob(_ context.Context, job *domain.CoordinatorJob) error {
	return create(s, s.data.coordJobs, job.ID, cloneCoordJob(*job))
}

func (s *MemoryStore) GetCoordJob(_ context.Context, id string) (*domain.CoordinatorJob, error) {
	job, err := get(s, s.data.coordJobs, id)
	if err != nil {
		return nil, err
	}
	job = cloneCoordJob(job)
	return &job, nil
}

func (s *MemoryStore) UpdateCoordJob(_ context.Context, job *domain.CoordinatorJob) error {
	return update(s, s.data.coordJobs, job.ID, cloneCoordJob(*job))
}

func (s *MemoryStore) ListCoordJobs(_ context.Context, filter JobFilter) ([]domain.CoordinatorJob, error) {
	jobs := list(s, s.data.coordJobs, func(j domain.CoordinatorJob) bool {
		return filter.Status == "" || j.Status == filter.Status
	})
	slices.SortFunc(jobs, func(a, b domain.CoordinatorJob) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return page(jobs, filter), nil
}

func (s *MemoryStore) ListCoordJobsByBundle(_ context.Context, bundleID string) ([]domain.CoordinatorJob, error) {
	jobs := list(s, s.data.coordJobs, func(j domain.CoordinatorJob) bool { return j.BundleID == bundleID })
	slices.SortFunc(jobs, func(a, b domain.CoordinatorJob) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	return jobs, nil
}

func (s *MemoryStore) ListCoordJobsToMaterialize(_ context.Context, before time.Time, limit int) ([]domain.CoordinatorJob, error) {
	jobs := list(s, s.data.coordJobs, func(j domain.CoordinatorJob) bool {
		return j.Status == domain.JobRunning && !j.DoneMaterialization && j.NextMaterializeAt.Before(before)
	})
	slices.SortFunc(jobs, func(a, b domain.CoordinatorJob) int {
		return a.NextMaterializeAt.Compare(b.NextMaterializeAt)
	})
	return head(jobs, limit), nil
}

func (s *MemoryStore) CreateCoordAction(_ context.Context, action *domain.CoordinatorAction) error {
	return create(s, s.data.coordActions, action.ID, cloneCoordAction(*action))
}

func (s *MemoryStore) GetCoordAction(_ context.Context, id string) (*domain.CoordinatorAction, error) {
	action, err := get(s, s.data.coordActions, id)
	if err != nil {
		return nil, err
	}
	action = cloneCoordAction(action)
	return &action, nil
}

func (s *MemoryStore) UpdateCoordAction(_ context.Context, action *domain.CoordinatorAction) error {
	return update(s, s.data.coordActions, action.ID, cloneCoordAction(*action))
}

func (s *MemoryStore) ListCoordActions(_ context.Context, jobID string) ([]domain.CoordinatorAction, error) {
	actions := list(s, s.data.coordActions, func(a domain.CoordinatorAction) bool { return a.JobID == jobID })
	slices.SortFunc(actions, func(a, b domain.CoordinatorAction) int { return cmp.Compare(a.Number, b.Number) })
	return actions, nil
}

func (s *MemoryStore) ListCoordActionsByStatus(_ context.Context, status domain.CoordActionStatus, modifiedBefore time.Time, limit int) ([]domain.CoordinatorAction, error) {
	actions := list(s, s.data.coordActions, func(a domain.CoordinatorAction) bool {
		return a.Status == status && a.LastModified.Before(modifiedBefore)
	})
	slices.SortFunc(actions, func(a, b domain.CoordinatorAction) int {
		return cmp.Or(a.NominalTime.Compare(b.NominalTime), cmp.Compare(a.ID, b.ID))
	})
	return head(actions, limit), nil
}

// --- Bundle ---

func (s *MemoryStore) CreateBundleJob(_ context.Context, job *domain.BundleJob) error {
	return create(s, s.data.bundles, job.ID, cloneBundleJob(*job))
}

func (s *MemoryStore) GetBundleJob(_ context.Context, id string) (*domain.BundleJob, error) {
	job, err := get(s, s.data.bundles, id)
	if err != nil {
		return nil, err
	}
	job = cloneBundleJob(job)
	return &job, nil
}

func (s *MemoryStore) UpdateBundleJob(_ context.Context, job *domain.BundleJob) error {
	return update(s, s.data.bundles, job.ID, cloneBundleJob(*job))
}

func (s *MemoryStore) ListBundleJobs(_ context.Context, filter JobFilter) ([]domain.BundleJob, error) {
	jobs := list(s, s.data.bundles, func(j domain.BundleJob) bool {
		return filter.Status == "" || j.Status == filter.Status
	})
	slices.SortFunc(jobs, func(a, b domain.BundleJob) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return page(jobs, filter), nil
}

// --- helpers ---

func create[T any](s *MemoryStore, m map[string]T, id string, v T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := m[id]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, id)
	}
	m[id] = v
	return nil
}

func get[T any](s *MemoryStore, m map[string]T, id string) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := m[id]
	if !ok {
		var zero T
		return zero, ErrNotFound
	}
	return v, nil
}

func update[T any](s *MemoryStore, m map[string]T, id string, v T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := m[id]; !ok {
		return ErrNotFound
	}
	m[id] = v
	return nil
}

func list[T any](s *MemoryStore, m map[string]T, match func(T) bool) []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]T, 0)
	for _, v := range m {
		if match(v) {
			out = append(out, v)
		}
	}
	return out
}

func head[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

func page[T any](items []T, f JobFilter) []T {
	if f.Offset >= len(items) {
		return []T{}
	}
	return head(items[f.Offset:], f.limit())
}

func sortActions(actions []domain.WorkflowAction) {
	slices.SortFunc(actions, func(a, b domain.WorkflowAction) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
}

func cloneWorkflowJob(j domain.WorkflowJob) domain.WorkflowJob {
	j.Conf = maps.Clone(j.Conf)
	return j
}

func cloneWorkflowAction(a domain.WorkflowAction) domain.WorkflowAction {
	a.Data = maps.Clone(a.Data)
	return a
}

func cloneCoordJob(j domain.CoordinatorJob) domain.CoordinatorJob {
	j.Conf = maps.Clone(j.Conf)
	return j
}

func cloneCoordAction(a domain.CoordinatorAction) domain.CoordinatorAction {
	a.Inputs = maps.Clone(a.Inputs)
	a.RunConf = maps.Clone(a.RunConf)
	return a
}

func cloneBundleJob(b domain.BundleJob) domain.BundleJob {
	b.Conf = maps.Clone(b.Conf)
	b.Actions = slices.Clone(b.Actions)
	return b
}
