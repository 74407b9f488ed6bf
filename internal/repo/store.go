package repo

import (
	"context"
	"time"

	"github.com/shaiso/Coordinator/internal/domain"
)

// Store — хранилище job и действий.
//
// Все методы, вызванные внутри InTx с переданным ctx, выполняются
// в одной транзакции. Вложенный InTx использует внешнюю транзакцию.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error

	WorkflowStore
	CoordStore
	BundleStore
}

// WorkflowStore — workflow job и их действия.
type WorkflowStore interface {
	CreateWorkflowJob(ctx context.Context, job *domain.WorkflowJob) error
	GetWorkflowJob(ctx context.Context, id string) (*domain.WorkflowJob, error)
	UpdateWorkflowJob(ctx context.Context, job *domain.WorkflowJob) error
	ListWorkflowJobs(ctx context.Context, filter JobFilter) ([]domain.WorkflowJob, error)

	CreateWorkflowAction(ctx context.Context, action *domain.WorkflowAction) error
	GetWorkflowAction(ctx context.Context, id string) (*domain.WorkflowAction, error)
	UpdateWorkflowAction(ctx context.Context, action *domain.WorkflowAction) error

	// ListWorkflowActions возвращает действия job в порядке создания.
	ListWorkflowActions(ctx context.Context, jobID string) ([]domain.WorkflowAction, error)

	// ListRunningActions возвращает RUNNING действия, не проверявшиеся
	// с checkedBefore (или ни разу).
	ListRunningActions(ctx context.Context, checkedBefore time.Time, limit int) ([]domain.WorkflowAction, error)

	// ListPendingActions возвращает pending действия с PendingAge раньше olderThan.
	ListPendingActions(ctx context.Context, olderThan time.Time, limit int) ([]domain.WorkflowAction, error)
}

// CoordStore — координаторы и их действия.
type CoordStore interface {
	CreateCoordJob(ctx context.Context, job *domain.CoordinatorJob) error
	GetCoordJob(ctx context.Context, id string) (*domain.CoordinatorJob, error)
	UpdateCoordJob(ctx context.Context, job *domain.CoordinatorJob) error
	ListCoordJobs(ctx context.Context, filter JobFilter) ([]domain.CoordinatorJob, error)
	ListCoordJobsByBundle(ctx context.Context, bundleID string) ([]domain.CoordinatorJob, error)

	// ListCoordJobsToMaterialize возвращает RUNNING координаторы
	// с незавершённой материализацией и NextMaterializeAt раньше before.
	ListCoordJobsToMaterialize(ctx context.Context, before time.Time, limit int) ([]domain.CoordinatorJob, error)

	CreateCoordAction(ctx context.Context, action *domain.CoordinatorAction) error
	GetCoordAction(ctx context.Context, id string) (*domain.CoordinatorAction, error)
	UpdateCoordAction(ctx context.Context, action *domain.CoordinatorAction) error

	// ListCoordActions возвращает действия job по возрастанию номера.
	ListCoordActions(ctx context.Context, jobID string) ([]domain.CoordinatorAction, error)

	// ListCoordActionsByStatus возвращает действия в статусе status,
	// изменённые раньше modifiedBefore.
	ListCoordActionsByStatus(ctx context.Context, status domain.CoordActionStatus, modifiedBefore time.Time, limit int) ([]domain.CoordinatorAction, error)
}

// BundleStore — bundle job.
type BundleStore interface {
	CreateBundleJob(ctx context.Context, job *domain.BundleJob) error
	GetBundleJob(ctx context.Context, id string) (*domain.BundleJob, error)
	UpdateBundleJob(ctx context.Context, job *domain.BundleJob) error
	ListBundleJobs(ctx context.Context, filter JobFilter) ([]domain.BundleJob, error)
}

// JobFilter — фильтр списков job.
type JobFilter struct {
	Status domain.JobStatus
	Limit  int
	Offset int
}

func (f JobFilter) limit() int {
	if f.Limit <= 0 {
		return 100
	}
	return f.Limit
}
