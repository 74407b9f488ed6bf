package service

import (
	"context"
	"fmt"

	"github.com/shaiso/Coordinator/internal/bundle"
	"github.com/shaiso/Coordinator/internal/command"
	"github.com/shaiso/Coordinator/internal/coord"
	"github.com/shaiso/Coordinator/internal/domain"
	"github.com/shaiso/Coordinator/internal/repo"
	"github.com/shaiso/Coordinator/internal/wf"
)

// Definition — определение job для отправки. Заполняется ровно одно
// из Workflow, Coordinator, Bundle.
type Definition struct {
	Workflow    *domain.WorkflowApp    `json:"workflow,omitempty" yaml:"workflow,omitempty"`
	Coordinator *domain.CoordinatorApp `json:"coordinator,omitempty" yaml:"coordinator,omitempty"`
	Bundle      *domain.BundleApp      `json:"bundle,omitempty" yaml:"bundle,omitempty"`

	// Conf — параметры запуска job.
	Conf map[string]string `json:"conf,omitempty" yaml:"conf,omitempty"`
}

// Type возвращает тип определения.
func (d Definition) Type() (domain.JobType, error) {
	var types []domain.JobType
	if d.Workflow != nil {
		types = append(types, domain.JobTypeWorkflow)
	}
	if d.Coordinator != nil {
		types = append(types, domain.JobTypeCoordinator)
	}
	if d.Bundle != nil {
		types = append(types, domain.JobTypeBundle)
	}
	if len(types) != 1 {
		return "", fmt.Errorf("%w: expected exactly one application, got %d", ErrInvalidDefinition, len(types))
	}
	return types[0], nil
}

// Submit создаёт job и, если start, сразу запускает его.
// Возвращает ID job.
func (s *Service) Submit(ctx context.Context, def Definition, start bool) (string, error) {
	t, err := def.Type()
	if err != nil {
		return "", err
	}

	var jobID string
	switch t {
	case domain.JobTypeWorkflow:
		jobID, err = command.Call(ctx, s.env, wf.NewSubmitCommand(s.workflow, *def.Workflow, def.Conf, ""))
	case domain.JobTypeCoordinator:
		jobID, err = command.Call(ctx, s.env, coord.NewSubmitCommand(s.coord, *def.Coordinator, def.Conf, ""))
	case domain.JobTypeBundle:
		jobID, err = command.Call(ctx, s.env, bundle.NewSubmitCommand(s.bundle, *def.Bundle, def.Conf))
	}
	if err != nil {
		return "", err
	}
	s.logger.Info("job submitted", "job_id", jobID, "type", string(t))

	if start {
		if err := s.StartJob(ctx, jobID); err != nil {
			return jobID, err
		}
	}
	return jobID, nil
}

// StartJob запускает job в статусе PREP.
func (s *Service) StartJob(ctx context.Context, jobID string) error {
	return dispatch(jobID, jobOps{
		workflow: func() error { return call(ctx, s, wf.NewStartCommand(s.workflow, jobID)) },
		coord:    func() error { return call(ctx, s, coord.NewStartCommand(s.coord, jobID)) },
		bundle:   func() error { return call(ctx, s, bundle.NewStartCommand(s.bundle, jobID)) },
	})
}

// SuspendJob приостанавливает job.
func (s *Service) SuspendJob(ctx context.Context, jobID string) error {
	return dispatch(jobID, jobOps{
		workflow: func() error { return call(ctx, s, wf.NewSuspendCommand(s.workflow, jobID)) },
		coord:    func() error { return call(ctx, s, coord.NewSuspendCommand(s.coord, jobID)) },
		bundle:   func() error { return call(ctx, s, bundle.NewSuspendCommand(s.bundle, jobID)) },
	})
}

// ResumeJob возобновляет приостановленный job.
func (s *Service) ResumeJob(ctx context.Context, jobID string) error {
	return dispatch(jobID, jobOps{
		workflow: func() error { return call(ctx, s, wf.NewResumeCommand(s.workflow, jobID)) },
		coord:    func() error { return call(ctx, s, coord.NewResumeCommand(s.coord, jobID)) },
		bundle:   func() error { return call(ctx, s, bundle.NewResumeCommand(s.bundle, jobID)) },
	})
}

// KillJob завершает job со статусом KILLED.
func (s *Service) KillJob(ctx context.Context, jobID string) error {
	return dispatch(jobID, jobOps{
		workflow: func() error { return call(ctx, s, wf.NewKillCommand(s.workflow, jobID)) },
		coord:    func() error { return call(ctx, s, coord.NewKillCommand(s.coord, jobID)) },
		bundle:   func() error { return call(ctx, s, bundle.NewKillCommand(s.bundle, jobID)) },
	})
}

// JobInfo — job вместе с его действиями.
type JobInfo struct {
	Type domain.JobType `json:"type"`

	Workflow        *domain.WorkflowJob        `json:"workflow,omitempty"`
	WorkflowActions []domain.WorkflowAction    `json:"workflow_actions,omitempty"`
	Coordinator     *domain.CoordinatorJob     `json:"coordinator,omitempty"`
	CoordActions    []domain.CoordinatorAction `json:"coord_actions,omitempty"`
	Bundle          *domain.BundleJob          `json:"bundle,omitempty"`
}

// Info возвращает job и его действия.
func (s *Service) Info(ctx context.Context, jobID string) (*JobInfo, error) {
	t, err := jobTypeOf(jobID)
	if err != nil {
		return nil, err
	}

	info := &JobInfo{Type: t}
	switch t {
	case domain.JobTypeWorkflow:
		if info.Workflow, err = s.store.GetWorkflowJob(ctx, jobID); err != nil {
			return nil, err
		}
		info.WorkflowActions, err = s.store.ListWorkflowActions(ctx, jobID)
	case domain.JobTypeCoordinator:
		if info.Coordinator, err = s.store.GetCoordJob(ctx, jobID); err != nil {
			return nil, err
		}
		info.CoordActions, err = s.store.ListCoordActions(ctx, jobID)
	case domain.JobTypeBundle:
		info.Bundle, err = s.store.GetBundleJob(ctx, jobID)
	}
	if err != nil {
		return nil, err
	}
	return info, nil
}

// JobList — страница job одного типа.
type JobList struct {
	Workflows    []domain.WorkflowJob    `json:"workflows,omitempty"`
	Coordinators []domain.CoordinatorJob `json:"coordinators,omitempty"`
	Bundles      []domain.BundleJob      `json:"bundles,omitempty"`
}

// Len — количество job в странице.
func (l *JobList) Len() int {
	return len(l.Workflows) + len(l.Coordinators) + len(l.Bundles)
}

// ListJobs возвращает job типа t по фильтру.
func (s *Service) ListJobs(ctx context.Context, t domain.JobType, filter repo.JobFilter) (*JobList, error) {
	var (
		list JobList
		err  error
	)
	switch t {
	case domain.JobTypeWorkflow:
		list.Workflows, err = s.store.ListWorkflowJobs(ctx, filter)
	case domain.JobTypeCoordinator:
		list.Coordinators, err = s.store.ListCoordJobs(ctx, filter)
	case domain.JobTypeBundle:
		list.Bundles, err = s.store.ListBundleJobs(ctx, filter)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownJobType, t)
	}
	if err != nil {
		return nil, err
	}
	return &list, nil
}

type jobOps struct {
	workflow func() error
	coord    func() error
	bundle   func() error
}

// dispatch выбирает операцию по типу job.
func dispatch(jobID string, ops jobOps) error {
	t, err := jobTypeOf(jobID)
	if err != nil {
		return err
	}
	switch t {
	case domain.JobTypeWorkflow:
		return ops.workflow()
	case domain.JobTypeCoordinator:
		return ops.coord()
	default:
		return ops.bundle()
	}
}

func call[R any](ctx context.Context, s *Service, cmd command.Command[R]) error {
	_, err := command.Call(ctx, s.env, cmd)
	return err
}

func jobTypeOf(id string) (domain.JobType, error) {
	t, ok := domain.JobTypeOf(id)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownJobType, id)
	}
	return t, nil
}
