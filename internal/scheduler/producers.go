package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Coordinator/internal/command"
	"github.com/shaiso/Coordinator/internal/domain"
	"github.com/shaiso/Coordinator/internal/repo"
)

// Default configuration values.
const (
	defaultCheckDelay = 600 * time.Second
	defaultBatchSize  = 10
	defaultScanLimit  = 500
	defaultLookahead  = 5 * time.Minute
	defaultOlderThan  = 5 * time.Minute
)

// Commands — конструкторы команд, которые ставят производители.
// nil-конструктор отключает соответствующую часть.
type Commands struct {
	WorkflowActionStart func(actionID string) command.Callable
	WorkflowActionCheck func(actionID string) command.Callable
	WorkflowActionEnd   func(actionID string) command.Callable
	WorkflowActionKill  func(actionID string) command.Callable

	CoordMaterialize  func(jobID string) command.Callable
	CoordInputCheck   func(actionID string) command.Callable
	CoordReady        func(jobID string) command.Callable
	CoordActionUpdate func(actionID string) command.Callable

	BundleStatusUpdate func(bundleID, coordJobID string) command.Callable
}

// ProducerConfig — общая конфигурация производителей.
type ProducerConfig struct {
	Store     repo.Store
	Submitter command.Submitter
	Commands  Commands

	// CheckDelay — через сколько после прошлой проверки действие
	// снова проверяется (default: 600s).
	CheckDelay time.Duration

	// BatchSize — размер последовательного пакета (default: 10).
	BatchSize int

	// ScanLimit — сколько записей читать за запуск (default: 500).
	ScanLimit int

	// Lookahead — на сколько вперёд материализуются действия (default: 5m).
	Lookahead time.Duration

	// OlderThan — возраст pending-записи, после которого её
	// переотправляет recovery (default: 5m).
	OlderThan time.Duration

	Logger *slog.Logger
	Now    func() time.Time
}

// Producers — периодические производители работы.
type Producers struct {
	store     repo.Store
	submitter command.Submitter
	cmds      Commands

	checkDelay time.Duration
	batchSize  int
	scanLimit  int
	lookahead  time.Duration
	olderThan  time.Duration

	logger *slog.Logger
	now    func() time.Time
}

// NewProducers создаёт Producers.
func NewProducers(cfg ProducerConfig) *Producers {
	p := &Producers{
		store:      cfg.Store,
		submitter:  cfg.Submitter,
		cmds:       cfg.Commands,
		checkDelay: cfg.CheckDelay,
		batchSize:  cfg.BatchSize,
		scanLimit:  cfg.ScanLimit,
		lookahead:  cfg.Lookahead,
		olderThan:  cfg.OlderThan,
		logger:     cfg.Logger,
		now:        cfg.Now,
	}
	if p.checkDelay <= 0 {
		p.checkDelay = defaultCheckDelay
	}
	if p.batchSize <= 0 {
		p.batchSize = defaultBatchSize
	}
	if p.scanLimit <= 0 {
		p.scanLimit = defaultScanLimit
	}
	if p.lookahead <= 0 {
		p.lookahead = defaultLookahead
	}
	if p.olderThan <= 0 {
		p.olderThan = defaultOlderThan
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// Register регистрирует производителей в планировщике.
func (p *Producers) Register(s *Scheduler, checkInterval, materializeInterval, recoveryInterval time.Duration) error {
	if err := s.Every("action-checker", checkInterval, checkInterval, p.CheckActions); err != nil {
		return err
	}
	if err := s.Every("materializer", materializeInterval, materializeInterval, p.Materialize); err != nil {
		return err
	}
	return s.Every("recovery", recoveryInterval, recoveryInterval, p.Recover)
}

// CheckActions ставит проверки RUNNING действий workflow, не проверявшихся
// checkDelay, и обновления RUNNING действий координаторов.
func (p *Producers) CheckActions(ctx context.Context) error {
	before := p.now().Add(-p.checkDelay)
	var batch []command.Callable

	if p.cmds.WorkflowActionCheck != nil {
		actions, err := p.store.ListRunningActions(ctx, before, p.scanLimit)
		if err != nil {
			return fmt.Errorf("list running workflow actions: %w", err)
		}
		for _, a := range actions {
			batch = append(batch, p.cmds.WorkflowActionCheck(a.ID))
		}
	}

	if p.cmds.CoordActionUpdate != nil {
		actions, err := p.store.ListCoordActionsByStatus(ctx, domain.CoordRunning, before, p.scanLimit)
		if err != nil {
			return fmt.Errorf("list running coordinator actions: %w", err)
		}
		for _, a := range actions {
			batch = append(batch, p.cmds.CoordActionUpdate(a.ID))
		}
	}

	queued := p.submitBatches(batch)
	if queued > 0 {
		p.logger.Info("action checks queued", "count", queued)
	}
	return nil
}

// Materialize ставит материализацию координаторам, у которых следующий
// nominal time попадает в окно lookahead.
func (p *Producers) Materialize(ctx context.Context) error {
	if p.cmds.CoordMaterialize == nil {
		return nil
	}

	jobs, err := p.store.ListCoordJobsToMaterialize(ctx, p.now().Add(p.lookahead), p.scanLimit)
	if err != nil {
		return fmt.Errorf("list coordinators to materialize: %w", err)
	}

	var batch []command.Callable
	for _, job := range jobs {
		batch = append(batch, p.cmds.CoordMaterialize(job.ID))
	}
	if queued := p.submitBatches(batch); queued > 0 {
		p.logger.Info("materializations queued", "count", queued)
	}
	return nil
}

// Recover переотправляет работу, потерянную из очереди: pending действия
// workflow, WAITING и READY действия координаторов, незавершённые
// команды bundle.
func (p *Producers) Recover(ctx context.Context) error {
	before := p.now().Add(-p.olderThan)
	var batch []command.Callable

	actions, err := p.store.ListPendingActions(ctx, before, p.scanLimit)
	if err != nil {
		return fmt.Errorf("list pending workflow actions: %w", err)
	}
	for _, a := range actions {
		if c := p.recoverWorkflowAction(a); c != nil {
			batch = append(batch, c)
		}
	}

	if p.cmds.CoordInputCheck != nil {
		waiting, err := p.store.ListCoordActionsByStatus(ctx, domain.CoordWaiting, before, p.scanLimit)
		if err != nil {
			return fmt.Errorf("list waiting coordinator actions: %w", err)
		}
		for _, a := range waiting {
			batch = append(batch, p.cmds.CoordInputCheck(a.ID))
		}
	}

	if p.cmds.CoordReady != nil {
		ready, err := p.store.ListCoordActionsByStatus(ctx, domain.CoordReady, before, p.scanLimit)
		if err != nil {
			return fmt.Errorf("list ready coordinator actions: %w", err)
		}
		// Одна команда на job достаточно
		seen := make(map[string]bool)
		for _, a := range ready {
			if !seen[a.JobID] {
				seen[a.JobID] = true
				batch = append(batch, p.cmds.CoordReady(a.JobID))
			}
		}
	}

	if p.cmds.BundleStatusUpdate != nil {
		bundles, err := p.store.ListBundleJobs(ctx, repo.JobFilter{Limit: p.scanLimit})
		if err != nil {
			return fmt.Errorf("list bundles: %w", err)
		}
		for _, b := range bundles {
			for _, a := range b.Actions {
				if a.Pending > 0 && a.CoordJobID != "" && a.LastModified.Before(before) {
					batch = append(batch, p.cmds.BundleStatusUpdate(b.ID, a.CoordJobID))
				}
			}
		}
	}

	if queued := p.submitBatches(batch); queued > 0 {
		p.logger.Info("recovery queued commands", "count", queued)
	}
	return nil
}

func (p *Producers) recoverWorkflowAction(a domain.WorkflowAction) command.Callable {
	var ctor func(string) command.Callable
	switch a.Status {
	case domain.ActionPrep, domain.ActionStartRetry:
		ctor = p.cmds.WorkflowActionStart
	case domain.ActionDone, domain.ActionEndRetry:
		ctor = p.cmds.WorkflowActionEnd
	case domain.ActionKilled:
		ctor = p.cmds.WorkflowActionKill
	}
	if ctor == nil {
		return nil
	}
	return ctor(a.ID)
}

// submitBatches ставит работу последовательными пакетами по batchSize.
// Возвращает количество поставленных команд.
func (p *Producers) submitBatches(cs []command.Callable) int {
	queued := 0
	for start := 0; start < len(cs); start += p.batchSize {
		end := min(start+p.batchSize, len(cs))
		if err := p.submitter.SubmitSerial(cs[start:end], 0); err != nil {
			p.logger.Warn("failed to queue batch", "size", end-start, "error", err)
			continue
		}
		queued += end - start
	}
	return queued
}
