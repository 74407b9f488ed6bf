package service

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/shaiso/Coordinator/internal/bundle"
	"github.com/shaiso/Coordinator/internal/command"
	"github.com/shaiso/Coordinator/internal/config"
	"github.com/shaiso/Coordinator/internal/coord"
	"github.com/shaiso/Coordinator/internal/deps"
	"github.com/shaiso/Coordinator/internal/dispatcher"
	"github.com/shaiso/Coordinator/internal/lock"
	"github.com/shaiso/Coordinator/internal/notify"
	"github.com/shaiso/Coordinator/internal/repo"
	"github.com/shaiso/Coordinator/internal/scheduler"
	"github.com/shaiso/Coordinator/internal/sysmode"
	"github.com/shaiso/Coordinator/internal/wf"
)

// Options — зависимости Service, создаваемые снаружи.
type Options struct {
	Config *config.Config
	Store  repo.Store

	// Publisher — события переходов в AMQP; nil — только HTTP уведомления.
	Publisher notify.EventPublisher

	// HTTPClient — для http действий, уведомлений и проверки входов.
	HTTPClient *http.Client

	// Registerer для метрик; nil — отдельный registry.
	Registerer prometheus.Registerer

	Logger *slog.Logger
}

// Service — собранный движок.
type Service struct {
	store  repo.Store
	mode   *sysmode.Switch
	logger *slog.Logger

	dispatcher *dispatcher.Dispatcher
	env        *command.Env

	workflow *wf.Services
	coord    *coord.Services
	bundle   *bundle.Services

	// watcher — nil, если push-проверки выключены.
	watcher   *deps.Watcher
	scheduler *scheduler.Scheduler
	producers *scheduler.Producers

	cfg *config.Config
}

// New собирает Service. Компоненты запускаются в Start.
func New(opts Options) (*Service, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	s := &Service{
		store:  opts.Store,
		mode:   sysmode.NewSwitch(cfg.InitialMode()),
		logger: logger,
		cfg:    cfg,
	}

	s.dispatcher = dispatcher.New(dispatcher.Config{
		Threads:          cfg.Dispatcher.Threads,
		QueueSize:        cfg.Dispatcher.QueueSize,
		MaxConcurrency:   cfg.Dispatcher.MaxConcurrency,
		ConcurrencyDelay: cfg.Dispatcher.ConcurrencyDelay,
		SafeModeDelay:    cfg.Dispatcher.SafeModeDelay,
		Mode:             s.mode,
		Registerer:       reg,
		Logger:           logger,
	})

	s.env = &command.Env{
		Locks:       lock.NewTable(cfg.Locks.Shards),
		Submitter:   s.dispatcher,
		Metrics:     command.NewMetrics(reg),
		Logger:      logger,
		LockTimeout: cfg.Locks.Timeout,
	}

	notifier := notify.New(s.env, notify.Config{
		Client:     opts.HTTPClient,
		Publisher:  opts.Publisher,
		MaxRetries: cfg.Notification.MaxRetries,
		RetryDelay: cfg.Notification.RetryDelay,
	})

	s.workflow = &wf.Services{
		Env:        s.env,
		Store:      opts.Store,
		Executors:  wf.NewRegistry(opts.HTTPClient),
		Notifier:   notifier,
		CheckDelay: cfg.Workflow.CheckDelay,
	}

	checker := deps.NewChecker(opts.HTTPClient)
	s.coord = &coord.Services{
		Env:             s.env,
		Store:           opts.Store,
		Workflow:        s.workflow,
		Resolver:        deps.NewResolver(checker, 0),
		Checker:         checker,
		Notifier:        notifier,
		RequeueInterval: cfg.Coordinator.RequeueInterval,
		DefaultTimeout:  cfg.Coordinator.DefaultTimeout,
		MaterializeMax:  cfg.Coordinator.MaterializeMax,
		Lookahead:       cfg.Coordinator.Lookahead,
	}
	s.bundle = &bundle.Services{
		Env:      s.env,
		Store:    opts.Store,
		Coord:    s.coord,
		Notifier: notifier,
	}

	s.workflow.ParentUpdate = func(parentID, _ string) command.Callable {
		return command.Bind(s.env, coord.NewActionUpdateCommand(s.coord, parentID))
	}
	s.coord.OnBundleUpdate = func(bundleID, coordJobID string) command.Callable {
		return command.Bind(s.env, bundle.NewStatusUpdateCommand(s.bundle, bundleID, coordJobID))
	}

	if cfg.Coordinator.WatchLocal {
		w, err := deps.NewWatcher(s.inputAvailable, logger)
		if err != nil {
			return nil, err
		}
		s.watcher = w
		s.coord.Watcher = w
	}

	s.scheduler = scheduler.New(scheduler.Config{Mode: s.mode, Logger: logger})
	s.producers = scheduler.NewProducers(scheduler.ProducerConfig{
		Store:      opts.Store,
		Submitter:  s.dispatcher,
		Commands:   s.producerCommands(),
		CheckDelay: cfg.Workflow.CheckDelay,
		BatchSize:  cfg.Scheduler.BatchSize,
		Lookahead:  cfg.Coordinator.Lookahead,
		OlderThan:  cfg.Scheduler.RecoveryOlderThan,
		Logger:     logger,
	})
	err := s.producers.Register(s.scheduler,
		cfg.Scheduler.CheckInterval,
		cfg.Scheduler.MaterializeInterval,
		cfg.Scheduler.RecoveryInterval,
	)
	if err != nil {
		return nil, err
	}

	return s, nil
}

// producerCommands связывает конструкторы команд с окружением.
func (s *Service) producerCommands() scheduler.Commands {
	return scheduler.Commands{
		WorkflowActionStart: func(id string) command.Callable {
			return command.Bind(s.env, wf.NewActionStartCommand(s.workflow, id))
		},
		WorkflowActionCheck: func(id string) command.Callable {
			return command.Bind(s.env, wf.NewActionCheckCommand(s.workflow, id))
		},
		WorkflowActionEnd: func(id string) command.Callable {
			return command.Bind(s.env, wf.NewActionEndCommand(s.workflow, id))
		},
		WorkflowActionKill: func(id string) command.Callable {
			return command.Bind(s.env, wf.NewActionKillCommand(s.workflow, id))
		},
		CoordMaterialize: func(id string) command.Callable {
			return command.Bind(s.env, coord.NewMaterializeCommand(s.coord, id))
		},
		CoordInputCheck: func(id string) command.Callable {
			return command.Bind(s.env, coord.NewInputCheckCommand(s.coord, id))
		},
		CoordReady: func(id string) command.Callable {
			return command.Bind(s.env, coord.NewReadyCommand(s.coord, id))
		},
		CoordActionUpdate: func(id string) command.Callable {
			return command.Bind(s.env, coord.NewActionUpdateCommand(s.coord, id))
		},
		BundleStatusUpdate: func(bundleID, coordJobID string) command.Callable {
			return command.Bind(s.env, bundle.NewStatusUpdateCommand(s.bundle, bundleID, coordJobID))
		},
	}
}

// inputAvailable — появился локальный вход действия координатора.
func (s *Service) inputAvailable(actionID string) {
	c := command.Bind(s.env, coord.NewInputCheckCommand(s.coord, actionID))
	if err := s.dispatcher.Submit(c, 0); err != nil {
		s.logger.Warn("failed to queue input check", "action_id", actionID, "error", err)
	}
}

// Start запускает диспетчер, наблюдение за входами и планировщик.
func (s *Service) Start(ctx context.Context) error {
	if err := s.dispatcher.Start(ctx); err != nil {
		return err
	}
	if s.watcher != nil {
		if err := s.watcher.Start(ctx); err != nil {
			s.dispatcher.Stop()
			return err
		}
	}
	if err := s.scheduler.Start(ctx); err != nil {
		if s.watcher != nil {
			s.watcher.Stop()
		}
		s.dispatcher.Stop()
		return err
	}
	s.logger.Info("service started", "mode", s.mode.Get().String())
	return nil
}

// Stop останавливает компоненты в обратном порядке.
func (s *Service) Stop() {
	s.scheduler.Stop()
	if s.watcher != nil {
		s.watcher.Stop()
	}
	s.dispatcher.Stop()
	s.logger.Info("service stopped")
}

// Run запускает Service и останавливает его после отмены ctx.
func (s *Service) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	s.Stop()
	return nil
}

// Mode возвращает переключатель режима.
func (s *Service) Mode() *sysmode.Switch { return s.mode }

// SetMode меняет режим и возвращает предыдущий.
func (s *Service) SetMode(m sysmode.Mode) sysmode.Mode {
	prev := s.mode.Set(m)
	s.logger.Info("system mode changed", "from", prev.String(), "to", m.String())
	return prev
}

// QueueInfo — состояние очереди диспетчера.
type QueueInfo struct {
	Size   int            `json:"size"`
	Items  []string       `json:"items"`
	Active map[string]int `json:"active"`
}

// Queue возвращает дамп очереди.
func (s *Service) Queue() QueueInfo {
	return QueueInfo{
		Size:   s.dispatcher.QueueSize(),
		Items:  s.dispatcher.Dump(),
		Active: s.dispatcher.Active(),
	}
}

// Executors возвращает зарегистрированные типы действий workflow.
func (s *Service) Executors() []string {
	return s.workflow.Executors.Types()
}
