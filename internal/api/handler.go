package api

import (
	"context"
	"log/slog"

	"github.com/shaiso/Coordinator/internal/domain"
	"github.com/shaiso/Coordinator/internal/repo"
	"github.com/shaiso/Coordinator/internal/service"
	"github.com/shaiso/Coordinator/internal/sysmode"
)

// Engine — операции движка, доступные через API (service.Service).
type Engine interface {
	Submit(ctx context.Context, def service.Definition, start bool) (string, error)
	StartJob(ctx context.Context, jobID string) error
	SuspendJob(ctx context.Context, jobID string) error
	ResumeJob(ctx context.Context, jobID string) error
	KillJob(ctx context.Context, jobID string) error
	Info(ctx context.Context, jobID string) (*service.JobInfo, error)
	ListJobs(ctx context.Context, t domain.JobType, filter repo.JobFilter) (*service.JobList, error)

	Mode() *sysmode.Switch
	SetMode(m sysmode.Mode) sysmode.Mode
	Queue() service.QueueInfo
	Executors() []string
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	engine Engine
	logger *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Engine Engine
	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		engine: cfg.Engine,
		logger: logger,
	}
}
