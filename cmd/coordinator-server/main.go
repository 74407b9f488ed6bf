// Coordinator Server — движок команд workflow, coordinator и bundle.
//
// Server:
//   - Поднимает диспетчер команд и фоновые сервисы проверки
//   - Принимает обратные вызовы действий из RabbitMQ
//   - Публикует события переходов
//   - Отдаёт HTTP API, /healthz и /metrics
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/shaiso/Coordinator/internal/api"
	"github.com/shaiso/Coordinator/internal/config"
	"github.com/shaiso/Coordinator/internal/mq"
	"github.com/shaiso/Coordinator/internal/notify"
	"github.com/shaiso/Coordinator/internal/repo"
	"github.com/shaiso/Coordinator/internal/service"
	"github.com/shaiso/Coordinator/internal/telemetry"
)

var startTime = time.Now()

func main() {
	// .env необязателен
	_ = godotenv.Load()

	configPath := flag.String("config", os.Getenv("COORDINATOR_CONFIG"), "path to YAML config")
	flag.Parse()

	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting coordinator-server")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	// RabbitMQ
	var publisher notify.EventPublisher
	var mqConn *mq.Connection
	if cfg.RabbitMQ.URL != "" {
		mqConn, err = mq.NewConnection(cfg.RabbitMQ.URL, logger)
		if err != nil {
			logger.Warn("RabbitMQ not available, callbacks and events disabled", "error", err)
		} else {
			defer mqConn.Close()
			logger.Info("RabbitMQ connected")

			if err := mq.SetupTopology(ctx, mqConn); err != nil {
				logger.Warn("failed to setup topology", "error", err)
			}
			publisher = mq.NewPublisher(mqConn, logger)
		}
	}

	svc, err := service.New(service.Options{
		Config:     cfg,
		Store:      store,
		Publisher:  publisher,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		Registerer: prometheus.DefaultRegisterer,
		Logger:     logger,
	})
	if err != nil {
		logger.Error("failed to create service", "error", err)
		os.Exit(1)
	}

	handler := api.NewHandler(api.Config{
		Engine: svc,
		Logger: logger,
	})

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s %s", svc.Mode().Get(), time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.Handler())

	// Регистрируем API маршруты
	handler.RegisterRoutes(mux)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return svc.Run(gctx)
	})

	if mqConn != nil {
		consumer := mq.NewConsumer(mqConn, logger, mq.ConsumerConfig{
			Queue:    mq.QueueActionCallbacks,
			Handler:  svc.HandleCallback,
			Prefetch: cfg.RabbitMQ.Prefetch,
		})
		g.Go(func() error {
			if err := consumer.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("stopped")
}

// openStore выбирает хранилище по конфигурации.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repo.Store, func(), error) {
	if cfg.Database.Memory {
		logger.Warn("using in-memory store, state is lost on restart")
		return repo.NewMemoryStore(), func() {}, nil
	}

	pool, err := repo.NewPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("database connected")

	if cfg.Database.Migrate {
		if err := repo.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
	}
	return repo.NewPGStore(pool), pool.Close, nil
}
