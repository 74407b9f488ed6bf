package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shaiso/Coordinator/internal/sysmode"
)

// ErrInvalidConfig — конфигурация не прошла проверку.
var ErrInvalidConfig = errors.New("invalid config")

// Config — конфигурация coordinator-server.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	RabbitMQ     RabbitMQConfig     `yaml:"rabbitmq"`
	Dispatcher   DispatcherConfig   `yaml:"dispatcher"`
	Locks        LocksConfig        `yaml:"locks"`
	Workflow     WorkflowConfig     `yaml:"workflow"`
	Coordinator  CoordinatorConfig  `yaml:"coordinator"`
	Scheduler    SchedulerConfig    `yaml:"scheduler"`
	Notification NotificationConfig `yaml:"notification"`

	// Mode — начальный режим системы: NORMAL, NOWEBSERVICE, SAFEMODE.
	Mode string `yaml:"mode"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig — Postgres. Memory включает хранилище в памяти.
type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
	Memory   bool   `yaml:"memory"`
	Migrate  bool   `yaml:"migrate"`
}

// RabbitMQConfig — брокер событий и обратных вызовов. Пустой URL
// отключает AMQP.
type RabbitMQConfig struct {
	URL      string `yaml:"url"`
	Prefetch int    `yaml:"prefetch"`
}

type DispatcherConfig struct {
	Threads          int           `yaml:"threads"`
	QueueSize        int           `yaml:"queue_size"`
	MaxConcurrency   int           `yaml:"max_concurrency"`
	ConcurrencyDelay time.Duration `yaml:"concurrency_delay"`
	SafeModeDelay    time.Duration `yaml:"safe_mode_delay"`
}

type LocksConfig struct {
	Shards  int           `yaml:"shards"`
	Timeout time.Duration `yaml:"timeout"`
}

type WorkflowConfig struct {
	CheckDelay time.Duration `yaml:"check_delay"`
}

type CoordinatorConfig struct {
	RequeueInterval time.Duration `yaml:"requeue_interval"`

	// DefaultTimeout — минуты ожидания входов.
	DefaultTimeout int           `yaml:"default_timeout"`
	MaterializeMax int           `yaml:"materialize_max"`
	Lookahead      time.Duration `yaml:"lookahead"`

	// WatchLocal включает push-проверки локальных входов через fsnotify.
	WatchLocal bool `yaml:"watch_local"`
}

type SchedulerConfig struct {
	CheckInterval       time.Duration `yaml:"check_interval"`
	MaterializeInterval time.Duration `yaml:"materialize_interval"`
	RecoveryInterval    time.Duration `yaml:"recovery_interval"`
	RecoveryOlderThan   time.Duration `yaml:"recovery_older_than"`
	BatchSize           int           `yaml:"batch_size"`
}

type NotificationConfig struct {
	MaxRetries int           `yaml:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// Default возвращает конфигурацию по умолчанию.
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Port: 8080, ShutdownTimeout: 10 * time.Second},
		Database: DatabaseConfig{MaxConns: 10, Migrate: true},
		RabbitMQ: RabbitMQConfig{Prefetch: 10},
		Dispatcher: DispatcherConfig{
			Threads:          10,
			QueueSize:        10000,
			MaxConcurrency:   3,
			ConcurrencyDelay: 500 * time.Millisecond,
			SafeModeDelay:    60 * time.Second,
		},
		Locks:    LocksConfig{Shards: 64, Timeout: 5 * time.Second},
		Workflow: WorkflowConfig{CheckDelay: 600 * time.Second},
		Coordinator: CoordinatorConfig{
			RequeueInterval: 60 * time.Second,
			DefaultTimeout:  120,
			MaterializeMax:  10,
			Lookahead:       5 * time.Minute,
			WatchLocal:      true,
		},
		Scheduler: SchedulerConfig{
			CheckInterval:       60 * time.Second,
			MaterializeInterval: 60 * time.Second,
			RecoveryInterval:    60 * time.Second,
			RecoveryOlderThan:   5 * time.Minute,
			BatchSize:           10,
		},
		Notification: NotificationConfig{MaxRetries: 3, RetryDelay: 60 * time.Second},
		Mode:         sysmode.Normal.String(),
	}
}

// Load читает конфигурацию из path поверх значений по умолчанию
// и применяет переменные окружения. Пустой path — только умолчания
// и окружение.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv переопределяет поля из DB_URL, RABBITMQ_URL, HTTP_PORT
// и COORDINATOR_MODE.
func (c *Config) applyEnv() error {
	if v := os.Getenv("DB_URL"); v != "" {
		c.Database.URL = v
	}
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		c.RabbitMQ.URL = v
	}
	if v := os.Getenv("HTTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: HTTP_PORT %q", ErrInvalidConfig, v)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("COORDINATOR_MODE"); v != "" {
		c.Mode = v
	}
	return nil
}

// Validate проверяет конфигурацию.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server port %d", ErrInvalidConfig, c.Server.Port)
	}
	if c.Dispatcher.Threads <= 0 {
		return fmt.Errorf("%w: dispatcher threads must be positive", ErrInvalidConfig)
	}
	if c.Dispatcher.QueueSize <= 0 {
		return fmt.Errorf("%w: dispatcher queue_size must be positive", ErrInvalidConfig)
	}
	if c.Locks.Shards <= 0 {
		return fmt.Errorf("%w: locks shards must be positive", ErrInvalidConfig)
	}
	if c.Scheduler.CheckInterval <= 0 || c.Scheduler.MaterializeInterval <= 0 || c.Scheduler.RecoveryInterval <= 0 {
		return fmt.Errorf("%w: scheduler intervals must be positive", ErrInvalidConfig)
	}
	if _, err := sysmode.Parse(c.Mode); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// InitialMode возвращает режим из Mode. Вызывать после Validate.
func (c *Config) InitialMode() sysmode.Mode {
	m, _ := sysmode.Parse(c.Mode)
	return m
}
