package domain

import "time"

// WorkflowApp — определение workflow-приложения.
//
// Действия образуют DAG через DependsOn. Действие запускается,
// когда все его зависимости завершились со статусом OK.
type WorkflowApp struct {
	// Name — имя приложения.
	Name string `json:"name" yaml:"name"`

	// NotificationURL — URL для уведомлений о переходах job.
	// Поддерживает подстановки $jobId и $status.
	NotificationURL string `json:"notification_url,omitempty" yaml:"notification_url,omitempty"`

	// ActionNotificationURL — URL для уведомлений о переходах действий.
	// Поддерживает подстановки $jobId, $actionId, $nodeName и $status.
	ActionNotificationURL string `json:"action_notification_url,omitempty" yaml:"action_notification_url,omitempty"`

	// Actions — действия workflow.
	Actions []ActionDef `json:"actions" yaml:"actions"`
}

// ActionDef — определение действия.
type ActionDef struct {
	// Name — уникальное имя действия в рамках приложения.
	Name string `json:"name" yaml:"name"`

	// Type — тип executor'а: "http", "sleep", "noop".
	Type string `json:"type" yaml:"type"`

	// DependsOn — имена действий, которые должны завершиться OK.
	DependsOn []string `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`

	// Config — конфигурация executor'а. Строковые значения — Go templates
	// с доступом к .Conf (конфигурация job) и .JobID.
	Config map[string]any `json:"config,omitempty" yaml:"config,omitempty"`

	// Retry переопределяет политику повторов executor'а.
	Retry *RetryPolicy `json:"retry,omitempty" yaml:"retry,omitempty"`
}

// RetryPolicy — политика повторов при transient ошибках.
type RetryPolicy struct {
	// MaxRetries — максимальное количество повторов.
	MaxRetries int `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`

	// IntervalSec — интервал между повторами в секундах.
	IntervalSec int `json:"interval_sec,omitempty" yaml:"interval_sec,omitempty"`
}

// WorkflowJob — экземпляр выполнения workflow-приложения.
type WorkflowJob struct {
	ID      string      `json:"id"`
	AppName string      `json:"app_name"`
	App     WorkflowApp `json:"app"`
	Status  JobStatus   `json:"status"`

	// Conf — параметры запуска.
	Conf map[string]string `json:"conf,omitempty"`

	// ParentID — ID действия координатора, создавшего job.
	ParentID string `json:"parent_id,omitempty"`

	// ErrorMessage — причина FAILED/KILLED.
	ErrorMessage string `json:"error_message,omitempty"`

	CreatedAt    time.Time  `json:"created_at"`
	LastModified time.Time  `json:"last_modified"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
}

// MarkRunning переводит job в RUNNING.
func (j *WorkflowJob) MarkRunning(now time.Time) {
	j.Status = JobRunning
	j.StartedAt = &now
	j.LastModified = now
}

// MarkEnded переводит job в финальный статус.
func (j *WorkflowJob) MarkEnded(status JobStatus, now time.Time) {
	j.Status = status
	j.EndedAt = &now
	j.LastModified = now
}

// WorkflowAction — экземпляр действия workflow job.
type WorkflowAction struct {
	ID     string       `json:"id"`
	JobID  string       `json:"job_id"`
	Name   string       `json:"name"`
	Type   string       `json:"type"`
	Status ActionStatus `json:"status"`

	// Pending — по действию запланирована команда.
	Pending bool `json:"pending"`

	// PendingAge — момент, с которого действие считается ожидающим.
	// Для retry сдвигается на интервал повтора.
	PendingAge time.Time `json:"pending_age"`

	// Retries — выполненные повторы.
	Retries int `json:"retries"`

	// UserRetryMax и UserRetryInterval — политика из ActionDef; 0 — политика executor'а.
	UserRetryMax      int           `json:"user_retry_max,omitempty"`
	UserRetryInterval time.Duration `json:"user_retry_interval,omitempty"`

	// ExternalID и ExternalStatus — состояние во внешней системе.
	ExternalID     string `json:"external_id,omitempty"`
	ExternalStatus string `json:"external_status,omitempty"`

	// Data — данные executor'а между вызовами Start/Check/End.
	Data map[string]string `json:"data,omitempty"`

	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`

	CreatedAt     time.Time  `json:"created_at"`
	LastCheckTime *time.Time `json:"last_check_time,omitempty"`
	StartTime     *time.Time `json:"start_time,omitempty"`
	EndTime       *time.Time `json:"end_time,omitempty"`
}

// SetPending отмечает, что по действию запланирована команда.
func (a *WorkflowAction) SetPending(now time.Time) {
	a.Pending = true
	a.PendingAge = now
}

// ResetPending снимает отметку.
func (a *WorkflowAction) ResetPending() {
	a.Pending = false
}

// SetError сохраняет информацию об ошибке.
func (a *WorkflowAction) SetError(code, message string) {
	a.ErrorCode = code
	a.ErrorMessage = message
}

// MarkEnded переводит действие в финальный статус.
func (a *WorkflowAction) MarkEnded(status ActionStatus, now time.Time) {
	a.Status = status
	a.EndTime = &now
	a.Pending = false
}

// IsActive возвращает true, если действие запущено, но не завершено.
func (a *WorkflowAction) IsActive() bool {
	return a.Status == ActionRunning || a.Status == ActionDone ||
		a.Status == ActionEndRetry || a.Status == ActionEndManual
}
