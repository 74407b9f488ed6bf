package domain

import "time"

// CoordinatorApp — определение координатора.
//
// Координатор материализует действия по расписанию Frequency
// в интервале [Start, End). Каждое действие ждёт своих входных данных
// и затем запускает Workflow.
type CoordinatorApp struct {
	Name string `json:"name" yaml:"name"`

	// Frequency — cron-выражение ("0 * * * *", "@every 30m")
	// или количество минут ("60").
	Frequency string `json:"frequency" yaml:"frequency"`

	// Timezone — зона, в которой вычисляется cron-расписание (UTC по умолчанию).
	Timezone string `json:"timezone,omitempty" yaml:"timezone,omitempty"`

	Start time.Time `json:"start" yaml:"start"`
	End   time.Time `json:"end" yaml:"end"`

	// Timeout — сколько минут действие ждёт входных данных.
	// 0 — значение по умолчанию, отрицательное — без таймаута.
	Timeout int `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// Concurrency — сколько действий могут выполняться одновременно (default: 1).
	Concurrency int `json:"concurrency,omitempty" yaml:"concurrency,omitempty"`

	// Inputs — входные зависимости действий.
	Inputs []DataIn `json:"inputs,omitempty" yaml:"inputs,omitempty"`

	// Conf — параметры запуска workflow. Значения — Go templates
	// с доступом к времени действия и разрешённым входам.
	Conf map[string]string `json:"conf,omitempty" yaml:"conf,omitempty"`

	// Workflow — запускаемое приложение.
	Workflow WorkflowApp `json:"workflow" yaml:"workflow"`
}

// DataIn — входная зависимость.
//
// URI — шаблон, разрешаемый относительно nominal time действия,
// либо выражение экземпляра "latest:<n>:<freqMinutes>:<template>" /
// "future:<n>:<freqMinutes>:<template>".
type DataIn struct {
	Name string `json:"name" yaml:"name"`
	URI  string `json:"uri" yaml:"uri"`
}

// CoordinatorJob — экземпляр координатора.
type CoordinatorJob struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	App    CoordinatorApp `json:"app"`
	Status JobStatus      `json:"status"`

	// Conf — параметры job, доступные в шаблонах.
	Conf map[string]string `json:"conf,omitempty"`

	// BundleID — владеющий bundle, если есть.
	BundleID string `json:"bundle_id,omitempty"`

	// LastActionNumber — номер последнего материализованного действия.
	LastActionNumber int `json:"last_action_number"`

	// NextMaterializeAt — nominal time следующего действия.
	NextMaterializeAt time.Time `json:"next_materialize_at"`

	// DoneMaterialization — все действия до End материализованы.
	DoneMaterialization bool `json:"done_materialization"`

	ErrorMessage string `json:"error_message,omitempty"`

	CreatedAt    time.Time  `json:"created_at"`
	LastModified time.Time  `json:"last_modified"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
}

// MarkEnded переводит job в финальный статус.
func (j *CoordinatorJob) MarkEnded(status JobStatus, now time.Time) {
	j.Status = status
	j.EndedAt = &now
	j.LastModified = now
}

// CoordinatorAction — действие координатора для одного nominal time.
type CoordinatorAction struct {
	ID     string            `json:"id"`
	JobID  string            `json:"job_id"`
	Number int               `json:"number"`
	Status CoordActionStatus `json:"status"`

	NominalTime time.Time `json:"nominal_time"`

	// Inputs — разрешённые URI входов по имени.
	Inputs map[string]string `json:"inputs,omitempty"`

	// MissingDependencies — дескриптор отсутствующих зависимостей:
	// разрешённые URI через "#", затем "!!" и неразрешённые экземпляры.
	MissingDependencies string `json:"missing_dependencies,omitempty"`

	// Timeout — минуты ожидания входов; отрицательное — без таймаута.
	Timeout int `json:"timeout"`

	// RunConf — отрендеренные параметры запуска workflow.
	RunConf map[string]string `json:"run_conf,omitempty"`

	// ExternalID — ID запущенного workflow job.
	ExternalID string `json:"external_id,omitempty"`

	// Pending — количество незавершённых команд родителя.
	Pending int `json:"pending"`

	ErrorMessage string `json:"error_message,omitempty"`

	CreatedAt    time.Time `json:"created_at"`
	LastModified time.Time `json:"last_modified"`
}

// DecrementPending уменьшает счётчик, не опуская ниже нуля.
func (a *CoordinatorAction) DecrementPending() {
	if a.Pending > 0 {
		a.Pending--
	}
}
