package domain

import "time"

// BundleApp — набор координаторов, управляемых вместе.
type BundleApp struct {
	Name         string              `json:"name" yaml:"name"`
	Coordinators []BundleCoordinator `json:"coordinators" yaml:"coordinators"`
}

// BundleCoordinator — координатор в составе bundle.
type BundleCoordinator struct {
	Name string            `json:"name" yaml:"name"`
	App  CoordinatorApp    `json:"app" yaml:"app"`
	Conf map[string]string `json:"conf,omitempty" yaml:"conf,omitempty"`
}

// BundleJob — экземпляр bundle.
type BundleJob struct {
	ID     string    `json:"id"`
	Name   string    `json:"name"`
	App    BundleApp `json:"app"`
	Status JobStatus `json:"status"`

	Conf map[string]string `json:"conf,omitempty"`

	// Actions — координаторы bundle, по одному на BundleCoordinator.
	Actions []BundleAction `json:"actions,omitempty"`

	ErrorMessage string `json:"error_message,omitempty"`

	CreatedAt    time.Time  `json:"created_at"`
	LastModified time.Time  `json:"last_modified"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
}

// MarkEnded переводит bundle в финальный статус.
func (b *BundleJob) MarkEnded(status JobStatus, now time.Time) {
	b.Status = status
	b.EndedAt = &now
	b.LastModified = now
}

// Action возвращает действие bundle для координатора coordJobID.
func (b *BundleJob) Action(coordJobID string) *BundleAction {
	for i := range b.Actions {
		if b.Actions[i].CoordJobID == coordJobID {
			return &b.Actions[i]
		}
	}
	return nil
}

// BundleAction — координатор в составе запущенного bundle.
type BundleAction struct {
	// CoordName — имя из BundleCoordinator.
	CoordName  string    `json:"coord_name"`
	CoordJobID string    `json:"coord_job_id,omitempty"`
	Status     JobStatus `json:"status"`

	// Pending — количество команд bundle, ещё не применённых координатором.
	Pending int `json:"pending"`

	LastModified time.Time `json:"last_modified"`
}

// DecrementPending уменьшает счётчик, не опуская ниже нуля.
func (a *BundleAction) DecrementPending() {
	if a.Pending > 0 {
		a.Pending--
	}
}
