package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// JobType — тип job, закодированный суффиксом ID.
type JobType string

const (
	JobTypeWorkflow    JobType = "W"
	JobTypeCoordinator JobType = "C"
	JobTypeBundle      JobType = "B"
)

// actionSeparator разделяет ID job и имя/номер действия.
const actionSeparator = "@"

// NewJobID генерирует ID вида "<uuid>-W".
func NewJobID(t JobType) string {
	return uuid.NewString() + "-" + string(t)
}

// JobTypeOf определяет тип job по ID (job или действия).
func JobTypeOf(id string) (JobType, bool) {
	jobID, _, _ := strings.Cut(id, actionSeparator)
	switch {
	case strings.HasSuffix(jobID, "-W"):
		return JobTypeWorkflow, true
	case strings.HasSuffix(jobID, "-C"):
		return JobTypeCoordinator, true
	case strings.HasSuffix(jobID, "-B"):
		return JobTypeBundle, true
	default:
		return "", false
	}
}

// WorkflowActionID возвращает ID действия workflow: "<jobID>@<name>".
func WorkflowActionID(jobID, name string) string {
	return jobID + actionSeparator + name
}

// CoordActionID возвращает ID действия координатора: "<jobID>@<number>".
func CoordActionID(jobID string, number int) string {
	return fmt.Sprintf("%s%s%d", jobID, actionSeparator, number)
}

// JobIDOf возвращает ID job из ID действия.
func JobIDOf(actionID string) string {
	jobID, _, _ := strings.Cut(actionID, actionSeparator)
	return jobID
}
