package command

import "fmt"

// Kind — тип команды.
//
// Используется как ключ лимита параллелизма в диспетчере
// и как метка метрик. Отображаемое имя — String().
type Kind int

const (
	KindUnknown Kind = iota

	// Workflow
	KindWorkflowSubmit
	KindWorkflowStart
	KindSignal
	KindActionStart
	KindActionCheck
	KindActionEnd
	KindActionKill
	KindWorkflowSuspend
	KindWorkflowResume
	KindWorkflowKill

	// Coordinator
	KindCoordSubmit
	KindCoordStart
	KindCoordMaterialize
	KindCoordActionInput
	KindCoordActionReady
	KindCoordActionStart
	KindCoordActionUpdate
	KindCoordActionTimeout
	KindCoordSuspend
	KindCoordResume
	KindCoordKill
	KindCoordStatusTransit

	// Bundle
	KindBundleSubmit
	KindBundleStart
	KindBundleSuspend
	KindBundleResume
	KindBundleKill
	KindBundleStatusUpdate

	// Прочее
	KindNotification

	kindCount
)

var kindNames = [...]string{
	KindUnknown:            "unknown",
	KindWorkflowSubmit:     "submit",
	KindWorkflowStart:      "start",
	KindSignal:             "signal",
	KindActionStart:        "action.start",
	KindActionCheck:        "action.check",
	KindActionEnd:          "action.end",
	KindActionKill:         "action.kill",
	KindWorkflowSuspend:    "suspend",
	KindWorkflowResume:     "resume",
	KindWorkflowKill:       "kill",
	KindCoordSubmit:        "coord_submit",
	KindCoordStart:         "coord_start",
	KindCoordMaterialize:   "coord_mater",
	KindCoordActionInput:   "coord_action_input",
	KindCoordActionReady:   "coord_action_ready",
	KindCoordActionStart:   "coord_action_start",
	KindCoordActionUpdate:  "coord_action_update",
	KindCoordActionTimeout: "coord_action_timeout",
	KindCoordSuspend:       "coord_suspend",
	KindCoordResume:        "coord_resume",
	KindCoordKill:          "coord_kill",
	KindCoordStatusTransit: "coord_status_transit",
	KindBundleSubmit:       "bundle_submit",
	KindBundleStart:        "bundle_start",
	KindBundleSuspend:      "bundle_suspend",
	KindBundleResume:       "bundle_resume",
	KindBundleKill:         "bundle_kill",
	KindBundleStatusUpdate: "bundle_status_update",
	KindNotification:       "notification",
}

// String возвращает отображаемое имя типа.
func (k Kind) String() string {
	if k >= 0 && k < kindCount {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Group — группа логирования команды.
type Group string

const (
	GroupWorkflow     Group = "workflow"
	GroupCoordinator  Group = "coordinator"
	GroupBundle       Group = "bundle"
	GroupNotification Group = "notification"
)
