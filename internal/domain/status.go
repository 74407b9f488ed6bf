package domain

// JobStatus — статус job (workflow, coordinator, bundle).
//
// Жизненный цикл:
//
//	PREP → RUNNING → SUCCEEDED
//	     ↕         ↘ FAILED | KILLED | DONEWITHERROR
//	PREPSUSPENDED   ↕
//	              SUSPENDED
//
// Workflow job использует подмножество: PREP, RUNNING, SUSPENDED,
// SUCCEEDED, FAILED, KILLED.
type JobStatus string

const (
	JobPrep          JobStatus = "PREP"
	JobPrepSuspended JobStatus = "PREPSUSPENDED"
	JobRunning       JobStatus = "RUNNING"
	JobSuspended     JobStatus = "SUSPENDED"
	JobSucceeded     JobStatus = "SUCCEEDED"
	JobFailed        JobStatus = "FAILED"
	JobKilled        JobStatus = "KILLED"
	JobDoneWithError JobStatus = "DONEWITHERROR"
)

// IsTerminal возвращает true, если статус финальный.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobSucceeded, JobFailed, JobKilled, JobDoneWithError:
		return true
	default:
		return false
	}
}

// IsSuspended возвращает true для SUSPENDED и PREPSUSPENDED.
func (s JobStatus) IsSuspended() bool {
	return s == JobSuspended || s == JobPrepSuspended
}

// ActionStatus — статус действия workflow.
//
// Жизненный цикл:
//
//	PREP → RUNNING → DONE → OK | ERROR
//	  ↘ START_RETRY / START_MANUAL    ↘ END_RETRY / END_MANUAL
//	(любой нефинальный) → KILLED | FAILED
type ActionStatus string

const (
	ActionPrep        ActionStatus = "PREP"
	ActionRunning     ActionStatus = "RUNNING"
	ActionDone        ActionStatus = "DONE"
	ActionOK          ActionStatus = "OK"
	ActionError       ActionStatus = "ERROR"
	ActionStartRetry  ActionStatus = "START_RETRY"
	ActionStartManual ActionStatus = "START_MANUAL"
	ActionEndRetry    ActionStatus = "END_RETRY"
	ActionEndManual   ActionStatus = "END_MANUAL"
	ActionKilled      ActionStatus = "KILLED"
	ActionFailed      ActionStatus = "FAILED"
)

// IsTerminal возвращает true, если статус финальный.
func (s ActionStatus) IsTerminal() bool {
	switch s {
	case ActionOK, ActionError, ActionKilled, ActionFailed:
		return true
	default:
		return false
	}
}

// IsManual возвращает true для *_MANUAL.
func (s ActionStatus) IsManual() bool {
	return s == ActionStartManual || s == ActionEndManual
}

// CoordActionStatus — статус действия координатора.
//
// Жизненный цикл:
//
//	WAITING → READY → SUBMITTED → RUNNING → SUCCEEDED | FAILED | KILLED
//	   ↘ TIMEDOUT
//	SUSPENDED — пока приостановлен job.
type CoordActionStatus string

const (
	CoordWaiting   CoordActionStatus = "WAITING"
	CoordReady     CoordActionStatus = "READY"
	CoordSubmitted CoordActionStatus = "SUBMITTED"
	CoordRunning   CoordActionStatus = "RUNNING"
	CoordSuspended CoordActionStatus = "SUSPENDED"
	CoordTimedOut  CoordActionStatus = "TIMEDOUT"
	CoordSucceeded CoordActionStatus = "SUCCEEDED"
	CoordKilled    CoordActionStatus = "KILLED"
	CoordFailed    CoordActionStatus = "FAILED"
)

// IsTerminal возвращает true, если статус финальный.
func (s CoordActionStatus) IsTerminal() bool {
	switch s {
	case CoordTimedOut, CoordSucceeded, CoordKilled, CoordFailed:
		return true
	default:
		return false
	}
}
