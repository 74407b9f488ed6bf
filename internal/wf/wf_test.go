package wf

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shaiso/Coordinator/internal/command"
	"github.com/shaiso/Coordinator/internal/domain"
	"github.com/shaiso/Coordinator/internal/engine"
)

func chainApp(actions ...domain.ActionDef) domain.WorkflowApp {
	return domain.WorkflowApp{Name: "test-app", Actions: actions}
}

func TestWorkflow_RunsDAGToSuccess(t *testing.T) {
	h := newHarness(t)
	app := chainApp(
		domain.ActionDef{Name: "first", Type: "noop"},
		domain.ActionDef{
			Name:      "second",
			Type:      "transform",
			DependsOn: []string{"first"},
			Config:    map[string]any{"target": "{{ .Conf.env }}-{{ (index .Actions \"first\").Status }}"},
		},
	)

	jobID := h.submitAndStart(app, map[string]string{"env": "prod"})

	job := h.job(jobID)
	if job.Status != domain.JobSucceeded {
		t.Fatalf("expected SUCCEEDED, got %s", job.Status)
	}
	if job.EndedAt == nil {
		t.Error("ended_at must be set")
	}

	second := h.action(jobID, "second")
	if second.Status != domain.ActionOK || second.Pending {
		t.Errorf("unexpected second action state %s pending=%t", second.Status, second.Pending)
	}
	if second.Data["target"] != "prod-OK" {
		t.Errorf("expected rendered data 'prod-OK', got %q", second.Data["target"])
	}
	if h.events.count("workflow", "SUCCEEDED") != 1 {
		t.Errorf("expected one SUCCEEDED event, got %d", h.events.count("workflow", "SUCCEEDED"))
	}
}

func TestSubmit_InvalidAppRejected(t *testing.T) {
	h := newHarness(t)
	app := chainApp(domain.ActionDef{Name: "a", Type: "unknown"})

	_, err := command.Call(context.Background(), h.svc.Env, NewSubmitCommand(h.svc, app, nil, ""))
	if !errors.Is(err, engine.ErrUnknownActionType) {
		t.Fatalf("expected ErrUnknownActionType, got %v", err)
	}
}

func TestStart_RequiresPrep(t *testing.T) {
	h := newHarness(t)
	jobID := h.submitAndStart(chainApp(domain.ActionDef{Name: "a", Type: "noop"}), nil)

	_, err := command.Call(context.Background(), h.svc.Env, NewStartCommand(h.svc, jobID))
	if !command.IsPrecondition(err) {
		t.Fatalf("expected precondition error for started job, got %v", err)
	}
}

func TestWorkflow_ActionErrorKillsJob(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "broken", http.StatusInternalServerError)
	}))
	defer srv.Close()

	h := newHarness(t)
	app := chainApp(
		domain.ActionDef{Name: "call", Type: "http", Config: map[string]any{"url": srv.URL}},
		domain.ActionDef{Name: "after", Type: "noop", DependsOn: []string{"call"}},
	)

	jobID := h.submitAndStart(app, nil)

	if job := h.job(jobID); job.Status != domain.JobKilled {
		t.Fatalf("expected KILLED, got %s", job.Status)
	}
	call := h.action(jobID, "call")
	if call.Status != domain.ActionError || call.ErrorCode != "HTTP_500" {
		t.Errorf("expected ERROR/HTTP_500, got %s/%s", call.Status, call.ErrorCode)
	}
	if after := h.action(jobID, "after"); after.Status != domain.ActionKilled {
		t.Errorf("expected dependent action KILLED, got %s", after.Status)
	}
}

func TestActionStart_TransientRetriesThenManual(t *testing.T) {
	h := newHarness(t)
	h.script.startErr = func(int) error {
		return NewExecutorError(Transient, "UNAVAILABLE", nil, "backend unavailable")
	}
	app := chainApp(domain.ActionDef{
		Name:  "flaky",
		Type:  "script",
		Retry: &domain.RetryPolicy{MaxRetries: 2, IntervalSec: 5},
	})

	jobID := h.submitAndStart(app, nil)

	a := h.action(jobID, "flaky")
	if a.Status != domain.ActionStartRetry || a.Retries != 1 || !a.Pending {
		t.Fatalf("expected START_RETRY retries=1 pending, got %s retries=%d pending=%t", a.Status, a.Retries, a.Pending)
	}

	later := h.runLater()
	if len(later) != 1 || later[0].delay != 5*time.Second {
		t.Fatalf("expected one retry after 5s, got %+v", later)
	}
	if a = h.action(jobID, "flaky"); a.Retries != 2 || a.Status != domain.ActionStartRetry {
		t.Fatalf("expected second retry, got %s retries=%d", a.Status, a.Retries)
	}

	h.runLater()

	a = h.action(jobID, "flaky")
	if a.Status != domain.ActionStartManual || a.Pending {
		t.Fatalf("expected START_MANUAL without pending, got %s pending=%t", a.Status, a.Pending)
	}
	if job := h.job(jobID); job.Status != domain.JobSuspended {
		t.Fatalf("expected job SUSPENDED, got %s", job.Status)
	}

	// Повторов больше нет, приостановка ровно одна
	if later := h.runLater(); len(later) != 0 {
		t.Errorf("no retries expected after manual, got %d", len(later))
	}
	if n := h.events.count("workflow", "SUSPENDED"); n != 1 {
		t.Errorf("expected exactly one suspension, got %d", n)
	}
	if h.script.starts != 3 {
		t.Errorf("expected 3 start attempts, got %d", h.script.starts)
	}
}

func TestActionStart_NonTransientSuspends(t *testing.T) {
	h := newHarness(t)
	h.script.startErr = func(int) error {
		return NewExecutorError(NonTransient, "AUTH", nil, "credentials expired")
	}

	jobID := h.submitAndStart(chainApp(domain.ActionDef{Name: "a", Type: "script"}), nil)

	a := h.action(jobID, "a")
	if a.Status != domain.ActionStartManual || a.ErrorCode != "AUTH" {
		t.Errorf("expected START_MANUAL/AUTH, got %s/%s", a.Status, a.ErrorCode)
	}
	if job := h.job(jobID); job.Status != domain.JobSuspended {
		t.Errorf("expected SUSPENDED, got %s", job.Status)
	}
}

func TestResume_RestartsManualAction(t *testing.T) {
	h := newHarness(t)
	h.script.startErr = func(attempt int) error {
		if attempt == 1 {
			return NewExecutorError(NonTransient, "AUTH", nil, "credentials expired")
		}
		return nil
	}

	jobID := h.submitAndStart(chainApp(domain.ActionDef{Name: "a", Type: "script"}), nil)

	if _, err := command.Call(context.Background(), h.svc.Env, NewResumeCommand(h.svc, jobID)); err != nil {
		t.Fatalf("resume: %v", err)
	}
	h.drain()

	if job := h.job(jobID); job.Status != domain.JobSucceeded {
		t.Fatalf("expected SUCCEEDED after resume, got %s", job.Status)
	}
	if a := h.action(jobID, "a"); a.Status != domain.ActionOK {
		t.Errorf("expected OK, got %s", a.Status)
	}
}

func TestActionStart_FailedFailsJob(t *testing.T) {
	h := newHarness(t)
	h.script.startErr = func(int) error {
		return NewExecutorError(Failed, "CORRUPT", nil, "corrupt state")
	}
	app := chainApp(
		domain.ActionDef{Name: "a", Type: "script"},
		domain.ActionDef{Name: "b", Type: "noop"},
	)

	jobID := h.submitAndStart(app, nil)

	if job := h.job(jobID); job.Status != domain.JobFailed {
		t.Fatalf("expected FAILED, got %s", job.Status)
	}
	if a := h.action(jobID, "a"); a.Status != domain.ActionFailed {
		t.Errorf("expected action FAILED, got %s", a.Status)
	}
	// b ещё не стартовал: старт отбрасывается, kill завершает действие
	if b := h.action(jobID, "b"); b.Status != domain.ActionKilled || b.Pending {
		t.Errorf("expected b KILLED and settled, got %s pending=%t", b.Status, b.Pending)
	}
}

func TestActionCheck_ThrottledUntilDelay(t *testing.T) {
	h := newHarness(t)
	app := chainApp(domain.ActionDef{Name: "wait", Type: "sleep", Config: map[string]any{"duration_sec": 30}})

	jobID := h.submitAndStart(app, nil)
	actionID := domain.WorkflowActionID(jobID, "wait")

	a := h.action(jobID, "wait")
	if a.Status != domain.ActionRunning || !a.Pending {
		t.Fatalf("expected RUNNING pending, got %s pending=%t", a.Status, a.Pending)
	}

	_, err := command.Call(context.Background(), h.svc.Env, NewActionCheckCommand(h.svc, actionID))
	if !command.IsPrecondition(err) {
		t.Fatalf("expected throttled check, got %v", err)
	}

	h.clock.advance(601 * time.Second)
	if _, err := command.Call(context.Background(), h.svc.Env, NewActionCheckCommand(h.svc, actionID)); err != nil {
		t.Fatalf("check: %v", err)
	}
	h.drain()

	if job := h.job(jobID); job.Status != domain.JobSucceeded {
		t.Errorf("expected SUCCEEDED, got %s", job.Status)
	}
}

func TestActionCallback_IgnoresCheckDelay(t *testing.T) {
	h := newHarness(t)
	app := chainApp(domain.ActionDef{Name: "wait", Type: "sleep", Config: map[string]any{"duration_sec": 30}})

	jobID := h.submitAndStart(app, nil)
	actionID := domain.WorkflowActionID(jobID, "wait")

	h.clock.advance(31 * time.Second)
	if _, err := command.Call(context.Background(), h.svc.Env, NewActionCallbackCommand(h.svc, actionID)); err != nil {
		t.Fatalf("callback check: %v", err)
	}
	h.drain()

	if a := h.action(jobID, "wait"); a.Status != domain.ActionOK {
		t.Errorf("expected OK, got %s", a.Status)
	}
}

func TestKill_RunningJob(t *testing.T) {
	h := newHarness(t)
	h.script.complete = false
	app := chainApp(
		domain.ActionDef{Name: "running", Type: "script"},
		domain.ActionDef{Name: "waiting", Type: "noop", DependsOn: []string{"running"}},
	)

	jobID := h.submitAndStart(app, nil)

	if _, err := command.Call(context.Background(), h.svc.Env, NewKillCommand(h.svc, jobID)); err != nil {
		t.Fatalf("kill: %v", err)
	}
	h.drain()

	if job := h.job(jobID); job.Status != domain.JobKilled {
		t.Fatalf("expected KILLED, got %s", job.Status)
	}
	running := h.action(jobID, "running")
	if running.Status != domain.ActionKilled || running.Pending {
		t.Errorf("expected running action KILLED and settled, got %s pending=%t", running.Status, running.Pending)
	}
	if h.script.kills != 1 {
		t.Errorf("expected executor kill once, got %d", h.script.kills)
	}
	if waiting := h.action(jobID, "waiting"); waiting.Status != domain.ActionKilled {
		t.Errorf("expected waiting action KILLED, got %s", waiting.Status)
	}

	_, err := command.Call(context.Background(), h.svc.Env, NewKillCommand(h.svc, jobID))
	if !command.IsPrecondition(err) {
		t.Errorf("second kill must fail precondition, got %v", err)
	}
}

func TestSuspend_BlocksProgress(t *testing.T) {
	h := newHarness(t)
	h.script.complete = false
	jobID := h.submitAndStart(chainApp(domain.ActionDef{Name: "a", Type: "script"}), nil)

	if _, err := command.Call(context.Background(), h.svc.Env, NewSuspendCommand(h.svc, jobID)); err != nil {
		t.Fatalf("suspend: %v", err)
	}

	_, err := command.Call(context.Background(), h.svc.Env, NewActionCallbackCommand(h.svc, domain.WorkflowActionID(jobID, "a")))
	if !command.IsPrecondition(err) {
		t.Errorf("check on suspended job must fail precondition, got %v", err)
	}
}

func TestParentUpdate_OnEveryJobTransition(t *testing.T) {
	h := newHarness(t)
	var updates []string
	h.svc.ParentUpdate = func(parentID, jobID string) command.Callable {
		return &recordingCall{name: "parent:" + parentID, calls: &updates}
	}

	ctx := context.Background()
	app := chainApp(domain.ActionDef{Name: "a", Type: "noop"})
	jobID, err := command.Call(ctx, h.svc.Env, NewSubmitCommand(h.svc, app, nil, "C-coord@1"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if h.job(jobID).ParentID != "C-coord@1" {
		t.Fatal("parent id not stored")
	}
	if _, err := command.Call(ctx, h.svc.Env, NewStartCommand(h.svc, jobID)); err != nil {
		t.Fatalf("start: %v", err)
	}
	h.drain()

	// RUNNING и SUCCEEDED
	if len(updates) != 2 {
		t.Fatalf("expected 2 parent updates, got %v", updates)
	}
	for _, u := range updates {
		if u != "parent:C-coord@1" {
			t.Errorf("unexpected parent update %s", u)
		}
	}
}
