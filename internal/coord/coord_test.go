package coord

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/shaiso/Coordinator/internal/command"
	"github.com/shaiso/Coordinator/internal/deps"
	"github.com/shaiso/Coordinator/internal/domain"
)

const logsURI = "file:///data/logs/{{ .YEAR }}{{ .MONTH }}{{ .DAY }}{{ .HOUR }}"

func hourlyApp(start time.Time, hours int) domain.CoordinatorApp {
	return domain.CoordinatorApp{
		Name:      "hourly",
		Frequency: "60",
		Start:     start,
		End:       start.Add(time.Duration(hours) * time.Hour),
		Inputs:    []domain.DataIn{{Name: "logs", URI: logsURI}},
		Conf: map[string]string{
			"day": "{{ .YEAR }}-{{ .MONTH }}-{{ .DAY }}",
			"src": "{{ .Inputs.logs }}",
		},
		Workflow: domain.WorkflowApp{
			Name:    "load",
			Actions: []domain.ActionDef{{Name: "run", Type: "noop"}},
		},
	}
}

func sleepingApp(start time.Time, hours int) domain.CoordinatorApp {
	app := hourlyApp(start, hours)
	app.Workflow.Actions = []domain.ActionDef{
		{Name: "nap", Type: "sleep", Config: map[string]any{"duration_sec": 3600}},
	}
	return app
}

func checkInput(h *harness, actionID string) (domain.CoordActionStatus, error) {
	return command.Call(context.Background(), h.svc.Env, NewInputCheckCommand(h.svc, actionID))
}

func TestInputCheck_FutureNominalRequeues(t *testing.T) {
	h := newHarness(t)
	now := h.clock.now()
	a := h.seed(hourlyApp(now, 2), now.Add(10*time.Minute), 120, "file:///data/a")

	status, err := checkInput(h, a.ID)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if status != domain.CoordWaiting {
		t.Errorf("expected WAITING, got %s", status)
	}
	if len(h.checker.checked) != 0 {
		t.Errorf("inputs must not be checked before nominal time, checked %v", h.checker.checked)
	}

	later := h.sub.takeLater()
	if len(later) != 1 {
		t.Fatalf("expected one resubmission, got %d", len(later))
	}
	if later[0].c.Kind() != command.KindCoordActionInput || later[0].delay != 10*time.Minute {
		t.Errorf("expected input check in 10m, got %s in %v", later[0].c.Name(), later[0].delay)
	}

	got := h.action(a.ID)
	if got.Status != domain.CoordWaiting || got.MissingDependencies != "file:///data/a" {
		t.Errorf("action must stay unchanged, got %s %q", got.Status, got.MissingDependencies)
	}
}

func TestInputCheck_AllPresentMarksReady(t *testing.T) {
	h := newHarness(t)
	now := h.clock.now()
	a := h.seed(hourlyApp(now, 2), now.Add(-time.Minute), 120, "file:///data/a")
	h.checker.add("file:///data/a")

	status, err := checkInput(h, a.ID)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if status != domain.CoordReady {
		t.Fatalf("expected READY, got %s", status)
	}

	got := h.action(a.ID)
	if got.MissingDependencies != "" {
		t.Errorf("descriptor must be cleared, got %q", got.MissingDependencies)
	}
	if got.RunConf["day"] != "2024-01-01" || got.RunConf["src"] != "file:///data/a" || got.RunConf["env"] != "prod" {
		t.Errorf("unexpected run conf %v", got.RunConf)
	}

	later := h.sub.takeLater()
	if len(later) != 1 {
		t.Fatalf("expected exactly one follow-up, got %d", len(later))
	}
	if later[0].c.Kind() != command.KindCoordActionReady || later[0].delay != readyDelay {
		t.Errorf("expected ready command in %v, got %s in %v", readyDelay, later[0].c.Name(), later[0].delay)
	}
	if n := len(h.sub.readyOf(command.KindCoordActionInput)); n != 0 {
		t.Errorf("no further input checks expected, got %d", n)
	}

	h.drain()
	if h.events.count("coord_action", "READY") != 1 {
		t.Errorf("expected one READY event, got %d", h.events.count("coord_action", "READY"))
	}
}

func TestInputCheck_MissingInputRequeues(t *testing.T) {
	h := newHarness(t)
	now := h.clock.now()
	app := hourlyApp(now, 2)
	app.Inputs = append(app.Inputs, domain.DataIn{Name: "users", URI: "file:///data/users"})
	a := h.seed(app, now.Add(-time.Minute), 120, "file:///data/a", "file:///data/b")
	h.checker.add("file:///data/a")

	status, err := checkInput(h, a.ID)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if status != domain.CoordWaiting {
		t.Fatalf("expected WAITING, got %s", status)
	}

	got := h.action(a.ID)
	if got.MissingDependencies != "file:///data/b" {
		t.Errorf("expected descriptor with the missing uri only, got %q", got.MissingDependencies)
	}
	if !slices.Equal(h.watcher.uris[a.ID], []string{"file:///data/b"}) {
		t.Errorf("expected watcher registration for the missing uri, got %v", h.watcher.uris[a.ID])
	}

	later := h.sub.takeLater()
	if len(later) != 1 {
		t.Fatalf("expected one resubmission, got %d", len(later))
	}
	if later[0].c.Kind() != command.KindCoordActionInput || later[0].delay != defaultRequeueInterval {
		t.Errorf("expected input check in %v, got %s in %v", defaultRequeueInterval, later[0].c.Name(), later[0].delay)
	}
}

func TestInputCheck_StopsAtFirstMissing(t *testing.T) {
	h := newHarness(t)
	now := h.clock.now()
	app := hourlyApp(now, 2)
	app.Inputs = append(app.Inputs, domain.DataIn{Name: "users", URI: "file:///data/users"})
	a := h.seed(app, now.Add(-time.Minute), 120, "file:///data/a", "file:///data/b")
	h.checker.add("file:///data/b")

	if _, err := checkInput(h, a.ID); err != nil {
		t.Fatalf("check: %v", err)
	}
	if !slices.Equal(h.checker.checked, []string{"file:///data/a"}) {
		t.Errorf("expected only the first uri checked, got %v", h.checker.checked)
	}
	if got := h.action(a.ID); got.MissingDependencies != "file:///data/a#file:///data/b" {
		t.Errorf("unexpected descriptor %q", got.MissingDependencies)
	}
}

func TestInputCheck_ResolvesInstancesAfterResolvedInputs(t *testing.T) {
	h := newHarness(t)
	now := h.clock.now()
	a := h.seed(hourlyApp(now, 2), now.Add(-time.Minute), 120, "file:///data/a")

	const expr = "latest:0:60:file:///data/prev/{{ .HOUR }}"
	h.resolver.resolved[expr] = "file:///data/prev/11"
	a.MissingDependencies = deps.Descriptor{
		Resolved:   []string{"file:///data/a"},
		Unresolved: []deps.Instance{{Name: "prev", Expr: expr}},
	}.String()
	if err := h.store.UpdateCoordAction(context.Background(), a); err != nil {
		t.Fatalf("update: %v", err)
	}

	if _, err := checkInput(h, a.ID); err != nil {
		t.Fatalf("check: %v", err)
	}
	if h.resolver.calls != 0 {
		t.Errorf("instances must wait for resolved inputs, resolver called %d times", h.resolver.calls)
	}
	h.sub.takeLater()

	h.checker.add("file:///data/a")
	status, err := checkInput(h, a.ID)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if status != domain.CoordReady {
		t.Fatalf("expected READY, got %s", status)
	}
	if got := h.action(a.ID); got.Inputs["prev"] != "file:///data/prev/11" {
		t.Errorf("expected resolved instance in inputs, got %v", got.Inputs)
	}
}

func TestInputCheck_TimeoutStopsChecks(t *testing.T) {
	h := newHarness(t)
	now := h.clock.now()
	a := h.seed(hourlyApp(now, 2), now.Add(-time.Minute), 10, "file:///data/a")
	h.clock.advance(11 * time.Minute)

	status, err := checkInput(h, a.ID)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if status != domain.CoordTimedOut {
		t.Fatalf("expected TIMEDOUT, got %s", status)
	}
	if len(h.watcher.uris) != 0 {
		t.Errorf("timed out action must not be watched, got %v", h.watcher.uris)
	}

	later := h.sub.takeLater()
	if len(later) != 1 || later[0].c.Kind() != command.KindCoordActionTimeout {
		t.Fatalf("expected only the timeout command, got %d follow-ups", len(later))
	}

	if _, err := checkInput(h, a.ID); !command.IsPrecondition(err) {
		t.Errorf("expected precondition error for a timed out action, got %v", err)
	}

	h.sub.later = later
	h.runLater()
	if job := h.job(a.JobID); job.Status != domain.JobDoneWithError {
		t.Errorf("expected DONEWITHERROR, got %s", job.Status)
	}
	if h.events.count("coord_action", "TIMEDOUT") != 1 {
		t.Errorf("expected one TIMEDOUT event, got %d", h.events.count("coord_action", "TIMEDOUT"))
	}
}

func TestMaterialize_CreatesActionsUpToLookahead(t *testing.T) {
	h := newHarness(t)
	now := h.clock.now()
	jobID := h.submitAndStart(hourlyApp(now.Add(-2*time.Hour), 4))

	actions := h.actions(jobID)
	if len(actions) != 3 {
		t.Fatalf("expected 3 actions, got %d", len(actions))
	}
	for i, a := range actions {
		if a.Number != i+1 || a.Status != domain.CoordWaiting {
			t.Errorf("action %d: unexpected number %d status %s", i, a.Number, a.Status)
		}
		if want := now.Add(time.Duration(i-2) * time.Hour); !a.NominalTime.Equal(want) {
			t.Errorf("action %d: expected nominal %v, got %v", i, want, a.NominalTime)
		}
	}
	if actions[0].Inputs["logs"] != "file:///data/logs/2024010110" {
		t.Errorf("unexpected rendered input %q", actions[0].Inputs["logs"])
	}

	job := h.job(jobID)
	if job.LastActionNumber != 3 || job.DoneMaterialization {
		t.Errorf("unexpected job state: last=%d done=%t", job.LastActionNumber, job.DoneMaterialization)
	}
	if !job.NextMaterializeAt.Equal(now.Add(time.Hour)) {
		t.Errorf("expected next materialization at %v, got %v", now.Add(time.Hour), job.NextMaterializeAt)
	}
}

func TestMaterialize_RespectsMax(t *testing.T) {
	h := newHarness(t)
	h.svc.MaterializeMax = 2
	now := h.clock.now()
	jobID := h.submitAndStart(hourlyApp(now.Add(-5*time.Hour), 6))

	if n := len(h.actions(jobID)); n != 2 {
		t.Errorf("expected 2 actions, got %d", n)
	}
}

func TestSubmit_InvalidFrequencyRejected(t *testing.T) {
	h := newHarness(t)
	app := hourlyApp(h.clock.now(), 2)
	app.Frequency = "not a cron"

	_, err := command.Call(context.Background(), h.svc.Env, NewSubmitCommand(h.svc, app, nil, ""))
	if err == nil || command.IsPrecondition(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestReady_RespectsConcurrency(t *testing.T) {
	tests := []struct {
		name        string
		concurrency int
		want        int
	}{
		{"default is one", 0, 1},
		{"limited", 2, 2},
		{"unlimited", -1, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			ctx := context.Background()
			now := h.clock.now()
			app := hourlyApp(now, 3)
			app.Concurrency = tt.concurrency

			first := h.seed(app, now, 120)
			for n := 1; n <= 3; n++ {
				a := *first
				a.ID = domain.CoordActionID(first.JobID, n)
				a.Number = n
				a.Status = domain.CoordReady
				var err error
				if n == 1 {
					err = h.store.UpdateCoordAction(ctx, &a)
				} else {
					err = h.store.CreateCoordAction(ctx, &a)
				}
				if err != nil {
					t.Fatalf("store action %d: %v", n, err)
				}
			}

			submitted, err := command.Call(ctx, h.svc.Env, NewReadyCommand(h.svc, first.JobID))
			if err != nil {
				t.Fatalf("ready: %v", err)
			}
			if submitted != tt.want {
				t.Errorf("expected %d submitted, got %d", tt.want, submitted)
			}
			for i, a := range h.actions(first.JobID) {
				want := domain.CoordReady
				if i < tt.want {
					want = domain.CoordSubmitted
				}
				if a.Status != want {
					t.Errorf("action %d: expected %s, got %s", a.Number, want, a.Status)
				}
			}
			if n := len(h.sub.readyOf(command.KindCoordActionStart)); n != tt.want {
				t.Errorf("expected %d start commands, got %d", tt.want, n)
			}
		})
	}
}

func TestCoordinator_RunsActionsToSuccess(t *testing.T) {
	h := newHarness(t)
	now := h.clock.now()
	h.checker.add("file:///data/logs/2024010110", "file:///data/logs/2024010111")

	jobID := h.submitAndStart(hourlyApp(now.Add(-2*time.Hour), 2))
	h.settle()

	job := h.job(jobID)
	if job.Status != domain.JobSucceeded {
		t.Fatalf("expected SUCCEEDED, got %s", job.Status)
	}
	if job.EndedAt == nil {
		t.Error("ended_at must be set")
	}

	actions := h.actions(jobID)
	if len(actions) != 2 {
		t.Fatalf("expected 2 actions, got %d", len(actions))
	}
	for _, a := range actions {
		if a.Status != domain.CoordSucceeded || a.Pending != 0 {
			t.Errorf("action %d: expected SUCCEEDED without pending, got %s pending=%d", a.Number, a.Status, a.Pending)
		}
		wfJob := h.workflow(a.ExternalID)
		if wfJob.Status != domain.JobSucceeded || wfJob.ParentID != a.ID {
			t.Errorf("action %d: unexpected workflow %s parent=%s", a.Number, wfJob.Status, wfJob.ParentID)
		}
		if wfJob.Conf["src"] != a.Inputs["logs"] {
			t.Errorf("action %d: workflow conf not passed, got %v", a.Number, wfJob.Conf)
		}
	}
	if h.events.count("coordinator", "SUCCEEDED") != 1 {
		t.Errorf("expected one SUCCEEDED event, got %d", h.events.count("coordinator", "SUCCEEDED"))
	}
}

// startSleeping запускает координатор с одним действием, чей workflow
// остаётся RUNNING.
func startSleeping(h *harness) (string, *domain.CoordinatorAction) {
	h.t.Helper()
	now := h.clock.now()
	h.checker.add("file:///data/logs/2024010111")

	jobID := h.submitAndStart(sleepingApp(now.Add(-time.Hour), 1))
	h.runLater()

	a := h.actions(jobID)[0]
	if a.Status != domain.CoordRunning {
		h.t.Fatalf("expected RUNNING action, got %s", a.Status)
	}
	if wfJob := h.workflow(a.ExternalID); wfJob.Status != domain.JobRunning {
		h.t.Fatalf("expected RUNNING workflow, got %s", wfJob.Status)
	}
	return jobID, &a
}

func TestKill_KillsRunningWorkflows(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	jobID, a := startSleeping(h)

	if _, err := command.Call(ctx, h.svc.Env, NewKillCommand(h.svc, jobID)); err != nil {
		t.Fatalf("kill: %v", err)
	}
	if got := h.action(a.ID); got.Status != domain.CoordKilled || got.Pending != 1 {
		t.Errorf("expected KILLED with pending workflow kill, got %s pending=%d", got.Status, got.Pending)
	}

	h.drain()

	if job := h.job(jobID); job.Status != domain.JobKilled {
		t.Errorf("expected KILLED coordinator, got %s", job.Status)
	}
	if wfJob := h.workflow(a.ExternalID); wfJob.Status != domain.JobKilled {
		t.Errorf("expected KILLED workflow, got %s", wfJob.Status)
	}
	if got := h.action(a.ID); got.Status != domain.CoordKilled || got.Pending != 0 {
		t.Errorf("expected settled KILLED action, got %s pending=%d", got.Status, got.Pending)
	}

	if _, err := command.Call(ctx, h.svc.Env, NewKillCommand(h.svc, jobID)); !command.IsPrecondition(err) {
		t.Errorf("second kill should be a precondition error, got %v", err)
	}
}

func TestSuspendResume_PropagatesToWorkflows(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	jobID, a := startSleeping(h)

	if _, err := command.Call(ctx, h.svc.Env, NewSuspendCommand(h.svc, jobID)); err != nil {
		t.Fatalf("suspend: %v", err)
	}
	h.drain()

	if job := h.job(jobID); job.Status != domain.JobSuspended {
		t.Errorf("expected SUSPENDED coordinator, got %s", job.Status)
	}
	if wfJob := h.workflow(a.ExternalID); wfJob.Status != domain.JobSuspended {
		t.Errorf("expected SUSPENDED workflow, got %s", wfJob.Status)
	}
	if got := h.action(a.ID); got.Status != domain.CoordSuspended || got.Pending != 0 {
		t.Errorf("expected SUSPENDED action without pending, got %s pending=%d", got.Status, got.Pending)
	}

	if _, err := command.Call(ctx, h.svc.Env, NewResumeCommand(h.svc, jobID)); err != nil {
		t.Fatalf("resume: %v", err)
	}
	h.drain()

	if job := h.job(jobID); job.Status != domain.JobRunning {
		t.Errorf("expected RUNNING coordinator, got %s", job.Status)
	}
	if wfJob := h.workflow(a.ExternalID); wfJob.Status != domain.JobRunning {
		t.Errorf("expected RUNNING workflow, got %s", wfJob.Status)
	}
	if got := h.action(a.ID); got.Status != domain.CoordRunning || got.Pending != 0 {
		t.Errorf("expected RUNNING action without pending, got %s pending=%d", got.Status, got.Pending)
	}
}

func TestSuspend_StopsInputChecks(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	now := h.clock.now()
	a := h.seed(hourlyApp(now, 2), now.Add(-time.Minute), 120, "file:///data/a")

	if _, err := command.Call(ctx, h.svc.Env, NewSuspendCommand(h.svc, a.JobID)); err != nil {
		t.Fatalf("suspend: %v", err)
	}
	if _, err := checkInput(h, a.ID); !command.IsPrecondition(err) {
		t.Fatalf("expected precondition error while suspended, got %v", err)
	}

	if _, err := command.Call(ctx, h.svc.Env, NewResumeCommand(h.svc, a.JobID)); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if n := len(h.sub.readyOf(command.KindCoordActionInput)); n != 1 {
		t.Errorf("expected resume to schedule one input check, got %d", n)
	}
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name     string
		statuses []domain.CoordActionStatus
		want     domain.JobStatus
	}{
		{"no actions", nil, domain.JobSucceeded},
		{"all succeeded", []domain.CoordActionStatus{domain.CoordSucceeded, domain.CoordSucceeded}, domain.JobSucceeded},
		{"all failed", []domain.CoordActionStatus{domain.CoordFailed}, domain.JobFailed},
		{"all killed", []domain.CoordActionStatus{domain.CoordKilled, domain.CoordKilled}, domain.JobKilled},
		{"mixed", []domain.CoordActionStatus{domain.CoordSucceeded, domain.CoordTimedOut}, domain.JobDoneWithError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actions := make([]domain.CoordinatorAction, len(tt.statuses))
			for i, s := range tt.statuses {
				actions[i].Status = s
			}
			if got := aggregate(actions); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}
