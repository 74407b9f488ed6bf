package wf

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shaiso/Coordinator/internal/command"
	"github.com/shaiso/Coordinator/internal/domain"
	"github.com/shaiso/Coordinator/internal/lock"
	"github.com/shaiso/Coordinator/internal/mq"
	"github.com/shaiso/Coordinator/internal/notify"
	"github.com/shaiso/Coordinator/internal/repo"
)

// --- Test doubles ---

type queued struct {
	c     command.Callable
	delay time.Duration
}

// stepSubmitter накапливает работу; тест выполняет её вручную.
type stepSubmitter struct {
	mu    sync.Mutex
	ready []queued
	later []queued
}

func (s *stepSubmitter) Submit(c command.Callable, delay time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if delay <= 0 {
		s.ready = append(s.ready, queued{c, delay})
	} else {
		s.later = append(s.later, queued{c, delay})
	}
	return nil
}

func (s *stepSubmitter) SubmitSerial(cs []command.Callable, delay time.Duration) error {
	for _, c := range cs {
		s.Submit(c, delay)
	}
	return nil
}

func (s *stepSubmitter) pop() (queued, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.ready) == 0 {
		return queued{}, false
	}
	q := s.ready[0]
	s.ready = s.ready[1:]
	return q, true
}

// takeLater забирает отложенную работу.
func (s *stepSubmitter) takeLater() []queued {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.later
	s.later = nil
	return out
}

type eventLog struct {
	mu     sync.Mutex
	events []mq.TransitionEvent
}

func (l *eventLog) PublishTransition(ctx context.Context, ev mq.TransitionEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
	return nil
}

func (l *eventLog) count(entity, status string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, ev := range l.events {
		if ev.Entity == entity && ev.Status == status {
			n++
		}
	}
	return n
}

// scriptedExecutor — executor типа "script" с заданными ответами.
type scriptedExecutor struct {
	mu       sync.Mutex
	startErr func(attempt int) error
	starts   int
	complete bool
	kills    int
}

func (e *scriptedExecutor) Type() string { return "script" }

func (e *scriptedExecutor) Start(ctx context.Context, ac *ActionContext) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.starts++
	if e.startErr != nil {
		if err := e.startErr(e.starts); err != nil {
			return err
		}
	}
	ac.Action.ExternalID = "ext-" + ac.Action.Name
	if e.complete {
		ac.Action.ExternalStatus = ExternalOK
	} else {
		ac.Action.ExternalStatus = ExternalRunning
	}
	return nil
}

func (e *scriptedExecutor) Check(ctx context.Context, ac *ActionContext) error { return nil }

func (e *scriptedExecutor) End(ctx context.Context, ac *ActionContext) (domain.ActionStatus, error) {
	return domain.ActionOK, nil
}

func (e *scriptedExecutor) Kill(ctx context.Context, ac *ActionContext) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.kills++
	return nil
}

func (e *scriptedExecutor) IsCompleted(s string) bool    { return s == ExternalOK }
func (e *scriptedExecutor) MaxRetries() int              { return 3 }
func (e *scriptedExecutor) RetryInterval() time.Duration { return 10 * time.Second }

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type harness struct {
	t      *testing.T
	svc    *Services
	store  *repo.MemoryStore
	sub    *stepSubmitter
	events *eventLog
	clock  *testClock
	script *scriptedExecutor
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	sub := &stepSubmitter{}
	env := &command.Env{
		Locks:       lock.NewTable(4),
		Submitter:   sub,
		LockTimeout: time.Second,
	}
	events := &eventLog{}
	clock := &testClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	script := &scriptedExecutor{complete: true}

	registry := NewRegistry(nil)
	registry.Register(script)

	store := repo.NewMemoryStore()
	svc := &Services{
		Env:       env,
		Store:     store,
		Executors: registry,
		Notifier:  notify.New(env, notify.Config{Publisher: events}),
		Now:       clock.now,
	}
	return &harness{t: t, svc: svc, store: store, sub: sub, events: events, clock: clock, script: script}
}

// drain выполняет готовую работу, пока она есть.
func (h *harness) drain() {
	h.t.Helper()
	for i := 0; i < 1000; i++ {
		q, ok := h.sub.pop()
		if !ok {
			return
		}
		if err := q.c.Call(context.Background()); err != nil {
			h.t.Fatalf("%s failed: %v", q.c.Name(), err)
		}
	}
	h.t.Fatal("work queue did not settle")
}

// runLater выполняет отложенную работу, сдвигая часы на её задержку.
func (h *harness) runLater() []queued {
	h.t.Helper()
	later := h.sub.takeLater()
	for _, q := range later {
		h.clock.advance(q.delay)
		if err := q.c.Call(context.Background()); err != nil {
			h.t.Fatalf("%s failed: %v", q.c.Name(), err)
		}
	}
	h.drain()
	return later
}

func (h *harness) submitAndStart(app domain.WorkflowApp, conf map[string]string) string {
	h.t.Helper()
	ctx := context.Background()

	jobID, err := command.Call(ctx, h.svc.Env, NewSubmitCommand(h.svc, app, conf, ""))
	if err != nil {
		h.t.Fatalf("submit: %v", err)
	}
	if _, err := command.Call(ctx, h.svc.Env, NewStartCommand(h.svc, jobID)); err != nil {
		h.t.Fatalf("start: %v", err)
	}
	h.drain()
	return jobID
}

func (h *harness) job(id string) *domain.WorkflowJob {
	h.t.Helper()
	job, err := h.store.GetWorkflowJob(context.Background(), id)
	if err != nil {
		h.t.Fatalf("get job: %v", err)
	}
	return job
}

func (h *harness) action(jobID, name string) *domain.WorkflowAction {
	h.t.Helper()
	a, err := h.store.GetWorkflowAction(context.Background(), domain.WorkflowActionID(jobID, name))
	if err != nil {
		h.t.Fatalf("get action: %v", err)
	}
	return a
}

// recordingCall — Callable, записывающий своё имя при вызове.
type recordingCall struct {
	name  string
	calls *[]string
}

func (r *recordingCall) Name() string                 { return r.name }
func (r *recordingCall) Kind() command.Kind           { return command.KindCoordActionUpdate }
func (r *recordingCall) Priority() int                { return 1 }
func (r *recordingCall) CreatedAt() time.Time         { return time.Time{} }
func (r *recordingCall) Call(ctx context.Context) error {
	*r.calls = append(*r.calls, r.name)
	return nil
}
