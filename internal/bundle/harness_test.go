package bundle

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shaiso/Coordinator/internal/command"
	"github.com/shaiso/Coordinator/internal/coord"
	"github.com/shaiso/Coordinator/internal/domain"
	"github.com/shaiso/Coordinator/internal/lock"
	"github.com/shaiso/Coordinator/internal/mq"
	"github.com/shaiso/Coordinator/internal/notify"
	"github.com/shaiso/Coordinator/internal/repo"
	"github.com/shaiso/Coordinator/internal/wf"
)

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

// presentChecker считает существующими все URI.
type presentChecker struct{}

func (presentChecker) Exists(ctx context.Context, uri string) (bool, error) { return true, nil }

type noResolver struct{}

func (noResolver) Resolve(ctx context.Context, expr string, nominal time.Time) (string, bool, error) {
	return "", false, nil
}

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
	store := repo.NewMemoryStore()
	notifier := notify.New(env, notify.Config{Publisher: events})

	wfSvc := &wf.Services{
		Env:       env,
		Store:     store,
		Executors: wf.NewRegistry(nil),
		Notifier:  notifier,
		Now:       clock.now,
	}
	coordSvc := &coord.Services{
		Env:      env,
		Store:    store,
		Workflow: wfSvc,
		Resolver: noResolver{},
		Checker:  presentChecker{},
		Notifier: notifier,
		Now:      clock.now,
	}
	svc := &Services{
		Env:      env,
		Store:    store,
		Coord:    coordSvc,
		Notifier: notifier,
		Now:      clock.now,
	}

	wfSvc.ParentUpdate = func(parentID, jobID string) command.Callable {
		return command.Bind(env, coord.NewActionUpdateCommand(coordSvc, parentID))
	}
	coordSvc.OnBundleUpdate = func(bundleID, coordJobID string) command.Callable {
		return command.Bind(env, NewStatusUpdateCommand(svc, bundleID, coordJobID))
	}

	return &harness{t: t, svc: svc, store: store, sub: sub, events: events, clock: clock}
}

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

func (h *harness) settle() {
	h.t.Helper()
	h.drain()
	for i := 0; i < 100; i++ {
		if len(h.runLater()) == 0 {
			return
		}
	}
	h.t.Fatal("delayed work did not settle")
}

func (h *harness) submitAndStart(app domain.BundleApp) string {
	h.t.Helper()
	ctx := context.Background()

	jobID, err := command.Call(ctx, h.svc.Env, NewSubmitCommand(h.svc, app, map[string]string{"env": "prod"}))
	if err != nil {
		h.t.Fatalf("submit: %v", err)
	}
	if _, err := command.Call(ctx, h.svc.Env, NewStartCommand(h.svc, jobID)); err != nil {
		h.t.Fatalf("start: %v", err)
	}
	h.drain()
	return jobID
}

func (h *harness) job(id string) *domain.BundleJob {
	h.t.Helper()
	job, err := h.store.GetBundleJob(context.Background(), id)
	if err != nil {
		h.t.Fatalf("get bundle: %v", err)
	}
	return job
}

func (h *harness) coordJob(id string) *domain.CoordinatorJob {
	h.t.Helper()
	job, err := h.store.GetCoordJob(context.Background(), id)
	if err != nil {
		h.t.Fatalf("get coordinator: %v", err)
	}
	return job
}
