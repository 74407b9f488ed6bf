package coord

import (
	"context"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shaiso/Coordinator/internal/command"
	"github.com/shaiso/Coordinator/internal/domain"
	"github.com/shaiso/Coordinator/internal/lock"
	"github.com/shaiso/Coordinator/internal/mq"
	"github.com/shaiso/Coordinator/internal/notify"
	"github.com/shaiso/Coordinator/internal/repo"
	"github.com/shaiso/Coordinator/internal/wf"
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

func (s *stepSubmitter) takeLater() []queued {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.later
	s.later = nil
	return out
}

// readyOf возвращает готовую работу вида kind, не извлекая её.
func (s *stepSubmitter) readyOf(kind command.Kind) []queued {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []queued
	for _, q := range s.ready {
		if q.c.Kind() == kind {
			out = append(out, q)
		}
	}
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

// fakeChecker — URI существует, если он есть в present.
type fakeChecker struct {
	mu      sync.Mutex
	present map[string]bool
	checked []string
}

func (f *fakeChecker) Exists(ctx context.Context, uri string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checked = append(f.checked, uri)
	return f.present[uri], nil
}

func (f *fakeChecker) add(uris ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range uris {
		f.present[u] = true
	}
}

// fakeResolver разрешает выражения из таблицы.
type fakeResolver struct {
	resolved map[string]string
	calls    int
}

func (f *fakeResolver) Resolve(ctx context.Context, expr string, nominal time.Time) (string, bool, error) {
	f.calls++
	uri, ok := f.resolved[expr]
	return uri, ok, nil
}

type fakeWatcher struct {
	mu   sync.Mutex
	uris map[string][]string
}

func (f *fakeWatcher) Register(actionID string, uris []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uris[actionID] = slices.Clone(uris)
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
	t       *testing.T
	svc     *Services
	store   *repo.MemoryStore
	sub     *stepSubmitter
	events  *eventLog
	clock   *testClock
	checker  *fakeChecker
	resolver *fakeResolver
	watcher  *fakeWatcher
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

	checker := &fakeChecker{present: make(map[string]bool)}
	resolver := &fakeResolver{resolved: make(map[string]string)}
	watcher := &fakeWatcher{uris: make(map[string][]string)}
	svc := &Services{
		Env:      env,
		Store:    store,
		Workflow: wfSvc,
		Resolver: resolver,
		Checker:  checker,
		Watcher:  watcher,
		Notifier: notifier,
		Now:      clock.now,
	}
	wfSvc.ParentUpdate = func(parentID, jobID string) command.Callable {
		return command.Bind(env, NewActionUpdateCommand(svc, parentID))
	}

	return &harness{
		t: t, svc: svc, store: store, sub: sub, events: events,
		clock: clock, checker: checker, resolver: resolver, watcher: watcher,
	}
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

// settle выполняет работу, пока отложенной не останется.
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

func (h *harness) submitAndStart(app domain.CoordinatorApp) string {
	h.t.Helper()
	ctx := context.Background()

	jobID, err := command.Call(ctx, h.svc.Env, NewSubmitCommand(h.svc, app, map[string]string{"env": "prod"}, ""))
	if err != nil {
		h.t.Fatalf("submit: %v", err)
	}
	if _, err := command.Call(ctx, h.svc.Env, NewStartCommand(h.svc, jobID)); err != nil {
		h.t.Fatalf("start: %v", err)
	}
	h.drain()
	return jobID
}

// seed создаёт RUNNING координатор с одним WAITING действием.
func (h *harness) seed(app domain.CoordinatorApp, nominal time.Time, timeout int, uris ...string) *domain.CoordinatorAction {
	h.t.Helper()
	ctx := context.Background()
	now := h.clock.now()

	job := &domain.CoordinatorJob{
		ID:                  domain.NewJobID(domain.JobTypeCoordinator),
		Name:                app.Name,
		App:                 app,
		Status:              domain.JobRunning,
		Conf:                map[string]string{"env": "prod"},
		LastActionNumber:    1,
		DoneMaterialization: true,
		CreatedAt:           now,
		LastModified:        now,
	}
	if err := h.store.CreateCoordJob(ctx, job); err != nil {
		h.t.Fatalf("create job: %v", err)
	}

	inputs := make(map[string]string, len(uris))
	for i, u := range uris {
		inputs[app.Inputs[i].Name] = u
	}
	a := &domain.CoordinatorAction{
		ID:                  domain.CoordActionID(job.ID, 1),
		JobID:               job.ID,
		Number:              1,
		Status:              domain.CoordWaiting,
		NominalTime:         nominal,
		Inputs:              inputs,
		MissingDependencies: strings.Join(uris, "#"),
		Timeout:             timeout,
		CreatedAt:           now,
		LastModified:        now,
	}
	if err := h.store.CreateCoordAction(ctx, a); err != nil {
		h.t.Fatalf("create action: %v", err)
	}
	return a
}


func (h *harness) job(id string) *domain.CoordinatorJob {
	h.t.Helper()
	job, err := h.store.GetCoordJob(context.Background(), id)
	if err != nil {
		h.t.Fatalf("get job: %v", err)
	}
	return job
}

func (h *harness) action(id string) *domain.CoordinatorAction {
	h.t.Helper()
	a, err := h.store.GetCoordAction(context.Background(), id)
	if err != nil {
		h.t.Fatalf("get action: %v", err)
	}
	return a
}

func (h *harness) actions(jobID string) []domain.CoordinatorAction {
	h.t.Helper()
	actions, err := h.store.ListCoordActions(context.Background(), jobID)
	if err != nil {
		h.t.Fatalf("list actions: %v", err)
	}
	return actions
}

func (h *harness) workflow(id string) *domain.WorkflowJob {
	h.t.Helper()
	job, err := h.store.GetWorkflowJob(context.Background(), id)
	if err != nil {
		h.t.Fatalf("get workflow: %v", err)
	}
	return job
}
