package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shaiso/Coordinator/internal/command"
	"github.com/shaiso/Coordinator/internal/domain"
	"github.com/shaiso/Coordinator/internal/lock"
	"github.com/shaiso/Coordinator/internal/mq"
)

type captured struct {
	c     command.Callable
	delay time.Duration
}

type captureSubmitter struct {
	mu    sync.Mutex
	calls []captured
}

func (s *captureSubmitter) Submit(c command.Callable, delay time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, captured{c, delay})
	return nil
}

func (s *captureSubmitter) SubmitSerial(cs []command.Callable, delay time.Duration) error {
	for _, c := range cs {
		s.Submit(c, delay)
	}
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []mq.TransitionEvent
}

func (p *fakePublisher) PublishTransition(ctx context.Context, ev mq.TransitionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func newTestNotifier(pub EventPublisher) (*Notifier, *captureSubmitter) {
	sub := &captureSubmitter{}
	env := &command.Env{Locks: lock.NewTable(1), Submitter: sub}
	return New(env, Config{Publisher: pub}), sub
}

func TestJobURL(t *testing.T) {
	got := JobURL("http://hook/?id=$jobId&s=$status", "j1-W", domain.JobSucceeded)
	if got != "http://hook/?id=j1-W&s=SUCCEEDED" {
		t.Errorf("unexpected url %s", got)
	}
	if JobURL("", "j1-W", domain.JobSucceeded) != "" {
		t.Error("empty template must stay empty")
	}
}

func TestActionURL(t *testing.T) {
	a := &domain.WorkflowAction{ID: "j1-W@load", JobID: "j1-W", Name: "load", Status: domain.ActionRunning}
	tmpl := "http://hook/$jobId/$nodeName/$actionId?s=$status"

	if got := ActionURL(tmpl, a); got != "http://hook/j1-W/load/j1-W@load?s=S:RUNNING" {
		t.Errorf("unexpected url %s", got)
	}

	a.Status = domain.ActionOK
	if got := ActionURL(tmpl, a); got != "http://hook/j1-W/load/j1-W@load?s=T:OK" {
		t.Errorf("unexpected url %s", got)
	}
}

func TestCommand_Success(t *testing.T) {
	var hits int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		if r.URL.Query().Get("status") != "KILLED" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
	}))
	defer srv.Close()

	pub := &fakePublisher{}
	n, sub := newTestNotifier(pub)
	job := &domain.WorkflowJob{
		ID:     "j1-W",
		Status: domain.JobKilled,
		App:    domain.WorkflowApp{NotificationURL: srv.URL + "/?job=$jobId&status=$status"},
	}

	if err := n.ForJob(job).Call(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hits != 1 {
		t.Errorf("expected 1 request, got %d", hits)
	}
	if len(sub.calls) != 0 {
		t.Errorf("no retry expected, got %d", len(sub.calls))
	}
	if len(pub.events) != 1 || pub.events[0].Status != "KILLED" || pub.events[0].Entity != "workflow" {
		t.Errorf("unexpected events %+v", pub.events)
	}
}

func TestCommand_RetriesWithFreshCommands(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	pub := &fakePublisher{}
	n, sub := newTestNotifier(pub)
	job := &domain.WorkflowJob{ID: "j1-W", Status: domain.JobFailed, App: domain.WorkflowApp{NotificationURL: srv.URL}}

	if err := n.ForJob(job).Call(context.Background()); err != nil {
		t.Fatalf("notification must never fail the caller, got %v", err)
	}

	// Прогоняем цепочку повторов: 3 повтора, затем отказ
	for attempt := 1; attempt <= 3; attempt++ {
		if len(sub.calls) != attempt {
			t.Fatalf("attempt %d: expected %d submissions, got %d", attempt, attempt, len(sub.calls))
		}
		next := sub.calls[attempt-1]
		if next.delay != 60*time.Second {
			t.Errorf("expected 60s retry delay, got %v", next.delay)
		}
		if err := next.c.Call(context.Background()); err != nil {
			t.Fatalf("retry %d failed: %v", attempt, err)
		}
	}
	if len(sub.calls) != 3 {
		t.Errorf("expected retries to stop after 3, got %d", len(sub.calls))
	}
	if len(pub.events) != 1 {
		t.Errorf("event must be published once, got %d", len(pub.events))
	}
}

func TestCommand_NothingToNotify(t *testing.T) {
	n, sub := newTestNotifier(nil)
	job := &domain.WorkflowJob{ID: "j1-W", Status: domain.JobSucceeded}

	if err := n.ForJob(job).Call(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sub.calls) != 0 {
		t.Errorf("unexpected submissions %d", len(sub.calls))
	}
}
