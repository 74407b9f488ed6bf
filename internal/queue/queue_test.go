package queue

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeClock — управляемые часы для детерминированных тестов задержек.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestQueue(capacity int) (*Queue[string], *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	q := New[string](capacity)
	q.now = clock.now
	return q, clock
}

func drain(q *Queue[string]) []string {
	var out []string
	for {
		el, ok := q.Poll()
		if !ok {
			return out
		}
		out = append(out, el.Item)
	}
}

func TestQueue_Poll_PriorityThenInsertionOrder(t *testing.T) {
	q, _ := newTestQueue(0)

	// Приоритеты {1,1,5,3,5}
	q.Offer("a", 1, 0)
	q.Offer("b", 1, 0)
	q.Offer("c", 5, 0)
	q.Offer("d", 3, 0)
	q.Offer("e", 5, 0)

	got := drain(q)
	want := []string{"c", "e", "d", "a", "b"}

	if len(got) != len(want) {
		t.Fatalf("expected %d items, got %d (%v)", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s (full order %v)", i, want[i], got[i], got)
		}
	}
}

func TestQueue_Poll_DelayedNotEligibleEarly(t *testing.T) {
	q, clock := newTestQueue(0)

	q.Offer("later", 10, 5*time.Second)
	q.Offer("now", 0, 0)

	el, ok := q.Poll()
	if !ok || el.Item != "now" {
		t.Fatalf("expected 'now', got %v (ok=%v)", el.Item, ok)
	}

	clock.advance(4 * time.Second)
	if el, ok := q.Poll(); ok {
		t.Fatalf("delayed item polled too early: %v", el.Item)
	}

	clock.advance(time.Second)
	el, ok = q.Poll()
	if !ok || el.Item != "later" {
		t.Fatalf("expected 'later' at its ready time, got %v (ok=%v)", el.Item, ok)
	}
}

func TestQueue_Poll_PromotedItemCompetesByPriority(t *testing.T) {
	q, clock := newTestQueue(0)

	q.Offer("delayed-high", 5, time.Second)
	q.Offer("ready-low", 1, 0)

	clock.advance(2 * time.Second)

	got := drain(q)
	if len(got) != 2 || got[0] != "delayed-high" || got[1] != "ready-low" {
		t.Errorf("expected [delayed-high ready-low], got %v", got)
	}
}

func TestQueue_Offer_BeyondCapacity(t *testing.T) {
	q, _ := newTestQueue(2)

	if !q.Offer("a", 0, 0) || !q.Offer("b", 0, time.Minute) {
		t.Fatal("offers within capacity should succeed")
	}

	if q.Offer("c", 0, 0) {
		t.Error("offer beyond capacity should return false")
	}
	if q.Size() != 2 {
		t.Errorf("size should stay 2, got %d", q.Size())
	}
}

func TestQueue_Put_IgnoresCapacity(t *testing.T) {
	q, _ := newTestQueue(1)

	q.Offer("a", 0, 0)
	q.Put("b", 0, 0)

	if q.Size() != 2 {
		t.Errorf("expected size 2 after Put, got %d", q.Size())
	}
}

func TestQueue_Take_WaitsForDelayedItem(t *testing.T) {
	q := New[string](0)

	start := time.Now()
	q.Offer("x", 0, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	el, err := q.Take(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if el.Item != "x" {
		t.Errorf("expected x, got %s", el.Item)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("item taken after %v, before its delay elapsed", elapsed)
	}
}

func TestQueue_Take_WakesOnOffer(t *testing.T) {
	q := New[string](0)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	go func() {
		time.Sleep(20 * time.Millisecond)
		q.Offer("late", 0, 0)
	}()

	el, err := q.Take(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if el.Item != "late" {
		t.Errorf("expected late, got %s", el.Item)
	}
}

func TestQueue_Take_ContextCancelled(t *testing.T) {
	q := New[string](0)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Take(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
}

func TestQueue_Snapshot(t *testing.T) {
	q, _ := newTestQueue(0)

	q.Offer("slow", 9, time.Hour)
	q.Offer("low", 1, 0)
	q.Offer("high", 7, 0)

	snap := q.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("expected 3 elements, got %d", len(snap))
	}

	order := []string{snap[0].Item, snap[1].Item, snap[2].Item}
	want := []string{"high", "low", "slow"}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("snapshot position %d: expected %s, got %s", i, want[i], order[i])
		}
	}

	// Snapshot не должен извлекать элементы
	if q.Size() != 3 {
		t.Errorf("snapshot must not change size, got %d", q.Size())
	}
}
