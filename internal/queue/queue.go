package queue

import (
	"cmp"
	"container/heap"
	"context"
	"slices"
	"sync"
	"time"
)

// Element — элемент очереди с вычисленным временем готовности.
type Element[T any] struct {
	// Item — сама единица работы.
	Item T

	// Priority — приоритет (больше — раньше).
	Priority int

	// ReadyAt — момент, начиная с которого элемент можно извлечь.
	ReadyAt time.Time

	// EnqueuedAt — момент постановки в очередь.
	EnqueuedAt time.Time

	seq   uint64
	index int
}

// Queue — ограниченная очередь с приоритетами и задержкой.
//
// Готовые элементы упорядочены по (priority desc, порядок вставки asc).
// Отложенные элементы хранятся отдельно и переносятся в готовые лениво,
// при Offer/Poll/Take. Дедупликации нет.
//
// Потокобезопасна.
type Queue[T any] struct {
	mu       sync.Mutex
	capacity int
	seq      uint64
	ready    readyHeap[T]
	delayed  delayedHeap[T]
	changed  chan struct{}
	now      func() time.Time
}

// New создаёт очередь заданной ёмкости.
// capacity <= 0 — без ограничения.
func New[T any](capacity int) *Queue[T] {
	return &Queue[T]{
		capacity: capacity,
		changed:  make(chan struct{}),
		now:      time.Now,
	}
}

// Offer добавляет элемент с приоритетом и задержкой.
// Возвращает false, если очередь заполнена; размер при этом не меняется.
func (q *Queue[T]) Offer(item T, priority int, delay time.Duration) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.promote()
	if q.capacity > 0 && q.len() >= q.capacity {
		return false
	}
	q.push(item, priority, delay)
	return true
}

// Put добавляет элемент, игнорируя ёмкость.
// Используется для повторной постановки уже принятой работы.
func (q *Queue[T]) Put(item T, priority int, delay time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.promote()
	q.push(item, priority, delay)
}

// Poll извлекает самый приоритетный готовый элемент без ожидания.
func (q *Queue[T]) Poll() (Element[T], bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.promote()
	if q.ready.Len() == 0 {
		var zero Element[T]
		return zero, false
	}
	return *heap.Pop(&q.ready).(*Element[T]), true
}

// Take извлекает самый приоритетный готовый элемент,
// ожидая его появления или отмены ctx.
func (q *Queue[T]) Take(ctx context.Context) (Element[T], error) {
	for {
		q.mu.Lock()
		q.promote()
		if q.ready.Len() > 0 {
			el := heap.Pop(&q.ready).(*Element[T])
			q.mu.Unlock()
			return *el, nil
		}

		var timer *time.Timer
		var timeout <-chan time.Time
		if q.delayed.Len() > 0 {
			timer = time.NewTimer(q.delayed[0].ReadyAt.Sub(q.now()))
			timeout = timer.C
		}
		changed := q.changed
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			var zero Element[T]
			return zero, ctx.Err()
		case <-changed:
		case <-timeout:
		}
		if timer != nil {
			timer.Stop()
		}
	}
}

// Size возвращает общее количество элементов (готовых и отложенных).
func (q *Queue[T]) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.len()
}

// Snapshot возвращает копию всех элементов: сначала готовые в порядке
// извлечения, затем отложенные по времени готовности.
func (q *Queue[T]) Snapshot() []Element[T] {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.promote()

	ready := make([]Element[T], 0, q.ready.Len())
	for _, el := range q.ready {
		ready = append(ready, *el)
	}
	slices.SortFunc(ready, func(a, b Element[T]) int {
		if a.Priority != b.Priority {
			return cmp.Compare(b.Priority, a.Priority)
		}
		return cmp.Compare(a.seq, b.seq)
	})

	delayed := make([]Element[T], 0, q.delayed.Len())
	for _, el := range q.delayed {
		delayed = append(delayed, *el)
	}
	slices.SortFunc(delayed, func(a, b Element[T]) int {
		if c := a.ReadyAt.Compare(b.ReadyAt); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})

	return append(ready, delayed...)
}

func (q *Queue[T]) len() int {
	return q.ready.Len() + q.delayed.Len()
}

func (q *Queue[T]) push(item T, priority int, delay time.Duration) {
	now := q.now()
	q.seq++
	el := &Element[T]{
		Item:       item,
		Priority:   priority,
		ReadyAt:    now.Add(max(delay, 0)),
		EnqueuedAt: now,
		seq:        q.seq,
	}
	if delay <= 0 {
		heap.Push(&q.ready, el)
	} else {
		heap.Push(&q.delayed, el)
	}

	// Будим всех ожидающих в Take
	close(q.changed)
	q.changed = make(chan struct{})
}

// promote переносит созревшие отложенные элементы в готовые.
func (q *Queue[T]) promote() {
	now := q.now()
	for q.delayed.Len() > 0 && !q.delayed[0].ReadyAt.After(now) {
		el := heap.Pop(&q.delayed).(*Element[T])
		heap.Push(&q.ready, el)
	}
}
