package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

const defaultShards = 64

// ErrTimeout — блокировку не удалось получить за отведённое время.
var ErrTimeout = errors.New("lock timeout")

// Table — шардированная таблица эксклюзивных блокировок по ключу сущности.
//
// Запись для ключа создаётся при первом обращении и удаляется,
// когда её больше никто не держит и не ждёт. Ключи разных сущностей
// попадают в разные шарды и не конкурируют за общий мьютекс.
type Table struct {
	shards []shard
}

type shard struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// entry — семафор на один ключ; refs — держатели плюс ожидающие.
type entry struct {
	sem  chan struct{}
	refs int
}

// NewTable создаёт таблицу с заданным числом шардов (<= 0 — по умолчанию).
func NewTable(shards int) *Table {
	if shards <= 0 {
		shards = defaultShards
	}
	t := &Table{shards: make([]shard, shards)}
	for i := range t.shards {
		t.shards[i].entries = make(map[string]*entry)
	}
	return t
}

// Acquire захватывает блокировку key, ожидая не дольше timeout
// (timeout <= 0 — ждать до отмены ctx).
//
// Возвращает функцию освобождения; её нужно вызвать ровно один раз.
func (t *Table) Acquire(ctx context.Context, key string, timeout time.Duration) (func(), error) {
	s := t.shardFor(key)
	e := s.ref(key)

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		s.unref(key, e)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", ErrTimeout, key)
		}
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			s.unref(key, e)
		})
	}, nil
}

// TryAcquire захватывает блокировку без ожидания.
func (t *Table) TryAcquire(key string) (func(), bool) {
	s := t.shardFor(key)
	e := s.ref(key)

	select {
	case e.sem <- struct{}{}:
	default:
		s.unref(key, e)
		return nil, false
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			s.unref(key, e)
		})
	}, true
}

// Len возвращает количество живых записей (для тестов и метрик).
func (t *Table) Len() int {
	n := 0
	for i := range t.shards {
		s := &t.shards[i]
		s.mu.Lock()
		n += len(s.entries)
		s.mu.Unlock()
	}
	return n
}

func (t *Table) shardFor(key string) *shard {
	return &t.shards[xxhash.Sum64String(key)%uint64(len(t.shards))]
}

func (s *shard) ref(key string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		s.entries[key] = e
	}
	e.refs++
	return e
}

func (s *shard) unref(key string, e *entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(s.entries, key)
	}
}
