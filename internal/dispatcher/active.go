package dispatcher

import "sync"

// activeSet — счётчики выполняемых единиц по ключу типа.
// Принадлежит конкретному Dispatcher.
type activeSet struct {
	mu     sync.Mutex
	counts map[string]int
}

func newActiveSet() *activeSet {
	return &activeSet{counts: make(map[string]int)}
}

// acquire занимает слот ключа; false — если лимит max уже достигнут.
// max <= 0 — без ограничения.
func (a *activeSet) acquire(key string, max int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if max > 0 && a.counts[key] >= max {
		return false
	}
	a.counts[key]++
	return true
}

// release освобождает слот ключа.
func (a *activeSet) release(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.counts[key]--
	if a.counts[key] <= 0 {
		delete(a.counts, key)
	}
}

// snapshot возвращает копию счётчиков.
func (a *activeSet) snapshot() map[string]int {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[string]int, len(a.counts))
	for k, v := range a.counts {
		out[k] = v
	}
	return out
}
