package queue

// readyHeap — куча готовых элементов: priority desc, затем порядок вставки.
type readyHeap[T any] []*Element[T]

func (h readyHeap[T]) Len() int { return len(h) }

func (h readyHeap[T]) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority > h[j].Priority
	}
	return h[i].seq < h[j].seq
}

func (h readyHeap[T]) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *readyHeap[T]) Push(x any) {
	el := x.(*Element[T])
	el.index = len(*h)
	*h = append(*h, el)
}

func (h *readyHeap[T]) Pop() any {
	old := *h
	n := len(old)
	el := old[n-1]
	old[n-1] = nil
	el.index = -1
	*h = old[:n-1]
	return el
}

// delayedHeap — куча отложенных элементов по времени готовности.
type delayedHeap[T any] []*Element[T]

func (h delayedHeap[T]) Len() int { return len(h) }

func (h delayedHeap[T]) Less(i, j int) bool {
	if !h[i].ReadyAt.Equal(h[j].ReadyAt) {
		return h[i].ReadyAt.Before(h[j].ReadyAt)
	}
	return h[i].seq < h[j].seq
}

func (h delayedHeap[T]) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *delayedHeap[T]) Push(x any) {
	el := x.(*Element[T])
	el.index = len(*h)
	*h = append(*h, el)
}

func (h *delayedHeap[T]) Pop() any {
	old := *h
	n := len(old)
	el := old[n-1]
	old[n-1] = nil
	el.index = -1
	*h = old[:n-1]
	return el
}
