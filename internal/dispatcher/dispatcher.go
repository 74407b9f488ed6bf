package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/shaiso/Coordinator/internal/command"
	"github.com/shaiso/Coordinator/internal/queue"
	"github.com/shaiso/Coordinator/internal/sysmode"
)

// Default configuration values.
const (
	defaultThreads          = 10
	defaultQueueSize        = 10000
	defaultMaxConcurrency   = 3
	defaultConcurrencyDelay = 500 * time.Millisecond
	defaultSafeModeDelay    = 60 * time.Second
	stopTimeout             = 30 * time.Second
)

// Config — конфигурация Dispatcher.
type Config struct {
	Threads          int           // размер пула (default: 10)
	QueueSize        int           // ёмкость очереди (default: 10000)
	MaxConcurrency   int           // лимит одновременных единиц одного типа (default: 3)
	ConcurrencyDelay time.Duration // задержка при превышении лимита (default: 500ms)
	SafeModeDelay    time.Duration // задержка в SAFEMODE (default: 60s)

	// Mode — переключатель режима; nil — всегда NORMAL.
	Mode *sysmode.Switch

	// Registerer для метрик; nil — отдельный registry.
	Registerer prometheus.Registerer

	Logger *slog.Logger
}

// Dispatcher выполняет единицы работы из очереди с приоритетами
// фиксированным пулом горутин.
//
// Перед запуском каждой единицы проверяются режим системы и лимит
// параллелизма её типа; не прошедшие проверку единицы возвращаются
// в очередь с задержкой.
type Dispatcher struct {
	queue  *queue.Queue[command.Callable]
	active *activeSet
	mode   *sysmode.Switch

	threads          int
	maxConcurrency   int
	concurrencyDelay time.Duration
	safeModeDelay    time.Duration

	metrics *metrics

	// Lifecycle
	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// New создаёт Dispatcher.
func New(cfg Config) *Dispatcher {
	threads := cfg.Threads
	if threads <= 0 {
		threads = defaultThreads
	}

	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	maxConcurrency := cfg.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = defaultMaxConcurrency
	}

	concurrencyDelay := cfg.ConcurrencyDelay
	if concurrencyDelay <= 0 {
		concurrencyDelay = defaultConcurrencyDelay
	}

	safeModeDelay := cfg.SafeModeDelay
	if safeModeDelay <= 0 {
		safeModeDelay = defaultSafeModeDelay
	}

	reg := cfg.Registerer
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	d := &Dispatcher{
		queue:            queue.New[command.Callable](queueSize),
		active:           newActiveSet(),
		mode:             cfg.Mode,
		threads:          threads,
		maxConcurrency:   maxConcurrency,
		concurrencyDelay: concurrencyDelay,
		safeModeDelay:    safeModeDelay,
		logger:           logger.With("component", "dispatcher"),
	}
	d.metrics = newMetrics(reg, d.queue.Size)
	return d
}

// Start запускает пул из Threads горутин.
func (d *Dispatcher) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancelFunc = cancel

	d.logger.Info("starting dispatcher",
		"threads", d.threads,
		"max_concurrency", d.maxConcurrency,
	)

	for i := 0; i < d.threads; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.loop(ctx)
		}()
	}

	d.logger.Info("dispatcher started")
	return nil
}

// Stop останавливает пул и ждёт завершения выполняемых единиц,
// но не дольше 30 секунд. Оставшиеся в очереди единицы теряются.
func (d *Dispatcher) Stop() {
	d.stoppedMu.Lock()
	d.stopped = true
	d.stoppedMu.Unlock()

	d.logger.Info("stopping dispatcher...")

	if d.cancelFunc != nil {
		d.cancelFunc()
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("dispatcher stopped")
	case <-time.After(stopTimeout):
		d.logger.Warn("dispatcher stop timed out", "timeout", stopTimeout)
	}
}

// IsStopped проверяет, остановлен ли Dispatcher.
func (d *Dispatcher) IsStopped() bool {
	d.stoppedMu.RLock()
	defer d.stoppedMu.RUnlock()
	return d.stopped
}

// Submit ставит единицу в очередь с задержкой.
func (d *Dispatcher) Submit(c command.Callable, delay time.Duration) error {
	if d.IsStopped() {
		return ErrStopped
	}
	if d.mode.IsSafeMode() {
		return fmt.Errorf("%w: %s", ErrSafeMode, c.Name())
	}
	if !d.queue.Offer(c, c.Priority(), delay) {
		d.logger.Warn("queue full, rejecting", "callable", c.Name(), "size", d.queue.Size())
		return fmt.Errorf("%w: %s", ErrQueueFull, c.Name())
	}

	d.metrics.queued.Inc()
	d.logger.Debug("queued", "callable", c.Name(), "delay", delay)
	return nil
}

// SubmitSerial ставит в очередь одну составную единицу, выполняющую
// cs последовательно.
func (d *Dispatcher) SubmitSerial(cs []command.Callable, delay time.Duration) error {
	switch len(cs) {
	case 0:
		return ErrEmptyBatch
	case 1:
		return d.Submit(cs[0], delay)
	}
	return d.Submit(newComposite(cs), delay)
}

// QueueSize возвращает количество единиц в очереди.
func (d *Dispatcher) QueueSize() int {
	return d.queue.Size()
}

// Dump возвращает описания ожидающих единиц: сначала готовые
// в порядке извлечения, затем отложенные.
func (d *Dispatcher) Dump() []string {
	now := time.Now()
	elements := d.queue.Snapshot()

	out := make([]string, 0, len(elements))
	for _, el := range elements {
		s := fmt.Sprintf("%s priority=%d", el.Item.Name(), el.Priority)
		if wait := el.ReadyAt.Sub(now); wait > 0 {
			s += fmt.Sprintf(" ready_in=%s", wait.Round(time.Millisecond))
		}
		out = append(out, s)
	}
	return out
}

// Active возвращает количество выполняемых единиц по ключу типа.
func (d *Dispatcher) Active() map[string]int {
	return d.active.snapshot()
}

// loop — цикл одной горутины пула.
func (d *Dispatcher) loop(ctx context.Context) {
	for {
		el, err := d.queue.Take(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				d.logger.Error("take failed", "error", err)
			}
			return
		}
		d.dispatch(ctx, el)
	}
}

// dispatch проверяет режим и лимит параллелизма и выполняет единицу.
func (d *Dispatcher) dispatch(ctx context.Context, el queue.Element[command.Callable]) {
	c := el.Item

	if d.mode.IsSafeMode() {
		d.logger.Debug("safe mode, deferring", "callable", c.Name(), "delay", d.safeModeDelay)
		d.queue.Put(c, el.Priority, d.safeModeDelay)
		return
	}

	key := kindKey(c)
	if !d.active.acquire(key, d.maxConcurrency) {
		d.metrics.concurrencyExceeded.WithLabelValues(key).Inc()
		d.logger.Debug("concurrency exceeded, deferring",
			"callable", c.Name(),
			"kind", key,
			"delay", d.concurrencyDelay,
		)
		d.queue.Put(c, el.Priority, d.concurrencyDelay)
		return
	}
	defer d.active.release(key)

	d.metrics.timeInQueue.Observe(time.Since(el.ReadyAt).Seconds())
	d.metrics.active.Inc()
	defer d.metrics.active.Dec()

	if comp, ok := c.(*composite); ok {
		for _, m := range comp.members {
			d.run(ctx, m)
		}
		return
	}
	d.run(ctx, c)
}

// run выполняет одну единицу, перехватывая ошибку и панику.
func (d *Dispatcher) run(ctx context.Context, c command.Callable) {
	defer func() {
		if r := recover(); r != nil {
			d.metrics.failed.Inc()
			d.logger.Error("callable panicked", "callable", c.Name(), "panic", r)
		}
	}()

	err := c.Call(ctx)
	d.metrics.executed.Inc()
	if err != nil {
		d.metrics.failed.Inc()
		d.logger.Warn("callable failed", "callable", c.Name(), "error", err)
	}
}
