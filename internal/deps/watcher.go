package deps

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher — push-уведомления о появлении локальных зависимостей.
//
// Для каждого отсутствующего пути наблюдается ближайшая существующая
// директория-предок. При создании пути вызывается onAvailable с ID
// действия; при создании промежуточной директории наблюдение
// переносится в неё.
type Watcher struct {
	fsw         *fsnotify.Watcher
	onAvailable func(actionID string)
	logger      *slog.Logger

	mu      sync.Mutex
	waiting map[string]map[string]struct{} // путь → ID действий
	watched map[string]bool                // наблюдаемые директории

	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// NewWatcher создаёт Watcher.
func NewWatcher(onAvailable func(actionID string), logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		fsw:         fsw,
		onAvailable: onAvailable,
		logger:      logger.With("component", "deps-watcher"),
		waiting:     make(map[string]map[string]struct{}),
		watched:     make(map[string]bool),
	}, nil
}

// Register регистрирует отсутствующие URI действия.
// Нелокальные URI игнорируются.
func (w *Watcher) Register(actionID string, uris []string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, uri := range uris {
		path, ok := LocalPath(uri)
		if !ok {
			continue
		}
		path = filepath.Clean(path)

		ids, ok := w.waiting[path]
		if !ok {
			ids = make(map[string]struct{})
			w.waiting[path] = ids
		}
		ids[actionID] = struct{}{}

		if err := w.watchAncestor(path); err != nil {
			w.logger.Warn("cannot watch dependency", "path", path, "error", err)
		}
	}
}

// Pending возвращает количество ожидаемых путей.
func (w *Watcher) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.waiting)
}

// Start запускает обработку событий.
func (w *Watcher) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.loop(ctx)
	}()
	return nil
}

// Stop останавливает Watcher и освобождает ресурсы.
func (w *Watcher) Stop() {
	if w.cancelFunc != nil {
		w.cancelFunc()
	}
	w.wg.Wait()
	w.fsw.Close()
}

func (w *Watcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) || event.Has(fsnotify.Rename) {
				w.handle(event.Name)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("fsnotify error", "error", err)
		}
	}
}

// handle обрабатывает появление пути.
func (w *Watcher) handle(name string) {
	name = filepath.Clean(name)

	w.mu.Lock()
	var fired []string
	for path, ids := range w.waiting {
		switch {
		case path == name:
			if _, err := os.Stat(path); err != nil {
				continue
			}
			for id := range ids {
				fired = append(fired, id)
			}
			delete(w.waiting, path)
		case strings.HasPrefix(path, name+string(filepath.Separator)):
			// Появилась промежуточная директория — переносим наблюдение
			if err := w.watchAncestor(path); err != nil {
				w.logger.Warn("cannot watch dependency", "path", path, "error", err)
			}
			if _, err := os.Stat(path); err == nil {
				for id := range ids {
					fired = append(fired, id)
				}
				delete(w.waiting, path)
			}
		}
	}
	w.mu.Unlock()

	for _, id := range fired {
		w.logger.Debug("dependency available", "path", name, "action_id", id)
		w.onAvailable(id)
	}
}

// watchAncestor добавляет наблюдение за ближайшей существующей директорией-предком.
// Вызывается под w.mu.
func (w *Watcher) watchAncestor(path string) error {
	dir := filepath.Dir(path)
	for {
		info, err := os.Stat(dir)
		if err == nil && info.IsDir() {
			break
		}
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return os.ErrNotExist
		}
		dir = parent
	}

	if w.watched[dir] {
		return nil
	}
	if err := w.fsw.Add(dir); err != nil {
		return err
	}
	w.watched[dir] = true
	return nil
}
