// Package watch monitors a drop directory and submits recordings once
// they stop growing.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"recap/internal/config"
	"recap/internal/logging"
)

// Handler ingests one settled file from the drop directory.
type Handler func(ctx context.Context, path string) error

// Watcher debounces filesystem events per path. Recorders write files
// incrementally, so a file only counts as dropped after settle time
// passes without further writes.
type Watcher struct {
	cfg     *config.Config
	settle  time.Duration
	handler Handler
	logger  *slog.Logger
	fs      *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]*time.Timer
	wg      sync.WaitGroup
}

// New creates a watcher over cfg.Watch.Dir.
func New(cfg *config.Config, handler Handler, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fs.Add(cfg.Watch.Dir); err != nil {
		fs.Close()
		return nil, fmt.Errorf("watch %s: %w", cfg.Watch.Dir, err)
	}
	settle := time.Duration(cfg.Watch.SettleSeconds) * time.Second
	if settle <= 0 {
		settle = 3 * time.Second
	}
	return &Watcher{
		cfg:     cfg,
		settle:  settle,
		handler: handler,
		logger:  logger.With(logging.String(logging.FieldComponent, "watch")),
		fs:      fs,
		pending: make(map[string]*time.Timer),
	}, nil
}

// Run processes events until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Info("watching drop directory",
		logging.String("dir", w.cfg.Watch.Dir),
		logging.Duration("settle", w.settle),
	)
	for {
		select {
		case <-ctx.Done():
			w.drainTimers()
			w.wg.Wait()
			return ctx.Err()
		case event, ok := <-w.fs.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !w.cfg.AllowsExtension(filepath.Ext(event.Name)) {
				continue
			}
			w.touch(ctx, event.Name)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("watcher error", logging.Error(err))
		}
	}
}

// touch resets the settle timer for a path; the handler fires only when
// the file has been quiet for the full settle window.
func (w *Watcher) touch(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Reset(w.settle)
		return
	}
	w.pending[path] = time.AfterFunc(w.settle, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		w.wg.Add(1)
		defer w.wg.Done()
		if err := w.handler(ctx, path); err != nil {
			w.logger.Error("ingest dropped file failed",
				logging.String("path", path),
				logging.Error(err),
			)
			return
		}
		w.logger.Info("ingested dropped file", logging.String("path", path))
	})
}

func (w *Watcher) drainTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
}

// Close releases the underlying filesystem watcher.
func (w *Watcher) Close() error {
	return w.fs.Close()
}
