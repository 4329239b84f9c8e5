// Package dispatch fans recordings out to a bounded pool of pipeline
// workers while guaranteeing at most one worker per recording.
package dispatch

import (
	"context"
	"log/slog"
	"sync"

	"recap/internal/logging"
	"recap/internal/recording"
)

// Func processes one recording to a terminal state.
type Func func(ctx context.Context, rec *recording.Recording)

// Dispatcher tracks in-flight recording IDs and caps concurrency with a
// semaphore channel.
type Dispatcher struct {
	sem    chan struct{}
	logger *slog.Logger

	mu     sync.Mutex
	active map[int64]struct{}
	wg     sync.WaitGroup
}

// New builds a dispatcher with the given worker cap.
func New(workers int, logger *slog.Logger) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Dispatcher{
		sem:    make(chan struct{}, workers),
		logger: logger,
		active: make(map[int64]struct{}),
	}
}

// Submit schedules the recording for processing. It returns false when
// the recording is already in flight, so pollers can requeue safely.
func (d *Dispatcher) Submit(ctx context.Context, rec *recording.Recording, fn Func) bool {
	d.mu.Lock()
	if _, busy := d.active[rec.ID]; busy {
		d.mu.Unlock()
		return false
	}
	d.active[rec.ID] = struct{}{}
	d.mu.Unlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.release(rec.ID)

		select {
		case d.sem <- struct{}{}:
		case <-ctx.Done():
			return
		}
		defer func() { <-d.sem }()

		fn(ctx, rec)
	}()
	return true
}

func (d *Dispatcher) release(id int64) {
	d.mu.Lock()
	delete(d.active, id)
	d.mu.Unlock()
}

// ActiveCount returns how many recordings are claimed.
func (d *Dispatcher) ActiveCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.active)
}

// Wait blocks until every submitted recording has finished or abandoned
// its slot.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
