// Package daemon coordinates the upload API, drop-directory watcher, and
// pipeline workers, and enforces single-instance execution.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"recap/internal/config"
	"recap/internal/deps"
	"recap/internal/dispatch"
	"recap/internal/logging"
	"recap/internal/pipeline"
	"recap/internal/recording"
	"recap/internal/stage"
	"recap/internal/watch"
)

// Daemon owns the background services of a running recap instance.
type Daemon struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      *recording.Store
	runner     *pipeline.Runner
	dispatcher *dispatch.Dispatcher

	lockPath string
	lock     *flock.Flock

	api     *apiServer
	watcher *watch.Watcher

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	DatabasePath string
	LockFilePath string
	Active       int
	Stats        map[recording.Status]int
	Stages       []stage.Health
	Dependencies []deps.Status
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *recording.Store, logger *slog.Logger, runner *pipeline.Runner) (*Daemon, error) {
	if cfg == nil || store == nil || runner == nil {
		return nil, errors.New("daemon requires config, store, and pipeline runner")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := filepath.Join(cfg.Paths.LogDir, "recapd.lock")
	return &Daemon{
		cfg:        cfg,
		logger:     logger.With(logging.String(logging.FieldComponent, "daemon")),
		store:      store,
		runner:     runner,
		dispatcher: dispatch.New(cfg.Workflow.Workers, logger),
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, sweeps stale work, and launches the
// API server, poll loop, and optional drop-directory watcher.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := d.cfg.EnsureDirectories(); err != nil {
		return err
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another recap daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)

	// Recordings caught mid-flight by a previous shutdown are failed,
	// never resumed.
	swept, err := d.store.FailStaleProcessing(d.ctx, recording.DaemonStopReason)
	if err != nil {
		d.releaseLock()
		d.cancel()
		return fmt.Errorf("sweep stale recordings: %w", err)
	}
	if swept > 0 {
		d.logger.Warn("failed stale in-flight recordings from previous run",
			logging.Int64("count", swept))
	}

	server, err := newAPIServer(d.cfg, d, d.logger)
	if err != nil {
		d.releaseLock()
		d.cancel()
		return err
	}
	d.api = server
	if err := d.api.start(d.ctx); err != nil {
		d.releaseLock()
		d.cancel()
		return err
	}

	if d.cfg.Watch.Enabled {
		watcher, err := watch.New(d.cfg, d.ingestDropped, d.logger)
		if err != nil {
			d.api.stop()
			d.releaseLock()
			d.cancel()
			return fmt.Errorf("start watcher: %w", err)
		}
		d.watcher = watcher
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			_ = d.watcher.Run(d.ctx)
		}()
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.pollLoop(d.ctx)
	}()

	d.running.Store(true)
	d.logger.Info("recap daemon started",
		logging.String("lock", d.lockPath),
		logging.Int("workers", d.cfg.Workflow.Workers),
	)
	return nil
}

// Stop halts background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.api != nil {
		d.api.stop()
	}
	if d.watcher != nil {
		_ = d.watcher.Close()
	}
	d.wg.Wait()
	d.dispatcher.Wait()
	d.releaseLock()
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("recap daemon stopped")
}

func (d *Daemon) releaseLock() {
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
}

// Close stops the daemon and releases the store.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// APIAddr returns the bound API address, or "" before Start.
func (d *Daemon) APIAddr() string {
	if d.api == nil {
		return ""
	}
	return d.api.addr()
}

// Status reports runtime diagnostics.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DatabasePath: d.cfg.Paths.DatabasePath,
		LockFilePath: d.lockPath,
		Active:       d.dispatcher.ActiveCount(),
		Stages:       d.runner.Health(ctx),
		Dependencies: deps.CheckBinaries(deps.Requirements(d.cfg)),
	}
	if stats, err := d.store.Stats(ctx); err == nil {
		status.Stats = stats
	}
	return status
}

// pollLoop feeds ready recordings to the dispatcher until shutdown.
func (d *Daemon) pollLoop(ctx context.Context) {
	pollInterval := time.Duration(d.cfg.Workflow.QueuePollInterval) * time.Second
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	retryInterval := time.Duration(d.cfg.Workflow.ErrorRetryInterval) * time.Second
	if retryInterval <= 0 {
		retryInterval = pollInterval
	}
	startStatuses := d.runner.StartStatuses()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		rec, err := d.store.NextForStatuses(ctx, startStatuses...)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return
			}
			d.logger.Error("poll recordings failed", logging.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(retryInterval):
			}
			continue
		case rec != nil:
			d.dispatcher.Submit(ctx, rec, d.process)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (d *Daemon) process(ctx context.Context, rec *recording.Recording) {
	if err := d.runner.Run(ctx, rec); err != nil {
		// The runner already persisted the failure.
		d.logger.Error("recording processing failed",
			logging.Int64(logging.FieldRecordingID, rec.ID),
			logging.Error(err),
		)
		return
	}
	d.logger.Info("recording processed",
		logging.Int64(logging.FieldRecordingID, rec.ID),
		logging.String("status", string(rec.Status)),
	)
}

// IngestFile registers a media file that already sits in the videos
// directory (or moves it there first) and queues it for processing.
func (d *Daemon) IngestFile(ctx context.Context, path, title string) (*recording.Recording, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat ingest file: %w", err)
	}
	ext := filepath.Ext(path)
	if !d.cfg.AllowsExtension(ext) {
		return nil, fmt.Errorf("extension %q not allowed", ext)
	}
	if info.Size() > d.cfg.MaxUploadBytes() {
		return nil, fmt.Errorf("file exceeds upload cap of %d MB", d.cfg.Upload.MaxSizeMB)
	}

	dest := path
	if filepath.Dir(path) != filepath.Clean(d.cfg.Paths.VideosDir) {
		dest = filepath.Join(d.cfg.Paths.VideosDir, uniqueFilename(filepath.Base(path)))
		if err := moveFile(path, dest); err != nil {
			return nil, fmt.Errorf("move into videos dir: %w", err)
		}
	}

	if title = strings.TrimSpace(title); title == "" {
		title = strings.TrimSuffix(filepath.Base(dest), filepath.Ext(dest))
	}
	sizeMB := float64(info.Size()) / (1024 * 1024)
	rec, err := d.store.NewRecording(ctx, title, dest, sizeMB, uuid.NewString())
	if err != nil {
		return nil, err
	}
	d.logger.Info("recording ingested",
		logging.Int64(logging.FieldRecordingID, rec.ID),
		logging.String("source", dest),
	)
	return rec, nil
}

func (d *Daemon) ingestDropped(ctx context.Context, path string) error {
	_, err := d.IngestFile(ctx, path, "")
	return err
}

// Remove deletes a recording row and its on-disk artifacts.
func (d *Daemon) Remove(ctx context.Context, id int64) (bool, error) {
	rec, err := d.store.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if rec == nil {
		return false, nil
	}
	removed, err := d.store.Remove(ctx, id)
	if err != nil || !removed {
		return removed, err
	}
	for _, artifact := range rec.ArtifactPaths() {
		if err := os.Remove(artifact); err != nil && !errors.Is(err, os.ErrNotExist) {
			d.logger.Warn("failed to remove artifact",
				logging.Int64(logging.FieldRecordingID, id),
				logging.String("path", artifact),
				logging.Error(err),
			)
		}
	}
	return true, nil
}

func uniqueFilename(base string) string {
	return fmt.Sprintf("%s_%s", time.Now().UTC().Format("20060102_150405"), sanitizeFilename(base))
}

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "recording"
	}
	return b.String()
}

// moveFile renames when possible and falls back to copy+remove for
// cross-device drops.
func moveFile(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		_ = os.Remove(dest)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
