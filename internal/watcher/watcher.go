// Package watcher re-runs the analysis pipeline when capture files
// change on disk. SCP drops and editor saves produce several events per
// file; a debounce window coalesces each burst into a single run.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"auspex/internal/logging"
	"auspex/internal/pipeline"
	"auspex/internal/workspace"
)

// DefaultDebounce is how long a change burst must settle before a run
// starts.
const DefaultDebounce = 2 * time.Second

// Runner runs one analysis pass. *pipeline.Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, opts pipeline.Options) (*pipeline.Result, error)
}

// Watcher watches the capture directories and triggers an unscoped
// pipeline run once changes settle. Watch errors are logged, never
// fatal: a broken watch degrades to manual runs.
type Watcher struct {
	paths    workspace.Paths
	runner   Runner
	debounce time.Duration
	log      *logging.Logger

	cancel  context.CancelFunc
	stopped chan struct{}

	mu            sync.Mutex
	debounceTimer *time.Timer
}

// New creates a watcher over the capture tree. A non-positive debounce
// falls back to DefaultDebounce.
func New(paths workspace.Paths, runner Runner, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		paths:    paths,
		runner:   runner,
		debounce: debounce,
		log:      logging.GetLogger("watcher"),
		stopped:  make(chan struct{}),
	}
}

// Start begins watching the capture directories. The watches are
// registered before the event loop starts so no change can slip
// between the two.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}

	// fsnotify watches are not recursive; the baseline directory needs
	// its own entry.
	for _, dir := range []string{w.paths.ShowLogsDir, w.paths.BaselineDir} {
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	watchCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	go w.watchLoop(watchCtx, fsw)

	w.log.Info("Watching %s for capture changes (debounce %s)", w.paths.ShowLogsDir, w.debounce)
	return nil
}

func (w *Watcher) watchLoop(ctx context.Context, fsw *fsnotify.Watcher) {
	defer close(w.stopped)
	defer fsw.Close()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if !isCaptureEvent(event) {
				continue
			}
			w.log.Debug("Capture change: %s (%s)", event.Name, event.Op)
			w.bump(ctx)

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("File watcher error: %v", err)
		}
	}
}

// isCaptureEvent keeps markdown capture changes and drops editor noise
// (swap files, hidden temp names, directory chmods).
func isCaptureEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
		return false
	}
	base := filepath.Base(event.Name)
	return strings.HasSuffix(base, ".md") && !strings.HasPrefix(base, ".")
}

// bump starts or resets the debounce timer. Every event during a burst
// pushes the run further out until the burst settles.
func (w *Watcher) bump(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debounce, func() { w.runOnce(ctx) })
}

func (w *Watcher) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	w.log.Info("Capture changes settled; starting analysis run")
	res, err := w.runner.Run(ctx, pipeline.Options{})
	switch {
	case errors.Is(err, pipeline.ErrBusy):
		// The change is not lost: try again once the active run ends.
		w.log.Info("Analysis already in progress; retrying in %s", w.debounce)
		w.bump(ctx)
	case err != nil:
		w.log.Error("Watch-triggered run failed: %v", err)
	default:
		w.log.Info("Watch-triggered run %s complete", res.RunID)
	}
}

// Stop cancels the watch loop and waits for it to exit.
func (w *Watcher) Stop(ctx context.Context) error {
	if w.cancel == nil {
		return nil
	}
	w.cancel()

	w.mu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.mu.Unlock()

	select {
	case <-w.stopped:
		w.log.Info("Capture watcher stopped")
		return nil
	case <-ctx.Done():
		w.log.Warn("Capture watcher shutdown timeout")
		return ctx.Err()
	}
}

// Name implements lifecycle.Component.
func (w *Watcher) Name() string { return "capture watcher" }
