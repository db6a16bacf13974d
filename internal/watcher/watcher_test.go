package watcher

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auspex/internal/pipeline"
	"auspex/internal/workspace"
)

type fakeRunner struct {
	mu   sync.Mutex
	errs []error
	got  []pipeline.Options
}

func (f *fakeRunner) Run(_ context.Context, opts pipeline.Options) (*pipeline.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, opts)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &pipeline.Result{RunID: "test"}, nil
}

func (f *fakeRunner) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.got)
}

func startWatcher(t *testing.T, runner Runner, debounce time.Duration) workspace.Paths {
	t.Helper()
	paths, err := workspace.Resolve(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, paths.EnsureDirs())

	w := New(paths, runner, debounce)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = w.Stop(ctx)
	})
	return paths
}

func TestBurstTriggersOneRun(t *testing.T) {
	runner := &fakeRunner{}
	paths := startWatcher(t, runner, 50*time.Millisecond)

	// Three captures dropped in quick succession settle into one run.
	for _, host := range []string{"r1", "r2", "r3"} {
		require.NoError(t, os.WriteFile(paths.HostCapturePath(host), []byte("# capture"), 0o644))
	}

	require.Eventually(t, func() bool { return runner.calls() >= 1 },
		3*time.Second, 20*time.Millisecond)
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 1, runner.calls())
	assert.Equal(t, pipeline.Options{}, runner.got[0])
}

func TestBusyRunRetries(t *testing.T) {
	runner := &fakeRunner{errs: []error{pipeline.ErrBusy, nil}}
	paths := startWatcher(t, runner, 30*time.Millisecond)

	require.NoError(t, os.WriteFile(paths.HostCapturePath("r1"), []byte("# capture"), 0o644))

	require.Eventually(t, func() bool { return runner.calls() >= 2 },
		3*time.Second, 20*time.Millisecond)
}

func TestIgnoresNonCaptureFiles(t *testing.T) {
	assert.True(t, isCaptureEvent(fsnotify.Event{Name: "/x/r1.md", Op: fsnotify.Write}))
	assert.True(t, isCaptureEvent(fsnotify.Event{Name: "/x/r1.md", Op: fsnotify.Create}))
	assert.False(t, isCaptureEvent(fsnotify.Event{Name: "/x/r1.md", Op: fsnotify.Chmod}))
	assert.False(t, isCaptureEvent(fsnotify.Event{Name: "/x/notes.txt", Op: fsnotify.Write}))
	assert.False(t, isCaptureEvent(fsnotify.Event{Name: "/x/.r1.md.swp", Op: fsnotify.Write}))
	assert.False(t, isCaptureEvent(fsnotify.Event{Name: "/x/.r1.md", Op: fsnotify.Create}))
}

func TestStopBeforeStart(t *testing.T) {
	w := New(workspace.Paths{}, &fakeRunner{}, 0)
	assert.NoError(t, w.Stop(context.Background()))
}
