package store

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHolder_ReloadKeepsPreviousOnError(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nodes.yaml")
	writeFile(t, path, sampleDoc)

	h, err := NewHolder(path, zap.NewNop())
	require.NoError(t, err)
	first := h.Current()
	require.Len(t, first.Nodes, 3)

	writeFile(t, path, "nodes: [")
	assert.Error(t, h.Reload())
	assert.Same(t, first, h.Current())

	writeFile(t, path, "nodes:\n  - id: 1\n")
	require.NoError(t, h.Reload())
	assert.Len(t, h.Current().Nodes, 1)
	// The old state is untouched by the swap.
	assert.Len(t, first.Nodes, 3)
}

func TestHolder_SubscribeRunsOnReload(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nodes.yaml")
	h, err := NewHolder(path, nil)
	require.NoError(t, err)
	assert.Empty(t, h.Current().Nodes)

	var calls atomic.Int32
	h.Subscribe(func(st *State) {
		calls.Add(1)
		assert.Len(t, st.Nodes, 3)
	})

	writeFile(t, path, sampleDoc)
	require.NoError(t, h.Reload())
	assert.Equal(t, int32(1), calls.Load())
}

func TestHolder_NewHolderFailsOnBadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nodes.yaml")
	writeFile(t, path, "nodes:\n  - id: 1\n    relay_suffix: -3\n")

	_, err := NewHolder(path, nil)
	assert.Error(t, err)
}

func TestHolder_WatchReloadsOnWrite(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	watchUntilReloaded(t, dir, filepath.Join(dir, "nodes.yaml"))
}

func TestHolder_WatchCreatesMissingDirectory(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "later")
	watchUntilReloaded(t, dir, filepath.Join(dir, "nodes.yaml"))
}

// watchUntilReloaded starts Watch on path and writes sampleDoc until the reload lands.
func watchUntilReloaded(t *testing.T, dir, path string) {
	t.Helper()

	h, err := NewHolder(path, nil)
	require.NoError(t, err)
	assert.Empty(t, h.Current().Nodes)
	h.debounce = 10 * time.Millisecond

	reloaded := make(chan int, 8)
	h.Subscribe(func(st *State) {
		select {
		case reloaded <- len(st.Nodes):
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Watch(ctx) }()

	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()

loop:
	for {
		select {
		case err := <-done:
			t.Fatalf("watch returned early: %v", err)
		case n := <-reloaded:
			if n == 3 {
				break loop
			}
		case <-tick.C:
			// Writes are retried because the first ones may race the watcher setup
			// or the directory creation.
			if _, err := os.Stat(dir); err != nil {
				continue
			}
			// Unrelated files in the same directory are ignored.
			writeFile(t, filepath.Join(dir, "other.yaml"), "x: 1\n")
			writeFile(t, path, sampleDoc)
		case <-deadline:
			t.Fatal("snapshot was not reloaded")
		}
	}
	assert.Len(t, h.Current().Nodes, 3)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
