package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"meshdiag/internal/metrics"
)

// DefaultDebounce coalesces bursts of file events into one reload.
const DefaultDebounce = 200 * time.Millisecond

// Holder serves the latest successfully loaded snapshot.
// Readers should call Current once per request and use that State throughout.
type Holder struct {
	path     string
	log      *zap.Logger
	debounce time.Duration

	cur atomic.Pointer[State]

	mu        sync.Mutex
	listeners []func(*State)
}

// NewHolder loads path and returns a holder for it.
func NewHolder(path string, logger *zap.Logger) (*Holder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Holder{
		path:     path,
		log:      logger.Named("store"),
		debounce: DefaultDebounce,
	}
	st, err := LoadState(path)
	if err != nil {
		return nil, err
	}
	h.cur.Store(st)
	metrics.ObserveReload(len(st.Nodes), nil)
	return h, nil
}

// Current returns the active snapshot. Never nil.
func (h *Holder) Current() *State {
	return h.cur.Load()
}

// Subscribe registers fn to run after every successful reload.
func (h *Holder) Subscribe(fn func(*State)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, fn)
}

// Reload re-reads the file. On failure the previous snapshot stays active.
func (h *Holder) Reload() error {
	st, err := LoadState(h.path)
	if err != nil {
		metrics.ObserveReload(0, err)
		h.log.Warn("snapshot reload failed, keeping previous", zap.String("path", h.path), zap.Error(err))
		return err
	}
	h.cur.Store(st)
	metrics.ObserveReload(len(st.Nodes), nil)
	h.log.Info("snapshot loaded", zap.String("path", h.path), zap.Int("nodes", len(st.Nodes)))

	h.mu.Lock()
	listeners := append([]func(*State){}, h.listeners...)
	h.mu.Unlock()
	for _, fn := range listeners {
		fn(st)
	}
	return nil
}

// Watch reloads the snapshot whenever the file changes. It blocks until ctx
// is cancelled. The parent directory is watched so atomic renames are seen.
func (h *Holder) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch %s: %w", h.path, err)
	}
	defer watcher.Close()

	dir := filepath.Dir(h.path)
	base := filepath.Base(h.path)
	// The snapshot may not exist yet; its directory must, for the watch to see it appear.
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	h.log.Debug("watching snapshot", zap.String("path", h.path))

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(h.debounce)
			} else {
				timer.Reset(h.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			_ = h.Reload()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			h.log.Warn("snapshot watcher error", zap.Error(err))

		case <-ctx.Done():
			h.log.Debug("snapshot watcher stopping")
			return nil
		}
	}
}
