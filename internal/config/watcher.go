package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"menagerie/pkg/logging"
)

const debounceDelay = 500 * time.Millisecond

// ReloadFunc is invoked after the watched document changed on disk and the
// store has re-read it. The snapshot passed in is the freshly loaded document.
type ReloadFunc func(ctx context.Context, doc Document)

// Watcher watches the store's document for external edits and triggers a
// debounced reload. Writes performed by the store itself are filtered out via
// the store's content hash, so saving never triggers a reload of our own
// changes.
type Watcher struct {
	store    *Store
	onReload ReloadFunc

	watcher  *fsnotify.Watcher
	debounce *time.Timer
	mu       sync.Mutex

	cancel context.CancelFunc
	done   chan struct{}
}

// NewWatcher creates a watcher for the store's document. Start must be called
// to begin watching.
func NewWatcher(store *Store, onReload ReloadFunc) *Watcher {
	return &Watcher{
		store:    store,
		onReload: onReload,
	}
}

// Start begins watching the directory containing the document. Watching the
// directory rather than the file survives editors that replace the file via
// rename.
func (w *Watcher) Start(ctx context.Context) error {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	dir := filepath.Dir(w.store.Path())
	if err := fsWatcher.Add(dir); err != nil {
		fsWatcher.Close()
		return err
	}

	w.watcher = fsWatcher
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})

	go w.run(runCtx)

	logging.Info("ConfigWatcher", "Watching %s for changes", w.store.Path())
	return nil
}

// Stop stops watching and waits for the event loop to exit.
func (w *Watcher) Stop() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	w.watcher.Close()
	<-w.done

	w.mu.Lock()
	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.mu.Unlock()
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)

	target := filepath.Clean(w.store.Path())
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.scheduleReload(ctx)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Error("ConfigWatcher", err, "Watch error")
		}
	}
}

// scheduleReload resets the debounce timer. Editors commonly emit several
// events per save; only the last one within the window triggers a reload.
func (w *Watcher) scheduleReload(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(debounceDelay, func() {
		w.reload(ctx)
	})
}

func (w *Watcher) reload(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	changed, err := w.store.ReloadIfChanged()
	if err != nil {
		logging.Error("ConfigWatcher", err, "Failed to reload document, keeping previous config")
		return
	}
	if !changed {
		logging.Debug("ConfigWatcher", "Document unchanged, skipping reload")
		return
	}

	if w.onReload != nil {
		w.onReload(ctx, w.store.Snapshot())
	}
}
