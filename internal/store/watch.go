package store

import (
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher uses fsnotify to watch a fixture file for changes and
// triggers a callback with debouncing. The parent directory is
// watched rather than the file itself so that editors that replace
// the file on save are still seen.
type Watcher struct {
	onChange func()
	watcher  *fsnotify.Watcher
	path     string
	debounce time.Duration
	log      zerolog.Logger

	mu        sync.Mutex
	pending   bool
	pendingAt time.Time

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	now      func() time.Time
}

// NewWatcher creates a watcher that calls onChange when path is
// modified, after the debounce period elapses.
func NewWatcher(
	path string, debounce time.Duration,
	logger zerolog.Logger, onChange func(),
) (*Watcher, error) {
	if onChange == nil {
		return nil, errors.New("onChange callback is nil")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, err
	}

	return &Watcher{
		onChange: onChange,
		watcher:  fsw,
		path:     filepath.Clean(path),
		debounce: debounce,
		log:      logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		now:      time.Now,
	}, nil
}

// Start begins processing file events in a goroutine.
func (w *Watcher) Start() {
	go w.loop()
}

// Stop stops the watcher and waits for it to finish.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
		<-w.done
		w.watcher.Close()
	})
}

func (w *Watcher) loop() {
	defer close(w.done)
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("fixture watcher error")

		case <-ticker.C:
			w.flush()
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}
	if filepath.Clean(event.Name) != w.path {
		return
	}

	w.mu.Lock()
	w.pending = true
	w.pendingAt = w.now()
	w.mu.Unlock()
}

func (w *Watcher) flush() {
	w.mu.Lock()
	ready := w.pending && w.now().Sub(w.pendingAt) >= w.debounce
	if ready {
		w.pending = false
	}
	w.mu.Unlock()

	if ready {
		w.log.Info().Str("path", w.path).
			Msg("fixture changed, dropping cached table")
		w.onChange()
	}
}
