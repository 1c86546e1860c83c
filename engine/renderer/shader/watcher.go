package shader

import (
	"fmt"
	"io/fs"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Reloader is anything holding compiled shaders that can drop them on request.
type Reloader interface {
	Reload()
}

type watcher struct {
	mu        *sync.Mutex
	fsw       *fsnotify.Watcher
	reloaders []Reloader
	debounce  time.Duration
	timer     *time.Timer
	done      chan struct{}
	closed    bool
	onReload  func()
}

// Watcher watches a shader directory and issues an explicit reload request to every
// registered Reloader after WGSL files change. Bursts of events within the debounce window
// trigger a single reload.
type Watcher interface {
	// Add registers a Reloader.
	//
	// Parameters:
	//   - r: the reloader to notify
	Add(r Reloader)

	// Reload notifies every registered Reloader immediately.
	Reload()

	// Close stops watching. Pending debounced reloads are dropped.
	//
	// Returns:
	//   - error: an error from the underlying watcher
	Close() error
}

var _ Watcher = &watcher{}

// NewWatcher starts watching dir and every directory below it.
//
// Parameters:
//   - dir: the root shader directory
//   - options: variadic WatcherBuilderOption functions
//
// Returns:
//   - Watcher: the running watcher
//   - error: an error if the directory cannot be watched
func NewWatcher(dir string, options ...WatcherBuilderOption) (Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("shader watcher: %w", err)
	}
	w := &watcher{
		mu:       &sync.Mutex{},
		fsw:      fsw,
		debounce: 100 * time.Millisecond,
		done:     make(chan struct{}),
	}
	for _, opt := range options {
		opt(w)
	}

	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fsw.Add(path)
		}
		return nil
	})
	if err != nil {
		fsw.Close()
		return nil, fmt.Errorf("shader watcher: %w", err)
	}

	go w.run()
	return w, nil
}

func (w *watcher) Add(r Reloader) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.reloaders = append(w.reloaders, r)
}

func (w *watcher) Reload() {
	w.mu.Lock()
	reloaders := append([]Reloader(nil), w.reloaders...)
	onReload := w.onReload
	w.mu.Unlock()

	for _, r := range reloaders {
		r.Reload()
	}
	if onReload != nil {
		onReload()
	}
}

func (w *watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
	}
	close(w.done)
	return w.fsw.Close()
}

func (w *watcher) run() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(event.Name, ".wgsl") {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.schedule()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Printf("[ShaderWatcher] %v", err)
		}
	}
}

func (w *watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case <-w.done:
			return
		default:
		}
		log.Printf("[ShaderWatcher] shader sources changed, reloading")
		w.Reload()
	})
}
