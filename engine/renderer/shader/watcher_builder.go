package shader

import "time"

// WatcherBuilderOption configures a Watcher created by NewWatcher.
type WatcherBuilderOption func(*watcher)

// WithDebounce sets how long the watcher waits after the last change before reloading.
//
// Parameters:
//   - d: the debounce window
//
// Returns:
//   - WatcherBuilderOption: a function that applies the window
func WithDebounce(d time.Duration) WatcherBuilderOption {
	return func(w *watcher) {
		w.debounce = d
	}
}

// WithOnReload runs fn after every reload, once all reloaders have been notified.
//
// Parameters:
//   - fn: the callback
//
// Returns:
//   - WatcherBuilderOption: a function that applies the callback
func WithOnReload(fn func()) WatcherBuilderOption {
	return func(w *watcher) {
		w.onReload = fn
	}
}
