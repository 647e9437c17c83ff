package relayconf

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/relayd/relayd/pkg/relaylog"
)

// debounce coalesces bursts of filesystem events (editors commonly emit
// several writes for a single save) into a single call to fn, fired after
// the watched path has been quiet for the given duration.
type debounce struct {
	duration time.Duration
	mu       sync.Mutex
	timer    *time.Timer
}

func newDebounce(d time.Duration) *debounce {
	return &debounce{duration: d}
}

func (d *debounce) trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.duration, fn)
}

// Watcher reloads a ProxyConf from disk whenever the underlying file
// changes and hands the freshly parsed config to onReload. Parse errors
// are logged and otherwise ignored: the previous, last-known-good config
// stays in effect until a subsequent edit parses cleanly.
type Watcher struct {
	path     string
	fsw      *fsnotify.Watcher
	debounce *debounce
	done     chan struct{}
}

// WatchPath starts watching path for changes, invoking onReload with each
// successfully parsed config. Callers must call Stop to release the
// underlying inotify/kqueue handle.
func WatchPath(path string, onReload func(ProxyConf)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(path); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	w := &Watcher{
		path:     path,
		fsw:      fsw,
		debounce: newDebounce(300 * time.Millisecond),
		done:     make(chan struct{}),
	}

	go w.run(onReload)
	return w, nil
}

func (w *Watcher) run(onReload func(ProxyConf)) {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.debounce.trigger(func() {
				conf, err := LoadPath(w.path)
				if err != nil {
					relaylog.Warn("relayconf: reload of %s failed, keeping previous config: %v", w.path, err)
					return
				}
				relaylog.Normal("relayconf: reloaded %s", w.path)
				onReload(conf)
			})
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			relaylog.Warn("relayconf: watch error on %s: %v", w.path, err)
		}
	}
}

// Stop releases the watcher's filesystem handle.
func (w *Watcher) Stop() error {
	return w.fsw.Close()
}
