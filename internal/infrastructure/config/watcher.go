package config

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-hclog"
)

// Watcher reports out-of-band changes to the canonical config file, feeding
// the live status view. It watches the containing directory because commits
// land via rename, which replaces the watched inode.
type Watcher struct {
	path    string
	fsw     *fsnotify.Watcher
	changes chan struct{}
	done    chan struct{}
	logger  hclog.Logger
}

// NewWatcher starts watching the canonical document at path.
func NewWatcher(path string, logger hclog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, err
	}
	w := &Watcher{
		path:    path,
		fsw:     fsw,
		changes: make(chan struct{}, 1),
		done:    make(chan struct{}),
		logger:  logger.Named("config-watcher"),
	}
	go w.loop()
	return w, nil
}

// Changes delivers one notification per observed change to the canonical
// file. Notifications are coalesced; a slow reader misses intermediate
// changes, never the fact that something changed.
func (w *Watcher) Changes() <-chan struct{} { return w.changes }

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Name != w.path {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			select {
			case w.changes <- struct{}{}:
			default:
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watch error", "error", err)
		}
	}
}
