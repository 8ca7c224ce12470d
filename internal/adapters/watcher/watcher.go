package watcher

import (
	"context"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.trai.ch/bundler/internal/adapters/fs"
	"go.trai.ch/bundler/internal/core/domain"
	"go.trai.ch/bundler/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Watcher = (*Watcher)(nil)

const eventChannelBuffer = 100

// Watcher implements recursive file system watching using fsnotify.
type Watcher struct {
	walker *fs.Walker
	logger ports.Logger

	mu        sync.Mutex
	fsWatcher *fsnotify.Watcher
	root      string
	ignore    []string
	events    chan ports.WatchEvent
}

// NewWatcher creates a new file system watcher.
func NewWatcher(walker *fs.Walker, logger ports.Logger) *Watcher {
	return &Watcher{
		walker: walker,
		logger: logger,
		events: make(chan ports.WatchEvent, eventChannelBuffer),
	}
}

// Start begins watching root recursively. Directories in ignore, relative to
// root, are neither watched nor reported.
func (w *Watcher) Start(ctx context.Context, root string, ignore []string) error {
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return zerr.With(domain.ErrWatcherStartFailed, "root", root)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return zerr.Wrap(err, domain.ErrWatcherStartFailed.Error())
	}

	w.mu.Lock()
	w.fsWatcher = fsWatcher
	w.root = filepath.Clean(root)
	w.ignore = make([]string, 0, len(ignore))
	for _, dir := range ignore {
		if dir = filepath.ToSlash(filepath.Clean(dir)); dir != "." && dir != "" {
			w.ignore = append(w.ignore, dir)
		}
	}
	w.mu.Unlock()

	for dir := range w.watchRecursively(w.root) {
		if err := fsWatcher.Add(dir); err != nil {
			_ = fsWatcher.Close()
			return zerr.With(zerr.Wrap(err, domain.ErrWatcherStartFailed.Error()), "dir", dir)
		}
	}

	go w.processEvents(ctx, fsWatcher)

	return nil
}

// Stop stops the watcher and releases all resources.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fsWatcher == nil {
		return nil
	}
	return w.fsWatcher.Close()
}

// Events returns an iterator of file system events. It ends when the watcher stops.
func (w *Watcher) Events() iter.Seq[ports.WatchEvent] {
	return func(yield func(ports.WatchEvent) bool) {
		for event := range w.events {
			if !yield(event) {
				return
			}
		}
	}
}

// watchRecursively yields dir and every directory below it that is not ignored.
func (w *Watcher) watchRecursively(dir string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for path := range w.walker.WalkDirs(dir, nil) {
			if w.ignored(path) {
				continue
			}
			if !yield(path) {
				return
			}
		}
	}
}

// ignored reports whether path lies in an ignored directory or below one of
// the directory names the walker always skips.
func (w *Watcher) ignored(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return true
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return true
	}
	for _, dir := range w.ignore {
		if rel == dir || strings.HasPrefix(rel, dir+"/") {
			return true
		}
	}
	for _, part := range strings.Split(rel, "/") {
		for _, name := range fs.DefaultIgnores {
			if part == name {
				return true
			}
		}
	}
	return false
}

func (w *Watcher) processEvents(ctx context.Context, fsWatcher *fsnotify.Watcher) {
	defer close(w.events)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fsWatcher.Events:
			if !ok {
				return
			}
			if w.ignored(event.Name) {
				continue
			}

			watchEvent := convertEvent(event)
			if watchEvent == nil {
				continue
			}

			select {
			case w.events <- *watchEvent:
			case <-ctx.Done():
				return
			}

			// New directories are watched as soon as they appear.
			if watchEvent.Operation == ports.OpCreate {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					for dir := range w.watchRecursively(event.Name) {
						_ = fsWatcher.Add(dir)
					}
				}
			}

		case err, ok := <-fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher: " + err.Error())
		}
	}
}

func convertEvent(event fsnotify.Event) *ports.WatchEvent {
	var op ports.WatchOp
	switch {
	case event.Has(fsnotify.Write):
		op = ports.OpWrite
	case event.Has(fsnotify.Create):
		op = ports.OpCreate
	case event.Has(fsnotify.Remove):
		op = ports.OpRemove
	case event.Has(fsnotify.Rename):
		op = ports.OpRename
	default:
		return nil
	}
	return &ports.WatchEvent{Path: event.Name, Operation: op}
}
