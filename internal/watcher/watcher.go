// Package watcher recompiles on source changes with intelligent debouncing.
//
// The watcher observes the source root recursively through fsnotify, filters
// events against the configured glob patterns and groups rapid bursts of
// changes (editor save storms, branch switches) into a single batch before
// notifying handlers.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/tanglekit/tangle/internal/logging"
)

// EventType represents the type of file change.
type EventType int

const (
	EventTypeCreated EventType = iota
	EventTypeModified
	EventTypeDeleted
	EventTypeRenamed
)

// String returns the string representation of the EventType.
func (e EventType) String() string {
	switch e {
	case EventTypeCreated:
		return "created"
	case EventTypeModified:
		return "modified"
	case EventTypeDeleted:
		return "deleted"
	case EventTypeRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// ChangeEvent represents one file change.
type ChangeEvent struct {
	Type EventType
	// Path is slash-separated and relative to the watched root.
	Path string
	Time time.Time
}

// ChangeHandler handles a debounced batch of change events.
type ChangeHandler func(events []ChangeEvent)

// FileWatcher watches a source root for changes matching glob patterns.
type FileWatcher struct {
	root     string
	patterns []string
	watcher  *fsnotify.Watcher
	logger   logging.Logger

	debounce time.Duration
	mutex    sync.Mutex
	timer    *time.Timer
	pending  []ChangeEvent
	handlers []ChangeHandler
}

// New creates a watcher over root. Events are matched against patterns
// (slash-relative doublestar globs) and batches are flushed after debounce
// elapses without further changes.
func New(root string, patterns []string, debounce time.Duration, logger logging.Logger) (*FileWatcher, error) {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &FileWatcher{
		root:     root,
		patterns: patterns,
		watcher:  fsWatcher,
		logger:   logger.WithComponent("watcher"),
		debounce: debounce,
	}, nil
}

// AddHandler registers a handler for debounced change batches.
func (fw *FileWatcher) AddHandler(handler ChangeHandler) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.handlers = append(fw.handlers, handler)
}

// Start registers the root and every subdirectory with fsnotify and begins
// the event loop. It returns once watching is established; events are
// dispatched from a background goroutine until ctx is cancelled.
func (fw *FileWatcher) Start(ctx context.Context) error {
	err := filepath.Walk(fw.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		name := info.Name()
		if name == ".git" || name == "node_modules" || name == "vendor" {
			return filepath.SkipDir
		}
		return fw.watcher.Add(path)
	})
	if err != nil {
		return err
	}

	go fw.watchLoop(ctx)
	return nil
}

// Stop closes the underlying fsnotify watcher.
func (fw *FileWatcher) Stop() error {
	fw.mutex.Lock()
	if fw.timer != nil {
		fw.timer.Stop()
	}
	fw.mutex.Unlock()
	return fw.watcher.Close()
}

func (fw *FileWatcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleEvent(event)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warn(ctx, err, "watch error, continuing")
		}
	}
}

func (fw *FileWatcher) handleEvent(event fsnotify.Event) {
	// New directories need explicit registration; fsnotify is not recursive.
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = fw.watcher.Add(event.Name)
			return
		}
	}

	rel, err := filepath.Rel(fw.root, event.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)
	if !fw.matches(rel) {
		return
	}

	fw.enqueue(ChangeEvent{
		Type: eventType(event.Op),
		Path: rel,
		Time: time.Now(),
	})
}

// matches reports whether the relative path matches any configured pattern.
func (fw *FileWatcher) matches(rel string) bool {
	if strings.HasPrefix(rel, "..") {
		return false
	}
	for _, pattern := range fw.patterns {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}

// enqueue buffers the event and (re)arms the debounce timer. The batch is
// flushed once no further events arrive for the debounce interval.
func (fw *FileWatcher) enqueue(event ChangeEvent) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()

	fw.pending = append(fw.pending, event)
	if fw.timer != nil {
		fw.timer.Stop()
	}
	fw.timer = time.AfterFunc(fw.debounce, fw.flush)
}

func (fw *FileWatcher) flush() {
	fw.mutex.Lock()
	batch := fw.pending
	fw.pending = nil
	handlers := make([]ChangeHandler, len(fw.handlers))
	copy(handlers, fw.handlers)
	fw.mutex.Unlock()

	if len(batch) == 0 {
		return
	}
	for _, handler := range handlers {
		handler(batch)
	}
}

func eventType(op fsnotify.Op) EventType {
	switch {
	case op&fsnotify.Create != 0:
		return EventTypeCreated
	case op&fsnotify.Write != 0:
		return EventTypeModified
	case op&fsnotify.Remove != 0:
		return EventTypeDeleted
	case op&fsnotify.Rename != 0:
		return EventTypeRenamed
	default:
		return EventTypeModified
	}
}
