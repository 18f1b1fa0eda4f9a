package assets

import (
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/chewman/engine/core"
)

var ErrWatcherClosed = errors.New("watcher already closed")

/** @brief A file below the watched root that was created, written or removed. */
type ChangeEvent struct {
	// Path is slash separated and relative to the watcher root.
	Path    string
	Removed bool
}

// Watcher reports changes of resource files on disk. Directories created
// while watching are added automatically.
type Watcher struct {
	root     string
	fsnotify *fsnotify.Watcher

	mutex    sync.Mutex
	isClosed bool

	done   chan struct{}
	stop   sync.WaitGroup
	events chan ChangeEvent
}

func NewWatcher(root string) (*Watcher, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		root:     root,
		fsnotify: fsWatch,
		done:     make(chan struct{}),
		events:   make(chan ChangeEvent, 64),
	}
	w.stop.Add(1)
	go w.start()
	return w, nil
}

// Events delivers changes. Events are dropped when nobody drains the channel.
func (w *Watcher) Events() <-chan ChangeEvent {
	return w.events
}

// AddRecursive starts watching folder, relative to the root, and all its
// sub-directories.
func (w *Watcher) AddRecursive(folder string) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if w.isClosed {
		return ErrWatcherClosed
	}
	return w.watchRecursive(filepath.Join(w.root, filepath.FromSlash(folder)))
}

func (w *Watcher) Close() error {
	w.mutex.Lock()
	if w.isClosed {
		w.mutex.Unlock()
		return nil
	}
	w.isClosed = true
	w.mutex.Unlock()

	close(w.done)
	w.stop.Wait()
	return nil
}

func (w *Watcher) start() {
	defer w.stop.Done()
	for {
		select {
		case e, ok := <-w.fsnotify.Events:
			if !ok {
				return
			}
			w.handle(e)

		case err, ok := <-w.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("resource watcher: %s", err.Error())

		case <-w.done:
			w.fsnotify.Close()
			close(w.events)
			return
		}
	}
}

func (w *Watcher) handle(e fsnotify.Event) {
	if s, err := os.Stat(e.Name); err == nil && s.IsDir() {
		if e.Op&fsnotify.Create != 0 {
			w.mutex.Lock()
			if err := w.watchRecursive(e.Name); err != nil {
				core.LogWarn("failed to watch %s: %s", e.Name, err.Error())
			}
			w.mutex.Unlock()
		}
		return
	}

	rel, err := filepath.Rel(w.root, e.Name)
	if err != nil {
		return
	}
	var change ChangeEvent
	switch {
	case e.Op&(fsnotify.Create|fsnotify.Write) != 0:
		change = ChangeEvent{Path: filepath.ToSlash(rel)}
	case e.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		// a removed path can't be stat'ed, it may have been a directory
		w.fsnotify.Remove(e.Name)
		change = ChangeEvent{Path: filepath.ToSlash(rel), Removed: true}
	default:
		return
	}

	select {
	case w.events <- change:
	default:
		core.LogDebug("resource watcher: dropped change of %s", change.Path)
	}
}

// watchRecursive adds all directories under the given one to the watch list.
func (w *Watcher) watchRecursive(root string) error {
	return filepath.Walk(root, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return w.fsnotify.Add(walkPath)
		}
		return nil
	})
}
