package archive

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher reports edits to a document file made by something other than
// this process.
//
// The parent directory is watched rather than the file, since SaveFile
// replaces the file by rename and a watch on the old inode would go quiet.
type Watcher struct {
	path string
	log  *slog.Logger

	mu       sync.Mutex
	lastSave string
}

// NewWatcher returns a watcher for path. Nothing is watched until Watch.
func NewWatcher(path string, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{path: filepath.Clean(path), log: logger}
}

// Saved records the id of a document this process wrote, so the event the
// write raises is not reported back.
func (w *Watcher) Saved(id string) {
	w.mu.Lock()
	w.lastSave = id
	w.mu.Unlock()
}

// Watch starts a background goroutine that decodes the file after each write
// and hands the document to fn. Unreadable documents are logged and skipped.
// Call the returned stop function to clean up.
func (w *Watcher) Watch(fn func(*Document)) (stop func(), err error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("document watcher: %w", err)
	}
	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("document watcher add %s: %w", dir, err)
	}

	done := make(chan struct{})
	go func() {
		defer fw.Close()
		for {
			select {
			case ev, ok := <-fw.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != w.path {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				doc, err := ReadFile(w.path)
				if err != nil {
					w.log.Warn("document changed but could not be read", "path", w.path, "err", err)
					continue
				}
				if w.ownSave(doc.ID) {
					continue
				}
				w.log.Info("document changed on disk", "path", w.path, "document", doc.ID)
				fn(doc)
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				w.log.Warn("document watcher error", "path", w.path, "err", err)
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }, nil
}

func (w *Watcher) ownSave(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return id != "" && id == w.lastSave
}
