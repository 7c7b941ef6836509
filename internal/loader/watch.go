package loader

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/docqa/internal/logger"
)

// ChangeType describes what happened to a watched file.
type ChangeType string

// Change types reported by a Watcher.
const (
	ChangeCreated ChangeType = "created"
	ChangeUpdated ChangeType = "updated"
	ChangeDeleted ChangeType = "deleted"
)

// Change is a file event under a watched root.
type Change struct {
	Type ChangeType
	Path string
}

// Watcher reports file changes beneath a directory tree. Ignored paths and
// hidden files produce no changes; new directories are watched as they
// appear.
type Watcher struct {
	root    string
	filter  *IgnoreFilter
	watcher *fsnotify.Watcher
}

// NewWatcher watches root and every non-ignored directory beneath it.
func NewWatcher(root string) (*Watcher, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	filter, err := NewIgnoreFilter(root)
	if err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	w := &Watcher{root: root, filter: filter, watcher: fw}
	if err := w.addTree(root); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

// Changes starts delivering events. The channel closes when ctx is done or
// the watcher is closed.
func (w *Watcher) Changes(ctx context.Context) <-chan Change {
	out := make(chan Change)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				change := w.handleEvent(event)
				if change == nil {
					continue
				}
				select {
				case out <- *change:
				case <-ctx.Done():
					return
				}
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("watch error: %v", err)
			}
		}
	}()
	return out
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) handleEvent(event fsnotify.Event) *Change {
	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil || isHidden(rel) || w.filter.ShouldIgnore(rel) {
		return nil
	}

	switch {
	case event.Op.Has(fsnotify.Remove), event.Op.Has(fsnotify.Rename):
		return &Change{Type: ChangeDeleted, Path: event.Name}
	case event.Op.Has(fsnotify.Create):
		info, err := os.Stat(event.Name)
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				logger.Warn("failed to watch %s: %v", event.Name, err)
			}
			return nil
		}
		return &Change{Type: ChangeCreated, Path: event.Name}
	case event.Op.Has(fsnotify.Write):
		info, err := os.Stat(event.Name)
		if err != nil || info.IsDir() {
			return nil
		}
		return &Change{Type: ChangeUpdated, Path: event.Name}
	default:
		return nil
	}
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if rel, _ := filepath.Rel(w.root, p); rel != "." {
			if isHidden(rel) || w.filter.ShouldIgnore(rel+"/") || w.filter.ShouldIgnore(rel) {
				return filepath.SkipDir
			}
		}
		if err := w.watcher.Add(p); err != nil {
			return fmt.Errorf("failed to watch %s: %w", p, err)
		}
		return nil
	})
}

// isHidden reports whether any element of path starts with a dot.
func isHidden(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if len(part) > 1 && part[0] == '.' && part != ".." {
			return true
		}
	}
	return false
}
