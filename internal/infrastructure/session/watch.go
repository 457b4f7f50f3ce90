package session

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch calls onChange whenever another writer replaces or removes the slot
// file, e.g. the CLI logging out while the portal is running. The directory is
// watched rather than the file because Save replaces the file by rename.
// Watch returns once the watcher is set up; it stops when ctx is done.
func (s *FileStore) Watch(ctx context.Context, onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("session: watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		_ = w.Close()
		return fmt.Errorf("session: watch dir: %w", err)
	}

	name := filepath.Base(s.path)
	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Base(ev.Name) != name {
					continue
				}
				if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
					onChange()
				}
			case werr, ok := <-w.Errors:
				if !ok {
					return
				}
				s.log.Warn().Err(werr).Msg("session watcher error")
			}
		}
	}()
	return nil
}
