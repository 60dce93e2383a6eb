package storage

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the document whenever another process replaces it and blocks
// until ctx is done. It only works when the store sits on the OS filesystem.
//
// The parent directory is watched rather than the file itself, because every
// write renames a new file over the old one.
func (local *Local) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create state watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(local.path)); err != nil {
		return fmt.Errorf("watch state directory: %w", err)
	}

	target := filepath.Clean(local.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}
			if err := local.Reload(); err != nil {
				local.logger.WithError(err).Warn("Failed to reload state file")
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			local.logger.WithError(err).Warn("State watcher error")
		}
	}
}
