package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/oshokin/smart-lock/internal/logger"
)

// Watch reloads the file at path whenever it is written or replaced and passes
// every successfully validated result to onChange. Invalid edits are logged and
// skipped, so the previous settings stay in force. Watch blocks until ctx is done.
//
// The parent directory is watched rather than the file because editors and
// config management tools usually replace the file with a rename.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	if path == "" {
		path = DefaultConfigFilename
	}

	target, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve settings path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	defer func() {
		_ = watcher.Close()
	}()

	if err = watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}

	logger.InfoKV(ctx, "Watching settings for changes", "path", target)

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

			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			cfg, loadErr := Load(target)
			if loadErr != nil {
				logger.WarnKV(ctx, "Ignoring invalid settings change", "path", target, "error", loadErr)
				continue
			}

			logger.InfoKV(ctx, "Settings reloaded", "path", target)
			onChange(cfg)
		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			logger.WarnKV(ctx, "Settings watcher error", "error", watchErr)
		}
	}
}
