package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/oshokin/alert-relay/internal/logger"
)

// Watch monitors path and calls onChange with every valid configuration
// written to it until ctx is canceled. Invalid files are logged and the
// previous configuration stays in effect.
//
// The parent directory is watched, so saves that rename a temporary file
// over path keep being noticed.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	path = filepath.Clean(path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	defer func() {
		_ = watcher.Close()
	}()

	if err = watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}

	logger.InfoKV(ctx, "Watching settings for changes", "path", path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if filepath.Clean(event.Name) != path {
				continue
			}

			// A rename over path shows up as Create.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			cfg, err := Load(path)
			if err != nil {
				logger.ErrorKV(ctx, "Settings reload failed, keeping previous settings", "path", path, "error", err)
				continue
			}

			logger.InfoKV(ctx, "Settings reloaded", "path", path)
			onChange(cfg)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			logger.ErrorKV(ctx, "Settings watcher error", "error", err)
		}
	}
}
