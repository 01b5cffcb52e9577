package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the config file whenever it is written or replaced and
// passes the fresh copy to onChange. Invalid files are logged and skipped.
// The watcher stops when ctx is cancelled.
func (c *Config) Watch(ctx context.Context, logger *slog.Logger, onChange func(*Config)) error {
	if c.path == "" {
		return fmt.Errorf("config has no file path")
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating config watcher: %w", err)
	}
	// Watch the directory so editors that replace the file are still seen.
	if err := w.Add(filepath.Dir(c.path)); err != nil {
		w.Close()
		return fmt.Errorf("watching %s: %w", filepath.Dir(c.path), err)
	}

	target := filepath.Clean(c.path)
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
				if filepath.Clean(ev.Name) != target || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
					continue
				}
				fresh, err := Load("", c.path)
				if err != nil {
					logger.Warn("config: reload failed", "path", c.path, "error", err)
					continue
				}
				logger.Debug("config: reloaded", "path", c.path)
				onChange(fresh)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warn("config: watcher error", "error", err)
			}
		}
	}()
	return nil
}
