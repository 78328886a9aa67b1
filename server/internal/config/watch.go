package config

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadDelay is how long Watch waits after the last change event before
// reloading, so an editor save that truncates then writes reloads once.
const ReloadDelay = 100 * time.Millisecond

// Watch monitors path and calls onChange with the newly loaded Config once
// per burst of writes. It blocks until ctx is cancelled.
//
// A reload that fails to parse or validate is logged and skipped; the
// previous config stays in effect.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	return watch(ctx, path, ReloadDelay, onChange)
}

func watch(ctx context.Context, path string, delay time.Duration, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}

	slog.Info("config: watching for changes", "path", path, "delay", delay)

	settle := time.NewTimer(delay)
	settle.Stop()
	defer settle.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			// Atomic saves replace the inode; follow the new file.
			if event.Has(fsnotify.Create) {
				_ = watcher.Add(path)
			}
			settle.Reset(delay)

		case <-settle.C:
			cfg, err := Load(path)
			if err != nil {
				slog.Error("config: reload failed, keeping previous config",
					"path", path, "err", err)
				continue
			}
			slog.Info("config: reloaded", "path", path, "clients", len(cfg.Clients))
			onChange(cfg)
			_ = watcher.Add(path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config: watcher error", "err", err)
		}
	}
}
