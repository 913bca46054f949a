package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// watchDebounce absorbs the editor write/rename bursts that fsnotify
// reports as several events for one save.
const watchDebounce = 200 * time.Millisecond

// Watch watches the config file and calls onReload with the freshly
// parsed config after each change. Runs until ctx is cancelled; intended
// to be launched in its own goroutine. A config that fails to parse is
// logged and skipped — the previous config stays in effect.
func Watch(ctx context.Context, path string, log zerolog.Logger, onReload func(*Config)) error {
	log = log.With().Str("component", "config_watch").Logger()
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory, not the file: editors that save via
	// rename+create would otherwise silently detach the watch.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}

	var debounce *time.Timer
	reload := func() {
		cfg, err := Load(path)
		if err != nil {
			log.Warn().Err(err).Msg("Config reload failed, keeping previous config")
			return
		}
		log.Info().Msg("Config hot-reloaded")
		onReload(cfg)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(watchDebounce, reload)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("Config watcher error")
		}
	}
}
