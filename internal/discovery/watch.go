package discovery

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/okian/endpointeval/pkg/logger"
)

// Watch monitors dir and calls onChange once a burst of manifest changes has
// settled. It runs until ctx is cancelled. onChange runs on the watch
// goroutine, so events arriving meanwhile are coalesced into the next call.
func Watch(ctx context.Context, dir string, onChange func(context.Context), opts ...Option) error {
	o := newOptions(opts)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("%w: watch %s: %w", ErrNoSources, dir, err)
	}
	o.log.Info(ctx, "watching manifests for changes", logger.String("dir", dir))

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isManifestEvent(event) {
				continue
			}
			o.log.Debug(ctx, "manifest changed",
				logger.String("file", event.Name),
				logger.String("op", event.Op.String()),
			)
			if timer == nil {
				timer = time.NewTimer(o.debounce)
			} else {
				timer.Reset(o.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			onChange(ctx)
			// Re-add in case an atomic save replaced the directory entry.
			_ = watcher.Add(dir)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			o.log.Error(ctx, "watcher error", logger.Error(err))
		}
	}
}

func isManifestEvent(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Base(event.Name)
	if name == ConfigFileName {
		return true
	}
	_, ok := parsers[strings.ToLower(filepath.Ext(name))]
	return ok
}
