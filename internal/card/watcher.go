package card

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/GomuGomuu/ope-ope/internal/log"
)

// Watcher monitors a catalog file and reports when its content may have changed.
type Watcher struct {
	watcher  *fsnotify.Watcher
	path     string
	debounce time.Duration
}

// NewWatcher creates a watcher for the catalog at path.
// Editors often write a file in several steps, so events are coalesced over debounce.
func NewWatcher(path string, debounce time.Duration) (*Watcher, error) {
	fsnWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		fsnWatcher.Close()
		return nil, err
	}
	return &Watcher{watcher: fsnWatcher, path: abs, debounce: debounce}, nil
}

// Start watches the catalog's directory (so rename-over-file saves are seen) and calls
// onChange once per burst of events touching the catalog. It returns when ctx is done.
func (w *Watcher) Start(ctx context.Context, onChange func()) error {
	defer w.watcher.Close()

	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	log.InfoLogger.Info().Msgf("👀 Started watching catalog: %s", w.path)

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			log.InfoLogger.Debug().Msgf("✨ Catalog event: %s %s", event.Name, event.Op)
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			onChange()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			log.ErrorLogger.Error().Err(err).Msg("🔥 Watcher error")
		}
	}
}
