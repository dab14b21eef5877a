package clip

import (
	"context"
	"fmt"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher reports clip names whose files changed in a clip directory. It only
// emits names; the frame loop decides when to evict.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	changes   chan string
	log       zerolog.Logger
}

// NewWatcher starts watching dir.
func NewWatcher(dir string, log zerolog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create clip watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch clip dir %s: %w", dir, err)
	}
	return &Watcher{
		fsWatcher: fsw,
		changes:   make(chan string, 32),
		log:       log,
	}, nil
}

// Changes returns the channel of changed clip names.
func (w *Watcher) Changes() <-chan string {
	return w.changes
}

// Run forwards file events until ctx is done, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.changes)
	defer w.fsWatcher.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			name, ok := NameFromPath(event.Name)
			if !ok {
				continue
			}
			select {
			case w.changes <- name:
			default:
				w.log.Warn().Str("clip", name).Msg("Clip change dropped, queue full")
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.log.Error().Err(err).Msg("Clip watcher error")
		}
	}
}
