package extension

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher loads extensions dropped into the extensions root while the
// host is running. Only additions are handled; removing a directory does
// not unload, that stays an explicit API action.
type Watcher struct {
	loader  *Loader
	logger  zerolog.Logger
	watcher *fsnotify.Watcher

	// settle gives a copied-in directory time to finish writing its
	// manifest before the load attempt.
	settle time.Duration
}

func NewWatcher(loader *Loader, log zerolog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(loader.cfg.ExtensionsDir); err != nil {
		fsw.Close()
		return nil, err
	}

	return &Watcher{
		loader:  loader,
		logger:  log.With().Str("component", "extension-watcher").Logger(),
		watcher: fsw,
		settle:  500 * time.Millisecond,
	}, nil
}

// Start consumes filesystem events until the context is cancelled.
func (w *Watcher) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Create == 0 {
				continue
			}
			w.handleCreate(ctx, event.Name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("Extension watcher error")
		}
	}
}

func (w *Watcher) handleCreate(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}

	time.Sleep(w.settle)
	if _, err := os.Stat(filepath.Join(path, "manifest.json")); err != nil {
		return
	}

	dirID := filepath.Base(path)
	w.logger.Info().Str("plugin", dirID).Msg("New extension directory detected")
	if err := w.loader.Load(ctx, dirID); err != nil {
		w.logger.Error().Err(err).Str("plugin", dirID).Msg("Hot load failed")
	}
}

// Close stops the underlying filesystem watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
