package index

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/SilverRainZ/loveletter/internal/archive"
)

// Watch runs an fsnotify watcher on the (flat) letter directory and keeps
// the index consistent when letter files change out-of-band, until ctx is
// cancelled. Letter deletion is a manual, out-of-band operation, so remove
// and rename events matter here even though the archive never deletes.
func Watch(ctx context.Context, db *DB, store *archive.Store, logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(store.Dir()); err != nil {
		return err
	}
	logger.Info("watcher: started", slog.String("dir", store.Dir()))

	for {
		select {
		case <-ctx.Done():
			logger.Info("watcher: stopped")
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			name := filepath.Base(ev.Name)
			if !strings.HasSuffix(name, archive.LetterExt) || strings.HasPrefix(name, ".") {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				data, err := os.ReadFile(ev.Name)
				if err != nil {
					logger.Warn("watcher: read failed", slog.String("file", name), slog.String("error", err.Error()))
					continue
				}
				if err := indexLetter(db, store, name, data); err != nil {
					logger.Warn("watcher: index failed", slog.String("file", name), slog.String("error", err.Error()))
					continue
				}
				logger.Debug("watcher: indexed", slog.String("file", name))

			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				if err := db.DeleteLetter(name); err != nil {
					logger.Warn("watcher: delete failed", slog.String("file", name), slog.String("error", err.Error()))
					continue
				}
				logger.Debug("watcher: removed", slog.String("file", name))
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher: error", slog.String("error", err.Error()))
		}
	}
}
