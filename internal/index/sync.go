package index

import (
	"log/slog"
	"os"
	"time"

	"github.com/SilverRainZ/loveletter/internal/archive"
	"github.com/SilverRainZ/loveletter/internal/checksum"
)

// Sync walks the letter directory and brings the index up to date:
//   - new/changed letter files are loaded and upserted
//   - files removed from disk are deleted from the index
func Sync(db *DB, store *archive.Store, logger *slog.Logger) error {
	names, err := store.List()
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(names))
	for _, name := range names {
		disk[name] = struct{}{}

		p, err := store.Path(name)
		if err != nil {
			continue
		}
		data, err := os.ReadFile(p)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("file", name), slog.String("error", err.Error()))
			continue
		}
		if checksums[name] == checksum.Sum(data) {
			continue
		}
		if err := indexLetter(db, store, name, data); err != nil {
			logger.Warn("sync: index failed", slog.String("file", name), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("file", name))
		}
	}

	// Remove stale entries.
	for name := range checksums {
		if _, ok := disk[name]; !ok {
			if err := db.DeleteLetter(name); err != nil {
				logger.Warn("sync: delete failed", slog.String("file", name), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("file", name))
			}
		}
	}

	return nil
}

// indexLetter decodes one letter file and upserts it into the DB.
func indexLetter(db *DB, store *archive.Store, name string, data []byte) error {
	letter, err := store.Read(name)
	if err != nil {
		return err
	}
	row := LetterRow{
		Filename:  name,
		Date:      letter.Date.String(),
		Year:      letter.Date.Year,
		Title:     letter.Title,
		Role:      letter.SenderRole.String(),
		Checksum:  checksum.Sum(data),
		UpdatedAt: time.Now().UTC(),
	}
	return db.UpsertLetter(row, letter.Content)
}
