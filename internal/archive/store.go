package archive

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/SilverRainZ/loveletter/internal/apperr"
	"github.com/SilverRainZ/loveletter/internal/models"
)

// LetterExt is the extension of persisted letter files. Scans ignore
// anything else in the letter directory.
const LetterExt = ".yaml"

// Filename derives the letter filename from its date and optional title.
// The date prefix keeps names sortable; the title is escaped reversibly so
// two letters may share a date as long as their titles differ.
func Filename(date models.Date, title string) string {
	if title == "" {
		return date.String() + LetterExt
	}
	return date.String() + "_" + url.PathEscape(title) + LetterExt
}

// ParseFilename decodes a letter filename back into its date and title.
func ParseFilename(name string) (models.Date, string, error) {
	stem, ok := strings.CutSuffix(name, LetterExt)
	if !ok {
		return models.Date{}, "", fmt.Errorf("not a letter file: %s", name)
	}
	datePart, titlePart, hasTitle := strings.Cut(stem, "_")
	date, err := models.ParseDate(datePart)
	if err != nil {
		return models.Date{}, "", fmt.Errorf("letter file %s: %w", name, err)
	}
	if !hasTitle {
		return date, "", nil
	}
	title, err := url.PathUnescape(titlePart)
	if err != nil {
		return models.Date{}, "", fmt.Errorf("letter file %s: %w", name, err)
	}
	return date, title, nil
}

// Store owns one flat directory of letter files.
type Store struct {
	dir string
}

// NewStore opens a store rooted at dir, which must already exist.
func NewStore(dir string) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("store: resolve dir: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("store: stat dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("store: not a directory: %s", abs)
	}
	return &Store{dir: abs}, nil
}

// Dir returns the absolute letter directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the absolute path of a letter file. The store is flat, so
// names carrying a path separator are rejected.
func (s *Store) Path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) {
		return "", fmt.Errorf("store: invalid letter filename %q", name)
	}
	return filepath.Join(s.dir, name), nil
}

// Exists reports whether a letter file is present.
func (s *Store) Exists(name string) bool {
	p, err := s.Path(name)
	if err != nil {
		return false
	}
	_, err = os.Stat(p)
	return err == nil
}

// Write serializes the letter and atomically replaces the target file, so
// a concurrent read never observes a partial write.
func (s *Store) Write(name string, letter *models.Letter) error {
	p, err := s.Path(name)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(letter)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", name, err)
	}
	return writeFileAtomic(p, data)
}

// Read loads one letter. A missing file is ErrNotFound; a file that exists
// but fails to decode is ErrCorrupt.
func (s *Store) Read(name string) (*models.Letter, error) {
	p, err := s.Path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("store: letter %s: %w", name, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("store: read %s: %w", name, err)
	}
	var letter models.Letter
	if err := yaml.Unmarshal(data, &letter); err != nil {
		return nil, fmt.Errorf("store: decode %s: %v: %w", name, err, apperr.ErrCorrupt)
	}
	return &letter, nil
}

// List returns every letter filename in ascending order.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), LetterExt) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// writeFileAtomic writes data to path via a temp file, fsync, and rename.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".loveletter-tmp-*")
	if err != nil {
		return fmt.Errorf("store: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("store: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("store: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("store: close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("store: rename: %w", err)
	}
	success = true
	return nil
}
