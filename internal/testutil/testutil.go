// Package testutil provides shared test helpers for setting up archives
// and index databases.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/SilverRainZ/loveletter/internal/address"
	"github.com/SilverRainZ/loveletter/internal/archive"
	"github.com/SilverRainZ/loveletter/internal/index"
)

// AllowedFrom and AllowedTo are the allow-lists used by test archives.
var (
	AllowedFrom = address.List{
		{Name: "哥哥", Address: "gege@example.com"},
		{Name: "妹妹", Address: "meimei@example.com"},
	}
	AllowedTo = address.List{
		{Name: "Love Letter", Address: "loveletter@example.com"},
	}
)

// TestDB creates a temporary SQLite index that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	db, err := index.Open(filepath.Join(t.TempDir(), "loveletter-test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestArchive creates an archive over temporary letter and document
// directories with no version control behind them.
func TestArchive(t *testing.T) *archive.Archive {
	t.Helper()
	a, err := archive.New(archive.Options{
		LetterDir:   t.TempDir(),
		DocDir:      t.TempDir(),
		AllowedFrom: AllowedFrom,
		AllowedTo:   AllowedTo,
	})
	if err != nil {
		t.Fatal(err)
	}
	return a
}
