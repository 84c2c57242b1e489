package index

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/SilverRainZ/loveletter/internal/archive"
	"github.com/SilverRainZ/loveletter/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	dbFile := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(dbFile)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func row(filename, date string, year int, title string) LetterRow {
	return LetterRow{
		Filename:  filename,
		Date:      date,
		Year:      year,
		Title:     title,
		Role:      "gege",
		Checksum:  "cs-" + filename,
		UpdatedAt: time.Now().UTC(),
	}
}

func TestUpsertListDelete(t *testing.T) {
	db := testDB(t)
	if err := db.UpsertLetter(row("2025-04-03.yaml", "2025-04-03", 2025, ""), "content a"); err != nil {
		t.Fatalf("UpsertLetter: %v", err)
	}
	if err := db.UpsertLetter(row("1998-01-28.yaml", "1998-01-28", 1998, "生日"), "content b"); err != nil {
		t.Fatalf("UpsertLetter: %v", err)
	}

	letters, total, err := db.ListLetters(0, 0, 0)
	if err != nil {
		t.Fatalf("ListLetters: %v", err)
	}
	if total != 2 || len(letters) != 2 {
		t.Fatalf("total=%d letters=%v", total, letters)
	}
	// Newest first by filename.
	if letters[0].Filename != "2025-04-03.yaml" {
		t.Errorf("letters[0] = %q", letters[0].Filename)
	}

	letters, total, err = db.ListLetters(1998, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || letters[0].Year != 1998 {
		t.Errorf("year filter: total=%d letters=%v", total, letters)
	}

	if err := db.DeleteLetter("1998-01-28.yaml"); err != nil {
		t.Fatalf("DeleteLetter: %v", err)
	}
	_, total, _ = db.ListLetters(0, 0, 0)
	if total != 1 {
		t.Errorf("total = %d after delete", total)
	}
}

func TestUpsert_Replaces(t *testing.T) {
	db := testDB(t)
	r := row("2025-04-03.yaml", "2025-04-03", 2025, "旧")
	if err := db.UpsertLetter(r, "old"); err != nil {
		t.Fatal(err)
	}
	r.Title = "新"
	if err := db.UpsertLetter(r, "new"); err != nil {
		t.Fatal(err)
	}
	letters, total, err := db.ListLetters(0, 0, 0)
	if err != nil || total != 1 {
		t.Fatalf("total=%d err=%v", total, err)
	}
	if letters[0].Title != "新" {
		t.Errorf("title = %q", letters[0].Title)
	}
}

func TestSearch(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertLetter(row("2025-04-03.yaml", "2025-04-03", 2025, "测试数据"), "张同学你好")
	_ = db.UpsertLetter(row("1998-01-28.yaml", "1998-01-28", 1998, "生日"), "其他内容")

	hits, err := db.Search("测试", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].Filename != "2025-04-03.yaml" {
		t.Errorf("title hits = %v", hits)
	}

	hits, err = db.Search("张同学", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Errorf("content hits = %v", hits)
	}

	hits, err = db.Search("nothing", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 0 {
		t.Errorf("hits = %v, want none", hits)
	}
}

func TestSync_Reconciles(t *testing.T) {
	db := testDB(t)
	store, err := archive.NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	d := models.Date{Year: 2025, Month: time.April, Day: 3}
	letter := &models.Letter{
		From:       "哥哥 <gege@example.com>",
		To:         "妹妹 <meimei@example.com>",
		SenderRole: models.RoleGege,
		Date:       d,
		Title:      "测试数据",
		Content:    "body",
	}
	name := archive.Filename(d, "测试数据")
	if err := store.Write(name, letter); err != nil {
		t.Fatal(err)
	}

	if err := Sync(db, store, logger); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	letters, total, _ := db.ListLetters(0, 0, 0)
	if total != 1 || letters[0].Filename != name {
		t.Fatalf("after sync: total=%d letters=%v", total, letters)
	}
	if letters[0].Role != "gege" || letters[0].Year != 2025 {
		t.Errorf("row = %+v", letters[0])
	}

	// A stale index row disappears once its file is gone.
	p, _ := store.Path(name)
	if err := os.Remove(p); err != nil {
		t.Fatal(err)
	}
	if err := Sync(db, store, logger); err != nil {
		t.Fatal(err)
	}
	_, total, _ = db.ListLetters(0, 0, 0)
	if total != 0 {
		t.Errorf("total = %d after file removal", total)
	}
}

func TestSync_SkipsUnchanged(t *testing.T) {
	db := testDB(t)
	store, err := archive.NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	d := models.Date{Year: 2025, Month: time.April, Day: 3}
	name := archive.Filename(d, "")
	if err := store.Write(name, &models.Letter{Date: d, SenderRole: models.RoleMeimei, Content: "x"}); err != nil {
		t.Fatal(err)
	}
	if err := Sync(db, store, logger); err != nil {
		t.Fatal(err)
	}
	rows, _, _ := db.ListLetters(0, 0, 0)
	first := rows[0].UpdatedAt

	if err := Sync(db, store, logger); err != nil {
		t.Fatal(err)
	}
	rows, _, _ = db.ListLetters(0, 0, 0)
	if !rows[0].UpdatedAt.Equal(first) {
		t.Error("unchanged letter was re-indexed")
	}
}
