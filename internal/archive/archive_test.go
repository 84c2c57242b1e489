package archive

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/SilverRainZ/loveletter/internal/address"
	"github.com/SilverRainZ/loveletter/internal/apperr"
	"github.com/SilverRainZ/loveletter/internal/models"
)

// fakeSyncer records Syncer calls and optionally fails pushes.
type fakeSyncer struct {
	adds     []string
	commits  []string
	authors  []string
	pushes   int
	cleanups int
	pushErr  error
}

func (f *fakeSyncer) Add(path string) error { f.adds = append(f.adds, path); return nil }
func (f *fakeSyncer) Commit(msg, author string) error {
	f.commits = append(f.commits, msg)
	f.authors = append(f.authors, author)
	return nil
}
func (f *fakeSyncer) Push(int) error       { f.pushes++; return f.pushErr }
func (f *fakeSyncer) Cleanup() error       { f.cleanups++; return nil }
func (f *fakeSyncer) IsClean() (bool, error) { return false, nil }

var (
	allowedFrom = address.List{
		{Name: "哥哥", Address: "gege@example.com"},
		{Name: "妹妹", Address: "meimei@example.com"},
		{Name: "Robot", Address: "robot@example.com"},
	}
	allowedTo = address.List{
		{Name: "Love Letter", Address: "loveletter@example.com"},
	}
)

func testArchive(t *testing.T, opts Options) *Archive {
	t.Helper()
	if opts.LetterDir == "" {
		opts.LetterDir = t.TempDir()
	}
	if opts.DocDir == "" {
		opts.DocDir = t.TempDir()
	}
	if opts.AllowedFrom == nil {
		opts.AllowedFrom = allowedFrom
	}
	if opts.AllowedTo == nil {
		opts.AllowedTo = allowedTo
	}
	a, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func msg(subject string) Message {
	return Message{
		From:    "Shengyu Zhang <gege@example.com>",
		To:      "loveletter@example.com",
		Subject: subject,
		Date:    time.Date(2025, 4, 3, 8, 30, 0, 0, time.UTC),
		Body:    "张同学 我们这个 I 人交朋友的项目还有效咩",
	}
}

func TestUpsertLetter_Create(t *testing.T) {
	sync := &fakeSyncer{}
	a := testArchive(t, Options{LetterRepo: sync})

	letter, err := a.UpsertLetter(msg("2025/04/03: 测试数据"))
	if err != nil {
		t.Fatalf("UpsertLetter: %v", err)
	}
	if letter.From != "Shengyu Zhang <gege@example.com>" {
		t.Errorf("from = %q", letter.From)
	}
	// The recipient address carried no display name, so the allow-list
	// entry's full form is substituted.
	if letter.To != "Love Letter <loveletter@example.com>" {
		t.Errorf("to = %q", letter.To)
	}
	if letter.SenderRole != models.RoleGege {
		t.Errorf("role = %v", letter.SenderRole)
	}
	if letter.CreatedAt == nil || !letter.CreatedAt.Equal(time.Date(2025, 4, 3, 8, 30, 0, 0, time.UTC)) {
		t.Errorf("created_at = %v", letter.CreatedAt)
	}

	name := Filename(letter.Date, letter.Title)
	got, err := a.GetLetter(name)
	if err != nil {
		t.Fatalf("GetLetter: %v", err)
	}
	if got.Content != letter.Content {
		t.Errorf("content = %q", got.Content)
	}

	if len(sync.adds) != 1 || len(sync.commits) != 1 {
		t.Fatalf("syncer calls: adds=%v commits=%v", sync.adds, sync.commits)
	}
	if sync.commits[0] != "2025/04/03: 测试数据" {
		t.Errorf("commit message = %q", sync.commits[0])
	}
	if sync.authors[0] != "Shengyu Zhang <gege@example.com>" {
		t.Errorf("commit author = %q", sync.authors[0])
	}
	if sync.pushes != 0 {
		t.Errorf("pushes = %d, want 0 when pushing is disabled", sync.pushes)
	}
}

func TestUpsertLetter_DuplicateConflict(t *testing.T) {
	a := testArchive(t, Options{})
	first, err := a.UpsertLetter(msg("2025/04/03: 测试数据"))
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	name := Filename(first.Date, first.Title)
	p, _ := a.Letters().Path(name)
	before, err := os.ReadFile(p)
	if err != nil {
		t.Fatal(err)
	}

	second := msg("2025/04/03: 测试数据")
	second.Body = "different content"
	if _, err := a.UpsertLetter(second); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("error = %v, want ErrConflict", err)
	}

	after, err := os.ReadFile(p)
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Error("conflicting upsert must leave the existing file untouched")
	}
}

func TestUpsertLetter_SameDateDifferentTitle(t *testing.T) {
	a := testArchive(t, Options{})
	if _, err := a.UpsertLetter(msg("2025/04/03: 上午")); err != nil {
		t.Fatalf("first: %v", err)
	}
	if _, err := a.UpsertLetter(msg("2025/04/03: 下午")); err != nil {
		t.Fatalf("second: %v", err)
	}
	names, _ := a.Letters().List()
	if len(names) != 2 {
		t.Errorf("letters = %v, want 2 files", names)
	}
}

func TestUpsertLetter_EditPreservesCreatedAt(t *testing.T) {
	a := testArchive(t, Options{})
	first, err := a.UpsertLetter(msg("2025/04/03: 测试数据"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	edit := msg("[edit] 2025/04/03: 测试数据")
	edit.Body = "revised content"
	edit.Date = time.Date(2025, 4, 10, 9, 0, 0, 0, time.UTC)
	updated, err := a.UpsertLetter(edit)
	if err != nil {
		t.Fatalf("edit: %v", err)
	}

	if updated.CreatedAt == nil || !updated.CreatedAt.Equal(*first.CreatedAt) {
		t.Errorf("created_at = %v, want preserved %v", updated.CreatedAt, first.CreatedAt)
	}
	if updated.UpdatedAt == nil || !updated.UpdatedAt.Equal(edit.Date) {
		t.Errorf("updated_at = %v, want %v", updated.UpdatedAt, edit.Date)
	}
	if updated.Content != "revised content" {
		t.Errorf("content = %q", updated.Content)
	}

	// On-disk record reflects the edit.
	got, err := a.GetLetter(Filename(updated.Date, updated.Title))
	if err != nil {
		t.Fatal(err)
	}
	if got.Content != "revised content" || !got.CreatedAt.Equal(*first.CreatedAt) {
		t.Errorf("persisted letter = %+v", got)
	}
}

func TestUpsertLetter_EditOnMissingTargetCreates(t *testing.T) {
	a := testArchive(t, Options{})
	letter, err := a.UpsertLetter(msg("[edit] 2025/04/03: 新信"))
	if err != nil {
		t.Fatalf("UpsertLetter: %v", err)
	}
	if letter.CreatedAt == nil {
		t.Error("created_at should be set from the message timestamp")
	}
}

func TestUpsertLetter_UnknownAction(t *testing.T) {
	a := testArchive(t, Options{})
	if _, err := a.UpsertLetter(msg("[delete] 2025/04/03")); !errors.Is(err, apperr.ErrUnknownAction) {
		t.Errorf("error = %v, want ErrUnknownAction", err)
	}
	// Nothing must be written.
	names, _ := a.Letters().List()
	if len(names) != 0 {
		t.Errorf("letters = %v, want none", names)
	}
}

func TestUpsertLetter_AddressNotAllowed(t *testing.T) {
	a := testArchive(t, Options{})

	m := msg("2025/04/03")
	m.From = "stranger@example.com"
	if _, err := a.UpsertLetter(m); !errors.Is(err, apperr.ErrNotAllowed) {
		t.Errorf("sender error = %v, want ErrNotAllowed", err)
	}

	// A display name matching an allow-list entry grants nothing.
	m.From = "哥哥 <stranger@example.com>"
	if _, err := a.UpsertLetter(m); !errors.Is(err, apperr.ErrNotAllowed) {
		t.Errorf("sender error = %v, want ErrNotAllowed", err)
	}

	m = msg("2025/04/03")
	m.To = "other@example.com"
	if _, err := a.UpsertLetter(m); !errors.Is(err, apperr.ErrNotAllowed) {
		t.Errorf("recipient error = %v, want ErrNotAllowed", err)
	}
}

func TestUpsertLetter_UnknownRole(t *testing.T) {
	a := testArchive(t, Options{})
	m := msg("2025/04/03")
	m.From = "robot@example.com"
	if _, err := a.UpsertLetter(m); !errors.Is(err, apperr.ErrUnknownRole) {
		t.Errorf("error = %v, want ErrUnknownRole", err)
	}
}

func TestUpsertLetter_MalformedSubjectWritesNothing(t *testing.T) {
	a := testArchive(t, Options{})
	if _, err := a.UpsertLetter(msg("no date here")); !errors.Is(err, apperr.ErrMalformedSubject) {
		t.Errorf("error = %v, want ErrMalformedSubject", err)
	}
	names, _ := a.Letters().List()
	if len(names) != 0 {
		t.Errorf("letters = %v, want none", names)
	}
}

func TestUpsertLetter_OverwriteConfigured(t *testing.T) {
	a := testArchive(t, Options{Overwrite: true})
	first, err := a.UpsertLetter(msg("2025/04/03"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	dup := msg("2025/04/03")
	dup.Body = "overwritten"
	dup.Date = time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	updated, err := a.UpsertLetter(dup)
	if err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if updated.Content != "overwritten" {
		t.Errorf("content = %q", updated.Content)
	}
	if !updated.CreatedAt.Equal(*first.CreatedAt) {
		t.Errorf("created_at = %v, want preserved", updated.CreatedAt)
	}
}

func TestUpsertLetter_PushFailureIsNonFatal(t *testing.T) {
	sync := &fakeSyncer{pushErr: fmt.Errorf("remote unavailable: %w", apperr.ErrPushFailed)}
	a := testArchive(t, Options{LetterRepo: sync, Push: true, Retry: 3})

	if _, err := a.UpsertLetter(msg("2025/04/03")); err != nil {
		t.Fatalf("UpsertLetter: %v", err)
	}
	if sync.pushes != 1 {
		t.Errorf("pushes = %d, want 1", sync.pushes)
	}
	if len(sync.commits) != 1 {
		t.Errorf("commits = %v, the letter must stay committed", sync.commits)
	}
}

func TestUpsertLetter_PreCleanupRunsBeforeWrite(t *testing.T) {
	sync := &fakeSyncer{}
	a := testArchive(t, Options{LetterRepo: sync, PreCleanup: true})
	if _, err := a.UpsertLetter(msg("2025/04/03")); err != nil {
		t.Fatalf("UpsertLetter: %v", err)
	}
	if sync.cleanups != 1 {
		t.Errorf("cleanups = %d, want 1", sync.cleanups)
	}
}

func TestUpsertLetter_StagedPathIsLetterFile(t *testing.T) {
	sync := &fakeSyncer{}
	a := testArchive(t, Options{LetterRepo: sync})
	letter, err := a.UpsertLetter(msg("2025/04/03: 测试数据"))
	if err != nil {
		t.Fatal(err)
	}
	want, _ := a.Letters().Path(Filename(letter.Date, letter.Title))
	if len(sync.adds) != 1 || sync.adds[0] != want {
		t.Errorf("adds = %v, want [%s]", sync.adds, want)
	}
	if filepath.Dir(sync.adds[0]) != a.Letters().Dir() {
		t.Errorf("staged path %q outside letter dir", sync.adds[0])
	}
}
