// Package archive persists letters extracted from inbound mail and
// compiles them into per-year reStructuredText documents, with a git
// repository behind each managed directory for durability.
package archive

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/SilverRainZ/loveletter/internal/address"
	"github.com/SilverRainZ/loveletter/internal/apperr"
	"github.com/SilverRainZ/loveletter/internal/gitrepo"
	"github.com/SilverRainZ/loveletter/internal/models"
	"github.com/SilverRainZ/loveletter/internal/subject"
)

// Message is one decoded inbound mail, fed to UpsertLetter by the poll
// loop. Date is the message timestamp and may be zero.
type Message struct {
	From    string
	To      string
	Subject string
	Date    time.Time
	Body    string
}

// Options configures an Archive. Both directories must exist; the caller
// owns directory creation.
type Options struct {
	LetterDir string
	DocDir    string

	AllowedFrom address.List
	AllowedTo   address.List

	LetterRepo gitrepo.Syncer
	DocRepo    gitrepo.Syncer

	Push       bool // push after commits
	PreCleanup bool // reset the working tree before mutating operations
	Overwrite  bool // treat duplicate targets as edits even without [edit]
	Retry      int  // bounded retry for pull/push

	Logger *slog.Logger
}

// Archive orchestrates validation, parsing, persistence, and
// synchronization for letters and their compiled documents.
type Archive struct {
	letters *Store
	docDir  string

	allowedFrom address.List
	allowedTo   address.List

	letterRepo gitrepo.Syncer
	docRepo    gitrepo.Syncer

	push       bool
	preCleanup bool
	overwrite  bool
	retry      int

	logger *slog.Logger
}

// New creates an Archive over existing letter and document directories.
func New(opts Options) (*Archive, error) {
	letters, err := NewStore(opts.LetterDir)
	if err != nil {
		return nil, err
	}
	docs, err := NewStore(opts.DocDir)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	letterRepo := opts.LetterRepo
	if letterRepo == nil {
		letterRepo = gitrepo.NopSyncer{}
	}
	docRepo := opts.DocRepo
	if docRepo == nil {
		docRepo = gitrepo.NopSyncer{}
	}
	return &Archive{
		letters:     letters,
		docDir:      docs.Dir(),
		allowedFrom: opts.AllowedFrom,
		allowedTo:   opts.AllowedTo,
		letterRepo:  letterRepo,
		docRepo:     docRepo,
		push:        opts.Push,
		preCleanup:  opts.PreCleanup,
		overwrite:   opts.Overwrite,
		retry:       opts.Retry,
		logger:      logger,
	}, nil
}

// Letters exposes the letter store for read-only consumers (index, API).
func (a *Archive) Letters() *Store {
	return a.letters
}

// UpsertLetter validates one decoded message, persists it as a letter, and
// commits the write. A push failure is a warning: the letter stays
// committed locally.
func (a *Archive) UpsertLetter(m Message) (*models.Letter, error) {
	fromEntry := a.allowedFrom.Find(m.From)
	if fromEntry == nil {
		return nil, fmt.Errorf("sender %q: %w", m.From, apperr.ErrNotAllowed)
	}
	toEntry := a.allowedTo.Find(m.To)
	if toEntry == nil {
		return nil, fmt.Errorf("recipient %q: %w", m.To, apperr.ErrNotAllowed)
	}
	from := address.Resolve(m.From, fromEntry)
	to := address.Resolve(m.To, toEntry)

	parsed, err := subject.Parse(m.Subject)
	if err != nil {
		return nil, err
	}
	if parsed.Action != "" && parsed.Action != "edit" {
		return nil, fmt.Errorf("subject %q: action %q: %w", m.Subject, parsed.Action, apperr.ErrUnknownAction)
	}

	// The role comes from the allow-list entry, not the incoming address,
	// so a bare sender address still resolves.
	role, err := fromEntry.Role()
	if err != nil {
		return nil, fmt.Errorf("sender %q: %w", m.From, err)
	}

	name := Filename(parsed.Date, parsed.Title)
	exists := a.letters.Exists(name)
	a.logger.Info("upserting letter",
		slog.String("file", name),
		slog.String("action", parsed.Action),
		slog.Bool("exists", exists))

	letter := &models.Letter{
		From:       from,
		To:         to,
		SenderRole: role,
		Date:       parsed.Date,
		Title:      parsed.Title,
		Content:    m.Body,
	}
	if !m.Date.IsZero() {
		ts := m.Date
		letter.CreatedAt = &ts
		letter.UpdatedAt = &ts
	}

	if exists {
		if parsed.Action != "edit" && !a.overwrite {
			p, _ := a.letters.Path(name)
			return nil, fmt.Errorf("letter %s already exists at %s: %w", name, p, apperr.ErrConflict)
		}
		// Edits carry the original creation timestamp forward.
		old, err := a.letters.Read(name)
		if err != nil {
			return nil, err
		}
		letter.CreatedAt = old.CreatedAt
	}

	if a.preCleanup {
		if err := a.letterRepo.Cleanup(); err != nil {
			return nil, err
		}
	}
	if err := a.letters.Write(name, letter); err != nil {
		return nil, err
	}

	path, err := a.letters.Path(name)
	if err != nil {
		return nil, err
	}
	if err := a.letterRepo.Add(path); err != nil {
		return nil, err
	}
	if err := a.letterRepo.Commit(m.Subject, from); err != nil {
		return nil, err
	}
	a.pushIfEnabled(a.letterRepo, "letters")

	return letter, nil
}

// GetLetter reads one letter by filename.
func (a *Archive) GetLetter(name string) (*models.Letter, error) {
	return a.letters.Read(name)
}

// pushIfEnabled pushes with bounded retry when pushing is configured.
// Failures degrade to committed-but-not-pushed.
func (a *Archive) pushIfEnabled(repo gitrepo.Syncer, what string) {
	if !a.push {
		return
	}
	if err := repo.Push(a.retry); err != nil {
		a.logger.Warn("push failed, changes remain committed locally",
			slog.String("repo", what),
			slog.String("error", err.Error()))
	}
}
