// Package gitrepo wraps a git working directory behind the Syncer
// capability set used by the archive for durability.
package gitrepo

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/SilverRainZ/loveletter/internal/apperr"
)

// Syncer is the capability set the archive needs from version control.
// A test double can implement it against a temporary directory.
type Syncer interface {
	// Add stages a path. Paths resolving outside the repository root are
	// rejected with ErrPathEscapesRepo.
	Add(path string) error
	// Commit records staged changes. author, when non-empty, overrides
	// the committer identity ("Name <address>").
	Commit(msg, author string) error
	// Push integrates remote changes and pushes the local branch, each
	// with up to retry attempts. Failing every attempt returns
	// ErrPushFailed; the local commit is unaffected.
	Push(retry int) error
	// Cleanup discards untracked files and hard-resets tracked files to
	// the last commit.
	Cleanup() error
	// IsClean reports whether the working tree has no pending changes.
	IsClean() (bool, error)
}

const gitTimeout = 30 * time.Second

// Repo implements Syncer by shelling out to the git binary.
type Repo struct {
	root string // absolute path to the repository top level
}

// Init creates a new git repository in dir.
func Init(dir string) (*Repo, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("gitrepo: resolve %s: %w", dir, err)
	}
	if _, err := execGit(abs, "init"); err != nil {
		return nil, err
	}
	return &Repo{root: abs}, nil
}

// Load opens the repository enclosing dir.
func Load(dir string) (*Repo, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("gitrepo: resolve %s: %w", dir, err)
	}
	out, err := execGit(abs, "rev-parse", "--show-toplevel")
	if err != nil {
		return nil, fmt.Errorf("gitrepo: %s is not inside a git repository: %w", dir, err)
	}
	return &Repo{root: strings.TrimSpace(out)}, nil
}

// Root returns the repository top-level directory.
func (r *Repo) Root() string {
	return r.root
}

// Add stages path, which may be absolute or relative to the working
// directory. The resolved path must stay under the repository root.
func (r *Repo) Add(path string) error {
	rel, err := r.relPath(path)
	if err != nil {
		return err
	}
	if _, err := execGit(r.root, "add", rel); err != nil {
		return fmt.Errorf("gitrepo: add %s: %w", rel, err)
	}
	return nil
}

// Commit records staged changes with msg, overriding the author when one
// is given.
func (r *Repo) Commit(msg, author string) error {
	args := []string{"commit", "--message", msg}
	if author != "" {
		args = append(args, "--author", author)
	}
	if _, err := execGit(r.root, args...); err != nil {
		return fmt.Errorf("gitrepo: commit: %w", err)
	}
	return nil
}

// Push first integrates remote changes with pull --rebase, then pushes,
// each step retried up to retry times. Attempt failures are warnings; only
// exhausting all attempts fails the operation.
func (r *Repo) Push(retry int) error {
	if retry < 1 {
		retry = 1
	}
	if err := r.attempt(retry, "pull", "--rebase"); err != nil {
		return err
	}
	return r.attempt(retry, "push")
}

func (r *Repo) attempt(retry int, args ...string) error {
	var lastErr error
	for i := 1; i <= retry; i++ {
		if _, lastErr = execGit(r.root, args...); lastErr == nil {
			return nil
		}
		slog.Warn("git command failed",
			slog.String("repo", r.root),
			slog.String("command", strings.Join(args, " ")),
			slog.Int("attempt", i),
			slog.Int("retry", retry),
			slog.String("error", lastErr.Error()))
	}
	return fmt.Errorf("gitrepo: %s after %d attempts: %v: %w",
		strings.Join(args, " "), retry, lastErr, apperr.ErrPushFailed)
}

// Cleanup discards untracked files and hard-resets tracked files, leaving
// the working tree at the last commit. Used defensively before mutating
// operations, never after.
func (r *Repo) Cleanup() error {
	if _, err := execGit(r.root, "clean", "-fd"); err != nil {
		return fmt.Errorf("gitrepo: clean: %w", err)
	}
	if _, err := execGit(r.root, "reset", "--hard", "HEAD"); err != nil {
		return fmt.Errorf("gitrepo: reset: %w", err)
	}
	return nil
}

// IsClean reports whether the working tree has no staged, modified, or
// untracked files.
func (r *Repo) IsClean() (bool, error) {
	out, err := execGit(r.root, "status", "--porcelain")
	if err != nil {
		return false, fmt.Errorf("gitrepo: status: %w", err)
	}
	return strings.TrimSpace(out) == "", nil
}

// relPath resolves path against the repository root and rejects any result
// escaping it. Symlinks are resolved when the path exists.
func (r *Repo) relPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("gitrepo: resolve %s: %w", path, err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	root := r.root
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("gitrepo: %s: %w", path, apperr.ErrPathEscapesRepo)
	}
	return rel, nil
}

// execGit runs one git command in dir and returns its combined output.
func execGit(dir string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), gitTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

// NopSyncer satisfies Syncer without any version control. It backs tests
// and git-disabled deployments.
type NopSyncer struct{}

func (NopSyncer) Add(string) error            { return nil }
func (NopSyncer) Commit(string, string) error { return nil }
func (NopSyncer) Push(int) error              { return nil }
func (NopSyncer) Cleanup() error              { return nil }
func (NopSyncer) IsClean() (bool, error)      { return true, nil }
