package archive

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/SilverRainZ/loveletter/internal/address"
	"github.com/SilverRainZ/loveletter/internal/models"
)

// IndexDocFile is the static master document of the compiled doc tree.
const IndexDocFile = "index.rst"

// indexDoc enumerates year documents by glob; its content never depends on
// the record set.
const indexDoc = `===============
💌 Love Letters
===============

.. hint::
   Generated from :ghrepo:` + "`SilverRainZ/loveletter`" + `.

.. toctree::
   :glob:

   *
`

// GenerateDocs rebuilds the document directory from the current set of
// letters: the static index, one reStructuredText file per year (letters
// newest first), stale year files removed. The rebuild is a pure function
// of the letter set, so running it twice without letter changes produces
// byte-identical files and no second commit.
func (a *Archive) GenerateDocs() error {
	if a.preCleanup {
		if err := a.docRepo.Cleanup(); err != nil {
			return err
		}
	}

	if err := writeFileAtomic(filepath.Join(a.docDir, IndexDocFile), []byte(indexDoc)); err != nil {
		return err
	}

	names, err := a.letters.List()
	if err != nil {
		return err
	}
	// Descending filenames put the newest dates first.
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}

	var years []int
	byYear := make(map[int][]*models.Letter)
	for _, name := range names {
		letter, err := a.letters.Read(name)
		if err != nil {
			return err
		}
		y := letter.Date.Year
		if _, ok := byYear[y]; !ok {
			years = append(years, y)
		}
		byYear[y] = append(byYear[y], letter)
	}

	generated := map[string]bool{IndexDocFile: true}
	for _, y := range years {
		var b strings.Builder
		b.WriteString(yearHeading(y))
		for _, letter := range byYear[y] {
			b.WriteString(section(letter))
		}
		fname := fmt.Sprintf("%04d.rst", y)
		if err := writeFileAtomic(filepath.Join(a.docDir, fname), []byte(b.String())); err != nil {
			return err
		}
		generated[fname] = true
	}

	// Years that no longer have letters lose their document.
	entries, err := os.ReadDir(a.docDir)
	if err != nil {
		return fmt.Errorf("docs: list: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".rst") || generated[e.Name()] {
			continue
		}
		if err := os.Remove(filepath.Join(a.docDir, e.Name())); err != nil {
			return fmt.Errorf("docs: remove stale %s: %w", e.Name(), err)
		}
	}

	// One commit for the whole batch. Staging the directory picks up
	// rewrites and deletions alike; an unchanged tree means no commit.
	if err := a.docRepo.Add(a.docDir); err != nil {
		return err
	}
	clean, err := a.docRepo.IsClean()
	if err != nil {
		return err
	}
	if clean {
		a.logger.Debug("documents unchanged, skipping commit")
		return nil
	}
	if err := a.docRepo.Commit("regenerate documents", ""); err != nil {
		return err
	}
	a.pushIfEnabled(a.docRepo, "docs")

	a.logger.Info("documents generated", slog.Int("years", len(years)), slog.Int("letters", len(names)))
	return nil
}

// yearHeading renders the one-time document title. Underlines are sized by
// display width so CJK text and emoji line up in rendered output.
func yearHeading(year int) string {
	title := fmt.Sprintf("💌  Love Letter from %d", year)
	delim := strings.Repeat("=", runewidth.StringWidth(title))
	return delim + "\n" + title + "\n" + delim + "\n\n"
}

// section renders one letter as an rst section with a loveletter directive.
func section(l *models.Letter) string {
	title := l.Date.String()
	if l.Title != "" {
		title += ": " + l.Title
	}

	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", runewidth.StringWidth(title)))
	b.WriteString("\n\n")
	b.WriteString(".. loveletter:: _\n")
	fmt.Fprintf(&b, "   :date: %s\n", l.Date)
	fmt.Fprintf(&b, "   :author: %s\n", address.DisplayName(l.From))
	fmt.Fprintf(&b, "   :role: %s\n", l.SenderRole)
	fmt.Fprintf(&b, "   :createdat: %s\n", dayString(l.CreatedAt))
	fmt.Fprintf(&b, "   :updatedat: %s\n", dayString(l.UpdatedAt))
	b.WriteString("\n")
	b.WriteString(indent(l.Content, "   "))
	b.WriteString("\n\n")
	return b.String()
}

func dayString(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}

// indent prefixes every non-empty line so the content nests inside the
// directive while staying verbatim.
func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = prefix + line
		}
	}
	return strings.Join(lines, "\n")
}
