// Package subject parses the "[ACTION] YYYY/MM[/DD]: TITLE" grammar used
// in mail subject lines.
package subject

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/SilverRainZ/loveletter/internal/apperr"
	"github.com/SilverRainZ/loveletter/internal/models"
)

// Result holds the parsed components of a subject line. Title and Action
// are empty when absent.
type Result struct {
	Date   models.Date
	Title  string
	Action string
}

// Parse parses a subject line, left to right after trimming: an optional
// bracketed action, a YEAR/MONTH[/DAY] date, and an optional title after
// an ASCII or full-width colon.
func Parse(s string) (*Result, error) {
	rest := strings.TrimSpace(s)

	// Title comes after the first colon, if any. Both ':' and '：' are
	// accepted because CJK input methods produce the full-width form.
	var title string
	if i := strings.IndexAny(rest, ":："); i >= 0 {
		_, size := utf8.DecodeRuneInString(rest[i:])
		title = strings.TrimSpace(rest[i+size:])
		rest = strings.TrimSpace(rest[:i])
	}

	// Action is the bracketed prefix, if any. A closing bracket with no
	// opening one is a hard failure rather than silently becoming part of
	// the date.
	var action string
	if i := strings.Index(rest, "]"); i >= 0 {
		head := rest[:i]
		open := strings.Index(head, "[")
		if open < 0 {
			return nil, fmt.Errorf("parse subject %q: unmatched brackets: %w", s, apperr.ErrMalformedSubject)
		}
		action = strings.TrimSpace(head[open+1:])
		rest = strings.TrimSpace(rest[i+1:])
	}

	date, err := parseDate(rest)
	if err != nil {
		return nil, fmt.Errorf("parse subject %q: %w", s, err)
	}

	return &Result{Date: date, Title: title, Action: action}, nil
}

// parseDate parses "YEAR/MONTH[/DAY]" and enforces calendar rules.
func parseDate(s string) (models.Date, error) {
	parts := strings.SplitN(s, "/", 3)
	if len(parts) < 2 {
		return models.Date{}, fmt.Errorf("expect date YYYY/MM[/DD], got %q: %w", s, apperr.ErrMalformedSubject)
	}
	year, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return models.Date{}, fmt.Errorf("invalid date %q: %w", s, apperr.ErrMalformedSubject)
	}
	month, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return models.Date{}, fmt.Errorf("invalid date %q: %w", s, apperr.ErrMalformedSubject)
	}
	day := 0
	if len(parts) == 3 {
		day, err = strconv.Atoi(strings.TrimSpace(parts[2]))
		if err != nil {
			return models.Date{}, fmt.Errorf("invalid date %q: %w", s, apperr.ErrMalformedSubject)
		}
	}
	date := models.Date{Year: year, Month: time.Month(month), Day: day}
	if !date.Valid() {
		return models.Date{}, fmt.Errorf("invalid date %q: %w", s, apperr.ErrMalformedSubject)
	}
	return date, nil
}
