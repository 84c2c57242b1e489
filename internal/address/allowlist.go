// Package address implements the correspondent allow-lists. Matching is by
// address identity only; the display name that determines a sender's role
// is the one stored on the allow-list entry, so the system works even when
// the raw mail address carries no display name.
package address

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/SilverRainZ/loveletter/internal/apperr"
	"github.com/SilverRainZ/loveletter/internal/models"
)

// Entry is one authorized correspondent: a canonical address plus the
// display name its role is derived from.
type Entry struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
}

// Full renders the entry as "Name <address>", or the bare address when the
// entry has no display name.
func (e Entry) Full() string {
	if e.Name == "" {
		return e.Address
	}
	return fmt.Sprintf("%s <%s>", e.Name, e.Address)
}

// Role maps the entry's display name to a correspondent role.
func (e Entry) Role() (models.Role, error) {
	switch {
	case strings.Contains(e.Name, models.RoleNameMeimei):
		return models.RoleMeimei, nil
	case strings.Contains(e.Name, models.RoleNameGege):
		return models.RoleGege, nil
	default:
		return models.RoleGege, fmt.Errorf("display name %q: %w", e.Name, apperr.ErrUnknownRole)
	}
}

// List is an ordered allow-list of correspondents.
type List []Entry

// Find returns the entry whose address identity matches raw, ignoring any
// display name carried by raw. Returns nil when no entry matches.
func (l List) Find(raw string) *Entry {
	id := Identity(raw)
	if id == "" {
		return nil
	}
	for i := range l {
		if strings.EqualFold(Identity(l[i].Address), id) {
			return &l[i]
		}
	}
	return nil
}

// Resolve returns raw in full "Name <address>" form: when raw carries a
// display name it is kept as-is, otherwise the allow-list entry's full
// form is substituted.
func Resolve(raw string, e *Entry) string {
	if addr, err := mail.ParseAddress(raw); err == nil && addr.Name != "" {
		return raw
	}
	return e.Full()
}

// Identity extracts the bare, lowercased address from an address string
// that may carry a display name. Returns "" for unparseable input.
func Identity(raw string) string {
	addr, err := mail.ParseAddress(raw)
	if err != nil {
		// Bare addresses with no display name may still be usable.
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" || strings.ContainsAny(trimmed, "<> ") || !strings.Contains(trimmed, "@") {
			return ""
		}
		return strings.ToLower(trimmed)
	}
	return strings.ToLower(addr.Address)
}

// DisplayName returns the display name of an address string, or the bare
// address when no display name is present.
func DisplayName(raw string) string {
	addr, err := mail.ParseAddress(raw)
	if err != nil {
		return strings.TrimSpace(raw)
	}
	if addr.Name != "" {
		return addr.Name
	}
	return addr.Address
}
