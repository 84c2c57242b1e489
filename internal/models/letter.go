// Package models defines the domain types for the love letter archive.
package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Display names recognized on allow-list entries. Any other display name
// cannot be mapped to a Role.
const (
	RoleNameMeimei = "妹妹"
	RoleNameGege   = "哥哥"
)

// Role identifies which correspondent wrote a letter.
type Role int

const (
	RoleGege Role = iota
	RoleMeimei
)

// String returns the serialized role name.
func (r Role) String() string {
	if r == RoleMeimei {
		return "meimei"
	}
	return "gege"
}

// ParseRole parses a serialized role name.
func ParseRole(s string) (Role, error) {
	switch s {
	case "meimei":
		return RoleMeimei, nil
	case "gege":
		return RoleGege, nil
	default:
		return RoleGege, fmt.Errorf("unknown role %q", s)
	}
}

// MarshalYAML encodes the role as its string name.
func (r Role) MarshalYAML() (any, error) {
	return r.String(), nil
}

// UnmarshalYAML decodes the role from its string name.
func (r *Role) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Date is a calendar date whose day component may be absent (Day == 0).
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// String renders the date as "YYYY-MM-DD", or "YYYY-MM" when the day is
// absent. The zero padding keeps the text form filename-sortable.
func (d Date) String() string {
	if d.Day == 0 {
		return fmt.Sprintf("%04d-%02d", d.Year, int(d.Month))
	}
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Valid reports whether the date obeys calendar rules. A four-digit year
// is required so that date strings sort correctly.
func (d Date) Valid() bool {
	if d.Year < 1 || d.Year > 9999 {
		return false
	}
	if d.Month < time.January || d.Month > time.December {
		return false
	}
	if d.Day == 0 {
		return true
	}
	t := time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
	return t.Year() == d.Year && t.Month() == d.Month && t.Day() == d.Day
}

// ParseDate parses the "YYYY-MM[-DD]" text form produced by String.
func ParseDate(s string) (Date, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 2 && len(parts) != 3 {
		return Date{}, fmt.Errorf("invalid date %q", s)
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	day := 0
	if len(parts) == 3 {
		day, err = strconv.Atoi(parts[2])
		if err != nil {
			return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
		}
	}
	d := Date{Year: year, Month: time.Month(month), Day: day}
	if !d.Valid() {
		return Date{}, fmt.Errorf("invalid date %q", s)
	}
	return d, nil
}

// MarshalYAML encodes the date in its text form.
func (d Date) MarshalYAML() (any, error) {
	return d.String(), nil
}

// UnmarshalYAML decodes the date from its text form.
func (d *Date) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Letter is one archived record, persisted as a flat YAML file.
type Letter struct {
	From       string `yaml:"from"`
	To         string `yaml:"to"`
	SenderRole Role   `yaml:"sender_role"`

	CreatedAt *time.Time `yaml:"created_at,omitempty"`
	UpdatedAt *time.Time `yaml:"updated_at,omitempty"`

	Date    Date   `yaml:"date"`
	Title   string `yaml:"title,omitempty"`
	Content string `yaml:"content"`
}
