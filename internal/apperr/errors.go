// Package apperr defines the sentinel errors shared across the archive.
package apperr

import "errors"

var (
	// ErrNotFound is returned when a requested letter does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when an upsert would overwrite an existing
	// letter without an edit action.
	ErrConflict = errors.New("conflict")
	// ErrCorrupt is returned when a letter file exists but cannot be decoded.
	ErrCorrupt = errors.New("corrupt letter file")
	// ErrMalformedSubject is returned when a mail subject does not match
	// the "[ACTION] YYYY/MM[/DD]: TITLE" grammar.
	ErrMalformedSubject = errors.New("malformed subject")
	// ErrUnknownAction is returned for a bracketed action other than "edit".
	ErrUnknownAction = errors.New("unknown action")
	// ErrUnknownRole is returned when an allow-list entry's display name is
	// not one of the recognized correspondent roles.
	ErrUnknownRole = errors.New("unknown role")
	// ErrNotAllowed is returned when an address is not in the allow-list.
	ErrNotAllowed = errors.New("address not allowed")
	// ErrPathEscapesRepo is returned when a staged path resolves outside
	// the repository root.
	ErrPathEscapesRepo = errors.New("path escapes repository")
	// ErrPushFailed is returned when every push attempt failed. The local
	// commit is intact; only remote visibility is affected.
	ErrPushFailed = errors.New("push failed")
)
