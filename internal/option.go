package internal

import "github.com/SilverRainZ/loveletter/internal/mailbox"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config
	source mailbox.Source
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithSource overrides the mailbox source. Used by tests to feed
// messages without a live IMAP server.
func WithSource(src mailbox.Source) Option {
	return func(a *application) {
		a.source = src
	}
}
