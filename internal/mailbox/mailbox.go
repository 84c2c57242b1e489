// Package mailbox fetches letter candidates from a mail account and
// decodes them into archive messages.
package mailbox

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/SilverRainZ/loveletter/internal/archive"
)

// Source yields messages that have not been processed yet. Fetching a
// message marks it as seen on the server, so each message is returned
// at most once across polls.
type Source interface {
	FetchUnseen(ctx context.Context) ([]archive.Message, error)
}

// IMAP is a Source backed by an IMAP mailbox over TLS.
type IMAP struct {
	addr     string
	username string
	password string
	mailbox  string
	logger   *slog.Logger
}

// NewIMAP creates an IMAP source. mailbox is the folder to poll,
// typically "INBOX".
func NewIMAP(host string, port int, username, password, mailbox string, logger *slog.Logger) *IMAP {
	if logger == nil {
		logger = slog.Default()
	}
	return &IMAP{
		addr:     fmt.Sprintf("%s:%d", host, port),
		username: username,
		password: password,
		mailbox:  mailbox,
		logger:   logger,
	}
}

// FetchUnseen connects, searches the folder for unseen messages and
// returns their decoded forms. Messages that fail to decode are logged
// and skipped rather than failing the whole batch. The body fetch sets
// the \Seen flag server-side.
func (m *IMAP) FetchUnseen(ctx context.Context) ([]archive.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client, err := imapclient.DialTLS(m.addr, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", m.addr, err)
	}
	defer client.Close()

	if err := client.Login(m.username, m.password).Wait(); err != nil {
		return nil, fmt.Errorf("login as %s: %w", m.username, err)
	}
	defer client.Logout()

	if _, err := client.Select(m.mailbox, nil).Wait(); err != nil {
		return nil, fmt.Errorf("select %s: %w", m.mailbox, err)
	}

	criteria := &imap.SearchCriteria{NotFlag: []imap.Flag{imap.FlagSeen}}
	found, err := client.Search(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("search unseen: %w", err)
	}
	nums := found.AllSeqNums()
	if len(nums) == 0 {
		return nil, nil
	}
	m.logger.Info("unseen mail found", slog.Int("count", len(nums)))

	section := &imap.FetchItemBodySection{}
	options := &imap.FetchOptions{
		BodySection: []*imap.FetchItemBodySection{section},
	}
	fetched, err := client.Fetch(imap.SeqSetNum(nums...), options).Collect()
	if err != nil {
		return nil, fmt.Errorf("fetch bodies: %w", err)
	}

	msgs := make([]archive.Message, 0, len(fetched))
	for _, buf := range fetched {
		raw := buf.FindBodySection(section)
		if raw == nil {
			m.logger.Warn("fetched mail has no body section", slog.Uint64("seq", uint64(buf.SeqNum)))
			continue
		}
		msg, err := Decode(raw)
		if err != nil {
			m.logger.Warn("skipping undecodable mail",
				slog.Uint64("seq", uint64(buf.SeqNum)),
				slog.String("error", err.Error()))
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}
