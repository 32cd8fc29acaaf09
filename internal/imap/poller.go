// Package imap polls one mailbox account for messages that arrived after the
// stored cursor and fetches their raw bytes.
package imap

import (
	"fmt"
	"io"
	"sort"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"

	"github.com/vdavid/mailfwd/internal/config"
)

// RawMessage is one fetched message: the server-assigned UID plus the full
// RFC 822 wire bytes. Consumed once by decomposition, then discarded.
type RawMessage struct {
	UID uint32
	Raw []byte
}

// SkippedFetch records a single-message fetch that failed. The UID is still
// part of the attempted set and counts toward the proposed cursor.
type SkippedFetch struct {
	UID uint32
	Err error
}

// Result is the outcome of polling one account.
type Result struct {
	// NewCursor is the proposed UID high-water mark after this run. Only
	// meaningful when CursorSet is true; an empty mailbox on first sight
	// proposes nothing.
	NewCursor uint32
	CursorSet bool
	// Baseline reports that the account had no prior cursor: NewCursor is
	// the highest pre-existing UID and no messages are returned. An
	// account's pre-existing mail is never forwarded.
	Baseline bool
	// Messages holds the successfully fetched new messages in ascending UID
	// order, matching arrival order as approximated by UID magnitude.
	Messages []RawMessage
	// Skipped holds the UIDs whose fetch failed. They are not retried.
	Skipped []SkippedFetch
}

// Poller connects to one account per call. Each connection is scoped to that
// call and logged out on every exit path.
type Poller struct {
	// DisableTLS connects in plaintext. Only for tests against the
	// in-process server.
	DisableTLS bool

	// fetch is swappable in tests to simulate per-message fetch failures.
	fetch func(c *client.Client, uid uint32) ([]byte, error)
}

// Poll lists the account's INBOX UIDs and fetches everything newer than
// lastUID. haveCursor is false when the account has never been seen, which
// triggers the baseline rule instead of fetching. A listing-level failure
// returns an error and leaves the account's cursor untouched for this run.
func (p *Poller) Poll(account config.Account, lastUID uint32, haveCursor bool) (*Result, error) {
	c, err := Connect(account.Addr(), !p.DisableTLS)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", account.Addr(), err)
	}
	defer func() {
		_ = c.Logout()
	}()

	if err := Login(c, account.Username, account.Password); err != nil {
		return nil, err
	}

	if _, err := c.Select("INBOX", false); err != nil {
		return nil, fmt.Errorf("failed to select INBOX: %w", err)
	}

	uids, err := searchAllUIDs(c)
	if err != nil {
		return nil, err
	}

	if len(uids) == 0 {
		return &Result{}, nil
	}

	maxUID := uids[0]
	for _, uid := range uids {
		if uid > maxUID {
			maxUID = uid
		}
	}

	if !haveCursor {
		return &Result{NewCursor: maxUID, CursorSet: true, Baseline: true}, nil
	}

	var newUIDs []uint32
	for _, uid := range uids {
		if uid > lastUID {
			newUIDs = append(newUIDs, uid)
		}
	}
	if len(newUIDs) == 0 {
		return &Result{NewCursor: lastUID, CursorSet: true}, nil
	}

	sort.Slice(newUIDs, func(i, j int) bool { return newUIDs[i] < newUIDs[j] })

	// The cursor advances over the whole attempted set, so a message whose
	// fetch fails is not retried on the next run.
	result := &Result{
		NewCursor: newUIDs[len(newUIDs)-1],
		CursorSet: true,
	}

	fetch := p.fetch
	if fetch == nil {
		fetch = fetchRaw
	}

	for _, uid := range newUIDs {
		raw, err := fetch(c, uid)
		if err != nil {
			result.Skipped = append(result.Skipped, SkippedFetch{UID: uid, Err: err})
			continue
		}
		result.Messages = append(result.Messages, RawMessage{UID: uid, Raw: raw})
	}

	return result, nil
}

// searchAllUIDs returns every UID currently present in the selected mailbox.
func searchAllUIDs(c *client.Client) ([]uint32, error) {
	criteria := imap.NewSearchCriteria()
	criteria.Uid = new(imap.SeqSet)
	criteria.Uid.AddRange(1, 0) // 1:*

	uids, err := c.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to search UIDs: %w", err)
	}

	return uids, nil
}

// fetchRaw fetches the full raw bytes of a single message by UID.
func fetchRaw(c *client.Client, uid uint32) ([]byte, error) {
	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	section := &imap.BodySectionName{}
	items := []imap.FetchItem{imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)

	go func() {
		done <- c.UidFetch(seqSet, items, messages)
	}()

	var msg *imap.Message
	for m := range messages {
		if msg == nil {
			msg = m
		}
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch message: %w", err)
	}
	if msg == nil {
		return nil, fmt.Errorf("server did not return message")
	}

	body := msg.GetBody(section)
	if body == nil {
		return nil, fmt.Errorf("server did not return body section")
	}

	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read message body: %w", err)
	}

	return raw, nil
}
