// Package runner drives one forwarding run: every configured account is
// polled in order, each newly arrived message is decomposed, rebuilt and
// dispatched, and the advanced cursors are persisted once at the end.
package runner

import (
	"fmt"
	"log/slog"

	"github.com/vdavid/mailfwd/internal/config"
	"github.com/vdavid/mailfwd/internal/cursor"
	"github.com/vdavid/mailfwd/internal/forward"
	"github.com/vdavid/mailfwd/internal/imap"
	"github.com/vdavid/mailfwd/internal/relay"
)

// Runner wires the poller, decomposer, builder and dispatcher together for
// one batch run. It is the only component that mutates the cursor mapping.
type Runner struct {
	Config     *config.Config
	Store      *cursor.Store
	Poller     *imap.Poller
	Dispatcher *relay.Dispatcher
	Log        *slog.Logger
}

// Run executes one full run. Account-level and message-level failures are
// logged and never abort the run; only loading or persisting the cursor
// state returns an error. Messages that fail to forward are still marked
// seen, so delivery is at-least-once, never exactly-once.
func (r *Runner) Run() error {
	state, err := r.Store.Load()
	if err != nil {
		return fmt.Errorf("failed to load cursor state: %w", err)
	}

	var forwarded, failed int
	for _, account := range r.Config.Accounts {
		f, fl := r.processAccount(account, state)
		forwarded += f
		failed += fl
	}

	if err := r.Store.Save(state); err != nil {
		return fmt.Errorf("failed to persist cursor state: %w", err)
	}

	r.Log.Info("run complete",
		"accounts", len(r.Config.Accounts),
		"forwarded", forwarded,
		"failed", failed,
		"cursors", state)

	return nil
}

// processAccount polls one account and forwards its new messages in
// ascending UID order. The account's cursor is advanced to the highest UID
// of the attempted fetch set regardless of individual forward failures.
func (r *Runner) processAccount(account config.Account, state map[string]uint32) (forwarded, failed int) {
	log := r.Log.With("account", account.Username)
	log.Info("checking mailbox")

	lastUID, haveCursor := state[account.Username]
	result, err := r.Poller.Poll(account, lastUID, haveCursor)
	if err != nil {
		// Listing-level failure: this account's cursor stays untouched for
		// the run, the remaining accounts still run.
		log.Error("mailbox poll failed", "error", err)
		return 0, 0
	}

	if result.Baseline {
		state[account.Username] = result.NewCursor
		log.Info("first run, baseline cursor set", "uid", result.NewCursor)
		return 0, 0
	}

	for _, skipped := range result.Skipped {
		log.Warn("message fetch failed, skipping", "uid", skipped.UID, "error", skipped.Err)
	}

	for _, msg := range result.Messages {
		if err := r.forwardOne(log, msg); err != nil {
			failed++
			log.Error("forward failed", "uid", msg.UID, "error", err)
			continue
		}
		forwarded++
	}

	if result.CursorSet {
		state[account.Username] = result.NewCursor
	}

	return forwarded, failed
}

// forwardOne runs one message through decompose, build and dispatch. Any
// error makes this one message "seen but not forwarded"; it will not be
// retried on the next run.
func (r *Runner) forwardOne(log *slog.Logger, msg imap.RawMessage) error {
	decomposed, err := forward.Decompose(msg.Raw)
	if err != nil {
		return err
	}

	for _, defect := range decomposed.Defects {
		log.Warn("message defect", "uid", msg.UID, "defect", defect)
	}

	out, err := forward.BuildForward(decomposed, r.Config.SMTP.FromAddress, r.Config.ForwardTo)
	if err != nil {
		return err
	}

	if err := r.Dispatcher.Send(out); err != nil {
		return err
	}

	log.Info("forwarded", "uid", msg.UID, "subject", decomposed.Subject)
	return nil
}
