package credits

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/xraph/credits/account"
	"github.com/xraph/credits/entry"
	"github.com/xraph/credits/id"
)

// mutation computes the next state of an account from a private copy of the
// current one. It must be pure; it may run once per attempt.
type mutation func(account.Account) (account.Account, error)

// commit is what a successful attempt wrote.
type commit struct {
	account *account.Account
	entry   *entry.Entry
}

// run applies mutate to accountID under optimistic concurrency control.
//
// Each attempt reads the record, applies mutate, and writes conditionally on
// the version it read. A lost race retries from a fresh read after a
// randomized exponential delay. Policy errors, missing accounts, store
// failures and context cancellation end the loop at once. When every
// attempt loses, run returns ErrLedgerBusy and nothing has been written.
func (l *Ledger) run(ctx context.Context, accountID string, reason entry.Reason, reference string, mutate mutation) (*commit, error) {
	if l.configErr != nil {
		return nil, l.configErr
	}
	attempts := 0

	attempt := func() (*commit, error) {
		if err := ctx.Err(); err != nil {
			return nil, backoff.Permanent(err)
		}
		attempts++

		current, err := l.store.GetAccount(ctx, accountID)
		if err != nil {
			return nil, backoff.Permanent(err)
		}

		next, err := mutate(*current)
		if err != nil {
			return nil, backoff.Permanent(err)
		}

		now := l.now().UTC()
		next.ID = current.ID
		next.Version = current.Version
		next.Touch(now)

		e := &entry.Entry{
			ID:               id.NewEntryID(),
			AccountID:        current.ID,
			Delta:            next.Balance - current.Balance,
			Reason:           reason,
			ResultingBalance: next.Balance,
			Reference:        reference,
			Timestamp:        now,
		}

		if err := l.store.UpdateAccount(ctx, &next, current.Version, e); err != nil {
			if errors.Is(err, ErrVersionConflict) {
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}

		next.Version = current.Version + 1
		return &commit{account: &next, entry: e}, nil
	}

	res, err := backoff.Retry(ctx, attempt,
		backoff.WithBackOff(l.newBackOff()),
		backoff.WithMaxTries(uint(l.config.MaxAttempts)), //nolint:gosec // at least 1 once configErr is nil
		backoff.WithNotify(func(err error, wait time.Duration) {
			l.logger.Debug("credits: write conflict, retrying",
				"account_id", accountID,
				"reason", reason,
				"attempt", attempts,
				"wait", wait,
			)
			l.plugins.EmitConflictRetry(ctx, accountID, attempts, wait)
		}),
	)
	if err == nil {
		return res, nil
	}

	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Err
	}

	if errors.Is(err, ErrVersionConflict) {
		l.logger.Warn("credits: giving up after repeated write conflicts",
			"account_id", accountID,
			"reason", reason,
			"attempts", attempts,
		)
		l.plugins.EmitLedgerBusy(ctx, accountID, attempts)
		return nil, fmt.Errorf("%w: account %q, %d attempts: %w", ErrLedgerBusy, accountID, attempts, err)
	}
	return nil, err
}

// newBackOff returns a fresh jittered exponential schedule per mutation.
func (l *Ledger) newBackOff() backoff.BackOff {
	return &backoff.ExponentialBackOff{
		InitialInterval:     l.config.BaseBackoff,
		RandomizationFactor: 0.5,
		Multiplier:          2,
		MaxInterval:         l.config.MaxBackoff,
	}
}
