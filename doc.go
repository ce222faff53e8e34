// Package credits provides a per-account usage credit ledger for Go
// applications.
//
// Credits is a library, not a service. Every account holds a non-negative
// integer balance, optionally flagged unlimited. Balances are consumed by
// Deduct, topped up by Add, and grown by one-time referral bonuses. Every
// accepted change is journaled as an immutable Entry.
//
// # Quick Start
//
//	l := credits.New(memory.New())
//	if err := l.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer l.Stop()
//
//	acct, _ := l.InitializeAccount(ctx, "alice") // balance 500
//	bal, err := l.Deduct(ctx, "alice", 120)       // balance 380
//	if errors.Is(err, credits.ErrInsufficientBalance) {
//	    // reject the request
//	}
//
// # Concurrency
//
// Accounts carry a version. Mutations read the account, apply the policy
// and write back conditionally on the version they read. A lost race is
// retried with jittered backoff up to Config.MaxAttempts, after which the
// caller receives ErrLedgerBusy. A deduct is never applied against a stale
// balance, so a balance never goes negative even when many processes share
// one store.
//
// # Referrals
//
// RedeemReferral grants ReferralBonus to both the inviter and the invitee,
// at most once per ordered pair. The redemption record is claimed before
// any bonus is credited; a crash in between leaves a redemption that
// Reconcile completes later.
//
// # Stores
//
// Backends live under store/: memory, sqlite, postgres and mongo implement
// the full store.Store contract. store/redis keeps redemptions only and is
// plugged in with WithReferralStore.
//
// # TypeID
//
// Journal entries and redemptions use TypeID identifiers:
//
//	lent_01h2xcejqtf2nbrexx3vqjhp41  // Entry ID
//	rdm_01h455vb4pex5vsknk084sn02q   // Redemption ID
package credits
