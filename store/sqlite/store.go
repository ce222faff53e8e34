package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	_ "github.com/xraph/grove/drivers/sqlitedriver/sqlitemigrate" // registers the sqlite migration executor
	"github.com/xraph/grove/migrate"

	credits "github.com/xraph/credits"
	"github.com/xraph/credits/account"
	"github.com/xraph/credits/entry"
	"github.com/xraph/credits/referral"
	creditstore "github.com/xraph/credits/store"
)

// compile-time interface check
var _ creditstore.Store = (*Store)(nil)

// Store implements store.Store using SQLite via Grove ORM.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables, indexes and journal triggers using the
// grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("credits/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("credits/sqlite: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Account Store ====================

func (s *Store) GetAccount(ctx context.Context, accountID string) (*account.Account, error) {
	m := new(accountModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", accountID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, credits.ErrAccountNotFound
		}
		return nil, err
	}
	return fromAccountModel(m), nil
}

// CreateAccount inserts the account; the journal trigger records init.
func (s *Store) CreateAccount(ctx context.Context, a *account.Account, init *entry.Entry) error {
	m := toAccountModel(a, init)
	res, err := s.sdb.NewInsert(m).
		OnConflict("(id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return credits.ErrAccountExists
	}
	return nil
}

// UpdateAccount writes a only if the stored version still equals
// expectedVersion. The version bump fires the journal trigger, so e is
// appended by the same statement or not at all.
func (s *Store) UpdateAccount(ctx context.Context, a *account.Account, expectedVersion int64, e *entry.Entry) error {
	m := toAccountModel(a, e)
	res, err := s.sdb.NewUpdate((*accountModel)(nil)).
		Set("balance = ?", m.Balance).
		Set("unlimited = ?", m.Unlimited).
		Set("version = ?", expectedVersion+1).
		Set("last_entry_id = ?", m.LastEntryID).
		Set("last_entry_reason = ?", m.LastEntryReason).
		Set("last_entry_delta = ?", m.LastEntryDelta).
		Set("last_entry_reference = ?", m.LastEntryReference).
		Set("last_entry_at = ?", m.LastEntryAt).
		Set("updated_at = ?", m.UpdatedAt).
		Where("id = ?", a.ID).
		Where("version = ?", expectedVersion).
		Exec(ctx)
	if err != nil {
		if isDuplicateReference(err) {
			return credits.ErrDuplicateEntry
		}
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		if _, err := s.GetAccount(ctx, a.ID); err != nil {
			return err
		}
		return credits.ErrVersionConflict
	}
	return nil
}

// ==================== Entry Store ====================

func (s *Store) ListEntries(ctx context.Context, accountID string, opts entry.ListOpts) ([]*entry.Entry, error) {
	var models []entryModel
	q := s.sdb.NewSelect(&models).Where("account_id = ?", accountID)

	if opts.Reason != "" {
		q = q.Where("reason = ?", string(opts.Reason))
	}
	if opts.Reference != "" {
		q = q.Where("reference = ?", opts.Reference)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("seq DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*entry.Entry, len(models))
	for i := range models {
		e, err := fromEntryModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = e
	}
	return result, nil
}

// ==================== Redemption Store ====================

func (s *Store) CreateRedemption(ctx context.Context, r *referral.Redemption) error {
	m := toRedemptionModel(r)
	res, err := s.sdb.NewInsert(m).
		OnConflict("(invitation_key) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return credits.ErrAlreadyRedeemed
	}
	return nil
}

func (s *Store) GetRedemption(ctx context.Context, invitationKey string) (*referral.Redemption, error) {
	m := new(redemptionModel)
	err := s.sdb.NewSelect(m).
		Where("invitation_key = ?", invitationKey).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, credits.ErrRedemptionNotFound
		}
		return nil, err
	}
	return fromRedemptionModel(m)
}

func (s *Store) ListRedemptions(ctx context.Context, opts referral.ListOpts) ([]*referral.Redemption, error) {
	var models []redemptionModel
	q := s.sdb.NewSelect(&models)

	if !opts.RedeemedBefore.IsZero() {
		q = q.Where("redeemed_at < ?", opts.RedeemedBefore.UTC())
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("redeemed_at ASC, invitation_key ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*referral.Redemption, len(models))
	for i := range models {
		r, err := fromRedemptionModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = r
	}
	return result, nil
}

// ==================== Helpers ====================

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// isDuplicateReference reports a violation of the per-account reference
// index raised from the journal trigger.
func isDuplicateReference(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") &&
		strings.Contains(msg, "credit_entries.reference")
}
