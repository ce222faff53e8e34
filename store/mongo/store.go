package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	credits "github.com/xraph/credits"
	"github.com/xraph/credits/account"
	"github.com/xraph/credits/entry"
	"github.com/xraph/credits/referral"
	creditstore "github.com/xraph/credits/store"
)

// Collection name constants.
const (
	colAccounts    = "credit_accounts"
	colEntries     = "credit_entries"
	colRedemptions = "credit_redemptions"
)

// compile-time interface check
var _ creditstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM. Balance writes
// and their entries commit in one multi-document transaction, so the server
// must run as a replica set.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all credit collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("credits/mongo: migrate %s indexes: %w", col, err)
		}
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
	var m accountModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": accountID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, credits.ErrAccountNotFound
		}
		return nil, fmt.Errorf("credits/mongo: get account: %w", err)
	}
	return fromAccountModel(&m), nil
}

func (s *Store) CreateAccount(ctx context.Context, a *account.Account, init *entry.Entry) error {
	err := s.inTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.mdb.Collection(colAccounts).InsertOne(ctx, toAccountModel(a)); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return credits.ErrAccountExists
			}
			return err
		}
		if init == nil {
			return nil
		}
		_, err := s.mdb.Collection(colEntries).InsertOne(ctx, toEntryModel(init))
		return err
	})
	if err != nil && !errors.Is(err, credits.ErrAccountExists) {
		return fmt.Errorf("credits/mongo: create account: %w", err)
	}
	return err
}

// UpdateAccount replaces the balance fields only where _id and version both
// match, and inserts e in the same transaction.
func (s *Store) UpdateAccount(ctx context.Context, a *account.Account, expectedVersion int64, e *entry.Entry) error {
	err := s.inTransaction(ctx, func(ctx context.Context) error {
		res, err := s.mdb.Collection(colAccounts).UpdateOne(ctx,
			bson.M{"_id": a.ID, "version": expectedVersion},
			bson.M{"$set": bson.M{
				"balance":    a.Balance,
				"unlimited":  a.Unlimited,
				"version":    expectedVersion + 1,
				"updated_at": a.UpdatedAt,
			}},
		)
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return s.missOrConflict(ctx, a.ID)
		}
		if e == nil {
			return nil
		}
		if _, err := s.mdb.Collection(colEntries).InsertOne(ctx, toEntryModel(e)); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return credits.ErrDuplicateEntry
			}
			return err
		}
		return nil
	})
	switch {
	case err == nil,
		errors.Is(err, credits.ErrAccountNotFound),
		errors.Is(err, credits.ErrVersionConflict),
		errors.Is(err, credits.ErrDuplicateEntry):
		return err
	default:
		return fmt.Errorf("credits/mongo: update account: %w", err)
	}
}

// missOrConflict tells a missing account from a stale version after a
// conditional update matched nothing.
func (s *Store) missOrConflict(ctx context.Context, accountID string) error {
	n, err := s.mdb.Collection(colAccounts).CountDocuments(ctx, bson.M{"_id": accountID})
	if err != nil {
		return err
	}
	if n == 0 {
		return credits.ErrAccountNotFound
	}
	return credits.ErrVersionConflict
}

// ==================== Entry Store ====================

func (s *Store) ListEntries(ctx context.Context, accountID string, opts entry.ListOpts) ([]*entry.Entry, error) {
	var models []entryModel

	filter := bson.M{"account_id": accountID}
	if opts.Reason != "" {
		filter["reason"] = string(opts.Reason)
	}
	if opts.Reference != "" {
		filter["reference"] = opts.Reference
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("credits/mongo: list entries: %w", err)
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
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return credits.ErrAlreadyRedeemed
		}
		return fmt.Errorf("credits/mongo: create redemption: %w", err)
	}
	return nil
}

func (s *Store) GetRedemption(ctx context.Context, invitationKey string) (*referral.Redemption, error) {
	var m redemptionModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": invitationKey}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, credits.ErrRedemptionNotFound
		}
		return nil, fmt.Errorf("credits/mongo: get redemption: %w", err)
	}
	return fromRedemptionModel(&m)
}

func (s *Store) ListRedemptions(ctx context.Context, opts referral.ListOpts) ([]*referral.Redemption, error) {
	var models []redemptionModel

	filter := bson.M{}
	if !opts.RedeemedBefore.IsZero() {
		filter["redeemed_at"] = bson.M{"$lt": opts.RedeemedBefore}
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "redeemed_at", Value: 1}, {Key: "_id", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("credits/mongo: list redemptions: %w", err)
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

// inTransaction runs fn in a session transaction. The driver retries
// transient transaction errors; fn must be safe to run again.
func (s *Store) inTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	sess, err := s.mdb.Collection(colAccounts).Database().Client().StartSession()
	if err != nil {
		return err
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		return nil, fn(ctx)
	})
	return err
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all credit collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colEntries: {
			{Keys: bson.D{{Key: "account_id", Value: 1}, {Key: "timestamp", Value: -1}}},
			{
				Keys: bson.D{{Key: "account_id", Value: 1}, {Key: "reference", Value: 1}},
				Options: options.Index().
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"reference": bson.M{"$gt": ""}}),
			},
		},
		colRedemptions: {
			{Keys: bson.D{{Key: "redeemed_at", Value: 1}}},
			{
				Keys:    bson.D{{Key: "id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
	}
}
