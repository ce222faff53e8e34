// Package redis keeps referral redemptions in Redis. It implements only
// referral.Store and is meant to sit beside a SQL or Mongo balance store via
// credits.WithReferralStore.
//
// Each redemption is one string key holding its JSON. A sorted set scored by
// redemption time indexes all of them for the reconciler. Both are written
// in a single MULTI, and the claim itself is SETNX, so exactly one caller
// wins a key.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/xraph/credits/referral"
)

// DefaultPrefix namespaces all keys written by the store.
const DefaultPrefix = "credits:"

// compile-time interface check
var _ referral.Store = (*Store)(nil)

// Store implements referral.Store on a Redis client.
type Store struct {
	client redis.UniversalClient
	prefix string
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix replaces DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New returns a Store over client.
func New(client redis.UniversalClient, opts ...Option) *Store {
	s := &Store{client: client, prefix: DefaultPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) redemptionKey(invitationKey string) string {
	return s.prefix + "redemption:" + invitationKey
}

func (s *Store) indexKey() string {
	return s.prefix + "redemptions"
}

func (s *Store) CreateRedemption(ctx context.Context, r *referral.Redemption) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("credits/redis: encode redemption: %w", err)
	}

	var claimed *redis.BoolCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		claimed = pipe.SetNX(ctx, s.redemptionKey(r.InvitationKey), string(raw), 0)
		pipe.ZAddNX(ctx, s.indexKey(), redis.Z{
			Score:  float64(r.RedeemedAt.UnixMicro()),
			Member: r.InvitationKey,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("credits/redis: create redemption: %w", err)
	}
	if !claimed.Val() {
		return referral.ErrAlreadyRedeemed
	}
	return nil
}

func (s *Store) GetRedemption(ctx context.Context, invitationKey string) (*referral.Redemption, error) {
	raw, err := s.client.Get(ctx, s.redemptionKey(invitationKey)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, referral.ErrRedemptionNotFound
		}
		return nil, fmt.Errorf("credits/redis: get redemption: %w", err)
	}
	return decode(raw)
}

// ListRedemptions reads the index in score order, so ties on redemption time
// come back in invitation key order.
func (s *Store) ListRedemptions(ctx context.Context, opts referral.ListOpts) ([]*referral.Redemption, error) {
	by := &redis.ZRangeBy{Min: "-inf", Max: "+inf"}
	if !opts.RedeemedBefore.IsZero() {
		by.Max = "(" + strconv.FormatInt(opts.RedeemedBefore.UnixMicro(), 10)
	}
	if opts.Limit > 0 || opts.Offset > 0 {
		by.Offset = int64(max(opts.Offset, 0))
		by.Count = -1
		if opts.Limit > 0 {
			by.Count = int64(opts.Limit)
		}
	}

	members, err := s.client.ZRangeByScore(ctx, s.indexKey(), by).Result()
	if err != nil {
		return nil, fmt.Errorf("credits/redis: list redemptions: %w", err)
	}
	if len(members) == 0 {
		return []*referral.Redemption{}, nil
	}

	keys := make([]string, len(members))
	for i, m := range members {
		keys[i] = s.redemptionKey(m)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("credits/redis: load redemptions: %w", err)
	}

	result := make([]*referral.Redemption, 0, len(values))
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			// Indexed but the value is gone; nothing to reconcile.
			continue
		}
		r, err := decode([]byte(str))
		if err != nil {
			return nil, fmt.Errorf("credits/redis: redemption %q: %w", members[i], err)
		}
		result = append(result, r)
	}
	return result, nil
}

func decode(raw []byte) (*referral.Redemption, error) {
	var r referral.Redemption
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("credits/redis: decode redemption: %w", err)
	}
	return &r, nil
}
