package redis_test

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"

	"github.com/xraph/credits/id"
	"github.com/xraph/credits/referral"
	redisstore "github.com/xraph/credits/store/redis"
)

func sampleRedemption(inviter, invitee string, at time.Time) *referral.Redemption {
	return &referral.Redemption{
		ID:            id.NewRedemptionID(),
		InvitationKey: referral.Key(inviter, invitee),
		InviterID:     inviter,
		InviteeID:     invitee,
		RedeemedAt:    at,
	}
}

func encode(t *testing.T, r *referral.Redemption) string {
	t.Helper()
	raw, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	return string(raw)
}

func TestCreateRedemption(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC)
	r := sampleRedemption("alice", "bob", at)
	raw := encode(t, r)
	z := redis.Z{Score: float64(at.UnixMicro()), Member: "alice:bob"}

	tests := []struct {
		name    string
		claimed bool
		want    error
	}{
		{"first claim", true, nil},
		{"already claimed", false, referral.ErrAlreadyRedeemed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := redismock.NewClientMock()
			s := redisstore.New(db)

			mock.ExpectTxPipeline()
			mock.ExpectSetNX("credits:redemption:alice:bob", raw, 0).SetVal(tt.claimed)
			mock.ExpectZAddNX("credits:redemptions", z).SetVal(1)
			mock.ExpectTxPipelineExec()

			err := s.CreateRedemption(ctx, r)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestGetRedemption(t *testing.T) {
	ctx := context.Background()
	db, mock := redismock.NewClientMock()
	s := redisstore.New(db, redisstore.WithPrefix("app:"))

	r := sampleRedemption("alice", "bob", time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC))
	mock.ExpectGet("app:redemption:alice:bob").SetVal(encode(t, r))
	mock.ExpectGet("app:redemption:x:y").RedisNil()

	got, err := s.GetRedemption(ctx, "alice:bob")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID.String() != r.ID.String() || got.InviteeID != "bob" || !got.RedeemedAt.Equal(r.RedeemedAt) {
		t.Errorf("got %+v, want %+v", got, r)
	}

	if _, err := s.GetRedemption(ctx, "x:y"); !errors.Is(err, referral.ErrRedemptionNotFound) {
		t.Errorf("err = %v, want ErrRedemptionNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestListRedemptions(t *testing.T) {
	ctx := context.Background()
	db, mock := redismock.NewClientMock()
	s := redisstore.New(db)

	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	first := sampleRedemption("a", "b", base)
	second := sampleRedemption("c", "d", base.Add(time.Minute))
	cutoff := base.Add(time.Hour)

	mock.ExpectZRangeByScore("credits:redemptions", &redis.ZRangeBy{
		Min:    "-inf",
		Max:    "(" + strconv.FormatInt(cutoff.UnixMicro(), 10),
		Offset: 0,
		Count:  10,
	}).SetVal([]string{"a:b", "c:d", "e:f"})
	mock.ExpectMGet(
		"credits:redemption:a:b",
		"credits:redemption:c:d",
		"credits:redemption:e:f",
	).SetVal([]any{encode(t, first), encode(t, second), nil})

	got, err := s.ListRedemptions(ctx, referral.ListOpts{RedeemedBefore: cutoff, Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d redemptions, want 2", len(got))
	}
	if got[0].InvitationKey != "a:b" || got[1].InvitationKey != "c:d" {
		t.Errorf("order = %s, %s; want a:b, c:d", got[0].InvitationKey, got[1].InvitationKey)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestListRedemptionsEmpty(t *testing.T) {
	db, mock := redismock.NewClientMock()
	s := redisstore.New(db)

	mock.ExpectZRangeByScore("credits:redemptions", &redis.ZRangeBy{Min: "-inf", Max: "+inf"}).SetVal([]string{})

	got, err := s.ListRedemptions(context.Background(), referral.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("got %d redemptions, want 0", len(got))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
