package mongo

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/credits/account"
	"github.com/xraph/credits/entry"
	"github.com/xraph/credits/id"
	"github.com/xraph/credits/referral"
	"github.com/xraph/credits/types"
)

// ==================== Account models ====================

type accountModel struct {
	grove.BaseModel `grove:"table:credit_accounts"`

	ID        string    `grove:"id,pk"      bson:"_id"`
	Balance   int64     `grove:"balance"    bson:"balance"`
	Unlimited bool      `grove:"unlimited"  bson:"unlimited"`
	Version   int64     `grove:"version"    bson:"version"`
	CreatedAt time.Time `grove:"created_at" bson:"created_at"`
	UpdatedAt time.Time `grove:"updated_at" bson:"updated_at"`
}

func toAccountModel(a *account.Account) *accountModel {
	return &accountModel{
		ID:        a.ID,
		Balance:   a.Balance,
		Unlimited: a.Unlimited,
		Version:   a.Version,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

func fromAccountModel(m *accountModel) *account.Account {
	return &account.Account{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:        m.ID,
		Balance:   m.Balance,
		Unlimited: m.Unlimited,
		Version:   m.Version,
	}
}

// ==================== Entry models ====================

type entryModel struct {
	grove.BaseModel `grove:"table:credit_entries"`

	ID               string    `grove:"id,pk"             bson:"_id"`
	AccountID        string    `grove:"account_id"        bson:"account_id"`
	Delta            int64     `grove:"delta"             bson:"delta"`
	Reason           string    `grove:"reason"            bson:"reason"`
	ResultingBalance int64     `grove:"resulting_balance" bson:"resulting_balance"`
	Reference        string    `grove:"reference"         bson:"reference"`
	Timestamp        time.Time `grove:"timestamp"         bson:"timestamp"`
}

func toEntryModel(e *entry.Entry) *entryModel {
	return &entryModel{
		ID:               e.ID.String(),
		AccountID:        e.AccountID,
		Delta:            e.Delta,
		Reason:           string(e.Reason),
		ResultingBalance: e.ResultingBalance,
		Reference:        e.Reference,
		Timestamp:        e.Timestamp,
	}
}

func fromEntryModel(m *entryModel) (*entry.Entry, error) {
	entryID, err := id.ParseEntryID(m.ID)
	if err != nil {
		return nil, err
	}
	return &entry.Entry{
		ID:               entryID,
		AccountID:        m.AccountID,
		Delta:            m.Delta,
		Reason:           entry.Reason(m.Reason),
		ResultingBalance: m.ResultingBalance,
		Reference:        m.Reference,
		Timestamp:        m.Timestamp,
	}, nil
}

// ==================== Redemption models ====================

// redemptionModel is keyed by invitation key so the primary index enforces
// one redemption per pair.
type redemptionModel struct {
	grove.BaseModel `grove:"table:credit_redemptions"`

	InvitationKey string    `grove:"invitation_key,pk" bson:"_id"`
	ID            string    `grove:"id"                bson:"id"`
	InviterID     string    `grove:"inviter_id"        bson:"inviter_id"`
	InviteeID     string    `grove:"invitee_id"        bson:"invitee_id"`
	RedeemedAt    time.Time `grove:"redeemed_at"       bson:"redeemed_at"`
}

func toRedemptionModel(r *referral.Redemption) *redemptionModel {
	return &redemptionModel{
		InvitationKey: r.InvitationKey,
		ID:            r.ID.String(),
		InviterID:     r.InviterID,
		InviteeID:     r.InviteeID,
		RedeemedAt:    r.RedeemedAt,
	}
}

func fromRedemptionModel(m *redemptionModel) (*referral.Redemption, error) {
	redemptionID, err := id.ParseRedemptionID(m.ID)
	if err != nil {
		return nil, err
	}
	return &referral.Redemption{
		ID:            redemptionID,
		InvitationKey: m.InvitationKey,
		InviterID:     m.InviterID,
		InviteeID:     m.InviteeID,
		RedeemedAt:    m.RedeemedAt,
	}, nil
}
