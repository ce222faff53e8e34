package postgres

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

// accountModel carries the entry being committed in its last_entry_*
// columns. A trigger journals it whenever the row is inserted or its
// version moves, so the balance write and the entry land in one statement.
type accountModel struct {
	grove.BaseModel `grove:"table:credit_accounts"`

	ID                 string    `grove:"id,pk"`
	Balance            int64     `grove:"balance"`
	Unlimited          bool      `grove:"unlimited"`
	Version            int64     `grove:"version"`
	LastEntryID        string    `grove:"last_entry_id"`
	LastEntryReason    string    `grove:"last_entry_reason"`
	LastEntryDelta     int64     `grove:"last_entry_delta"`
	LastEntryReference string    `grove:"last_entry_reference"`
	LastEntryAt        time.Time `grove:"last_entry_at"`
	CreatedAt          time.Time `grove:"created_at"`
	UpdatedAt          time.Time `grove:"updated_at"`
}

func toAccountModel(a *account.Account, e *entry.Entry) *accountModel {
	m := &accountModel{
		ID:          a.ID,
		Balance:     a.Balance,
		Unlimited:   a.Unlimited,
		Version:     a.Version,
		LastEntryAt: a.UpdatedAt,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
	if e != nil {
		m.LastEntryID = e.ID.String()
		m.LastEntryReason = string(e.Reason)
		m.LastEntryDelta = e.Delta
		m.LastEntryReference = e.Reference
		m.LastEntryAt = e.Timestamp
	}
	return m
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

	Seq              int64     `grove:"seq,pk"`
	ID               string    `grove:"id"`
	AccountID        string    `grove:"account_id"`
	Delta            int64     `grove:"delta"`
	Reason           string    `grove:"reason"`
	ResultingBalance int64     `grove:"resulting_balance"`
	Reference        string    `grove:"reference"`
	Timestamp        time.Time `grove:"timestamp"`
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

type redemptionModel struct {
	grove.BaseModel `grove:"table:credit_redemptions"`

	InvitationKey string    `grove:"invitation_key,pk"`
	ID            string    `grove:"id"`
	InviterID     string    `grove:"inviter_id"`
	InviteeID     string    `grove:"invitee_id"`
	RedeemedAt    time.Time `grove:"redeemed_at"`
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
