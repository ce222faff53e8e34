package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the credits store.
var Migrations = migrate.NewGroup("credits")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_credit_accounts",
			Version: "20250101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS credit_accounts (
    id                   TEXT PRIMARY KEY,
    balance              BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
    unlimited            BOOLEAN NOT NULL DEFAULT FALSE,
    version              BIGINT NOT NULL DEFAULT 0,
    last_entry_id        TEXT NOT NULL DEFAULT '',
    last_entry_reason    TEXT NOT NULL DEFAULT '',
    last_entry_delta     BIGINT NOT NULL DEFAULT 0,
    last_entry_reference TEXT NOT NULL DEFAULT '',
    last_entry_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS credit_accounts`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_credit_entries",
			Version: "20250101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS credit_entries (
    seq               BIGSERIAL PRIMARY KEY,
    id                TEXT NOT NULL UNIQUE,
    account_id        TEXT NOT NULL,
    delta             BIGINT NOT NULL DEFAULT 0,
    reason            TEXT NOT NULL DEFAULT '',
    resulting_balance BIGINT NOT NULL DEFAULT 0,
    reference         TEXT NOT NULL DEFAULT '',
    timestamp         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_credit_entries_account ON credit_entries (account_id, seq);
CREATE UNIQUE INDEX IF NOT EXISTS idx_credit_entries_reference ON credit_entries (account_id, reference) WHERE reference <> '';
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS credit_entries`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_credit_journal_trigger",
			Version: "20250101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE OR REPLACE FUNCTION credit_journal_entry() RETURNS trigger AS $$
BEGIN
    IF NEW.last_entry_id <> '' AND (TG_OP = 'INSERT' OR NEW.version <> OLD.version) THEN
        INSERT INTO credit_entries (id, account_id, delta, reason, resulting_balance, reference, timestamp)
        VALUES (NEW.last_entry_id, NEW.id, NEW.last_entry_delta, NEW.last_entry_reason, NEW.balance, NEW.last_entry_reference, NEW.last_entry_at);
    END IF;
    RETURN NEW;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS trg_credit_accounts_journal ON credit_accounts;
CREATE TRIGGER trg_credit_accounts_journal
AFTER INSERT OR UPDATE OF version ON credit_accounts
FOR EACH ROW EXECUTE FUNCTION credit_journal_entry();
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
DROP TRIGGER IF EXISTS trg_credit_accounts_journal ON credit_accounts;
DROP FUNCTION IF EXISTS credit_journal_entry();
`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_credit_redemptions",
			Version: "20250101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS credit_redemptions (
    invitation_key TEXT PRIMARY KEY,
    id             TEXT NOT NULL UNIQUE,
    inviter_id     TEXT NOT NULL DEFAULT '',
    invitee_id     TEXT NOT NULL DEFAULT '',
    redeemed_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_credit_redemptions_redeemed_at ON credit_redemptions (redeemed_at, invitation_key);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS credit_redemptions`)
				return err
			},
		},
	)
}
