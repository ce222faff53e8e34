package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the credits store (SQLite).
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
    balance              INTEGER NOT NULL DEFAULT 0 CHECK (balance >= 0),
    unlimited            INTEGER NOT NULL DEFAULT 0,
    version              INTEGER NOT NULL DEFAULT 0,
    last_entry_id        TEXT NOT NULL DEFAULT '',
    last_entry_reason    TEXT NOT NULL DEFAULT '',
    last_entry_delta     INTEGER NOT NULL DEFAULT 0,
    last_entry_reference TEXT NOT NULL DEFAULT '',
    last_entry_at        TIMESTAMP NOT NULL DEFAULT (datetime('now')),
    created_at           TIMESTAMP NOT NULL DEFAULT (datetime('now')),
    updated_at           TIMESTAMP NOT NULL DEFAULT (datetime('now'))
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
    seq               INTEGER PRIMARY KEY AUTOINCREMENT,
    id                TEXT NOT NULL UNIQUE,
    account_id        TEXT NOT NULL,
    delta             INTEGER NOT NULL DEFAULT 0,
    reason            TEXT NOT NULL DEFAULT '',
    resulting_balance INTEGER NOT NULL DEFAULT 0,
    reference         TEXT NOT NULL DEFAULT '',
    timestamp         TIMESTAMP NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_credit_entries_account ON credit_entries (account_id, seq);
CREATE UNIQUE INDEX IF NOT EXISTS idx_credit_entries_reference ON credit_entries (account_id, reference) WHERE reference != '';
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS credit_entries`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_credit_journal_triggers",
			Version: "20250101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TRIGGER IF NOT EXISTS trg_credit_accounts_journal_insert
AFTER INSERT ON credit_accounts
WHEN NEW.last_entry_id != ''
BEGIN
    INSERT INTO credit_entries (id, account_id, delta, reason, resulting_balance, reference, timestamp)
    VALUES (NEW.last_entry_id, NEW.id, NEW.last_entry_delta, NEW.last_entry_reason, NEW.balance, NEW.last_entry_reference, NEW.last_entry_at);
END;

CREATE TRIGGER IF NOT EXISTS trg_credit_accounts_journal_update
AFTER UPDATE OF version ON credit_accounts
WHEN NEW.last_entry_id != '' AND NEW.version != OLD.version
BEGIN
    INSERT INTO credit_entries (id, account_id, delta, reason, resulting_balance, reference, timestamp)
    VALUES (NEW.last_entry_id, NEW.id, NEW.last_entry_delta, NEW.last_entry_reason, NEW.balance, NEW.last_entry_reference, NEW.last_entry_at);
END;
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
DROP TRIGGER IF EXISTS trg_credit_accounts_journal_insert;
DROP TRIGGER IF EXISTS trg_credit_accounts_journal_update;
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
    redeemed_at    TIMESTAMP NOT NULL DEFAULT (datetime('now'))
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
