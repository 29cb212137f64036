package database

import (
	"database/sql"
	"time"
)

// SubledgerService handles the wallet ledger: the append-only entry log, the
// maintained running balance and the journal.
type SubledgerService struct {
	db  *sql.DB
	now func() time.Time
}

func NewSubledgerService(db *sql.DB) *SubledgerService {
	return &SubledgerService{
		db:  db,
		now: time.Now,
	}
}

func (s *SubledgerService) InitSchema() error {
	schema := `
	-- Account Balances Table (Current State - Hot Data)
	-- Amounts are integer minor units (paise).
	CREATE TABLE IF NOT EXISTS account_balances (
		account_id TEXT PRIMARY KEY,
		initial_balance INTEGER NOT NULL DEFAULT 0,
		balance INTEGER NOT NULL DEFAULT 0 CHECK (balance >= 0),
		last_entry_id TEXT NOT NULL DEFAULT '',
		version INTEGER NOT NULL DEFAULT 1,
		updated_at TIMESTAMP NOT NULL
	);

	-- Ledger Entries Table (Audit Trail - Cold Data)
	CREATE TABLE IF NOT EXISTS ledger_entries (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		amount INTEGER NOT NULL,
		payment_method TEXT NOT NULL,
		correlation_id TEXT,
		provider TEXT NOT NULL DEFAULT '',
		provider_order_id TEXT,
		provider_payment_id TEXT NOT NULL DEFAULT '',
		provider_signature TEXT NOT NULL DEFAULT '',
		content_id TEXT NOT NULL DEFAULT '',
		original_entry_id TEXT NOT NULL DEFAULT '',
		reason TEXT NOT NULL DEFAULT '',
		balance_before INTEGER,
		balance_after INTEGER,
		sequence INTEGER,
		created_at TIMESTAMP NOT NULL,
		completed_at TIMESTAMP
	);

	-- Idempotency keys
	CREATE UNIQUE INDEX IF NOT EXISTS idx_ledger_entries_correlation ON ledger_entries(correlation_id) WHERE correlation_id IS NOT NULL;
	CREATE UNIQUE INDEX IF NOT EXISTS idx_ledger_entries_provider_order ON ledger_entries(provider_order_id) WHERE provider_order_id IS NOT NULL;

	-- Performance Indexes for Ledger Entries
	CREATE INDEX IF NOT EXISTS idx_ledger_entries_account_created ON ledger_entries(account_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_ledger_entries_account_sequence ON ledger_entries(account_id, sequence);
	CREATE INDEX IF NOT EXISTS idx_ledger_entries_purchase ON ledger_entries(account_id, content_id, kind, status, created_at);
	CREATE INDEX IF NOT EXISTS idx_ledger_entries_status ON ledger_entries(status, kind, created_at);

	-- Journal Entries for Double-Entry Bookkeeping
	CREATE TABLE IF NOT EXISTS journal_entries (
		id TEXT PRIMARY KEY,
		entry_id TEXT NOT NULL,
		account_type TEXT NOT NULL,
		account_id TEXT NOT NULL,
		debit_amount INTEGER NOT NULL DEFAULT 0,
		credit_amount INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_journal_entry_id ON journal_entries(entry_id);
	CREATE INDEX IF NOT EXISTS idx_journal_account ON journal_entries(account_type, account_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// stamp returns at in UTC, or the service clock when at is zero. All stored
// timestamps go through here so lexical comparison in SQL stays correct.
func (s *SubledgerService) stamp(at time.Time) time.Time {
	if at.IsZero() {
		at = s.now()
	}
	return at.UTC()
}
