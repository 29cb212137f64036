/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"streamprime-wallet-go/internal/models"
	"streamprime-wallet-go/internal/store"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy store.Store.
var _ store.Store = (*Service)(nil)

type Service struct {
	db        *sql.DB
	subledger *SubledgerService
}

func NewService(ctx context.Context, cfg models.DatabaseConfig) (*Service, error) {
	// Validate configuration
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns < 0 {
		return nil, fmt.Errorf("max idle connections cannot be negative, got %d", cfg.MaxIdleConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}

	zap.L().Info("Opening SQLite database", zap.String("file", cfg.Path))
	db, err := sql.Open("sqlite3", dataSourceName(cfg))
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	// Set connection timeouts and limits
	maxOpen := cfg.MaxOpenConns
	if cfg.Path == ":memory:" {
		// each connection would otherwise get its own empty database
		maxOpen = 1
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test connection with timeout
	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	service := newServiceWithDB(db)
	if err := service.initSchema(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	// Initialize subledger schema
	if err := service.subledger.InitSchema(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to initialize subledger schema: %w", err)
	}

	zap.L().Info("Database service initialized successfully")
	return service, nil
}

func newServiceWithDB(db *sql.DB) *Service {
	return &Service{db: db, subledger: NewSubledgerService(db)}
}

// dataSourceName builds the go-sqlite3 DSN. Writers take the database lock at
// BEGIN so two transactions never both read a balance and then race to update it.
func dataSourceName(cfg models.DatabaseConfig) string {
	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	return fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=1000&_busy_timeout=%d&_txlock=immediate",
		cfg.Path, busy.Milliseconds())
}

func (s *Service) Close() {
	if err := s.db.Close(); err != nil {
		zap.L().Warn("Failed to close database connection", zap.Error(err))
	}
}

func (s *Service) initSchema() error {
	schema := `
	-- Create accounts table
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		phone TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		active BOOLEAN NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		last_login TIMESTAMP
	);

	-- Create index on active accounts
	CREATE INDEX IF NOT EXISTS idx_accounts_active ON accounts(active);

	-- Create content catalog table
	CREATE TABLE IF NOT EXISTS content_items (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		price INTEGER NOT NULL CHECK (price >= 0),
		active BOOLEAN NOT NULL DEFAULT 1,
		view_count INTEGER NOT NULL DEFAULT 0,
		total_earnings INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	-- Create watch history table, one row per paid view
	CREATE TABLE IF NOT EXISTS watch_history (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		content_id TEXT NOT NULL,
		entry_id TEXT NOT NULL,
		amount_paid INTEGER NOT NULL,
		watched_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_watch_history_account ON watch_history(account_id, watched_at);

	-- Create OTP challenges table, at most one per account
	CREATE TABLE IF NOT EXISTS otp_challenges (
		account_id TEXT PRIMARY KEY,
		code_hash TEXT NOT NULL,
		issued_at TIMESTAMP NOT NULL,
		expires_at TIMESTAMP NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Subledger convenience methods

func (s *Service) GetBalance(ctx context.Context, accountId string) (*models.AccountBalance, error) {
	return s.subledger.GetBalance(ctx, accountId)
}

func (s *Service) ReconcileBalance(ctx context.Context, accountId string) error {
	return s.subledger.ReconcileBalance(ctx, accountId)
}

func (s *Service) Credit(ctx context.Context, params store.CreditParams) (*models.LedgerEntry, error) {
	return s.subledger.Credit(ctx, params)
}

func (s *Service) Debit(ctx context.Context, params store.DebitParams) (*models.LedgerEntry, error) {
	return s.subledger.Debit(ctx, params)
}

func (s *Service) RefundPurchase(ctx context.Context, params store.RefundParams) (*models.LedgerEntry, error) {
	return s.subledger.RefundPurchase(ctx, params)
}

func (s *Service) CreatePendingRecharge(ctx context.Context, params store.PendingRechargeParams) (*models.LedgerEntry, error) {
	return s.subledger.CreatePendingRecharge(ctx, params)
}

func (s *Service) AttachProviderOrder(ctx context.Context, entryId, orderId string) error {
	return s.subledger.AttachProviderOrder(ctx, entryId, orderId)
}

func (s *Service) FailPendingRecharge(ctx context.Context, params store.FailRechargeParams) (*models.LedgerEntry, error) {
	return s.subledger.FailPendingRecharge(ctx, params)
}

func (s *Service) GetEntry(ctx context.Context, entryId string) (*models.LedgerEntry, error) {
	return s.subledger.GetEntry(ctx, entryId)
}

func (s *Service) GetEntryByCorrelationId(ctx context.Context, correlationId string) (*models.LedgerEntry, error) {
	return s.subledger.GetEntryByCorrelationId(ctx, correlationId)
}

func (s *Service) GetEntryByProviderOrder(ctx context.Context, orderId string) (*models.LedgerEntry, error) {
	return s.subledger.GetEntryByProviderOrder(ctx, orderId)
}

func (s *Service) FindRecentPurchase(ctx context.Context, accountId, contentId string, since time.Time) (*models.LedgerEntry, error) {
	return s.subledger.FindRecentPurchase(ctx, accountId, contentId, since)
}

func (s *Service) ListRecentPurchases(ctx context.Context, accountId string, since time.Time) ([]models.LedgerEntry, error) {
	return s.subledger.ListRecentPurchases(ctx, accountId, since)
}

func (s *Service) ListPendingRecharges(ctx context.Context, olderThan time.Time, limit int) ([]models.LedgerEntry, error) {
	return s.subledger.ListPendingRecharges(ctx, olderThan, limit)
}

func (s *Service) GetEntryHistory(ctx context.Context, accountId string, limit, offset int) ([]models.LedgerEntry, error) {
	return s.subledger.GetEntryHistory(ctx, accountId, limit, offset)
}

func (s *Service) CountEntries(ctx context.Context, accountId string) (int, error) {
	return s.subledger.CountEntries(ctx, accountId)
}

func (s *Service) GetWalletStats(ctx context.Context, accountId string) (*models.WalletStats, error) {
	return s.subledger.GetWalletStats(ctx, accountId)
}
