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

package store

import (
	"context"
	"time"

	"streamprime-wallet-go/internal/models"

	"github.com/shopspring/decimal"
)

// CreateAccountParams contains the parameters for opening an account.
type CreateAccountParams struct {
	Id             string
	Phone          string
	Name           string
	Email          string
	InitialBalance decimal.Decimal
}

// CreditParams contains the parameters for a wallet credit. When an entry with
// CorrelationId already exists the credit resolves that entry instead of
// inserting a new one.
type CreditParams struct {
	AccountId     string
	Amount        decimal.Decimal
	Method        string
	CorrelationId string
	Meta          models.RechargeMeta
	At            time.Time
}

// DebitParams contains the parameters for a purchase debit. ContentId, when set,
// also bumps the content stats and appends to the watch history in the same
// transaction. A zero At means now. A non-zero ReuseSince makes the debit
// return a completed purchase of the same content made at or after it, marked
// Replayed, instead of charging again.
type DebitParams struct {
	AccountId     string
	Amount        decimal.Decimal
	CorrelationId string
	Meta          models.PurchaseMeta
	At            time.Time
	ReuseSince    time.Time
}

// RefundParams contains the parameters for reversing a completed purchase.
type RefundParams struct {
	AccountId       string
	OriginalEntryId string
	Reason          string
	At              time.Time
}

// PendingRechargeParams contains the parameters for a recharge awaiting provider confirmation.
type PendingRechargeParams struct {
	AccountId     string
	Amount        decimal.Decimal
	CorrelationId string
	Provider      string
	At            time.Time
}

// FailRechargeParams contains the parameters for failing a pending recharge.
// PaymentId, when set, records the attempt that failed. A zero At means now.
type FailRechargeParams struct {
	EntryId   string
	PaymentId string
	At        time.Time
}

// AccountStore holds account identity records.
type AccountStore interface {
	CreateAccount(ctx context.Context, params CreateAccountParams) (*models.Account, error)
	GetAccountById(ctx context.Context, accountId string) (*models.Account, error)
	GetAccountByPhone(ctx context.Context, phone string) (*models.Account, error)
	GetAccounts(ctx context.Context) ([]models.Account, error)
	TouchLastLogin(ctx context.Context, accountId string, at time.Time) error
}

// LedgerStore is the transaction log plus the maintained running balance.
// Every mutating method is atomic: entry, balance and journal change together or not at all.
type LedgerStore interface {
	// --- Balances ---
	GetBalance(ctx context.Context, accountId string) (*models.AccountBalance, error)
	ReconcileBalance(ctx context.Context, accountId string) error

	// --- Mutations ---
	Credit(ctx context.Context, params CreditParams) (*models.LedgerEntry, error)
	Debit(ctx context.Context, params DebitParams) (*models.LedgerEntry, error)
	RefundPurchase(ctx context.Context, params RefundParams) (*models.LedgerEntry, error)
	CreatePendingRecharge(ctx context.Context, params PendingRechargeParams) (*models.LedgerEntry, error)
	AttachProviderOrder(ctx context.Context, entryId, orderId string) error
	FailPendingRecharge(ctx context.Context, params FailRechargeParams) (*models.LedgerEntry, error)

	// --- Queries ---
	GetEntry(ctx context.Context, entryId string) (*models.LedgerEntry, error)
	GetEntryByCorrelationId(ctx context.Context, correlationId string) (*models.LedgerEntry, error)
	GetEntryByProviderOrder(ctx context.Context, orderId string) (*models.LedgerEntry, error)
	FindRecentPurchase(ctx context.Context, accountId, contentId string, since time.Time) (*models.LedgerEntry, error)
	ListRecentPurchases(ctx context.Context, accountId string, since time.Time) ([]models.LedgerEntry, error)
	ListPendingRecharges(ctx context.Context, olderThan time.Time, limit int) ([]models.LedgerEntry, error)
	GetEntryHistory(ctx context.Context, accountId string, limit, offset int) ([]models.LedgerEntry, error)
	CountEntries(ctx context.Context, accountId string) (int, error)
	GetWalletStats(ctx context.Context, accountId string) (*models.WalletStats, error)
}

// ContentStore is the read side of the catalog plus the stats the access engine maintains.
type ContentStore interface {
	UpsertContent(ctx context.Context, item models.ContentItem) error
	GetContent(ctx context.Context, contentId string) (*models.ContentItem, error)
	ListContent(ctx context.Context) ([]models.ContentItem, error)
	GetWatchHistory(ctx context.Context, accountId string, limit int) ([]models.WatchRecord, error)
}

// ChallengeStore keeps at most one OTP challenge per account.
type ChallengeStore interface {
	// PutChallenge replaces any existing challenge for the account.
	PutChallenge(ctx context.Context, challenge models.Challenge) error

	// ConsumeChallenge atomically checks codeHash against the stored challenge.
	// It returns ErrNoChallenge when none exists, ErrChallengeExpired (and clears it)
	// when now is past its expiry, ErrInvalidCode (and keeps it) on mismatch, and nil
	// (and clears it) on match.
	ConsumeChallenge(ctx context.Context, accountId, codeHash string, now time.Time) error

	// DiscardChallenge removes the account's challenge only if it still holds
	// codeHash, so a newer challenge is left in place. Missing is not an error.
	DiscardChallenge(ctx context.Context, accountId, codeHash string) error
}

// Store is everything the sqlite backend provides.
type Store interface {
	AccountStore
	LedgerStore
	ContentStore
	ChallengeStore

	// --- Lifecycle ---
	Close()
}
