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

package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"streamprime-wallet-go/internal/models"
	"streamprime-wallet-go/internal/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const defaultMaxRetries = 3

// Backend is the storage the ledger needs: balances and entries plus the
// account records the welcome bonus is attached to.
type Backend interface {
	store.AccountStore
	store.LedgerStore
}

// EntryPublisher receives every newly completed entry after commit. Opening
// balances are published separately since they are not entries.
type EntryPublisher interface {
	PublishOpening(ctx context.Context, accountId string, amount decimal.Decimal) error
	PublishEntry(ctx context.Context, entry *models.LedgerEntry) error
}

// Ledger is the wallet: the only writer of balances.
type Ledger struct {
	backend      Backend
	locks        *KeyedMutex
	publisher    EntryPublisher
	welcomeBonus decimal.Decimal
	maxRetries   int
	now          func() time.Time
}

type Option func(*Ledger)

func WithPublisher(p EntryPublisher) Option {
	return func(l *Ledger) { l.publisher = p }
}

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func WithWelcomeBonus(amount decimal.Decimal) Option {
	return func(l *Ledger) { l.welcomeBonus = amount }
}

func WithMaxRetries(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.maxRetries = n
		}
	}
}

func NewLedger(backend Backend, opts ...Option) *Ledger {
	l := &Ledger{
		backend:    backend,
		locks:      NewKeyedMutex(),
		maxRetries: defaultMaxRetries,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Now is the ledger clock. Services that compute windows against entry
// timestamps share it.
func (l *Ledger) Now() time.Time {
	return l.now()
}

// OpenAccount creates an account whose opening balance is the welcome bonus.
func (l *Ledger) OpenAccount(ctx context.Context, phone, name, email string) (*models.Account, error) {
	account, err := l.backend.CreateAccount(ctx, store.CreateAccountParams{
		Phone:          phone,
		Name:           name,
		Email:          email,
		InitialBalance: l.welcomeBonus,
	})
	if err != nil {
		return nil, err
	}

	if l.publisher != nil && l.welcomeBonus.IsPositive() {
		if err := l.publisher.PublishOpening(ctx, account.Id, l.welcomeBonus); err != nil {
			zap.L().Warn("Failed to publish opening balance",
				zap.String("account_id", account.Id),
				zap.Error(err))
		}
	}
	return account, nil
}

// Balance returns the maintained running balance
func (l *Ledger) Balance(ctx context.Context, accountId string) (decimal.Decimal, error) {
	if accountId == "" {
		return decimal.Zero, &models.ValidationError{Field: "account_id", Message: "is required"}
	}

	balance, err := l.backend.GetBalance(ctx, accountId)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			zap.L().Error("Failed to get balance", zap.String("account_id", accountId), zap.Error(err))
		}
		return decimal.Zero, err
	}
	return balance.Balance, nil
}

// Credit adds funds, idempotently on params.CorrelationId
func (l *Ledger) Credit(ctx context.Context, params store.CreditParams) (*models.LedgerEntry, error) {
	timer := prometheus.NewTimer(operationLatency.WithLabelValues("credit"))
	defer timer.ObserveDuration()

	if params.At.IsZero() {
		params.At = l.now()
	}

	entry, err := l.mutate(ctx, params.AccountId, "credit", func() (*models.LedgerEntry, error) {
		return l.backend.Credit(ctx, params)
	})
	if err != nil {
		return nil, err
	}
	l.published(ctx, entry)
	return entry, nil
}

// Debit removes funds. It fails with *models.InsufficientFundsError rather
// than letting the balance go negative.
func (l *Ledger) Debit(ctx context.Context, params store.DebitParams) (*models.LedgerEntry, error) {
	timer := prometheus.NewTimer(operationLatency.WithLabelValues("debit"))
	defer timer.ObserveDuration()

	if params.At.IsZero() {
		params.At = l.now()
	}

	entry, err := l.mutate(ctx, params.AccountId, "debit", func() (*models.LedgerEntry, error) {
		return l.backend.Debit(ctx, params)
	})
	if err != nil {
		return nil, err
	}
	l.published(ctx, entry)
	return entry, nil
}

// RefundPurchase credits back a completed purchase and marks it refunded
func (l *Ledger) RefundPurchase(ctx context.Context, accountId, entryId, reason string) (*models.LedgerEntry, error) {
	timer := prometheus.NewTimer(operationLatency.WithLabelValues("refund"))
	defer timer.ObserveDuration()

	params := store.RefundParams{AccountId: accountId, OriginalEntryId: entryId, Reason: reason, At: l.now()}
	entry, err := l.mutate(ctx, accountId, "refund", func() (*models.LedgerEntry, error) {
		return l.backend.RefundPurchase(ctx, params)
	})
	if err != nil {
		return nil, err
	}
	l.published(ctx, entry)
	return entry, nil
}

// mutate runs fn under the account lock and retries it a bounded number of
// times when the balance row moved underneath it.
func (l *Ledger) mutate(ctx context.Context, accountId, operation string, fn func() (*models.LedgerEntry, error)) (*models.LedgerEntry, error) {
	if accountId == "" {
		return nil, &models.ValidationError{Field: "account_id", Message: "is required"}
	}

	unlock := l.locks.Lock(accountId)
	defer unlock()

	var lastErr error
	for attempt := 1; attempt <= l.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		entry, err := fn()
		if err == nil {
			if !entry.Replayed {
				entriesTotal.WithLabelValues(string(entry.Kind), string(entry.Status)).Inc()
			}
			return entry, nil
		}
		if !errors.Is(err, models.ErrConcurrentModification) {
			return nil, err
		}

		lastErr = err
		casRetries.Inc()
		zap.L().Warn("Concurrent modification, retrying",
			zap.String("operation", operation),
			zap.String("account_id", accountId),
			zap.Int("attempt", attempt))
	}

	zap.L().Error("Wallet mutation failed after retries",
		zap.String("operation", operation),
		zap.String("account_id", accountId),
		zap.Error(lastErr))
	return nil, fmt.Errorf("%s failed after %d attempts: %w", operation, l.maxRetries, lastErr)
}

// published hands a fresh entry to the publisher. Runs after unlock; a
// failure is logged and does not affect the committed entry.
func (l *Ledger) published(ctx context.Context, entry *models.LedgerEntry) {
	if l.publisher == nil || entry.Replayed || entry.Status != models.EntryStatusCompleted {
		return
	}
	if err := l.publisher.PublishEntry(ctx, entry); err != nil {
		zap.L().Warn("Failed to publish ledger entry",
			zap.String("entry_id", entry.Id),
			zap.String("kind", string(entry.Kind)),
			zap.Error(err))
	}
}

// Reconcile recomputes the balance from the entry log and errors on mismatch
func (l *Ledger) Reconcile(ctx context.Context, accountId string) error {
	return l.backend.ReconcileBalance(ctx, accountId)
}
