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

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryKind classifies a ledger entry
type EntryKind string

const (
	EntryKindRecharge EntryKind = "recharge"
	EntryKindPurchase EntryKind = "purchase"
	EntryKindRefund   EntryKind = "refund"
)

// EntryStatus is the lifecycle state of a ledger entry
type EntryStatus string

const (
	EntryStatusPending   EntryStatus = "pending"
	EntryStatusCompleted EntryStatus = "completed"
	EntryStatusFailed    EntryStatus = "failed"
	EntryStatusRefunded  EntryStatus = "refunded"
)

// Terminal reports whether no further transition is expected from this status.
func (s EntryStatus) Terminal() bool {
	return s == EntryStatusFailed || s == EntryStatusRefunded
}

const (
	PaymentMethodRazorpay = "razorpay"
	PaymentMethodWallet   = "wallet"
)

// Account represents a platform user that owns a wallet
type Account struct {
	Id        string     `db:"id" json:"id"`
	Phone     string     `db:"phone" json:"phone"`
	Name      string     `db:"name" json:"name,omitempty"`
	Email     string     `db:"email" json:"email,omitempty"`
	Active    bool       `db:"active" json:"active"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	LastLogin *time.Time `db:"last_login" json:"last_login,omitempty"`
}

// AccountBalance represents current balance state (hot data)
type AccountBalance struct {
	AccountId      string          `db:"account_id"`
	InitialBalance decimal.Decimal `db:"initial_balance"`
	Balance        decimal.Decimal `db:"balance"`
	LastEntryId    string          `db:"last_entry_id"`
	Version        int64           `db:"version"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

// EntryMeta is the kind-specific payload of a ledger entry. Exactly one
// implementation exists per EntryKind.
type EntryMeta interface {
	Kind() EntryKind
}

// RechargeMeta carries the payment provider references of a wallet recharge.
type RechargeMeta struct {
	OrderId   string `json:"order_id"`
	PaymentId string `json:"payment_id,omitempty"`
	Signature string `json:"signature,omitempty"`
	Provider  string `json:"provider"`
}

func (RechargeMeta) Kind() EntryKind { return EntryKindRecharge }

// PurchaseMeta identifies the content item a purchase paid for.
type PurchaseMeta struct {
	ContentId string `json:"content_id"`
}

func (PurchaseMeta) Kind() EntryKind { return EntryKindPurchase }

// RefundMeta points a refund back at the entry it reverses.
type RefundMeta struct {
	OriginalEntryId string `json:"original_entry_id"`
	Reason          string `json:"reason,omitempty"`
}

func (RefundMeta) Kind() EntryKind { return EntryKindRefund }

// LedgerEntry represents an immutable monetary movement on an account (cold data).
// Amount is signed: recharges and refunds are positive, purchases negative.
type LedgerEntry struct {
	Id            string          `db:"id"`
	AccountId     string          `db:"account_id"`
	Kind          EntryKind       `db:"kind"`
	Status        EntryStatus     `db:"status"`
	Amount        decimal.Decimal `db:"amount"`
	PaymentMethod string          `db:"payment_method"`
	CorrelationId string          `db:"correlation_id"`
	BalanceBefore decimal.Decimal `db:"balance_before"`
	BalanceAfter  decimal.Decimal `db:"balance_after"`
	Meta          EntryMeta       `db:"-"`
	CreatedAt     time.Time       `db:"created_at"`
	CompletedAt   *time.Time      `db:"completed_at"`

	// Replayed is set when an idempotent call returned an entry that already existed.
	Replayed bool `db:"-"`
}

// Recharge returns the recharge metadata if this is a recharge entry.
func (e *LedgerEntry) Recharge() (RechargeMeta, bool) {
	m, ok := e.Meta.(RechargeMeta)
	return m, ok
}

// Purchase returns the purchase metadata if this is a purchase entry.
func (e *LedgerEntry) Purchase() (PurchaseMeta, bool) {
	m, ok := e.Meta.(PurchaseMeta)
	return m, ok
}

// Refund returns the refund metadata if this is a refund entry.
func (e *LedgerEntry) Refund() (RefundMeta, bool) {
	m, ok := e.Meta.(RefundMeta)
	return m, ok
}

// ContentItem represents a pay-per-view item in the catalog
type ContentItem struct {
	Id            string          `db:"id" yaml:"id" json:"id"`
	Title         string          `db:"title" yaml:"title" json:"title"`
	Price         decimal.Decimal `db:"price" yaml:"-" json:"price"`
	Active        bool            `db:"active" yaml:"-" json:"active"`
	ViewCount     int64           `db:"view_count" yaml:"-" json:"view_count"`
	TotalEarnings decimal.Decimal `db:"total_earnings" yaml:"-" json:"-"`
	CreatedAt     time.Time       `db:"created_at" yaml:"-" json:"created_at"`
}

// WatchRecord is one paid view in an account's watch history
type WatchRecord struct {
	AccountId  string          `db:"account_id" json:"-"`
	ContentId  string          `db:"content_id" json:"content_id"`
	EntryId    string          `db:"entry_id" json:"transaction_id"`
	AmountPaid decimal.Decimal `db:"amount_paid" json:"amount_paid"`
	WatchedAt  time.Time       `db:"watched_at" json:"watched_at"`
}

// Challenge is the single pending OTP for an account. Only the code hash is kept.
type Challenge struct {
	AccountId string    `db:"account_id"`
	CodeHash  string    `db:"code_hash"`
	IssuedAt  time.Time `db:"issued_at"`
	ExpiresAt time.Time `db:"expires_at"`
}
