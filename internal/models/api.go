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

// OrderDescriptor is returned to the client so it can open the provider checkout
type OrderDescriptor struct {
	OrderId     string          `json:"order_id"`
	EntryId     string          `json:"transaction_id"`
	Amount      decimal.Decimal `json:"amount"`
	AmountMinor int64           `json:"amount_minor"`
	Currency    string          `json:"currency"`
	Receipt     string          `json:"receipt"`
	KeyId       string          `json:"key_id"`
}

// WebhookAck reports what a provider notification did
type WebhookAck struct {
	Event   string `json:"event"`
	EntryId string `json:"transaction_id,omitempty"`
	Applied bool   `json:"applied"`
}

// AccessGrant is the entitlement to stream one content item until ExpiresAt
type AccessGrant struct {
	ContentId  string          `json:"content_id"`
	EntryId    string          `json:"transaction_id"`
	ExpiresAt  time.Time       `json:"access_expires"`
	Charged    bool            `json:"charged"`
	AmountPaid decimal.Decimal `json:"amount_paid"`
}

// TransactionRecord represents a ledger entry in the user's history
type TransactionRecord struct {
	Id            string          `json:"id"`
	Kind          EntryKind       `json:"type"`
	Status        EntryStatus     `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method"`
	ContentId     string          `json:"content_id,omitempty"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Pagination mirrors the page/limit contract of the history endpoint
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// HistoryPage is one page of an account's transaction history, newest first
type HistoryPage struct {
	Transactions []TransactionRecord `json:"transactions"`
	Pagination   Pagination          `json:"pagination"`
}

// WalletStats summarizes an account's completed ledger activity
type WalletStats struct {
	CurrentBalance decimal.Decimal `json:"current_balance"`
	TotalSpent     decimal.Decimal `json:"total_spent"`
	TotalRecharged decimal.Decimal `json:"total_recharged"`
	TotalRefunded  decimal.Decimal `json:"total_refunded"`
	RechargeCount  int             `json:"recharge_count"`
	PurchaseCount  int             `json:"purchase_count"`
	JoinedAt       time.Time       `json:"joined_date"`
}

// ChallengeReceipt confirms an OTP was issued. Code is only populated when the
// service runs with code exposure enabled (development).
type ChallengeReceipt struct {
	AccountId string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	Provider  string    `json:"provider"`
	MessageId string    `json:"message_id,omitempty"`
	Code      string    `json:"otp,omitempty"`
}

// Credential is a signed token proving a successful OTP verification
type Credential struct {
	Token     string    `json:"token"`
	AccountId string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// DeliveryReceipt is what an OTP transport reports after sending
type DeliveryReceipt struct {
	Provider  string `json:"provider"`
	MessageId string `json:"message_id,omitempty"`
}

// ProcessingFees is the approximate provider fee split for a recharge
type ProcessingFees struct {
	ProcessingFee decimal.Decimal `json:"processing_fee"`
	Gst           decimal.Decimal `json:"gst"`
	TotalFees     decimal.Decimal `json:"total_fees"`
	NetAmount     decimal.Decimal `json:"net_amount"`
}
