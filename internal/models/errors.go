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
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared by the ledger, gateway, access and OTP services
var (
	ErrNotFound               = errors.New("not found")
	ErrDuplicateEntry         = errors.New("duplicate ledger entry")
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrEntryFinalized         = errors.New("ledger entry already finalized")
	ErrInvalidSignature       = errors.New("invalid signature")
	ErrGatewayUnavailable     = errors.New("payment gateway unavailable")
	ErrNoChallenge            = errors.New("no pending challenge")
	ErrChallengeExpired       = errors.New("challenge expired")
	ErrInvalidCode            = errors.New("invalid code")
	ErrInvalidCredential      = errors.New("invalid credential")
	ErrDeliveryFailed         = errors.New("code delivery failed")
)

// ValidationError reports an input outside its allowed range. Nothing was changed.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// InsufficientFundsError is returned by a debit larger than the current balance.
type InsufficientFundsError struct {
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: required %s, available %s", e.Required.String(), e.Available.String())
}

// PaymentRequiredError tells the caller the wallet must be recharged before the
// content can be watched.
type PaymentRequiredError struct {
	ContentId string
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *PaymentRequiredError) Error() string {
	return fmt.Sprintf("payment required for %s: required %s, available %s",
		e.ContentId, e.Required.String(), e.Available.String())
}

// AmountMismatchError is returned when a provider notification disagrees with
// the amount recorded on the pending entry.
type AmountMismatchError struct {
	EntryId  string
	Expected int64
	Actual   int64
}

func (e *AmountMismatchError) Error() string {
	return fmt.Sprintf("amount mismatch for entry %s: expected %d, got %d minor units", e.EntryId, e.Expected, e.Actual)
}
