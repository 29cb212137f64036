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

const (
	// Account queries
	queryGetActiveAccounts = `
		SELECT id, phone, name, email, active, created_at, last_login
		FROM accounts
		WHERE active = 1
		ORDER BY created_at`

	queryInsertAccount = `
		INSERT OR IGNORE INTO accounts (id, phone, name, email, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	queryGetAccountById = `
		SELECT id, phone, name, email, active, created_at, last_login
		FROM accounts
		WHERE id = ? AND active = 1`

	queryGetAccountByPhone = `
		SELECT id, phone, name, email, active, created_at, last_login
		FROM accounts
		WHERE phone = ? AND active = 1`

	queryGetAccountCreatedAt = `
		SELECT created_at FROM accounts WHERE id = ?`

	queryTouchLastLogin = `
		UPDATE accounts SET last_login = ?, updated_at = ? WHERE id = ?`

	// Content queries
	queryUpsertContent = `
		INSERT INTO content_items (id, title, price, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			price = excluded.price,
			active = excluded.active,
			updated_at = excluded.updated_at`

	queryGetContent = `
		SELECT id, title, price, active, view_count, total_earnings, created_at
		FROM content_items
		WHERE id = ?`

	queryListContent = `
		SELECT id, title, price, active, view_count, total_earnings, created_at
		FROM content_items
		ORDER BY view_count DESC, created_at DESC`

	queryRecordContentView = `
		UPDATE content_items
		SET view_count = view_count + 1, total_earnings = total_earnings + ?, updated_at = ?
		WHERE id = ?`

	queryReverseContentEarnings = `
		UPDATE content_items
		SET total_earnings = total_earnings - ?, updated_at = ?
		WHERE id = ?`

	queryInsertWatchRecord = `
		INSERT INTO watch_history (id, account_id, content_id, entry_id, amount_paid, watched_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	queryGetWatchHistory = `
		SELECT account_id, content_id, entry_id, amount_paid, watched_at
		FROM watch_history
		WHERE account_id = ?
		ORDER BY watched_at DESC
		LIMIT ?`

	// Challenge queries
	queryUpsertChallenge = `
		INSERT INTO otp_challenges (account_id, code_hash, issued_at, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(account_id) DO UPDATE SET
			code_hash = excluded.code_hash,
			issued_at = excluded.issued_at,
			expires_at = excluded.expires_at`

	queryGetChallenge = `
		SELECT account_id, code_hash, issued_at, expires_at
		FROM otp_challenges
		WHERE account_id = ?`

	queryDeleteChallenge = `
		DELETE FROM otp_challenges WHERE account_id = ?`

	queryDiscardChallenge = `
		DELETE FROM otp_challenges WHERE account_id = ? AND code_hash = ?`

	// Balance queries
	queryInsertAccountBalance = `
		INSERT INTO account_balances (account_id, initial_balance, balance, version, updated_at)
		VALUES (?, ?, ?, 1, ?)`

	queryGetAccountBalance = `
		SELECT account_id, initial_balance, balance, last_entry_id, version, updated_at
		FROM account_balances
		WHERE account_id = ?`

	queryLockAccountBalance = `
		SELECT balance, version
		FROM account_balances
		WHERE account_id = ?`

	queryUpdateAccountBalance = `
		UPDATE account_balances
		SET balance = ?, last_entry_id = ?, version = version + 1, updated_at = ?
		WHERE account_id = ? AND version = ?`

	queryReconcileBalance = `
		SELECT COALESCE(SUM(amount), 0)
		FROM ledger_entries
		WHERE account_id = ? AND status IN ('completed', 'refunded')`

	queryBalanceChain = `
		SELECT id, balance_before, balance_after, sequence
		FROM ledger_entries
		WHERE account_id = ? AND status IN ('completed', 'refunded')
		ORDER BY sequence`

	queryWalletStats = `
		SELECT
			COALESCE(SUM(CASE WHEN kind = 'purchase' AND status = 'completed' THEN -amount END), 0),
			COALESCE(SUM(CASE WHEN kind = 'recharge' AND status = 'completed' THEN amount END), 0),
			COALESCE(SUM(CASE WHEN kind = 'refund' AND status = 'completed' THEN amount END), 0),
			COUNT(CASE WHEN kind = 'recharge' AND status = 'completed' THEN 1 END),
			COUNT(CASE WHEN kind = 'purchase' AND status = 'completed' THEN 1 END)
		FROM ledger_entries
		WHERE account_id = ?`

	// Ledger entry queries
	entryColumns = `
		id, account_id, kind, status, amount, payment_method, correlation_id,
		provider, provider_order_id, provider_payment_id, provider_signature,
		content_id, original_entry_id, reason, balance_before, balance_after,
		created_at, completed_at`

	queryInsertEntry = `
		INSERT INTO ledger_entries (
			id, account_id, kind, status, amount, payment_method, correlation_id,
			provider, provider_order_id, provider_payment_id, provider_signature,
			content_id, original_entry_id, reason, balance_before, balance_after,
			sequence, created_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetEntry = `SELECT ` + entryColumns + `
		FROM ledger_entries
		WHERE id = ?`

	queryGetEntryByCorrelation = `SELECT ` + entryColumns + `
		FROM ledger_entries
		WHERE correlation_id = ?`

	queryGetEntryByProviderOrder = `SELECT ` + entryColumns + `
		FROM ledger_entries
		WHERE provider_order_id = ?`

	queryCompletePendingEntry = `
		UPDATE ledger_entries
		SET status = 'completed', provider_payment_id = ?, provider_signature = ?,
		    balance_before = ?, balance_after = ?, sequence = ?, completed_at = ?
		WHERE id = ? AND status = 'pending'`

	queryFailPendingEntry = `
		UPDATE ledger_entries
		SET status = 'failed', provider_payment_id = ?, completed_at = ?
		WHERE id = ? AND status = 'pending'`

	queryMarkEntryRefunded = `
		UPDATE ledger_entries
		SET status = 'refunded'
		WHERE id = ? AND status = 'completed'`

	queryAttachProviderOrder = `
		UPDATE ledger_entries
		SET provider_order_id = ?
		WHERE id = ? AND status = 'pending' AND provider_order_id IS NULL`

	queryFindRecentPurchase = `SELECT ` + entryColumns + `
		FROM ledger_entries
		WHERE account_id = ? AND content_id = ? AND kind = 'purchase' AND status = 'completed'
		  AND created_at >= ?
		ORDER BY created_at DESC
		LIMIT 1`

	queryListRecentPurchases = `SELECT ` + entryColumns + `
		FROM ledger_entries
		WHERE account_id = ? AND kind = 'purchase' AND status = 'completed' AND created_at >= ?
		ORDER BY created_at DESC`

	queryListPendingRecharges = `SELECT ` + entryColumns + `
		FROM ledger_entries
		WHERE kind = 'recharge' AND status = 'pending' AND created_at <= ?
		ORDER BY created_at
		LIMIT ?`

	queryGetEntryHistory = `SELECT ` + entryColumns + `
		FROM ledger_entries
		WHERE account_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`

	queryCountEntries = `
		SELECT COUNT(*) FROM ledger_entries WHERE account_id = ?`

	queryInsertJournalEntry = `
		INSERT INTO journal_entries (id, entry_id, account_type, account_id, debit_amount, credit_amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
)
