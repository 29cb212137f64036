package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"streamprime-wallet-go/internal/models"
	"streamprime-wallet-go/internal/store"
)

// balanceState is the balance row as read at the start of a mutation
type balanceState struct {
	balance int64
	version int64
}

// Credit adds funds to an account. With a correlation id the call is
// idempotent: a completed entry is returned as a replay, a pending recharge is
// completed in place, and a failed one is rejected.
func (s *SubledgerService) Credit(ctx context.Context, params store.CreditParams) (*models.LedgerEntry, error) {
	minor, err := positiveMinor(params.Amount)
	if err != nil {
		return nil, err
	}
	method := params.Method
	if method == "" {
		method = models.PaymentMethodRazorpay
	}

	zap.L().Info("Processing credit",
		zap.String("account_id", params.AccountId),
		zap.String("amount", params.Amount.String()),
		zap.String("correlation_id", params.CorrelationId))

	// Start database transaction for atomicity
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	at := s.stamp(params.At)

	if params.CorrelationId != "" {
		existing, err := queryEntry(ctx, tx, queryGetEntryByCorrelation, params.CorrelationId)
		if err != nil {
			return nil, fmt.Errorf("failed to check correlation id: %w", err)
		}
		if existing != nil {
			return s.resolveCredit(ctx, tx, existing, minor, params.AccountId, params.Meta, at)
		}
	}

	state, err := lockBalance(ctx, tx, params.AccountId)
	if err != nil {
		return nil, err
	}

	entry := &models.LedgerEntry{
		Id:            uuid.New().String(),
		AccountId:     params.AccountId,
		Kind:          models.EntryKindRecharge,
		Status:        models.EntryStatusCompleted,
		Amount:        models.FromMinor(minor),
		PaymentMethod: method,
		CorrelationId: params.CorrelationId,
		BalanceBefore: models.FromMinor(state.balance),
		BalanceAfter:  models.FromMinor(state.balance + minor),
		Meta:          params.Meta,
		CreatedAt:     at,
		CompletedAt:   &at,
	}

	if err := insertEntry(ctx, tx, entry, state.version+1); err != nil {
		return nil, err
	}
	if err := applyBalance(ctx, tx, params.AccountId, entry.Id, state, state.balance+minor, at); err != nil {
		return nil, err
	}
	if err := s.addJournalEntries(ctx, tx, entry); err != nil {
		return nil, fmt.Errorf("failed to add journal entries: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	zap.L().Info("Credit processed successfully",
		zap.String("entry_id", entry.Id),
		zap.String("account_id", params.AccountId),
		zap.String("old_balance", entry.BalanceBefore.String()),
		zap.String("new_balance", entry.BalanceAfter.String()))

	return entry, nil
}

// resolveCredit settles a credit whose correlation id is already on file
func (s *SubledgerService) resolveCredit(ctx context.Context, tx *sql.Tx, existing *models.LedgerEntry, minor int64,
	accountId string, meta models.RechargeMeta, at time.Time) (*models.LedgerEntry, error) {

	if existing.AccountId != accountId || existing.Kind != models.EntryKindRecharge {
		return nil, fmt.Errorf("%w: correlation id %s is bound to entry %s", models.ErrDuplicateEntry,
			existing.CorrelationId, existing.Id)
	}

	switch existing.Status {
	case models.EntryStatusCompleted:
		zap.L().Info("Credit already applied, replaying",
			zap.String("entry_id", existing.Id),
			zap.String("correlation_id", existing.CorrelationId))
		existing.Replayed = true
		return existing, nil
	case models.EntryStatusPending:
	default:
		return nil, fmt.Errorf("%w: entry %s is %s", models.ErrEntryFinalized, existing.Id, existing.Status)
	}

	expected, err := models.ToMinor(existing.Amount)
	if err != nil {
		return nil, err
	}
	if expected != minor {
		return nil, &models.AmountMismatchError{EntryId: existing.Id, Expected: expected, Actual: minor}
	}

	state, err := lockBalance(ctx, tx, accountId)
	if err != nil {
		return nil, err
	}

	merged, _ := existing.Recharge()
	if meta.PaymentId != "" {
		merged.PaymentId = meta.PaymentId
	}
	if meta.Signature != "" {
		merged.Signature = meta.Signature
	}

	newBalance := state.balance + minor
	result, err := tx.ExecContext(ctx, queryCompletePendingEntry,
		merged.PaymentId, merged.Signature, state.balance, newBalance, state.version+1, at, existing.Id)
	if err != nil {
		return nil, fmt.Errorf("failed to complete pending entry: %w", err)
	}
	if err := expectOneRow(result, "pending entry update"); err != nil {
		return nil, err
	}

	if err := applyBalance(ctx, tx, accountId, existing.Id, state, newBalance, at); err != nil {
		return nil, err
	}

	existing.Status = models.EntryStatusCompleted
	existing.BalanceBefore = models.FromMinor(state.balance)
	existing.BalanceAfter = models.FromMinor(newBalance)
	existing.Meta = merged
	existing.CompletedAt = &at

	if err := s.addJournalEntries(ctx, tx, existing); err != nil {
		return nil, fmt.Errorf("failed to add journal entries: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	zap.L().Info("Pending recharge completed",
		zap.String("entry_id", existing.Id),
		zap.String("account_id", accountId),
		zap.String("payment_id", merged.PaymentId),
		zap.String("new_balance", existing.BalanceAfter.String()))

	return existing, nil
}

// Debit removes funds for a purchase. The balance never goes negative: a debit
// larger than the balance fails with InsufficientFundsError and writes nothing.
func (s *SubledgerService) Debit(ctx context.Context, params store.DebitParams) (*models.LedgerEntry, error) {
	minor, err := positiveMinor(params.Amount)
	if err != nil {
		return nil, err
	}

	zap.L().Info("Processing debit",
		zap.String("account_id", params.AccountId),
		zap.String("content_id", params.Meta.ContentId),
		zap.String("amount", params.Amount.String()))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	at := s.stamp(params.At)

	if params.CorrelationId != "" {
		existing, err := queryEntry(ctx, tx, queryGetEntryByCorrelation, params.CorrelationId)
		if err != nil {
			return nil, fmt.Errorf("failed to check correlation id: %w", err)
		}
		if existing != nil {
			if existing.AccountId != params.AccountId || existing.Kind != models.EntryKindPurchase {
				return nil, fmt.Errorf("%w: correlation id %s is bound to entry %s", models.ErrDuplicateEntry,
					params.CorrelationId, existing.Id)
			}
			existing.Replayed = true
			return existing, nil
		}
	}

	state, err := lockBalance(ctx, tx, params.AccountId)
	if err != nil {
		return nil, err
	}

	// the write lock is held from BEGIN, so no other writer can purchase
	// the same content between this check and the insert
	if contentId := params.Meta.ContentId; contentId != "" && !params.ReuseSince.IsZero() {
		recent, err := queryEntry(ctx, tx, queryFindRecentPurchase, params.AccountId, contentId, params.ReuseSince.UTC())
		if err != nil {
			return nil, fmt.Errorf("failed to check recent purchase: %w", err)
		}
		if recent != nil {
			zap.L().Info("Debit skipped, purchase still active",
				zap.String("account_id", params.AccountId),
				zap.String("content_id", contentId),
				zap.String("entry_id", recent.Id))
			recent.Replayed = true
			return recent, nil
		}
	}

	if state.balance < minor {
		zap.L().Info("Debit rejected, insufficient funds",
			zap.String("account_id", params.AccountId),
			zap.Int64("required", minor),
			zap.Int64("available", state.balance))
		return nil, &models.InsufficientFundsError{
			Required:  models.FromMinor(minor),
			Available: models.FromMinor(state.balance),
		}
	}

	entry := &models.LedgerEntry{
		Id:            uuid.New().String(),
		AccountId:     params.AccountId,
		Kind:          models.EntryKindPurchase,
		Status:        models.EntryStatusCompleted,
		Amount:        models.FromMinor(-minor),
		PaymentMethod: models.PaymentMethodWallet,
		CorrelationId: params.CorrelationId,
		BalanceBefore: models.FromMinor(state.balance),
		BalanceAfter:  models.FromMinor(state.balance - minor),
		Meta:          params.Meta,
		CreatedAt:     at,
		CompletedAt:   &at,
	}

	if err := insertEntry(ctx, tx, entry, state.version+1); err != nil {
		return nil, err
	}
	if err := applyBalance(ctx, tx, params.AccountId, entry.Id, state, state.balance-minor, at); err != nil {
		return nil, err
	}

	if contentId := params.Meta.ContentId; contentId != "" {
		result, err := tx.ExecContext(ctx, queryRecordContentView, minor, at, contentId)
		if err != nil {
			return nil, fmt.Errorf("failed to update content stats: %w", err)
		}
		if n, err := result.RowsAffected(); err != nil {
			return nil, fmt.Errorf("failed to check rows affected: %w", err)
		} else if n == 0 {
			return nil, fmt.Errorf("%w: content %s", models.ErrNotFound, contentId)
		}

		if _, err := tx.ExecContext(ctx, queryInsertWatchRecord,
			uuid.New().String(), params.AccountId, contentId, entry.Id, minor, at); err != nil {
			return nil, fmt.Errorf("failed to record watch history: %w", err)
		}
	}

	if err := s.addJournalEntries(ctx, tx, entry); err != nil {
		return nil, fmt.Errorf("failed to add journal entries: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	zap.L().Info("Debit processed successfully",
		zap.String("entry_id", entry.Id),
		zap.String("account_id", params.AccountId),
		zap.String("old_balance", entry.BalanceBefore.String()),
		zap.String("new_balance", entry.BalanceAfter.String()))

	return entry, nil
}

// RefundPurchase credits back a completed purchase and marks it refunded.
// Refunding an already refunded purchase replays the original refund entry.
func (s *SubledgerService) RefundPurchase(ctx context.Context, params store.RefundParams) (*models.LedgerEntry, error) {
	if params.OriginalEntryId == "" {
		return nil, &models.ValidationError{Field: "transaction_id", Message: "is required"}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	at := s.stamp(params.At)
	correlationId := refundCorrelationId(params.OriginalEntryId)

	original, err := queryEntry(ctx, tx, queryGetEntry, params.OriginalEntryId)
	if err != nil {
		return nil, fmt.Errorf("failed to load original entry: %w", err)
	}
	if original == nil || original.AccountId != params.AccountId {
		return nil, fmt.Errorf("%w: entry %s", models.ErrNotFound, params.OriginalEntryId)
	}
	if original.Kind != models.EntryKindPurchase {
		return nil, &models.ValidationError{Field: "transaction_id", Message: "only purchases can be refunded"}
	}

	switch original.Status {
	case models.EntryStatusCompleted:
	case models.EntryStatusRefunded:
		existing, err := queryEntry(ctx, tx, queryGetEntryByCorrelation, correlationId)
		if err != nil {
			return nil, fmt.Errorf("failed to load refund entry: %w", err)
		}
		if existing == nil {
			return nil, fmt.Errorf("%w: entry %s refunded without a refund entry", models.ErrEntryFinalized, original.Id)
		}
		existing.Replayed = true
		return existing, nil
	default:
		return nil, fmt.Errorf("%w: entry %s is %s", models.ErrEntryFinalized, original.Id, original.Status)
	}

	minor, err := models.ToMinor(original.Amount.Neg())
	if err != nil {
		return nil, err
	}

	state, err := lockBalance(ctx, tx, params.AccountId)
	if err != nil {
		return nil, err
	}

	purchase, _ := original.Purchase()
	entry := &models.LedgerEntry{
		Id:            uuid.New().String(),
		AccountId:     params.AccountId,
		Kind:          models.EntryKindRefund,
		Status:        models.EntryStatusCompleted,
		Amount:        models.FromMinor(minor),
		PaymentMethod: models.PaymentMethodWallet,
		CorrelationId: correlationId,
		BalanceBefore: models.FromMinor(state.balance),
		BalanceAfter:  models.FromMinor(state.balance + minor),
		Meta:          models.RefundMeta{OriginalEntryId: original.Id, Reason: params.Reason},
		CreatedAt:     at,
		CompletedAt:   &at,
	}

	if err := insertEntry(ctx, tx, entry, state.version+1, purchase.ContentId); err != nil {
		return nil, err
	}

	result, err := tx.ExecContext(ctx, queryMarkEntryRefunded, original.Id)
	if err != nil {
		return nil, fmt.Errorf("failed to mark entry refunded: %w", err)
	}
	if err := expectOneRow(result, "refund status update"); err != nil {
		return nil, err
	}

	if err := applyBalance(ctx, tx, params.AccountId, entry.Id, state, state.balance+minor, at); err != nil {
		return nil, err
	}

	if purchase.ContentId != "" {
		if _, err := tx.ExecContext(ctx, queryReverseContentEarnings, minor, at, purchase.ContentId); err != nil {
			return nil, fmt.Errorf("failed to reverse content earnings: %w", err)
		}
	}

	if err := s.addJournalEntries(ctx, tx, entry, purchase.ContentId); err != nil {
		return nil, fmt.Errorf("failed to add journal entries: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	zap.L().Info("Purchase refunded",
		zap.String("entry_id", entry.Id),
		zap.String("original_entry_id", original.Id),
		zap.String("account_id", params.AccountId),
		zap.String("amount", entry.Amount.String()))

	return entry, nil
}

func refundCorrelationId(originalEntryId string) string {
	return "refund:" + originalEntryId
}

// lockBalance reads the balance row inside tx. With immediate transactions the
// write lock is already held, so the version is the one applyBalance will check.
func lockBalance(ctx context.Context, tx *sql.Tx, accountId string) (balanceState, error) {
	var state balanceState
	err := tx.QueryRowContext(ctx, queryLockAccountBalance, accountId).Scan(&state.balance, &state.version)
	if errors.Is(err, sql.ErrNoRows) {
		return state, fmt.Errorf("%w: no balance for account %s", models.ErrNotFound, accountId)
	}
	if err != nil {
		return state, fmt.Errorf("failed to get current balance: %w", err)
	}
	return state, nil
}

// applyBalance writes the new balance with optimistic locking on version
func applyBalance(ctx context.Context, tx *sql.Tx, accountId, entryId string, state balanceState, newBalance int64, at time.Time) error {
	if newBalance < 0 {
		return &models.InsufficientFundsError{
			Required:  models.FromMinor(state.balance - newBalance),
			Available: models.FromMinor(state.balance),
		}
	}

	result, err := tx.ExecContext(ctx, queryUpdateAccountBalance, newBalance, entryId, at, accountId, state.version)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	return expectOneRow(result, "balance update")
}

func expectOneRow(result sql.Result, what string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s failed - %w", what, models.ErrConcurrentModification)
	}
	return nil
}

// insertEntry writes a new ledger row. extraContentId tags refunds with the
// content of the purchase they reverse.
func insertEntry(ctx context.Context, tx *sql.Tx, e *models.LedgerEntry, sequence int64, extraContentId ...string) error {
	var (
		provider, paymentId, signature, contentId, originalId, reason string
		orderId                                                       sql.NullString
	)
	switch meta := e.Meta.(type) {
	case models.RechargeMeta:
		provider, paymentId, signature = meta.Provider, meta.PaymentId, meta.Signature
		orderId = nullString(meta.OrderId)
	case models.PurchaseMeta:
		contentId = meta.ContentId
	case models.RefundMeta:
		originalId, reason = meta.OriginalEntryId, meta.Reason
	}
	if contentId == "" && len(extraContentId) > 0 {
		contentId = extraContentId[0]
	}

	amount, err := models.ToMinor(e.Amount)
	if err != nil {
		return err
	}

	var before, after, seq sql.NullInt64
	var completedAt sql.NullTime
	if e.Status != models.EntryStatusPending {
		b, err := models.ToMinor(e.BalanceBefore)
		if err != nil {
			return err
		}
		a, err := models.ToMinor(e.BalanceAfter)
		if err != nil {
			return err
		}
		before = sql.NullInt64{Int64: b, Valid: true}
		after = sql.NullInt64{Int64: a, Valid: true}
		seq = sql.NullInt64{Int64: sequence, Valid: true}
	}
	if e.CompletedAt != nil {
		completedAt = sql.NullTime{Time: *e.CompletedAt, Valid: true}
	}

	_, err = tx.ExecContext(ctx, queryInsertEntry,
		e.Id, e.AccountId, string(e.Kind), string(e.Status), amount, e.PaymentMethod, nullString(e.CorrelationId),
		provider, orderId, paymentId, signature,
		contentId, originalId, reason, before, after,
		seq, e.CreatedAt, completedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %v", models.ErrDuplicateEntry, err)
		}
		return fmt.Errorf("failed to insert ledger entry: %w", err)
	}
	return nil
}

// addJournalEntries creates double-entry bookkeeping entries
func (s *SubledgerService) addJournalEntries(ctx context.Context, tx *sql.Tx, entry *models.LedgerEntry, refundContentId ...string) error {
	// Recharge: Debit user wallet, Credit gateway clearing (the provider holds the cash)
	// Purchase: Credit user wallet, Debit content revenue
	// Refund: Debit user wallet, Credit content revenue

	type journalLine struct {
		accountType  string
		accountId    string
		debitAmount  int64
		creditAmount int64
	}

	amount, err := models.ToMinor(entry.Amount.Abs())
	if err != nil {
		return err
	}

	var lines []journalLine
	switch meta := entry.Meta.(type) {
	case models.RechargeMeta:
		lines = []journalLine{
			{"user_wallet", entry.AccountId, amount, 0},
			{"gateway_clearing", orDefault(meta.Provider, entry.PaymentMethod), 0, amount},
		}
	case models.PurchaseMeta:
		lines = []journalLine{
			{"user_wallet", entry.AccountId, 0, amount},
			{"content_revenue", orDefault(meta.ContentId, "unassigned"), amount, 0},
		}
	case models.RefundMeta:
		contentId := "unassigned"
		if len(refundContentId) > 0 && refundContentId[0] != "" {
			contentId = refundContentId[0]
		}
		lines = []journalLine{
			{"user_wallet", entry.AccountId, amount, 0},
			{"content_revenue", contentId, 0, amount},
		}
	}

	at := entry.CreatedAt
	if entry.CompletedAt != nil {
		at = *entry.CompletedAt
	}
	for _, line := range lines {
		_, err := tx.ExecContext(ctx, queryInsertJournalEntry,
			uuid.New().String(), entry.Id, line.accountType, line.accountId,
			line.debitAmount, line.creditAmount, at)
		if err != nil {
			return err
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
