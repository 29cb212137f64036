package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"streamprime-wallet-go/internal/models"
	"streamprime-wallet-go/internal/store"
)

// CreatePendingRecharge records a recharge that is waiting on the payment
// provider. It does not move the balance.
func (s *SubledgerService) CreatePendingRecharge(ctx context.Context, params store.PendingRechargeParams) (*models.LedgerEntry, error) {
	minor, err := positiveMinor(params.Amount)
	if err != nil {
		return nil, err
	}
	if params.CorrelationId == "" {
		return nil, &models.ValidationError{Field: "correlation_id", Message: "is required"}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// account must exist
	if _, err := lockBalance(ctx, tx, params.AccountId); err != nil {
		return nil, err
	}

	at := s.stamp(params.At)
	provider := orDefault(params.Provider, models.PaymentMethodRazorpay)
	entry := &models.LedgerEntry{
		Id:            uuid.New().String(),
		AccountId:     params.AccountId,
		Kind:          models.EntryKindRecharge,
		Status:        models.EntryStatusPending,
		Amount:        models.FromMinor(minor),
		PaymentMethod: provider,
		CorrelationId: params.CorrelationId,
		Meta:          models.RechargeMeta{Provider: provider},
		CreatedAt:     at,
	}
	if err := insertEntry(ctx, tx, entry, 0); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	zap.L().Info("Pending recharge recorded",
		zap.String("entry_id", entry.Id),
		zap.String("account_id", params.AccountId),
		zap.String("amount", entry.Amount.String()),
		zap.String("correlation_id", params.CorrelationId))

	return entry, nil
}

// AttachProviderOrder binds the provider order id to a pending recharge. An
// order id can belong to one entry only.
func (s *SubledgerService) AttachProviderOrder(ctx context.Context, entryId, orderId string) error {
	if orderId == "" {
		return &models.ValidationError{Field: "order_id", Message: "is required"}
	}

	result, err := s.db.ExecContext(ctx, queryAttachProviderOrder, orderId, entryId)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: order %s already attached", models.ErrDuplicateEntry, orderId)
		}
		return fmt.Errorf("failed to attach provider order: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: entry %s is not an unbound pending recharge", models.ErrEntryFinalized, entryId)
	}
	return nil
}

// FailPendingRecharge moves a pending recharge to failed. A recharge that is
// already failed is returned unchanged; one that completed is left alone and
// returned with ErrEntryFinalized.
func (s *SubledgerService) FailPendingRecharge(ctx context.Context, params store.FailRechargeParams) (*models.LedgerEntry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	entry, err := queryEntry(ctx, tx, queryGetEntry, params.EntryId)
	if err != nil {
		return nil, fmt.Errorf("failed to load entry: %w", err)
	}
	if entry == nil || entry.Kind != models.EntryKindRecharge {
		return nil, fmt.Errorf("%w: recharge %s", models.ErrNotFound, params.EntryId)
	}

	switch entry.Status {
	case models.EntryStatusFailed:
		entry.Replayed = true
		return entry, nil
	case models.EntryStatusPending:
	default:
		return entry, fmt.Errorf("%w: entry %s is %s", models.ErrEntryFinalized, entry.Id, entry.Status)
	}

	at := s.stamp(params.At)
	recharge, _ := entry.Recharge()
	if params.PaymentId != "" {
		recharge.PaymentId = params.PaymentId
	}

	result, err := tx.ExecContext(ctx, queryFailPendingEntry, recharge.PaymentId, at, entry.Id)
	if err != nil {
		return nil, fmt.Errorf("failed to mark recharge failed: %w", err)
	}
	if err := expectOneRow(result, "recharge failure update"); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	entry.Status = models.EntryStatusFailed
	entry.Meta = recharge
	entry.CompletedAt = &at

	zap.L().Info("Pending recharge failed",
		zap.String("entry_id", entry.Id),
		zap.String("account_id", entry.AccountId),
		zap.String("payment_id", recharge.PaymentId))

	return entry, nil
}

// ListPendingRecharges returns pending recharges created at or before olderThan, oldest first
func (s *SubledgerService) ListPendingRecharges(ctx context.Context, olderThan time.Time, limit int) ([]models.LedgerEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, queryListPendingRecharges, olderThan.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending recharges: %w", err)
	}
	return scanEntries(rows)
}
