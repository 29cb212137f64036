package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"streamprime-wallet-go/internal/models"
)

// GetBalance returns the maintained balance for an account (O(1) lookup)
func (s *SubledgerService) GetBalance(ctx context.Context, accountId string) (*models.AccountBalance, error) {
	zap.L().Debug("Getting balance", zap.String("account_id", accountId))

	var (
		balance          models.AccountBalance
		initial, current int64
	)
	err := s.db.QueryRowContext(ctx, queryGetAccountBalance, accountId).
		Scan(&balance.AccountId, &initial, &current, &balance.LastEntryId, &balance.Version, &balance.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: account %s", models.ErrNotFound, accountId)
	}
	if err != nil {
		zap.L().Error("Failed to get balance", zap.String("account_id", accountId), zap.Error(err))
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}

	balance.InitialBalance = models.FromMinor(initial)
	balance.Balance = models.FromMinor(current)

	zap.L().Debug("Retrieved balance", zap.String("account_id", accountId), zap.String("balance", balance.Balance.String()))
	return &balance, nil
}

// ReconcileBalance verifies that the maintained balance equals the opening
// balance plus the sum of all applied entries, and that every applied entry
// starts from the balance the previous one left.
func (s *SubledgerService) ReconcileBalance(ctx context.Context, accountId string) error {
	zap.L().Info("Reconciling balance", zap.String("account_id", accountId))

	current, err := s.GetBalance(ctx, accountId)
	if err != nil {
		return fmt.Errorf("failed to get current balance: %w", err)
	}
	currentMinor, err := models.ToMinor(current.Balance)
	if err != nil {
		return err
	}
	initialMinor, err := models.ToMinor(current.InitialBalance)
	if err != nil {
		return err
	}

	// Calculate balance from entry history
	var sum int64
	if err := s.db.QueryRowContext(ctx, queryReconcileBalance, accountId).Scan(&sum); err != nil {
		return fmt.Errorf("failed to calculate balance from entries: %w", err)
	}

	if calculated := initialMinor + sum; calculated != currentMinor {
		zap.L().Error("Balance reconciliation failed",
			zap.String("account_id", accountId),
			zap.String("current_balance", current.Balance.String()),
			zap.String("calculated_balance", models.FromMinor(calculated).String()),
			zap.String("difference", models.FromMinor(currentMinor-calculated).String()))
		return fmt.Errorf("balance mismatch: current=%s, calculated=%s",
			current.Balance.String(), models.FromMinor(calculated).String())
	}

	if err := s.verifyChain(ctx, accountId, initialMinor, currentMinor); err != nil {
		zap.L().Error("Balance chain verification failed", zap.String("account_id", accountId), zap.Error(err))
		return err
	}

	zap.L().Info("Balance reconciliation successful",
		zap.String("account_id", accountId),
		zap.String("balance", current.Balance.String()))
	return nil
}

func (s *SubledgerService) verifyChain(ctx context.Context, accountId string, initial, current int64) error {
	rows, err := s.db.QueryContext(ctx, queryBalanceChain, accountId)
	if err != nil {
		return fmt.Errorf("failed to load balance chain: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	prev := initial
	for rows.Next() {
		var (
			id            string
			before, after int64
			sequence      int64
		)
		if err := rows.Scan(&id, &before, &after, &sequence); err != nil {
			return fmt.Errorf("failed to scan chain row: %w", err)
		}
		if before != prev {
			return fmt.Errorf("balance chain broken at entry %s: balance_before=%s, previous balance_after=%s",
				id, models.FromMinor(before).String(), models.FromMinor(prev).String())
		}
		prev = after
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating chain rows: %w", err)
	}
	if prev != current {
		return fmt.Errorf("balance chain ends at %s, maintained balance is %s",
			models.FromMinor(prev).String(), models.FromMinor(current).String())
	}
	return nil
}

// GetWalletStats aggregates completed activity for an account
func (s *SubledgerService) GetWalletStats(ctx context.Context, accountId string) (*models.WalletStats, error) {
	balance, err := s.GetBalance(ctx, accountId)
	if err != nil {
		return nil, err
	}

	var (
		stats                    models.WalletStats
		spent, recharged, refund int64
	)
	err = s.db.QueryRowContext(ctx, queryWalletStats, accountId).
		Scan(&spent, &recharged, &refund, &stats.RechargeCount, &stats.PurchaseCount)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate wallet stats: %w", err)
	}

	if err := s.db.QueryRowContext(ctx, queryGetAccountCreatedAt, accountId).
		Scan(&stats.JoinedAt); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to get account creation date: %w", err)
	}

	stats.CurrentBalance = balance.Balance
	stats.TotalSpent = models.FromMinor(spent)
	stats.TotalRecharged = models.FromMinor(recharged)
	stats.TotalRefunded = models.FromMinor(refund)
	return &stats, nil
}
