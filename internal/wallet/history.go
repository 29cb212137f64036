package wallet

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"streamprime-wallet-go/internal/models"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// History returns one page of the account's entries, newest first. page starts
// at 1; limit is clamped to 1..100 and defaults to 20.
func (l *Ledger) History(ctx context.Context, accountId string, page, limit int) (*models.HistoryPage, error) {
	if accountId == "" {
		return nil, &models.ValidationError{Field: "account_id", Message: "is required"}
	}
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	if page < 1 {
		page = 1
	}

	entries, err := l.backend.GetEntryHistory(ctx, accountId, limit, (page-1)*limit)
	if err != nil {
		zap.L().Error("Failed to get entry history", zap.String("account_id", accountId), zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve transaction history: %w", err)
	}
	total, err := l.backend.CountEntries(ctx, accountId)
	if err != nil {
		zap.L().Error("Failed to count entries", zap.String("account_id", accountId), zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve transaction history: %w", err)
	}

	records := make([]models.TransactionRecord, len(entries))
	for i, entry := range entries {
		records[i] = ToRecord(entry)
	}

	return &models.HistoryPage{
		Transactions: records,
		Pagination: models.Pagination{
			Page:  page,
			Limit: limit,
			Total: total,
			Pages: (total + limit - 1) / limit,
		},
	}, nil
}

// Stats summarizes completed activity for the account
func (l *Ledger) Stats(ctx context.Context, accountId string) (*models.WalletStats, error) {
	if accountId == "" {
		return nil, &models.ValidationError{Field: "account_id", Message: "is required"}
	}
	return l.backend.GetWalletStats(ctx, accountId)
}

// ToRecord flattens an entry for API output
func ToRecord(entry models.LedgerEntry) models.TransactionRecord {
	record := models.TransactionRecord{
		Id:            entry.Id,
		Kind:          entry.Kind,
		Status:        entry.Status,
		Amount:        entry.Amount,
		PaymentMethod: entry.PaymentMethod,
		BalanceAfter:  entry.BalanceAfter,
		CreatedAt:     entry.CreatedAt,
	}
	if purchase, ok := entry.Purchase(); ok {
		record.ContentId = purchase.ContentId
	}
	return record
}
