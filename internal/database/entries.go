package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"streamprime-wallet-go/internal/models"
)

type rowScanner interface {
	Scan(dest ...any) error
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queryEntry returns nil, nil when no row matches
func queryEntry(ctx context.Context, q querier, query string, args ...any) (*models.LedgerEntry, error) {
	entry, err := scanEntry(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return entry, err
}

func scanEntry(row rowScanner) (*models.LedgerEntry, error) {
	var (
		e                                                             models.LedgerEntry
		kind, status                                                  string
		amount                                                        int64
		correlationId, orderId                                        sql.NullString
		provider, paymentId, signature, contentId, originalId, reason string
		before, after                                                 sql.NullInt64
		completedAt                                                   sql.NullTime
	)

	err := row.Scan(&e.Id, &e.AccountId, &kind, &status, &amount, &e.PaymentMethod, &correlationId,
		&provider, &orderId, &paymentId, &signature,
		&contentId, &originalId, &reason, &before, &after,
		&e.CreatedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	e.Kind = models.EntryKind(kind)
	e.Status = models.EntryStatus(status)
	e.Amount = models.FromMinor(amount)
	e.CorrelationId = correlationId.String
	if before.Valid {
		e.BalanceBefore = models.FromMinor(before.Int64)
	}
	if after.Valid {
		e.BalanceAfter = models.FromMinor(after.Int64)
	}
	if completedAt.Valid {
		t := completedAt.Time
		e.CompletedAt = &t
	}

	switch e.Kind {
	case models.EntryKindRecharge:
		e.Meta = models.RechargeMeta{OrderId: orderId.String, PaymentId: paymentId, Signature: signature, Provider: provider}
	case models.EntryKindPurchase:
		e.Meta = models.PurchaseMeta{ContentId: contentId}
	case models.EntryKindRefund:
		e.Meta = models.RefundMeta{OriginalEntryId: originalId, Reason: reason}
	}

	return &e, nil
}

func scanEntries(rows *sql.Rows) ([]models.LedgerEntry, error) {
	defer rows.Close()

	var entries []models.LedgerEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger entries: %w", err)
	}
	return entries, nil
}

func positiveMinor(amount decimal.Decimal) (int64, error) {
	minor, err := models.ToMinor(amount)
	if err != nil {
		return 0, err
	}
	if minor <= 0 {
		return 0, &models.ValidationError{Field: "amount", Message: "must be positive"}
	}
	return minor, nil
}

func (s *SubledgerService) getEntry(ctx context.Context, query, key string) (*models.LedgerEntry, error) {
	entry, err := queryEntry(ctx, s.db, query, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger entry: %w", err)
	}
	if entry == nil {
		return nil, fmt.Errorf("%w: ledger entry %s", models.ErrNotFound, key)
	}
	return entry, nil
}

func (s *SubledgerService) GetEntry(ctx context.Context, entryId string) (*models.LedgerEntry, error) {
	return s.getEntry(ctx, queryGetEntry, entryId)
}

func (s *SubledgerService) GetEntryByCorrelationId(ctx context.Context, correlationId string) (*models.LedgerEntry, error) {
	return s.getEntry(ctx, queryGetEntryByCorrelation, correlationId)
}

func (s *SubledgerService) GetEntryByProviderOrder(ctx context.Context, orderId string) (*models.LedgerEntry, error) {
	return s.getEntry(ctx, queryGetEntryByProviderOrder, orderId)
}

// FindRecentPurchase returns the newest completed purchase of contentId made at
// or after since, or nil when there is none.
func (s *SubledgerService) FindRecentPurchase(ctx context.Context, accountId, contentId string, since time.Time) (*models.LedgerEntry, error) {
	entry, err := queryEntry(ctx, s.db, queryFindRecentPurchase, accountId, contentId, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to find recent purchase: %w", err)
	}
	return entry, nil
}

func (s *SubledgerService) ListRecentPurchases(ctx context.Context, accountId string, since time.Time) ([]models.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, queryListRecentPurchases, accountId, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list recent purchases: %w", err)
	}
	return scanEntries(rows)
}

func (s *SubledgerService) GetEntryHistory(ctx context.Context, accountId string, limit, offset int) ([]models.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, queryGetEntryHistory, accountId, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get entry history: %w", err)
	}
	return scanEntries(rows)
}

func (s *SubledgerService) CountEntries(ctx context.Context, accountId string) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, queryCountEntries, accountId).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return count, nil
}
