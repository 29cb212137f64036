package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"streamprime-wallet-go/internal/models"
)

func scanContent(row rowScanner) (*models.ContentItem, error) {
	var item models.ContentItem
	var price, earnings int64
	if err := row.Scan(&item.Id, &item.Title, &price, &item.Active, &item.ViewCount, &earnings, &item.CreatedAt); err != nil {
		return nil, err
	}
	item.Price = models.FromMinor(price)
	item.TotalEarnings = models.FromMinor(earnings)
	return &item, nil
}

// UpsertContent inserts a catalog item or updates its title, price and active
// flag. View counts and earnings are never overwritten.
func (s *Service) UpsertContent(ctx context.Context, item models.ContentItem) error {
	if item.Id == "" {
		return &models.ValidationError{Field: "content_id", Message: "is required"}
	}
	price, err := models.ToMinor(item.Price)
	if err != nil {
		return err
	}
	if price <= 0 {
		return &models.ValidationError{Field: "price", Message: "must be positive"}
	}

	now := s.subledger.stamp(item.CreatedAt)
	if _, err := s.db.ExecContext(ctx, queryUpsertContent, item.Id, item.Title, price, item.Active, now, now); err != nil {
		zap.L().Error("Failed to upsert content", zap.String("content_id", item.Id), zap.Error(err))
		return fmt.Errorf("unable to upsert content: %w", err)
	}

	zap.L().Debug("Content upserted", zap.String("content_id", item.Id), zap.String("price", item.Price.String()))
	return nil
}

func (s *Service) GetContent(ctx context.Context, contentId string) (*models.ContentItem, error) {
	item, err := scanContent(s.db.QueryRowContext(ctx, queryGetContent, contentId))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: content %s", models.ErrNotFound, contentId)
		}
		return nil, fmt.Errorf("unable to query content: %w", err)
	}
	return item, nil
}

func (s *Service) ListContent(ctx context.Context) ([]models.ContentItem, error) {
	rows, err := s.db.QueryContext(ctx, queryListContent)
	if err != nil {
		return nil, fmt.Errorf("unable to query content: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var items []models.ContentItem
	for rows.Next() {
		item, err := scanContent(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan content row: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating content rows: %w", err)
	}
	return items, nil
}

func (s *Service) GetWatchHistory(ctx context.Context, accountId string, limit int) ([]models.WatchRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, queryGetWatchHistory, accountId, limit)
	if err != nil {
		return nil, fmt.Errorf("unable to query watch history: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var records []models.WatchRecord
	for rows.Next() {
		var record models.WatchRecord
		var paid int64
		if err := rows.Scan(&record.AccountId, &record.ContentId, &record.EntryId, &paid, &record.WatchedAt); err != nil {
			return nil, fmt.Errorf("unable to scan watch history row: %w", err)
		}
		record.AmountPaid = models.FromMinor(paid)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating watch history rows: %w", err)
	}
	return records, nil
}
