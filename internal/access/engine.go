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

package access

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"streamprime-wallet-go/internal/models"
	"streamprime-wallet-go/internal/store"
	"streamprime-wallet-go/internal/wallet"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const DefaultReuseWindow = 48 * time.Hour

var purchasesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "access_purchases_total",
	Help: "Watch requests by whether the wallet was charged",
}, []string{"charged"})

// Backend is the catalog and purchase log the engine reads
type Backend interface {
	GetContent(ctx context.Context, contentId string) (*models.ContentItem, error)
	GetEntry(ctx context.Context, entryId string) (*models.LedgerEntry, error)
	FindRecentPurchase(ctx context.Context, accountId, contentId string, since time.Time) (*models.LedgerEntry, error)
	ListRecentPurchases(ctx context.Context, accountId string, since time.Time) ([]models.LedgerEntry, error)
}

// Engine decides whether a watch request is covered by an earlier purchase
// or has to be paid for.
type Engine struct {
	backend Backend
	ledger  *wallet.Ledger
	locks   *wallet.KeyedMutex
	window  time.Duration
}

func NewEngine(backend Backend, ledger *wallet.Ledger, window time.Duration) *Engine {
	if window <= 0 {
		window = DefaultReuseWindow
	}
	return &Engine{
		backend: backend,
		ledger:  ledger,
		locks:   wallet.NewKeyedMutex(),
		window:  window,
	}
}

func grantKey(accountId, contentId string) string {
	return accountId + "|" + contentId
}

// PurchaseOrReuse returns the grant for (account, content). A completed
// purchase inside the reuse window is returned without charging; otherwise the
// content price is debited. Concurrent calls for the same pair charge once.
func (e *Engine) PurchaseOrReuse(ctx context.Context, accountId, contentId string) (*models.AccessGrant, error) {
	if accountId == "" {
		return nil, &models.ValidationError{Field: "account_id", Message: "is required"}
	}
	if contentId == "" {
		return nil, &models.ValidationError{Field: "content_id", Message: "is required"}
	}

	// ordered before the wallet's account lock
	unlock := e.locks.Lock(grantKey(accountId, contentId))
	defer unlock()

	item, err := e.backend.GetContent(ctx, contentId)
	if err != nil {
		return nil, err
	}
	if !item.Active {
		return nil, fmt.Errorf("%w: content %s is not available", models.ErrNotFound, contentId)
	}

	since := e.ledger.Now().Add(-e.window)
	recent, err := e.backend.FindRecentPurchase(ctx, accountId, contentId, since)
	if err != nil {
		zap.L().Error("Failed to look up recent purchase",
			zap.String("account_id", accountId),
			zap.String("content_id", contentId),
			zap.Error(err))
		return nil, fmt.Errorf("failed to check existing access: %w", err)
	}
	if recent != nil {
		purchasesTotal.WithLabelValues(strconv.FormatBool(false)).Inc()
		zap.L().Debug("Reusing purchase",
			zap.String("account_id", accountId),
			zap.String("content_id", contentId),
			zap.String("entry_id", recent.Id))
		return e.grant(recent, contentId, false, decimal.Zero), nil
	}

	// the lookup above is a fast path; the debit repeats it inside the
	// database transaction, which covers other processes sharing the store
	entry, err := e.ledger.Debit(ctx, store.DebitParams{
		AccountId:  accountId,
		Amount:     item.Price,
		Meta:       models.PurchaseMeta{ContentId: contentId},
		ReuseSince: since,
	})
	if err != nil {
		var insufficient *models.InsufficientFundsError
		if errors.As(err, &insufficient) {
			zap.L().Info("Payment required",
				zap.String("account_id", accountId),
				zap.String("content_id", contentId),
				zap.String("required", insufficient.Required.String()),
				zap.String("available", insufficient.Available.String()))
			return nil, &models.PaymentRequiredError{
				ContentId: contentId,
				Required:  insufficient.Required,
				Available: insufficient.Available,
			}
		}
		return nil, err
	}
	if entry.Replayed {
		purchasesTotal.WithLabelValues(strconv.FormatBool(false)).Inc()
		zap.L().Debug("Reusing purchase committed elsewhere",
			zap.String("account_id", accountId),
			zap.String("content_id", contentId),
			zap.String("entry_id", entry.Id))
		return e.grant(entry, contentId, false, decimal.Zero), nil
	}

	purchasesTotal.WithLabelValues(strconv.FormatBool(true)).Inc()
	zap.L().Info("Content purchased",
		zap.String("account_id", accountId),
		zap.String("content_id", contentId),
		zap.String("entry_id", entry.Id),
		zap.String("price", item.Price.String()))

	return e.grant(entry, contentId, true, item.Price), nil
}

func (e *Engine) grant(entry *models.LedgerEntry, contentId string, charged bool, paid decimal.Decimal) *models.AccessGrant {
	return &models.AccessGrant{
		ContentId:  contentId,
		EntryId:    entry.Id,
		ExpiresAt:  entry.CreatedAt.Add(e.window),
		Charged:    charged,
		AmountPaid: paid,
	}
}

// ActiveGrants lists the unexpired grants of an account, newest first, one
// per content item.
func (e *Engine) ActiveGrants(ctx context.Context, accountId string) ([]models.AccessGrant, error) {
	if accountId == "" {
		return nil, &models.ValidationError{Field: "account_id", Message: "is required"}
	}

	purchases, err := e.backend.ListRecentPurchases(ctx, accountId, e.ledger.Now().Add(-e.window))
	if err != nil {
		return nil, fmt.Errorf("failed to list active grants: %w", err)
	}

	seen := make(map[string]bool, len(purchases))
	grants := make([]models.AccessGrant, 0, len(purchases))
	for i := range purchases {
		purchase, ok := purchases[i].Purchase()
		if !ok || seen[purchase.ContentId] {
			continue
		}
		seen[purchase.ContentId] = true
		grants = append(grants, *e.grant(&purchases[i], purchase.ContentId, true, purchases[i].Amount.Abs()))
	}
	return grants, nil
}

// RefundPurchase reverses a purchase: the wallet is credited, the content's
// earnings are reduced and the grant stops counting for reuse.
func (e *Engine) RefundPurchase(ctx context.Context, accountId, entryId, reason string) (*models.LedgerEntry, error) {
	original, err := e.backend.GetEntry(ctx, entryId)
	if err != nil {
		return nil, err
	}
	purchase, ok := original.Purchase()
	if !ok || original.AccountId != accountId {
		return nil, fmt.Errorf("%w: purchase %s", models.ErrNotFound, entryId)
	}

	unlock := e.locks.Lock(grantKey(accountId, purchase.ContentId))
	defer unlock()

	return e.ledger.RefundPurchase(ctx, accountId, entryId, reason)
}
