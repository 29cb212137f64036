package gateway

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"streamprime-wallet-go/internal/models"
	"streamprime-wallet-go/internal/store"
)

// Settlement is what SettlePendingRecharge decided for an entry
type Settlement string

const (
	SettlementCredited Settlement = "credited"
	SettlementFailed   Settlement = "failed"
	SettlementPending  Settlement = "pending"
	SettlementSkipped  Settlement = "skipped"
)

// SettlePendingRecharge asks the provider about a stale pending recharge. A
// captured payment for the full amount credits it; an entry older than the
// pending TTL without one is failed; anything else is left for the next pass.
func (a *Adapter) SettlePendingRecharge(ctx context.Context, entry models.LedgerEntry) (Settlement, error) {
	if err := a.available(); err != nil {
		return SettlementSkipped, err
	}
	if entry.Kind != models.EntryKindRecharge || entry.Status != models.EntryStatusPending {
		return SettlementSkipped, nil
	}

	recharge, _ := entry.Recharge()
	expired := a.ledger.Now().Sub(entry.CreatedAt) >= a.pendingTTL

	if recharge.OrderId == "" {
		// the provider order was never created
		if !expired {
			return SettlementPending, nil
		}
		return a.expire(ctx, entry, "")
	}

	payments, err := a.FetchOrderPayments(ctx, recharge.OrderId)
	if err != nil {
		return SettlementPending, err
	}

	expected, err := models.ToMinor(entry.Amount)
	if err != nil {
		return SettlementSkipped, err
	}

	var lastPaymentId string
	for _, payment := range payments {
		lastPaymentId = payment.Id
		if !payment.Captured() {
			continue
		}
		if payment.Amount != expected {
			zap.L().Error("Captured payment amount does not match recharge",
				zap.String("entry_id", entry.Id),
				zap.String("payment_id", payment.Id),
				zap.Int64("expected", expected),
				zap.Int64("actual", payment.Amount))
			continue
		}

		_, err := a.ledger.Credit(ctx, store.CreditParams{
			AccountId:     entry.AccountId,
			Amount:        entry.Amount,
			Method:        models.PaymentMethodRazorpay,
			CorrelationId: entry.CorrelationId,
			Meta: models.RechargeMeta{
				OrderId:   recharge.OrderId,
				PaymentId: payment.Id,
				Provider:  models.PaymentMethodRazorpay,
			},
		})
		if err != nil {
			return SettlementPending, err
		}
		zap.L().Info("Pending recharge settled from provider",
			zap.String("entry_id", entry.Id),
			zap.String("payment_id", payment.Id))
		return SettlementCredited, nil
	}

	if !expired {
		return SettlementPending, nil
	}
	return a.expire(ctx, entry, lastPaymentId)
}

func (a *Adapter) expire(ctx context.Context, entry models.LedgerEntry, paymentId string) (Settlement, error) {
	_, err := a.recharges.FailPendingRecharge(ctx, store.FailRechargeParams{
		EntryId:   entry.Id,
		PaymentId: paymentId,
		At:        a.ledger.Now(),
	})
	if errors.Is(err, models.ErrEntryFinalized) {
		return SettlementSkipped, nil
	}
	if err != nil {
		return SettlementPending, err
	}
	zap.L().Info("Stale pending recharge failed",
		zap.String("entry_id", entry.Id),
		zap.Duration("age", a.ledger.Now().Sub(entry.CreatedAt)))
	return SettlementFailed, nil
}
