package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"streamprime-wallet-go/internal/models"
	"streamprime-wallet-go/internal/store"
)

const (
	EventPaymentAuthorized = "payment.authorized"
	EventPaymentCaptured   = "payment.captured"
	EventPaymentCompleted  = "payment.completed"
	EventPaymentFailed     = "payment.failed"
	EventPaymentUPIMissed  = "payment.upi.missed"
)

func (a *Adapter) webhookSecret() string {
	if a.cfg.WebhookSecret != "" {
		return a.cfg.WebhookSecret
	}
	return a.cfg.KeySecret
}

// VerifyWebhook authenticates a provider notification over its raw body and
// applies it. Events that need no ledger change are acknowledged without one.
func (a *Adapter) VerifyWebhook(ctx context.Context, rawBody []byte, signature string) (*models.WebhookAck, error) {
	if err := a.available(); err != nil {
		return nil, err
	}

	if !Verify(a.webhookSecret(), rawBody, signature) {
		signatureFailures.WithLabelValues("webhook").Inc()
		zap.L().Warn("Invalid webhook signature", zap.Int("body_bytes", len(rawBody)))
		return nil, models.ErrInvalidSignature
	}

	var event models.WebhookEvent
	if err := json.Unmarshal(rawBody, &event); err != nil {
		return nil, &models.ValidationError{Field: "body", Message: fmt.Sprintf("malformed webhook payload: %v", err)}
	}
	webhooksTotal.WithLabelValues(event.Event).Inc()

	payment := event.Payload.Payment.Entity
	zap.L().Info("Webhook received",
		zap.String("event", event.Event),
		zap.String("order_id", payment.OrderId),
		zap.String("payment_id", payment.Id))

	switch event.Event {
	case EventPaymentAuthorized, EventPaymentCaptured, EventPaymentCompleted:
		return a.applyPaymentSuccess(ctx, event.Event, payment)
	case EventPaymentFailed:
		return a.applyPaymentFailure(ctx, event.Event, payment)
	case EventPaymentUPIMissed:
		zap.L().Info("UPI payment missed, nothing to apply", zap.String("order_id", payment.OrderId))
		return &models.WebhookAck{Event: event.Event}, nil
	default:
		zap.L().Info("Unhandled webhook event", zap.String("event", event.Event))
		return &models.WebhookAck{Event: event.Event}, nil
	}
}

// matchEntry finds the recharge an order belongs to and checks the payment
// amount against it.
func (a *Adapter) matchEntry(ctx context.Context, payment models.ProviderPayment) (*models.LedgerEntry, error) {
	if payment.OrderId == "" {
		return nil, &models.ValidationError{Field: "order_id", Message: "missing from payment entity"}
	}
	entry, err := a.recharges.GetEntryByProviderOrder(ctx, payment.OrderId)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			zap.L().Warn("No recharge for provider order", zap.String("order_id", payment.OrderId))
		}
		return nil, err
	}

	expected, err := models.ToMinor(entry.Amount)
	if err != nil {
		return nil, err
	}
	if payment.Amount != expected {
		zap.L().Error("Provider amount does not match recharge",
			zap.String("entry_id", entry.Id),
			zap.String("order_id", payment.OrderId),
			zap.Int64("expected", expected),
			zap.Int64("actual", payment.Amount))
		return nil, &models.AmountMismatchError{EntryId: entry.Id, Expected: expected, Actual: payment.Amount}
	}
	return entry, nil
}

func (a *Adapter) applyPaymentSuccess(ctx context.Context, event string, payment models.ProviderPayment) (*models.WebhookAck, error) {
	entry, err := a.matchEntry(ctx, payment)
	if err != nil {
		return nil, err
	}

	credited, err := a.ledger.Credit(ctx, store.CreditParams{
		AccountId:     entry.AccountId,
		Amount:        entry.Amount,
		Method:        models.PaymentMethodRazorpay,
		CorrelationId: entry.CorrelationId,
		Meta: models.RechargeMeta{
			OrderId:   payment.OrderId,
			PaymentId: payment.Id,
			Provider:  models.PaymentMethodRazorpay,
		},
	})
	if err != nil {
		return nil, err
	}
	return &models.WebhookAck{Event: event, EntryId: credited.Id, Applied: !credited.Replayed}, nil
}

func (a *Adapter) applyPaymentFailure(ctx context.Context, event string, payment models.ProviderPayment) (*models.WebhookAck, error) {
	entry, err := a.matchEntry(ctx, payment)
	if err != nil {
		return nil, err
	}

	failed, err := a.recharges.FailPendingRecharge(ctx, store.FailRechargeParams{
		EntryId:   entry.Id,
		PaymentId: payment.Id,
		At:        a.ledger.Now(),
	})
	if errors.Is(err, models.ErrEntryFinalized) {
		// a later attempt on the same order may already have succeeded
		zap.L().Info("Failure notice for finalized recharge ignored",
			zap.String("entry_id", entry.Id),
			zap.String("status", string(entry.Status)))
		return &models.WebhookAck{Event: event, EntryId: entry.Id}, nil
	}
	if err != nil {
		return nil, err
	}
	return &models.WebhookAck{Event: event, EntryId: failed.Id, Applied: !failed.Replayed}, nil
}
