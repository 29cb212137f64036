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

package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"streamprime-wallet-go/internal/models"
	"streamprime-wallet-go/internal/store"
	"streamprime-wallet-go/internal/wallet"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const defaultPendingTTL = 24 * time.Hour

// RechargeStore is the slice of storage the adapter writes directly. Balance
// changes always go through the wallet ledger.
type RechargeStore interface {
	GetAccountById(ctx context.Context, accountId string) (*models.Account, error)
	CreatePendingRecharge(ctx context.Context, params store.PendingRechargeParams) (*models.LedgerEntry, error)
	AttachProviderOrder(ctx context.Context, entryId, orderId string) error
	FailPendingRecharge(ctx context.Context, params store.FailRechargeParams) (*models.LedgerEntry, error)
	GetEntryByProviderOrder(ctx context.Context, orderId string) (*models.LedgerEntry, error)
}

// Adapter reconciles provider payments with the wallet. Without provider
// credentials it is disabled and every operation returns ErrGatewayUnavailable.
type Adapter struct {
	cfg        models.GatewayConfig
	provider   Provider
	ledger     *wallet.Ledger
	recharges  RechargeStore
	pendingTTL time.Duration
	enabled    bool
}

type Option func(*Adapter)

// WithPendingTTL sets how long a recharge may stay pending before the sweeper fails it
func WithPendingTTL(d time.Duration) Option {
	return func(a *Adapter) {
		if d > 0 {
			a.pendingTTL = d
		}
	}
}

func NewAdapter(cfg models.GatewayConfig, provider Provider, ledger *wallet.Ledger, recharges RechargeStore, opts ...Option) *Adapter {
	a := &Adapter{
		cfg:        cfg,
		provider:   provider,
		ledger:     ledger,
		recharges:  recharges,
		pendingTTL: defaultPendingTTL,
		enabled:    cfg.Enabled() && provider != nil,
	}
	for _, opt := range opts {
		opt(a)
	}
	if !a.enabled {
		zap.L().Warn("Payment gateway disabled, provider credentials not configured")
	}
	return a
}

// Enabled reports whether provider credentials are configured
func (a *Adapter) Enabled() bool {
	return a.enabled
}

func (a *Adapter) available() error {
	if !a.enabled {
		return models.ErrGatewayUnavailable
	}
	return nil
}

func (a *Adapter) providerContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.cfg.Timeout)
}

// CreateRechargeOrder records a pending recharge and opens a provider order for it
func (a *Adapter) CreateRechargeOrder(ctx context.Context, accountId string, amount decimal.Decimal) (*models.OrderDescriptor, error) {
	if err := a.available(); err != nil {
		return nil, err
	}

	minor, err := models.ToMinor(amount)
	if err != nil {
		return nil, err
	}
	if amount.LessThan(a.cfg.MinRecharge) || amount.GreaterThan(a.cfg.MaxRecharge) {
		return nil, &models.ValidationError{
			Field:   "amount",
			Message: fmt.Sprintf("must be between %s and %s", a.cfg.MinRecharge.String(), a.cfg.MaxRecharge.String()),
		}
	}

	if _, err := a.recharges.GetAccountById(ctx, accountId); err != nil {
		return nil, err
	}

	correlationId := "rcpt_" + ulid.Make().String()
	pending, err := a.recharges.CreatePendingRecharge(ctx, store.PendingRechargeParams{
		AccountId:     accountId,
		Amount:        amount,
		CorrelationId: correlationId,
		Provider:      models.PaymentMethodRazorpay,
		At:            a.ledger.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record pending recharge: %w", err)
	}

	providerCtx, cancel := a.providerContext(ctx)
	defer cancel()

	timer := prometheus.NewTimer(providerLatency.WithLabelValues("create_order"))
	order, err := a.provider.CreateOrder(providerCtx, OrderRequest{
		Amount:   minor,
		Currency: models.Currency,
		Receipt:  correlationId,
		Notes: map[string]string{
			"account_id":     accountId,
			"type":           "wallet_recharge",
			"correlation_id": correlationId,
		},
		PaymentCapture: 1,
	})
	timer.ObserveDuration()
	if err != nil {
		ordersTotal.WithLabelValues("provider_error").Inc()
		zap.L().Error("Provider order creation failed, recharge left pending",
			zap.String("account_id", accountId),
			zap.String("entry_id", pending.Id),
			zap.String("amount", amount.String()),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", models.ErrGatewayUnavailable, err)
	}

	if err := a.recharges.AttachProviderOrder(ctx, pending.Id, order.Id); err != nil {
		ordersTotal.WithLabelValues("attach_error").Inc()
		zap.L().Error("Failed to attach provider order",
			zap.String("entry_id", pending.Id),
			zap.String("order_id", order.Id),
			zap.Error(err))
		return nil, err
	}

	ordersTotal.WithLabelValues("created").Inc()
	zap.L().Info("Recharge order created",
		zap.String("account_id", accountId),
		zap.String("entry_id", pending.Id),
		zap.String("order_id", order.Id),
		zap.String("amount", amount.String()))

	return &models.OrderDescriptor{
		OrderId:     order.Id,
		EntryId:     pending.Id,
		Amount:      amount,
		AmountMinor: minor,
		Currency:    models.Currency,
		Receipt:     correlationId,
		KeyId:       a.cfg.KeyId,
	}, nil
}

// VerifyClientProof checks the checkout signature and credits the recharge.
// Verifying the same payment twice returns the same entry.
func (a *Adapter) VerifyClientProof(ctx context.Context, orderId, paymentId, signature string) (*models.LedgerEntry, error) {
	if err := a.available(); err != nil {
		return nil, err
	}
	if orderId == "" || paymentId == "" || signature == "" {
		return nil, &models.ValidationError{Field: "payment", Message: "order_id, payment_id and signature are required"}
	}

	if !Verify(a.cfg.KeySecret, ClientProofPayload(orderId, paymentId), signature) {
		signatureFailures.WithLabelValues("client_proof").Inc()
		zap.L().Warn("Invalid payment signature",
			zap.String("order_id", orderId),
			zap.String("payment_id", paymentId))
		return nil, models.ErrInvalidSignature
	}

	entry, err := a.recharges.GetEntryByProviderOrder(ctx, orderId)
	if err != nil {
		return nil, err
	}

	return a.ledger.Credit(ctx, store.CreditParams{
		AccountId:     entry.AccountId,
		Amount:        entry.Amount,
		Method:        models.PaymentMethodRazorpay,
		CorrelationId: entry.CorrelationId,
		Meta: models.RechargeMeta{
			OrderId:   orderId,
			PaymentId: paymentId,
			Signature: signature,
			Provider:  models.PaymentMethodRazorpay,
		},
	})
}

// FetchPayment looks a payment up at the provider
func (a *Adapter) FetchPayment(ctx context.Context, paymentId string) (*models.ProviderPayment, error) {
	if err := a.available(); err != nil {
		return nil, err
	}
	providerCtx, cancel := a.providerContext(ctx)
	defer cancel()

	timer := prometheus.NewTimer(providerLatency.WithLabelValues("fetch_payment"))
	defer timer.ObserveDuration()

	payment, err := a.provider.FetchPayment(providerCtx, paymentId)
	if err != nil {
		return nil, a.providerFailure("fetch payment", err)
	}
	return payment, nil
}

// FetchOrderPayments lists the payment attempts made against an order
func (a *Adapter) FetchOrderPayments(ctx context.Context, orderId string) ([]models.ProviderPayment, error) {
	if err := a.available(); err != nil {
		return nil, err
	}
	providerCtx, cancel := a.providerContext(ctx)
	defer cancel()

	timer := prometheus.NewTimer(providerLatency.WithLabelValues("fetch_order_payments"))
	defer timer.ObserveDuration()

	payments, err := a.provider.FetchOrderPayments(providerCtx, orderId)
	if err != nil {
		return nil, a.providerFailure("fetch order payments", err)
	}
	return payments, nil
}

func (a *Adapter) providerFailure(op string, err error) error {
	var perr *ProviderError
	if errors.As(err, &perr) && perr.StatusCode == 404 {
		return fmt.Errorf("%w: %s: %v", models.ErrNotFound, op, err)
	}
	zap.L().Error("Payment provider call failed", zap.String("operation", op), zap.Error(err))
	return fmt.Errorf("%w: %s: %v", models.ErrGatewayUnavailable, op, err)
}

// CalculateProcessingFees estimates the provider fee on a recharge: 2% plus
// 18% GST on that fee.
func CalculateProcessingFees(amount decimal.Decimal) models.ProcessingFees {
	fee := amount.Mul(decimal.RequireFromString("0.02")).Round(models.MinorDigits)
	gst := fee.Mul(decimal.RequireFromString("0.18")).Round(models.MinorDigits)
	total := fee.Add(gst)
	return models.ProcessingFees{
		ProcessingFee: fee,
		Gst:           gst,
		TotalFees:     total,
		NetAmount:     amount.Sub(total),
	}
}
