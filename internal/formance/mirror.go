package formance

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"streamprime-wallet-go/internal/models"

	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Asset is the UMN notation of the wallet currency, e.g. "INR/2".
var Asset = fmt.Sprintf("%s/%d", models.Currency, models.MinorDigits)

// Numscript templates. All metadata is set inside the script via set_tx_meta()
// so every mirrored transaction is self-describing.

const numscriptOpening = `vars {
  asset $asset
  number $amount
  account $account_id
}

send [$asset $amount] (
  source = @platform:promotions allowing unbounded overdraft
  destination = @users:$account_id
)

set_tx_meta("event_type", "opening_balance")
`

const numscriptRecharge = `vars {
  asset $asset
  number $amount
  account $account_id
  string $entry_id
  string $order_id
  string $payment_id
}

send [$asset $amount] (
  source = @gateway:razorpay allowing unbounded overdraft
  destination = @users:$account_id
)

set_tx_meta("event_type", "recharge")
set_tx_meta("entry_id", $entry_id)
set_tx_meta("order_id", $order_id)
set_tx_meta("payment_id", $payment_id)
`

// purchases never overdraw: the wallet already refused the debit if the balance was short
const numscriptPurchase = `vars {
  asset $asset
  number $amount
  account $account_id
  account $content_id
  string $entry_id
}

send [$asset $amount] (
  source = @users:$account_id
  destination = @content:$content_id:revenue
)

set_tx_meta("event_type", "purchase")
set_tx_meta("entry_id", $entry_id)
`

const numscriptRefund = `vars {
  asset $asset
  number $amount
  account $account_id
  string $entry_id
  string $original_entry_id
  string $reason
}

send [$asset $amount] (
  source = @platform:refunds allowing unbounded overdraft
  destination = @users:$account_id
)

set_tx_meta("event_type", "refund")
set_tx_meta("entry_id", $entry_id)
set_tx_meta("original_entry_id", $original_entry_id)
set_tx_meta("reason", $reason)
`

// PublishOpening mirrors the welcome bonus of a new account. Zero bonuses
// are skipped since Formance rejects empty postings.
func (m *Mirror) PublishOpening(ctx context.Context, accountId string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return nil
	}
	postTx, err := openingTransaction(accountId, amount)
	if err != nil {
		return err
	}
	if err := m.post(ctx, postTx); err != nil {
		return fmt.Errorf("error recording opening balance: %w", err)
	}

	zap.L().Info("Opening balance mirrored",
		zap.String("account_id", accountId),
		zap.String("amount", amount.String()))
	return nil
}

// PublishEntry mirrors one completed ledger entry. The entry id is the
// transaction reference so republishing the same entry is a no-op.
func (m *Mirror) PublishEntry(ctx context.Context, entry *models.LedgerEntry) error {
	postTx, err := entryTransaction(entry)
	if err != nil {
		return err
	}
	if err := m.post(ctx, postTx); err != nil {
		return fmt.Errorf("error mirroring %s entry %s: %w", entry.Kind, entry.Id, err)
	}

	zap.L().Info("Ledger entry mirrored",
		zap.String("entry_id", entry.Id),
		zap.String("kind", string(entry.Kind)),
		zap.String("amount", entry.Amount.String()))
	return nil
}

func (m *Mirror) post(ctx context.Context, postTx shared.V2PostTransaction) error {
	_, err := m.client.Ledger.V2.CreateTransaction(ctx, operations.V2CreateTransactionRequest{
		Ledger:            m.ledger,
		V2PostTransaction: postTx,
	})
	if err != nil {
		if isConflictError(err) {
			return nil // idempotent
		}
		return err
	}
	return nil
}

func openingTransaction(accountId string, amount decimal.Decimal) (shared.V2PostTransaction, error) {
	minor, err := models.ToMinor(amount)
	if err != nil {
		return shared.V2PostTransaction{}, err
	}
	return shared.V2PostTransaction{
		Reference: strPtr("opening:" + accountId),
		Script: &shared.V2PostTransactionScript{
			Plain: numscriptOpening,
			Vars: map[string]string{
				"asset":      Asset,
				"amount":     strconv.FormatInt(minor, 10),
				"account_id": accountId,
			},
		},
	}, nil
}

// entryTransaction builds the posting for a completed entry. Amounts are
// mirrored as absolute minor units; direction comes from the script.
func entryTransaction(entry *models.LedgerEntry) (shared.V2PostTransaction, error) {
	if entry.Status != models.EntryStatusCompleted && entry.Status != models.EntryStatusRefunded {
		return shared.V2PostTransaction{}, fmt.Errorf("entry %s is %s, only completed entries are mirrored", entry.Id, entry.Status)
	}
	minor, err := models.ToMinor(entry.Amount.Abs())
	if err != nil {
		return shared.V2PostTransaction{}, err
	}

	vars := map[string]string{
		"asset":      Asset,
		"amount":     strconv.FormatInt(minor, 10),
		"account_id": entry.AccountId,
		"entry_id":   entry.Id,
	}

	var script string
	switch entry.Kind {
	case models.EntryKindRecharge:
		meta, _ := entry.Recharge()
		script = numscriptRecharge
		vars["order_id"] = meta.OrderId
		vars["payment_id"] = meta.PaymentId
	case models.EntryKindPurchase:
		meta, ok := entry.Purchase()
		if !ok || meta.ContentId == "" {
			return shared.V2PostTransaction{}, fmt.Errorf("purchase entry %s has no content id", entry.Id)
		}
		script = numscriptPurchase
		vars["content_id"] = meta.ContentId
	case models.EntryKindRefund:
		meta, _ := entry.Refund()
		script = numscriptRefund
		vars["original_entry_id"] = meta.OriginalEntryId
		vars["reason"] = meta.Reason
	default:
		return shared.V2PostTransaction{}, fmt.Errorf("unknown entry kind %q", entry.Kind)
	}

	postTx := shared.V2PostTransaction{
		Reference: strPtr(entry.Id),
		Script: &shared.V2PostTransactionScript{
			Plain: script,
			Vars:  vars,
		},
	}
	if ts := entryTime(entry); !ts.IsZero() {
		postTx.Timestamp = &ts
	}
	return postTx, nil
}

func entryTime(entry *models.LedgerEntry) time.Time {
	if entry.CompletedAt != nil {
		return entry.CompletedAt.UTC()
	}
	return entry.CreatedAt.UTC()
}

func strPtr(s string) *string { return &s }
