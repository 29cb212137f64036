package formance

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"streamprime-wallet-go/internal/models"

	"github.com/formancehq/formance-sdk-go/v3/pkg/models/sdkerrors"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"github.com/shopspring/decimal"
)

// ---------- Unit tests for pure helpers (no Formance stack needed) ----------

func TestAsset(t *testing.T) {
	if Asset != "INR/2" {
		t.Errorf("Asset = %q, want INR/2", Asset)
	}
}

func TestEntryTransaction_Recharge(t *testing.T) {
	completed := time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC)
	entry := &models.LedgerEntry{
		Id:          "entry-1",
		AccountId:   "acct-1",
		Kind:        models.EntryKindRecharge,
		Status:      models.EntryStatusCompleted,
		Amount:      decimal.RequireFromString("100.50"),
		Meta:        models.RechargeMeta{OrderId: "order_1", PaymentId: "pay_1", Provider: "razorpay"},
		CompletedAt: &completed,
	}

	postTx, err := entryTransaction(entry)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if postTx.Reference == nil || *postTx.Reference != "entry-1" {
		t.Errorf("reference = %v, want entry-1", postTx.Reference)
	}
	if postTx.Script.Plain != numscriptRecharge {
		t.Error("expected recharge numscript")
	}
	vars := postTx.Script.Vars
	if vars["amount"] != "10050" || vars["asset"] != "INR/2" {
		t.Errorf("amount/asset = %s %s", vars["amount"], vars["asset"])
	}
	if vars["order_id"] != "order_1" || vars["payment_id"] != "pay_1" {
		t.Errorf("provider refs not carried: %v", vars)
	}
	if postTx.Timestamp == nil || !postTx.Timestamp.Equal(completed) {
		t.Errorf("timestamp = %v, want %v", postTx.Timestamp, completed)
	}
}

func TestEntryTransaction_Purchase(t *testing.T) {
	entry := &models.LedgerEntry{
		Id:        "entry-2",
		AccountId: "acct-1",
		Kind:      models.EntryKindPurchase,
		Status:    models.EntryStatusCompleted,
		Amount:    decimal.RequireFromString("-2"),
		Meta:      models.PurchaseMeta{ContentId: "video-1"},
		CreatedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	postTx, err := entryTransaction(entry)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if postTx.Script.Plain != numscriptPurchase {
		t.Error("expected purchase numscript")
	}
	if postTx.Script.Vars["amount"] != "200" {
		t.Errorf("amount = %s, want absolute 200", postTx.Script.Vars["amount"])
	}
	if postTx.Script.Vars["content_id"] != "video-1" {
		t.Errorf("content_id = %s", postTx.Script.Vars["content_id"])
	}

	entry.Meta = nil
	if _, err := entryTransaction(entry); err == nil {
		t.Error("expected error for purchase without content id")
	}
}

func TestEntryTransaction_Refund(t *testing.T) {
	entry := &models.LedgerEntry{
		Id:        "entry-3",
		AccountId: "acct-1",
		Kind:      models.EntryKindRefund,
		Status:    models.EntryStatusCompleted,
		Amount:    decimal.RequireFromString("2"),
		Meta:      models.RefundMeta{OriginalEntryId: "entry-2", Reason: "playback failed"},
	}

	postTx, err := entryTransaction(entry)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if postTx.Script.Vars["original_entry_id"] != "entry-2" {
		t.Errorf("original_entry_id = %s", postTx.Script.Vars["original_entry_id"])
	}
	if postTx.Timestamp != nil {
		t.Error("zero times should leave the timestamp to the ledger")
	}
}

func TestEntryTransaction_Rejects(t *testing.T) {
	pending := &models.LedgerEntry{Id: "p", Kind: models.EntryKindRecharge, Status: models.EntryStatusPending, Amount: decimal.NewFromInt(100)}
	if _, err := entryTransaction(pending); err == nil {
		t.Error("pending entries must not be mirrored")
	}

	fractional := &models.LedgerEntry{Id: "f", Kind: models.EntryKindRecharge, Status: models.EntryStatusCompleted, Amount: decimal.RequireFromString("1.001")}
	if _, err := entryTransaction(fractional); err == nil {
		t.Error("expected error for sub-paise amount")
	}

	unknown := &models.LedgerEntry{Id: "u", Kind: "bonus", Status: models.EntryStatusCompleted, Amount: decimal.NewFromInt(1)}
	if _, err := entryTransaction(unknown); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestOpeningTransaction(t *testing.T) {
	postTx, err := openingTransaction("acct-1", decimal.NewFromInt(50))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *postTx.Reference != "opening:acct-1" {
		t.Errorf("reference = %s", *postTx.Reference)
	}
	if postTx.Script.Vars["amount"] != "5000" {
		t.Errorf("amount = %s, want 5000", postTx.Script.Vars["amount"])
	}
}

func TestVolumeBalance(t *testing.T) {
	vols := map[string]shared.V2Volume{
		"INR/2": {Input: big.NewInt(15000), Output: big.NewInt(200)},
	}
	got := minorToDecimal(volumeBalance(vols, "INR/2"))
	if !got.Equal(decimal.RequireFromString("148")) {
		t.Errorf("balance = %s, want 148", got.String())
	}

	vols["INR/2"] = shared.V2Volume{Balance: big.NewInt(4550)}
	got = minorToDecimal(volumeBalance(vols, "INR/2"))
	if !got.Equal(decimal.RequireFromString("45.50")) {
		t.Errorf("balance = %s, want 45.50", got.String())
	}

	if !minorToDecimal(volumeBalance(vols, "USD/2")).IsZero() {
		t.Error("missing asset should be zero")
	}
}

func TestErrorClassification(t *testing.T) {
	if isConflictError(nil) || isNotFoundError(nil) {
		t.Error("nil should not classify")
	}
	conflict := &sdkerrors.V2ErrorResponse{ErrorCode: shared.V2ErrorsEnumConflict}
	if !isConflictError(conflict) {
		t.Error("expected conflict")
	}
	if isNotFoundError(conflict) {
		t.Error("conflict is not not-found")
	}
	if isConflictError(errors.New("boom")) {
		t.Error("plain error is not a conflict")
	}
}
