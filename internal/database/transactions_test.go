package database

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"streamprime-wallet-go/internal/models"
	"streamprime-wallet-go/internal/store"
)

func setupTestDb(t *testing.T) (*Service, func()) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	// one connection, one in-memory database
	db.SetMaxOpenConns(1)

	service := newServiceWithDB(db)

	// Use the actual schema initialization
	if err := service.initSchema(); err != nil {
		t.Fatalf("Failed to create test schema: %v", err)
	}
	if err := service.subledger.InitSchema(); err != nil {
		t.Fatalf("Failed to create subledger schema: %v", err)
	}

	cleanup := func() {
		db.Close()
	}

	return service, cleanup
}

func createTestAccount(t *testing.T, service *Service, id string, initial string) {
	t.Helper()
	_, err := service.CreateAccount(context.Background(), store.CreateAccountParams{
		Id:             id,
		Phone:          "98765" + id,
		Name:           "Test " + id,
		InitialBalance: decimal.RequireFromString(initial),
	})
	if err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
}

func TestCredit_AppliesToBalance(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	createTestAccount(t, service, "acct1", "50")

	entry, err := service.Credit(ctx, store.CreditParams{
		AccountId:     "acct1",
		Amount:        decimal.NewFromInt(100),
		CorrelationId: "pay_1",
		Meta:          models.RechargeMeta{OrderId: "order_1", PaymentId: "pay_1", Provider: "razorpay"},
	})
	if err != nil {
		t.Fatalf("Credit failed: %v", err)
	}

	if entry.Status != models.EntryStatusCompleted {
		t.Errorf("Expected status completed, got %s", entry.Status)
	}
	if !entry.BalanceBefore.Equal(decimal.NewFromInt(50)) {
		t.Errorf("Expected balance_before 50, got %s", entry.BalanceBefore.String())
	}
	if !entry.BalanceAfter.Equal(decimal.NewFromInt(150)) {
		t.Errorf("Expected balance_after 150, got %s", entry.BalanceAfter.String())
	}

	balance, err := service.GetBalance(ctx, "acct1")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if !balance.Balance.Equal(decimal.NewFromInt(150)) {
		t.Errorf("Expected balance 150, got %s", balance.Balance.String())
	}
	if balance.LastEntryId != entry.Id {
		t.Errorf("Expected last entry %s, got %s", entry.Id, balance.LastEntryId)
	}

	stored, err := service.GetEntryByProviderOrder(ctx, "order_1")
	if err != nil {
		t.Fatalf("GetEntryByProviderOrder failed: %v", err)
	}
	meta, ok := stored.Recharge()
	if !ok || meta.PaymentId != "pay_1" {
		t.Errorf("Expected recharge meta with payment pay_1, got %+v", stored.Meta)
	}
}

func TestCredit_ReplayIsIdempotent(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	createTestAccount(t, service, "acct1", "50")

	params := store.CreditParams{
		AccountId:     "acct1",
		Amount:        decimal.NewFromInt(100),
		CorrelationId: "pay_1",
		Meta:          models.RechargeMeta{PaymentId: "pay_1", Provider: "razorpay"},
	}

	first, err := service.Credit(ctx, params)
	if err != nil {
		t.Fatalf("First credit failed: %v", err)
	}
	second, err := service.Credit(ctx, params)
	if err != nil {
		t.Fatalf("Second credit failed: %v", err)
	}

	if second.Id != first.Id {
		t.Errorf("Expected replay of entry %s, got %s", first.Id, second.Id)
	}
	if !second.Replayed {
		t.Error("Expected second credit to be flagged as replayed")
	}

	balance, _ := service.GetBalance(ctx, "acct1")
	if !balance.Balance.Equal(decimal.NewFromInt(150)) {
		t.Errorf("Expected balance 150 after replay, got %s", balance.Balance.String())
	}

	count, _ := service.CountEntries(ctx, "acct1")
	if count != 1 {
		t.Errorf("Expected 1 entry, got %d", count)
	}
}

func TestCredit_RejectsInvalidAmounts(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	createTestAccount(t, service, "acct1", "0")

	for _, amount := range []string{"0", "-5", "1.005"} {
		_, err := service.Credit(ctx, store.CreditParams{AccountId: "acct1", Amount: decimal.RequireFromString(amount)})
		var validationErr *models.ValidationError
		if !errors.As(err, &validationErr) {
			t.Errorf("Expected ValidationError for amount %s, got %v", amount, err)
		}
	}
}

func TestCredit_UnknownAccount(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	_, err := service.Credit(context.Background(), store.CreditParams{AccountId: "ghost", Amount: decimal.NewFromInt(10)})
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestDebit_InsufficientFunds(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	createTestAccount(t, service, "acct1", "1")

	_, err := service.Debit(ctx, store.DebitParams{AccountId: "acct1", Amount: decimal.NewFromInt(2)})
	var fundsErr *models.InsufficientFundsError
	if !errors.As(err, &fundsErr) {
		t.Fatalf("Expected InsufficientFundsError, got %v", err)
	}
	if !fundsErr.Required.Equal(decimal.NewFromInt(2)) || !fundsErr.Available.Equal(decimal.NewFromInt(1)) {
		t.Errorf("Expected required 2 available 1, got %s/%s", fundsErr.Required, fundsErr.Available)
	}

	balance, _ := service.GetBalance(ctx, "acct1")
	if !balance.Balance.Equal(decimal.NewFromInt(1)) {
		t.Errorf("Expected balance unchanged at 1, got %s", balance.Balance.String())
	}
	count, _ := service.CountEntries(ctx, "acct1")
	if count != 0 {
		t.Errorf("Expected no entries after rejected debit, got %d", count)
	}
}

func TestDebit_UpdatesContentAndWatchHistory(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	createTestAccount(t, service, "acct1", "50")
	if err := service.UpsertContent(ctx, models.ContentItem{Id: "vid1", Title: "Video", Price: decimal.NewFromInt(2), Active: true}); err != nil {
		t.Fatalf("UpsertContent failed: %v", err)
	}

	entry, err := service.Debit(ctx, store.DebitParams{
		AccountId: "acct1",
		Amount:    decimal.NewFromInt(2),
		Meta:      models.PurchaseMeta{ContentId: "vid1"},
	})
	if err != nil {
		t.Fatalf("Debit failed: %v", err)
	}
	if !entry.Amount.Equal(decimal.NewFromInt(-2)) {
		t.Errorf("Expected amount -2, got %s", entry.Amount.String())
	}
	if !entry.BalanceAfter.Equal(decimal.NewFromInt(48)) {
		t.Errorf("Expected balance_after 48, got %s", entry.BalanceAfter.String())
	}

	item, err := service.GetContent(ctx, "vid1")
	if err != nil {
		t.Fatalf("GetContent failed: %v", err)
	}
	if item.ViewCount != 1 {
		t.Errorf("Expected view count 1, got %d", item.ViewCount)
	}
	if !item.TotalEarnings.Equal(decimal.NewFromInt(2)) {
		t.Errorf("Expected earnings 2, got %s", item.TotalEarnings.String())
	}

	history, err := service.GetWatchHistory(ctx, "acct1", 10)
	if err != nil {
		t.Fatalf("GetWatchHistory failed: %v", err)
	}
	if len(history) != 1 || history[0].EntryId != entry.Id {
		t.Errorf("Expected one watch record for entry %s, got %+v", entry.Id, history)
	}
}

func TestDebit_ConcurrentNeverOverdraws(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	createTestAccount(t, service, "acct1", "20")

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.Debit(ctx, store.DebitParams{AccountId: "acct1", Amount: decimal.NewFromInt(1)})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 20 {
		t.Errorf("Expected exactly 20 successful debits, got %d", succeeded)
	}
	balance, _ := service.GetBalance(ctx, "acct1")
	if !balance.Balance.IsZero() {
		t.Errorf("Expected balance 0, got %s", balance.Balance.String())
	}
	if err := service.ReconcileBalance(ctx, "acct1"); err != nil {
		t.Errorf("Reconcile failed: %v", err)
	}
}

func TestPendingRecharge_Lifecycle(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	createTestAccount(t, service, "acct1", "50")

	pending, err := service.CreatePendingRecharge(ctx, store.PendingRechargeParams{
		AccountId:     "acct1",
		Amount:        decimal.NewFromInt(100),
		CorrelationId: "rcpt_1",
	})
	if err != nil {
		t.Fatalf("CreatePendingRecharge failed: %v", err)
	}
	if err := service.AttachProviderOrder(ctx, pending.Id, "order_1"); err != nil {
		t.Fatalf("AttachProviderOrder failed: %v", err)
	}

	balance, _ := service.GetBalance(ctx, "acct1")
	if !balance.Balance.Equal(decimal.NewFromInt(50)) {
		t.Errorf("Pending recharge must not move balance, got %s", balance.Balance.String())
	}

	// wrong amount is refused and leaves the entry pending
	_, err = service.Credit(ctx, store.CreditParams{AccountId: "acct1", Amount: decimal.NewFromInt(99), CorrelationId: "rcpt_1"})
	var mismatch *models.AmountMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("Expected AmountMismatchError, got %v", err)
	}

	completed, err := service.Credit(ctx, store.CreditParams{
		AccountId:     "acct1",
		Amount:        decimal.NewFromInt(100),
		CorrelationId: "rcpt_1",
		Meta:          models.RechargeMeta{PaymentId: "pay_1", Signature: "sig"},
	})
	if err != nil {
		t.Fatalf("Credit of pending recharge failed: %v", err)
	}
	if completed.Id != pending.Id {
		t.Errorf("Expected pending entry %s to be completed in place, got %s", pending.Id, completed.Id)
	}
	meta, _ := completed.Recharge()
	if meta.OrderId != "order_1" || meta.PaymentId != "pay_1" {
		t.Errorf("Expected order_1/pay_1, got %+v", meta)
	}

	balance, _ = service.GetBalance(ctx, "acct1")
	if !balance.Balance.Equal(decimal.NewFromInt(150)) {
		t.Errorf("Expected balance 150, got %s", balance.Balance.String())
	}

	// failing a completed recharge changes nothing
	_, err = service.FailPendingRecharge(ctx, store.FailRechargeParams{EntryId: pending.Id})
	if !errors.Is(err, models.ErrEntryFinalized) {
		t.Errorf("Expected ErrEntryFinalized, got %v", err)
	}
	balance, _ = service.GetBalance(ctx, "acct1")
	if !balance.Balance.Equal(decimal.NewFromInt(150)) {
		t.Errorf("Expected balance still 150, got %s", balance.Balance.String())
	}
}

func TestPendingRecharge_FailedCannotComplete(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	createTestAccount(t, service, "acct1", "0")

	pending, err := service.CreatePendingRecharge(ctx, store.PendingRechargeParams{
		AccountId: "acct1", Amount: decimal.NewFromInt(100), CorrelationId: "rcpt_2",
	})
	if err != nil {
		t.Fatalf("CreatePendingRecharge failed: %v", err)
	}

	failedAt := time.Date(2025, 3, 2, 9, 30, 0, 0, time.UTC)
	failed, err := service.FailPendingRecharge(ctx, store.FailRechargeParams{
		EntryId:   pending.Id,
		PaymentId: "pay_x",
		At:        failedAt,
	})
	if err != nil {
		t.Fatalf("FailPendingRecharge failed: %v", err)
	}
	if failed.Status != models.EntryStatusFailed {
		t.Errorf("Expected failed, got %s", failed.Status)
	}
	if failed.CompletedAt == nil || !failed.CompletedAt.Equal(failedAt) {
		t.Errorf("Expected completed_at %s, got %v", failedAt, failed.CompletedAt)
	}

	stored, err := service.GetEntry(ctx, pending.Id)
	if err != nil {
		t.Fatalf("GetEntry failed: %v", err)
	}
	if stored.CompletedAt == nil || !stored.CompletedAt.Equal(failedAt) {
		t.Errorf("Expected stored completed_at %s, got %v", failedAt, stored.CompletedAt)
	}
	if meta, _ := stored.Recharge(); meta.PaymentId != "pay_x" {
		t.Errorf("Expected payment pay_x, got %q", meta.PaymentId)
	}

	_, err = service.Credit(ctx, store.CreditParams{AccountId: "acct1", Amount: decimal.NewFromInt(100), CorrelationId: "rcpt_2"})
	if !errors.Is(err, models.ErrEntryFinalized) {
		t.Errorf("Expected ErrEntryFinalized, got %v", err)
	}
}

func TestAttachProviderOrder_Unique(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	createTestAccount(t, service, "acct1", "0")

	a, _ := service.CreatePendingRecharge(ctx, store.PendingRechargeParams{AccountId: "acct1", Amount: decimal.NewFromInt(60), CorrelationId: "rcpt_a"})
	b, _ := service.CreatePendingRecharge(ctx, store.PendingRechargeParams{AccountId: "acct1", Amount: decimal.NewFromInt(60), CorrelationId: "rcpt_b"})

	if err := service.AttachProviderOrder(ctx, a.Id, "order_x"); err != nil {
		t.Fatalf("AttachProviderOrder failed: %v", err)
	}
	if err := service.AttachProviderOrder(ctx, b.Id, "order_x"); !errors.Is(err, models.ErrDuplicateEntry) {
		t.Errorf("Expected ErrDuplicateEntry, got %v", err)
	}
}

func TestRefundPurchase(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	createTestAccount(t, service, "acct1", "10")
	_ = service.UpsertContent(ctx, models.ContentItem{Id: "vid1", Title: "Video", Price: decimal.NewFromInt(3), Active: true})

	purchase, err := service.Debit(ctx, store.DebitParams{AccountId: "acct1", Amount: decimal.NewFromInt(3), Meta: models.PurchaseMeta{ContentId: "vid1"}})
	if err != nil {
		t.Fatalf("Debit failed: %v", err)
	}

	refund, err := service.RefundPurchase(ctx, store.RefundParams{AccountId: "acct1", OriginalEntryId: purchase.Id, Reason: "playback error"})
	if err != nil {
		t.Fatalf("RefundPurchase failed: %v", err)
	}
	if !refund.Amount.Equal(decimal.NewFromInt(3)) {
		t.Errorf("Expected refund of 3, got %s", refund.Amount.String())
	}

	again, err := service.RefundPurchase(ctx, store.RefundParams{AccountId: "acct1", OriginalEntryId: purchase.Id})
	if err != nil {
		t.Fatalf("Second RefundPurchase failed: %v", err)
	}
	if again.Id != refund.Id || !again.Replayed {
		t.Errorf("Expected replay of refund %s, got %s (replayed=%v)", refund.Id, again.Id, again.Replayed)
	}

	original, _ := service.GetEntry(ctx, purchase.Id)
	if original.Status != models.EntryStatusRefunded {
		t.Errorf("Expected purchase status refunded, got %s", original.Status)
	}

	balance, _ := service.GetBalance(ctx, "acct1")
	if !balance.Balance.Equal(decimal.NewFromInt(10)) {
		t.Errorf("Expected balance restored to 10, got %s", balance.Balance.String())
	}
	item, _ := service.GetContent(ctx, "vid1")
	if !item.TotalEarnings.IsZero() {
		t.Errorf("Expected earnings reversed to 0, got %s", item.TotalEarnings.String())
	}
	if err := service.ReconcileBalance(ctx, "acct1"); err != nil {
		t.Errorf("Reconcile failed: %v", err)
	}
}

func TestRefundPurchase_OtherAccount(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	createTestAccount(t, service, "acct1", "10")
	createTestAccount(t, service, "acct2", "10")

	purchase, _ := service.Debit(ctx, store.DebitParams{AccountId: "acct1", Amount: decimal.NewFromInt(3)})
	_, err := service.RefundPurchase(ctx, store.RefundParams{AccountId: "acct2", OriginalEntryId: purchase.Id})
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestFindRecentPurchase_Window(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	createTestAccount(t, service, "acct1", "10")
	if err := service.UpsertContent(ctx, models.ContentItem{Id: "vid1", Title: "Video", Price: decimal.NewFromInt(2), Active: true}); err != nil {
		t.Fatalf("UpsertContent failed: %v", err)
	}

	boughtAt := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	purchase, err := service.Debit(ctx, store.DebitParams{
		AccountId: "acct1", Amount: decimal.NewFromInt(2), Meta: models.PurchaseMeta{ContentId: "vid1"}, At: boughtAt,
	})
	if err != nil {
		t.Fatalf("Debit failed: %v", err)
	}

	found, err := service.FindRecentPurchase(ctx, "acct1", "vid1", boughtAt.Add(-47*time.Hour))
	if err != nil {
		t.Fatalf("FindRecentPurchase failed: %v", err)
	}
	if found == nil || found.Id != purchase.Id {
		t.Errorf("Expected purchase %s inside window, got %+v", purchase.Id, found)
	}

	found, err = service.FindRecentPurchase(ctx, "acct1", "vid1", boughtAt.Add(time.Second))
	if err != nil {
		t.Fatalf("FindRecentPurchase failed: %v", err)
	}
	if found != nil {
		t.Errorf("Expected no purchase after the window start, got %s", found.Id)
	}

	recent, err := service.ListRecentPurchases(ctx, "acct1", boughtAt.Add(-time.Hour))
	if err != nil {
		t.Fatalf("ListRecentPurchases failed: %v", err)
	}
	if len(recent) != 1 {
		t.Errorf("Expected 1 recent purchase, got %d", len(recent))
	}
}

func TestDebit_ReuseSinceReturnsActivePurchase(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	createTestAccount(t, service, "acct1", "10")
	if err := service.UpsertContent(ctx, models.ContentItem{Id: "vid1", Title: "Video", Price: decimal.NewFromInt(2), Active: true}); err != nil {
		t.Fatalf("UpsertContent failed: %v", err)
	}

	boughtAt := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	first, err := service.Debit(ctx, store.DebitParams{
		AccountId:  "acct1",
		Amount:     decimal.NewFromInt(2),
		Meta:       models.PurchaseMeta{ContentId: "vid1"},
		At:         boughtAt,
		ReuseSince: boughtAt.Add(-48 * time.Hour),
	})
	if err != nil {
		t.Fatalf("Debit failed: %v", err)
	}
	if first.Replayed {
		t.Fatal("First purchase must not be a replay")
	}

	// inside the window the existing purchase comes back and nothing is charged
	again, err := service.Debit(ctx, store.DebitParams{
		AccountId:  "acct1",
		Amount:     decimal.NewFromInt(2),
		Meta:       models.PurchaseMeta{ContentId: "vid1"},
		At:         boughtAt.Add(time.Hour),
		ReuseSince: boughtAt.Add(time.Hour - 48*time.Hour),
	})
	if err != nil {
		t.Fatalf("Debit failed: %v", err)
	}
	if !again.Replayed || again.Id != first.Id {
		t.Errorf("Expected replay of %s, got %s (replayed=%v)", first.Id, again.Id, again.Replayed)
	}

	balance, _ := service.GetBalance(ctx, "acct1")
	if !balance.Balance.Equal(decimal.NewFromInt(8)) {
		t.Errorf("Expected balance 8, got %s", balance.Balance.String())
	}

	// once the window has passed the content is charged again
	later, err := service.Debit(ctx, store.DebitParams{
		AccountId:  "acct1",
		Amount:     decimal.NewFromInt(2),
		Meta:       models.PurchaseMeta{ContentId: "vid1"},
		At:         boughtAt.Add(49 * time.Hour),
		ReuseSince: boughtAt.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("Debit failed: %v", err)
	}
	if later.Replayed || later.Id == first.Id {
		t.Errorf("Expected a new purchase after the window, got %s (replayed=%v)", later.Id, later.Replayed)
	}

	item, err := service.GetContent(ctx, "vid1")
	if err != nil {
		t.Fatalf("GetContent failed: %v", err)
	}
	if item.ViewCount != 2 {
		t.Errorf("Expected view count 2, got %d", item.ViewCount)
	}
}

func TestListPendingRecharges_OlderThan(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	createTestAccount(t, service, "acct1", "0")

	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	_, _ = service.CreatePendingRecharge(ctx, store.PendingRechargeParams{AccountId: "acct1", Amount: decimal.NewFromInt(50), CorrelationId: "old", At: base})
	_, _ = service.CreatePendingRecharge(ctx, store.PendingRechargeParams{AccountId: "acct1", Amount: decimal.NewFromInt(50), CorrelationId: "new", At: base.Add(time.Hour)})

	pending, err := service.ListPendingRecharges(ctx, base.Add(30*time.Minute), 10)
	if err != nil {
		t.Fatalf("ListPendingRecharges failed: %v", err)
	}
	if len(pending) != 1 || pending[0].CorrelationId != "old" {
		t.Errorf("Expected only the old pending recharge, got %+v", pending)
	}
}
