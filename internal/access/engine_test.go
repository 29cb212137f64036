package access

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamprime-wallet-go/internal/database"
	"streamprime-wallet-go/internal/models"
	"streamprime-wallet-go/internal/wallet"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	engine  *Engine
	ledger  *wallet.Ledger
	db      *database.Service
	clock   *testClock
	account *models.Account
}

func newFixture(t *testing.T, welcomeBonus string) *fixture {
	t.Helper()
	ctx := context.Background()

	db, err := database.NewService(ctx, models.DatabaseConfig{
		Path:         ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		PingTimeout:  time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	clock := &testClock{now: time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)}
	ledger := wallet.NewLedger(db,
		wallet.WithWelcomeBonus(decimal.RequireFromString(welcomeBonus)),
		wallet.WithClock(clock.Now))

	require.NoError(t, db.UpsertContent(ctx, models.ContentItem{
		Id: "video-1", Title: "Monsoon Diaries", Price: decimal.NewFromInt(2), Active: true,
	}))
	require.NoError(t, db.UpsertContent(ctx, models.ContentItem{
		Id: "video-2", Title: "Night Train", Price: decimal.NewFromInt(5), Active: true,
	}))
	require.NoError(t, db.UpsertContent(ctx, models.ContentItem{
		Id: "video-retired", Title: "Retired", Price: decimal.NewFromInt(1), Active: false,
	}))

	account, err := ledger.OpenAccount(ctx, "9000000001", "Ravi", "")
	require.NoError(t, err)

	return &fixture{
		engine:  NewEngine(db, ledger, DefaultReuseWindow),
		ledger:  ledger,
		db:      db,
		clock:   clock,
		account: account,
	}
}

func (f *fixture) balance(t *testing.T) decimal.Decimal {
	t.Helper()
	balance, err := f.ledger.Balance(context.Background(), f.account.Id)
	require.NoError(t, err)
	return balance
}

func TestPurchaseOrReuse_PaymentRequired(t *testing.T) {
	f := newFixture(t, "1")

	_, err := f.engine.PurchaseOrReuse(context.Background(), f.account.Id, "video-1")

	var required *models.PaymentRequiredError
	require.ErrorAs(t, err, &required)
	assert.Equal(t, "video-1", required.ContentId)
	assert.True(t, required.Required.Equal(decimal.NewFromInt(2)))
	assert.True(t, required.Available.Equal(decimal.NewFromInt(1)))
	assert.True(t, f.balance(t).Equal(decimal.NewFromInt(1)))
}

func TestPurchaseOrReuse_ReuseWithinWindow(t *testing.T) {
	f := newFixture(t, "50")
	ctx := context.Background()

	first, err := f.engine.PurchaseOrReuse(ctx, f.account.Id, "video-1")
	require.NoError(t, err)
	assert.True(t, first.Charged)
	assert.True(t, first.AmountPaid.Equal(decimal.NewFromInt(2)))
	assert.True(t, first.ExpiresAt.Equal(f.clock.Now().Add(48*time.Hour)))

	f.clock.Advance(time.Hour)
	second, err := f.engine.PurchaseOrReuse(ctx, f.account.Id, "video-1")
	require.NoError(t, err)
	assert.False(t, second.Charged)
	assert.True(t, second.AmountPaid.IsZero())
	assert.Equal(t, first.EntryId, second.EntryId)
	assert.True(t, second.ExpiresAt.Equal(first.ExpiresAt))
	assert.True(t, f.balance(t).Equal(decimal.NewFromInt(48)))

	f.clock.Advance(48 * time.Hour)
	third, err := f.engine.PurchaseOrReuse(ctx, f.account.Id, "video-1")
	require.NoError(t, err)
	assert.True(t, third.Charged)
	assert.NotEqual(t, first.EntryId, third.EntryId)
	assert.True(t, f.balance(t).Equal(decimal.NewFromInt(46)))

	item, err := f.db.GetContent(ctx, "video-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), item.ViewCount)
	assert.True(t, item.TotalEarnings.Equal(decimal.NewFromInt(4)))
}

func TestPurchaseOrReuse_ConcurrentChargesOnce(t *testing.T) {
	f := newFixture(t, "50")
	ctx := context.Background()

	const callers = 20
	grants := make([]*models.AccessGrant, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			grant, err := f.engine.PurchaseOrReuse(ctx, f.account.Id, "video-2")
			if assert.NoError(t, err) {
				grants[i] = grant
			}
		}(i)
	}
	wg.Wait()

	charged := 0
	for _, grant := range grants {
		require.NotNil(t, grant)
		if grant.Charged {
			charged++
		}
		assert.True(t, grant.ExpiresAt.Equal(grants[0].ExpiresAt))
		assert.Equal(t, grants[0].EntryId, grant.EntryId)
	}
	assert.Equal(t, 1, charged)
	assert.True(t, f.balance(t).Equal(decimal.NewFromInt(45)))

	item, err := f.db.GetContent(ctx, "video-2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), item.ViewCount)
	require.NoError(t, f.ledger.Reconcile(ctx, f.account.Id))
}

func TestPurchaseOrReuse_SharedDatabaseChargesOnce(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "shared.db")
	clock := &testClock{now: time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)}

	// two independent stacks over one database file, as two server processes would run
	open := func() (*database.Service, *Engine) {
		db, err := database.NewService(ctx, models.DatabaseConfig{
			Path:         path,
			MaxOpenConns: 4,
			MaxIdleConns: 4,
			PingTimeout:  time.Second,
			BusyTimeout:  10 * time.Second,
		})
		require.NoError(t, err)
		t.Cleanup(db.Close)
		ledger := wallet.NewLedger(db,
			wallet.WithWelcomeBonus(decimal.NewFromInt(50)),
			wallet.WithClock(clock.Now))
		return db, NewEngine(db, ledger, DefaultReuseWindow)
	}
	dbA, engineA := open()
	_, engineB := open()

	require.NoError(t, dbA.UpsertContent(ctx, models.ContentItem{
		Id: "video-1", Title: "Monsoon Diaries", Price: decimal.NewFromInt(2), Active: true,
	}))
	account, err := engineA.ledger.OpenAccount(ctx, "9000000002", "Meera", "")
	require.NoError(t, err)

	const callers = 20
	grants := make([]*models.AccessGrant, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		engine := engineA
		if i%2 == 1 {
			engine = engineB
		}
		wg.Add(1)
		go func(i int, engine *Engine) {
			defer wg.Done()
			grant, err := engine.PurchaseOrReuse(ctx, account.Id, "video-1")
			if assert.NoError(t, err) {
				grants[i] = grant
			}
		}(i, engine)
	}
	wg.Wait()

	charged := 0
	for _, grant := range grants {
		require.NotNil(t, grant)
		if grant.Charged {
			charged++
		}
		assert.Equal(t, grants[0].EntryId, grant.EntryId)
		assert.True(t, grant.ExpiresAt.Equal(grants[0].ExpiresAt))
	}
	assert.Equal(t, 1, charged)

	stats, err := engineB.ledger.Stats(ctx, account.Id)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.PurchaseCount)
	assert.True(t, stats.CurrentBalance.Equal(decimal.NewFromInt(48)))
	require.NoError(t, engineB.ledger.Reconcile(ctx, account.Id))
}

func TestPurchaseOrReuse_UnknownOrInactiveContent(t *testing.T) {
	f := newFixture(t, "50")
	ctx := context.Background()

	_, err := f.engine.PurchaseOrReuse(ctx, f.account.Id, "video-missing")
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = f.engine.PurchaseOrReuse(ctx, f.account.Id, "video-retired")
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = f.engine.PurchaseOrReuse(ctx, "", "video-1")
	var verr *models.ValidationError
	assert.ErrorAs(t, err, &verr)

	assert.True(t, f.balance(t).Equal(decimal.NewFromInt(50)))
}

func TestActiveGrants(t *testing.T) {
	f := newFixture(t, "50")
	ctx := context.Background()

	_, err := f.engine.PurchaseOrReuse(ctx, f.account.Id, "video-1")
	require.NoError(t, err)
	f.clock.Advance(47 * time.Hour)
	_, err = f.engine.PurchaseOrReuse(ctx, f.account.Id, "video-2")
	require.NoError(t, err)

	grants, err := f.engine.ActiveGrants(ctx, f.account.Id)
	require.NoError(t, err)
	require.Len(t, grants, 2)
	assert.Equal(t, "video-2", grants[0].ContentId)
	assert.Equal(t, "video-1", grants[1].ContentId)

	f.clock.Advance(2 * time.Hour)
	grants, err = f.engine.ActiveGrants(ctx, f.account.Id)
	require.NoError(t, err)
	require.Len(t, grants, 1)
	assert.Equal(t, "video-2", grants[0].ContentId)
	assert.True(t, grants[0].AmountPaid.Equal(decimal.NewFromInt(5)))
}

func TestRefundPurchase_RevokesGrant(t *testing.T) {
	f := newFixture(t, "50")
	ctx := context.Background()

	grant, err := f.engine.PurchaseOrReuse(ctx, f.account.Id, "video-2")
	require.NoError(t, err)

	refund, err := f.engine.RefundPurchase(ctx, f.account.Id, grant.EntryId, "playback failed")
	require.NoError(t, err)
	assert.Equal(t, models.EntryKindRefund, refund.Kind)
	assert.True(t, f.balance(t).Equal(decimal.NewFromInt(50)))

	item, err := f.db.GetContent(ctx, "video-2")
	require.NoError(t, err)
	assert.True(t, item.TotalEarnings.IsZero())

	grants, err := f.engine.ActiveGrants(ctx, f.account.Id)
	require.NoError(t, err)
	assert.Empty(t, grants)

	again, err := f.engine.PurchaseOrReuse(ctx, f.account.Id, "video-2")
	require.NoError(t, err)
	assert.True(t, again.Charged)

	_, err = f.engine.RefundPurchase(ctx, "someone-else", again.EntryId, "")
	assert.ErrorIs(t, err, models.ErrNotFound)
}
