package database

import (
	"context"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"streamprime-wallet-go/internal/models"
	"streamprime-wallet-go/internal/store"
)

func TestCreateAccount_DuplicatePhone(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	if _, err := service.CreateAccount(ctx, store.CreateAccountParams{Phone: "9876543210"}); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	_, err := service.CreateAccount(ctx, store.CreateAccountParams{Phone: "9876543210"})
	if !errors.Is(err, models.ErrDuplicateEntry) {
		t.Errorf("Expected ErrDuplicateEntry, got %v", err)
	}
}

func TestCreateAccount_LookupAndLogin(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	created, err := service.CreateAccount(ctx, store.CreateAccountParams{Phone: "9876543210", Name: "Asha", InitialBalance: decimal.NewFromInt(50)})
	if err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	if created.Id == "" {
		t.Fatal("Expected generated account id")
	}

	byPhone, err := service.GetAccountByPhone(ctx, "9876543210")
	if err != nil {
		t.Fatalf("GetAccountByPhone failed: %v", err)
	}
	if byPhone.Id != created.Id || byPhone.Name != "Asha" {
		t.Errorf("Expected %s/Asha, got %s/%s", created.Id, byPhone.Id, byPhone.Name)
	}
	if byPhone.LastLogin != nil {
		t.Error("Expected no last login yet")
	}

	loginAt := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	if err := service.TouchLastLogin(ctx, created.Id, loginAt); err != nil {
		t.Fatalf("TouchLastLogin failed: %v", err)
	}
	byId, err := service.GetAccountById(ctx, created.Id)
	if err != nil {
		t.Fatalf("GetAccountById failed: %v", err)
	}
	if byId.LastLogin == nil || !byId.LastLogin.Equal(loginAt) {
		t.Errorf("Expected last login %v, got %v", loginAt, byId.LastLogin)
	}

	accounts, err := service.GetAccounts(ctx)
	if err != nil {
		t.Fatalf("GetAccounts failed: %v", err)
	}
	if len(accounts) != 1 {
		t.Errorf("Expected 1 account, got %d", len(accounts))
	}

	if _, err := service.GetAccountByPhone(ctx, "0000000000"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestConsumeChallenge_Outcomes(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	issued := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	challenge := models.Challenge{AccountId: "acct1", CodeHash: "hash-a", IssuedAt: issued, ExpiresAt: issued.Add(10 * time.Minute)}

	if err := service.ConsumeChallenge(ctx, "acct1", "hash-a", issued); !errors.Is(err, models.ErrNoChallenge) {
		t.Errorf("Expected ErrNoChallenge, got %v", err)
	}

	if err := service.PutChallenge(ctx, challenge); err != nil {
		t.Fatalf("PutChallenge failed: %v", err)
	}
	if err := service.ConsumeChallenge(ctx, "acct1", "hash-b", issued.Add(time.Minute)); !errors.Is(err, models.ErrInvalidCode) {
		t.Errorf("Expected ErrInvalidCode, got %v", err)
	}
	// mismatch keeps the challenge
	if err := service.ConsumeChallenge(ctx, "acct1", "hash-a", issued.Add(2*time.Minute)); err != nil {
		t.Errorf("Expected success, got %v", err)
	}
	// success clears it
	if err := service.ConsumeChallenge(ctx, "acct1", "hash-a", issued.Add(3*time.Minute)); !errors.Is(err, models.ErrNoChallenge) {
		t.Errorf("Expected ErrNoChallenge after consumption, got %v", err)
	}

	if err := service.PutChallenge(ctx, challenge); err != nil {
		t.Fatalf("PutChallenge failed: %v", err)
	}
	if err := service.ConsumeChallenge(ctx, "acct1", "hash-a", issued.Add(11*time.Minute)); !errors.Is(err, models.ErrChallengeExpired) {
		t.Errorf("Expected ErrChallengeExpired, got %v", err)
	}
	if err := service.ConsumeChallenge(ctx, "acct1", "hash-a", issued.Add(11*time.Minute)); !errors.Is(err, models.ErrNoChallenge) {
		t.Errorf("Expected expired challenge to be cleared, got %v", err)
	}
}

func TestPutChallenge_ReplacesPrevious(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	issued := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	_ = service.PutChallenge(ctx, models.Challenge{AccountId: "acct1", CodeHash: "old", IssuedAt: issued, ExpiresAt: issued.Add(10 * time.Minute)})
	_ = service.PutChallenge(ctx, models.Challenge{AccountId: "acct1", CodeHash: "new", IssuedAt: issued, ExpiresAt: issued.Add(10 * time.Minute)})

	if err := service.ConsumeChallenge(ctx, "acct1", "old", issued); !errors.Is(err, models.ErrInvalidCode) {
		t.Errorf("Expected old code to be invalid, got %v", err)
	}
	if err := service.ConsumeChallenge(ctx, "acct1", "new", issued); err != nil {
		t.Errorf("Expected new code to verify, got %v", err)
	}
}

func TestDiscardChallenge_OnlyMatchingHash(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	issued := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	if err := service.PutChallenge(ctx, models.Challenge{AccountId: "acct1", CodeHash: "current", IssuedAt: issued, ExpiresAt: issued.Add(10 * time.Minute)}); err != nil {
		t.Fatalf("PutChallenge failed: %v", err)
	}

	// a stale hash leaves the current challenge alone
	if err := service.DiscardChallenge(ctx, "acct1", "stale"); err != nil {
		t.Fatalf("DiscardChallenge failed: %v", err)
	}
	if err := service.ConsumeChallenge(ctx, "acct1", "stale", issued); !errors.Is(err, models.ErrInvalidCode) {
		t.Errorf("Expected challenge to survive, got %v", err)
	}

	if err := service.DiscardChallenge(ctx, "acct1", "current"); err != nil {
		t.Fatalf("DiscardChallenge failed: %v", err)
	}
	if err := service.ConsumeChallenge(ctx, "acct1", "current", issued); !errors.Is(err, models.ErrNoChallenge) {
		t.Errorf("Expected ErrNoChallenge after discard, got %v", err)
	}

	if err := service.DiscardChallenge(ctx, "acct1", "current"); err != nil {
		t.Errorf("Discarding a missing challenge should succeed, got %v", err)
	}
}
