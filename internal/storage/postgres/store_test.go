package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	interfaces "github.com/sheikh-saqib/banking-ledger/internal/interfaces"
	"github.com/sheikh-saqib/banking-ledger/internal/models"
	"github.com/shopspring/decimal"
)

// openTestStore connects to LEDGER_TEST_POSTGRES_DSN; the tests are skipped without it.
func openTestStore(t *testing.T) *PostgresLedgerStore {
	t.Helper()
	dsn := os.Getenv("LEDGER_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("LEDGER_TEST_POSTGRES_DSN not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	store := NewPostgresLedgerStore(db)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestPostgresStoreRollsBackFailedUnit(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	acc := models.Account{
		ID:            uuid.NewString(),
		UserID:        "pg-user",
		AccountNumber: uuid.NewString()[:12],
		Balance:       decimal.NewFromInt(100),
		AccountType:   "checking",
		CreatedAt:     time.Now().UTC(),
	}
	if err := store.WithinTx(ctx, func(tx interfaces.LedgerTx) error {
		return tx.SaveAccount(ctx, acc)
	}); err != nil {
		t.Fatalf("save account: %v", err)
	}

	boom := errors.New("boom")
	err := store.WithinTx(ctx, func(tx interfaces.LedgerTx) error {
		if err := tx.UpdateBalance(ctx, acc.ID, decimal.NewFromInt(1)); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	got, err := store.GetAccount(ctx, acc.ID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if !got.Balance.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected balance 100, got %s", got.Balance)
	}
}

func TestPostgresStoreTransactionRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	from := uuid.NewString()
	rec := models.Transaction{
		ID:             uuid.NewString(),
		IdempotencyKey: uuid.NewString(),
		FromAccountID:  &from,
		Recipient:      models.Recipient{AccountNumber: "EXT-1", BankName: "Region Financial"},
		Amount:         decimal.RequireFromString("12.34"),
		Description:    "Transfer",
		Category:       models.CategoryTransfer,
		Status:         models.StatusPending,
		IsVisible:      models.Bool(true),
		CreatedAt:      time.Now().UTC().Truncate(time.Microsecond),
	}
	if err := store.WithinTx(ctx, func(tx interfaces.LedgerTx) error {
		return tx.SaveTransaction(ctx, rec)
	}); err != nil {
		t.Fatalf("save transaction: %v", err)
	}

	got, err := store.GetTransaction(ctx, rec.ID)
	if err != nil {
		t.Fatalf("get transaction: %v", err)
	}
	if got.FromAccountID == nil || *got.FromAccountID != from || got.ToAccountID != nil {
		t.Fatalf("unexpected account links: %+v", got)
	}
	if got.IsPositive != nil {
		t.Fatalf("expected unset sign flag, got %v", *got.IsPositive)
	}
	if !got.Amount.Equal(rec.Amount) || got.Status != models.StatusPending {
		t.Fatalf("unexpected record: %+v", got)
	}

	err = store.WithinTx(ctx, func(tx interfaces.LedgerTx) error {
		dup := rec
		dup.ID = uuid.NewString()
		return tx.SaveTransaction(ctx, dup)
	})
	if !errors.Is(err, interfaces.ErrConflict) {
		t.Fatalf("expected ErrConflict for reused idempotency key, got %v", err)
	}
}
