package projection

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sheikh-saqib/banking-ledger/internal/ledger"
	"github.com/sheikh-saqib/banking-ledger/internal/models"
	"github.com/sheikh-saqib/banking-ledger/internal/storage/memory"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

var admin = models.Session{UserID: "admin-1", IsAdmin: true}

// tickingClock advances a minute on every call so records sort deterministically.
func tickingClock() func() time.Time {
	t := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Minute)
		return t
	}
}

type fixture struct {
	ledger *ledger.Ledger
	proj   *Projector
	a, b   models.Account
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewMemoryLedgerStore()
	l := ledger.NewLedger(store, ledger.WithClock(tickingClock()))

	a, err := l.CreateAccount(ctx, admin, models.NewAccount{UserID: "alice", AccountNumber: "000123454487", OpeningBalance: decimal.NewFromInt(1000)})
	if err != nil {
		t.Fatalf("create a: %v", err)
	}
	b, err := l.CreateAccount(ctx, admin, models.NewAccount{UserID: "bob", AccountNumber: "000987650001"})
	if err != nil {
		t.Fatalf("create b: %v", err)
	}
	return fixture{ledger: l, proj: NewProjector(store), a: a, b: b}
}

func TestListByAccount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	mustDo := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	_, err := f.ledger.Deposit(ctx, admin, ledger.MovementRequest{AccountID: f.a.ID, Amount: decimal.NewFromInt(50), Description: "Payroll"})
	mustDo(err)
	_, err = f.ledger.Transfer(ctx, admin, ledger.TransferRequest{FromAccountID: f.a.ID, ToAccountID: f.b.ID, Amount: decimal.NewFromInt(20)})
	mustDo(err)
	_, err = f.ledger.AdminDeductBalance(ctx, admin, f.a.ID, decimal.NewFromInt(5), "", true)
	mustDo(err)
	// An external-style transfer into a's account number, from b.
	_, err = f.ledger.Transfer(ctx, admin, ledger.TransferRequest{FromAccountID: f.b.ID, ToAccountID: f.a.AccountNumber, Amount: decimal.NewFromInt(3)})
	mustDo(err)

	records, err := f.proj.ListByAccount(ctx, f.a.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 visible records, got %d", len(records))
	}
	for i := 1; i < len(records); i++ {
		if records[i].CreatedAt.After(records[i-1].CreatedAt) {
			t.Fatalf("records not newest first: %v then %v", records[i-1].CreatedAt, records[i].CreatedAt)
		}
	}
	if records[0].Recipient.AccountNumber != f.a.AccountNumber {
		t.Fatalf("expected the account-number transfer first, got %+v", records[0])
	}
	for _, rec := range records {
		if !rec.Visible() {
			t.Fatalf("hidden record leaked: %+v", rec)
		}
	}

	views, err := f.proj.Entries(ctx, f.a.ID)
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	want := []Direction{Credit, Debit, Credit}
	for i, v := range views {
		if v.Direction != want[i] {
			t.Errorf("view %d: expected %s, got %s", i, want[i], v.Direction)
		}
	}
}

func TestListByAccountEmptyAndUnknown(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	records, err := f.proj.ListByAccount(ctx, f.b.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if records == nil || len(records) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", records)
	}

	if _, err := f.proj.ListByAccount(ctx, uuid.NewString()); !errors.Is(err, ledger.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestTaxRecordAlwaysNegative(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.ledger.AdminAdjustBalanceWithDeductions(ctx, admin, ledger.AdjustmentRequest{
		AccountID:   f.a.ID,
		GrossAmount: decimal.NewFromInt(100),
		Tax:         &ledger.TaxConfig{Enabled: true, Rate: decimal.NewFromInt(10)},
	})
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}

	for i := 0; i < 3; i++ {
		views, err := f.proj.Entries(ctx, f.a.ID)
		if err != nil {
			t.Fatalf("entries: %v", err)
		}
		if len(views) != 2 {
			t.Fatalf("expected 2 rows, got %d", len(views))
		}
		tax := views[0]
		if tax.Positive || tax.DisplayAmount != "-$10.00" || tax.Direction != Debit {
			t.Fatalf("unexpected tax row: %+v", tax)
		}
	}
}

func TestListPending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	first, err := f.ledger.SubmitPendingTransfer(ctx, admin, ledger.TransferRequest{FromAccountID: f.a.ID, ToAccountID: f.b.ID, Amount: decimal.NewFromInt(10)})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	second, err := f.ledger.SubmitPendingTransfer(ctx, admin, ledger.TransferRequest{FromAccountID: f.a.ID, Amount: decimal.NewFromInt(11)})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := f.ledger.Reject(ctx, admin, first.ID); err != nil {
		t.Fatalf("reject: %v", err)
	}

	pending, err := f.proj.ListPending(ctx)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != second.ID {
		t.Fatalf("expected only %s pending, got %+v", second.ID, pending)
	}
}

func TestSummary(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.ledger.Deposit(ctx, admin, ledger.MovementRequest{AccountID: f.a.ID, Amount: decimal.RequireFromString("12.50")}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.ledger.Withdraw(ctx, admin, ledger.MovementRequest{AccountID: f.a.ID, Amount: decimal.RequireFromString("2.25")}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.ledger.SubmitPendingTransfer(ctx, admin, ledger.TransferRequest{FromAccountID: f.a.ID, Amount: decimal.NewFromInt(1)}); err != nil {
		t.Fatal(err)
	}
	// Names a's number as an external recipient; no money reaches a.
	if _, err := f.ledger.Deposit(ctx, admin, ledger.MovementRequest{AccountID: f.b.ID, Amount: decimal.NewFromInt(5)}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.ledger.Transfer(ctx, admin, ledger.TransferRequest{FromAccountID: f.b.ID, ToAccountID: f.a.AccountNumber, Amount: decimal.NewFromInt(5)}); err != nil {
		t.Fatal(err)
	}

	s, err := f.proj.Summary(ctx, f.a.ID)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if s.Count != 4 || s.Pending != 1 {
		t.Fatalf("unexpected counts: %+v", s)
	}
	if !s.Credits.Equal(decimal.RequireFromString("12.50")) || !s.Debits.Equal(decimal.RequireFromString("2.25")) {
		t.Fatalf("unexpected totals: credits=%s debits=%s", s.Credits, s.Debits)
	}
	if !s.Balance.Equal(decimal.RequireFromString("1010.25")) || s.AccountNumber != "•••• 4487" {
		t.Fatalf("unexpected summary: %+v", s)
	}
}

func TestExportStatement(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.ledger.Withdraw(ctx, admin, ledger.MovementRequest{AccountID: f.a.ID, Amount: decimal.NewFromInt(40), Description: "ATM"}); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := f.proj.ExportStatement(ctx, f.a.ID, &buf); err != nil {
		t.Fatalf("export: %v", err)
	}

	book, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer book.Close()

	rows, err := book.GetRows(statementSheet)
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) < 2 || rows[0][0] != "Date" || rows[1][1] != "ATM" {
		t.Fatalf("unexpected sheet contents: %v", rows)
	}
	amount, err := book.GetCellValue(statementSheet, "F2")
	if err != nil || amount != "-40" {
		t.Fatalf("expected -40 in F2, got %q (%v)", amount, err)
	}
}

func TestFormatting(t *testing.T) {
	amounts := map[string]string{
		"0":        "$0.00",
		"5":        "$5.00",
		"1234.56":  "$1,234.56",
		"-20":      "-$20.00",
		"1000000":  "$1,000,000.00",
		"-999.999": "-$1,000.00",
	}
	for in, want := range amounts {
		if got := FormatAmount(decimal.RequireFromString(in)); got != want {
			t.Errorf("FormatAmount(%s) = %q, want %q", in, got, want)
		}
	}

	if got := MaskAccountNumber("000123454487"); got != "•••• 4487" {
		t.Errorf("unexpected mask %q", got)
	}
	if got := MaskAccountNumber("12"); got != "•••• 12" {
		t.Errorf("unexpected short mask %q", got)
	}
	if got := MaskAccountNumber("№№№№12345"); got != "•••• 2345" {
		t.Errorf("unexpected multibyte mask %q", got)
	}
	if got := MaskAccountNumber("ÄÖÜßé"); got != "•••• ÖÜßé" {
		t.Errorf("unexpected multibyte mask %q", got)
	}
	if got := MaskAccountNumber(""); got != "" {
		t.Errorf("expected empty mask, got %q", got)
	}

	at := time.Date(2024, 7, 4, 15, 4, 0, 0, time.UTC)
	if got := FormatDate(at); got != "Jul 4, 2024 3:04 PM" {
		t.Errorf("unexpected date %q", got)
	}
}
