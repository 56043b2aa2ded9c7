package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	interfaces "github.com/sheikh-saqib/banking-ledger/internal/interfaces"
	"github.com/sheikh-saqib/banking-ledger/internal/logger"
	"github.com/sheikh-saqib/banking-ledger/internal/models"
	"github.com/sheikh-saqib/banking-ledger/internal/models/events"
	"github.com/shopspring/decimal"
)

const publishTimeout = 5 * time.Second

// Ledger applies balance mutations and their transaction records as one unit.
// Operations on the same account serialize on a per-account mutex; the store's unit
// of work makes the pair all-or-nothing.
type Ledger struct {
	store     interfaces.LedgerStore
	publisher interfaces.EventPublisher // optional

	muMap map[string]*sync.Mutex // one mutex per account id
	mapMu sync.Mutex             // protects muMap itself

	now                       func() time.Time
	newID                     func() string
	strictTransferDestination bool
}

type Option func(*Ledger)

// WithPublisher publishes domain events after each committed operation.
func WithPublisher(p interfaces.EventPublisher) Option {
	return func(l *Ledger) { l.publisher = p }
}

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(l *Ledger) { l.newID = newID }
}

// WithStrictTransferDestination makes a transfer to an internal account id that does
// not resolve fail with ErrAccountNotFound. By default the credit leg is skipped and
// the debit still completes.
func WithStrictTransferDestination(strict bool) Option {
	return func(l *Ledger) { l.strictTransferDestination = strict }
}

func NewLedger(store interfaces.LedgerStore, opts ...Option) *Ledger {
	l := &Ledger{
		store: store,
		muMap: make(map[string]*sync.Mutex),
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) getAccountLock(accountID string) *sync.Mutex {
	l.mapMu.Lock()
	defer l.mapMu.Unlock()

	if _, exists := l.muMap[accountID]; !exists {
		l.muMap[accountID] = &sync.Mutex{}
	}
	return l.muMap[accountID]
}

// lockAccounts locks every distinct id in sorted order to avoid deadlocks and
// returns the matching unlock.
func (l *Ledger) lockAccounts(ids ...string) func() {
	unique := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	sort.Strings(unique)

	locks := make([]*sync.Mutex, 0, len(unique))
	for _, id := range unique {
		mu := l.getAccountLock(id)
		mu.Lock()
		locks = append(locks, mu)
	}

	return func() {
		for i := len(locks) - 1; i >= 0; i-- {
			locks[i].Unlock()
		}
	}
}

// posting is what a unit of work produced.
type posting struct {
	records  []models.Transaction
	replayed bool // an earlier request with the same idempotency key was returned
}

// post locks the given accounts, runs fn as one store unit of work and publishes
// completion events once it has committed. A store conflict is retried once so a
// request that lost an idempotency key race replays the winner's record.
func (l *Ledger) post(ctx context.Context, accountIDs []string, fn func(tx interfaces.LedgerTx) (posting, error)) (posting, error) {
	unlock := l.lockAccounts(accountIDs...)
	defer unlock()

	var result posting
	unit := func(tx interfaces.LedgerTx) error {
		var err error
		result, err = fn(tx)
		return err
	}
	err := l.store.WithinTx(ctx, unit)
	if errors.Is(err, interfaces.ErrConflict) && !errors.Is(err, ErrIdempotencyConflict) {
		err = l.store.WithinTx(ctx, unit)
	}
	if err != nil {
		return posting{}, err
	}

	if !result.replayed {
		for _, rec := range result.records {
			if rec.Status == models.StatusCompleted {
				l.publish(ctx, events.TopicTransactionCompleted, completedEvent(rec))
			}
		}
	}
	return result, nil
}

// idempotencyKey scopes a client key to the session so keys never collide across users.
func idempotencyKey(session models.Session, key string) string {
	if key == "" {
		return ""
	}
	return session.UserID + ":" + key
}

// replay returns the record previously stored under key, if any. The stored record
// must answer the same request as want, otherwise the key was reused and the
// result is ErrIdempotencyConflict.
func replay(ctx context.Context, tx interfaces.LedgerTx, key string, want models.Transaction) (models.Transaction, bool, error) {
	if key == "" {
		return models.Transaction{}, false, nil
	}
	existing, err := tx.TransactionByIdempotencyKey(ctx, key)
	if errors.Is(err, interfaces.ErrNotFound) {
		return models.Transaction{}, false, nil
	}
	if err != nil {
		return models.Transaction{}, false, fmt.Errorf("check idempotency key: %w", err)
	}
	if !sameRequest(existing, want) {
		return models.Transaction{}, false, ErrIdempotencyConflict
	}
	return existing, true, nil
}

// sameRequest compares the fields a client chooses. The destination link is only
// compared when both records carry one, since an unresolved destination leaves it unset.
func sameRequest(existing, want models.Transaction) bool {
	return existing.Category == want.Category &&
		sameStatus(existing, want.Status) &&
		existing.Amount.Equal(want.Amount) &&
		existing.Recipient.AccountNumber == want.Recipient.AccountNumber &&
		sameLink(existing.FromAccountID, want.FromAccountID) &&
		(existing.ToAccountID == nil || want.ToAccountID == nil || *existing.ToAccountID == *want.ToAccountID)
}

// sameStatus treats a decided pending record as the answer to its original submission
// and to nothing else.
func sameStatus(existing models.Transaction, want models.TransactionStatus) bool {
	if want == models.StatusPending {
		return existing.Status == want || existing.ApprovedAt != nil
	}
	return existing.Status == want && existing.ApprovedAt == nil
}

func sameLink(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (l *Ledger) publish(ctx context.Context, topic string, event any) {
	if l.publisher == nil {
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := l.publisher.Publish(pubCtx, topic, event); err != nil {
		logger.Error("ledger event publish failed", err, logger.Fields{"topic": topic})
	}
}

func completedEvent(rec models.Transaction) events.TransactionCompleted {
	evt := events.TransactionCompleted{
		TransactionID: rec.ID,
		Amount:        rec.Amount,
		Category:      string(rec.Category),
		Visible:       rec.Visible(),
		OccurredAt:    rec.CreatedAt,
	}
	if rec.FromAccountID != nil {
		evt.FromAccount = *rec.FromAccountID
	}
	if rec.ToAccountID != nil {
		evt.ToAccount = *rec.ToAccountID
	}
	if rec.ApprovedAt != nil {
		evt.OccurredAt = *rec.ApprovedAt
	}
	return evt
}

// loadAccount reads the account inside a unit of work and maps a missing row.
func loadAccount(ctx context.Context, tx interfaces.LedgerTx, accountID string) (models.Account, error) {
	acc, err := tx.GetAccount(ctx, accountID)
	if errors.Is(err, interfaces.ErrNotFound) {
		return models.Account{}, fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}
	if err != nil {
		return models.Account{}, fmt.Errorf("load account %s: %w", accountID, err)
	}
	return acc, nil
}

// debit removes amount from acc after the sufficiency check and returns the new balance.
func debit(ctx context.Context, tx interfaces.LedgerTx, acc models.Account, amount decimal.Decimal) (decimal.Decimal, error) {
	if acc.Balance.LessThan(amount) {
		return decimal.Zero, fmt.Errorf("%w: account %s has %s, needs %s",
			ErrInsufficientFunds, acc.ID, acc.Balance.StringFixed(2), amount.StringFixed(2))
	}
	next := acc.Balance.Sub(amount)
	if err := tx.UpdateBalance(ctx, acc.ID, next); err != nil {
		return decimal.Zero, fmt.Errorf("debit account %s: %w", acc.ID, err)
	}
	return next, nil
}

func credit(ctx context.Context, tx interfaces.LedgerTx, acc models.Account, amount decimal.Decimal) (decimal.Decimal, error) {
	next := acc.Balance.Add(amount)
	if err := tx.UpdateBalance(ctx, acc.ID, next); err != nil {
		return decimal.Zero, fmt.Errorf("credit account %s: %w", acc.ID, err)
	}
	return next, nil
}

func saveRecord(ctx context.Context, tx interfaces.LedgerTx, rec models.Transaction) error {
	if err := tx.SaveTransaction(ctx, rec); err != nil {
		return fmt.Errorf("save transaction record: %w", err)
	}
	return nil
}

// ParseAmount parses a user supplied amount. Non-numeric input is ErrInvalidAmount.
func ParseAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q is not a number", ErrInvalidAmount, raw)
	}
	return normalizeAmount(amount)
}

// normalizeAmount rounds to cents and rejects anything that is not strictly positive.
func normalizeAmount(amount decimal.Decimal) (decimal.Decimal, error) {
	rounded := amount.Round(2)
	if !rounded.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s must be greater than zero", ErrInvalidAmount, amount.String())
	}
	return rounded, nil
}
