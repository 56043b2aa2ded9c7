package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	interfaces "github.com/sheikh-saqib/banking-ledger/internal/interfaces"
	"github.com/sheikh-saqib/banking-ledger/internal/models"
	"github.com/shopspring/decimal"
)

// MemoryLedgerStore is an in-memory implementation of interfaces.LedgerStore.
// Units of work run one at a time and stage their writes; readers only wait for
// the short commit step.
type MemoryLedgerStore struct {
	writeMu sync.Mutex   // serializes units of work
	mu      sync.RWMutex // guards the committed state below

	accounts     map[string]models.Account
	transactions map[string]models.Transaction
	order        []string          // transaction ids in insertion order
	idempotency  map[string]string // idempotency key -> transaction id
}

func NewMemoryLedgerStore() *MemoryLedgerStore {
	return &MemoryLedgerStore{
		accounts:     make(map[string]models.Account),
		transactions: make(map[string]models.Transaction),
		idempotency:  make(map[string]string),
	}
}

func (m *MemoryLedgerStore) WithinTx(ctx context.Context, fn func(tx interfaces.LedgerTx) error) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := newMemoryTx(m)
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.commit(tx)
	return nil
}

func (m *MemoryLedgerStore) commit(tx *memoryTx) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, acc := range tx.accounts {
		if acc == nil {
			delete(m.accounts, id)
			continue
		}
		m.accounts[id] = *acc
	}

	if len(tx.deletedTx) > 0 {
		kept := m.order[:0]
		for _, id := range m.order {
			if _, gone := tx.deletedTx[id]; gone {
				if key := m.transactions[id].IdempotencyKey; key != "" {
					delete(m.idempotency, key)
				}
				delete(m.transactions, id)
				continue
			}
			kept = append(kept, id)
		}
		m.order = kept
	}

	for _, id := range tx.newOrder {
		if _, ok := tx.transactions[id]; ok {
			m.order = append(m.order, id)
		}
	}
	for id, t := range tx.transactions {
		m.transactions[id] = t
		if t.IdempotencyKey != "" {
			m.idempotency[t.IdempotencyKey] = id
		}
	}
}

func (m *MemoryLedgerStore) GetAccount(_ context.Context, accountID string) (models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	acc, ok := m.accounts[accountID]
	if !ok {
		return models.Account{}, interfaces.ErrNotFound
	}
	return acc, nil
}

// ListAccounts returns accounts oldest first, like the SQL stores.
func (m *MemoryLedgerStore) ListAccounts(_ context.Context, userID string) ([]models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]models.Account, 0, len(m.accounts))
	for _, acc := range m.accounts {
		if userID != "" && acc.UserID != userID {
			continue
		}
		result = append(result, acc)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *MemoryLedgerStore) GetTransaction(_ context.Context, transactionID string) (models.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.transactions[transactionID]
	if !ok {
		return models.Transaction{}, interfaces.ErrNotFound
	}
	return t, nil
}

// ListTransactions returns matching records in insertion order.
func (m *MemoryLedgerStore) ListTransactions(_ context.Context, filter interfaces.TransactionFilter) ([]models.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []models.Transaction
	for _, id := range m.order {
		t := m.transactions[id]
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if (filter.AccountID != "" || filter.AccountNumber != "") && !t.Involves(filter.AccountID, filter.AccountNumber) {
			continue
		}
		result = append(result, t)
	}
	return result, nil
}

func (m *MemoryLedgerStore) Close() error { return nil }

// memoryTx stages writes on top of the committed state. The committed state cannot
// change underneath it because writeMu is held for the whole unit of work.
type memoryTx struct {
	store        *MemoryLedgerStore
	accounts     map[string]*models.Account // nil value marks a deletion
	transactions map[string]models.Transaction
	newOrder     []string
	deletedTx    map[string]struct{}
}

func newMemoryTx(store *MemoryLedgerStore) *memoryTx {
	return &memoryTx{
		store:        store,
		accounts:     make(map[string]*models.Account),
		transactions: make(map[string]models.Transaction),
		deletedTx:    make(map[string]struct{}),
	}
}

func (t *memoryTx) GetAccount(ctx context.Context, accountID string) (models.Account, error) {
	if staged, ok := t.accounts[accountID]; ok {
		if staged == nil {
			return models.Account{}, interfaces.ErrNotFound
		}
		return *staged, nil
	}
	return t.store.GetAccount(ctx, accountID)
}

func (t *memoryTx) SaveAccount(_ context.Context, account models.Account) error {
	acc := account
	t.accounts[account.ID] = &acc
	return nil
}

func (t *memoryTx) UpdateBalance(ctx context.Context, accountID string, balance decimal.Decimal) error {
	acc, err := t.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	acc.Balance = balance
	t.accounts[accountID] = &acc
	return nil
}

func (t *memoryTx) DeleteAccount(ctx context.Context, accountID string) (int, error) {
	if _, err := t.GetAccount(ctx, accountID); err != nil {
		return 0, err
	}

	deleted := 0
	t.store.mu.RLock()
	for id, rec := range t.store.transactions {
		if _, gone := t.deletedTx[id]; gone {
			continue
		}
		if rec.References(accountID) {
			t.deletedTx[id] = struct{}{}
			deleted++
		}
	}
	t.store.mu.RUnlock()

	for id, rec := range t.transactions {
		if rec.References(accountID) {
			delete(t.transactions, id)
			if _, committed := t.deletedTx[id]; !committed {
				deleted++
			}
		}
	}

	t.accounts[accountID] = nil
	return deleted, nil
}

func (t *memoryTx) GetTransaction(ctx context.Context, transactionID string) (models.Transaction, error) {
	if staged, ok := t.transactions[transactionID]; ok {
		return staged, nil
	}
	if _, gone := t.deletedTx[transactionID]; gone {
		return models.Transaction{}, interfaces.ErrNotFound
	}
	return t.store.GetTransaction(ctx, transactionID)
}

func (t *memoryTx) TransactionByIdempotencyKey(ctx context.Context, key string) (models.Transaction, error) {
	for _, staged := range t.transactions {
		if staged.IdempotencyKey == key {
			return staged, nil
		}
	}

	t.store.mu.RLock()
	id, ok := t.store.idempotency[key]
	t.store.mu.RUnlock()
	if !ok {
		return models.Transaction{}, interfaces.ErrNotFound
	}
	return t.GetTransaction(ctx, id)
}

func (t *memoryTx) SaveTransaction(ctx context.Context, tx models.Transaction) error {
	if tx.IdempotencyKey != "" {
		if existing, err := t.TransactionByIdempotencyKey(ctx, tx.IdempotencyKey); err == nil && existing.ID != tx.ID {
			return fmt.Errorf("save transaction %s: %w", tx.ID, interfaces.ErrConflict)
		}
	}
	if _, exists := t.transactions[tx.ID]; !exists {
		t.newOrder = append(t.newOrder, tx.ID)
	}
	t.transactions[tx.ID] = tx
	return nil
}

func (t *memoryTx) UpdateTransactionStatus(ctx context.Context, tx models.Transaction) error {
	current, err := t.GetTransaction(ctx, tx.ID)
	if err != nil {
		return err
	}
	current.Status = tx.Status
	current.ApprovedAt = tx.ApprovedAt
	current.ApprovedBy = tx.ApprovedBy
	t.transactions[tx.ID] = current
	return nil
}

// Compile-time check: ensure MemoryLedgerStore implements LedgerStore interface
var _ interfaces.LedgerStore = (*MemoryLedgerStore)(nil)
