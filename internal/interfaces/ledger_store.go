package interfaces

import (
	"context"
	"errors"

	"github.com/sheikh-saqib/banking-ledger/internal/models"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned by stores when an account or transaction does not exist.
var ErrNotFound = errors.New("record not found")

// ErrConflict is returned when a write collides with a unique key, such as a reused
// idempotency key.
var ErrConflict = errors.New("record already exists")

// TransactionFilter narrows ListTransactions. Zero fields are ignored; AccountID and
// AccountNumber are OR-ed together.
type TransactionFilter struct {
	AccountID     string
	AccountNumber string
	Status        models.TransactionStatus
}

// LedgerTx is a unit of work. Everything written through it becomes visible together
// when the surrounding WithinTx callback returns nil, and not at all otherwise.
type LedgerTx interface {
	// GetAccount reads the account for update; writers always see committed balances.
	GetAccount(ctx context.Context, accountID string) (models.Account, error)
	SaveAccount(ctx context.Context, account models.Account) error
	UpdateBalance(ctx context.Context, accountID string, balance decimal.Decimal) error
	// DeleteAccount removes the account and every transaction referencing it by id.
	DeleteAccount(ctx context.Context, accountID string) (int, error)

	GetTransaction(ctx context.Context, transactionID string) (models.Transaction, error)
	TransactionByIdempotencyKey(ctx context.Context, key string) (models.Transaction, error)
	SaveTransaction(ctx context.Context, tx models.Transaction) error
	UpdateTransactionStatus(ctx context.Context, tx models.Transaction) error
}

type LedgerStore interface {
	WithinTx(ctx context.Context, fn func(tx LedgerTx) error) error

	GetAccount(ctx context.Context, accountID string) (models.Account, error)
	// ListAccounts returns every account, or those owned by userID when it is set.
	ListAccounts(ctx context.Context, userID string) ([]models.Account, error)

	GetTransaction(ctx context.Context, transactionID string) (models.Transaction, error)
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]models.Transaction, error)

	Close() error
}
