package ledger

import (
	"errors"
	"fmt"

	interfaces "github.com/sheikh-saqib/banking-ledger/internal/interfaces"
)

var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidState        = errors.New("transaction is not pending")
	ErrInvalidAccount      = errors.New("invalid account details")
	ErrSameAccount         = errors.New("source and destination account are the same")
	ErrForbidden           = errors.New("operation not permitted for this session")

	// ErrIdempotencyConflict is returned when a key is reused for a different request.
	ErrIdempotencyConflict = fmt.Errorf("idempotency key already used for a different request: %w", interfaces.ErrConflict)
)
