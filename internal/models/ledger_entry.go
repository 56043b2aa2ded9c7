package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerEntry is a transaction as seen from one account's statement
type LedgerEntry struct {
	Transaction  Transaction
	AccountID    string          // whose statement this entry belongs to
	Positive     bool            // derived display sign
	SignedAmount decimal.Decimal // Amount with the derived sign applied
	CreatedAt    time.Time
}

// NewLedgerEntry projects tx onto the statement of accountID.
func NewLedgerEntry(accountID string, tx Transaction) LedgerEntry {
	positive := tx.Positive()
	signed := tx.Amount
	if !positive {
		signed = signed.Neg()
	}
	return LedgerEntry{
		Transaction:  tx,
		AccountID:    accountID,
		Positive:     positive,
		SignedAmount: signed,
		CreatedAt:    tx.CreatedAt,
	}
}
