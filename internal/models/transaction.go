package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusRejected  TransactionStatus = "rejected"
)

// CanTransitionTo reports whether the approval workflow allows moving from s to next.
// Completed and rejected are terminal.
func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	return s == StatusPending && (next == StatusCompleted || next == StatusRejected)
}

func (s TransactionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusRejected:
		return true
	}
	return false
}

// Category classifies a record explicitly instead of relying on description keywords.
type Category string

const (
	CategoryDeposit    Category = "deposit"
	CategoryWithdrawal Category = "withdrawal"
	CategoryTransfer   Category = "transfer"
	CategoryAdjustment Category = "adjustment"
	CategoryTax        Category = "tax"
	CategoryFee        Category = "fee"
	CategoryDeduction  Category = "deduction"
)

// Recipient describes a counterparty that may not exist in the accounts table.
type Recipient struct {
	Name          string `json:"name,omitempty"`
	Email         string `json:"email,omitempty"`
	AccountNumber string `json:"account_number,omitempty"`
	RoutingNumber string `json:"routing_number,omitempty"`
	BankName      string `json:"bank_name,omitempty"`
}

// Transaction is a single ledger record. Amount is always a non-negative magnitude;
// display polarity comes from Positive.
type Transaction struct {
	ID             string            `json:"id"`
	IdempotencyKey string            `json:"-"` // optional; unique when set
	FromAccountID  *string           `json:"from_account_id,omitempty"`
	ToAccountID    *string           `json:"to_account_id,omitempty"`
	Recipient      Recipient         `json:"recipient"`
	Amount         decimal.Decimal   `json:"amount"`
	Description    string            `json:"description"`
	Category       Category          `json:"category,omitempty"`
	Status         TransactionStatus `json:"status"`
	IsPositive     *bool             `json:"is_positive,omitempty"`
	IsVisible      *bool             `json:"is_visible,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	ApprovedAt     *time.Time        `json:"approved_at,omitempty"`
	ApprovedBy     *string           `json:"approved_by,omitempty"`
}

// Positive derives the display sign of the record. The explicit flag wins, then
// description keywords, then which side of the record is empty. Defaults to positive.
func (t Transaction) Positive() bool {
	if t.IsPositive != nil {
		return *t.IsPositive
	}

	if d := t.Description; d != "" {
		switch {
		case containsAny(d, "Tax", "tax", "Fee", "fee"):
			return false
		case strings.Contains(d, "added by admin"):
			return true
		case strings.Contains(d, "deducted by admin"):
			return false
		}
	}

	switch {
	case t.FromAccountID == nil && t.ToAccountID != nil:
		return true
	case t.FromAccountID != nil && t.ToAccountID == nil:
		return false
	}
	return true
}

// Visible reports whether end users should see the record. Unset means visible.
func (t Transaction) Visible() bool {
	return t.IsVisible == nil || *t.IsVisible
}

// Involves reports whether the record references the account by id or, for
// externally recorded transfers, by account number.
func (t Transaction) Involves(accountID, accountNumber string) bool {
	if t.FromAccountID != nil && *t.FromAccountID == accountID {
		return true
	}
	if t.ToAccountID != nil && *t.ToAccountID == accountID {
		return true
	}
	return accountNumber != "" && t.Recipient.AccountNumber == accountNumber
}

// References reports whether the record links the account by id on either side.
func (t Transaction) References(accountID string) bool {
	return (t.FromAccountID != nil && *t.FromAccountID == accountID) ||
		(t.ToAccountID != nil && *t.ToAccountID == accountID)
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// Bool returns a pointer to b.
func Bool(b bool) *bool { return &b }

// String returns a pointer to s, or nil when s is empty.
func String(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
