package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account holds the balance the ledger mutates.
type Account struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	DisplayName   string          `json:"display_name,omitempty"`
	AccountNumber string          `json:"account_number"`
	RoutingNumber string          `json:"routing_number,omitempty"`
	Balance       decimal.Decimal `json:"balance"` // fixed-point, two decimal places
	AccountType   string          `json:"account_type"`
	CreatedAt     time.Time       `json:"created_at"`
}

// NewAccount is the provisioning input for an account.
type NewAccount struct {
	UserID         string          `json:"user_id"`
	DisplayName    string          `json:"display_name"`
	AccountNumber  string          `json:"account_number"`
	RoutingNumber  string          `json:"routing_number"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	AccountType    string          `json:"account_type"`
}
