package events

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TopicTransactionCompleted     = "transaction_completed"
	TopicTransactionStatusChanged = "transaction_status_changed"
)

type TransactionCompleted struct {
	TransactionID string          `json:"transaction_id"`
	FromAccount   string          `json:"from_account,omitempty"`
	ToAccount     string          `json:"to_account,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Category      string          `json:"category"`
	Visible       bool            `json:"visible"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

func (e TransactionCompleted) PartitionKey() string { return e.TransactionID }
