package events

import "time"

// TransactionStatusChanged is emitted when an admin approves or rejects a pending record.
type TransactionStatusChanged struct {
	TransactionID string    `json:"transaction_id"`
	From          string    `json:"from"`
	To            string    `json:"to"`
	ChangedBy     string    `json:"changed_by"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func (e TransactionStatusChanged) PartitionKey() string { return e.TransactionID }
