package sqlite

import (
	"time"

	"github.com/sheikh-saqib/banking-ledger/internal/models"
	"github.com/shopspring/decimal"
)

// Money columns are TEXT so SQLite never coerces them to floating point.

type accountRow struct {
	ID            string          `gorm:"primaryKey;size:36"`
	UserID        string          `gorm:"index;not null"`
	DisplayName   string          `gorm:"not null;default:''"`
	AccountNumber string          `gorm:"uniqueIndex;not null"`
	RoutingNumber string          `gorm:"not null;default:''"`
	Balance       decimal.Decimal `gorm:"type:text;not null"`
	AccountType   string          `gorm:"not null"`
	CreatedAt     time.Time       `gorm:"not null"`
}

func (accountRow) TableName() string { return "accounts" }

type transactionRow struct {
	ID                     string          `gorm:"primaryKey;size:36"`
	IdempotencyKey         *string         `gorm:"uniqueIndex"`
	FromAccountID          *string         `gorm:"index"`
	ToAccountID            *string         `gorm:"index"`
	RecipientName          string          `gorm:"not null;default:''"`
	RecipientEmail         string          `gorm:"not null;default:''"`
	RecipientAccountNumber string          `gorm:"index;not null;default:''"`
	RecipientRoutingNumber string          `gorm:"not null;default:''"`
	RecipientBankName      string          `gorm:"not null;default:''"`
	Amount                 decimal.Decimal `gorm:"type:text;not null"`
	Description            string          `gorm:"not null;default:''"`
	Category               string          `gorm:"not null;default:''"`
	Status                 string          `gorm:"index;not null"`
	IsPositive             *bool
	IsVisible              *bool
	CreatedAt              time.Time `gorm:"index;not null"`
	ApprovedAt             *time.Time
	ApprovedBy             *string
}

func (transactionRow) TableName() string { return "transactions" }

func toAccountRow(a models.Account) accountRow {
	return accountRow{
		ID:            a.ID,
		UserID:        a.UserID,
		DisplayName:   a.DisplayName,
		AccountNumber: a.AccountNumber,
		RoutingNumber: a.RoutingNumber,
		Balance:       a.Balance,
		AccountType:   a.AccountType,
		CreatedAt:     a.CreatedAt,
	}
}

func (r accountRow) model() models.Account {
	return models.Account{
		ID:            r.ID,
		UserID:        r.UserID,
		DisplayName:   r.DisplayName,
		AccountNumber: r.AccountNumber,
		RoutingNumber: r.RoutingNumber,
		Balance:       r.Balance,
		AccountType:   r.AccountType,
		CreatedAt:     r.CreatedAt,
	}
}

func toTransactionRow(t models.Transaction) transactionRow {
	return transactionRow{
		ID:                     t.ID,
		IdempotencyKey:         models.String(t.IdempotencyKey),
		FromAccountID:          t.FromAccountID,
		ToAccountID:            t.ToAccountID,
		RecipientName:          t.Recipient.Name,
		RecipientEmail:         t.Recipient.Email,
		RecipientAccountNumber: t.Recipient.AccountNumber,
		RecipientRoutingNumber: t.Recipient.RoutingNumber,
		RecipientBankName:      t.Recipient.BankName,
		Amount:                 t.Amount,
		Description:            t.Description,
		Category:               string(t.Category),
		Status:                 string(t.Status),
		IsPositive:             t.IsPositive,
		IsVisible:              t.IsVisible,
		CreatedAt:              t.CreatedAt,
		ApprovedAt:             t.ApprovedAt,
		ApprovedBy:             t.ApprovedBy,
	}
}

func (r transactionRow) model() models.Transaction {
	t := models.Transaction{
		ID:            r.ID,
		FromAccountID: r.FromAccountID,
		ToAccountID:   r.ToAccountID,
		Recipient: models.Recipient{
			Name:          r.RecipientName,
			Email:         r.RecipientEmail,
			AccountNumber: r.RecipientAccountNumber,
			RoutingNumber: r.RecipientRoutingNumber,
			BankName:      r.RecipientBankName,
		},
		Amount:      r.Amount,
		Description: r.Description,
		Category:    models.Category(r.Category),
		Status:      models.TransactionStatus(r.Status),
		IsPositive:  r.IsPositive,
		IsVisible:   r.IsVisible,
		CreatedAt:   r.CreatedAt,
		ApprovedAt:  r.ApprovedAt,
		ApprovedBy:  r.ApprovedBy,
	}
	if r.IdempotencyKey != nil {
		t.IdempotencyKey = *r.IdempotencyKey
	}
	return t
}
