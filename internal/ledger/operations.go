package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	interfaces "github.com/sheikh-saqib/banking-ledger/internal/interfaces"
	"github.com/sheikh-saqib/banking-ledger/internal/logger"
	"github.com/sheikh-saqib/banking-ledger/internal/models"
	"github.com/shopspring/decimal"
)

const defaultTransferDescription = "Transfer"

// MovementRequest describes a single-sided deposit or withdrawal.
type MovementRequest struct {
	AccountID      string
	Amount         decimal.Decimal
	Description    string
	IsPositive     *bool // display sign override
	IsVisible      *bool // nil means visible
	IdempotencyKey string
}

// TransferRequest moves money out of FromAccountID. ToAccountID may be an internal
// account id, an external account number or empty.
type TransferRequest struct {
	FromAccountID  string
	ToAccountID    string
	Amount         decimal.Decimal
	Recipient      models.Recipient
	Description    string
	IdempotencyKey string
}

// Deposit credits the account and records a completed deposit.
func (l *Ledger) Deposit(ctx context.Context, session models.Session, req MovementRequest) (models.Transaction, error) {
	amount, err := normalizeAmount(req.Amount)
	if err != nil {
		return models.Transaction{}, err
	}
	key := idempotencyKey(session, req.IdempotencyKey)

	result, err := l.post(ctx, []string{req.AccountID}, func(tx interfaces.LedgerTx) (posting, error) {
		acc, err := loadAccount(ctx, tx, req.AccountID)
		if err != nil {
			return posting{}, err
		}
		if err := authorize(session, acc); err != nil {
			return posting{}, err
		}

		rec := models.Transaction{
			IdempotencyKey: key,
			ToAccountID:    models.String(acc.ID),
			Amount:         amount,
			Description:    req.Description,
			Category:       models.CategoryDeposit,
			Status:         models.StatusCompleted,
			IsPositive:     req.IsPositive,
			IsVisible:      req.IsVisible,
		}
		if existing, ok, err := replay(ctx, tx, key, rec); err != nil || ok {
			return posting{records: []models.Transaction{existing}, replayed: ok}, err
		}

		if _, err := credit(ctx, tx, acc, amount); err != nil {
			return posting{}, err
		}
		rec.ID = l.newID()
		rec.CreatedAt = l.now()
		if err := saveRecord(ctx, tx, rec); err != nil {
			return posting{}, err
		}
		return posting{records: []models.Transaction{rec}}, nil
	})
	if err != nil {
		logger.Error("ledger deposit failed", err, logger.Fields{"accountId": req.AccountID, "amount": amount.StringFixed(2)})
		return models.Transaction{}, err
	}

	rec := result.records[0]
	logger.Info("ledger deposit posted", logger.Fields{
		"transactionId": rec.ID,
		"accountId":     req.AccountID,
		"amount":        rec.Amount.StringFixed(2),
		"replayed":      result.replayed,
	})
	return rec, nil
}

// Withdraw debits the account and records a completed withdrawal. The balance may
// not go below zero.
func (l *Ledger) Withdraw(ctx context.Context, session models.Session, req MovementRequest) (models.Transaction, error) {
	amount, err := normalizeAmount(req.Amount)
	if err != nil {
		return models.Transaction{}, err
	}
	key := idempotencyKey(session, req.IdempotencyKey)

	result, err := l.post(ctx, []string{req.AccountID}, func(tx interfaces.LedgerTx) (posting, error) {
		acc, err := loadAccount(ctx, tx, req.AccountID)
		if err != nil {
			return posting{}, err
		}
		if err := authorize(session, acc); err != nil {
			return posting{}, err
		}

		rec := models.Transaction{
			IdempotencyKey: key,
			FromAccountID:  models.String(acc.ID),
			Amount:         amount,
			Description:    req.Description,
			Category:       models.CategoryWithdrawal,
			Status:         models.StatusCompleted,
			IsPositive:     req.IsPositive,
			IsVisible:      req.IsVisible,
		}
		if existing, ok, err := replay(ctx, tx, key, rec); err != nil || ok {
			return posting{records: []models.Transaction{existing}, replayed: ok}, err
		}

		if _, err := debit(ctx, tx, acc, amount); err != nil {
			return posting{}, err
		}
		rec.ID = l.newID()
		rec.CreatedAt = l.now()
		if err := saveRecord(ctx, tx, rec); err != nil {
			return posting{}, err
		}
		return posting{records: []models.Transaction{rec}}, nil
	})
	if err != nil {
		logger.Error("ledger withdrawal failed", err, logger.Fields{"accountId": req.AccountID, "amount": amount.StringFixed(2)})
		return models.Transaction{}, err
	}

	rec := result.records[0]
	logger.Info("ledger withdrawal posted", logger.Fields{
		"transactionId": rec.ID,
		"accountId":     req.AccountID,
		"amount":        rec.Amount.StringFixed(2),
		"replayed":      result.replayed,
	})
	return rec, nil
}

// destination is the resolved target of a transfer.
type destination struct {
	accountID string // set only for internal accounts
	recipient models.Recipient
}

// internalDestination reports whether raw looks like an internal account id. Anything
// else is kept as an external account number.
func internalDestination(raw string) bool {
	_, err := uuid.Parse(raw)
	return err == nil
}

func transferDestination(req TransferRequest) destination {
	dest := destination{recipient: req.Recipient}
	to := strings.TrimSpace(req.ToAccountID)
	switch {
	case to == "":
	case internalDestination(to):
		dest.accountID = to
	default:
		dest.recipient.AccountNumber = to
	}
	return dest
}

func validateTransfer(req TransferRequest) (decimal.Decimal, error) {
	amount, err := normalizeAmount(req.Amount)
	if err != nil {
		return decimal.Zero, err
	}
	if strings.TrimSpace(req.ToAccountID) != "" && req.ToAccountID == req.FromAccountID {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrSameAccount, req.FromAccountID)
	}
	return amount, nil
}

// Transfer debits the source account and, when the destination is an internal account
// that exists, credits it in the same unit of work. One record describes both legs.
func (l *Ledger) Transfer(ctx context.Context, session models.Session, req TransferRequest) (models.Transaction, error) {
	amount, err := validateTransfer(req)
	if err != nil {
		return models.Transaction{}, err
	}
	dest := transferDestination(req)
	key := idempotencyKey(session, req.IdempotencyKey)

	result, err := l.post(ctx, []string{req.FromAccountID, dest.accountID}, func(tx interfaces.LedgerTx) (posting, error) {
		from, err := loadAccount(ctx, tx, req.FromAccountID)
		if err != nil {
			return posting{}, err
		}
		if err := authorize(session, from); err != nil {
			return posting{}, err
		}

		description := req.Description
		if description == "" {
			description = defaultTransferDescription
		}
		rec := models.Transaction{
			IdempotencyKey: key,
			FromAccountID:  models.String(from.ID),
			ToAccountID:    models.String(dest.accountID),
			Recipient:      dest.recipient,
			Amount:         amount,
			Description:    description,
			Category:       models.CategoryTransfer,
			Status:         models.StatusCompleted,
		}
		if existing, ok, err := replay(ctx, tx, key, rec); err != nil || ok {
			return posting{records: []models.Transaction{existing}, replayed: ok}, err
		}

		var to *models.Account
		if dest.accountID != "" {
			acc, err := loadAccount(ctx, tx, dest.accountID)
			switch {
			case err == nil:
				to = &acc
			case errors.Is(err, ErrAccountNotFound) && !l.strictTransferDestination:
				logger.Warn("transfer destination unresolved", logger.Fields{
					"fromAccountId": from.ID,
					"toAccountId":   dest.accountID,
				})
			default:
				return posting{}, err
			}
		}

		if _, err := debit(ctx, tx, from, amount); err != nil {
			return posting{}, err
		}
		if to != nil {
			if _, err := credit(ctx, tx, *to, amount); err != nil {
				return posting{}, err
			}
		}

		rec.ID = l.newID()
		rec.CreatedAt = l.now()
		if to == nil {
			rec.ToAccountID = nil
		}
		if err := saveRecord(ctx, tx, rec); err != nil {
			return posting{}, err
		}
		return posting{records: []models.Transaction{rec}}, nil
	})
	if err != nil {
		logger.Error("ledger transfer failed", err, logger.Fields{
			"fromAccountId": req.FromAccountID,
			"toAccountId":   req.ToAccountID,
			"amount":        amount.StringFixed(2),
		})
		return models.Transaction{}, err
	}

	rec := result.records[0]
	logger.Info("ledger transfer posted", logger.Fields{
		"transactionId": rec.ID,
		"fromAccountId": req.FromAccountID,
		"toAccountId":   req.ToAccountID,
		"amount":        rec.Amount.StringFixed(2),
		"replayed":      result.replayed,
	})
	return rec, nil
}

// SubmitPendingTransfer records a transfer awaiting admin approval. No balance moves
// until it is approved, so funds are only checked at that point.
func (l *Ledger) SubmitPendingTransfer(ctx context.Context, session models.Session, req TransferRequest) (models.Transaction, error) {
	amount, err := validateTransfer(req)
	if err != nil {
		return models.Transaction{}, err
	}
	dest := transferDestination(req)
	key := idempotencyKey(session, req.IdempotencyKey)

	result, err := l.post(ctx, []string{req.FromAccountID}, func(tx interfaces.LedgerTx) (posting, error) {
		from, err := loadAccount(ctx, tx, req.FromAccountID)
		if err != nil {
			return posting{}, err
		}
		if err := authorize(session, from); err != nil {
			return posting{}, err
		}

		description := req.Description
		if description == "" {
			description = defaultTransferDescription
		}
		rec := models.Transaction{
			IdempotencyKey: key,
			FromAccountID:  models.String(from.ID),
			ToAccountID:    models.String(dest.accountID),
			Recipient:      dest.recipient,
			Amount:         amount,
			Description:    description,
			Category:       models.CategoryTransfer,
			Status:         models.StatusPending,
		}
		if existing, ok, err := replay(ctx, tx, key, rec); err != nil || ok {
			return posting{records: []models.Transaction{existing}, replayed: ok}, err
		}

		rec.ID = l.newID()
		rec.CreatedAt = l.now()
		if err := saveRecord(ctx, tx, rec); err != nil {
			return posting{}, err
		}
		return posting{records: []models.Transaction{rec}}, nil
	})
	if err != nil {
		logger.Error("ledger pending transfer failed", err, logger.Fields{"fromAccountId": req.FromAccountID})
		return models.Transaction{}, err
	}

	rec := result.records[0]
	logger.Info("ledger transfer submitted for approval", logger.Fields{
		"transactionId": rec.ID,
		"fromAccountId": req.FromAccountID,
		"amount":        rec.Amount.StringFixed(2),
	})
	return rec, nil
}
