package ledger

import (
	"context"
	"errors"
	"fmt"

	interfaces "github.com/sheikh-saqib/banking-ledger/internal/interfaces"
	"github.com/sheikh-saqib/banking-ledger/internal/logger"
	"github.com/sheikh-saqib/banking-ledger/internal/models"
	"github.com/sheikh-saqib/banking-ledger/internal/models/events"
)

// Approve completes a pending record and applies its balance effects in the same unit
// of work. If the source cannot cover the amount the record stays pending.
func (l *Ledger) Approve(ctx context.Context, session models.Session, transactionID string) (models.Transaction, error) {
	return l.transition(ctx, session, transactionID, models.StatusCompleted)
}

// Reject closes a pending record without touching any balance.
func (l *Ledger) Reject(ctx context.Context, session models.Session, transactionID string) (models.Transaction, error) {
	return l.transition(ctx, session, transactionID, models.StatusRejected)
}

func (l *Ledger) transition(ctx context.Context, session models.Session, transactionID string, next models.TransactionStatus) (models.Transaction, error) {
	if err := requireAdmin(session); err != nil {
		return models.Transaction{}, err
	}

	// Account ids never change on a record, so they can be read before locking.
	current, err := l.store.GetTransaction(ctx, transactionID)
	if errors.Is(err, interfaces.ErrNotFound) {
		return models.Transaction{}, fmt.Errorf("%w: %s", ErrTransactionNotFound, transactionID)
	}
	if err != nil {
		return models.Transaction{}, fmt.Errorf("load transaction: %w", err)
	}

	var lockIDs []string
	if current.FromAccountID != nil {
		lockIDs = append(lockIDs, *current.FromAccountID)
	}
	if current.ToAccountID != nil {
		lockIDs = append(lockIDs, *current.ToAccountID)
	}

	var previous models.TransactionStatus
	result, err := l.post(ctx, lockIDs, func(tx interfaces.LedgerTx) (posting, error) {
		rec, err := tx.GetTransaction(ctx, transactionID)
		if errors.Is(err, interfaces.ErrNotFound) {
			return posting{}, fmt.Errorf("%w: %s", ErrTransactionNotFound, transactionID)
		}
		if err != nil {
			return posting{}, fmt.Errorf("load transaction: %w", err)
		}
		if !rec.Status.CanTransitionTo(next) {
			return posting{}, fmt.Errorf("%w: %s is %s", ErrInvalidState, rec.ID, rec.Status)
		}
		previous = rec.Status

		if next == models.StatusCompleted {
			if err := l.applyApproved(ctx, tx, rec); err != nil {
				return posting{}, err
			}
		}

		now := l.now()
		rec.Status = next
		rec.ApprovedAt = &now
		rec.ApprovedBy = models.String(session.UserID)
		if err := tx.UpdateTransactionStatus(ctx, rec); err != nil {
			return posting{}, fmt.Errorf("update transaction status: %w", err)
		}
		return posting{records: []models.Transaction{rec}}, nil
	})
	if err != nil {
		logger.Error("ledger status change failed", err, logger.Fields{
			"transactionId": transactionID,
			"to":            string(next),
		})
		return models.Transaction{}, err
	}

	rec := result.records[0]
	l.publish(ctx, events.TopicTransactionStatusChanged, events.TransactionStatusChanged{
		TransactionID: rec.ID,
		From:          string(previous),
		To:            string(rec.Status),
		ChangedBy:     session.UserID,
		OccurredAt:    *rec.ApprovedAt,
	})

	logger.Info("ledger transaction status changed", logger.Fields{
		"transactionId": rec.ID,
		"from":          string(previous),
		"to":            string(rec.Status),
		"changedBy":     session.UserID,
	})
	return rec, nil
}

// applyApproved moves the money a pending record describes.
func (l *Ledger) applyApproved(ctx context.Context, tx interfaces.LedgerTx, rec models.Transaction) error {
	if rec.FromAccountID != nil {
		from, err := loadAccount(ctx, tx, *rec.FromAccountID)
		if err != nil {
			return err
		}
		if _, err := debit(ctx, tx, from, rec.Amount); err != nil {
			return err
		}
	}

	if rec.ToAccountID != nil {
		to, err := loadAccount(ctx, tx, *rec.ToAccountID)
		switch {
		case err == nil:
			if _, err := credit(ctx, tx, to, rec.Amount); err != nil {
				return err
			}
		case errors.Is(err, ErrAccountNotFound) && !l.strictTransferDestination:
			logger.Warn("transfer destination unresolved", logger.Fields{
				"transactionId": rec.ID,
				"toAccountId":   *rec.ToAccountID,
			})
		default:
			return err
		}
	}
	return nil
}
