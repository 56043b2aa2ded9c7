package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	interfaces "github.com/sheikh-saqib/banking-ledger/internal/interfaces"
	"github.com/sheikh-saqib/banking-ledger/internal/logger"
	"github.com/sheikh-saqib/banking-ledger/internal/models"
	"github.com/shopspring/decimal"
)

const defaultAccountType = "checking"

func requireAdmin(session models.Session) error {
	if !session.IsAdmin {
		return fmt.Errorf("%w: admin privileges required", ErrForbidden)
	}
	return nil
}

// authorize lets admins act on any account and users only on their own.
func authorize(session models.Session, acc models.Account) error {
	if session.IsAdmin {
		return nil
	}
	if session.UserID == "" || session.UserID != acc.UserID {
		return fmt.Errorf("%w: account %s", ErrForbidden, acc.ID)
	}
	return nil
}

// CreateAccount provisions an account with its opening balance. Admin only.
func (l *Ledger) CreateAccount(ctx context.Context, session models.Session, req models.NewAccount) (models.Account, error) {
	if err := requireAdmin(session); err != nil {
		return models.Account{}, err
	}

	userID := strings.TrimSpace(req.UserID)
	accountNumber := strings.TrimSpace(req.AccountNumber)
	if userID == "" || accountNumber == "" {
		return models.Account{}, fmt.Errorf("%w: user_id and account_number are required", ErrInvalidAccount)
	}
	if req.OpeningBalance.IsNegative() {
		return models.Account{}, fmt.Errorf("%w: opening balance cannot be negative", ErrInvalidAmount)
	}

	accountType := strings.TrimSpace(req.AccountType)
	if accountType == "" {
		accountType = defaultAccountType
	}

	acc := models.Account{
		ID:            l.newID(),
		UserID:        userID,
		DisplayName:   strings.TrimSpace(req.DisplayName),
		AccountNumber: accountNumber,
		RoutingNumber: strings.TrimSpace(req.RoutingNumber),
		Balance:       req.OpeningBalance.Round(2),
		AccountType:   accountType,
		CreatedAt:     l.now(),
	}

	err := l.store.WithinTx(ctx, func(tx interfaces.LedgerTx) error {
		return tx.SaveAccount(ctx, acc)
	})
	if err != nil {
		logger.Error("ledger create account failed", err, logger.Fields{"accountNumber": accountNumber})
		return models.Account{}, fmt.Errorf("create account: %w", err)
	}

	logger.Info("ledger account created", logger.Fields{
		"accountId": acc.ID,
		"userId":    acc.UserID,
		"createdBy": session.UserID,
	})
	return acc, nil
}

// DeleteAccount removes the account together with every transaction that references
// it and returns how many records went with it. Admin only.
func (l *Ledger) DeleteAccount(ctx context.Context, session models.Session, accountID string) (int, error) {
	if err := requireAdmin(session); err != nil {
		return 0, err
	}

	unlock := l.lockAccounts(accountID)
	defer unlock()

	var deleted int
	err := l.store.WithinTx(ctx, func(tx interfaces.LedgerTx) error {
		var err error
		deleted, err = tx.DeleteAccount(ctx, accountID)
		return err
	})
	if errors.Is(err, interfaces.ErrNotFound) {
		return 0, fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}
	if err != nil {
		return 0, fmt.Errorf("delete account: %w", err)
	}

	logger.Info("ledger account deleted", logger.Fields{
		"accountId":           accountID,
		"deletedTransactions": deleted,
		"deletedBy":           session.UserID,
	})
	return deleted, nil
}

// UserDeletion counts what DeleteUserAccounts removed.
type UserDeletion struct {
	UserID       string `json:"user_id"`
	Accounts     int    `json:"deleted_accounts"`
	Transactions int    `json:"deleted_transactions"`
}

// DeleteUserAccounts removes every account owned by userID in one unit of work, each
// with the same cascade as DeleteAccount. Admin only.
func (l *Ledger) DeleteUserAccounts(ctx context.Context, session models.Session, userID string) (UserDeletion, error) {
	if err := requireAdmin(session); err != nil {
		return UserDeletion{}, err
	}
	if userID == "" {
		return UserDeletion{}, fmt.Errorf("%w: user id is required", ErrInvalidAccount)
	}

	accounts, err := l.store.ListAccounts(ctx, userID)
	if err != nil {
		return UserDeletion{}, fmt.Errorf("list accounts: %w", err)
	}
	ids := make([]string, 0, len(accounts))
	for _, acc := range accounts {
		ids = append(ids, acc.ID)
	}

	unlock := l.lockAccounts(ids...)
	defer unlock()

	result := UserDeletion{UserID: userID}
	err = l.store.WithinTx(ctx, func(tx interfaces.LedgerTx) error {
		result.Accounts, result.Transactions = 0, 0
		for _, id := range ids {
			deleted, err := tx.DeleteAccount(ctx, id)
			if errors.Is(err, interfaces.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			result.Accounts++
			result.Transactions += deleted
		}
		return nil
	})
	if err != nil {
		return UserDeletion{}, fmt.Errorf("delete user accounts: %w", err)
	}

	logger.Info("ledger user accounts deleted", logger.Fields{
		"userId":              userID,
		"deletedAccounts":     result.Accounts,
		"deletedTransactions": result.Transactions,
		"deletedBy":           session.UserID,
	})
	return result, nil
}

func (l *Ledger) GetAccount(ctx context.Context, session models.Session, accountID string) (models.Account, error) {
	acc, err := l.store.GetAccount(ctx, accountID)
	if errors.Is(err, interfaces.ErrNotFound) {
		return models.Account{}, fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}
	if err != nil {
		return models.Account{}, fmt.Errorf("get account: %w", err)
	}
	if err := authorize(session, acc); err != nil {
		return models.Account{}, err
	}
	return acc, nil
}

// Balance returns the committed balance of the account.
func (l *Ledger) Balance(ctx context.Context, session models.Session, accountID string) (decimal.Decimal, error) {
	acc, err := l.GetAccount(ctx, session, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	return acc.Balance, nil
}

// AccountsForUser lists the accounts owned by userID.
func (l *Ledger) AccountsForUser(ctx context.Context, session models.Session, userID string) ([]models.Account, error) {
	if !session.IsAdmin && session.UserID != userID {
		return nil, fmt.Errorf("%w: accounts of %s", ErrForbidden, userID)
	}
	accounts, err := l.store.ListAccounts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return accounts, nil
}

// ListAccounts returns every account. Admin only.
func (l *Ledger) ListAccounts(ctx context.Context, session models.Session) ([]models.Account, error) {
	if err := requireAdmin(session); err != nil {
		return nil, err
	}
	accounts, err := l.store.ListAccounts(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return accounts, nil
}
