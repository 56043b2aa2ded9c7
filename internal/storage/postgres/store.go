package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	interfaces "github.com/sheikh-saqib/banking-ledger/internal/interfaces"
	"github.com/sheikh-saqib/banking-ledger/internal/models"
	"github.com/shopspring/decimal"
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type PostgresLedgerStore struct {
	db *sql.DB
}

func NewPostgresLedgerStore(db *sql.DB) *PostgresLedgerStore {
	return &PostgresLedgerStore{
		db: db,
	}
}

// WithinTx runs fn inside one database transaction. Account reads made through the
// LedgerTx take row locks, so concurrent writers on the same account serialize.
func (p *PostgresLedgerStore) WithinTx(ctx context.Context, fn func(tx interfaces.LedgerTx) error) (err error) {
	dbTx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ledger tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = dbTx.Rollback()
		}
	}()

	if err = fn(&postgresTx{tx: dbTx}); err != nil {
		return err
	}

	if err = dbTx.Commit(); err != nil {
		return fmt.Errorf("commit ledger tx: %w", err)
	}
	return nil
}

func (p *PostgresLedgerStore) GetAccount(ctx context.Context, accountID string) (models.Account, error) {
	return getAccount(ctx, p.db, accountID, false)
}

func (p *PostgresLedgerStore) ListAccounts(ctx context.Context, userID string) ([]models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts`
	var args []any
	if userID != "" {
		query += ` WHERE user_id = $1`
		args = append(args, userID)
	}
	query += ` ORDER BY created_at`

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return accounts, nil
}

func (p *PostgresLedgerStore) GetTransaction(ctx context.Context, transactionID string) (models.Transaction, error) {
	return getTransaction(ctx, p.db, `WHERE id = $1`, transactionID, false)
}

func (p *PostgresLedgerStore) ListTransactions(ctx context.Context, filter interfaces.TransactionFilter) ([]models.Transaction, error) {
	var (
		where []string
		args  []any
	)

	var party []string
	if filter.AccountID != "" {
		args = append(args, filter.AccountID)
		n := len(args)
		party = append(party, fmt.Sprintf("from_account_id = $%d OR to_account_id = $%d", n, n))
	}
	if filter.AccountNumber != "" {
		args = append(args, filter.AccountNumber)
		party = append(party, fmt.Sprintf("recipient_account_number = $%d", len(args)))
	}
	if len(party) > 0 {
		where = append(where, "("+strings.Join(party, " OR ")+")")
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at`

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var transactions []models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		transactions = append(transactions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return transactions, nil
}

func (p *PostgresLedgerStore) Close() error {
	return p.db.Close()
}

type postgresTx struct {
	tx *sql.Tx
}

func (t *postgresTx) GetAccount(ctx context.Context, accountID string) (models.Account, error) {
	return getAccount(ctx, t.tx, accountID, true)
}

func (t *postgresTx) SaveAccount(ctx context.Context, account models.Account) error {
	const query = `INSERT INTO accounts (id, user_id, display_name, account_number, routing_number, balance, account_type, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := t.tx.ExecContext(ctx, query,
		account.ID,
		account.UserID,
		account.DisplayName,
		account.AccountNumber,
		account.RoutingNumber,
		account.Balance,
		account.AccountType,
		account.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("save account %s: %w", account.AccountNumber, interfaces.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("save account: %w", err)
	}
	return nil
}

func (t *postgresTx) UpdateBalance(ctx context.Context, accountID string, balance decimal.Decimal) error {
	const query = `UPDATE accounts SET balance = $2 WHERE id = $1`

	result, err := t.tx.ExecContext(ctx, query, accountID, balance)
	if err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	return expectRow(result)
}

func (t *postgresTx) DeleteAccount(ctx context.Context, accountID string) (int, error) {
	if _, err := getAccount(ctx, t.tx, accountID, true); err != nil {
		return 0, err
	}

	result, err := t.tx.ExecContext(ctx, `DELETE FROM transactions WHERE from_account_id = $1 OR to_account_id = $1`, accountID)
	if err != nil {
		return 0, fmt.Errorf("delete account transactions: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete account transactions rows affected: %w", err)
	}

	if _, err := t.tx.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, accountID); err != nil {
		return 0, fmt.Errorf("delete account: %w", err)
	}
	return int(deleted), nil
}

func (t *postgresTx) GetTransaction(ctx context.Context, transactionID string) (models.Transaction, error) {
	return getTransaction(ctx, t.tx, `WHERE id = $1`, transactionID, true)
}

// TransactionByIdempotencyKey does not lock. Two units racing on a new key both miss
// it; the loser's insert fails with ErrConflict and the ledger retries it as a replay.
func (t *postgresTx) TransactionByIdempotencyKey(ctx context.Context, key string) (models.Transaction, error) {
	return getTransaction(ctx, t.tx, `WHERE idempotency_key = $1`, key, false)
}

func (t *postgresTx) SaveTransaction(ctx context.Context, tx models.Transaction) error {
	const query = `INSERT INTO transactions (
	id, idempotency_key, from_account_id, to_account_id,
	recipient_name, recipient_email, recipient_account_number, recipient_routing_number, recipient_bank_name,
	amount, description, category, status, is_positive, is_visible, created_at, approved_at, approved_by
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	_, err := t.tx.ExecContext(ctx, query,
		tx.ID,
		nullString(tx.IdempotencyKey),
		tx.FromAccountID,
		tx.ToAccountID,
		tx.Recipient.Name,
		tx.Recipient.Email,
		tx.Recipient.AccountNumber,
		tx.Recipient.RoutingNumber,
		tx.Recipient.BankName,
		tx.Amount,
		tx.Description,
		string(tx.Category),
		string(tx.Status),
		tx.IsPositive,
		tx.IsVisible,
		tx.CreatedAt,
		tx.ApprovedAt,
		tx.ApprovedBy,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("save transaction %s: %w", tx.ID, interfaces.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("save transaction: %w", err)
	}
	return nil
}

func (t *postgresTx) UpdateTransactionStatus(ctx context.Context, tx models.Transaction) error {
	const query = `UPDATE transactions SET status = $2, approved_at = $3, approved_by = $4 WHERE id = $1`

	result, err := t.tx.ExecContext(ctx, query, tx.ID, string(tx.Status), tx.ApprovedAt, tx.ApprovedBy)
	if err != nil {
		return fmt.Errorf("update transaction status: %w", err)
	}
	return expectRow(result)
}

const accountColumns = `id, user_id, display_name, account_number, routing_number, balance, account_type, created_at`

const transactionColumns = `id, idempotency_key, from_account_id, to_account_id,
	recipient_name, recipient_email, recipient_account_number, recipient_routing_number, recipient_bank_name,
	amount, description, category, status, is_positive, is_visible, created_at, approved_at, approved_by`

type rowScanner interface {
	Scan(dest ...any) error
}

func getAccount(ctx context.Context, q queryer, accountID string, forUpdate bool) (models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	acc, err := scanAccount(q.QueryRowContext(ctx, query, accountID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Account{}, interfaces.ErrNotFound
	}
	if err != nil {
		return models.Account{}, fmt.Errorf("get account: %w", err)
	}
	return acc, nil
}

func scanAccount(row rowScanner) (models.Account, error) {
	var acc models.Account
	err := row.Scan(
		&acc.ID,
		&acc.UserID,
		&acc.DisplayName,
		&acc.AccountNumber,
		&acc.RoutingNumber,
		&acc.Balance,
		&acc.AccountType,
		&acc.CreatedAt,
	)
	return acc, err
}

func getTransaction(ctx context.Context, q queryer, where string, arg any, forUpdate bool) (models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions ` + where
	if forUpdate {
		query += ` FOR UPDATE`
	}

	t, err := scanTransaction(q.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Transaction{}, interfaces.ErrNotFound
	}
	if err != nil {
		return models.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

func scanTransaction(row rowScanner) (models.Transaction, error) {
	var (
		t              models.Transaction
		idempotencyKey sql.NullString
		from, to       sql.NullString
		category       string
		status         string
		isPositive     sql.NullBool
		isVisible      sql.NullBool
		approvedAt     sql.NullTime
		approvedBy     sql.NullString
	)

	err := row.Scan(
		&t.ID,
		&idempotencyKey,
		&from,
		&to,
		&t.Recipient.Name,
		&t.Recipient.Email,
		&t.Recipient.AccountNumber,
		&t.Recipient.RoutingNumber,
		&t.Recipient.BankName,
		&t.Amount,
		&t.Description,
		&category,
		&status,
		&isPositive,
		&isVisible,
		&t.CreatedAt,
		&approvedAt,
		&approvedBy,
	)
	if err != nil {
		return models.Transaction{}, err
	}

	t.IdempotencyKey = idempotencyKey.String
	t.Category = models.Category(category)
	t.Status = models.TransactionStatus(status)
	if from.Valid {
		t.FromAccountID = &from.String
	}
	if to.Valid {
		t.ToAccountID = &to.String
	}
	if isPositive.Valid {
		t.IsPositive = &isPositive.Bool
	}
	if isVisible.Valid {
		t.IsVisible = &isVisible.Bool
	}
	if approvedAt.Valid {
		t.ApprovedAt = &approvedAt.Time
	}
	if approvedBy.Valid {
		t.ApprovedBy = &approvedBy.String
	}
	return t, nil
}

func expectRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return interfaces.ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == "23505"
	}
	return false
}

var _ interfaces.LedgerStore = (*PostgresLedgerStore)(nil)
