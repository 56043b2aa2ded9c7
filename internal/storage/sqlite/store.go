package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	interfaces "github.com/sheikh-saqib/banking-ledger/internal/interfaces"
	"github.com/sheikh-saqib/banking-ledger/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SQLiteLedgerStore keeps accounts and transactions in a SQLite file through GORM.
type SQLiteLedgerStore struct {
	db *gorm.DB
}

// Open creates the database (and its parent directory) and migrates the schema.
// Pass a "file:name?mode=memory&cache=shared" DSN for a throwaway database.
func Open(path string, logMode bool) (*SQLiteLedgerStore, error) {
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	gormLogger := logger.Default
	if !logMode {
		gormLogger = gormLogger.LogMode(logger.Silent)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}

	// SQLite allows one writer; a single connection makes units of work queue
	// instead of failing with SQLITE_BUSY.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	_, _ = sqlDB.Exec("PRAGMA journal_mode = WAL;")
	_, _ = sqlDB.Exec("PRAGMA synchronous = NORMAL;")

	if err := db.AutoMigrate(&accountRow{}, &transactionRow{}); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return &SQLiteLedgerStore{db: db}, nil
}

func (s *SQLiteLedgerStore) WithinTx(ctx context.Context, fn func(tx interfaces.LedgerTx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&sqliteTx{db: tx})
	})
}

func (s *SQLiteLedgerStore) GetAccount(ctx context.Context, accountID string) (models.Account, error) {
	return getAccount(s.db.WithContext(ctx), accountID)
}

func (s *SQLiteLedgerStore) ListAccounts(ctx context.Context, userID string) ([]models.Account, error) {
	q := s.db.WithContext(ctx).Order("created_at")
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}

	var rows []accountRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	accounts := make([]models.Account, 0, len(rows))
	for _, r := range rows {
		accounts = append(accounts, r.model())
	}
	return accounts, nil
}

func (s *SQLiteLedgerStore) GetTransaction(ctx context.Context, transactionID string) (models.Transaction, error) {
	return getTransaction(s.db.WithContext(ctx).Where("id = ?", transactionID))
}

func (s *SQLiteLedgerStore) ListTransactions(ctx context.Context, filter interfaces.TransactionFilter) ([]models.Transaction, error) {
	q := s.db.WithContext(ctx).Order("created_at")

	switch {
	case filter.AccountID != "" && filter.AccountNumber != "":
		q = q.Where("(from_account_id = ? OR to_account_id = ? OR recipient_account_number = ?)",
			filter.AccountID, filter.AccountID, filter.AccountNumber)
	case filter.AccountID != "":
		q = q.Where("(from_account_id = ? OR to_account_id = ?)", filter.AccountID, filter.AccountID)
	case filter.AccountNumber != "":
		q = q.Where("recipient_account_number = ?", filter.AccountNumber)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", string(filter.Status))
	}

	var rows []transactionRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	transactions := make([]models.Transaction, 0, len(rows))
	for _, r := range rows {
		transactions = append(transactions, r.model())
	}
	return transactions, nil
}

func (s *SQLiteLedgerStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type sqliteTx struct {
	db *gorm.DB
}

func (t *sqliteTx) GetAccount(_ context.Context, accountID string) (models.Account, error) {
	return getAccount(t.db, accountID)
}

func (t *sqliteTx) SaveAccount(_ context.Context, account models.Account) error {
	row := toAccountRow(account)
	if err := t.db.Create(&row).Error; err != nil {
		return wrapWriteErr("save account", err)
	}
	return nil
}

func (t *sqliteTx) UpdateBalance(_ context.Context, accountID string, balance decimal.Decimal) error {
	res := t.db.Model(&accountRow{}).Where("id = ?", accountID).Update("balance", balance)
	if res.Error != nil {
		return fmt.Errorf("update balance: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return interfaces.ErrNotFound
	}
	return nil
}

func (t *sqliteTx) DeleteAccount(_ context.Context, accountID string) (int, error) {
	if _, err := getAccount(t.db, accountID); err != nil {
		return 0, err
	}

	res := t.db.Where("from_account_id = ? OR to_account_id = ?", accountID, accountID).Delete(&transactionRow{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete account transactions: %w", res.Error)
	}
	if err := t.db.Where("id = ?", accountID).Delete(&accountRow{}).Error; err != nil {
		return 0, fmt.Errorf("delete account: %w", err)
	}
	return int(res.RowsAffected), nil
}

func (t *sqliteTx) GetTransaction(_ context.Context, transactionID string) (models.Transaction, error) {
	return getTransaction(t.db.Where("id = ?", transactionID))
}

func (t *sqliteTx) TransactionByIdempotencyKey(_ context.Context, key string) (models.Transaction, error) {
	return getTransaction(t.db.Where("idempotency_key = ?", key))
}

func (t *sqliteTx) SaveTransaction(_ context.Context, tx models.Transaction) error {
	row := toTransactionRow(tx)
	if err := t.db.Create(&row).Error; err != nil {
		return wrapWriteErr("save transaction", err)
	}
	return nil
}

func (t *sqliteTx) UpdateTransactionStatus(_ context.Context, tx models.Transaction) error {
	res := t.db.Model(&transactionRow{}).Where("id = ?", tx.ID).Updates(map[string]any{
		"status":      string(tx.Status),
		"approved_at": tx.ApprovedAt,
		"approved_by": tx.ApprovedBy,
	})
	if res.Error != nil {
		return fmt.Errorf("update transaction status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return interfaces.ErrNotFound
	}
	return nil
}

func getAccount(db *gorm.DB, accountID string) (models.Account, error) {
	var row accountRow
	err := db.Where("id = ?", accountID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Account{}, interfaces.ErrNotFound
	}
	if err != nil {
		return models.Account{}, fmt.Errorf("get account: %w", err)
	}
	return row.model(), nil
}

func getTransaction(q *gorm.DB) (models.Transaction, error) {
	var row transactionRow
	err := q.Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Transaction{}, interfaces.ErrNotFound
	}
	if err != nil {
		return models.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return row.model(), nil
}

func wrapWriteErr(op string, err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%s: %w", op, interfaces.ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}

var _ interfaces.LedgerStore = (*SQLiteLedgerStore)(nil)
