package projection

import (
	"context"
	"errors"
	"fmt"
	"sort"

	interfaces "github.com/sheikh-saqib/banking-ledger/internal/interfaces"
	"github.com/sheikh-saqib/banking-ledger/internal/ledger"
	"github.com/sheikh-saqib/banking-ledger/internal/models"
)

// Projector serves read-only views of the ledger. It never takes account locks and
// never writes.
type Projector struct {
	store interfaces.LedgerStore
}

func NewProjector(store interfaces.LedgerStore) *Projector {
	return &Projector{store: store}
}

// ListByAccount returns the visible records touching the account, newest first. A
// record matches on either account id or, for external transfers, the account number.
func (p *Projector) ListByAccount(ctx context.Context, accountID string) ([]models.Transaction, error) {
	_, records, err := p.accountRecords(ctx, accountID)
	return records, err
}

// ListPending returns every pending record, newest first, hidden ones included.
func (p *Projector) ListPending(ctx context.Context) ([]models.Transaction, error) {
	records, err := p.store.ListTransactions(ctx, interfaces.TransactionFilter{Status: models.StatusPending})
	if err != nil {
		return nil, fmt.Errorf("list pending transactions: %w", err)
	}
	if records == nil {
		records = []models.Transaction{}
	}
	newestFirst(records)
	return records, nil
}

// Entries is ListByAccount rendered for display from the account's point of view.
func (p *Projector) Entries(ctx context.Context, accountID string) ([]View, error) {
	acc, records, err := p.accountRecords(ctx, accountID)
	if err != nil {
		return nil, err
	}

	views := make([]View, 0, len(records))
	for _, rec := range records {
		views = append(views, NewView(acc, rec))
	}
	return views, nil
}

func (p *Projector) accountRecords(ctx context.Context, accountID string) (models.Account, []models.Transaction, error) {
	acc, err := p.store.GetAccount(ctx, accountID)
	if errors.Is(err, interfaces.ErrNotFound) {
		return models.Account{}, nil, fmt.Errorf("%w: %s", ledger.ErrAccountNotFound, accountID)
	}
	if err != nil {
		return models.Account{}, nil, fmt.Errorf("get account: %w", err)
	}

	all, err := p.store.ListTransactions(ctx, interfaces.TransactionFilter{
		AccountID:     acc.ID,
		AccountNumber: acc.AccountNumber,
	})
	if err != nil {
		return models.Account{}, nil, fmt.Errorf("list account transactions: %w", err)
	}

	visible := make([]models.Transaction, 0, len(all))
	for _, rec := range all {
		if rec.Visible() {
			visible = append(visible, rec)
		}
	}
	newestFirst(visible)
	return acc, visible, nil
}

// newestFirst sorts by creation time descending; ties keep store order.
func newestFirst(records []models.Transaction) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
}
