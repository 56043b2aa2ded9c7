package projection

import (
	"context"
	"fmt"
	"io"

	"github.com/sheikh-saqib/banking-ledger/internal/models"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const statementSheet = "Statement"

var statementHeaders = []string{"Date", "Description", "Category", "Status", "Counterparty", "Amount"}

// Summary aggregates the visible records of an account.
type Summary struct {
	AccountID     string          `json:"account_id"`
	AccountNumber string          `json:"account_number"`
	Balance       decimal.Decimal `json:"balance"`
	Count         int             `json:"transaction_count"`
	Credits       decimal.Decimal `json:"total_credits"`
	Debits        decimal.Decimal `json:"total_debits"`
	Pending       int             `json:"pending_count"`
}

// Summary totals completed credits and debits from the account's point of view.
// Pending and rejected records are counted but moved no money.
func (p *Projector) Summary(ctx context.Context, accountID string) (Summary, error) {
	acc, records, err := p.accountRecords(ctx, accountID)
	if err != nil {
		return Summary{}, err
	}

	s := Summary{
		AccountID:     acc.ID,
		AccountNumber: MaskAccountNumber(acc.AccountNumber),
		Balance:       acc.Balance,
		Count:         len(records),
		Credits:       decimal.Zero,
		Debits:        decimal.Zero,
	}
	for _, rec := range records {
		switch rec.Status {
		case models.StatusPending:
			s.Pending++
			continue
		case models.StatusRejected:
			continue
		}
		// Naming acc's number as an external recipient moves no money into it.
		if !rec.References(acc.ID) {
			continue
		}
		if DirectionFor(acc, rec) == Credit {
			s.Credits = s.Credits.Add(rec.Amount)
		} else {
			s.Debits = s.Debits.Add(rec.Amount)
		}
	}
	return s, nil
}

// ExportStatement writes the account's visible records to w as an XLSX workbook.
func (p *Projector) ExportStatement(ctx context.Context, accountID string, w io.Writer) error {
	acc, records, err := p.accountRecords(ctx, accountID)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", statementSheet); err != nil {
		return fmt.Errorf("prepare statement sheet: %w", err)
	}

	for i, h := range statementHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(statementSheet, cell, h); err != nil {
			return fmt.Errorf("write statement header: %w", err)
		}
	}

	for idx, rec := range records {
		row := idx + 2
		v := NewView(acc, rec)
		values := []any{
			v.Date,
			v.Description,
			v.Category,
			v.Status,
			v.Counterparty,
			v.SignedAmount.InexactFloat64(),
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(statementSheet, cell, value); err != nil {
				return fmt.Errorf("write statement row %d: %w", row, err)
			}
		}
	}

	balanceRow := len(records) + 3
	_ = f.SetCellValue(statementSheet, fmt.Sprintf("E%d", balanceRow), "Balance")
	_ = f.SetCellValue(statementSheet, fmt.Sprintf("F%d", balanceRow), acc.Balance.InexactFloat64())

	_ = f.SetColWidth(statementSheet, "A", "A", 22)
	_ = f.SetColWidth(statementSheet, "B", "B", 32)
	_ = f.SetColWidth(statementSheet, "C", "D", 12)
	_ = f.SetColWidth(statementSheet, "E", "E", 26)
	_ = f.SetColWidth(statementSheet, "F", "F", 14)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write statement: %w", err)
	}
	return nil
}
