package ledger

import (
	"context"
	"fmt"
	"time"

	interfaces "github.com/sheikh-saqib/banking-ledger/internal/interfaces"
	"github.com/sheikh-saqib/banking-ledger/internal/logger"
	"github.com/sheikh-saqib/banking-ledger/internal/models"
	"github.com/shopspring/decimal"
)

const (
	defaultAdjustmentDescription = "Balance added by admin"
	defaultDeductionDescription  = "Balance deducted by admin"
)

var (
	taxRecipient = models.Recipient{
		Name:          "Internal Revenue Service",
		AccountNumber: "IRS-TAX-DEDUCT",
		BankName:      "Federal Reserve",
	}
	feeRecipient = models.Recipient{
		Name:          "Trusted",
		AccountNumber: "WF-PROC-FEE",
		BankName:      "Trusted",
	}
	adminRecipient = models.Recipient{
		Name:          "Trusted Admin",
		AccountNumber: "ADMIN-DEDUCT",
	}
	hundred = decimal.NewFromInt(100)
)

// TaxConfig is a percentage withheld from an admin credit.
type TaxConfig struct {
	Enabled bool
	Rate    decimal.Decimal // percent, e.g. 2 for 2%
}

// FeeConfig is a percentage fee clamped to [Min, Max]. A zero Max leaves the fee uncapped.
type FeeConfig struct {
	Enabled bool
	Rate    decimal.Decimal
	Min     decimal.Decimal
	Max     decimal.Decimal
}

type AdjustmentRequest struct {
	AccountID   string
	GrossAmount decimal.Decimal
	Description string
	Tax         *TaxConfig
	Fee         *FeeConfig
	Invisible   bool
}

// Deductions is the split of a gross admin credit.
type Deductions struct {
	Gross decimal.Decimal
	Tax   decimal.Decimal
	Fee   decimal.Decimal
	Net   decimal.Decimal
}

type AdjustmentResult struct {
	Deductions
	Records []models.Transaction
}

// ComputeDeductions applies tax and fee to gross. Both are rounded to cents.
func ComputeDeductions(gross decimal.Decimal, tax *TaxConfig, fee *FeeConfig) Deductions {
	d := Deductions{Gross: gross, Tax: decimal.Zero, Fee: decimal.Zero}

	if tax != nil && tax.Enabled {
		d.Tax = gross.Mul(tax.Rate).Div(hundred).Round(2)
	}
	if fee != nil && fee.Enabled {
		f := gross.Mul(fee.Rate).Div(hundred)
		if f.LessThan(fee.Min) {
			f = fee.Min
		}
		if fee.Max.IsPositive() && f.GreaterThan(fee.Max) {
			f = fee.Max
		}
		d.Fee = f.Round(2)
	}

	d.Net = gross.Sub(d.Tax).Sub(d.Fee)
	return d
}

// validateDeductions rejects rates outside [0, 100] and fee bounds that are negative
// or inverted.
func validateDeductions(tax *TaxConfig, fee *FeeConfig) error {
	if tax != nil && tax.Enabled && !validRate(tax.Rate) {
		return fmt.Errorf("%w: tax rate %s must be between 0 and 100", ErrInvalidAmount, tax.Rate)
	}
	if fee == nil || !fee.Enabled {
		return nil
	}
	if !validRate(fee.Rate) {
		return fmt.Errorf("%w: fee rate %s must be between 0 and 100", ErrInvalidAmount, fee.Rate)
	}
	if fee.Min.IsNegative() || fee.Max.IsNegative() {
		return fmt.Errorf("%w: fee bounds %s..%s must not be negative", ErrInvalidAmount, fee.Min, fee.Max)
	}
	if fee.Max.IsPositive() && fee.Min.GreaterThan(fee.Max) {
		return fmt.Errorf("%w: minimum fee %s exceeds maximum %s", ErrInvalidAmount, fee.Min, fee.Max)
	}
	return nil
}

func validRate(rate decimal.Decimal) bool {
	return !rate.IsNegative() && rate.LessThanOrEqual(hundred)
}

// AdminAdjustBalanceWithDeductions credits the account with gross minus tax and fee.
// The balance changes once, by the net amount. The main record is followed by one
// record per non-zero deduction, each a second apart so they sort deterministically.
func (l *Ledger) AdminAdjustBalanceWithDeductions(ctx context.Context, session models.Session, req AdjustmentRequest) (AdjustmentResult, error) {
	if err := requireAdmin(session); err != nil {
		return AdjustmentResult{}, err
	}
	gross, err := normalizeAmount(req.GrossAmount)
	if err != nil {
		return AdjustmentResult{}, err
	}

	if err := validateDeductions(req.Tax, req.Fee); err != nil {
		return AdjustmentResult{}, err
	}

	d := ComputeDeductions(gross, req.Tax, req.Fee)
	if !d.Net.IsPositive() {
		return AdjustmentResult{}, fmt.Errorf("%w: deductions of %s leave nothing to credit from %s",
			ErrInvalidAmount, d.Tax.Add(d.Fee).StringFixed(2), gross.StringFixed(2))
	}

	visible := models.Bool(!req.Invisible)
	description := req.Description
	if description == "" {
		description = defaultAdjustmentDescription
	}

	result, err := l.post(ctx, []string{req.AccountID}, func(tx interfaces.LedgerTx) (posting, error) {
		acc, err := loadAccount(ctx, tx, req.AccountID)
		if err != nil {
			return posting{}, err
		}
		if _, err := credit(ctx, tx, acc, d.Net); err != nil {
			return posting{}, err
		}

		t := l.now()
		records := []models.Transaction{{
			ID:          l.newID(),
			ToAccountID: models.String(acc.ID),
			Amount:      d.Net,
			Description: description,
			Category:    models.CategoryAdjustment,
			Status:      models.StatusCompleted,
			IsPositive:  models.Bool(true),
			IsVisible:   visible,
			CreatedAt:   t,
		}}
		if d.Tax.IsPositive() {
			records = append(records, models.Transaction{
				ID:            l.newID(),
				FromAccountID: models.String(acc.ID),
				Recipient:     taxRecipient,
				Amount:        d.Tax,
				Description:   fmt.Sprintf("Tax deduction (%s%%)", req.Tax.Rate.String()),
				Category:      models.CategoryTax,
				Status:        models.StatusCompleted,
				IsPositive:    models.Bool(false),
				IsVisible:     visible,
				CreatedAt:     t.Add(time.Second),
			})
		}
		if d.Fee.IsPositive() {
			records = append(records, models.Transaction{
				ID:            l.newID(),
				FromAccountID: models.String(acc.ID),
				Recipient:     feeRecipient,
				Amount:        d.Fee,
				Description:   fmt.Sprintf("Processing Fee (%s%%)", req.Fee.Rate.String()),
				Category:      models.CategoryFee,
				Status:        models.StatusCompleted,
				IsPositive:    models.Bool(false),
				IsVisible:     visible,
				CreatedAt:     t.Add(2 * time.Second),
			})
		}

		for _, rec := range records {
			if err := saveRecord(ctx, tx, rec); err != nil {
				return posting{}, err
			}
		}
		return posting{records: records}, nil
	})
	if err != nil {
		logger.Error("ledger admin adjustment failed", err, logger.Fields{
			"accountId": req.AccountID,
			"gross":     gross.StringFixed(2),
		})
		return AdjustmentResult{}, err
	}

	logger.Info("ledger admin adjustment posted", logger.Fields{
		"accountId": req.AccountID,
		"gross":     d.Gross.StringFixed(2),
		"tax":       d.Tax.StringFixed(2),
		"fee":       d.Fee.StringFixed(2),
		"net":       d.Net.StringFixed(2),
		"adminId":   session.UserID,
	})
	return AdjustmentResult{Deductions: d, Records: result.records}, nil
}

// AdminDeductBalance removes amount from the account. Admin deductions are held to the
// same no-overdraft rule as withdrawals.
func (l *Ledger) AdminDeductBalance(ctx context.Context, session models.Session, accountID string, amount decimal.Decimal, description string, invisible bool) (models.Transaction, error) {
	if err := requireAdmin(session); err != nil {
		return models.Transaction{}, err
	}
	amount, err := normalizeAmount(amount)
	if err != nil {
		return models.Transaction{}, err
	}
	if description == "" {
		description = defaultDeductionDescription
	}

	result, err := l.post(ctx, []string{accountID}, func(tx interfaces.LedgerTx) (posting, error) {
		acc, err := loadAccount(ctx, tx, accountID)
		if err != nil {
			return posting{}, err
		}
		if _, err := debit(ctx, tx, acc, amount); err != nil {
			return posting{}, err
		}

		rec := models.Transaction{
			ID:            l.newID(),
			FromAccountID: models.String(acc.ID),
			Recipient:     adminRecipient,
			Amount:        amount,
			Description:   description,
			Category:      models.CategoryDeduction,
			Status:        models.StatusCompleted,
			IsPositive:    models.Bool(false),
			IsVisible:     models.Bool(!invisible),
			CreatedAt:     l.now(),
		}
		if err := saveRecord(ctx, tx, rec); err != nil {
			return posting{}, err
		}
		return posting{records: []models.Transaction{rec}}, nil
	})
	if err != nil {
		logger.Error("ledger admin deduction failed", err, logger.Fields{"accountId": accountID, "amount": amount.StringFixed(2)})
		return models.Transaction{}, err
	}

	rec := result.records[0]
	logger.Info("ledger admin deduction posted", logger.Fields{
		"transactionId": rec.ID,
		"accountId":     accountID,
		"amount":        rec.Amount.StringFixed(2),
		"adminId":       session.UserID,
	})
	return rec, nil
}
