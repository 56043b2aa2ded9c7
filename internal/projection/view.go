package projection

import (
	"strings"
	"time"

	"github.com/sheikh-saqib/banking-ledger/internal/models"
	"github.com/shopspring/decimal"
)

const dateLayout = "Jan 2, 2006 3:04 PM"

// Direction is how a record moved money for the account whose statement shows it.
type Direction string

const (
	Credit Direction = "credit"
	Debit  Direction = "debit"
)

// View is a display row of an account statement.
type View struct {
	ID                  string          `json:"id"`
	Description         string          `json:"description"`
	Category            string          `json:"category,omitempty"`
	Status              string          `json:"status"`
	Direction           Direction       `json:"direction"`
	Positive            bool            `json:"is_positive"`
	Amount              decimal.Decimal `json:"amount"`
	SignedAmount        decimal.Decimal `json:"signed_amount"`
	DisplayAmount       string          `json:"display_amount"`
	Counterparty        string          `json:"counterparty,omitempty"`
	CounterpartyAccount string          `json:"counterparty_account,omitempty"`
	Date                string          `json:"date"`
	CreatedAt           time.Time       `json:"created_at"`
}

// NewView renders rec as it appears on acc's statement. The sign comes from the
// record's derived polarity.
func NewView(acc models.Account, rec models.Transaction) View {
	entry := models.NewLedgerEntry(acc.ID, rec)
	return View{
		ID:                  rec.ID,
		Description:         rec.Description,
		Category:            string(rec.Category),
		Status:              string(rec.Status),
		Direction:           DirectionFor(acc, rec),
		Positive:            entry.Positive,
		Amount:              rec.Amount,
		SignedAmount:        entry.SignedAmount,
		DisplayAmount:       FormatAmount(entry.SignedAmount),
		Counterparty:        rec.Recipient.Name,
		CounterpartyAccount: MaskAccountNumber(rec.Recipient.AccountNumber),
		Date:                FormatDate(entry.CreatedAt),
		CreatedAt:           entry.CreatedAt,
	}
}

// DirectionFor reports whether rec took money from or brought money to acc. Records
// that link acc on neither side fall back to the derived sign.
func DirectionFor(acc models.Account, rec models.Transaction) Direction {
	switch {
	case rec.FromAccountID != nil && *rec.FromAccountID == acc.ID:
		return Debit
	case rec.ToAccountID != nil && *rec.ToAccountID == acc.ID:
		return Credit
	case acc.AccountNumber != "" && rec.Recipient.AccountNumber == acc.AccountNumber:
		return Credit
	case rec.Positive():
		return Credit
	}
	return Debit
}

// FormatAmount renders a signed amount as dollars, e.g. "$1,234.56" or "-$20.00".
func FormatAmount(amount decimal.Decimal) string {
	fixed := amount.Abs().StringFixed(2)
	whole, cents, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	if amount.IsNegative() {
		b.WriteByte('-')
	}
	b.WriteByte('$')
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteByte('.')
	b.WriteString(cents)
	return b.String()
}

// MaskAccountNumber keeps the last four characters, e.g. "•••• 4487".
func MaskAccountNumber(number string) string {
	number = strings.TrimSpace(number)
	if number == "" {
		return ""
	}
	if runes := []rune(number); len(runes) > 4 {
		number = string(runes[len(runes)-4:])
	}
	return "•••• " + number
}

func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}
