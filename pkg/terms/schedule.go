package terms

import (
	"time"

	"github.com/mcclellann/microLoan/pkg/money"
	"github.com/shopspring/decimal"
)

// Installment is one scheduled payment. Schedules are informational; actual
// repayments may differ in amount and timing.
type Installment struct {
	Number  int             `json:"number"`
	DueDate time.Time       `json:"due_date"`
	Amount  decimal.Decimal `json:"amount"`
}

// Schedule lays out t's installments, one per tenure unit after the start
// date. The last installment takes whatever rounding residual is left so the
// amounts sum to TotalPayable exactly.
func Schedule(t LoanTerms) ([]Installment, error) {
	if t.StartDate == nil {
		return nil, ErrMissingStartDate
	}
	if t.Tenure <= 0 {
		return nil, &InvalidTenureError{Tenure: t.Tenure}
	}

	out := make([]Installment, 0, t.Tenure)
	remaining := t.TotalPayable
	for i := 1; i <= t.Tenure; i++ {
		amount := remaining
		if i < t.Tenure {
			amount = money.Min(t.InstallmentAmount, remaining)
		}
		remaining = remaining.Sub(amount)
		out = append(out, Installment{
			Number:  i,
			DueDate: Advance(*t.StartDate, t.TenureUnit, i),
			Amount:  amount,
		})
	}
	return out, nil
}
