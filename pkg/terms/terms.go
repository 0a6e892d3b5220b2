// Package terms derives a loan's repayment terms from a catalog product,
// a principal and a tenure.
//
// Interest is simple and flat: rate × principal over the whole tenure.
// Intermediate values are kept at full decimal precision and rounded to
// cents only when LoanTerms is built.
package terms

import (
	"time"

	"github.com/mcclellann/microLoan/pkg/money"
	"github.com/mcclellann/microLoan/pkg/products"
	"github.com/shopspring/decimal"
)

// LoanTerms is the result of a terms calculation. It is never persisted here.
type LoanTerms struct {
	Product             products.Kind       `json:"product"`
	Principal           decimal.Decimal     `json:"principal"`
	InterestRatePercent decimal.Decimal     `json:"interest_rate_percent"`
	InterestAmount      decimal.Decimal     `json:"interest_amount"`
	TotalPayable        decimal.Decimal     `json:"total_payable"`
	Tenure              int                 `json:"tenure"`
	TenureUnit          products.TenureUnit `json:"tenure_unit"`
	InstallmentAmount   decimal.Decimal     `json:"installment_amount"`
	StartDate           *time.Time          `json:"start_date,omitempty"`
	EndDate             *time.Time          `json:"end_date,omitempty"`
}

// ComputeTerms resolves kind in the catalog and computes interest, total
// payable and installment for principal over tenure units. When start is
// non-nil the maturity date is start advanced by tenure units.
func ComputeTerms(kind products.Kind, principal decimal.Decimal, tenure int, start *time.Time) (LoanTerms, error) {
	product, err := products.Lookup(kind)
	if err != nil {
		return LoanTerms{}, err
	}
	if !principal.IsPositive() || !principal.Equal(money.Round(principal)) {
		return LoanTerms{}, &InvalidPrincipalError{Principal: principal}
	}
	if tenure <= 0 {
		return LoanTerms{}, &InvalidTenureError{Tenure: tenure}
	}
	if tenure > product.MaxTenure {
		return LoanTerms{}, &TenureExceededError{
			Kind:   product.Kind,
			Unit:   product.TenureUnit,
			Tenure: tenure,
			Max:    product.MaxTenure,
		}
	}

	interest := money.Percent(principal, product.InterestRatePercent)
	total := principal.Add(interest)
	installment := total.Div(decimal.NewFromInt(int64(tenure)))

	t := LoanTerms{
		Product:             product.Kind,
		Principal:           principal,
		InterestRatePercent: product.InterestRatePercent,
		InterestAmount:      money.Round(interest),
		TotalPayable:        money.Round(total),
		Tenure:              tenure,
		TenureUnit:          product.TenureUnit,
		InstallmentAmount:   money.Round(installment),
	}
	if start != nil {
		s := *start
		end := Advance(s, product.TenureUnit, tenure)
		t.StartDate = &s
		t.EndDate = &end
	}
	return t, nil
}

// Advance moves from by n tenure units. Months use calendar-month addition
// with time.AddDate normalisation (Jan 31 + 1 month is Mar 3 or Mar 2).
func Advance(from time.Time, unit products.TenureUnit, n int) time.Time {
	switch unit {
	case products.Months:
		return from.AddDate(0, n, 0)
	case products.Weeks:
		return from.AddDate(0, 0, n*7)
	case products.Days:
		return from.AddDate(0, 0, n)
	default:
		panic("terms: unknown tenure unit " + string(unit))
	}
}
