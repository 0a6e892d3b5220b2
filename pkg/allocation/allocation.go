// Package allocation splits an incoming repayment between a loan's unpaid
// interest and unpaid principal.
//
// The policy is interest first: a payment settles any interest still owed
// before a single cent goes to principal. Allocate never mutates its input;
// it returns the proposed next cumulative state and leaves persisting it,
// under a single-writer-per-loan discipline, to the caller.
package allocation

import (
	"github.com/mcclellann/microLoan/pkg/money"
	"github.com/shopspring/decimal"
)

// AccountState is a snapshot of a loan's cumulative repayment position.
type AccountState struct {
	TotalPayable    decimal.Decimal `json:"total_payable"`
	InterestAmount  decimal.Decimal `json:"interest_amount"`
	PrincipalAmount decimal.Decimal `json:"principal_amount"`
	TotalPaid       decimal.Decimal `json:"total_paid"`
	InterestPaid    decimal.Decimal `json:"interest_paid"`
	PrincipalPaid   decimal.Decimal `json:"principal_paid"`
}

// Outstanding is TotalPayable - TotalPaid.
func (s AccountState) Outstanding() decimal.Decimal {
	return s.TotalPayable.Sub(s.TotalPaid)
}

// Allocation is the split of one payment and the balances that result.
type Allocation struct {
	InterestPortion     decimal.Decimal `json:"interest_portion"`
	PrincipalPortion    decimal.Decimal `json:"principal_portion"`
	NewInterestPaid     decimal.Decimal `json:"new_interest_paid"`
	NewPrincipalPaid    decimal.Decimal `json:"new_principal_paid"`
	NewTotalPaid        decimal.Decimal `json:"new_total_paid"`
	NewRemainingBalance decimal.Decimal `json:"new_remaining_balance"`
	RemainingInterest   decimal.Decimal `json:"remaining_interest"`
	RemainingPrincipal  decimal.Decimal `json:"remaining_principal"`
}

// Allocate applies payment to state, interest first, then principal.
//
// RemainingInterest and RemainingPrincipal describe what was owed before this
// payment. A payment equal to the outstanding balance leaves a remaining
// balance of exactly zero.
func Allocate(state AccountState, payment decimal.Decimal) (Allocation, error) {
	if err := state.Validate(); err != nil {
		return Allocation{}, err
	}
	if !payment.IsPositive() || !payment.Equal(money.Round(payment)) {
		return Allocation{}, &InvalidPaymentError{Amount: payment}
	}
	outstanding := state.Outstanding()
	if payment.GreaterThan(outstanding) {
		return Allocation{}, &OverpaymentError{Amount: payment, Outstanding: money.Round(outstanding)}
	}

	remainingInterest := money.ClampZero(state.InterestAmount.Sub(state.InterestPaid))
	remainingPrincipal := money.ClampZero(state.PrincipalAmount.Sub(state.PrincipalPaid))

	interestPortion := money.Min(payment, remainingInterest)
	principalPortion := money.Min(payment.Sub(interestPortion), remainingPrincipal)

	newTotalPaid := state.TotalPaid.Add(interestPortion).Add(principalPortion)

	return Allocation{
		InterestPortion:     money.Round(interestPortion),
		PrincipalPortion:    money.Round(principalPortion),
		NewInterestPaid:     money.Round(state.InterestPaid.Add(interestPortion)),
		NewPrincipalPaid:    money.Round(state.PrincipalPaid.Add(principalPortion)),
		NewTotalPaid:        money.Round(newTotalPaid),
		NewRemainingBalance: money.Round(money.ClampZero(state.TotalPayable.Sub(newTotalPaid))),
		RemainingInterest:   money.Round(remainingInterest),
		RemainingPrincipal:  money.Round(remainingPrincipal),
	}, nil
}

// Validate reports whether the snapshot satisfies the account invariants.
func (s AccountState) Validate() error {
	switch {
	case s.InterestAmount.IsNegative() || s.PrincipalAmount.IsNegative():
		return &InvalidStateError{Reason: "negative interest or principal amount"}
	case !s.InterestAmount.Add(s.PrincipalAmount).Equal(s.TotalPayable):
		return &InvalidStateError{Reason: "total payable is not interest plus principal"}
	case s.InterestPaid.IsNegative() || s.InterestPaid.GreaterThan(s.InterestAmount):
		return &InvalidStateError{Reason: "interest paid outside [0, interest amount]"}
	case s.PrincipalPaid.IsNegative() || s.PrincipalPaid.GreaterThan(s.PrincipalAmount):
		return &InvalidStateError{Reason: "principal paid outside [0, principal amount]"}
	case !s.InterestPaid.Add(s.PrincipalPaid).Equal(s.TotalPaid):
		return &InvalidStateError{Reason: "total paid is not interest paid plus principal paid"}
	case s.TotalPaid.GreaterThan(s.TotalPayable):
		return &InvalidStateError{Reason: "total paid exceeds total payable"}
	}
	return nil
}

// StateFromTotals rebuilds a snapshot for records that only kept a running
// total paid. It assumes every earlier payment was allocated interest first,
// so interest paid is min(totalPaid, interestAmount).
func StateFromTotals(interestAmount, principalAmount, totalPaid decimal.Decimal) AccountState {
	interestPaid := money.Min(totalPaid, interestAmount)
	return AccountState{
		TotalPayable:    interestAmount.Add(principalAmount),
		InterestAmount:  interestAmount,
		PrincipalAmount: principalAmount,
		TotalPaid:       totalPaid,
		InterestPaid:    interestPaid,
		PrincipalPaid:   totalPaid.Sub(interestPaid),
	}
}

// Apply returns the snapshot that results from a.
func (s AccountState) Apply(a Allocation) AccountState {
	return AccountState{
		TotalPayable:    s.TotalPayable,
		InterestAmount:  s.InterestAmount,
		PrincipalAmount: s.PrincipalAmount,
		TotalPaid:       a.NewTotalPaid,
		InterestPaid:    a.NewInterestPaid,
		PrincipalPaid:   a.NewPrincipalPaid,
	}
}
