package allocation

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertAmount(t *testing.T, want string, got decimal.Decimal, field string) {
	t.Helper()
	assert.True(t, got.Equal(dec(want)), "%s = %s, want %s", field, got, want)
}

// freshMonthly is a 100000 Monthly loan with 25000 interest and nothing paid.
func freshMonthly() AccountState {
	return AccountState{
		TotalPayable:    dec("125000"),
		InterestAmount:  dec("25000"),
		PrincipalAmount: dec("100000"),
		TotalPaid:       decimal.Zero,
		InterestPaid:    decimal.Zero,
		PrincipalPaid:   decimal.Zero,
	}
}

func TestAllocate_InterestFirstThenPrincipal(t *testing.T) {
	got, err := Allocate(freshMonthly(), dec("50000"))
	require.NoError(t, err)

	assertAmount(t, "25000", got.InterestPortion, "InterestPortion")
	assertAmount(t, "25000", got.PrincipalPortion, "PrincipalPortion")
	assertAmount(t, "25000", got.NewInterestPaid, "NewInterestPaid")
	assertAmount(t, "25000", got.NewPrincipalPaid, "NewPrincipalPaid")
	assertAmount(t, "50000", got.NewTotalPaid, "NewTotalPaid")
	assertAmount(t, "75000", got.NewRemainingBalance, "NewRemainingBalance")
	assertAmount(t, "25000", got.RemainingInterest, "RemainingInterest")
	assertAmount(t, "100000", got.RemainingPrincipal, "RemainingPrincipal")
}

func TestAllocate_FinalPaymentAllToPrincipal(t *testing.T) {
	first, err := Allocate(freshMonthly(), dec("50000"))
	require.NoError(t, err)
	state := freshMonthly().Apply(first)

	got, err := Allocate(state, dec("75000"))
	require.NoError(t, err)

	assertAmount(t, "0", got.InterestPortion, "InterestPortion")
	assertAmount(t, "75000", got.PrincipalPortion, "PrincipalPortion")
	assertAmount(t, "0", got.RemainingInterest, "RemainingInterest")
	assert.True(t, got.NewRemainingBalance.IsZero(), "remaining balance %s, want exactly 0", got.NewRemainingBalance)
	assertAmount(t, "125000", got.NewTotalPaid, "NewTotalPaid")
}

func TestAllocate_Overpayment(t *testing.T) {
	first, err := Allocate(freshMonthly(), dec("50000"))
	require.NoError(t, err)
	state := freshMonthly().Apply(first)

	_, err = Allocate(state, dec("80000"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOverpayment)

	var over *OverpaymentError
	require.ErrorAs(t, err, &over)
	assertAmount(t, "75000", over.Outstanding, "Outstanding")
	assertAmount(t, "80000", over.Amount, "Amount")
}

func TestAllocate_PartialInterestOnly(t *testing.T) {
	got, err := Allocate(freshMonthly(), dec("10000.50"))
	require.NoError(t, err)

	assertAmount(t, "10000.50", got.InterestPortion, "InterestPortion")
	assertAmount(t, "0", got.PrincipalPortion, "PrincipalPortion")
	assertAmount(t, "114999.50", got.NewRemainingBalance, "NewRemainingBalance")
}

func TestAllocate_InvalidPayment(t *testing.T) {
	for _, amt := range []string{"0", "-1", "10.005"} {
		_, err := Allocate(freshMonthly(), dec(amt))
		assert.ErrorIs(t, err, ErrInvalidPayment, "payment %s", amt)
	}
}

func TestAllocate_InvalidState(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AccountState)
	}{
		{"interest overpaid", func(s *AccountState) {
			s.InterestPaid = dec("30000")
			s.TotalPaid = dec("30000")
		}},
		{"negative principal paid", func(s *AccountState) {
			s.PrincipalPaid = dec("-1")
			s.TotalPaid = dec("-1")
		}},
		{"total paid not sum of parts", func(s *AccountState) {
			s.InterestPaid = dec("100")
			s.TotalPaid = dec("200")
		}},
		{"total payable mismatch", func(s *AccountState) {
			s.TotalPayable = dec("130000")
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := freshMonthly()
			tt.mutate(&state)
			_, err := Allocate(state, dec("100"))
			assert.ErrorIs(t, err, ErrInvalidState)
		})
	}
}

func TestAllocate_Properties(t *testing.T) {
	payments := []string{"0.01", "1", "333.33", "4999.99", "25000", "25000.01", "41666.67", "99999.99"}

	for _, ps := range payments {
		state := freshMonthly()
		payment := dec(ps)

		// Pay the same amount repeatedly until the next one would overpay,
		// checking the invariants at every step.
		for steps := 0; steps < 1000; steps++ {
			before := state.Outstanding()
			got, err := Allocate(state, payment)
			if payment.GreaterThan(before) {
				assert.ErrorIs(t, err, ErrOverpayment)
				break
			}
			require.NoError(t, err, "payment %s step %d", ps, steps)

			assert.True(t, got.InterestPortion.Add(got.PrincipalPortion).Equal(payment), "split must equal payment")
			assert.True(t, got.NewInterestPaid.Add(got.NewPrincipalPaid).Equal(got.NewTotalPaid), "conservation")
			assert.True(t, got.NewRemainingBalance.LessThan(before), "balance must fall")
			if got.PrincipalPortion.IsPositive() {
				assert.True(t, got.NewInterestPaid.Equal(state.InterestAmount), "principal paid before interest settled")
			}

			state = state.Apply(got)
			require.NoError(t, state.Validate())
		}
	}
}

func TestAllocate_ExactPayoffFromAnyPoint(t *testing.T) {
	state := freshMonthly()
	for _, p := range []string{"12345.67", "0.01", "20000", "33333.33"} {
		got, err := Allocate(state, dec(p))
		require.NoError(t, err)
		state = state.Apply(got)

		payoff, err := Allocate(state, state.Outstanding())
		require.NoError(t, err)
		assert.True(t, payoff.NewRemainingBalance.IsZero(), "after %s: residual %s", p, payoff.NewRemainingBalance)
	}
}

func TestAllocate_DoesNotMutateInput(t *testing.T) {
	state := freshMonthly()
	_, err := Allocate(state, dec("60000"))
	require.NoError(t, err)
	assert.Equal(t, freshMonthly(), state)
}

func TestStateFromTotals(t *testing.T) {
	tests := []struct {
		totalPaid         string
		wantInterestPaid  string
		wantPrincipalPaid string
	}{
		{"0", "0", "0"},
		{"10000", "10000", "0"},
		{"25000", "25000", "0"},
		{"40000", "25000", "15000"},
	}
	for _, tt := range tests {
		s := StateFromTotals(dec("25000"), dec("100000"), dec(tt.totalPaid))
		require.NoError(t, s.Validate())
		assertAmount(t, "125000", s.TotalPayable, "TotalPayable")
		assertAmount(t, tt.wantInterestPaid, s.InterestPaid, "InterestPaid")
		assertAmount(t, tt.wantPrincipalPaid, s.PrincipalPaid, "PrincipalPaid")
	}
}
