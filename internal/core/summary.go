package core

import "github.com/shopspring/decimal"

// Comparison is the derived spending status for a set of records against the
// latest budget. It is never persisted.
type Comparison struct {
	TotalSpent  decimal.Decimal
	BudgetLimit decimal.Decimal
	Exceeded    bool
}

// Total sums the valid amounts of records. Records whose amount is missing or
// malformed are skipped and counted in skipped.
func Total(records []ExpenseRecord) (total decimal.Decimal, skipped int) {
	total = decimal.Zero
	for _, r := range records {
		v, ok := r.Amount.Value()
		if !ok {
			skipped++
			continue
		}
		total = total.Add(v)
	}
	return total, skipped
}

// Compare builds the comparison for a spent total against a budget. Spending
// exactly the limit is within budget.
func Compare(total decimal.Decimal, budget Budget) Comparison {
	return Comparison{
		TotalSpent:  total,
		BudgetLimit: budget.Limit,
		Exceeded:    total.GreaterThan(budget.Limit),
	}
}

// Remaining is the part of the limit still available, negative when exceeded.
func (c Comparison) Remaining() decimal.Decimal {
	return c.BudgetLimit.Sub(c.TotalSpent)
}
