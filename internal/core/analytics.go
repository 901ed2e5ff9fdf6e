package core

// Read-only aggregates computed server-side per query window.
type (
	Period struct {
		StartDate Date `json:"startDate"`
		EndDate   Date `json:"endDate"`
	}

	ExpenseStatistics struct {
		TotalSpending        Money  `json:"totalSpending"`
		AverageDailySpending Money  `json:"averageDailySpending"`
		TotalExpenses        int64  `json:"totalExpenses"`
		Period               Period `json:"period"`
	}

	CategorySpending struct {
		CategoryID   int64  `json:"categoryId"`
		CategoryName string `json:"categoryName"`
		TotalAmount  Money  `json:"totalAmount"`
		Count        int64  `json:"count"`
	}

	SpendingByCategory struct {
		Categories  []CategorySpending `json:"categories"`
		TotalAmount Money              `json:"totalAmount"`
	}

	TrendPoint struct {
		Date   Date  `json:"date"`
		Amount Money `json:"amount"`
		Count  int64 `json:"count"`
	}

	SpendingTrend struct {
		Trends []TrendPoint `json:"trends"`
	}
)

// Share returns the fraction (0-100) of the grand total spent in c.
func (s SpendingByCategory) Share(c CategorySpending) float64 {
	if s.TotalAmount.IsZero() {
		return 0
	}
	f, _ := c.TotalAmount.Div(s.TotalAmount.Decimal).Mul(hundred).Float64()
	return f
}

// Total sums the trend amounts.
func (t SpendingTrend) Total() Money {
	amounts := make([]Money, len(t.Trends))
	for i, p := range t.Trends {
		amounts[i] = p.Amount
	}
	return Sum(amounts...)
}
