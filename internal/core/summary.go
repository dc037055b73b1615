package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Stats is the dashboard summary for one user.
type Stats struct {
	TotalIncome      float64 `json:"totalIncome"`
	TotalExpenses    float64 `json:"totalExpenses"`
	Balance          float64 `json:"balance"`
	TransactionCount int     `json:"transactionCount"`
}

// CategoryTotal represents expenses aggregated by category name.
type CategoryTotal struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// MonthlyTotal holds income and expenses for one calendar month (YYYY-MM).
type MonthlyTotal struct {
	Month    string  `json:"month"`
	Income   float64 `json:"income"`
	Expenses float64 `json:"expenses"`
}

// Summarize reduces txs into totals. Expenses are reported as an absolute
// value; the balance is income minus expenses.
func Summarize(txs []Transaction) Stats {
	income := decimal.Zero
	expenses := decimal.Zero
	for _, tx := range txs {
		switch tx.Type {
		case Income:
			income = income.Add(decimal.NewFromFloat(tx.Amount))
		case Expense:
			expenses = expenses.Add(decimal.NewFromFloat(tx.Amount))
		}
	}
	expenses = expenses.Abs()

	return Stats{
		TotalIncome:      income.InexactFloat64(),
		TotalExpenses:    expenses.InexactFloat64(),
		Balance:          income.Sub(expenses).InexactFloat64(),
		TransactionCount: len(txs),
	}
}

// ExpensesByCategory sums absolute expense amounts per category, largest
// first. Ties are broken by name.
func ExpensesByCategory(txs []Transaction) []CategoryTotal {
	sums := make(map[string]decimal.Decimal)
	for _, tx := range txs {
		if tx.Type != Expense {
			continue
		}
		sums[tx.Category] = sums[tx.Category].Add(decimal.NewFromFloat(tx.Amount).Abs())
	}

	out := make([]CategoryTotal, 0, len(sums))
	for name, v := range sums {
		out = append(out, CategoryTotal{Name: name, Value: v.InexactFloat64()})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// MonthlyTrend groups txs by the UTC month of their date, oldest first.
func MonthlyTrend(txs []Transaction) []MonthlyTotal {
	type acc struct{ income, expenses decimal.Decimal }
	months := make(map[string]*acc)
	for _, tx := range txs {
		key := tx.Date.UTC().Format("2006-01")
		m, ok := months[key]
		if !ok {
			m = &acc{}
			months[key] = m
		}
		amount := decimal.NewFromFloat(tx.Amount)
		if tx.Type == Income {
			m.income = m.income.Add(amount)
		} else {
			m.expenses = m.expenses.Add(amount.Abs())
		}
	}

	out := make([]MonthlyTotal, 0, len(months))
	for key, m := range months {
		out = append(out, MonthlyTotal{
			Month:    key,
			Income:   m.income.InexactFloat64(),
			Expenses: m.expenses.InexactFloat64(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

// SortByDateDesc orders txs newest first. Equal dates fall back to creation
// time, then id, so listings are stable.
func SortByDateDesc(txs []Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		a, b := txs[i], txs[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
}
