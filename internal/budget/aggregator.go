package budget

import (
	"context"
	"sort"

	appErrors "github.com/fatali-fataliyev/wallet_tracker/customErrors"
	"github.com/fatali-fataliyev/wallet_tracker/internal/money"
	"github.com/shopspring/decimal"
)

const DefaultTopCategories = 3

// CategoryAggregator turns persisted transactions into per-category, per-day
// and per-month figures. Every public method reads from a single View.
type CategoryAggregator struct {
	storage Storage
	clock   Clock
}

func NewCategoryAggregator(s Storage, clock Clock) *CategoryAggregator {
	if clock == nil {
		clock = systemClock
	}
	return &CategoryAggregator{storage: s, clock: clock}
}

// CurrentMonth is the month containing the aggregator's now.
func (a *CategoryAggregator) CurrentMonth() YearMonth {
	return MonthOf(a.clock())
}

func (a *CategoryAggregator) monthTransactions(ctx context.Context, repo Repository, walletID string, month YearMonth) ([]Transaction, error) {
	if _, err := repo.GetWalletByID(ctx, walletID); err != nil {
		return nil, err
	}
	return repo.ListTransactions(ctx, walletID, month.Start(), month.End())
}

func (a *CategoryAggregator) withMonth(ctx context.Context, walletID string, month YearMonth, fn func([]Transaction)) error {
	return a.storage.View(ctx, func(repo Repository) error {
		txs, err := a.monthTransactions(ctx, repo, walletID, month)
		if err != nil {
			return err
		}
		fn(txs)
		return nil
	})
}

// MonthTransactions returns the wallet's transactions inside month, most
// recent first.
func (a *CategoryAggregator) MonthTransactions(ctx context.Context, walletID string, month YearMonth) ([]Transaction, error) {
	var out []Transaction
	err := a.withMonth(ctx, walletID, month, func(txs []Transaction) { out = txs })
	return out, err
}

// CategoryTotals sums EXPENSE amounts per category inside month. Categories
// without expenses are absent.
func (a *CategoryAggregator) CategoryTotals(ctx context.Context, walletID string, month YearMonth) (map[Category]money.Money, error) {
	var out map[Category]money.Money
	err := a.withMonth(ctx, walletID, month, func(txs []Transaction) { out = categoryTotals(txs) })
	return out, err
}

// TopCategories ranks all-time expense totals and keeps the first n. Each
// share is a percentage of the sum of those n totals.
func (a *CategoryAggregator) TopCategories(ctx context.Context, walletID string, n int) ([]CategoryShare, error) {
	if n <= 0 {
		return nil, appErrors.New(appErrors.ErrInvalidInput, "Number of top categories must be positive, got %d.", n)
	}
	return a.rankedCategories(ctx, walletID, n)
}

// AllExpenseCategories is TopCategories without the cut-off.
func (a *CategoryAggregator) AllExpenseCategories(ctx context.Context, walletID string) ([]CategoryShare, error) {
	return a.rankedCategories(ctx, walletID, 0)
}

func (a *CategoryAggregator) rankedCategories(ctx context.Context, walletID string, limit int) ([]CategoryShare, error) {
	var out []CategoryShare
	err := a.storage.View(ctx, func(repo Repository) error {
		if _, err := repo.GetWalletByID(ctx, walletID); err != nil {
			return err
		}
		totals, err := repo.TopExpenseCategories(ctx, walletID, limit)
		if err != nil {
			return err
		}
		out = shares(totals)
		return nil
	})
	return out, err
}

// ExpenseHistoryByDay returns one entry per calendar day of month, in order,
// zero for days without expenses.
func (a *CategoryAggregator) ExpenseHistoryByDay(ctx context.Context, walletID string, month YearMonth) ([]DayExpense, error) {
	var out []DayExpense
	err := a.withMonth(ctx, walletID, month, func(txs []Transaction) { out = expenseHistory(txs, month) })
	return out, err
}

// BiggestExpense returns nil when the month has no expenses.
func (a *CategoryAggregator) BiggestExpense(ctx context.Context, walletID string, month YearMonth) (*Transaction, error) {
	var out *Transaction
	err := a.withMonth(ctx, walletID, month, func(txs []Transaction) { out = biggestExpense(txs) })
	return out, err
}

// BiggestExpenseCategoryName returns "" when the month has no expenses.
func (a *CategoryAggregator) BiggestExpenseCategoryName(ctx context.Context, walletID string, month YearMonth) (string, error) {
	biggest, err := a.BiggestExpense(ctx, walletID, month)
	if err != nil || biggest == nil {
		return "", err
	}
	return biggest.Category.Title(), nil
}

func (a *CategoryAggregator) TotalIncome(ctx context.Context, walletID string, month YearMonth) (money.Money, error) {
	var out money.Money
	err := a.withMonth(ctx, walletID, month, func(txs []Transaction) { out = sumByType(txs, Income) })
	return out, err
}

func (a *CategoryAggregator) TotalExpense(ctx context.Context, walletID string, month YearMonth) (money.Money, error) {
	var out money.Money
	err := a.withMonth(ctx, walletID, month, func(txs []Transaction) { out = sumByType(txs, Expense) })
	return out, err
}

// MonthSummary computes every month figure plus the top three categories
// from one snapshot.
func (a *CategoryAggregator) MonthSummary(ctx context.Context, walletID string, month YearMonth) (MonthSummary, error) {
	var summary MonthSummary
	err := a.storage.View(ctx, func(repo Repository) error {
		txs, err := a.monthTransactions(ctx, repo, walletID, month)
		if err != nil {
			return err
		}
		top, err := repo.TopExpenseCategories(ctx, walletID, DefaultTopCategories)
		if err != nil {
			return err
		}
		summary = summarize(txs, month)
		summary.TopCategories = shares(top)
		return nil
	})
	return summary, err
}

// MonthlyReport gathers the figures of a user's monthly statement. Paid
// subscriptions count towards the month's expense next to transactions.
func (a *CategoryAggregator) MonthlyReport(ctx context.Context, userID string, month YearMonth) (MonthlyReport, error) {
	var report MonthlyReport
	err := a.storage.View(ctx, func(repo Repository) error {
		wallet, err := repo.GetWalletByUserID(ctx, userID)
		if err != nil {
			return err
		}
		txs, err := repo.ListTransactions(ctx, wallet.ID, month.Start(), month.End())
		if err != nil {
			return err
		}
		subs, err := repo.ListSubscriptions(ctx, userID)
		if err != nil {
			return err
		}

		summary := summarize(txs, month)
		paid := paidInMonth(subs, month)
		subscriptionExpense := money.Zero
		for _, s := range paid {
			subscriptionExpense = subscriptionExpense.Add(s.Price)
		}

		report = MonthlyReport{
			Month:                      month,
			Wallet:                     wallet,
			Transactions:               txs,
			Categories:                 reportCategories(summary.CategoryTotals, summary.TotalExpense),
			BiggestExpense:             summary.BiggestExpense,
			BiggestExpenseCategoryName: summary.BiggestExpenseCategoryName,
			TotalIncome:                summary.TotalIncome,
			TransactionExpense:         summary.TotalExpense,
			PaidSubscriptions:          paid,
			SubscriptionExpense:        subscriptionExpense,
			TotalExpense:               summary.TotalExpense.Add(subscriptionExpense),
			History:                    summary.History,
		}
		return nil
	})
	return report, err
}

func summarize(txs []Transaction, month YearMonth) MonthSummary {
	biggest := biggestExpense(txs)
	name := ""
	if biggest != nil {
		name = biggest.Category.Title()
	}
	return MonthSummary{
		Month:                      month,
		Transactions:               txs,
		CategoryTotals:             categoryTotals(txs),
		History:                    expenseHistory(txs, month),
		BiggestExpense:             biggest,
		BiggestExpenseCategoryName: name,
		TotalIncome:                sumByType(txs, Income),
		TotalExpense:               sumByType(txs, Expense),
	}
}

func categoryTotals(txs []Transaction) map[Category]money.Money {
	totals := make(map[Category]money.Money)
	for _, t := range txs {
		if t.Type != Expense {
			continue
		}
		totals[t.Category] = totals[t.Category].Add(t.Amount)
	}
	return totals
}

func sumByType(txs []Transaction, typ TransactionType) money.Money {
	total := money.Zero
	for _, t := range txs {
		if t.Type == typ {
			total = total.Add(t.Amount)
		}
	}
	return total
}

// biggestExpense keeps the first of equal amounts in iteration order.
func biggestExpense(txs []Transaction) *Transaction {
	var biggest *Transaction
	for i := range txs {
		if txs[i].Type != Expense {
			continue
		}
		if biggest == nil || txs[i].Amount.GreaterThan(biggest.Amount) {
			t := txs[i]
			biggest = &t
		}
	}
	return biggest
}

func expenseHistory(txs []Transaction, month YearMonth) []DayExpense {
	days := month.Days()
	history := make([]DayExpense, days)
	for i := 0; i < days; i++ {
		date := month.Start().AddDate(0, 0, i)
		history[i] = DayExpense{Date: date, Label: DayLabel(date), Amount: money.Zero}
	}
	for _, t := range txs {
		if t.Type != Expense || !month.Contains(t.CreatedAt) {
			continue
		}
		day := t.CreatedAt.UTC().Day() - 1
		history[day].Amount = history[day].Amount.Add(t.Amount)
	}
	return history
}

// RankExpenseTotals orders per-category totals the way TopExpenseCategories
// must return them and keeps the first limit. limit <= 0 keeps all.
func RankExpenseTotals(totals map[Category]money.Money, limit int) []CategoryTotal {
	ranked := sortTotals(totals)
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// SumExpensesByCategory adds up EXPENSE amounts per category.
func SumExpensesByCategory(txs []Transaction) map[Category]money.Money {
	return categoryTotals(txs)
}

// sortTotals orders by amount descending, ties by category declaration order.
func sortTotals(totals map[Category]money.Money) []CategoryTotal {
	out := make([]CategoryTotal, 0, len(totals))
	for c, amount := range totals {
		out = append(out, CategoryTotal{Category: c, Amount: amount})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if cmp := out[i].Amount.Cmp(out[j].Amount); cmp != 0 {
			return cmp > 0
		}
		return out[i].Category.index() < out[j].Category.index()
	})
	return out
}

// shares assigns whole-number percentages of the sum of totals using the
// largest remainder method, so they add up to exactly 100 for a non-zero sum.
// Equal remainders go to the higher ranked category.
func shares(totals []CategoryTotal) []CategoryShare {
	out := make([]CategoryShare, len(totals))
	sum := money.Zero
	for i, t := range totals {
		out[i] = CategoryShare{Category: t.Category, Amount: t.Amount}
		sum = sum.Add(t.Amount)
	}
	if !sum.IsPositive() {
		return out
	}

	hundred := decimal.NewFromInt(100)
	remainders := make([]decimal.Decimal, len(totals))
	assigned := int64(0)
	for i, t := range totals {
		exact := t.Amount.Decimal().Mul(hundred).Div(sum.Decimal())
		floor := exact.Floor()
		out[i].Percent = int(floor.IntPart())
		remainders[i] = exact.Sub(floor)
		assigned += floor.IntPart()
	}

	order := make([]int, len(totals))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return remainders[order[i]].GreaterThan(remainders[order[j]])
	})
	for k := 0; k < int(100-assigned) && k < len(order); k++ {
		out[order[k]].Percent++
	}
	return out
}

// reportCategories lists month categories by amount with each share of total
// rounded half-up on its own.
func reportCategories(totals map[Category]money.Money, total money.Money) []CategoryShare {
	sorted := sortTotals(totals)
	out := make([]CategoryShare, len(sorted))
	for i, t := range sorted {
		out[i] = CategoryShare{
			Category: t.Category,
			Amount:   t.Amount,
			Percent:  int(t.Amount.PercentOf(total, 0).IntPart()),
		}
	}
	return out
}
