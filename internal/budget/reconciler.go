package budget

import (
	"context"
	"errors"
	"sort"
	"time"

	appErrors "github.com/fatali-fataliyev/wallet_tracker/customErrors"
	"github.com/fatali-fataliyev/wallet_tracker/internal/money"
	"github.com/google/uuid"
)

// BudgetReconciler joins monthly category budgets with the month's spending.
type BudgetReconciler struct {
	storage Storage
	guard   OwnershipGuard
	clock   Clock
}

func NewBudgetReconciler(s Storage, clock Clock) *BudgetReconciler {
	if clock == nil {
		clock = systemClock
	}
	return &BudgetReconciler{storage: s, clock: clock}
}

// resolveMonth uses (month, year) when both are set and the current month
// otherwise.
func (r *BudgetReconciler) resolveMonth(month, year int) (YearMonth, error) {
	if month == 0 || year == 0 {
		return MonthOf(r.clock()), nil
	}
	ym, err := NewYearMonth(year, month)
	if err != nil {
		return YearMonth{}, appErrors.New(appErrors.ErrInvalidInput, "Invalid budget month: %v", err)
	}
	return ym, nil
}

// GetBudgetPageData reconciles the user's budgets for the month. month and
// year are optional, pass 0 for the current month.
func (r *BudgetReconciler) GetBudgetPageData(ctx context.Context, userID string, month, year int) (BudgetPageData, error) {
	ym, err := r.resolveMonth(month, year)
	if err != nil {
		return BudgetPageData{}, err
	}

	var page BudgetPageData
	err = r.storage.View(ctx, func(repo Repository) error {
		if _, err := repo.GetUserByID(ctx, userID); err != nil {
			return err
		}

		budgets, err := repo.ListBudgets(ctx, userID, ym)
		if err != nil {
			return err
		}

		var txs []Transaction
		wallet, err := repo.GetWalletByUserID(ctx, userID)
		switch {
		case err == nil:
			txs, err = repo.ListTransactions(ctx, wallet.ID, ym.Start(), ym.End())
			if err != nil {
				return err
			}
		case errors.Is(err, appErrors.NotFound):
		default:
			return err
		}

		page = reconcile(budgets, categoryTotals(txs), sumByType(txs, Expense), ym)
		return nil
	})
	return page, err
}

func reconcile(budgets []Budget, spentByCategory map[Category]money.Money, totalSpent money.Money, ym YearMonth) BudgetPageData {
	sort.SliceStable(budgets, func(i, j int) bool {
		return budgets[i].Category.index() < budgets[j].Category.index()
	})

	page := BudgetPageData{
		Month:                 ym,
		MonthName:             ym.Name(),
		PreviousMonth:         ym.Previous(),
		NextMonth:             ym.Next(),
		Budgets:               make([]BudgetInfo, 0, len(budgets)),
		TotalBudget:           money.Zero,
		TotalSpent:            totalSpent,
		AllCategories:         AllCategories(),
		CategoriesWithBudgets: make([]Category, 0, len(budgets)),
	}

	for _, b := range budgets {
		page.Budgets = append(page.Budgets, budgetInfo(b, spentByCategory[b.Category]))
		page.TotalBudget = page.TotalBudget.Add(b.Amount)
		page.CategoriesWithBudgets = append(page.CategoriesWithBudgets, b.Category)
	}
	page.TotalRemaining = page.TotalBudget.Sub(page.TotalSpent)
	return page
}

func budgetInfo(b Budget, spent money.Money) BudgetInfo {
	info := BudgetInfo{
		Budget:       b,
		Spent:        spent,
		Remaining:    b.Amount.Sub(spent),
		IsOverBudget: spent.GreaterThan(b.Amount),
	}
	if b.Amount.IsPositive() {
		info.Percentage = spent.PercentOf(b.Amount, 2)
	}
	return info
}

// CreateOrUpdateBudget upserts the budget keyed by (user, category, month).
func (r *BudgetReconciler) CreateOrUpdateBudget(ctx context.Context, userID string, req BudgetRequest) (Budget, error) {
	if !req.Category.Valid() {
		return Budget{}, appErrors.New(appErrors.ErrInvalidInput, "Invalid category: %q", req.Category)
	}
	ym, err := NewYearMonth(req.Year, req.Month)
	if err != nil {
		return Budget{}, appErrors.New(appErrors.ErrInvalidInput, "Invalid budget month: %v", err)
	}
	if !req.Amount.HasValidScale() {
		return Budget{}, appErrors.New(appErrors.ErrInvalidInput, "Budget amount can have at most %d decimal places.", money.Scale)
	}

	now := r.clock().UTC()
	saved, err := r.upsertBudget(ctx, userID, req, ym, now)
	if errors.Is(err, appErrors.Conflict) {
		// A concurrent upsert created the row first; this attempt finds it.
		saved, err = r.upsertBudget(ctx, userID, req, ym, now)
	}
	if err != nil {
		return Budget{}, err
	}
	return saved, nil
}

func (r *BudgetReconciler) upsertBudget(ctx context.Context, userID string, req BudgetRequest, ym YearMonth, now time.Time) (Budget, error) {
	var saved Budget
	err := r.storage.Update(ctx, func(repo Repository) error {
		if _, err := repo.GetUserByID(ctx, userID); err != nil {
			return err
		}

		existing, err := repo.FindBudget(ctx, userID, req.Category, ym)
		switch {
		case err == nil:
			existing.Amount = req.Amount
			existing.UpdatedAt = now
			saved = existing
			return repo.UpdateBudget(ctx, existing)
		case errors.Is(err, appErrors.NotFound):
			saved = Budget{
				ID:        uuid.New().String(),
				UserID:    userID,
				Category:  req.Category,
				Month:     ym,
				Amount:    req.Amount,
				CreatedAt: now,
				UpdatedAt: now,
			}
			return repo.SaveBudget(ctx, saved)
		default:
			return err
		}
	})
	if err != nil {
		return Budget{}, err
	}
	return saved, nil
}

func (r *BudgetReconciler) DeleteBudget(ctx context.Context, budgetID string, userID string) error {
	return r.storage.Update(ctx, func(repo Repository) error {
		b, err := repo.GetBudgetByID(ctx, budgetID)
		if err != nil {
			return err
		}
		if err := r.guard.CheckBudget(b, userID); err != nil {
			return err
		}
		return repo.DeleteBudget(ctx, budgetID)
	})
}
