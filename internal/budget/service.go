package budget

import (
	"context"
	"fmt"
	"strings"

	appErrors "github.com/fatali-fataliyev/wallet_tracker/customErrors"
	"github.com/fatali-fataliyev/wallet_tracker/internal/auth"
	"github.com/fatali-fataliyev/wallet_tracker/internal/contextutil"
	"github.com/fatali-fataliyev/wallet_tracker/internal/money"
	"github.com/fatali-fataliyev/wallet_tracker/logging"
	"github.com/google/uuid"
)

// BudgetTracker wires the ledger, aggregator, reconciler and subscription
// service over one Storage.
type BudgetTracker struct {
	storage     Storage
	StorageType string
	clock       Clock
	notifier    Notifier

	Ledger        *Ledger
	Aggregator    *CategoryAggregator
	Reconciler    *BudgetReconciler
	Subscriptions *SubscriptionService
}

type Option func(*BudgetTracker)

func WithClock(clock Clock) Option {
	return func(bt *BudgetTracker) { bt.clock = clock }
}

func WithNotifier(n Notifier) Option {
	return func(bt *BudgetTracker) { bt.notifier = n }
}

func WithExpiryNoticeDays(days int) Option {
	return func(bt *BudgetTracker) {
		if days > 0 {
			bt.Subscriptions.expiryNoticeDays = days
		}
	}
}

func NewBudgetTracker(s Storage, opts ...Option) *BudgetTracker {
	bt := &BudgetTracker{
		storage:     s,
		StorageType: s.GetStorageType(),
		clock:       systemClock,
	}
	bt.Subscriptions = NewSubscriptionService(s, nil, nil, DefaultExpiryNoticeDays)
	for _, opt := range opts {
		opt(bt)
	}

	bt.Ledger = NewLedger(s, bt.clock)
	bt.Aggregator = NewCategoryAggregator(s, bt.clock)
	bt.Reconciler = NewBudgetReconciler(s, bt.clock)
	bt.Subscriptions.clock = bt.clock
	bt.Subscriptions.notifier = bt.notifier
	return bt
}

// RegisterUser stores a new user together with the user's wallet, opened
// with OpeningBalance.
func (bt *BudgetTracker) RegisterUser(ctx context.Context, newUser auth.NewUser) (auth.User, Wallet, error) {
	newUser = newUser.Normalize()
	if err := newUser.ValidateUserFields(); err != nil {
		return auth.User{}, Wallet{}, err
	}

	hashedPassword, err := auth.HashPassword(newUser.PasswordPlain)
	if err != nil {
		return auth.User{}, Wallet{}, fmt.Errorf("failed to hash password: %w", err)
	}

	now := bt.clock().UTC()
	user := auth.User{
		ID:             uuid.New().String(),
		UserName:       newUser.UserName,
		Email:          newUser.Email,
		PasswordHashed: hashedPassword,
		CreatedAt:      now,
	}
	wallet := Wallet{
		ID:             uuid.New().String(),
		UserID:         user.ID,
		Name:           DefaultWalletName,
		Currency:       DefaultWalletCurrency,
		OpeningBalance: OpeningBalance,
		Income:         money.Zero,
		Expense:        money.Zero,
		Balance:        OpeningBalance,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = bt.storage.Update(ctx, func(repo Repository) error {
		if err := repo.SaveUser(ctx, user); err != nil {
			return err
		}
		return repo.SaveWallet(ctx, wallet)
	})
	if err != nil {
		return auth.User{}, Wallet{}, err
	}

	logging.Logger.Infof("[TraceID=%s] | registered user %s with wallet %s", contextutil.TraceIDFromContext(ctx), user.ID, wallet.ID)
	return user, wallet, nil
}

func (bt *BudgetTracker) GetUser(ctx context.Context, userID string) (auth.User, error) {
	var user auth.User
	err := bt.storage.View(ctx, func(repo Repository) error {
		u, err := repo.GetUserByID(ctx, userID)
		user = u
		return err
	})
	return user, err
}

func (bt *BudgetTracker) GetWallet(ctx context.Context, userID string) (Wallet, error) {
	return bt.Ledger.GetWallet(ctx, userID)
}

func (bt *BudgetTracker) ProcessTransaction(ctx context.Context, userID string, req TransactionRequest) (Transaction, error) {
	return bt.Ledger.ProcessTransaction(ctx, userID, req)
}

func (bt *BudgetTracker) DeleteTransaction(ctx context.Context, transactionID string, userID string) error {
	return bt.Ledger.DeleteTransaction(ctx, transactionID, userID)
}

func (bt *BudgetTracker) PaySubscription(ctx context.Context, subscriptionID string, userID string) (Subscription, error) {
	return bt.Ledger.PaySubscription(ctx, subscriptionID, userID)
}

// CurrentMonth is the month containing the tracker's now.
func (bt *BudgetTracker) CurrentMonth() YearMonth {
	return MonthOf(bt.clock())
}

// Dashboard summarises the user's wallet for month.
func (bt *BudgetTracker) Dashboard(ctx context.Context, userID string, month YearMonth) (Wallet, MonthSummary, error) {
	wallet, err := bt.Ledger.GetWallet(ctx, userID)
	if err != nil {
		return Wallet{}, MonthSummary{}, err
	}
	summary, err := bt.Aggregator.MonthSummary(ctx, wallet.ID, month)
	if err != nil {
		return Wallet{}, MonthSummary{}, err
	}
	return wallet, summary, nil
}

func (bt *BudgetTracker) TopCategories(ctx context.Context, userID string, n int) ([]CategoryShare, error) {
	wallet, err := bt.Ledger.GetWallet(ctx, userID)
	if err != nil {
		return nil, err
	}
	return bt.Aggregator.TopCategories(ctx, wallet.ID, n)
}

func (bt *BudgetTracker) AllExpenseCategories(ctx context.Context, userID string) ([]CategoryShare, error) {
	wallet, err := bt.Ledger.GetWallet(ctx, userID)
	if err != nil {
		return nil, err
	}
	return bt.Aggregator.AllExpenseCategories(ctx, wallet.ID)
}

func (bt *BudgetTracker) MonthlyReport(ctx context.Context, userID string, month YearMonth) (MonthlyReport, error) {
	return bt.Aggregator.MonthlyReport(ctx, userID, month)
}

func (bt *BudgetTracker) GetBudgetPageData(ctx context.Context, userID string, month, year int) (BudgetPageData, error) {
	return bt.Reconciler.GetBudgetPageData(ctx, userID, month, year)
}

func (bt *BudgetTracker) CreateOrUpdateBudget(ctx context.Context, userID string, req BudgetRequest) (Budget, error) {
	return bt.Reconciler.CreateOrUpdateBudget(ctx, userID, req)
}

func (bt *BudgetTracker) DeleteBudget(ctx context.Context, budgetID string, userID string) error {
	return bt.Reconciler.DeleteBudget(ctx, budgetID, userID)
}

// SendMonthlyReports hands every user with a wallet a text summary of month
// to the notifier. Failures are logged per user and skipped.
func (bt *BudgetTracker) SendMonthlyReports(ctx context.Context, month YearMonth) (int, error) {
	traceID := contextutil.TraceIDFromContext(ctx)
	if bt.notifier == nil {
		logging.Logger.Infof("[TraceID=%s] | no notifier configured, skipping monthly reports", traceID)
		return 0, nil
	}

	var users []auth.User
	err := bt.storage.View(ctx, func(repo Repository) error {
		var err error
		users, err = repo.ListUsers(ctx)
		return err
	})
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, u := range users {
		report, err := bt.Aggregator.MonthlyReport(ctx, u.ID, month)
		if err != nil {
			if appErrors.CodeOf(err) != appErrors.ErrNotFound {
				logging.Logger.Errorf("[TraceID=%s] | failed to build monthly report for user %s | Error: %v", traceID, u.ID, err)
			}
			continue
		}
		n := Notification{
			Kind:      NotificationMonthlyReport,
			UserID:    u.ID,
			Email:     u.Email,
			Subject:   "Monthly report " + month.Name(),
			Body:      reportBody(u.UserName, report),
			CreatedAt: bt.clock().UTC(),
		}
		if err := bt.notifier.Notify(ctx, n); err != nil {
			logging.Logger.Errorf("[TraceID=%s] | failed to send monthly report to user %s | Error: %v", traceID, u.ID, err)
			continue
		}
		sent++
	}
	return sent, nil
}

func reportBody(userName string, r MonthlyReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello, %s!\n\nYour report for %s:\n", userName, r.Month.Name())
	fmt.Fprintf(&b, "Income: %s %s\n", r.TotalIncome, r.Wallet.Currency)
	fmt.Fprintf(&b, "Expenses: %s %s (transactions %s, subscriptions %s)\n",
		r.TotalExpense, r.Wallet.Currency, r.TransactionExpense, r.SubscriptionExpense)
	for _, c := range r.Categories {
		fmt.Fprintf(&b, "- %s: %s (%d%%)\n", c.Category.Title(), c.Amount, c.Percent)
	}
	if r.BiggestExpense != nil {
		fmt.Fprintf(&b, "Biggest expense: %s in %s\n", r.BiggestExpense.Amount, r.BiggestExpenseCategoryName)
	}
	fmt.Fprintf(&b, "Balance: %s %s\n", r.Wallet.Balance, r.Wallet.Currency)
	return b.String()
}
