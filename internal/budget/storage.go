package budget

import (
	"context"
	"time"

	"github.com/fatali-fataliyev/wallet_tracker/internal/auth"
)

// Storage runs units of work against the persistence layer.
//
// Update runs fn in a single atomic transaction; if fn returns an error
// nothing it wrote is kept. View runs fn against one consistent read-only
// snapshot.
type Storage interface {
	Update(ctx context.Context, fn func(repo Repository) error) error
	View(ctx context.Context, fn func(repo Repository) error) error
	GetStorageType() string
}

// Repository is the set of queries available inside a unit of work. Lookups
// of unknown ids return a customErrors.ErrorResponse with code ErrNotFound.
type Repository interface {
	SaveUser(ctx context.Context, user auth.User) error
	GetUserByID(ctx context.Context, userID string) (auth.User, error)
	ListUsers(ctx context.Context) ([]auth.User, error)

	SaveWallet(ctx context.Context, wallet Wallet) error
	UpdateWallet(ctx context.Context, wallet Wallet) error
	GetWalletByID(ctx context.Context, walletID string) (Wallet, error)
	GetWalletByUserID(ctx context.Context, userID string) (Wallet, error)
	// LockWallet re-reads the wallet and holds its row lock until the unit
	// of work ends.
	LockWallet(ctx context.Context, walletID string) (Wallet, error)

	SaveTransaction(ctx context.Context, t Transaction) error
	GetTransactionByID(ctx context.Context, transactionID string) (Transaction, error)
	DeleteTransaction(ctx context.Context, transactionID string) error
	// ListTransactions returns the wallet's transactions with from <= CreatedAt < to,
	// most recent first.
	ListTransactions(ctx context.Context, walletID string, from, to time.Time) ([]Transaction, error)
	// TopExpenseCategories ranks all-time EXPENSE sums per category, largest
	// first, ties by category declaration order. limit <= 0 returns every
	// category. See RankExpenseTotals.
	TopExpenseCategories(ctx context.Context, walletID string, limit int) ([]CategoryTotal, error)

	SaveSubscription(ctx context.Context, s Subscription) error
	UpdateSubscription(ctx context.Context, s Subscription) error
	GetSubscriptionByID(ctx context.Context, subscriptionID string) (Subscription, error)
	// LockSubscription reads the latest committed subscription and holds its
	// row lock until the unit of work ends.
	LockSubscription(ctx context.Context, subscriptionID string) (Subscription, error)
	DeleteSubscription(ctx context.Context, subscriptionID string) error
	// ListSubscriptions returns every subscription of the user ordered by
	// expiry date ascending.
	ListSubscriptions(ctx context.Context, userID string) ([]Subscription, error)

	SaveBudget(ctx context.Context, b Budget) error
	UpdateBudget(ctx context.Context, b Budget) error
	GetBudgetByID(ctx context.Context, budgetID string) (Budget, error)
	FindBudget(ctx context.Context, userID string, category Category, month YearMonth) (Budget, error)
	ListBudgets(ctx context.Context, userID string, month YearMonth) ([]Budget, error)
	DeleteBudget(ctx context.Context, budgetID string) error
}

// Notifier delivers messages to users. Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Clock returns the current instant.
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}
