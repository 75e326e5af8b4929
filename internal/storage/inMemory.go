package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	appErrors "github.com/fatali-fataliyev/wallet_tracker/customErrors"
	"github.com/fatali-fataliyev/wallet_tracker/internal/auth"
	"github.com/fatali-fataliyev/wallet_tracker/internal/budget"
)

// InMemoryStorage keeps everything in maps. Update works on a copy of the
// state that replaces it only when fn succeeds; writers are serialised and
// readers share the committed state.
type InMemoryStorage struct {
	mu    sync.RWMutex
	state *memoryState
}

type memoryState struct {
	users         map[string]auth.User
	wallets       map[string]budget.Wallet
	transactions  map[string]budget.Transaction
	subscriptions map[string]budget.Subscription
	budgets       map[string]budget.Budget
}

func NewInMemoryStorage() *InMemoryStorage {
	return &InMemoryStorage{
		state: &memoryState{
			users:         make(map[string]auth.User),
			wallets:       make(map[string]budget.Wallet),
			transactions:  make(map[string]budget.Transaction),
			subscriptions: make(map[string]budget.Subscription),
			budgets:       make(map[string]budget.Budget),
		},
	}
}

func (inMem *InMemoryStorage) GetStorageType() string {
	return TypeMemory
}

func (inMem *InMemoryStorage) Update(ctx context.Context, fn func(repo budget.Repository) error) error {
	inMem.mu.Lock()
	defer inMem.mu.Unlock()

	work := inMem.state.clone()
	if err := fn(&memoryRepo{state: work}); err != nil {
		return err
	}
	inMem.state = work
	return nil
}

func (inMem *InMemoryStorage) View(ctx context.Context, fn func(repo budget.Repository) error) error {
	inMem.mu.RLock()
	defer inMem.mu.RUnlock()
	return fn(&memoryRepo{state: inMem.state, readOnly: true})
}

func copyMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (s *memoryState) clone() *memoryState {
	return &memoryState{
		users:         copyMap(s.users),
		wallets:       copyMap(s.wallets),
		transactions:  copyMap(s.transactions),
		subscriptions: copyMap(s.subscriptions),
		budgets:       copyMap(s.budgets),
	}
}

type memoryRepo struct {
	state    *memoryState
	readOnly bool
}

func (r *memoryRepo) writable() error {
	if r.readOnly {
		return internalError("Write attempted in a read-only view.")
	}
	return nil
}

func conflict(msg string) error {
	return appErrors.ErrorResponse{
		Code:    appErrors.ErrConflict,
		Message: msg,
	}
}

func (r *memoryRepo) SaveUser(ctx context.Context, user auth.User) error {
	if err := r.writable(); err != nil {
		return err
	}
	for _, u := range r.state.users {
		if u.ID == user.ID || u.UserName == user.UserName || u.Email == user.Email {
			return conflict("Username or email already taken.")
		}
	}
	r.state.users[user.ID] = user
	return nil
}

func (r *memoryRepo) GetUserByID(ctx context.Context, userID string) (auth.User, error) {
	u, ok := r.state.users[userID]
	if !ok {
		return auth.User{}, notFound("User not found.")
	}
	return u, nil
}

func (r *memoryRepo) ListUsers(ctx context.Context) ([]auth.User, error) {
	users := make([]auth.User, 0, len(r.state.users))
	for _, u := range r.state.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (r *memoryRepo) SaveWallet(ctx context.Context, wallet budget.Wallet) error {
	if err := r.writable(); err != nil {
		return err
	}
	if _, ok := r.state.users[wallet.UserID]; !ok {
		return internalError(fmt.Sprintf("Wallet owner %s does not exist.", wallet.UserID))
	}
	for _, w := range r.state.wallets {
		if w.ID == wallet.ID || w.UserID == wallet.UserID {
			return conflict("The user already has a wallet.")
		}
	}
	r.state.wallets[wallet.ID] = wallet
	return nil
}

func (r *memoryRepo) UpdateWallet(ctx context.Context, wallet budget.Wallet) error {
	if err := r.writable(); err != nil {
		return err
	}
	current, ok := r.state.wallets[wallet.ID]
	if !ok {
		return notFound("Wallet not found.")
	}
	// Owner, opening balance and creation time are fixed at creation.
	wallet.UserID = current.UserID
	wallet.OpeningBalance = current.OpeningBalance
	wallet.CreatedAt = current.CreatedAt
	r.state.wallets[wallet.ID] = wallet
	return nil
}

func (r *memoryRepo) GetWalletByID(ctx context.Context, walletID string) (budget.Wallet, error) {
	w, ok := r.state.wallets[walletID]
	if !ok {
		return budget.Wallet{}, notFound("Wallet not found.")
	}
	return w, nil
}

func (r *memoryRepo) GetWalletByUserID(ctx context.Context, userID string) (budget.Wallet, error) {
	for _, w := range r.state.wallets {
		if w.UserID == userID {
			return w, nil
		}
	}
	return budget.Wallet{}, notFound("Wallet not found.")
}

// LockWallet is a plain read; Update already holds the store's write lock.
func (r *memoryRepo) LockWallet(ctx context.Context, walletID string) (budget.Wallet, error) {
	return r.GetWalletByID(ctx, walletID)
}

func (r *memoryRepo) SaveTransaction(ctx context.Context, t budget.Transaction) error {
	if err := r.writable(); err != nil {
		return err
	}
	if _, ok := r.state.wallets[t.WalletID]; !ok {
		return internalError(fmt.Sprintf("Wallet %s does not exist.", t.WalletID))
	}
	if _, ok := r.state.transactions[t.ID]; ok {
		return internalError(fmt.Sprintf("Transaction %s already exists.", t.ID))
	}
	r.state.transactions[t.ID] = t
	return nil
}

func (r *memoryRepo) GetTransactionByID(ctx context.Context, transactionID string) (budget.Transaction, error) {
	t, ok := r.state.transactions[transactionID]
	if !ok {
		return budget.Transaction{}, notFound("Transaction not found.")
	}
	return t, nil
}

func (r *memoryRepo) DeleteTransaction(ctx context.Context, transactionID string) error {
	if err := r.writable(); err != nil {
		return err
	}
	if _, ok := r.state.transactions[transactionID]; !ok {
		return notFound("Transaction not found.")
	}
	delete(r.state.transactions, transactionID)
	return nil
}

func (r *memoryRepo) walletTransactions(walletID string) []budget.Transaction {
	out := make([]budget.Transaction, 0)
	for _, t := range r.state.transactions {
		if t.WalletID == walletID {
			out = append(out, t)
		}
	}
	return out
}

func (r *memoryRepo) ListTransactions(ctx context.Context, walletID string, from, to time.Time) ([]budget.Transaction, error) {
	out := make([]budget.Transaction, 0)
	for _, t := range r.walletTransactions(walletID) {
		if !t.CreatedAt.Before(from) && t.CreatedAt.Before(to) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *memoryRepo) TopExpenseCategories(ctx context.Context, walletID string, limit int) ([]budget.CategoryTotal, error) {
	totals := budget.SumExpensesByCategory(r.walletTransactions(walletID))
	return budget.RankExpenseTotals(totals, limit), nil
}

func (r *memoryRepo) SaveSubscription(ctx context.Context, s budget.Subscription) error {
	if err := r.writable(); err != nil {
		return err
	}
	if _, ok := r.state.users[s.UserID]; !ok {
		return internalError(fmt.Sprintf("Subscription owner %s does not exist.", s.UserID))
	}
	r.state.subscriptions[s.ID] = s
	return nil
}

func (r *memoryRepo) UpdateSubscription(ctx context.Context, s budget.Subscription) error {
	if err := r.writable(); err != nil {
		return err
	}
	if _, ok := r.state.subscriptions[s.ID]; !ok {
		return notFound("Subscription not found.")
	}
	r.state.subscriptions[s.ID] = s
	return nil
}

func (r *memoryRepo) GetSubscriptionByID(ctx context.Context, subscriptionID string) (budget.Subscription, error) {
	s, ok := r.state.subscriptions[subscriptionID]
	if !ok {
		return budget.Subscription{}, notFound("Subscription not found.")
	}
	return s, nil
}

// LockSubscription is a plain read; Update already holds the store's write lock.
func (r *memoryRepo) LockSubscription(ctx context.Context, subscriptionID string) (budget.Subscription, error) {
	return r.GetSubscriptionByID(ctx, subscriptionID)
}

func (r *memoryRepo) DeleteSubscription(ctx context.Context, subscriptionID string) error {
	if err := r.writable(); err != nil {
		return err
	}
	if _, ok := r.state.subscriptions[subscriptionID]; !ok {
		return notFound("Subscription not found.")
	}
	delete(r.state.subscriptions, subscriptionID)
	return nil
}

func (r *memoryRepo) ListSubscriptions(ctx context.Context, userID string) ([]budget.Subscription, error) {
	out := make([]budget.Subscription, 0)
	for _, s := range r.state.subscriptions {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ExpiryOn.Equal(out[j].ExpiryOn) {
			return out[i].ExpiryOn.Before(out[j].ExpiryOn)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *memoryRepo) SaveBudget(ctx context.Context, b budget.Budget) error {
	if err := r.writable(); err != nil {
		return err
	}
	for _, existing := range r.state.budgets {
		if existing.UserID == b.UserID && existing.Category == b.Category && existing.Month == b.Month {
			return conflict("A budget for this category and month already exists.")
		}
	}
	r.state.budgets[b.ID] = b
	return nil
}

func (r *memoryRepo) UpdateBudget(ctx context.Context, b budget.Budget) error {
	if err := r.writable(); err != nil {
		return err
	}
	current, ok := r.state.budgets[b.ID]
	if !ok {
		return notFound("Budget not found.")
	}
	current.Amount = b.Amount
	current.UpdatedAt = b.UpdatedAt
	r.state.budgets[b.ID] = current
	return nil
}

func (r *memoryRepo) GetBudgetByID(ctx context.Context, budgetID string) (budget.Budget, error) {
	b, ok := r.state.budgets[budgetID]
	if !ok {
		return budget.Budget{}, notFound("Budget not found.")
	}
	return b, nil
}

func (r *memoryRepo) FindBudget(ctx context.Context, userID string, category budget.Category, month budget.YearMonth) (budget.Budget, error) {
	for _, b := range r.state.budgets {
		if b.UserID == userID && b.Category == category && b.Month == month {
			return b, nil
		}
	}
	return budget.Budget{}, notFound(fmt.Sprintf("No %s budget for %s.", category, month))
}

func (r *memoryRepo) ListBudgets(ctx context.Context, userID string, month budget.YearMonth) ([]budget.Budget, error) {
	out := make([]budget.Budget, 0)
	for _, b := range r.state.budgets {
		if b.UserID == userID && b.Month == month {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r *memoryRepo) DeleteBudget(ctx context.Context, budgetID string) error {
	if err := r.writable(); err != nil {
		return err
	}
	if _, ok := r.state.budgets[budgetID]; !ok {
		return notFound("Budget not found.")
	}
	delete(r.state.budgets, budgetID)
	return nil
}
