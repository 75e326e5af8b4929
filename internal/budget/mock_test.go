package budget

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	appErrors "github.com/fatali-fataliyev/wallet_tracker/customErrors"
	"github.com/fatali-fataliyev/wallet_tracker/internal/auth"
	"github.com/fatali-fataliyev/wallet_tracker/internal/money"
)

// MockStorage is a map backed Storage. Update works on a copy that is only
// kept when fn succeeds. Set failOn to make the named method fail, failOnce to
// make only its next call fail.
type MockStorage struct {
	mu       sync.Mutex
	data     *mockData
	failOn   map[string]error
	failOnce map[string]error
	views    int
}

type mockData struct {
	users         map[string]auth.User
	wallets       map[string]Wallet
	transactions  map[string]Transaction
	subscriptions map[string]Subscription
	budgets       map[string]Budget
}

func NewMockStorage() *MockStorage {
	return &MockStorage{
		data: &mockData{
			users:         map[string]auth.User{},
			wallets:       map[string]Wallet{},
			transactions:  map[string]Transaction{},
			subscriptions: map[string]Subscription{},
			budgets:       map[string]Budget{},
		},
		failOn:   map[string]error{},
		failOnce: map[string]error{},
	}
}

func cloneMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (d *mockData) clone() *mockData {
	return &mockData{
		users:         cloneMap(d.users),
		wallets:       cloneMap(d.wallets),
		transactions:  cloneMap(d.transactions),
		subscriptions: cloneMap(d.subscriptions),
		budgets:       cloneMap(d.budgets),
	}
}

func (m *MockStorage) GetStorageType() string {
	return "mock"
}

func (m *MockStorage) Update(ctx context.Context, fn func(repo Repository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	work := m.data.clone()
	if err := fn(&mockRepo{data: work, failOn: m.failOn, failOnce: m.failOnce}); err != nil {
		return err
	}
	m.data = work
	return nil
}

func (m *MockStorage) View(ctx context.Context, fn func(repo Repository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.views++
	return fn(&mockRepo{data: m.data.clone(), failOn: m.failOn, failOnce: m.failOnce})
}

// seed helpers

func (m *MockStorage) addUser(id string) auth.User {
	u := auth.User{ID: id, UserName: id, Email: id + "@mail.com"}
	m.data.users[id] = u
	return u
}

func (m *MockStorage) addWallet(userID string, balance string) Wallet {
	b := money.MustParse(balance)
	w := Wallet{
		ID:             "wallet-" + userID,
		UserID:         userID,
		Name:           DefaultWalletName,
		Currency:       DefaultWalletCurrency,
		OpeningBalance: b,
		Balance:        b,
	}
	m.data.wallets[w.ID] = w
	return w
}

func (m *MockStorage) addTransaction(t Transaction) {
	m.data.transactions[t.ID] = t
}

func (m *MockStorage) wallet(id string) Wallet {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.wallets[id]
}

type mockRepo struct {
	data     *mockData
	failOn   map[string]error
	failOnce map[string]error
}

func (r *mockRepo) fail(method string) error {
	if err, ok := r.failOnce[method]; ok {
		delete(r.failOnce, method)
		return err
	}
	return r.failOn[method]
}

func notFound(what, id string) error {
	return appErrors.New(appErrors.ErrNotFound, "%s %s not found.", what, id)
}

func (r *mockRepo) SaveUser(ctx context.Context, user auth.User) error {
	if err := r.fail("SaveUser"); err != nil {
		return err
	}
	for _, u := range r.data.users {
		if u.UserName == user.UserName || u.Email == user.Email {
			return appErrors.New(appErrors.ErrConflict, "user already exists")
		}
	}
	r.data.users[user.ID] = user
	return nil
}

func (r *mockRepo) GetUserByID(ctx context.Context, userID string) (auth.User, error) {
	u, ok := r.data.users[userID]
	if !ok {
		return auth.User{}, notFound("user", userID)
	}
	return u, nil
}

func (r *mockRepo) ListUsers(ctx context.Context) ([]auth.User, error) {
	out := make([]auth.User, 0, len(r.data.users))
	for _, u := range r.data.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *mockRepo) SaveWallet(ctx context.Context, wallet Wallet) error {
	for _, w := range r.data.wallets {
		if w.UserID == wallet.UserID {
			return appErrors.New(appErrors.ErrConflict, "wallet already exists")
		}
	}
	r.data.wallets[wallet.ID] = wallet
	return nil
}

func (r *mockRepo) UpdateWallet(ctx context.Context, wallet Wallet) error {
	if err := r.fail("UpdateWallet"); err != nil {
		return err
	}
	r.data.wallets[wallet.ID] = wallet
	return nil
}

func (r *mockRepo) GetWalletByID(ctx context.Context, walletID string) (Wallet, error) {
	w, ok := r.data.wallets[walletID]
	if !ok {
		return Wallet{}, notFound("wallet", walletID)
	}
	return w, nil
}

func (r *mockRepo) GetWalletByUserID(ctx context.Context, userID string) (Wallet, error) {
	for _, w := range r.data.wallets {
		if w.UserID == userID {
			return w, nil
		}
	}
	return Wallet{}, notFound("wallet of user", userID)
}

func (r *mockRepo) LockWallet(ctx context.Context, walletID string) (Wallet, error) {
	return r.GetWalletByID(ctx, walletID)
}

func (r *mockRepo) SaveTransaction(ctx context.Context, t Transaction) error {
	if err := r.fail("SaveTransaction"); err != nil {
		return err
	}
	r.data.transactions[t.ID] = t
	return nil
}

func (r *mockRepo) GetTransactionByID(ctx context.Context, transactionID string) (Transaction, error) {
	t, ok := r.data.transactions[transactionID]
	if !ok {
		return Transaction{}, notFound("transaction", transactionID)
	}
	return t, nil
}

func (r *mockRepo) DeleteTransaction(ctx context.Context, transactionID string) error {
	delete(r.data.transactions, transactionID)
	return nil
}

func (r *mockRepo) ListTransactions(ctx context.Context, walletID string, from, to time.Time) ([]Transaction, error) {
	if err := r.fail("ListTransactions"); err != nil {
		return nil, err
	}
	out := make([]Transaction, 0)
	for _, t := range r.data.transactions {
		if t.WalletID == walletID && !t.CreatedAt.Before(from) && t.CreatedAt.Before(to) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *mockRepo) TopExpenseCategories(ctx context.Context, walletID string, limit int) ([]CategoryTotal, error) {
	all := make([]Transaction, 0)
	for _, t := range r.data.transactions {
		if t.WalletID == walletID {
			all = append(all, t)
		}
	}
	return RankExpenseTotals(SumExpensesByCategory(all), limit), nil
}

func (r *mockRepo) SaveSubscription(ctx context.Context, s Subscription) error {
	r.data.subscriptions[s.ID] = s
	return nil
}

func (r *mockRepo) UpdateSubscription(ctx context.Context, s Subscription) error {
	if err := r.fail("UpdateSubscription"); err != nil {
		return err
	}
	r.data.subscriptions[s.ID] = s
	return nil
}

func (r *mockRepo) GetSubscriptionByID(ctx context.Context, subscriptionID string) (Subscription, error) {
	s, ok := r.data.subscriptions[subscriptionID]
	if !ok {
		return Subscription{}, notFound("subscription", subscriptionID)
	}
	return s, nil
}

func (r *mockRepo) LockSubscription(ctx context.Context, subscriptionID string) (Subscription, error) {
	return r.GetSubscriptionByID(ctx, subscriptionID)
}

func (r *mockRepo) DeleteSubscription(ctx context.Context, subscriptionID string) error {
	delete(r.data.subscriptions, subscriptionID)
	return nil
}

func (r *mockRepo) ListSubscriptions(ctx context.Context, userID string) ([]Subscription, error) {
	out := make([]Subscription, 0)
	for _, s := range r.data.subscriptions {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiryOn.Before(out[j].ExpiryOn) })
	return out, nil
}

func (r *mockRepo) SaveBudget(ctx context.Context, b Budget) error {
	if err := r.fail("SaveBudget"); err != nil {
		return err
	}
	r.data.budgets[b.ID] = b
	return nil
}

func (r *mockRepo) UpdateBudget(ctx context.Context, b Budget) error {
	r.data.budgets[b.ID] = b
	return nil
}

func (r *mockRepo) GetBudgetByID(ctx context.Context, budgetID string) (Budget, error) {
	b, ok := r.data.budgets[budgetID]
	if !ok {
		return Budget{}, notFound("budget", budgetID)
	}
	return b, nil
}

func (r *mockRepo) FindBudget(ctx context.Context, userID string, category Category, month YearMonth) (Budget, error) {
	for _, b := range r.data.budgets {
		if b.UserID == userID && b.Category == category && b.Month == month {
			return b, nil
		}
	}
	return Budget{}, notFound("budget", fmt.Sprintf("%s/%s", category, month))
}

func (r *mockRepo) ListBudgets(ctx context.Context, userID string, month YearMonth) ([]Budget, error) {
	out := make([]Budget, 0)
	for _, b := range r.data.budgets {
		if b.UserID == userID && b.Month == month {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r *mockRepo) DeleteBudget(ctx context.Context, budgetID string) error {
	delete(r.data.budgets, budgetID)
	return nil
}

// RowLockStorage behaves like a database with row locks: every unit of work
// reads from the snapshot taken when it began, while LockWallet and
// LockSubscription block on the row and return its latest committed value.
// Only wallets, subscriptions and transactions written through the repo are
// committed.
type RowLockStorage struct {
	mu        sync.Mutex
	committed *mockData
	rows      sync.Map
}

func NewRowLockStorage(seed *MockStorage) *RowLockStorage {
	return &RowLockStorage{committed: seed.data.clone()}
}

func (s *RowLockStorage) GetStorageType() string {
	return "rowlock"
}

func (s *RowLockStorage) snapshot() *mockData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.committed.clone()
}

func (s *RowLockStorage) Update(ctx context.Context, fn func(repo Repository) error) error {
	repo := &rowLockRepo{
		mockRepo:      &mockRepo{data: s.snapshot(), failOn: map[string]error{}, failOnce: map[string]error{}},
		store:         s,
		held:          map[string]*sync.Mutex{},
		wallets:       map[string]bool{},
		subscriptions: map[string]bool{},
		transactions:  map[string]bool{},
	}
	defer repo.release()
	if err := fn(repo); err != nil {
		return err
	}
	repo.commit()
	return nil
}

func (s *RowLockStorage) View(ctx context.Context, fn func(repo Repository) error) error {
	return fn(&mockRepo{data: s.snapshot(), failOn: map[string]error{}, failOnce: map[string]error{}})
}

func (s *RowLockStorage) wallet(id string) Wallet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.committed.wallets[id]
}

type rowLockRepo struct {
	*mockRepo
	store         *RowLockStorage
	held          map[string]*sync.Mutex
	wallets       map[string]bool
	subscriptions map[string]bool
	transactions  map[string]bool
}

func (r *rowLockRepo) lock(key string) {
	if _, ok := r.held[key]; ok {
		return
	}
	m, _ := r.store.rows.LoadOrStore(key, &sync.Mutex{})
	row := m.(*sync.Mutex)
	row.Lock()
	r.held[key] = row
}

func (r *rowLockRepo) release() {
	for _, row := range r.held {
		row.Unlock()
	}
}

func (r *rowLockRepo) commit() {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for id := range r.wallets {
		r.store.committed.wallets[id] = r.data.wallets[id]
	}
	for id := range r.subscriptions {
		r.store.committed.subscriptions[id] = r.data.subscriptions[id]
	}
	for id := range r.transactions {
		r.store.committed.transactions[id] = r.data.transactions[id]
	}
}

func (r *rowLockRepo) LockWallet(ctx context.Context, walletID string) (Wallet, error) {
	r.lock("wallet/" + walletID)
	r.store.mu.Lock()
	w, ok := r.store.committed.wallets[walletID]
	r.store.mu.Unlock()
	if !ok {
		return Wallet{}, notFound("wallet", walletID)
	}
	r.data.wallets[walletID] = w
	return w, nil
}

func (r *rowLockRepo) LockSubscription(ctx context.Context, subscriptionID string) (Subscription, error) {
	r.lock("subscription/" + subscriptionID)
	r.store.mu.Lock()
	sub, ok := r.store.committed.subscriptions[subscriptionID]
	r.store.mu.Unlock()
	if !ok {
		return Subscription{}, notFound("subscription", subscriptionID)
	}
	r.data.subscriptions[subscriptionID] = sub
	return sub, nil
}

func (r *rowLockRepo) UpdateWallet(ctx context.Context, wallet Wallet) error {
	r.wallets[wallet.ID] = true
	return r.mockRepo.UpdateWallet(ctx, wallet)
}

func (r *rowLockRepo) UpdateSubscription(ctx context.Context, s Subscription) error {
	r.subscriptions[s.ID] = true
	return r.mockRepo.UpdateSubscription(ctx, s)
}

func (r *rowLockRepo) SaveTransaction(ctx context.Context, t Transaction) error {
	r.transactions[t.ID] = true
	return r.mockRepo.SaveTransaction(ctx, t)
}

type recordingNotifier struct {
	mu    sync.Mutex
	sent  []Notification
	failF func(Notification) error
}

func (n *recordingNotifier) Notify(ctx context.Context, msg Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failF != nil {
		if err := n.failF(msg); err != nil {
			return err
		}
	}
	n.sent = append(n.sent, msg)
	return nil
}

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}
