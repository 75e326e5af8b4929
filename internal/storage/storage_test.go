package storage

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	appErrors "github.com/fatali-fataliyev/wallet_tracker/customErrors"
	"github.com/fatali-fataliyev/wallet_tracker/internal/auth"
	"github.com/fatali-fataliyev/wallet_tracker/internal/budget"
	"github.com/fatali-fataliyev/wallet_tracker/internal/money"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	auth.PasswordCost = bcrypt.MinCost
}

var at = time.Date(2026, time.October, 16, 9, 30, 0, 0, time.UTC)

type storageFactory func(t *testing.T) budget.Storage

func factories() map[string]storageFactory {
	return map[string]storageFactory{
		TypeMemory: func(t *testing.T) budget.Storage {
			return NewInMemoryStorage()
		},
		TypeSQLite: func(t *testing.T) budget.Storage {
			s, err := OpenSQLite(MemoryDSN)
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
	}
}

func forEachStorage(t *testing.T, test func(t *testing.T, s budget.Storage)) {
	for name, factory := range factories() {
		t.Run(name, func(t *testing.T) {
			test(t, factory(t))
		})
	}
}

func seedUser(t *testing.T, s budget.Storage, id string, balance string) budget.Wallet {
	t.Helper()
	b := money.MustParse(balance)
	wallet := budget.Wallet{
		ID:             "wallet-" + id,
		UserID:         id,
		Name:           budget.DefaultWalletName,
		Currency:       budget.DefaultWalletCurrency,
		OpeningBalance: b,
		Income:         money.Zero,
		Expense:        money.Zero,
		Balance:        b,
		CreatedAt:      at,
		UpdatedAt:      at,
	}
	err := s.Update(context.Background(), func(repo budget.Repository) error {
		if err := repo.SaveUser(context.Background(), auth.User{ID: id, UserName: id, Email: id + "@mail.com", PasswordHashed: "x", CreatedAt: at}); err != nil {
			return err
		}
		return repo.SaveWallet(context.Background(), wallet)
	})
	require.NoError(t, err)
	return wallet
}

func TestUsersAndWallets(t *testing.T) {
	ctx := context.Background()
	forEachStorage(t, func(t *testing.T, s budget.Storage) {
		wallet := seedUser(t, s, "john", "100")

		err := s.View(ctx, func(repo budget.Repository) error {
			user, err := repo.GetUserByID(ctx, "john")
			require.NoError(t, err)
			require.Equal(t, "john@mail.com", user.Email)
			require.True(t, at.Equal(user.CreatedAt))

			got, err := repo.GetWalletByUserID(ctx, "john")
			require.NoError(t, err)
			require.Equal(t, wallet.ID, got.ID)
			require.Equal(t, "100.00", got.Balance.String())
			require.True(t, got.Balanced())

			_, err = repo.GetUserByID(ctx, "nobody")
			require.True(t, errors.Is(err, appErrors.NotFound))
			_, err = repo.GetWalletByID(ctx, "nope")
			require.True(t, errors.Is(err, appErrors.NotFound))
			return nil
		})
		require.NoError(t, err)

		// Same username is a conflict, and nothing of the unit is kept.
		err = s.Update(ctx, func(repo budget.Repository) error {
			return repo.SaveUser(ctx, auth.User{ID: "other", UserName: "john", Email: "other@mail.com", PasswordHashed: "x", CreatedAt: at})
		})
		require.Equal(t, appErrors.ErrConflict, appErrors.CodeOf(err))

		err = s.Update(ctx, func(repo budget.Repository) error {
			w := wallet
			w.ID = "second"
			return repo.SaveWallet(ctx, w)
		})
		require.Equal(t, appErrors.ErrConflict, appErrors.CodeOf(err))

		err = s.View(ctx, func(repo budget.Repository) error {
			users, err := repo.ListUsers(ctx)
			require.NoError(t, err)
			require.Len(t, users, 1)
			return nil
		})
		require.NoError(t, err)
	})
}

func TestUpdateRollsBack(t *testing.T) {
	ctx := context.Background()
	forEachStorage(t, func(t *testing.T, s budget.Storage) {
		wallet := seedUser(t, s, "john", "100")
		boom := errors.New("boom")

		err := s.Update(ctx, func(repo budget.Repository) error {
			w, err := repo.LockWallet(ctx, wallet.ID)
			require.NoError(t, err)
			w.Expense = money.FromInt(40)
			w.Balance = money.FromInt(60)
			require.NoError(t, repo.UpdateWallet(ctx, w))
			require.NoError(t, repo.SaveTransaction(ctx, budget.Transaction{ID: "t1", WalletID: wallet.ID, Type: budget.Expense, Amount: money.FromInt(40), Category: budget.Food, CreatedAt: at}))
			return boom
		})
		require.ErrorIs(t, err, boom)

		err = s.View(ctx, func(repo budget.Repository) error {
			w, err := repo.GetWalletByID(ctx, wallet.ID)
			require.NoError(t, err)
			require.Equal(t, "100.00", w.Balance.String())
			_, err = repo.GetTransactionByID(ctx, "t1")
			require.True(t, errors.Is(err, appErrors.NotFound))
			return nil
		})
		require.NoError(t, err)
	})
}

func TestTransactionsQueries(t *testing.T) {
	ctx := context.Background()
	october := budget.YearMonth{Year: 2026, Month: time.October}

	forEachStorage(t, func(t *testing.T, s budget.Storage) {
		wallet := seedUser(t, s, "john", "1000")
		other := seedUser(t, s, "mary", "1000")

		txs := []budget.Transaction{
			{ID: "a", WalletID: wallet.ID, Type: budget.Expense, Amount: money.MustParse("10.10"), Category: budget.Food, Description: "lunch", CreatedAt: october.Start()},
			{ID: "b", WalletID: wallet.ID, Type: budget.Expense, Amount: money.MustParse("20.00"), Category: budget.Transport, CreatedAt: october.Start().Add(time.Hour)},
			{ID: "c", WalletID: wallet.ID, Type: budget.Expense, Amount: money.MustParse("20.00"), Category: budget.Food, CreatedAt: october.End().Add(-time.Second)},
			{ID: "d", WalletID: wallet.ID, Type: budget.Income, Amount: money.MustParse("500"), Category: budget.Other, CreatedAt: october.Start().Add(2 * time.Hour)},
			{ID: "e", WalletID: wallet.ID, Type: budget.Expense, Amount: money.MustParse("5"), Category: budget.Health, CreatedAt: october.End()},
			{ID: "f", WalletID: other.ID, Type: budget.Expense, Amount: money.MustParse("99"), Category: budget.Travel, CreatedAt: october.Start()},
		}
		err := s.Update(ctx, func(repo budget.Repository) error {
			for _, txn := range txs {
				if err := repo.SaveTransaction(ctx, txn); err != nil {
					return err
				}
			}
			return nil
		})
		require.NoError(t, err)

		err = s.View(ctx, func(repo budget.Repository) error {
			list, err := repo.ListTransactions(ctx, wallet.ID, october.Start(), october.End())
			require.NoError(t, err)
			ids := make([]string, 0, len(list))
			for _, txn := range list {
				ids = append(ids, txn.ID)
			}
			require.Equal(t, []string{"c", "d", "b", "a"}, ids)
			require.Equal(t, "lunch", list[3].Description)
			require.Equal(t, "10.10", list[3].Amount.String())
			require.True(t, october.Start().Equal(list[3].CreatedAt))

			top, err := repo.TopExpenseCategories(ctx, wallet.ID, 2)
			require.NoError(t, err)
			require.Len(t, top, 2)
			require.Equal(t, budget.Food, top[0].Category)
			require.Equal(t, "30.10", top[0].Amount.String())
			require.Equal(t, budget.Transport, top[1].Category)

			all, err := repo.TopExpenseCategories(ctx, wallet.ID, 0)
			require.NoError(t, err)
			require.Len(t, all, 3)
			require.Equal(t, budget.Health, all[2].Category)
			return nil
		})
		require.NoError(t, err)

		err = s.Update(ctx, func(repo budget.Repository) error {
			return repo.DeleteTransaction(ctx, "a")
		})
		require.NoError(t, err)
		err = s.Update(ctx, func(repo budget.Repository) error {
			return repo.DeleteTransaction(ctx, "a")
		})
		require.True(t, errors.Is(err, appErrors.NotFound))
	})
}

func TestTopExpenseCategoriesTies(t *testing.T) {
	ctx := context.Background()
	forEachStorage(t, func(t *testing.T, s budget.Storage) {
		wallet := seedUser(t, s, "john", "1000")
		err := s.Update(ctx, func(repo budget.Repository) error {
			for i, c := range []budget.Category{budget.Other, budget.Gifts, budget.Housing} {
				txn := budget.Transaction{ID: string(c), WalletID: wallet.ID, Type: budget.Expense, Amount: money.FromInt(10), Category: c, CreatedAt: at.Add(time.Duration(i) * time.Minute)}
				if err := repo.SaveTransaction(ctx, txn); err != nil {
					return err
				}
			}
			return nil
		})
		require.NoError(t, err)

		err = s.View(ctx, func(repo budget.Repository) error {
			top, err := repo.TopExpenseCategories(ctx, wallet.ID, 0)
			require.NoError(t, err)
			require.Equal(t, []budget.Category{budget.Housing, budget.Gifts, budget.Other},
				[]budget.Category{top[0].Category, top[1].Category, top[2].Category})
			return nil
		})
		require.NoError(t, err)
	})
}

func TestSubscriptionsQueries(t *testing.T) {
	ctx := context.Background()
	forEachStorage(t, func(t *testing.T, s budget.Storage) {
		seedUser(t, s, "john", "100")
		later := budget.Subscription{ID: "later", UserID: "john", Name: "Video", Price: money.MustParse("9.99"), Period: budget.Monthly, Type: budget.DefaultSubscription, ExpiryOn: budget.StartOfDay(at.AddDate(0, 1, 0)), CreatedAt: at}
		sooner := budget.Subscription{ID: "sooner", UserID: "john", Name: "Music", Price: money.MustParse("15.99"), Period: budget.Yearly, Type: budget.PremiumSubscription, ExpiryOn: budget.StartOfDay(at.AddDate(0, 0, 2)), CreatedAt: at}

		err := s.Update(ctx, func(repo budget.Repository) error {
			if err := repo.SaveSubscription(ctx, later); err != nil {
				return err
			}
			return repo.SaveSubscription(ctx, sooner)
		})
		require.NoError(t, err)

		paid := budget.StartOfDay(at)
		sooner.PaidDate = &paid
		require.NoError(t, s.Update(ctx, func(repo budget.Repository) error {
			return repo.UpdateSubscription(ctx, sooner)
		}))

		err = s.View(ctx, func(repo budget.Repository) error {
			subs, err := repo.ListSubscriptions(ctx, "john")
			require.NoError(t, err)
			require.Len(t, subs, 2)
			require.Equal(t, "sooner", subs[0].ID)
			require.NotNil(t, subs[0].PaidDate)
			require.True(t, paid.Equal(*subs[0].PaidDate))
			require.Equal(t, "15.99", subs[0].Price.String())
			require.Equal(t, budget.Yearly, subs[0].Period)
			require.Nil(t, subs[1].PaidDate)
			require.True(t, later.ExpiryOn.Equal(subs[1].ExpiryOn))
			return nil
		})
		require.NoError(t, err)

		require.NoError(t, s.Update(ctx, func(repo budget.Repository) error {
			return repo.DeleteSubscription(ctx, "later")
		}))
		err = s.View(ctx, func(repo budget.Repository) error {
			_, err := repo.GetSubscriptionByID(ctx, "later")
			require.True(t, errors.Is(err, appErrors.NotFound))
			return nil
		})
		require.NoError(t, err)
	})
}

func TestBudgetsQueries(t *testing.T) {
	ctx := context.Background()
	october := budget.YearMonth{Year: 2026, Month: time.October}

	forEachStorage(t, func(t *testing.T, s budget.Storage) {
		seedUser(t, s, "john", "100")
		b := budget.Budget{ID: "b1", UserID: "john", Category: budget.Food, Month: october, Amount: money.FromInt(300), CreatedAt: at, UpdatedAt: at}
		require.NoError(t, s.Update(ctx, func(repo budget.Repository) error {
			return repo.SaveBudget(ctx, b)
		}))

		dup := b
		dup.ID = "b2"
		err := s.Update(ctx, func(repo budget.Repository) error {
			return repo.SaveBudget(ctx, dup)
		})
		require.Equal(t, appErrors.ErrConflict, appErrors.CodeOf(err))

		b.Amount = money.MustParse("250.50")
		b.UpdatedAt = at.Add(time.Hour)
		require.NoError(t, s.Update(ctx, func(repo budget.Repository) error {
			return repo.UpdateBudget(ctx, b)
		}))

		err = s.View(ctx, func(repo budget.Repository) error {
			found, err := repo.FindBudget(ctx, "john", budget.Food, october)
			require.NoError(t, err)
			require.Equal(t, "b1", found.ID)
			require.Equal(t, october, found.Month)
			require.Equal(t, "250.50", found.Amount.String())

			_, err = repo.FindBudget(ctx, "john", budget.Food, october.Next())
			require.True(t, errors.Is(err, appErrors.NotFound))

			list, err := repo.ListBudgets(ctx, "john", october)
			require.NoError(t, err)
			require.Len(t, list, 1)
			return nil
		})
		require.NoError(t, err)

		require.NoError(t, s.Update(ctx, func(repo budget.Repository) error {
			return repo.DeleteBudget(ctx, "b1")
		}))
		err = s.Update(ctx, func(repo budget.Repository) error {
			return repo.DeleteBudget(ctx, "b1")
		})
		require.True(t, errors.Is(err, appErrors.NotFound))
	})
}

func TestConcurrentExpenses(t *testing.T) {
	ctx := context.Background()
	forEachStorage(t, func(t *testing.T, s budget.Storage) {
		tracker := budget.NewBudgetTracker(s)
		user, wallet, err := tracker.RegisterUser(ctx, auth.NewUser{UserName: "john", PasswordPlain: "secret", Email: "john@mail.com"})
		require.NoError(t, err)
		require.Equal(t, "100.00", wallet.Balance.String())

		var succeeded, rejected atomic.Int64
		var wg sync.WaitGroup
		for g := 0; g < 50; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 10; i++ {
					_, err := tracker.ProcessTransaction(ctx, user.ID, budget.TransactionRequest{Type: budget.Expense, Amount: money.FromInt(10), Category: budget.Food})
					switch {
					case err == nil:
						succeeded.Add(1)
					case errors.Is(err, appErrors.InsufficientFunds):
						rejected.Add(1)
					default:
						t.Errorf("unexpected error: %v", err)
					}
				}
			}()
		}
		wg.Wait()

		require.Equal(t, int64(10), succeeded.Load())
		require.Equal(t, int64(490), rejected.Load())

		got, err := tracker.GetWallet(ctx, user.ID)
		require.NoError(t, err)
		require.True(t, got.Balance.IsZero())
		require.Equal(t, "100.00", got.Expense.String())
		require.True(t, got.Balanced())

		summary, err := tracker.Aggregator.MonthSummary(ctx, got.ID, tracker.CurrentMonth())
		require.NoError(t, err)
		require.Len(t, summary.Transactions, 10)
	})
}

func TestConcurrentSubscriptionPayments(t *testing.T) {
	ctx := context.Background()
	forEachStorage(t, func(t *testing.T, s budget.Storage) {
		tracker := budget.NewBudgetTracker(s)
		user, _, err := tracker.RegisterUser(ctx, auth.NewUser{UserName: "john", PasswordPlain: "secret", Email: "john@mail.com"})
		require.NoError(t, err)
		sub, err := tracker.Subscriptions.CreateSubscription(ctx, user.ID, budget.SubscriptionRequest{
			Name:     "Music",
			Price:    money.MustParse("15.99"),
			Period:   budget.Monthly,
			Type:     budget.PremiumSubscription,
			ExpiryOn: tracker.CurrentMonth().Start().AddDate(0, 1, 0),
		})
		require.NoError(t, err)

		var paid, alreadyPaid atomic.Int64
		var wg sync.WaitGroup
		for g := 0; g < 20; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := tracker.PaySubscription(ctx, sub.ID, user.ID)
				switch {
				case err == nil:
					paid.Add(1)
				case errors.Is(err, appErrors.AlreadyPaid):
					alreadyPaid.Add(1)
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		require.Equal(t, int64(1), paid.Load())
		require.Equal(t, int64(19), alreadyPaid.Load())

		got, err := tracker.GetWallet(ctx, user.ID)
		require.NoError(t, err)
		require.Equal(t, "84.01", got.Balance.String())
		require.Equal(t, "15.99", got.Expense.String())
		require.True(t, got.Balanced())
	})
}

func TestTrackerEndToEnd(t *testing.T) {
	ctx := context.Background()
	forEachStorage(t, func(t *testing.T, s budget.Storage) {
		tracker := budget.NewBudgetTracker(s)
		user, _, err := tracker.RegisterUser(ctx, auth.NewUser{UserName: "john", PasswordPlain: "secret", Email: "john@mail.com"})
		require.NoError(t, err)

		_, err = tracker.ProcessTransaction(ctx, user.ID, budget.TransactionRequest{Type: budget.Income, Amount: money.MustParse("400"), Category: budget.Other})
		require.NoError(t, err)

		sub, err := tracker.Subscriptions.CreateSubscription(ctx, user.ID, budget.SubscriptionRequest{
			Name: "Music", Price: money.MustParse("15.99"), Period: budget.Monthly, Type: budget.PremiumSubscription, ExpiryOn: time.Now().AddDate(0, 0, 3),
		})
		require.NoError(t, err)

		paid, err := tracker.PaySubscription(ctx, sub.ID, user.ID)
		require.NoError(t, err)
		require.NotNil(t, paid.PaidDate)

		_, err = tracker.PaySubscription(ctx, sub.ID, user.ID)
		require.True(t, errors.Is(err, appErrors.AlreadyPaid))

		wallet, err := tracker.GetWallet(ctx, user.ID)
		require.NoError(t, err)
		require.Equal(t, "484.01", wallet.Balance.String())

		report, err := tracker.MonthlyReport(ctx, user.ID, tracker.CurrentMonth())
		require.NoError(t, err)
		require.Equal(t, "15.99", report.SubscriptionExpense.String())
		require.Len(t, report.PaidSubscriptions, 1)

		_, err = tracker.CreateOrUpdateBudget(ctx, user.ID, budget.BudgetRequest{Category: budget.Food, Amount: money.FromInt(50), Month: int(time.Now().UTC().Month()), Year: time.Now().UTC().Year()})
		require.NoError(t, err)
		page, err := tracker.GetBudgetPageData(ctx, user.ID, 0, 0)
		require.NoError(t, err)
		require.Len(t, page.Budgets, 1)
		require.Equal(t, "50.00", page.Budgets[0].Remaining.String())
	})
}

func TestOpenSQLiteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "wallet.db")

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	seedUser(t, s, "john", "100")
	require.NoError(t, s.Close())

	// Reopening finds the schema already migrated and the data in place.
	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()
	require.Equal(t, TypeSQLite, s.GetStorageType())
	err = s.View(context.Background(), func(repo budget.Repository) error {
		_, err := repo.GetWalletByUserID(context.Background(), "john")
		return err
	})
	require.NoError(t, err)
}

func TestMemoryViewIsReadOnly(t *testing.T) {
	s := NewInMemoryStorage()
	err := s.View(context.Background(), func(repo budget.Repository) error {
		return repo.SaveUser(context.Background(), auth.User{ID: "x", UserName: "x", Email: "x@mail.com"})
	})
	require.Equal(t, appErrors.ErrInternal, appErrors.CodeOf(err))
}
