package storage

import (
	"database/sql"
	"time"

	"github.com/fatali-fataliyev/wallet_tracker/internal/auth"
	"github.com/fatali-fataliyev/wallet_tracker/internal/budget"
	"github.com/fatali-fataliyev/wallet_tracker/internal/money"
)

type dbUser struct {
	ID             string
	UserName       string
	Email          string
	HashedPassword string
	CreatedAt      time.Time
}

func (u dbUser) toUser() auth.User {
	return auth.User{
		ID:             u.ID,
		UserName:       u.UserName,
		Email:          u.Email,
		PasswordHashed: u.HashedPassword,
		CreatedAt:      u.CreatedAt.UTC(),
	}
}

type dbWallet struct {
	ID             string
	UserID         string
	Name           string
	Currency       string
	OpeningBalance money.Money
	Income         money.Money
	Expense        money.Money
	Balance        money.Money
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (w *dbWallet) fields() []any {
	return []any{&w.ID, &w.UserID, &w.Name, &w.Currency, &w.OpeningBalance, &w.Income, &w.Expense, &w.Balance, &w.CreatedAt, &w.UpdatedAt}
}

func (w dbWallet) toWallet() budget.Wallet {
	return budget.Wallet{
		ID:             w.ID,
		UserID:         w.UserID,
		Name:           w.Name,
		Currency:       w.Currency,
		OpeningBalance: w.OpeningBalance,
		Income:         w.Income,
		Expense:        w.Expense,
		Balance:        w.Balance,
		CreatedAt:      w.CreatedAt.UTC(),
		UpdatedAt:      w.UpdatedAt.UTC(),
	}
}

type dbTransaction struct {
	ID          string
	WalletID    string
	Type        string
	Amount      money.Money
	Category    string
	Description sql.NullString
	CreatedAt   time.Time
}

func (t *dbTransaction) fields() []any {
	return []any{&t.ID, &t.WalletID, &t.Type, &t.Amount, &t.Category, &t.Description, &t.CreatedAt}
}

func (t dbTransaction) toTransaction() budget.Transaction {
	return budget.Transaction{
		ID:          t.ID,
		WalletID:    t.WalletID,
		Type:        budget.TransactionType(t.Type),
		Amount:      t.Amount,
		Category:    budget.Category(t.Category),
		Description: t.Description.String,
		CreatedAt:   t.CreatedAt.UTC(),
	}
}

type dbSubscription struct {
	ID        string
	UserID    string
	Name      string
	Price     money.Money
	Period    string
	Type      string
	ExpiryOn  time.Time
	PaidDate  sql.NullTime
	CreatedAt time.Time
}

func (s *dbSubscription) fields() []any {
	return []any{&s.ID, &s.UserID, &s.Name, &s.Price, &s.Period, &s.Type, &s.ExpiryOn, &s.PaidDate, &s.CreatedAt}
}

func (s dbSubscription) toSubscription() budget.Subscription {
	sub := budget.Subscription{
		ID:        s.ID,
		UserID:    s.UserID,
		Name:      s.Name,
		Price:     s.Price,
		Period:    budget.SubscriptionPeriod(s.Period),
		Type:      budget.SubscriptionType(s.Type),
		ExpiryOn:  budget.StartOfDay(s.ExpiryOn),
		CreatedAt: s.CreatedAt.UTC(),
	}
	if s.PaidDate.Valid {
		paid := budget.StartOfDay(s.PaidDate.Time)
		sub.PaidDate = &paid
	}
	return sub
}

func nullDate(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{Valid: false}
	}
	return sql.NullTime{Valid: true, Time: budget.StartOfDay(*t)}
}

type dbBudget struct {
	ID        string
	UserID    string
	Category  string
	Year      int
	Month     int
	Amount    money.Money
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (b *dbBudget) fields() []any {
	return []any{&b.ID, &b.UserID, &b.Category, &b.Year, &b.Month, &b.Amount, &b.CreatedAt, &b.UpdatedAt}
}

func (b dbBudget) toBudget() budget.Budget {
	return budget.Budget{
		ID:        b.ID,
		UserID:    b.UserID,
		Category:  budget.Category(b.Category),
		Month:     budget.YearMonth{Year: b.Year, Month: time.Month(b.Month)},
		Amount:    b.Amount,
		CreatedAt: b.CreatedAt.UTC(),
		UpdatedAt: b.UpdatedAt.UTC(),
	}
}
