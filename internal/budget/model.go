package budget

import (
	"strings"
	"time"

	"github.com/fatali-fataliyev/wallet_tracker/internal/money"
	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	Income  TransactionType = "INCOME"
	Expense TransactionType = "EXPENSE"
)

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

type Category string

const (
	Housing       Category = "HOUSING"
	Food          Category = "FOOD"
	Transport     Category = "TRANSPORT"
	Utilities     Category = "UTILITIES"
	Clothing      Category = "CLOTHING"
	Entertainment Category = "ENTERTAINMENT"
	Travel        Category = "TRAVEL"
	Education     Category = "EDUCATION"
	Loans         Category = "LOANS"
	Savings       Category = "SAVINGS"
	Health        Category = "HEALTH"
	Family        Category = "FAMILY"
	Gifts         Category = "GIFTS"
	Home          Category = "HOME"
	Other         Category = "OTHER"
)

var allCategories = []Category{
	Housing, Food, Transport, Utilities, Clothing, Entertainment, Travel,
	Education, Loans, Savings, Health, Family, Gifts, Home, Other,
}

// AllCategories returns the closed category set in declaration order.
func AllCategories() []Category {
	out := make([]Category, len(allCategories))
	copy(out, allCategories)
	return out
}

func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	return c, c.Valid()
}

func (c Category) Valid() bool {
	return c.index() >= 0
}

func (c Category) index() int {
	for i, known := range allCategories {
		if known == c {
			return i
		}
	}
	return -1
}

// Title returns the display form, FOOD -> Food.
func (c Category) Title() string {
	s := strings.ToLower(string(c))
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

type SubscriptionPeriod string

const (
	Weekly  SubscriptionPeriod = "WEEKLY"
	Monthly SubscriptionPeriod = "MONTHLY"
	Yearly  SubscriptionPeriod = "YEARLY"
)

func (p SubscriptionPeriod) Valid() bool {
	return p == Weekly || p == Monthly || p == Yearly
}

type SubscriptionType string

const (
	DefaultSubscription SubscriptionType = "DEFAULT"
	PremiumSubscription SubscriptionType = "PREMIUM"
	OtherSubscription   SubscriptionType = "OTHER"
)

func (t SubscriptionType) Valid() bool {
	return t == DefaultSubscription || t == PremiumSubscription || t == OtherSubscription
}

const (
	DefaultWalletName     = "Default"
	DefaultWalletCurrency = "BGN"
)

// OpeningBalance is credited to every wallet at registration.
var OpeningBalance = money.FromInt(100)

type Wallet struct {
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

// Balanced reports whether balance == opening + income - expense.
func (w Wallet) Balanced() bool {
	return w.Balance.Equal(w.OpeningBalance.Add(w.Income).Sub(w.Expense))
}

type Transaction struct {
	ID          string
	WalletID    string
	Type        TransactionType
	Amount      money.Money
	Category    Category
	Description string
	CreatedAt   time.Time
}

type Subscription struct {
	ID       string
	UserID   string
	Name     string
	Price    money.Money
	Period   SubscriptionPeriod
	Type     SubscriptionType
	ExpiryOn time.Time
	// PaidDate is nil while the subscription is unpaid.
	PaidDate  *time.Time
	CreatedAt time.Time
}

func (s Subscription) IsPaid() bool {
	return s.PaidDate != nil
}

type Budget struct {
	ID        string
	UserID    string
	Category  Category
	Month     YearMonth
	Amount    money.Money
	CreatedAt time.Time
	UpdatedAt time.Time
}

// REQUESTS:

type TransactionRequest struct {
	Type        TransactionType
	Amount      money.Money
	Category    Category
	Description string
	// Zero means now.
	Timestamp time.Time
}

type SubscriptionRequest struct {
	Name     string
	Price    money.Money
	Period   SubscriptionPeriod
	Type     SubscriptionType
	ExpiryOn time.Time
}

type BudgetRequest struct {
	Category Category
	Amount   money.Money
	Month    int
	Year     int
}

// RESPONSES:

type CategoryTotal struct {
	Category Category
	Amount   money.Money
}

type CategoryShare struct {
	Category Category
	Amount   money.Money
	Percent  int
}

type DayExpense struct {
	Date   time.Time
	Label  string
	Amount money.Money
}

type MonthSummary struct {
	Month                      YearMonth
	Transactions               []Transaction
	CategoryTotals             map[Category]money.Money
	TopCategories              []CategoryShare
	History                    []DayExpense
	BiggestExpense             *Transaction
	BiggestExpenseCategoryName string
	TotalIncome                money.Money
	TotalExpense               money.Money
}

type MonthlyReport struct {
	Month                      YearMonth
	Wallet                     Wallet
	Transactions               []Transaction
	Categories                 []CategoryShare
	BiggestExpense             *Transaction
	BiggestExpenseCategoryName string
	TotalIncome                money.Money
	TransactionExpense         money.Money
	PaidSubscriptions          []Subscription
	SubscriptionExpense        money.Money
	TotalExpense               money.Money
	History                    []DayExpense
}

type BudgetInfo struct {
	Budget       Budget
	Spent        money.Money
	Remaining    money.Money
	Percentage   decimal.Decimal
	IsOverBudget bool
}

type BudgetPageData struct {
	Month                 YearMonth
	MonthName             string
	PreviousMonth         YearMonth
	NextMonth             YearMonth
	Budgets               []BudgetInfo
	TotalBudget           money.Money
	TotalSpent            money.Money
	TotalRemaining        money.Money
	AllCategories         []Category
	CategoriesWithBudgets []Category
}

type Notification struct {
	Kind      string
	UserID    string
	Email     string
	Subject   string
	Body      string
	CreatedAt time.Time
}

const (
	NotificationExpiringSubscriptions = "EXPIRING_SUBSCRIPTIONS"
	NotificationMonthlyReport         = "MONTHLY_REPORT"
)
