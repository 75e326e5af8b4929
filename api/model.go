package api

import (
	"errors"
	"net/url"
	"strconv"
	"time"

	appErrors "github.com/fatali-fataliyev/wallet_tracker/customErrors"
	"github.com/fatali-fataliyev/wallet_tracker/internal/budget"
	"github.com/fatali-fataliyev/wallet_tracker/internal/money"
)

const (
	UserIDHeader = "X-User-ID"
	DATE_LAYOUT  = "2006-01-02"
	// Display format for timestamps in responses.
	TIME_LAYOUT = "02/01/2006 15:04"
)

// REQUESTS START:
type SaveUserRequest struct {
	UserName string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

type CreateTransactionRequest struct {
	Type        string `json:"type"`
	Amount      string `json:"amount"` // keep as string so "10.005" is rejected, not rounded
	Category    string `json:"category"`
	Description string `json:"description"`
	Timestamp   string `json:"timestamp"` // RFC3339, optional
}

type SaveBudgetRequest struct {
	Category string `json:"category"`
	Amount   string `json:"amount"`
	Month    int    `json:"month"`
	Year     int    `json:"year"`
}

type SaveSubscriptionRequest struct {
	Name     string `json:"name"`
	Price    string `json:"price"`
	Period   string `json:"period"`
	Type     string `json:"type"`
	ExpiryOn string `json:"expiry_on"` // 2006-01-02
}

//REQUESTS END:

//RESPONSES:

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type UserCreatedResponse struct {
	Message  string     `json:"message"`
	UserID   string     `json:"user_id"`
	UserName string     `json:"username"`
	Wallet   WalletItem `json:"wallet"`
}

type WalletItem struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	Currency       string      `json:"currency"`
	OpeningBalance money.Money `json:"opening_balance"`
	Income         money.Money `json:"income"`
	Expense        money.Money `json:"expense"`
	Balance        money.Money `json:"balance"`
	UpdatedAt      string      `json:"updated_at"`
}

type TransactionItem struct {
	ID          string      `json:"id"`
	WalletID    string      `json:"wallet_id"`
	Type        string      `json:"type"`
	Amount      money.Money `json:"amount"`
	Category    string      `json:"category"`
	Description string      `json:"description"`
	CreatedAt   string      `json:"created_at"`
}

type CategoryShareItem struct {
	Category string      `json:"category"`
	Name     string      `json:"name"`
	Amount   money.Money `json:"amount"`
	Percent  int         `json:"percent"`
}

type ListCategoriesResponse struct {
	Categories []CategoryShareItem `json:"categories"`
}

type DayExpenseItem struct {
	Date   string      `json:"date"`
	Label  string      `json:"label"`
	Amount money.Money `json:"amount"`
}

type DashboardResponse struct {
	Month                      string              `json:"month"`
	Wallet                     WalletItem          `json:"wallet"`
	Transactions               []TransactionItem   `json:"transactions"`
	TopCategories              []CategoryShareItem `json:"top_categories"`
	History                    []DayExpenseItem    `json:"history"`
	BiggestExpense             *TransactionItem    `json:"biggest_expense"`
	BiggestExpenseCategoryName string              `json:"biggest_expense_category"`
	TotalIncome                money.Money         `json:"total_income"`
	TotalExpense               money.Money         `json:"total_expense"`
}

type ReportResponse struct {
	Month                      string              `json:"month"`
	Wallet                     WalletItem          `json:"wallet"`
	Transactions               []TransactionItem   `json:"transactions"`
	Categories                 []CategoryShareItem `json:"categories"`
	BiggestExpense             *TransactionItem    `json:"biggest_expense"`
	BiggestExpenseCategoryName string              `json:"biggest_expense_category"`
	TotalIncome                money.Money         `json:"total_income"`
	TransactionExpense         money.Money         `json:"transaction_expense"`
	PaidSubscriptions          []SubscriptionItem  `json:"paid_subscriptions"`
	SubscriptionExpense        money.Money         `json:"subscription_expense"`
	TotalExpense               money.Money         `json:"total_expense"`
	History                    []DayExpenseItem    `json:"history"`
}

type BudgetItem struct {
	ID           string      `json:"id"`
	Category     string      `json:"category"`
	Month        int         `json:"month"`
	Year         int         `json:"year"`
	Amount       money.Money `json:"amount"`
	Spent        money.Money `json:"spent"`
	Remaining    money.Money `json:"remaining"`
	Percentage   string      `json:"percentage"`
	IsOverBudget bool        `json:"is_over_budget"`
}

type SavedBudgetResponse struct {
	ID        string      `json:"id"`
	Category  string      `json:"category"`
	Month     int         `json:"month"`
	Year      int         `json:"year"`
	Amount    money.Money `json:"amount"`
	UpdatedAt string      `json:"updated_at"`
}

type BudgetPageResponse struct {
	Month                 string       `json:"month"`
	MonthName             string       `json:"month_name"`
	PreviousMonth         string       `json:"previous_month"`
	NextMonth             string       `json:"next_month"`
	Budgets               []BudgetItem `json:"budgets"`
	TotalBudget           money.Money  `json:"total_budget"`
	TotalSpent            money.Money  `json:"total_spent"`
	TotalRemaining        money.Money  `json:"total_remaining"`
	AllCategories         []string     `json:"all_categories"`
	CategoriesWithBudgets []string     `json:"categories_with_budgets"`
}

type SubscriptionItem struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Price     money.Money `json:"price"`
	Period    string      `json:"period"`
	Type      string      `json:"type"`
	ExpiryOn  string      `json:"expiry_on"`
	PaidDate  string      `json:"paid_date,omitempty"`
	CreatedAt string      `json:"created_at"`
}

type ListSubscriptionsResponse struct {
	Subscriptions []SubscriptionItem `json:"subscriptions"`
}

type CountResponse struct {
	Message string `json:"message"`
	Sent    int    `json:"sent"`
}

func httpStatusFromError(err error) int {
	switch {
	case errors.Is(err, appErrors.NotFound):
		return 404 // not found
	case errors.Is(err, appErrors.InvalidInput):
		return 400 // bad request
	case errors.Is(err, appErrors.Unauthorized):
		return 403 // not the owner
	case errors.Is(err, appErrors.InsufficientFunds):
		return 402 // payment required
	case errors.Is(err, appErrors.AlreadyPaid), errors.Is(err, appErrors.Conflict):
		return 409 // conflict
	default:
		return 500 //internal error
	}
}

func errorToHttp(err error) ErrorResponse {
	code := appErrors.CodeOf(err)
	msg := appErrors.MessageOf(err)
	if code == appErrors.ErrInternal {
		msg = "Something went wrong, please try again later."
	}
	return ErrorResponse{Code: code, Message: msg}
}

func WalletToHttp(w budget.Wallet) WalletItem {
	return WalletItem{
		ID:             w.ID,
		Name:           w.Name,
		Currency:       w.Currency,
		OpeningBalance: w.OpeningBalance,
		Income:         w.Income,
		Expense:        w.Expense,
		Balance:        w.Balance,
		UpdatedAt:      w.UpdatedAt.Format(TIME_LAYOUT),
	}
}

func TransactionToHttp(t budget.Transaction) TransactionItem {
	return TransactionItem{
		ID:          t.ID,
		WalletID:    t.WalletID,
		Type:        string(t.Type),
		Amount:      t.Amount,
		Category:    string(t.Category),
		Description: t.Description,
		CreatedAt:   t.CreatedAt.Format(TIME_LAYOUT),
	}
}

func transactionsToHttp(txs []budget.Transaction) []TransactionItem {
	out := make([]TransactionItem, 0, len(txs))
	for _, t := range txs {
		out = append(out, TransactionToHttp(t))
	}
	return out
}

func biggestToHttp(t *budget.Transaction) *TransactionItem {
	if t == nil {
		return nil
	}
	item := TransactionToHttp(*t)
	return &item
}

func sharesToHttp(shares []budget.CategoryShare) []CategoryShareItem {
	out := make([]CategoryShareItem, 0, len(shares))
	for _, s := range shares {
		out = append(out, CategoryShareItem{
			Category: string(s.Category),
			Name:     s.Category.Title(),
			Amount:   s.Amount,
			Percent:  s.Percent,
		})
	}
	return out
}

func historyToHttp(days []budget.DayExpense) []DayExpenseItem {
	out := make([]DayExpenseItem, 0, len(days))
	for _, d := range days {
		out = append(out, DayExpenseItem{
			Date:   d.Date.Format(DATE_LAYOUT),
			Label:  d.Label,
			Amount: d.Amount,
		})
	}
	return out
}

func SubscriptionToHttp(s budget.Subscription) SubscriptionItem {
	item := SubscriptionItem{
		ID:        s.ID,
		Name:      s.Name,
		Price:     s.Price,
		Period:    string(s.Period),
		Type:      string(s.Type),
		ExpiryOn:  s.ExpiryOn.Format(DATE_LAYOUT),
		CreatedAt: s.CreatedAt.Format(TIME_LAYOUT),
	}
	if s.PaidDate != nil {
		item.PaidDate = s.PaidDate.Format(TIME_LAYOUT)
	}
	return item
}

func subscriptionsToHttp(subs []budget.Subscription) []SubscriptionItem {
	out := make([]SubscriptionItem, 0, len(subs))
	for _, s := range subs {
		out = append(out, SubscriptionToHttp(s))
	}
	return out
}

func categoryNames(categories []budget.Category) []string {
	out := make([]string, 0, len(categories))
	for _, c := range categories {
		out = append(out, string(c))
	}
	return out
}

func DashboardToHttp(w budget.Wallet, s budget.MonthSummary) DashboardResponse {
	return DashboardResponse{
		Month:                      s.Month.String(),
		Wallet:                     WalletToHttp(w),
		Transactions:               transactionsToHttp(s.Transactions),
		TopCategories:              sharesToHttp(s.TopCategories),
		History:                    historyToHttp(s.History),
		BiggestExpense:             biggestToHttp(s.BiggestExpense),
		BiggestExpenseCategoryName: s.BiggestExpenseCategoryName,
		TotalIncome:                s.TotalIncome,
		TotalExpense:               s.TotalExpense,
	}
}

func ReportToHttp(r budget.MonthlyReport) ReportResponse {
	return ReportResponse{
		Month:                      r.Month.String(),
		Wallet:                     WalletToHttp(r.Wallet),
		Transactions:               transactionsToHttp(r.Transactions),
		Categories:                 sharesToHttp(r.Categories),
		BiggestExpense:             biggestToHttp(r.BiggestExpense),
		BiggestExpenseCategoryName: r.BiggestExpenseCategoryName,
		TotalIncome:                r.TotalIncome,
		TransactionExpense:         r.TransactionExpense,
		PaidSubscriptions:          subscriptionsToHttp(r.PaidSubscriptions),
		SubscriptionExpense:        r.SubscriptionExpense,
		TotalExpense:               r.TotalExpense,
		History:                    historyToHttp(r.History),
	}
}

func BudgetToHttp(b budget.Budget) SavedBudgetResponse {
	return SavedBudgetResponse{
		ID:        b.ID,
		Category:  string(b.Category),
		Month:     int(b.Month.Month),
		Year:      b.Month.Year,
		Amount:    b.Amount,
		UpdatedAt: b.UpdatedAt.Format(TIME_LAYOUT),
	}
}

func BudgetPageToHttp(p budget.BudgetPageData) BudgetPageResponse {
	items := make([]BudgetItem, 0, len(p.Budgets))
	for _, info := range p.Budgets {
		items = append(items, BudgetItem{
			ID:           info.Budget.ID,
			Category:     string(info.Budget.Category),
			Month:        int(info.Budget.Month.Month),
			Year:         info.Budget.Month.Year,
			Amount:       info.Budget.Amount,
			Spent:        info.Spent,
			Remaining:    info.Remaining,
			Percentage:   info.Percentage.StringFixed(2),
			IsOverBudget: info.IsOverBudget,
		})
	}
	return BudgetPageResponse{
		Month:                 p.Month.String(),
		MonthName:             p.MonthName,
		PreviousMonth:         p.PreviousMonth.String(),
		NextMonth:             p.NextMonth.String(),
		Budgets:               items,
		TotalBudget:           p.TotalBudget,
		TotalSpent:            p.TotalSpent,
		TotalRemaining:        p.TotalRemaining,
		AllCategories:         categoryNames(p.AllCategories),
		CategoriesWithBudgets: categoryNames(p.CategoriesWithBudgets),
	}
}

func invalidInput(format string, args ...any) error {
	return appErrors.New(appErrors.ErrInvalidInput, format, args...)
}

// ToTransactionRequest validates the wire fields; amount, category and type
// rules are checked again by the ledger.
func (req CreateTransactionRequest) ToTransactionRequest() (budget.TransactionRequest, error) {
	amount, err := money.Parse(req.Amount)
	if err != nil {
		return budget.TransactionRequest{}, invalidInput("Invalid amount: %q", req.Amount)
	}
	category, ok := budget.ParseCategory(req.Category)
	if !ok {
		return budget.TransactionRequest{}, invalidInput("Invalid category: %q", req.Category)
	}

	out := budget.TransactionRequest{
		Type:        budget.TransactionType(req.Type),
		Amount:      amount,
		Category:    category,
		Description: req.Description,
	}
	if req.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			return budget.TransactionRequest{}, invalidInput("Invalid timestamp %q, expected RFC3339", req.Timestamp)
		}
		out.Timestamp = ts
	}
	return out, nil
}

func (req SaveBudgetRequest) ToBudgetRequest() (budget.BudgetRequest, error) {
	amount, err := money.Parse(req.Amount)
	if err != nil {
		return budget.BudgetRequest{}, invalidInput("Invalid amount: %q", req.Amount)
	}
	if !amount.IsPositive() {
		return budget.BudgetRequest{}, invalidInput("Budget amount must be greater than zero.")
	}
	category, ok := budget.ParseCategory(req.Category)
	if !ok {
		return budget.BudgetRequest{}, invalidInput("Invalid category: %q", req.Category)
	}
	return budget.BudgetRequest{
		Category: category,
		Amount:   amount,
		Month:    req.Month,
		Year:     req.Year,
	}, nil
}

func (req SaveSubscriptionRequest) ToSubscriptionRequest() (budget.SubscriptionRequest, error) {
	price, err := money.Parse(req.Price)
	if err != nil {
		return budget.SubscriptionRequest{}, invalidInput("Invalid price: %q", req.Price)
	}
	expiryOn, err := time.Parse(DATE_LAYOUT, req.ExpiryOn)
	if err != nil {
		return budget.SubscriptionRequest{}, invalidInput("Invalid expiry date %q, expected format: %s", req.ExpiryOn, DATE_LAYOUT)
	}
	return budget.SubscriptionRequest{
		Name:     req.Name,
		Price:    price,
		Period:   budget.SubscriptionPeriod(req.Period),
		Type:     budget.SubscriptionType(req.Type),
		ExpiryOn: expiryOn,
	}, nil
}

// MonthParams reads the optional month and year query parameters; 0 means
// not given.
func MonthParams(params url.Values) (month int, year int, err error) {
	if s := params.Get("month"); s != "" {
		if month, err = strconv.Atoi(s); err != nil {
			return 0, 0, invalidInput("Invalid month: %s", s)
		}
	}
	if s := params.Get("year"); s != "" {
		if year, err = strconv.Atoi(s); err != nil {
			return 0, 0, invalidInput("Invalid year: %s", s)
		}
	}
	return month, year, nil
}

// ResolveMonth turns month and year query parameters into a YearMonth,
// falling back to current when either is missing.
func ResolveMonth(params url.Values, current budget.YearMonth) (budget.YearMonth, error) {
	month, year, err := MonthParams(params)
	if err != nil {
		return budget.YearMonth{}, err
	}
	if month == 0 || year == 0 {
		return current, nil
	}
	ym, err := budget.NewYearMonth(year, month)
	if err != nil {
		return budget.YearMonth{}, invalidInput("%v", err)
	}
	return ym, nil
}

// LimitParam reads the n query parameter, defaulting to def.
func LimitParam(params url.Values, def int) (int, error) {
	s := params.Get("n")
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, invalidInput("Invalid n: %s", s)
	}
	return n, nil
}

func decodeError(err error) error {
	return invalidInput("Invalid request body: %v", err)
}
