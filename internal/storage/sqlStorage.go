package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	appErrors "github.com/fatali-fataliyev/wallet_tracker/customErrors"
	"github.com/fatali-fataliyev/wallet_tracker/internal/auth"
	"github.com/fatali-fataliyev/wallet_tracker/internal/budget"
	"github.com/fatali-fataliyev/wallet_tracker/internal/contextutil"
	"github.com/fatali-fataliyev/wallet_tracker/internal/money"
	"github.com/fatali-fataliyev/wallet_tracker/logging"
)

// dialect holds what differs between the SQL engines.
type dialect struct {
	name string
	// lockSuffix is appended to the row reads of LockWallet and LockSubscription.
	lockSuffix string
	// isDuplicate reports a unique key violation.
	isDuplicate func(err error) bool
}

// SQLStorage implements budget.Storage over database/sql. Every unit of work
// is one database transaction.
type SQLStorage struct {
	db      *sql.DB
	dialect dialect
}

func (s *SQLStorage) GetStorageType() string {
	return s.dialect.name
}

func (s *SQLStorage) Close() error {
	return s.db.Close()
}

func (s *SQLStorage) Update(ctx context.Context, fn func(repo budget.Repository) error) error {
	return s.run(ctx, nil, fn)
}

func (s *SQLStorage) View(ctx context.Context, fn func(repo budget.Repository) error) error {
	return s.run(ctx, &sql.TxOptions{ReadOnly: true}, fn)
}

func (s *SQLStorage) run(ctx context.Context, opts *sql.TxOptions, fn func(repo budget.Repository) error) error {
	traceID := contextutil.TraceIDFromContext(ctx)

	txn, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to start transaction in SQLStorage.run() function | Error: %v", traceID, err)
		return internalError("Storage is unavailable, try again later.")
	}

	if err := fn(&sqlRepo{txn: txn, dialect: s.dialect}); err != nil {
		if rbErr := txn.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			logging.Logger.Errorf("[TraceID=%s] | failed to rollback transaction | Error: %v", traceID, rbErr)
		}
		return err
	}

	if err := txn.Commit(); err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to commit transaction in SQLStorage.run() function | Error: %v", traceID, err)
		return internalError("Failed to save changes, try again later.")
	}
	return nil
}

func internalError(msg string) error {
	return appErrors.ErrorResponse{
		Code:    appErrors.ErrInternal,
		Message: msg,
	}
}

func notFound(msg string) error {
	return appErrors.ErrorResponse{
		Code:    appErrors.ErrNotFound,
		Message: msg,
	}
}

type sqlRepo struct {
	txn     *sql.Tx
	dialect dialect
}

// fail logs err under the caller's name and hides it behind a generic
// message.
func (r *sqlRepo) fail(ctx context.Context, fn string, err error, msg string) error {
	logging.Logger.Errorf("[TraceID=%s] | %s failed in Storage.%s() function | Error: %v", contextutil.TraceIDFromContext(ctx), r.dialect.name, fn, err)
	return internalError(msg)
}

func (r *sqlRepo) exec(ctx context.Context, fn string, conflictMsg string, query string, args ...any) (sql.Result, error) {
	res, err := r.txn.ExecContext(ctx, query, args...)
	if err != nil {
		if conflictMsg != "" && r.dialect.isDuplicate(err) {
			return nil, appErrors.ErrorResponse{
				Code:    appErrors.ErrConflict,
				Message: conflictMsg,
			}
		}
		return nil, r.fail(ctx, fn, err, "Failed to save changes, try again later.")
	}
	return res, nil
}

// execOne is exec for statements that must touch exactly one row.
func (r *sqlRepo) execOne(ctx context.Context, fn string, missingMsg string, query string, args ...any) error {
	res, err := r.exec(ctx, fn, "", query, args...)
	if err != nil {
		return err
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return r.fail(ctx, fn, err, "Failed to save changes, try again later.")
	}
	if rowsAffected == 0 {
		return notFound(missingMsg)
	}
	return nil
}

func (r *sqlRepo) queryRow(ctx context.Context, fn string, missingMsg string, query string, args []any, dest ...any) error {
	err := r.txn.QueryRowContext(ctx, query, args...).Scan(dest...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound(missingMsg)
		}
		return r.fail(ctx, fn, err, "Failed to read data, try again later.")
	}
	return nil
}

// --- USERS --- //

const userColumns = "id, username, email, hashed_password, created_at"

func (r *sqlRepo) SaveUser(ctx context.Context, user auth.User) error {
	query := "INSERT INTO user (" + userColumns + ") VALUES (?, ?, ?, ?, ?);"
	_, err := r.exec(ctx, "SaveUser", "Username or email already taken.", query,
		user.ID, user.UserName, user.Email, user.PasswordHashed, user.CreatedAt.UTC())
	return err
}

func (r *sqlRepo) GetUserByID(ctx context.Context, userID string) (auth.User, error) {
	var u dbUser
	query := "SELECT " + userColumns + " FROM user WHERE id = ?;"
	err := r.queryRow(ctx, "GetUserByID", "User not found.", query, []any{userID},
		&u.ID, &u.UserName, &u.Email, &u.HashedPassword, &u.CreatedAt)
	if err != nil {
		return auth.User{}, err
	}
	return u.toUser(), nil
}

func (r *sqlRepo) ListUsers(ctx context.Context) ([]auth.User, error) {
	rows, err := r.txn.QueryContext(ctx, "SELECT "+userColumns+" FROM user ORDER BY id;")
	if err != nil {
		return nil, r.fail(ctx, "ListUsers", err, "Failed to read users, try again later.")
	}
	defer rows.Close()

	users := make([]auth.User, 0)
	for rows.Next() {
		var u dbUser
		if err := rows.Scan(&u.ID, &u.UserName, &u.Email, &u.HashedPassword, &u.CreatedAt); err != nil {
			return nil, r.fail(ctx, "ListUsers", err, "Failed to read users, try again later.")
		}
		users = append(users, u.toUser())
	}
	if err := rows.Err(); err != nil {
		return nil, r.fail(ctx, "ListUsers", err, "Failed to read users, try again later.")
	}
	return users, nil
}

// --- WALLETS --- //

const walletColumns = "id, user_id, name, currency, opening_balance, income, expense, balance, created_at, updated_at"

func (r *sqlRepo) SaveWallet(ctx context.Context, w budget.Wallet) error {
	query := "INSERT INTO wallet (" + walletColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?);"
	_, err := r.exec(ctx, "SaveWallet", "The user already has a wallet.", query,
		w.ID, w.UserID, w.Name, w.Currency, w.OpeningBalance, w.Income, w.Expense, w.Balance, w.CreatedAt.UTC(), w.UpdatedAt.UTC())
	return err
}

func (r *sqlRepo) UpdateWallet(ctx context.Context, w budget.Wallet) error {
	query := "UPDATE wallet SET name = ?, currency = ?, income = ?, expense = ?, balance = ?, updated_at = ? WHERE id = ?;"
	return r.execOne(ctx, "UpdateWallet", "Wallet not found.", query,
		w.Name, w.Currency, w.Income, w.Expense, w.Balance, w.UpdatedAt.UTC(), w.ID)
}

func (r *sqlRepo) getWallet(ctx context.Context, fn string, where string, arg string, suffix string) (budget.Wallet, error) {
	var w dbWallet
	query := "SELECT " + walletColumns + " FROM wallet WHERE " + where + " = ?" + suffix + ";"
	if err := r.queryRow(ctx, fn, "Wallet not found.", query, []any{arg}, w.fields()...); err != nil {
		return budget.Wallet{}, err
	}
	return w.toWallet(), nil
}

func (r *sqlRepo) GetWalletByID(ctx context.Context, walletID string) (budget.Wallet, error) {
	return r.getWallet(ctx, "GetWalletByID", "id", walletID, "")
}

func (r *sqlRepo) GetWalletByUserID(ctx context.Context, userID string) (budget.Wallet, error) {
	return r.getWallet(ctx, "GetWalletByUserID", "user_id", userID, "")
}

func (r *sqlRepo) LockWallet(ctx context.Context, walletID string) (budget.Wallet, error) {
	return r.getWallet(ctx, "LockWallet", "id", walletID, r.dialect.lockSuffix)
}

// --- TRANSACTIONS --- //

const transactionColumns = "id, wallet_id, type, amount, category, description, created_at"

func (r *sqlRepo) SaveTransaction(ctx context.Context, t budget.Transaction) error {
	query := "INSERT INTO wallet_transaction (" + transactionColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?);"
	_, err := r.exec(ctx, "SaveTransaction", "", query,
		t.ID, t.WalletID, string(t.Type), t.Amount, string(t.Category), t.Description, t.CreatedAt.UTC())
	return err
}

func (r *sqlRepo) GetTransactionByID(ctx context.Context, transactionID string) (budget.Transaction, error) {
	var t dbTransaction
	query := "SELECT " + transactionColumns + " FROM wallet_transaction WHERE id = ?;"
	if err := r.queryRow(ctx, "GetTransactionByID", "Transaction not found.", query, []any{transactionID}, t.fields()...); err != nil {
		return budget.Transaction{}, err
	}
	return t.toTransaction(), nil
}

func (r *sqlRepo) DeleteTransaction(ctx context.Context, transactionID string) error {
	return r.execOne(ctx, "DeleteTransaction", "Transaction not found.", "DELETE FROM wallet_transaction WHERE id = ?;", transactionID)
}

func (r *sqlRepo) ListTransactions(ctx context.Context, walletID string, from, to time.Time) ([]budget.Transaction, error) {
	query := "SELECT " + transactionColumns + ` FROM wallet_transaction
		WHERE wallet_id = ? AND created_at >= ? AND created_at < ?
		ORDER BY created_at DESC, id;`
	rows, err := r.txn.QueryContext(ctx, query, walletID, from.UTC(), to.UTC())
	if err != nil {
		return nil, r.fail(ctx, "ListTransactions", err, "Failed to read transactions, try again later.")
	}
	defer rows.Close()

	out := make([]budget.Transaction, 0)
	for rows.Next() {
		var t dbTransaction
		if err := rows.Scan(t.fields()...); err != nil {
			return nil, r.fail(ctx, "ListTransactions", err, "Failed to read transactions, try again later.")
		}
		out = append(out, t.toTransaction())
	}
	if err := rows.Err(); err != nil {
		return nil, r.fail(ctx, "ListTransactions", err, "Failed to read transactions, try again later.")
	}
	return out, nil
}

// TopExpenseCategories sums in SQL and ranks the at most one row per
// category in Go, so every storage breaks ties the same way.
func (r *sqlRepo) TopExpenseCategories(ctx context.Context, walletID string, limit int) ([]budget.CategoryTotal, error) {
	query := `SELECT category, SUM(amount) FROM wallet_transaction
		WHERE wallet_id = ? AND type = ?
		GROUP BY category;`
	rows, err := r.txn.QueryContext(ctx, query, walletID, string(budget.Expense))
	if err != nil {
		return nil, r.fail(ctx, "TopExpenseCategories", err, "Failed to read statistics, try again later.")
	}
	defer rows.Close()

	totals := make(map[budget.Category]money.Money)
	for rows.Next() {
		var category string
		var total money.Money
		if err := rows.Scan(&category, &total); err != nil {
			return nil, r.fail(ctx, "TopExpenseCategories", err, "Failed to read statistics, try again later.")
		}
		totals[budget.Category(category)] = total
	}
	if err := rows.Err(); err != nil {
		return nil, r.fail(ctx, "TopExpenseCategories", err, "Failed to read statistics, try again later.")
	}
	return budget.RankExpenseTotals(totals, limit), nil
}

// --- SUBSCRIPTIONS --- //

const subscriptionColumns = "id, user_id, name, price, period, type, expiry_on, paid_date, created_at"

func (r *sqlRepo) SaveSubscription(ctx context.Context, s budget.Subscription) error {
	query := "INSERT INTO subscription (" + subscriptionColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);"
	_, err := r.exec(ctx, "SaveSubscription", "", query,
		s.ID, s.UserID, s.Name, s.Price, string(s.Period), string(s.Type), budget.StartOfDay(s.ExpiryOn), nullDate(s.PaidDate), s.CreatedAt.UTC())
	return err
}

func (r *sqlRepo) UpdateSubscription(ctx context.Context, s budget.Subscription) error {
	query := "UPDATE subscription SET name = ?, price = ?, period = ?, type = ?, expiry_on = ?, paid_date = ? WHERE id = ?;"
	return r.execOne(ctx, "UpdateSubscription", "Subscription not found.", query,
		s.Name, s.Price, string(s.Period), string(s.Type), budget.StartOfDay(s.ExpiryOn), nullDate(s.PaidDate), s.ID)
}

func (r *sqlRepo) getSubscription(ctx context.Context, fn string, subscriptionID string, suffix string) (budget.Subscription, error) {
	var s dbSubscription
	query := "SELECT " + subscriptionColumns + " FROM subscription WHERE id = ?" + suffix + ";"
	if err := r.queryRow(ctx, fn, "Subscription not found.", query, []any{subscriptionID}, s.fields()...); err != nil {
		return budget.Subscription{}, err
	}
	return s.toSubscription(), nil
}

func (r *sqlRepo) GetSubscriptionByID(ctx context.Context, subscriptionID string) (budget.Subscription, error) {
	return r.getSubscription(ctx, "GetSubscriptionByID", subscriptionID, "")
}

func (r *sqlRepo) LockSubscription(ctx context.Context, subscriptionID string) (budget.Subscription, error) {
	return r.getSubscription(ctx, "LockSubscription", subscriptionID, r.dialect.lockSuffix)
}

func (r *sqlRepo) DeleteSubscription(ctx context.Context, subscriptionID string) error {
	return r.execOne(ctx, "DeleteSubscription", "Subscription not found.", "DELETE FROM subscription WHERE id = ?;", subscriptionID)
}

func (r *sqlRepo) ListSubscriptions(ctx context.Context, userID string) ([]budget.Subscription, error) {
	query := "SELECT " + subscriptionColumns + " FROM subscription WHERE user_id = ? ORDER BY expiry_on ASC, id;"
	rows, err := r.txn.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, r.fail(ctx, "ListSubscriptions", err, "Failed to read subscriptions, try again later.")
	}
	defer rows.Close()

	out := make([]budget.Subscription, 0)
	for rows.Next() {
		var s dbSubscription
		if err := rows.Scan(s.fields()...); err != nil {
			return nil, r.fail(ctx, "ListSubscriptions", err, "Failed to read subscriptions, try again later.")
		}
		out = append(out, s.toSubscription())
	}
	if err := rows.Err(); err != nil {
		return nil, r.fail(ctx, "ListSubscriptions", err, "Failed to read subscriptions, try again later.")
	}
	return out, nil
}

// --- BUDGETS --- //

const budgetColumns = "id, user_id, category, budget_year, budget_month, amount, created_at, updated_at"

func (r *sqlRepo) SaveBudget(ctx context.Context, b budget.Budget) error {
	query := "INSERT INTO budget (" + budgetColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?, ?);"
	_, err := r.exec(ctx, "SaveBudget", "A budget for this category and month already exists.", query,
		b.ID, b.UserID, string(b.Category), b.Month.Year, int(b.Month.Month), b.Amount, b.CreatedAt.UTC(), b.UpdatedAt.UTC())
	return err
}

func (r *sqlRepo) UpdateBudget(ctx context.Context, b budget.Budget) error {
	query := "UPDATE budget SET amount = ?, updated_at = ? WHERE id = ?;"
	return r.execOne(ctx, "UpdateBudget", "Budget not found.", query, b.Amount, b.UpdatedAt.UTC(), b.ID)
}

func (r *sqlRepo) GetBudgetByID(ctx context.Context, budgetID string) (budget.Budget, error) {
	var b dbBudget
	query := "SELECT " + budgetColumns + " FROM budget WHERE id = ?;"
	if err := r.queryRow(ctx, "GetBudgetByID", "Budget not found.", query, []any{budgetID}, b.fields()...); err != nil {
		return budget.Budget{}, err
	}
	return b.toBudget(), nil
}

func (r *sqlRepo) FindBudget(ctx context.Context, userID string, category budget.Category, month budget.YearMonth) (budget.Budget, error) {
	var b dbBudget
	query := "SELECT " + budgetColumns + " FROM budget WHERE user_id = ? AND category = ? AND budget_year = ? AND budget_month = ?;"
	args := []any{userID, string(category), month.Year, int(month.Month)}
	if err := r.queryRow(ctx, "FindBudget", fmt.Sprintf("No %s budget for %s.", category, month), query, args, b.fields()...); err != nil {
		return budget.Budget{}, err
	}
	return b.toBudget(), nil
}

func (r *sqlRepo) ListBudgets(ctx context.Context, userID string, month budget.YearMonth) ([]budget.Budget, error) {
	query := "SELECT " + budgetColumns + " FROM budget WHERE user_id = ? AND budget_year = ? AND budget_month = ?;"
	rows, err := r.txn.QueryContext(ctx, query, userID, month.Year, int(month.Month))
	if err != nil {
		return nil, r.fail(ctx, "ListBudgets", err, "Failed to read budgets, try again later.")
	}
	defer rows.Close()

	out := make([]budget.Budget, 0)
	for rows.Next() {
		var b dbBudget
		if err := rows.Scan(b.fields()...); err != nil {
			return nil, r.fail(ctx, "ListBudgets", err, "Failed to read budgets, try again later.")
		}
		out = append(out, b.toBudget())
	}
	if err := rows.Err(); err != nil {
		return nil, r.fail(ctx, "ListBudgets", err, "Failed to read budgets, try again later.")
	}
	return out, nil
}

func (r *sqlRepo) DeleteBudget(ctx context.Context, budgetID string) error {
	return r.execOne(ctx, "DeleteBudget", "Budget not found.", "DELETE FROM budget WHERE id = ?;", budgetID)
}
