package budget

import (
	"context"
	"fmt"
	"strings"

	appErrors "github.com/fatali-fataliyev/wallet_tracker/customErrors"
	"github.com/fatali-fataliyev/wallet_tracker/internal/contextutil"
	"github.com/fatali-fataliyev/wallet_tracker/internal/money"
	"github.com/fatali-fataliyev/wallet_tracker/logging"
	"github.com/google/uuid"
)

const (
	MAX_TRANSACTION_DESCRIPTION_LENGTH = 1000
)

// MaxAmount bounds a single amount so it always fits a BIGINT of cents.
var MaxAmount = money.MustParse("999999999999.99")

// Ledger applies transactions and subscription payments to wallets.
type Ledger struct {
	storage Storage
	guard   OwnershipGuard
	clock   Clock
}

func NewLedger(s Storage, clock Clock) *Ledger {
	if clock == nil {
		clock = systemClock
	}
	return &Ledger{storage: s, clock: clock}
}

func validateAmount(amount money.Money, field string) error {
	if !amount.IsPositive() {
		return appErrors.New(appErrors.ErrInvalidInput, "%s must be greater than zero.", field)
	}
	if !amount.HasValidScale() {
		return appErrors.New(appErrors.ErrInvalidInput, "%s can have at most %d decimal places.", field, money.Scale)
	}
	if amount.GreaterThan(MaxAmount) {
		return appErrors.New(appErrors.ErrInvalidInput, "%s is too large, the limit is: %s", field, MaxAmount)
	}
	return nil
}

func (req TransactionRequest) Validate() error {
	if !req.Type.Valid() {
		return appErrors.New(appErrors.ErrInvalidInput, "Invalid transaction type: %q", req.Type)
	}
	if !req.Category.Valid() {
		return appErrors.New(appErrors.ErrInvalidInput, "Invalid category: %q", req.Category)
	}
	if len(req.Description) > MAX_TRANSACTION_DESCRIPTION_LENGTH {
		return appErrors.New(appErrors.ErrInvalidInput, "Description so long, maximum allowed length is: %d", MAX_TRANSACTION_DESCRIPTION_LENGTH)
	}
	return validateAmount(req.Amount, "Amount")
}

// ProcessTransaction records a transaction on the user's wallet and applies
// it to the wallet totals. An EXPENSE larger than the balance fails with
// ErrInsufficientFunds; spending the balance down to exactly zero is allowed.
func (l *Ledger) ProcessTransaction(ctx context.Context, userID string, req TransactionRequest) (Transaction, error) {
	if err := req.Validate(); err != nil {
		return Transaction{}, err
	}

	now := l.clock().UTC()
	createdAt := req.Timestamp.UTC()
	if req.Timestamp.IsZero() {
		createdAt = now
	}

	var created Transaction
	err := l.storage.Update(ctx, func(repo Repository) error {
		wallet, err := l.lockUserWallet(ctx, repo, userID)
		if err != nil {
			return err
		}

		switch req.Type {
		case Expense:
			if wallet.Balance.LessThan(req.Amount) {
				return insufficientFunds(wallet, req.Amount)
			}
			wallet.Expense = wallet.Expense.Add(req.Amount)
			wallet.Balance = wallet.Balance.Sub(req.Amount)
		case Income:
			wallet.Income = wallet.Income.Add(req.Amount)
			wallet.Balance = wallet.Balance.Add(req.Amount)
		}
		wallet.UpdatedAt = now

		if err := l.checkInvariant(ctx, wallet); err != nil {
			return err
		}

		created = Transaction{
			ID:          uuid.New().String(),
			WalletID:    wallet.ID,
			Type:        req.Type,
			Amount:      req.Amount,
			Category:    req.Category,
			Description: strings.TrimSpace(req.Description),
			CreatedAt:   createdAt,
		}
		if err := repo.SaveTransaction(ctx, created); err != nil {
			return err
		}
		return repo.UpdateWallet(ctx, wallet)
	})
	if err != nil {
		return Transaction{}, err
	}

	logging.Logger.Debugf("[TraceID=%s] | %s %s recorded on wallet %s", contextutil.TraceIDFromContext(ctx), created.Type, created.Amount, created.WalletID)
	return created, nil
}

// DeleteTransaction removes a transaction owned by userID. The wallet's
// income, expense and balance are left as they are.
func (l *Ledger) DeleteTransaction(ctx context.Context, transactionID string, userID string) error {
	return l.storage.Update(ctx, func(repo Repository) error {
		t, err := repo.GetTransactionByID(ctx, transactionID)
		if err != nil {
			return err
		}
		if _, err := l.guard.CheckTransaction(ctx, repo, t, userID); err != nil {
			return err
		}
		return repo.DeleteTransaction(ctx, transactionID)
	})
}

// PaySubscription debits the subscription price from the owner's wallet and
// marks it paid today. A subscription is paid at most once: its row is locked
// before the paid check, so a concurrent payment waits and then sees it paid.
func (l *Ledger) PaySubscription(ctx context.Context, subscriptionID string, userID string) (Subscription, error) {
	now := l.clock().UTC()

	var paid Subscription
	err := l.storage.Update(ctx, func(repo Repository) error {
		sub, err := repo.LockSubscription(ctx, subscriptionID)
		if err != nil {
			return err
		}
		owned, err := l.guard.CheckSubscription(ctx, repo, sub, userID)
		if err != nil {
			return err
		}
		if sub.IsPaid() {
			return appErrors.New(appErrors.ErrAlreadyPaid, "Subscription %q was already paid on %s.", sub.Name, sub.PaidDate.Format("2006-01-02"))
		}

		wallet, err := repo.LockWallet(ctx, owned.ID)
		if err != nil {
			return err
		}
		if wallet.Balance.LessThan(sub.Price) {
			return insufficientFunds(wallet, sub.Price)
		}
		wallet.Balance = wallet.Balance.Sub(sub.Price)
		wallet.Expense = wallet.Expense.Add(sub.Price)
		wallet.UpdatedAt = now

		if err := l.checkInvariant(ctx, wallet); err != nil {
			return err
		}

		paidDate := StartOfDay(now)
		sub.PaidDate = &paidDate
		if err := repo.UpdateSubscription(ctx, sub); err != nil {
			return err
		}
		if err := repo.UpdateWallet(ctx, wallet); err != nil {
			return err
		}
		paid = sub
		return nil
	})
	if err != nil {
		return Subscription{}, err
	}
	return paid, nil
}

// GetWallet returns the wallet owned by userID.
func (l *Ledger) GetWallet(ctx context.Context, userID string) (Wallet, error) {
	var wallet Wallet
	err := l.storage.View(ctx, func(repo Repository) error {
		w, err := repo.GetWalletByUserID(ctx, userID)
		if err != nil {
			return err
		}
		wallet = w
		return nil
	})
	return wallet, err
}

func (l *Ledger) lockUserWallet(ctx context.Context, repo Repository, userID string) (Wallet, error) {
	owned, err := repo.GetWalletByUserID(ctx, userID)
	if err != nil {
		return Wallet{}, err
	}
	wallet, err := repo.LockWallet(ctx, owned.ID)
	if err != nil {
		return Wallet{}, err
	}
	if err := l.guard.CheckWallet(wallet, userID); err != nil {
		return Wallet{}, err
	}
	return wallet, nil
}

func (l *Ledger) checkInvariant(ctx context.Context, wallet Wallet) error {
	if wallet.Balanced() {
		return nil
	}
	traceID := contextutil.TraceIDFromContext(ctx)
	logging.Logger.Errorf("[TraceID=%s] | wallet %s out of balance: opening=%s income=%s expense=%s balance=%s",
		traceID, wallet.ID, wallet.OpeningBalance, wallet.Income, wallet.Expense, wallet.Balance)
	return appErrors.ErrorResponse{
		Code:    appErrors.ErrInternal,
		Message: fmt.Sprintf("Wallet %s is out of balance.", wallet.ID),
	}
}

func insufficientFunds(wallet Wallet, amount money.Money) error {
	return appErrors.New(appErrors.ErrInsufficientFunds, "Insufficient funds: balance %s is less than %s.", wallet.Balance, amount)
}
