package budget

import (
	"context"
	"errors"

	appErrors "github.com/fatali-fataliyev/wallet_tracker/customErrors"
	"github.com/fatali-fataliyev/wallet_tracker/logging"
)

// OwnershipGuard answers "does this entity belong to this user". Every
// failure is an ErrAuth ErrorResponse; nothing is mutated.
type OwnershipGuard struct{}

func unauthorized(msg string) error {
	return appErrors.ErrorResponse{
		Code:    appErrors.ErrAuth,
		Message: msg,
	}
}

func (OwnershipGuard) CheckWallet(wallet Wallet, userID string) error {
	if wallet.UserID == "" || userID == "" || wallet.UserID != userID {
		logging.Logger.Warnf("user %q denied access to wallet %s", userID, wallet.ID)
		return unauthorized("You do not own this wallet.")
	}
	return nil
}

// CheckTransaction resolves the transaction's wallet and checks its owner.
// A wallet that no longer exists counts as having no owner.
func (g OwnershipGuard) CheckTransaction(ctx context.Context, repo Repository, t Transaction, userID string) (Wallet, error) {
	wallet, err := repo.GetWalletByID(ctx, t.WalletID)
	if err != nil {
		if errors.Is(err, appErrors.NotFound) {
			return Wallet{}, unauthorized("Transaction has no owner.")
		}
		return Wallet{}, err
	}
	if err := g.CheckWallet(wallet, userID); err != nil {
		return Wallet{}, unauthorized("You do not own this transaction.")
	}
	return wallet, nil
}

// CheckSubscription resolves the wallet of the subscription's owner. An owner
// without a wallet cannot pay, so it fails the same way as a foreign owner.
func (g OwnershipGuard) CheckSubscription(ctx context.Context, repo Repository, s Subscription, userID string) (Wallet, error) {
	if err := g.CheckSubscriptionOwner(s, userID); err != nil {
		return Wallet{}, err
	}
	wallet, err := repo.GetWalletByUserID(ctx, s.UserID)
	if err != nil {
		if errors.Is(err, appErrors.NotFound) {
			return Wallet{}, unauthorized("Subscription owner has no wallet.")
		}
		return Wallet{}, err
	}
	if err := g.CheckWallet(wallet, userID); err != nil {
		return Wallet{}, unauthorized("You do not own this subscription.")
	}
	return wallet, nil
}

func (OwnershipGuard) CheckSubscriptionOwner(s Subscription, userID string) error {
	if s.UserID == "" || s.UserID != userID {
		logging.Logger.Warnf("user %q denied access to subscription %s", userID, s.ID)
		return unauthorized("You do not own this subscription.")
	}
	return nil
}

func (OwnershipGuard) CheckBudget(b Budget, userID string) error {
	if b.UserID == "" || b.UserID != userID {
		logging.Logger.Warnf("user %q denied access to budget %s", userID, b.ID)
		return unauthorized("You do not own this budget.")
	}
	return nil
}
