package budget

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	appErrors "github.com/fatali-fataliyev/wallet_tracker/customErrors"
	"github.com/fatali-fataliyev/wallet_tracker/internal/contextutil"
	"github.com/fatali-fataliyev/wallet_tracker/logging"
	"github.com/google/uuid"
)

const (
	MAX_SUBSCRIPTION_NAME_LENGTH = 255
	DefaultExpiryNoticeDays      = 7
)

type SubscriptionService struct {
	storage          Storage
	guard            OwnershipGuard
	notifier         Notifier
	clock            Clock
	expiryNoticeDays int
}

func NewSubscriptionService(s Storage, notifier Notifier, clock Clock, expiryNoticeDays int) *SubscriptionService {
	if clock == nil {
		clock = systemClock
	}
	if expiryNoticeDays <= 0 {
		expiryNoticeDays = DefaultExpiryNoticeDays
	}
	return &SubscriptionService{
		storage:          s,
		notifier:         notifier,
		clock:            clock,
		expiryNoticeDays: expiryNoticeDays,
	}
}

func (req SubscriptionRequest) Validate() error {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return appErrors.New(appErrors.ErrInvalidInput, "Subscription name cannot be empty!")
	}
	if len(name) > MAX_SUBSCRIPTION_NAME_LENGTH {
		return appErrors.New(appErrors.ErrInvalidInput, "Subscription name so long, maximum length is %d", MAX_SUBSCRIPTION_NAME_LENGTH)
	}
	if !req.Period.Valid() {
		return appErrors.New(appErrors.ErrInvalidInput, "Invalid subscription period: %q", req.Period)
	}
	if !req.Type.Valid() {
		return appErrors.New(appErrors.ErrInvalidInput, "Invalid subscription type: %q", req.Type)
	}
	if req.ExpiryOn.IsZero() {
		return appErrors.New(appErrors.ErrInvalidInput, "Subscription expiry date is required.")
	}
	return validateAmount(req.Price, "Price")
}

func (s *SubscriptionService) CreateSubscription(ctx context.Context, userID string, req SubscriptionRequest) (Subscription, error) {
	if err := req.Validate(); err != nil {
		return Subscription{}, err
	}

	sub := Subscription{
		ID:        uuid.New().String(),
		UserID:    userID,
		Name:      strings.TrimSpace(req.Name),
		Price:     req.Price,
		Period:    req.Period,
		Type:      req.Type,
		ExpiryOn:  StartOfDay(req.ExpiryOn),
		CreatedAt: s.clock().UTC(),
	}
	err := s.storage.Update(ctx, func(repo Repository) error {
		if _, err := repo.GetUserByID(ctx, userID); err != nil {
			return err
		}
		return repo.SaveSubscription(ctx, sub)
	})
	if err != nil {
		return Subscription{}, err
	}
	return sub, nil
}

// ActiveSubscriptions returns the user's unpaid subscriptions, soonest
// expiry first.
func (s *SubscriptionService) ActiveSubscriptions(ctx context.Context, userID string) ([]Subscription, error) {
	var out []Subscription
	err := s.storage.View(ctx, func(repo Repository) error {
		subs, err := repo.ListSubscriptions(ctx, userID)
		if err != nil {
			return err
		}
		out = unpaid(subs)
		return nil
	})
	return out, err
}

// PaidSubscriptionsForMonth returns subscriptions paid inside month, most
// recently paid first.
func (s *SubscriptionService) PaidSubscriptionsForMonth(ctx context.Context, userID string, month YearMonth) ([]Subscription, error) {
	var out []Subscription
	err := s.storage.View(ctx, func(repo Repository) error {
		subs, err := repo.ListSubscriptions(ctx, userID)
		if err != nil {
			return err
		}
		out = paidInMonth(subs, month)
		return nil
	})
	return out, err
}

func (s *SubscriptionService) DeleteSubscription(ctx context.Context, subscriptionID string, userID string) error {
	return s.storage.Update(ctx, func(repo Repository) error {
		sub, err := repo.GetSubscriptionByID(ctx, subscriptionID)
		if err != nil {
			return err
		}
		if err := s.guard.CheckSubscriptionOwner(sub, userID); err != nil {
			return err
		}
		return repo.DeleteSubscription(ctx, subscriptionID)
	})
}

// NotifyExpiringSubscriptions sends every user one notice listing the unpaid
// subscriptions that expire within the notice window. Delivery failures are
// logged and skipped; it returns the number of notices handed to the
// notifier.
func (s *SubscriptionService) NotifyExpiringSubscriptions(ctx context.Context) (int, error) {
	traceID := contextutil.TraceIDFromContext(ctx)
	now := s.clock().UTC()
	limit := StartOfDay(now).AddDate(0, 0, s.expiryNoticeDays)

	type pending struct {
		userName string
		email    string
		userID   string
		subs     []Subscription
	}
	var batch []pending

	err := s.storage.View(ctx, func(repo Repository) error {
		users, err := repo.ListUsers(ctx)
		if err != nil {
			return err
		}
		for _, u := range users {
			subs, err := repo.ListSubscriptions(ctx, u.ID)
			if err != nil {
				return err
			}
			expiring := make([]Subscription, 0)
			for _, sub := range unpaid(subs) {
				if sub.ExpiryOn.Before(limit) {
					expiring = append(expiring, sub)
				}
			}
			if len(expiring) > 0 {
				batch = append(batch, pending{userName: u.UserName, email: u.Email, userID: u.ID, subs: expiring})
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if s.notifier == nil {
		logging.Logger.Infof("[TraceID=%s] | no notifier configured, skipping %d expiring subscription notices", traceID, len(batch))
		return 0, nil
	}

	sent := 0
	for _, p := range batch {
		n := Notification{
			Kind:      NotificationExpiringSubscriptions,
			UserID:    p.userID,
			Email:     p.email,
			Subject:   "Expiring subscriptions for " + p.userName,
			Body:      expiringBody(p.userName, p.subs, now),
			CreatedAt: now,
		}
		if err := s.notifier.Notify(ctx, n); err != nil {
			logging.Logger.Errorf("[TraceID=%s] | failed to notify user %s about expiring subscriptions | Error: %v", traceID, p.userID, err)
			continue
		}
		sent++
	}
	logging.Logger.Infof("[TraceID=%s] | sent %d expiring subscription notices", traceID, sent)
	return sent, nil
}

func expiringBody(userName string, subs []Subscription, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello, %s!\n\nThe following subscriptions expire soon:\n", userName)
	for _, s := range subs {
		fmt.Fprintf(&b, "- %s: %s %s (expires on %s, in %d days)\n",
			s.Name, s.Price, DefaultWalletCurrency, s.ExpiryOn.Format("2006-01-02"), daysUntil(now, s.ExpiryOn))
	}
	return b.String()
}

func unpaid(subs []Subscription) []Subscription {
	out := make([]Subscription, 0, len(subs))
	for _, s := range subs {
		if !s.IsPaid() {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ExpiryOn.Before(out[j].ExpiryOn)
	})
	return out
}

func paidInMonth(subs []Subscription, month YearMonth) []Subscription {
	out := make([]Subscription, 0)
	for _, s := range subs {
		if s.IsPaid() && month.Contains(*s.PaidDate) {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PaidDate.After(*out[j].PaidDate)
	})
	return out
}

func daysUntil(from, to time.Time) int {
	return int(StartOfDay(to).Sub(StartOfDay(from)).Hours() / 24)
}
