package subscription

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gatekeeper-bot/internal/models"
	"gatekeeper-bot/internal/notify"
)

// Enforcer controls the user's ability to enter the gated channel.
type Enforcer interface {
	EnsureUnbanned(ctx context.Context, userID int64) error
	CreateInvite(ctx context.Context, userID int64) (string, error)
	RevokeInvite(ctx context.Context, inviteLink string) error
	ExpelThenReadmit(ctx context.Context, userID int64) error
}

// Notifier delivers user messages and operator alerts.
type Notifier interface {
	Notify(ctx context.Context, userID int64, kind notify.Kind, args ...any) error
	NotifyOperator(ctx context.Context, text string)
}

// Canceller terminates provider-managed recurring billing for an order.
type Canceller interface {
	RemoveRegularPayment(ctx context.Context, orderReference string) error
}

// GrantRequest describes one entitlement grant. OrderReference is empty
// for manual (admin) grants, which are never deduplicated.
type GrantRequest struct {
	TelegramID     int64
	Days           int
	TariffLabel    string
	OrderReference string
	Amount         float64
	Recurring      bool
}

// Ledger owns every mutation of subscription state. All writes for one
// user are serialized through a per-user mutex: a renewal webhook and a
// sweep revocation targeting the same subscription cannot interleave.
// The subscription row is the durable source of truth; channel-access
// side effects are best effort and reconciled by later sweeps.
type Ledger struct {
	store     Store
	enforcer  Enforcer
	notifier  Notifier
	canceller Canceller
	log       *slog.Logger

	mu    sync.Mutex
	locks map[int64]*sync.Mutex

	now func() time.Time
}

func NewLedger(store Store, enforcer Enforcer, notifier Notifier, canceller Canceller, log *slog.Logger) *Ledger {
	return &Ledger{
		store:     store,
		enforcer:  enforcer,
		notifier:  notifier,
		canceller: canceller,
		log:       log,
		locks:     make(map[int64]*sync.Mutex),
		now:       time.Now,
	}
}

func (l *Ledger) userLock(telegramID int64) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[telegramID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[telegramID] = lock
	}
	return lock
}

// Grant applies a paid (or manually issued) entitlement period. An active
// unexpired subscription is extended additively; anything else restarts
// from now. A grant whose order reference was already applied is a no-op,
// so provider webhook retries cannot double-extend.
func (l *Ledger) Grant(ctx context.Context, req GrantRequest) error {
	lock := l.userLock(req.TelegramID)
	lock.Lock()
	defer lock.Unlock()

	if req.OrderReference != "" {
		applied, err := l.store.OrderReferenceApplied(ctx, req.OrderReference)
		if err != nil {
			return err
		}
		if applied {
			l.log.Info("order reference already applied, skipping grant",
				"user_id", req.TelegramID, "order_reference", req.OrderReference)
			return nil
		}
	}

	user, err := l.store.FindOrCreateUser(ctx, req.TelegramID, "", "")
	if err != nil {
		return err
	}
	sub, err := l.store.SubscriptionFor(ctx, user)
	if err != nil {
		return err
	}

	now := l.now()
	if sub.Active && sub.ExpiryDate.After(now) {
		// Renewal stacks on top of the remaining time, never resets it.
		sub.ExpiryDate = sub.ExpiryDate.Add(time.Duration(req.Days) * 24 * time.Hour)
	} else {
		sub.StartDate = now
		sub.ExpiryDate = now.Add(time.Duration(req.Days) * 24 * time.Hour)
	}
	sub.Active = true
	sub.TariffLabel = req.TariffLabel
	if req.Recurring && req.OrderReference != "" {
		sub.RecurringOrderRef = req.OrderReference
	}

	if err := l.enforcer.EnsureUnbanned(ctx, req.TelegramID); err != nil {
		l.log.Warn("failed to unban user", "user_id", req.TelegramID, "error", err)
	}
	if sub.InviteLink == "" {
		link, err := l.enforcer.CreateInvite(ctx, req.TelegramID)
		if err != nil {
			l.log.Error("failed to create invite link", "user_id", req.TelegramID, "error", err)
			l.notifier.NotifyOperator(ctx, fmt.Sprintf("Ошибка создания ссылки для %d: %v", req.TelegramID, err))
		} else {
			sub.InviteLink = link
		}
	}

	var payment *models.Payment
	if req.OrderReference != "" {
		payment = &models.Payment{
			UserID:         user.ID,
			OrderReference: req.OrderReference,
			Amount:         req.Amount,
			Status:         "applied",
		}
	}
	if err := l.store.SaveSubscription(ctx, sub, payment); err != nil {
		return err
	}

	if err := l.notifier.Notify(ctx, req.TelegramID, notify.KindSubscriptionExtended,
		sub.ExpiryDate.Format("02.01.2006"), sub.InviteLink); err != nil {
		l.log.Warn("failed to send grant notification", "user_id", req.TelegramID, "error", err)
	}

	l.log.Info("subscription granted",
		"user_id", req.TelegramID, "days", req.Days, "tariff", req.TariffLabel,
		"expiry", sub.ExpiryDate, "recurring", req.Recurring)
	return nil
}

// Revoke ends the user's entitlement: cancels recurring billing (the
// local reference is cleared whether or not the provider call succeeds),
// invalidates the invite link, expels the user from the channel and
// immediately lifts the ban so a future payment can re-admit them.
// Safe to call on an already-inactive subscription.
func (l *Ledger) Revoke(ctx context.Context, telegramID int64) error {
	lock := l.userLock(telegramID)
	lock.Lock()
	defer lock.Unlock()

	user, err := l.store.FindOrCreateUser(ctx, telegramID, "", "")
	if err != nil {
		return err
	}
	sub, err := l.store.SubscriptionFor(ctx, user)
	if err != nil {
		return err
	}
	if !sub.Active {
		return nil
	}

	if sub.RecurringOrderRef != "" {
		if err := l.canceller.RemoveRegularPayment(ctx, sub.RecurringOrderRef); err != nil {
			// Provider-side state owns whether billing continues; the local
			// reference is cleared either way and never retried here.
			l.log.Warn("recurring billing cancellation failed",
				"user_id", telegramID, "order_reference", sub.RecurringOrderRef, "error", err)
		}
		sub.RecurringOrderRef = ""
	}

	if sub.InviteLink != "" {
		if err := l.enforcer.RevokeInvite(ctx, sub.InviteLink); err != nil {
			l.log.Warn("failed to revoke invite link", "user_id", telegramID, "error", err)
		}
		sub.InviteLink = ""
	}

	if err := l.enforcer.ExpelThenReadmit(ctx, telegramID); err != nil {
		l.log.Error("failed to expel user from channel", "user_id", telegramID, "error", err)
		l.notifier.NotifyOperator(ctx, fmt.Sprintf("Ошибка при кике %d: %v", telegramID, err))
	}

	sub.Active = false
	if err := l.store.SaveSubscription(ctx, sub, nil); err != nil {
		return err
	}

	if err := l.notifier.Notify(ctx, telegramID, notify.KindAccessRevoked); err != nil {
		l.log.Warn("failed to send revoke notification", "user_id", telegramID, "error", err)
	}

	l.log.Info("subscription revoked", "user_id", telegramID)
	return nil
}
