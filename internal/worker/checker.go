package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"gatekeeper-bot/internal/models"
	"gatekeeper-bot/internal/notify"
)

// reminderWindow is how far before expiry the reminder fires. The check
// is "remaining time crossed below the window", deduplicated per expiry
// date, so sweep phase cannot make it fire twice or not at all.
const reminderWindow = 72 * time.Hour

// lastDayWindow triggers the morning-of-expiry notice.
const lastDayWindow = 12 * time.Hour

// Store lists the subscriptions the sweep walks.
type Store interface {
	ActiveSubscriptions(ctx context.Context) ([]models.Subscription, error)
}

// Ledger revokes lapsed entitlements.
type Ledger interface {
	Revoke(ctx context.Context, telegramID int64) error
}

// Notifier delivers reminder messages.
type Notifier interface {
	Notify(ctx context.Context, userID int64, kind notify.Kind, args ...any) error
}

// Flags is one-shot flag storage for notification dedup.
type Flags interface {
	// Acquire sets the flag if it is not held yet and reports whether this
	// caller won it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// RedisFlags backs Flags with SETNX keys.
type RedisFlags struct {
	rdb *redis.Client
}

func NewRedisFlags(rdb *redis.Client) *RedisFlags {
	return &RedisFlags{rdb: rdb}
}

func (f *RedisFlags) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return f.rdb.SetNX(ctx, key, "1", ttl).Result()
}

// Checker is the periodic expiry sweep over all active subscriptions.
type Checker struct {
	store    Store
	ledger   Ledger
	notifier Notifier
	flags    Flags
	interval time.Duration
	log      *slog.Logger

	now func() time.Time
}

func NewChecker(store Store, ledger Ledger, notifier Notifier, flags Flags, interval time.Duration, log *slog.Logger) *Checker {
	return &Checker{
		store:    store,
		ledger:   ledger,
		notifier: notifier,
		flags:    flags,
		interval: interval,
		log:      log,
		now:      time.Now,
	}
}

// Start runs the sweep once immediately, then on every tick until ctx is
// cancelled.
func (c *Checker) Start(ctx context.Context) {
	c.log.Info("subscription sweep started", "interval", c.interval)
	c.Sweep(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.log.Info("subscription sweep stopped")
			return
		case <-ticker.C:
			c.Sweep(ctx)
		}
	}
}

// Sweep applies reminder and expiration policy to every active
// subscription. Each user is handled independently; one failure never
// aborts the rest of the pass.
func (c *Checker) Sweep(ctx context.Context) {
	subs, err := c.store.ActiveSubscriptions(ctx)
	if err != nil {
		c.log.Error("failed to list active subscriptions", "error", err)
		return
	}

	for i := range subs {
		if err := c.process(ctx, &subs[i]); err != nil {
			c.log.Error("sweep failed for user",
				"user_id", subs[i].User.TelegramID, "error", err)
		}
	}
}

func (c *Checker) process(ctx context.Context, sub *models.Subscription) error {
	telegramID := sub.User.TelegramID
	remaining := sub.ExpiryDate.Sub(c.now())

	if remaining <= 0 {
		return c.ledger.Revoke(ctx, telegramID)
	}

	if remaining < lastDayWindow {
		return c.remind(ctx, sub, "expires_today", notify.KindExpiresToday, remaining)
	}
	if remaining < reminderWindow {
		return c.remind(ctx, sub, "expiry_reminder", notify.KindExpiryReminder, remaining)
	}
	return nil
}

// remind sends the notification at most once per user and expiry date.
// A renewal moves the expiry, which re-arms the flag for the new period.
func (c *Checker) remind(ctx context.Context, sub *models.Subscription, name string, kind notify.Kind, remaining time.Duration) error {
	telegramID := sub.User.TelegramID
	key := fmt.Sprintf("%s_%d_%d", name, telegramID, sub.ExpiryDate.Unix())

	won, err := c.flags.Acquire(ctx, key, remaining+24*time.Hour)
	if err != nil {
		return fmt.Errorf("failed to acquire reminder flag: %w", err)
	}
	if !won {
		return nil
	}
	if err := c.notifier.Notify(ctx, telegramID, kind); err != nil {
		return err
	}
	c.log.Info("sent expiry notification", "user_id", telegramID, "kind", kind, "expiry", sub.ExpiryDate)
	return nil
}
