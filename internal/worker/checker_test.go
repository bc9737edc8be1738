package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatekeeper-bot/internal/models"
	"gatekeeper-bot/internal/notify"
)

type mockStore struct {
	subs []models.Subscription
	err  error
}

func (s *mockStore) ActiveSubscriptions(_ context.Context) ([]models.Subscription, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.subs, nil
}

type mockLedger struct {
	revoked []int64
	failFor map[int64]error
}

func (l *mockLedger) Revoke(_ context.Context, telegramID int64) error {
	if err, ok := l.failFor[telegramID]; ok {
		return err
	}
	l.revoked = append(l.revoked, telegramID)
	return nil
}

type sent struct {
	userID int64
	kind   notify.Kind
}

type mockNotifier struct {
	sent []sent
}

func (n *mockNotifier) Notify(_ context.Context, userID int64, kind notify.Kind, _ ...any) error {
	n.sent = append(n.sent, sent{userID: userID, kind: kind})
	return nil
}

type mockFlags struct {
	held map[string]bool
}

func (f *mockFlags) Acquire(_ context.Context, key string, _ time.Duration) (bool, error) {
	if f.held == nil {
		f.held = make(map[string]bool)
	}
	if f.held[key] {
		return false, nil
	}
	f.held[key] = true
	return true, nil
}

func activeSub(telegramID int64, expiry time.Time) models.Subscription {
	return models.Subscription{
		UserID:     uint(telegramID),
		User:       models.User{ID: uint(telegramID), TelegramID: telegramID},
		Active:     true,
		ExpiryDate: expiry,
	}
}

type checkerFixture struct {
	checker  *Checker
	store    *mockStore
	ledger   *mockLedger
	notifier *mockNotifier
	now      time.Time
}

func newCheckerFixture(subs ...models.Subscription) *checkerFixture {
	f := &checkerFixture{
		store:    &mockStore{subs: subs},
		ledger:   &mockLedger{},
		notifier: &mockNotifier{},
		now:      time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.checker = NewChecker(f.store, f.ledger, f.notifier, &mockFlags{}, 12*time.Hour, log)
	f.checker.now = func() time.Time { return f.now }
	return f
}

func TestSweepRevokesExpiredSubscriptions(t *testing.T) {
	f := newCheckerFixture(
		activeSub(42, time.Date(2026, 2, 27, 9, 0, 0, 0, time.UTC)), // 2 days past
		activeSub(43, time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)),  // far out
	)

	f.checker.Sweep(context.Background())

	assert.Equal(t, []int64{42}, f.ledger.revoked)
	assert.Empty(t, f.notifier.sent)
}

func TestSweepContinuesPastPerUserFailures(t *testing.T) {
	expired := time.Date(2026, 2, 27, 9, 0, 0, 0, time.UTC)
	f := newCheckerFixture(
		activeSub(41, expired),
		activeSub(42, expired),
		activeSub(43, expired),
	)
	f.ledger.failFor = map[int64]error{41: errors.New("chat api down")}

	f.checker.Sweep(context.Background())

	// The failing user does not stop the rest of the pass.
	assert.Equal(t, []int64{42, 43}, f.ledger.revoked)
}

func TestReminderFiresOnceBelow72Hours(t *testing.T) {
	f := newCheckerFixture(activeSub(42, time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC))) // 71h out

	f.checker.Sweep(context.Background())
	f.checker.Sweep(context.Background())

	require.Len(t, f.notifier.sent, 1, "flag must dedup repeat sweeps")
	assert.Equal(t, notify.KindExpiryReminder, f.notifier.sent[0].kind)
	assert.EqualValues(t, 42, f.notifier.sent[0].userID)
	assert.Empty(t, f.ledger.revoked)
}

func TestNoReminderAbove72Hours(t *testing.T) {
	f := newCheckerFixture(activeSub(42, time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC))) // 96h out

	f.checker.Sweep(context.Background())

	assert.Empty(t, f.notifier.sent)
	assert.Empty(t, f.ledger.revoked)
}

func TestExpiresTodayNoticeWithinLastTwelveHours(t *testing.T) {
	f := newCheckerFixture(activeSub(42, time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC))) // 9h out

	f.checker.Sweep(context.Background())

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, notify.KindExpiresToday, f.notifier.sent[0].kind)
}

func TestRenewalRearmsReminder(t *testing.T) {
	f := newCheckerFixture(activeSub(42, time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC)))

	f.checker.Sweep(context.Background())
	require.Len(t, f.notifier.sent, 1)

	// A renewal moved the expiry; a month later the new period runs out too.
	f.store.subs[0].ExpiryDate = time.Date(2026, 4, 3, 8, 0, 0, 0, time.UTC)
	f.now = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	f.checker.Sweep(context.Background())
	assert.Len(t, f.notifier.sent, 2, "new expiry date uses a fresh flag")
}
