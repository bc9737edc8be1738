package payment

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"gatekeeper-bot/internal/notify"
	"gatekeeper-bot/internal/subscription"
	"gatekeeper-bot/internal/tariff"
	"gatekeeper-bot/internal/wayforpay"
)

// Ledger is the slice of the subscription ledger the reconciler drives.
type Ledger interface {
	Grant(ctx context.Context, req subscription.GrantRequest) error
}

// Notifier delivers payment-failure messages to users.
type Notifier interface {
	Notify(ctx context.Context, userID int64, kind notify.Kind, args ...any) error
	NotifyOperator(ctx context.Context, text string)
}

// Handler reconciles inbound payment events against the ledger.
//
// The ack is unconditional: every structurally valid callback gets a
// signed accept response regardless of how internal processing goes,
// so the provider never enters a retry storm over an event we already
// recorded. State application runs off the ack path; the ledger's
// per-user mutex gives mutual exclusion, not arrival order, which is
// sufficient because event application commutes (see dispatch below).
type Handler struct {
	secret   string
	catalog  *tariff.Catalog
	ledger   Ledger
	notifier Notifier
	log      *slog.Logger

	wg sync.WaitGroup
}

func NewHandler(secret string, catalog *tariff.Catalog, ledger Ledger, notifier Notifier, log *slog.Logger) *Handler {
	return &Handler{
		secret:   secret,
		catalog:  catalog,
		ledger:   ledger,
		notifier: notifier,
		log:      log,
	}
}

func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	reqID := uuid.New().String()
	log := h.log.With("request_id", reqID)

	var n Notification
	if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
		log.Warn("failed to decode webhook body", "error", err)
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	if n.OrderReference == "" || n.TransactionStatus == "" {
		log.Warn("webhook missing required fields")
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	log.Info("payment event received",
		"order_reference", n.OrderReference, "status", n.TransactionStatus, "amount", n.Amount)

	userID, err := wayforpay.UserIDFromOrderReference(n.OrderReference)
	if err != nil {
		// Unknown reference shape: ack anyway, apply nothing.
		log.Warn("cannot recover user id from order reference", "order_reference", n.OrderReference, "error", err)
	} else {
		// Two in-flight events for one user may be applied in either
		// order: the keyed mutex only serializes them. That is safe
		// because application commutes — grants dedup on order reference,
		// extensions stack additively, and declines touch no state.
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			h.apply(context.Background(), log, n, userID)
		}()
	}

	now := time.Now().Unix()
	ack := Ack{
		OrderReference: n.OrderReference,
		Status:         "accept",
		Time:           now,
		Signature:      wayforpay.Sign(h.secret, n.OrderReference, "accept", strconv.FormatInt(now, 10)),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(ack); err != nil {
		log.Error("failed to write ack", "error", err)
	}
}

// apply moves ledger state for one event. Failures are logged and
// surfaced to the operator; they never travel back to the provider.
func (h *Handler) apply(ctx context.Context, log *slog.Logger, n Notification, userID int64) {
	switch n.TransactionStatus {
	case StatusApproved:
		plan := h.catalog.ResolveByAmount(n.Amount)
		err := h.ledger.Grant(ctx, subscription.GrantRequest{
			TelegramID:     userID,
			Days:           plan.Days,
			TariffLabel:    plan.Name,
			OrderReference: n.OrderReference,
			Amount:         n.Amount,
			Recurring:      plan.Recurring(),
		})
		if err != nil {
			log.Error("failed to apply approved payment", "user_id", userID, "error", err)
			h.notifier.NotifyOperator(ctx, "Не удалось применить платеж "+n.OrderReference+": "+err.Error())
		}
	case StatusDeclined, StatusExpired:
		// A failed charge leaves the existing entitlement untouched; the
		// sweep revokes it when it naturally lapses.
		if err := h.notifier.Notify(ctx, userID, notify.KindPaymentDeclined); err != nil {
			log.Warn("failed to send declined notification", "user_id", userID, "error", err)
		}
	default:
		log.Info("ignoring transaction status", "status", n.TransactionStatus)
	}
}

// Wait blocks until all dispatched event applications finish. Used on
// shutdown and in tests.
func (h *Handler) Wait() {
	h.wg.Wait()
}
