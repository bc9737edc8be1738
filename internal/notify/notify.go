package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

// Kind is a closed enumeration of user-facing notifications. Adding a
// kind without a template is caught by NewTelegramNotifier at startup,
// not by a runtime sentinel string.
type Kind string

const (
	KindSubscriptionExtended Kind = "subscription_extended"
	KindAccessRevoked        Kind = "access_revoked"
	KindPaymentDeclined      Kind = "payment_declined"
	KindExpiryReminder       Kind = "expiry_reminder"
	KindExpiresToday         Kind = "expires_today"
)

var allKinds = []Kind{
	KindSubscriptionExtended,
	KindAccessRevoked,
	KindPaymentDeclined,
	KindExpiryReminder,
	KindExpiresToday,
}

var templates = map[Kind]string{
	KindSubscriptionExtended: "✅ Оплата успешна! Подписка продлена до %s.\n\nВаша ссылка для входа:\n%s",
	KindAccessRevoked:        "⛔ Ваша подписка истекла. Доступ закрыт.",
	KindPaymentDeclined:      "❌ Не удалось продлить подписку. Пожалуйста, проверьте карту и оплатите вручную.",
	KindExpiryReminder:       "⏳ Ваша подписка истекает через 3 дня.",
	KindExpiresToday:         "❗ Подписка истекает сегодня. Ожидайте автосписания.",
}

// TelegramNotifier delivers notifications as Telegram direct messages and
// operator alerts to the admin chat.
type TelegramNotifier struct {
	bot     *telego.Bot
	adminID int64
	log     *slog.Logger
}

func NewTelegramNotifier(bot *telego.Bot, adminID int64, log *slog.Logger) (*TelegramNotifier, error) {
	for _, k := range allKinds {
		if _, ok := templates[k]; !ok {
			return nil, fmt.Errorf("notification kind %q has no template", k)
		}
	}
	return &TelegramNotifier{bot: bot, adminID: adminID, log: log}, nil
}

// Notify sends the templated message for kind to the user. args fill the
// template's format verbs, if it has any.
func (n *TelegramNotifier) Notify(ctx context.Context, userID int64, kind Kind, args ...any) error {
	tmpl, ok := templates[kind]
	if !ok {
		return fmt.Errorf("unknown notification kind %q", kind)
	}
	text := tmpl
	if len(args) > 0 {
		text = fmt.Sprintf(tmpl, args...)
	}
	if _, err := n.bot.SendMessage(ctx, tu.Message(tu.ID(userID), text)); err != nil {
		return fmt.Errorf("failed to notify user %d (%s): %w", userID, kind, err)
	}
	return nil
}

// NotifyOperator delivers an alert to the admin chat, best effort.
func (n *TelegramNotifier) NotifyOperator(ctx context.Context, text string) {
	if n.adminID == 0 {
		return
	}
	if _, err := n.bot.SendMessage(ctx, tu.Message(tu.ID(n.adminID), text)); err != nil {
		n.log.Error("failed to alert operator", "error", err)
	}
}
